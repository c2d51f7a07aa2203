package persistent

import (
	"errors"
	"time"

	"bookstack/internal/apperr"
	"bookstack/internal/entity"
	"bookstack/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TokenRepository interface {
	Upsert(token *entity.Token) error
	GetByHash(hash string) (*entity.Token, error)
	DeleteByHash(hash string) error
	DeleteExpired(before time.Time) error
}

type tokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Upsert(token *entity.Token) error {
	tokenModel := ToTokenModel(token)
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "hash"}},
		DoNothing: true,
	}).Create(tokenModel).Error
}

func (r *tokenRepository) GetByHash(hash string) (*entity.Token, error) {
	var tokenModel model.TokenModel
	if err := r.db.Where("hash = ?", hash).First(&tokenModel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("refresh token not found")
		}
		return nil, err
	}
	return ToTokenEntity(&tokenModel), nil
}

func (r *tokenRepository) DeleteByHash(hash string) error {
	return r.db.Where("hash = ?", hash).Delete(&model.TokenModel{}).Error
}

func (r *tokenRepository) DeleteExpired(before time.Time) error {
	return r.db.Where("expires_at < ?", before).Delete(&model.TokenModel{}).Error
}
