package persistent

import (
	"errors"
	"time"

	"bookstack/internal/apperr"
	"bookstack/internal/entity"
	"bookstack/internal/model"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(user *entity.User) error
	GetByID(id string) (*entity.User, error)
	GetByUsername(username string) (*entity.User, error)
	GetAll() ([]*entity.User, error)
	Count() (int64, error)
	SetPermissions(id string, permissions []entity.Permission) error
	SetLastTokenReset(id string, at time.Time) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *entity.User) error {
	userModel := ToUserModel(user)
	if userModel.ID == "" {
		userModel.ID = uuid.New().String()
	}
	if err := r.db.Create(userModel).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("user with the name %s already exists", user.Username)
		}
		return err
	}
	*user = *ToUserEntity(userModel)
	return nil
}

func (r *userRepository) GetByID(id string) (*entity.User, error) {
	var userModel model.UserModel
	if err := r.db.Where("id = ?", id).First(&userModel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user %s not found", id)
		}
		return nil, err
	}
	return ToUserEntity(&userModel), nil
}

func (r *userRepository) GetByUsername(username string) (*entity.User, error) {
	var userModel model.UserModel
	if err := r.db.Where("username = ?", username).First(&userModel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user %s not found", username)
		}
		return nil, err
	}
	return ToUserEntity(&userModel), nil
}

func (r *userRepository) GetAll() ([]*entity.User, error) {
	var userModels []model.UserModel
	if err := r.db.Order("created_at ASC").Find(&userModels).Error; err != nil {
		return nil, err
	}

	users := make([]*entity.User, len(userModels))
	for i := range userModels {
		users[i] = ToUserEntity(&userModels[i])
	}
	return users, nil
}

func (r *userRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.UserModel{}).Count(&count).Error
	return count, err
}

func (r *userRepository) SetPermissions(id string, permissions []entity.Permission) error {
	permissionStrings := make([]string, len(permissions))
	for i, permission := range permissions {
		permissionStrings[i] = string(permission)
	}

	res := r.db.Model(&model.UserModel{}).Where("id = ?", id).
		Update("permissions", pq.StringArray(permissionStrings))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user %s not found", id)
	}
	return nil
}

func (r *userRepository) SetLastTokenReset(id string, at time.Time) error {
	res := r.db.Model(&model.UserModel{}).Where("id = ?", id).
		Update("last_token_reset", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user %s not found", id)
	}
	return nil
}
