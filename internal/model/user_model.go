package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type UserModel struct {
	ID             string         `gorm:"type:uuid;primary_key" json:"id"`
	Username       string         `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash   string         `gorm:"not null" json:"-"`
	Permissions    pq.StringArray `gorm:"type:text[]" json:"permissions"`
	LastTokenReset time.Time      `gorm:"not null" json:"last_token_reset"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (UserModel) TableName() string {
	return "users"
}

func (u *UserModel) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.LastTokenReset.IsZero() {
		u.LastTokenReset = time.Unix(0, 0)
	}
	return nil
}

type TokenModel struct {
	Hash      string    `gorm:"primary_key" json:"-"`
	UserID    string    `gorm:"type:uuid;not null;index" json:"user_id"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (TokenModel) TableName() string {
	return "tokens"
}
