package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookModel struct {
	ID            string     `gorm:"type:uuid;primary_key" json:"id"`
	Title         string     `gorm:"type:varchar(255);not null" json:"title"`
	Description   string     `gorm:"type:text" json:"description"`
	PublishedDate *time.Time `json:"published_date"`
	UserID        *string    `gorm:"type:uuid;index" json:"user_id"`
	State         string     `gorm:"type:varchar(20);not null;default:'DRAFT';index" json:"state"`
	CoverFile     string     `gorm:"type:varchar(255)" json:"cover_file"`
	BookFile      string     `gorm:"type:varchar(255)" json:"book_file"`
	Tags          []TagModel `gorm:"many2many:book_tags;joinForeignKey:BookID;joinReferences:TagID" json:"tags"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (BookModel) TableName() string {
	return "books"
}

func (b *BookModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

type TagModel struct {
	ID   string `gorm:"type:uuid;primary_key" json:"id"`
	Type string `gorm:"type:varchar(20);not null;uniqueIndex:idx_tags_type_name" json:"type"`
	Name string `gorm:"type:varchar(255);not null;uniqueIndex:idx_tags_type_name" json:"name"`
}

func (TagModel) TableName() string {
	return "tags"
}

func (t *TagModel) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}
