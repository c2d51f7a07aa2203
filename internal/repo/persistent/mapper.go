package persistent

import (
	"bookstack/internal/entity"
	"bookstack/internal/model"
)

func ToBookEntity(m *model.BookModel) *entity.Book {
	if m == nil {
		return nil
	}

	book := &entity.Book{
		ID:            m.ID,
		Title:         m.Title,
		Description:   m.Description,
		PublishedDate: m.PublishedDate,
		UserID:        m.UserID,
		State:         entity.BookState(m.State),
		CoverFile:     m.CoverFile,
		BookFile:      m.BookFile,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}

	book.Tags = make([]entity.Tag, len(m.Tags))
	for i, tag := range m.Tags {
		book.Tags[i] = ToTagEntity(&tag)
	}

	return book
}

func ToBookModel(e *entity.Book) *model.BookModel {
	if e == nil {
		return nil
	}

	book := &model.BookModel{
		ID:            e.ID,
		Title:         e.Title,
		Description:   e.Description,
		PublishedDate: e.PublishedDate,
		UserID:        e.UserID,
		State:         string(e.State),
		CoverFile:     e.CoverFile,
		BookFile:      e.BookFile,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}

	if len(e.Tags) > 0 {
		book.Tags = make([]model.TagModel, len(e.Tags))
		for i, tag := range e.Tags {
			book.Tags[i] = *ToTagModel(&tag)
		}
	}

	return book
}

func ToTagEntity(m *model.TagModel) entity.Tag {
	if m == nil {
		return entity.Tag{}
	}

	return entity.Tag{
		ID:   m.ID,
		Type: entity.TagType(m.Type),
		Name: m.Name,
	}
}

func ToTagModel(e *entity.Tag) *model.TagModel {
	if e == nil {
		return nil
	}

	return &model.TagModel{
		ID:   e.ID,
		Type: string(e.Type),
		Name: e.Name,
	}
}

func ToUserEntity(m *model.UserModel) *entity.User {
	if m == nil {
		return nil
	}

	permissions := make([]entity.Permission, len(m.Permissions))
	for i, permission := range m.Permissions {
		permissions[i] = entity.Permission(permission)
	}

	return &entity.User{
		ID:             m.ID,
		Username:       m.Username,
		PasswordHash:   m.PasswordHash,
		Permissions:    permissions,
		LastTokenReset: m.LastTokenReset,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func ToUserModel(e *entity.User) *model.UserModel {
	if e == nil {
		return nil
	}

	permissions := make([]string, len(e.Permissions))
	for i, permission := range e.Permissions {
		permissions[i] = string(permission)
	}

	return &model.UserModel{
		ID:             e.ID,
		Username:       e.Username,
		PasswordHash:   e.PasswordHash,
		Permissions:    permissions,
		LastTokenReset: e.LastTokenReset,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func ToTokenEntity(m *model.TokenModel) *entity.Token {
	if m == nil {
		return nil
	}

	return &entity.Token{
		Hash:      m.Hash,
		UserID:    m.UserID,
		ExpiresAt: m.ExpiresAt,
		CreatedAt: m.CreatedAt,
	}
}

func ToTokenModel(e *entity.Token) *model.TokenModel {
	if e == nil {
		return nil
	}

	return &model.TokenModel{
		Hash:      e.Hash,
		UserID:    e.UserID,
		ExpiresAt: e.ExpiresAt,
		CreatedAt: e.CreatedAt,
	}
}
