package persistent

import (
	"errors"

	"bookstack/internal/apperr"
	"bookstack/internal/entity"
	"bookstack/internal/model"
	"bookstack/internal/search"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookRepository interface {
	Create(book *entity.Book) error
	GetByID(id string) (*entity.Book, error)
	ListVisible(filter *search.Filter) ([]*entity.Book, error)
	ListByOwnerInStates(ownerID string, states ...entity.BookState) ([]*entity.Book, error)
	ListByState(state entity.BookState) ([]*entity.Book, error)
	Update(book *entity.Book, attachTags, detachTags []entity.Tag) error
	// UpdateState conditionally moves the book from one state to another.
	// It reports false when no row matched (id, from), without distinguishing
	// a missing row from a state mismatch; callers re-read to tell them apart.
	UpdateState(id string, from, to entity.BookState) (bool, error)
	SetCoverFile(id, filename string) error
	SetBookFile(id, filename string) error
	// DeleteInState removes the book only while it is in the given state.
	DeleteInState(id string, state entity.BookState) (bool, error)
}

type bookRepository struct {
	db *gorm.DB
}

func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) Create(book *entity.Book) error {
	bookModel := ToBookModel(book)
	if bookModel.ID == "" {
		bookModel.ID = uuid.New().String()
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		tags, err := upsertTags(tx, book.Tags)
		if err != nil {
			return err
		}
		bookModel.Tags = nil

		if err := tx.Create(bookModel).Error; err != nil {
			return err
		}
		if len(tags) > 0 {
			if err := tx.Model(bookModel).Association("Tags").Append(tags); err != nil {
				return err
			}
		}
		bookModel.Tags = tags

		*book = *ToBookEntity(bookModel)
		return nil
	})
}

// upsertTags resolves each (type, name) pair against the global tag registry,
// creating missing tags.
func upsertTags(tx *gorm.DB, tags []entity.Tag) ([]model.TagModel, error) {
	resolved := make([]model.TagModel, 0, len(tags))
	for _, tag := range tags {
		tagModel := model.TagModel{Type: string(tag.Type), Name: tag.Name}
		if err := tx.Where("type = ? AND name = ?", tagModel.Type, tagModel.Name).
			FirstOrCreate(&tagModel).Error; err != nil {
			return nil, err
		}
		resolved = append(resolved, tagModel)
	}
	return resolved, nil
}

func (r *bookRepository) GetByID(id string) (*entity.Book, error) {
	var bookModel model.BookModel
	if err := r.db.Preload("Tags").Where("id = ?", id).First(&bookModel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("book %s not found", id)
		}
		return nil, err
	}
	return ToBookEntity(&bookModel), nil
}

func (r *bookRepository) ListVisible(filter *search.Filter) ([]*entity.Book, error) {
	query := r.db.Preload("Tags").
		Where("state = ?", string(entity.StateVisible)).
		Order("created_at DESC")

	for _, token := range filter.TitleTokens {
		query = query.Where("title ILIKE ?", "%"+token+"%")
	}
	for _, token := range filter.DescTokens {
		query = query.Where("description ILIKE ?", "%"+token+"%")
	}
	for _, tag := range filter.Tags {
		query = query.Where(
			"EXISTS (SELECT 1 FROM book_tags bt JOIN tags t ON t.id = bt.tag_id WHERE bt.book_id = books.id AND t.type = ? AND LOWER(t.name) = ?)",
			string(tag.Type), tag.Name,
		)
	}

	return r.findAll(query)
}

func (r *bookRepository) ListByOwnerInStates(ownerID string, states ...entity.BookState) ([]*entity.Book, error) {
	stateStrings := make([]string, len(states))
	for i, state := range states {
		stateStrings[i] = string(state)
	}

	query := r.db.Preload("Tags").
		Where("user_id = ? AND state IN ?", ownerID, stateStrings).
		Order("created_at DESC")
	return r.findAll(query)
}

func (r *bookRepository) ListByState(state entity.BookState) ([]*entity.Book, error) {
	query := r.db.Preload("Tags").
		Where("state = ?", string(state)).
		Order("created_at DESC")
	return r.findAll(query)
}

func (r *bookRepository) findAll(query *gorm.DB) ([]*entity.Book, error) {
	var bookModels []model.BookModel
	if err := query.Find(&bookModels).Error; err != nil {
		return nil, err
	}

	books := make([]*entity.Book, len(bookModels))
	for i := range bookModels {
		books[i] = ToBookEntity(&bookModels[i])
	}
	return books, nil
}

func (r *bookRepository) Update(book *entity.Book, attachTags, detachTags []entity.Tag) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		bookModel := ToBookModel(book)
		bookModel.Tags = nil

		if err := tx.Model(&model.BookModel{ID: book.ID}).Updates(map[string]interface{}{
			"title":          bookModel.Title,
			"description":    bookModel.Description,
			"published_date": bookModel.PublishedDate,
		}).Error; err != nil {
			return err
		}

		if len(attachTags) > 0 {
			tags, err := upsertTags(tx, attachTags)
			if err != nil {
				return err
			}
			if err := tx.Model(&model.BookModel{ID: book.ID}).Association("Tags").Append(tags); err != nil {
				return err
			}
		}

		for _, tag := range detachTags {
			var tagModel model.TagModel
			err := tx.Where("type = ? AND name = ?", string(tag.Type), tag.Name).First(&tagModel).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			// Detach from this book only; the tag stays in the registry.
			if err := tx.Model(&model.BookModel{ID: book.ID}).Association("Tags").Delete(&tagModel); err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *bookRepository) UpdateState(id string, from, to entity.BookState) (bool, error) {
	res := r.db.Model(&model.BookModel{}).
		Where("id = ? AND state = ?", id, string(from)).
		Update("state", string(to))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *bookRepository) SetCoverFile(id, filename string) error {
	return r.db.Model(&model.BookModel{}).Where("id = ?", id).
		Update("cover_file", filename).Error
}

func (r *bookRepository) SetBookFile(id, filename string) error {
	return r.db.Model(&model.BookModel{}).Where("id = ?", id).
		Update("book_file", filename).Error
}

func (r *bookRepository) DeleteInState(id string, state entity.BookState) (bool, error) {
	res := r.db.Where("id = ? AND state = ?", id, string(state)).
		Delete(&model.BookModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
