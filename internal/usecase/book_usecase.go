package usecase

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"bookstack/internal/apperr"
	"bookstack/internal/entity"
	"bookstack/internal/policy"
	"bookstack/internal/repo/persistent"
	"bookstack/internal/search"
	"bookstack/pkg/logger"
	"bookstack/pkg/s3"
)

// BlobStore is the file storage collaborator, satisfied by *s3.Client.
type BlobStore interface {
	UploadFile(key string, file io.Reader, contentType string) error
	GetFile(key string) (io.ReadCloser, string, error)
	DeleteFile(key string) error
	DeletePrefix(prefix string) error
}

// EventPublisher emits review workflow events, satisfied by *queue.Client.
type EventPublisher interface {
	PublishReviewEvent(event map[string]interface{}) error
}

// ListCache caches public visible-list results, satisfied by
// *cache.BookListCache. A nil cache disables caching.
type ListCache interface {
	Get(query string) ([]*entity.Book, bool)
	Set(query string, books []*entity.Book)
	Invalidate()
}

type CreateBookInput struct {
	Title         string
	Description   string
	PublishedDate *time.Time
	Tags          []entity.Tag
}

// UpdateBookInput carries the editable fields. Nil means "leave unchanged";
// a non-nil Tags slice replaces the tag set.
type UpdateBookInput struct {
	Title         *string
	Description   *string
	PublishedDate *time.Time
	Tags          []entity.Tag
}

type BookUseCase interface {
	Create(actor *entity.User, input CreateBookInput) (*entity.Book, error)
	ListVisible(query string) ([]*entity.Book, error)
	ListDrafts(actor *entity.User) ([]*entity.Book, error)
	ListPending(actor *entity.User) ([]*entity.Book, error)
	ListArchived(actor *entity.User) ([]*entity.Book, error)
	Get(actor *entity.User, id string) (*entity.Book, error)
	Update(actor *entity.User, id string, input UpdateBookInput) (*entity.Book, error)
	Submit(actor *entity.User, id string) (*entity.Book, error)
	Approve(actor *entity.User, id string) (*entity.Book, error)
	Reject(actor *entity.User, id string) (*entity.Book, error)
	Archive(actor *entity.User, id string) (*entity.Book, error)
	Unarchive(actor *entity.User, id string) (*entity.Book, error)
	Delete(actor *entity.User, id string) error
	SetCover(actor *entity.User, id, filename string, file io.Reader, contentType string) (*entity.Book, error)
	SetFile(actor *entity.User, id, filename string, file io.Reader, contentType string) (*entity.Book, error)
	GetCover(actor *entity.User, id string) (io.ReadCloser, string, error)
	GetFile(actor *entity.User, id string) (io.ReadCloser, string, string, error)
}

type bookUseCase struct {
	bookRepo  persistent.BookRepository
	blobs     BlobStore
	events    EventPublisher
	listCache ListCache
	logger    *logger.Logger
}

func NewBookUseCase(
	bookRepo persistent.BookRepository,
	blobs BlobStore,
	events EventPublisher,
	listCache ListCache,
	logger *logger.Logger,
) BookUseCase {
	return &bookUseCase{
		bookRepo:  bookRepo,
		blobs:     blobs,
		events:    events,
		listCache: listCache,
		logger:    logger,
	}
}

// proxyFor builds a deferred fetch of the book so authorization failures that
// do not depend on record attributes never hit the database.
func (uc *bookUseCase) proxyFor(id string) *policy.BookProxy {
	return policy.NewBookProxy(func() (*entity.Book, error) {
		return uc.bookRepo.GetByID(id)
	})
}

// authorize resolves the proxied subject and evaluates policy, translating a
// denial into Forbidden for identified actors and Unauthenticated for
// anonymous ones.
func (uc *bookUseCase) authorize(actor *entity.User, action policy.Action, proxy *policy.BookProxy) (*entity.Book, error) {
	book, err := proxy.Get()
	if err != nil {
		return nil, err
	}
	if !policy.Evaluate(actor, action, policy.SubjectOf(book)) {
		if actor == nil {
			return nil, apperr.Unauthenticated("authentication required to %s this book", action)
		}
		return nil, apperr.Forbidden("not allowed to %s this book", action)
	}
	return book, nil
}

func (uc *bookUseCase) Create(actor *entity.User, input CreateBookInput) (*entity.Book, error) {
	if actor == nil {
		return nil, apperr.Unauthenticated("authentication required to create a book")
	}
	if !policy.Evaluate(actor, policy.ActionCreate, policy.Subject{}) {
		return nil, apperr.Forbidden("not allowed to create books")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, apperr.Validation("title is required")
	}
	for _, tag := range input.Tags {
		if !tag.Type.Valid() {
			return nil, apperr.Validation("unknown tag type %q", tag.Type)
		}
	}

	ownerID := actor.ID
	book := &entity.Book{
		Title:         input.Title,
		Description:   input.Description,
		PublishedDate: input.PublishedDate,
		UserID:        &ownerID,
		State:         entity.StateDraft,
		Tags:          dedupeTags(input.Tags),
	}
	if err := uc.bookRepo.Create(book); err != nil {
		uc.logger.Error("Failed to create book: %v", err)
		return nil, err
	}
	return book, nil
}

func (uc *bookUseCase) ListVisible(query string) ([]*entity.Book, error) {
	filter, err := search.ParseQuery(query)
	if err != nil {
		return nil, err
	}

	if uc.listCache != nil {
		if books, ok := uc.listCache.Get(query); ok {
			return books, nil
		}
	}

	books, err := uc.bookRepo.ListVisible(filter)
	if err != nil {
		return nil, err
	}
	if uc.listCache != nil {
		uc.listCache.Set(query, books)
	}
	return books, nil
}

// invalidateVisibleList drops cached public listings after a mutation that
// changes the visible set or the payload of a visible book.
func (uc *bookUseCase) invalidateVisibleList() {
	if uc.listCache != nil {
		uc.listCache.Invalidate()
	}
}

func (uc *bookUseCase) ListDrafts(actor *entity.User) ([]*entity.Book, error) {
	if actor == nil {
		return nil, apperr.Unauthenticated("authentication required")
	}
	shape := &entity.Book{State: entity.StateDraft, UserID: &actor.ID}
	if _, err := uc.authorize(actor, policy.ActionRead, policy.StaticBookProxy(shape)); err != nil {
		return nil, err
	}
	return uc.bookRepo.ListByOwnerInStates(actor.ID, entity.StateDraft, entity.StateUnapproved)
}

func (uc *bookUseCase) ListPending(actor *entity.User) ([]*entity.Book, error) {
	shape := &entity.Book{State: entity.StateUnapproved}
	if _, err := uc.authorize(actor, policy.ActionRead, policy.StaticBookProxy(shape)); err != nil {
		return nil, err
	}
	return uc.bookRepo.ListByState(entity.StateUnapproved)
}

func (uc *bookUseCase) ListArchived(actor *entity.User) ([]*entity.Book, error) {
	shape := &entity.Book{State: entity.StateArchived}
	if _, err := uc.authorize(actor, policy.ActionRead, policy.StaticBookProxy(shape)); err != nil {
		return nil, err
	}
	return uc.bookRepo.ListByState(entity.StateArchived)
}

func (uc *bookUseCase) Get(actor *entity.User, id string) (*entity.Book, error) {
	return uc.authorize(actor, policy.ActionRead, uc.proxyFor(id))
}

func (uc *bookUseCase) Update(actor *entity.User, id string, input UpdateBookInput) (*entity.Book, error) {
	book, err := uc.authorize(actor, policy.ActionUpdate, uc.proxyFor(id))
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		if strings.TrimSpace(*input.Title) == "" {
			return nil, apperr.Validation("title is required")
		}
		book.Title = *input.Title
	}
	if input.Description != nil {
		book.Description = *input.Description
	}
	if input.PublishedDate != nil {
		book.PublishedDate = input.PublishedDate
	}

	var attach, detach []entity.Tag
	if input.Tags != nil {
		newTags := dedupeTags(input.Tags)
		for _, tag := range newTags {
			if !tag.Type.Valid() {
				return nil, apperr.Validation("unknown tag type %q", tag.Type)
			}
		}
		// Set difference: attach tags the book lacks, detach tags no longer
		// listed. Tags present in both stay attached untouched.
		attach = diffTags(newTags, book.Tags)
		detach = diffTags(book.Tags, newTags)
	}

	if err := uc.bookRepo.Update(book, attach, detach); err != nil {
		uc.logger.Error("Failed to update book %s: %v", id, err)
		return nil, err
	}
	if book.State == entity.StateVisible {
		uc.invalidateVisibleList()
	}
	return uc.bookRepo.GetByID(id)
}

func (uc *bookUseCase) Submit(actor *entity.User, id string) (*entity.Book, error) {
	return uc.transition(actor, id, policy.ActionCreate, entity.StateDraft, entity.StateUnapproved, "submitted")
}

func (uc *bookUseCase) Approve(actor *entity.User, id string) (*entity.Book, error) {
	return uc.transition(actor, id, policy.ActionApprove, entity.StateUnapproved, entity.StateVisible, "approved")
}

func (uc *bookUseCase) Reject(actor *entity.User, id string) (*entity.Book, error) {
	return uc.transition(actor, id, policy.ActionApprove, entity.StateUnapproved, entity.StateDraft, "rejected")
}

func (uc *bookUseCase) Archive(actor *entity.User, id string) (*entity.Book, error) {
	return uc.transition(actor, id, policy.ActionArchive, entity.StateVisible, entity.StateArchived, "")
}

func (uc *bookUseCase) Unarchive(actor *entity.User, id string) (*entity.Book, error) {
	return uc.transition(actor, id, policy.ActionUnarchive, entity.StateArchived, entity.StateVisible, "")
}

// transition authorizes the action, checks the source-state precondition and
// applies the state change as a conditional update, so concurrent transitions
// on the same book cannot both win.
func (uc *bookUseCase) transition(actor *entity.User, id string, action policy.Action, from, to entity.BookState, event string) (*entity.Book, error) {
	book, err := uc.authorize(actor, action, uc.proxyFor(id))
	if err != nil {
		return nil, err
	}
	if book.State != from {
		return nil, apperr.Conflict("only %s books can be moved to %s", from, to)
	}

	updated, err := uc.bookRepo.UpdateState(id, from, to)
	if err != nil {
		return nil, err
	}
	if !updated {
		// The row was there a moment ago; it changed state (or vanished)
		// between the read and the conditional write.
		if _, err := uc.bookRepo.GetByID(id); err != nil {
			return nil, err
		}
		return nil, apperr.StaleState("book %s changed state concurrently", id)
	}

	book.State = to
	if from == entity.StateVisible || to == entity.StateVisible {
		uc.invalidateVisibleList()
	}
	if event != "" {
		uc.publishReviewEvent(event, book, actor)
	}
	return book, nil
}

func (uc *bookUseCase) publishReviewEvent(event string, book *entity.Book, actor *entity.User) {
	if uc.events == nil {
		return
	}
	go func() {
		task := map[string]interface{}{
			"type":     event,
			"book_id":  book.ID,
			"title":    book.Title,
			"actor_id": actor.ID,
		}
		if book.UserID != nil {
			task["owner_id"] = *book.UserID
		}
		if err := uc.events.PublishReviewEvent(task); err != nil {
			uc.logger.Error("Failed to publish %s event for book %s: %v", event, book.ID, err)
		}
	}()
}

func (uc *bookUseCase) Delete(actor *entity.User, id string) error {
	book, err := uc.authorize(actor, policy.ActionDelete, uc.proxyFor(id))
	if err != nil {
		return err
	}

	if book.State != entity.StateArchived {
		return apperr.Conflict("only %s books can be deleted", entity.StateArchived)
	}

	deleted, err := uc.bookRepo.DeleteInState(id, entity.StateArchived)
	if err != nil {
		return err
	}
	if !deleted {
		if _, err := uc.bookRepo.GetByID(id); err != nil {
			return err
		}
		return apperr.StaleState("book %s changed state concurrently", id)
	}

	uc.invalidateVisibleList()

	// Record first, then blobs: a crash in between leaves orphan files, never
	// a live record pointing at deleted files.
	if err := uc.blobs.DeletePrefix(blobPrefix(id)); err != nil {
		uc.logger.Error("Failed to delete files for book %s: %v", id, err)
	}
	return nil
}

func (uc *bookUseCase) SetCover(actor *entity.User, id, filename string, file io.Reader, contentType string) (*entity.Book, error) {
	return uc.setAttachment(actor, id, "cover", filename, file, contentType, uc.bookRepo.SetCoverFile)
}

func (uc *bookUseCase) SetFile(actor *entity.User, id, filename string, file io.Reader, contentType string) (*entity.Book, error) {
	return uc.setAttachment(actor, id, "book", filename, file, contentType, uc.bookRepo.SetBookFile)
}

func (uc *bookUseCase) setAttachment(actor *entity.User, id, slot, filename string, file io.Reader, contentType string, persist func(id, filename string) error) (*entity.Book, error) {
	book, err := uc.authorize(actor, policy.ActionUpdate, uc.proxyFor(id))
	if err != nil {
		return nil, err
	}

	stored := slot + path.Ext(filename)

	// Remove a stale object under a different extension before writing the
	// new one, so nothing dangles after the metadata update.
	previous := book.CoverFile
	if slot == "book" {
		previous = book.BookFile
	}
	if previous != "" && previous != stored {
		if err := uc.blobs.DeleteFile(blobKey(id, previous)); err != nil {
			uc.logger.Warn("Failed to delete stale %s for book %s: %v", slot, id, err)
		}
	}

	if err := uc.blobs.UploadFile(blobKey(id, stored), file, contentType); err != nil {
		uc.logger.Error("Failed to upload %s for book %s: %v", slot, id, err)
		return nil, fmt.Errorf("failed to store %s: %w", slot, err)
	}
	if err := persist(id, stored); err != nil {
		return nil, err
	}
	if book.State == entity.StateVisible {
		uc.invalidateVisibleList()
	}

	return uc.bookRepo.GetByID(id)
}

func (uc *bookUseCase) GetCover(actor *entity.User, id string) (io.ReadCloser, string, error) {
	book, err := uc.authorize(actor, policy.ActionRead, uc.proxyFor(id))
	if err != nil {
		return nil, "", err
	}
	if book.CoverFile == "" {
		return nil, "", apperr.NotFound("book %s has no cover", id)
	}
	stream, contentType, err := uc.blobs.GetFile(blobKey(id, book.CoverFile))
	if err != nil {
		// The record references an object the store no longer has.
		if errors.Is(err, s3.ErrNotFound) {
			return nil, "", apperr.Wrap(apperr.KindNotFound, err, "cover for book "+id+" is missing from storage")
		}
		return nil, "", err
	}
	return stream, contentType, nil
}

// GetFile returns the content stream, its content type, and the download
// name derived from the book title.
func (uc *bookUseCase) GetFile(actor *entity.User, id string) (io.ReadCloser, string, string, error) {
	book, err := uc.authorize(actor, policy.ActionRead, uc.proxyFor(id))
	if err != nil {
		return nil, "", "", err
	}
	if book.BookFile == "" {
		return nil, "", "", apperr.NotFound("book %s has no file", id)
	}
	stream, contentType, err := uc.blobs.GetFile(blobKey(id, book.BookFile))
	if err != nil {
		if errors.Is(err, s3.ErrNotFound) {
			return nil, "", "", apperr.Wrap(apperr.KindNotFound, err, "file for book "+id+" is missing from storage")
		}
		return nil, "", "", err
	}
	return stream, contentType, book.Title + path.Ext(book.BookFile), nil
}

func blobPrefix(id string) string {
	return "books/" + id
}

func blobKey(id, filename string) string {
	return blobPrefix(id) + "/" + filename
}

func dedupeTags(tags []entity.Tag) []entity.Tag {
	var result []entity.Tag
	for _, tag := range tags {
		if !containsTag(result, tag) {
			result = append(result, tag)
		}
	}
	return result
}

func diffTags(from, against []entity.Tag) []entity.Tag {
	var result []entity.Tag
	for _, tag := range from {
		if !containsTag(against, tag) {
			result = append(result, tag)
		}
	}
	return result
}

func containsTag(tags []entity.Tag, tag entity.Tag) bool {
	for _, candidate := range tags {
		if candidate.Same(tag) {
			return true
		}
	}
	return false
}
