package usecase

import (
	"bytes"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"bookstack/internal/apperr"
	"bookstack/internal/entity"
	"bookstack/internal/search"
	"bookstack/pkg/s3"

	"github.com/google/uuid"
)

// fakeBookRepo is an in-memory BookRepository with the same conditional
// update semantics as the SQL implementation.
type fakeBookRepo struct {
	mu    sync.Mutex
	books map[string]*entity.Book
	tags  map[string]entity.Tag // registry keyed by type:name
}

func newFakeBookRepo() *fakeBookRepo {
	return &fakeBookRepo{
		books: make(map[string]*entity.Book),
		tags:  make(map[string]entity.Tag),
	}
}

func tagKey(tag entity.Tag) string {
	return string(tag.Type) + ":" + tag.Name
}

func (r *fakeBookRepo) upsertTag(tag entity.Tag) entity.Tag {
	key := tagKey(tag)
	if existing, ok := r.tags[key]; ok {
		return existing
	}
	tag.ID = uuid.New().String()
	r.tags[key] = tag
	return tag
}

func copyBook(book *entity.Book) *entity.Book {
	clone := *book
	clone.Tags = append([]entity.Tag(nil), book.Tags...)
	return &clone
}

func (r *fakeBookRepo) Create(book *entity.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if book.ID == "" {
		book.ID = uuid.New().String()
	}
	resolved := make([]entity.Tag, len(book.Tags))
	for i, tag := range book.Tags {
		resolved[i] = r.upsertTag(tag)
	}
	book.Tags = resolved
	book.CreatedAt = time.Now()
	r.books[book.ID] = copyBook(book)
	return nil
}

func (r *fakeBookRepo) GetByID(id string) (*entity.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, ok := r.books[id]
	if !ok {
		return nil, apperr.NotFound("book %s not found", id)
	}
	return copyBook(book), nil
}

func (r *fakeBookRepo) ListVisible(filter *search.Filter) ([]*entity.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*entity.Book
	for _, book := range r.books {
		if book.State != entity.StateVisible {
			continue
		}
		if !matchesFilter(book, filter) {
			continue
		}
		result = append(result, copyBook(book))
	}
	sortBooks(result)
	return result, nil
}

func matchesFilter(book *entity.Book, filter *search.Filter) bool {
	title := strings.ToLower(book.Title)
	for _, token := range filter.TitleTokens {
		if !strings.Contains(title, token) {
			return false
		}
	}
	description := strings.ToLower(book.Description)
	for _, token := range filter.DescTokens {
		if !strings.Contains(description, token) {
			return false
		}
	}
	for _, match := range filter.Tags {
		found := false
		for _, tag := range book.Tags {
			if tag.Type == match.Type && strings.EqualFold(tag.Name, match.Name) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (r *fakeBookRepo) ListByOwnerInStates(ownerID string, states ...entity.BookState) ([]*entity.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*entity.Book
	for _, book := range r.books {
		if !book.OwnedBy(ownerID) {
			continue
		}
		for _, state := range states {
			if book.State == state {
				result = append(result, copyBook(book))
				break
			}
		}
	}
	sortBooks(result)
	return result, nil
}

func (r *fakeBookRepo) ListByState(state entity.BookState) ([]*entity.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*entity.Book
	for _, book := range r.books {
		if book.State == state {
			result = append(result, copyBook(book))
		}
	}
	sortBooks(result)
	return result, nil
}

func sortBooks(books []*entity.Book) {
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
}

func (r *fakeBookRepo) Update(book *entity.Book, attachTags, detachTags []entity.Tag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.books[book.ID]
	if !ok {
		return apperr.NotFound("book %s not found", book.ID)
	}
	stored.Title = book.Title
	stored.Description = book.Description
	stored.PublishedDate = book.PublishedDate

	for _, tag := range attachTags {
		resolved := r.upsertTag(tag)
		already := false
		for _, existing := range stored.Tags {
			if existing.Same(resolved) {
				already = true
				break
			}
		}
		if !already {
			stored.Tags = append(stored.Tags, resolved)
		}
	}
	for _, tag := range detachTags {
		for i, existing := range stored.Tags {
			if existing.Same(tag) {
				stored.Tags = append(stored.Tags[:i], stored.Tags[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (r *fakeBookRepo) UpdateState(id string, from, to entity.BookState) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, ok := r.books[id]
	if !ok || book.State != from {
		return false, nil
	}
	book.State = to
	return true, nil
}

func (r *fakeBookRepo) SetCoverFile(id, filename string) error {
	return r.setFile(id, filename, true)
}

func (r *fakeBookRepo) SetBookFile(id, filename string) error {
	return r.setFile(id, filename, false)
}

func (r *fakeBookRepo) setFile(id, filename string, cover bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, ok := r.books[id]
	if !ok {
		return apperr.NotFound("book %s not found", id)
	}
	if cover {
		book.CoverFile = filename
	} else {
		book.BookFile = filename
	}
	return nil
}

func (r *fakeBookRepo) DeleteInState(id string, state entity.BookState) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, ok := r.books[id]
	if !ok || book.State != state {
		return false, nil
	}
	delete(r.books, id)
	return true, nil
}

// registryHas reports whether the global tag registry still contains the tag.
func (r *fakeBookRepo) registryHas(tag entity.Tag) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tags[tagKey(tag)]
	return ok
}

// fakeBlobStore keeps blobs in a map keyed by object key.
type fakeBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte)}
}

func (s *fakeBlobStore) UploadFile(key string, file io.Reader, contentType string) error {
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = data
	return nil
}

func (s *fakeBlobStore) GetFile(key string) (io.ReadCloser, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, "", s3.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), "application/octet-stream", nil
}

func (s *fakeBlobStore) DeleteFile(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

func (s *fakeBlobStore) DeletePrefix(prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.blobs {
		if strings.HasPrefix(key, prefix) {
			delete(s.blobs, key)
		}
	}
	return nil
}

func (s *fakeBlobStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

// fakeListCache is an in-memory ListCache counting invalidations.
type fakeListCache struct {
	mu            sync.Mutex
	entries       map[string][]*entity.Book
	invalidations int
}

func newFakeListCache() *fakeListCache {
	return &fakeListCache{entries: make(map[string][]*entity.Book)}
}

func (c *fakeListCache) Get(query string) ([]*entity.Book, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	books, ok := c.entries[query]
	return books, ok
}

func (c *fakeListCache) Set(query string, books []*entity.Book) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[query] = books
}

func (c *fakeListCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]*entity.Book)
	c.invalidations++
}

func (c *fakeListCache) invalidated() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidations
}

// fakeUserRepo is an in-memory UserRepository.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*entity.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*entity.User)}
}

func (r *fakeUserRepo) Create(user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Username == user.Username {
			return apperr.Conflict("user with the name %s already exists", user.Username)
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now()
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *fakeUserRepo) GetByID(id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, apperr.NotFound("user %s not found", id)
	}
	clone := *user
	return &clone, nil
}

func (r *fakeUserRepo) GetByUsername(username string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Username == username {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("user %s not found", username)
}

func (r *fakeUserRepo) GetAll() ([]*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var users []*entity.User
	for _, user := range r.users {
		clone := *user
		users = append(users, &clone)
	}
	return users, nil
}

func (r *fakeUserRepo) Count() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

func (r *fakeUserRepo) SetPermissions(id string, permissions []entity.Permission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return apperr.NotFound("user %s not found", id)
	}
	user.Permissions = append([]entity.Permission(nil), permissions...)
	return nil
}

func (r *fakeUserRepo) SetLastTokenReset(id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return apperr.NotFound("user %s not found", id)
	}
	user.LastTokenReset = at
	return nil
}

// fakeTokenRepo is an in-memory TokenRepository.
type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*entity.Token
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[string]*entity.Token)}
}

func (r *fakeTokenRepo) Upsert(token *entity.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[token.Hash]; ok {
		return nil
	}
	clone := *token
	r.tokens[token.Hash] = &clone
	return nil
}

func (r *fakeTokenRepo) GetByHash(hash string) (*entity.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[hash]
	if !ok {
		return nil, apperr.NotFound("refresh token not found")
	}
	clone := *token
	return &clone, nil
}

func (r *fakeTokenRepo) DeleteByHash(hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, hash)
	return nil
}

func (r *fakeTokenRepo) DeleteExpired(before time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for hash, token := range r.tokens {
		if token.ExpiresAt.Before(before) {
			delete(r.tokens, hash)
		}
	}
	return nil
}
