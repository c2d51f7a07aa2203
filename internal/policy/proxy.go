package policy

import "bookstack/internal/entity"

// BookProxy defers fetching a book until policy evaluation actually needs
// its attributes, and fetches at most once per request.
type BookProxy struct {
	fetch   func() (*entity.Book, error)
	book    *entity.Book
	err     error
	fetched bool
}

func NewBookProxy(fetch func() (*entity.Book, error)) *BookProxy {
	return &BookProxy{fetch: fetch}
}

// StaticBookProxy wraps an already known (possibly partial) book, used for
// checks against a shape rather than a stored record.
func StaticBookProxy(book *entity.Book) *BookProxy {
	return &BookProxy{book: book, fetched: true}
}

func (p *BookProxy) Get() (*entity.Book, error) {
	if !p.fetched {
		p.book, p.err = p.fetch()
		p.fetched = true
	}
	return p.book, p.err
}
