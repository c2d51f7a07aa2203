package entity

import "time"

type BookState string

const (
	StateDraft      BookState = "DRAFT"
	StateUnapproved BookState = "UNAPPROVED"
	StateVisible    BookState = "VISIBLE"
	StateArchived   BookState = "ARCHIVED"
)

// BookStates lists every valid lifecycle state.
var BookStates = []BookState{StateDraft, StateUnapproved, StateVisible, StateArchived}

func (s BookState) Valid() bool {
	for _, state := range BookStates {
		if s == state {
			return true
		}
	}
	return false
}

type Book struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	// UserID is the owning user. System-seeded books have no owner.
	UserID    *string   `json:"user_id"`
	State     BookState `json:"state"`
	CoverFile string    `json:"cover_file,omitempty"`
	BookFile  string    `json:"book_file,omitempty"`
	Tags      []Tag     `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OwnedBy reports whether the book belongs to the given user id.
func (b *Book) OwnedBy(userID string) bool {
	return b.UserID != nil && *b.UserID == userID
}
