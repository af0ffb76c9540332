// internal/catalog/domain.go
package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Book is a catalog entry with a single global stock counter. Stock is only
// ever decremented by the lending service, inside the loan transaction.
type Book struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ISBN      string    `json:"isbn" db:"isbn"`
	Title     string    `json:"title" db:"title"`
	Author    string    `json:"author" db:"author"`
	Publisher string    `json:"publisher,omitempty" db:"publisher"`
	Stock     int       `json:"stock" db:"stock"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// BookUpdate names the fields an admin update is allowed to change.
// Nil fields are left untouched.
type BookUpdate struct {
	ISBN      *string
	Title     *string
	Author    *string
	Publisher *string
	Stock     *int
}

// IsEmpty reports whether the update would change nothing.
func (u BookUpdate) IsEmpty() bool {
	return u.ISBN == nil && u.Title == nil && u.Author == nil && u.Publisher == nil && u.Stock == nil
}

// BookAddedEvent is logged when a book enters the catalog.
type BookAddedEvent struct {
	ID    uuid.UUID `json:"id"`
	ISBN  string    `json:"isbn"`
	Title string    `json:"title"`
	Stock int       `json:"stock"`
}

// BookUpdatedEvent is logged when catalog metadata or stock is edited.
type BookUpdatedEvent struct {
	ID uuid.UUID `json:"id"`
}

// BookRemovedEvent is logged when a book is deleted from the catalog.
type BookRemovedEvent struct {
	ID uuid.UUID `json:"id"`
}
