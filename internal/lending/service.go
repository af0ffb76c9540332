// internal/lending/service.go
package lending

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"libris/internal/catalog"
)

// CreateLoanInput carries the raw request fields for a new loan. Dates stay
// strings here; the service owns parsing so the validation order is in one
// place.
type CreateLoanInput struct {
	BookID     string
	UserID     string
	LoanDate   string
	ReturnDate *string
}

// ListFilter narrows List results. Zero values mean no filtering.
type ListFilter struct {
	BookID *uuid.UUID
	UserID *uuid.UUID
	Status string
}

// Service defines the interface for the lending service.
type Service interface {
	Create(ctx context.Context, input CreateLoanInput) (*Loan, error)
	Get(ctx context.Context, id uuid.UUID) (*Loan, error)
	List(ctx context.Context, filter ListFilter) ([]*Loan, error)
	SetReturnDate(ctx context.Context, id uuid.UUID, returnDate *string) (*Loan, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CatalogStore is the catalog surface the lending service may touch. Both
// calls run on the loan transaction, so the stock check and decrement commit
// or roll back together with the loan insert.
type CatalogStore interface {
	BookForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*catalog.Book, error)
	DecrementStock(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error
}

// IdentityStore is the identity surface the lending service may touch.
type IdentityStore interface {
	UserExists(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (bool, error)
}
