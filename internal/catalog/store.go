// internal/catalog/store.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"libris/internal/fault"
)

// Store is the narrow surface the lending service sees. Both operations run
// on the caller's transaction so the stock check, the loan insert and the
// decrement share one atomic unit.
type Store struct{}

// NewStore creates the tx-scoped catalog store.
func NewStore() Store { return Store{} }

// BookForUpdate loads a book and locks its row for the duration of the
// transaction. Concurrent loan creations for the same book serialize here.
func (Store) BookForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Book, error) {
	book := &Book{}
	err := tx.GetContext(ctx, book, `
		SELECT id, isbn, title, author, publisher, stock, created_at, updated_at
		FROM books
		WHERE id = $1
		FOR UPDATE
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fault.NotFound("book")
		}
		return nil, fmt.Errorf("lock book row: %w", err)
	}
	return book, nil
}

// DecrementStock takes one copy off the shelf. The WHERE guard keeps stock
// from going negative even if a caller skipped the locked read.
func (Store) DecrementStock(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE books
		SET stock = stock - 1, updated_at = NOW()
		WHERE id = $1 AND stock > 0
	`, id)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fault.StockExhausted()
	}
	return nil
}
