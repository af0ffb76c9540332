// internal/identity/store.go
package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Store is the narrow surface the lending service sees: user existence
// checks inside its transaction.
type Store struct{}

// NewStore creates the tx-scoped identity store.
func NewStore() Store { return Store{} }

// UserExists reports whether the user is registered.
func (Store) UserExists(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)
	`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}
