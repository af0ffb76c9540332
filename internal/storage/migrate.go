// internal/storage/migrate.go
package storage

import (
	"context"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id UUID PRIMARY KEY,
		isbn TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL UNIQUE,
		author TEXT NOT NULL,
		publisher TEXT NOT NULL DEFAULT '',
		stock INT NOT NULL DEFAULT 0 CHECK (stock >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS credentials (
		user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		password_hash TEXT NOT NULL,
		salt TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS loans (
		id UUID PRIMARY KEY,
		book_id UUID NOT NULL REFERENCES books(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id),
		loan_date TIMESTAMPTZ NOT NULL,
		return_date TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_loans_book_id ON loans (book_id)`,
	`CREATE INDEX IF NOT EXISTS idx_loans_user_id ON loans (user_id)`,
	`CREATE TABLE IF NOT EXISTS events (
		id BIGSERIAL PRIMARY KEY,
		entity_id UUID NOT NULL,
		entity_type TEXT NOT NULL,
		event_type TEXT NOT NULL,
		event_data JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates the schema if it does not exist. The stock CHECK constraint
// is the storage-level backstop for the invariant the lending service
// enforces with row locks.
func (p *Postgres) Migrate(ctx context.Context) error {
	for i, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}
