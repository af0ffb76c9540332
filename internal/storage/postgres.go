// internal/storage/postgres.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"libris/internal/config"
	"libris/internal/fault"
)

// Postgres wraps the connection pool and is the explicit storage session
// handed to every service; no package-level database state exists.
type Postgres struct {
	db     *sqlx.DB
	tracer trace.Tracer
}

// Open connects to Postgres and applies pool settings.
func Open(cfg config.DatabaseConfig) (*Postgres, error) {
	db, err := sqlx.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &Postgres{
		db:     db,
		tracer: otel.Tracer("libris/storage"),
	}, nil
}

// NewWithDB wraps an existing pool; used by tests.
func NewWithDB(db *sqlx.DB) *Postgres {
	return &Postgres{
		db:     db,
		tracer: otel.Tracer("libris/storage"),
	}
}

// DB exposes the underlying pool for read-path queries.
func (p *Postgres) DB() *sqlx.DB { return p.db }

// Ping verifies connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close releases the pool.
func (p *Postgres) Close() error { return p.db.Close() }

// RunInTx runs fn inside a single transaction at read-committed isolation.
// The transaction is rolled back on every exit path unless fn succeeds and
// the commit goes through. Classified errors from fn pass through untouched;
// anything else surfaces as a persistence fault.
func (p *Postgres) RunInTx(ctx context.Context, name string, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	ctx, span := p.tracer.Start(ctx, "storage.tx",
		trace.WithAttributes(attribute.String("tx.name", name)),
	)
	defer span.End()

	tx, err := p.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fault.Persistence("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, tx); err != nil {
		span.SetAttributes(attribute.Bool("tx.rolled_back", true))
		if fault.KindOf(err) != fault.KindUnknown {
			return err
		}
		return fault.Persistence(name, err)
	}

	if err := tx.Commit(); err != nil {
		span.SetAttributes(attribute.Bool("tx.rolled_back", true))
		return fault.Persistence("commit transaction", err)
	}

	span.SetAttributes(attribute.Bool("tx.committed", true))
	return nil
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// IsForeignKeyViolation reports whether err is a Postgres foreign key
// violation (SQLSTATE 23503).
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

// ConstraintName returns the name of the violated constraint, or "" when err
// is not a pq constraint violation.
func ConstraintName(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	return ""
}
