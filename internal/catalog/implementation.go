// internal/catalog/implementation.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"libris/internal/eventlog"
	"libris/internal/fault"
	"libris/internal/storage"
)

var dialect = goqu.Dialect("postgres")

// service implements the Service interface.
type service struct {
	pg  *storage.Postgres
	log *eventlog.Log
}

// NewService creates a new catalog service instance.
func NewService(pg *storage.Postgres, log *eventlog.Log) Service {
	return &service{pg: pg, log: log}
}

// AddBook creates a new book in the catalog.
func (s *service) AddBook(ctx context.Context, isbn, title, author, publisher string, stock int) (*Book, error) {
	switch {
	case strings.TrimSpace(isbn) == "":
		return nil, fault.Validation("isbn is required")
	case strings.TrimSpace(title) == "":
		return nil, fault.Validation("title is required")
	case strings.TrimSpace(author) == "":
		return nil, fault.Validation("author is required")
	case stock < 0:
		return nil, fault.Validation("stock must not be negative")
	}

	now := time.Now().UTC()
	book := &Book{
		ID:        uuid.New(),
		ISBN:      isbn,
		Title:     title,
		Author:    author,
		Publisher: publisher,
		Stock:     stock,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.pg.RunInTx(ctx, "catalog.add_book", func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO books (id, isbn, title, author, publisher, stock, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, book.ID, book.ISBN, book.Title, book.Author, book.Publisher, book.Stock, book.CreatedAt, book.UpdatedAt)
		if err != nil {
			if storage.IsUniqueViolation(err) {
				return duplicateBookError(err)
			}
			return fmt.Errorf("insert book: %w", err)
		}

		return s.log.Append(ctx, tx, book.ID, "book", "BookAdded", BookAddedEvent{
			ID:    book.ID,
			ISBN:  book.ISBN,
			Title: book.Title,
			Stock: book.Stock,
		})
	})
	if err != nil {
		return nil, err
	}

	return book, nil
}

// GetBook retrieves a book by its ID.
func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*Book, error) {
	book := &Book{}
	err := s.pg.DB().GetContext(ctx, book, `
		SELECT id, isbn, title, author, publisher, stock, created_at, updated_at
		FROM books
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fault.NotFound("book")
		}
		return nil, fault.Persistence("get book", err)
	}
	return book, nil
}

// ListBooks returns the whole catalog in creation order.
func (s *service) ListBooks(ctx context.Context) ([]*Book, error) {
	books := []*Book{}
	err := s.pg.DB().SelectContext(ctx, &books, `
		SELECT id, isbn, title, author, publisher, stock, created_at, updated_at
		FROM books
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fault.Persistence("list books", err)
	}
	return books, nil
}

// UpdateBook applies an allow-listed update to a book. Arbitrary incoming
// fields are never written; only the fields named on BookUpdate can change.
func (s *service) UpdateBook(ctx context.Context, id uuid.UUID, update BookUpdate) (*Book, error) {
	if update.IsEmpty() {
		return nil, fault.Validation("no updatable fields supplied")
	}
	if update.Stock != nil && *update.Stock < 0 {
		return nil, fault.Validation("stock must not be negative")
	}

	record := goqu.Record{"updated_at": time.Now().UTC()}
	if update.ISBN != nil {
		record["isbn"] = *update.ISBN
	}
	if update.Title != nil {
		record["title"] = *update.Title
	}
	if update.Author != nil {
		record["author"] = *update.Author
	}
	if update.Publisher != nil {
		record["publisher"] = *update.Publisher
	}
	if update.Stock != nil {
		record["stock"] = *update.Stock
	}

	query, args, err := dialect.Update("books").
		Set(record).
		Where(goqu.C("id").Eq(id.String())).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fault.Persistence("build update query", err)
	}

	err = s.pg.RunInTx(ctx, "catalog.update_book", func(ctx context.Context, tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			if storage.IsUniqueViolation(err) {
				return duplicateBookError(err)
			}
			return fmt.Errorf("update book: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fault.NotFound("book")
		}

		return s.log.Append(ctx, tx, id, "book", "BookUpdated", BookUpdatedEvent{ID: id})
	})
	if err != nil {
		return nil, err
	}

	return s.GetBook(ctx, id)
}

// RemoveBook deletes a book. Deletion is refused while the book still has
// open loans; closed loan history is removed with the book.
func (s *service) RemoveBook(ctx context.Context, id uuid.UUID) error {
	return s.pg.RunInTx(ctx, "catalog.remove_book", func(ctx context.Context, tx *sqlx.Tx) error {
		var openLoans int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM loans WHERE book_id = $1 AND return_date IS NULL
		`, id).Scan(&openLoans)
		if err != nil {
			return fmt.Errorf("count open loans: %w", err)
		}
		if openLoans > 0 {
			return fault.Conflict("book has %d open loan(s) and cannot be deleted", openLoans)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete book: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fault.NotFound("book")
		}

		return s.log.Append(ctx, tx, id, "book", "BookRemoved", BookRemovedEvent{ID: id})
	})
}

func duplicateBookError(err error) error {
	switch constraint := storage.ConstraintName(err); {
	case strings.Contains(constraint, "isbn"):
		return fault.Conflict("a book with this ISBN already exists")
	case strings.Contains(constraint, "title"):
		return fault.Conflict("a book with this title already exists")
	default:
		return fault.Conflict("book already exists")
	}
}
