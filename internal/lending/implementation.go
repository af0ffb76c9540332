// internal/lending/implementation.go
package lending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"libris/internal/eventlog"
	"libris/internal/fault"
	"libris/internal/storage"
)

var dialect = goqu.Dialect("postgres")

// service implements the Service interface.
type service struct {
	pg     *storage.Postgres
	books  CatalogStore
	users  IdentityStore
	log    *eventlog.Log
	tracer trace.Tracer

	loansCreated    metric.Int64Counter
	stockRejections metric.Int64Counter
}

// NewService creates a new lending service instance.
func NewService(pg *storage.Postgres, books CatalogStore, users IdentityStore, log *eventlog.Log) Service {
	meter := otel.Meter("libris/lending")
	loansCreated, _ := meter.Int64Counter("lending.loans.created",
		metric.WithDescription("Loans successfully created"))
	stockRejections, _ := meter.Int64Counter("lending.loans.stock_rejected",
		metric.WithDescription("Loan creations rejected because stock was exhausted"))

	return &service{
		pg:              pg,
		books:           books,
		users:           users,
		log:             log,
		tracer:          otel.Tracer("libris/lending"),
		loansCreated:    loansCreated,
		stockRejections: stockRejections,
	}
}

// Create validates the input, then inserts the loan and decrements the
// book's stock inside one transaction. The book row stays locked for the
// duration, so concurrent creations against the same book serialize and
// stock can never go below zero.
func (s *service) Create(ctx context.Context, input CreateLoanInput) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "lending.create")
	defer span.End()

	if input.BookID == "" {
		return nil, fault.Validation("book_id is required")
	}
	if input.UserID == "" {
		return nil, fault.Validation("user_id is required")
	}
	if input.LoanDate == "" {
		return nil, fault.Validation("loan_date is required")
	}

	bookID, err := uuid.Parse(input.BookID)
	if err != nil {
		return nil, fault.Validation("invalid book_id")
	}
	userID, err := uuid.Parse(input.UserID)
	if err != nil {
		return nil, fault.Validation("invalid user_id")
	}

	loanDate, err := ParseTimestamp(input.LoanDate)
	if err != nil {
		return nil, err
	}
	var returnDate *time.Time
	if input.ReturnDate != nil && *input.ReturnDate != "" {
		parsed, err := ParseTimestamp(*input.ReturnDate)
		if err != nil {
			return nil, err
		}
		returnDate = &parsed
	}

	span.SetAttributes(
		attribute.String("book.id", bookID.String()),
		attribute.String("user.id", userID.String()),
	)

	loan := &Loan{
		ID:         uuid.New(),
		BookID:     bookID,
		UserID:     userID,
		LoanDate:   loanDate,
		ReturnDate: returnDate,
		CreatedAt:  time.Now().UTC(),
	}

	err = s.pg.RunInTx(ctx, "lending.create", func(ctx context.Context, tx *sqlx.Tx) error {
		book, err := s.books.BookForUpdate(ctx, tx, bookID)
		if err != nil {
			return err
		}

		exists, err := s.users.UserExists(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		if !exists {
			return fault.NotFound("user")
		}

		if book.Stock <= 0 {
			return fault.StockExhausted()
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO loans (id, book_id, user_id, loan_date, return_date, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, loan.ID, loan.BookID, loan.UserID, loan.LoanDate, loan.ReturnDate, loan.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert loan: %w", err)
		}

		if err := s.books.DecrementStock(ctx, tx, bookID); err != nil {
			return err
		}

		return s.log.Append(ctx, tx, loan.ID, "loan", "LoanCreated", LoanCreatedEvent{
			LoanID:     loan.ID,
			BookID:     loan.BookID,
			UserID:     loan.UserID,
			LoanDate:   loan.LoanDate,
			ReturnDate: loan.ReturnDate,
		})
	})
	if err != nil {
		if fault.IsKind(err, fault.KindStockExhausted) {
			s.stockRejections.Add(ctx, 1)
		}
		return nil, err
	}

	s.loansCreated.Add(ctx, 1)
	return loan, nil
}

// Get retrieves a loan by ID.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*Loan, error) {
	loan := &Loan{}
	err := s.pg.DB().GetContext(ctx, loan, `
		SELECT id, book_id, user_id, loan_date, return_date, created_at
		FROM loans
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fault.NotFound("loan")
		}
		return nil, fault.Persistence("get loan", err)
	}
	return loan, nil
}

// List returns loans in storage order, optionally filtered by book, user
// and derived status.
func (s *service) List(ctx context.Context, filter ListFilter) ([]*Loan, error) {
	ds := dialect.From("loans").
		Select("id", "book_id", "user_id", "loan_date", "return_date", "created_at").
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc())

	if filter.BookID != nil {
		ds = ds.Where(goqu.C("book_id").Eq(filter.BookID.String()))
	}
	if filter.UserID != nil {
		ds = ds.Where(goqu.C("user_id").Eq(filter.UserID.String()))
	}
	switch filter.Status {
	case "":
	case StatusOpen:
		ds = ds.Where(goqu.C("return_date").IsNull())
	case StatusClosed:
		ds = ds.Where(goqu.C("return_date").IsNotNull())
	default:
		return nil, fault.Validation("invalid status %q, want %q or %q", filter.Status, StatusOpen, StatusClosed)
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fault.Persistence("build list query", err)
	}

	loans := []*Loan{}
	if err := s.pg.DB().SelectContext(ctx, &loans, query, args...); err != nil {
		return nil, fault.Persistence("list loans", err)
	}
	return loans, nil
}

// SetReturnDate sets or clears the return date, closing or reopening the
// loan. Stock is intentionally untouched in both directions: the original
// system never restored stock on return, and callers depend on that.
func (s *service) SetReturnDate(ctx context.Context, id uuid.UUID, returnDate *string) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "lending.set_return_date",
		trace.WithAttributes(attribute.String("loan.id", id.String())),
	)
	defer span.End()

	var parsed *time.Time
	if returnDate != nil && *returnDate != "" {
		t, err := ParseTimestamp(*returnDate)
		if err != nil {
			return nil, err
		}
		parsed = &t
	}

	err := s.pg.RunInTx(ctx, "lending.set_return_date", func(ctx context.Context, tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE loans SET return_date = $2 WHERE id = $1
		`, id, parsed)
		if err != nil {
			return fmt.Errorf("update loan: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fault.NotFound("loan")
		}

		if parsed != nil {
			return s.log.Append(ctx, tx, id, "loan", "LoanClosed", LoanClosedEvent{LoanID: id, ReturnDate: *parsed})
		}
		return s.log.Append(ctx, tx, id, "loan", "LoanReopened", LoanReopenedEvent{LoanID: id})
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// Delete removes a loan from the ledger. Stock is intentionally not
// restored (see SetReturnDate).
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "lending.delete",
		trace.WithAttributes(attribute.String("loan.id", id.String())),
	)
	defer span.End()

	return s.pg.RunInTx(ctx, "lending.delete", func(ctx context.Context, tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM loans WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete loan: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fault.NotFound("loan")
		}

		return s.log.Append(ctx, tx, id, "loan", "LoanDeleted", LoanDeletedEvent{LoanID: id})
	})
}
