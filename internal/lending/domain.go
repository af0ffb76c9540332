// internal/lending/domain.go
package lending

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"libris/internal/fault"
)

// Loan states, derived from the presence of a return date.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Loan records a book lent to a user. A nil ReturnDate means the book is
// still out (open); setting it closes the loan, clearing it reopens it.
type Loan struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	BookID     uuid.UUID  `json:"book_id" db:"book_id"`
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	LoanDate   time.Time  `json:"loan_date" db:"loan_date"`
	ReturnDate *time.Time `json:"return_date" db:"return_date"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Status derives the loan state from the return date.
func (l *Loan) Status() string {
	if l.ReturnDate == nil {
		return StatusOpen
	}
	return StatusClosed
}

// MarshalJSON includes the derived status alongside the stored fields.
// An absent return date serializes as null.
func (l Loan) MarshalJSON() ([]byte, error) {
	type alias Loan
	return json.Marshal(struct {
		alias
		Status string `json:"status"`
	}{alias(l), l.Status()})
}

// timestampLayouts are the accepted ISO-8601 shapes, tried in order.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601-like date or date-time string.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fault.Validation("invalid date format %q", s)
}

// LoanCreatedEvent is logged when a loan is created and stock decremented.
type LoanCreatedEvent struct {
	LoanID     uuid.UUID  `json:"loan_id"`
	BookID     uuid.UUID  `json:"book_id"`
	UserID     uuid.UUID  `json:"user_id"`
	LoanDate   time.Time  `json:"loan_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
}

// LoanClosedEvent is logged when a return date is set.
type LoanClosedEvent struct {
	LoanID     uuid.UUID `json:"loan_id"`
	ReturnDate time.Time `json:"return_date"`
}

// LoanReopenedEvent is logged when a return date is cleared.
type LoanReopenedEvent struct {
	LoanID uuid.UUID `json:"loan_id"`
}

// LoanDeletedEvent is logged when a loan is removed from the ledger.
type LoanDeletedEvent struct {
	LoanID uuid.UUID `json:"loan_id"`
}
