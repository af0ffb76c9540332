// internal/identity/domain.go
package identity

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered borrower. Read-only for the rest of the system after
// registration.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Credential is a user's login secret. Never serialized.
type Credential struct {
	UserID       uuid.UUID `json:"-" db:"user_id"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Salt         string    `json:"-" db:"salt"`
}

// UserRegisteredEvent is logged when a new user registers.
type UserRegisteredEvent struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}
