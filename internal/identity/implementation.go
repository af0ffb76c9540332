// internal/identity/implementation.go
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/time/rate"

	"libris/internal/eventlog"
	"libris/internal/fault"
	"libris/internal/storage"
)

// service implements the Service interface.
type service struct {
	pg      *storage.Postgres
	log     *eventlog.Log
	tokens  *TokenIssuer
	limiter *rate.Limiter
}

// NewService creates a new identity service instance. ratePerMin throttles
// register and login attempts.
func NewService(pg *storage.Postgres, log *eventlog.Log, tokens *TokenIssuer, ratePerMin int) Service {
	return &service{
		pg:      pg,
		log:     log,
		tokens:  tokens,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(ratePerMin)), ratePerMin),
	}
}

// Register creates a new user with a hashed credential.
func (s *service) Register(ctx context.Context, username, email, password string) (*User, error) {
	if !s.limiter.Allow() {
		return nil, fault.RateLimited()
	}

	if username == "" {
		return nil, fault.Validation("username is required")
	}
	if email == "" {
		return nil, fault.Validation("email is required")
	}
	if err := checkPasswordPolicy(password); err != nil {
		return nil, err
	}

	passwordHash, salt, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		ID:        uuid.New(),
		Username:  username,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}

	err = s.pg.RunInTx(ctx, "identity.register", func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, username, email, created_at)
			VALUES ($1, $2, $3, $4)
		`, user.ID, user.Username, user.Email, user.CreatedAt)
		if err != nil {
			if storage.IsUniqueViolation(err) {
				return fault.Conflict("username or email already exists")
			}
			return fmt.Errorf("insert user: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO credentials (user_id, password_hash, salt)
			VALUES ($1, $2, $3)
		`, user.ID, passwordHash, salt)
		if err != nil {
			return fmt.Errorf("insert credential: %w", err)
		}

		return s.log.Append(ctx, tx, user.ID, "user", "UserRegistered", UserRegisteredEvent{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
		})
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// Login verifies credentials for a username or email and issues an access
// token on success.
func (s *service) Login(ctx context.Context, identifier, password string) (*User, string, error) {
	if !s.limiter.Allow() {
		return nil, "", fault.RateLimited()
	}

	user := &User{}
	err := s.pg.DB().GetContext(ctx, user, `
		SELECT id, username, email, created_at
		FROM users
		WHERE username = $1 OR email = $1
	`, identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", fault.Unauthorized("invalid credentials")
		}
		return nil, "", fault.Persistence("lookup user", err)
	}

	credential := &Credential{}
	err = s.pg.DB().GetContext(ctx, credential, `
		SELECT user_id, password_hash, salt
		FROM credentials
		WHERE user_id = $1
	`, user.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", fault.Unauthorized("invalid credentials")
		}
		return nil, "", fault.Persistence("lookup credential", err)
	}

	ok, err := verifyPassword(password, credential.Salt, credential.PasswordHash)
	if err != nil {
		return nil, "", fault.Persistence("verify password", err)
	}
	if !ok {
		return nil, "", fault.Unauthorized("invalid credentials")
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fault.Persistence("issue token", err)
	}

	return user, token, nil
}

// GetUser retrieves a user by ID.
func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	user := &User{}
	err := s.pg.DB().GetContext(ctx, user, `
		SELECT id, username, email, created_at
		FROM users
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fault.NotFound("user")
		}
		return nil, fault.Persistence("get user", err)
	}
	return user, nil
}

// ListUsers returns all registered users.
func (s *service) ListUsers(ctx context.Context) ([]*User, error) {
	users := []*User{}
	err := s.pg.DB().SelectContext(ctx, &users, `
		SELECT id, username, email, created_at
		FROM users
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fault.Persistence("list users", err)
	}
	return users, nil
}
