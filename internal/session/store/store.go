package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/sessiond/internal/session/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. Repositories are exposed as methods so that a Tx-scoped
// Store hands out repositories bound to the same transaction.
type Store interface {
	Users() Users
	Sessions() Sessions

	ApplyMigrations() error

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is the transaction-scoped view handed to WithTx callbacks. Nested
// transactions are not supported.
type Tx interface {
	Users() Users
	Sessions() Sessions
}

type Users interface {
	// CreateUser inserts a new user. A duplicate email returns ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks up the lower-cased email used at login.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// UpdateUser writes name and email and bumps updated_at. A duplicate
	// email returns ErrAlreadyExists.
	UpdateUser(ctx context.Context, id, name, email string) error

	// DeleteUser cascades to sessions (per schema).
	DeleteUser(ctx context.Context, id string) error
}

// Sessions is the session ledger: durable rows keyed by refresh token id.
type Sessions interface {
	InsertSession(ctx context.Context, s domain.Session) (domain.Session, error)

	// DeleteSession removes a single row. A missing row is not an error.
	DeleteSession(ctx context.Context, id string) error

	// ListUserSessions returns the user's rows expiring after now, newest first.
	ListUserSessions(ctx context.Context, userID string, now time.Time) ([]domain.Session, error)

	// DeleteExpiredUserSessions removes the user's rows with expires_at <= threshold.
	DeleteExpiredUserSessions(ctx context.Context, userID string, threshold time.Time) (int64, error)

	// DeleteExpiredSessions removes every row with expires_at <= threshold.
	DeleteExpiredSessions(ctx context.Context, threshold time.Time) (int64, error)

	// DeleteUserSessions removes every row belonging to the user.
	DeleteUserSessions(ctx context.Context, userID string) (int64, error)
}
