package storage

import (
	"context"
	"errors"
	"time"

	"budgets/internal/core"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrEmailTaken = errors.New("email already registered")
)

// Session is a server-side sign-in record. The cookie only carries its id.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// PendingSync identifies a user whose latest saved version has not been
// exported yet.
type PendingSync struct {
	UserID    string
	Version   int64
	UpdatedAt time.Time
}

// UserStore persists User aggregates. Budgets travel with their user.
type UserStore interface {
	// CreateUser inserts u and sets u.Version to 1.
	CreateUser(ctx context.Context, u *core.User) error
	GetUser(ctx context.Context, id string) (*core.User, error)
	GetUserByEmail(ctx context.Context, email string) (*core.User, error)
	// SaveUser overwrites the stored aggregate and bumps u.Version.
	SaveUser(ctx context.Context, u *core.User) error
	ListUsers(ctx context.Context) ([]*core.User, error)
}

// SyncStore tracks which saved versions have been exported.
type SyncStore interface {
	ListPendingSync(ctx context.Context, limit int) ([]PendingSync, error)
	// MarkSynced records version as exported. Older versions never move the
	// marker backwards.
	MarkSynced(ctx context.Context, userID string, version int64) error
}

type SessionStore interface {
	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Store is everything the app needs from a backend.
type Store interface {
	UserStore
	SyncStore
	SessionStore
	Ping(ctx context.Context) error
	Close() error
}
