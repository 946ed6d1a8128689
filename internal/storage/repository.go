package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"budgets/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

var _ Store = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u *core.User) error {
	budgets, err := core.EncodeBudgets(u.Budgets)
	if err != nil {
		return fmt.Errorf("encode budgets: %w", err)
	}

	err = r.queries.CreateUser(ctx, CreateUserParams{
		ID:              u.ID,
		Email:           core.NormalizeEmail(u.Email),
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		PasswordHash:    u.PasswordHash,
		CurrentBudgetID: currentOrEmpty(u.CurrentBudgetID),
		Budgets:         string(budgets),
		CreatedAt:       toMillis(u.CreatedAt),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	u.Version = 1

	slog.InfoContext(ctx, "User created", "user_id", u.ID)
	return nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (*core.User, error) {
	row, err := r.queries.GetUser(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "get user")
	}
	return userFromRow(row)
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	row, err := r.queries.GetUserByEmail(ctx, core.NormalizeEmail(email))
	if err != nil {
		return nil, notFoundOr(err, "get user by email")
	}
	return userFromRow(row)
}

// SaveUser writes the whole aggregate. Concurrent saves of the same user
// are last-writer-wins.
func (r *SQLiteRepository) SaveUser(ctx context.Context, u *core.User) error {
	budgets, err := core.EncodeBudgets(u.Budgets)
	if err != nil {
		return fmt.Errorf("encode budgets: %w", err)
	}

	version, err := r.queries.SaveUser(ctx, SaveUserParams{
		ID:              u.ID,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		PasswordHash:    u.PasswordHash,
		CurrentBudgetID: currentOrEmpty(u.CurrentBudgetID),
		Budgets:         string(budgets),
		UpdatedAt:       toMillis(r.now()),
	})
	if err != nil {
		return notFoundOr(err, "save user")
	}
	u.Version = version

	slog.DebugContext(ctx, "User saved", "user_id", u.ID, "version", version)
	return nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]*core.User, error) {
	rows, err := r.queries.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]*core.User, 0, len(rows))
	for _, row := range rows {
		u, err := userFromRow(row)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (r *SQLiteRepository) ListPendingSync(ctx context.Context, limit int) ([]PendingSync, error) {
	rows, err := r.queries.ListPendingSync(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list pending sync: %w", err)
	}
	pending := make([]PendingSync, len(rows))
	for i, row := range rows {
		pending[i] = PendingSync{
			UserID:    row.ID,
			Version:   row.Version,
			UpdatedAt: fromMillis(row.UpdatedAt),
		}
	}
	return pending, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, userID string, version int64) error {
	n, err := r.queries.MarkSynced(ctx, userID, version)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	slog.DebugContext(ctx, "User marked as synced", "user_id", userID, "version", version)
	return nil
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, s Session) error {
	err := r.queries.CreateSession(ctx, SessionRow{
		ID:        s.ID,
		UserID:    s.UserID,
		CreatedAt: toMillis(s.CreatedAt),
		ExpiresAt: toMillis(s.ExpiresAt),
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (Session, error) {
	row, err := r.queries.GetSession(ctx, id)
	if err != nil {
		return Session{}, notFoundOr(err, "get session")
	}
	return Session{
		ID:        row.ID,
		UserID:    row.UserID,
		CreatedAt: fromMillis(row.CreatedAt),
		ExpiresAt: fromMillis(row.ExpiresAt),
	}, nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, id string) error {
	if err := r.queries.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	n, err := r.queries.DeleteExpiredSessions(ctx, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return n, nil
}

func userFromRow(row User) (*core.User, error) {
	budgets, err := core.DecodeBudgets([]byte(row.Budgets))
	if err != nil {
		return nil, fmt.Errorf("decode budgets for user %s: %w", row.ID, err)
	}
	return &core.User{
		ID:              row.ID,
		Email:           row.Email,
		FirstName:       row.FirstName,
		LastName:        row.LastName,
		PasswordHash:    row.PasswordHash,
		CurrentBudgetID: row.CurrentBudgetID,
		Budgets:         budgets,
		CreatedAt:       fromMillis(row.CreatedAt),
		Version:         row.Version,
	}, nil
}

func currentOrEmpty(id string) string {
	if id == "" {
		return core.NoCurrentBudget
	}
	return id
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE"))
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
