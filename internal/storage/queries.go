package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

type User struct {
	ID              string
	Email           string
	FirstName       string
	LastName        string
	PasswordHash    string
	CurrentBudgetID string
	Budgets         string
	Version         int64
	SyncedVersion   int64
	CreatedAt       int64
	UpdatedAt       int64
}

const userColumns = `id, email, first_name, last_name, password_hash, current_budget_id,
	budgets, version, synced_version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.PasswordHash,
		&u.CurrentBudgetID,
		&u.Budgets,
		&u.Version,
		&u.SyncedVersion,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

const createUser = `INSERT INTO users (` + userColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, 1, 0, ?, ?)`

type CreateUserParams struct {
	ID              string
	Email           string
	FirstName       string
	LastName        string
	PasswordHash    string
	CurrentBudgetID string
	Budgets         string
	CreatedAt       int64
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) error {
	_, err := q.db.ExecContext(ctx, createUser,
		arg.ID,
		arg.Email,
		arg.FirstName,
		arg.LastName,
		arg.PasswordHash,
		arg.CurrentBudgetID,
		arg.Budgets,
		arg.CreatedAt,
		arg.CreatedAt,
	)
	return err
}

const getUser = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

func (q *Queries) GetUser(ctx context.Context, id string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUser, id))
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = ?`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByEmail, email))
}

const listUsers = `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id`

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

const saveUser = `UPDATE users
SET first_name = ?, last_name = ?, password_hash = ?, current_budget_id = ?,
    budgets = ?, version = version + 1, updated_at = ?
WHERE id = ?
RETURNING version`

type SaveUserParams struct {
	ID              string
	FirstName       string
	LastName        string
	PasswordHash    string
	CurrentBudgetID string
	Budgets         string
	UpdatedAt       int64
}

func (q *Queries) SaveUser(ctx context.Context, arg SaveUserParams) (int64, error) {
	var version int64
	err := q.db.QueryRowContext(ctx, saveUser,
		arg.FirstName,
		arg.LastName,
		arg.PasswordHash,
		arg.CurrentBudgetID,
		arg.Budgets,
		arg.UpdatedAt,
		arg.ID,
	).Scan(&version)
	return version, err
}

const listPendingSync = `SELECT id, version, updated_at FROM users
WHERE version > synced_version
ORDER BY updated_at, id
LIMIT ?`

type PendingSyncRow struct {
	ID        string
	Version   int64
	UpdatedAt int64
}

func (q *Queries) ListPendingSync(ctx context.Context, limit int64) ([]PendingSyncRow, error) {
	rows, err := q.db.QueryContext(ctx, listPendingSync, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PendingSyncRow
	for rows.Next() {
		var i PendingSyncRow
		if err := rows.Scan(&i.ID, &i.Version, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const markSynced = `UPDATE users SET synced_version = MAX(synced_version, ?) WHERE id = ?`

func (q *Queries) MarkSynced(ctx context.Context, id string, version int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, markSynced, version, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type SessionRow struct {
	ID        string
	UserID    string
	CreatedAt int64
	ExpiresAt int64
}

const createSession = `INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`

func (q *Queries) CreateSession(ctx context.Context, arg SessionRow) error {
	_, err := q.db.ExecContext(ctx, createSession, arg.ID, arg.UserID, arg.CreatedAt, arg.ExpiresAt)
	return err
}

const getSession = `SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = ?`

func (q *Queries) GetSession(ctx context.Context, id string) (SessionRow, error) {
	var s SessionRow
	err := q.db.QueryRowContext(ctx, getSession, id).Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt)
	return s, err
}

const deleteSession = `DELETE FROM sessions WHERE id = ?`

func (q *Queries) DeleteSession(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, deleteSession, id)
	return err
}

const deleteExpiredSessions = `DELETE FROM sessions WHERE expires_at <= ?`

func (q *Queries) DeleteExpiredSessions(ctx context.Context, now int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpiredSessions, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
