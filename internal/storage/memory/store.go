// Package memory is a process-local storage.Store for development and tests.
// Nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"budgets/internal/core"
	"budgets/internal/storage"
)

type userRecord struct {
	user          *core.User
	syncedVersion int64
	updatedAt     time.Time
}

type Store struct {
	mu       sync.RWMutex
	users    map[string]*userRecord
	byEmail  map[string]string
	sessions map[string]storage.Session
	now      func() time.Time
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:    make(map[string]*userRecord),
		byEmail:  make(map[string]string),
		sessions: make(map[string]storage.Session),
		now:      time.Now,
	}
}

func (s *Store) CreateUser(_ context.Context, u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := core.NormalizeEmail(u.Email)
	if _, taken := s.byEmail[email]; taken {
		return storage.ErrEmailTaken
	}
	u.Email = email
	if u.CurrentBudgetID == "" {
		u.CurrentBudgetID = core.NoCurrentBudget
	}
	u.Version = 1

	stored, err := u.Clone()
	if err != nil {
		return err
	}
	s.users[u.ID] = &userRecord{user: stored, updatedAt: s.now()}
	s.byEmail[email] = u.ID
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return rec.user.Clone()
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	s.mu.RLock()
	id, ok := s.byEmail[core.NormalizeEmail(email)]
	s.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.GetUser(ctx, id)
}

func (s *Store) SaveUser(_ context.Context, u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[u.ID]
	if !ok {
		return storage.ErrNotFound
	}
	stored, err := u.Clone()
	if err != nil {
		return err
	}
	// email is immutable after sign-up
	stored.Email = rec.user.Email
	stored.CreatedAt = rec.user.CreatedAt
	stored.Version = rec.user.Version + 1
	if stored.CurrentBudgetID == "" {
		stored.CurrentBudgetID = core.NoCurrentBudget
	}

	rec.user = stored
	rec.updatedAt = s.now()
	u.Version = stored.Version
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*core.User, 0, len(s.users))
	for _, rec := range s.users {
		u, err := rec.user.Clone()
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (s *Store) ListPendingSync(_ context.Context, limit int) ([]storage.PendingSync, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []storage.PendingSync
	for id, rec := range s.users {
		if rec.user.Version > rec.syncedVersion {
			pending = append(pending, storage.PendingSync{
				UserID:    id,
				Version:   rec.user.Version,
				UpdatedAt: rec.updatedAt,
			})
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].UpdatedAt.Equal(pending[j].UpdatedAt) {
			return pending[i].UpdatedAt.Before(pending[j].UpdatedAt)
		}
		return pending[i].UserID < pending[j].UserID
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *Store) MarkSynced(_ context.Context, userID string, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	if version > rec.syncedVersion {
		rec.syncedVersion = version
	}
	return nil
}

func (s *Store) CreateSession(_ context.Context, sess storage.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[sess.UserID]; !ok {
		return storage.ErrNotFound
	}
	s.sessions[sess.ID] = sess
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (storage.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return storage.Session{}, storage.ErrNotFound
	}
	return sess, nil
}

func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
