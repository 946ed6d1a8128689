package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgets/internal/core"
	"budgets/internal/storage"
)

func TestStore_UserLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	u := core.NewUser("Ada@Example.com", "Ada", "Lovelace", "hash", now)
	require.NoError(t, s.CreateUser(ctx, u))
	assert.Equal(t, int64(1), u.Version)

	err := s.CreateUser(ctx, core.NewUser("ada@example.com", "Other", "Person", "hash", now))
	assert.ErrorIs(t, err, storage.ErrEmailTaken)

	loaded, err := s.GetUserByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, loaded.ID)

	// Mutating a loaded copy must not leak into the store until saved.
	_, err = loaded.AddBudget(core.NewPeriod(2024, 3), now)
	require.NoError(t, err)
	fresh, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, fresh.Budgets)

	require.NoError(t, s.SaveUser(ctx, loaded))
	assert.Equal(t, int64(2), loaded.Version)

	fresh, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, fresh.Budgets, 1)
	assert.Equal(t, fresh.Budgets[0].ID, fresh.CurrentBudgetID)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.SaveUser(ctx, &core.User{ID: "missing"}), storage.ErrNotFound)
}

func TestStore_PendingSync(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := core.NewUser("a@b.c", "A", "B", "h", time.Now())
	require.NoError(t, s.CreateUser(ctx, u))

	pending, err := s.ListPendingSync(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(1), pending[0].Version)

	require.NoError(t, s.MarkSynced(ctx, u.ID, 1))
	pending, err = s.ListPendingSync(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, s.SaveUser(ctx, u))
	require.NoError(t, s.MarkSynced(ctx, u.ID, 1))
	pending, err = s.ListPendingSync(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestStore_Sessions(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := core.NewUser("a@b.c", "A", "B", "h", time.Now())
	require.NoError(t, s.CreateUser(ctx, u))

	now := time.Now()
	require.NoError(t, s.CreateSession(ctx, storage.Session{ID: "a", UserID: u.ID, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.CreateSession(ctx, storage.Session{ID: "b", UserID: u.ID, ExpiresAt: now.Add(-time.Minute)}))
	assert.ErrorIs(t, s.CreateSession(ctx, storage.Session{ID: "c", UserID: "ghost"}), storage.ErrNotFound)

	n, err := s.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetSession(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, s.DeleteSession(ctx, "a"))
	_, err = s.GetSession(ctx, "a")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
