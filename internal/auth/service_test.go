package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgets/internal/core"
	"budgets/internal/storage"
	"budgets/internal/storage/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc, err := NewService(store, store, Config{
		Secret:     testSecret,
		SessionTTL: time.Hour,
		BcryptCost: 4,
	})
	require.NoError(t, err)
	return svc, store
}

func signUpInput() SignUpInput {
	return SignUpInput{
		Email:           "  Ada@Example.com ",
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Password:        "correct horse",
		ConfirmPassword: "correct horse",
	}
}

func TestSignUpInput_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SignUpInput)
		field  string
	}{
		{"valid", func(*SignUpInput) {}, ""},
		{"missing email", func(in *SignUpInput) { in.Email = " " }, "email"},
		{"malformed email", func(in *SignUpInput) { in.Email = "not-an-email" }, "email"},
		{"missing first name", func(in *SignUpInput) { in.FirstName = "" }, "firstName"},
		{"missing last name", func(in *SignUpInput) { in.LastName = "" }, "lastName"},
		{"short password", func(in *SignUpInput) { in.Password, in.ConfirmPassword = "short", "short" }, "password"},
		{"mismatched confirmation", func(in *SignUpInput) { in.ConfirmPassword = "something else" }, "confirmPassword"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := signUpInput()
			tt.mutate(&in)
			err := in.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}
}

func TestSignUpAndSignIn(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	u, err := svc.SignUp(ctx, signUpInput())
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, core.NoCurrentBudget, u.CurrentBudgetID)
	assert.NotEqual(t, "correct horse", u.PasswordHash)

	stored, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, CheckPassword(stored.PasswordHash, "correct horse"))

	_, err = svc.SignUp(ctx, signUpInput())
	require.ErrorIs(t, err, core.ErrAuth)
	assert.EqualError(t, err, "email already registered")

	sess, err := svc.SignIn(ctx, "ADA@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, sess.UserID)
	assert.NotEmpty(t, sess.Token)

	userID, err := svc.Resolve(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, userID)
}

func TestSignIn_FailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.SignUp(ctx, signUpInput())
	require.NoError(t, err)

	_, unknown := svc.SignIn(ctx, "nobody@example.com", "correct horse")
	_, wrong := svc.SignIn(ctx, "ada@example.com", "wrong password")

	require.ErrorIs(t, unknown, core.ErrAuth)
	require.ErrorIs(t, wrong, core.ErrAuth)
	assert.Equal(t, unknown.Error(), wrong.Error())
	assert.Equal(t, "invalid email or password", wrong.Error())
}

func TestSignOut_InvalidatesSession(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	u, err := svc.SignUp(ctx, signUpInput())
	require.NoError(t, err)
	sess, err := svc.StartSession(ctx, u.ID)
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, sess.Token)
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, sess.Token))
	_, err = svc.Resolve(ctx, sess.Token)
	assert.ErrorIs(t, err, core.ErrAuth)

	claims, err := svc.tokens.Parse(sess.Token)
	require.NoError(t, err)
	_, err = store.GetSession(ctx, claims.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Signing out twice or with garbage is harmless.
	assert.NoError(t, svc.SignOut(ctx, sess.Token))
	assert.NoError(t, svc.SignOut(ctx, "garbage"))
	assert.NoError(t, svc.SignOut(ctx, ""))
}

func TestResolve_Rejections(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	u, err := svc.SignUp(ctx, signUpInput())
	require.NoError(t, err)

	t.Run("empty token", func(t *testing.T) {
		_, err := svc.Resolve(ctx, "")
		assert.ErrorIs(t, err, core.ErrAuth)
	})

	t.Run("tampered token", func(t *testing.T) {
		sess, err := svc.StartSession(ctx, u.ID)
		require.NoError(t, err)
		_, err = svc.Resolve(ctx, sess.Token+"x")
		assert.ErrorIs(t, err, core.ErrAuth)
	})

	t.Run("token for unknown session", func(t *testing.T) {
		token, err := svc.tokens.Issue(u.ID, "missing-session", time.Now().Add(time.Hour))
		require.NoError(t, err)
		_, err = svc.Resolve(ctx, token)
		assert.ErrorIs(t, err, core.ErrAuth)
	})

	t.Run("expired session", func(t *testing.T) {
		sess, err := svc.StartSession(ctx, u.ID)
		require.NoError(t, err)

		later := time.Now().Add(2 * time.Hour)
		svc.now = func() time.Time { return later }
		svc.tokens.now = func() time.Time { return later }
		t.Cleanup(func() {
			svc.now = time.Now
			svc.tokens.now = time.Now
		})

		_, err = svc.Resolve(ctx, sess.Token)
		assert.ErrorIs(t, err, core.ErrAuth)
	})
}

func TestResolve_UsesCache(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	u, err := svc.SignUp(ctx, signUpInput())
	require.NoError(t, err)
	sess, err := svc.StartSession(ctx, u.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.Resolve(ctx, sess.Token)
		require.NoError(t, err)
	}
	stats := svc.SessionCache().Stats()
	assert.Equal(t, uint64(3), stats.Hits)
	assert.Equal(t, 1, stats.Size)
}

func TestPruneSessions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	u, err := svc.SignUp(ctx, signUpInput())
	require.NoError(t, err)
	_, err = svc.StartSession(ctx, u.ID)
	require.NoError(t, err)

	n, err := svc.PruneSessions(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = svc.PruneSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestNewService_RequiresSecret(t *testing.T) {
	store := memory.New()
	_, err := NewService(store, store, Config{})
	assert.Error(t, err)
}
