package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgets/internal/core"
)

type stubResolver struct {
	userID string
	err    error
}

func (s stubResolver) Resolve(context.Context, string) (string, error) {
	return s.userID, s.err
}

func TestRequireUser(t *testing.T) {
	tests := []struct {
		name       string
		resolver   stubResolver
		cookie     string
		wantStatus int
		wantUser   string
		wantClear  bool
	}{
		{
			name:       "live session",
			resolver:   stubResolver{userID: "u1"},
			cookie:     "token",
			wantStatus: http.StatusOK,
			wantUser:   "u1",
		},
		{
			name:       "no cookie",
			resolver:   stubResolver{err: &core.AuthError{Reason: "not signed in"}},
			wantStatus: http.StatusSeeOther,
		},
		{
			name:       "stale cookie is cleared",
			resolver:   stubResolver{err: &core.AuthError{Reason: "session expired"}},
			cookie:     "stale",
			wantStatus: http.StatusSeeOther,
			wantClear:  true,
		},
		{
			name:       "store failure",
			resolver:   stubResolver{err: errors.New("db down")},
			cookie:     "token",
			wantStatus: http.StatusSeeOther,
			wantClear:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser, _ = UserIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})
			unauthorized := func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, "/auth/sign-in", http.StatusSeeOther)
			}
			h := RequireUser(tt.resolver, false, unauthorized)(next)

			req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantUser, gotUser)

			cleared := false
			for _, c := range w.Result().Cookies() {
				if c.Name == SessionCookieName && c.MaxAge < 0 {
					cleared = true
				}
			}
			assert.Equal(t, tt.wantClear, cleared)
		})
	}
}

func TestSessionCookie(t *testing.T) {
	w := httptest.NewRecorder()
	expires := time.Now().Add(time.Hour)
	SetSessionCookie(w, "signed", expires, true)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, SessionCookieName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	assert.Equal(t, "signed", TokenFromRequest(req))
	assert.Equal(t, "", TokenFromRequest(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestUserIDFromContext_Empty(t *testing.T) {
	_, ok := UserIDFromContext(context.Background())
	assert.False(t, ok)
	_, ok = UserIDFromContext(WithUserID(context.Background(), ""))
	assert.False(t, ok)
}
