package auth

import (
	"context"
	"errors"
	"net/http"

	"budgets/internal/core"
	"budgets/internal/log"
)

type contextKey struct{}

// Resolver maps a session token to a user id.
type Resolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// WithUserID returns a copy of ctx carrying the signed-in user's id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserIDFromContext returns the id stored by RequireUser.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// RequireUser lets requests with a live session through and hands the rest
// to unauthorized. Stale cookies are cleared.
func RequireUser(resolver Resolver, secureCookie bool, unauthorized http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			userID, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				if token != "" {
					ClearSessionCookie(w, secureCookie)
				}
				if !errors.Is(err, core.ErrAuth) {
					log.FromContext(r.Context()).WithComponent(log.ComponentAuth).ErrorContext(r.Context(),
						"Session lookup failed", log.FieldError, err)
				}
				unauthorized(w, r)
				return
			}
			ctx := WithUserID(r.Context(), userID)
			ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
