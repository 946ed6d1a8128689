// Package auth signs users up and in, and resolves session cookies back to
// a user id. Sessions live in the store; the cookie carries a signed token
// naming the session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"budgets/internal/cache"
	"budgets/internal/core"
	"budgets/internal/log"
	"budgets/internal/storage"
)

const (
	defaultSessionCacheSize = 1000
	defaultSessionCacheTTL  = 5 * time.Minute
	maxPasswordLength       = 72
)

// ErrInvalidCredentials is the single sign-in failure message.
var ErrInvalidCredentials = &core.AuthError{Reason: "invalid email or password"}

var errSessionExpired = &core.AuthError{Reason: "session expired, please sign in again"}

type Config struct {
	Secret     string
	SessionTTL time.Duration
	BcryptCost int
	// CacheSize bounds the resolved-session cache. Zero uses the default.
	CacheSize int
}

// Service implements sign-up, sign-in, sign-out and session resolution.
type Service struct {
	users    storage.UserStore
	sessions storage.SessionStore
	tokens   *TokenIssuer
	cache    *cache.LRUCache[storage.Session]
	ttl      time.Duration
	cost     int
	now      func() time.Time
}

func NewService(users storage.UserStore, sessions storage.SessionStore, cfg Config) (*Service, error) {
	tokens, err := NewTokenIssuer(cfg.Secret)
	if err != nil {
		return nil, err
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultSessionCacheSize
	}
	return &Service{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		cache:    cache.NewLRUCache[storage.Session](size, defaultSessionCacheTTL),
		ttl:      cfg.SessionTTL,
		cost:     cfg.BcryptCost,
		now:      time.Now,
	}, nil
}

// SessionCache exposes the resolved-session cache for cleanup and stats.
func (s *Service) SessionCache() *cache.LRUCache[storage.Session] { return s.cache }

// SignUpInput is the sign-up form.
type SignUpInput struct {
	Email           string
	FirstName       string
	LastName        string
	Password        string
	ConfirmPassword string
}

func (in SignUpInput) Validate() error {
	email := core.NormalizeEmail(in.Email)
	if email == "" {
		return core.Invalid("email", "is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return core.Invalid("email", "is not a valid address")
	}
	if strings.TrimSpace(in.FirstName) == "" {
		return core.Invalid("firstName", "is required")
	}
	if strings.TrimSpace(in.LastName) == "" {
		return core.Invalid("lastName", "is required")
	}
	if len(in.Password) < MinPasswordLength {
		return core.Invalid("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	if len(in.Password) > maxPasswordLength {
		return core.Invalid("password", fmt.Sprintf("must be at most %d characters", maxPasswordLength))
	}
	if in.Password != in.ConfirmPassword {
		return core.Invalid("confirmPassword", "passwords do not match")
	}
	return nil
}

// SignUp creates a user with no budgets. A taken email is an AuthError.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*core.User, error) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentAuth)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password, s.cost)
	if err != nil {
		return nil, err
	}
	u := core.NewUser(in.Email, in.FirstName, in.LastName, hash, s.now())
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			logger.InfoContext(ctx, "Sign-up with registered email", log.FieldOperation, log.OpSignUp)
			return nil, &core.AuthError{Reason: "email already registered"}
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	logger.InfoContext(ctx, "User signed up", log.FieldOperation, log.OpSignUp, log.FieldUserID, u.ID)
	return u, nil
}

// Session is a freshly issued sign-in.
type Session struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// SignIn checks credentials and opens a session. Unknown emails and wrong
// passwords fail with the same error.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentAuth)
	u, err := s.users.GetUserByEmail(ctx, core.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			logger.InfoContext(ctx, "Sign-in failed", log.FieldOperation, log.OpSignIn, log.FieldErrorType, log.ErrorTypeAuth)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !CheckPassword(u.PasswordHash, password) {
		logger.InfoContext(ctx, "Sign-in failed", log.FieldOperation, log.OpSignIn, log.FieldUserID, u.ID, log.FieldErrorType, log.ErrorTypeAuth)
		return nil, ErrInvalidCredentials
	}
	sess, err := s.StartSession(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "User signed in", log.FieldOperation, log.OpSignIn, log.FieldUserID, u.ID)
	return sess, nil
}

// StartSession opens a session for a user that has already been verified.
func (s *Service) StartSession(ctx context.Context, userID string) (*Session, error) {
	now := s.now()
	rec := storage.Session{
		ID:        core.NewID(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.CreateSession(ctx, rec); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	token, err := s.tokens.Issue(userID, rec.ID, rec.ExpiresAt)
	if err != nil {
		return nil, err
	}
	s.cache.SetWithTTL(rec.ID, rec, rec.ExpiresAt.Sub(now))
	return &Session{UserID: userID, Token: token, ExpiresAt: rec.ExpiresAt}, nil
}

// SignOut deletes the session named by token. Unreadable or unknown tokens
// are ignored.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil
	}
	s.cache.Delete(claims.ID)
	if err := s.sessions.DeleteSession(ctx, claims.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	log.FromContext(ctx).WithComponent(log.ComponentAuth).InfoContext(ctx, "User signed out",
		log.FieldOperation, log.OpSignOut, log.FieldUserID, claims.Subject)
	return nil
}

// Resolve returns the user id of a live session.
func (s *Service) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", &core.AuthError{Reason: "not signed in"}
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return "", errSessionExpired
	}

	now := s.now()
	sess, ok := s.cache.Get(claims.ID)
	if !ok {
		sess, err = s.sessions.GetSession(ctx, claims.ID)
		if errors.Is(err, storage.ErrNotFound) {
			return "", errSessionExpired
		}
		if err != nil {
			return "", fmt.Errorf("load session: %w", err)
		}
		if !sess.Expired(now) {
			s.cache.SetWithTTL(sess.ID, sess, sess.ExpiresAt.Sub(now))
		}
	}
	if sess.Expired(now) || sess.UserID != claims.Subject {
		s.cache.Delete(claims.ID)
		return "", errSessionExpired
	}
	return sess.UserID, nil
}

// PruneSessions deletes expired sessions and reports how many were removed.
func (s *Service) PruneSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return n, nil
}
