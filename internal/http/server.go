package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"budgets/internal/auth"
	"budgets/internal/core"
	"budgets/internal/log"
	"budgets/internal/middleware/methodoverride"
	"budgets/internal/middleware/ratelimit"
	"budgets/internal/middleware/security"
	"budgets/internal/middleware/trace"
	"budgets/internal/services"
	appweb "budgets/web"
)

// BudgetService is the part of services.BudgetService the handlers use.
type BudgetService interface {
	Dashboard(ctx context.Context, userID string) (*services.Dashboard, error)
	ListBudgets(ctx context.Context, userID string) (*core.User, []core.YearBudgets, error)
	Budget(ctx context.Context, userID, budgetID string) (*services.BudgetView, error)
	Category(ctx context.Context, userID, budgetID, categoryID string) (*services.CategoryView, error)
	Entry(ctx context.Context, userID, budgetID, categoryID, entryID string) (*services.EntryView, error)

	CreateBudget(ctx context.Context, userID, token string) (core.Budget, bool, error)
	UpdateBudget(ctx context.Context, userID, budgetID, token string) (core.Budget, error)
	DeleteBudget(ctx context.Context, userID, budgetID string) error
	SetCurrentBudget(ctx context.Context, userID, budgetID string) error

	AddCategory(ctx context.Context, userID, budgetID string, in core.NewCategory) (core.Category, error)
	UpdateCategory(ctx context.Context, userID, budgetID, categoryID string, patch core.CategoryPatch) (core.Category, error)
	RemoveCategory(ctx context.Context, userID, budgetID, categoryID string) error

	AddEntry(ctx context.Context, userID, budgetID, categoryID string, in core.NewEntry) (core.Entry, error)
	UpdateEntry(ctx context.Context, userID, budgetID, categoryID, entryID string, patch core.EntryPatch) (core.Entry, error)
	RemoveEntry(ctx context.Context, userID, budgetID, categoryID, entryID string) error
}

// AuthService is the part of auth.Service the handlers use.
type AuthService interface {
	auth.Resolver
	SignUp(ctx context.Context, in auth.SignUpInput) (*core.User, error)
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	StartSession(ctx context.Context, userID string) (*auth.Session, error)
	SignOut(ctx context.Context, token string) error
}

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Sizer is any cache reported on /readyz and /metrics.
type Sizer interface {
	Size() int
}

type Config struct {
	Addr               string
	SecureCookie       bool
	RateLimitPerMinute int
}

// Deps are the collaborators the server routes to. Store and Caches are
// optional.
type Deps struct {
	Budgets BudgetService
	Auth    AuthService
	Store   Pinger
	Caches  map[string]Sizer
	Logger  *log.Logger
}

type appMetrics struct {
	started      time.Time
	mutations    atomic.Int64
	authFailures atomic.Int64
	exports      atomic.Int64
}

type Server struct {
	http.Server

	pages   map[string]*template.Template
	budgets BudgetService
	auth    AuthService
	store   Pinger
	caches  map[string]Sizer
	logger  *log.Logger

	secureCookie bool

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	metrics  appMetrics

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires routes and middleware.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	pages, err := loadPages(appweb.TemplatesFS)
	if err != nil {
		return nil, err
	}

	detector := security.NewDetector()
	s := &Server{
		pages:        pages,
		budgets:      deps.Budgets,
		auth:         deps.Auth,
		store:        deps.Store,
		caches:       deps.Caches,
		logger:       logger,
		secureCookie: cfg.SecureCookie,
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		detector:     detector,
		tracer:       trace.NewMiddleware(detector.ExtractClientIP, logger),
		metrics:      appMetrics{started: time.Now()},
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = methodoverride.Middleware(h)
	h = s.limiter.Middleware(detector.ExtractClientIP, s.handleRateLimited)(h)
	h = detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)
	h = log.Middleware(logger)(h)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /auth/sign-in", s.handleSignInForm)
	mux.HandleFunc("POST /auth/sign-in", s.handleSignIn)
	mux.HandleFunc("GET /auth/sign-up", s.handleSignUpForm)
	mux.HandleFunc("POST /auth/sign-up", s.handleSignUp)
	mux.HandleFunc("POST /auth/sign-out", s.handleSignOut)

	private := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, security.NoStore(auth.RequireUser(s.auth, s.secureCookie, s.handleUnauthorized)(h)))
	}

	private("GET /dashboard", s.handleDashboard)

	private("GET /budgets", s.handleListBudgets)
	private("GET /budgets/new", s.handleNewBudgetForm)
	private("POST /budgets", s.handleCreateBudget)
	private("GET /budgets/{id}", s.handleShowBudget)
	private("GET /budgets/{id}/edit", s.handleEditBudgetForm)
	private("PUT /budgets/{id}", s.handleUpdateBudget)
	private("DELETE /budgets/{id}", s.handleDeleteBudget)
	private("POST /budgets/{id}/current", s.handleSetCurrentBudget)
	private("GET /budgets/{id}/export.xlsx", s.handleExportBudget)

	private("POST /budgets/{id}/categories", s.handleCreateCategory)
	private("GET /budgets/{id}/categories/{cid}", s.handleShowCategory)
	private("GET /budgets/{id}/categories/{cid}/edit", s.handleEditCategoryForm)
	private("PUT /budgets/{id}/categories/{cid}", s.handleUpdateCategory)
	private("DELETE /budgets/{id}/categories/{cid}", s.handleDeleteCategory)

	private("POST /budgets/{id}/categories/{cid}/entries", s.handleCreateEntry)
	private("GET /budgets/{id}/categories/{cid}/entries/{eid}/edit", s.handleEditEntryForm)
	private("PUT /budgets/{id}/categories/{cid}/entries/{eid}", s.handleUpdateEntry)
	private("DELETE /budgets/{id}/categories/{cid}/entries/{eid}", s.handleDeleteEntry)
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.redirect(w, r, "/dashboard")
}

func (s *Server) handleUnauthorized(w http.ResponseWriter, r *http.Request) {
	s.redirect(w, r, "/auth/sign-in")
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(),
		"Rate limit exceeded",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path,
		log.FieldClientIP, s.detector.ExtractClientIP(r))
	ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please try again in a minute.").Write(w)
}

func userID(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}
