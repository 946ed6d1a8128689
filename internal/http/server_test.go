package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"budgets/internal/auth"
	"budgets/internal/core"
	"budgets/internal/export"
	"budgets/internal/log"
	"budgets/internal/services"
	"budgets/internal/storage/memory"

	"golang.org/x/crypto/bcrypt"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	authSvc, err := auth.NewService(store, store, auth.Config{
		Secret:     "test-secret-that-is-long-enough-123",
		BcryptCost: bcrypt.MinCost,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	srv, err := NewServer(Config{Addr: ":0", RateLimitPerMinute: 1000}, Deps{
		Budgets: services.NewBudgetService(store, nil),
		Auth:    authSvc,
		Store:   store,
		Caches:  map[string]Sizer{"sessions": authSvc.SessionCache()},
		Logger:  log.New(log.Config{Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store
}

// client keeps the session cookie between requests.
type client struct {
	t       *testing.T
	handler http.Handler
	session *http.Cookie
}

func (c *client) do(method, target string, form url.Values, header map[string]string) *httptest.ResponseRecorder {
	c.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	if c.session != nil {
		req.AddCookie(c.session)
	}
	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)

	for _, ck := range rr.Result().Cookies() {
		if ck.Name != auth.SessionCookieName {
			continue
		}
		if ck.MaxAge < 0 || ck.Value == "" {
			c.session = nil
		} else {
			c.session = ck
		}
	}
	return rr
}

func (c *client) get(target string) *httptest.ResponseRecorder {
	return c.do(http.MethodGet, target, nil, nil)
}

func (c *client) post(target string, form url.Values) *httptest.ResponseRecorder {
	return c.do(http.MethodPost, target, form, nil)
}

func expectRedirect(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d (body: %s)", rr.Code, http.StatusSeeOther, rr.Body.String())
	}
	if got := rr.Header().Get("Location"); want != "" && got != want {
		t.Fatalf("Location = %q, want %q", got, want)
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d (body: %s)", rr.Code, want, rr.Body.String())
	}
}

func expectBody(t *testing.T, rr *httptest.ResponseRecorder, fragments ...string) {
	t.Helper()
	for _, f := range fragments {
		if !strings.Contains(rr.Body.String(), f) {
			t.Errorf("body missing %q", f)
		}
	}
}

func signUp(t *testing.T, srv *Server, email string) *client {
	t.Helper()
	c := &client{t: t, handler: srv.Handler}
	rr := c.post("/auth/sign-up", url.Values{
		"email":           {email},
		"firstName":       {"Ada"},
		"lastName":        {"Lovelace"},
		"password":        {"correct horse"},
		"confirmPassword": {"correct horse"},
	})
	expectRedirect(t, rr, "/dashboard")
	if c.session == nil {
		t.Fatal("sign-up did not set a session cookie")
	}
	return c
}

func TestHealthReadyAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)
	c := &client{t: t, handler: srv.Handler}

	rr := c.get("/healthz")
	expectStatus(t, rr, http.StatusOK)
	var health map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode healthz: %v", err)
	}
	if health["status"] != "ok" {
		t.Errorf("status = %v, want ok", health["status"])
	}

	rr = c.get("/readyz")
	expectStatus(t, rr, http.StatusOK)
	expectBody(t, rr, `"status":"ready"`, `"sessions"`)

	rr = c.get("/metrics")
	expectStatus(t, rr, http.StatusOK)
	expectBody(t, rr, "http_requests_total", "budget_mutations_total 0", `cache_entries{cache="sessions"}`, "uptime_seconds")
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := (&client{t: t, handler: srv.Handler}).get("/auth/sign-in")
	expectStatus(t, rr, http.StatusOK)

	for _, h := range []string{"Content-Security-Policy", "X-Frame-Options", "X-Request-ID"} {
		if rr.Header().Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}
}

func TestPrivateRoutesRequireSession(t *testing.T) {
	srv, _ := newTestServer(t)
	c := &client{t: t, handler: srv.Handler}

	expectRedirect(t, c.get("/"), "/dashboard")
	for _, path := range []string{"/dashboard", "/budgets", "/budgets/new", "/budgets/x/categories/y"} {
		t.Run(path, func(t *testing.T) {
			expectRedirect(t, c.get(path), "/auth/sign-in")
		})
	}

	rr := c.do(http.MethodGet, "/dashboard", nil, map[string]string{"HX-Request": "true"})
	expectStatus(t, rr, http.StatusOK)
	if got := rr.Header().Get("HX-Redirect"); got != "/auth/sign-in" {
		t.Errorf("HX-Redirect = %q, want /auth/sign-in", got)
	}

	c.session = &http.Cookie{Name: auth.SessionCookieName, Value: "garbage"}
	expectRedirect(t, c.get("/dashboard"), "/auth/sign-in")
	if c.session != nil {
		t.Error("stale cookie was not cleared")
	}
}

func TestSignUpSignInSignOut(t *testing.T) {
	srv, _ := newTestServer(t)
	anon := &client{t: t, handler: srv.Handler}

	t.Run("validation errors re-render the form", func(t *testing.T) {
		rr := anon.post("/auth/sign-up", url.Values{
			"email":           {"ada@example.com"},
			"firstName":       {"Ada"},
			"lastName":        {"Lovelace"},
			"password":        {"correct horse"},
			"confirmPassword": {"battery staple"},
		})
		expectStatus(t, rr, http.StatusUnprocessableEntity)
		expectBody(t, rr, "passwords do not match", `value="ada@example.com"`)
	})

	user := signUp(t, srv, "ada@example.com")
	expectStatus(t, user.get("/dashboard"), http.StatusOK)

	t.Run("duplicate email", func(t *testing.T) {
		rr := anon.post("/auth/sign-up", url.Values{
			"email":           {" ADA@example.com "},
			"firstName":       {"Ada"},
			"lastName":        {"Again"},
			"password":        {"correct horse"},
			"confirmPassword": {"correct horse"},
		})
		expectStatus(t, rr, http.StatusUnauthorized)
		expectBody(t, rr, "email already registered")
	})

	t.Run("wrong password", func(t *testing.T) {
		rr := anon.post("/auth/sign-in", url.Values{"email": {"ada@example.com"}, "password": {"nope nope"}})
		expectStatus(t, rr, http.StatusUnauthorized)
		expectBody(t, rr, "invalid email or password")
	})

	t.Run("unknown email", func(t *testing.T) {
		rr := anon.post("/auth/sign-in", url.Values{"email": {"bob@example.com"}, "password": {"correct horse"}})
		expectStatus(t, rr, http.StatusUnauthorized)
		expectBody(t, rr, "invalid email or password")
	})

	other := &client{t: t, handler: srv.Handler}
	expectRedirect(t, other.post("/auth/sign-in", url.Values{"email": {"Ada@Example.com"}, "password": {"correct horse"}}), "/dashboard")
	expectStatus(t, other.get("/dashboard"), http.StatusOK)

	expectRedirect(t, other.post("/auth/sign-out", url.Values{}), "/auth/sign-in")
	if other.session != nil {
		t.Fatal("sign-out did not clear the cookie")
	}
	expectRedirect(t, other.get("/dashboard"), "/auth/sign-in")

	// The first session is independent of the one that signed out.
	expectStatus(t, user.get("/dashboard"), http.StatusOK)

	rr := user.get("/metrics")
	expectBody(t, rr, "auth_failures_total 4")
}

func findEntry(t *testing.T, store *memory.Store, email, budgetID, categoryID string) core.Entry {
	t.Helper()
	u, err := store.GetUserByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	b, err := u.Budget(budgetID)
	if err != nil {
		t.Fatalf("Budget: %v", err)
	}
	c, err := b.Category(categoryID)
	if err != nil {
		t.Fatalf("Category: %v", err)
	}
	if len(c.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(c.Entries))
	}
	return c.Entries[0]
}

func TestBudgetLifecycle(t *testing.T) {
	srv, store := newTestServer(t)
	c := signUp(t, srv, "ada@example.com")

	rr := c.get("/dashboard")
	expectStatus(t, rr, http.StatusOK)
	expectBody(t, rr, "current budget yet")

	// The first budget becomes current and lands on the dashboard.
	expectRedirect(t, c.post("/budgets", url.Values{"month": {"2024-03"}}), "/dashboard")
	expectBody(t, c.get("/dashboard"), "March, 2024")

	rr = c.post("/budgets", url.Values{"month": {"2024-04"}})
	expectRedirect(t, rr, "")
	budgetURL := rr.Header().Get("Location")
	if !strings.HasPrefix(budgetURL, "/budgets/") {
		t.Fatalf("Location = %q, want /budgets/{id}", budgetURL)
	}
	budgetID := strings.TrimPrefix(budgetURL, "/budgets/")

	t.Run("invalid months", func(t *testing.T) {
		for _, month := range []string{"2024-03", "2024-13", "march"} {
			rr := c.post("/budgets", url.Values{"month": {month}})
			expectStatus(t, rr, http.StatusUnprocessableEntity)
			expectBody(t, rr, `value="`+month+`"`)
		}
	})

	rr = c.get("/budgets")
	expectStatus(t, rr, http.StatusOK)
	expectBody(t, rr, "2024", "March", "April", "current")

	expectBody(t, c.get(budgetURL), "April, 2024", "Make current")

	// Categories.
	rr = c.post(budgetURL+"/categories", url.Values{"name": {"Rent"}, "kind": {"expenses"}, "planned": {"1200"}})
	expectRedirect(t, rr, "")
	categoryURL := rr.Header().Get("Location")
	if !strings.HasPrefix(categoryURL, budgetURL+"/categories/") {
		t.Fatalf("Location = %q, want category url", categoryURL)
	}
	categoryID := strings.TrimPrefix(categoryURL, budgetURL+"/categories/")

	rr = c.post(budgetURL+"/categories", url.Values{"name": {"Pay"}, "kind": {"bonus"}, "planned": {"10"}})
	expectStatus(t, rr, http.StatusUnprocessableEntity)
	expectBody(t, rr, "kind: must be income, savings or expenses", `value="Pay"`)

	expectRedirect(t, c.post(budgetURL+"/categories", url.Values{"name": {"Salary"}, "kind": {"income"}, "planned": {"3000"}}), "")

	// Entries.
	expectRedirect(t, c.post(categoryURL+"/entries", url.Values{
		"name":       {"April rent"},
		"amount":     {"1150.50"},
		"postedDate": {"2024-04-01"},
	}), categoryURL)

	rr = c.post(categoryURL+"/entries", url.Values{"name": {"Late fee"}, "amount": {"ten"}, "postedDay": {"3"}})
	expectStatus(t, rr, http.StatusUnprocessableEntity)
	expectBody(t, rr, "amount: must be a number like 12.50", `value="Late fee"`)

	rr = c.get(categoryURL)
	expectStatus(t, rr, http.StatusOK)
	expectBody(t, rr, "April rent", "04/01/2024", "$1,150.50", "$49.50", "Day 1")

	rr = c.get(budgetURL)
	expectBody(t, rr, "Rent", "$1,200.00", "-$1,150.50")

	// Partial entry update through a method-override form.
	entry := findEntry(t, store, "ada@example.com", budgetID, categoryID)
	entryURL := categoryURL + "/entries/" + entry.ID
	expectStatus(t, c.get(entryURL+"/edit"), http.StatusOK)
	expectRedirect(t, c.post(entryURL, url.Values{"_method": {"PUT"}, "amount": {"1000"}}), categoryURL)

	updated := findEntry(t, store, "ada@example.com", budgetID, categoryID)
	if updated.Amount.Cents != 100000 {
		t.Errorf("amount = %d, want 100000", updated.Amount.Cents)
	}
	if updated.Name != "April rent" || updated.PostedDate != "04/01/2024" {
		t.Errorf("untouched fields changed: %+v", updated)
	}
	expectBody(t, c.get(categoryURL), "$200.00")

	// Category edit.
	expectStatus(t, c.get(categoryURL+"/edit"), http.StatusOK)
	rr = c.post(categoryURL, url.Values{"_method": {"PUT"}, "planned": {"-5"}})
	expectStatus(t, rr, http.StatusUnprocessableEntity)
	expectBody(t, rr, "planned: must not be negative", `value="-5"`)
	rr = c.post(categoryURL, url.Values{"_method": {"PUT"}, "planned": {"1100"}})
	expectRedirect(t, rr, categoryURL)
	expectBody(t, c.get(categoryURL), "$1,100.00", "$100.00")

	// Current budget and period edit.
	expectRedirect(t, c.post(budgetURL+"/current", url.Values{}), "/dashboard")
	expectRedirect(t, c.get(budgetURL), "/dashboard")
	expectRedirect(t, c.post(budgetURL, url.Values{"_method": {"PUT"}, "month": {"2024-05"}}), budgetURL)
	expectBody(t, c.get("/dashboard"), "May, 2024", "Rent")

	// Export.
	rr = c.get(budgetURL + "/export.xlsx")
	expectStatus(t, rr, http.StatusOK)
	if got := rr.Header().Get("Content-Type"); got != export.ContentType {
		t.Errorf("Content-Type = %q, want %q", got, export.ContentType)
	}
	if got := rr.Header().Get("Content-Disposition"); !strings.Contains(got, "budget-2024-05.xlsx") {
		t.Errorf("Content-Disposition = %q", got)
	}
	if !strings.HasPrefix(rr.Body.String(), "PK") {
		t.Error("export is not a zip container")
	}

	// Deletes: a real DELETE from HTMX, then override forms.
	rr = c.do(http.MethodDelete, entryURL, nil, map[string]string{"HX-Request": "true"})
	expectStatus(t, rr, http.StatusOK)
	if got := rr.Header().Get("HX-Redirect"); got != categoryURL {
		t.Errorf("HX-Redirect = %q, want %q", got, categoryURL)
	}
	expectBody(t, c.get(categoryURL), "No entries yet.")

	expectRedirect(t, c.post(categoryURL, url.Values{"_method": {"DELETE"}}), budgetURL)
	expectStatus(t, c.get(categoryURL), http.StatusNotFound)

	expectRedirect(t, c.post(budgetURL, url.Values{"_method": {"DELETE"}}), "/budgets")
	expectStatus(t, c.get(budgetURL), http.StatusNotFound)

	// Deleting the current budget falls back to the remaining one.
	expectBody(t, c.get("/dashboard"), "March, 2024")

	rr = c.get("/metrics")
	expectBody(t, rr, "budget_exports_total 1")
	if strings.Contains(rr.Body.String(), "budget_mutations_total 0\n") {
		t.Error("mutations were not counted")
	}
}

func TestEntryEditLocksDayWhileDated(t *testing.T) {
	srv, store := newTestServer(t)
	c := signUp(t, srv, "ada@example.com")

	expectRedirect(t, c.post("/budgets", url.Values{"month": {"2024-03"}}), "/dashboard")
	u, err := store.GetUserByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	budgetURL := "/budgets/" + u.CurrentBudgetID

	rr := c.post(budgetURL+"/categories", url.Values{"name": {"Rent"}, "kind": {"expenses"}})
	expectRedirect(t, rr, "")
	categoryURL := rr.Header().Get("Location")

	expectRedirect(t, c.post(categoryURL+"/entries", url.Values{
		"name": {"Rent"}, "amount": {"900"}, "postedDate": {"2024-03-05"},
	}), categoryURL)
	expectRedirect(t, c.post(categoryURL+"/entries", url.Values{
		"name": {"Coffee"}, "amount": {"3"}, "postedDay": {"7"},
	}), categoryURL)

	u, _ = store.GetUserByEmail(context.Background(), "ada@example.com")
	b, _ := u.Budget(u.CurrentBudgetID)
	cat, _ := b.Category(strings.TrimPrefix(categoryURL, budgetURL+"/categories/"))
	dated, undated := cat.Entries[0], cat.Entries[1]

	rr = c.get(categoryURL + "/entries/" + dated.ID + "/edit")
	expectStatus(t, rr, http.StatusOK)
	expectBody(t, rr, `value="2024-03-05"`, `value="5" data-day-target disabled`)

	rr = c.get(categoryURL + "/entries/" + undated.ID + "/edit")
	expectStatus(t, rr, http.StatusOK)
	if strings.Contains(rr.Body.String(), "data-day-target disabled") {
		t.Error("day input is disabled for an entry without a date")
	}
}

func TestEmptyUpdatesSkipTheSave(t *testing.T) {
	srv, store := newTestServer(t)
	c := signUp(t, srv, "ada@example.com")

	expectRedirect(t, c.post("/budgets", url.Values{"month": {"2024-03"}}), "/dashboard")
	u, _ := store.GetUserByEmail(context.Background(), "ada@example.com")
	budgetURL := "/budgets/" + u.CurrentBudgetID

	rr := c.post(budgetURL+"/categories", url.Values{"name": {"Rent"}, "kind": {"expenses"}})
	categoryURL := rr.Header().Get("Location")
	expectRedirect(t, c.post(categoryURL+"/entries", url.Values{"name": {"Rent"}, "amount": {"900"}, "postedDay": {"1"}}), categoryURL)

	u, _ = store.GetUserByEmail(context.Background(), "ada@example.com")
	version := u.Version
	b, _ := u.Budget(u.CurrentBudgetID)
	entryID := b.Categories[0].Entries[0].ID

	expectRedirect(t, c.post(categoryURL, url.Values{"_method": {"PUT"}}), categoryURL)
	expectRedirect(t, c.post(categoryURL+"/entries/"+entryID, url.Values{"_method": {"PUT"}}), categoryURL)

	u, _ = store.GetUserByEmail(context.Background(), "ada@example.com")
	if u.Version != version {
		t.Errorf("version = %d, want %d: an empty update was saved", u.Version, version)
	}

	expectStatus(t, c.post(categoryURL+"/entries/missing", url.Values{"_method": {"PUT"}}), http.StatusNotFound)
	expectStatus(t, c.post(budgetURL+"/categories/missing", url.Values{"_method": {"PUT"}}), http.StatusNotFound)
}

func TestBudgetsAreScopedToTheirOwner(t *testing.T) {
	srv, _ := newTestServer(t)
	ada := signUp(t, srv, "ada@example.com")
	bob := signUp(t, srv, "bob@example.com")

	expectRedirect(t, ada.post("/budgets", url.Values{"month": {"2024-03"}}), "/dashboard")
	rr := ada.post("/budgets", url.Values{"month": {"2024-04"}})
	budgetURL := rr.Header().Get("Location")

	expectStatus(t, bob.get(budgetURL), http.StatusNotFound)
	expectStatus(t, bob.post(budgetURL+"/categories", url.Values{"name": {"X"}, "kind": {"income"}}), http.StatusNotFound)
	expectStatus(t, bob.post(budgetURL, url.Values{"_method": {"DELETE"}}), http.StatusNotFound)
	expectStatus(t, ada.get(budgetURL), http.StatusOK)
}

func TestHTMXErrorsReturnFragments(t *testing.T) {
	srv, _ := newTestServer(t)
	c := signUp(t, srv, "ada@example.com")

	rr := c.do(http.MethodGet, "/budgets/missing", nil, map[string]string{"HX-Request": "true"})
	expectStatus(t, rr, http.StatusNotFound)
	expectBody(t, rr, `<div class="error">`)
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "show-notification") {
		t.Errorf("HX-Trigger = %q, want show-notification", rr.Header().Get("HX-Trigger"))
	}

	rr = c.get("/budgets/missing")
	expectStatus(t, rr, http.StatusNotFound)
	expectBody(t, rr, "We couldn&#39;t find that.")
}
