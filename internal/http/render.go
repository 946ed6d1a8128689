package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strconv"
	"strings"

	"budgets/internal/core"
	"budgets/internal/log"
)

// shared templates are parsed into every page.
var sharedTemplates = []string{"templates/layout.html", "templates/partials.html"}

var templateFuncs = template.FuncMap{
	"money":     formatMoney,
	"negative":  func(m core.Money) bool { return m.Cents < 0 },
	"kinds":     core.Kinds,
	"bucketRow": newBucketRow,
}

// bucketRow lets the bucket partial link categories back to their budget.
type bucketRow struct {
	BudgetID string
	core.BucketSummary
}

func newBucketRow(budgetID string, b core.BucketSummary) bucketRow {
	return bucketRow{BudgetID: budgetID, BucketSummary: b}
}

// loadPages parses each page together with the layout so every page can
// define its own "title" and "content" blocks.
func loadPages(fsys fs.FS) (map[string]*template.Template, error) {
	files, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	pages := make(map[string]*template.Template)
	for _, f := range files {
		if isShared(f) {
			continue
		}
		name := path.Base(f)
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(fsys, append(sharedTemplates, f)...)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no page templates found")
	}
	return pages, nil
}

func isShared(f string) bool {
	for _, s := range sharedTemplates {
		if s == f {
			return true
		}
	}
	return false
}

// page is embedded by every view model.
type page struct {
	Title    string
	User     *core.User
	Error    string
	SignedIn bool
}

func newPage(title string, u *core.User) page {
	return page{Title: title, User: u, SignedIn: u != nil}
}

// privatePage is newPage for routes behind RequireUser, where u may not
// have been loaded.
func privatePage(title string, u *core.User) page {
	p := newPage(title, u)
	p.SignedIn = true
	return p
}

// render executes a page into a buffer first so a template failure turns
// into a clean 500 instead of a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	t, ok := s.pages[name]
	if !ok {
		s.logger.ErrorContext(r.Context(), "Unknown template",
			"template", name,
			log.FieldErrorType, log.ErrorTypeConfiguration)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			"template", name,
			log.FieldOperation, log.OpRender,
			log.FieldError, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// formatMoney renders cents as "$1,234.56" or "-$5.00".
func formatMoney(m core.Money) string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	s := fmt.Sprintf("$%s.%02d", b.String(), cents%100)
	if neg {
		return "-" + s
	}
	return s
}
