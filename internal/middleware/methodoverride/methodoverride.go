// Package methodoverride lets HTML forms, which can only POST, reach PUT and
// DELETE routes through a hidden "_method" field.
package methodoverride

import (
	"net/http"
	"strings"
)

const (
	FormField = "_method"
	Header    = "X-HTTP-Method-Override"
)

var allowed = map[string]bool{
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Middleware rewrites POST requests carrying an allowed override. Other
// methods and unknown overrides pass through untouched.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if m := override(r); m != "" {
				r2 := r.Clone(r.Context())
				r2.Method = m
				r = r2
			}
		}
		next.ServeHTTP(w, r)
	})
}

func override(r *http.Request) string {
	m := strings.ToUpper(strings.TrimSpace(r.Header.Get(Header)))
	if m == "" && isForm(r) {
		// ParseForm caches the result on r; handlers read the same values.
		if err := r.ParseForm(); err == nil {
			m = strings.ToUpper(strings.TrimSpace(r.PostForm.Get(FormField)))
		}
	}
	if allowed[m] {
		return m
	}
	return ""
}

func isForm(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
}
