package http

import (
	"errors"
	"net/http"

	"budgets/internal/auth"
	"budgets/internal/core"
	"budgets/internal/log"
)

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// redirect sends a 303 to plain browsers and an HX-Redirect to HTMX.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, url string) {
	if isHTMX(r) {
		NewHTMXResponse().Redirect(url).Write(w)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// isInputError reports errors the user can fix by editing the form.
func isInputError(err error) bool {
	return errors.Is(err, core.ErrValidation) || errors.Is(err, core.ErrInvalidPeriod)
}

// userMessage is the text shown next to a form for err.
func userMessage(err error) string {
	var verr *core.ValidationError
	var aerr *core.AuthError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.As(err, &aerr):
		return aerr.Reason
	case errors.Is(err, core.ErrInvalidPeriod):
		return "Pick a valid month."
	}
	return "Something went wrong."
}

type errorPage struct {
	page
	Status  int
	Message string
}

// handleError answers a failed request that has no form to re-render:
// 404 for unknown ids, 422 for bad input, 401 for auth failures and a
// generic 500 for everything else. Only the 500 detail is logged.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, "Something went wrong. Please try again."
	errType := log.ErrorTypeInternal
	switch {
	case errors.Is(err, core.ErrNotFound):
		status, msg, errType = http.StatusNotFound, "We couldn't find that.", log.ErrorTypeNotFound
	case isInputError(err):
		status, msg, errType = http.StatusUnprocessableEntity, userMessage(err), log.ErrorTypeValidation
	case errors.Is(err, core.ErrAuth):
		status, msg, errType = http.StatusUnauthorized, userMessage(err), log.ErrorTypeAuth
	}

	logger := log.FromContext(r.Context()).WithComponent(log.ComponentHTTP)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldErrorType, errType,
			log.FieldError, err)
	} else {
		logger.DebugContext(r.Context(), "Request rejected",
			log.FieldPath, r.URL.Path,
			log.FieldErrorType, errType,
			log.FieldError, err)
	}

	if isHTMX(r) {
		ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
		return
	}
	p := errorPage{page: newPage(http.StatusText(status), nil), Status: status, Message: msg}
	_, p.SignedIn = auth.UserIDFromContext(r.Context())
	s.render(w, r, status, "error.html", p)
}
