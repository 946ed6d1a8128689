package http

import (
	"errors"
	"net/http"

	"budgets/internal/auth"
	"budgets/internal/core"
	"budgets/internal/log"
)

type authPage struct {
	page
	Email     string
	FirstName string
	LastName  string
}

func (s *Server) handleSignInForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "sign_in.html", authPage{page: newPage("Sign in", nil)})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	v, err := formValues(r)
	if err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	email := field(v, "email")
	sess, err := s.auth.SignIn(r.Context(), email, v.Get("password"))
	if err != nil {
		s.authFailed(w, r, "sign_in.html", "Sign in", authPage{Email: email}, err)
		return
	}
	auth.SetSessionCookie(w, sess.Token, sess.ExpiresAt, s.secureCookie)
	s.redirect(w, r, "/dashboard")
}

func (s *Server) handleSignUpForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "sign_up.html", authPage{page: newPage("Create an account", nil)})
}

// handleSignUp creates the account and signs the new user in straight away.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	v, err := formValues(r)
	if err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	in := auth.SignUpInput{
		Email:           field(v, "email"),
		FirstName:       field(v, "firstName"),
		LastName:        field(v, "lastName"),
		Password:        v.Get("password"),
		ConfirmPassword: v.Get("confirmPassword"),
	}
	form := authPage{Email: in.Email, FirstName: in.FirstName, LastName: in.LastName}

	u, err := s.auth.SignUp(r.Context(), in)
	if err != nil {
		s.authFailed(w, r, "sign_up.html", "Create an account", form, err)
		return
	}
	sess, err := s.auth.StartSession(r.Context(), u.ID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	auth.SetSessionCookie(w, sess.Token, sess.ExpiresAt, s.secureCookie)
	s.redirect(w, r, "/dashboard")
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.SignOut(r.Context(), auth.TokenFromRequest(r)); err != nil {
		s.logger.WarnContext(r.Context(), "Sign-out failed", log.FieldError, err)
	}
	auth.ClearSessionCookie(w, s.secureCookie)
	s.redirect(w, r, "/auth/sign-in")
}

// authFailed re-renders an auth form with the reason: 401 for rejected
// credentials and 422 for invalid input.
func (s *Server) authFailed(w http.ResponseWriter, r *http.Request, tmpl, title string, form authPage, err error) {
	var status int
	switch {
	case errors.Is(err, core.ErrAuth):
		status = http.StatusUnauthorized
	case isInputError(err):
		status = http.StatusUnprocessableEntity
	default:
		s.handleError(w, r, err)
		return
	}
	s.metrics.authFailures.Add(1)
	form.page = newPage(title, nil)
	form.Error = userMessage(err)
	s.render(w, r, status, tmpl, form)
}
