package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/reqforge/apiserver/internal/logging"
	"github.com/reqforge/apiserver/internal/services"
	"github.com/reqforge/apiserver/internal/session"
	"github.com/reqforge/apiserver/internal/store"
)

const (
	minPasswordLength   = 6
	defaultRedirectTo   = "/dashboard"
	loginPath           = "/login"
	genericRetryMessage = "something went wrong, please try again later"
)

// AuthHandler provides the authentication endpoints: register, login,
// logout and the password-reset flow.
type AuthHandler struct {
	auth     *services.AuthService
	sessions *session.Codec
	log      logging.Logger
}

func NewAuthHandler(auth *services.AuthService, sessions *session.Codec, log logging.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions, log: log}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, auth *services.AuthService, sessions *session.Codec, log logging.Logger) {
	handler := NewAuthHandler(auth, sessions, log)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/logout", handler.Logout)
	r.Post("/forgot-password", handler.ForgotPassword)
	r.Get("/reset-password/{token}", handler.CheckResetToken)
	r.Post("/reset-password/{token}", handler.ResetPassword)
	r.With(handler.RequireSession).Get("/me", handler.Me)
}

// RequireSession is the single gate every protected route depends on. When no
// valid session is present it redirects to the login page, carrying the
// original path so the login flow can send the user back.
func (h *AuthHandler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := h.sessions.Read(r)
		if !ok {
			params := url.Values{"redirectTo": {r.URL.Path}}
			http.Redirect(w, r, loginPath+"?"+params.Encode(), http.StatusSeeOther)
			return
		}

		ctx := context.WithValue(r.Context(), contextUserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Register creates an account and starts a session.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}

	email := formValue(r, "email")
	password := r.PostFormValue("password")
	name := formValue(r, "name")
	if _, err := mail.ParseAddress(email); err != nil {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if len(password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	user, err := h.auth.Register(r.Context(), email, password, name)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "an account with this email already exists")
			return
		}
		h.log.Error(r.Context(), "register failed", "error", err)
		writeError(w, http.StatusInternalServerError, genericRetryMessage)
		return
	}

	h.startSession(w, r, user.ID, redirectTo(r))
}

// Login verifies credentials and starts a session. An unknown email and a
// wrong password produce the same response.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}

	email := formValue(r, "email")
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.auth.Login(r.Context(), email, password)
	if err != nil {
		h.log.Error(r.Context(), "login failed", "error", err)
		writeError(w, http.StatusInternalServerError, genericRetryMessage)
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "incorrect email or password")
		return
	}

	h.startSession(w, r, user.ID, redirectTo(r))
}

// Logout destroys the session and redirects home. It never fails: even when
// the cookie is unreadable the client still gets an expired replacement.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.sessions.Destroy())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ForgotPassword issues a reset token. The response is identical whether or
// not the email is registered.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}

	email := formValue(r, "email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	if err := h.auth.RequestPasswordReset(r.Context(), email); err != nil {
		h.log.Error(r.Context(), "password reset request failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, genericRetryMessage)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// CheckResetToken tells the reset form whether its token is still usable,
// without consuming it.
func (h *AuthHandler) CheckResetToken(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.ValidateResetToken(r.Context(), chi.URLParam(r, "token")); err != nil {
		if errors.Is(err, services.ErrInvalidResetToken) {
			writeError(w, http.StatusBadRequest, "this reset link is invalid or has expired")
			return
		}
		h.log.Error(r.Context(), "reset token check failed", "error", err)
		writeError(w, http.StatusInternalServerError, genericRetryMessage)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

// ResetPassword consumes the token from the reset link and sets the new
// password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}

	token := chi.URLParam(r, "token")
	password := r.PostFormValue("password")
	if len(password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	if err := h.auth.ResetPassword(r.Context(), token, password); err != nil {
		if errors.Is(err, services.ErrInvalidResetToken) {
			writeError(w, http.StatusBadRequest, "this reset link is invalid or has expired")
			return
		}
		h.log.Error(r.Context(), "password reset failed", "error", err)
		writeError(w, http.StatusInternalServerError, genericRetryMessage)
		return
	}

	http.Redirect(w, r, loginPath+"?reset=success", http.StatusSeeOther)
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.auth.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The account behind the cookie is gone; clear it.
			http.SetCookie(w, h.sessions.Destroy())
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeError(w, http.StatusInternalServerError, genericRetryMessage)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, userID, to string) {
	token, err := h.sessions.Issue(userID)
	if err != nil {
		h.log.Error(r.Context(), "session issue failed", "error", err)
		writeError(w, http.StatusInternalServerError, genericRetryMessage)
		return
	}
	http.SetCookie(w, h.sessions.Cookie(token))
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// redirectTo extracts a safe post-login destination from the form, falling
// back to the dashboard. Only local paths are honored.
func redirectTo(r *http.Request) string {
	to := formValue(r, "redirectTo")
	if to == "" || to[0] != '/' || (len(to) > 1 && to[1] == '/') {
		return defaultRedirectTo
	}
	return to
}
