// This file implements the authentication handlers: signup, login,
// logout and the current-session lookup. Sessions are returned both in an
// HttpOnly cookie for browsers and in the body for API clients.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"truckmarket/internal/auth"
	"truckmarket/internal/core"
	"truckmarket/internal/types"
)

// --- DTOs ---

// SignupRequest is the request body for POST /auth/signup.
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
	FullName string `json:"full_name,omitempty" validate:"max=200"`
}

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by signup and login. Exactly one of User and
// Admin is set.
type AuthResponse struct {
	Token     string          `json:"token"`
	CSRFToken string          `json:"csrf_token"`
	Role      types.ActorType `json:"role"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      *types.User     `json:"user,omitempty"`
	Admin     *types.Admin    `json:"admin,omitempty"`
}

// MeResponse describes the caller of GET /auth/me.
type MeResponse struct {
	ID    string          `json:"id"`
	Email string          `json:"email"`
	Role  types.ActorType `json:"role"`
	User  *types.User     `json:"user,omitempty"`
}

// --- Service Interfaces ---

// AuthService is the credential and session contract. Implemented by
// auth.Service.
type AuthService interface {
	Signup(ctx context.Context, email, password, fullName, ip, userAgent string) (*auth.Login, error)
	Login(ctx context.Context, email, password, ip, userAgent string) (*auth.Login, error)
	Logout(ctx context.Context, token string) error
}

// --- Cookie Configuration ---

// CookieConfig defines the attributes of the session cookie.
type CookieConfig struct {
	Name   string
	Domain string
	Secure bool
	MaxAge int // seconds
	Path   string
}

// NewCookieConfig returns an HttpOnly cookie named name that lives as long
// as a session.
func NewCookieConfig(name string, secure bool, ttl time.Duration) CookieConfig {
	if name == "" {
		name = core.DefaultSessionCookie
	}
	return CookieConfig{
		Name:   name,
		Secure: secure,
		MaxAge: int(ttl / time.Second),
		Path:   "/",
	}
}

// --- Handler ---

// AuthHandler maps HTTP requests to the auth service and manages the
// session cookie.
type AuthHandler struct {
	auth      AuthService
	users     UserLookup
	cookie    CookieConfig
	validator *core.Validator
	verify    *VerificationHandler
	logger    *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(
	authSvc AuthService,
	users UserLookup,
	cookie CookieConfig,
	v *core.Validator,
	l *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:      authSvc,
		users:     users,
		cookie:    cookie,
		validator: v,
		logger:    loggerOrDefault(l),
	}
}

// WithVerification mounts the email confirmation routes under /auth.
func (h *AuthHandler) WithVerification(v *VerificationHandler) *AuthHandler {
	h.verify = v
	return h
}

// RegisterRoutes mounts the auth routes. Logout is public so a stale
// cookie can always be cleared.
func (h *AuthHandler) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.HandleSignup)
		r.Post("/login", h.HandleLogin)
		r.Post("/logout", h.HandleLogout)
		r.With(requireAuth).Get("/me", h.HandleMe)
		if h.verify != nil {
			h.verify.routes(r, requireAuth)
		}
	})
}

// HandleSignup processes POST /auth/signup.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	login, err := h.auth.Signup(r.Context(), req.Email, req.Password, strings.TrimSpace(req.FullName),
		core.ClientIP(r), r.UserAgent())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	h.setSessionCookie(w, login.Session.ID)
	core.Data(w, r, http.StatusCreated, authResponse(login))
}

// HandleLogin processes POST /auth/login. Unknown emails and wrong
// passwords get the same answer.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	login, err := h.auth.Login(r.Context(), req.Email, req.Password, core.ClientIP(r), r.UserAgent())
	if err != nil {
		h.handleAuthError(w, r, err)
		return
	}
	h.setSessionCookie(w, login.Session.ID)
	core.Data(w, r, http.StatusOK, authResponse(login))
}

// HandleLogout processes POST /auth/logout. The cookie is cleared even
// when the session could not be revoked; it expires on its own.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := h.sessionToken(r)
	if token != "" {
		if err := h.auth.Logout(r.Context(), token); err != nil {
			h.logger.WarnContext(r.Context(), "failed to revoke session during logout", "error", err)
		}
	}
	h.clearSessionCookie(w)
	core.NoContent(w)
}

// HandleMe processes GET /auth/me.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	resp := MeResponse{ID: actor.ID, Email: actor.Email, Role: actor.Type}
	if !actor.IsAdmin() {
		user, err := h.users.GetByID(r.Context(), actor.ID)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		resp.User = user
	}
	core.Data(w, r, http.StatusOK, resp)
}

func authResponse(l *auth.Login) AuthResponse {
	return AuthResponse{
		Token:     l.Session.ID,
		CSRFToken: l.Session.CSRFToken,
		Role:      l.Actor.Type,
		ExpiresAt: l.Session.ExpiresAt,
		User:      l.User,
		Admin:     l.Admin,
	}
}

// --- Cookie Helpers ---

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		MaxAge:   h.cookie.MaxAge,
		Path:     h.cookie.Path,
		Domain:   h.cookie.Domain,
		Secure:   h.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		Path:     h.cookie.Path,
		Domain:   h.cookie.Domain,
		Secure:   h.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionToken prefers the session resolved by the auth middleware, then
// the raw cookie.
func (h *AuthHandler) sessionToken(r *http.Request) string {
	if actor, ok := types.GetActor(r.Context()); ok && actor.SessionID != "" {
		return actor.SessionID
	}
	if c, err := r.Cookie(h.cookie.Name); err == nil {
		return c.Value
	}
	return ""
}

// --- Error Handling ---

// handleAuthError replaces internal login failure messages with
// user-facing ones. Unknown users are reported as bad credentials.
func (h *AuthHandler) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		core.Error(w, r, err)
		return
	}

	switch appErr.Code {
	case types.ErrCodeAuthLocked:
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthLocked,
			"Too many failed attempts. Try again later.",
			nil,
		))
	case types.ErrCodeAuthInvalidCreds, types.ErrCodeAuthUserNotFound:
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthInvalidCreds,
			"Invalid email or password.",
			nil,
		))
	default:
		core.Error(w, r, err)
	}
}
