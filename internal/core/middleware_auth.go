package core

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"truckmarket/internal/types"
)

// DefaultSessionCookie is used when the config names no cookie.
const DefaultSessionCookie = "tm_session"

type authErrKey struct{}

// AuthMiddleware resolves the caller when a session token is present and
// leaves anonymous requests untouched; RequireAuth and RequireAdmin decide
// per route whether an actor is needed.
//
// A token is read from "Authorization: Bearer" first, then from the session
// cookie. A bad bearer token is rejected with 401 immediately. A bad cookie
// is remembered so public pages still render and RequireAuth can report the
// precise reason.
//
// Cookie sessions additionally carry their CSRF token in the context for
// CSRFMiddleware.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Authenticator == nil {
			next.ServeHTTP(w, r)
			return
		}

		token, viaCookie := s.sessionToken(r)
		if token == "" && r.Header.Get("Authorization") != "" {
			Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "bearer token is required", nil))
			return
		}
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		actor, session, err := s.Authenticator.ResolveSession(r.Context(), token)
		if err == nil && (actor == nil || session == nil) {
			err = types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid authentication token", nil)
		}
		if err != nil {
			err = s.authFailure(r, err)
			if !viaCookie {
				Error(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), authErrKey{}, err)))
			return
		}

		a := *actor
		a.ViaCookie = viaCookie
		a.SessionID = session.ID
		ctx := types.WithActor(r.Context(), a)
		if viaCookie {
			ctx = types.WithSessionCSRFToken(ctx, session.CSRFToken)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionCookieName is the cookie holding browser session tokens.
func (s *Server) SessionCookieName() string {
	if s.Config != nil && s.Config.Auth.CookieName != "" {
		return s.Config.Auth.CookieName
	}
	return DefaultSessionCookie
}

func (s *Server) sessionToken(r *http.Request) (token string, viaCookie bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		return extractBearerToken(h), false
	}
	if c, err := r.Cookie(s.SessionCookieName()); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

// extractBearerToken returns the token of a "Bearer <token>" header. The
// scheme is case-insensitive.
func extractBearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// authFailure logs a resolution failure and maps it to a client-safe 401.
func (s *Server) authFailure(r *http.Request, err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case types.ErrCodeAuthSessionExpired:
			s.Logger.Info("authentication failed: session expired", slog.String("path", r.URL.Path))
			return types.NewAppError(types.ErrCodeAuthSessionExpired, "session has expired", nil)
		case types.ErrCodeAuthTokenInvalid, types.ErrCodeAuthTokenExpired:
			s.Logger.Warn("authentication failed: token invalid",
				slog.String("path", r.URL.Path),
				slog.String("error_code", string(appErr.Code)),
			)
			return types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid authentication token", nil)
		}
	}

	s.Logger.Error("authentication failed: unexpected error",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	return types.NewAppError(types.ErrCodeAuthTokenInvalid, "authentication failed", nil)
}

// RequireAuth rejects requests without an actor.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := types.GetActor(r.Context()); !ok {
			Error(w, r, missingAuth(r))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose actor is not an admin.
func (s *Server) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := types.GetActor(r.Context())
		if !ok {
			Error(w, r, missingAuth(r))
			return
		}
		if !actor.IsAdmin() {
			Error(w, r, types.NewAppError(types.ErrCodePermissionRole, "admin access required", nil))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func missingAuth(r *http.Request) error {
	if err, ok := r.Context().Value(authErrKey{}).(error); ok {
		return err
	}
	return types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil)
}
