package core

import (
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"truckmarket/internal/types"
)

const (
	errCodeIPBlocked   types.ErrorCode = "permission_ip_blocked"
	errCodeCSRFInvalid types.ErrorCode = "permission_csrf_invalid"
)

// csrfHeader carries the CSRF token of a cookie session.
const csrfHeader = "X-CSRF-Token"

// IPSecurityMiddleware refuses requests from IPs the SecurityService has
// blocked for excessive failed logins. It runs before authentication.
func (s *Server) IPSecurityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.SecurityService == nil {
			next.ServeHTTP(w, r)
			return
		}

		ip := ClientIP(r)
		if s.SecurityService.IsIPBlocked(r.Context(), ip) {
			s.Logger.Warn("blocked request from IP",
				slog.String("ip", ip),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			Error(w, r, types.NewAppError(errCodeIPBlocked, "access denied", nil))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// CSRFMiddleware requires unsafe requests from cookie sessions to echo the
// session's CSRF token in X-CSRF-Token. Bearer tokens and anonymous
// requests are not subject to the check.
func (s *Server) CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSafeMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		actor, ok := types.GetActor(r.Context())
		if !ok || !actor.ViaCookie {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get(csrfHeader)
		expected, hasToken := types.GetSessionCSRFToken(r.Context())
		switch {
		case !hasToken || header == "":
			s.Logger.Warn("CSRF token missing",
				slog.String("actor_id", actor.ID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			Error(w, r, types.NewAppError(errCodeCSRFInvalid, "CSRF token is required for this request", nil))
			return
		case subtle.ConstantTimeCompare([]byte(header), []byte(expected)) != 1:
			s.Logger.Warn("CSRF token mismatch",
				slog.String("actor_id", actor.ID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			Error(w, r, types.NewAppError(errCodeCSRFInvalid, "CSRF token is invalid", nil))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the first X-Forwarded-For entry, or the host part of
// RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
