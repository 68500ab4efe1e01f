package core

import (
	"context"
	"time"

	"truckmarket/internal/types"
)

// Authenticator turns an opaque session token into the actor behind it.
// auth.Service is the production implementation.
type Authenticator interface {
	// ResolveSession returns auth_token_invalid for malformed or unknown
	// tokens and auth_session_expired for expired ones.
	ResolveSession(ctx context.Context, token string) (*types.Actor, *types.Session, error)
}

// RateLimitStore counts requests per key in fixed windows.
type RateLimitStore interface {
	// IncrementAndCheck counts one request for key and reports whether it
	// fits in limit for the current window.
	IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error)
}

// RateLimitResult is the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}
