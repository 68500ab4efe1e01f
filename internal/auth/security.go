// Package auth implements password login, opaque sessions and login abuse
// tracking for marketplace users and back-office admins.
package auth

import (
	"context"
	"log/slog"
	"time"

	"truckmarket/internal/types"
)

// GuardConfig holds the brute force thresholds.
type GuardConfig struct {
	// IPThreshold is how many failures one IP may accumulate in Window
	// before every attempt from it is refused.
	IPThreshold int

	// IdentifierThreshold is the failure count for a single email.
	IdentifierThreshold int

	Window time.Duration
}

// DefaultGuardConfig returns 100 failures per IP and 5 per email within 15
// minutes.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		IPThreshold:         100,
		IdentifierThreshold: 5,
		Window:              15 * time.Minute,
	}
}

// AttemptStore persists login and signup attempts.
type AttemptStore interface {
	LogAttempt(ctx context.Context, event *types.SecurityEvent) error
	CountRecentFailuresByIP(ctx context.Context, ip string, since time.Time) (int, error)
	CountRecentFailuresByIdentifier(ctx context.Context, identifier string, since time.Time) (int, error)
}

// LoginGuard implements types.SecurityService over an AttemptStore.
type LoginGuard struct {
	store  AttemptStore
	config GuardConfig
	clock  types.Clock
	logger *slog.Logger
}

var _ types.SecurityService = (*LoginGuard)(nil)

// NewLoginGuard creates a LoginGuard. A nil clock uses wall time, and zero
// config fields take their DefaultGuardConfig values.
func NewLoginGuard(store AttemptStore, config GuardConfig, clock types.Clock, logger *slog.Logger) *LoginGuard {
	defaults := DefaultGuardConfig()
	if config.IPThreshold <= 0 {
		config.IPThreshold = defaults.IPThreshold
	}
	if config.IdentifierThreshold <= 0 {
		config.IdentifierThreshold = defaults.IdentifierThreshold
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LoginGuard{store: store, config: config, clock: clock, logger: logger}
}

// RecordAttempt stores one attempt.
func (g *LoginGuard) RecordAttempt(ctx context.Context, eventType, identifier, ip string, success bool, reason string) error {
	err := g.store.LogAttempt(ctx, &types.SecurityEvent{
		EventType:     eventType,
		Identifier:    identifier,
		IPAddress:     ip,
		AttemptedAt:   g.clock.Now(),
		Success:       success,
		FailureReason: reason,
	})
	if err != nil {
		g.logger.Error("failed to record security attempt",
			"event_type", eventType,
			"ip", ip,
			"error", err,
		)
		return err
	}
	return nil
}

// IsIPBlocked reports whether ip reached the failure threshold. Lookup
// errors fail open.
func (g *LoginGuard) IsIPBlocked(ctx context.Context, ip string) bool {
	return g.over(ctx, "ip", ip, g.config.IPThreshold, g.store.CountRecentFailuresByIP)
}

// IsIdentifierBlocked reports whether the email reached its failure
// threshold. Lookup errors fail open.
func (g *LoginGuard) IsIdentifierBlocked(ctx context.Context, identifier string) bool {
	return g.over(ctx, "identifier", identifier, g.config.IdentifierThreshold, g.store.CountRecentFailuresByIdentifier)
}

// Allow reports whether a login for email from ip may proceed.
func (g *LoginGuard) Allow(ctx context.Context, email, ip string) bool {
	return !g.IsIdentifierBlocked(ctx, email) && !g.IsIPBlocked(ctx, ip)
}

func (g *LoginGuard) over(
	ctx context.Context,
	kind, key string,
	threshold int,
	count func(context.Context, string, time.Time) (int, error),
) bool {
	if threshold <= 0 || key == "" {
		return false
	}
	n, err := count(ctx, key, g.clock.Now().Add(-g.config.Window))
	if err != nil {
		g.logger.Error("failed to check block status", "kind", kind, "error", err)
		return false
	}
	return n >= threshold
}
