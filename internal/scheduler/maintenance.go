package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionPurger deletes sessions that are past their expiry.
type SessionPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// VerificationPurger deletes email verification links past their expiry.
type VerificationPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SecurityEventPurger deletes login audit rows older than a cutoff.
type SecurityEventPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupService runs the retention purges.
type CleanupService struct {
	sessions SessionPurger
	tokens   VerificationPurger
	events   SecurityEventPurger
	logger   *slog.Logger
}

func NewCleanupService(
	sessions SessionPurger,
	tokens VerificationPurger,
	events SecurityEventPurger,
	logger *slog.Logger,
) *CleanupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupService{sessions: sessions, tokens: tokens, events: events, logger: logger}
}

// PurgeExpiredSessions removes every session whose expires_at is not after now.
func (c *CleanupService) PurgeExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	n, err := c.sessions.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	c.logger.InfoContext(ctx, "expired sessions purged", "count", n)
	return int(n), nil
}

// PurgeVerificationTokens removes verification links that expired unused.
func (c *CleanupService) PurgeVerificationTokens(ctx context.Context, now time.Time) (int, error) {
	n, err := c.tokens.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired verification tokens: %w", err)
	}
	c.logger.InfoContext(ctx, "expired verification tokens purged", "count", n)
	return int(n), nil
}

// PurgeSecurityEvents removes login attempts older than retention. The login
// guard only reads attempts inside its window, so retention must be longer
// than that window.
func (c *CleanupService) PurgeSecurityEvents(ctx context.Context, now time.Time, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("security event retention must be positive, got %s", retention)
	}
	n, err := c.events.PurgeBefore(ctx, now.Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("purging security events: %w", err)
	}
	c.logger.InfoContext(ctx, "security events purged", "count", n, "retention", retention.String())
	return int(n), nil
}
