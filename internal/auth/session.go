package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"truckmarket/internal/types"
)

// DefaultSessionTTL is the lifetime of a new session.
const DefaultSessionTTL = 7 * 24 * time.Hour

// SessionPrefix starts every session token.
const SessionPrefix = "sess_"

// SessionStore persists sessions. GetByID reports a missing or expired
// session as auth_session_expired.
type SessionStore interface {
	Create(ctx context.Context, session *types.Session) error
	GetByID(ctx context.Context, id string, now time.Time) (*types.Session, error)
	Delete(ctx context.Context, id string) error
}

// TokenGenerator produces session and CSRF tokens.
type TokenGenerator interface {
	SessionToken() (string, error)
	CSRFToken() (string, error)
}

// RandomTokens draws tokens from crypto/rand.
type RandomTokens struct{}

// SessionToken returns "sess_" followed by 64 hex characters.
func (RandomTokens) SessionToken() (string, error) {
	s, err := randomHex(32)
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return SessionPrefix + s, nil
}

// CSRFToken returns 64 hex characters.
func (RandomTokens) CSRFToken() (string, error) {
	s, err := randomHex(32)
	if err != nil {
		return "", fmt.Errorf("generate CSRF token: %w", err)
	}
	return s, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Sessions issues and validates opaque session tokens.
type Sessions struct {
	store  SessionStore
	tokens TokenGenerator
	ttl    time.Duration
	clock  types.Clock
	logger *slog.Logger
}

// NewSessions creates a Sessions. Zero ttl means DefaultSessionTTL.
func NewSessions(store SessionStore, tokens TokenGenerator, ttl time.Duration, clock types.Clock, logger *slog.Logger) *Sessions {
	if tokens == nil {
		tokens = RandomTokens{}
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{store: store, tokens: tokens, ttl: ttl, clock: clock, logger: logger}
}

// TTL is the lifetime given to new sessions.
func (s *Sessions) TTL() time.Duration { return s.ttl }

// Issue creates and stores a session for subjectID.
func (s *Sessions) Issue(ctx context.Context, subjectID string, actor types.ActorType, ip, userAgent string) (*types.Session, error) {
	id, err := s.tokens.SessionToken()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to generate session", err)
	}
	csrf, err := s.tokens.CSRFToken()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to generate CSRF token", err)
	}

	now := s.clock.Now()
	session := &types.Session{
		ID:        id,
		SubjectID: subjectID,
		ActorType: actor,
		CSRFToken: csrf,
		IPAddress: ip,
		UserAgent: userAgent,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.store.Create(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("session created", "subject_id", subjectID, "actor_type", string(actor))
	return session, nil
}

// Validate returns the live session for token.
func (s *Sessions) Validate(ctx context.Context, token string) (*types.Session, error) {
	if !strings.HasPrefix(token, SessionPrefix) {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid session token", nil)
	}
	now := s.clock.Now()
	session, err := s.store.GetByID(ctx, token, now)
	if err != nil {
		return nil, err
	}
	if !session.ExpiresAt.After(now) {
		return nil, types.NewAppError(types.ErrCodeAuthSessionExpired, "session has expired", nil)
	}
	return session, nil
}

// Revoke deletes a session.
func (s *Sessions) Revoke(ctx context.Context, token string) error {
	return s.store.Delete(ctx, token)
}

// CanonicalizeEmail trims and lower-cases an address for lookups.
func CanonicalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
