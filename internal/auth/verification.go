package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"truckmarket/internal/types"
)

// VerificationTTL is how long an emailed verification link stays valid.
const VerificationTTL = 24 * time.Hour

// VerificationStore persists email verification tokens.
type VerificationStore interface {
	Create(ctx context.Context, token *types.VerificationToken) error
	Redeem(ctx context.Context, token string, now time.Time) (string, error)
}

// Verifier issues and redeems email verification tokens.
type Verifier struct {
	store    VerificationStore
	newToken func() (string, error)
	clock    types.Clock
	logger   *slog.Logger
}

// NewVerifier creates a Verifier drawing tokens from crypto/rand.
func NewVerifier(store VerificationStore, clock types.Clock, logger *slog.Logger) *Verifier {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{store: store, newToken: verificationToken, clock: clock, logger: logger}
}

// Issue stores a fresh token for userID that expires after VerificationTTL.
func (v *Verifier) Issue(ctx context.Context, userID string) (*types.VerificationToken, error) {
	raw, err := v.newToken()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to generate verification token", err)
	}
	now := v.clock.Now()
	t := &types.VerificationToken{
		Token:     raw,
		UserID:    userID,
		ExpiresAt: now.Add(VerificationTTL),
		CreatedAt: now,
	}
	if err := v.store.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Redeem consumes token and marks its user verified, returning the user id.
func (v *Verifier) Redeem(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", types.NewAppError(types.ErrCodeValidationMissingField, "token is required", nil)
	}
	userID, err := v.store.Redeem(ctx, token, v.clock.Now())
	if err != nil {
		return "", err
	}
	v.logger.InfoContext(ctx, "email verified", "user_id", userID)
	return userID, nil
}

// verificationToken returns 64 hex characters.
func verificationToken() (string, error) {
	s, err := randomHex(32)
	if err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}
	return s, nil
}
