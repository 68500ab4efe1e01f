package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"truckmarket/internal/types"
)

// VerificationRepository stores email verification tokens and marks users
// verified when one is redeemed.
type VerificationRepository struct {
	pool TxBeginner
	db   DBTX
}

// NewVerificationRepository creates a VerificationRepository. pool runs the
// redeem transaction; db serves single statements.
func NewVerificationRepository(pool TxBeginner, db DBTX) *VerificationRepository {
	return &VerificationRepository{pool: pool, db: db}
}

// Create stores a new token.
func (r *VerificationRepository) Create(ctx context.Context, t *types.VerificationToken) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO email_verification_tokens (token, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		t.Token, t.UserID, t.ExpiresAt, t.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to store verification token", err)
	}
	return nil
}

// Redeem deletes an unexpired token and stamps its user's
// email_verified_at with now. It returns the user id. An unknown, used or
// expired token is validation_invalid_verification_token. A user who was
// already verified keeps the original timestamp.
func (r *VerificationRepository) Redeem(ctx context.Context, token string, now time.Time) (string, error) {
	var userID string
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`DELETE FROM email_verification_tokens
			 WHERE token = $1 AND expires_at > $2
			 RETURNING user_id`,
			token, now,
		).Scan(&userID)
		if err != nil {
			return dbError(err, types.ErrCodeValidationVerifyToken, "redeem verification token")
		}

		if _, err := tx.Exec(ctx,
			`UPDATE users SET email_verified_at = $2 WHERE id = $1 AND email_verified_at IS NULL`,
			userID, now,
		); err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to mark email verified", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return userID, nil
}

// DeleteExpired removes tokens that expired at or before now.
func (r *VerificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM email_verification_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete expired verification tokens", err)
	}
	return tag.RowsAffected(), nil
}
