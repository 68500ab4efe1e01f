package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"truckmarket/internal/types"
)

// AccountRepository removes a user and everything they own.
type AccountRepository struct {
	pool TxBeginner
}

// NewAccountRepository creates an AccountRepository.
func NewAccountRepository(pool TxBeginner) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// accountDeletion runs in order inside one transaction. Statements take the
// user id as $1 and, when they reference it, the seller id (possibly NULL)
// as $2.
var accountDeletion = []struct {
	what  string
	query string
}{
	{"saved listings", `DELETE FROM saved_trucks WHERE user_id = $1 OR truck_id IN (SELECT id FROM trucks WHERE seller_id = $2)`},
	{"payments", `DELETE FROM payments WHERE seller_id = $2`},
	{"listings", `DELETE FROM trucks WHERE seller_id = $2`},
	{"seller plan", `DELETE FROM seller_plans WHERE seller_id = $2`},
	{"reviews", `DELETE FROM reviews WHERE reviewer_id = $1 OR seller_id = $2`},
	{"seller", `DELETE FROM sellers WHERE id = $2`},
	{"blocks", `DELETE FROM user_blocks WHERE blocker_id = $1 OR blocked_id = $1`},
	{"reports", `DELETE FROM user_reports WHERE reporter_id = $1 OR reported_user_id = $1`},
	{"conversations", `DELETE FROM conversations WHERE participant_1 = $1 OR participant_2 = $1`},
	{"sessions", `DELETE FROM sessions WHERE subject_id = $1`},
	{"profile", `DELETE FROM users WHERE id = $1`},
}

// DeleteAccount removes the user's seller profile with its listings, plan
// and payments, the user's bookmarks, reviews, blocks, conversations,
// sessions and profile. Financing requests submitted under the same email
// are kept but detached from their buyer, whose row is removed.
func (r *AccountRepository) DeleteAccount(ctx context.Context, userID, email string) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var sellerID *string
		err := tx.QueryRow(ctx, `SELECT id FROM sellers WHERE user_id = $1 FOR UPDATE`, userID).Scan(&sellerID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to look up seller", err)
		}

		for _, step := range accountDeletion {
			args := []any{userID}
			if strings.Contains(step.query, "$2") {
				args = append(args, sellerID)
			}
			if _, err := tx.Exec(ctx, step.query, args...); err != nil {
				return types.NewAppError(types.ErrCodeInternalDB, "failed to delete "+step.what, err)
			}
		}

		_, err = tx.Exec(ctx,
			`UPDATE financing_requests SET buyer_id = NULL
			 WHERE buyer_id IN (SELECT id FROM buyers WHERE LOWER(email) = LOWER($1))`,
			email,
		)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to detach financing requests", err)
		}
		_, err = tx.Exec(ctx, `DELETE FROM buyers WHERE LOWER(email) = LOWER($1)`, email)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to delete buyer", err)
		}
		return nil
	})
}
