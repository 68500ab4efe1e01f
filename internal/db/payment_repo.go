package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"truckmarket/internal/types"
)

// errAlreadyApplied aborts a fulfillment transaction whose payment reference
// was recorded earlier.
var errAlreadyApplied = errors.New("payment already recorded")

// FulfillmentStore applies paid orders. Each Apply method records the
// payment first; the unique stripe_session_id makes a replayed session or
// invoice a no-op that reports false.
type FulfillmentStore struct {
	pool  TxBeginner
	plans *PlanRepository
}

// NewFulfillmentStore creates a FulfillmentStore. db is used for reads that
// need no transaction.
func NewFulfillmentStore(pool TxBeginner, db DBTX) *FulfillmentStore {
	return &FulfillmentStore{pool: pool, plans: NewPlanRepository(db)}
}

// ApplyBoost features a listing until the given time.
func (s *FulfillmentStore) ApplyBoost(ctx context.Context, p *types.Payment, listingID string, until time.Time) (bool, error) {
	return s.apply(ctx, p, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE trucks SET is_featured = true, featured_until = $2, updated_at = $3 WHERE id = $1`,
			listingID,
			until,
			p.CreatedAt,
		)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to feature listing", err)
		}
		if tag.RowsAffected() == 0 {
			return types.NewAppError(types.ErrCodeNotFoundListing, "listing not found", nil)
		}
		return nil
	})
}

// ApplySellerPlan creates or replaces the seller's plan.
func (s *FulfillmentStore) ApplySellerPlan(ctx context.Context, p *types.Payment, plan *types.SellerPlan) (bool, error) {
	return s.apply(ctx, p, func(tx pgx.Tx) error {
		return upsertPlan(ctx, tx, plan)
	})
}

// ApplyAd stores a purchased ad, inactive until approved.
func (s *FulfillmentStore) ApplyAd(ctx context.Context, p *types.Payment, ad *types.Ad) (bool, error) {
	return s.apply(ctx, p, func(tx pgx.Tx) error {
		return insertAd(ctx, tx, ad)
	})
}

// GetPlanBySubscription finds the plan a processor subscription renews.
func (s *FulfillmentStore) GetPlanBySubscription(ctx context.Context, subscriptionID string) (*types.SellerPlan, error) {
	return s.plans.GetPlanBySubscription(ctx, subscriptionID)
}

func (s *FulfillmentStore) apply(ctx context.Context, p *types.Payment, effect func(tx pgx.Tx) error) (bool, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := effect(tx); err != nil {
			return err
		}
		inserted, err := insertPayment(ctx, tx, p)
		if err != nil {
			return err
		}
		if !inserted {
			return errAlreadyApplied
		}
		return nil
	})
	if errors.Is(err, errAlreadyApplied) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// insertPayment reports false when the reference already exists.
func insertPayment(ctx context.Context, q DBTX, p *types.Payment) (bool, error) {
	var metadata []byte
	if len(p.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(p.Metadata); err != nil {
			return false, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode payment metadata", err)
		}
	}
	tag, err := q.Exec(ctx,
		`INSERT INTO payments (id, payment_type, amount, stripe_session_id, seller_id, truck_id, ad_id, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (stripe_session_id) DO NOTHING`,
		p.ID,
		string(p.PaymentType),
		p.Amount,
		p.StripeRef,
		nilIfEmpty(p.SellerID),
		nilIfEmpty(p.ListingID),
		nilIfEmpty(p.AdID),
		metadata,
		p.CreatedAt,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to record payment", err)
	}
	return tag.RowsAffected() == 1, nil
}
