package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"truckmarket/internal/types"
	"truckmarket/internal/visibility"
)

// AdmissionStore writes listings that may count against the seller's plan
// cap. The seller row is locked for the duration of the check and write, so
// concurrent creates for one seller are serialized and the later one sees
// the earlier insert.
type AdmissionStore struct {
	pool  TxBeginner
	clock types.Clock
}

// NewAdmissionStore creates an AdmissionStore. A nil clock uses wall time.
func NewAdmissionStore(pool TxBeginner, clock types.Clock) *AdmissionStore {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &AdmissionStore{pool: pool, clock: clock}
}

// AdmitAndCreate inserts l. An available listing is rejected with
// limit_listing_reached when the seller is at the cap of their effective
// tier.
func (s *AdmissionStore) AdmitAndCreate(ctx context.Context, l *types.Listing) error {
	now := s.clock.Now()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = l.CreatedAt
	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockSeller(ctx, tx, l.SellerID); err != nil {
			return err
		}
		if err := admit(ctx, tx, l.SellerID, "", l.Status, now); err != nil {
			return err
		}
		return insertListing(ctx, tx, l)
	})
}

// AdmitAndUpdate applies patch to a seller's listing. When the resulting
// status is available the cap is checked, not counting the listing itself.
func (s *AdmissionStore) AdmitAndUpdate(ctx context.Context, id, sellerID string, patch types.ListingPatch) (*types.Listing, error) {
	now := s.clock.Now()
	var updated *types.Listing
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockSeller(ctx, tx, sellerID); err != nil {
			return err
		}
		current, err := getListing(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.SellerID != sellerID {
			return types.NewAppError(types.ErrCodePermissionOwner, "listing belongs to another seller", nil)
		}
		status := current.Status
		if patch.Status != nil {
			status = *patch.Status
		}
		if status == types.ListingAvailable && current.Status != types.ListingAvailable {
			if err := admit(ctx, tx, sellerID, id, status, now); err != nil {
				return err
			}
		}
		updated, err = updateListing(ctx, tx, id, patch, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func lockSeller(ctx context.Context, tx pgx.Tx, sellerID string) error {
	var id string
	err := tx.QueryRow(ctx, `SELECT id FROM sellers WHERE id = $1 FOR UPDATE`, sellerID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.NewAppError(types.ErrCodeNotFoundSeller, "seller not found", nil)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to lock seller", err)
	}
	return nil
}

func admit(ctx context.Context, q DBTX, sellerID, exceptID string, status types.ListingStatus, now time.Time) error {
	if status != types.ListingAvailable {
		return nil
	}
	plan, err := getPlan(ctx, q, sellerID)
	if err != nil {
		return err
	}
	count, err := countAvailable(ctx, q, sellerID, exceptID)
	if err != nil {
		return err
	}
	limit := visibility.ListingLimit(visibility.ResolveTier(plan, now).Tier)
	return visibility.CanAdmit(count, limit, status).Err()
}
