package db

import (
	"context"

	"truckmarket/internal/types"
)

// UsageRepository answers the per-seller usage questions the plan summary
// and listing-count endpoints ask.
type UsageRepository struct {
	listings *ListingRepository
	plans    *PlanRepository
}

// NewUsageRepository creates a new UsageRepository backed by the given
// database connection (pool or transaction).
func NewUsageRepository(db DBTX) *UsageRepository {
	return &UsageRepository{
		listings: NewListingRepository(db),
		plans:    NewPlanRepository(db),
	}
}

// CountAvailableListings counts the seller's listings with status available.
func (r *UsageRepository) CountAvailableListings(ctx context.Context, sellerID string) (int, error) {
	return r.listings.CountAvailableListings(ctx, sellerID)
}

// GetPlan returns the seller's plan, or nil when none was ever bought.
func (r *UsageRepository) GetPlan(ctx context.Context, sellerID string) (*types.SellerPlan, error) {
	return r.plans.GetPlan(ctx, sellerID)
}
