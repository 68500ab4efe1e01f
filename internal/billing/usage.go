package billing

import (
	"context"

	"truckmarket/internal/types"
	"truckmarket/internal/visibility"
)

// UsageDB is the minimal read access the usage reporter needs.
type UsageDB interface {
	// CountAvailableListings counts the seller's listings with status
	// available.
	CountAvailableListings(ctx context.Context, sellerID string) (int, error)

	// GetPlan returns the seller's plan, or nil when none was ever bought.
	GetPlan(ctx context.Context, sellerID string) (*types.SellerPlan, error)
}

// ListingUsage is a seller's available-listing count against their cap.
type ListingUsage struct {
	Count int `json:"count"`
	Limit int `json:"limit"`
}

// UsageReporter reports a seller's plan and consumption as of now.
type UsageReporter struct {
	db    UsageDB
	clock types.Clock
}

// NewUsageReporter creates a UsageReporter.
func NewUsageReporter(db UsageDB, clock types.Clock) *UsageReporter {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &UsageReporter{db: db, clock: clock}
}

// GetListingUsage returns the seller's available count and effective limit.
// An empty sellerID means the caller has no seller profile yet.
func (r *UsageReporter) GetListingUsage(ctx context.Context, sellerID string) (ListingUsage, error) {
	if sellerID == "" {
		return ListingUsage{Count: 0, Limit: visibility.ListingLimit(types.TierFree)}, nil
	}

	plan, err := r.db.GetPlan(ctx, sellerID)
	if err != nil {
		return ListingUsage{}, err
	}
	count, err := r.db.CountAvailableListings(ctx, sellerID)
	if err != nil {
		return ListingUsage{}, err
	}

	res := visibility.ResolveTier(plan, r.clock.Now())
	return ListingUsage{Count: count, Limit: visibility.ListingLimit(res.Tier)}, nil
}

// GetPlanSummary describes the seller's plan. Callers without a seller
// profile get the free summary.
func (r *UsageReporter) GetPlanSummary(ctx context.Context, sellerID string) (visibility.PlanSummary, error) {
	if sellerID == "" {
		return visibility.Summarize(nil, r.clock.Now()), nil
	}
	plan, err := r.db.GetPlan(ctx, sellerID)
	if err != nil {
		return visibility.PlanSummary{}, err
	}
	return visibility.Summarize(plan, r.clock.Now()), nil
}
