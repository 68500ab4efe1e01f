// Package billing prices the marketplace's paid products (listing boosts,
// seller plans and banner ads), opens checkout sessions for them and applies
// completed payments.
package billing

import (
	"fmt"
	"time"

	"truckmarket/internal/types"
	"truckmarket/internal/visibility"
)

// One-off products.
const (
	BoostPriceCents = 2900
	BoostDuration   = 7 * 24 * time.Hour

	AdPriceCents = 9900
	AdRunDays    = 30
)

// PlanPeriod is how long one paid plan cycle lasts.
const PlanPeriod = 30 * 24 * time.Hour

// Plan describes one seller tier as it is sold.
type Plan struct {
	Tier         types.Tier `json:"tier"`
	Label        string     `json:"label"`
	MonthlyPrice float64    `json:"monthly_price"`
	ListingLimit int        `json:"listing_limit"`
	PhotoLimit   int        `json:"photo_limit"`
	PriceID      string     `json:"-"`
}

// PlanRegistry is the catalog of seller tiers.
type PlanRegistry interface {
	// GetPlan returns the catalog entry for tier. Unknown tiers get the
	// free entry.
	GetPlan(tier types.Tier) Plan

	// PriceID returns the payment processor price for a paid tier.
	PriceID(tier types.Tier) (string, error)

	// PaidPlans lists the purchasable tiers, cheapest first.
	PaidPlans() []Plan
}

var monthlyPrices = map[types.Tier]float64{
	types.TierFree:    0,
	types.TierPro:     19.99,
	types.TierProPlus: 39.99,
	types.TierDealer:  99.99,
}

type staticPlanRegistry struct {
	plans map[types.Tier]Plan
}

// NewStaticPlanRegistry builds the catalog. priceIDs maps each paid tier to
// its processor price; tiers missing from it cannot be checked out.
func NewStaticPlanRegistry(priceIDs map[types.Tier]string) PlanRegistry {
	plans := make(map[types.Tier]Plan, len(monthlyPrices))
	for tier, price := range monthlyPrices {
		plans[tier] = Plan{
			Tier:         tier,
			Label:        visibility.TierLabel(tier),
			MonthlyPrice: price,
			ListingLimit: visibility.ListingLimit(tier),
			PhotoLimit:   visibility.PhotoLimit(tier != types.TierFree),
			PriceID:      priceIDs[tier],
		}
	}
	return &staticPlanRegistry{plans: plans}
}

func (r *staticPlanRegistry) GetPlan(tier types.Tier) Plan {
	if p, ok := r.plans[tier]; ok {
		return p
	}
	return r.plans[types.TierFree]
}

func (r *staticPlanRegistry) PriceID(tier types.Tier) (string, error) {
	if tier == types.TierFree || !tier.Valid() {
		return "", types.NewAppError(types.ErrCodeValidationInvalidTier,
			fmt.Sprintf("plan %q cannot be purchased", tier), nil)
	}
	id := r.plans[tier].PriceID
	if id == "" {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected,
			fmt.Sprintf("no price configured for plan %s", tier), nil)
	}
	return id, nil
}

func (r *staticPlanRegistry) PaidPlans() []Plan {
	out := make([]Plan, 0, len(types.PaidTiers))
	for _, tier := range types.PaidTiers {
		out = append(out, r.plans[tier])
	}
	return out
}

// PurchasableTier maps a requested plan type onto a paid tier. Anything that
// is not a paid tier is sold as pro.
func PurchasableTier(requested types.Tier) types.Tier {
	switch requested {
	case types.TierPro, types.TierProPlus, types.TierDealer:
		return requested
	}
	return types.TierPro
}
