package visibility

import (
	"time"

	"truckmarket/internal/types"
)

// Photo caps. The photo cap depends only on whether the seller is paying,
// not on which paid tier they are on.
const (
	FreePhotoLimit = 6
	PaidPhotoLimit = 15
)

var listingLimits = map[types.Tier]int{
	types.TierFree:    1,
	types.TierPro:     3,
	types.TierProPlus: 6,
	types.TierDealer:  25,
}

var tierLabels = map[types.Tier]string{
	types.TierFree:    "Free",
	types.TierPro:     "Pro",
	types.TierProPlus: "Pro+",
	types.TierDealer:  "Dealer",
}

// tierRanks orders tiers for display. Unknown tiers rank with free.
var tierRanks = map[types.Tier]int{
	types.TierFree:    0,
	types.TierPro:     1,
	types.TierProPlus: 2,
	types.TierDealer:  3,
}

// ListingLimit returns how many available listings tier may hold at once.
// Unrecognized tiers get the free allowance.
func ListingLimit(tier types.Tier) int {
	if n, ok := listingLimits[tier]; ok {
		return n
	}
	return listingLimits[types.TierFree]
}

// PhotoLimit returns the per-listing photo cap.
func PhotoLimit(isPaid bool) int {
	if isPaid {
		return PaidPhotoLimit
	}
	return FreePhotoLimit
}

// TierRank positions tier in the order free < pro < pro_plus < dealer.
func TierRank(tier types.Tier) int {
	return tierRanks[tier]
}

// TierLabel is the human-readable name of tier. Unknown tiers are shown as-is.
func TierLabel(tier types.Tier) string {
	if l, ok := tierLabels[tier]; ok {
		return l
	}
	return string(tier)
}

// PlanSummary is what a seller is told about their own plan.
type PlanSummary struct {
	PlanType     types.Tier `json:"plan_type"`
	PlanExpires  *time.Time `json:"plan_expires"`
	Tier         types.Tier `json:"tier"`
	IsPaid       bool       `json:"is_paid"`
	Label        string     `json:"label"`
	ListingLimit int        `json:"listing_limit"`
	PhotoLimit   int        `json:"photo_limit"`
}

// Summarize describes plan as seen at now. A nil plan is reported as free.
func Summarize(plan *types.SellerPlan, now time.Time) PlanSummary {
	res := ResolveTier(plan, now)
	summary := PlanSummary{
		PlanType:     types.TierFree,
		Tier:         res.Tier,
		IsPaid:       res.IsPaid,
		Label:        TierLabel(res.Tier),
		ListingLimit: ListingLimit(res.Tier),
		PhotoLimit:   PhotoLimit(res.IsPaid),
	}
	if plan != nil {
		if plan.PlanType != "" {
			summary.PlanType = plan.PlanType
		}
		summary.PlanExpires = plan.PlanExpires
	}
	return summary
}
