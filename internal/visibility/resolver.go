// Package visibility decides how listings are presented to buyers: which
// plan tier a seller is effectively on, what that tier allows, whether a
// listing is featured right now, the order listings are shown in, and
// whether a new available listing fits under the seller's cap.
//
// Every function here is pure. Callers fetch rows, pass them in together
// with "now", and render or persist the result. Nothing in this package
// reads the clock, touches the database, or mutates its inputs.
package visibility

import (
	"time"

	"truckmarket/internal/types"
)

// Resolution is the tier actually in force for a seller at a given instant.
type Resolution struct {
	Tier   types.Tier `json:"tier"`
	IsPaid bool       `json:"is_paid"`
}

var freeResolution = Resolution{Tier: types.TierFree, IsPaid: false}

// ResolveTier returns the effective tier of plan at now.
//
// A missing plan or a free plan_type resolves to free. A paid plan with no
// expiry never lapses. Otherwise the plan is paid only while plan_expires is
// strictly after now; once it has passed the seller reverts to free, while
// the stored plan_type is left for the renewal flow to update.
func ResolveTier(plan *types.SellerPlan, now time.Time) Resolution {
	if plan == nil || plan.PlanType == "" || plan.PlanType == types.TierFree {
		return freeResolution
	}
	if plan.PlanExpires == nil {
		return Resolution{Tier: plan.PlanType, IsPaid: true}
	}
	if plan.PlanExpires.After(now) {
		return Resolution{Tier: plan.PlanType, IsPaid: true}
	}
	return freeResolution
}

// ResolveAll resolves every plan in plans at the same instant. Sellers with
// no entry are not present in the result; look them up with ResolutionFor.
func ResolveAll(plans map[string]*types.SellerPlan, now time.Time) map[string]Resolution {
	out := make(map[string]Resolution, len(plans))
	for sellerID, plan := range plans {
		out[sellerID] = ResolveTier(plan, now)
	}
	return out
}

// ResolutionFor looks up sellerID in a resolved map, defaulting to free.
func ResolutionFor(resolved map[string]Resolution, sellerID string) Resolution {
	if r, ok := resolved[sellerID]; ok {
		return r
	}
	return freeResolution
}
