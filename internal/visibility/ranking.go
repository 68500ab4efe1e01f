package visibility

import (
	"sort"
	"time"

	"truckmarket/internal/types"
)

// RankKey holds the three values the display order is decided on.
type RankKey struct {
	Featured  bool
	TierRank  int
	CreatedAt time.Time
}

// Before reports whether a listing with key k is shown ahead of one with key
// other. The first rule that differs decides: featured listings come first,
// then higher tiers, then newer listings. Equal keys are not before each
// other, which lets a stable sort keep input order for ties.
func (k RankKey) Before(other RankKey) bool {
	if k.Featured != other.Featured {
		return k.Featured
	}
	if k.TierRank != other.TierRank {
		return k.TierRank > other.TierRank
	}
	return k.CreatedAt.After(other.CreatedAt)
}

// KeyFor computes the rank key of l for a seller resolved to res.
func KeyFor(l types.Listing, res Resolution, now time.Time) RankKey {
	return RankKey{
		Featured:  IsFeaturedNow(l, now),
		TierRank:  TierRank(res.Tier),
		CreatedAt: l.CreatedAt,
	}
}

type keyedListing struct {
	listing types.Listing
	key     RankKey
}

// Rank returns listings in display order. plans maps seller id to the
// seller's plan record; sellers without an entry are free. The input slice
// is not modified and ties keep their input order.
func Rank(listings []types.Listing, plans map[string]*types.SellerPlan, now time.Time) []types.Listing {
	if len(listings) == 0 {
		return []types.Listing{}
	}

	resolved := ResolveAll(plans, now)
	items := make([]keyedListing, len(listings))
	for i, l := range listings {
		items[i] = keyedListing{
			listing: l,
			key:     KeyFor(l, ResolutionFor(resolved, l.SellerID), now),
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].key.Before(items[j].key)
	})

	out := make([]types.Listing, len(items))
	for i, it := range items {
		out[i] = it.listing
	}
	return out
}
