package visibility

import (
	"time"

	"truckmarket/internal/types"
)

// IsFeaturedNow reports whether l is currently promoted. A featured flag with
// no end date is an open-ended promotion; a featured flag whose end date has
// passed is treated as not featured even though the flag is still stored.
func IsFeaturedNow(l types.Listing, now time.Time) bool {
	if !l.IsFeatured {
		return false
	}
	return l.FeaturedUntil == nil || l.FeaturedUntil.After(now)
}

// FeaturedNow returns the listings of in that are featured at now, in input
// order.
func FeaturedNow(in []types.Listing, now time.Time) []types.Listing {
	out := make([]types.Listing, 0, len(in))
	for _, l := range in {
		if IsFeaturedNow(l, now) {
			out = append(out, l)
		}
	}
	return out
}
