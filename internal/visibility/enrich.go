package visibility

import (
	"sort"
	"time"

	"truckmarket/internal/types"
)

// SellerCard is the public face of a seller shown next to a listing.
type SellerCard struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Company           string           `json:"company,omitempty"`
	SellerType        types.SellerType `json:"seller_type"`
	ProfilePictureURL string           `json:"profile_picture_url,omitempty"`
	City              string           `json:"city,omitempty"`
	State             string           `json:"state,omitempty"`
	Email             string           `json:"email,omitempty"`
	Phone             string           `json:"phone,omitempty"`
}

// CardFor builds the public card for s, honoring its contact-hiding flags.
func CardFor(s types.Seller) SellerCard {
	card := SellerCard{
		ID:                s.ID,
		Name:              s.Name,
		Company:           s.Company,
		SellerType:        s.SellerType,
		ProfilePictureURL: s.ProfilePictureURL,
		City:              s.City,
		State:             s.State,
	}
	if !s.HideEmail {
		card.Email = s.Email
	}
	if !s.HidePhone {
		card.Phone = s.Phone
	}
	return card
}

// ListingView is a listing together with everything derived from its
// seller's plan at a single instant. Views are built fresh per request and
// never written back.
type ListingView struct {
	types.Listing

	IsFeaturedNow   bool        `json:"is_featured_now"`
	SellerTier      types.Tier  `json:"seller_tier"`
	SellerIsPro     bool        `json:"seller_is_pro"`
	SellerPlanLabel string      `json:"seller_plan_label"`
	PhotoLimit      int         `json:"photo_limit"`
	Seller          *SellerCard `json:"seller,omitempty"`

	rank RankKey
}

// Key returns the rank key the view was built with.
func (v ListingView) Key() RankKey { return v.rank }

// View enriches a single listing for a seller resolved to res.
func View(l types.Listing, res Resolution, now time.Time) ListingView {
	l.Photos = append([]string(nil), l.Photos...)
	v := ListingView{
		Listing:         l,
		IsFeaturedNow:   IsFeaturedNow(l, now),
		SellerTier:      res.Tier,
		SellerIsPro:     res.IsPaid,
		SellerPlanLabel: TierLabel(res.Tier),
		PhotoLimit:      PhotoLimit(res.IsPaid),
	}
	v.rank = RankKey{
		Featured:  v.IsFeaturedNow,
		TierRank:  TierRank(res.Tier),
		CreatedAt: l.CreatedAt,
	}
	return v
}

// Enrich builds one view per listing, in input order. The seller tier on
// each view is the effective tier at now, so a lapsed pro plan shows as
// free here even though its stored plan_type still says pro.
func Enrich(listings []types.Listing, plans map[string]*types.SellerPlan, now time.Time) []ListingView {
	resolved := ResolveAll(plans, now)
	out := make([]ListingView, len(listings))
	for i, l := range listings {
		out[i] = View(l, ResolutionFor(resolved, l.SellerID), now)
	}
	return out
}

// WithSellers attaches seller cards to views whose seller appears in
// sellers. The views slice is updated in place.
func WithSellers(views []ListingView, sellers map[string]types.Seller) {
	for i := range views {
		if s, ok := sellers[views[i].SellerID]; ok {
			card := CardFor(s)
			views[i].Seller = &card
		}
	}
}

// RankViews returns views in display order using the same comparator as
// Rank. Ties keep input order.
func RankViews(views []ListingView) []ListingView {
	out := make([]ListingView, len(views))
	copy(out, views)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].rank.Before(out[j].rank)
	})
	return out
}

// EnrichAndRank is Enrich followed by RankViews.
func EnrichAndRank(listings []types.Listing, plans map[string]*types.SellerPlan, now time.Time) []ListingView {
	return RankViews(Enrich(listings, plans, now))
}
