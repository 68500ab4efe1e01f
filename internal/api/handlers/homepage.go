package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"truckmarket/internal/core"
	"truckmarket/internal/types"
	"truckmarket/internal/visibility"
)

const (
	homepageFeaturedMax = 6
	homepageFallbackMax = 10
)

// Where the homepage carousel took its listings from.
const (
	SourceFeatured      = "featured"
	SourceTopReviewed   = "top_reviewed"
	SourceOldestSellers = "oldest_sellers"
	SourceMixed         = "mixed"
	SourceNone          = "none"
)

// HomepageListings is the listing data access the homepage needs.
type HomepageListings interface {
	ListFeatured(ctx context.Context) ([]types.Listing, error)
	LatestAvailableBySellers(ctx context.Context, sellerIDs []string) ([]types.Listing, error)
	OldestSellersLatest(ctx context.Context, exclude []string, limit int) ([]types.Listing, error)
}

// ReviewRanking ranks sellers by number of reviews.
type ReviewRanking interface {
	TopReviewed(ctx context.Context, limit int) ([]types.SellerReviewCount, error)
}

// HomepageSeller is the seller summary shown under a carousel card.
type HomepageSeller struct {
	Name              string `json:"name"`
	ProfilePictureURL string `json:"profile_picture_url,omitempty"`
}

// HomepageResponse is the response for GET /v1/homepage/featured.
type HomepageResponse struct {
	Listings []visibility.ListingView  `json:"listings"`
	Sellers  map[string]HomepageSeller `json:"sellers"`
	Source   string                    `json:"source"`
}

// HomepageHandler serves the homepage carousel.
type HomepageHandler struct {
	listings HomepageListings
	reviews  ReviewRanking
	plans    PlanReader
	sellers  SellerDirectory
	clock    types.Clock
	logger   *slog.Logger
}

// NewHomepageHandler creates a HomepageHandler.
func NewHomepageHandler(
	listings HomepageListings,
	reviews ReviewRanking,
	plans PlanReader,
	sellers SellerDirectory,
	clock types.Clock,
	l *slog.Logger,
) *HomepageHandler {
	return &HomepageHandler{
		listings: listings,
		reviews:  reviews,
		plans:    plans,
		sellers:  sellers,
		clock:    clockOrReal(clock),
		logger:   loggerOrDefault(l),
	}
}

// RegisterRoutes mounts the homepage routes.
func (h *HomepageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/homepage/featured", h.Featured)
}

// Featured handles GET /v1/homepage/featured.
//
// Listings featured right now win. Without any, the carousel shows the
// newest truck of each of the most reviewed sellers, topped up with trucks
// from the longest-registered sellers until it has ten. Once a top-up runs
// the source is mixed if any seller has reviews, even when the top-up adds
// nothing.
func (h *HomepageHandler) Featured(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.clock.Now()

	featured, err := h.featuredNow(ctx, now)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if len(featured) > 0 {
		views, err := enrichListings(ctx, featured, h.plans, h.sellers, now)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		if len(views) > homepageFeaturedMax {
			views = views[:homepageFeaturedMax]
		}
		core.Data(w, r, http.StatusOK, homepageResponse(views, SourceFeatured))
		return
	}

	listings, source, err := h.fallback(ctx)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	views, err := buildViews(ctx, listings, h.plans, h.sellers, now)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, homepageResponse(views, source))
}

func (h *HomepageHandler) featuredNow(ctx context.Context, now time.Time) ([]types.Listing, error) {
	all, err := h.listings.ListFeatured(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.Listing, 0, len(all))
	for _, l := range visibility.FeaturedNow(all, now) {
		if l.Status == types.ListingAvailable {
			out = append(out, l)
		}
	}
	return out, nil
}

func (h *HomepageHandler) fallback(ctx context.Context) ([]types.Listing, string, error) {
	top, err := h.reviews.TopReviewed(ctx, homepageFallbackMax)
	if err != nil {
		return nil, "", err
	}
	order := make([]string, len(top))
	for i, c := range top {
		order[i] = c.SellerID
	}

	reviewed, err := h.listings.LatestAvailableBySellers(ctx, order)
	if err != nil {
		return nil, "", err
	}
	reviewed = orderBySeller(reviewed, order)

	out := reviewed
	source := SourceTopReviewed
	if len(out) < homepageFallbackMax {
		exclude := sellerIDs(reviewed)
		oldest, err := h.listings.OldestSellersLatest(ctx, exclude, homepageFallbackMax-len(out))
		if err != nil {
			return nil, "", err
		}
		out = append(out, oldest...)
		source = SourceMixed
		if len(top) == 0 {
			source = SourceOldestSellers
		}
	}

	if len(out) == 0 {
		return []types.Listing{}, SourceNone, nil
	}
	return out, source, nil
}

// orderBySeller arranges one-per-seller listings in the given seller order.
func orderBySeller(listings []types.Listing, order []string) []types.Listing {
	bySeller := make(map[string]types.Listing, len(listings))
	for _, l := range listings {
		bySeller[l.SellerID] = l
	}
	out := make([]types.Listing, 0, len(listings))
	for _, id := range order {
		if l, ok := bySeller[id]; ok {
			out = append(out, l)
		}
	}
	return out
}

func homepageResponse(views []visibility.ListingView, source string) HomepageResponse {
	sellers := make(map[string]HomepageSeller, len(views))
	for _, v := range views {
		if v.Seller == nil {
			continue
		}
		sellers[v.SellerID] = HomepageSeller{Name: v.Seller.Name, ProfilePictureURL: v.Seller.ProfilePictureURL}
	}
	return HomepageResponse{Listings: views, Sellers: sellers, Source: source}
}
