package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"truckmarket/internal/billing"
	"truckmarket/internal/core"
	"truckmarket/internal/types"
	"truckmarket/internal/visibility"
)

// --- Service Interfaces ---

// SellerStore reads and writes seller profiles.
type SellerStore interface {
	SellerDirectory
	Create(ctx context.Context, s *types.Seller) error
	Update(ctx context.Context, s *types.Seller) error
}

// SellerListings lists the listings of one seller.
type SellerListings interface {
	ListBySeller(ctx context.Context, sellerID string) ([]types.Listing, error)
}

// SellerUsage reports a seller's plan and listing consumption.
type SellerUsage interface {
	GetListingUsage(ctx context.Context, sellerID string) (billing.ListingUsage, error)
	GetPlanSummary(ctx context.Context, sellerID string) (visibility.PlanSummary, error)
}

// ReviewStore reads and writes seller reviews.
type ReviewStore interface {
	ListBySeller(ctx context.Context, sellerID string) ([]types.Review, error)
	Create(ctx context.Context, rv *types.Review) error
}

// --- Request/Response Models ---

// SellerProfileRequest is the request body for PUT /v1/seller/profile.
type SellerProfileRequest struct {
	Name              string           `json:"name" validate:"required,max=200"`
	Phone             string           `json:"phone" validate:"required,max=40"`
	SellerType        types.SellerType `json:"seller_type" validate:"required,seller_type"`
	Company           string           `json:"company,omitempty" validate:"max=200"`
	ProfilePictureURL string           `json:"profile_picture_url,omitempty" validate:"omitempty,url"`
	City              string           `json:"city,omitempty" validate:"max=100"`
	State             string           `json:"state,omitempty" validate:"max=50"`
	HideEmail         bool             `json:"hide_email"`
	HidePhone         bool             `json:"hide_phone"`
}

// SellerProfileResponse wraps the caller's profile, which is null until
// one is saved.
type SellerProfileResponse struct {
	Seller *types.Seller `json:"seller"`
}

// SellerPageResponse is the public seller page.
type SellerPageResponse struct {
	Seller   visibility.SellerCard    `json:"seller"`
	Tier     types.Tier               `json:"tier"`
	Label    string                   `json:"plan_label"`
	Listings []visibility.ListingView `json:"listings"`
}

// CreateReviewRequest is the request body for POST /v1/sellers/{id}/reviews.
type CreateReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment,omitempty" validate:"max=2000"`
}

// --- Handler ---

// SellerHandler serves seller profiles, plan information and reviews.
type SellerHandler struct {
	sellers   SellerStore
	listings  SellerListings
	plans     PlanReader
	usage     SellerUsage
	reviews   ReviewStore
	validator *core.Validator
	clock     types.Clock
	logger    *slog.Logger
}

// NewSellerHandler creates a SellerHandler.
func NewSellerHandler(
	sellers SellerStore,
	listings SellerListings,
	plans PlanReader,
	usage SellerUsage,
	reviews ReviewStore,
	v *core.Validator,
	clock types.Clock,
	l *slog.Logger,
) *SellerHandler {
	return &SellerHandler{
		sellers:   sellers,
		listings:  listings,
		plans:     plans,
		usage:     usage,
		reviews:   reviews,
		validator: v,
		clock:     clockOrReal(clock),
		logger:    loggerOrDefault(l),
	}
}

// RegisterRoutes mounts the seller routes. The /seller routes act on the
// caller's own profile; /sellers/{id} routes are public pages.
func (h *SellerHandler) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/seller", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/profile", h.GetProfile)
		r.Put("/profile", h.PutProfile)
		r.Get("/plan", h.GetPlan)
		r.Get("/listing-count", h.GetListingCount)
		r.Get("/listings", h.ListOwn)
	})

	r.Route("/sellers/{id}", func(r chi.Router) {
		r.Get("/", h.GetPage)
		r.Get("/reviews", h.ListReviews)
		r.With(requireAuth).Post("/reviews", h.CreateReview)
	})
}

// GetProfile handles GET /v1/seller/profile.
func (h *SellerHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	seller, err := sellerFor(r.Context(), h.sellers, actor)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, SellerProfileResponse{Seller: seller})
}

// PutProfile handles PUT /v1/seller/profile. A legacy profile found by
// email is linked to the caller's account on save.
func (h *SellerHandler) PutProfile(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req SellerProfileRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	seller, err := sellerFor(r.Context(), h.sellers, actor)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	created := seller == nil
	if created {
		seller = &types.Seller{
			ID:        "sel_" + uuid.New().String(),
			CreatedAt: h.clock.Now(),
		}
	}
	seller.UserID = actor.ID
	if seller.Email == "" {
		seller.Email = actor.Email
	}
	seller.Name = strings.TrimSpace(req.Name)
	seller.Phone = strings.TrimSpace(req.Phone)
	seller.SellerType = req.SellerType
	seller.Company = req.Company
	seller.ProfilePictureURL = req.ProfilePictureURL
	seller.City = req.City
	seller.State = req.State
	seller.HideEmail = req.HideEmail
	seller.HidePhone = req.HidePhone

	if created {
		err = h.sellers.Create(r.Context(), seller)
	} else {
		err = h.sellers.Update(r.Context(), seller)
	}
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "seller profile saved", "seller_id", seller.ID, "created", created)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	core.Data(w, r, status, SellerProfileResponse{Seller: seller})
}

// GetPlan handles GET /v1/seller/plan. Callers without a seller profile
// see the free plan.
func (h *SellerHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	sellerID, err := h.callerSellerID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	summary, err := h.usage.GetPlanSummary(r.Context(), sellerID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, summary)
}

// GetListingCount handles GET /v1/seller/listing-count.
func (h *SellerHandler) GetListingCount(w http.ResponseWriter, r *http.Request) {
	sellerID, err := h.callerSellerID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	usage, err := h.usage.GetListingUsage(r.Context(), sellerID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, usage)
}

// ListOwn handles GET /v1/seller/listings, the seller dashboard. Every
// status is included.
func (h *SellerHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	sellerID, err := h.callerSellerID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if sellerID == "" {
		core.Data(w, r, http.StatusOK, []visibility.ListingView{})
		return
	}
	listings, err := h.listings.ListBySeller(r.Context(), sellerID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	views, err := enrichListings(r.Context(), listings, h.plans, nil, h.clock.Now())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, views)
}

// GetPage handles GET /v1/sellers/{id}: the seller's card and available
// listings.
func (h *SellerHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	seller, err := h.sellers.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	plan, err := h.plans.GetPlan(ctx, seller.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	all, err := h.listings.ListBySeller(ctx, seller.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	available := make([]types.Listing, 0, len(all))
	for _, l := range all {
		if l.Status == types.ListingAvailable {
			available = append(available, l)
		}
	}

	now := h.clock.Now()
	views := visibility.EnrichAndRank(available, map[string]*types.SellerPlan{seller.ID: plan}, now)
	res := visibility.ResolveTier(plan, now)
	core.Data(w, r, http.StatusOK, SellerPageResponse{
		Seller:   visibility.CardFor(*seller),
		Tier:     res.Tier,
		Label:    visibility.TierLabel(res.Tier),
		Listings: views,
	})
}

// ListReviews handles GET /v1/sellers/{id}/reviews.
func (h *SellerHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.reviews.ListBySeller(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, reviews)
}

// CreateReview handles POST /v1/sellers/{id}/reviews. Sellers cannot
// review themselves.
func (h *SellerHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req CreateReviewRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	seller, err := h.sellers.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if ownsSeller(seller, actor) {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationSelfAction, "You cannot review yourself", nil))
		return
	}

	review := &types.Review{
		ID:         "rev_" + uuid.New().String(),
		SellerID:   seller.ID,
		ReviewerID: actor.ID,
		Rating:     req.Rating,
		Comment:    strings.TrimSpace(req.Comment),
		CreatedAt:  h.clock.Now(),
	}
	if err := h.reviews.Create(r.Context(), review); err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusCreated, review)
}

// callerSellerID returns the id of the caller's seller profile, or "" when
// there is none.
func (h *SellerHandler) callerSellerID(r *http.Request) (string, error) {
	actor, err := requireActor(r)
	if err != nil {
		return "", err
	}
	seller, err := sellerFor(r.Context(), h.sellers, actor)
	if err != nil || seller == nil {
		return "", err
	}
	return seller.ID, nil
}
