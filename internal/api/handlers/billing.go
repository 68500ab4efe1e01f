// This file implements the checkout and advertising handlers:
//   - Boost, seller plan and ad checkout sessions
//   - Verification of paid sessions on the buyer's return
//   - The public list of running ads
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"truckmarket/internal/billing"
	"truckmarket/internal/core"
	"truckmarket/internal/types"
)

// --- Service Interfaces ---

// CheckoutService opens checkout sessions and fulfills the paid ones.
// Implemented by billing.Service.
type CheckoutService interface {
	StartBoost(ctx context.Context, sellerID, listingID string) (*types.CheckoutLink, error)
	StartSellerPlan(ctx context.Context, sellerID string, requested types.Tier) (*types.CheckoutLink, error)
	StartAd(ctx context.Context, order billing.AdOrder) (*types.CheckoutLink, error)
	Verify(ctx context.Context, kind types.CheckoutKind, sessionID string) (*billing.Fulfillment, error)
}

// AdReader lists ads that are approved and in their date window.
type AdReader interface {
	ListRunning(ctx context.Context, placement string, day time.Time) ([]types.Ad, error)
}

// --- Request/Response Models ---

// BoostCheckoutRequest is the request body for POST /v1/checkout/boost.
type BoostCheckoutRequest struct {
	ListingID string `json:"listing_id" validate:"required"`
}

// SellerPlanCheckoutRequest is the request body for
// POST /v1/checkout/seller-plan. Unknown or free plan types are sold as pro.
type SellerPlanCheckoutRequest struct {
	PlanType types.Tier `json:"plan_type"`
}

// AdCheckoutRequest is the request body for POST /v1/checkout/ad.
type AdCheckoutRequest struct {
	Title     string `json:"title" validate:"required,max=200"`
	ImageURL  string `json:"image_url" validate:"required,url"`
	LinkURL   string `json:"link_url,omitempty" validate:"omitempty,url"`
	Placement string `json:"placement" validate:"required,max=50"`
}

// VerifyCheckoutRequest is the request body for POST /v1/checkout/verify.
type VerifyCheckoutRequest struct {
	SessionID string             `json:"session_id" validate:"required"`
	Kind      types.CheckoutKind `json:"kind" validate:"required,oneof=boost seller_plan ad"`
}

// --- Handler ---

// CheckoutHandler serves the payment endpoints.
type CheckoutHandler struct {
	checkout  CheckoutService
	sellers   SellerFinder
	ads       AdReader
	gate      *EmailGate
	validator *core.Validator
	clock     types.Clock
	logger    *slog.Logger
}

// NewCheckoutHandler creates a CheckoutHandler.
func NewCheckoutHandler(
	checkout CheckoutService,
	sellers SellerFinder,
	ads AdReader,
	gate *EmailGate,
	v *core.Validator,
	clock types.Clock,
	l *slog.Logger,
) *CheckoutHandler {
	return &CheckoutHandler{
		checkout:  checkout,
		sellers:   sellers,
		ads:       ads,
		gate:      gate,
		validator: v,
		clock:     clockOrReal(clock),
		logger:    loggerOrDefault(l),
	}
}

// RegisterRoutes mounts the checkout and ad routes. Opening a checkout
// requires a session; verification and the ad list are public so the
// return page works for logged-out buyers.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/checkout", func(r chi.Router) {
		r.Post("/verify", h.Verify)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/boost", h.Boost)
			r.Post("/seller-plan", h.SellerPlan)
			r.Post("/ad", h.Ad)
		})
	})
	r.Get("/ads", h.ListAds)
}

// Boost handles POST /v1/checkout/boost.
func (h *CheckoutHandler) Boost(w http.ResponseWriter, r *http.Request) {
	var req BoostCheckoutRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	sellerID, err := h.callerSellerID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	link, err := h.checkout.StartBoost(r.Context(), sellerID, req.ListingID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, link)
}

// SellerPlan handles POST /v1/checkout/seller-plan.
func (h *CheckoutHandler) SellerPlan(w http.ResponseWriter, r *http.Request) {
	var req SellerPlanCheckoutRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	sellerID, err := h.callerSellerID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	link, err := h.checkout.StartSellerPlan(r.Context(), sellerID, req.PlanType)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, link)
}

// Ad handles POST /v1/checkout/ad. Advertisers need a verified email.
func (h *CheckoutHandler) Ad(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.gate.Check(r.Context(), actor, "buying an ad"); err != nil {
		core.Error(w, r, err)
		return
	}
	var req AdCheckoutRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	link, err := h.checkout.StartAd(r.Context(), billing.AdOrder{
		Title:     req.Title,
		ImageURL:  req.ImageURL,
		LinkURL:   req.LinkURL,
		Placement: req.Placement,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, link)
}

// Verify handles POST /v1/checkout/verify. Verifying an already fulfilled
// session returns the same result with already_fulfilled set.
func (h *CheckoutHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyCheckoutRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	result, err := h.checkout.Verify(r.Context(), req.Kind, strings.TrimSpace(req.SessionID))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, result)
}

// ListAds handles GET /v1/ads?placement=.
func (h *CheckoutHandler) ListAds(w http.ResponseWriter, r *http.Request) {
	ads, err := h.ads.ListRunning(r.Context(), r.URL.Query().Get("placement"), h.clock.Now())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, ads)
}

func (h *CheckoutHandler) callerSellerID(r *http.Request) (string, error) {
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
