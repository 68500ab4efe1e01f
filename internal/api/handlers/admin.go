// This file implements the admin back office:
//   - Dashboard statistics
//   - Featured and full listing views
//   - Manual promotion and listing removal
//   - Ad management and approval
//   - The financing lead pipeline: status, notes and history
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"truckmarket/internal/core"
	"truckmarket/internal/types"
	"truckmarket/internal/visibility"
)

// --- Service Interfaces ---

// StatsReader answers the aggregate dashboard queries.
type StatsReader interface {
	CountListings(ctx context.Context) (int, error)
	CountFinancingRequests(ctx context.Context) (int, error)
	CountRunningAds(ctx context.Context, day time.Time) (int, error)
	Revenue(ctx context.Context) (types.RevenueStats, error)
}

// AdminListings is the listing access the back office needs.
type AdminListings interface {
	List(ctx context.Context, filter types.ListingFilter) ([]types.Listing, error)
	ListFeatured(ctx context.Context) ([]types.Listing, error)
	SetFeatured(ctx context.Context, id string, featured bool, until *time.Time, now time.Time) error
	Delete(ctx context.Context, id string) error
}

// AllPlansReader reads every stored seller plan.
type AllPlansReader interface {
	PlanReader
	ListAll(ctx context.Context) (map[string]*types.SellerPlan, error)
}

// AdManager is the admin's full control over ads.
type AdManager interface {
	ListAll(ctx context.Context) ([]types.Ad, error)
	Create(ctx context.Context, ad *types.Ad) error
	Update(ctx context.Context, ad *types.Ad) error
	Delete(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
}

// FinancingDesk works the financing lead pipeline.
type FinancingDesk interface {
	List(ctx context.Context) ([]types.FinancingRequest, error)
	UpdateLeadStatus(ctx context.Context, id, status string, now time.Time) (string, error)
	AddNote(ctx context.Context, note *types.FinancingNote) error
	ListNotes(ctx context.Context, requestID string) ([]types.FinancingNote, error)
	ListActivity(ctx context.Context, requestID string) ([]types.FinancingActivity, error)
}

// --- Request/Response Models ---

// FeatureListingRequest is the body of PUT /v1/admin/listings/{id}/feature.
// A missing Until promotes the listing with no expiry.
type FeatureListingRequest struct {
	Featured bool       `json:"featured"`
	Until    *time.Time `json:"until,omitempty"`
}

// SetAdActiveRequest is the body of PUT /v1/admin/ads/{id}/active.
type SetAdActiveRequest struct {
	Active bool `json:"active"`
}

// AdRequest is the body of POST /v1/admin/ads and PUT /v1/admin/ads/{id}.
// Dates are calendar days (YYYY-MM-DD).
type AdRequest struct {
	Title     string `json:"title" validate:"required,max=200"`
	ImageURL  string `json:"image_url" validate:"required,url"`
	LinkURL   string `json:"link_url,omitempty" validate:"omitempty,url"`
	Placement string `json:"placement" validate:"required,max=50"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	IsActive  bool   `json:"is_active"`
}

// ad converts the request into an Ad with the given id.
func (req AdRequest) ad(id string) (*types.Ad, error) {
	start, err := time.Parse(time.DateOnly, req.StartDate)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidInput, "start_date must be YYYY-MM-DD", err)
	}
	end, err := time.Parse(time.DateOnly, req.EndDate)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidInput, "end_date must be YYYY-MM-DD", err)
	}
	if end.Before(start) {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidInput,
			"end_date must not be before start_date", nil, map[string]any{"field": "end_date"})
	}
	return &types.Ad{
		ID:        id,
		Title:     strings.TrimSpace(req.Title),
		ImageURL:  req.ImageURL,
		LinkURL:   req.LinkURL,
		Placement: req.Placement,
		StartDate: start,
		EndDate:   end,
		IsActive:  req.IsActive,
	}, nil
}

// LeadStatusRequest is the body of PUT /v1/admin/financing/{id}/status.
type LeadStatusRequest struct {
	Status string `json:"status" validate:"required,lead_status"`
}

// LeadNoteRequest is the body of POST /v1/admin/financing/{id}/notes.
type LeadNoteRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

// LeadStatusResponse reports a pipeline move.
type LeadStatusResponse struct {
	ID         string `json:"id"`
	LeadStatus string `json:"lead_status"`
	Previous   string `json:"previous_status"`
}

// LeadHistoryResponse is the response for GET /v1/admin/financing/{id}/notes.
type LeadHistoryResponse struct {
	Notes    []types.FinancingNote     `json:"notes"`
	Activity []types.FinancingActivity `json:"activity"`
}

// --- Handler ---

// AdminHandlerConfig collects the AdminHandler dependencies.
type AdminHandlerConfig struct {
	Stats     StatsReader
	Listings  AdminListings
	Plans     AllPlansReader
	Sellers   SellerDirectory
	Ads       AdManager
	Financing FinancingDesk
	Validator *core.Validator
	Clock     types.Clock
	Logger    *slog.Logger
}

// AdminHandler serves the /v1/admin routes.
type AdminHandler struct {
	stats     StatsReader
	listings  AdminListings
	plans     AllPlansReader
	sellers   SellerDirectory
	ads       AdManager
	financing FinancingDesk
	validator *core.Validator
	clock     types.Clock
	logger    *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(cfg AdminHandlerConfig) *AdminHandler {
	return &AdminHandler{
		stats:     cfg.Stats,
		listings:  cfg.Listings,
		plans:     cfg.Plans,
		sellers:   cfg.Sellers,
		ads:       cfg.Ads,
		financing: cfg.Financing,
		validator: cfg.Validator,
		clock:     clockOrReal(cfg.Clock),
		logger:    loggerOrDefault(cfg.Logger),
	}
}

// RegisterRoutes mounts the admin routes behind requireAdmin.
func (h *AdminHandler) RegisterRoutes(r chi.Router, requireAdmin func(http.Handler) http.Handler) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(requireAdmin)
		r.Get("/stats", h.Stats)
		r.Get("/featured", h.Featured)
		r.Get("/listings", h.Listings)
		r.Put("/listings/{id}/feature", h.Feature)
		r.Delete("/listings/{id}", h.DeleteListing)
		r.Get("/ads", h.Ads)
		r.Post("/ads", h.CreateAd)
		r.Put("/ads/{id}", h.UpdateAd)
		r.Delete("/ads/{id}", h.DeleteAd)
		r.Put("/ads/{id}/active", h.SetAdActive)
		r.Get("/financing", h.Financing)
		r.Put("/financing/{id}/status", h.SetLeadStatus)
		r.Get("/financing/{id}/notes", h.LeadHistory)
		r.Post("/financing/{id}/notes", h.AddLeadNote)
	})
}

// Stats handles GET /v1/admin/stats. Featured counts only live
// promotions; pro sellers are those whose plan resolves to a paid tier.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now()
	var (
		out      types.AdminStats
		featured []types.Listing
		plans    map[string]*types.SellerPlan
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		out.TotalListings, err = h.stats.CountListings(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.FinancingRequests, err = h.stats.CountFinancingRequests(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.ActiveAds, err = h.stats.CountRunningAds(ctx, now)
		return err
	})
	g.Go(func() (err error) {
		out.Revenue, err = h.stats.Revenue(ctx)
		return err
	})
	g.Go(func() (err error) {
		featured, err = h.listings.ListFeatured(ctx)
		return err
	})
	g.Go(func() (err error) {
		plans, err = h.plans.ListAll(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		core.Error(w, r, err)
		return
	}

	out.FeaturedActive = len(visibility.FeaturedNow(featured, now))
	for _, res := range visibility.ResolveAll(plans, now) {
		if res.IsPaid {
			out.ProSellers++
		}
	}
	core.Data(w, r, http.StatusOK, out)
}

// Featured handles GET /v1/admin/featured. Listings keep the stored
// order: open-ended promotions first, then by end date descending.
func (h *AdminHandler) Featured(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now()
	all, err := h.listings.ListFeatured(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	views, err := buildViews(r.Context(), visibility.FeaturedNow(all, now), h.plans, h.sellers, now)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, views)
}

// Listings handles GET /v1/admin/listings. Every status is included.
func (h *AdminHandler) Listings(w http.ResponseWriter, r *http.Request) {
	pg, err := parsePage(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	all, err := h.listings.List(r.Context(), types.ListingFilter{})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	views, err := enrichListings(r.Context(), all, h.plans, h.sellers, h.clock.Now())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	views, meta := slicePage(views, pg)
	core.DataWithMeta(w, r, http.StatusOK, views, meta)
}

// Feature handles PUT /v1/admin/listings/{id}/feature.
func (h *AdminHandler) Feature(w http.ResponseWriter, r *http.Request) {
	var req FeatureListingRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.listings.SetFeatured(r.Context(), id, req.Featured, req.Until, h.clock.Now()); err != nil {
		core.Error(w, r, err)
		return
	}

	actor, _ := types.GetActor(r.Context())
	h.logger.InfoContext(r.Context(), "listing promotion changed",
		"listing_id", id,
		"featured", req.Featured,
		"admin_id", actor.ID,
	)
	core.NoContent(w)
}

// DeleteListing handles DELETE /v1/admin/listings/{id}.
func (h *AdminHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.listings.Delete(r.Context(), id); err != nil {
		core.Error(w, r, err)
		return
	}
	actor, _ := types.GetActor(r.Context())
	h.logger.InfoContext(r.Context(), "listing removed by admin", "listing_id", id, "admin_id", actor.ID)
	core.NoContent(w)
}

// Ads handles GET /v1/admin/ads. Pending, running and finished ads are all
// listed.
func (h *AdminHandler) Ads(w http.ResponseWriter, r *http.Request) {
	ads, err := h.ads.ListAll(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, ads)
}

// CreateAd handles POST /v1/admin/ads.
func (h *AdminHandler) CreateAd(w http.ResponseWriter, r *http.Request) {
	ad, ok := h.decodeAd(w, r, "ad_"+uuid.New().String())
	if !ok {
		return
	}
	ad.CreatedAt = h.clock.Now()
	if err := h.ads.Create(r.Context(), ad); err != nil {
		core.Error(w, r, err)
		return
	}

	actor, _ := types.GetActor(r.Context())
	h.logger.InfoContext(r.Context(), "ad created by admin", "ad_id", ad.ID, "admin_id", actor.ID)
	core.Data(w, r, http.StatusCreated, ad)
}

// UpdateAd handles PUT /v1/admin/ads/{id}.
func (h *AdminHandler) UpdateAd(w http.ResponseWriter, r *http.Request) {
	ad, ok := h.decodeAd(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := h.ads.Update(r.Context(), ad); err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, ad)
}

// DeleteAd handles DELETE /v1/admin/ads/{id}.
func (h *AdminHandler) DeleteAd(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.ads.Delete(r.Context(), id); err != nil {
		core.Error(w, r, err)
		return
	}
	actor, _ := types.GetActor(r.Context())
	h.logger.InfoContext(r.Context(), "ad deleted by admin", "ad_id", id, "admin_id", actor.ID)
	core.NoContent(w)
}

func (h *AdminHandler) decodeAd(w http.ResponseWriter, r *http.Request, id string) (*types.Ad, bool) {
	var req AdRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return nil, false
	}
	if err := h.validator.Struct(req); err != nil {
		core.Error(w, r, err)
		return nil, false
	}
	ad, err := req.ad(id)
	if err != nil {
		core.Error(w, r, err)
		return nil, false
	}
	return ad, true
}

// SetAdActive handles PUT /v1/admin/ads/{id}/active.
func (h *AdminHandler) SetAdActive(w http.ResponseWriter, r *http.Request) {
	var req SetAdActiveRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.ads.SetActive(r.Context(), chi.URLParam(r, "id"), req.Active); err != nil {
		core.Error(w, r, err)
		return
	}
	core.NoContent(w)
}

// Financing handles GET /v1/admin/financing.
func (h *AdminHandler) Financing(w http.ResponseWriter, r *http.Request) {
	leads, err := h.financing.List(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, leads)
}

// SetLeadStatus handles PUT /v1/admin/financing/{id}/status.
func (h *AdminHandler) SetLeadStatus(w http.ResponseWriter, r *http.Request) {
	var req LeadStatusRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	prev, err := h.financing.UpdateLeadStatus(r.Context(), id, req.Status, h.clock.Now())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	actor, _ := types.GetActor(r.Context())
	h.logger.InfoContext(r.Context(), "lead status changed",
		"financing_id", id,
		"from", prev,
		"to", req.Status,
		"admin_id", actor.ID,
	)
	core.Data(w, r, http.StatusOK, LeadStatusResponse{ID: id, LeadStatus: req.Status, Previous: prev})
}

// LeadHistory handles GET /v1/admin/financing/{id}/notes.
func (h *AdminHandler) LeadHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var out LeadHistoryResponse

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		out.Notes, err = h.financing.ListNotes(ctx, id)
		return err
	})
	g.Go(func() (err error) {
		out.Activity, err = h.financing.ListActivity(ctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, out)
}

// AddLeadNote handles POST /v1/admin/financing/{id}/notes.
func (h *AdminHandler) AddLeadNote(w http.ResponseWriter, r *http.Request) {
	var req LeadNoteRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if err := h.validator.Struct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	actor, _ := types.GetActor(r.Context())
	note := &types.FinancingNote{
		ID:        "fn_" + uuid.New().String(),
		RequestID: chi.URLParam(r, "id"),
		AuthorID:  actor.ID,
		Content:   req.Content,
		CreatedAt: h.clock.Now(),
	}
	if err := h.financing.AddNote(r.Context(), note); err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusCreated, note)
}
