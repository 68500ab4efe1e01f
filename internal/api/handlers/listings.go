package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"truckmarket/internal/core"
	"truckmarket/internal/types"
	"truckmarket/internal/visibility"
)

// ListingStore is the listing data access used by the listing handler.
type ListingStore interface {
	GetByID(ctx context.Context, id string) (*types.Listing, error)
	List(ctx context.Context, filter types.ListingFilter) ([]types.Listing, error)
	Delete(ctx context.Context, id string) error
}

// ListingAdmitter writes listings that may count against the seller's plan
// cap. Implementations serialize writes per seller.
type ListingAdmitter interface {
	AdmitAndCreate(ctx context.Context, l *types.Listing) error
	AdmitAndUpdate(ctx context.Context, id, sellerID string, patch types.ListingPatch) (*types.Listing, error)
}

// --- Request/Response Models ---

// CreateListingRequest is the request body for POST /v1/listings. SellerID
// may be omitted, in which case the caller's own profile is used.
type CreateListingRequest struct {
	SellerID    string              `json:"seller_id,omitempty"`
	Year        int                 `json:"year" validate:"required,gte=1900,lte=2100"`
	Make        string              `json:"make" validate:"required,max=100"`
	Model       string              `json:"model" validate:"required,max=100"`
	Price       float64             `json:"price" validate:"required,gt=0"`
	Mileage     *int                `json:"mileage,omitempty" validate:"omitempty,gte=0"`
	Condition   string              `json:"condition,omitempty" validate:"max=50"`
	Description string              `json:"description,omitempty" validate:"max=10000"`
	City        string              `json:"city,omitempty" validate:"max=100"`
	State       string              `json:"state,omitempty" validate:"max=50"`
	Photos      []string            `json:"photos,omitempty" validate:"dive,required"`
	Status      types.ListingStatus `json:"status,omitempty" validate:"omitempty,listing_status"`
}

// UpdateListingRequest is the request body for PATCH /v1/listings/{id}.
// Absent fields are left unchanged.
type UpdateListingRequest struct {
	Year        *int                 `json:"year,omitempty" validate:"omitempty,gte=1900,lte=2100"`
	Make        *string              `json:"make,omitempty" validate:"omitempty,min=1,max=100"`
	Model       *string              `json:"model,omitempty" validate:"omitempty,min=1,max=100"`
	Price       *float64             `json:"price,omitempty" validate:"omitempty,gt=0"`
	Mileage     *int                 `json:"mileage,omitempty" validate:"omitempty,gte=0"`
	Condition   *string              `json:"condition,omitempty" validate:"omitempty,max=50"`
	Description *string              `json:"description,omitempty" validate:"omitempty,max=10000"`
	City        *string              `json:"city,omitempty" validate:"omitempty,max=100"`
	State       *string              `json:"state,omitempty" validate:"omitempty,max=50"`
	Photos      *[]string            `json:"photos,omitempty"`
	Status      *types.ListingStatus `json:"status,omitempty" validate:"omitempty,listing_status"`
}

func (req UpdateListingRequest) patch() types.ListingPatch {
	p := types.ListingPatch{
		Year:        req.Year,
		Make:        req.Make,
		Model:       req.Model,
		Price:       req.Price,
		Mileage:     req.Mileage,
		Condition:   req.Condition,
		Description: req.Description,
		City:        req.City,
		State:       req.State,
		Status:      req.Status,
	}
	if req.Photos != nil {
		p.Photos = *req.Photos
		if p.Photos == nil {
			p.Photos = []string{}
		}
	}
	return p
}

// CreatedResponse carries the id of a newly created resource.
type CreatedResponse struct {
	ID string `json:"id"`
}

// --- Handler ---

// ListingHandlerConfig holds the dependencies of a ListingHandler.
type ListingHandlerConfig struct {
	Listings  ListingStore
	Admission ListingAdmitter
	Plans     PlanReader
	Sellers   SellerDirectory
	Notifier  Notifier
	// EmailGate blocks unverified users from listing. Nil disables it.
	EmailGate *EmailGate
	Validator *core.Validator
	Clock     types.Clock
	// PublicBaseURL prefixes links in notification emails.
	PublicBaseURL string
	Logger        *slog.Logger
}

// ListingHandler serves the public listings feed and the seller's listing
// management endpoints.
type ListingHandler struct {
	listings  ListingStore
	admission ListingAdmitter
	plans     PlanReader
	sellers   SellerDirectory
	notifier  Notifier
	gate      *EmailGate
	validator *core.Validator
	clock     types.Clock
	baseURL   string
	logger    *slog.Logger
}

// NewListingHandler creates a ListingHandler.
func NewListingHandler(cfg ListingHandlerConfig) *ListingHandler {
	return &ListingHandler{
		listings:  cfg.Listings,
		admission: cfg.Admission,
		plans:     cfg.Plans,
		sellers:   cfg.Sellers,
		notifier:  cfg.Notifier,
		gate:      cfg.EmailGate,
		validator: cfg.Validator,
		clock:     clockOrReal(cfg.Clock),
		baseURL:   strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:    loggerOrDefault(cfg.Logger),
	}
}

// RegisterRoutes mounts the listing routes. requireAuth guards the
// mutating endpoints.
func (h *ListingHandler) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/listings", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", h.Create)
			r.Patch("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// List handles GET /v1/listings. Only available listings are returned, in
// display order, one limit/offset page at a time.
func (h *ListingHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListingFilter(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	pg, err := parsePage(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	listings, err := h.listings.List(r.Context(), filter)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	views, err := enrichListings(r.Context(), listings, h.plans, h.sellers, h.clock.Now())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	views, meta := slicePage(views, pg)
	core.DataWithMeta(w, r, http.StatusOK, views, meta)
}

func parseListingFilter(r *http.Request) (types.ListingFilter, error) {
	q := r.URL.Query()
	filter := types.ListingFilter{
		Make:   strings.TrimSpace(q.Get("make")),
		State:  strings.TrimSpace(q.Get("state")),
		Query:  strings.TrimSpace(q.Get("q")),
		Status: types.ListingAvailable,
	}
	if st := q.Get("seller_type"); st != "" {
		if !types.SellerType(st).Valid() {
			return filter, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidInput,
				"seller_type must be private or dealer", nil, map[string]any{"field": "seller_type"})
		}
		filter.SellerType = types.SellerType(st)
	}
	var err error
	if filter.MinPrice, err = parsePrice(q.Get("min_price"), "min_price"); err != nil {
		return filter, err
	}
	if filter.MaxPrice, err = parsePrice(q.Get("max_price"), "max_price"); err != nil {
		return filter, err
	}
	return filter, nil
}

func parsePrice(raw, field string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidInput,
			field+" must be a non-negative number", nil, map[string]any{"field": field})
	}
	return &v, nil
}

// Get handles GET /v1/listings/{id}. The response carries the seller's
// contact card with hidden fields removed.
func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	listing, err := h.listings.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	views, err := enrichListings(r.Context(), []types.Listing{*listing}, h.plans, h.sellers, h.clock.Now())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, views[0])
}

// Create handles POST /v1/listings.
//
//  1. Require a verified email.
//  2. Resolve the seller and check the caller controls it.
//  3. Require a complete profile (phone and seller type).
//  4. Enforce the photo limit of the seller's effective plan.
//  5. Admit and insert under the seller lock.
//  6. Send the truck_listed email.
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.gate.Check(r.Context(), actor, "listing a truck"); err != nil {
		core.Error(w, r, err)
		return
	}

	var req CreateListingRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	seller, err := h.ownedSeller(r.Context(), actor, req.SellerID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if !seller.ProfileComplete() {
		core.Error(w, r, profileIncomplete())
		return
	}
	if err := h.checkPhotos(r.Context(), seller.ID, len(req.Photos)); err != nil {
		core.Error(w, r, err)
		return
	}

	status := req.Status
	if status == "" {
		status = types.ListingAvailable
	}
	listing := &types.Listing{
		ID:          "lst_" + uuid.New().String(),
		SellerID:    seller.ID,
		Year:        req.Year,
		Make:        strings.TrimSpace(req.Make),
		Model:       strings.TrimSpace(req.Model),
		Price:       req.Price,
		Mileage:     req.Mileage,
		Condition:   req.Condition,
		Description: req.Description,
		City:        req.City,
		State:       req.State,
		Photos:      req.Photos,
		Status:      status,
		CreatedAt:   h.clock.Now(),
	}
	if err := h.admission.AdmitAndCreate(r.Context(), listing); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "listing created",
		"listing_id", listing.ID,
		"seller_id", seller.ID,
		"status", status,
	)
	notifyQuietly(r.Context(), h.logger, h.notifier, types.EmailTruckListed, seller.Email, map[string]any{
		"sellerName": seller.Name,
		"truckName":  listing.Title(),
		"truckUrl":   h.baseURL + "/truck/" + listing.ID,
	})

	core.Data(w, r, http.StatusCreated, CreatedResponse{ID: listing.ID})
}

// Update handles PATCH /v1/listings/{id}. Moving a listing back to
// available is admitted against the plan cap like a new listing.
func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req UpdateListingRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	listing, seller, err := h.ownedListing(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if req.Photos != nil {
		if err := h.checkPhotos(r.Context(), seller.ID, len(*req.Photos)); err != nil {
			core.Error(w, r, err)
			return
		}
	}

	updated, err := h.admission.AdmitAndUpdate(r.Context(), listing.ID, seller.ID, req.patch())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, updated)
}

// Delete handles DELETE /v1/listings/{id}. Admins may delete any listing.
func (h *ListingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	if !actor.IsAdmin() {
		if _, _, err := h.ownedListing(r.Context(), actor, id); err != nil {
			core.Error(w, r, err)
			return
		}
	}
	if err := h.listings.Delete(r.Context(), id); err != nil {
		core.Error(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "listing deleted", "listing_id", id, "actor_id", actor.ID)
	core.NoContent(w)
}

// ownedSeller returns the seller a new listing is created under. An
// explicit sellerID must belong to the caller.
func (h *ListingHandler) ownedSeller(ctx context.Context, actor types.Actor, sellerID string) (*types.Seller, error) {
	if sellerID == "" {
		seller, err := sellerFor(ctx, h.sellers, actor)
		if err != nil {
			return nil, err
		}
		if seller == nil {
			return nil, profileIncomplete()
		}
		return seller, nil
	}

	seller, err := h.sellers.GetByID(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if !ownsSeller(seller, actor) {
		return nil, types.NewAppError(types.ErrCodePermissionOwner, "You can only list trucks for your own seller profile", nil)
	}
	return seller, nil
}

func (h *ListingHandler) ownedListing(ctx context.Context, actor types.Actor, id string) (*types.Listing, *types.Seller, error) {
	listing, err := h.listings.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	seller, err := h.sellers.GetByID(ctx, listing.SellerID)
	if err != nil {
		return nil, nil, err
	}
	if !ownsSeller(seller, actor) {
		return nil, nil, types.NewAppError(types.ErrCodePermissionOwner, "You do not own this listing", nil)
	}
	return listing, seller, nil
}

func (h *ListingHandler) checkPhotos(ctx context.Context, sellerID string, count int) error {
	plan, err := h.plans.GetPlan(ctx, sellerID)
	if err != nil {
		return err
	}
	limit := visibility.PhotoLimit(visibility.ResolveTier(plan, h.clock.Now()).IsPaid)
	if count > limit {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationPhotoLimit,
			"Your plan allows up to "+strconv.Itoa(limit)+" photos per listing", nil,
			map[string]any{"limit": limit})
	}
	return nil
}
