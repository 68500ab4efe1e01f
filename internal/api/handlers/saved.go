package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"truckmarket/internal/core"
	"truckmarket/internal/types"
)

// SavedStore persists a user's bookmarked listings.
type SavedStore interface {
	List(ctx context.Context, userID string) ([]string, error)
	Save(ctx context.Context, userID, listingID string, now time.Time) error
	Remove(ctx context.Context, userID, listingID string) error
}

// SavedResponse lists the ids of the caller's saved listings.
type SavedResponse struct {
	ListingIDs []string `json:"truck_ids"`
}

// SavedHandler serves the saved listings endpoints.
type SavedHandler struct {
	saved   SavedStore
	sellers SellerFinder
	clock   types.Clock
}

// NewSavedHandler creates a SavedHandler.
func NewSavedHandler(saved SavedStore, sellers SellerFinder, clock types.Clock) *SavedHandler {
	return &SavedHandler{saved: saved, sellers: sellers, clock: clockOrReal(clock)}
}

// RegisterRoutes mounts the saved listings routes behind requireAuth.
func (h *SavedHandler) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/saved", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", h.List)
		r.Post("/{listingId}", h.Save)
		r.Delete("/{listingId}", h.Remove)
	})
}

// List handles GET /v1/saved.
func (h *SavedHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	ids, err := h.saved.List(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, SavedResponse{ListingIDs: ids})
}

// Save handles POST /v1/saved/{listingId}. Saving twice succeeds.
func (h *SavedHandler) Save(w http.ResponseWriter, r *http.Request) {
	actor, err := h.requireContactable(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.saved.Save(r.Context(), actor.ID, chi.URLParam(r, "listingId"), h.clock.Now()); err != nil {
		core.Error(w, r, err)
		return
	}
	core.NoContent(w)
}

// Remove handles DELETE /v1/saved/{listingId}.
func (h *SavedHandler) Remove(w http.ResponseWriter, r *http.Request) {
	actor, err := h.requireContactable(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.saved.Remove(r.Context(), actor.ID, chi.URLParam(r, "listingId")); err != nil {
		core.Error(w, r, err)
		return
	}
	core.NoContent(w)
}

// requireContactable admits callers whose seller profile has a phone
// number on file.
func (h *SavedHandler) requireContactable(r *http.Request) (types.Actor, error) {
	actor, err := requireActor(r)
	if err != nil {
		return actor, err
	}
	seller, err := sellerFor(r.Context(), h.sellers, actor)
	if err != nil {
		return actor, err
	}
	if seller == nil || seller.Phone == "" {
		return actor, types.NewAppError(types.ErrCodeProfileIncomplete,
			"Add a phone number to your profile to save trucks", nil)
	}
	return actor, nil
}
