package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"truckmarket/internal/core"
	"truckmarket/internal/types"
)

// FinancingStore stores financing leads.
type FinancingStore interface {
	Submit(ctx context.Context, buyer *types.Buyer, req *types.FinancingRequest) error
}

// FinancingRequestBody is the request body for POST /v1/financing.
type FinancingRequestBody struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Email       string   `json:"email" validate:"required,email"`
	Phone       string   `json:"phone,omitempty" validate:"max=40"`
	ListingID   string   `json:"truck_id,omitempty"`
	CreditScore string   `json:"credit_score,omitempty" validate:"max=50"`
	DownPayment *float64 `json:"down_payment,omitempty" validate:"omitempty,gte=0"`
	Message     string   `json:"message,omitempty" validate:"max=5000"`
}

// FinancingHandler accepts financing applications from buyers.
type FinancingHandler struct {
	store       FinancingStore
	notifier    Notifier
	validator   *core.Validator
	clock       types.Clock
	teamAddress string
	logger      *slog.Logger
}

// NewFinancingHandler creates a FinancingHandler. teamAddress receives a
// notice for every new lead; leave it empty to skip the notice.
func NewFinancingHandler(
	store FinancingStore,
	notifier Notifier,
	v *core.Validator,
	clock types.Clock,
	teamAddress string,
	l *slog.Logger,
) *FinancingHandler {
	return &FinancingHandler{
		store:       store,
		notifier:    notifier,
		validator:   v,
		clock:       clockOrReal(clock),
		teamAddress: teamAddress,
		logger:      loggerOrDefault(l),
	}
}

// RegisterRoutes mounts the public financing route.
func (h *FinancingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/financing", h.Submit)
}

// Submit handles POST /v1/financing. Email failures are logged and never
// fail the request.
func (h *FinancingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var body FinancingRequestBody
	if err := core.DecodeJSON(w, r, &body); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.Struct(body); err != nil {
		core.Error(w, r, err)
		return
	}

	now := h.clock.Now()
	buyer := &types.Buyer{
		ID:        "buy_" + uuid.New().String(),
		Name:      strings.TrimSpace(body.Name),
		Email:     strings.ToLower(strings.TrimSpace(body.Email)),
		Phone:     strings.TrimSpace(body.Phone),
		CreatedAt: now,
	}
	req := &types.FinancingRequest{
		ID:           "fin_" + uuid.New().String(),
		ListingID:    body.ListingID,
		CreditScore:  body.CreditScore,
		DownPayment:  body.DownPayment,
		Message:      strings.TrimSpace(body.Message),
		LenderStatus: types.LenderStatusPending,
		LeadStatus:   types.LeadStatusNew,
		CreatedAt:    now,
	}
	if err := h.store.Submit(r.Context(), buyer, req); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "financing request submitted", "request_id", req.ID, "buyer_id", buyer.ID)

	data := map[string]any{
		"buyerName":   buyer.Name,
		"buyerEmail":  buyer.Email,
		"buyerPhone":  buyer.Phone,
		"creditScore": req.CreditScore,
		"truckId":     req.ListingID,
		"message":     req.Message,
	}
	if req.DownPayment != nil {
		data["downPayment"] = *req.DownPayment
	}
	notifyQuietly(r.Context(), h.logger, h.notifier, types.EmailFinancingTeamNotice, h.teamAddress, data)
	notifyQuietly(r.Context(), h.logger, h.notifier, types.EmailFinancingConfirmation, buyer.Email, map[string]any{
		"buyerName": buyer.Name,
	})

	core.Data(w, r, http.StatusCreated, CreatedResponse{ID: req.ID})
}
