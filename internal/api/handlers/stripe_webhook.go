// This file implements the Stripe webhook handler.
//
// The handler is NOT behind auth middleware; it is called directly by
// Stripe. Requests are authenticated by the Stripe-Signature header.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v82"

	"truckmarket/internal/billing"
	"truckmarket/internal/core"
	"truckmarket/internal/external"
	"truckmarket/internal/types"
)

// maxWebhookBodySize is the maximum allowed size of a Stripe webhook payload (64 KB).
const maxWebhookBodySize = 64 * 1024

// WebhookFulfiller applies the payment events Stripe pushes. Implemented by
// billing.Service; both methods are idempotent.
type WebhookFulfiller interface {
	HandleCheckoutCompleted(ctx context.Context, session *types.CheckoutSession) (*billing.Fulfillment, error)
	RenewSubscription(ctx context.Context, inv *types.InvoicePayment) (*billing.Fulfillment, error)
}

// StripeWebhookHandler handles asynchronous events from Stripe.
type StripeWebhookHandler struct {
	verifier  external.WebhookVerifier
	fulfiller WebhookFulfiller
	secret    string
	logger    *slog.Logger
}

// NewStripeWebhookHandler creates a new StripeWebhookHandler.
func NewStripeWebhookHandler(
	verifier external.WebhookVerifier,
	fulfiller WebhookFulfiller,
	secret string,
	logger *slog.Logger,
) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		verifier:  verifier,
		fulfiller: fulfiller,
		secret:    secret,
		logger:    loggerOrDefault(logger),
	}
}

// RegisterRoutes mounts the Stripe webhook endpoint.
func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/stripe/webhook", h.Handle)
}

// Handle processes incoming Stripe webhook events.
//
//  1. Read the body and verify the Stripe-Signature header.
//  2. Decode the event.
//  3. Route by event type. Unknown types are acknowledged.
//
// A failed fulfillment answers with an error status so Stripe redelivers
// the event; fulfillment is keyed by session or invoice id, so a
// redelivery that races a success applies once. Events about records that
// do not exist are acknowledged.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidInput,
			"failed to read request body",
			err,
		))
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		h.logger.WarnContext(r.Context(), "missing Stripe-Signature header")
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"missing Stripe-Signature header",
			nil,
		))
		return
	}
	if err := h.verifier.Verify(payload, sigHeader, h.secret); err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenInvalid,
			"webhook signature verification failed",
			err,
		))
		return
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to parse webhook event JSON", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidInput,
			"invalid webhook event JSON",
			err,
		))
		return
	}

	h.logger.InfoContext(r.Context(), "processing stripe webhook event",
		"event_id", event.ID,
		"event_type", event.Type,
	)

	err = h.routeEvent(r.Context(), &event)
	if err != nil && isNotFound(err) {
		h.logger.WarnContext(r.Context(), "webhook event refers to unknown records",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err,
		)
		err = nil
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "webhook event processing failed",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	core.Data(w, r, http.StatusOK, map[string]bool{"received": true})
}

func (h *StripeWebhookHandler) routeEvent(ctx context.Context, event *stripe.Event) error {
	if event.Data == nil {
		return nil
	}
	switch string(event.Type) {
	case external.EventStripeCheckoutCompleted:
		return h.handleCheckoutCompleted(ctx, event)
	case external.EventStripeInvoicePaid:
		return h.handleInvoicePaid(ctx, event)
	default:
		h.logger.InfoContext(ctx, "ignoring unhandled webhook event type", "event_type", event.Type)
		return nil
	}
}

// handleCheckoutCompleted fulfills subscription checkouts and listing
// boosts. Ad checkouts are settled by the buyer's return visit.
func (h *StripeWebhookHandler) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return fmt.Errorf("checkout.session.completed: decode session in event %s: %w", event.ID, err)
	}
	result, err := h.fulfiller.HandleCheckoutCompleted(ctx, external.MapCheckoutSession(&cs))
	if err != nil {
		return err
	}
	if result != nil {
		h.logger.InfoContext(ctx, "checkout fulfilled from webhook",
			"event_id", event.ID,
			"kind", result.Kind,
			"already_fulfilled", result.AlreadyFulfilled,
		)
	}
	return nil
}

// handleInvoicePaid extends a plan on routine subscription renewals. The
// first invoice of a subscription is covered by the checkout event.
func (h *StripeWebhookHandler) handleInvoicePaid(ctx context.Context, event *stripe.Event) error {
	inv, err := external.DecodeInvoicePayment(event.Data.Raw)
	if err != nil {
		return fmt.Errorf("invoice.paid: event %s: %w", event.ID, err)
	}
	if inv.BillingReason != types.BillingReasonSubscriptionCycle {
		h.logger.InfoContext(ctx, "ignoring non-renewal invoice",
			"invoice_id", inv.ID,
			"billing_reason", inv.BillingReason,
		)
		return nil
	}
	_, err = h.fulfiller.RenewSubscription(ctx, inv)
	return err
}
