package external

import (
	"context"

	"truckmarket/internal/types"
)

// PaymentGateway opens hosted checkout pages and reads them back once the
// buyer returns.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req types.CheckoutRequest) (*types.CheckoutLink, error)

	// GetCheckoutSession returns the session with its subscription id
	// expanded to a plain string.
	GetCheckoutSession(ctx context.Context, sessionID string) (*types.CheckoutSession, error)
}

// WebhookVerifier checks a payment-processor webhook signature.
type WebhookVerifier interface {
	Verify(payload []byte, header string, secret string) error
}

// Stripe event types the webhook handler reacts to.
const (
	EventStripeCheckoutCompleted = "checkout.session.completed"
	EventStripeInvoicePaid       = "invoice.paid"
)

// EmailProvider delivers a templated email and returns the provider's
// message id.
type EmailProvider interface {
	Send(ctx context.Context, input types.SendInput) (providerMsgID string, err error)
}
