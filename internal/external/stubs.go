package external

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"github.com/google/uuid"

	"truckmarket/internal/types"
)

// The stubs below let the API boot locally (APP_ENV=local or IS_TEST_MODE)
// without vendor credentials. They log every call.

// StubPaymentGateway remembers the sessions it opens and reports each one
// as paid, so the full checkout and fulfillment path can be exercised
// without Stripe.
type StubPaymentGateway struct {
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*types.CheckoutSession
}

// NewStubPaymentGateway creates a new StubPaymentGateway.
func NewStubPaymentGateway(logger *slog.Logger) *StubPaymentGateway {
	return &StubPaymentGateway{
		logger:   logger,
		sessions: make(map[string]*types.CheckoutSession),
	}
}

func (s *StubPaymentGateway) CreateCheckoutSession(ctx context.Context, req types.CheckoutRequest) (*types.CheckoutLink, error) {
	id := "cs_stub_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	session := &types.CheckoutSession{
		ID:            id,
		Mode:          req.Mode,
		PaymentStatus: "paid",
		AmountTotal:   req.UnitAmountCents,
		Metadata:      maps.Clone(req.Metadata),
	}
	if req.Mode == types.CheckoutModeSubscription {
		session.SubscriptionID = "sub_stub_" + id[len("cs_stub_"):]
	}

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "stub: CreateCheckoutSession called",
		"session_id", id,
		"mode", req.Mode,
	)
	return &types.CheckoutLink{
		SessionID: id,
		URL:       strings.ReplaceAll(req.SuccessURL, "{CHECKOUT_SESSION_ID}", id),
	}, nil
}

func (s *StubPaymentGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*types.CheckoutSession, error) {
	s.logger.InfoContext(ctx, "stub: GetCheckoutSession called", "session_id", sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundSession,
			fmt.Sprintf("checkout session %s not found", sessionID), nil)
	}
	cp := *session
	cp.Metadata = maps.Clone(session.Metadata)
	return &cp, nil
}

// StubEmailProvider logs emails instead of sending them.
type StubEmailProvider struct {
	logger *slog.Logger
}

// NewStubEmailProvider creates a new StubEmailProvider.
func NewStubEmailProvider(logger *slog.Logger) *StubEmailProvider {
	return &StubEmailProvider{logger: logger}
}

func (s *StubEmailProvider) Send(ctx context.Context, input types.SendInput) (string, error) {
	s.logger.InfoContext(ctx, "stub: Send email called",
		"to", input.To,
		"template_id", input.TemplateID,
		"reference_id", input.ReferenceID,
	)
	return "msg_stub_" + input.ReferenceID, nil
}

// StubWebhookVerifier accepts every payload.
type StubWebhookVerifier struct {
	logger *slog.Logger
}

// NewStubWebhookVerifier creates a new StubWebhookVerifier.
func NewStubWebhookVerifier(logger *slog.Logger) *StubWebhookVerifier {
	return &StubWebhookVerifier{logger: logger}
}

func (s *StubWebhookVerifier) Verify(payload []byte, _ string, _ string) error {
	s.logger.Info("stub: Stripe webhook Verify called", "payload_len", len(payload))
	return nil
}

var (
	_ PaymentGateway  = (*StubPaymentGateway)(nil)
	_ EmailProvider   = (*StubEmailProvider)(nil)
	_ WebhookVerifier = (*StubWebhookVerifier)(nil)
)
