package billing

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"truckmarket/internal/external"
	"truckmarket/internal/types"
)

// ListingLookup reads listings by id.
type ListingLookup interface {
	GetByID(ctx context.Context, id string) (*types.Listing, error)
}

// SellerLookup reads seller profiles by id.
type SellerLookup interface {
	GetByID(ctx context.Context, id string) (*types.Seller, error)
}

// FulfillmentStore applies a paid order and records its payment in one
// transaction. Each Apply method reports false without changing anything
// when a payment with the same StripeRef already exists.
type FulfillmentStore interface {
	ApplyBoost(ctx context.Context, p *types.Payment, listingID string, until time.Time) (bool, error)
	ApplySellerPlan(ctx context.Context, p *types.Payment, plan *types.SellerPlan) (bool, error)
	ApplyAd(ctx context.Context, p *types.Payment, ad *types.Ad) (bool, error)

	// GetPlanBySubscription finds the plan a processor subscription renews.
	GetPlanBySubscription(ctx context.Context, subscriptionID string) (*types.SellerPlan, error)
}

// Notifier queues a transactional email.
type Notifier interface {
	Notify(ctx context.Context, kind types.EmailKind, to string, data map[string]any) error
}

// PaymentMetrics records applied payments.
type PaymentMetrics interface {
	RecordPayment(ctx context.Context, kind types.PaymentType, amount float64)
}

// ServiceConfig holds the dependencies of a Service.
type ServiceConfig struct {
	Gateway  external.PaymentGateway
	Plans    PlanRegistry
	Listings ListingLookup
	Sellers  SellerLookup
	Store    FulfillmentStore
	Notifier Notifier
	Metrics  PaymentMetrics
	Clock    types.Clock
	// PublicBaseURL is where the processor sends buyers back to.
	PublicBaseURL string
	Logger        *slog.Logger
}

// Service opens checkout sessions and fulfills the paid ones.
type Service struct {
	gateway  external.PaymentGateway
	plans    PlanRegistry
	listings ListingLookup
	sellers  SellerLookup
	store    FulfillmentStore
	notifier Notifier
	metrics  PaymentMetrics
	clock    types.Clock
	baseURL  string
	logger   *slog.Logger
}

// NewService creates a billing Service. Notifier and Metrics are optional.
func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		gateway:  cfg.Gateway,
		plans:    cfg.Plans,
		listings: cfg.Listings,
		sellers:  cfg.Sellers,
		store:    cfg.Store,
		notifier: cfg.Notifier,
		metrics:  cfg.Metrics,
		clock:    clock,
		baseURL:  strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		logger:   logger,
	}
}

// Plans exposes the catalog the service sells from.
func (s *Service) Plans() PlanRegistry {
	return s.plans
}

func (s *Service) notify(ctx context.Context, kind types.EmailKind, to string, data map[string]any) {
	if s.notifier == nil || to == "" {
		return
	}
	if err := s.notifier.Notify(ctx, kind, to, data); err != nil {
		s.logger.WarnContext(ctx, "failed to queue email", "kind", kind, "error", err)
	}
}

func (s *Service) recordPayment(ctx context.Context, p *types.Payment) {
	if s.metrics != nil {
		s.metrics.RecordPayment(ctx, p.PaymentType, p.Amount)
	}
}
