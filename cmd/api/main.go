// Package main is the entry point for the marketplace API server.
//
// It loads configuration, opens the Postgres pool, builds the vendor clients
// and domain services, mounts every /v1 handler on the core chassis and
// serves HTTP until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"

	"truckmarket/internal/api/handlers"
	"truckmarket/internal/auth"
	"truckmarket/internal/billing"
	"truckmarket/internal/config"
	"truckmarket/internal/core"
	"truckmarket/internal/db"
	"truckmarket/internal/external"
	"truckmarket/internal/metrics"
	"truckmarket/internal/notifications/email"
	"truckmarket/internal/queue"
	"truckmarket/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(config.ProviderFromEnv())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("truckmarket API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		pool.Close()
		return fmt.Errorf("creating server: %w", err)
	}
	srv.OnShutdown(func() error {
		pool.Close()
		return nil
	})

	awsCfg, err := loadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return err
	}

	tel := newTelemetry(cfg, awsCfg, logger)
	clients := external.NewClientRegistry(cfg, logger)

	notifier, err := newNotifier(cfg, awsCfg, clients.Email, tel, logger)
	if err != nil {
		return err
	}

	clock := srv.Clock
	if tel.requests != nil {
		srv.Metrics = tel.requests
	}

	// Repositories.
	listings := db.NewListingRepository(pool)
	sellers := db.NewSellerRepository(pool)
	plans := db.NewPlanRepository(pool)
	users := db.NewUserRepository(pool)

	// Authentication.
	sessions := auth.NewSessions(db.NewSessionRepository(pool), nil, cfg.Auth.SessionTTL, clock, logger)
	guard := auth.NewLoginGuard(db.NewSecurityRepository(pool), auth.GuardConfig{
		IPThreshold:         cfg.Security.LoginIPThreshold,
		IdentifierThreshold: cfg.Security.LoginIDThreshold,
		Window:              cfg.Security.LoginWindow,
	}, clock, logger)
	authSvc := auth.NewService(auth.ServiceConfig{
		Users:    users,
		Sessions: sessions,
		Security: guard,
		Hasher:   auth.BcryptHasher{},
		Clock:    clock,
		Logger:   logger,
	})

	srv.Authenticator = authSvc
	srv.SecurityService = guard
	srv.RateLimitStore = core.NewMemoryRateLimitStore(clock)
	srv.HealthProbes = append(srv.HealthProbes, core.NewPingProbe("database", pool))

	// Billing.
	billingCfg := billing.ServiceConfig{
		Gateway:       clients.Payments,
		Plans:         billing.NewStaticPlanRegistry(cfg.Billing.PriceIDs()),
		Listings:      listings,
		Sellers:       sellers,
		Store:         db.NewFulfillmentStore(pool, pool),
		Notifier:      notifier,
		Clock:         clock,
		PublicBaseURL: cfg.Server.PublicBaseURL,
		Logger:        logger,
	}
	if tel.payments != nil {
		billingCfg.Metrics = tel.payments
	}
	billingSvc := billing.NewService(billingCfg)

	ads := db.NewAdRepository(pool)
	emailGate := handlers.NewEmailGate(users, cfg.Auth.SkipEmailVerification)
	cookie := handlers.NewCookieConfig(cfg.Auth.CookieName, cfg.Auth.CookieSecure, cfg.Auth.SessionTTL)

	listingHandler := handlers.NewListingHandler(handlers.ListingHandlerConfig{
		Listings:      listings,
		Admission:     db.NewAdmissionStore(pool, clock),
		Plans:         plans,
		Sellers:       sellers,
		Notifier:      notifier,
		EmailGate:     emailGate,
		Validator:     srv.Validator,
		Clock:         clock,
		PublicBaseURL: cfg.Server.PublicBaseURL,
		Logger:        logger,
	})
	homepageHandler := handlers.NewHomepageHandler(listings, db.NewReviewRepository(pool), plans, sellers, clock, logger)
	sellerHandler := handlers.NewSellerHandler(
		sellers,
		listings,
		plans,
		billing.NewUsageReporter(db.NewUsageRepository(pool), clock),
		db.NewReviewRepository(pool),
		srv.Validator,
		clock,
		logger,
	)
	savedHandler := handlers.NewSavedHandler(db.NewSavedRepository(pool), sellers, clock)
	messageHandler := handlers.NewMessageHandler(
		db.NewMessageRepository(pool), users, notifier, srv.Validator, clock, cfg.Server.PublicBaseURL, logger,
	)
	financingRepo := db.NewFinancingRepository(pool, pool)
	financingHandler := handlers.NewFinancingHandler(
		financingRepo, notifier, srv.Validator, clock, cfg.Email.TeamAddress, logger,
	)
	checkoutHandler := handlers.NewCheckoutHandler(billingSvc, sellers, ads, emailGate, srv.Validator, clock, logger)
	webhookHandler := handlers.NewStripeWebhookHandler(
		clients.StripeVerifier, billingSvc, cfg.Billing.StripeWebhookSecret.Unmask(), logger,
	)
	adminHandler := handlers.NewAdminHandler(handlers.AdminHandlerConfig{
		Stats:     db.NewStatsRepository(pool),
		Listings:  listings,
		Plans:     plans,
		Sellers:   sellers,
		Ads:       ads,
		Financing: financingRepo,
		Validator: srv.Validator,
		Clock:     clock,
		Logger:    logger,
	})
	verifier := auth.NewVerifier(db.NewVerificationRepository(pool, pool), clock, logger)
	authHandler := handlers.NewAuthHandler(authSvc, users, cookie, srv.Validator, logger).
		WithVerification(handlers.NewVerificationHandler(verifier, users, notifier, cfg.Server.PublicBaseURL, logger))
	accountHandler := handlers.NewAccountHandler(db.NewAccountRepository(pool), users, authSvc, cookie, srv.Validator, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { authHandler.RegisterRoutes(r, srv.RequireAuth) },
		func(r chi.Router) { accountHandler.RegisterRoutes(r, srv.RequireAuth) },
		func(r chi.Router) { listingHandler.RegisterRoutes(r, srv.RequireAuth) },
		homepageHandler.RegisterRoutes,
		func(r chi.Router) { sellerHandler.RegisterRoutes(r, srv.RequireAuth) },
		func(r chi.Router) { savedHandler.RegisterRoutes(r, srv.RequireAuth) },
		func(r chi.Router) { messageHandler.RegisterRoutes(r, srv.RequireAuth) },
		financingHandler.RegisterRoutes,
		func(r chi.Router) { checkoutHandler.RegisterRoutes(r, srv.RequireAuth) },
		webhookHandler.RegisterRoutes,
		func(r chi.Router) { adminHandler.RegisterRoutes(r, srv.RequireAdmin) },
	)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// telemetry carries the metric sinks. Each field stays nil when metrics are
// disabled so consumers see an untyped nil interface.
type telemetry struct {
	requests core.MetricsCollector
	emails   email.DeliveryMetrics
	payments billing.PaymentMetrics
}

func newTelemetry(cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) telemetry {
	if !cfg.Observability.EnableMetrics {
		return telemetry{}
	}
	cw := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})
	c := metrics.NewCollector(cw, cfg.Observability.MetricNamespace, logger)
	return telemetry{requests: c, emails: c, payments: c}
}

func loadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS configuration: %w", err)
	}
	return awsCfg, nil
}

// newNotifier picks how emails leave the API process: dropped when the
// feature is off, queued to SQS when a queue is configured, or sent inline.
func newNotifier(cfg *config.Config, awsCfg aws.Config, provider external.EmailProvider, tel telemetry, logger *slog.Logger) (*email.Notifier, error) {
	dispatcher, err := newDispatcher(cfg, func() queue.SQSSender {
		return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
	}, provider, tel, logger)
	if err != nil {
		return nil, err
	}
	return email.NewNotifier(dispatcher, logger), nil
}

func newDispatcher(
	cfg *config.Config,
	sqsClient func() queue.SQSSender,
	provider external.EmailProvider,
	tel telemetry,
	logger *slog.Logger,
) (email.Dispatcher, error) {
	switch {
	case !cfg.Feature.EnableEmail:
		logger.Warn("email disabled by FEATURE_ENABLE_EMAIL")
		return nil, nil
	case cfg.AWS.EmailQueueURL != "":
		return queue.NewEmailPublisher(sqsClient(), cfg.AWS, logger), nil
	}

	ids, err := cfg.Email.TemplateIDs()
	if err != nil {
		return nil, fmt.Errorf("decoding email templates: %w", err)
	}
	sender := email.NewSender(email.SenderConfig{
		Provider: provider,
		Templates: email.NewTemplateSet(ids, types.SenderIdentity{
			Name:    cfg.Email.FromName,
			Address: cfg.Email.FromAddress,
		}),
		Metrics: tel.emails,
		Logger:  logger,
	})
	return email.InlineDispatcher{Sender: sender}, nil
}

func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
