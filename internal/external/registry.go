package external

import (
	"log/slog"
	"net/http"
	"time"

	"truckmarket/internal/config"
)

// ClientRegistry holds every vendor client the services use.
type ClientRegistry struct {
	Payments       PaymentGateway
	Email          EmailProvider
	StripeVerifier WebhookVerifier
}

// NewClientRegistry builds real clients, or logging stubs when
// cfg.IsTestMode is set or the environment is local.
func NewClientRegistry(cfg *config.Config, logger *slog.Logger) *ClientRegistry {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.IsTestMode || cfg.Environment == "local" {
		logger.Info("initializing external clients in STUB mode",
			"is_test_mode", cfg.IsTestMode,
			"environment", cfg.Environment,
		)
		stubLogger := logger.With("mode", "stub")
		return &ClientRegistry{
			Payments:       NewStubPaymentGateway(stubLogger),
			Email:          NewStubEmailProvider(stubLogger),
			StripeVerifier: NewStubWebhookVerifier(stubLogger),
		}
	}

	logger.Info("initializing external clients", "environment", cfg.Environment)
	return &ClientRegistry{
		Payments: NewStripeClient(&http.Client{Timeout: 20 * time.Second}, StripeClientConfig{
			SecretKey: cfg.Billing.StripeSecretKey.Unmask(),
			Logger:    logger.With("client", "stripe"),
		}),
		Email: NewSendGridClient(&http.Client{Timeout: 10 * time.Second}, SendGridClientConfig{
			APIKey: cfg.Email.SendGridAPIKey.Unmask(),
			Logger: logger.With("client", "sendgrid"),
		}),
		StripeVerifier: &StripeVerifier{},
	}
}
