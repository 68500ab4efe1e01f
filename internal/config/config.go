// Package config defines the configuration of the marketplace services.
// Configuration is loaded once at process start and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> SecretProvider (*_SECRET_REF)
//
// Any missing required value or invalid format is returned as a *ConfigError
// and callers exit immediately.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"truckmarket/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the section they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"truckmarket-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	IsTestMode  bool   `envconfig:"IS_TEST_MODE" default:"false"`

	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Billing       BillingConfig
	Email         EmailConfig
	Auth          AuthConfig
	Security      SecurityConfig
	Observability ObservabilityConfig
	Feature       FeatureConfig

	// Injected via ldflags, not env.
	Build BuildInfo
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// PublicBaseURL is the site buyers and sellers browse (no trailing slash).
	// Checkout success and cancel URLs are built from it.
	PublicBaseURL string        `envconfig:"PUBLIC_BASE_URL" validate:"required,url"`
	ReadTimeout   time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout  time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// EmailQueueURL is the SQS queue transactional email jobs are published
	// to. When empty, emails are sent inline by the API process.
	EmailQueueURL string `envconfig:"SQS_EMAIL_QUEUE" validate:"omitempty,url"`

	// LocalStack support (empty in prod).
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// BillingConfig holds Stripe credentials and the subscription price IDs.
type BillingConfig struct {
	StripeSecretKey     SecretString `envconfig:"STRIPE_SECRET_KEY" validate:"required"`
	StripeWebhookSecret SecretString `envconfig:"STRIPE_WEBHOOK_SECRET" validate:"required"`
	PriceIDPro          string       `envconfig:"STRIPE_PRICE_PRO"`
	PriceIDProPlus      string       `envconfig:"STRIPE_PRICE_PRO_PLUS"`
	PriceIDDealer       string       `envconfig:"STRIPE_PRICE_DEALER"`
}

// PriceIDs returns the configured Stripe price for each paid tier. Tiers
// with no configured price are omitted.
func (b BillingConfig) PriceIDs() map[types.Tier]string {
	out := make(map[types.Tier]string, 3)
	for tier, id := range map[types.Tier]string{
		types.TierPro:     b.PriceIDPro,
		types.TierProPlus: b.PriceIDProPlus,
		types.TierDealer:  b.PriceIDDealer,
	} {
		if id != "" {
			out[tier] = id
		}
	}
	return out
}

// EmailConfig holds email provider credentials and template configuration.
type EmailConfig struct {
	SendGridAPIKey SecretString `envconfig:"SENDGRID_API_KEY" validate:"required"`
	FromAddress    string       `envconfig:"EMAIL_FROM_ADDRESS" default:"noreply@truckmarket.example" validate:"email"`
	FromName       string       `envconfig:"EMAIL_FROM_NAME" default:"Truck Market"`
	// TeamAddress receives internal notices such as new financing leads.
	TeamAddress string `envconfig:"EMAIL_TEAM_ADDRESS" validate:"omitempty,email"`
	// Templates maps an email kind to a SendGrid dynamic template ID.
	// Example: {"truck_listed": "d-123...", "seller_upgraded": "d-456..."}
	Templates string `envconfig:"EMAIL_TEMPLATES_JSON" validate:"required,json"`
}

// TemplateIDs decodes Templates.
func (e EmailConfig) TemplateIDs() (map[types.EmailKind]string, error) {
	var out map[types.EmailKind]string
	if err := json.Unmarshal([]byte(e.Templates), &out); err != nil {
		return nil, fmt.Errorf("decode EMAIL_TEMPLATES_JSON: %w", err)
	}
	return out, nil
}

// AuthConfig holds session settings.
type AuthConfig struct {
	SessionTTL   time.Duration `envconfig:"SESSION_TTL" default:"168h"`
	CookieName   string        `envconfig:"SESSION_COOKIE_NAME" default:"tm_session"`
	CookieSecure bool          `envconfig:"SESSION_COOKIE_SECURE" default:"true"`

	// SkipEmailVerification lets unverified users list trucks and buy ads.
	SkipEmailVerification bool `envconfig:"SKIP_EMAIL_VERIFICATION" default:"false"`
}

// SecurityConfig holds abuse-protection and CORS settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	RateLimitPerMinute int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120" validate:"min=1"`
	LoginIPThreshold   int           `envconfig:"LOGIN_IP_THRESHOLD" default:"100" validate:"min=1"`
	LoginIDThreshold   int           `envconfig:"LOGIN_IDENTIFIER_THRESHOLD" default:"5" validate:"min=1"`
	LoginWindow        time.Duration `envconfig:"LOGIN_WINDOW" default:"15m"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"TruckMarket"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// FeatureConfig holds kill switches.
type FeatureConfig struct {
	EnableEmail bool `envconfig:"FEATURE_ENABLE_EMAIL" default:"true"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSecretResolution indicates a *_SECRET_REF could not be resolved.
	ErrSecretResolution ConfigErrorType = "SECRET_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates an environment value could not be parsed into
	// its target type.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
