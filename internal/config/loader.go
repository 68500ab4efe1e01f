// loader.go implements the configuration loading sequence:
//  1. Enforce UTC so timestamps compare consistently.
//  2. Load .env via godotenv (non-fatal if absent).
//  3. Resolve *_SECRET_REF variables through the SecretProvider and inject
//     the values back into the environment.
//  4. Populate Config via envconfig.
//  5. Attach BuildInfo and validate with go-playground/validator.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is returned by LoadConfig for every loading failure.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// secretRefSuffix marks pointer variables. STRIPE_SECRET_KEY_SECRET_REF=x
// means "ask the SecretProvider for x and store it in STRIPE_SECRET_KEY".
const secretRefSuffix = "_SECRET_REF"

const secretResolveTimeout = 30 * time.Second

type loaderDeps struct {
	lookupEnv func(key string) (string, bool)
	setEnv    func(key, value string) error
	environ   func() []string
	dotenv    func() error
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
		dotenv:    func() error { return godotenv.Load() },
	}
}

// LoadConfig loads and validates the service configuration. provider may be
// nil when no *_SECRET_REF variables are set.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return loadConfigWithDeps(provider, defaultDeps())
}

func loadConfigWithDeps(provider SecretProvider, deps loaderDeps) (*Config, error) {
	time.Local = time.UTC

	// godotenv never overrides variables that are already set.
	_ = deps.dotenv()

	if err := resolveSecretRefs(provider, deps); err != nil {
		return nil, err
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, classifyEnvconfigError(err)
	}

	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	if _, err := cfg.Email.TemplateIDs(); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "email template mapping is malformed",
			Err:     err,
		}
	}

	return &cfg, nil
}

// classifyEnvconfigError separates "required but missing" from malformed
// values so the startup log points at the right fix.
func classifyEnvconfigError(err error) *ConfigError {
	var perr *envconfig.ParseError
	if errors.As(err, &perr) {
		return &ConfigError{
			Type:    ErrParsing,
			Message: fmt.Sprintf("invalid value for %s", perr.KeyName),
			Err:     err,
		}
	}
	if strings.Contains(err.Error(), "required key") {
		return &ConfigError{
			Type:    ErrMissingEnv,
			Message: "required environment variable is missing",
			Err:     err,
		}
	}
	return &ConfigError{
		Type:    ErrParsing,
		Message: "failed to process environment configuration",
		Err:     err,
	}
}

type secretBinding struct {
	target string
	ref    string
}

// resolveSecretRefs injects the value behind every *_SECRET_REF variable
// whose target is not already set. Direct env values win over references.
func resolveSecretRefs(provider SecretProvider, deps loaderDeps) error {
	var bindings []secretBinding
	for _, entry := range deps.environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasSuffix(key, secretRefSuffix) || value == "" {
			continue
		}
		target := strings.TrimSuffix(key, secretRefSuffix)
		if _, exists := deps.lookupEnv(target); exists {
			continue
		}
		bindings = append(bindings, secretBinding{target: target, ref: value})
	}
	if len(bindings) == 0 {
		return nil
	}
	sort.Slice(bindings, func(i, j int) bool { return bindings[i].target < bindings[j].target })

	if provider == nil {
		return &ConfigError{
			Type:    ErrSecretResolution,
			Message: fmt.Sprintf("a SecretProvider is required to resolve: %s", joinTargets(bindings)),
		}
	}

	refs := make([]string, len(bindings))
	for i, b := range bindings {
		refs[i] = b.ref
	}

	ctx, cancel := context.WithTimeout(context.Background(), secretResolveTimeout)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, refs)
	if err != nil {
		return &ConfigError{
			Type:    ErrSecretResolution,
			Message: fmt.Sprintf("failed to resolve %d secret references", len(refs)),
			Err:     err,
		}
	}

	var missing []secretBinding
	for _, b := range bindings {
		value, ok := resolved[b.ref]
		if !ok {
			missing = append(missing, b)
			continue
		}
		if err := deps.setEnv(b.target, value); err != nil {
			return &ConfigError{
				Type:    ErrSecretResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", b.target),
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSecretResolution,
			Message: fmt.Sprintf("secret references not found for: %s", joinTargets(missing)),
		}
	}
	return nil
}

func joinTargets(bindings []secretBinding) string {
	names := make([]string, len(bindings))
	for i, b := range bindings {
		names[i] = b.target
	}
	return strings.Join(names, ", ")
}

// Set with -ldflags "-X truckmarket/internal/config.version=...".
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo reports the linker-injected build metadata.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}
