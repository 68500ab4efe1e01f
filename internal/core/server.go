// Package core provides the HTTP chassis of the marketplace API. It builds a
// chi router with the global middleware chain (recovery, request IDs,
// logging, CORS, metrics, authentication, CSRF and rate limiting) and the
// JSON envelope helpers shared by every handler.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"

	"truckmarket/internal/config"
	"truckmarket/internal/types"
)

// MetricsCollector records API telemetry.
type MetricsCollector interface {
	// RecordRequest records one finished request. endpoint is the matched
	// route pattern, not the raw path.
	RecordRequest(ctx context.Context, endpoint string, status int, latency time.Duration)
}

// Server holds the dependencies of the API process. Optional collaborators
// (Metrics, SecurityService, Authenticator, RateLimitStore) disable their
// middleware when nil.
type Server struct {
	Config          *config.Config
	Logger          *slog.Logger
	Validator       *Validator
	Clock           types.Clock
	Metrics         MetricsCollector
	SecurityService types.SecurityService
	Authenticator   Authenticator
	RateLimitStore  RateLimitStore
	HealthProbes    []HealthProbe

	// V1RouteRegistrars mount domain handlers under /v1. They are populated
	// by cmd/api so core does not import the handler packages.
	V1RouteRegistrars []func(chi.Router)

	closers []func() error
	router  *chi.Mux
}

// NewServer validates the critical dependencies and prepares an empty
// router. Call MountRoutes after the registrars are in place.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		Clock:     types.RealClock{},
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router wrapped in gzip compression.
func (s *Server) Handler() http.Handler {
	return gzhttp.GzipHandler(s.router)
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers fn to run during Shutdown, in registration order.
func (s *Server) OnShutdown(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Shutdown releases the resources registered with OnShutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	var errs []error
	for _, fn := range s.closers {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := fn(); err != nil {
			s.Logger.Error("shutdown hook failed", "error", err)
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.Logger.Info("server shutdown complete")
	return nil
}

func (s *Server) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now()
}
