package email

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"truckmarket/internal/external"
	"truckmarket/internal/types"
)

// DeliveryStatus is the outcome of one delivery attempt.
type DeliveryStatus string

const (
	StatusSent    DeliveryStatus = "sent"
	StatusBlocked DeliveryStatus = "blocked"
)

// DeliveryResult describes a finished delivery.
type DeliveryResult struct {
	Status            DeliveryStatus
	ProviderMessageID string
}

// DeliveryMetrics records delivery outcomes per email kind.
type DeliveryMetrics interface {
	RecordEmail(ctx context.Context, kind types.EmailKind, sent bool, latency time.Duration)
}

// Sender delivers EmailJobs through an EmailProvider.
type Sender struct {
	provider  external.EmailProvider
	templates *TemplateSet
	metrics   DeliveryMetrics
	logger    *slog.Logger
}

// SenderConfig holds the dependencies of a Sender. Metrics is optional.
type SenderConfig struct {
	Provider  external.EmailProvider
	Templates *TemplateSet
	Metrics   DeliveryMetrics
	Logger    *slog.Logger
}

// NewSender creates a Sender.
func NewSender(cfg SenderConfig) *Sender {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		provider:  cfg.Provider,
		templates: cfg.Templates,
		metrics:   cfg.Metrics,
		logger:    logger,
	}
}

// Deliver sends job. A suppressed recipient is reported as StatusBlocked
// with a nil error, since retrying cannot succeed. Other failures are
// returned for the caller to retry.
func (s *Sender) Deliver(ctx context.Context, job types.EmailJob) (*DeliveryResult, error) {
	logger := s.logger.With("job_id", job.JobID, "kind", job.Kind, "to", RedactEmail(job.To))

	templateID, err := s.templates.Resolve(job.Kind)
	if err != nil {
		logger.ErrorContext(ctx, "email template missing", "error", err)
		return nil, err
	}

	start := time.Now()
	msgID, err := s.provider.Send(ctx, types.SendInput{
		To:           job.To,
		From:         s.templates.Sender(),
		TemplateID:   templateID,
		TemplateData: job.Data,
		ReferenceID:  job.JobID,
	})
	latency := time.Since(start)

	if err != nil {
		s.record(ctx, job.Kind, false, latency)
		if IsBlocklistError(err) {
			logger.WarnContext(ctx, "recipient blocked by provider")
			return &DeliveryResult{Status: StatusBlocked}, nil
		}
		logger.ErrorContext(ctx, "email delivery failed", "error", err)
		return nil, err
	}

	s.record(ctx, job.Kind, true, latency)
	logger.InfoContext(ctx, "email sent", "provider_message_id", msgID)
	return &DeliveryResult{Status: StatusSent, ProviderMessageID: msgID}, nil
}

// ShouldRetry reports whether a Deliver error is transient.
func (s *Sender) ShouldRetry(err error) bool {
	if err == nil || IsBlocklistError(err) || errors.Is(err, ErrUnknownTemplate) {
		return false
	}
	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.Code == types.ErrCodeValidationMissingField {
		return false
	}
	return true
}

func (s *Sender) record(ctx context.Context, kind types.EmailKind, sent bool, latency time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordEmail(ctx, kind, sent, latency)
	}
}
