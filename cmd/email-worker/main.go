// Package main is the entrypoint for the Email Worker Lambda function.
//
// The worker consumes EmailJobs that the API published to the email queue
// and hands each one to the SendGrid sender. It uses SQS partial batch
// responses: only messages that failed with a transient error are reported
// back for redelivery. Malformed bodies and permanent provider rejections
// are logged and acknowledged.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"truckmarket/internal/config"
	"truckmarket/internal/external"
	"truckmarket/internal/metrics"
	"truckmarket/internal/notifications/email"
	"truckmarket/internal/queue"
	"truckmarket/internal/types"
)

// Deliverer sends one job and classifies its failures.
type Deliverer interface {
	Deliver(ctx context.Context, job types.EmailJob) (*email.DeliveryResult, error)
	ShouldRetry(err error) bool
}

// Handler holds the dependencies for the email worker Lambda handler.
type Handler struct {
	sender Deliverer
	logger *slog.Logger
}

// Handle processes one SQS batch.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if h.process(ctx, record) {
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

// process reports whether the message should be redelivered.
func (h *Handler) process(ctx context.Context, record events.SQSMessage) bool {
	job, err := queue.DecodeEmailJob(record.Body)
	if err != nil {
		h.logger.ErrorContext(ctx, "dropping malformed email job",
			"message_id", record.MessageId,
			"error", err,
		)
		return false
	}

	result, err := h.sender.Deliver(ctx, job)
	if err == nil {
		h.logger.InfoContext(ctx, "email job processed",
			"message_id", record.MessageId,
			"job_id", job.JobID,
			"status", result.Status,
			"trace_id", job.TraceID,
		)
		return false
	}

	if h.sender.ShouldRetry(err) {
		h.logger.WarnContext(ctx, "email delivery failed, will retry",
			"message_id", record.MessageId,
			"job_id", job.JobID,
			"error", err,
		)
		return true
	}

	h.logger.ErrorContext(ctx, "email delivery failed permanently",
		"message_id", record.MessageId,
		"job_id", job.JobID,
		"kind", job.Kind,
		"error", err,
	)
	return false
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	h, err := newHandler(context.Background(), logger)
	if err != nil {
		logger.Error("email worker failed to initialize", "error", err)
		os.Exit(1)
	}

	logger.Info("email worker initialized")
	lambda.Start(h.Handle)
}

func newHandler(ctx context.Context, logger *slog.Logger) (*Handler, error) {
	cfg, err := config.LoadConfig(config.ProviderFromEnv())
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	ids, err := cfg.Email.TemplateIDs()
	if err != nil {
		return nil, fmt.Errorf("decoding email templates: %w", err)
	}
	templates := email.NewTemplateSet(ids, types.SenderIdentity{
		Name:    cfg.Email.FromName,
		Address: cfg.Email.FromAddress,
	})
	if missing := templates.Missing(); len(missing) > 0 {
		logger.Warn("email kinds without a template will be dropped", "kinds", missing)
	}

	senderCfg := email.SenderConfig{
		Provider:  external.NewClientRegistry(cfg, logger).Email,
		Templates: templates,
		Logger:    logger,
	}
	if cfg.Observability.EnableMetrics {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("loading AWS configuration: %w", err)
		}
		cw := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		senderCfg.Metrics = metrics.NewCollector(cw, cfg.Observability.MetricNamespace, logger)
	}

	return &Handler{sender: email.NewSender(senderCfg), logger: logger}, nil
}
