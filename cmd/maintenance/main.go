// Package main is the entrypoint for the Maintenance Lambda function.
//
// EventBridge rules send a MaintenancePayload naming the task; the handler
// takes an hourly job lock so overlapping invocations run each task once,
// then routes to the scheduler service that owns it.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"

	"truckmarket/internal/config"
	"truckmarket/internal/db"
	"truckmarket/internal/external"
	"truckmarket/internal/notifications/email"
	"truckmarket/internal/queue"
	"truckmarket/internal/scheduler"
	"truckmarket/internal/types"
)

const (
	// securityEventRetention must outlive the login guard window.
	securityEventRetention = 7 * 24 * time.Hour

	lockTTL = 15 * time.Minute
)

// DigestService sends the daily unread-message digests.
type DigestService interface {
	SendDigests(ctx context.Context, now time.Time) (int, error)
}

// CleanupService runs the retention purges.
type CleanupService interface {
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int, error)
	PurgeVerificationTokens(ctx context.Context, now time.Time) (int, error)
	PurgeSecurityEvents(ctx context.Context, now time.Time, retention time.Duration) (int, error)
}

// JobLocker grants one worker a task slot.
type JobLocker interface {
	Acquire(ctx context.Context, lockID, workerID string, now time.Time, ttl time.Duration) (bool, error)
}

// Handler holds the dependencies for the maintenance Lambda handler.
type Handler struct {
	Digest   DigestService
	Cleanup  CleanupService
	JobLock  JobLocker
	WorkerID string
	Logger   *slog.Logger
}

// Handle runs the task named in payload. A slot already claimed by another
// worker is skipped without error.
func (h *Handler) Handle(ctx context.Context, payload scheduler.MaintenancePayload) (string, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := time.Now().UTC()
	if payload.ReferenceTime != nil {
		now = payload.ReferenceTime.UTC()
	}

	if payload.Task == "" {
		return "", fmt.Errorf("empty task type in maintenance payload")
	}
	logger = logger.With("task", string(payload.Task), "worker_id", h.WorkerID)

	lockID := fmt.Sprintf("%s:%s", payload.Task, now.Truncate(time.Hour).Format("2006-01-02T15"))
	acquired, err := h.JobLock.Acquire(ctx, lockID, h.WorkerID, now, lockTTL)
	if err != nil {
		return "", fmt.Errorf("acquiring job lock %s: %w", lockID, err)
	}
	if !acquired {
		logger.InfoContext(ctx, "job lock held by another worker", "lock_id", lockID)
		return fmt.Sprintf("skipped: lock %s held by another worker", lockID), nil
	}

	items, err := h.dispatch(ctx, payload.Task, now)
	if err != nil {
		logger.ErrorContext(ctx, "task execution failed", "error", err, "items_before_error", items)
		return "", fmt.Errorf("task %s failed: %w", payload.Task, err)
	}

	result := fmt.Sprintf("task %s complete: %d items processed", payload.Task, items)
	logger.InfoContext(ctx, result, "items", items)
	return result, nil
}

func (h *Handler) dispatch(ctx context.Context, task scheduler.TaskType, now time.Time) (int, error) {
	switch task {
	case scheduler.TaskMessageDigest:
		return h.Digest.SendDigests(ctx, now)
	case scheduler.TaskPurgeSessions:
		return h.Cleanup.PurgeExpiredSessions(ctx, now)
	case scheduler.TaskPurgeVerifications:
		return h.Cleanup.PurgeVerificationTokens(ctx, now)
	case scheduler.TaskPurgeSecurityEvents:
		return h.Cleanup.PurgeSecurityEvents(ctx, now, securityEventRetention)
	default:
		return 0, fmt.Errorf("unknown task type: %q", task)
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	h, err := newHandler(context.Background(), logger)
	if err != nil {
		logger.Error("maintenance worker failed to initialize", "error", err)
		os.Exit(1)
	}

	logger.Info("maintenance worker initialized", "worker_id", h.WorkerID)
	lambda.Start(h.Handle)
}

func newHandler(ctx context.Context, logger *slog.Logger) (*Handler, error) {
	cfg, err := config.LoadConfig(config.ProviderFromEnv())
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	dispatcher, err := digestDispatcher(ctx, cfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &Handler{
		Digest: scheduler.NewDigestService(
			db.NewMessageRepository(pool),
			email.NewNotifier(dispatcher, logger),
			cfg.Server.PublicBaseURL,
			logger,
		),
		Cleanup: scheduler.NewCleanupService(
			db.NewSessionRepository(pool),
			db.NewVerificationRepository(pool, pool),
			db.NewSecurityRepository(pool),
			logger,
		),
		JobLock:  db.NewJobLockRepository(pool),
		WorkerID: uuid.New().String(),
		Logger:   logger,
	}, nil
}

// digestDispatcher routes digests through the email queue when one is
// configured and otherwise sends them from this process.
func digestDispatcher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (email.Dispatcher, error) {
	if !cfg.Feature.EnableEmail {
		return nil, nil
	}
	if cfg.AWS.EmailQueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("loading AWS configuration: %w", err)
		}
		client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		return queue.NewEmailPublisher(client, cfg.AWS, logger), nil
	}

	ids, err := cfg.Email.TemplateIDs()
	if err != nil {
		return nil, fmt.Errorf("decoding email templates: %w", err)
	}
	sender := email.NewSender(email.SenderConfig{
		Provider:  external.NewClientRegistry(cfg, logger).Email,
		Templates: email.NewTemplateSet(ids, types.SenderIdentity{Name: cfg.Email.FromName, Address: cfg.Email.FromAddress}),
		Logger:    logger,
	})
	return email.InlineDispatcher{Sender: sender}, nil
}
