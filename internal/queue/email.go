// Package queue publishes background work to SQS for the worker Lambdas.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"truckmarket/internal/config"
	"truckmarket/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// EmailPublisher sends EmailJobs to the email queue. It satisfies
// email.Dispatcher, so the API can hand emails to the worker instead of
// calling the provider inline.
type EmailPublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewEmailPublisher creates an EmailPublisher for the queue in awsCfg.
func NewEmailPublisher(client SQSSender, awsCfg config.AWSConfig, logger *slog.Logger) *EmailPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailPublisher{
		client:   client,
		queueURL: awsCfg.EmailQueueURL,
		logger:   logger,
	}
}

// Dispatch serializes job and sends it. The kind travels as a message
// attribute so it shows up in queue tooling without decoding the body.
func (p *EmailPublisher) Dispatch(ctx context.Context, job types.EmailJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal EmailJob: %w", err)
	}

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(job.Kind)),
			},
		},
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamQueue,
			fmt.Sprintf("failed to send email job to %s", p.queueURL), err)
	}

	p.logger.InfoContext(ctx, "email job queued",
		"job_id", job.JobID,
		"kind", job.Kind,
		"trace_id", job.TraceID,
	)
	return nil
}

// DecodeEmailJob parses a message body produced by Dispatch.
func DecodeEmailJob(body string) (types.EmailJob, error) {
	var job types.EmailJob
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return job, fmt.Errorf("queue: malformed EmailJob: %w", err)
	}
	if job.Kind == "" || job.To == "" {
		return job, fmt.Errorf("queue: EmailJob %q is missing kind or recipient", job.JobID)
	}
	return job, nil
}
