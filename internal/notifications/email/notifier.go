package email

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"truckmarket/internal/types"
)

// Dispatcher hands a job to whatever delivers it.
type Dispatcher interface {
	Dispatch(ctx context.Context, job types.EmailJob) error
}

// InlineDispatcher delivers jobs synchronously in the calling process.
type InlineDispatcher struct {
	Sender *Sender
}

// Dispatch delivers job and drops the result. A blocked recipient is not an
// error.
func (d InlineDispatcher) Dispatch(ctx context.Context, job types.EmailJob) error {
	_, err := d.Sender.Deliver(ctx, job)
	return err
}

// Notifier builds EmailJobs for application events. A Notifier with a nil
// Dispatcher drops every email, which is how FEATURE_ENABLE_EMAIL=false is
// honored.
type Notifier struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(d Dispatcher, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{dispatcher: d, logger: logger}
}

// Notify queues one email of the given kind to to.
func (n *Notifier) Notify(ctx context.Context, kind types.EmailKind, to string, data map[string]any) error {
	job := types.EmailJob{
		JobID:   "job_" + uuid.New().String(),
		Kind:    kind,
		To:      to,
		Data:    data,
		TraceID: types.GetRequestID(ctx),
	}
	if n.dispatcher == nil {
		n.logger.DebugContext(ctx, "email disabled, dropping job", "kind", kind, "job_id", job.JobID)
		return nil
	}
	return n.dispatcher.Dispatch(ctx, job)
}
