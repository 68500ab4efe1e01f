package email

import (
	"context"
	"strings"
	"testing"

	"truckmarket/internal/types"
)

type captureDispatcher struct {
	jobs []types.EmailJob
}

func (c *captureDispatcher) Dispatch(_ context.Context, job types.EmailJob) error {
	c.jobs = append(c.jobs, job)
	return nil
}

func TestNotifier_BuildsJob(t *testing.T) {
	d := &captureDispatcher{}
	n := NewNotifier(d, nil)
	ctx := types.WithRequestID(context.Background(), "req-42")

	if err := n.Notify(ctx, types.EmailTruckListed, "dana@example.com", map[string]any{"truckName": "x"}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if len(d.jobs) != 1 {
		t.Fatalf("dispatched %d jobs", len(d.jobs))
	}
	job := d.jobs[0]
	if !strings.HasPrefix(job.JobID, "job_") || job.TraceID != "req-42" || job.Kind != types.EmailTruckListed {
		t.Errorf("job = %+v", job)
	}
}

func TestNotifier_Disabled(t *testing.T) {
	n := NewNotifier(nil, nil)
	if err := n.Notify(context.Background(), types.EmailTruckListed, "dana@example.com", nil); err != nil {
		t.Errorf("disabled notifier returned %v", err)
	}
}

func TestInlineDispatcher(t *testing.T) {
	provider := &mockProvider{msgID: "sg-1"}
	d := InlineDispatcher{Sender: NewSender(SenderConfig{Provider: provider, Templates: testTemplates()})}

	if err := d.Dispatch(context.Background(), testJob()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(provider.sent) != 1 {
		t.Errorf("provider called %d times", len(provider.sent))
	}
}
