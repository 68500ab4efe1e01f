package email

import (
	"context"
	"errors"
	"testing"
	"time"

	"truckmarket/internal/types"
)

type mockProvider struct {
	sent    []types.SendInput
	msgID   string
	sendErr error
}

func (m *mockProvider) Send(_ context.Context, in types.SendInput) (string, error) {
	m.sent = append(m.sent, in)
	return m.msgID, m.sendErr
}

type recordedEmail struct {
	kind types.EmailKind
	sent bool
}

type mockMetrics struct {
	calls []recordedEmail
}

func (m *mockMetrics) RecordEmail(_ context.Context, kind types.EmailKind, sent bool, _ time.Duration) {
	m.calls = append(m.calls, recordedEmail{kind, sent})
}

func testTemplates() *TemplateSet {
	return NewTemplateSet(map[types.EmailKind]string{
		types.EmailTruckBoosted: "d-boost",
	}, types.SenderIdentity{Name: "Truck Market", Address: "noreply@trucks.test"})
}

func testJob() types.EmailJob {
	return types.EmailJob{
		JobID: "job_1",
		Kind:  types.EmailTruckBoosted,
		To:    "dana@example.com",
		Data:  map[string]any{"truckName": "2018 Kenworth T680"},
	}
}

func TestDeliver_Success(t *testing.T) {
	provider := &mockProvider{msgID: "sg-1"}
	metrics := &mockMetrics{}
	s := NewSender(SenderConfig{Provider: provider, Templates: testTemplates(), Metrics: metrics})

	res, err := s.Deliver(context.Background(), testJob())
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if res.Status != StatusSent || res.ProviderMessageID != "sg-1" {
		t.Errorf("result = %+v", res)
	}
	if len(provider.sent) != 1 {
		t.Fatalf("provider called %d times", len(provider.sent))
	}
	in := provider.sent[0]
	if in.TemplateID != "d-boost" || in.From.Address != "noreply@trucks.test" || in.ReferenceID != "job_1" {
		t.Errorf("SendInput = %+v", in)
	}
	if in.TemplateData["truckName"] != "2018 Kenworth T680" {
		t.Errorf("TemplateData = %v", in.TemplateData)
	}
	if len(metrics.calls) != 1 || !metrics.calls[0].sent {
		t.Errorf("metrics = %+v", metrics.calls)
	}
}

func TestDeliver_Blocked(t *testing.T) {
	provider := &mockProvider{sendErr: types.NewAppError(types.ErrCodeEmailBlocked, "suppressed", nil)}
	metrics := &mockMetrics{}
	s := NewSender(SenderConfig{Provider: provider, Templates: testTemplates(), Metrics: metrics})

	res, err := s.Deliver(context.Background(), testJob())
	if err != nil {
		t.Fatalf("blocked recipient should not be an error, got %v", err)
	}
	if res.Status != StatusBlocked {
		t.Errorf("Status = %s", res.Status)
	}
	if len(metrics.calls) != 1 || metrics.calls[0].sent {
		t.Errorf("metrics = %+v", metrics.calls)
	}
}

func TestDeliver_TransientFailure(t *testing.T) {
	provider := &mockProvider{sendErr: types.NewAppError(types.ErrCodeUpstreamUnavailable, "down", nil)}
	s := NewSender(SenderConfig{Provider: provider, Templates: testTemplates()})

	_, err := s.Deliver(context.Background(), testJob())
	if err == nil {
		t.Fatal("expected error")
	}
	if !s.ShouldRetry(err) {
		t.Error("upstream failure should be retried")
	}
}

func TestDeliver_UnknownTemplate(t *testing.T) {
	provider := &mockProvider{}
	s := NewSender(SenderConfig{Provider: provider, Templates: testTemplates()})

	job := testJob()
	job.Kind = types.EmailMessageDigest
	_, err := s.Deliver(context.Background(), job)
	if !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("error = %v, want ErrUnknownTemplate", err)
	}
	if s.ShouldRetry(err) {
		t.Error("missing template should not be retried")
	}
	if len(provider.sent) != 0 {
		t.Error("provider should not be called")
	}
}

func TestShouldRetry(t *testing.T) {
	s := NewSender(SenderConfig{})
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel blocked", ErrRecipientBlocked, false},
		{"app blocked", types.NewAppError(types.ErrCodeEmailBlocked, "x", nil), false},
		{"missing template id", types.NewAppError(types.ErrCodeValidationMissingField, "x", nil), false},
		{"rate limited", types.NewAppError(types.ErrCodeUpstreamRateLimited, "x", nil), true},
		{"plain error", errors.New("reset"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.ShouldRetry(tt.err); got != tt.want {
				t.Errorf("ShouldRetry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTemplateSetMissing(t *testing.T) {
	missing := testTemplates().Missing()
	if len(missing) != len(types.AllEmailKinds)-1 {
		t.Errorf("Missing() = %v", missing)
	}
	for _, k := range missing {
		if k == types.EmailTruckBoosted {
			t.Error("configured kind reported missing")
		}
	}
}

func TestRedactEmail(t *testing.T) {
	tests := map[string]string{
		"dana@example.com": "d***@example.com",
		"@example.com":     "***@example.com",
		"not-an-address":   "***",
		"":                 "",
	}
	for in, want := range tests {
		if got := RedactEmail(in); got != want {
			t.Errorf("RedactEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
