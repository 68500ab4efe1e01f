package core

import (
	"context"
	"sync"
	"time"

	"truckmarket/internal/types"
)

// MockAuthenticator is an Authenticator for tests. ResolveFunc, when set,
// wins over Actor/Session/Err.
type MockAuthenticator struct {
	Actor       *types.Actor
	Session     *types.Session
	Err         error
	ResolveFunc func(ctx context.Context, token string) (*types.Actor, *types.Session, error)

	mu    sync.Mutex
	Calls []string
}

// ResolveSession implements Authenticator.
func (m *MockAuthenticator) ResolveSession(ctx context.Context, token string) (*types.Actor, *types.Session, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, token)
	m.mu.Unlock()

	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, token)
	}
	if m.Err != nil {
		return nil, nil, m.Err
	}
	session := m.Session
	if session == nil && m.Actor != nil {
		session = &types.Session{ID: token, SubjectID: m.Actor.ID, ActorType: m.Actor.Type}
	}
	return m.Actor, session, nil
}

// CallCount returns the number of ResolveSession calls.
func (m *MockAuthenticator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockRateLimitStore is a RateLimitStore for tests.
type MockRateLimitStore struct {
	Result RateLimitResult
	Err    error

	mu   sync.Mutex
	Keys []string
}

// IncrementAndCheck implements RateLimitStore.
func (m *MockRateLimitStore) IncrementAndCheck(_ context.Context, key string, _ int, _ time.Duration) (RateLimitResult, error) {
	m.mu.Lock()
	m.Keys = append(m.Keys, key)
	m.mu.Unlock()

	if m.Err != nil {
		return RateLimitResult{}, m.Err
	}
	return m.Result, nil
}

// MockMetricsCollector records RecordRequest calls.
type MockMetricsCollector struct {
	mu    sync.Mutex
	Calls []RecordedRequest
}

// RecordedRequest is one RecordRequest call.
type RecordedRequest struct {
	Endpoint string
	Status   int
	Latency  time.Duration
}

// RecordRequest implements MetricsCollector.
func (m *MockMetricsCollector) RecordRequest(_ context.Context, endpoint string, status int, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, RecordedRequest{Endpoint: endpoint, Status: status, Latency: latency})
}

// Recorded returns a copy of the recorded calls.
func (m *MockMetricsCollector) Recorded() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.Calls...)
}
