package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPurger struct {
	at  time.Time
	n   int64
	err error
}

func (m *mockPurger) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.at = now
	return m.n, m.err
}

func (m *mockPurger) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.at = cutoff
	return m.n, m.err
}

func TestCleanupService_PurgeExpiredSessions(t *testing.T) {
	sessions := &mockPurger{n: 14}
	svc := NewCleanupService(sessions, &mockPurger{}, &mockPurger{}, nil)

	n, err := svc.PurgeExpiredSessions(context.Background(), testNow)

	require.NoError(t, err)
	assert.Equal(t, 14, n)
	assert.Equal(t, testNow, sessions.at)
}

func TestCleanupService_PurgeExpiredSessions_Error(t *testing.T) {
	svc := NewCleanupService(&mockPurger{err: errors.New("db down")}, &mockPurger{}, &mockPurger{}, nil)

	_, err := svc.PurgeExpiredSessions(context.Background(), testNow)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "deleting expired sessions")
}

func TestCleanupService_PurgeVerificationTokens(t *testing.T) {
	tokens := &mockPurger{n: 6}
	svc := NewCleanupService(&mockPurger{}, tokens, &mockPurger{}, nil)

	n, err := svc.PurgeVerificationTokens(context.Background(), testNow)

	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, testNow, tokens.at)

	svc = NewCleanupService(&mockPurger{}, &mockPurger{err: errors.New("db down")}, &mockPurger{}, nil)
	_, err = svc.PurgeVerificationTokens(context.Background(), testNow)
	assert.ErrorContains(t, err, "deleting expired verification tokens")
}

func TestCleanupService_PurgeSecurityEvents(t *testing.T) {
	events := &mockPurger{n: 3}
	svc := NewCleanupService(&mockPurger{}, &mockPurger{}, events, nil)

	n, err := svc.PurgeSecurityEvents(context.Background(), testNow, 7*24*time.Hour)

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, testNow.Add(-7*24*time.Hour), events.at)
}

func TestCleanupService_PurgeSecurityEvents_RejectsZeroRetention(t *testing.T) {
	events := &mockPurger{}
	svc := NewCleanupService(&mockPurger{}, &mockPurger{}, events, nil)

	_, err := svc.PurgeSecurityEvents(context.Background(), testNow, 0)

	require.Error(t, err)
	assert.True(t, events.at.IsZero(), "nothing should be deleted")
}
