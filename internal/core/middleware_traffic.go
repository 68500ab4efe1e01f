package core

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"truckmarket/internal/types"
)

const (
	// rateLimitWindow is the fixed window requests are counted in.
	rateLimitWindow = time.Minute

	// defaultRateLimit applies when the config sets no per-minute limit.
	defaultRateLimit = 120
)

// RateLimit counts requests per client IP in fixed one-minute windows. Every
// counted response carries X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset; refused requests also get Retry-After and a 429.
// Store errors fail open.
func (s *Server) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.RateLimitStore == nil || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		ip := ClientIP(r)
		limit := s.rateLimit()
		result, err := s.RateLimitStore.IncrementAndCheck(r.Context(), "ip:"+ip, limit, rateLimitWindow)
		if err != nil {
			s.Logger.Error("rate limit store error",
				slog.String("ip", ip),
				slog.String("error", err.Error()),
			)
			next.ServeHTTP(w, r)
			return
		}

		setRateLimitHeaders(w, limit, result)

		if !result.Allowed {
			s.Logger.Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)

			retryAfter := int(result.ResetAt.Sub(s.now()).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			Error(w, r, types.NewAppError(types.ErrCodeRateLimit, "rate limit exceeded, retry after the reset time", nil))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit() int {
	if s.Config != nil && s.Config.Security.RateLimitPerMinute > 0 {
		return s.Config.Security.RateLimitPerMinute
	}
	return defaultRateLimit
}

func setRateLimitHeaders(w http.ResponseWriter, limit int, result RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// MemoryRateLimitStore is a process-local RateLimitStore. Counters of past
// windows are dropped lazily.
type MemoryRateLimitStore struct {
	mu      sync.Mutex
	clock   types.Clock
	windows map[string]*rateWindow
	sweepAt time.Time
}

type rateWindow struct {
	start time.Time
	count int
}

var _ RateLimitStore = (*MemoryRateLimitStore)(nil)

// NewMemoryRateLimitStore creates an empty store. A nil clock uses wall time.
func NewMemoryRateLimitStore(clock types.Clock) *MemoryRateLimitStore {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &MemoryRateLimitStore{clock: clock, windows: make(map[string]*rateWindow)}
}

// IncrementAndCheck implements RateLimitStore.
func (m *MemoryRateLimitStore) IncrementAndCheck(_ context.Context, key string, limit int, window time.Duration) (RateLimitResult, error) {
	now := m.clock.Now()
	start := now.Truncate(window)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !now.Before(m.sweepAt) {
		for k, w := range m.windows {
			if w.start.Before(start) {
				delete(m.windows, k)
			}
		}
		m.sweepAt = start.Add(window)
	}

	w, ok := m.windows[key]
	if !ok || !w.start.Equal(start) {
		w = &rateWindow{start: start}
		m.windows[key] = w
	}
	w.count++

	remaining := limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return RateLimitResult{
		Allowed:   w.count <= limit,
		Remaining: remaining,
		ResetAt:   start.Add(window),
	}, nil
}

// Len reports how many keys are tracked.
func (m *MemoryRateLimitStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}
