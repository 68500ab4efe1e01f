package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"truckmarket/internal/types"
)

var trafficNow = time.Date(2026, 4, 10, 15, 30, 20, 0, time.UTC)

func TestRateLimit_AllowedSetsHeaders(t *testing.T) {
	srv := newTestServer(t)
	srv.Clock = types.FixedClock{T: trafficNow}
	store := &MockRateLimitStore{Result: RateLimitResult{Allowed: true, Remaining: 119, ResetAt: trafficNow.Add(40 * time.Second)}}
	srv.RateLimitStore = store

	req := httptest.NewRequest(http.MethodGet, "/v1/listings", nil)
	req.RemoteAddr = "198.51.100.1:999"
	rec := httptest.NewRecorder()
	srv.RateLimit(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "120" {
		t.Errorf("limit: got %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "119" {
		t.Errorf("remaining: got %q", got)
	}
	if len(store.Keys) != 1 || store.Keys[0] != "ip:198.51.100.1" {
		t.Errorf("keys: %v", store.Keys)
	}
}

func TestRateLimit_ExceededReturns429(t *testing.T) {
	srv := newTestServer(t)
	srv.Clock = types.FixedClock{T: trafficNow}
	srv.RateLimitStore = &MockRateLimitStore{Result: RateLimitResult{Allowed: false, ResetAt: trafficNow.Add(40 * time.Second)}}

	called := false
	rec := httptest.NewRecorder()
	srv.RateLimit(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil))

	if called {
		t.Error("handler must not run")
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "40" {
		t.Errorf("retry-after: got %q", got)
	}
	if got := decodeError(t, rec).Code; got != string(types.ErrCodeRateLimit) {
		t.Errorf("code: got %q", got)
	}
}

func TestRateLimit_StoreErrorFailsOpen(t *testing.T) {
	srv := newTestServer(t)
	srv.RateLimitStore = &MockRateLimitStore{Err: errors.New("boom")}

	rec := httptest.NewRecorder()
	srv.RateLimit(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/listings", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "" {
		t.Error("no headers expected when the store failed")
	}
}

func TestRateLimit_ConfiguredLimit(t *testing.T) {
	srv := newTestServer(t)
	srv.Config = testConfig()
	srv.Config.Security.RateLimitPerMinute = 30
	srv.RateLimitStore = &MockRateLimitStore{Result: RateLimitResult{Allowed: true, Remaining: 29, ResetAt: trafficNow}}

	rec := httptest.NewRecorder()
	srv.RateLimit(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("X-RateLimit-Limit"); got != "30" {
		t.Errorf("limit: got %q", got)
	}
}

type steppingClock struct{ t time.Time }

func (c *steppingClock) Now() time.Time { return c.t }

func TestMemoryRateLimitStore_FixedWindow(t *testing.T) {
	clock := &steppingClock{t: trafficNow}
	store := NewMemoryRateLimitStore(clock)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := store.IncrementAndCheck(ctx, "ip:a", 3, time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if res.Remaining != 3-i {
			t.Errorf("request %d remaining: got %d", i, res.Remaining)
		}
		if want := time.Date(2026, 4, 10, 15, 31, 0, 0, time.UTC); !res.ResetAt.Equal(want) {
			t.Errorf("reset: got %v, want %v", res.ResetAt, want)
		}
	}

	res, _ := store.IncrementAndCheck(ctx, "ip:a", 3, time.Minute)
	if res.Allowed || res.Remaining != 0 {
		t.Errorf("4th request: %+v", res)
	}

	other, _ := store.IncrementAndCheck(ctx, "ip:b", 3, time.Minute)
	if !other.Allowed {
		t.Error("keys must be counted independently")
	}

	clock.t = trafficNow.Add(time.Minute)
	res, _ = store.IncrementAndCheck(ctx, "ip:a", 3, time.Minute)
	if !res.Allowed || res.Remaining != 2 {
		t.Errorf("new window: %+v", res)
	}
	if store.Len() != 1 {
		t.Errorf("stale windows should be swept, have %d keys", store.Len())
	}
}
