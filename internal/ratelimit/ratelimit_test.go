package ratelimit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/silversurfers/silvergate/internal/appctx"
	"github.com/silversurfers/silvergate/internal/cache/memory"
	"github.com/silversurfers/silvergate/internal/ratelimit"
)

func TestLimiter_Allow(t *testing.T) {
	cache := memory.New(time.Minute, 0)
	defer cache.Close()

	cfg := &ratelimit.Config{
		RequestsPerWindow: 5,
		Window:            time.Minute,
		KeyPrefix:         "test:",
	}
	limiter := ratelimit.New(cache, cfg)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result, err := limiter.Allow(ctx, "client1")
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !result.Allowed {
			t.Errorf("request %d should be allowed", i+1)
		}
		expectedRemaining := int64(4 - i)
		if result.Remaining != expectedRemaining {
			t.Errorf("request %d: expected remaining %d, got %d", i+1, expectedRemaining, result.Remaining)
		}
	}

	// 6th request should be denied
	result, err := limiter.Allow(ctx, "client1")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if result.Allowed {
		t.Error("6th request should be denied")
	}
	if result.Remaining != 0 {
		t.Errorf("expected remaining 0, got %d", result.Remaining)
	}
}

func TestLimiter_KeysIndependent(t *testing.T) {
	cache := memory.New(time.Minute, 0)
	defer cache.Close()

	limiter := ratelimit.New(cache, &ratelimit.Config{
		RequestsPerWindow: 1,
		Window:            time.Minute,
		KeyPrefix:         "test:",
	})
	ctx := context.Background()

	if result, _ := limiter.Allow(ctx, "client1"); !result.Allowed {
		t.Error("client1 first request should be allowed")
	}
	if result, _ := limiter.Allow(ctx, "client1"); result.Allowed {
		t.Error("client1 second request should be denied")
	}
	if result, _ := limiter.Allow(ctx, "client2"); !result.Allowed {
		t.Error("client2 should not share client1's quota")
	}
}

func TestLimiter_Reset(t *testing.T) {
	cache := memory.New(time.Minute, 0)
	defer cache.Close()

	limiter := ratelimit.New(cache, &ratelimit.Config{
		RequestsPerWindow: 1,
		Window:            time.Minute,
		KeyPrefix:         "test:",
	})
	ctx := context.Background()

	limiter.Allow(ctx, "client1")
	if result, _ := limiter.Allow(ctx, "client1"); result.Allowed {
		t.Error("second request should be denied before reset")
	}

	if err := limiter.Reset(ctx, "client1"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if result, _ := limiter.Allow(ctx, "client1"); !result.Allowed {
		t.Error("request after reset should be allowed")
	}
}

func TestKeyFromRequest(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		ctxIP      string
		want       string
	}{
		{"remote addr with port", "10.1.2.3:5432", "", "", "10.1.2.3"},
		{"context client ip wins", "10.1.2.3:5432", "", "203.0.113.9", "203.0.113.9"},
		{"forwarded header ignored", "10.1.2.3:5432", "203.0.113.9", "", "10.1.2.3"},
		{"forwarded chain ignored", "10.1.2.3:5432", "203.0.113.9, 10.0.0.1", "", "10.1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.ctxIP != "" {
				r = r.WithContext(appctx.WithClientIP(r.Context(), tt.ctxIP))
			}
			if got := ratelimit.KeyFromRequest(r); got != tt.want {
				t.Errorf("KeyFromRequest = %q, want %q", got, tt.want)
			}
		})
	}
}

// A direct client rotating X-Forwarded-For values must keep hitting the same
// bucket; only the trusted-proxy-derived IP in the context selects one.
func TestMiddleware_SpoofedForwardedForSharesBucket(t *testing.T) {
	cache := memory.New(time.Minute, 0)
	defer cache.Close()

	limiter := ratelimit.New(cache, &ratelimit.Config{
		RequestsPerWindow: 2,
		Window:            time.Minute,
		KeyPrefix:         "test:",
	})

	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	forged := []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"}
	var last int
	for _, ip := range forged {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		r.RemoteAddr = "10.1.2.3:5432"
		r.Header.Set("X-Forwarded-For", ip)
		handler.ServeHTTP(rec, r)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request with rotated header: status = %d, want 429", last)
	}
}

func TestMiddleware(t *testing.T) {
	cache := memory.New(time.Minute, 0)
	defer cache.Close()

	limiter := ratelimit.New(cache, &ratelimit.Config{
		RequestsPerWindow: 2,
		Window:            time.Minute,
		KeyPrefix:         "test:",
	})

	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		r.RemoteAddr = "10.1.2.3:5432"
		handler.ServeHTTP(rec, r)
		if rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	r.RemoteAddr = "10.1.2.3:5432"
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("over-quota status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestLatch(t *testing.T) {
	cache := memory.New(time.Minute, 0)
	defer cache.Close()

	latch := ratelimit.NewLatch(cache)
	ctx := context.Background()

	ok, err := latch.Acquire(ctx, "scope-1", "login")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !ok {
		t.Fatal("first Acquire should succeed")
	}

	// Second submission of the same form is refused while one is in flight.
	if ok, _ := latch.Acquire(ctx, "scope-1", "login"); ok {
		t.Error("second Acquire should be refused")
	}

	// Other forms and other scopes are unaffected.
	if ok, _ := latch.Acquire(ctx, "scope-1", "signup"); !ok {
		t.Error("different form should acquire independently")
	}
	if ok, _ := latch.Acquire(ctx, "scope-2", "login"); !ok {
		t.Error("different scope should acquire independently")
	}

	if err := latch.Release(ctx, "scope-1", "login"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if ok, _ := latch.Acquire(ctx, "scope-1", "login"); !ok {
		t.Error("Acquire after Release should succeed")
	}
}
