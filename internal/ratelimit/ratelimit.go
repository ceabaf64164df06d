// Package ratelimit provides request rate limiting and the per-scope form
// submission latch, both backed by the cache subsystem's counters.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/silversurfers/silvergate/internal/api"
	"github.com/silversurfers/silvergate/internal/appctx"
	"github.com/silversurfers/silvergate/internal/cache"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// Config defines rate limiting parameters.
type Config struct {
	// RequestsPerWindow is the maximum requests allowed per window.
	RequestsPerWindow int64

	// Window is the time window for rate limiting.
	Window time.Duration

	// KeyPrefix is prepended to all rate limit keys.
	KeyPrefix string
}

// DefaultConfig returns the defaults used for the authentication endpoints.
func DefaultConfig() *Config {
	return &Config{
		RequestsPerWindow: 30,
		Window:            cache.TTLRateLimit,
		KeyPrefix:         "ratelimit:",
	}
}

// Limiter provides rate limiting using a cache counter backend.
type Limiter struct {
	cache  cache.Counter
	config *Config
}

// New creates a rate limiter.
func New(c cache.Counter, cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Limiter{cache: c, config: cfg}
}

// Result contains the rate limit check result.
type Result struct {
	Allowed   bool
	Remaining int64
	ResetAt   time.Time
}

// Allow counts a request against the key's window and reports whether it is
// within quota.
func (l *Limiter) Allow(ctx context.Context, key string) (*Result, error) {
	count, resetAt, err := l.cache.Increment(ctx, l.config.KeyPrefix+key, 1, l.config.Window)
	if err != nil {
		return nil, err
	}

	remaining := l.config.RequestsPerWindow - count
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   count <= l.config.RequestsPerWindow,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the rate limit for a key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.cache.Reset(ctx, l.config.KeyPrefix+key)
}

// KeyFromRequest extracts a rate limit key from an HTTP request: the client
// IP the server derived through its trusted-proxy rules when present,
// otherwise the direct peer address. Forwarding headers are never read here;
// an untrusted peer must not be able to pick its own bucket.
func KeyFromRequest(r *http.Request) string {
	if ip := appctx.ClientIP(r.Context()); ip != "" {
		return ip
	}

	addr := r.RemoteAddr
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}

// Middleware applies rate limiting per client address.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result, err := l.Allow(r.Context(), KeyFromRequest(r))
		if err != nil {
			// A broken cache should not take the auth surfaces down with it.
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", l.config.RequestsPerWindow))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", result.ResetAt.Unix()))

		if !result.Allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(time.Until(result.ResetAt).Seconds())))
			api.WriteTooManyRequests(w, "too many requests, please wait a moment")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Latch is the per-scope, per-form submission guard: while one submission of
// a form is outstanding, a second one is refused. It expires on its own so a
// crashed submission cannot wedge the form.
type Latch struct {
	cache cache.Counter
	ttl   time.Duration
}

// NewLatch creates a submission latch.
func NewLatch(c cache.Counter) *Latch {
	return &Latch{cache: c, ttl: cache.TTLSubmitLatch}
}

func latchKey(scopeID, form string) string {
	return "latch:" + scopeID + ":" + form
}

// Acquire takes the latch for a form within a scope. Returns false when a
// submission is already in flight.
func (l *Latch) Acquire(ctx context.Context, scopeID, form string) (bool, error) {
	count, _, err := l.cache.Increment(ctx, latchKey(scopeID, form), 1, l.ttl)
	if err != nil {
		return false, err
	}
	return count == 1, nil
}

// Release frees the latch once the submission has resolved.
func (l *Latch) Release(ctx context.Context, scopeID, form string) error {
	return l.cache.Reset(ctx, latchKey(scopeID, form))
}
