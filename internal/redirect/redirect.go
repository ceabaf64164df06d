// Package redirect decides where a user lands after authenticating.
//
// It owns two pieces of per-scope state: the navigation intent captured when
// a guarded route turns an anonymous user away, and the continuously tracked
// last visited page. The list of authentication pages that must never become
// a redirect target lives here and nowhere else; duplicating it elsewhere is
// how redirect loops back into the login flow get reintroduced.
package redirect

import (
	"context"
	"errors"
	"strings"

	"github.com/silversurfers/silvergate/internal/browserstore"
)

// Fixed landing pages.
const (
	DefaultPath      = "/"
	AdminDefaultPath = "/admin/dashboard"
)

// QueryParam is the query-string directive requesting a specific post-login
// destination, e.g. a checkout continuation link in a marketing email.
const QueryParam = "redirect"

// authPaths are the authentication-flow pages. Remembering one as a redirect
// target would bounce a freshly logged-in user straight back into the flow
// they just completed.
var authPaths = []string{
	"/login",
	"/signup",
	"/admin/login",
	"/verify-email",
	"/resend-verification",
	"/forgot-password",
	"/reset-password",
}

// queryDestinations is the allowlist for QueryParam values. Arbitrary paths
// are not honored from the query string; that would be an open redirect.
var queryDestinations = []string{
	"/checkout",
	"/account",
}

// IsAuthPath reports whether a path belongs to the authentication flow.
func IsAuthPath(path string) bool {
	for _, p := range authPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// allowedQueryDestination reports whether a query directive names a known
// continuation destination.
func allowedQueryDestination(path string) bool {
	for _, p := range queryDestinations {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// usable reports whether a stored or supplied path is a safe redirect
// target: site-relative, not scheme-relative, and outside the auth flow.
func usable(path string) bool {
	if path == "" || !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		return false
	}
	return !IsAuthPath(path)
}

// Memory holds the redirect state for one browser scope.
type Memory struct {
	slots   browserstore.SlotStore
	scopeID string
}

// NewMemory binds redirect memory to a browser scope.
func NewMemory(slots browserstore.SlotStore, scopeID string) *Memory {
	return &Memory{slots: slots, scopeID: scopeID}
}

// Remember records the destination of a denied consumer navigation.
func (m *Memory) Remember(ctx context.Context, path string) error {
	return m.slots.Put(ctx, m.scopeID, browserstore.SlotIntent, path)
}

// RememberAdmin records the destination of a denied admin-section navigation.
// Admin intents live in their own slot so they can only be consumed by the
// admin login flow, never by a later consumer login.
func (m *Memory) RememberAdmin(ctx context.Context, path string) error {
	return m.slots.Put(ctx, m.scopeID, browserstore.SlotAdminIntent, path)
}

// Consume returns the recorded consumer intent exactly once, or "" when none
// is usable. The intent is discarded either way.
func (m *Memory) Consume(ctx context.Context) (string, error) {
	return m.consume(ctx, browserstore.SlotIntent)
}

// ConsumeAdmin is Consume for the admin intent slot.
func (m *Memory) ConsumeAdmin(ctx context.Context) (string, error) {
	return m.consume(ctx, browserstore.SlotAdminIntent)
}

func (m *Memory) consume(ctx context.Context, slot string) (string, error) {
	path, err := m.slots.Get(ctx, m.scopeID, slot)
	if err != nil {
		if errors.Is(err, browserstore.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	if err := m.slots.Delete(ctx, m.scopeID, slot); err != nil {
		return "", err
	}
	if !usable(path) {
		return "", nil
	}
	return path, nil
}

// Track records a successfully visited page as the fallback redirect target.
// Auth-flow pages are never tracked.
func (m *Memory) Track(ctx context.Context, path string) error {
	if !usable(path) {
		return nil
	}
	return m.slots.Put(ctx, m.scopeID, browserstore.SlotLastPath, path)
}

// Destination computes the post-login landing path for the consumer flow.
//
// Precedence, highest first: the recorded navigation intent, then a
// query-string directive naming an allowlisted destination, then the last
// visited page, then home. The intent is consumed even when a query
// directive would have won; it described a navigation that no longer
// matters.
func (m *Memory) Destination(ctx context.Context, queryDirective string) (string, error) {
	intent, err := m.Consume(ctx)
	if err != nil {
		return "", err
	}
	if intent != "" {
		return intent, nil
	}

	if usable(queryDirective) && allowedQueryDestination(queryDirective) {
		return queryDirective, nil
	}

	last, err := m.slots.Get(ctx, m.scopeID, browserstore.SlotLastPath)
	if err != nil && !errors.Is(err, browserstore.ErrNotFound) {
		return "", err
	}
	if usable(last) {
		return last, nil
	}

	return DefaultPath, nil
}

// AdminDestination computes the post-login landing path for the admin flow:
// the recorded admin intent, or the dashboard.
func (m *Memory) AdminDestination(ctx context.Context) (string, error) {
	intent, err := m.ConsumeAdmin(ctx)
	if err != nil {
		return "", err
	}
	if intent != "" {
		return intent, nil
	}
	return AdminDefaultPath, nil
}
