// Package invite carries team-invitation parameters through the registration
// flow. The invite itself is redeemed by the backend after registration and
// verification; this package only transports the token and email until then.
package invite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/silversurfers/silvergate/internal/cache"
)

// Query parameter names under which invite links arrive.
const (
	ParamToken = "invite_token"
	ParamEmail = "invite_email"
)

// PendingInvite holds invite parameters awaiting redemption.
// When Email is set, registration must use exactly that address.
type PendingInvite struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

// FromQuery extracts a pending invite from URL query parameters.
// Returns false when no invite token is present.
func FromQuery(q url.Values) (PendingInvite, bool) {
	token := q.Get(ParamToken)
	if token == "" {
		return PendingInvite{}, false
	}
	return PendingInvite{
		Token: token,
		Email: q.Get(ParamEmail),
	}, true
}

// MatchesEmail reports whether a submitted email satisfies the invite's email
// restriction. Comparison is case-insensitive; an invite without an email
// accepts any address.
func (p PendingInvite) MatchesEmail(submitted string) bool {
	if p.Email == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(p.Email), strings.TrimSpace(submitted))
}

// Carrier persists a pending invite per browser scope so the invite survives
// the detour through email verification.
type Carrier struct {
	cache cache.Cache
}

// NewCarrier creates a carrier on top of the shared cache.
func NewCarrier(c cache.Cache) *Carrier {
	return &Carrier{cache: c}
}

func carryKey(scopeID string) string {
	return "invite:" + scopeID
}

// Stash stores the invite for a scope, replacing any prior one.
func (c *Carrier) Stash(ctx context.Context, scopeID string, inv PendingInvite) error {
	raw, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("failed to encode invite: %w", err)
	}
	return c.cache.Set(ctx, carryKey(scopeID), raw, cache.TTLPendingInvite)
}

// Peek returns the stashed invite for a scope without consuming it.
// The second return is false when no invite is stashed.
func (c *Carrier) Peek(ctx context.Context, scopeID string) (PendingInvite, bool, error) {
	raw, err := c.cache.Get(ctx, carryKey(scopeID))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) || errors.Is(err, cache.ErrExpired) {
			return PendingInvite{}, false, nil
		}
		return PendingInvite{}, false, err
	}

	var inv PendingInvite
	if err := json.Unmarshal(raw, &inv); err != nil {
		return PendingInvite{}, false, fmt.Errorf("failed to decode stashed invite: %w", err)
	}
	return inv, true, nil
}

// Discard drops the stashed invite once the backend reports it redeemed.
func (c *Carrier) Discard(ctx context.Context, scopeID string) error {
	return c.cache.Delete(ctx, carryKey(scopeID))
}
