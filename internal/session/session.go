// Package session derives the acting identity from the stored credential.
//
// Decoding is structural only: the token's payload segment is parsed without
// signature verification. This is a UI-routing optimization, NOT a security
// control — the SilverSurfers API remains the trust boundary and re-validates
// the credential on every call. Never use a decoded role to authorize a
// mutation.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoSession means there is no credential: the expected logged-out
	// state, not a fault.
	ErrNoSession = errors.New("no session")

	// ErrMalformed means a credential exists but is structurally invalid.
	// Callers fail open to anonymous, but this one is worth logging: it
	// indicates corruption or tampering rather than a routine logout.
	ErrMalformed = errors.New("malformed credential")
)

// Role is the decoded role claim used for navigation gating.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Claims are the fields extracted from the credential payload.
type Claims struct {
	Subject   string
	Role      Role
	ExpiresAt time.Time // zero when the token carries no expiry
}

// Decode structurally parses a credential into claims.
// Returns ErrNoSession for an empty token and ErrMalformed for anything that
// does not have the three-segment shape or an unparsable payload.
func Decode(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrNoSession
	}

	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrMalformed
	}

	claims := &Claims{Role: RoleUser}

	if sub, err := mapClaims.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if role, ok := mapClaims["role"].(string); ok && role != "" {
		claims.Role = Role(role)
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}

	return claims, nil
}

// Session is the derived, read-only view of who is acting now.
type Session struct {
	Authenticated bool
	Role          Role
	Subject       string
}

// Anonymous is the logged-out session.
func Anonymous() Session {
	return Session{}
}

// FromToken derives a Session from a raw credential, failing open to
// anonymous on any decode error.
//
// The session is optimistic: an expired credential still yields an
// authenticated session here. Expiry is enforced by the API on the next call,
// at which point the credential is cleared.
func FromToken(token string) Session {
	claims, err := Decode(token)
	if err != nil {
		return Anonymous()
	}
	return Session{
		Authenticated: true,
		Role:          claims.Role,
		Subject:       claims.Subject,
	}
}

// HasRole reports whether the session satisfies a role requirement.
func (s Session) HasRole(required Role) bool {
	if !s.Authenticated {
		return false
	}
	if required == "" {
		return true
	}
	return s.Role == required
}
