package credential

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/nacl/secretbox"
)

// ScopeCookieName is the cookie carrying the sealed browser scope ID.
const ScopeCookieName = "sg_scope"

var (
	ErrBadSealKey   = errors.New("scope seal key must be 32 bytes")
	ErrSealedScope  = errors.New("sealed scope value is invalid")
)

// ScopeKeeper issues browser scope IDs and seals them for cookie transport,
// so that scope IDs stored client-side cannot be forged or enumerated.
type ScopeKeeper struct {
	key [32]byte
}

// NewScopeKeeper creates a keeper from a 32-byte secret key.
func NewScopeKeeper(key []byte) (*ScopeKeeper, error) {
	if len(key) != 32 {
		return nil, ErrBadSealKey
	}
	k := &ScopeKeeper{}
	copy(k.key[:], key)
	return k, nil
}

// Issue creates a fresh scope ID.
func (k *ScopeKeeper) Issue() string {
	return uuid.NewString()
}

// Seal encrypts a scope ID for cookie transport.
func (k *ScopeKeeper) Seal(scopeID string) (string, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(scopeID), &nonce, &k.key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a sealed cookie value back into a scope ID.
// Returns ErrSealedScope for anything that was not produced by Seal with the
// same key; callers treat that as "no scope" and issue a fresh one.
func (k *ScopeKeeper) Open(sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", ErrSealedScope
	}
	if len(raw) < 24 {
		return "", ErrSealedScope
	}

	var nonce [24]byte
	copy(nonce[:], raw[:24])

	scopeID, ok := secretbox.Open(nil, raw[24:], &nonce, &k.key)
	if !ok {
		return "", ErrSealedScope
	}
	return string(scopeID), nil
}
