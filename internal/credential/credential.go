// Package credential persists the bearer credential issued by the
// SilverSurfers API, one per browser scope.
//
// The store holds the raw token string only. It never inspects or validates
// the value; expiry and claim handling belong to the session package.
package credential

import (
	"context"
	"errors"

	"github.com/silversurfers/silvergate/internal/browserstore"
)

// Store persists the credential for a single browser scope.
// At most one credential is active per scope; Save overwrites unconditionally.
type Store struct {
	slots   browserstore.SlotStore
	scopeID string
}

// NewStore binds a credential store to a browser scope.
func NewStore(slots browserstore.SlotStore, scopeID string) *Store {
	return &Store{slots: slots, scopeID: scopeID}
}

// ScopeID returns the browser scope this store is bound to.
func (s *Store) ScopeID() string {
	return s.scopeID
}

// Save stores the credential, overwriting any prior one.
func (s *Store) Save(ctx context.Context, token string) error {
	return s.slots.Put(ctx, s.scopeID, browserstore.SlotCredential, token)
}

// Load returns the stored credential, or "" when none is stored.
func (s *Store) Load(ctx context.Context) (string, error) {
	token, err := s.slots.Get(ctx, s.scopeID, browserstore.SlotCredential)
	if err != nil {
		if errors.Is(err, browserstore.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return token, nil
}

// Clear removes the stored credential. Clearing an empty store is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	return s.slots.Delete(ctx, s.scopeID, browserstore.SlotCredential)
}
