// Package memory implements an in-memory browserstore driver.
// State does not survive a restart; intended for tests and local development.
package memory

import (
	"context"
	"sync"

	"github.com/silversurfers/silvergate/internal/browserstore"
)

func init() {
	browserstore.Register("memory", NewDriver)
}

// Driver implements the browserstore.Driver interface in memory.
type Driver struct {
	mu     sync.RWMutex
	scopes map[string]map[string]string // scopeID -> slot -> value
	closed bool
}

// NewDriver creates a new memory driver instance.
func NewDriver(cfg *browserstore.DriverConfig) (browserstore.Driver, error) {
	return New(), nil
}

// New creates a memory driver without going through the registry.
// Handy as an in-process fake in tests.
func New() *Driver {
	return &Driver{scopes: make(map[string]map[string]string)}
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "memory"
}

// Init is a no-op for the memory driver.
func (d *Driver) Init(ctx context.Context) error {
	return nil
}

// Close releases resources.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *Driver) Get(ctx context.Context, scopeID, slot string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return "", browserstore.ErrClosed
	}

	slots, ok := d.scopes[scopeID]
	if !ok {
		return "", browserstore.ErrNotFound
	}
	value, ok := slots[slot]
	if !ok {
		return "", browserstore.ErrNotFound
	}
	return value, nil
}

func (d *Driver) Put(ctx context.Context, scopeID, slot, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return browserstore.ErrClosed
	}

	slots, ok := d.scopes[scopeID]
	if !ok {
		slots = make(map[string]string)
		d.scopes[scopeID] = slots
	}
	slots[slot] = value
	return nil
}

func (d *Driver) Delete(ctx context.Context, scopeID, slot string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return browserstore.ErrClosed
	}

	if slots, ok := d.scopes[scopeID]; ok {
		delete(slots, slot)
		if len(slots) == 0 {
			delete(d.scopes, scopeID)
		}
	}
	return nil
}
