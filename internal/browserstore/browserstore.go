// Package browserstore provides durable per-browser-scope slot storage and
// the driver registry for its persistence backends.
//
// Each browser scope owns a handful of plain string slots (credential,
// last-visited path, pending navigation intents) under fixed slot names.
// There is no versioning scheme; values are opaque strings.
package browserstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Common errors for store operations.
var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("store closed")
)

// Slot names. The set is fixed; drivers never interpret the values.
const (
	SlotCredential  = "credential"
	SlotLastPath    = "last_path"
	SlotIntent      = "intent"
	SlotAdminIntent = "admin_intent"
)

// SlotStore defines slot operations for a browser scope.
// Implementations must be safe for concurrent use.
type SlotStore interface {
	// Get retrieves a slot value. Returns ErrNotFound if the slot is empty.
	Get(ctx context.Context, scopeID, slot string) (string, error)

	// Put stores a slot value, overwriting unconditionally.
	Put(ctx context.Context, scopeID, slot, value string) error

	// Delete clears a slot. Deleting an empty slot is a no-op success.
	Delete(ctx context.Context, scopeID, slot string) error
}

// Driver defines the interface for a persistence backend.
type Driver interface {
	SlotStore

	// Init initializes the driver (create tables, load data, etc).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (memory, json, sqlite).
	Name() string
}

// DriverConfig holds configuration for driver selection and initialization.
type DriverConfig struct {
	// Driver is the driver name: memory, json, sqlite
	Driver string `json:"driver"`

	// DataDir is the directory for data files (json files, sqlite db)
	DataDir string `json:"data_dir"`
}

// DriverFactory is a function that creates a driver instance.
type DriverFactory func(cfg *DriverConfig) (Driver, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]DriverFactory)
)

// Register registers a driver factory by name.
// This is typically called from init() in driver packages.
func Register(name string, factory DriverFactory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = factory
}

// New creates a driver instance based on the configuration.
func New(cfg *DriverConfig) (Driver, error) {
	driversMu.RLock()
	factory, ok := drivers[cfg.Driver]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown driver: %s", cfg.Driver)
	}

	return factory(cfg)
}

// AvailableDrivers returns the list of registered driver names.
func AvailableDrivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	return names
}
