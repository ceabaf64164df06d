// Package json implements a JSON file-based browserstore driver.
// It uses atomic writes (temp file + fsync + rename) and in-process locking.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/silversurfers/silvergate/internal/browserstore"
)

const stateFile = "browser_state.json"

func init() {
	browserstore.Register("json", NewDriver)
}

// Driver implements the browserstore.Driver interface using a JSON file.
type Driver struct {
	dataDir string
	mu      sync.RWMutex
	closed  bool

	// In-memory state loaded from JSON: scopeID -> slot -> value
	scopes map[string]map[string]string
}

// NewDriver creates a new JSON driver instance.
func NewDriver(cfg *browserstore.DriverConfig) (browserstore.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for json driver")
	}

	return &Driver{
		dataDir: cfg.DataDir,
		scopes:  make(map[string]map[string]string),
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "json"
}

// Init loads state from the JSON file.
func (d *Driver) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(d.dataDir, stateFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to load browser state: %w", err)
	}

	if err := json.Unmarshal(data, &d.scopes); err != nil {
		return fmt.Errorf("failed to parse browser state: %w", err)
	}
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

	return d.save()
}

func (d *Driver) Delete(ctx context.Context, scopeID, slot string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return browserstore.ErrClosed
	}

	slots, ok := d.scopes[scopeID]
	if !ok {
		return nil
	}
	if _, ok := slots[slot]; !ok {
		return nil
	}
	delete(slots, slot)
	if len(slots) == 0 {
		delete(d.scopes, scopeID)
	}

	return d.save()
}

// save atomically writes the state file.
// Pattern: write to temp file, fsync, rename. Caller holds the write lock.
func (d *Driver) save() error {
	path := filepath.Join(d.dataDir, stateFile)
	tempPath := path + ".tmp"

	data, err := json.MarshalIndent(d.scopes, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal browser state: %w", err)
	}

	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
