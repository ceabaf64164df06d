package browserstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/silversurfers/silvergate/internal/browserstore"

	_ "github.com/silversurfers/silvergate/internal/browserstore/json"
	_ "github.com/silversurfers/silvergate/internal/browserstore/memory"
	_ "github.com/silversurfers/silvergate/internal/browserstore/sqlite"
)

// newDriver builds and initializes a driver by name, with per-test storage.
func newDriver(t *testing.T, name string) browserstore.Driver {
	t.Helper()

	d, err := browserstore.New(&browserstore.DriverConfig{
		Driver:  name,
		DataDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("New(%s): %v", name, err)
	}
	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("Init(%s): %v", name, err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestDrivers_Conformance(t *testing.T) {
	for _, name := range []string{"memory", "json", "sqlite"} {
		t.Run(name, func(t *testing.T) {
			d := newDriver(t, name)
			ctx := context.Background()

			// Empty slot reads as ErrNotFound.
			if _, err := d.Get(ctx, "scope-1", browserstore.SlotCredential); !errors.Is(err, browserstore.ErrNotFound) {
				t.Errorf("Get on empty slot = %v, want ErrNotFound", err)
			}

			// Put then Get round-trips.
			if err := d.Put(ctx, "scope-1", browserstore.SlotCredential, "tok-1"); err != nil {
				t.Fatalf("Put: %v", err)
			}
			got, err := d.Get(ctx, "scope-1", browserstore.SlotCredential)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got != "tok-1" {
				t.Errorf("Get = %q, want tok-1", got)
			}

			// Put overwrites unconditionally.
			if err := d.Put(ctx, "scope-1", browserstore.SlotCredential, "tok-2"); err != nil {
				t.Fatalf("Put overwrite: %v", err)
			}
			got, _ = d.Get(ctx, "scope-1", browserstore.SlotCredential)
			if got != "tok-2" {
				t.Errorf("Get after overwrite = %q, want tok-2", got)
			}

			// Scopes are isolated.
			if _, err := d.Get(ctx, "scope-2", browserstore.SlotCredential); !errors.Is(err, browserstore.ErrNotFound) {
				t.Errorf("Get on other scope = %v, want ErrNotFound", err)
			}

			// Slots are isolated.
			if err := d.Put(ctx, "scope-1", browserstore.SlotLastPath, "/pricing"); err != nil {
				t.Fatalf("Put last path: %v", err)
			}
			got, _ = d.Get(ctx, "scope-1", browserstore.SlotCredential)
			if got != "tok-2" {
				t.Errorf("credential slot disturbed by last-path write: %q", got)
			}

			// Delete clears a slot; deleting again is a no-op success.
			if err := d.Delete(ctx, "scope-1", browserstore.SlotCredential); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := d.Get(ctx, "scope-1", browserstore.SlotCredential); !errors.Is(err, browserstore.ErrNotFound) {
				t.Errorf("Get after delete = %v, want ErrNotFound", err)
			}
			if err := d.Delete(ctx, "scope-1", browserstore.SlotCredential); err != nil {
				t.Errorf("second Delete = %v, want nil", err)
			}
		})
	}
}

func TestDurableDrivers_SurviveReopen(t *testing.T) {
	for _, name := range []string{"json", "sqlite"} {
		t.Run(name, func(t *testing.T) {
			dataDir := t.TempDir()
			ctx := context.Background()

			d, err := browserstore.New(&browserstore.DriverConfig{Driver: name, DataDir: dataDir})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if err := d.Init(ctx); err != nil {
				t.Fatalf("Init: %v", err)
			}
			if err := d.Put(ctx, "scope-1", browserstore.SlotCredential, "persisted"); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := d.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			// Reopen against the same directory.
			d2, err := browserstore.New(&browserstore.DriverConfig{Driver: name, DataDir: dataDir})
			if err != nil {
				t.Fatalf("New (reopen): %v", err)
			}
			if err := d2.Init(ctx); err != nil {
				t.Fatalf("Init (reopen): %v", err)
			}
			defer d2.Close()

			got, err := d2.Get(ctx, "scope-1", browserstore.SlotCredential)
			if err != nil {
				t.Fatalf("Get after reopen: %v", err)
			}
			if got != "persisted" {
				t.Errorf("Get after reopen = %q, want persisted", got)
			}
		})
	}
}

func TestUnknownDriver(t *testing.T) {
	_, err := browserstore.New(&browserstore.DriverConfig{Driver: "bogus"})
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
