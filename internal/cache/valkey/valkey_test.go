package valkey

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/silversurfers/silvergate/internal/cache"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)

	c, err := New(Options{
		Addr:               s.Addr(),
		DisableClientCache: true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, s
}

func TestSetGetDelete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Get = %q, want v", got)
	}

	exists, err := c.Exists(ctx, "k")
	if err != nil || !exists {
		t.Errorf("Exists = %v, %v; want true", exists, err)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("err after delete = %v, want ErrNotFound", err)
	}
}

func TestGetMissing(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.Get(context.Background(), "missing")
	if !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestExpiry(t *testing.T) {
	c, s := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s.FastForward(2 * time.Second)

	if _, err := c.Get(ctx, "k"); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("err after expiry = %v, want ErrNotFound", err)
	}
}

func TestIncrement(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	n, resetAt, err := c.Increment(ctx, "ctr", 1, time.Minute)
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if n != 1 {
		t.Errorf("first increment = %d, want 1", n)
	}
	if resetAt.Before(time.Now()) {
		t.Error("reset time already in the past")
	}

	n, _, err = c.Increment(ctx, "ctr", 2, time.Minute)
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if n != 3 {
		t.Errorf("second increment = %d, want 3", n)
	}

	count, err := c.GetCount(ctx, "ctr")
	if err != nil {
		t.Fatalf("GetCount: %v", err)
	}
	if count != 3 {
		t.Errorf("GetCount = %d, want 3", count)
	}
}

func TestIncrementWindowReset(t *testing.T) {
	c, s := newTestCache(t)
	ctx := context.Background()

	c.Increment(ctx, "ctr", 5, time.Second)
	s.FastForward(2 * time.Second)

	n, _, err := c.Increment(ctx, "ctr", 1, time.Minute)
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if n != 1 {
		t.Errorf("increment after expiry = %d, want 1", n)
	}
}

func TestReset(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Increment(ctx, "ctr", 7, time.Minute)
	if err := c.Reset(ctx, "ctr"); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	count, _ := c.GetCount(ctx, "ctr")
	if count != 0 {
		t.Errorf("count after reset = %d, want 0", count)
	}
}
