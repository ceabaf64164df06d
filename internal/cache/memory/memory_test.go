package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/silversurfers/silvergate/internal/cache"
)

func TestSetGet(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Get = %q, want v", got)
	}
}

func TestGetMissing(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Close()

	_, err := c.Get(context.Background(), "missing")
	if !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestExpiry(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := c.Get(ctx, "k"); !errors.Is(err, cache.ErrExpired) {
		t.Errorf("err = %v, want ErrExpired", err)
	}

	exists, err := c.Exists(ctx, "k")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("expired key reported as existing")
	}
}

func TestDelete(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), 0)
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("err after delete = %v, want ErrNotFound", err)
	}
}

func TestValueCopied(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Close()
	ctx := context.Background()

	src := []byte("original")
	c.Set(ctx, "k", src, 0)
	src[0] = 'X'

	got, _ := c.Get(ctx, "k")
	if string(got) != "original" {
		t.Errorf("stored value mutated: %q", got)
	}

	got[0] = 'Y'
	again, _ := c.Get(ctx, "k")
	if string(again) != "original" {
		t.Errorf("returned value aliased the stored one: %q", again)
	}
}

func TestIncrement(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Close()
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

	n, _, _ = c.Increment(ctx, "ctr", 2, time.Minute)
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
	c := New(time.Minute, 0)
	defer c.Close()
	ctx := context.Background()

	c.Increment(ctx, "ctr", 5, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	// Expired counter starts a new window.
	n, _, err := c.Increment(ctx, "ctr", 1, time.Minute)
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if n != 1 {
		t.Errorf("increment after expiry = %d, want 1", n)
	}
}

func TestReset(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Close()
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

func TestDriverRegistration(t *testing.T) {
	c, err := cache.NewFromConfig("memory", map[string]map[string]any{
		"memory": {"default_ttl_seconds": 60, "cleanup_interval_seconds": 0},
	})
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Errorf("Get = %q, %v", got, err)
	}
}
