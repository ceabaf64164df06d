// Package valkey provides a Valkey/Redis-backed cache driver for deployments
// where invite carry and rate-limit state must be shared across instances.
package valkey

import (
	"context"
	"time"

	"github.com/mitchellh/mapstructure"
	valkeygo "github.com/valkey-io/valkey-go"

	"github.com/silversurfers/silvergate/internal/cache"
)

func init() {
	cache.RegisterDriver("valkey", func(config map[string]any) (cache.CacheWithCounter, error) {
		opts := Options{
			Addr:              "localhost:6379",
			DefaultTTLSeconds: int((15 * time.Minute).Seconds()),
		}
		if config != nil {
			if err := mapstructure.WeakDecode(config, &opts); err != nil {
				return nil, err
			}
		}
		return New(opts)
	})
}

// Options holds Valkey connection configuration.
type Options struct {
	Addr              string `mapstructure:"addr"`
	Password          string `mapstructure:"password"`
	DB                int    `mapstructure:"db"`
	DefaultTTLSeconds int    `mapstructure:"default_ttl_seconds"`

	// DisableClientCache turns off server-assisted client-side caching.
	// Required when the server does not speak the invalidation protocol.
	DisableClientCache bool `mapstructure:"disable_client_cache"`
}

// Cache is a Valkey-backed cache with TTL support.
type Cache struct {
	client     valkeygo.Client
	defaultTTL time.Duration
}

// New connects to Valkey and returns a cache instance.
func New(opts Options) (*Cache, error) {
	client, err := valkeygo.NewClient(valkeygo.ClientOption{
		InitAddress:  []string{opts.Addr},
		Password:     opts.Password,
		SelectDB:     opts.DB,
		DisableCache: opts.DisableClientCache,
	})
	if err != nil {
		return nil, err
	}

	defaultTTL := time.Duration(opts.DefaultTTLSeconds) * time.Second
	if defaultTTL <= 0 {
		defaultTTL = 15 * time.Minute
	}

	return &Cache{client: client, defaultTTL: defaultTTL}, nil
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if valkeygo.IsValkeyNil(err) {
			return nil, cache.ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

// Set stores a value with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	cmd := c.client.B().Set().Key(key).Value(valkeygo.BinaryString(value)).Ex(ttl).Build()
	return c.client.Do(ctx, cmd).Error()
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(key).Build()).Error()
}

// Exists checks if a key exists.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Do(ctx, c.client.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Increment adds delta to a counter and returns the new value and reset time.
// The TTL is applied when the counter is created; later increments inherit the
// remaining window.
func (c *Cache) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, time.Time, error) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	count, err := c.client.Do(ctx, c.client.B().Incrby().Key(key).Increment(delta).Build()).AsInt64()
	if err != nil {
		return 0, time.Time{}, err
	}

	if count == delta {
		// Fresh counter: start the window now.
		seconds := int64(ttl.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		if err := c.client.Do(ctx, c.client.B().Expire().Key(key).Seconds(seconds).Build()).Error(); err != nil {
			return count, time.Time{}, err
		}
		return count, time.Now().Add(ttl), nil
	}

	// Existing counter: reset time comes from the remaining TTL.
	remainingMS, err := c.client.Do(ctx, c.client.B().Pttl().Key(key).Build()).AsInt64()
	if err != nil || remainingMS < 0 {
		return count, time.Now().Add(ttl), nil
	}
	return count, time.Now().Add(time.Duration(remainingMS) * time.Millisecond), nil
}

// GetCount returns the current counter value.
func (c *Cache) GetCount(ctx context.Context, key string) (int64, error) {
	count, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsInt64()
	if err != nil {
		if valkeygo.IsValkeyNil(err) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

// Reset sets a counter to 0.
func (c *Cache) Reset(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(key).Build()).Error()
}

// Close releases the client connection.
func (c *Cache) Close() error {
	c.client.Close()
	return nil
}

// Ensure Cache implements CacheWithCounter.
var _ cache.CacheWithCounter = (*Cache)(nil)
