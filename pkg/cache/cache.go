// Package cache stores routing results between CLI runs.
//
// Entries are opaque byte slices addressed by string keys. [Keyer]
// implementations derive keys from the inputs a result depends on: the
// scene contents, the router parameters and the build version, so a new
// release or a parameter change never serves a stale result.
package cache

import (
	"context"
	"time"

	"github.com/matzehuels/detour/pkg/observability"
)

// Cache is a key/value store with optional expiry.
type Cache interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}

// =============================================================================
// Null cache
// =============================================================================

// Null never stores anything. The CLI uses it for --no-cache.
type Null struct{}

// NewNull returns a cache that always misses.
func NewNull() Cache { return Null{} }

func (Null) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (Null) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Null) Delete(context.Context, string) error                     { return nil }
func (Null) Close() error                                             { return nil }

// =============================================================================
// Instrumentation
// =============================================================================

type instrumented struct {
	Cache
	hooks observability.CacheHooks
}

// WithHooks reports hits, misses and stores of c to hooks.
func WithHooks(c Cache, hooks observability.CacheHooks) Cache {
	if hooks == nil {
		return c
	}
	return &instrumented{Cache: c, hooks: hooks}
}

func (c *instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, ok, err := c.Cache.Get(ctx, key)
	switch {
	case err != nil:
	case ok:
		c.hooks.OnCacheHit(ctx, key)
	default:
		c.hooks.OnCacheMiss(ctx, key)
	}
	return data, ok, err
}

func (c *instrumented) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := c.Cache.Set(ctx, key, data, ttl); err != nil {
		return err
	}
	c.hooks.OnCacheSet(ctx, key, len(data))
	return nil
}
