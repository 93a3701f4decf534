// Package ristretto implements the cache port with an in-process
// dgraph-io/ristretto cache. It backs hot lookups such as join-code
// resolution so student joins do not hit Postgres on every attempt.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/classpad/classpad/internal/config"
)

// Cache is a byte-value cache bounded by total cost in bytes.
type Cache struct {
	c          *ristretto.Cache[string, []byte]
	defaultTTL time.Duration
}

// New creates a cache sized from the configuration. Cost is the byte
// length of each stored value.
func New(cfg config.Cache) (*Cache, error) {
	maxCost := int64(cfg.MaxSizeMB) << 20
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCost / 100 * 10, // ~10x expected item count
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, defaultTTL: cfg.TTL}, nil
}

// Get retrieves a value. A miss is (nil, false, nil), never an error.
func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores a value. A non-positive ttl falls back to the configured
// default.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.c.SetWithTTL(key, value, int64(len(value)), ttl)
	return nil
}

// Delete removes a value.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Wait blocks until buffered writes are applied. Tests use it; callers
// in the request path never need it.
func (c *Cache) Wait() {
	c.c.Wait()
}

// Close releases the cache's resources.
func (c *Cache) Close() {
	c.c.Close()
}
