// Package ristretto implements the cache port using dgraph-io/ristretto as
// the in-process L1 cache for MCP tool catalogs.
package ristretto

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache wraps a ristretto cache. Entries cost their size in bytes.
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

// New creates a ristretto-backed cache bounded to maxSizeMB megabytes.
func New(maxSizeMB int) (*Cache, error) {
	if maxSizeMB <= 0 {
		return nil, fmt.Errorf("ristretto: max size must be positive, got %d", maxSizeMB)
	}
	maxCost := int64(maxSizeMB) << 20
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		// Catalog entries average a few KiB; ~10 counters per expected item.
		NumCounters: maxCost / 4096 * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}
	return &Cache{c: c}, nil
}

// Get retrieves a value from the cache.
func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores a value with the given TTL. A zero TTL keeps the entry until
// it is evicted. Set waits for the write buffer so the value is visible to
// the next Get.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.c.SetWithTTL(key, value, int64(len(value)), ttl)
	c.c.Wait()
	return nil
}

// Delete removes a value from the cache.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Close shuts down the cache and releases resources.
func (c *Cache) Close() {
	c.c.Close()
}
