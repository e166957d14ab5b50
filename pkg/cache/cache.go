// Package cache wraps ristretto behind a small typed TTL API. Each
// consumer owns its own instance; entries are counted, not sized.
package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

const defaultMaxItems = 10_000

// Config sizes the cache.
type Config struct {
	// MaxItems bounds the number of entries; every entry costs 1.
	MaxItems int64
	Logger   *zap.Logger
}

// TTL is a typed cache over ristretto. Construct with New; all methods
// are safe for concurrent use.
type TTL[V any] struct {
	inner  *ristretto.Cache
	logger *zap.Logger
}

// New creates a TTL cache holding values of type V.
func New[V any](cfg *Config) (*TTL[V], error) {
	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Ristretto wants frequency counters at ~10x the item bound.
	inner, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}

	return &TTL[V]{inner: inner, logger: logger}, nil
}

// Get returns the value under key, if present and of type V.
func (c *TTL[V]) Get(key string) (V, bool) {
	var zero V
	v, found := c.inner.Get(key)
	if !found {
		Misses.Inc()
		return zero, false
	}
	typed, ok := v.(V)
	if !ok {
		Misses.Inc()
		return zero, false
	}
	Hits.Inc()
	return typed, true
}

// Set stores value under key until ttl elapses. Admission is
// probabilistic; false means ristretto declined the entry.
func (c *TTL[V]) Set(key string, value V, ttl time.Duration) bool {
	ok := c.inner.SetWithTTL(key, value, 1, ttl)
	if ok {
		Sets.Inc()
	}
	return ok
}

// Delete removes key.
func (c *TTL[V]) Delete(key string) {
	c.inner.Del(key)
	Deletes.Inc()
}

// Clear drops every entry.
func (c *TTL[V]) Clear() {
	c.inner.Clear()
	c.logger.Debug("cache-cleared")
}

// Close releases the cache's goroutines.
func (c *TTL[V]) Close() {
	c.inner.Close()
}

// Wait blocks until pending writes are applied. Ristretto admits
// asynchronously; tests call this before asserting on Get.
func (c *TTL[V]) Wait() {
	c.inner.Wait()
}
