// Package memo is a small expiring key/value cache for derived order views
// and short duplicate-suppression windows. It is an optimisation only;
// nothing relies on an entry being present.
package memo

import (
	"sync"
	"time"

	"github.com/roach88/ordersync/internal/clock"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// Cache maps string keys to values of type V with a per-entry TTL.
type Cache[V any] struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries map[string]entry[V]
}

// New creates an empty cache.
func New[V any](c clock.Clock) *Cache[V] {
	return &Cache[V]{
		clock:   c,
		entries: make(map[string]entry[V]),
	}
}

// Get returns the value for key if present and unexpired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.clock.Now().Before(e.expires) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for ttl. A non-positive ttl stores nothing.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expires: c.clock.Now().Add(ttl)}
}

// Remember returns the cached value for key, computing and storing it on miss.
func (c *Cache[V]) Remember(key string, ttl time.Duration, compute func() V) V {
	if v, ok := c.Get(key); ok {
		return v
	}
	v := compute()
	c.Set(key, v, ttl)
	return v
}

// Delete removes key.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Sweep drops expired entries and returns how many were removed.
func (c *Cache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
