// Package cache provides a small TTL cache for upstream lookups. Expired
// entries are refetched, never silently reused.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	fetchedAt time.Time
}

// TTL maps keys to values with a fetch timestamp per entry. The zero value is
// not usable; construct with New.
type TTL[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]entry[V]
	now     func() time.Time
}

func New[K comparable, V any]() *TTL[K, V] {
	return &TTL[K, V]{
		entries: make(map[K]entry[V]),
		now:     time.Now,
	}
}

// Get returns the cached value for key if it was fetched within ttl.
func (c *TTL[K, V]) Get(key K, ttl time.Duration) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.fetchedAt) > ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores value for key, stamped now.
func (c *TTL[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, fetchedAt: c.now()}
}

// GetOrFetch returns the fresh cached value for key, or invokes fetch and
// caches its result. A fetch error is returned without caching anything, so
// the next call retries.
func (c *TTL[K, V]) GetOrFetch(key K, ttl time.Duration, fetch func() (V, error)) (V, error) {
	if v, ok := c.Get(key, ttl); ok {
		return v, nil
	}
	v, err := fetch()
	if err != nil {
		var zero V
		return zero, err
	}
	c.Put(key, v)
	return v, nil
}

// Delete removes key from the cache.
func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports the number of entries, fresh or expired.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
