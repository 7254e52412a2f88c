// Package cache is a small time-bounded key/value memo used for hot reads
// such as the current round and the per-round called-number list.
package cache

import (
	"sync"
	"time"

	"github.com/coder/quartz"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// TTL keeps values for a fixed duration. Expired entries are dropped on
// read and by Sweep; MaxEntries bounds the map when set.
type TTL[K comparable, V any] struct {
	mu         sync.Mutex
	clock      quartz.Clock
	ttl        time.Duration
	maxEntries int
	items      map[K]entry[V]
}

func NewTTL[K comparable, V any](clock quartz.Clock, ttl time.Duration, maxEntries int) *TTL[K, V] {
	return &TTL[K, V]{
		clock:      clock,
		ttl:        ttl,
		maxEntries: maxEntries,
		items:      make(map[K]entry[V]),
	}
}

func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.clock.Now().Before(e.expires) {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if _, exists := c.items[key]; !exists && c.maxEntries > 0 && len(c.items) >= c.maxEntries {
		c.sweepLocked(now)
		if len(c.items) >= c.maxEntries {
			c.evictOldestLocked()
		}
	}
	c.items[key] = entry[V]{value: value, expires: now.Add(c.ttl)}
}

// Update applies fn to the cached value under the lock. It is a no-op
// when the key is missing or expired.
func (c *TTL[K, V]) Update(key K, fn func(V) V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok || !c.clock.Now().Before(e.expires) {
		return false
	}
	e.value = fn(e.value)
	c.items[key] = e
	return true
}

func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Sweep drops expired entries and returns how many were removed.
func (c *TTL[K, V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(c.clock.Now())
}

func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *TTL[K, V]) sweepLocked(now time.Time) int {
	n := 0
	for k, e := range c.items {
		if !now.Before(e.expires) {
			delete(c.items, k)
			n++
		}
	}
	return n
}

func (c *TTL[K, V]) evictOldestLocked() {
	var (
		oldest K
		at     time.Time
		found  bool
	)
	for k, e := range c.items {
		if !found || e.expires.Before(at) {
			oldest, at, found = k, e.expires, true
		}
	}
	if found {
		delete(c.items, oldest)
	}
}
