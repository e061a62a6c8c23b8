package cache

import (
	"slices"
	"sync"
	"time"
)

// Default configuration constants.
const (
	// DefaultCapacity is the default maximum number of entries.
	DefaultCapacity = 4

	// DefaultTTL is the default entry lifetime.
	DefaultTTL = 10 * time.Second
)

// TTL is a capacity- and time-bounded FIFO cache.
type TTL[K comparable, V any] struct {
	mu       sync.Mutex
	entries  map[K]ttlEntry[V]
	order    []K // insertion order, oldest first
	capacity int
	ttl      time.Duration
	now      func() time.Time

	hits      uint64
	misses    uint64
	evictions uint64
	expired   uint64
}

type ttlEntry[V any] struct {
	value  V
	expiry time.Time
}

// NewTTL creates a cache holding at most capacity entries, each visible for
// ttl after insertion. Non-positive arguments select DefaultCapacity and
// DefaultTTL.
func NewTTL[K comparable, V any](capacity int, ttl time.Duration) *TTL[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TTL[K, V]{
		entries:  make(map[K]ttlEntry[V], capacity),
		order:    make([]K, 0, capacity+1),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (c *TTL[K, V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now == nil {
		now = time.Now
	}
	c.now = now
}

// Get returns the value for key if it is present and not expired.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evict(c.now())

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return e.value, true
}

// Set stores value under key with a fresh expiry. Re-setting an existing
// key moves it to the newest insertion position.
func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, ok := c.entries[key]; ok {
		c.removeOrder(key)
	}
	c.entries[key] = ttlEntry[V]{value: value, expiry: now.Add(c.ttl)}
	c.order = append(c.order, key)

	c.evict(now)
}

// Stats returns cache statistics.
func (c *TTL[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var hitRate float64
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return Stats{
		Len:       len(c.entries),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		HitRate:   hitRate,
		Evictions: c.evictions,
		Expired:   c.expired,
	}
}

// evict drops expired entries, then the oldest entries while over capacity.
// Caller must hold c.mu.
func (c *TTL[K, V]) evict(now time.Time) {
	kept := c.order[:0]
	for _, k := range c.order {
		if !now.Before(c.entries[k].expiry) {
			delete(c.entries, k)
			c.expired++
			continue
		}
		kept = append(kept, k)
	}
	c.order = kept

	for len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		c.evictions++
	}
}

// removeOrder removes key from the insertion order.
// Caller must hold c.mu.
func (c *TTL[K, V]) removeOrder(key K) {
	if i := slices.Index(c.order, key); i >= 0 {
		c.order = slices.Delete(c.order, i, i+1)
	}
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Capacity is the maximum number of entries.
	Capacity int
	// Hits is the number of successful lookups.
	Hits uint64
	// Misses is the number of failed lookups, including expired keys.
	Misses uint64
	// HitRate is the hit rate 0.0 to 1.0.
	HitRate float64
	// Evictions is the number of entries dropped for capacity.
	Evictions uint64
	// Expired is the number of entries dropped after their TTL.
	Expired uint64
}
