// Package cache provides a small generic cache with both a capacity bound and
// a per-entry time-to-live.
//
// # TTL[K, V]
//
// Entries become invisible once their expiry passes. There is no background
// timer: expired entries are dropped opportunistically on every Get and
// Set, and when the cache is still over capacity the oldest-inserted entry
// is evicted next (FIFO, not LRU; a hit does not refresh an entry).
//
//	c := cache.NewTTL[uint64, *atlas.Atlas](4, 10*time.Second)
//	c.Set(sig, a)
//	a, ok := c.Get(sig)
//
// # Thread Safety
//
// TTL is safe for concurrent use and must not be copied after creation.
package cache
