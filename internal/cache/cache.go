package cache

import "sync"

// Cost reports the size of a value in bytes.
type Cost[V any] func(V) int64

// ByteLen is the Cost of a byte slice.
func ByteLen(b []byte) int64 { return int64(len(b)) }

// Cache is a generic thread-safe LRU cache bounded by total cost.
// When an insert pushes the total over the budget, least recently used
// entries are evicted until it fits again. A single value larger than the
// whole budget is not stored.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*cacheEntry[V]
	budget  int64
	used    int64
	cost    Cost[V]
	tick    int64 // Monotonic access counter

	hits      uint64
	misses    uint64
	evictions uint64
}

// cacheEntry holds a cached value with its access time and cost.
type cacheEntry[V any] struct {
	value V
	cost  int64
	atime int64
}

// New creates a cache holding at most budget cost units.
// A budget of 0 means unlimited. A nil cost counts every entry as 1.
func New[K comparable, V any](budget int64, cost Cost[V]) *Cache[K, V] {
	if cost == nil {
		cost = func(V) int64 { return 1 }
	}
	return &Cache[K, V]{
		entries: make(map[K]*cacheEntry[V]),
		budget:  budget,
		cost:    cost,
	}
}

// Get retrieves a value from the cache.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}

	c.hits++
	c.tick++
	entry.atime = c.tick
	return entry.value, true
}

// Set stores a value, replacing any previous value for key.
// It reports whether the value was retained.
func (c *Cache[K, V]) Set(key K, value V) bool {
	cost := c.cost(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.used -= old.cost
		delete(c.entries, key)
	}
	if c.budget > 0 && cost > c.budget {
		return false
	}

	c.tick++
	c.entries[key] = &cacheEntry[V]{value: value, cost: cost, atime: c.tick}
	c.used += cost

	if c.budget > 0 && c.used > c.budget {
		c.evictOldest(key)
	}
	return true
}

// Delete removes an entry from the cache.
// Returns true if the entry was found and removed.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.used -= e.cost
		delete(c.entries, key)
		return true
	}
	return false
}

// Clear removes all entries from the cache.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*cacheEntry[V])
	c.used = 0
	c.tick = 0
}

// Len returns the number of entries in the cache.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Stats returns cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Len:       len(c.entries),
		Used:      c.used,
		Budget:    c.budget,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// evictOldest removes least recently used entries until the cache fits its
// budget. The entry for keep is never evicted.
// Caller must hold c.mu.
func (c *Cache[K, V]) evictOldest(keep K) {
	for c.used > c.budget {
		var (
			oldest K
			atime  int64
			found  bool
		)
		for key, e := range c.entries {
			if key == keep {
				continue
			}
			if !found || e.atime < atime {
				oldest, atime, found = key, e.atime, true
			}
		}
		if !found {
			return
		}
		c.used -= c.entries[oldest].cost
		delete(c.entries, oldest)
		c.evictions++
	}
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Used is the total cost of all entries.
	Used int64
	// Budget is the cost limit, 0 for unlimited.
	Budget int64
	// Hits is the number of cache hits.
	Hits uint64
	// Misses is the number of cache misses.
	Misses uint64
	// HitRate is the cache hit rate 0.0 to 1.0.
	HitRate float64
	// Evictions is the number of evicted entries.
	Evictions uint64
}
