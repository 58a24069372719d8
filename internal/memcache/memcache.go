// Package memcache implements the in-process Tier-1 cache: a bounded,
// TTL-expiring map with hit/miss statistics and batch lookup. It never
// talks to the network and exists purely to absorb repeat reads within a
// single process between cold starts.
package memcache

import (
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// Stats reports cumulative hit/miss counts for a Cache.
type Stats struct {
	Hits   int64
	Misses int64
}

// HitRate returns hits/(hits+misses), or 0 if there have been no lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is a bounded, TTL-expiring in-process key/value store.
// All operations are safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]entry
	order    []string // insertion order, oldest first, for eviction
	maxSize  int
	defaultTTL time.Duration
	hits     int64
	misses   int64
}

// New creates a Cache holding at most maxSize entries, each expiring after
// ttl unless overridden per-call by Set.
func New(maxSize int, ttl time.Duration) *Cache {
	return &Cache{
		entries:    make(map[string]entry, maxSize),
		maxSize:    maxSize,
		defaultTTL: ttl,
	}
}

// Get returns the value for key and whether it was present and unexpired.
// A read does not refresh the entry's TTL.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *Cache) getLocked(key string) (string, bool) {
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		c.misses++
		return "", false
	}
	c.hits++
	return e.value, true
}

// GetMany looks up multiple keys under a single lock acquisition. Keys
// absent or expired are omitted from the result map.
func (c *Cache) GetMany(keys []string) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := c.getLocked(k); ok {
			out[k] = v
		}
	}
	return out
}

// Set stores value under key with the cache's default TTL, evicting the
// oldest entry by insertion order if the cache is at capacity.
func (c *Cache) Set(key, value string) {
	c.SetTTL(key, value, c.defaultTTL)
}

// SetTTL stores value under key with an explicit TTL.
func (c *Cache) SetTTL(key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		if c.maxSize > 0 && len(c.entries) >= c.maxSize {
			c.evictOldestLocked()
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
}

func (c *Cache) evictOldestLocked() {
	for len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.entries[oldest]; ok {
			delete(c.entries, oldest)
			return
		}
	}
}

// Delete removes key, if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries and resets the insertion order, but preserves
// cumulative hit/miss statistics.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry, c.maxSize)
	c.order = nil
}

// Size returns the number of entries currently stored, including any that
// have expired but not yet been evicted.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of cumulative hit/miss counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses}
}
