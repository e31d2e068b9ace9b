// Package cache provides the per-flight-query status cache that shields the
// quota-constrained upstream. The cache itself is TTL-agnostic: each entry
// carries its own TTL hint and callers decide whether an expired entry is
// still acceptable (stale-while-blocked serving).
package cache

import (
	"sync"
	"time"

	"github.com/mlenko/flightpath/internal/provider"
	"github.com/mlenko/flightpath/pkg/logger"
)

// Entry is one cached provider response.
type Entry struct {
	Status    *provider.FlightStatus `json:"status"`
	FetchedAt time.Time              `json:"fetched_at"`
	TTL       time.Duration          `json:"ttl"`
}

// Expired reports whether the embedded TTL has elapsed.
func (e *Entry) Expired(now time.Time) bool {
	return now.Sub(e.FetchedAt) >= e.TTL
}

// Cache is a capacity-bounded map of flight-query keys to provider
// responses. On overflow the single oldest-by-fetch-time entry is evicted;
// the O(n) scan is deliberate, correctness over throughput at this scale.
type Cache struct {
	capacity int
	entries  map[string]*Entry
	logger   *logger.Logger
	mu       sync.RWMutex
}

// New creates a cache bounded to capacity entries.
func New(capacity int, log *logger.Logger) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*Entry, capacity),
		logger:   log.Named("ttl-cache"),
	}
}

// Get returns the entry for a key, expired or not. The second return is
// false when the key has never been cached.
func (c *Cache) Get(key string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	return e, ok
}

// Set stores a payload with its TTL hint, evicting the oldest entry if the
// cache is full and the key is new.
func (c *Cache) Set(key string, status *provider.FlightStatus, ttl time.Duration, fetchedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}

	c.entries[key] = &Entry{
		Status:    status,
		FetchedAt: fetchedAt,
		TTL:       ttl,
	}

	c.logger.Debug("Cached flight status",
		logger.String("key", key),
		logger.Duration("ttl", ttl),
		logger.Time("expires_at", fetchedAt.Add(ttl)))
}

// evictOldestLocked removes the entry with the oldest fetch time.
func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for key, e := range c.entries {
		if first || e.FetchedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = e.FetchedAt
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.logger.Debug("Evicted oldest cache entry",
			logger.String("key", oldestKey),
			logger.Time("fetched_at", oldestAt))
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Invalidate drops a single key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// GetStats returns cache statistics for the ops surface.
func (c *Cache) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	expired := 0
	for _, e := range c.entries {
		if e.Expired(now) {
			expired++
		}
	}

	return map[string]interface{}{
		"entries":  len(c.entries),
		"capacity": c.capacity,
		"expired":  expired,
	}
}
