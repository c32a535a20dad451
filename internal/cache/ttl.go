// Package cache provides the two-tier cache used across the pipeline:
// a process-local TTL tier that is always present, and an optional
// Redis tier shared between replicas. Keys are plain strings; values
// are JSON-serializable.
package cache

import (
	"sync"
	"time"

	"github.com/sawpanic/intelrun/internal/metrics"
)

// TTLCache is the in-process tier with time-based expiry and LRU
// eviction once maxEntries is reached.
type TTLCache struct {
	mu         sync.RWMutex
	entries    map[string]*ttlEntry
	maxEntries int
	hits       int64
	misses     int64
	evictions  int64
	stopCh     chan struct{}
	stopOnce   sync.Once
}

type ttlEntry struct {
	value    interface{}
	expires  time.Time
	accessed time.Time
}

// NewTTLCache creates a TTL cache bounded to maxEntries and starts its
// background sweeper.
func NewTTLCache(maxEntries int) *TTLCache {
	c := &TTLCache{
		entries:    make(map[string]*ttlEntry),
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Get returns the cached value if present and unexpired.
func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expires) {
		c.misses++
		metrics.CacheOps.WithLabelValues("process", "miss").Inc()
		return nil, false
	}
	e.accessed = time.Now()
	c.hits++
	metrics.CacheOps.WithLabelValues("process", "hit").Inc()
	return e.value, true
}

// Set stores value under key for ttl.
func (c *TTLCache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	now := time.Now()
	c.entries[key] = &ttlEntry{value: value, expires: now.Add(ttl), accessed: now}
	metrics.CacheOps.WithLabelValues("process", "set").Inc()
}

// Delete removes key if present.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Stats reports hit/miss/eviction counts and current size.
func (c *TTLCache) Stats() (hits, misses, evictions int64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, c.evictions, len(c.entries)
}

// Stop terminates the sweeper goroutine.
func (c *TTLCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// evictOldest drops the least recently accessed entry. Caller holds the
// write lock.
func (c *TTLCache) evictOldest() {
	var oldestKey string
	oldest := time.Now().Add(time.Hour)
	for k, e := range c.entries {
		if e.accessed.Before(oldest) {
			oldest = e.accessed
			oldestKey = k
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.evictions++
	}
}

func (c *TTLCache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, e := range c.entries {
				if now.After(e.expires) {
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
