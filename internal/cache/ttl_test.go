package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheGetSet(t *testing.T) {
	c := NewTTLCache(16)
	defer c.Stop()

	c.Set("k", "v", time.Minute)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	_, ok = c.Get("absent")
	assert.False(t, ok)
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache(16)
	defer c.Stop()

	c.Set("k", "v", -time.Second)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestTTLCacheEvictsOldestAtCapacity(t *testing.T) {
	c := NewTTLCache(2)
	defer c.Stop()

	c.Set("a", 1, time.Minute)
	time.Sleep(2 * time.Millisecond)
	c.Set("b", 2, time.Minute)
	time.Sleep(2 * time.Millisecond)

	// Touch "a" so "b" becomes the LRU victim.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", 3, time.Minute)

	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)

	_, _, evictions, size := c.Stats()
	assert.Equal(t, int64(1), evictions)
	assert.Equal(t, 2, size)
}

func TestTTLCacheDelete(t *testing.T) {
	c := NewTTLCache(16)
	defer c.Stop()

	c.Set("k", "v", time.Minute)
	c.Delete("k")
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestTTLCacheStatsCounts(t *testing.T) {
	c := NewTTLCache(16)
	defer c.Stop()

	c.Set("k", "v", time.Minute)
	c.Get("k")
	c.Get("k")
	c.Get("miss")

	hits, misses, _, size := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1, size)
}
