package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCacheExpiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewMemoryCache[int](0)
	c.now = func() time.Time { return now }

	c.Set("Mar-25", 42, 5*time.Minute)
	v, ok := c.Get("Mar-25")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	now = now.Add(4 * time.Minute)
	_, ok = c.Get("Mar-25")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok = c.Get("Mar-25")
	assert.False(t, ok, "entry must expire at its deadline")

	assert.Equal(t, 1, c.Len())
	c.sweep()
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCacheSetZeroTTLDeletes(t *testing.T) {
	c := NewMemoryCache[string](0)
	c.Set("k", "v", time.Minute)
	c.Set("k", "v", 0)
	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Minute)
	c.Set("a", "1", -time.Second)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCacheNilAndStop(t *testing.T) {
	var c *MemoryCache[int]
	_, ok := c.Get("x")
	assert.False(t, ok)
	c.Set("x", 1, time.Minute)
	c.Stop()

	live := NewMemoryCache[int](time.Millisecond)
	live.Stop()
	live.Stop()
}

func TestNoopCache(t *testing.T) {
	var c Cache[int] = NoopCache[int]{}
	c.Set("k", 1, time.Hour)
	_, ok := c.Get("k")
	assert.False(t, ok)
}
