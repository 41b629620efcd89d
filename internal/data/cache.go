package data

import (
	"sync"
	"time"
)

// Cache is a keyed store with per-entry expiry. Callers own it and pass it in;
// nothing in this module keeps a process-wide cache.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T, ttl time.Duration)
}

type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// MemoryCache is an in-memory Cache guarded by a RWMutex. Expired entries are
// never returned; a background sweep removes them when started with a
// cleanup interval.
type MemoryCache[T any] struct {
	mu    sync.RWMutex
	store map[string]cacheEntry[T]
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

// NewMemoryCache creates a cache. A positive cleanupEvery starts the sweep
// goroutine; call Stop to end it.
func NewMemoryCache[T any](cleanupEvery time.Duration) *MemoryCache[T] {
	c := &MemoryCache[T]{
		store: make(map[string]cacheEntry[T]),
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	if cleanupEvery > 0 {
		go c.cleanup(cleanupEvery)
	}
	return c
}

// Get retrieves a value if present and not expired.
func (c *MemoryCache[T]) Get(key string) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.store[key]
	if !ok || !c.now().Before(entry.expiresAt) {
		return zero, false
	}
	return entry.value, true
}

// Set stores value for ttl. A non-positive ttl removes the key.
func (c *MemoryCache[T]) Set(key string, value T, ttl time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		delete(c.store, key)
		return
	}
	c.store[key] = cacheEntry[T]{value: value, expiresAt: c.now().Add(ttl)}
}

// Len counts stored entries, expired ones included until swept.
func (c *MemoryCache[T]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (c *MemoryCache[T]) Stop() {
	if c == nil {
		return
	}
	c.once.Do(func() { close(c.stop) })
}

func (c *MemoryCache[T]) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *MemoryCache[T]) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, entry := range c.store {
		if !now.Before(entry.expiresAt) {
			delete(c.store, key)
		}
	}
}

// NoopCache never stores anything. Useful to force recomputation.
type NoopCache[T any] struct{}

func (NoopCache[T]) Get(string) (T, bool) {
	var zero T
	return zero, false
}

func (NoopCache[T]) Set(string, T, time.Duration) {}
