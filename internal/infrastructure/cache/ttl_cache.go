package cache

import (
	"sync"
	"time"
)

// cacheEntry holds one value and its sliding expiry.
type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is a thread-safe in-memory cache with idle expiry: every Get
// extends the entry's lifetime. Implements domain.Cache.
type TTLCache[V any] struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry[V]
	ttl     time.Duration
	onEvict func(key string, value V)
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewTTLCache creates a cache whose entries expire after ttl without access.
// onEvict, if non-nil, runs for every expired or replaced entry.
func NewTTLCache[V any](ttl time.Duration, onEvict func(key string, value V)) *TTLCache[V] {
	c := &TTLCache[V]{
		entries: make(map[string]*cacheEntry[V]),
		ttl:     ttl,
		onEvict: onEvict,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Get returns the value for key and refreshes its expiry.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	entry, found := c.entries[key]
	if !found || c.now().After(entry.expiresAt) {
		return zero, false
	}
	entry.expiresAt = c.now().Add(c.ttl)
	return entry.value, true
}

// Set stores value under key.
func (c *TTLCache[V]) Set(key string, value V) {
	c.mu.Lock()
	old, replaced := c.entries[key]
	c.entries[key] = &cacheEntry[V]{
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	}
	c.mu.Unlock()

	if replaced && c.onEvict != nil {
		c.onEvict(key, old.value)
	}
}

// Len returns the number of stored entries, expired or not.
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the background cleanup.
func (c *TTLCache[V]) Close() {
	c.once.Do(func() { close(c.stop) })
}

// cleanup removes expired entries and reports them to onEvict outside the lock.
func (c *TTLCache[V]) cleanup() {
	c.mu.Lock()
	now := c.now()
	var evicted []*cacheEntry[V]
	var keys []string
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			evicted = append(evicted, entry)
			keys = append(keys, key)
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()

	if c.onEvict == nil {
		return
	}
	for i, entry := range evicted {
		c.onEvict(keys[i], entry.value)
	}
}

// cleanupLoop runs periodic cleanup of expired entries.
func (c *TTLCache[V]) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stop:
			return
		}
	}
}
