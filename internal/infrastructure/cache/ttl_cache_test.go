package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCache_SetAndGet(t *testing.T) {
	c := NewTTLCache[string](5*time.Minute, nil)
	defer c.Close()

	c.Set("ctx-1", "manager-1")

	got, found := c.Get("ctx-1")
	assert.True(t, found)
	assert.Equal(t, "manager-1", got)
}

func TestTTLCache_NotFound(t *testing.T) {
	c := NewTTLCache[*int](5*time.Minute, nil)
	defer c.Close()

	got, found := c.Get("nonexistent")
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestTTLCache_Expiration(t *testing.T) {
	c := NewTTLCache[string](100*time.Millisecond, nil)
	defer c.Close()

	c.Set("ctx-exp", "v")

	got, found := c.Get("ctx-exp")
	assert.True(t, found)
	assert.Equal(t, "v", got)

	time.Sleep(150 * time.Millisecond)
	_, found = c.Get("ctx-exp")
	assert.False(t, found)
}

func TestTTLCache_GetSlidesExpiry(t *testing.T) {
	c := NewTTLCache[string](time.Minute, nil)
	defer c.Close()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	now = now.Add(50 * time.Second)
	_, found := c.Get("k")
	assert.True(t, found)

	now = now.Add(50 * time.Second)
	_, found = c.Get("k")
	assert.True(t, found, "access should have extended the lifetime")
}

func TestTTLCache_CleanupEvicts(t *testing.T) {
	var evicted []string
	c := NewTTLCache[string](time.Minute, func(key string, _ string) {
		evicted = append(evicted, key)
	})
	defer c.Close()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("old", "v")
	now = now.Add(30 * time.Second)
	c.Set("fresh", "v")
	now = now.Add(45 * time.Second)

	c.cleanup()

	assert.Equal(t, []string{"old"}, evicted)
	assert.Equal(t, 1, c.Len())
}

func TestTTLCache_ReplaceEvictsPrevious(t *testing.T) {
	var evicted []string
	c := NewTTLCache[string](time.Minute, func(_ string, value string) {
		evicted = append(evicted, value)
	})
	defer c.Close()

	c.Set("k", "first")
	c.Set("k", "second")

	assert.Equal(t, []string{"first"}, evicted)
	got, _ := c.Get("k")
	assert.Equal(t, "second", got)
}
