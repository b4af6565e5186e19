package usecase

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// mockManagerCache implements domain.Cache for testing.
type mockManagerCache struct {
	entries map[string]*SessionManager
}

func newMockManagerCache() *mockManagerCache {
	return &mockManagerCache{entries: make(map[string]*SessionManager)}
}

func (m *mockManagerCache) Get(key string) (*SessionManager, bool) {
	v, found := m.entries[key]
	return v, found
}

func (m *mockManagerCache) Set(key string, value *SessionManager) {
	m.entries[key] = value
}

func TestSessionManagers_SameContextSameManager(t *testing.T) {
	r := NewSessionManagers(newMockManagerCache(), &mockAuthAPI{}, newMockStore(), nil, slog.Default())

	first := r.Get("ctx-1")
	second := r.Get("ctx-1")
	other := r.Get("ctx-2")

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
	assert.Equal(t, SessionKey("ctx-1"), first.key)
}

func TestSessionManagers_ReplacesDisposed(t *testing.T) {
	cache := newMockManagerCache()
	r := NewSessionManagers(cache, &mockAuthAPI{}, newMockStore(), nil, slog.Default())

	first := r.Get("ctx-1")
	DisposeEvicted("ctx-1", first)
	second := r.Get("ctx-1")

	assert.True(t, first.Disposed())
	assert.NotSame(t, first, second)
	assert.False(t, second.Disposed())
	assert.Same(t, second, cache.entries["ctx-1"])
}
