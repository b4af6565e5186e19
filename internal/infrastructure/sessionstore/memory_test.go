package sessionstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryBackend_Expiry(t *testing.T) {
	b := NewMemoryBackend()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_ = b.Set(ctx, "short", "v", time.Minute)
	_ = b.Set(ctx, "forever", "v", 0)

	now = now.Add(2 * time.Minute)

	_, found, _ := b.Get(ctx, "short")
	assert.False(t, found)

	value, found, _ := b.Get(ctx, "forever")
	assert.True(t, found)
	assert.Equal(t, "v", value)
}

func TestMemoryBackend_Delete(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	_ = b.Set(ctx, "k", "v", 0)
	assert.NoError(t, b.Delete(ctx, "k"))
	assert.NoError(t, b.Delete(ctx, "missing"))

	_, found, _ := b.Get(ctx, "k")
	assert.False(t, found)
	assert.NoError(t, b.Ping(ctx))
}
