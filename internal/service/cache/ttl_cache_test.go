package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCacheExpires(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache[int](time.Minute, WithClock(func() time.Time { return now }))

	c.Set("BTC", 1)
	v, ok := c.Get("BTC")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(59 * time.Second)
	_, ok = c.Get("BTC")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok = c.Get("BTC")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestTTLCacheWithoutTTLKeepsEntries(t *testing.T) {
	now := time.Now()
	c := NewTTLCache[string](0, WithClock(func() time.Time { return now }))
	c.Set("k", "v")

	now = now.Add(24 * time.Hour)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
