package resultcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGetHit(t *testing.T) {
	c := New(10, time.Minute)
	c.Set("https://example.com", 800, 600, "png", "https://cdn/artifact.png")
	v, ok := c.Get("https://example.com", 800, 600, "png")
	require.True(t, ok)
	assert.Equal(t, "https://cdn/artifact.png", v)
	assert.Equal(t, int64(1), c.Stats().Hits)
}

func TestCache_MissCountsSeparately(t *testing.T) {
	c := New(10, time.Minute)
	_, ok := c.Get("https://nope.com", 1, 1, "png")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestCache_StaleHitEvictsAndCountsAsMiss(t *testing.T) {
	c := New(10, time.Millisecond)
	start := time.Now()
	c.now = func() time.Time { return start }
	c.Set("https://example.com", 1, 1, "png", "v")

	c.now = func() time.Time { return start.Add(time.Second) }
	_, ok := c.Get("https://example.com", 1, 1, "png")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Misses)
	assert.Equal(t, 0, c.Stats().Size)
}

func TestCache_EvictsOldestTenPercentAtCapacity(t *testing.T) {
	c := New(10, time.Hour)
	start := time.Now()
	c.now = func() time.Time { return start }
	for i := 0; i < 10; i++ {
		c.now = func(i int) func() time.Time {
			return func() time.Time { return start.Add(time.Duration(i) * time.Second) }
		}(i)
		c.Set("https://example.com/"+string(rune('a'+i)), 1, 1, "png", "v")
	}
	assert.Equal(t, 10, c.Stats().Size)

	c.now = func() time.Time { return start.Add(20 * time.Second) }
	c.Set("https://example.com/new", 1, 1, "png", "v")
	assert.LessOrEqual(t, c.Stats().Size, 10)
}

func TestCache_InvalidateByURLSubstring(t *testing.T) {
	c := New(10, time.Hour)
	c.Set("https://a.com/page", 1, 1, "png", "v1")
	c.Set("https://b.com/page", 1, 1, "png", "v2")

	removed := c.Invalidate("a.com")
	assert.Equal(t, 1, removed)
	_, ok := c.Get("https://a.com/page", 1, 1, "png")
	assert.False(t, ok)
	_, ok = c.Get("https://b.com/page", 1, 1, "png")
	assert.True(t, ok)
}

func TestCache_InvalidateAllFlushesEverything(t *testing.T) {
	c := New(10, time.Hour)
	c.Set("https://a.com/page", 1, 1, "png", "v1")
	c.Set("https://b.com/page", 1, 1, "png", "v2")

	removed := c.Invalidate("")
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, c.Stats().Size)
}
