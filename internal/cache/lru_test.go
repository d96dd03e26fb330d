package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(maxSize int, ttl time.Duration) (*LRUCache[string], *clock) {
	clk := &clock{t: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](maxSize, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Hour)
	c.Set("up", "Uttar Pradesh")
	c.Set("br", "Bihar")

	_, ok := c.Get("up")
	require.True(t, ok)

	c.Set("wb", "West Bengal")
	_, ok = c.Get("br")
	assert.False(t, ok, "br should have been evicted")
	_, ok = c.Get("up")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCacheExpires(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	c.Set("k", "v")

	clk.t = clk.t.Add(59 * time.Second)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	clk.t = clk.t.Add(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestLRUCacheCleanExpired(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	clk.t = clk.t.Add(30 * time.Second)
	c.Set("c", "3")
	clk.t = clk.t.Add(45 * time.Second)

	assert.Equal(t, 2, c.CleanExpired())
	assert.Equal(t, 1, c.Size())
}

func TestLRUCacheGetOrLoad(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	calls := 0
	load := func() (string, error) {
		calls++
		return "loaded", nil
	}

	v, err := c.GetOrLoad("k", load)
	require.NoError(t, err)
	assert.Equal(t, "loaded", v)
	v, err = c.GetOrLoad("k", load)
	require.NoError(t, err)
	assert.Equal(t, "loaded", v)
	assert.Equal(t, 1, calls)

	_, err = c.GetOrLoad("bad", func() (string, error) { return "", errors.New("boom") })
	assert.Error(t, err)
	_, ok := c.Get("bad")
	assert.False(t, ok, "failed loads must not be cached")

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 3, stats.Misses)
}

func TestLRUCacheGetOrLoadSkipsStoreAfterPurge(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)

	v, err := c.GetOrLoad("k", func() (string, error) {
		c.Purge()
		return "stale", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "stale", v, "the caller still gets its result")
	_, ok := c.Get("k")
	assert.False(t, ok, "a load overlapping a purge must not be cached")

	v, err = c.GetOrLoad("k", func() (string, error) { return "fresh", nil })
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
	v, ok = c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "fresh", v)
}

func TestManagerPurgeAndClean(t *testing.T) {
	a, clk := newTestCache(10, time.Minute)
	b := NewLRUCache[int](10, time.Hour)
	a.Set("x", "1")
	b.Set("y", 2)

	m := NewManager(nil)
	m.Register(a)
	m.Register(b)

	clk.t = clk.t.Add(2 * time.Minute)
	assert.Equal(t, 1, m.CleanExpired())
	assert.Equal(t, 1, b.Size())

	m.PurgeAll()
	assert.Equal(t, 0, b.Size())
}

func TestManagerStartStop(t *testing.T) {
	m := NewManager(nil)
	m.StartCleanup(time.Millisecond)
	m.StartCleanup(time.Millisecond)
	m.Stop()
	m.Stop()
}
