package cache_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/lao-engine/cache"
)

func TestMemoryCacheGetSet(t *testing.T) {
	c := cache.NewMemoryCache(cache.DefaultMemoryCacheConfig())
	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", "v")
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCacheExpires(t *testing.T) {
	c := cache.NewMemoryCache(cache.MemoryCacheConfig{MaxSize: 10, DefaultTTL: time.Millisecond})
	c.Set("k", "v")
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestMemoryCacheEvictsLRU(t *testing.T) {
	c := cache.NewMemoryCache(cache.MemoryCacheConfig{MaxSize: 2, DefaultTTL: time.Minute})
	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3") // evicts a
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
}

func TestDiskCacheRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	d, err := cache.NewDiskCache(dir)
	require.NoError(t, err)

	key := cache.Key("uppercase", `{"input":"hi"}`)
	_, found, err := d.Get(key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, d.Set(key, "uppercase", "HI"))

	out, found, err := d.Get(key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "HI", out)
}

func TestDiskCacheKeyIsContentAddressed(t *testing.T) {
	k1 := cache.Key("uppercase", `{"input":"hi"}`)
	k2 := cache.Key("uppercase", `{"input":"hi"}`)
	k3 := cache.Key("uppercase", `{"input":"bye"}`)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestDiskCacheDelete(t *testing.T) {
	dir := t.TempDir()
	d, err := cache.NewDiskCache(dir)
	require.NoError(t, err)

	key := cache.Key("p", "x")
	require.NoError(t, d.Set(key, "p", "out"))
	require.NoError(t, d.Delete(key))

	_, found, err := d.Get(key)
	require.NoError(t, err)
	assert.False(t, found)
}
