package fallback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SaveThenGetWithinTTL(t *testing.T) {
	c := newLRUCache(10, time.Minute)

	c.put("openai::chat", "cached response")

	value, ok := c.get("openai::chat")
	require.True(t, ok)
	assert.Equal(t, "cached response", value)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c := newLRUCache(10, 30*time.Millisecond)

	c.put("openai::chat", "cached response")

	time.Sleep(50 * time.Millisecond)

	_, ok := c.get("openai::chat")
	assert.False(t, ok)
	assert.Equal(t, 0, c.len())
}

func TestCache_EvictsLeastRecentlyAccessed(t *testing.T) {
	c := newLRUCache(2, time.Minute)

	c.put("a", 1)
	c.put("b", 2)

	// Touch "a" so "b" becomes the least recently accessed entry.
	_, ok := c.get("a")
	require.True(t, ok)

	c.put("c", 3)

	_, ok = c.get("b")
	assert.False(t, ok, "least-recently-accessed entry should be evicted, not oldest-inserted")

	_, ok = c.get("a")
	assert.True(t, ok)

	_, ok = c.get("c")
	assert.True(t, ok)
}

func TestCache_OverwriteRefreshesRecency(t *testing.T) {
	c := newLRUCache(2, time.Minute)

	c.put("a", 1)
	c.put("b", 2)
	c.put("a", 10) // refresh, "b" is now least recent

	c.put("c", 3)

	value, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, 10, value)

	_, ok = c.get("b")
	assert.False(t, ok)
}

func TestCache_Counters(t *testing.T) {
	c := newLRUCache(10, time.Minute)

	c.put("a", 1)

	_, _ = c.get("a")
	_, _ = c.get("a")
	_, _ = c.get("missing")

	hits, misses := c.counters()
	assert.EqualValues(t, 2, hits)
	assert.EqualValues(t, 1, misses)
}
