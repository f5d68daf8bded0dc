package fallback

import (
	"container/list"
	"sync"
	"time"
)

// cacheEntry is one cached response; the list element ordering tracks access
// recency, front being most recently accessed.
type cacheEntry struct {
	key      string
	value    any
	cachedAt time.Time
}

// lruCache is a bounded map with TTL expiry on read and least-recently-
// accessed eviction on write.
type lruCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List
	items    map[string]*list.Element
	hits     uint64
	misses   uint64
}

func newLRUCache(capacity int, ttl time.Duration) *lruCache {
	return &lruCache{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// get returns the cached value for key. An entry past its TTL is removed and
// reported as a miss; a hit refreshes the entry's recency.
func (c *lruCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++

		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if time.Since(entry.cachedAt) > c.ttl {
		c.order.Remove(elem)
		delete(c.items, key)
		c.misses++

		return nil, false
	}

	c.order.MoveToFront(elem)
	c.hits++

	return entry.value, true
}

// put stores value under key, refreshing recency on overwrite. At capacity
// the least-recently-accessed entry is evicted first.
func (c *lruCache) put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		entry.cachedAt = time.Now()
		c.order.MoveToFront(elem)

		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).key)
		}
	}

	c.items[key] = c.order.PushFront(&cacheEntry{
		key:      key,
		value:    value,
		cachedAt: time.Now(),
	})
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.Len()
}

// counters returns the hit and miss totals.
func (c *lruCache) counters() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.hits, c.misses
}
