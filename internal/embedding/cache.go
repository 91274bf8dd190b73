package embedding

import (
	"container/list"
	"sync"
)

// Cache is an LRU cache for embeddings keyed by normalized label text,
// bounded by entry count (embeddings are stable per text, so there is no TTL).
type Cache struct {
	capacity  int
	cache     map[string]*list.Element
	lru       *list.List
	mu        sync.Mutex
	hits      uint64
	misses    uint64
	evictions uint64
}

type cacheEntry struct {
	key   string
	value []float32
}

// CacheStats is a point-in-time snapshot of cache counters.
type CacheStats struct {
	Size      int    `json:"size"`
	Capacity  int    `json:"capacity"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// NewCache creates a new cache with the given capacity.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Cache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached embedding for key if present, refreshing its recency.
// A panic inside cache plumbing (e.g. a corrupted entry) degrades to a miss
// rather than aborting the mapping request.
func (c *Cache) Get(key string) (vec []float32, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			vec, ok = nil, false
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, found := c.cache[key]; found {
		c.lru.MoveToFront(elem)
		c.hits++
		return elem.Value.(*cacheEntry).value, true
	}
	c.misses++
	return nil, false
}

// Set stores the embedding for key, evicting the least-recently-used entry
// if at capacity. Panics inside cache plumbing are swallowed; a failed Set
// leaves the cache usable and is indistinguishable from a future miss.
func (c *Cache) Set(key string, value []float32) {
	defer func() {
		_ = recover()
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, found := c.cache[key]; found {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}

	if c.lru.Len() >= c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).key)
			c.evictions++
		}
	}

	entry := &cacheEntry{key: key, value: value}
	c.cache[key] = c.lru.PushFront(entry)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Size:      c.lru.Len(),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
