package retriever

import (
	"container/list"
	"sync"
	"time"

	"github.com/sandevgo/readr/internal/core"
)

type cacheEntry struct {
	key      string
	snippets []core.Snippet
	storedAt time.Time
}

// Cache is an LRU snippet cache with a fixed TTL. Expired entries are
// kept until evicted by capacity pressure so they can serve as stale
// fallback when sources are down.
type Cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	now      func() time.Time
}

func NewCache(ttl time.Duration, capacity int) *Cache {
	return &Cache{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get returns the cached snippets for key. fresh reports whether the
// entry is within its TTL.
func (c *Cache) Get(key string) (snippets []core.Snippet, fresh, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, exists := c.entries[key]
	if !exists {
		return nil, false, false
	}
	c.order.MoveToFront(el)

	entry := el.Value.(*cacheEntry)
	out := make([]core.Snippet, len(entry.snippets))
	copy(out, entry.snippets)

	return out, c.now().Sub(entry.storedAt) <= c.ttl, true
}

// Put stores snippets under key, refreshing its recency and TTL clock.
func (c *Cache) Put(key string, snippets []core.Snippet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]core.Snippet, len(snippets))
	copy(stored, snippets)

	if el, exists := c.entries[key]; exists {
		entry := el.Value.(*cacheEntry)
		entry.snippets = stored
		entry.storedAt = c.now()
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&cacheEntry{key: key, snippets: stored, storedAt: c.now()})
	c.entries[key] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
