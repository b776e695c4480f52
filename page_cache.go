package segment

import (
	"container/list"
	"sync"

	"github.com/google/uuid"
	"github.com/vesseldb/segment-go/format"
)

// DefaultPageCacheCapacity bounds the default page cache to 256 MiB of
// decoded page bodies.
const DefaultPageCacheCapacity = 256 << 20

type pageCacheKey struct {
	block  uuid.UUID
	offset int64
}

type pageCacheEntry struct {
	key    pageCacheKey
	body   []byte
	footer *format.PageFooter
	pinned bool // kept-in-memory pages are never evicted
}

// PageCache is an LRU cache of decoded page bodies keyed by block id and
// page offset. It is safe for concurrent use. Cached bodies are immutable
// and shared between readers; the cache is what makes the dictionary page
// of a column load once across iterators.
type PageCache struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	lru      *list.List // of *pageCacheEntry, front is most recent
	entries  map[pageCacheKey]*list.Element
}

// NewPageCache returns a cache bounded to capacity bytes of page bodies.
func NewPageCache(capacity int64) *PageCache {
	return &PageCache{
		capacity: capacity,
		lru:      list.New(),
		entries:  make(map[pageCacheKey]*list.Element),
	}
}

var (
	defaultPageCacheOnce sync.Once
	defaultPageCache     *PageCache
)

// DefaultPageCache returns the process-wide page cache.
func DefaultPageCache() *PageCache {
	defaultPageCacheOnce.Do(func() {
		defaultPageCache = NewPageCache(DefaultPageCacheCapacity)
	})
	return defaultPageCache
}

// Lookup returns the cached body and footer of a page.
func (c *PageCache) Lookup(key pageCacheKey) ([]byte, *format.PageFooter, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return nil, nil, false
	}
	c.lru.MoveToFront(el)
	entry := el.Value.(*pageCacheEntry)
	return entry.body, entry.footer, true
}

// Insert adds a page body to the cache, evicting cold unpinned entries
// when over capacity.
func (c *PageCache) Insert(key pageCacheKey, body []byte, footer *format.PageFooter, pinned bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.lru.MoveToFront(el)
		return
	}
	entry := &pageCacheEntry{key: key, body: body, footer: footer, pinned: pinned}
	c.entries[key] = c.lru.PushFront(entry)
	c.size += int64(len(body))

	for c.size > c.capacity {
		el := c.lru.Back()
		for el != nil && el.Value.(*pageCacheEntry).pinned {
			el = el.Prev()
		}
		if el == nil {
			break
		}
		victim := el.Value.(*pageCacheEntry)
		c.lru.Remove(el)
		delete(c.entries, victim.key)
		c.size -= int64(len(victim.body))
	}
}

// Len returns the number of cached pages.
func (c *PageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
