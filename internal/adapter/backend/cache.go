package backend

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/DEMONNN69/hmpi-map-engine/internal/domain"
	"github.com/DEMONNN69/hmpi-map-engine/internal/observability"
)

// PageFetcher is the slice of Client the cache decorates.
type PageFetcher interface {
	FetchMapPage(ctx context.Context, filter domain.MapFilter, page int) (domain.MapPage, error)
}

// CachedPageFetcher wraps a PageFetcher with an in-memory LRU cache keyed by
// (year, fields, page size, page). Cross-filter caching is an optimization:
// switching back to a recently viewed year replays pages without re-fetching.
type CachedPageFetcher struct {
	inner   PageFetcher
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedPageFetcher creates a cache decorator around a page fetcher.
func NewCachedPageFetcher(inner PageFetcher, maxEntries int, metrics *observability.Metrics) *CachedPageFetcher {
	return &CachedPageFetcher{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedPageFetcher) FetchMapPage(ctx context.Context, filter domain.MapFilter, page int) (domain.MapPage, error) {
	key := pageKey(filter, page)
	if result, ok := c.cache.get(key); ok {
		c.metrics.PageCache.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.PageCache.WithLabelValues("miss").Inc()

	result, err := c.inner.FetchMapPage(ctx, filter, page)
	if err != nil {
		return result, err
	}
	// Only cache full pages: a short final page may grow as the backend
	// ingests new samples, and empty responses should be retried.
	if len(result.Data) == result.Pagination.PageSize {
		c.cache.put(key, result)
	}
	return result, nil
}

func pageKey(filter domain.MapFilter, page int) string {
	year := "all"
	if filter.Year != nil {
		year = strconv.Itoa(*filter.Year)
	}
	return fmt.Sprintf("%s|%s|%d|%d", year, filter.Fields, filter.PageSize, page)
}

// lruCache is a simple thread-safe LRU cache for map pages.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value domain.MapPage
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.MapPage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.MapPage{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.MapPage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
