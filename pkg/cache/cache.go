// Package cache provides a generic, thread-safe LRU cache for compiled
// artifacts such as scripts and schemas. Entries are evicted least recently
// used first once the capacity is exceeded.
package cache

import (
	"container/list"
	"fmt"
	"sync"
	"sync/atomic"
)

// EvictCallback is invoked for each entry removed by capacity eviction,
// Delete or Clear. It runs outside the cache lock.
type EvictCallback[V any] func(key string, value V)

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithEvictionCallback registers a callback for evicted entries.
func WithEvictionCallback[V any](fn EvictCallback[V]) Option[V] {
	return func(c *Cache[V]) {
		c.evictFn = fn
	}
}

type entry[V any] struct {
	key   string
	value V
}

// Cache is a fixed-capacity LRU cache. All methods are safe for concurrent
// use. Get marks an entry as recently used; Set of an existing key updates
// the value in place.
type Cache[V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List
	evictFn  EvictCallback[V]

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates an LRU cache holding at most capacity entries.
func New[V any](capacity int, opts ...Option[V]) (*Cache[V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	c := &Cache[V]{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get retrieves the value stored under key and marks it most recently used.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	element, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.order.MoveToFront(element)
	value := element.Value.(*entry[V]).value
	c.mu.Unlock()

	c.hits.Add(1)
	return value, true
}

// Set stores value under key, evicting the least recently used entry if the
// cache is full. An existing key is updated in place and marked most
// recently used.
func (c *Cache[V]) Set(key string, value V) {
	var evicted *entry[V]

	c.mu.Lock()
	if element, ok := c.items[key]; ok {
		element.Value.(*entry[V]).value = value
		c.order.MoveToFront(element)
		c.mu.Unlock()
		return
	}

	c.items[key] = c.order.PushFront(&entry[V]{key: key, value: value})
	if len(c.items) > c.capacity {
		oldest := c.order.Back()
		e := oldest.Value.(*entry[V])
		delete(c.items, e.key)
		c.order.Remove(oldest)
		c.evictions.Add(1)
		evicted = e
	}
	c.mu.Unlock()

	if evicted != nil && c.evictFn != nil {
		c.evictFn(evicted.key, evicted.value)
	}
}

// Delete removes key from the cache, reporting whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	var removed *entry[V]

	c.mu.Lock()
	element, ok := c.items[key]
	if ok {
		e := element.Value.(*entry[V])
		delete(c.items, e.key)
		c.order.Remove(element)
		removed = e
	}
	c.mu.Unlock()

	if removed != nil && c.evictFn != nil {
		c.evictFn(removed.key, removed.value)
	}
	return ok
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	var removed []*entry[V]

	c.mu.Lock()
	if c.evictFn != nil {
		removed = make([]*entry[V], 0, len(c.items))
		for element := c.order.Back(); element != nil; element = element.Prev() {
			removed = append(removed, element.Value.(*entry[V]))
		}
	}
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.mu.Unlock()

	for _, e := range removed {
		c.evictFn(e.key, e.value)
	}
}

// Len returns the current number of entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys returns the cached keys, most recently used first.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.items))
	for element := c.order.Front(); element != nil; element = element.Next() {
		keys = append(keys, element.Value.(*entry[V]).key)
	}
	return keys
}

// Stats reports cumulative hit, miss and eviction counts.
func (c *Cache[V]) Stats() (hits, misses, evictions int64) {
	return c.hits.Load(), c.misses.Load(), c.evictions.Load()
}
