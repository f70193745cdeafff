// Package cache provides an in-memory key/value store with lazy TTL expiry
// and a size bound.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// DefaultTTL is how long an entry stays fresh.
const DefaultTTL = time.Hour

// DefaultMaxEntries bounds the store so adversarial input cannot grow it
// without limit.
const DefaultMaxEntries = 1024

type entry[V any] struct {
	key      string
	value    V
	storedAt time.Time
}

// Cache is a mutex-guarded TTL cache with LRU eviction at capacity.
// Expired entries are not swept; they report as misses and get overwritten
// by the next Set for their key.
type Cache[V any] struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]*list.Element
	order      *list.List // front = most recently used
	now        func() time.Time
}

// Option customizes a Cache.
type Option[V any] func(*Cache[V])

// WithClock replaces the time source, letting tests control expiry.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) {
		c.now = now
	}
}

// New creates a cache. Non-positive ttl or maxEntries fall back to the
// defaults.
func New[V any](ttl time.Duration, maxEntries int, opts ...Option[V]) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	c := &Cache[V]{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the stored value for key. An entry older than the TTL reports
// as a miss; its timestamp is never refreshed by reads.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.entries[key]
	if !ok {
		return zero, false
	}

	ent := elem.Value.(*entry[V])
	if c.now().Sub(ent.storedAt) >= c.ttl {
		return zero, false
	}

	c.order.MoveToFront(elem)
	return ent.value, true
}

// Set stores value under key with a fresh timestamp, replacing any previous
// entry. At capacity the least recently used entry is evicted first.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		ent := elem.Value.(*entry[V])
		ent.value = value
		ent.storedAt = c.now()
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.maxEntries {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*entry[V]).key)
		}
	}

	c.entries[key] = c.order.PushFront(&entry[V]{
		key:      key,
		value:    value,
		storedAt: c.now(),
	})
}

// Len returns the number of physically present entries, expired ones
// included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
