package cache

import (
	"container/list"
	"sync"
	"time"
)

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// TTLCache is a bounded map whose entries expire after a per-entry TTL.
// When a new key arrives at capacity the oldest inserted entry is evicted,
// regardless of how recently it was read. Safe for concurrent use.
type TTLCache[V any] struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	order      *list.List
	defaultTTL time.Duration
	maxEntries int
	now        func() time.Time
}

// NewTTLCache creates a cache. maxEntries <= 0 means unbounded.
func NewTTLCache[V any](defaultTTL time.Duration, maxEntries int) *TTLCache[V] {
	return &TTLCache[V]{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		defaultTTL: defaultTTL,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the value for key. An expired entry is removed and reported
// as a miss.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[V])
	if c.now().After(e.expiresAt) {
		c.removeElement(el)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for ttl, or the default TTL when ttl <= 0.
// Replacing an existing key keeps its place in the eviction order.
func (c *TTLCache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	expiresAt := c.now().Add(ttl)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.expiresAt = expiresAt
		return
	}
	if c.maxEntries > 0 && c.order.Len() >= c.maxEntries {
		c.removeElement(c.order.Front())
	}
	c.items[key] = c.order.PushBack(&entry[V]{key: key, value: value, expiresAt: expiresAt})
}

func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

func (c *TTLCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Size counts stored entries, including expired ones not yet purged.
func (c *TTLCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// CleanupExpired removes every expired entry and returns how many it removed.
func (c *TTLCache[V]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if now.After(el.Value.(*entry[V]).expiresAt) {
			c.removeElement(el)
			removed++
		}
		el = next
	}
	return removed
}

func (c *TTLCache[V]) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry[V]).key)
}
