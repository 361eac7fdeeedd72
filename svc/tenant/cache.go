package tenant

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Lookup loads a tenant on cache miss.
type Lookup func(ctx context.Context, id string) (Tenant, error)

// Cache is a bounded LRU with per-entry TTL in front of a tenant lookup.
// Provisioning status changes must call Invalidate, otherwise a stale
// entry can outlive a status flip for up to one TTL.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
	maxSize int
	ttl     time.Duration
	lookup  Lookup
}

type cacheEntry struct {
	id        string
	tenant    Tenant
	expiresAt time.Time
}

func NewCache(lookup Lookup, maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		lookup:  lookup,
	}
}

// Get returns the cached tenant or falls through to the lookup. Lookup
// errors are not cached.
func (c *Cache) Get(ctx context.Context, id string) (Tenant, error) {
	c.mu.Lock()
	if elem, ok := c.entries[id]; ok {
		entry := elem.Value.(*cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			c.order.MoveToFront(elem)
			t := entry.tenant
			c.mu.Unlock()
			return t, nil
		}
		c.removeLocked(elem)
	}
	c.mu.Unlock()

	t, err := c.lookup(ctx, id)
	if err != nil {
		return Tenant{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[id]; ok {
		c.removeLocked(elem)
	}
	elem := c.order.PushFront(&cacheEntry{id: id, tenant: t, expiresAt: time.Now().Add(c.ttl)})
	c.entries[id] = elem
	for c.order.Len() > c.maxSize {
		c.removeLocked(c.order.Back())
	}
	return t, nil
}

// Invalidate drops one tenant from the cache.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[id]; ok {
		c.removeLocked(elem)
	}
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) removeLocked(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	delete(c.entries, entry.id)
	c.order.Remove(elem)
}
