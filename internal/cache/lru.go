package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// LRU is an in-process cache evicting expired entries first, then the least
// recently used ones. A nil *LRU is a valid, always-missing cache.
type LRU struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
	now        func() time.Time
}

type lruEntry struct {
	key       string
	entry     Entry
	expiresAt time.Time
}

// NewLRU returns nil when maxEntries is not positive.
func NewLRU(maxEntries int) *LRU {
	if maxEntries <= 0 {
		return nil
	}

	return &LRU{
		entries:    make(map[string]*list.Element, maxEntries),
		order:      list.New(),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *LRU) Get(_ context.Context, key string) (Entry, bool, error) {
	if c == nil || key == "" {
		return Entry{}, false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return Entry{}, false, nil
	}

	cached, ok := elem.Value.(*lruEntry)
	if !ok {
		return Entry{}, false, nil
	}

	if c.now().After(cached.expiresAt) {
		c.removeElement(elem)

		return Entry{}, false, nil
	}

	c.order.MoveToFront(elem)

	return cached.entry, true, nil
}

func (c *LRU) Set(_ context.Context, key string, entry Entry, ttl time.Duration) error {
	if c == nil || key == "" || entry.Summary == "" || ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expiresAt := now.Add(ttl)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}

	if elem, ok := c.entries[key]; ok {
		cached, castOk := elem.Value.(*lruEntry)
		if !castOk {
			return nil
		}

		cached.entry = entry
		cached.expiresAt = expiresAt
		c.order.MoveToFront(elem)

		return nil
	}

	elem := c.order.PushFront(&lruEntry{
		key:       key,
		entry:     entry,
		expiresAt: expiresAt,
	})
	c.entries[key] = elem

	c.evictExpiredLocked(now)
	c.enforceSizeLimitLocked()

	return nil
}

func (c *LRU) Len() int {
	if c == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *LRU) evictExpiredLocked(now time.Time) {
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()

		if cached, ok := elem.Value.(*lruEntry); ok && now.After(cached.expiresAt) {
			c.removeElement(elem)
		}
		elem = prev
	}
}

func (c *LRU) enforceSizeLimitLocked() {
	for len(c.entries) > c.maxEntries {
		elem := c.order.Back()
		if elem == nil {
			return
		}
		c.removeElement(elem)
	}
}

func (c *LRU) removeElement(elem *list.Element) {
	cached, ok := elem.Value.(*lruEntry)
	if !ok {
		return
	}

	delete(c.entries, cached.key)
	c.order.Remove(elem)
}
