package cache

import (
	"container/list"
	"context"
	"sync"
)

// DefaultCapacity is the default entry bound of the in-process cache.
const DefaultCapacity = 100

// Compile-time interface assertion.
var _ Cache = (*LRU)(nil)

// LRU is a fixed-capacity in-process cache with least-recently-used
// eviction. A mutex guards all access, so the capacity bound holds exactly
// even under concurrent requests.
type LRU struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	entries  map[string]*list.Element
}

type lruEntry struct {
	key   string
	audio []byte
}

// NewLRU creates an LRU cache holding at most capacity entries. A capacity
// of 0 or less falls back to [DefaultCapacity].
func NewLRU(capacity int) *LRU {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &LRU{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// Get implements [Cache]. A hit marks the entry as most recently used.
func (c *LRU) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruEntry).audio, true
}

// Set implements [Cache]. Inserting into a full cache evicts the least
// recently used entry.
func (c *LRU) Set(_ context.Context, key string, audio []byte) {
	if len(audio) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*lruEntry).audio = audio
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*lruEntry).key)
		}
	}
	c.entries[key] = c.order.PushFront(&lruEntry{key: key, audio: audio})
}

// Len returns the current entry count.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
