package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/ipintel/internal/resource"
)

// LRU is a RecordCache bounded by a number of entries.
type LRU struct {
	mu        sync.Mutex
	capacity  int
	bytes     int64
	items     map[Key]*list.Element
	evictList *list.List
	rc        *resource.Controller

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type entry struct {
	key   Key
	value []byte
}

var _ RecordCache = (*LRU)(nil)

// NewLRU creates an LRU holding at most capacity records.
// If rc is provided, the bytes of cached records are reserved against it.
func NewLRU(capacity int, rc *resource.Controller) *LRU {
	return &LRU{
		capacity:  max(capacity, 1),
		items:     make(map[Key]*list.Element, capacity),
		evictList: list.New(),
		rc:        rc,
	}
}

// Get returns a cached record and marks it most recently used.
func (c *LRU) Get(key Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(el)
		return el.Value.(*entry).value, true
	}
	c.misses.Add(1)
	return nil, false
}

// Set caches a record, evicting the least recently used entry when full.
// A record the resource controller has no room for is not cached.
func (c *LRU) Set(key Key, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Records are immutable, so a concurrent loader inserting the same key
	// carries the same bytes.
	if el, ok := c.items[key]; ok {
		c.evictList.MoveToFront(el)
		return
	}

	// Reserve before evicting so a rejected record leaves the cache intact.
	size := int64(len(b))
	if err := c.rc.ReserveMemory(size); err != nil {
		return
	}

	if c.evictList.Len() >= c.capacity {
		c.removeElement(c.evictList.Back())
		c.evictions.Add(1)
	}

	c.items[key] = c.evictList.PushFront(&entry{key: key, value: b})
	c.bytes += size
}

// Len returns the number of cached records.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

// Stats returns the cache counters.
func (c *LRU) Stats() Stats {
	c.mu.Lock()
	entries, bytes := c.evictList.Len(), c.bytes
	c.mu.Unlock()

	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   entries,
		Bytes:     bytes,
	}
}

// Close drops every entry.
func (c *LRU) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.evictList.Len() > 0 {
		c.removeElement(c.evictList.Back())
	}
	return nil
}

func (c *LRU) removeElement(el *list.Element) {
	c.evictList.Remove(el)
	kv := el.Value.(*entry)
	delete(c.items, kv.key)
	size := int64(len(kv.value))
	c.bytes -= size
	c.rc.ReleaseMemory(size)
}
