package inventory

import (
	"sync"

	"github.com/a3tai/mcp-pdf-filler/internal/fieldmap"
)

// DefaultCapacity is used when a non-positive capacity is requested
const DefaultCapacity = 64

// Cache is a thread-safe least recently used cache of field inventories
// keyed by PDF identity
type Cache struct {
	mutex    sync.Mutex
	capacity int
	items    map[string]*cacheNode
	head     *cacheNode // Most recently used
	tail     *cacheNode // Least recently used
	hits     int64
	misses   int64
}

// cacheNode represents a node in the doubly-linked list
type cacheNode struct {
	key    string
	fields []fieldmap.FieldInfo
	prev   *cacheNode
	next   *cacheNode
}

// NewCache creates a new inventory cache with the specified capacity
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	cache := &Cache{
		capacity: capacity,
		items:    make(map[string]*cacheNode),
	}

	// Initialize dummy head and tail nodes
	cache.head = &cacheNode{}
	cache.tail = &cacheNode{}
	cache.head.next = cache.tail
	cache.tail.prev = cache.head

	return cache
}

// Get returns a copy of the cached inventory and marks it as recently used
func (c *Cache) Get(key string) ([]fieldmap.FieldInfo, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if node, exists := c.items[key]; exists {
		c.moveToFront(node)
		c.hits++
		return cloneFields(node.fields), true
	}

	c.misses++
	return nil, false
}

// Put stores a copy of fields under key, evicting the least recently used
// entry when the cache is full
func (c *Cache) Put(key string, fields []fieldmap.FieldInfo) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if node, exists := c.items[key]; exists {
		node.fields = cloneFields(fields)
		c.moveToFront(node)
		return
	}

	node := &cacheNode{key: key, fields: cloneFields(fields)}
	c.addToFront(node)
	c.items[key] = node

	if len(c.items) > c.capacity {
		c.evictLRU()
	}
}

// Remove removes a key from the cache
func (c *Cache) Remove(key string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if node, exists := c.items[key]; exists {
		c.removeNode(node)
		delete(c.items, key)
		return true
	}
	return false
}

// Clear removes all entries and resets statistics
func (c *Cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items = make(map[string]*cacheNode)
	c.head.next = c.tail
	c.tail.prev = c.head
	c.hits = 0
	c.misses = 0
}

// Len returns the current number of cached inventories
func (c *Cache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.items)
}

// Stats returns cache statistics
func (c *Cache) Stats() CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	total := c.hits + c.misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}

	return CacheStats{
		Hits:     c.hits,
		Misses:   c.misses,
		HitRate:  hitRate,
		Size:     len(c.items),
		Capacity: c.capacity,
	}
}

func (c *Cache) moveToFront(node *cacheNode) {
	c.removeNode(node)
	c.addToFront(node)
}

func (c *Cache) addToFront(node *cacheNode) {
	node.prev = c.head
	node.next = c.head.next
	c.head.next.prev = node
	c.head.next = node
}

func (c *Cache) removeNode(node *cacheNode) {
	node.prev.next = node.next
	node.next.prev = node.prev
}

func (c *Cache) evictLRU() {
	lru := c.tail.prev
	if lru != c.head {
		c.removeNode(lru)
		delete(c.items, lru.key)
	}
}

// CacheStats provides statistics about cache performance
type CacheStats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRate  float64 `json:"hit_rate_percent"`
	Size     int     `json:"current_size"`
	Capacity int     `json:"max_capacity"`
}

// cloneFields copies an inventory so callers cannot mutate cached entries
func cloneFields(fields []fieldmap.FieldInfo) []fieldmap.FieldInfo {
	if fields == nil {
		return nil
	}
	out := make([]fieldmap.FieldInfo, len(fields))
	for i, f := range fields {
		out[i] = f
		if f.Options != nil {
			out[i].Options = append([]string(nil), f.Options...)
		}
	}
	return out
}
