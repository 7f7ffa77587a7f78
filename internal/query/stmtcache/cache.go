// Package stmtcache caches parse trees by statement text.
package stmtcache

import (
	"container/list"
	"sync"

	"github.com/arkilian/roomsql/internal/query/parser"
)

// DefaultMaxBytes bounds the statement text held by a cache created with a
// non-positive limit.
const DefaultMaxBytes = 1 << 20

// Cache is an LRU cache of parse trees keyed by statement text. It evicts
// least-recently-used entries when the total cached text exceeds the
// configured maximum. Cached trees are shared: callers must treat them as
// read-only and take a Snapshot before rewriting.
type Cache struct {
	mu       sync.Mutex
	maxBytes int64
	curBytes int64

	// items maps statement text → list element (whose value is *cacheEntry)
	items map[string]*list.Element
	order *list.List // front = most recently used

	hits, misses int64
}

// Entry is a cached parse result.
type Entry struct {
	Root *parser.Node
	Err  error // *parser.ParseError of the first statement that failed
}

type cacheEntry struct {
	sql string
	Entry
}

// New creates a new LRU statement cache holding up to maxBytes of statement
// text.
func New(maxBytes int64) *Cache {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Cache{
		maxBytes: maxBytes,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Parse returns the tree of sql, parsing it on a miss. The parse error, if
// any, is cached with the tree.
func (c *Cache) Parse(sql string) (*parser.Node, error) {
	if e, ok := c.Get(sql); ok {
		return e.Root, e.Err
	}
	root, err := parser.Parse(sql)
	c.Put(sql, root, err)
	return root, err
}

// Get returns the cached tree for sql. On hit, the entry is promoted to
// most-recently-used.
func (c *Cache) Get(sql string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[sql]
	if !ok {
		c.misses++
		return Entry{}, false
	}
	c.hits++

	// Promote to front (most recently used)
	c.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).Entry, true
}

// Put records the tree of sql. If adding this entry exceeds maxBytes, LRU
// entries are evicted; the newest entry always stays.
func (c *Cache) Put(sql string, root *parser.Node, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// If already cached, update and promote
	if elem, ok := c.items[sql]; ok {
		elem.Value.(*cacheEntry).Entry = Entry{Root: root, Err: err}
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&cacheEntry{sql: sql, Entry: Entry{Root: root, Err: err}})
	c.items[sql] = elem
	c.curBytes += int64(len(sql))

	// Evict LRU entries until under limit
	for c.curBytes > c.maxBytes && c.order.Len() > 1 {
		c.evictOldestLocked()
	}
}

// evictOldestLocked removes the least-recently-used entry.
// Caller must hold c.mu.
func (c *Cache) evictOldestLocked() {
	back := c.order.Back()
	if back == nil {
		return
	}
	entry := back.Value.(*cacheEntry)
	c.order.Remove(back)
	delete(c.items, entry.sql)
	c.curBytes -= int64(len(entry.sql))
}

// Size returns the current total cached statement text in bytes.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curBytes
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns the hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.order.Len() > 0 {
		c.evictOldestLocked()
	}
}
