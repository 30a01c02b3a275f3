// Package dedupe remembers recently seen inbound message ids so retried webhook
// deliveries are answered only once.
package dedupe

import (
	"botdesk/internal/clock"
	"container/list"
	"sync"
	"time"
)

// DefaultMaxSize bounds the number of remembered ids
const DefaultMaxSize = 10_000

type entry struct {
	key    string
	seenAt time.Time
}

// Cache is a TTL and size bounded set of keys, safe for concurrent use.
// Keys are kept in insertion order so the oldest can be evicted in O(1).
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	ttl     time.Duration
	maxSize int
	clock   clock.Clock
}

// New creates a cache. A nil clock uses the wall clock; maxSize <= 0 uses DefaultMaxSize.
func New(ttl time.Duration, maxSize int, clk clock.Clock) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Cache{
		seen:    make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		clock:   clk,
	}
}

// CheckAndMark reports whether key was seen within the TTL and marks it as seen now.
// A false result means the caller is the first to claim the key.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.expireLocked(now)

	if el, ok := c.seen[key]; ok {
		el.Value.(*entry).seenAt = now
		c.order.MoveToBack(el)
		return true
	}

	if len(c.seen) >= c.maxSize {
		c.removeLocked(c.order.Front())
	}
	c.seen[key] = c.order.PushBack(&entry{key: key, seenAt: now})
	return false
}

// Forget drops key so a later delivery is processed again
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.seen[key]; ok {
		c.removeLocked(el)
	}
}

// Len returns the number of unexpired keys
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked(c.clock.Now())
	return len(c.seen)
}

// expireLocked drops entries from the front while they are older than the TTL.
// Must be called with mu held.
func (c *Cache) expireLocked(now time.Time) {
	for el := c.order.Front(); el != nil; el = c.order.Front() {
		if now.Sub(el.Value.(*entry).seenAt) < c.ttl {
			return
		}
		c.removeLocked(el)
	}
}

func (c *Cache) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	c.order.Remove(el)
	delete(c.seen, el.Value.(*entry).key)
}
