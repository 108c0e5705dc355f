package route

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pg-sharding/dataplane/router/statistics"
	"go.uber.org/atomic"
)

type cachedRoute struct {
	route   atomic.Pointer[Route]
	lastHit atomic.Int64
}

func newCachedRoute(r Route, lastHit int64) *cachedRoute {
	e := &cachedRoute{}
	e.route.Store(&r)
	e.lastHit.Store(lastHit)
	return e
}

func (c *cachedRoute) get() Route {
	return *c.route.Load()
}

func (c *cachedRoute) touch(now time.Time) {
	c.lastHit.Store(now.UnixNano())
}

func (c *cachedRoute) idle(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, c.lastHit.Load()))
}

// Cache holds at most size routes, evicting the least recently used one first.
// Every entry remembers when it was last read so idle entries can be
// collected.
type Cache struct {
	lru *lru.Cache
	now func() time.Time
}

func NewCache(size int) (*Cache, error) {
	l, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l, now: time.Now}, nil
}

// Get returns the cached route for table and marks it used.
func (c *Cache) Get(table string) (Route, bool) {
	v, ok := c.lru.Get(table)
	if !ok {
		return Route{}, false
	}
	e := v.(*cachedRoute)
	e.touch(c.now())
	return e.get(), true
}

// Put inserts or replaces a route. A replaced route keeps its last hit time so
// a refresh does not make it look used.
func (c *Cache) Put(r Route) {
	lastHit := c.now().UnixNano()
	if v, ok := c.lru.Peek(r.Table); ok {
		lastHit = v.(*cachedRoute).lastHit.Load()
	}
	c.lru.Add(r.Table, newCachedRoute(r, lastHit))
	statistics.SetRouteCacheSize(c.lru.Len())
}

// Update swaps a route in place while it is still cached. Neither the
// recency order nor the last hit time changes.
func (c *Cache) Update(r Route) bool {
	v, ok := c.lru.Peek(r.Table)
	if !ok {
		return false
	}
	v.(*cachedRoute).route.Store(&r)
	return true
}

func (c *Cache) Remove(tables ...string) {
	for _, t := range tables {
		c.lru.Remove(t)
	}
	statistics.SetRouteCacheSize(c.lru.Len())
}

func (c *Cache) Len() int {
	return c.lru.Len()
}

// Tables lists cached tables, oldest first.
func (c *Cache) Tables() []string {
	keys := c.lru.Keys()
	res := make([]string, 0, len(keys))
	for _, k := range keys {
		res = append(res, k.(string))
	}
	return res
}

// EvictIdle drops entries not read for longer than maxIdle and returns how
// many were dropped.
func (c *Cache) EvictIdle(maxIdle time.Duration) int {
	now := c.now()
	removed := 0
	for _, k := range c.lru.Keys() {
		v, ok := c.lru.Peek(k)
		if !ok {
			continue
		}
		if v.(*cachedRoute).idle(now) > maxIdle {
			c.lru.Remove(k)
			removed++
		}
	}
	statistics.SetRouteCacheSize(c.lru.Len())
	statistics.RouteCacheEvicted(removed)
	return removed
}

func (c *Cache) Clear() {
	c.lru.Purge()
	statistics.SetRouteCacheSize(0)
}

// peek reads a route without marking it used.
func (c *Cache) peek(table string) (Route, bool) {
	v, ok := c.lru.Peek(table)
	if !ok {
		return Route{}, false
	}
	return v.(*cachedRoute).get(), true
}
