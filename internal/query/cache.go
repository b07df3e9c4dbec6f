// Package query is a small keyed result cache with explicit invalidation,
// modelled on how the site's pages share fetched backend data.
package query

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultStaleTime is how long a fetched result is served without refetching.
const DefaultStaleTime = 30 * time.Second

// Cache maps keys to their last fetched result. Keys are grouped by the part
// before the first ':', so "admin-inquiry-detail:42" belongs to the group
// "admin-inquiry-detail".
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*entry
	inflight  map[string]flight
	group     singleflight.Group
	staleTime time.Duration
	now       func() time.Time
}

type entry struct {
	value     any
	fetchedAt time.Time
	stale     bool
}

// flight records what happened to a key while its fetch was running.
type flight int

const (
	flightClean flight = iota
	flightInvalidated
	flightRemoved
)

// New creates a cache. A non-positive staleTime uses DefaultStaleTime.
func New(staleTime time.Duration) *Cache {
	if staleTime <= 0 {
		staleTime = DefaultStaleTime
	}
	return &Cache{
		entries:   make(map[string]*entry),
		inflight:  make(map[string]flight),
		staleTime: staleTime,
		now:       time.Now,
	}
}

// Key joins a group name and parameters into a cache key.
func Key(group string, params ...string) string {
	if len(params) == 0 {
		return group
	}
	return group + ":" + strings.Join(params, ":")
}

// Fetch returns the cached value for key when it is fresh, otherwise it runs
// fn and caches the result. Concurrent fetches of the same key share one call,
// which does not inherit the cancellation of whichever caller started it.
// Errors are returned but never cached. A result whose key was invalidated
// while fn ran is cached stale; one whose key was removed is not cached.
func Fetch[T any](ctx context.Context, c *Cache, key string, fn func(context.Context) (T, error)) (T, error) {
	if v, ok := c.fresh(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		c.begin(key)
		value, err := fn(context.WithoutCancel(ctx))
		if err != nil {
			c.abandon(key)
			return nil, err
		}
		c.finish(key, value)
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Peek returns the cached value for key, fresh or not.
func (c *Cache) Peek(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Stale reports whether key would be refetched by the next Fetch.
func (c *Cache) Stale(key string) bool {
	_, ok := c.fresh(key)
	return !ok
}

// Set stores a value directly, as if it had just been fetched.
func (c *Cache) Set(key string, value any) {
	c.store(key, value)
}

// Invalidate marks every key in the given groups stale so the next Fetch
// refetches. Values stay readable through Peek.
func (c *Cache) Invalidate(groups ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if inGroups(key, groups) {
			e.stale = true
		}
	}
	for key, f := range c.inflight {
		if f == flightClean && inGroups(key, groups) {
			c.inflight[key] = flightInvalidated
		}
	}
}

// Remove evicts every key in the given groups.
func (c *Cache) Remove(groups ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if inGroups(key, groups) {
			delete(c.entries, key)
		}
	}
	for key := range c.inflight {
		if inGroups(key, groups) {
			c.inflight[key] = flightRemoved
		}
	}
}

// Len returns the number of cached keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) fresh(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.stale || c.now().Sub(e.fetchedAt) >= c.staleTime {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) store(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{value: value, fetchedAt: c.now()}
}

func (c *Cache) begin(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight[key] = flightClean
}

func (c *Cache) abandon(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, key)
}

func (c *Cache) finish(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.inflight[key]
	delete(c.inflight, key)
	switch f {
	case flightRemoved:
		// dropped
	case flightInvalidated:
		c.entries[key] = &entry{value: value, fetchedAt: c.now(), stale: true}
	default:
		c.entries[key] = &entry{value: value, fetchedAt: c.now()}
	}
}

func inGroups(key string, groups []string) bool {
	for _, g := range groups {
		if key == g || strings.HasPrefix(key, g+":") {
			return true
		}
	}
	return false
}
