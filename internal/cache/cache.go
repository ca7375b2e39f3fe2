// Package cache memoizes expensive loads and renders by a content-addressed
// key. Values are shared between callers and must be treated as read-only
// once stored.
package cache

import (
	"container/list"
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/singleflight"
)

// Key identifies a memoized computation: a hash of the function identity and
// its argument values.
type Key string

// NewKey hashes fn and args into a Key. Arguments are formatted with %v, so
// callers pass values whose formatting captures their content (strings,
// numbers, fingerprints).
func NewKey(fn string, args ...any) Key {
	var b strings.Builder
	b.WriteString(fn)
	for _, a := range args {
		b.WriteByte(0x1f)
		fmt.Fprintf(&b, "%v", a)
	}
	h := xxh3.HashString128(b.String())
	return Key(fmt.Sprintf("%s:%016x%016x", fn, h.Hi, h.Lo))
}

// Stats counts cache activity.
type Stats struct {
	Hits      uint64 `json:"hits" doc:"Lookups served from memory"`
	Misses    uint64 `json:"misses" doc:"Lookups that ran the computation"`
	Evictions uint64 `json:"evictions" doc:"Entries dropped by the size bound"`
	Entries   int    `json:"entries" doc:"Entries currently held"`
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	limit int
}

// WithLimit bounds the cache to n entries, evicting the least recently used.
// n <= 0 means unbounded, the default.
func WithLimit(n int) Option {
	return func(o *options) { o.limit = n }
}

type entry[V any] struct {
	key   Key
	value V
}

// Cache is a concurrency-safe memo of V values. At most one computation per
// key runs at a time; concurrent callers for the same key wait for it.
// Failed computations are not stored.
type Cache[V any] struct {
	mu      sync.Mutex
	limit   int
	entries map[Key]*list.Element
	lru     *list.List
	group   singleflight.Group

	hits, misses, evictions atomic.Uint64
}

// New creates an empty cache.
func New[V any](opts ...Option) *Cache[V] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		limit:   o.limit,
		entries: make(map[Key]*list.Element),
		lru:     list.New(),
	}
}

// Get returns the stored value for key.
func (c *Cache[V]) Get(key Key) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.lru.MoveToFront(el)
	return el.Value.(*entry[V]).value, true
}

// Set stores value under key.
func (c *Cache[V]) Set(key Key, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*entry[V]).value = value
		c.lru.MoveToFront(el)
		return
	}
	c.entries[key] = c.lru.PushFront(&entry[V]{key: key, value: value})

	for c.limit > 0 && c.lru.Len() > c.limit {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry[V]).key)
		c.evictions.Add(1)
	}
}

// Do returns the value stored for key, computing and storing it with fn on a
// miss. Concurrent calls for one key share a single fn invocation. fn runs
// detached from the cancellation of whichever caller started it; each caller
// stops waiting when its own ctx is done.
func (c *Cache[V]) Do(ctx context.Context, key Key, fn func(context.Context) (V, error)) (V, error) {
	var zero V
	if v, ok := c.Get(key); ok {
		c.hits.Add(1)
		return v, nil
	}

	flight := context.WithoutCancel(ctx)
	ch := c.group.DoChan(string(key), func() (any, error) {
		// Another caller may have stored it between Get and DoChan.
		if v, ok := c.Get(key); ok {
			c.hits.Add(1)
			return v, nil
		}
		c.misses.Add(1)
		v, err := fn(flight)
		if err != nil {
			return nil, err
		}
		c.Set(key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		out, _ := res.Val.(V)
		return out, nil
	}
}

// Len returns the number of stored entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   c.Len(),
	}
}
