// package cache provides the in-memory response cache.
package cache

import (
	"net/url"
	"sync"
	"time"

	"github.com/desertthunder/labeltree/internal/metrics"
)

// DefaultTTL is the lifetime of metadata responses.
const DefaultTTL = 5 * time.Minute

// Entry is a cached value and the time it was stored.
type Entry[T any] struct {
	Data      T
	Timestamp time.Time
}

// Option configures a [Cache].
type Option func(*options)

type options struct {
	now     func() time.Time
	metrics *metrics.Metrics
	tier    string
}

// WithClock replaces time.Now, letting tests move time forward.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMetrics records hits and misses under the given tier label.
func WithMetrics(m *metrics.Metrics, tier string) Option {
	return func(o *options) {
		o.metrics = m
		o.tier = tier
	}
}

// Cache is a mutex-guarded map with a fixed TTL.
//
// A stale entry reads as a miss but stays in the map until the next [Cache.Put]
// sweeps every expired entry.
type Cache[T any] struct {
	ttl  time.Duration
	opts options

	mu      sync.Mutex
	entries map[string]Entry[T]
}

// New creates a cache whose entries expire after ttl.
func New[T any](ttl time.Duration, opts ...Option) *Cache[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	o := options{now: time.Now, tier: "memory"}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[T]{ttl: ttl, opts: o, entries: make(map[string]Entry[T])}
}

// Get returns the value stored under key if it has not expired.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()

	if !ok || c.expired(entry) {
		c.record(false)
		var zero T
		return zero, false
	}

	c.record(true)
	return entry.Data, true
}

// Put stores v under key and sweeps expired entries. Last write wins.
func (c *Cache[T]) Put(key string, v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = Entry[T]{Data: v, Timestamp: c.opts.now()}
}

// Len reports the number of stored entries, stale ones included.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[T]) expired(e Entry[T]) bool {
	return c.opts.now().Sub(e.Timestamp) > c.ttl
}

func (c *Cache[T]) record(hit bool) {
	if c.opts.metrics == nil {
		return
	}
	if hit {
		c.opts.metrics.CacheHits.WithLabelValues(c.opts.tier).Inc()
	} else {
		c.opts.metrics.CacheMisses.WithLabelValues(c.opts.tier).Inc()
	}
}

// Key derives a deterministic cache key from a resource path and its query parameters.
// Parameter order does not matter.
func Key(resource string, params url.Values) string {
	if len(params) == 0 {
		return resource
	}
	return resource + "?" + params.Encode()
}
