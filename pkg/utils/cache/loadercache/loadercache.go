// Package loadercache is an in-memory cache that fills missing or
// expired entries through a loader.
package loadercache

import (
	"context"
	"sync"
	"time"

	"github.com/mpapenbr/roadtt-engine/log"
	"github.com/mpapenbr/roadtt-engine/pkg/utils/cache"
)

type (
	Option[K comparable, V any] func(*settings[K, V])
	entry[V any]                struct {
		value   *V
		expires time.Time
	}
	settings[K comparable, V any] struct {
		ttl    time.Duration
		loader cache.Loader[K, V]
		log    *log.Logger
		clock  func() time.Time
	}
	Cache[K comparable, V any] struct {
		mu      sync.Mutex
		entries map[K]entry[V]
		stats   cache.Stats
		set     settings[K, V]
	}
)

var _ cache.Cache[string, int] = (*Cache[string, int])(nil)

func WithExpiration[K comparable, V any](ttl time.Duration) Option[K, V] {
	return func(s *settings[K, V]) { s.ttl = ttl }
}

func WithLoader[K comparable, V any](loader cache.Loader[K, V]) Option[K, V] {
	return func(s *settings[K, V]) { s.loader = loader }
}

func WithLogger[K comparable, V any](l *log.Logger) Option[K, V] {
	return func(s *settings[K, V]) { s.log = l }
}

// WithClock replaces the time source, used by tests
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(s *settings[K, V]) { s.clock = now }
}

func New[K comparable, V any](opts ...Option[K, V]) *Cache[K, V] {
	s := settings[K, V]{
		ttl:   5 * time.Minute,
		log:   log.Default().Named("cache"),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return &Cache[K, V]{entries: make(map[K]entry[V]), set: s}
}

// Get returns the cached value of key or loads it. The lock is held
// while loading so concurrent lookups of a missing key load it once.
func (c *Cache[K, V]) Get(ctx context.Context, key K) (*V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.set.clock()
	if e, ok := c.entries[key]; ok {
		if now.Before(e.expires) {
			c.stats.Hits++
			return e.value, nil
		}
		delete(c.entries, key)
	}
	c.stats.Misses++
	if c.set.loader == nil {
		return nil, cache.ErrCacheMiss
	}
	v, err := c.set.loader(ctx, key)
	if err != nil {
		c.stats.Failed++
		c.set.log.Debug("load failed", log.Any("key", key), log.ErrorField(err))
		return nil, err
	}
	c.entries[key] = entry[V]{value: v, expires: now.Add(c.set.ttl)}
	c.set.log.Debug("loaded", log.Any("key", key), log.Int("entries", len(c.entries)))
	return v, nil
}

func (c *Cache[K, V]) Invalidate(_ context.Context, key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *Cache[K, V]) InvalidateAll(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

func (c *Cache[K, V]) Stats() cache.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.entries)
	return s
}
