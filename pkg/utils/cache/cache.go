// Package cache declares the read-through caches used in front of the
// rider directory.
package cache

import (
	"context"
	"errors"
)

var ErrCacheMiss = errors.New("cache miss")

// Loader fetches the value of a key that is not cached.
type Loader[K comparable, V any] func(ctx context.Context, key K) (*V, error)

// Stats counts the lookups of a cache since its creation.
type Stats struct {
	Hits    int
	Misses  int
	Failed  int
	Entries int
}

// HitRatio is the share of lookups served from the cache.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Add sums two stats.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Hits:    s.Hits + o.Hits,
		Misses:  s.Misses + o.Misses,
		Failed:  s.Failed + o.Failed,
		Entries: s.Entries + o.Entries,
	}
}

type Cache[K comparable, V any] interface {
	Get(ctx context.Context, key K) (*V, error)
	Invalidate(ctx context.Context, key K)
	InvalidateAll(ctx context.Context)
	Stats() Stats
}
