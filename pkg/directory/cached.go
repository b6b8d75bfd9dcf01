package directory

import (
	"context"
	"time"

	"github.com/mpapenbr/roadtt-engine/log"
	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/utils/cache"
	"github.com/mpapenbr/roadtt-engine/pkg/utils/cache/loadercache"
)

// Cached keeps transponder and identity lookups of a backing directory.
// Team lookups are passed through.
type Cached struct {
	backend Directory
	byRef   *loadercache.Cache[string, Entry]
	byID    *loadercache.Cache[model.Identity, Entry]
}

var _ Directory = (*Cached)(nil)

func NewCached(backend Directory, expiration time.Duration) *Cached {
	l := log.Default().Named("directory.cache")
	return &Cached{
		backend: backend,
		byRef: loadercache.New(
			loadercache.WithExpiration[string, Entry](expiration),
			loadercache.WithLogger[string, Entry](l),
			loadercache.WithLoader[string, Entry](backend.ByRefID),
		),
		byID: loadercache.New(
			loadercache.WithExpiration[model.Identity, Entry](expiration),
			loadercache.WithLogger[model.Identity, Entry](l),
			loadercache.WithLoader[model.Identity, Entry](backend.ByIdentity),
		),
	}
}

func (c *Cached) ByRefID(ctx context.Context, refid string) (*Entry, error) {
	return c.byRef.Get(ctx, normRefID(refid))
}

func (c *Cached) ByIdentity(ctx context.Context, id model.Identity) (*Entry, error) {
	return c.byID.Get(ctx, id)
}

func (c *Cached) Team(ctx context.Context, label string) ([]Entry, error) {
	return c.backend.Team(ctx, label)
}

// Invalidate drops the cached lookups of an entry.
func (c *Cached) Invalidate(ctx context.Context, e Entry) {
	c.byID.Invalidate(ctx, e.Identity)
	if e.RefID != "" {
		c.byRef.Invalidate(ctx, normRefID(e.RefID))
	}
}

// Stats sums the lookup counters of both indexes.
func (c *Cached) Stats() cache.Stats {
	return c.byRef.Stats().Add(c.byID.Stats())
}
