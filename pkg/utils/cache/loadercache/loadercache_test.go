package loadercache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/roadtt-engine/pkg/utils/cache"
)

func TestGet(t *testing.T) {
	calls := 0
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := New(
		WithExpiration[string, int](time.Minute),
		WithClock[string, int](func() time.Time { return now }),
		WithLoader[string, int](func(_ context.Context, key string) (*int, error) {
			calls++
			if key == "missing" {
				return nil, errors.New("not there")
			}
			v := len(key)
			return &v, nil
		}),
	)
	ctx := context.Background()

	v, err := c.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 3, *v)
	_, err = c.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "cached")

	now = now.Add(2 * time.Minute)
	_, err = c.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "expired")

	c.Invalidate(ctx, "abc")
	_, err = c.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 3, calls, "invalidated")

	_, err = c.Get(ctx, "missing")
	assert.Error(t, err)
	_, err = c.Get(ctx, "missing")
	assert.Error(t, err)
	assert.Equal(t, 5, calls, "errors are not cached")

	assert.Equal(t, cache.Stats{Hits: 1, Misses: 5, Failed: 2, Entries: 1}, c.Stats())
}

func TestLoaderSeesCallerContext(t *testing.T) {
	type ctxKey struct{}
	c := New(WithLoader[string, string](func(ctx context.Context, _ string) (*string, error) {
		v, _ := ctx.Value(ctxKey{}).(string)
		return &v, nil
	}))
	v, err := c.Get(context.WithValue(context.Background(), ctxKey{}, "lookup"), "k")
	require.NoError(t, err)
	assert.Equal(t, "lookup", *v)
}

func TestHitRatio(t *testing.T) {
	assert.Zero(t, cache.Stats{}.HitRatio())
	s := cache.Stats{Hits: 3, Misses: 1}.Add(cache.Stats{Entries: 2})
	assert.InDelta(t, 0.75, s.HitRatio(), 1e-9)
	assert.Equal(t, 2, s.Entries)
}

func TestGetWithoutLoader(t *testing.T) {
	c := New[string, int]()
	_, err := c.Get(context.Background(), "x")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}
