//nolint:funlen // ok for tests
package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

const sampleExport = `{
  "event": "club tt",
  "riders": [
    {"bib": 12, "first": "Jane", "last": "Smith", "org": "ABC", "cat": "W VET", "refid": "A1234"},
    {"bib": "21", "series": "t", "first": "Tom", "last": "Jones", "cat": "M",
     "team": "T1", "teamStart": "10:00:00"},
    {"first": "no bib"},
    {"bib": 7, "first": "Ann", "last": "Lee", "category": "w", "refid": 5678}
  ]
}`

func TestLoadJSON(t *testing.T) {
	got, err := LoadJSON([]byte(sampleExport), "")
	require.NoError(t, err)
	want := []Entry{
		{
			Identity: model.NewIdentity("12", ""), First: "Jane", Last: "Smith",
			Org: "ABC", Category: "W VET", RefID: "A1234",
		},
		{
			Identity: model.NewIdentity("21", "t"), First: "Tom", Last: "Jones",
			Category: "M", Team: "T1", TeamStart: tod.Ptr(tod.FromSeconds(36000)),
		},
		{
			Identity: model.NewIdentity("7", ""), First: "Ann", Last: "Lee",
			Category: "w", RefID: "5678",
		},
	}
	if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b tod.Tod) bool {
		return a.Equal(b)
	})); diff != "" {
		t.Errorf("LoadJSON() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadJSONPath(t *testing.T) {
	got, err := LoadJSON([]byte(sampleExport), "$.riders[?(@.team == 'T1')]")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Tom", got[0].First)

	_, err = LoadJSON([]byte("{"), "")
	assert.Error(t, err)
	_, err = LoadJSON([]byte(sampleExport), "$.riders[")
	assert.Error(t, err)
}

func TestMemory(t *testing.T) {
	entries, err := LoadJSON([]byte(sampleExport), "")
	require.NoError(t, err)
	m := NewMemory(entries...)
	ctx := context.Background()

	e, err := m.ByRefID(ctx, " a1234 ")
	require.NoError(t, err)
	assert.Equal(t, "Jane SMITH (ABC)", e.Name())
	assert.Equal(t, "J. SMITH", e.ShortName(12))

	_, err = m.ByIdentity(ctx, model.NewIdentity("99", ""))
	assert.ErrorIs(t, err, ErrNotFound)

	team, err := m.Team(ctx, "T1")
	require.NoError(t, err)
	assert.Len(t, team, 1)

	assert.Equal(t, []string{"W", "M"}, m.Categories())

	// replacing an entry drops the old transponder
	m.Put(Entry{Identity: model.NewIdentity("12", ""), RefID: "B1"})
	_, err = m.ByRefID(ctx, "A1234")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 3, m.Len())
}

type countingDirectory struct {
	*Memory
	calls int
}

func (c *countingDirectory) ByRefID(ctx context.Context, refid string) (*Entry, error) {
	c.calls++
	return c.Memory.ByRefID(ctx, refid)
}

func TestCached(t *testing.T) {
	backend := &countingDirectory{Memory: NewMemory(Entry{
		Identity: model.NewIdentity("12", ""), RefID: "A1",
	})}
	c := NewCached(backend, time.Minute)
	ctx := context.Background()
	for range 3 {
		e, err := c.ByRefID(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, "12", e.Identity.Bib)
	}
	assert.Equal(t, 1, backend.calls)

	c.Invalidate(ctx, Entry{Identity: model.NewIdentity("12", ""), RefID: "A1"})
	_, err := c.ByRefID(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, 2, backend.calls)

	_, err = c.ByRefID(ctx, "zz")
	assert.True(t, errors.Is(err, ErrNotFound))

	st := c.Stats()
	assert.Equal(t, 2, st.Hits)
	assert.Equal(t, 3, st.Misses)
	assert.Equal(t, 1, st.Failed)
}
