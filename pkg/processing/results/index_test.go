package results

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

func id(bib string) model.Identity { return model.NewIdentity(bib, "") }

func ids(entries []Entry) []string {
	ret := make([]string, 0, len(entries))
	for _, e := range entries {
		ret = append(ret, e.ID.String())
	}
	return ret
}

func TestIndexOrderAndRank(t *testing.T) {
	x := NewIndex("A")
	x.Insert(id("3"), tod.FromSeconds(62))
	x.Insert(id("1"), tod.FromSeconds(60))
	x.Insert(id("2"), tod.FromSeconds(62))
	x.Insert(id("4"), tod.FromSeconds(70))

	if diff := cmp.Diff([]string{"1", "3", "2", "4"}, ids(x.Entries())); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	tests := []struct {
		bib  string
		want int
	}{
		{"1", 0}, {"3", 1}, {"2", 1}, {"4", 3},
	}
	for _, tt := range tests {
		t.Run(tt.bib, func(t *testing.T) {
			got, ok := x.Rank(id(tt.bib))
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
	_, ok := x.Rank(id("99"))
	assert.False(t, ok)
}

func TestIndexReplaceAndRemove(t *testing.T) {
	x := NewIndex("")
	x.Insert(id("1"), tod.FromSeconds(60))
	x.Insert(id("2"), tod.FromSeconds(50))
	x.Insert(id("1"), tod.FromSeconds(40))
	assert.Equal(t, 2, x.Len())
	assert.Equal(t, []string{"1", "2"}, ids(x.Entries()))

	leader, ok := x.Leader()
	assert.True(t, ok)
	assert.Equal(t, id("1"), leader.ID)

	assert.True(t, x.Remove(id("1")))
	assert.False(t, x.Remove(id("1")))
	assert.Equal(t, []string{"2"}, ids(x.Entries()))
	tm, ok := x.Time(id("2"))
	assert.True(t, ok)
	assert.True(t, tm.Equal(tod.FromSeconds(50)))

	x.Clear()
	assert.Equal(t, 0, x.Len())
	assert.False(t, x.Contains(id("2")))
}

func TestIndexRemoveAmongTies(t *testing.T) {
	x := NewIndex("")
	for _, b := range []string{"1", "2", "3"} {
		x.Insert(id(b), tod.FromSeconds(10))
	}
	x.Remove(id("2"))
	assert.Equal(t, []string{"1", "3"}, ids(x.Entries()))
}
