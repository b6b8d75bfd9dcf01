//nolint:funlen // ok for tests
package team

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

func member(team, bib string, elapsed int64) Member {
	m := Member{
		ID: model.NewIdentity(bib, ""), Team: team, Category: "MEN",
		Start: tod.Ptr(tod.Zero), InRace: true,
	}
	if elapsed > 0 {
		m.Elapsed = tod.Ptr(tod.FromSeconds(elapsed))
	}
	return m
}

func defaultSettings() Settings {
	return Settings{NthWheel: 3, Gap: tod.MustParse("1.12"), OwnTime: true, Precision: 1}
}

func TestAggregateNthWheel(t *testing.T) {
	members := []Member{
		member("A", "4", 70),
		member("A", "2", 52),
		member("A", "1", 50),
		member("A", "3", 55),
	}
	got := Aggregate(members, defaultSettings())
	require.Len(t, got, 1)
	team := got[0]
	require.NotNil(t, team.Time)
	assert.True(t, team.Time.Equal(tod.FromSeconds(55)))
	assert.Equal(t, 4, team.Finishers)
	for _, bib := range []string{"1", "2", "3"} {
		assert.True(t, team.RiderTimes[model.NewIdentity(bib, "")].Equal(tod.FromSeconds(55)), bib)
	}
	assert.True(t, team.RiderTimes[model.NewIdentity("4", "")].Equal(tod.FromSeconds(70)))
	assert.Equal(t, []model.Identity{
		model.NewIdentity("1", ""), model.NewIdentity("2", ""),
		model.NewIdentity("3", ""), model.NewIdentity("4", ""),
	}, team.Roster)
}

func TestAggregateGap(t *testing.T) {
	tests := []struct {
		name     string
		elapsed  []int64
		owntime  bool
		wantLast string
	}{
		{name: "within gap keeps team time", elapsed: []int64{50, 52, 55, 56}, owntime: true, wantLast: "55"},
		{name: "own time disabled", elapsed: []int64{50, 52, 55, 70}, owntime: false, wantLast: "55"},
		{name: "over gap", elapsed: []int64{50, 52, 55, 57}, owntime: true, wantLast: "57"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			members := make([]Member, 0)
			for i, e := range tt.elapsed {
				members = append(members, member("A", string(rune('1'+i)), e))
			}
			s := defaultSettings()
			s.OwnTime = tt.owntime
			got := Aggregate(members, s)
			assert.True(t, got[0].RiderTimes[model.NewIdentity("4", "")].Equal(tod.MustParse(tt.wantLast)))
		})
	}
}

func TestAggregateChainedGap(t *testing.T) {
	// rider 5 is close to rider 4 who was dropped, so rider 5 keeps rider 4's time
	members := []Member{
		member("A", "1", 50), member("A", "2", 51), member("A", "3", 52),
		member("A", "4", 60), member("A", "5", 61),
	}
	got := Aggregate(members, defaultSettings())
	assert.True(t, got[0].RiderTimes[model.NewIdentity("5", "")].Equal(tod.FromSeconds(60)))
}

func TestAggregateIncomplete(t *testing.T) {
	members := []Member{member("A", "1", 50), member("A", "2", 52), member("A", "3", 0)}
	dnf := member("A", "4", 40)
	dnf.InRace = false
	members = append(members, dnf)
	got := Aggregate(members, defaultSettings())
	assert.Nil(t, got[0].Time)
	assert.Equal(t, 2, got[0].Finishers)
	assert.Empty(t, got[0].RiderTimes)
}

func TestAggregateNthOverride(t *testing.T) {
	members := []Member{member("A", "1", 50), member("A", "2", 52), member("A", "3", 55)}
	s := defaultSettings()
	s.NthFor = func(cat string) int {
		if cat == "MEN" {
			return 2
		}
		return 0
	}
	got := Aggregate(members, s)
	assert.Equal(t, 2, got[0].Nth)
	assert.True(t, got[0].Time.Equal(tod.FromSeconds(52)))
}

func TestRank(t *testing.T) {
	members := []Member{
		member("A", "1", 60), member("A", "2", 61), member("A", "3", 62),
		member("B", "11", 50), member("B", "12", 51), member("B", "13", 52),
		member("C", "21", 50), member("C", "22", 51), member("C", "23", 52),
		member("D", "31", 50),
	}
	ranked := Rank(Aggregate(members, defaultSettings()))["MEN"]
	require.Len(t, ranked, 4)
	assert.Equal(t, "B", ranked[0].Label)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, "C", ranked[1].Label)
	assert.Equal(t, 1, ranked[1].Rank)
	assert.Equal(t, "A", ranked[2].Label)
	assert.Equal(t, 3, ranked[2].Rank)
	assert.Equal(t, "D", ranked[3].Label)
	assert.Equal(t, 0, ranked[3].Rank)
}
