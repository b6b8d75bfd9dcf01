//nolint:funlen // ok for tests
package contest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

func rid(bib string) model.Identity { return model.ParseIdentity(bib) }

func knownAll(except ...string) func(model.Identity) bool {
	return func(id model.Identity) bool {
		for _, e := range except {
			if id.String() == e {
				return false
			}
		}
		return true
	}
}

func TestParseFormatPlaces(t *testing.T) {
	groups := ParsePlaces(" 1 2-3.b  4 ")
	require.Len(t, groups, 3)
	assert.Equal(t, []model.Identity{rid("2"), rid("3.b")}, groups[1])
	assert.Equal(t, "1 2-3.b 4", FormatPlaces(groups))
	assert.Empty(t, ParsePlaces(""))
}

func TestCountback(t *testing.T) {
	var a Countback
	a.Inc(2)
	a.Inc(0)
	assert.Equal(t, Countback{1, 0, 1}, a)
	assert.Equal(t, "1/-/1", a.String())

	tests := []struct {
		name string
		a, b Countback
		want int
	}{
		{"more wins", Countback{2}, Countback{1, 5}, 1},
		{"second places decide", Countback{1, 1}, Countback{1, 0, 3}, 1},
		{"missing counts as zero", Countback{1}, Countback{1, 0}, 0},
		{"less", nil, Countback{0, 0, 1}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
		})
	}
}

func TestAssignVector(t *testing.T) {
	e := NewEngine()
	e.Reset([]model.Tally{{ID: "sprint"}})
	c := &model.Contest{
		ID: "s1", Source: "s1", Tally: "sprint",
		Points:  []int{5, 3, 1},
		Bonuses: []tod.Tod{tod.FromSeconds(3), tod.FromSeconds(2), tod.FromSeconds(1)},
	}
	e.Assign(c, ParsePlaces("1 2-3 4"), knownAll())

	tests := []struct {
		bib        string
		wantPoints int
		wantBonus  string
		wantCB     Countback
	}{
		{"1", 5, "3", Countback{0, 1}},
		{"2", 3, "2", Countback{0, 0, 1}},
		{"3", 3, "2", Countback{0, 0, 1}},
		{"4", 0, "", Countback{0, 0, 0, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.bib, func(t *testing.T) {
			assert.Equal(t, tt.wantPoints, e.Points("sprint", rid(tt.bib)))
			b, ok := e.Bonus(rid(tt.bib))
			assert.Equal(t, tt.wantBonus != "", ok)
			if ok {
				assert.True(t, b.Equal(tod.MustParse(tt.wantBonus)))
			}
			assert.Equal(t, tt.wantCB, e.Countback("sprint", rid(tt.bib)))
		})
	}
}

func TestAssignAllSource(t *testing.T) {
	e := NewEngine()
	c := &model.Contest{
		ID: "reg", Source: model.SourceRegistration, Tally: "combativity",
		AllSource: true, Points: []int{2, 9}, Bonuses: []tod.Tod{tod.FromSeconds(1)},
	}
	e.Assign(c, ParsePlaces("1 2 3"), knownAll())
	for _, bib := range []string{"1", "2", "3"} {
		assert.Equal(t, 2, e.Points("combativity", rid(bib)))
		b, ok := e.Bonus(rid(bib))
		assert.True(t, ok)
		assert.True(t, b.Equal(tod.FromSeconds(1)))
		assert.Empty(t, e.Countback("combativity", rid(bib)))
	}
}

func TestAssignStageWinnerCountback(t *testing.T) {
	e := NewEngine()
	c := &model.Contest{ID: "finish", Source: model.SourceFinish, Tally: model.TallySprint, Points: []int{20, 15}}
	e.Assign(c, ParsePlaces("7 8"), knownAll())
	assert.Equal(t, Countback{1}, e.Countback(model.TallySprint, rid("7")))
	assert.Empty(t, e.Countback(model.TallySprint, rid("8")))
}

func TestAssignClimb(t *testing.T) {
	e := NewEngine()
	c := &model.Contest{ID: "kom", Source: "kom", Tally: model.TallyClimb, Points: []int{10, 6}, Category: 2}
	e.Assign(c, ParsePlaces("4 5"), knownAll())
	assert.Equal(t, Countback{0, 0, 1}, e.Countback(model.TallyClimb, rid("4")))
	assert.Empty(t, e.Countback(model.TallyClimb, rid("5")))
	assert.Equal(t, 6, e.Points(model.TallyClimb, rid("5")))
}

func TestAssignInvalidAndDuplicate(t *testing.T) {
	e := NewEngine()
	c := &model.Contest{ID: "s1", Source: "s1", Tally: "sprint", Points: []int{5, 3, 1}}
	// 9 is unknown, the rest of its group is still processed
	e.Assign(c, ParsePlaces("9-1 2 1 x 3"), knownAll("9"))
	assert.Equal(t, 5, e.Points("sprint", rid("1")))
	assert.Equal(t, 3, e.Points("sprint", rid("2")))
	// duplicate 1 is ignored, the placeholder takes third place
	assert.Equal(t, 0, e.Points("sprint", rid("3")))
	assert.Equal(t, 0, e.Points("sprint", rid("9")))
}

func TestStandings(t *testing.T) {
	e := NewEngine()
	c1 := &model.Contest{ID: "s1", Source: "s1", Tally: "sprint", Points: []int{5, 3, 1}}
	c2 := &model.Contest{ID: "s2", Source: "s2", Tally: "sprint", Points: []int{5, 3, 1}}
	e.Assign(c1, ParsePlaces("1 2 3"), knownAll())
	e.Assign(c2, ParsePlaces("2 3 1"), knownAll())
	// 1: 6 pts (1st, 3rd), 2: 8 pts, 3: 4 pts
	c3 := &model.Contest{ID: "s3", Source: "s3", Tally: "sprint", Points: []int{2}}
	e.Assign(c3, ParsePlaces("4"), knownAll())

	got := e.Standings("sprint", nil)
	require.Len(t, got, 4)
	assert.Equal(t, rid("2"), got[0].ID)
	assert.Equal(t, rid("1"), got[1].ID)
	assert.Equal(t, rid("3"), got[2].ID)
	assert.Equal(t, 3, got[2].Rank)

	excl := e.Standings("sprint", func(id model.Identity) bool { return id == rid("2") })
	assert.Len(t, excl, 3)
	assert.Equal(t, 1, excl[0].Rank)
}

func TestStandingsCountbackTie(t *testing.T) {
	e := NewEngine()
	c1 := &model.Contest{ID: "s1", Source: "s1", Tally: "sprint", Points: []int{5, 4, 1}}
	// 5: 1st + nothing, 6: 2nd + 3rd: both 5 points
	e.Assign(c1, ParsePlaces("5 6"), knownAll())
	c2 := &model.Contest{ID: "s2", Source: "s2", Tally: "sprint", Points: []int{0, 0, 1}}
	e.Assign(c2, ParsePlaces("7 8 6"), knownAll())
	c3 := &model.Contest{ID: "s3", Source: "s3", Tally: "sprint", Points: []int{5}}
	e.Assign(c3, ParsePlaces("9"), knownAll())

	got := e.Standings("sprint", nil)
	pos := map[string]Standing{}
	for _, s := range got {
		pos[s.ID.String()] = s
	}
	require.Equal(t, 5, pos["5"].Points)
	require.Equal(t, 5, pos["6"].Points)
	require.Equal(t, 5, pos["9"].Points)
	// 5 and 9 each have one win, 6 has none
	assert.Equal(t, 1, pos["5"].Rank)
	assert.Equal(t, 1, pos["9"].Rank)
	assert.Equal(t, 3, pos["6"].Rank)
}
