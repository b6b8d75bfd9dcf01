// Package team derives team times for team time trials.
package team

import (
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

const DefaultNthWheel = 3

// Member is a rider of a team.
type Member struct {
	ID       model.Identity
	Team     string
	Category string
	Start    *tod.Tod
	// nil if not finished
	Elapsed *tod.Tod
	InRace  bool
}

type Settings struct {
	NthWheel int
	// per category override of NthWheel, return 0 for the default
	NthFor    func(cat string) int
	Gap       tod.Tod
	OwnTime   bool
	Precision int
}

type Result struct {
	Rank     int
	Label    string
	Category string
	Start    *tod.Tod
	Nth      int
	// riders ordered by arrival, unfinished riders last
	Roster    []model.Identity
	Finishers int
	// nil until Nth riders finished
	Time       *tod.Tod
	RiderTimes map[model.Identity]tod.Tod
}

func (s *Settings) nth(cat string) int {
	if s.NthFor != nil {
		if n := s.NthFor(cat); n > 0 {
			return n
		}
	}
	if s.NthWheel > 0 {
		return s.NthWheel
	}
	return DefaultNthWheel
}

// Aggregate groups members by team and computes the team times.
// Results are ordered by team label.
func Aggregate(members []Member, s Settings) []Result {
	byTeam := lo.GroupBy(lo.Filter(members, func(m Member, _ int) bool {
		return m.Team != ""
	}), func(m Member) string { return m.Team })

	labels := lo.Keys(byTeam)
	slices.Sort(labels)
	ret := make([]Result, 0, len(labels))
	for _, label := range labels {
		ret = append(ret, aggregateTeam(label, byTeam[label], &s))
	}
	return ret
}

func aggregateTeam(label string, members []Member, s *Settings) Result {
	slices.SortStableFunc(members, func(a, b Member) int {
		return compareArrival(a, b)
	})
	first := members[0]
	res := Result{
		Label:      label,
		Category:   first.Category,
		Start:      first.Start,
		Nth:        s.nth(first.Category),
		Roster:     lo.Map(members, func(m Member, _ int) model.Identity { return m.ID }),
		RiderTimes: make(map[model.Identity]tod.Tod),
	}
	finishers := lo.Filter(members, func(m Member, _ int) bool {
		return m.InRace && m.Elapsed != nil
	})
	res.Finishers = len(finishers)
	if len(finishers) < res.Nth {
		return res
	}
	ct := *finishers[res.Nth-1].Elapsed
	teamTime := ct.Truncate(s.Precision)
	res.Time = tod.Ptr(teamTime)
	for _, m := range finishers[:res.Nth] {
		res.RiderTimes[m.ID] = teamTime
	}
	cur := teamTime
	for _, m := range finishers[res.Nth:] {
		et := *m.Elapsed
		// a rider dropped from the group gets their own time
		if s.OwnTime && et.After(ct) && et.Sub(ct).After(s.Gap) {
			cur = et.Truncate(s.Precision)
		}
		res.RiderTimes[m.ID] = cur
		ct = et
	}
	return res
}

func compareArrival(a, b Member) int {
	ae, be := tod.Max, tod.Max
	if a.InRace && a.Elapsed != nil {
		ae = *a.Elapsed
	}
	if b.InRace && b.Elapsed != nil {
		be = *b.Elapsed
	}
	if c := ae.Cmp(be); c != 0 {
		return c
	}
	return model.CompareIdentity(a.ID, b.ID)
}

// Rank orders the teams of each category by time and assigns ranks.
// Teams without a time are listed last without a rank.
func Rank(teams []Result) map[string][]Result {
	ret := lo.GroupBy(teams, func(r Result) string { return r.Category })
	for cat, list := range ret {
		slices.SortStableFunc(list, func(a, b Result) int {
			at, bt := tod.Max, tod.Max
			if a.Time != nil {
				at = *a.Time
			}
			if b.Time != nil {
				bt = *b.Time
			}
			if c := at.Cmp(bt); c != 0 {
				return c
			}
			return strings.Compare(a.Label, b.Label)
		})
		for i := range list {
			switch {
			case list[i].Time == nil:
				list[i].Rank = 0
			case i > 0 && list[i-1].Time != nil && list[i-1].Time.Equal(*list[i].Time):
				list[i].Rank = list[i-1].Rank
			default:
				list[i].Rank = i + 1
			}
		}
		ret[cat] = list
	}
	return ret
}
