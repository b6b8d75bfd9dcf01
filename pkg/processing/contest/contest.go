// Package contest awards bonuses and points from place lists.
package contest

import (
	"slices"

	"github.com/mpapenbr/roadtt-engine/log"
	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

type Standing struct {
	Rank      int
	ID        model.Identity
	Points    int
	Countback Countback
}

// Engine accumulates contest results. It is rebuilt on every recompute.
type Engine struct {
	bonuses   map[model.Identity]tod.Tod
	points    map[string]map[model.Identity]int
	countback map[string]map[model.Identity]*Countback
	log       *log.Logger
}

type Option func(e *Engine)

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

func NewEngine(opts ...Option) *Engine {
	ret := &Engine{log: log.Default().Named("contest")}
	for _, opt := range opts {
		opt(ret)
	}
	ret.Reset(nil)
	return ret
}

// Reset drops all accumulated values and prepares the given tallies.
func (e *Engine) Reset(tallies []model.Tally) {
	e.bonuses = make(map[model.Identity]tod.Tod)
	e.points = make(map[string]map[model.Identity]int)
	e.countback = make(map[string]map[model.Identity]*Countback)
	for _, t := range tallies {
		e.ensureTally(t.ID)
	}
}

func (e *Engine) ensureTally(id string) {
	if _, ok := e.points[id]; !ok {
		e.points[id] = make(map[model.Identity]int)
		e.countback[id] = make(map[model.Identity]*Countback)
	}
}

// Assign walks the place groups of the contest source and awards
// bonuses, points and countback. known reports riders of the event.
//
//nolint:funlen,cyclop // keeping the algorithm together
func (e *Engine) Assign(c *model.Contest, groups [][]model.Identity, known func(model.Identity) bool) {
	countbackWinner := c.Source == model.SourceFinish &&
		(c.Tally == model.TallySprint || c.Tally == model.TallyCrit)
	if c.Tally != "" {
		e.ensureTally(c.Tally)
	}
	allPts := 0
	allBonus := tod.Zero
	if c.AllSource {
		if len(c.Points) > 0 {
			allPts = c.Points[0]
		}
		if len(c.Bonuses) > 0 {
			allBonus = c.Bonuses[0]
		}
	}

	seen := make(map[model.Identity]bool)
	idx := 0
	for _, group := range groups {
		curplace := idx + 1
		for _, id := range group {
			if id.Bib == Placeholder {
				idx++
				continue
			}
			if seen[id] {
				e.log.Warn("Duplicate rider in places",
					log.String("rider", id.String()),
					log.String("contest", c.ID))
				continue
			}
			seen[id] = true
			if !known(id) {
				e.log.Error("Invalid rider ignored in places",
					log.String("rider", id.String()),
					log.String("contest", c.ID))
				continue
			}
			idx++
			if c.AllSource {
				if !allBonus.IsZero() {
					e.addBonus(id, allBonus)
				}
				if c.Tally != "" && allPts != 0 {
					e.points[c.Tally][id] += allPts
					e.cb(c.Tally, id)
				}
				continue
			}
			if len(c.Bonuses) >= curplace {
				e.addBonus(id, c.Bonuses[curplace-1])
			}
			if c.Tally == "" {
				continue
			}
			if len(c.Points) >= curplace {
				e.points[c.Tally][id] += c.Points[curplace-1]
			}
			cb := e.cb(c.Tally, id)
			switch {
			case countbackWinner:
				if curplace == 1 {
					cb.Inc(0)
				}
			case c.Tally == model.TallyClimb:
				if curplace == 1 {
					cb.Inc(c.Category)
				}
			default:
				cb.Inc(curplace)
			}
		}
	}
}

func (e *Engine) cb(tally string, id model.Identity) *Countback {
	cb, ok := e.countback[tally][id]
	if !ok {
		cb = &Countback{}
		e.countback[tally][id] = cb
	}
	return cb
}

func (e *Engine) addBonus(id model.Identity, b tod.Tod) {
	e.bonuses[id] = e.bonuses[id].Add(b)
}

// Bonus returns the accumulated contest bonus of a rider.
func (e *Engine) Bonus(id model.Identity) (tod.Tod, bool) {
	b, ok := e.bonuses[id]
	return b, ok
}

func (e *Engine) Points(tally string, id model.Identity) int {
	return e.points[tally][id]
}

func (e *Engine) Countback(tally string, id model.Identity) Countback {
	if cb, ok := e.countback[tally][id]; ok {
		return slices.Clone(*cb)
	}
	return nil
}

// Standings returns the riders holding points in a tally ordered by
// points, then countback, then identity. exclude removes riders from the
// standings, e.g. non-finishers.
func (e *Engine) Standings(tally string, exclude func(model.Identity) bool) []Standing {
	ret := make([]Standing, 0, len(e.points[tally]))
	for id, pts := range e.points[tally] {
		if exclude != nil && exclude(id) {
			continue
		}
		ret = append(ret, Standing{ID: id, Points: pts, Countback: e.Countback(tally, id)})
	}
	slices.SortFunc(ret, func(a, b Standing) int {
		if a.Points != b.Points {
			return b.Points - a.Points
		}
		if c := Compare(b.Countback, a.Countback); c != 0 {
			return c
		}
		return model.CompareIdentity(a.ID, b.ID)
	})
	for i := range ret {
		if i > 0 && ret[i].Points == ret[i-1].Points &&
			Compare(ret[i].Countback, ret[i-1].Countback) == 0 {
			ret[i].Rank = ret[i-1].Rank
		} else {
			ret[i].Rank = i + 1
		}
	}
	return ret
}
