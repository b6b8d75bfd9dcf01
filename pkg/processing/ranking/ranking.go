// Package ranking converts result indexes into places.
package ranking

import (
	"slices"
	"strconv"

	"github.com/mpapenbr/roadtt-engine/log"
	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/processing/results"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

// Input provides the data for a place transfer.
// Categories are processed in the given order.
type Input struct {
	Categories []string
	Riders     []*model.RiderRecord
	Index      func(cat string) *results.Index
	Limit      func(cat string) Limit
	Finished   bool
}

// Placed is a rider in a category result.
type Placed struct {
	ID      model.Identity
	Place   string
	Elapsed tod.Tod
}

type Output struct {
	// riders ordered placed first, then unplaced by status and bib
	Order []model.Identity
	// per category placed and time limit riders in result order
	Categories map[string][]Placed
	Cutoffs    map[string]tod.Tod
	// groups of numerically placed riders, a group holds tied riders
	Groups [][]model.Identity
	Placed int
	Status model.RaceStatus
}

type Ranker struct {
	log *log.Logger
}

type RankerOption func(r *Ranker)

func WithLogger(l *log.Logger) RankerOption {
	return func(r *Ranker) {
		r.log = l
	}
}

func NewRanker(opts ...RankerOption) *Ranker {
	ret := &Ranker{log: log.Default().Named("ranking")}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Transfer assigns places to all riders. Places are written to the records.
//
//nolint:funlen // keeping the algorithm together
func (r *Ranker) Transfer(in Input) Output {
	out := Output{
		Order:      make([]model.Identity, 0, len(in.Riders)),
		Categories: make(map[string][]Placed),
		Cutoffs:    make(map[string]tod.Tod),
		Groups:     make([][]model.Identity, 0),
	}
	lookup := make(map[model.Identity]*model.RiderRecord, len(in.Riders))
	for _, rec := range in.Riders {
		clearPlace(rec)
		lookup[rec.ID] = rec
	}

	seen := make(map[model.Identity]bool)
	for _, cat := range in.Categories {
		idx := in.Index(cat)
		if idx == nil {
			continue
		}
		var cutoff *tod.Tod
		if leader, ok := idx.Leader(); ok && in.Limit != nil {
			if c, ok := in.Limit(cat).Cutoff(leader.Time); ok {
				cutoff = tod.Ptr(c)
				out.Cutoffs[cat] = c
				r.log.Debug("Time limit",
					log.String("category", cat),
					log.String("cutoff", c.RawTime(0)),
					log.String("down", c.Sub(leader.Time).RawTime(0)))
			}
		}
		var last *tod.Tod
		place, pcount := 1, 0
		var group []model.Identity
		flush := func() {
			if len(group) > 0 {
				out.Groups = append(out.Groups, group)
				group = nil
			}
		}
		placed := make([]Placed, 0, idx.Len())
		for _, e := range idx.Entries() {
			if seen[e.ID] {
				r.log.Error("Result for rider already in placelist",
					log.String("rider", e.ID.String()),
					log.String("category", cat))
				continue
			}
			seen[e.ID] = true
			rec, ok := lookup[e.ID]
			if !ok {
				r.log.Error("Extra result for rider",
					log.String("rider", e.ID.String()),
					log.String("category", cat))
				continue
			}
			out.Order = append(out.Order, e.ID)
			if rec.Status == model.StatusOTL {
				// manual otl keeps its time but is not numbered
				placed = append(placed, Placed{ID: e.ID, Place: rec.Place, Elapsed: e.Time})
				continue
			}
			if last != nil && !last.Equal(e.Time) {
				place = pcount + 1
				flush()
			}
			last = tod.Ptr(e.Time)
			pcount++
			if cutoff != nil && e.Time.After(*cutoff) {
				rec.Status = model.StatusOTL
				rec.LimitOTL = true
				rec.Place = string(model.StatusOTL)
			} else {
				rec.Place = strconv.Itoa(place)
				group = append(group, e.ID)
			}
			placed = append(placed, Placed{ID: e.ID, Place: rec.Place, Elapsed: e.Time})
		}
		flush()
		out.Categories[cat] = placed
	}

	rest := make([]*model.RiderRecord, 0)
	for _, rec := range in.Riders {
		if !seen[rec.ID] {
			rest = append(rest, rec)
		}
	}
	slices.SortStableFunc(rest, func(a, b *model.RiderRecord) int {
		if a.Status.Key() != b.Status.Key() {
			return a.Status.Key() - b.Status.Key()
		}
		return model.CompareIdentity(a.ID, b.ID)
	})
	for _, rec := range rest {
		out.Order = append(out.Order, rec.ID)
	}
	for _, rec := range in.Riders {
		if rec.Place != "" {
			out.Placed++
		}
	}
	out.Status = Status(out.Placed, len(in.Riders), in.Finished)
	return out
}

// Status derives the race status from the number of placed riders.
func Status(placed, total int, finished bool) model.RaceStatus {
	switch {
	case placed == 0:
		return model.RaceStatusPrerace
	case placed < total:
		return model.RaceStatusVirtual
	case finished:
		return model.RaceStatusFinal
	default:
		return model.RaceStatusProvisional
	}
}

// clearPlace resets the place to the rider's status. Time limit
// assignments are dropped, they are recomputed.
func clearPlace(rec *model.RiderRecord) {
	if rec.LimitOTL {
		rec.Status = model.StatusNone
		rec.LimitOTL = false
	}
	rec.Place = string(rec.Status)
}
