package processing

import (
	"context"
	"iter"
	"slices"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/roadtt-engine/log"
	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/processing/contest"
	"github.com/mpapenbr/roadtt-engine/pkg/processing/ranking"
	"github.com/mpapenbr/roadtt-engine/pkg/processing/results"
	"github.com/mpapenbr/roadtt-engine/pkg/processing/team"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

// PlaceTransfer recomputes places, team times and contests and publishes
// a snapshot. It reports false if a recompute is already in progress.
func (e *Engine) PlaceTransfer() bool {
	if e.batching {
		return true
	}
	if !e.recompute.TryLock() {
		e.log.Warn("Place transfer already in progress")
		e.metrics.busy.Add(context.Background(), 1)
		return false
	}
	defer e.recompute.Unlock()

	ctx, span := e.tracer.Start(context.Background(), "placexfer",
		trace.WithAttributes(attribute.Int("riders", len(e.riders))))
	defer span.End()

	if e.mode == ModeTTT {
		e.recalcTeams()
	}
	e.placed = e.ranker.Transfer(ranking.Input{
		Categories: e.cats,
		Riders:     e.records(),
		Index:      func(cat string) *results.Index { return e.results[cat] },
		Limit:      e.limitFor,
		Finished:   e.ctrl.Finished(),
	})
	e.assignContests()
	e.publish()
	e.metrics.recomputes.Add(ctx, 1)
	span.SetAttributes(attribute.String("status", string(e.placed.Status)))
	return true
}

// Batch runs fn with place transfer deferred and recomputes once
// afterwards, also when fn fails.
func (e *Engine) Batch(fn func() error) error {
	e.batching = true
	err := fn()
	e.batching = false
	e.PlaceTransfer()
	return err
}

func (e *Engine) limitFor(cat string) ranking.Limit {
	spec := e.timing.TimeLimit
	if e.catalog != nil {
		if c, ok := e.catalog.Category(cat); ok && c.TimeLimit != "" {
			spec = c.TimeLimit
		}
	}
	l, err := ranking.ParseLimit(spec)
	if err != nil {
		e.log.Warn("Invalid time limit",
			log.String("category", cat),
			log.String("limit", spec),
			log.ErrorField(err))
		return ranking.Limit{}
	}
	return l
}

func (e *Engine) nthFor(cat string) int {
	if e.catalog != nil {
		if c, ok := e.catalog.Category(cat); ok {
			return c.NthWheel
		}
	}
	return 0
}

// recalcTeams aggregates team times and rebuilds the result indexes
// from them. Riders without a team are ranked on their own time.
func (e *Engine) recalcTeams() {
	recs := e.records()
	members := lo.Map(recs, func(rec *model.RiderRecord, _ int) team.Member {
		m := team.Member{
			ID:       rec.ID,
			Team:     rec.Team,
			Category: e.riderCat(rec),
			InRace:   rec.InRace && !rec.Status.Withdrawn(),
		}
		if st, ok := rec.EffectiveStart(); ok {
			m.Start = tod.Ptr(st)
			if rec.Finish != nil {
				m.Elapsed = tod.Ptr(rec.Finish.Sub(st))
			}
		}
		return m
	})
	e.teams = team.Aggregate(members, team.Settings{
		NthWheel:  e.timing.NthWheel,
		NthFor:    e.nthFor,
		Gap:       e.timing.Gap,
		OwnTime:   e.timing.OwnTime,
		Precision: e.timing.Precision,
	})
	for _, idx := range e.results {
		idx.Clear()
	}
	for _, res := range e.teams {
		for _, id := range res.Roster {
			t, ok := res.RiderTimes[id]
			if !ok {
				continue
			}
			rec := e.riders[id]
			if rec.Penalty != nil {
				t = t.Add(*rec.Penalty)
			}
			e.results[e.riderCat(rec)].Insert(id, t)
		}
	}
	for _, rec := range recs {
		if rec.Team != "" || rec.Finish == nil || rec.Status.Withdrawn() {
			continue
		}
		if el, ok := rec.Elapsed(e.timing.Precision); ok {
			e.results[e.riderCat(rec)].Insert(rec.ID, el)
		} else {
			e.log.Error("No start time for finished rider", log.String("rider", rec.ID.String()))
		}
	}
}

func (e *Engine) assignContests() {
	e.contests.Reset(e.tallies)
	known := func(id model.Identity) bool {
		_, ok := e.riders[id]
		return ok
	}
	for i := range e.contestDefs {
		c := &e.contestDefs[i]
		groups, ok := e.contestSource(c.Source)
		if !ok {
			e.log.Error("Unknown contest source",
				log.String("contest", c.ID),
				log.String("source", c.Source))
			continue
		}
		e.contests.Assign(c, groups, known)
	}
}

func (e *Engine) contestSource(source string) ([][]model.Identity, bool) {
	single := func(id model.Identity, _ int) []model.Identity { return []model.Identity{id} }
	switch source {
	case model.SourceFinish:
		return e.placed.Groups, true
	case model.SourceRegistration:
		return lo.Map(e.order, single), true
	case model.SourceStart:
		starters := lo.Filter(e.order, func(id model.Identity, _ int) bool {
			return e.riders[id].Status != model.StatusDNS
		})
		return lo.Map(starters, single), true
	}
	for _, im := range e.intermeds {
		if im.ID == source {
			return contest.ParsePlaces(im.Places), true
		}
	}
	return nil, false
}

// RaceStatus returns the status derived by the last recompute.
func (e *Engine) RaceStatus() model.RaceStatus {
	return e.placed.Status
}

// PlaceList returns the numbered finishers as place string.
func (e *Engine) PlaceList() string {
	return contest.FormatPlaces(e.placed.Groups)
}

// Starters returns the number of riders not marked dns.
func (e *Engine) Starters() int {
	return lo.CountBy(e.order, func(id model.Identity) bool {
		return e.riders[id].Status != model.StatusDNS
	})
}

// Results yields the result lines of a category in place order. Every
// iteration reads the latest computed ranking.
func (e *Engine) Results(cat string) iter.Seq[model.ResultLine] {
	return func(yield func(model.ResultLine) bool) {
		idx := e.results[cat]
		for _, rec := range e.orderedRecords() {
			if e.riderCat(rec) != cat {
				continue
			}
			line := model.ResultLine{
				Rank:     rec.Place,
				Rider:    rec.ID,
				Name:     rec.Name,
				Category: rec.PrimaryCategory(),
				Bonus:    e.bonus(rec),
				Penalty:  sum(rec.Penalty, rec.StagePenalty),
			}
			if idx != nil {
				if t, ok := idx.Time(rec.ID); ok {
					line.Elapsed = tod.Ptr(t)
				}
			}
			if !yield(line) {
				return
			}
		}
	}
}

// bonus returns contest plus stage bonus, nil if there is none.
func (e *Engine) bonus(rec *model.RiderRecord) *tod.Tod {
	var cb *tod.Tod
	if b, ok := e.contests.Bonus(rec.ID); ok {
		cb = tod.Ptr(b)
	}
	return sum(cb, rec.StageBonus)
}

func sum(a, b *tod.Tod) *tod.Tod {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return tod.Ptr(a.Add(*b))
	}
}

// StartList returns the riders of a category ordered by wall start, then
// bib. An empty category returns all riders.
func (e *Engine) StartList(cat string) []model.StartLine {
	recs := lo.Filter(e.records(), func(rec *model.RiderRecord, _ int) bool {
		return cat == "" || e.riderCat(rec) == cat
	})
	slices.SortStableFunc(recs, func(a, b *model.RiderRecord) int {
		aw, bw := tod.Max, tod.Max
		if a.WallStart != nil {
			aw = *a.WallStart
		}
		if b.WallStart != nil {
			bw = *b.WallStart
		}
		if c := aw.Cmp(bw); c != 0 {
			return c
		}
		return model.CompareIdentity(a.ID, b.ID)
	})
	return lo.Map(recs, func(rec *model.RiderRecord, _ int) model.StartLine {
		return model.StartLine{
			Rider:     rec.ID,
			Name:      rec.Name,
			Category:  rec.PrimaryCategory(),
			Team:      rec.Team,
			RefID:     rec.RefID,
			WallStart: rec.WallStart,
		}
	})
}

// TallyStandings returns the points standings of a tally. Withdrawn
// riders are dropped unless the tally keeps them.
func (e *Engine) TallyStandings(tally string) []model.TallyLine {
	keep := lo.ContainsBy(e.tallies, func(t model.Tally) bool {
		return t.ID == tally && t.KeepDNF
	})
	exclude := func(id model.Identity) bool {
		rec, ok := e.riders[id]
		return !ok || (!keep && rec.Status.Withdrawn())
	}
	return lo.Map(e.contests.Standings(tally, exclude),
		func(s contest.Standing, _ int) model.TallyLine {
			return model.TallyLine{
				Rank:      s.Rank,
				Rider:     s.ID,
				Name:      e.riders[s.ID].Name,
				Points:    s.Points,
				Countback: s.Countback.String(),
			}
		})
}

// Teams returns the ranked teams of a category.
func (e *Engine) Teams(cat string) []model.TeamLine {
	ranked := team.Rank(slices.Clone(e.teams))
	return lo.Map(ranked[cat], func(r team.Result, _ int) model.TeamLine {
		return model.TeamLine{
			Rank:     r.Rank,
			Team:     r.Label,
			Category: r.Category,
			Start:    r.Start,
			Time:     r.Time,
			Riders:   slices.Clone(r.Roster),
		}
	})
}

// TeamResults returns the raw team aggregates of the last recompute.
func (e *Engine) TeamResults() []team.Result {
	return slices.Clone(e.teams)
}

// Placed returns the per category ranking of the last recompute.
func (e *Engine) Placed(cat string) []ranking.Placed {
	return slices.Clone(e.placed.Categories[cat])
}

// Cutoff returns the time limit cutoff of a category.
func (e *Engine) Cutoff(cat string) (tod.Tod, bool) {
	c, ok := e.placed.Cutoffs[cat]
	return c, ok
}

// ContestBonus returns the accumulated contest bonus of a rider.
func (e *Engine) ContestBonus(id model.Identity) (tod.Tod, bool) {
	return e.contests.Bonus(id)
}

// Snapshot returns the snapshot of the last recompute.
func (e *Engine) Snapshot() *model.Snapshot {
	return e.snapshot
}

func (e *Engine) buildSnapshot() *model.Snapshot {
	e.seq++
	ret := &model.Snapshot{
		EventID: e.id,
		Seq:     e.seq,
		Created: time.Now(),
		Status:  e.placed.Status,
		Results: make(map[string][]model.ResultLine, len(e.cats)),
	}
	for _, cat := range e.cats {
		ret.Results[cat] = slices.Collect(e.Results(cat))
	}
	if e.mode == ModeTTT {
		for _, cat := range e.cats {
			ret.Teams = append(ret.Teams, e.Teams(cat)...)
		}
	}
	if len(e.tallies) > 0 {
		ret.Points = make(map[string][]model.TallyLine, len(e.tallies))
		for _, t := range e.tallies {
			ret.Points[t.ID] = e.TallyStandings(t.ID)
		}
	}
	return ret
}

func (e *Engine) publish() {
	e.snapshot = e.buildSnapshot()
	if e.observer != nil {
		select {
		case e.observer <- e.snapshot:
		default:
			e.log.Debug("Observer busy, snapshot dropped", log.Uint64("seq", e.snapshot.Seq))
		}
	}
	if e.exporter != nil {
		e.pending = true
		e.flushExport()
	}
}

// flushExport hands the latest snapshot to the exporter unless an export
// is still running. It never waits.
func (e *Engine) flushExport() {
	if !e.pending || e.exporter == nil || e.exporter.Busy() {
		return
	}
	if e.exporter.Submit(e.snapshot) {
		e.pending = false
	}
}
