package processing

import (
	"errors"
	"fmt"
	"slices"

	"github.com/mpapenbr/roadtt-engine/log"
	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/processing/contest"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

// Times holds the values for SetTimes. Start and Finish replace the
// current values, nil clears them. A nil Wall or Penalty keeps the
// current value.
type Times struct {
	Wall    *tod.Tod
	Start   *tod.Tod
	Finish  *tod.Tod
	Penalty *tod.Tod
}

// SetTimes updates the times of a rider and re-ranks if the ranked
// result of the rider changed.
func (e *Engine) SetTimes(id model.Identity, t Times) error {
	rec, ok := e.riders[id]
	if !ok {
		return e.unknown(id)
	}
	return e.setTimes(rec, t, true)
}

func (e *Engine) setTimes(rec *model.RiderRecord, t Times, doplaces bool) error {
	oldFinish := rec.Finish
	oldStart, _ := rec.EffectiveStart()
	oldPenalty := rec.Penalty
	oldTime, wasRanked := e.indexTime(rec)

	if t.Wall != nil {
		rec.WallStart = t.Wall
	}
	if t.Penalty != nil {
		if t.Penalty.IsNegative() {
			e.log.Warn("Negative penalty ignored",
				log.String("rider", rec.ID.String()),
				log.String("penalty", t.Penalty.RawTime(2)))
		} else {
			rec.Penalty = t.Penalty
		}
	}
	rec.Start = t.Start
	rec.Finish = t.Finish

	finishChanged := !tod.Equalp(oldFinish, rec.Finish)
	newStart, _ := rec.EffectiveStart()
	startChanged := !oldStart.Equal(newStart)

	var err error
	if finishChanged || startChanged || !tod.Equalp(oldPenalty, rec.Penalty) {
		err = e.reindex(rec)
	}
	if startChanged {
		for slot := range model.MaxSplits {
			//nolint:errcheck // logged
			e.reindexSplit(rec, slot)
		}
	}
	if !doplaces {
		return err
	}
	newTime, isRanked := e.indexTime(rec)
	switch {
	case e.mode == ModeTTT && (finishChanged || startChanged):
		e.PlaceTransfer()
	case wasRanked != isRanked, wasRanked && !oldTime.Equal(newTime):
		e.PlaceTransfer()
	}
	return err
}

// indexTime returns the ranked time of a rider.
func (e *Engine) indexTime(rec *model.RiderRecord) (tod.Tod, bool) {
	for _, idx := range e.results {
		if t, ok := idx.Time(rec.ID); ok {
			return t, true
		}
	}
	return tod.Zero, false
}

// reindex places the rider in the result index of its category.
// In team mode the result indexes are built on recompute.
func (e *Engine) reindex(rec *model.RiderRecord) error {
	for _, idx := range e.results {
		idx.Remove(rec.ID)
	}
	if e.mode == ModeTTT || rec.Finish == nil || rec.Status.Withdrawn() {
		return nil
	}
	el, ok := rec.Elapsed(e.timing.Precision)
	if !ok {
		e.log.Error("No start time for finished rider",
			log.String("rider", rec.ID.String()),
			log.String("finish", rec.Finish.RawTime(4)))
		return fmt.Errorf("%w: %s", ErrNoStartTime, rec.ID)
	}
	e.results[e.riderCat(rec)].Insert(rec.ID, el)
	return nil
}

func (e *Engine) reindexSplit(rec *model.RiderRecord, slot int) error {
	for _, idx := range e.inters[slot] {
		idx.Remove(rec.ID)
	}
	if rec.Splits[slot] == nil {
		return nil
	}
	el, ok := rec.SplitElapsed(slot)
	if !ok {
		e.log.Error("No start time for intermediate",
			log.String("rider", rec.ID.String()),
			log.Int("slot", slot))
		return fmt.Errorf("%w: %s", ErrNoStartTime, rec.ID)
	}
	e.inters[slot][e.riderCat(rec)].Insert(rec.ID, el)
	return nil
}

func (e *Engine) unindex(id model.Identity) {
	for _, idx := range e.results {
		idx.Remove(id)
	}
	for slot := range e.inters {
		for _, idx := range e.inters[slot] {
			idx.Remove(id)
		}
	}
}

// SetInter stores a split time and returns the 1-based rank of the rider
// at that split within its category. A nil time clears the split.
func (e *Engine) SetInter(id model.Identity, slot int, t *tod.Tod) (int, error) {
	rec, ok := e.riders[id]
	if !ok {
		return 0, e.unknown(id)
	}
	if slot < 0 || slot >= model.MaxSplits {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	rec.Splits[slot] = t
	if err := e.reindexSplit(rec, slot); err != nil {
		return 0, err
	}
	if t == nil {
		return 0, nil
	}
	rank, _ := e.SplitRank(id, slot)
	return rank, nil
}

// SplitRank returns the 1-based rank of a rider at a split.
func (e *Engine) SplitRank(id model.Identity, slot int) (int, bool) {
	rec, ok := e.riders[id]
	if !ok || slot < 0 || slot >= model.MaxSplits {
		return 0, false
	}
	rank, ok := e.inters[slot][e.riderCat(rec)].Rank(id)
	if !ok {
		return 0, false
	}
	return rank + 1, true
}

// SetPasses restores the lap counter and the last seen passing.
func (e *Engine) SetPasses(id model.Identity, passes int, lastSeen *tod.Tod) error {
	rec, ok := e.riders[id]
	if !ok {
		return e.unknown(id)
	}
	if passes < 0 {
		return fmt.Errorf("invalid pass count %d", passes)
	}
	rec.Passes = passes
	rec.LastSeen = lastSeen
	return nil
}

// SetStatus assigns an administrative status to riders. StatusNone
// clears it. Withdrawn riders keep their times but leave the results.
func (e *Engine) SetStatus(ids []model.Identity, status model.Status) error {
	var errs []error
	for _, id := range ids {
		rec, ok := e.riders[id]
		if !ok {
			errs = append(errs, e.unknown(id))
			continue
		}
		rec.Status = status
		rec.LimitOTL = false
		rec.InRace = !status.Withdrawn()
		if err := e.reindex(rec); err != nil {
			errs = append(errs, err)
		}
		e.log.Info("Rider status",
			log.String("rider", id.String()),
			log.String("status", string(status)))
	}
	e.PlaceTransfer()
	return errors.Join(errs...)
}

// SetStageBonus sets the commissaire bonus of a rider, nil clears it.
func (e *Engine) SetStageBonus(id model.Identity, t *tod.Tod) error {
	rec, ok := e.riders[id]
	if !ok {
		return e.unknown(id)
	}
	rec.StageBonus = t
	e.PlaceTransfer()
	return nil
}

// SetStagePenalty sets the commissaire penalty of a rider, nil clears it.
func (e *Engine) SetStagePenalty(id model.Identity, t *tod.Tod) error {
	rec, ok := e.riders[id]
	if !ok {
		return e.unknown(id)
	}
	rec.StagePenalty = t
	e.PlaceTransfer()
	return nil
}

// SetIntermediatePlaces stores the judged places of an intermediate.
func (e *Engine) SetIntermediatePlaces(interID, places string) error {
	i := slices.IndexFunc(e.intermeds, func(im model.Intermediate) bool {
		return im.ID == interID
	})
	if i < 0 {
		return fmt.Errorf("unknown intermediate %q", interID)
	}
	for _, issue := range e.CheckPlaces(places, false) {
		e.log.Warn("Intermediate places",
			log.String("intermediate", interID),
			log.String("rider", issue.Rider.String()),
			log.String("issue", issue.Problem))
	}
	e.intermeds[i].Places = contest.FormatPlaces(contest.ParsePlaces(places))
	e.PlaceTransfer()
	return nil
}

type PlaceIssue struct {
	Rider   model.Identity
	Problem string
}

// place list problems
const (
	ProblemDuplicate  = "duplicate"
	ProblemNonStarter = "non-starter"
	ProblemWithdrawn  = "withdrawn"
)

// CheckPlaces validates a place string. With dnf set, riders holding a
// status are reported too.
func (e *Engine) CheckPlaces(places string, dnf bool) []PlaceIssue {
	ret := make([]PlaceIssue, 0)
	seen := make(map[model.Identity]bool)
	for _, group := range contest.ParsePlaces(places) {
		for _, id := range group {
			if id.Bib == contest.Placeholder {
				continue
			}
			if seen[id] {
				ret = append(ret, PlaceIssue{Rider: id, Problem: ProblemDuplicate})
				continue
			}
			seen[id] = true
			rec, ok := e.riders[id]
			switch {
			case !ok, rec.Status == model.StatusDNS:
				ret = append(ret, PlaceIssue{Rider: id, Problem: ProblemNonStarter})
			case dnf && rec.Status != model.StatusNone:
				ret = append(ret, PlaceIssue{Rider: id, Problem: ProblemWithdrawn})
			}
		}
	}
	return ret
}
