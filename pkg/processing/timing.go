package processing

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/roadtt-engine/log"
	"github.com/mpapenbr/roadtt-engine/pkg/directory"
	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/processing/control"
	"github.com/mpapenbr/roadtt-engine/pkg/processing/passing"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

var (
	// a scheduled starter is shown on the start lane
	preloadAhead = tod.FromSeconds(30)
	// the start lane is armed for the scheduled starter
	armAhead = tod.FromSeconds(5)
	// the armed start lane is released after the wall start
	unloadAfter = tod.FromSeconds(5)
)

// TimingEvent processes a single impulse. It never fails, the outcome
// reports what the impulse was accepted as or why it was rejected.
func (e *Engine) TimingEvent(ctx context.Context, imp model.Impulse) passing.Outcome {
	ret := e.timingEvent(ctx, imp)
	e.metrics.impulses.Add(ctx, 1, metric.WithAttributes(
		attribute.String("origin", imp.Origin.String()),
		attribute.String("role", ret.Role.String())))
	return ret
}

func (e *Engine) timingEvent(ctx context.Context, imp model.Impulse) passing.Outcome {
	e.log.Debug("Impulse",
		log.String("time", imp.Time.RawTime(4)),
		log.String("channel", imp.Channel),
		log.String("refid", imp.RefID),
		log.String("source", imp.Source),
		log.String("origin", imp.Origin.String()))

	if imp.Origin == model.OriginKeyboard && !imp.IsTrigger() {
		return e.keyboard(imp)
	}
	if imp.IsTrigger() {
		return e.trigger(imp)
	}
	id, ok := e.resolve(ctx, imp.RefID)
	if !ok {
		e.log.Info("Passing rejected",
			log.String("reason", passing.ReasonUnknownRider),
			log.String("refid", imp.RefID),
			log.String("channel", imp.Channel),
			log.String("time", imp.Time.RawTime(2)))
		return passing.Outcome{Role: passing.RoleRejected, Reason: passing.ReasonUnknownRider, Slot: -1}
	}
	rec, ok := e.riders[id]
	if !ok {
		out := e.matcher.Passing(imp, nil, 0)
		out.Rider = id
		return out
	}
	out := e.matcher.Passing(imp, rec, e.lapTarget(rec))
	return e.apply(imp, rec, out)
}

// trigger handles line impulses without transponder.
func (e *Engine) trigger(imp model.Impulse) passing.Outcome {
	ch := imp.ChannelID()
	if imp.Origin == model.OriginTransponder {
		switch {
		case e.matcher.IsFinishLoop(ch):
			return e.finishTrigger(imp.Time)
		case e.matcher.IsStartLoop(ch):
			return e.startTrigger(imp.Time)
		}
	} else {
		switch ch {
		case model.ChannelStart:
			return e.startTrigger(imp.Time)
		case model.ChannelFinish:
			return e.finishTrigger(imp.Time)
		}
	}
	e.log.Info("Spurious trigger",
		log.String("channel", imp.Channel),
		log.String("time", imp.Time.RawTime(4)),
		log.String("source", imp.Source))
	return passing.Outcome{Role: passing.RoleSpurious, Reason: passing.ReasonUnconfigured, Slot: -1}
}

func (e *Engine) startTrigger(t tod.Tod) passing.Outcome {
	e.matcher.Starts().Insert(t)
	ret := passing.Outcome{Role: passing.RoleTrigger, Time: t, Slot: -1}
	switch e.ctrl.State() {
	case control.StateArmedStart:
		e.ctrl.Sync(t, nil)
		e.log.Info("Timer started", log.String("start", t.RawTime(4)))
		return ret
	case control.StateRunning, control.StateArmedFinish:
	default:
		ret.Reason = passing.ReasonNotRunning
		return ret
	}
	id, ok := e.ctrl.StartRider()
	if !ok {
		ret.Reason = passing.ReasonMissingStarter
		return ret
	}
	e.ctrl.StartDone()
	e.startUnload = nil
	rec, ok := e.riders[id]
	if !ok {
		e.log.Error("Start lane rider not in event", log.String("rider", id.String()))
		ret.Reason = passing.ReasonNonStarter
		return ret
	}
	st := t.Sub(e.timing.StartDelay)
	//nolint:errcheck // logged
	e.setTimes(rec, Times{Start: tod.Ptr(st)}, true)
	e.log.Info("Start",
		log.String("rider", id.String()),
		log.String("time", st.RawTime(4)))
	return passing.Outcome{Role: passing.RoleStart, Rider: id, Time: st, Slot: -1}
}

func (e *Engine) finishTrigger(t tod.Tod) passing.Outcome {
	e.matcher.Finishes().Insert(t)
	ret := passing.Outcome{Role: passing.RoleTrigger, Time: t, Slot: -1}
	switch e.ctrl.State() {
	case control.StateArmedStart:
		e.ctrl.Sync(t, nil)
		e.log.Info("Timer started", log.String("start", t.RawTime(4)))
		return ret
	case control.StateRunning, control.StateArmedFinish:
	default:
		ret.Reason = passing.ReasonNotRunning
		return ret
	}
	id, ok := e.ctrl.FinishRider()
	if !ok {
		ret.Reason = passing.ReasonMissingStarter
		return ret
	}
	e.ctrl.FinishDone()
	rec, ok := e.riders[id]
	if !ok {
		e.log.Error("Finish lane rider not in event", log.String("rider", id.String()))
		ret.Reason = passing.ReasonNonStarter
		return ret
	}
	//nolint:errcheck // logged
	e.setTimes(rec, Times{Start: rec.Start, Finish: tod.Ptr(t)}, true)
	e.log.Info("Finish",
		log.String("rider", id.String()),
		log.String("time", t.RawTime(4)))
	return passing.Outcome{Role: passing.RoleFinish, Rider: id, Time: t, Slot: -1}
}

// keyboard handles a bib entered by the operator. Channel 0 is a start,
// any other channel a finish.
func (e *Engine) keyboard(imp model.Impulse) passing.Outcome {
	id := model.ParseIdentity(imp.RefID)
	role := passing.RoleFinish
	if imp.ChannelID() == model.ChannelStart {
		role = passing.RoleStart
	}
	if err := e.ManualTime(id, role, imp.Time); err != nil {
		return passing.Outcome{
			Role: passing.RoleRejected, Rider: id, Reason: err.Error(), Slot: -1,
		}
	}
	return passing.Outcome{Role: role, Rider: id, Time: imp.Time, Slot: -1}
}

// apply writes an accepted passing to the rider record. A rejected
// finish loop passing still counts as seen.
func (e *Engine) apply(imp model.Impulse, rec *model.RiderRecord, out passing.Outcome) passing.Outcome {
	switch out.Role {
	case passing.RoleRejected:
		if out.Seen {
			rec.Passes = out.Passes
			rec.LastSeen = tod.Ptr(imp.Time)
		}
	case passing.RoleStart:
		//nolint:errcheck // logged
		e.setTimes(rec, Times{Start: tod.Ptr(out.Time)}, true)
	case passing.RoleFinish:
		rec.Passes = out.Passes
		rec.LastSeen = tod.Ptr(imp.Time)
		//nolint:errcheck // logged
		e.setTimes(rec, Times{Start: rec.Start, Finish: tod.Ptr(out.Time)}, true)
	case passing.RoleLap:
		rec.Passes = out.Passes
		rec.LastSeen = tod.Ptr(imp.Time)
		if out.Slot >= 0 {
			//nolint:errcheck // logged
			e.SetInter(rec.ID, out.Slot, tod.Ptr(out.Time))
		}
	case passing.RoleIntermediate:
		if rank, err := e.SetInter(rec.ID, out.Slot, tod.Ptr(out.Time)); err == nil {
			e.log.Info("Split rank",
				log.String("rider", rec.ID.String()),
				log.Int("slot", out.Slot),
				log.Int("rank", rank))
		}
	case passing.RoleArmed:
		if fr, ok := e.ctrl.FinishRider(); ok && fr == rec.ID {
			return out
		}
		if !e.ctrl.Running() {
			e.log.Info("Finish not armed", log.String("rider", rec.ID.String()),
				log.String("reason", passing.ReasonNotRunning))
			return passing.Outcome{
				Role: passing.RoleRejected, Rider: rec.ID, Reason: passing.ReasonNotRunning, Slot: -1,
			}
		}
		if !e.ctrl.ArmFinish(rec.ID) {
			e.log.Warn("Finish blocked", log.String("rider", rec.ID.String()))
			return passing.Outcome{
				Role: passing.RoleRejected, Rider: rec.ID, Reason: passing.ReasonFinishBlocked, Slot: -1,
			}
		}
	}
	return out
}

// resolve maps a transponder id to a rider identity. Riders of the event
// win over the directory.
func (e *Engine) resolve(ctx context.Context, refid string) (model.Identity, bool) {
	if id, ok := e.refids[normRefID(refid)]; ok {
		return id, true
	}
	if e.dir == nil {
		return model.Identity{}, false
	}
	entry, err := e.dir.ByRefID(ctx, refid)
	if err != nil {
		if !errors.Is(err, directory.ErrNotFound) {
			e.log.Warn("Directory lookup failed",
				log.String("refid", refid), log.ErrorField(err))
		}
		return model.Identity{}, false
	}
	return entry.Identity, true
}

// lapTarget returns the finish passes required for the rider's category.
func (e *Engine) lapTarget(rec *model.RiderRecord) int {
	if e.catalog != nil {
		if c, ok := e.catalog.Category(rec.PrimaryCategory()); ok && c.Laps > 0 {
			return c.Laps
		}
	}
	return e.timing.FinishPass
}

// ManualTime sets a time entered by the operator without impulse
// matching. An intermediate is stored in the first free split slot.
func (e *Engine) ManualTime(id model.Identity, role passing.Role, t tod.Tod) error {
	rec, ok := e.riders[id]
	if !ok {
		return e.unknown(id)
	}
	e.log.Info("Manual time",
		log.String("rider", id.String()),
		log.String("role", role.String()),
		log.String("time", t.RawTime(4)))
	switch role {
	case passing.RoleStart:
		return e.setTimes(rec, Times{Start: tod.Ptr(t)}, true)
	case passing.RoleFinish:
		return e.setTimes(rec, Times{Start: rec.Start, Finish: tod.Ptr(t)}, true)
	case passing.RoleIntermediate:
		for slot := range model.MaxSplits {
			if rec.Splits[slot] == nil {
				_, err := e.SetInter(id, slot, tod.Ptr(t))
				return err
			}
		}
		return fmt.Errorf("%w: no free slot for %s", ErrInvalidSlot, id)
	}
	return fmt.Errorf("unsupported manual role %s", role)
}

// ArmStart toggles the armed start state, see control.Control.ArmStart.
func (e *Engine) ArmStart() {
	e.ctrl.ArmStart()
}

// LoadStarter places a rider on the start lane.
func (e *Engine) LoadStarter(id model.Identity) error {
	if _, ok := e.riders[id]; !ok {
		return e.unknown(id)
	}
	e.ctrl.LoadStarter(id)
	return nil
}

// ArmFinish arms the finish lane for a rider.
func (e *Engine) ArmFinish(id model.Identity) error {
	if _, ok := e.riders[id]; !ok {
		return e.unknown(id)
	}
	if !e.ctrl.ArmFinish(id) {
		return fmt.Errorf("finish lane not available for %s", id)
	}
	return nil
}

// Sync starts the timer at t.
func (e *Engine) Sync(t tod.Tod) bool {
	return e.ctrl.Sync(t, nil)
}

// RestoreStart restores the timer start of a loaded event.
func (e *Engine) RestoreStart(start tod.Tod, lstart *tod.Tod) {
	e.ctrl.Reset()
	e.ctrl.Sync(start, lstart)
}

// SetFinished flags the event finished. Results become final once every
// rider is placed.
func (e *Engine) SetFinished(finished bool) {
	e.ctrl.SetFinished(finished)
	e.PlaceTransfer()
}

// Tick runs periodic housekeeping: start lane loading for scheduled
// starters and the background export check.
func (e *Engine) Tick(now tod.Tod) {
	if e.ctrl.Running() && !e.matcher.Auto() && !e.timing.TransponderOnly() {
		e.loadStartLane(now)
	}
	e.flushExport()
}

func (e *Engine) loadStartLane(now tod.Tod) {
	lane := e.ctrl.StartLane()
	if lane.State == control.LaneArmed {
		if e.startUnload != nil && !now.Before(*e.startUnload) {
			e.log.Info("Start lane released", log.String("rider", lane.Rider.String()))
			e.ctrl.DisarmStart()
			e.startUnload = nil
		}
		return
	}
	var next *model.RiderRecord
	for _, rec := range e.records() {
		if !rec.InRace || rec.Started() || rec.WallStart == nil || rec.WallStart.Before(now) {
			continue
		}
		if next == nil || rec.WallStart.Before(*next.WallStart) {
			next = rec
		}
	}
	if next == nil {
		return
	}
	ahead := next.WallStart.Sub(now)
	if ahead.After(preloadAhead) {
		return
	}
	if lane.State == control.LaneIdle || lane.Rider != next.ID {
		e.ctrl.LoadStarter(next.ID)
		e.log.Info("Next starter",
			log.String("rider", next.ID.String()),
			log.String("wallstart", next.WallStart.RawTime(0)))
	}
	if !ahead.After(armAhead) {
		e.ctrl.ArmStart()
		e.startUnload = tod.Ptr(next.WallStart.Add(unloadAfter))
	}
}

// ResetClear drops all timing data and returns the event to idle.
// Riders, wall starts, penalties and team starts are kept.
func (e *Engine) ResetClear() {
	e.log.Info("Reset event timing")
	e.matcher.Starts().Clear()
	e.matcher.Finishes().Clear()
	e.ctrl.Reset()
	e.startUnload = nil
	for _, rec := range e.records() {
		rec.Status = model.StatusNone
		rec.LimitOTL = false
		rec.InRace = true
		rec.Passes = 0
		rec.LastSeen = nil
		rec.Splits = [model.MaxSplits]*tod.Tod{}
		rec.Start = nil
		rec.Finish = nil
		if st, ok := e.teamStarts[rec.Team]; ok && rec.Team != "" {
			rec.Start = tod.Ptr(st)
		}
	}
	for _, idx := range e.results {
		idx.Clear()
	}
	for slot := range e.inters {
		for _, idx := range e.inters[slot] {
			idx.Clear()
		}
	}
	e.PlaceTransfer()
}
