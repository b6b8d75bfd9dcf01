// Package passing assigns timing impulses to riders.
package passing

import (
	"github.com/mpapenbr/roadtt-engine/log"
	"github.com/mpapenbr/roadtt-engine/pkg/config"
	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

var (
	// look-back for a start impulse in auto impulse mode
	StartWindow = tod.MustParse("5.0")
	// symmetric window for a finish impulse in auto impulse mode
	FinishWindow = tod.MustParse("1.2")
	// allowed deviation of a start passing from the wall start
	WallStartTolerance = tod.FromSeconds(5)
)

// more impulses than this inside the finish window need a manual check
const maxFinishMatches = 2

type Matcher struct {
	timing   *config.Timing
	starts   *Store
	finishes *Store
	log      *log.Logger
}

type MatcherOption func(m *Matcher)

func WithTiming(t *config.Timing) MatcherOption {
	return func(m *Matcher) {
		m.timing = t
	}
}

func WithLogger(l *log.Logger) MatcherOption {
	return func(m *Matcher) {
		m.log = l
	}
}

func NewMatcher(opts ...MatcherOption) *Matcher {
	def := config.DefaultTiming()
	ret := &Matcher{
		timing:   &def,
		starts:   NewStore("start"),
		finishes: NewStore("finish"),
		log:      log.Default().Named("passing"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (m *Matcher) Starts() *Store   { return m.starts }
func (m *Matcher) Finishes() *Store { return m.finishes }

func (m *Matcher) Auto() bool {
	return m.timing.ImpulseMode == config.ImpulseAuto
}

func (m *Matcher) IsStartLoop(loop int) bool {
	return m.timing.StartLoop != nil && *m.timing.StartLoop == loop
}

func (m *Matcher) IsFinishLoop(loop int) bool {
	return m.timing.FinishLoop != nil && *m.timing.FinishLoop == loop
}

func (m *Matcher) isInterLoop(loop int) bool {
	for _, s := range m.timing.Splits {
		if s.Loop == loop {
			return true
		}
	}
	return false
}

// Passing decides the role of a transponder passing of rider rec.
// target is the number of finish passings required (0 if not racing laps).
// The record is not modified.
func (m *Matcher) Passing(imp model.Impulse, rec *model.RiderRecord, target int) Outcome {
	if rec == nil {
		return m.reject(imp, model.Identity{}, ReasonNonStarter)
	}
	if !rec.InRace {
		return m.reject(imp, rec.ID, ReasonOutOfRace)
	}
	e := imp.Time
	loop := imp.ChannelID()
	st, hasStart := rec.EffectiveStart()
	// distinguish a shared start and finish loop
	okfin := hasStart && e.After(st) && e.Sub(st).After(m.timing.MinElap)

	switch {
	case okfin && m.IsFinishLoop(loop):
		return m.finishByPassing(imp, rec, st, target)
	case m.IsStartLoop(loop):
		return m.startByPassing(imp, rec)
	case m.isInterLoop(loop):
		return m.intermediate(imp, rec)
	case m.IsFinishLoop(loop):
		return m.reject(imp, rec.ID, ReasonEarlyArrival)
	}

	if rec.Finished() {
		return m.reject(imp, rec.ID, ReasonFinished)
	}
	if okfin {
		m.log.Info("Arm finish",
			log.String("rider", rec.ID.String()),
			log.String("time", e.RawTime(2)))
		return Outcome{Role: RoleArmed, Rider: rec.ID, Time: e, Slot: -1}
	}
	return m.reject(imp, rec.ID, ReasonEarlyArrival)
}

func (m *Matcher) startByPassing(imp model.Impulse, rec *model.RiderRecord) Outcome {
	e := imp.Time
	if rec.Finished() {
		return m.reject(imp, rec.ID, ReasonFinished)
	}
	if !m.timing.RelaxedStart {
		if rec.Start != nil && !e.After(rec.Start.Add(m.timing.MinElap)) {
			return m.reject(imp, rec.ID, ReasonStarted)
		}
		if rec.WallStart != nil && e.Sub(*rec.WallStart).Abs().After(WallStartTolerance) {
			return m.reject(imp, rec.ID, ReasonWallStart)
		}
	}
	if !m.Auto() {
		m.log.Info("Set start time",
			log.String("rider", rec.ID.String()),
			log.String("time", e.RawTime(2)))
		return Outcome{Role: RoleStart, Rider: rec.ID, Time: e, Slot: -1}
	}
	match, ok := m.starts.ClosestBefore(e, StartWindow)
	if !ok {
		m.log.Warn("No start match found for passing",
			log.String("rider", rec.ID.String()),
			log.String("time", e.RawTime(2)))
		return rejected(rec.ID, ReasonNoStartMatch)
	}
	m.starts.Consume(match.Time)
	m.log.Info("Set start time from impulse",
		log.String("rider", rec.ID.String()),
		log.String("impulse", match.Time.RawTime(4)),
		log.String("passing", e.RawTime(2)))
	return Outcome{Role: RoleStart, Rider: rec.ID, Time: match.Time, Slot: -1, Matches: match.Count}
}

func (m *Matcher) finishByPassing(
	imp model.Impulse,
	rec *model.RiderRecord,
	st tod.Tod,
	target int,
) Outcome {
	e := imp.Time
	if rec.Finished() {
		return m.reject(imp, rec.ID, ReasonFinished)
	}
	passes := rec.Passes
	if target > 0 {
		lt := st
		if rec.LastSeen != nil && rec.LastSeen.After(lt) {
			lt = *rec.LastSeen
		}
		if !e.After(lt.Add(m.timing.MinElap)) {
			ret := m.reject(imp, rec.ID, ReasonShortLap)
			ret.Seen, ret.Passes = true, passes
			return ret
		}
		passes++
		if passes < target {
			slot := -1
			if m.timing.LapSplits && passes <= model.MaxSplits {
				slot = passes - 1
			}
			m.log.Info("Lap passing",
				log.String("rider", rec.ID.String()),
				log.Int("lap", passes),
				log.String("time", e.RawTime(2)))
			return Outcome{
				Role: RoleLap, Rider: rec.ID, Time: e, Slot: slot,
				Passes: passes, Seen: true,
			}
		}
	} else if !e.After(st.Add(m.timing.MinElap)) {
		ret := m.reject(imp, rec.ID, ReasonEarlyArrival)
		ret.Seen, ret.Passes = true, passes
		return ret
	}

	ret := Outcome{Role: RoleFinish, Rider: rec.ID, Time: e, Slot: -1, Passes: passes, Seen: true}
	if m.Auto() {
		match, ok := m.finishes.Window(e, FinishWindow)
		if !ok {
			m.log.Warn("No finish match found for passing",
				log.String("rider", rec.ID.String()),
				log.String("time", e.RawTime(2)))
			return Outcome{
				Role: RoleRejected, Rider: rec.ID, Slot: -1, Reason: ReasonNoFinishMatch,
				Passes: passes, Seen: true,
			}
		}
		if match.Count > maxFinishMatches {
			m.log.Warn("Excess impulses detected, manual check required",
				log.String("rider", rec.ID.String()),
				log.String("time", e.RawTime(2)),
				log.Int("count", match.Count))
		}
		m.finishes.Consume(match.Time)
		ret.Time = match.Time
		ret.Matches = match.Count
	}
	m.log.Info("Set finish time",
		log.String("rider", rec.ID.String()),
		log.String("time", ret.Time.RawTime(4)),
		log.Int("matches", ret.Matches))
	return ret
}

func (m *Matcher) intermediate(imp model.Impulse, rec *model.RiderRecord) Outcome {
	e := imp.Time
	st, ok := rec.EffectiveStart()
	if !ok || !e.After(st) || !e.Sub(st).After(m.timing.MinElap) {
		return m.reject(imp, rec.ID, ReasonNotOnCourse)
	}
	if rec.Finished() {
		return m.reject(imp, rec.ID, ReasonFinished)
	}
	elap := e.Sub(st)
	loop := imp.ChannelID()
	for slot, def := range m.timing.Splits {
		if def.Loop != loop || slot >= model.MaxSplits || rec.Splits[slot] != nil {
			continue
		}
		if !elap.Less(def.MinElap) && elap.Less(def.MaxElap) {
			m.log.Info("Intermediate",
				log.String("rider", rec.ID.String()),
				log.String("split", def.Label),
				log.String("time", e.RawTime(2)))
			return Outcome{Role: RoleIntermediate, Rider: rec.ID, Time: e, Slot: slot}
		}
	}
	return m.reject(imp, rec.ID, ReasonNoSplit)
}

func (m *Matcher) reject(imp model.Impulse, id model.Identity, reason string) Outcome {
	m.log.Info("Passing rejected",
		log.String("reason", reason),
		log.String("rider", id.String()),
		log.String("refid", imp.RefID),
		log.String("channel", imp.Channel),
		log.String("time", imp.Time.RawTime(2)),
		log.String("source", imp.Source))
	return rejected(id, reason)
}
