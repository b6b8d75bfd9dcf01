package model

import (
	"strings"

	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

const MaxSplits = 5

type RiderRecord struct {
	ID        Identity
	Name      string
	ShortName string
	// space separated list of categories, the first one is used for ranking
	Category string
	Team     string
	RefID    string
	Status   Status
	InRace   bool

	WallStart *tod.Tod
	Start     *tod.Tod
	Finish    *tod.Tod
	Penalty   *tod.Tod
	Splits    [MaxSplits]*tod.Tod
	LastSeen  *tod.Tod
	Passes    int

	Place        string
	StageBonus   *tod.Tod
	StagePenalty *tod.Tod
	// set when the otl status was assigned by the time limit
	LimitOTL bool
}

func (r *RiderRecord) PrimaryCategory() string {
	if f := strings.Fields(r.Category); len(f) > 0 {
		return strings.ToUpper(f[0])
	}
	return ""
}

// EffectiveStart returns the actual start, or the wall start if the rider
// has no actual start.
func (r *RiderRecord) EffectiveStart() (tod.Tod, bool) {
	if r.Start != nil {
		return *r.Start, true
	}
	if r.WallStart != nil {
		return *r.WallStart, true
	}
	return tod.Zero, false
}

// Elapsed computes finish - effective start plus the penalty, truncated
// to precision. ok is false if finish or start is missing.
func (r *RiderRecord) Elapsed(precision int) (elapsed tod.Tod, ok bool) {
	if r.Finish == nil {
		return tod.Zero, false
	}
	st, ok := r.EffectiveStart()
	if !ok {
		return tod.Zero, false
	}
	elapsed = r.Finish.Sub(st)
	if r.Penalty != nil {
		elapsed = elapsed.Add(*r.Penalty)
	}
	return elapsed.Truncate(precision), true
}

// SplitElapsed returns the elapsed time at the given split slot.
func (r *RiderRecord) SplitElapsed(slot int) (tod.Tod, bool) {
	if slot < 0 || slot >= MaxSplits || r.Splits[slot] == nil {
		return tod.Zero, false
	}
	st, ok := r.EffectiveStart()
	if !ok {
		return tod.Zero, false
	}
	return r.Splits[slot].Sub(st), true
}

func (r *RiderRecord) Started() bool  { return r.Start != nil }
func (r *RiderRecord) Finished() bool { return r.Finish != nil }

// Clone returns a copy safe to hand out. Time values are immutable so
// sharing the pointees is fine.
func (r *RiderRecord) Clone() RiderRecord {
	return *r
}
