package passing

import (
	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

type Role int

const (
	RoleRejected Role = iota
	RoleStart
	RoleFinish
	RoleIntermediate
	RoleLap
	// the finish lane should be armed for the rider
	RoleArmed
	// line impulse without transponder
	RoleTrigger
	RoleSpurious
)

func (r Role) String() string {
	switch r {
	case RoleStart:
		return "start"
	case RoleFinish:
		return "finish"
	case RoleIntermediate:
		return "intermediate"
	case RoleLap:
		return "lap"
	case RoleArmed:
		return "armed"
	case RoleTrigger:
		return "trigger"
	case RoleSpurious:
		return "spurious"
	default:
		return "rejected"
	}
}

// rejection reasons
const (
	ReasonUnknownRider   = "unknown transponder"
	ReasonNonStarter     = "non-starter"
	ReasonOutOfRace      = "rider not in race"
	ReasonFinished       = "finished rider"
	ReasonStarted        = "started rider on start loop"
	ReasonWallStart      = "start differs from wall start"
	ReasonEarlyArrival   = "early arrival"
	ReasonShortLap       = "short lap"
	ReasonNoStartMatch   = "no start impulse match"
	ReasonNoFinishMatch  = "no finish impulse match"
	ReasonNoStartTime    = "no start time"
	ReasonNotOnCourse    = "rider not yet on course"
	ReasonNoSplit        = "no split window"
	ReasonUnconfigured   = "unconfigured channel"
	ReasonFinishBlocked  = "finish lane busy"
	ReasonNotRunning     = "timer not running"
	ReasonMissingStarter = "no rider on lane"
)

// Outcome describes what a single impulse was accepted as.
type Outcome struct {
	Role  Role
	Rider model.Identity
	// the time to record, may differ from the passing in auto impulse mode
	Time tod.Tod
	// split slot for intermediates
	Slot int
	// pass count after a finish loop passing
	Passes int
	// the passing should be stored as last seen
	Seen bool
	// impulses inside the auto mode window
	Matches int
	Reason  string
}

func (o Outcome) Accepted() bool {
	return o.Role != RoleRejected && o.Role != RoleSpurious
}

func rejected(id model.Identity, reason string) Outcome {
	return Outcome{Role: RoleRejected, Rider: id, Reason: reason, Slot: -1}
}
