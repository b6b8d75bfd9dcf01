// Package control holds the event timer state and the start/finish lanes.
package control

import (
	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

type State int

const (
	StateIdle State = iota
	StateArmedStart
	StateRunning
	StateArmedFinish
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmedStart:
		return "armstart"
	case StateRunning:
		return "running"
	case StateArmedFinish:
		return "armfinish"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

type LaneState int

const (
	LaneIdle LaneState = iota
	LaneLoaded
	LaneArmed
)

// Lane is a timing lane (start or finish) which may hold a rider.
type Lane struct {
	State LaneState
	Rider model.Identity
}

func (l *Lane) Armed() bool { return l.State == LaneArmed }

func (l *Lane) reset() {
	l.State = LaneIdle
	l.Rider = model.Identity{}
}

// Control gates which impulses are accepted.
type Control struct {
	state  State
	start  *tod.Tod
	lstart *tod.Tod
	sl     Lane
	fl     Lane
}

func New() *Control {
	return &Control{state: StateIdle}
}

// State returns the event state. ArmedFinish is reported while the timer
// runs and the finish lane is armed.
func (c *Control) State() State {
	if c.state == StateRunning && c.fl.Armed() {
		return StateArmedFinish
	}
	return c.state
}

func (c *Control) Running() bool {
	return c.state == StateRunning
}

func (c *Control) Finished() bool {
	return c.state == StateFinished
}

// Start returns the synchronised start times (start and local start).
func (c *Control) Start() (start, lstart *tod.Tod) {
	return c.start, c.lstart
}

func (c *Control) StartLane() Lane  { return c.sl }
func (c *Control) FinishLane() Lane { return c.fl }

// ArmStart moves idle to armed-start and back. While running it toggles
// the start lane for the loaded rider.
func (c *Control) ArmStart() {
	switch c.state {
	case StateIdle:
		c.state = StateArmedStart
	case StateArmedStart:
		c.state = StateIdle
		c.fl.reset()
	case StateRunning:
		if c.sl.Armed() {
			c.sl.reset()
		} else if c.sl.State == LaneLoaded {
			c.sl.State = LaneArmed
		}
	}
}

// Sync starts the timer. lstart is the local time of the start, if nil
// start is used.
func (c *Control) Sync(start tod.Tod, lstart *tod.Tod) bool {
	if c.state != StateArmedStart && c.state != StateIdle {
		return false
	}
	c.start = tod.Ptr(start)
	if lstart == nil {
		lstart = tod.Ptr(start)
	}
	c.lstart = lstart
	c.state = StateRunning
	c.sl.reset()
	c.fl.reset()
	return true
}

// LoadStarter places a rider on the start lane.
func (c *Control) LoadStarter(id model.Identity) {
	c.sl = Lane{State: LaneLoaded, Rider: id}
}

// ArmFinish arms the finish lane for rider id. It reports false if the
// timer is not running or the lane is already armed.
func (c *Control) ArmFinish(id model.Identity) bool {
	if c.state != StateRunning || c.fl.Armed() {
		return false
	}
	c.fl = Lane{State: LaneArmed, Rider: id}
	return true
}

func (c *Control) DisarmFinish() {
	c.fl.reset()
}

func (c *Control) DisarmStart() {
	c.sl.reset()
}

// ToggleFinished flags the event as finished or returns it to running.
func (c *Control) ToggleFinished() {
	switch c.state {
	case StateFinished:
		c.state = StateRunning
	default:
		c.state = StateFinished
		c.sl.reset()
		c.fl.reset()
	}
}

// SetFinished restores the finished flag, e.g. after loading an event.
func (c *Control) SetFinished(finished bool) {
	if finished != c.Finished() {
		c.ToggleFinished()
	}
}

func (c *Control) Reset() {
	c.state = StateIdle
	c.start = nil
	c.lstart = nil
	c.sl.reset()
	c.fl.reset()
}

// AcceptsTrigger reports whether line impulses are applied to riders.
func (c *Control) AcceptsTrigger() bool {
	return c.state == StateRunning
}

// StartRider returns the rider armed on the start lane.
func (c *Control) StartRider() (model.Identity, bool) {
	if c.state == StateRunning && c.sl.Armed() {
		return c.sl.Rider, true
	}
	return model.Identity{}, false
}

// FinishRider returns the rider armed on the finish lane.
func (c *Control) FinishRider() (model.Identity, bool) {
	if c.state == StateRunning && c.fl.Armed() {
		return c.fl.Rider, true
	}
	return model.Identity{}, false
}

// StartDone returns the start lane to idle after the rider started.
func (c *Control) StartDone() { c.sl.reset() }

// FinishDone returns the finish lane to idle after the rider finished.
func (c *Control) FinishDone() { c.fl.reset() }
