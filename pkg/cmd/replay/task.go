package replay

import (
	"context"
	"time"

	"github.com/mpapenbr/roadtt-engine/log"
	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/processing"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

// Task feeds recorded impulses to the event loop, paced by their
// recorded time. Housekeeping ticks are issued for every second of
// replay time as commands, so they keep their order with the impulses.
type Task struct {
	speed       int
	fastForward time.Duration
	log         *log.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

type TaskOption func(*Task)

// WithSpeed sets the replay speed factor. 0 replays as fast as possible.
func WithSpeed(speed int) TaskOption {
	return func(t *Task) {
		t.speed = speed
	}
}

// WithFastForward replays the first d of recorded time without delays.
func WithFastForward(d time.Duration) TaskOption {
	return func(t *Task) {
		t.fastForward = d
	}
}

func NewTask(opts ...TaskOption) *Task {
	t := &Task{
		speed: 1,
		log:   log.Default().Named("replay"),
		sleep: sleepCtx,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Replay sends imps and the ticks in between. The impulse channel is
// closed when all impulses are sent.
func (t *Task) Replay(
	ctx context.Context,
	imps []model.Impulse,
	out chan<- model.Impulse,
	commands chan<- processing.Command,
) error {
	defer close(out)
	if len(imps) == 0 {
		return nil
	}
	first := imps[0].Time
	ffUntil := first.Add(tod.FromFloat(t.fastForward.Seconds()))
	prev := first
	sendCmd := func(cmd processing.Command) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case commands <- cmd:
			return nil
		}
	}
	if err := sendCmd(func(e *processing.Engine) {
		if !e.Control().Running() && e.Sync(first) {
			t.log.Info("Timer synced", log.String("time", first.RawTime(2)))
		}
	}); err != nil {
		return err
	}
	for i, imp := range imps {
		for next := nextSecond(prev); next.Before(imp.Time); next = nextSecond(next) {
			if err := t.wait(ctx, prev, next, ffUntil); err != nil {
				return err
			}
			now := next
			if err := sendCmd(func(e *processing.Engine) { e.Tick(now) }); err != nil {
				return err
			}
			prev = next
		}
		if err := t.wait(ctx, prev, imp.Time, ffUntil); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- imp:
		}
		prev = imp.Time
		t.log.Debug("Impulse sent", log.Int("idx", i), log.String("time", imp.Time.RawTime(4)))
	}
	return nil
}

func nextSecond(t tod.Tod) tod.Tod {
	return t.Truncate(0).Add(tod.FromSeconds(1))
}

// wait sleeps for the part of [from, to] after ffUntil, scaled by speed.
func (t *Task) wait(ctx context.Context, from, to, ffUntil tod.Tod) error {
	if from.Before(ffUntil) {
		from = ffUntil
	}
	if t.speed <= 0 || !to.After(from) {
		return nil
	}
	d := time.Duration(to.Sub(from).Seconds() * float64(time.Second) / float64(t.speed))
	return t.sleep(ctx, d)
}
