package processing

import (
	"context"
	"time"

	"github.com/mpapenbr/roadtt-engine/log"
	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

// Command is an operator edit executed on the event loop.
type Command func(e *Engine)

// Run serialises impulses, commands and ticks until ctx is done or the
// impulse channel is closed. nil channels are never selected, a closed
// command or tick channel is ignored from then on.
func (e *Engine) Run(
	ctx context.Context,
	impulses <-chan model.Impulse,
	commands <-chan Command,
	tick <-chan time.Time,
) error {
	e.log.Info("Event loop started", log.String("event", e.id.String()))
	defer e.log.Info("Event loop stopped", log.String("event", e.id.String()))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case imp, ok := <-impulses:
			if !ok {
				e.flushExport()
				return nil
			}
			e.TimingEvent(ctx, imp)
		case cmd, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			if cmd != nil {
				cmd(e)
			}
		case t, ok := <-tick:
			if !ok {
				tick = nil
				continue
			}
			e.Tick(tod.FromTime(t))
		}
	}
}
