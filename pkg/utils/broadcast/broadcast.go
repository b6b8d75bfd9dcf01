// Package broadcast fans out the snapshots of an event observer channel
// to any number of subscribers.
package broadcast

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/roadtt-engine/log"
)

// a subscriber not ready within this duration misses the message
const sendTimeout = 50 * time.Millisecond

type Server[T any] interface {
	Subscribe() <-chan T
	CancelSubscription(<-chan T)
	Close()
}

type server[T any] struct {
	name           string
	eventKey       string
	source         <-chan T
	listeners      []chan T
	addListener    chan chan T
	removeListener chan (<-chan T)
	ctx            context.Context
	cancel         context.CancelFunc
	done           chan struct{}
	log            *log.Logger
	numRcv         atomic.Int64
	numSnd         atomic.Int64
	numSkip        atomic.Int64
	numListeners   atomic.Int64
	registration   metric.Registration
}

// New starts a server distributing everything received on source.
// The server stops on Close or when source is closed; subscriber
// channels are closed then.
func New[T any](eventKey, name string, source <-chan T) Server[T] {
	ctx, cancel := context.WithCancel(context.Background())
	b := &server[T]{
		eventKey:       eventKey,
		name:           name,
		source:         source,
		addListener:    make(chan chan T),
		removeListener: make(chan (<-chan T)),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
		log:            log.Default().Named("broadcast"),
	}
	b.setupMetrics()
	go b.serve()
	return b
}

// Subscribe returns a channel receiving the broadcast messages. After the
// server stopped a closed channel is returned.
func (b *server[T]) Subscribe() <-chan T {
	ch := make(chan T)
	select {
	case b.addListener <- ch:
	case <-b.done:
		close(ch)
	}
	return ch
}

func (b *server[T]) CancelSubscription(ch <-chan T) {
	select {
	case b.removeListener <- ch:
	case <-b.done:
	}
}

func (b *server[T]) Close() {
	b.cancel()
	<-b.done
	if b.registration != nil {
		//nolint:errcheck // best effort
		b.registration.Unregister()
	}
	b.log.Info("Broadcast server closed",
		log.String("name", b.name),
		log.Int64("rcv", b.numRcv.Load()),
		log.Int64("snd", b.numSnd.Load()),
		log.Int64("skip", b.numSkip.Load()))
}

func (b *server[T]) setupMetrics() {
	meter := otel.GetMeterProvider().Meter(fmt.Sprintf("rte.broadcast.%s", b.name))
	type gauge struct {
		name  string
		desc  string
		value *atomic.Int64
	}
	gauges := []gauge{
		{"rte.broadcast.rcv", "Number of received messages", &b.numRcv},
		{"rte.broadcast.snd", "Number of sent messages", &b.numSnd},
		{"rte.broadcast.skip", "Number of skipped messages", &b.numSkip},
		{"rte.broadcast.listener", "Number of listeners", &b.numListeners},
	}
	observables := make([]metric.Observable, 0, len(gauges))
	instruments := make([]metric.Int64ObservableGauge, 0, len(gauges))
	for _, g := range gauges {
		inst, err := meter.Int64ObservableGauge(g.name,
			metric.WithDescription(g.desc),
			metric.WithUnit("{count}"))
		if err != nil {
			b.log.Error("failed to register metric",
				log.String("metric", g.name), log.ErrorField(err))
			return
		}
		instruments = append(instruments, inst)
		observables = append(observables, inst)
	}
	attrs := metric.WithAttributes(
		attribute.String("name", b.name),
		attribute.String("event", b.eventKey))
	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for i, g := range gauges {
			o.ObserveInt64(instruments[i], g.value.Load(), attrs)
		}
		return nil
	}, observables...)
	if err != nil {
		b.log.Error("failed to register metric callback", log.ErrorField(err))
		return
	}
	b.registration = reg
}

func (b *server[T]) serve() {
	defer func() {
		for _, listener := range b.listeners {
			close(listener)
		}
		b.listeners = nil
		b.numListeners.Store(0)
		close(b.done)
	}()
	for {
		select {
		case <-b.ctx.Done():
			return
		case ch := <-b.addListener:
			b.listeners = append(b.listeners, ch)
			b.numListeners.Store(int64(len(b.listeners)))
		case ch := <-b.removeListener:
			idx := slices.IndexFunc(b.listeners, func(l chan T) bool { return l == ch })
			if idx >= 0 {
				close(b.listeners[idx])
				b.listeners = slices.Delete(b.listeners, idx, idx+1)
				b.numListeners.Store(int64(len(b.listeners)))
			}
		case msg, ok := <-b.source:
			if !ok {
				b.log.Debug("Broadcast source closed", log.String("name", b.name))
				return
			}
			b.numRcv.Add(1)
			b.send(msg)
		}
	}
}

func (b *server[T]) send(msg T) {
	for _, listener := range b.listeners {
		timer := time.NewTimer(sendTimeout)
		select {
		case listener <- msg:
			b.numSnd.Add(1)
		case <-timer.C:
			b.numSkip.Add(1)
		}
		timer.Stop()
	}
}
