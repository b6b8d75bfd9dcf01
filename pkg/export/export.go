// Package export mirrors result snapshots to external sinks. Exports run
// on a worker goroutine, the event loop only hands over the latest
// snapshot and never waits for a running export.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/roadtt-engine/log"
	"github.com/mpapenbr/roadtt-engine/pkg/model"
)

type Sink interface {
	Export(ctx context.Context, snap *model.Snapshot) error
}

type SinkFunc func(ctx context.Context, snap *model.Snapshot) error

func (f SinkFunc) Export(ctx context.Context, snap *model.Snapshot) error {
	return f(ctx, snap)
}

type (
	Option func(*Worker)
	Worker struct {
		sink    Sink
		name    string
		timeout time.Duration
		log     *log.Logger
		in      chan *model.Snapshot
		busy    atomic.Bool
		closed  atomic.Bool
		done    chan struct{}
		ctx     context.Context
		cancel  context.CancelFunc
		exports metric.Int64Counter
	}
)

func WithLogger(l *log.Logger) Option {
	return func(w *Worker) {
		w.log = l
	}
}

// WithTimeout limits the duration of a single export.
func WithTimeout(d time.Duration) Option {
	return func(w *Worker) {
		w.timeout = d
	}
}

func WithName(name string) Option {
	return func(w *Worker) {
		w.name = name
	}
}

// NewWorker starts a worker exporting to sink.
func NewWorker(sink Sink, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		sink:    sink,
		name:    "default",
		timeout: 30 * time.Second,
		log:     log.Default().Named("export"),
		in:      make(chan *model.Snapshot, 1),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	meter := otel.Meter("rte.export")
	var err error
	if w.exports, err = meter.Int64Counter("rte.export.runs",
		metric.WithDescription("Number of snapshot exports"),
		metric.WithUnit("{count}")); err != nil {
		w.log.Error("failed to register metric", log.ErrorField(err))
	}
	go w.serve()
	return w
}

// Submit hands a snapshot to the worker. It returns false without
// waiting if an export is still running or the worker is closed.
func (w *Worker) Submit(snap *model.Snapshot) bool {
	if w.closed.Load() || !w.busy.CompareAndSwap(false, true) {
		return false
	}
	w.in <- snap
	return true
}

// Busy reports a running export.
func (w *Worker) Busy() bool {
	return w.busy.Load()
}

// Close waits for a running export and stops the worker. It must not be
// called concurrently with Submit.
func (w *Worker) Close() {
	if !w.closed.CompareAndSwap(false, true) {
		return
	}
	// wait for a submit in flight
	for w.busy.Load() {
		time.Sleep(10 * time.Millisecond)
	}
	close(w.in)
	<-w.done
	w.cancel()
}

func (w *Worker) serve() {
	defer close(w.done)
	for snap := range w.in {
		w.export(snap)
		w.busy.Store(false)
	}
}

func (w *Worker) export(snap *model.Snapshot) {
	ctx, cancel := context.WithTimeout(w.ctx, w.timeout)
	defer cancel()
	start := time.Now()
	err := w.sink.Export(ctx, snap)
	result := "ok"
	if err != nil {
		result = "error"
		w.log.Error("Export failed",
			log.String("sink", w.name),
			log.Uint64("seq", snap.Seq),
			log.ErrorField(err))
	} else {
		w.log.Debug("Export done",
			log.String("sink", w.name),
			log.Uint64("seq", snap.Seq),
			log.Duration("duration", time.Since(start)))
	}
	if w.exports != nil {
		w.exports.Add(ctx, 1, metric.WithAttributes(
			attribute.String("sink", w.name),
			attribute.String("result", result)))
	}
}

// WriterSink writes every snapshot as one JSON line.
type WriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{enc: json.NewEncoder(w)}
}

func (s *WriterSink) Export(_ context.Context, snap *model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(snap)
}

// Multi exports to all sinks and joins their errors.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, snap *model.Snapshot) error {
		errs := make([]error, 0, len(sinks))
		for _, s := range sinks {
			errs = append(errs, s.Export(ctx, snap))
		}
		return errors.Join(errs...)
	})
}
