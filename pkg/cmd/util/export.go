package util

import (
	"context"
	"errors"
	"os"

	"github.com/nats-io/nats.go"

	"github.com/mpapenbr/roadtt-engine/log"
	"github.com/mpapenbr/roadtt-engine/pkg/config"
	"github.com/mpapenbr/roadtt-engine/pkg/export"
	natssink "github.com/mpapenbr/roadtt-engine/pkg/export/nats"
)

// ExportWorker returns a worker mirroring snapshots to the JSON lines
// file at path (if not empty) and to NATS (if configured). It returns
// nil if there is nothing to export to. The returned function closes
// the worker and its sinks.
func ExportWorker(ctx context.Context, path string) (*export.Worker, func(), error) {
	sinks := []export.Sink{}
	closers := []func(){}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { f.Close() })
		sinks = append(sinks, export.NewWriterSink(f))
	}
	if config.NatsURL != "" {
		if err := WaitForNats(ctx); err != nil {
			cleanup()
			return nil, nil, errors.Join(errors.New("nats not ready"), err)
		}
		conn, err := nats.Connect(config.NatsURL, nats.Name("rte"))
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, conn.Close)
		sink, err := natssink.New(ctx, conn,
			natssink.WithBucket(config.NatsBucket),
			natssink.WithLogger(log.Default().Named("export.nats")))
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		sinks = append(sinks, sink)
	}
	if len(sinks) == 0 {
		return nil, func() {}, nil
	}
	w := export.NewWorker(export.Multi(sinks...),
		export.WithLogger(log.Default().Named("export")))
	return w, func() {
		w.Close()
		cleanup()
	}, nil
}
