// Package nats publishes result snapshots on NATS and keeps the latest
// snapshot of every event in a jetstream key value bucket.
package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mpapenbr/roadtt-engine/log"
	"github.com/mpapenbr/roadtt-engine/pkg/model"
)

const (
	DefaultBucket  = "rte_results"
	DefaultSubject = "results"
)

type (
	Option func(*Sink)
	Sink   struct {
		conn    *nats.Conn
		kv      jetstream.KeyValue
		bucket  string
		subject string
		log     *log.Logger
	}
)

func WithBucket(bucket string) Option {
	return func(s *Sink) {
		s.bucket = bucket
	}
}

// WithSubject sets the subject prefix, the event id is appended.
func WithSubject(subject string) Option {
	return func(s *Sink) {
		s.subject = subject
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Sink) {
		s.log = l
	}
}

// New creates the sink and the key value bucket if needed.
func New(ctx context.Context, conn *nats.Conn, opts ...Option) (*Sink, error) {
	ret := &Sink{
		conn:    conn,
		bucket:  DefaultBucket,
		subject: DefaultSubject,
		log:     log.Default().Named("export.nats"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, err
	}
	ret.kv, err = js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  ret.bucket,
		History: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("result bucket %s: %w", ret.bucket, err)
	}
	ret.log.Debug("NATS result sink ready", log.String("bucket", ret.bucket))
	return ret, nil
}

// Subject returns the subject snapshots of an event are published on.
func (s *Sink) Subject(eventID string) string {
	return s.subject + "." + eventID
}

func (s *Sink) Export(ctx context.Context, snap *model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	key := snap.EventID.String()
	if err := s.conn.Publish(s.Subject(key), data); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if _, err := s.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}

// Latest returns the stored snapshot of an event.
func (s *Sink) Latest(ctx context.Context, eventID string) (*model.Snapshot, error) {
	entry, err := s.kv.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	var ret model.Snapshot
	if err := json.Unmarshal(entry.Value(), &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}
