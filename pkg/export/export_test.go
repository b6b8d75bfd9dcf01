package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/processing"
)

// blockingSink holds every export until released.
type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	seqs    []uint64
}

func (s *blockingSink) Export(ctx context.Context, snap *model.Snapshot) error {
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqs = append(s.seqs, snap.Seq)
	return nil
}

func (s *blockingSink) exported() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.seqs...)
}

var _ processing.Exporter = (*Worker)(nil)

func TestSubmitNeverWaits(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	w := NewWorker(sink)

	require.True(t, w.Submit(&model.Snapshot{Seq: 1}))
	assert.True(t, w.Busy())

	done := make(chan bool)
	go func() { done <- w.Submit(&model.Snapshot{Seq: 2}) }()
	select {
	case ok := <-done:
		assert.False(t, ok, "busy worker rejects")
	case <-time.After(time.Second):
		t.Fatal("Submit blocked")
	}

	close(sink.release)
	assert.Eventually(t, func() bool { return !w.Busy() }, time.Second, 5*time.Millisecond)
	require.True(t, w.Submit(&model.Snapshot{Seq: 3}))
	w.Close()
	assert.Equal(t, []uint64{1, 3}, sink.exported())
	assert.False(t, w.Submit(&model.Snapshot{Seq: 4}), "closed worker rejects")
}

func TestExportTimeout(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	w := NewWorker(sink, WithTimeout(20*time.Millisecond))
	require.True(t, w.Submit(&model.Snapshot{Seq: 1}))
	assert.Eventually(t, func() bool { return !w.Busy() }, time.Second, 5*time.Millisecond)
	assert.Empty(t, sink.exported())
	w.Close()
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf)
	require.NoError(t, sink.Export(context.Background(), &model.Snapshot{Seq: 1}))
	require.NoError(t, sink.Export(context.Background(), &model.Snapshot{Seq: 2}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var snap model.Snapshot
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &snap))
	assert.Equal(t, uint64(2), snap.Seq)
}

func TestMulti(t *testing.T) {
	errSink := errors.New("sink down")
	calls := 0
	ok := SinkFunc(func(context.Context, *model.Snapshot) error { calls++; return nil })
	bad := SinkFunc(func(context.Context, *model.Snapshot) error { calls++; return errSink })

	err := Multi(bad, ok).Export(context.Background(), &model.Snapshot{})
	assert.ErrorIs(t, err, errSink)
	assert.Equal(t, 2, calls, "a failing sink does not stop the others")
}

func TestEngineExportsLatest(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	w := NewWorker(sink)
	e, err := processing.New(processing.WithExporter(w))
	require.NoError(t, err)

	// initial snapshot is exporting, further recomputes stay pending
	require.NoError(t, e.AddRider(context.Background(), model.ParseIdentity("1")))
	e.PlaceTransfer()
	e.PlaceTransfer()
	close(sink.release)
	assert.Eventually(t, func() bool { return !w.Busy() }, time.Second, 5*time.Millisecond)

	e.Tick(e.Timing().MinElap)
	assert.Eventually(t, func() bool { return len(sink.exported()) == 2 }, time.Second, 5*time.Millisecond)
	w.Close()
	assert.Equal(t, e.Snapshot().Seq, sink.exported()[1])
}
