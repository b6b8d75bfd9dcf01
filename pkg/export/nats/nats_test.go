package nats

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/processing"
	"github.com/mpapenbr/roadtt-engine/testsupport/tcnats"
)

var natsURL string

func TestMain(m *testing.M) {
	if url := os.Getenv("TESTNATS_URL"); url != "" {
		natsURL = url
		os.Exit(m.Run())
	}
	c, err := tcnats.SetupNats(context.Background())
	if err != nil {
		panic(err)
	}
	natsURL = c.URL
	code := m.Run()
	c.Terminate(context.Background()) //nolint:errcheck // test teardown
	os.Exit(code)
}

func TestPublishAndStore(t *testing.T) {
	ctx := context.Background()
	conn, err := nats.Connect(natsURL)
	require.NoError(t, err)
	defer conn.Close()

	sink, err := New(ctx, conn, WithBucket("rte_results_test"))
	require.NoError(t, err)

	e, err := processing.New()
	require.NoError(t, err)
	snap := e.Snapshot()

	msgs := make(chan *nats.Msg, 1)
	sub, err := conn.ChanSubscribe(sink.Subject(snap.EventID.String()), msgs)
	require.NoError(t, err)
	defer sub.Unsubscribe() //nolint:errcheck // test

	require.NoError(t, sink.Export(ctx, snap))
	select {
	case msg := <-msgs:
		assert.Contains(t, string(msg.Data), snap.EventID.String())
	case <-time.After(5 * time.Second):
		t.Fatal("no message published")
	}

	got, err := sink.Latest(ctx, snap.EventID.String())
	require.NoError(t, err)
	assert.Equal(t, snap.Seq, got.Seq)
	assert.Equal(t, model.RaceStatusPrerace, got.Status)
}
