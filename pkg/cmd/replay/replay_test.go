package replay

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/processing"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

func TestReadPassings(t *testing.T) {
	in := `# recorded at the finish
10:00:05.12,C1
10:00:01.5, C0, , timy
10:00:07.3,C1,1001,decoder
10:00:08,1,12,kbd,keyboard
`
	got, err := ReadPassings(strings.NewReader(in))
	require.NoError(t, err)
	want := []model.Impulse{
		{Time: tod.MustParse("10:00:01.5"), Channel: "C0", Source: "timy"},
		{Time: tod.MustParse("10:00:05.12"), Channel: "C1"},
		{
			Time: tod.MustParse("10:00:07.3"), Channel: "C1", RefID: "1001",
			Source: "decoder", Origin: model.OriginTransponder,
		},
		{
			Time: tod.MustParse("10:00:08"), Channel: "1", RefID: "12",
			Source: "kbd", Origin: model.OriginKeyboard,
		},
	}
	if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b tod.Tod) bool {
		return a.Equal(b)
	})); diff != "" {
		t.Errorf("ReadPassings() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadPassingsInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing channel", "10:00:00\n"},
		{"bad time", "ten,C1\n"},
		{"bad channel", "10:00:00,CX\n"},
		{"bad origin", "10:00:00,C1,1,src,radio\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPassings(strings.NewReader(tt.in))
			assert.ErrorContains(t, err, "line 1")
		})
	}
}

// collect runs the task and records what reaches the event loop.
func collect(t *testing.T, task *Task, imps []model.Impulse) (cmds int, got []model.Impulse) {
	t.Helper()
	e, err := processing.New()
	require.NoError(t, err)
	out := make(chan model.Impulse)
	commands := make(chan processing.Command)
	errc := make(chan error, 1)
	go func() { errc <- task.Replay(context.Background(), imps, out, commands) }()
	for {
		select {
		case cmd := <-commands:
			cmd(e)
			cmds++
		case imp, ok := <-out:
			if !ok {
				require.NoError(t, <-errc)
				return cmds, got
			}
			got = append(got, imp)
		}
	}
}

func TestReplayAsFastAsPossible(t *testing.T) {
	imps := []model.Impulse{
		{Time: tod.MustParse("10:00:00.5"), Channel: "C0"},
		{Time: tod.MustParse("10:00:03.2"), Channel: "C1"},
	}
	task := NewTask(WithSpeed(0))
	task.sleep = func(context.Context, time.Duration) error {
		t.Fatal("no sleep expected")
		return nil
	}
	cmds, got := collect(t, task, imps)
	assert.Len(t, got, 2)
	// sync plus ticks at 1, 2 and 3 seconds
	assert.Equal(t, 4, cmds)
}

func TestReplayPaced(t *testing.T) {
	imps := []model.Impulse{
		{Time: tod.MustParse("10:00:00"), Channel: "C0"},
		{Time: tod.MustParse("10:00:02"), Channel: "C1"},
		{Time: tod.MustParse("10:00:10"), Channel: "C1"},
	}
	var slept time.Duration
	task := NewTask(WithSpeed(2), WithFastForward(5*time.Second))
	task.sleep = func(_ context.Context, d time.Duration) error {
		slept += d
		return nil
	}
	_, got := collect(t, task, imps)
	assert.Len(t, got, 3)
	// 10:00:05 .. 10:00:10 at double speed
	assert.Equal(t, 2500*time.Millisecond, slept)
}

func TestReplaySyncsTimer(t *testing.T) {
	e, err := processing.New()
	require.NoError(t, err)
	imps := []model.Impulse{{Time: tod.MustParse("09:59:58"), Channel: "C1"}}
	out := make(chan model.Impulse)
	commands := make(chan processing.Command)
	go func() {
		//nolint:errcheck // checked via engine state
		NewTask(WithSpeed(0)).Replay(context.Background(), imps, out, commands)
	}()
	require.NoError(t, e.Run(context.Background(), out, commands, nil))
	assert.True(t, e.Control().Running())
	start, _ := e.Control().Start()
	require.NotNil(t, start)
	assert.True(t, start.Equal(tod.MustParse("09:59:58")))
}
