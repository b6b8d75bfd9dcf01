//nolint:funlen // ok for tests
package eventdoc

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/processing"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

var todComparer = cmp.Comparer(func(a, b tod.Tod) bool { return a.Equal(b) })

func bib(s string) model.Identity { return model.ParseIdentity(s) }

func tp(s string) *tod.Tod { return tod.Ptr(tod.MustParse(s)) }

func newEngine(t *testing.T) *processing.Engine {
	t.Helper()
	e, err := processing.New()
	require.NoError(t, err)
	return e
}

// sampleEngine builds an event with timing data, contests and statuses.
func sampleEngine(t *testing.T) *processing.Engine {
	t.Helper()
	ctx := context.Background()
	e := newEngine(t)
	e.SetTallies([]model.Tally{{ID: "sprint", Descr: "Sprints", KeepDNF: true}})
	e.SetIntermediates([]model.Intermediate{{ID: "i1", Descr: "Sprint 1", Show: true}})
	e.SetContests([]model.Contest{
		{ID: "stage", Source: model.SourceFinish, Bonuses: []tod.Tod{tod.FromSeconds(10)}},
		{ID: "s1", Source: "i1", Tally: "sprint", Points: []int{5, 3}},
	})
	for _, b := range []string{"1", "2", "3", "4"} {
		require.NoError(t, e.AddRider(ctx, bib(b)))
	}
	require.NoError(t, e.SetRiderInfo(bib("1"), processing.RiderInfo{
		Name: "Anna Berg", ShortName: "A. Berg", Category: "W", RefID: "KOC123",
	}))
	e.RestoreStart(tod.MustParse("10:00:00"), nil)
	require.NoError(t, e.SetTimes(bib("1"), processing.Times{
		Wall: tp("10:00:00"), Start: tp("10:00:00.12"), Finish: tp("10:25:30.47"), Penalty: tp("10"),
	}))
	require.NoError(t, e.SetTimes(bib("2"), processing.Times{
		Wall: tp("10:01:00"), Start: tp("10:01:00"), Finish: tp("10:24:00"),
	}))
	_, err := e.SetInter(bib("2"), 0, tp("10:10:00"))
	require.NoError(t, err)
	require.NoError(t, e.SetPasses(bib("2"), 2, tp("10:24:00")))
	require.NoError(t, e.SetStatus([]model.Identity{bib("3")}, model.StatusDNF))
	require.NoError(t, e.SetStageBonus(bib("2"), tp("3")))
	require.NoError(t, e.SetIntermediatePlaces("i1", "2 1"))
	return e
}

func TestSaveWritesExplicitNulls(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, newEngine(t)))

	obj, err := oj.ParseString(buf.String())
	require.NoError(t, err)
	m, ok := obj.(map[string]any)
	require.True(t, ok)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	assert.Equal(t, []string{
		"contests", "id", "intermeds", "lstart", "minelap",
		"precision", "riders", "start", "startgap", "tallys",
	}, keys)
	assert.Contains(t, m, "start")
	assert.Nil(t, m["start"])
	assert.Nil(t, m["lstart"])
	assert.Equal(t, FormatID, m["id"])
	assert.Equal(t, "30", m["minelap"])
}

func TestSaveRiderFields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, sampleEngine(t)))
	obj, err := oj.ParseString(buf.String())
	require.NoError(t, err)

	tests := []struct {
		path string
		want any
	}{
		{"$.start", "10:00:00"},
		{"$.riders[0].name", "Anna Berg"},
		{"$.riders[0].refid", "KOC123"},
		{"$.riders[0].finish", "10:25:30.47"},
		{"$.riders[0].penalty", "10"},
		{"$.riders[0].team", nil},
		{"$.riders[0].place", "2"},
		{"$.riders[1].splits[0]", "10:10:00"},
		{"$.riders[1].splits[1]", nil},
		{"$.riders[1].passes", int64(2)},
		{"$.riders[1].stagebonus", "3"},
		{"$.riders[2].status", "dnf"},
		{"$.riders[3].finish", nil},
		{"$.intermeds[0].places", "2 1"},
		{"$.contests[0].bonuses[0]", "10"},
		{"$.tallys[0].keepdnf", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := jp.MustParseString(tt.path).Get(obj)
			if tt.want == nil {
				for _, v := range got {
					assert.Nil(t, v)
				}
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0])
		})
	}
}

func TestRoundTrip(t *testing.T) {
	src := sampleEngine(t)
	var first bytes.Buffer
	require.NoError(t, Save(&first, src))

	doc, err := Load(bytes.NewReader(first.Bytes()))
	require.NoError(t, err)
	dst := newEngine(t)
	require.NoError(t, Apply(context.Background(), dst, doc))
	assert.False(t, dst.ReadOnly())

	var second bytes.Buffer
	require.NoError(t, Save(&second, dst))
	assert.JSONEq(t, first.String(), second.String())

	want := slices.Collect(src.Results(""))
	got := slices.Collect(dst.Results(""))
	if diff := cmp.Diff(want, got, todComparer); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, src.TallyStandings("sprint"), dst.TallyStandings("sprint"))
}

func TestApplyRanksOnce(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, sampleEngine(t)))
	doc, err := Load(&buf)
	require.NoError(t, err)

	observer := make(chan *model.Snapshot, 10)
	e, err := processing.New(processing.WithObserver(observer))
	require.NoError(t, err)
	<-observer // initial recompute
	require.NoError(t, Apply(context.Background(), e, doc))
	assert.Len(t, observer, 1)
}

func TestVersionMismatchIsReadOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, sampleEngine(t)))
	doc, err := Load(&buf)
	require.NoError(t, err)
	doc.ID = "roadtt-3.0"

	e := newEngine(t)
	require.NoError(t, Apply(context.Background(), e, doc))
	assert.True(t, e.ReadOnly())
	assert.Len(t, e.Riders(), 4, "data is still loaded")
	assert.ErrorIs(t, Save(&bytes.Buffer{}, e), processing.ErrReadOnly)
}

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"roadtt-3.1", false},
		{"roadtt-3.1.0", false},
		{"roadtt-3.0", true},
		{"roadtt-3.2", true},
		{"roadtt-4", true},
		{"roadtt-x", true},
		{"trackmeet-3.1", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := (&Document{ID: tt.id}).CheckVersion()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrVersionMismatch)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadInvalid(t *testing.T) {
	complete := `"id":"roadtt-3.1","start":null,"lstart":null,"minelap":null,` +
		`"startgap":null,"precision":null,"intermeds":[],"contests":[],"tallys":[]`
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"missing riders", `{` + complete + `}`},
		{"unknown key", `{` + complete + `,"riders":[],"extra":1}`},
		{"bad precision", strings.Replace(`{`+complete+`,"riders":[]}`,
			`"precision":null`, `"precision":7`, 1)},
		{"bad status", `{` + complete + `,"riders":[{"id":"1","status":"gone"}]}`},
		{"bad time", `{` + complete + `,"riders":[{"id":"1","finish":"soon"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	doc, err := Load(strings.NewReader(`{` + complete + `,"riders":[{"id":"7"}]}`))
	require.NoError(t, err)
	require.Len(t, doc.Riders, 1)
	assert.True(t, doc.Riders[0].Finish.IsNull())
}
