//nolint:funlen // ok for tests
package tod

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "seconds", input: "12.3", want: "12.3"},
		{name: "minutes", input: "25:30.40", want: "1530.4"},
		{name: "hours", input: "1:02:03.456", want: "3723.456"},
		{name: "hour marker", input: "1h02:03.4", want: "3723.4"},
		{name: "negative", input: "-1:00", want: "-60"},
		{name: "whitespace", input: " 10 ", want: "10"},
		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "abc", wantErr: true},
		{name: "too many parts", input: "1:2:3:4", wantErr: true},
		{name: "negative part", input: "1:-2", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTime)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Decimal().Equal(decimal.RequireFromString(tt.want)),
				"got %s", got.Decimal())
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		places int
		want   string
	}{
		{name: "positive", input: "12.3456", places: 2, want: "12.34"},
		{name: "negative toward zero", input: "-12.3456", places: 2, want: "-12.34"},
		{name: "zero places", input: "59.99", places: 0, want: "59"},
		{name: "clamp low", input: "1.9", places: -3, want: "1"},
		{name: "clamp high", input: "1.123456789", places: 9, want: "1.123456"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MustParse(tt.input).Truncate(tt.places)
			assert.True(t, MustParse(tt.want).Equal(got), "got %s", got)
			assert.True(t, got.Equal(got.Truncate(tt.places)), "idempotent")
		})
	}
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		places  int
		wantRaw string
		wantStr string
	}{
		{
			name: "elapsed", input: "25:30.40", places: 2,
			wantRaw: "25:30.40", wantStr: "00:25:30.40",
		},
		{
			name: "hour", input: "1:00:00", places: 1,
			wantRaw: "1:00:00.0", wantStr: "01:00:00.0",
		},
		{
			name: "seconds only", input: "12.345", places: 1,
			wantRaw: "12.3", wantStr: "00:00:12.3",
		},
		{
			name: "full precision", input: "3.25", places: -1,
			wantRaw: "3.25", wantStr: "00:00:03.25",
		},
		{
			name: "negative", input: "-1:05.5", places: 0,
			wantRaw: "-1:05", wantStr: "-00:01:05",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := MustParse(tt.input)
			assert.Equal(t, tt.wantRaw, v.RawTime(tt.places))
			assert.Equal(t, tt.wantStr, v.TimeString(tt.places))
		})
	}
}

func TestScenarioElapsed(t *testing.T) {
	start := MustParse("10:00:00.00")
	finish := MustParse("10:25:30.40")
	elapsed := finish.Sub(start).Truncate(2)
	assert.Equal(t, "00:25:30.40", elapsed.TimeString(2))
}

func TestMax(t *testing.T) {
	assert.True(t, Max.IsMax())
	assert.True(t, MustParse("99:00:00").Less(Max))
	assert.True(t, Max.Truncate(2).IsMax())
	assert.Equal(t, "MAX", Max.RawTime(2))
}

func TestOptional(t *testing.T) {
	a := Ptr(FromSeconds(10))
	b := Ptr(MustParse("10.000"))
	assert.True(t, Equalp(a, b))
	assert.True(t, Equalp(nil, nil))
	assert.False(t, Equalp(a, nil))
	assert.False(t, Equalp(a, Ptr(FromSeconds(11))))
}

func TestJSON(t *testing.T) {
	type holder struct {
		T *Tod `json:"t"`
	}
	data, err := json.Marshal(holder{T: Ptr(MustParse("1:02.5"))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":"1:02.5"}`, string(data))

	var h holder
	require.NoError(t, json.Unmarshal(data, &h))
	require.NotNil(t, h.T)
	assert.True(t, h.T.Equal(FromFloat(62.5)))

	assert.Error(t, json.Unmarshal([]byte(`{"t":"x"}`), &h))
}
