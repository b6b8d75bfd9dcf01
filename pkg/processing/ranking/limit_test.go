package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

func TestLimitCutoff(t *testing.T) {
	tests := []struct {
		name    string
		limit   string
		leader  string
		want    string
		wantOk  bool
		wantErr bool
	}{
		{name: "none", limit: "", leader: "1:00:00", wantOk: false},
		{name: "percent", limit: "8%", leader: "1:00:00", want: "1:04:48", wantOk: true},
		{name: "percent truncated", limit: "10%", leader: "25:30.4", want: "28:03.4", wantOk: true},
		{name: "down", limit: "+5:00", leader: "1:00:00", want: "1:05:00", wantOk: true},
		{name: "absolute", limit: "1:10:00", leader: "1:00:00", want: "1:10:00", wantOk: true},
		{name: "absolute below leader", limit: "4:00", leader: "1:00:00", want: "1:04:00", wantOk: true},
		{name: "invalid", limit: "fast", wantErr: true},
		{name: "invalid percent", limit: "x%", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := ParseLimit(tt.limit)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			got, ok := l.Cutoff(tod.MustParse(tt.leader))
			assert.Equal(t, tt.wantOk, ok)
			if tt.wantOk {
				assert.True(t, got.Equal(tod.MustParse(tt.want)), "got %s", got)
			}
		})
	}
}
