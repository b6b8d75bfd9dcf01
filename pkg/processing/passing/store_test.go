package passing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

func storeWith(times ...string) *Store {
	s := NewStore("test")
	for _, t := range times {
		s.Insert(tod.MustParse(t))
	}
	return s
}

func TestStoreInsertTruncates(t *testing.T) {
	s := storeWith("10.123456", "5", "7.5")
	got := s.Times()
	require.Len(t, got, 3)
	assert.True(t, got[0].Equal(tod.FromSeconds(5)))
	assert.True(t, got[2].Equal(tod.MustParse("10.1234")))
}

func TestStoreDuplicates(t *testing.T) {
	s := storeWith("1", "2", "2", "2", "3", "3")
	got := s.Duplicates()
	require.Len(t, got, 2)
	assert.True(t, got[0].Equal(tod.FromSeconds(2)))
	assert.True(t, got[1].Equal(tod.FromSeconds(3)))
}

func TestStoreWindow(t *testing.T) {
	tests := []struct {
		name      string
		impulses  []string
		passing   string
		wantFound bool
		wantTime  string
		wantCount int
	}{
		{
			name:     "two impulses around the passing",
			impulses: []string{"99.900", "100.050"}, passing: "100.000",
			wantFound: true, wantTime: "100.050", wantCount: 2,
		},
		{
			name:     "outside window",
			impulses: []string{"98.7", "101.3"}, passing: "100",
			wantFound: false, wantCount: 0,
		},
		{
			name:     "equal distance prefers earlier",
			impulses: []string{"99.5", "100.5", "100.9"}, passing: "100",
			wantFound: true, wantTime: "99.5", wantCount: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := storeWith(tt.impulses...)
			m, ok := s.Window(tod.MustParse(tt.passing), FinishWindow)
			assert.Equal(t, tt.wantFound, ok)
			assert.Equal(t, tt.wantCount, m.Count)
			if tt.wantFound {
				assert.True(t, m.Time.Equal(tod.MustParse(tt.wantTime)), "got %s", m.Time)
			}
		})
	}
}

func TestStoreConsume(t *testing.T) {
	s := storeWith("99.900", "100.050")
	passing := tod.MustParse("100.000")
	m, ok := s.Window(passing, FinishWindow)
	require.True(t, ok)
	assert.True(t, s.Consume(m.Time))

	// the consumed impulse still counts but is not matched again
	m2, ok := s.Window(passing, FinishWindow)
	require.True(t, ok)
	assert.Equal(t, 2, m2.Count)
	assert.True(t, m2.Time.Equal(tod.MustParse("99.900")))
	assert.True(t, s.Consume(m2.Time))

	_, ok = s.Window(passing, FinishWindow)
	assert.False(t, ok)
	assert.False(t, s.Consume(m2.Time))
}

func TestStoreClosestBefore(t *testing.T) {
	s := storeWith("90", "96", "98", "101")
	m, ok := s.ClosestBefore(tod.FromSeconds(100), StartWindow)
	require.True(t, ok)
	assert.True(t, m.Time.Equal(tod.FromSeconds(98)))
	assert.Equal(t, 2, m.Count)

	s.Consume(m.Time)
	m, ok = s.ClosestBefore(tod.FromSeconds(100), StartWindow)
	require.True(t, ok)
	assert.True(t, m.Time.Equal(tod.FromSeconds(96)))

	s.Consume(m.Time)
	_, ok = s.ClosestBefore(tod.FromSeconds(100), StartWindow)
	assert.False(t, ok)
}
