package passing

import (
	"slices"

	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

// impulses are kept with this many decimal places
const storePlaces = 4

type stored struct {
	t        tod.Tod
	consumed bool
}

// Store is a time ordered multiset of line impulses.
// Matched impulses are flagged as consumed and are not matched again.
type Store struct {
	name    string
	entries []stored
}

// Match is the result of a window lookup.
// Count is the number of impulses inside the window, matched or not.
type Match struct {
	Time  tod.Tod
	Count int
}

func NewStore(name string) *Store {
	return &Store{name: name, entries: make([]stored, 0)}
}

func (s *Store) Name() string { return s.name }

func (s *Store) Insert(t tod.Tod) {
	t = t.Truncate(storePlaces)
	pos, _ := slices.BinarySearchFunc(s.entries, t, func(e stored, t tod.Tod) int {
		if e.t.After(t) {
			return 1
		}
		return -1
	})
	s.entries = slices.Insert(s.entries, pos, stored{t: t})
}

func (s *Store) Clear() {
	s.entries = s.entries[:0]
}

func (s *Store) Len() int { return len(s.entries) }

func (s *Store) Times() []tod.Tod {
	ret := make([]tod.Tod, 0, len(s.entries))
	for _, e := range s.entries {
		ret = append(ret, e.t)
	}
	return ret
}

// Duplicates returns every time recorded more than once.
func (s *Store) Duplicates() []tod.Tod {
	ret := make([]tod.Tod, 0)
	for i := 1; i < len(s.entries); i++ {
		if s.entries[i].t.Equal(s.entries[i-1].t) &&
			(len(ret) == 0 || !ret[len(ret)-1].Equal(s.entries[i].t)) {
			ret = append(ret, s.entries[i].t)
		}
	}
	return ret
}

// ClosestBefore looks for the latest unconsumed impulse earlier than t
// and less than window away from it.
func (s *Store) ClosestBefore(t, window tod.Tod) (Match, bool) {
	var m Match
	found := false
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if !e.t.Before(t) {
			continue
		}
		if !t.Sub(e.t).Less(window) {
			break
		}
		m.Count++
		if !found && !e.consumed {
			m.Time = e.t
			found = true
		}
	}
	return m, found
}

// Window looks for the unconsumed impulse closest to t and less than window
// away in either direction. On equal distance the earlier impulse wins.
func (s *Store) Window(t, window tod.Tod) (Match, bool) {
	var m Match
	found := false
	var best tod.Tod
	for _, e := range s.entries {
		dist := e.t.Sub(t).Abs()
		if !dist.Less(window) {
			if e.t.After(t) {
				break
			}
			continue
		}
		m.Count++
		if !e.consumed && (!found || dist.Less(best)) {
			m.Time = e.t
			best = dist
			found = true
		}
	}
	return m, found
}

// Consume flags the first unconsumed impulse at t.
func (s *Store) Consume(t tod.Tod) bool {
	for i := range s.entries {
		if !s.entries[i].consumed && s.entries[i].t.Equal(t) {
			s.entries[i].consumed = true
			return true
		}
	}
	return false
}
