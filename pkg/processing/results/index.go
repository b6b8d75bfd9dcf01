// Package results holds the per category ordering of elapsed times.
package results

import (
	"slices"

	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

type Entry struct {
	Time tod.Tod
	ID   model.Identity
}

// Index is a time ordered collection of riders.
// Entries with equal times keep their insertion order.
type Index struct {
	name    string
	entries []Entry
	byID    map[model.Identity]tod.Tod
}

func NewIndex(name string) *Index {
	return &Index{
		name:    name,
		entries: make([]Entry, 0),
		byID:    make(map[model.Identity]tod.Tod),
	}
}

func (x *Index) Name() string { return x.name }

// Insert adds id with time t. An existing entry for id is replaced.
func (x *Index) Insert(id model.Identity, t tod.Tod) {
	x.Remove(id)
	pos := x.upperBound(t)
	x.entries = slices.Insert(x.entries, pos, Entry{Time: t, ID: id})
	x.byID[id] = t
}

// Remove deletes the entry of id and reports whether it was present.
func (x *Index) Remove(id model.Identity) bool {
	t, ok := x.byID[id]
	if !ok {
		return false
	}
	for i := x.lowerBound(t); i < len(x.entries); i++ {
		if x.entries[i].ID == id {
			x.entries = slices.Delete(x.entries, i, i+1)
			break
		}
	}
	delete(x.byID, id)
	return true
}

// Rank returns the number of entries strictly faster than id.
// Tied entries share the same rank.
func (x *Index) Rank(id model.Identity) (int, bool) {
	t, ok := x.byID[id]
	if !ok {
		return 0, false
	}
	return x.lowerBound(t), true
}

func (x *Index) Time(id model.Identity) (tod.Tod, bool) {
	t, ok := x.byID[id]
	return t, ok
}

func (x *Index) Contains(id model.Identity) bool {
	_, ok := x.byID[id]
	return ok
}

func (x *Index) Len() int { return len(x.entries) }

// Leader returns the fastest entry
func (x *Index) Leader() (Entry, bool) {
	if len(x.entries) == 0 {
		return Entry{}, false
	}
	return x.entries[0], true
}

// Entries returns a copy of the ordered entries.
func (x *Index) Entries() []Entry {
	return slices.Clone(x.entries)
}

func (x *Index) Clear() {
	x.entries = x.entries[:0]
	clear(x.byID)
}

// first position with time >= t
func (x *Index) lowerBound(t tod.Tod) int {
	pos, _ := slices.BinarySearchFunc(x.entries, t, func(e Entry, t tod.Tod) int {
		if e.Time.Less(t) {
			return -1
		}
		return 1
	})
	return pos
}

// first position with time > t
func (x *Index) upperBound(t tod.Tod) int {
	pos, _ := slices.BinarySearchFunc(x.entries, t, func(e Entry, t tod.Tod) int {
		if e.Time.After(t) {
			return 1
		}
		return -1
	})
	return pos
}
