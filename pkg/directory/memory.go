package directory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/mpapenbr/roadtt-engine/pkg/model"
)

// Memory is a Directory held in memory.
type Memory struct {
	mu      sync.RWMutex
	entries map[model.Identity]Entry
	refids  map[string]model.Identity
}

var _ Directory = (*Memory)(nil)

func NewMemory(entries ...Entry) *Memory {
	ret := &Memory{
		entries: make(map[model.Identity]Entry),
		refids:  make(map[string]model.Identity),
	}
	for _, e := range entries {
		ret.Put(e)
	}
	return ret
}

// Put adds or replaces an entry.
func (m *Memory) Put(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.entries[e.Identity]; ok && old.RefID != "" {
		delete(m.refids, normRefID(old.RefID))
	}
	m.entries[e.Identity] = e
	if e.RefID != "" {
		m.refids[normRefID(e.RefID)] = e.Identity
	}
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Entries returns all entries ordered by identity.
func (m *Memory) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ret := lo.Values(m.entries)
	slices.SortFunc(ret, func(a, b Entry) int {
		return model.CompareIdentity(a.Identity, b.Identity)
	})
	return ret
}

// Categories returns the distinct primary categories in identity order.
func (m *Memory) Categories() []string {
	return lo.Uniq(lo.FilterMap(m.Entries(), func(e Entry, _ int) (string, bool) {
		f := strings.Fields(e.Category)
		if len(f) == 0 {
			return "", false
		}
		return strings.ToUpper(f[0]), true
	}))
}

func (m *Memory) ByRefID(_ context.Context, refid string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.refids[normRefID(refid)]
	if !ok {
		return nil, ErrNotFound
	}
	e := m.entries[id]
	return &e, nil
}

func (m *Memory) ByIdentity(_ context.Context, id model.Identity) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (m *Memory) Team(_ context.Context, label string) ([]Entry, error) {
	ret := lo.Filter(m.Entries(), func(e Entry, _ int) bool {
		return e.Team == label
	})
	if len(ret) == 0 {
		return nil, ErrNotFound
	}
	return ret, nil
}

func normRefID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
