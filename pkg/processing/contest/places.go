package contest

import (
	"strconv"
	"strings"

	"github.com/mpapenbr/roadtt-engine/pkg/model"
)

// Placeholder marks a place taken by an unidentified rider.
const Placeholder = "x"

// ParsePlaces reads a place string like "1 2-3 4" into groups of riders.
// Riders joined by '-' share a place.
func ParsePlaces(s string) [][]model.Identity {
	ret := make([][]model.Identity, 0)
	for _, field := range strings.Fields(s) {
		group := make([]model.Identity, 0)
		for _, bib := range strings.Split(field, "-") {
			if bib == "" {
				continue
			}
			group = append(group, model.ParseIdentity(bib))
		}
		if len(group) > 0 {
			ret = append(ret, group)
		}
	}
	return ret
}

func FormatPlaces(groups [][]model.Identity) string {
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		ids := make([]string, 0, len(g))
		for _, id := range g {
			ids = append(ids, id.String())
		}
		parts = append(parts, strings.Join(ids, "-"))
	}
	return strings.Join(parts, " ")
}

// Countback holds win counts indexed by place (or climb category).
type Countback []int

func (c *Countback) Inc(idx int) {
	if idx < 0 {
		return
	}
	for len(*c) <= idx {
		*c = append(*c, 0)
	}
	(*c)[idx]++
}

func (c Countback) Get(idx int) int {
	if idx < 0 || idx >= len(c) {
		return 0
	}
	return c[idx]
}

// Compare compares lexicographically. Missing entries count as 0.
func Compare(a, b Countback) int {
	n := max(len(a), len(b))
	for i := range n {
		if d := a.Get(i) - b.Get(i); d != 0 {
			if d > 0 {
				return 1
			}
			return -1
		}
	}
	return 0
}

func (c Countback) String() string {
	parts := make([]string, 0, len(c))
	for _, v := range c {
		if v == 0 {
			parts = append(parts, "-")
		} else {
			parts = append(parts, strconv.Itoa(v))
		}
	}
	return strings.Join(parts, "/")
}
