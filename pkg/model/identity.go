package model

import (
	"strconv"
	"strings"
)

// Identity identifies a rider within an event.
// Series distinguishes sub-fields sharing one bib numbering space.
type Identity struct {
	Bib    string `json:"bib"`
	Series string `json:"series"`
}

func NewIdentity(bib, series string) Identity {
	return Identity{
		Bib:    strings.ToLower(strings.TrimSpace(bib)),
		Series: strings.ToLower(strings.TrimSpace(series)),
	}
}

// ParseIdentity reads "bib" or "bib.series"
func ParseIdentity(s string) Identity {
	bib, series, _ := strings.Cut(strings.TrimSpace(s), ".")
	return NewIdentity(bib, series)
}

func (i Identity) String() string {
	if i.Series == "" {
		return i.Bib
	}
	return i.Bib + "." + i.Series
}

func (i Identity) IsZero() bool {
	return i.Bib == "" && i.Series == ""
}

// CompareIdentity orders numeric bibs numerically before any other bib,
// then by series.
func CompareIdentity(a, b Identity) int {
	an, aerr := strconv.Atoi(a.Bib)
	bn, berr := strconv.Atoi(b.Bib)
	switch {
	case aerr == nil && berr == nil:
		if an != bn {
			if an < bn {
				return -1
			}
			return 1
		}
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	default:
		if c := strings.Compare(a.Bib, b.Bib); c != 0 {
			return c
		}
	}
	return strings.Compare(a.Series, b.Series)
}
