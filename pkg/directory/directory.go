// Package directory provides rider lookups by identity or transponder.
package directory

import (
	"context"
	"errors"
	"strings"

	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

var ErrNotFound = errors.New("rider not found")

// Entry is a rider as known to the directory.
type Entry struct {
	Identity  model.Identity `json:"identity"`
	First     string         `json:"first"`
	Last      string         `json:"last"`
	Org       string         `json:"org"`
	Category  string         `json:"category"`
	RefID     string         `json:"refid"`
	Team      string         `json:"team"`
	TeamStart *tod.Tod       `json:"teamStart"`
}

// Name returns the list name, e.g. "Jane SMITH (ORG)"
func (e *Entry) Name() string {
	parts := make([]string, 0, 3)
	if e.First != "" {
		parts = append(parts, e.First)
	}
	if e.Last != "" {
		parts = append(parts, strings.ToUpper(e.Last))
	}
	ret := strings.Join(parts, " ")
	if e.Org != "" {
		ret += " (" + e.Org + ")"
	}
	return ret
}

// ShortName returns a name limited to maxLen characters.
func (e *Entry) ShortName(maxLen int) string {
	ret := strings.ToUpper(e.Last)
	if e.First != "" {
		ret = e.First[:1] + ". " + ret
	}
	if r := []rune(ret); len(r) > maxLen {
		ret = string(r[:maxLen])
	}
	return ret
}

type Directory interface {
	ByRefID(ctx context.Context, refid string) (*Entry, error)
	ByIdentity(ctx context.Context, id model.Identity) (*Entry, error)
	// Team returns the members of a team
	Team(ctx context.Context, label string) ([]Entry, error)
}
