package model

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

type RaceStatus string

const (
	RaceStatusPrerace     RaceStatus = "prerace"
	RaceStatusVirtual     RaceStatus = "virtual"
	RaceStatusProvisional RaceStatus = "provisional"
	RaceStatusFinal       RaceStatus = "final"
)

// ResultLine is one row of a category result.
// Rank holds the numeric place or the status code of an unplaced rider.
type ResultLine struct {
	Rank     string   `json:"rank"`
	Rider    Identity `json:"rider"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Elapsed  *tod.Tod `json:"elapsed"`
	Bonus    *tod.Tod `json:"bonus"`
	Penalty  *tod.Tod `json:"penalty"`
}

type StartLine struct {
	Rider     Identity `json:"rider"`
	Name      string   `json:"name"`
	Category  string   `json:"category"`
	Team      string   `json:"team,omitempty"`
	RefID     string   `json:"refid,omitempty"`
	WallStart *tod.Tod `json:"wallStart"`
}

type TallyLine struct {
	Rank      int      `json:"rank"`
	Rider     Identity `json:"rider"`
	Name      string   `json:"name"`
	Points    int      `json:"points"`
	Countback string   `json:"countback"`
}

type TeamLine struct {
	Rank     int        `json:"rank"`
	Team     string     `json:"team"`
	Category string     `json:"category"`
	Start    *tod.Tod   `json:"start"`
	Time     *tod.Tod   `json:"time"`
	Riders   []Identity `json:"riders"`
}

// Snapshot is an immutable copy of the computed results handed to
// observers and exporters.
type Snapshot struct {
	EventID uuid.UUID               `json:"eventId"`
	Seq     uint64                  `json:"seq"`
	Created time.Time               `json:"created"`
	Status  RaceStatus              `json:"status"`
	Results map[string][]ResultLine `json:"results"`
	Teams   []TeamLine              `json:"teams,omitempty"`
	Points  map[string][]TallyLine  `json:"points,omitempty"`
}
