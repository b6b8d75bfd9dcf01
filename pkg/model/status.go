package model

import (
	"fmt"
	"strings"
)

// Status is the administrative status code of a rider.
type Status string

const (
	StatusNone Status = ""
	StatusDNS  Status = "dns"
	StatusDNF  Status = "dnf"
	StatusDSQ  Status = "dsq"
	StatusOTL  Status = "otl"
	StatusWD   Status = "wd"
)

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusNone, StatusDNS, StatusDNF, StatusDSQ, StatusOTL, StatusWD:
		return st, nil
	}
	return StatusNone, fmt.Errorf("unknown status %q", s)
}

// Key returns the sort key of the status. Riders still in the race sort first.
func (s Status) Key() int {
	switch s {
	case StatusOTL:
		return 1
	case StatusWD:
		return 2
	case StatusDNF:
		return 3
	case StatusDSQ:
		return 4
	case StatusDNS:
		return 5
	default:
		return 0
	}
}

// Withdrawn reports statuses that remove a rider from the result index.
// otl is not one of them: time limit riders keep their time.
func (s Status) Withdrawn() bool {
	switch s {
	case StatusDNS, StatusDNF, StatusDSQ, StatusWD:
		return true
	default:
		return false
	}
}
