package model

import (
	"strconv"
	"strings"

	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

type Origin int

const (
	OriginChronometer Origin = iota
	OriginTransponder
	OriginKeyboard
)

func (o Origin) String() string {
	switch o {
	case OriginChronometer:
		return "chronometer"
	case OriginTransponder:
		return "transponder"
	case OriginKeyboard:
		return "keyboard"
	default:
		return "unknown"
	}
}

// channel ids of wired chronometer inputs
const (
	ChannelStart  = 0
	ChannelFinish = 1
)

// Impulse is a single timestamped detection delivered by timing hardware
// or entered by the operator.
type Impulse struct {
	Time    tod.Tod `json:"time"`
	Channel string  `json:"channel"`
	RefID   string  `json:"refid,omitempty"`
	Source  string  `json:"source,omitempty"`
	Origin  Origin  `json:"origin"`
}

// ChannelID converts "C1" or "1" into 1. Invalid channels return -1.
func (i Impulse) ChannelID() int {
	return ChannelID(i.Channel)
}

func ChannelID(c string) int {
	c = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(c)), "C")
	c = strings.TrimSuffix(c, "M")
	n, err := strconv.Atoi(c)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// IsTrigger reports an impulse without a transponder id.
func (i Impulse) IsTrigger() bool {
	return i.RefID == "" || i.RefID == "255"
}
