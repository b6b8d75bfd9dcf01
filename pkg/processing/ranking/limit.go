package ranking

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

type LimitKind int

const (
	LimitNone LimitKind = iota
	// a time of day or elapsed time
	LimitAbsolute
	// "+delta" added to the leader's time
	LimitDown
	// "N%" of the leader's time added to it
	LimitPercent
)

// Limit is a time limit policy of a category.
type Limit struct {
	Kind    LimitKind
	Value   tod.Tod
	Percent decimal.Decimal
	raw     string
}

// ParseLimit reads limits like "1:10:00", "+5:00" or "8%".
// An empty string means no limit.
func ParseLimit(s string) (Limit, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Limit{Kind: LimitNone}, nil
	}
	work := strings.ReplaceAll(raw, "+", "")
	if strings.Contains(work, "%") {
		pct, err := decimal.NewFromString(strings.TrimSpace(strings.ReplaceAll(work, "%", "")))
		if err != nil || pct.IsNegative() {
			return Limit{}, fmt.Errorf("invalid time limit %q", s)
		}
		return Limit{Kind: LimitPercent, Percent: pct, raw: raw}, nil
	}
	v, err := tod.Parse(work)
	if err != nil || v.IsNegative() {
		return Limit{}, fmt.Errorf("invalid time limit %q", s)
	}
	if strings.Contains(raw, "+") {
		return Limit{Kind: LimitDown, Value: v, raw: raw}, nil
	}
	return Limit{Kind: LimitAbsolute, Value: v, raw: raw}, nil
}

func (l Limit) String() string { return l.raw }

// Cutoff resolves the limit against the leader's elapsed time.
// Percentages are truncated to whole seconds. An absolute limit smaller
// than the leader's time is treated as a down time.
func (l Limit) Cutoff(leader tod.Tod) (tod.Tod, bool) {
	switch l.Kind {
	case LimitPercent:
		down := leader.Mul(l.Percent.Div(decimal.NewFromInt(100))).Truncate(0)
		return leader.Add(down), true
	case LimitDown:
		return leader.Add(l.Value), true
	case LimitAbsolute:
		if l.Value.Less(leader) {
			return leader.Add(l.Value), true
		}
		return l.Value, true
	default:
		return tod.Zero, false
	}
}
