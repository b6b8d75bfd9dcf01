// Package tod provides the time value used throughout the timing engine.
//
// A Tod is a signed amount of seconds with decimal sub-second precision.
// It is used both as time of day (seconds since midnight) and as elapsed
// time. Values are immutable, all operations return new values.
package tod

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const MaxPlaces = 6

var ErrInvalidTime = errors.New("invalid time value")

type Tod struct {
	v decimal.Decimal
}

var (
	Zero = Tod{}
	// Max is the sentinel used for "unset/never" in sort contexts.
	Max = Tod{v: decimal.New(1, 12)}
)

func New(d decimal.Decimal) Tod {
	return Tod{v: d}
}

func FromSeconds(secs int64) Tod {
	return Tod{v: decimal.NewFromInt(secs)}
}

func FromFloat(secs float64) Tod {
	return Tod{v: decimal.NewFromFloat(secs)}
}

// FromTime returns the time of day of t in seconds since midnight.
func FromTime(t time.Time) Tod {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return Tod{v: decimal.New(t.Sub(midnight).Nanoseconds(), -9)}
}

func Now() Tod {
	return FromTime(time.Now())
}

// Parse reads values like "12.3", "25:30.40", "1:02:03.456" or "1h02:03.4".
// A leading '-' denotes a negative value.
func Parse(s string) (Tod, error) {
	work := strings.TrimSpace(s)
	if work == "" {
		return Zero, fmt.Errorf("%w: empty", ErrInvalidTime)
	}
	neg := false
	if strings.HasPrefix(work, "-") {
		neg = true
		work = work[1:]
	}
	work = strings.Replace(work, "h", ":", 1)
	parts := strings.Split(work, ":")
	if len(parts) > 3 {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	secs, err := decimal.NewFromString(parts[len(parts)-1])
	if err != nil || secs.IsNegative() {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	mult := int64(60)
	for i := len(parts) - 2; i >= 0; i-- {
		n, err := strconv.ParseInt(parts[i], 10, 64)
		if err != nil || n < 0 {
			return Zero, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		secs = secs.Add(decimal.NewFromInt(n * mult))
		mult *= 60
	}
	if neg {
		secs = secs.Neg()
	}
	return Tod{v: secs}, nil
}

func MustParse(s string) Tod {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Tod) Decimal() decimal.Decimal { return t.v }
func (t Tod) Seconds() float64         { return t.v.InexactFloat64() }
func (t Tod) Add(o Tod) Tod            { return Tod{v: t.v.Add(o.v)} }
func (t Tod) Sub(o Tod) Tod            { return Tod{v: t.v.Sub(o.v)} }
func (t Tod) Neg() Tod                 { return Tod{v: t.v.Neg()} }
func (t Tod) Abs() Tod                 { return Tod{v: t.v.Abs()} }
func (t Tod) Mul(d decimal.Decimal) Tod {
	return Tod{v: t.v.Mul(d)}
}

// Truncate drops digits beyond places (clamped to [0, MaxPlaces]).
// Truncation is toward zero.
func (t Tod) Truncate(places int) Tod {
	return Tod{v: t.v.Truncate(int32(clamp(places)))}
}

func (t Tod) Cmp(o Tod) int     { return t.v.Cmp(o.v) }
func (t Tod) Equal(o Tod) bool  { return t.v.Equal(o.v) }
func (t Tod) Less(o Tod) bool   { return t.v.LessThan(o.v) }
func (t Tod) After(o Tod) bool  { return t.v.GreaterThan(o.v) }
func (t Tod) Before(o Tod) bool { return t.v.LessThan(o.v) }
func (t Tod) IsZero() bool      { return t.v.IsZero() }
func (t Tod) IsNegative() bool  { return t.v.IsNegative() }
func (t Tod) IsMax() bool       { return t.v.Equal(Max.v) }
func (t Tod) String() string    { return t.RawTime(-1) }

// RawTime returns the compact representation, e.g. "25:30.40".
// places < 0 keeps all significant fractional digits.
func (t Tod) RawTime(places int) string {
	if t.IsMax() {
		return "MAX"
	}
	neg, h, m, s, frac := t.split(places)
	sign := ""
	if neg {
		sign = "-"
	}
	switch {
	case h > 0:
		return fmt.Sprintf("%s%d:%02d:%02d%s", sign, h, m, s, frac)
	case m > 0:
		return fmt.Sprintf("%s%d:%02d%s", sign, m, s, frac)
	default:
		return fmt.Sprintf("%s%d%s", sign, s, frac)
	}
}

// TimeString returns the fixed width representation "HH:MM:SS.dd".
func (t Tod) TimeString(places int) string {
	if t.IsMax() {
		return "MAX"
	}
	neg, h, m, s, frac := t.split(places)
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s%02d:%02d:%02d%s", sign, h, m, s, frac)
}

func (t Tod) MarshalText() ([]byte, error) {
	return []byte(t.RawTime(-1)), nil
}

func (t *Tod) UnmarshalText(data []byte) error {
	v, err := Parse(string(data))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t Tod) split(places int) (neg bool, h, m, s int64, frac string) {
	a := t.v.Abs()
	if places >= 0 {
		a = a.Truncate(int32(clamp(places)))
	}
	whole := a.Truncate(0)
	f := a.Sub(whole)
	secs := whole.IntPart()
	h = secs / 3600
	m = (secs % 3600) / 60
	s = secs % 60
	switch {
	case places > 0:
		frac = f.StringFixed(int32(clamp(places)))[1:]
	case places < 0 && !f.IsZero():
		frac = f.String()[1:]
	}
	neg = t.v.IsNegative() && !a.IsZero()
	return neg, h, m, s, frac
}

func clamp(places int) int {
	if places < 0 {
		return 0
	}
	if places > MaxPlaces {
		return MaxPlaces
	}
	return places
}

func Ptr(t Tod) *Tod {
	return &t
}

// Equalp reports whether two optional values are both unset or equal.
func Equalp(a, b *Tod) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Min returns the smaller value
func Min(a, b Tod) Tod {
	if a.Less(b) {
		return a
	}
	return b
}
