package replay

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

var ErrInvalidPassing = errors.New("invalid passing")

// ReadPassings reads recorded impulses. Each record holds
//
//	time,channel[,refid[,source[,origin]]]
//
// Empty lines and lines starting with '#' are skipped. Without origin
// a record with refid is a transponder passing, otherwise a chronometer
// impulse. The result is ordered by time.
func ReadPassings(r io.Reader) ([]model.Impulse, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	ret := []model.Impulse{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		imp, err := parsePassing(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ret = append(ret, imp)
	}
	slices.SortStableFunc(ret, func(a, b model.Impulse) int {
		return a.Time.Cmp(b.Time)
	})
	return ret, nil
}

func parsePassing(rec []string) (model.Impulse, error) {
	field := func(i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	if len(rec) < 2 {
		return model.Impulse{}, fmt.Errorf("%w: need time and channel", ErrInvalidPassing)
	}
	t, err := tod.Parse(field(0))
	if err != nil {
		return model.Impulse{}, err
	}
	imp := model.Impulse{
		Time:    t,
		Channel: field(1),
		RefID:   field(2),
		Source:  field(3),
	}
	if imp.ChannelID() < 0 {
		return model.Impulse{}, fmt.Errorf("%w: channel %q", ErrInvalidPassing, imp.Channel)
	}
	switch o := strings.ToLower(field(4)); o {
	case "":
		if imp.RefID != "" {
			imp.Origin = model.OriginTransponder
		}
	case model.OriginChronometer.String():
		imp.Origin = model.OriginChronometer
	case model.OriginTransponder.String():
		imp.Origin = model.OriginTransponder
	case model.OriginKeyboard.String():
		imp.Origin = model.OriginKeyboard
	default:
		return model.Impulse{}, fmt.Errorf("%w: origin %q", ErrInvalidPassing, o)
	}
	return imp, nil
}
