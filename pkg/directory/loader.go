package directory

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

const DefaultRidersPath = "$.riders[*]"

// LoadJSON reads riders from a JSON export. path selects the rider
// objects, e.g. "$.riders[*]". Objects without a bib are skipped.
func LoadJSON(data []byte, path string) ([]Entry, error) {
	if path == "" {
		path = DefaultRidersPath
	}
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse riders: %w", err)
	}
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("riders path %q: %w", path, err)
	}
	ret := make([]Entry, 0)
	for _, item := range x.Get(doc) {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		bib := str(obj, "bib")
		if bib == "" {
			continue
		}
		e := Entry{
			Identity: model.NewIdentity(bib, str(obj, "series")),
			First:    str(obj, "first"),
			Last:     str(obj, "last"),
			Org:      str(obj, "org"),
			Category: str(obj, "cat"),
			RefID:    str(obj, "refid"),
			Team:     str(obj, "team"),
		}
		if e.Category == "" {
			e.Category = str(obj, "category")
		}
		if ts := str(obj, "teamStart"); ts != "" {
			t, err := tod.Parse(ts)
			if err != nil {
				return nil, fmt.Errorf("rider %s: %w", e.Identity, err)
			}
			e.TeamStart = tod.Ptr(t)
		}
		ret = append(ret, e)
	}
	return ret, nil
}

// str returns the value of key as string. Numbers are accepted for bibs
// and transponder ids.
func str(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case int64:
		return fmt.Sprintf("%d", v)
	case float64:
		return fmt.Sprintf("%g", v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
