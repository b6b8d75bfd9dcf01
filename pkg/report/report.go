// Package report builds the ordered line records of the event reports.
// Rendering is left to the consumer.
package report

import (
	"iter"
	"slices"
	"strconv"

	"github.com/samber/lo"

	"github.com/mpapenbr/roadtt-engine/pkg/config"
	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

// Event is the part of the engine the reports are built from.
type Event interface {
	Riders() []model.RiderRecord
	StartList(cat string) []model.StartLine
	Results(cat string) iter.Seq[model.ResultLine]
	ResultCategories() []string
	SplitRank(id model.Identity, slot int) (int, bool)
	Tallies() []model.Tally
	TallyStandings(tally string) []model.TallyLine
	ContestBonus(id model.Identity) (tod.Tod, bool)
	RaceStatus() model.RaceStatus
	Finished() bool
	Comments() []string
	Timing() config.Timing
}

// Categories provides category titles and distances.
type Categories interface {
	Category(id string) (model.Category, bool)
}

// riders placed in the top places are marked on the analysis
const analysisMarkPlaces = 5

type SignonLine struct {
	Rider   model.Identity
	Name    string
	Comment string
}

// Signon lists all riders ordered by bib.
func Signon(ev Event) []SignonLine {
	recs := ev.Riders()
	slices.SortStableFunc(recs, func(a, b model.RiderRecord) int {
		return model.CompareIdentity(a.ID, b.ID)
	})
	return lo.Map(recs, func(r model.RiderRecord, _ int) SignonLine {
		return SignonLine{Rider: r.ID, Name: r.Name, Comment: string(r.Status)}
	})
}

type StartlistLine struct {
	model.StartLine
	// start gap to the previous rider exceeds the configured gap
	Break bool
}

type Startlist struct {
	Heading  string
	Category string
	Lines    []StartlistLine
	Total    int
}

// Startlists returns one startlist per result category. Empty
// uncategorised lists are skipped.
func Startlists(ev Event, cats Categories) []Startlist {
	ret := make([]Startlist, 0)
	for _, cat := range ev.ResultCategories() {
		sl := StartlistFor(ev, cat, cats)
		if cat == "" && sl.Total == 0 {
			continue
		}
		ret = append(ret, sl)
	}
	return ret
}

// StartlistFor returns the startlist of a category ordered by wall start.
func StartlistFor(ev Event, cat string, cats Categories) Startlist {
	gap := ev.Timing().StartGap
	all := ev.StartList("")
	ret := Startlist{Heading: "Startlist", Category: cat}
	if title := categoryTitle(cat, cats, len(ev.ResultCategories()) > 1); title != "" {
		ret.Heading += ": " + title
	}
	resultCats := ev.ResultCategories()
	var last *tod.Tod
	for _, sl := range all {
		if resultCat(sl.Category, resultCats) != cat {
			continue
		}
		line := StartlistLine{StartLine: sl}
		if sl.WallStart != nil {
			if last != nil && sl.WallStart.Sub(*last).After(gap) {
				line.Break = true
			}
			last = sl.WallStart
		}
		ret.Lines = append(ret.Lines, line)
	}
	ret.Total = len(ret.Lines)
	return ret
}

// Callup returns the startlists used for the rider call up.
func Callup(ev Event, cats Categories) []Startlist {
	return Startlists(ev, cats)
}

type ResultLine struct {
	// "1." for placed riders, the status otherwise
	Place   string
	Rider   model.Identity
	Name    string
	Elapsed *tod.Tod
	// time behind the category leader
	Down    *tod.Tod
	Bonus   *tod.Tod
	Penalty *tod.Tod
}

type Result struct {
	Heading  string
	Category string
	Lines    []ResultLine
	Starters int
	OTL      int
	DNF      int
	// average speed of the leader in km/h, nil without distance
	LeaderSpeed *float64
	Comments    []string
}

// Results returns the category results. Comments are attached to the
// last section.
func Results(ev Event, cats Categories) []Result {
	ret := make([]Result, 0)
	for _, cat := range ev.ResultCategories() {
		res := ResultFor(ev, cat, cats)
		if cat == "" && len(res.Lines) == 0 && len(ev.ResultCategories()) > 1 {
			continue
		}
		ret = append(ret, res)
	}
	if len(ret) > 0 {
		ret[len(ret)-1].Comments = ev.Comments()
	}
	return ret
}

// ResultFor returns the result of a single category. Riders without a
// place or status are not listed.
func ResultFor(ev Event, cat string, cats Categories) Result {
	ret := Result{Category: cat}
	var leader *tod.Tod
	total, placed, dns := 0, 0, 0
	for line := range ev.Results(cat) {
		total++
		rl := ResultLine{
			Rider: line.Rider, Name: line.Name, Elapsed: line.Elapsed,
			Bonus: line.Bonus, Penalty: line.Penalty,
		}
		if leader == nil && line.Elapsed != nil {
			leader = line.Elapsed
		}
		switch model.Status(line.Rank) {
		case "":
			continue
		case model.StatusDNS:
			dns++
			rl.Place = line.Rank
		case model.StatusOTL:
			ret.OTL++
			rl.Place = line.Rank
		case model.StatusDNF, model.StatusDSQ, model.StatusWD:
			ret.DNF++
			rl.Place = line.Rank
		default:
			placed++
			rl.Place = line.Rank + "."
		}
		if leader != nil && line.Elapsed != nil && !leader.Equal(*line.Elapsed) {
			rl.Down = tod.Ptr(line.Elapsed.Sub(*leader))
		}
		ret.Lines = append(ret.Lines, rl)
	}
	ret.Starters = total - dns
	residual := total - (placed + dns + ret.OTL + ret.DNF)
	switch {
	case ev.Finished():
		ret.Heading = "Result"
	case ev.RaceStatus() == model.RaceStatusPrerace:
		ret.Heading = ""
	case residual > 0:
		ret.Heading = "Standings"
	default:
		ret.Heading = "Provisional Result"
	}
	if title := categoryTitle(cat, cats, len(ev.ResultCategories()) > 1); title != "" {
		if ret.Heading != "" {
			ret.Heading += ": "
		}
		ret.Heading += title
	}
	if leader != nil && cats != nil {
		if c, ok := cats.Category(cat); ok && c.Distance > 0 && leader.Seconds() > 0 {
			speed := c.Distance * 3600 / leader.Seconds()
			ret.LeaderSpeed = &speed
		}
	}
	return ret
}

type SplitCell struct {
	Elapsed *tod.Tod
	Rank    int
}

type AnalysisLine struct {
	// hit number, or the status for unplaced riders
	Hit     string
	Mark    string
	Rider   model.Identity
	Name    string
	Start   *tod.Tod
	Finish  *tod.Tod
	Elapsed *tod.Tod
	Splits  []SplitCell
}

// Analysis returns the judges report: riders with a finish or a status
// ordered by status, then finish.
func Analysis(ev Event) []AnalysisLine {
	prec := ev.Timing().Precision
	recs := lo.Filter(ev.Riders(), func(r model.RiderRecord, _ int) bool {
		return r.Finish != nil || r.Status != model.StatusNone
	})
	slices.SortStableFunc(recs, func(a, b model.RiderRecord) int {
		if a.Status.Key() != b.Status.Key() {
			return a.Status.Key() - b.Status.Key()
		}
		af, bf := tod.Max, tod.Max
		if a.Finish != nil {
			af = *a.Finish
		}
		if b.Finish != nil {
			bf = *b.Finish
		}
		if c := af.Cmp(bf); c != 0 {
			return c
		}
		return model.CompareIdentity(a.ID, b.ID)
	})
	splits := len(ev.Timing().Splits)
	ret := make([]AnalysisLine, 0, len(recs))
	for i, r := range recs {
		line := AnalysisLine{Rider: r.ID, Name: r.Name, Finish: r.Finish}
		if st, ok := r.EffectiveStart(); ok {
			line.Start = tod.Ptr(st)
		}
		el, ok := r.Elapsed(prec)
		switch {
		case ok:
			line.Elapsed = tod.Ptr(el)
			line.Hit = strconv.Itoa(i + 1)
		case r.Status != model.StatusNone:
			line.Hit = string(r.Status)
		default:
			line.Hit = strconv.Itoa(i + 1)
		}
		if n, err := strconv.Atoi(r.Place); err == nil && n <= analysisMarkPlaces {
			line.Mark = r.Place + "."
		}
		for slot := range min(splits, model.MaxSplits) {
			cell := SplitCell{}
			if se, ok := r.SplitElapsed(slot); ok {
				cell.Elapsed = tod.Ptr(se)
				cell.Rank, _ = ev.SplitRank(r.ID, slot)
			}
			line.Splits = append(line.Splits, cell)
		}
		ret = append(ret, line)
	}
	return ret
}

type PointsSection struct {
	Tally string
	Descr string
	Lines []model.TallyLine
	Total int
}

type BonusLine struct {
	Rider        model.Identity
	Name         string
	StageBonus   *tod.Tod
	ContestBonus *tod.Tod
	Penalty      *tod.Tod
	// bonuses minus penalty
	Total tod.Tod
}

// Points returns the standings of every tally.
func Points(ev Event) []PointsSection {
	return lo.Map(ev.Tallies(), func(t model.Tally, _ int) PointsSection {
		lines := ev.TallyStandings(t.ID)
		return PointsSection{
			Tally: t.ID,
			Descr: t.Descr,
			Lines: lines,
			Total: lo.SumBy(lines, func(l model.TallyLine) int { return l.Points }),
		}
	})
}

// Bonuses lists riders with a time bonus or stage penalty, largest total
// first.
func Bonuses(ev Event) []BonusLine {
	ret := make([]BonusLine, 0)
	for _, r := range ev.Riders() {
		line := BonusLine{
			Rider: r.ID, Name: r.Name, StageBonus: r.StageBonus, Penalty: r.StagePenalty,
		}
		if b, ok := ev.ContestBonus(r.ID); ok {
			line.ContestBonus = tod.Ptr(b)
		}
		for _, v := range []*tod.Tod{line.StageBonus, line.ContestBonus} {
			if v != nil {
				line.Total = line.Total.Add(*v)
			}
		}
		if line.Penalty != nil {
			line.Total = line.Total.Sub(*line.Penalty)
		}
		if line.Total.IsZero() {
			continue
		}
		ret = append(ret, line)
	}
	slices.SortStableFunc(ret, func(a, b BonusLine) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return model.CompareIdentity(a.Rider, b.Rider)
	})
	return ret
}

func categoryTitle(cat string, cats Categories, several bool) string {
	if cat == "" {
		if several {
			return "Uncategorised Riders"
		}
		return ""
	}
	if cats != nil {
		if c, ok := cats.Category(cat); ok && c.Title != "" {
			return c.Title
		}
	}
	return cat
}

func resultCat(cat string, resultCats []string) string {
	if slices.Contains(resultCats, cat) {
		return cat
	}
	return ""
}
