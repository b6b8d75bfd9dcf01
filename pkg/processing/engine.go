// Package processing holds the timing engine of a time trial event.
//
// The Engine owns the rider records, the result indexes and the event
// control state. It is single-writer: all impulses and edits must be
// serialised by the caller, Run does this for a stream of impulses.
package processing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/gofrs/uuid/v5"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/roadtt-engine/log"
	"github.com/mpapenbr/roadtt-engine/pkg/config"
	"github.com/mpapenbr/roadtt-engine/pkg/directory"
	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/processing/contest"
	"github.com/mpapenbr/roadtt-engine/pkg/processing/control"
	"github.com/mpapenbr/roadtt-engine/pkg/processing/passing"
	"github.com/mpapenbr/roadtt-engine/pkg/processing/ranking"
	"github.com/mpapenbr/roadtt-engine/pkg/processing/results"
	"github.com/mpapenbr/roadtt-engine/pkg/processing/team"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

var (
	ErrUnknownRider   = errors.New("unknown rider")
	ErrDuplicateRider = errors.New("rider already in event")
	ErrNoStartTime    = errors.New("no start time")
	ErrReadOnly       = errors.New("event is read-only")
	ErrInvalidSlot    = errors.New("invalid split slot")
)

type Mode int

const (
	ModeIRTT Mode = iota
	ModeTTT
)

func (m Mode) String() string {
	if m == ModeTTT {
		return "ttt"
	}
	return "irtt"
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "irtt":
		return ModeIRTT, nil
	case "ttt":
		return ModeTTT, nil
	}
	return ModeIRTT, fmt.Errorf("unknown mode %q", s)
}

// AutoCategories as category list derives the categories from the riders.
const AutoCategories = "AUTO"

// Categories provides category metadata.
type Categories interface {
	Category(id string) (model.Category, bool)
}

// Exporter receives snapshots for background export.
type Exporter interface {
	// Submit hands over a snapshot, false if the exporter is still busy.
	Submit(s *model.Snapshot) bool
	Busy() bool
}

// RiderInfo holds the descriptive fields of a rider.
type RiderInfo struct {
	Name      string
	ShortName string
	Category  string
	Team      string
	RefID     string
}

type Engine struct {
	id       uuid.UUID
	mode     Mode
	timing   *config.Timing
	dir      directory.Directory
	catalog  Categories
	log      *log.Logger
	observer chan<- *model.Snapshot
	exporter Exporter

	ctrl     *control.Control
	matcher  *passing.Matcher
	ranker   *ranking.Ranker
	contests *contest.Engine

	riders map[model.Identity]*model.RiderRecord
	order  []model.Identity
	refids map[string]model.Identity

	declared []string
	autoCats bool
	cats     []string
	results  map[string]*results.Index
	inters   [model.MaxSplits]map[string]*results.Index

	intermeds   []model.Intermediate
	contestDefs []model.Contest
	tallies     []model.Tally
	teamStarts  map[string]tod.Tod
	comments    []string
	readOnly    bool

	placed   ranking.Output
	teams    []team.Result
	seq      uint64
	snapshot *model.Snapshot
	// snapshot waiting for the exporter
	pending bool
	// set while a batch of edits defers place transfer
	batching bool
	// next start lane unload in auto load mode
	startUnload *tod.Tod

	recompute sync.Mutex
	metrics   engineMetrics
	tracer    trace.Tracer
}

type Option func(e *Engine)

func WithTiming(t config.Timing) Option {
	return func(e *Engine) {
		e.timing = &t
	}
}

func WithDirectory(d directory.Directory) Option {
	return func(e *Engine) {
		e.dir = d
	}
}

func WithCatalog(c Categories) Option {
	return func(e *Engine) {
		e.catalog = c
	}
}

func WithMode(m Mode) Option {
	return func(e *Engine) {
		e.mode = m
	}
}

// WithObserver registers a channel receiving a snapshot after every
// recompute. Sends never block, snapshots are dropped if ch is full.
func WithObserver(ch chan<- *model.Snapshot) Option {
	return func(e *Engine) {
		e.observer = ch
	}
}

func WithExporter(x Exporter) Option {
	return func(e *Engine) {
		e.exporter = x
	}
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

func WithCategories(cats ...string) Option {
	return func(e *Engine) {
		e.declared = cats
	}
}

func New(opts ...Option) (*Engine, error) {
	def := config.DefaultTiming()
	ret := &Engine{
		timing:     &def,
		log:        log.Default().Named("engine"),
		riders:     make(map[model.Identity]*model.RiderRecord),
		refids:     make(map[string]model.Identity),
		teamStarts: make(map[string]tod.Tod),
		ctrl:       control.New(),
		tracer:     otel.Tracer("roadtt-engine"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if err := ret.timing.Validate(); err != nil {
		return nil, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	ret.id = id
	ret.matcher = passing.NewMatcher(
		passing.WithTiming(ret.timing),
		passing.WithLogger(ret.log.Named("passing")))
	ret.ranker = ranking.NewRanker(ranking.WithLogger(ret.log.Named("ranking")))
	ret.contests = contest.NewEngine(contest.WithLogger(ret.log.Named("contest")))
	ret.metrics = newEngineMetrics(otel.GetMeterProvider().Meter("roadtt-engine"), ret.log)
	ret.SetCategories(ret.declared)
	ret.placed = ret.ranker.Transfer(ranking.Input{})
	return ret, nil
}

func (e *Engine) ID() uuid.UUID             { return e.id }
func (e *Engine) Mode() Mode                { return e.mode }
func (e *Engine) Timing() config.Timing     { return *e.timing }
func (e *Engine) Control() *control.Control { return e.ctrl }
func (e *Engine) Matcher() *passing.Matcher { return e.matcher }
func (e *Engine) ReadOnly() bool            { return e.readOnly }
func (e *Engine) Finished() bool            { return e.ctrl.Finished() }

// SetReadOnly marks the event read-only, it can no longer be saved.
func (e *Engine) SetReadOnly(ro bool) {
	if ro && !e.readOnly {
		e.log.Warn("Event set read-only")
	}
	e.readOnly = ro
}

// UpdateTiming changes the timing setup. Results are re-indexed when
// the precision changed.
func (e *Engine) UpdateTiming(fn func(t *config.Timing)) error {
	work := *e.timing
	fn(&work)
	if err := work.Validate(); err != nil {
		return err
	}
	reindex := work.Precision != e.timing.Precision
	*e.timing = work
	if reindex {
		e.rebuildIndexes()
	}
	return nil
}

// SetCategories declares the result categories in result order.
// AutoCategories derives them from the riders in roster order.
func (e *Engine) SetCategories(cats []string) {
	e.autoCats = slices.ContainsFunc(cats, func(c string) bool {
		return strings.EqualFold(c, AutoCategories)
	})
	e.declared = make([]string, 0, len(cats))
	if !e.autoCats {
		for _, c := range cats {
			c = strings.ToUpper(strings.TrimSpace(c))
			switch c {
			case "":
				continue
			case "CAT", "SPARE", "TEAM":
				e.log.Warn("Invalid result category", log.String("category", c))
				continue
			}
			if !slices.Contains(e.declared, c) {
				e.declared = append(e.declared, c)
			}
		}
	}
	e.rebuildIndexes()
}

// Categories returns the declared categories, or AutoCategories.
func (e *Engine) Categories() []string {
	if e.autoCats {
		return []string{AutoCategories}
	}
	return slices.Clone(e.declared)
}

// ResultCategories returns the categories results are ranked in.
// The last one is always the uncategorised "".
func (e *Engine) ResultCategories() []string {
	return slices.Clone(e.cats)
}

func (e *Engine) rebuildIndexes() {
	cats := e.declared
	if e.autoCats {
		cats = lo.Uniq(lo.FilterMap(e.order, func(id model.Identity, _ int) (string, bool) {
			c := e.riders[id].PrimaryCategory()
			return c, c != ""
		}))
	}
	e.cats = append(slices.Clone(cats), "")
	e.results = make(map[string]*results.Index, len(e.cats))
	for i := range e.inters {
		e.inters[i] = make(map[string]*results.Index, len(e.cats))
	}
	for _, c := range e.cats {
		e.results[c] = results.NewIndex(c)
		for i := range e.inters {
			e.inters[i][c] = results.NewIndex(c)
		}
	}
	for _, id := range e.order {
		rec := e.riders[id]
		//nolint:errcheck // logged
		e.reindex(rec)
		for slot := range model.MaxSplits {
			//nolint:errcheck // logged
			e.reindexSplit(rec, slot)
		}
	}
}

// riderCat returns the result category of a rider.
func (e *Engine) riderCat(rec *model.RiderRecord) string {
	c := rec.PrimaryCategory()
	if _, ok := e.results[c]; ok {
		return c
	}
	return ""
}

func (e *Engine) SetIntermediates(im []model.Intermediate) {
	e.intermeds = slices.Clone(im)
}

func (e *Engine) Intermediates() []model.Intermediate {
	return slices.Clone(e.intermeds)
}

func (e *Engine) SetContests(c []model.Contest) {
	e.contestDefs = slices.Clone(c)
}

func (e *Engine) Contests() []model.Contest {
	return slices.Clone(e.contestDefs)
}

func (e *Engine) SetTallies(t []model.Tally) {
	e.tallies = slices.Clone(t)
}

func (e *Engine) Tallies() []model.Tally {
	return slices.Clone(e.tallies)
}

func (e *Engine) AddComment(c string) {
	if c = strings.TrimSpace(c); c != "" {
		e.comments = append(e.comments, c)
		e.log.Info("Comment", log.String("text", c))
	}
}

func (e *Engine) Comments() []string {
	return slices.Clone(e.comments)
}

// AddRider adds a rider to the event. Name, category and transponder
// are taken from the directory if the rider is known there.
func (e *Engine) AddRider(ctx context.Context, id model.Identity) error {
	if id.Bib == "" {
		return fmt.Errorf("%w: empty bib", ErrUnknownRider)
	}
	if _, ok := e.riders[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRider, id)
	}
	rec := &model.RiderRecord{ID: id, InRace: true}
	e.riders[id] = rec
	e.order = append(e.order, id)
	if e.dir != nil {
		entry, err := e.dir.ByIdentity(ctx, id)
		switch {
		case err == nil:
			info := RiderInfo{
				Name:      entry.Name(),
				ShortName: entry.ShortName(12),
				Category:  entry.Category,
				Team:      entry.Team,
				RefID:     entry.RefID,
			}
			//nolint:errcheck // rider exists
			e.SetRiderInfo(id, info)
			if entry.Team != "" && entry.TeamStart != nil {
				if _, ok := e.teamStarts[entry.Team]; !ok {
					e.SetTeamStart(entry.Team, entry.TeamStart)
				}
			}
		case errors.Is(err, directory.ErrNotFound):
			e.log.Debug("Rider not in directory", log.String("rider", id.String()))
		default:
			e.log.Warn("Directory lookup failed",
				log.String("rider", id.String()), log.ErrorField(err))
		}
	}
	if start, ok := e.teamStarts[rec.Team]; ok && rec.Team != "" {
		rec.Start = tod.Ptr(start)
	}
	if e.autoCats {
		e.rebuildIndexes()
	}
	return nil
}

// SetRiderInfo replaces the descriptive fields of a rider.
func (e *Engine) SetRiderInfo(id model.Identity, info RiderInfo) error {
	rec, ok := e.riders[id]
	if !ok {
		return e.unknown(id)
	}
	if rec.RefID != "" {
		delete(e.refids, normRefID(rec.RefID))
	}
	rec.Name = info.Name
	rec.ShortName = info.ShortName
	rec.RefID = strings.TrimSpace(info.RefID)
	if rec.RefID != "" {
		if other, ok := e.refids[normRefID(rec.RefID)]; ok && other != id {
			e.log.Warn("Transponder reassigned",
				log.String("refid", rec.RefID),
				log.String("from", other.String()),
				log.String("to", id.String()))
			e.riders[other].RefID = ""
		}
		e.refids[normRefID(rec.RefID)] = id
	}
	teamChanged := rec.Team != info.Team
	rec.Team = info.Team
	if teamChanged && e.mode == ModeTTT {
		if start, ok := e.teamStarts[rec.Team]; ok {
			rec.Start = tod.Ptr(start)
		}
	}
	if rec.Category != info.Category || teamChanged {
		rec.Category = info.Category
		if e.autoCats {
			e.rebuildIndexes()
		} else {
			//nolint:errcheck // logged
			e.reindex(rec)
			for slot := range model.MaxSplits {
				//nolint:errcheck // logged
				e.reindexSplit(rec, slot)
			}
		}
	}
	return nil
}

// DelRider removes a rider from the event.
func (e *Engine) DelRider(id model.Identity) error {
	rec, ok := e.riders[id]
	if !ok {
		return e.unknown(id)
	}
	e.unindex(id)
	if rec.RefID != "" {
		delete(e.refids, normRefID(rec.RefID))
	}
	delete(e.riders, id)
	e.order = slices.DeleteFunc(e.order, func(o model.Identity) bool { return o == id })
	if e.autoCats {
		e.rebuildIndexes()
	}
	e.PlaceTransfer()
	return nil
}

// StartTime sets the scheduled start of a rider, nil clears it.
func (e *Engine) StartTime(id model.Identity, t *tod.Tod) error {
	rec, ok := e.riders[id]
	if !ok {
		return e.unknown(id)
	}
	rec.WallStart = t
	err := e.reindex(rec)
	for slot := range model.MaxSplits {
		//nolint:errcheck // logged
		e.reindexSplit(rec, slot)
	}
	if rec.Finished() {
		e.PlaceTransfer()
	}
	return err
}

// SetTeam moves a rider to another team.
func (e *Engine) SetTeam(id model.Identity, label string) error {
	rec, ok := e.riders[id]
	if !ok {
		return e.unknown(id)
	}
	info := RiderInfo{
		Name: rec.Name, ShortName: rec.ShortName, Category: rec.Category,
		Team: label, RefID: rec.RefID,
	}
	if err := e.SetRiderInfo(id, info); err != nil {
		return err
	}
	e.PlaceTransfer()
	return nil
}

// SetTeamStart sets the start of a team, all members start at t.
func (e *Engine) SetTeamStart(label string, t *tod.Tod) {
	if t == nil {
		delete(e.teamStarts, label)
	} else {
		e.teamStarts[label] = *t
	}
	for _, id := range e.order {
		rec := e.riders[id]
		if rec.Team != label {
			continue
		}
		//nolint:errcheck // logged
		e.setTimes(rec, Times{Start: t, Finish: rec.Finish}, false)
	}
}

func (e *Engine) TeamStart(label string) (tod.Tod, bool) {
	t, ok := e.teamStarts[label]
	return t, ok
}

// Rider returns a copy of the rider record.
func (e *Engine) Rider(id model.Identity) (model.RiderRecord, bool) {
	rec, ok := e.riders[id]
	if !ok {
		return model.RiderRecord{}, false
	}
	return rec.Clone(), true
}

// Riders returns copies of all riders in the current result order.
func (e *Engine) Riders() []model.RiderRecord {
	return lo.Map(e.orderedRecords(), func(r *model.RiderRecord, _ int) model.RiderRecord {
		return r.Clone()
	})
}

// RosterOrder returns the riders in the order they were added.
func (e *Engine) RosterOrder() []model.Identity {
	return slices.Clone(e.order)
}

func (e *Engine) records() []*model.RiderRecord {
	return lo.Map(e.order, func(id model.Identity, _ int) *model.RiderRecord {
		return e.riders[id]
	})
}

// orderedRecords returns riders in place order, riders added after the
// last recompute are appended.
func (e *Engine) orderedRecords() []*model.RiderRecord {
	ret := make([]*model.RiderRecord, 0, len(e.riders))
	seen := make(map[model.Identity]bool, len(e.riders))
	for _, id := range e.placed.Order {
		if rec, ok := e.riders[id]; ok && !seen[id] {
			ret = append(ret, rec)
			seen[id] = true
		}
	}
	for _, id := range e.order {
		if !seen[id] {
			ret = append(ret, e.riders[id])
		}
	}
	return ret
}

func (e *Engine) unknown(id model.Identity) error {
	e.log.Warn("Unregistered rider", log.String("rider", id.String()))
	return fmt.Errorf("%w: %s", ErrUnknownRider, id)
}

func normRefID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type engineMetrics struct {
	impulses   metric.Int64Counter
	recomputes metric.Int64Counter
	busy       metric.Int64Counter
}

func newEngineMetrics(meter metric.Meter, l *log.Logger) engineMetrics {
	var ret engineMetrics
	var err error
	if ret.impulses, err = meter.Int64Counter("rte.engine.impulses",
		metric.WithDescription("Number of processed impulses"),
		metric.WithUnit("{count}")); err != nil {
		l.Error("failed to register metric", log.ErrorField(err))
	}
	if ret.recomputes, err = meter.Int64Counter("rte.engine.recomputes",
		metric.WithDescription("Number of place transfers"),
		metric.WithUnit("{count}")); err != nil {
		l.Error("failed to register metric", log.ErrorField(err))
	}
	if ret.busy, err = meter.Int64Counter("rte.engine.recompute.busy",
		metric.WithDescription("Number of place transfers skipped while in progress"),
		metric.WithUnit("{count}")); err != nil {
		l.Error("failed to register metric", log.ErrorField(err))
	}
	return ret
}
