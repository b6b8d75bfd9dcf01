package eventdoc

import (
	"context"
	"errors"
	"io"

	"github.com/aarondl/opt/null"
	"github.com/samber/lo"

	"github.com/mpapenbr/roadtt-engine/log"
	"github.com/mpapenbr/roadtt-engine/pkg/config"
	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/processing"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

// Save writes the engine state. Read-only events are never saved.
func Save(w io.Writer, e *processing.Engine) error {
	if e.ReadOnly() {
		log.Error("Attempt to save read-only event", log.String("event", e.ID().String()))
		return processing.ErrReadOnly
	}
	return FromEngine(e).Write(w)
}

// FromEngine converts the engine state into a document.
func FromEngine(e *processing.Engine) *Document {
	timing := e.Timing()
	start, lstart := e.Control().Start()
	ret := &Document{
		ID:        FormatID,
		Start:     null.FromPtr(start),
		LStart:    null.FromPtr(lstart),
		MinElap:   null.From(timing.MinElap),
		StartGap:  null.From(timing.StartGap),
		Precision: null.From(timing.Precision),
	}
	ret.Intermeds = lo.Map(e.Intermediates(), func(im model.Intermediate, _ int) Intermediate {
		return Intermediate{
			ID:     im.ID,
			Descr:  text(im.Descr),
			Abbr:   text(im.Abbr),
			Dist:   null.FromPtr(im.Dist),
			Show:   im.Show,
			Places: text(im.Places),
		}
	})
	ret.Contests = lo.Map(e.Contests(), func(c model.Contest, _ int) Contest {
		return Contest{
			ID:        c.ID,
			Descr:     text(c.Descr),
			Source:    c.Source,
			Tally:     text(c.Tally),
			Labels:    c.Labels,
			Bonuses:   c.Bonuses,
			Points:    c.Points,
			AllSource: c.AllSource,
			Category:  c.Category,
		}
	})
	ret.Tallys = lo.Map(e.Tallies(), func(t model.Tally, _ int) Tally {
		return Tally{ID: t.ID, Descr: text(t.Descr), KeepDNF: t.KeepDNF}
	})
	ret.Riders = make([]Rider, 0)
	for _, id := range e.RosterOrder() {
		rec, ok := e.Rider(id)
		if !ok {
			continue
		}
		r := Rider{
			ID:           rec.ID.String(),
			Name:         text(rec.Name),
			ShortName:    text(rec.ShortName),
			Category:     text(rec.Category),
			Team:         text(rec.Team),
			RefID:        text(rec.RefID),
			WallStart:    null.FromPtr(rec.WallStart),
			Start:        null.FromPtr(rec.Start),
			Finish:       null.FromPtr(rec.Finish),
			Penalty:      null.FromPtr(rec.Penalty),
			Passes:       rec.Passes,
			LastSeen:     null.FromPtr(rec.LastSeen),
			Status:       text(string(rec.Status)),
			StageBonus:   null.FromPtr(rec.StageBonus),
			StagePenalty: null.FromPtr(rec.StagePenalty),
			Place:        text(rec.Place),
		}
		for slot, t := range rec.Splits {
			r.Splits[slot] = null.FromPtr(t)
		}
		ret.Riders = append(ret.Riders, r)
	}
	return ret
}

// Apply loads a document into the engine. Rider times are restored
// without ranking, places are computed once at the end. A version
// mismatch marks the engine read-only; loading continues.
func Apply(ctx context.Context, e *processing.Engine, d *Document) error {
	logger := log.GetFromContext(ctx).Named("eventdoc")
	if err := d.CheckVersion(); err != nil {
		logger.Warn("Event set read-only", log.ErrorField(err))
		e.SetReadOnly(true)
	}
	if err := e.UpdateTiming(func(t *config.Timing) {
		if v, ok := d.MinElap.Get(); ok {
			t.MinElap = v
		}
		if v, ok := d.StartGap.Get(); ok {
			t.StartGap = v
		}
		if v, ok := d.Precision.Get(); ok {
			t.Precision = v
		}
	}); err != nil {
		return err
	}
	e.SetIntermediates(lo.Map(d.Intermeds, func(im Intermediate, _ int) model.Intermediate {
		return model.Intermediate{
			ID:     im.ID,
			Descr:  im.Descr.GetOrZero(),
			Abbr:   im.Abbr.GetOrZero(),
			Dist:   im.Dist.Ptr(),
			Show:   im.Show,
			Places: im.Places.GetOrZero(),
		}
	}))
	e.SetContests(lo.Map(d.Contests, func(c Contest, _ int) model.Contest {
		return model.Contest{
			ID:        c.ID,
			Descr:     c.Descr.GetOrZero(),
			Source:    c.Source,
			Tally:     c.Tally.GetOrZero(),
			Labels:    c.Labels,
			Bonuses:   c.Bonuses,
			Points:    c.Points,
			AllSource: c.AllSource,
			Category:  c.Category,
		}
	}))
	e.SetTallies(lo.Map(d.Tallys, func(t Tally, _ int) model.Tally {
		return model.Tally{ID: t.ID, Descr: t.Descr.GetOrZero(), KeepDNF: t.KeepDNF}
	}))

	return e.Batch(func() error {
		var errs []error
		for i := range d.Riders {
			if err := applyRider(ctx, e, &d.Riders[i]); err != nil {
				logger.Error("Rider not restored",
					log.String("rider", d.Riders[i].ID), log.ErrorField(err))
				errs = append(errs, err)
			}
		}
		if start, ok := d.Start.Get(); ok {
			e.RestoreStart(start, d.LStart.Ptr())
		}
		return errors.Join(errs...)
	})
}

func applyRider(ctx context.Context, e *processing.Engine, r *Rider) error {
	id := model.ParseIdentity(r.ID)
	if err := e.AddRider(ctx, id); err != nil {
		return err
	}
	cur, _ := e.Rider(id)
	if err := e.SetRiderInfo(id, processing.RiderInfo{
		Name:      r.Name.GetOr(cur.Name),
		ShortName: r.ShortName.GetOr(cur.ShortName),
		Category:  r.Category.GetOr(cur.Category),
		Team:      r.Team.GetOr(cur.Team),
		RefID:     r.RefID.GetOr(cur.RefID),
	}); err != nil {
		return err
	}
	var errs []error
	errs = append(errs, e.SetTimes(id, processing.Times{
		Wall:    r.WallStart.Ptr(),
		Start:   r.Start.Ptr(),
		Finish:  r.Finish.Ptr(),
		Penalty: r.Penalty.Ptr(),
	}))
	for slot, v := range r.Splits {
		if t, ok := v.Get(); ok {
			_, err := e.SetInter(id, slot, tod.Ptr(t))
			errs = append(errs, err)
		}
	}
	errs = append(errs, e.SetPasses(id, r.Passes, r.LastSeen.Ptr()))
	if s := r.Status.GetOrZero(); s != "" {
		st, err := model.ParseStatus(s)
		if err == nil {
			err = e.SetStatus([]model.Identity{id}, st)
		}
		errs = append(errs, err)
	}
	if v, ok := r.StageBonus.Get(); ok {
		errs = append(errs, e.SetStageBonus(id, tod.Ptr(v)))
	}
	if v, ok := r.StagePenalty.Get(); ok {
		errs = append(errs, e.SetStagePenalty(id, tod.Ptr(v)))
	}
	return errors.Join(errs...)
}

// text maps empty strings to null.
func text(s string) null.Val[string] {
	return null.FromCond(s, s != "")
}
