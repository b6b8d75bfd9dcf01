//nolint:whitespace // can't make both editor and linter happy
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/mpapenbr/roadtt-engine/pkg/db/postgres"
	"github.com/mpapenbr/roadtt-engine/pkg/directory"
	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

const selectRider = `
	select id, bib, series, first_name, last_name, org, category, refid,
	team, team_start
	from rider`

// Repository is a rider directory stored in postgres.
type Repository struct {
	conn postgres.Querier
}

var _ directory.Directory = (*Repository)(nil)

func NewRepository(conn postgres.Querier) *Repository {
	return &Repository{conn: conn}
}

// Upsert stores an entry, replacing the one with the same identity.
// It returns the row id.
func (r *Repository) Upsert(ctx context.Context, e *directory.Entry) (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, err
	}
	var teamStart *string
	if e.TeamStart != nil {
		s := e.TeamStart.RawTime(-1)
		teamStart = &s
	}
	row := r.conn.QueryRow(ctx, `
	insert into rider (
		id, bib, series, first_name, last_name, org, category, refid,
		team, team_start
	) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	on conflict (bib, series) do update set
		first_name=excluded.first_name, last_name=excluded.last_name,
		org=excluded.org, category=excluded.category, refid=excluded.refid,
		team=excluded.team, team_start=excluded.team_start
	returning id
	`,
		id, e.Identity.Bib, e.Identity.Series, e.First, e.Last, e.Org,
		e.Category, e.RefID, e.Team, teamStart,
	)
	var ret uuid.UUID
	if err := row.Scan(&ret); err != nil {
		return uuid.Nil, err
	}
	return ret, nil
}

func (r *Repository) ByRefID(ctx context.Context, refid string) (*directory.Entry, error) {
	return r.one(ctx, selectRider+" where lower(refid)=lower($1) and refid <> ''", refid)
}

func (r *Repository) ByIdentity(ctx context.Context, id model.Identity) (
	*directory.Entry, error,
) {
	return r.one(ctx, selectRider+" where bib=$1 and series=$2", id.Bib, id.Series)
}

func (r *Repository) Team(ctx context.Context, label string) ([]directory.Entry, error) {
	ret, err := r.many(ctx, selectRider+" where team=$1 order by bib, series", label)
	if err != nil {
		return nil, err
	}
	if len(ret) == 0 {
		return nil, directory.ErrNotFound
	}
	return ret, nil
}

// All returns all riders of the directory.
func (r *Repository) All(ctx context.Context) ([]directory.Entry, error) {
	return r.many(ctx, selectRider+" order by bib, series")
}

// DeleteByIdentity deletes an entry, returns number of rows deleted.
func (r *Repository) DeleteByIdentity(ctx context.Context, id model.Identity) (int, error) {
	cmdTag, err := r.conn.Exec(ctx,
		"delete from rider where bib=$1 and series=$2", id.Bib, id.Series)
	if err != nil {
		return 0, err
	}
	return int(cmdTag.RowsAffected()), nil
}

func (r *Repository) one(ctx context.Context, sql string, args ...any) (
	*directory.Entry, error,
) {
	e, err := scanEntry(r.conn.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, directory.ErrNotFound
	}
	return e, err
}

func (r *Repository) many(ctx context.Context, sql string, args ...any) (
	[]directory.Entry, error,
) {
	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ret := make([]directory.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, *e)
	}
	return ret, rows.Err()
}

func scanEntry(row pgx.Row) (*directory.Entry, error) {
	var (
		id        uuid.UUID
		bib, ser  string
		teamStart *string
		item      directory.Entry
	)
	if err := row.Scan(
		&id, &bib, &ser, &item.First, &item.Last, &item.Org, &item.Category,
		&item.RefID, &item.Team, &teamStart,
	); err != nil {
		return nil, err
	}
	item.Identity = model.NewIdentity(bib, ser)
	if teamStart != nil {
		t, err := tod.Parse(*teamStart)
		if err != nil {
			return nil, fmt.Errorf("team start of rider %s: %w", item.Identity, err)
		}
		item.TeamStart = tod.Ptr(t)
	}
	return &item, nil
}
