//nolint:funlen // ok for tests
package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"gotest.tools/v3/assert"

	"github.com/mpapenbr/roadtt-engine/pkg/directory"
	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
	"github.com/mpapenbr/roadtt-engine/testsupport/basedata"
	"github.com/mpapenbr/roadtt-engine/testsupport/tcpostgres"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	testPool = tcpostgres.RiderDirectoryPool()
	defer testPool.Close()
	m.Run()
}

func createSampleRiders(t *testing.T) *Repository {
	t.Helper()
	tcpostgres.ClearRiderTable(testPool)
	repo := NewRepository(testPool)
	for _, e := range basedata.SampleRiders() {
		_, err := repo.Upsert(context.Background(), &e)
		assert.NilError(t, err)
	}
	return repo
}

func TestByRefID(t *testing.T) {
	repo := createSampleRiders(t)
	e, err := repo.ByRefID(context.Background(), "a1234")
	assert.NilError(t, err)
	assert.Equal(t, e.Identity, model.NewIdentity("12", ""))
	assert.Equal(t, e.Name(), "Jane SMITH (ABC)")

	_, err = repo.ByRefID(context.Background(), "")
	assert.ErrorIs(t, err, directory.ErrNotFound)
}

func TestByIdentity(t *testing.T) {
	repo := createSampleRiders(t)
	e, err := repo.ByIdentity(context.Background(), model.NewIdentity("21", ""))
	assert.NilError(t, err)
	assert.Equal(t, e.Team, "T1")
	assert.Assert(t, e.TeamStart != nil)
	assert.Assert(t, e.TeamStart.Equal(tod.FromSeconds(36000)))

	_, err = repo.ByIdentity(context.Background(), model.NewIdentity("99", ""))
	assert.ErrorIs(t, err, directory.ErrNotFound)
}

func TestUpsertReplaces(t *testing.T) {
	repo := createSampleRiders(t)
	_, err := repo.Upsert(context.Background(), &directory.Entry{
		Identity: model.NewIdentity("12", ""), First: "Jane", Last: "Doe", RefID: "B7",
	})
	assert.NilError(t, err)
	all, err := repo.All(context.Background())
	assert.NilError(t, err)
	assert.Equal(t, len(all), 3)
	e, err := repo.ByRefID(context.Background(), "B7")
	assert.NilError(t, err)
	assert.Equal(t, e.Last, "Doe")
}

func TestTeamAndDelete(t *testing.T) {
	repo := createSampleRiders(t)
	members, err := repo.Team(context.Background(), "T1")
	assert.NilError(t, err)
	assert.Equal(t, len(members), 2)

	n, err := repo.DeleteByIdentity(context.Background(), model.NewIdentity("22", ""))
	assert.NilError(t, err)
	assert.Equal(t, n, 1)
	_, err = repo.Team(context.Background(), "T2")
	assert.ErrorIs(t, err, directory.ErrNotFound)
}
