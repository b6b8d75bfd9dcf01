//nolint:errcheck // testsetup
package tcpostgres

import (
	"context"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpapenbr/roadtt-engine/pkg/db/migrate"
	database "github.com/mpapenbr/roadtt-engine/pkg/db/postgres"
)

// RiderDirectoryPool returns a pool to a migrated rider directory with
// no riders. TESTDB_URL selects an external database instead of a
// container. Setup failures end the test binary.
func RiderDirectoryPool() *pgxpool.Pool {
	ctx := context.Background()
	dbURL := os.Getenv("TESTDB_URL")
	if dbURL == "" {
		c, err := Start(ctx, WithContainerName("roadtt-engine-test"))
		if err != nil {
			log.Fatal(err)
		}
		if dbURL, err = c.URL(ctx); err != nil {
			log.Fatal(err)
		}
	}
	st, err := migrate.Up(dbURL, 0)
	if err != nil {
		log.Fatal(err)
	}
	if st.Version == 0 {
		log.Fatal("rider directory schema missing after migration")
	}
	pool, err := database.Connect(ctx, dbURL)
	if err != nil {
		log.Fatal(err)
	}
	ClearRiderTable(pool)
	return pool
}

func ClearRiderTable(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from rider")
}
