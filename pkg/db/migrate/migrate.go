// Package migrate keeps the rider directory schema current.
package migrate

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrations embed.FS

// Status is the schema version recorded in the database. Version 0
// means no migration was applied yet.
type Status struct {
	Version uint
	Dirty   bool
}

func (s Status) String() string {
	if s.Dirty {
		return fmt.Sprintf("%d (dirty)", s.Version)
	}
	return fmt.Sprintf("%d", s.Version)
}

// driverURL maps postgres URLs onto the pgx/v5 migrate driver.
func driverURL(dbURL string) string {
	for _, scheme := range []string{"postgresql://", "postgres://"} {
		if rest, ok := strings.CutPrefix(dbURL, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return dbURL
}

func open(dbURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, err
	}
	return migrate.NewWithSourceInstance("iofs", source, driverURL(dbURL))
}

func current(m *migrate.Migrate) (Status, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, err
	}
	return Status{Version: v, Dirty: dirty}, nil
}

// Current reports the schema version without changing anything.
func Current(dbURL string) (Status, error) {
	m, err := open(dbURL)
	if err != nil {
		return Status{}, err
	}
	defer m.Close()
	return current(m)
}

// Up applies pending migrations. steps limits the number applied,
// 0 applies all of them. It returns the resulting schema version.
func Up(dbURL string, steps int) (Status, error) {
	m, err := open(dbURL)
	if err != nil {
		return Status{}, err
	}
	defer m.Close()

	before, err := current(m)
	if err != nil {
		return Status{}, err
	}
	if before.Dirty {
		return before, fmt.Errorf("schema version %d is dirty", before.Version)
	}
	if steps > 0 {
		err = m.Steps(steps)
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return Status{}, err
	}
	return current(m)
}
