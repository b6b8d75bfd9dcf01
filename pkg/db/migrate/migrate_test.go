package migrate

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"postgresql", "postgresql://u:p@db:5432/rte", "pgx5://u:p@db:5432/rte"},
		{"postgres", "postgres://u:p@db/rte?sslmode=disable", "pgx5://u:p@db/rte?sslmode=disable"},
		{"driver url kept", "pgx5://u:p@db/rte", "pgx5://u:p@db/rte"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, driverURL(tt.in))
		})
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "1", Status{Version: 1}.String())
	assert.Equal(t, "2 (dirty)", Status{Version: 2, Dirty: true}.String())
}

func TestMigrationsPaired(t *testing.T) {
	ups, err := fs.Glob(migrations, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrations, "migrations/*.down.sql")
	require.NoError(t, err)
	assert.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}
