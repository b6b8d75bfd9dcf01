package migrate

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/roadtt-engine/log"
	"github.com/mpapenbr/roadtt-engine/pkg/cmd/util"
	"github.com/mpapenbr/roadtt-engine/pkg/config"
	dbmigrate "github.com/mpapenbr/roadtt-engine/pkg/db/migrate"
)

var (
	steps      int
	statusOnly bool
)

func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "creates or updates the rider directory tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startMigration(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "apply at most this many migrations (0: all)")
	cmd.Flags().BoolVar(&statusOnly, "status", false, "only report the schema version")
	return cmd
}

func startMigration(ctx context.Context) error {
	if config.DB == "" {
		return errors.New("no database configured (--db)")
	}
	if err := util.WaitForDB(ctx); err != nil {
		return err
	}
	if statusOnly {
		st, err := dbmigrate.Current(config.DB)
		if err != nil {
			return err
		}
		log.Info("Schema version", log.Stringer("version", st))
		return nil
	}
	st, err := dbmigrate.Up(config.DB, steps)
	if err != nil {
		log.Error("Migration failed", log.ErrorField(err))
		return err
	}
	log.Info("Database is up to date", log.Stringer("version", st))
	return nil
}
