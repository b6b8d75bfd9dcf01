package riders

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/roadtt-engine/log"
	"github.com/mpapenbr/roadtt-engine/pkg/cmd/util"
	"github.com/mpapenbr/roadtt-engine/pkg/config"
	"github.com/mpapenbr/roadtt-engine/pkg/db/postgres"
	"github.com/mpapenbr/roadtt-engine/pkg/directory"
	dirpg "github.com/mpapenbr/roadtt-engine/pkg/directory/postgres"
)

func NewRidersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "riders",
		Short: "manages the rider directory database",
	}
	cmd.AddCommand(newImportCmd(), newListCmd())
	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "imports a JSON rider export into the database",
		Long: `Imports the riders selected by --riders-path from a JSON export.
Existing riders with the same identity are replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return importRiders(cmdContext(cmd), args[0])
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "lists the riders of the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRiders(cmdContext(cmd), cmd)
		},
	}
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func importRiders(ctx context.Context, path string) error {
	if config.DB == "" {
		return errors.New("no database configured (--db)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	entries, err := directory.LoadJSON(data, config.RidersPath)
	if err != nil {
		return err
	}
	pool, err := util.OpenDB(ctx, postgres.WithMaxConns(2))
	if err != nil {
		return err
	}
	defer pool.Close()
	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		repo := dirpg.NewRepository(tx)
		for i := range entries {
			if _, err := repo.Upsert(ctx, &entries[i]); err != nil {
				return fmt.Errorf("rider %s: %w", entries[i].Identity, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Info("Riders imported", log.String("file", path), log.Int("riders", len(entries)))
	return nil
}

func listRiders(ctx context.Context, cmd *cobra.Command) error {
	if config.DB == "" {
		return errors.New("no database configured (--db)")
	}
	pool, err := util.OpenDB(ctx, postgres.WithMaxConns(2))
	if err != nil {
		return err
	}
	defer pool.Close()
	entries, err := dirpg.NewRepository(pool).All(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for i := range entries {
		e := &entries[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.Identity, e.Name(), e.Category, e.RefID, e.Team)
	}
	return tw.Flush()
}
