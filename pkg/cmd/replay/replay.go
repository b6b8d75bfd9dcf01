package replay

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mpapenbr/roadtt-engine/log"
	"github.com/mpapenbr/roadtt-engine/pkg/cmd/util"
	"github.com/mpapenbr/roadtt-engine/pkg/config"
	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/processing"
)

var (
	passingsFile string
	exportFile   string
	speed        int
	fastForward  string
	save         bool
)

func NewReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "feeds recorded passings through the event loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return replayEvent(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&passingsFile, "passings", "p", "",
		"CSV file with recorded passings (time,channel,refid,source,origin)")
	cmd.Flags().StringVar(&exportFile, "export", "",
		"append result snapshots as JSON lines to this file")
	cmd.Flags().IntVar(&speed, "speed", 0,
		"Replay speed (0 means: go as fast as possible)")
	cmd.Flags().StringVar(&fastForward, "fast-forward", "",
		"replay this duration with max speed")
	cmd.Flags().BoolVar(&save, "save", false,
		"save the event document after the replay")
	//nolint:errcheck // flag exists
	cmd.MarkFlagRequired("passings")
	return cmd
}

func replayEvent(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer util.SetupTelemetry(ctx)()

	if err := util.WaitForServices(ctx); err != nil {
		return err
	}
	imps, err := readPassingsFile(passingsFile)
	if err != nil {
		return err
	}
	worker, closeExport, err := util.ExportWorker(ctx, exportFile)
	if err != nil {
		return err
	}
	defer closeExport()
	opts := []processing.Option{}
	if worker != nil {
		opts = append(opts, processing.WithExporter(worker))
	}
	e, closeDir, err := util.NewEngine(ctx, opts...)
	if err != nil {
		return err
	}
	defer closeDir()
	if err := util.LoadEvent(ctx, e, config.EventFile); err != nil {
		return err
	}

	taskOpts := []TaskOption{WithSpeed(speed)}
	if fastForward != "" {
		ff, err := time.ParseDuration(fastForward)
		if err != nil {
			return err
		}
		taskOpts = append(taskOpts, WithFastForward(ff))
	}
	task := NewTask(taskOpts...)

	impulses := make(chan model.Impulse)
	commands := make(chan processing.Command)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.Run(gctx, impulses, commands, nil)
	})
	g.Go(func() error {
		return task.Replay(gctx, imps, impulses, commands)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("Replay done",
		log.Int("impulses", len(imps)),
		log.String("status", string(e.RaceStatus())),
		log.Int("starters", e.Starters()))

	if save {
		if err := util.SaveEvent(e, config.EventFile); err != nil {
			return err
		}
		log.Info("Event saved", log.String("file", config.EventFile))
	}
	return nil
}

func readPassingsFile(path string) ([]model.Impulse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadPassings(f)
}
