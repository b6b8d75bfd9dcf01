package watch

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/roadtt-engine/log"
	"github.com/mpapenbr/roadtt-engine/pkg/cmd/util"
	"github.com/mpapenbr/roadtt-engine/pkg/config"
	"github.com/mpapenbr/roadtt-engine/pkg/model"
	"github.com/mpapenbr/roadtt-engine/pkg/processing"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
	"github.com/mpapenbr/roadtt-engine/pkg/utils/broadcast"
)

// changes within this duration are reloaded once
const settle = 250 * time.Millisecond

var exportFile string

func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "re-ranks and exports the event whenever its document changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return watchEvent(ctx)
		},
	}
	cmd.Flags().StringVar(&exportFile, "export", "",
		"append result snapshots as JSON lines to this file")
	return cmd
}

func watchEvent(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer util.SetupTelemetry(ctx)()

	if err := util.WaitForServices(ctx); err != nil {
		return err
	}
	worker, closeExport, err := util.ExportWorker(ctx, exportFile)
	if err != nil {
		return err
	}
	defer closeExport()
	base, closeDir, err := util.EngineOptions(ctx)
	if err != nil {
		return err
	}
	defer closeDir()

	snaps := make(chan *model.Snapshot, 1)
	if worker != nil {
		base = append(base, processing.WithExporter(worker))
	}
	base = append(base, processing.WithObserver(snaps))
	w := &watcher{
		path: config.EventFile,
		opts: base,
		log:  log.Default().Named("watch"),
	}
	b := broadcast.New("watch", "snapshots", snaps)
	defer b.Close()
	go logSnapshots(w.log, b.Subscribe())

	w.reloadEvent(ctx)
	return w.watch(ctx)
}

type watcher struct {
	path   string
	opts   []processing.Option
	log    *log.Logger
	engine *processing.Engine
}

// reloadEvent rebuilds the event from its document.
func (w *watcher) reloadEvent(ctx context.Context) {
	e, err := processing.New(w.opts...)
	if err != nil {
		w.log.Error("could not create engine", log.ErrorField(err))
		return
	}
	if err := util.LoadEvent(ctx, e, w.path); err != nil {
		// keep the last good event
		w.log.Error("could not load event", log.String("file", w.path), log.ErrorField(err))
		return
	}
	w.engine = e
	w.log.Info("Event loaded",
		log.String("file", w.path),
		log.String("status", string(e.RaceStatus())),
		log.Int("starters", e.Starters()))
}

//nolint:gocognit // event loop
func (w *watcher) watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	// the directory is watched since documents are replaced on save
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	target := filepath.Clean(w.path)
	var settleC <-chan time.Time
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("context done, stopping watch")
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			w.log.Debug("change detected",
				log.String("file", event.Name), log.String("op", event.Op.String()))
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Rename) {
				settleC = time.After(settle)
			}
		case <-settleC:
			settleC = nil
			w.reloadEvent(ctx)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watcher error", log.ErrorField(err))
		case t := <-tick.C:
			if w.engine != nil {
				w.engine.Tick(tod.FromTime(t))
			}
		}
	}
}

func logSnapshots(l *log.Logger, ch <-chan *model.Snapshot) {
	for snap := range ch {
		l.Info("Results updated",
			log.Uint64("seq", snap.Seq),
			log.String("status", string(snap.Status)))
	}
}
