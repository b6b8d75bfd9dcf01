// Package util holds the setup shared by the rte commands.
package util

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"

	"github.com/mpapenbr/roadtt-engine/log"
	"github.com/mpapenbr/roadtt-engine/pkg/catalog"
	"github.com/mpapenbr/roadtt-engine/pkg/config"
	"github.com/mpapenbr/roadtt-engine/pkg/db/postgres"
	"github.com/mpapenbr/roadtt-engine/pkg/directory"
	dirpg "github.com/mpapenbr/roadtt-engine/pkg/directory/postgres"
	"github.com/mpapenbr/roadtt-engine/pkg/eventdoc"
	"github.com/mpapenbr/roadtt-engine/pkg/processing"
	"github.com/mpapenbr/roadtt-engine/pkg/utils"
)

// directory entries are cached this long
const directoryExpiration = 5 * time.Minute

func ParseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// SetupLogger installs the default logger according to the log flags.
func SetupLogger() error {
	opts := []log.Option{log.WithCaller(true), log.AddCallerSkip(1)}
	if config.LogFilter != "" {
		filter, err := log.FilterOption(config.LogFilter)
		if err != nil {
			return fmt.Errorf("log filter: %w", err)
		}
		opts = append(opts, filter)
	}
	var logger *log.Logger
	switch config.LogFormat {
	case "json":
		logger = log.New(os.Stderr, ParseLogLevel(config.LogLevel, log.InfoLevel), opts...)
	default:
		logger = log.DevLogger(os.Stderr, ParseLogLevel(config.LogLevel, log.InfoLevel), opts...)
	}
	log.ResetDefault(logger)
	return nil
}

// SetupTelemetry enables telemetry if requested. The returned function
// shuts it down.
func SetupTelemetry(ctx context.Context) func() {
	if !config.EnableTelemetry {
		return func() {}
	}
	log.Info("Enabling telemetry", log.String("endpoint", config.TelemetryEndpoint))
	telemetry, err := config.SetupTelemetry(ctx)
	if err != nil {
		log.Warn("Could not setup telemetry", log.ErrorField(err))
		return func() {}
	}
	return telemetry.Shutdown
}

func waitTimeout() time.Duration {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}
	return timeout
}

// WaitForDB waits until the database accepts connections.
func WaitForDB(ctx context.Context) error {
	return utils.WaitForTCP(ctx, utils.ExtractFromDBURL(config.DB), waitTimeout())
}

// WaitForNats waits until the NATS server accepts connections.
func WaitForNats(ctx context.Context) error {
	return utils.WaitForTCP(ctx, utils.ExtractFromNatsURL(config.NatsURL), waitTimeout())
}

// WaitForServices waits concurrently for the configured database and
// NATS server.
func WaitForServices(ctx context.Context) error {
	var addrs []string
	if config.DB != "" && config.RidersFile == "" {
		addrs = append(addrs, utils.ExtractFromDBURL(config.DB))
	}
	if config.NatsURL != "" {
		addrs = append(addrs, utils.ExtractFromNatsURL(config.NatsURL))
	}
	return utils.WaitForAll(ctx, waitTimeout(), addrs...)
}

// OpenDB connects to the rider directory database.
func OpenDB(ctx context.Context, extra ...postgres.PoolConfigOption) (*pgxpool.Pool, error) {
	if err := WaitForDB(ctx); err != nil {
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	opts := []postgres.PoolConfigOption{}
	if config.EnableTelemetry {
		opts = append(opts, postgres.WithOtlpTracer())
	} else {
		opts = append(opts, postgres.WithTracer(
			log.Default().Named("sql"),
			ParseLogLevel(config.SQLLogLevel, log.DebugLevel)))
	}
	return postgres.Connect(ctx, config.DB, append(opts, extra...)...)
}

// Directory returns the rider directory selected by the flags: a JSON
// rider export, the database or none. The returned function releases
// its resources.
func Directory(ctx context.Context) (directory.Directory, func(), error) {
	switch {
	case config.RidersFile != "":
		data, err := os.ReadFile(config.RidersFile)
		if err != nil {
			return nil, nil, err
		}
		entries, err := directory.LoadJSON(data, config.RidersPath)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Riders loaded",
			log.String("file", config.RidersFile), log.Int("riders", len(entries)))
		return directory.NewMemory(entries...), func() {}, nil
	case config.DB != "":
		pool, err := OpenDB(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("rider directory: %w", err)
		}
		cached := directory.NewCached(dirpg.NewRepository(pool), directoryExpiration)
		release := func() {
			st := cached.Stats()
			log.Debug("Rider lookups",
				log.Int("hits", st.Hits), log.Int("misses", st.Misses),
				log.Int("failed", st.Failed), log.Float("hitRatio", st.HitRatio()))
			pool.Close()
		}
		return cached, release, nil
	default:
		return nil, func() {}, nil
	}
}

// EngineOptions returns the engine options selected by the config file
// and the flags. The returned function releases the rider directory.
func EngineOptions(ctx context.Context) ([]processing.Option, func(), error) {
	timing, err := config.LoadTiming(viper.GetViper())
	if err != nil {
		return nil, nil, fmt.Errorf("timing: %w", err)
	}
	mode, err := processing.ParseMode(config.Mode)
	if err != nil {
		return nil, nil, err
	}
	var cat *catalog.Catalog
	if config.CatalogFile != "" {
		if cat, err = catalog.Load(config.CatalogFile); err != nil {
			return nil, nil, err
		}
	}
	dir, closeDir, err := Directory(ctx)
	if err != nil {
		return nil, nil, err
	}
	opts := []processing.Option{
		processing.WithTiming(timing),
		processing.WithMode(mode),
		processing.WithLogger(log.Default().Named("engine")),
	}
	if dir != nil {
		opts = append(opts, processing.WithDirectory(dir))
	}
	if cats := Categories(); len(cats) > 0 {
		opts = append(opts, processing.WithCategories(cats...))
	}
	if cat != nil {
		opts = append(opts, processing.WithCatalog(cat))
	}
	return opts, closeDir, nil
}

// NewEngine builds an engine from the config file and the flags.
func NewEngine(ctx context.Context, opts ...processing.Option) (*processing.Engine, func(), error) {
	base, closeDir, err := EngineOptions(ctx)
	if err != nil {
		return nil, nil, err
	}
	e, err := processing.New(append(base, opts...)...)
	if err != nil {
		closeDir()
		return nil, nil, err
	}
	return e, closeDir, nil
}

// Categories returns the declared result categories.
func Categories() []string {
	if config.Categories == "" {
		return nil
	}
	return strings.Fields(strings.ReplaceAll(config.Categories, ",", " "))
}

// LoadEvent reads the event document into e. A missing document is not
// an error, the event starts empty.
func LoadEvent(ctx context.Context, e *processing.Engine, path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Info("New event", log.String("file", path))
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	doc, err := eventdoc.Load(f)
	if err != nil {
		return err
	}
	return eventdoc.Apply(ctx, e, doc)
}

// SaveEvent writes the event document atomically.
func SaveEvent(e *processing.Engine, path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := eventdoc.Save(f, e); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
