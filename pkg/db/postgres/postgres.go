// Package postgres opens the connection pool of the rider directory.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/exaring/otelpgx"
	pgxuuid "github.com/jackc/pgx-gofrs-uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpapenbr/roadtt-engine/log"
)

//nolint:lll // ok for interface
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ Querier = (*pgx.Conn)(nil)
	_ Querier = (*pgxpool.Pool)(nil)
	_ Querier = pgx.Tx(nil)
)

type PoolConfigOption func(cfg *pgxpool.Config)

// WithTracer logs every query on the given level
func WithTracer(logger *log.Logger, level log.Level) PoolConfigOption {
	return func(cfg *pgxpool.Config) {
		cfg.ConnConfig.Tracer = &queryLogger{log: logger, level: level}
	}
}

// WithOtlpTracer traces queries with the global otel tracer provider
func WithOtlpTracer() PoolConfigOption {
	return func(cfg *pgxpool.Config) {
		cfg.ConnConfig.Tracer = otelpgx.NewTracer()
	}
}

func WithMaxConns(n int32) PoolConfigOption {
	return func(cfg *pgxpool.Config) {
		cfg.MaxConns = n
	}
}

// Connect creates the pool and checks that a connection can be made.
// The gofrs uuid codecs are registered on every connection.
func Connect(ctx context.Context, url string, opts ...PoolConfigOption) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}
	cfg.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxuuid.Register(conn.TypeMap())
		return nil
	}
	for _, opt := range opts {
		opt(cfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create the database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to get a valid database connection: %w", err)
	}
	return pool, nil
}

type queryLogger struct {
	log   *log.Logger
	level log.Level
}

type queryStartKey struct{}

func (q *queryLogger) TraceQueryStart(
	ctx context.Context,
	_ *pgx.Conn,
	data pgx.TraceQueryStartData,
) context.Context {
	if q.level <= log.DebugLevel {
		q.log.Debug("Executing", log.String("sql", data.SQL), log.Any("args", data.Args))
	} else {
		q.log.Info("Executing", log.String("sql", data.SQL))
	}
	return context.WithValue(ctx, queryStartKey{}, time.Now())
}

//nolint:whitespace // can't make the linters happy
func (q *queryLogger) TraceQueryEnd(
	ctx context.Context,
	_ *pgx.Conn,
	data pgx.TraceQueryEndData,
) {
	var took time.Duration
	if start, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		took = time.Since(start)
	}
	if data.Err != nil {
		q.log.Warn("Query failed", log.ErrorField(data.Err), log.Duration("took", took))
		return
	}
	q.log.Debug("Query done",
		log.String("tag", data.CommandTag.String()), log.Duration("took", took))
}
