package infra

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// SQLExecutor is the query surface repositories depend on.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

// ErrMissingMarker is returned for statements without a leading "--sql <uuid>" line.
var ErrMissingMarker = errors.New("sql marker missing or invalid")

var markerRegexp = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// DefaultSlowStatement is the latency above which a statement is logged at warn.
// Counter upserts sit on the identification path, so the bar is low.
const DefaultSlowStatement = 250 * time.Millisecond

// SQLRunner executes marker-audited statements against the pool. Every statement
// must start with its marker line so log entries can be traced back to source.
type SQLRunner struct {
	Pool   *pgxpool.Pool
	Logger zerolog.Logger
	// Slow overrides DefaultSlowStatement when positive.
	Slow time.Duration

	parsed sync.Map // query -> markedStatement
}

type markedStatement struct {
	marker string
	body   string
}

func NewSQLRunner(pool *pgxpool.Pool, logger zerolog.Logger) *SQLRunner {
	return &SQLRunner{Pool: pool, Logger: logger.With().Str("component", "sql").Logger()}
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	stmt, err := r.statement(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	start := time.Now()
	tag, err := r.Pool.Exec(ctx, stmt.body, args...)
	if err != nil {
		r.Logger.Error().Err(err).Str("marker", stmt.marker).Msg("exec failed")
		return tag, err
	}
	r.observe(stmt.marker, "exec", time.Since(start)).Int64("rows", tag.RowsAffected()).Send()
	return tag, nil
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	stmt, err := r.statement(query)
	if err != nil {
		return errorRow{err: err}
	}
	row := r.Pool.QueryRow(ctx, stmt.body, args...)
	return loggingRow{row: row, runner: r, marker: stmt.marker, start: time.Now()}
}

func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	stmt, err := r.statement(query)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := r.Pool.Query(ctx, stmt.body, args...)
	if err != nil {
		r.Logger.Error().Err(err).Str("marker", stmt.marker).Msg("query failed")
		return nil, err
	}
	return loggingRows{Rows: rows, runner: r, marker: stmt.marker, start: start}, nil
}

// statement parses query once; the repositories only ever pass constants.
func (r *SQLRunner) statement(query string) (markedStatement, error) {
	if v, ok := r.parsed.Load(query); ok {
		return v.(markedStatement), nil
	}
	marker, body, err := extractMarker(query)
	if err != nil {
		return markedStatement{}, err
	}
	stmt := markedStatement{marker: marker, body: body}
	r.parsed.Store(query, stmt)
	return stmt, nil
}

func (r *SQLRunner) observe(marker, op string, took time.Duration) *zerolog.Event {
	slow := r.Slow
	if slow <= 0 {
		slow = DefaultSlowStatement
	}
	event := r.Logger.Debug()
	if took >= slow {
		event = r.Logger.Warn().Bool("slow", true)
	}
	return event.Str("marker", marker).Str("op", op).Dur("took", took)
}

type loggingRow struct {
	row    pgx.Row
	runner *SQLRunner
	marker string
	start  time.Time
}

// Scan logs failures other than an empty result, which callers treat as data.
func (l loggingRow) Scan(dest ...any) error {
	err := l.row.Scan(dest...)
	if err != nil && !IsNoRows(err) {
		l.runner.Logger.Error().Err(err).Str("marker", l.marker).Msg("scan failed")
		return err
	}
	l.runner.observe(l.marker, "query_row", time.Since(l.start)).Send()
	return err
}

type loggingRows struct {
	pgx.Rows
	runner *SQLRunner
	marker string
	start  time.Time
}

func (l loggingRows) Close() {
	l.Rows.Close()
	if err := l.Rows.Err(); err != nil {
		l.runner.Logger.Error().Err(err).Str("marker", l.marker).Msg("rows failed")
		return
	}
	l.runner.observe(l.marker, "query", time.Since(l.start)).Send()
}

type errorRow struct {
	err error
}

func (e errorRow) Scan(dest ...any) error {
	return e.err
}

func extractMarker(query string) (marker, body string, err error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", "", errors.New("empty query")
	}
	first, rest, _ := strings.Cut(trimmed, "\n")
	first = strings.TrimSpace(first)
	if !markerRegexp.MatchString(first) {
		return "", "", ErrMissingMarker
	}
	if strings.TrimSpace(rest) == "" {
		return "", "", errors.New("sql marker without statement")
	}
	return strings.TrimPrefix(first, "--sql "), rest, nil
}

var _ SQLExecutor = (*SQLRunner)(nil)
