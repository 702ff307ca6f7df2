package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
)

const (
	defaultStatementTimeout = 30 * time.Second
	defaultMaxRows          = 500
)

// PostgresConfig configures the pgx-backed querier.
type PostgresConfig struct {
	Logger           *slog.Logger
	Pool             *pgxpool.Pool
	StatementTimeout time.Duration
	MaxRows          int
	Clock            clockwork.Clock
}

func (cfg *PostgresConfig) Validate() error {
	if cfg.Pool == nil {
		return errors.New("pgx pool is required")
	}
	if cfg.StatementTimeout == 0 {
		cfg.StatementTimeout = defaultStatementTimeout
	}
	if cfg.StatementTimeout < 0 {
		return errors.New("statement timeout must be positive")
	}
	if cfg.MaxRows == 0 {
		cfg.MaxRows = defaultMaxRows
	}
	if cfg.MaxRows < 0 {
		return errors.New("max rows must be positive")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// PostgresQuerier executes SQL against a pooled, read-only Postgres
// connection. The pool may be shared across sessions; each call runs with
// its own statement timeout and row ceiling.
type PostgresQuerier struct {
	log   *slog.Logger
	cfg   *PostgresConfig
	clock clockwork.Clock
}

// NewPostgresQuerier creates a querier over the given pool.
func NewPostgresQuerier(cfg *PostgresConfig) (*PostgresQuerier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PostgresQuerier{log: cfg.Logger, cfg: cfg, clock: cfg.Clock}, nil
}

// Query implements Querier. Database faults come back inside the Result so
// the caller can route them through the error-feedback path.
func (q *PostgresQuerier) Query(ctx context.Context, sql string) (Result, error) {
	start := q.clock.Now()

	ctx, cancel := context.WithTimeout(ctx, q.cfg.StatementTimeout)
	defer cancel()

	rows, err := q.execute(ctx, sql)
	duration := q.clock.Since(start)

	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			// Caller went away; nothing to report into the session.
			return Result{}, ctx.Err()
		}
		if q.log != nil {
			q.log.Debug("executor: query failed", "error", err, "duration", duration)
		}
		return Result{
			SQL:      sql,
			Success:  false,
			Error:    normalizeDBError(err, q.cfg.StatementTimeout),
			Duration: duration,
		}, nil
	}

	rows.Duration = duration
	if q.log != nil {
		q.log.Debug("executor: query succeeded", "rows", rows.Count, "duration", duration)
	}
	return rows, nil
}

func (q *PostgresQuerier) execute(ctx context.Context, sql string) (Result, error) {
	conn, err := q.cfg.Pool.Acquire(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	// Per-call timeout enforced server side too, so a disconnecting caller
	// does not leave the statement running.
	timeoutMS := q.cfg.StatementTimeout.Milliseconds()
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET statement_timeout = %d", timeoutMS)); err != nil {
		return Result{}, fmt.Errorf("set statement timeout: %w", err)
	}

	pgRows, err := conn.Query(ctx, sql)
	if err != nil {
		return Result{}, err
	}
	defer pgRows.Close()

	fields := pgRows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	result := Result{SQL: sql, Success: true, Columns: columns}
	for pgRows.Next() {
		if result.Count >= q.cfg.MaxRows {
			result.Truncated = true
			break
		}
		values, err := pgRows.Values()
		if err != nil {
			return Result{}, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result.Rows = append(result.Rows, row)
		result.Count++
	}
	if err := pgRows.Err(); err != nil && !result.Truncated {
		return Result{}, err
	}
	return result, nil
}

// normalizeDBError turns driver errors into the message fed back to the
// generation turn.
func normalizeDBError(err error, timeout time.Duration) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("query timed out after %s", timeout)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return "query returned no rows"
	}
	return err.Error()
}
