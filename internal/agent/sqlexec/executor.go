// Package sqlexec runs finalized catalog SQL against the sales warehouse
// and keeps a guardrail between interpolated text and the database.
package sqlexec

import (
	"context"
	"database/sql"
	"time"

	"github.com/cenkalti/backoff/v5"
	_ "github.com/lib/pq"

	"github.com/saleswire/server/internal/agent/model"
	errx "github.com/saleswire/server/internal/core/error"
	logx "github.com/saleswire/server/pkg/logger"
)

// Config holds the warehouse connection settings.
type Config struct {
	Driver          string        `envconfig:"WAREHOUSE_DRIVER" default:"postgres"`
	DSN             string        `envconfig:"WAREHOUSE_DSN" required:"true"`
	MaxOpenConns    int           `envconfig:"WAREHOUSE_MAX_OPEN_CONNS" default:"8"`
	MaxIdleConns    int           `envconfig:"WAREHOUSE_MAX_IDLE_CONNS" default:"4"`
	ConnMaxLifetime time.Duration `envconfig:"WAREHOUSE_CONN_MAX_LIFETIME" default:"30m"`
	QueryTimeout    time.Duration `envconfig:"WAREHOUSE_QUERY_TIMEOUT" default:"30s"`
}

// Executor runs read-only queries with a per-query timeout.
type Executor struct {
	db      *sql.DB
	timeout time.Duration
}

// Open connects to the warehouse and verifies the connection, retrying the
// initial ping so a briefly unavailable database does not kill startup.
func Open(ctx context.Context, cfg Config) (*Executor, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, errx.WrapDB(err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, db.PingContext(ctx)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(5))
	if err != nil {
		db.Close()
		return nil, errx.WrapDB(err)
	}

	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{db: db, timeout: timeout}, nil
}

func (e *Executor) Close() error {
	return e.db.Close()
}

// Query validates and runs one SELECT, returning columns and normalized
// rows.
func (e *Executor) Query(ctx context.Context, query string) (*model.QueryResult, error) {
	if err := Validate(query); err != nil {
		logx.Warn().Str("sql", query).Msg("guardrail rejected statement")
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		logx.Error().Err(err).Str("sql", query).Msg("warehouse query failed")
		return nil, errx.ExecutionFailure(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errx.ExecutionFailure(err)
	}

	result := &model.QueryResult{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errx.ExecutionFailure(err)
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.ExecutionFailure(err)
	}
	return result, nil
}

// normalizeValue flattens driver types: byte slices become strings (the
// driver returns numerics that way) and timestamps become plain dates.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format("2006-01-02")
	default:
		return v
	}
}

var _ model.QueryExecutor = (*Executor)(nil)
