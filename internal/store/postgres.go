package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/gridview/grid"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig holds connection pool settings for OpenPostgres.
type PoolConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Postgres serves a collection from one table. Column keys are the table's
// column names and the table must carry an id column.
type Postgres struct {
	pool    *pgxpool.Pool
	table   string
	columns []grid.Column
	logger  *slog.Logger
}

// OpenPostgres connects a pool and verifies it with a ping.
func OpenPostgres(ctx context.Context, cfg PoolConfig, table string, columns []grid.Column, logger *slog.Logger) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return NewPostgres(pool, table, columns, logger), nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool, table string, columns []grid.Column, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{pool: pool, table: table, columns: columns, logger: logger}
}

// Columns implements Store.
func (p *Postgres) Columns() []grid.Column {
	return p.columns
}

// Page implements Store.
func (p *Postgres) Page(ctx context.Context, view grid.ViewState) (grid.ResultPage, error) {
	q := buildPageQuery(p.table, p.columns, view)
	p.logger.Debug("page query", "table", p.table, "sql", q.rows, "args", len(q.rowArgs))

	var total int64
	if err := p.pool.QueryRow(ctx, q.count, q.countArgs...).Scan(&total); err != nil {
		return grid.ResultPage{}, fmt.Errorf("count rows: %w", err)
	}

	result := grid.ResultPage{TotalRecords: int(total), Rows: []grid.Row{}}
	if total == 0 {
		return result, nil
	}
	result.TotalPages = int((total + int64(view.PageSize) - 1) / int64(view.PageSize))
	if max(view.Page, 1) > result.TotalPages {
		return result, nil
	}

	rows, err := p.pool.Query(ctx, q.rows, q.rowArgs...)
	if err != nil {
		return grid.ResultPage{}, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	keys := selectKeys(p.columns)
	for rows.Next() {
		row, err := scanRow(rows, keys)
		if err != nil {
			return grid.ResultPage{}, err
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return grid.ResultPage{}, fmt.Errorf("rows error: %w", err)
	}

	return result, nil
}

// Record implements Store.
func (p *Postgres) Record(ctx context.Context, id string) (grid.Row, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s::text = $1 LIMIT 1",
		strings.Join(selectList(p.columns), ", "),
		quoteIdentifier(p.table),
		quoteIdentifier(idColumn),
	)

	rows, err := p.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query record: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query record: %w", err)
		}
		return nil, ErrNotFound
	}
	return scanRow(rows, selectKeys(p.columns))
}

// Stream implements Store. Rows are read in id order without buffering the
// whole table.
func (p *Postgres) Stream(ctx context.Context, fn func(grid.Row) error) error {
	query := fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY %s ASC",
		strings.Join(selectList(p.columns), ", "),
		quoteIdentifier(p.table),
		quoteIdentifier(idColumn),
	)

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	keys := selectKeys(p.columns)
	for rows.Next() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		row, err := scanRow(rows, keys)
		if err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}

	return rows.Err()
}

// Close implements Store.
func (p *Postgres) Close() {
	p.pool.Close()
}

func scanRow(rows pgx.Rows, keys []string) (grid.Row, error) {
	values, err := rows.Values()
	if err != nil {
		return nil, fmt.Errorf("read row values: %w", err)
	}
	if len(values) != len(keys) {
		return nil, errors.New("read row values: column count mismatch")
	}

	row := make(grid.Row, len(keys))
	for i, key := range keys {
		row[key] = toValue(values[i])
	}
	return row, nil
}

// toValue converts a pgx-decoded cell to a grid value. Dates and timestamps
// become RFC 3339 strings; anything unrecognized falls back to its text form.
func toValue(v any) grid.Value {
	switch val := v.(type) {
	case nil:
		return grid.Null()
	case string:
		return grid.String(val)
	case bool:
		return grid.Bool(val)
	case int16:
		return grid.Number(float64(val))
	case int32:
		return grid.Number(float64(val))
	case int64:
		return grid.Number(float64(val))
	case float32:
		return grid.Number(float64(val))
	case float64:
		return grid.Number(val)
	case time.Time:
		return grid.String(val.Format(time.RFC3339))
	case [16]byte:
		return grid.String(uuid.UUID(val).String())
	case pgtype.Numeric:
		if !val.Valid {
			return grid.Null()
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return grid.Null()
		}
		return grid.Number(f.Float64)
	case pgtype.Text:
		if !val.Valid {
			return grid.Null()
		}
		return grid.String(val.String)
	case pgtype.Date:
		if !val.Valid {
			return grid.Null()
		}
		return grid.String(val.Time.Format("2006-01-02"))
	default:
		return grid.String(fmt.Sprint(val))
	}
}
