package store

import (
	"context"
	"log/slog"

	"github.com/JonMunkholm/gridview/grid"
	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// Memory serves a collection held in memory. Rows are never modified after
// construction, so it is safe for concurrent use.
type Memory struct {
	columns []grid.Column
	rows    []grid.Row
	engine  *grid.Engine
	logger  *slog.Logger
}

// NewMemory builds a store from coll. Rows without an id receive a random
// UUID so Record can address them.
func NewMemory(coll *Collection, locale language.Tag, logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}

	rows := make([]grid.Row, len(coll.Rows))
	assigned := 0
	for i, row := range coll.Rows {
		if row.ID().IsNull() {
			row = cloneRow(row)
			row["id"] = grid.String(uuid.NewString())
			assigned++
		}
		rows[i] = row
	}
	if assigned > 0 {
		logger.Info("assigned ids to rows", "count", assigned)
	}

	return &Memory{
		columns: coll.Columns,
		rows:    rows,
		engine:  grid.NewEngine(coll.Columns, locale),
		logger:  logger,
	}
}

func cloneRow(row grid.Row) grid.Row {
	out := make(grid.Row, len(row)+1)
	for k, v := range row {
		out[k] = v
	}
	return out
}

// Columns implements Store.
func (m *Memory) Columns() []grid.Column {
	return m.columns
}

// Page implements Store.
func (m *Memory) Page(ctx context.Context, view grid.ViewState) (grid.ResultPage, error) {
	if err := ctx.Err(); err != nil {
		return grid.ResultPage{}, err
	}
	return m.engine.Derive(m.rows, view), nil
}

// Record implements Store. Ids compare by their text form, so "7" finds a
// numeric id of 7.
func (m *Memory) Record(ctx context.Context, id string) (grid.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, row := range m.rows {
		if row.ID().Text() == id {
			return row, nil
		}
	}
	return nil, ErrNotFound
}

// Stream implements Store.
func (m *Memory) Stream(ctx context.Context, fn func(grid.Row) error) error {
	for _, row := range m.rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Store.
func (m *Memory) Close() {}
