// Package store serves a single collection of rows to the HTTP layer.
//
// Two backends exist: Memory evaluates views with grid.Engine over rows
// loaded from a collection file, and Postgres translates views into SQL
// against one table. Both honor the same filter, search, sort and
// pagination semantics.
package store

import (
	"context"
	"errors"

	"github.com/JonMunkholm/gridview/grid"
)

// ErrNotFound is returned by Record when no row has the requested id.
var ErrNotFound = errors.New("record not found")

// Store is a read-only collection backend.
type Store interface {
	// Columns returns the column descriptors of the collection.
	Columns() []grid.Column

	// Page returns the rows matching view, one page at a time.
	Page(ctx context.Context, view grid.ViewState) (grid.ResultPage, error)

	// Record returns the row whose id equals id.
	Record(ctx context.Context, id string) (grid.Row, error)

	// Stream calls fn for every row of the collection in storage order,
	// stopping at the first error.
	Stream(ctx context.Context, fn func(grid.Row) error) error

	// Close releases backend resources.
	Close()
}
