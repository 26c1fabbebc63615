package store

// collection.go reads collection files:
//
//	{
//	  "columns": [
//	    {"key": "name", "label": "Name", "type": "string", "filter": {"kind": "select", "options": ["a", "b"]}},
//	    {"key": "amount", "label": "Amount", "type": "number", "align": "right", "filter": {"kind": "range"}}
//	  ],
//	  "rows": [{"id": 1, "name": "a", "amount": 12.5}]
//	}

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/JonMunkholm/gridview/grid"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ColumnSpec is the file form of a grid.Column.
type ColumnSpec struct {
	Key      string      `json:"key"`
	Label    string      `json:"label"`
	Type     string      `json:"type"`
	Sortable *bool       `json:"sortable,omitempty"`
	Align    string      `json:"align,omitempty"`
	Filter   *FilterSpec `json:"filter,omitempty"`
}

// FilterSpec enables filtering on a column.
type FilterSpec struct {
	Kind    string   `json:"kind"`
	Options []string `json:"options,omitempty"`
}

// Collection is a parsed collection file.
type Collection struct {
	Columns []grid.Column
	Rows    []grid.Row
}

type collectionFile struct {
	Columns []ColumnSpec `json:"columns"`
	Rows    []grid.Row   `json:"rows"`
}

// LoadCollection reads and validates the collection file at path.
func LoadCollection(path string) (*Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}
	defer f.Close()

	coll, err := ReadCollection(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return coll, nil
}

// ReadCollection parses a collection from r. A leading UTF-8 byte order
// mark is skipped.
func ReadCollection(r io.Reader) (*Collection, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	var file collectionFile
	if err := json.NewDecoder(br).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}

	columns, err := buildColumns(file.Columns)
	if err != nil {
		return nil, err
	}

	rows := file.Rows
	if rows == nil {
		rows = []grid.Row{}
	}
	return &Collection{Columns: columns, Rows: rows}, nil
}

func buildColumns(specs []ColumnSpec) ([]grid.Column, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("collection declares no columns")
	}

	seen := make(map[string]bool, len(specs))
	columns := make([]grid.Column, 0, len(specs))
	for i, spec := range specs {
		if spec.Key == "" {
			return nil, fmt.Errorf("column %d: key is required", i)
		}
		if seen[spec.Key] {
			return nil, fmt.Errorf("column %q declared twice", spec.Key)
		}
		seen[spec.Key] = true

		col, err := spec.column()
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", spec.Key, err)
		}
		columns = append(columns, col)
	}
	return columns, nil
}

func (s ColumnSpec) column() (grid.Column, error) {
	col := grid.Column{
		Key:   s.Key,
		Label: s.Label,
		Type:  grid.ValueType(s.Type),
		Align: grid.Alignment(s.Align),
	}
	if col.Label == "" {
		col.Label = s.Key
	}

	switch col.Type {
	case "", grid.TypeString, grid.TypeNumber, grid.TypeDate, grid.TypeBoolean, grid.TypeSelect:
	default:
		return grid.Column{}, fmt.Errorf("unknown type %q", s.Type)
	}

	switch col.Align {
	case "", grid.AlignLeft, grid.AlignCenter, grid.AlignRight:
	default:
		return grid.Column{}, fmt.Errorf("unknown align %q", s.Align)
	}

	if s.Sortable != nil {
		col.SortDisabled = !*s.Sortable
	}

	if s.Filter != nil {
		col.Filterable = true
		col.FilterKind = grid.FilterKind(s.Filter.Kind)
		col.FilterOptions = s.Filter.Options
		switch col.FilterKind {
		case grid.FilterRange, grid.FilterDateRange:
		case grid.FilterSelect:
			if len(col.FilterOptions) == 0 {
				return grid.Column{}, fmt.Errorf("select filter needs options")
			}
		default:
			return grid.Column{}, fmt.Errorf("unknown filter kind %q", s.Filter.Kind)
		}
	}

	return col, nil
}
