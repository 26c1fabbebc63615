package grid

// engine.go derives a page from a full collection held in memory.
//
// The derivation runs filter -> search -> sort -> paginate and must agree
// with what the collection server returns for the same view, so that server
// and client modes are interchangeable. It is re-run on every view change;
// client mode is reserved for bounded collections fetched once.
//
// Cells that are missing or cannot be coerced for a filter pass that filter
// (fail-open). Heterogeneous data would otherwise drop rows on exact-match
// brittleness.

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Engine evaluates views against an in-memory dataset. It holds no data and
// is safe for concurrent use.
type Engine struct {
	columns []Column
	locale  language.Tag
}

// NewEngine returns an engine for columns. locale drives string collation;
// language.Und selects the CLDR root order.
func NewEngine(columns []Column, locale language.Tag) *Engine {
	return &Engine{columns: columns, locale: locale}
}

// Derive filters, searches, sorts and slices rows for v. rows is not
// modified.
func (e *Engine) Derive(rows []Row, v ViewState) ResultPage {
	matched := e.Filter(rows, v.Filters)
	matched = e.Search(matched, v.Search)
	matched = e.Sort(matched, v.Sort)
	return Paginate(matched, v.Page, v.PageSize)
}

// Filter keeps the rows that satisfy every non-empty criterion.
func (e *Engine) Filter(rows []Row, filters FilterSet) []Row {
	active := filters.Active()
	if len(active) == 0 {
		return slices.Clone(rows)
	}

	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if matchesAll(row, active) {
			out = append(out, row)
		}
	}
	return out
}

func matchesAll(row Row, filters FilterSet) bool {
	for key, f := range filters {
		if !matches(row.Get(key), f) {
			return false
		}
	}
	return true
}

// matches evaluates a single criterion. The criterion's populated fields
// decide how the cell is coerced, mirroring the query parameters a server
// receives.
func matches(cell Value, f FilterValue) bool {
	if f.Min != nil || f.Max != nil {
		n, ok := cell.Float()
		if !ok {
			return true
		}
		if f.Min != nil && n < *f.Min {
			return false
		}
		if f.Max != nil && n > *f.Max {
			return false
		}
	}

	if f.Start != nil || f.End != nil {
		ts, ok := cell.Time()
		if ok {
			if f.Start != nil {
				if start, ok := ParseDate(*f.Start); ok && ts.Before(start) {
					return false
				}
			}
			if f.End != nil {
				if end, ok := ParseDate(*f.End); ok && ts.After(end) {
					return false
				}
			}
		}
	}

	if f.Value != nil && *f.Value != "" && !cell.IsNull() {
		if cell.Text() != *f.Value {
			return false
		}
	}

	return true
}

// Search keeps rows where any string (or untyped) column contains term,
// ignoring case. An empty term keeps everything.
func (e *Engine) Search(rows []Row, term string) []Row {
	if term == "" {
		return rows
	}

	folder := cases.Fold()
	needle := folder.String(term)

	var keys []string
	for _, col := range e.columns {
		if col.Type == "" || col.Type == TypeString {
			keys = append(keys, col.Key)
		}
	}

	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		for _, key := range keys {
			cell := row.Get(key)
			if cell.IsNull() {
				continue
			}
			if strings.Contains(folder.String(cell.Text()), needle) {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

// Sort orders rows by the active sort using the column's declared type.
// The sort is stable; with no active sort rows keep their fetch order.
func (e *Engine) Sort(rows []Row, spec SortSpec) []Row {
	out := slices.Clone(rows)
	if !spec.Active() {
		return out
	}

	col, _ := findColumn(e.columns, spec.Key)
	compare := e.comparator(col)
	if spec.Order == Desc {
		asc := compare
		compare = func(a, b Value) int { return -asc(a, b) }
	}

	slices.SortStableFunc(out, func(a, b Row) int {
		return compare(a.Get(spec.Key), b.Get(spec.Key))
	})
	return out
}

// comparator returns the ascending comparison for col. Values that cannot
// be coerced order after those that can.
func (e *Engine) comparator(col Column) func(a, b Value) int {
	switch col.Type {
	case TypeNumber:
		return func(a, b Value) int {
			x, okX := a.Float()
			y, okY := b.Float()
			return compareCoerced(okX, okY, func() int { return cmp.Compare(x, y) })
		}
	case TypeDate:
		return func(a, b Value) int {
			x, okX := a.Time()
			y, okY := b.Time()
			return compareCoerced(okX, okY, func() int { return x.Compare(y) })
		}
	default:
		coll := collate.New(e.locale)
		return func(a, b Value) int {
			return coll.CompareString(a.Text(), b.Text())
		}
	}
}

func compareCoerced(okX, okY bool, both func() int) int {
	switch {
	case okX && okY:
		return both()
	case okX:
		return -1
	case okY:
		return 1
	default:
		return 0
	}
}

// Paginate slices rows for page (1-based) and reports totals. Zero records
// yields zero pages; a page past the end yields no rows.
func Paginate(rows []Row, page, pageSize int) ResultPage {
	total := len(rows)
	if pageSize <= 0 {
		pageSize = total
	}

	result := ResultPage{TotalRecords: total, Rows: []Row{}}
	if total == 0 {
		return result
	}
	result.TotalPages = (total + pageSize - 1) / pageSize

	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= total {
		return result
	}
	end := min(start+pageSize, total)
	result.Rows = rows[start:end:end]
	return result
}
