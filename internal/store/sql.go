package store

// sql.go translates grid views into parameterized PostgreSQL.
//
// Criteria follow the in-memory engine: NULL cells pass range, date and
// select criteria, unparseable criterion bounds are ignored, and search
// matches any string column case-insensitively.

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/gridview/grid"
)

// idColumn is the primary key every backing table carries.
const idColumn = "id"

// whereBuilder accumulates AND-ed conditions with $n placeholders.
type whereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

func newWhereBuilder() *whereBuilder {
	return &whereBuilder{argIndex: 1}
}

// arg binds v and returns its placeholder.
func (wb *whereBuilder) arg(v any) string {
	wb.args = append(wb.args, v)
	p := fmt.Sprintf("$%d", wb.argIndex)
	wb.argIndex++
	return p
}

func (wb *whereBuilder) add(cond string) {
	wb.conditions = append(wb.conditions, cond)
}

// addFilters adds one condition per active criterion on a filterable column.
func (wb *whereBuilder) addFilters(filters grid.FilterSet, columns []grid.Column) {
	byKey := make(map[string]grid.Column, len(columns))
	for _, col := range columns {
		byKey[col.Key] = col
	}

	active := filters.Active()
	for _, key := range active.Keys() {
		col, ok := byKey[key]
		if !ok || !col.Filterable {
			continue
		}
		f := active[key]
		ident := quoteIdentifier(key)

		var parts []string
		if f.Min != nil {
			parts = append(parts, fmt.Sprintf("%s >= %s", ident, wb.arg(*f.Min)))
		}
		if f.Max != nil {
			parts = append(parts, fmt.Sprintf("%s <= %s", ident, wb.arg(*f.Max)))
		}
		if f.Start != nil {
			if start, ok := grid.ParseDate(*f.Start); ok {
				parts = append(parts, fmt.Sprintf("%s >= %s", ident, wb.arg(start)))
			}
		}
		if f.End != nil {
			if end, ok := grid.ParseDate(*f.End); ok {
				parts = append(parts, fmt.Sprintf("%s <= %s", ident, wb.arg(end)))
			}
		}
		if f.Value != nil && *f.Value != "" {
			parts = append(parts, fmt.Sprintf("%s::text = %s", ident, wb.arg(*f.Value)))
		}

		if len(parts) == 0 {
			continue
		}
		wb.add(fmt.Sprintf("(%s IS NULL OR (%s))", ident, strings.Join(parts, " AND ")))
	}
}

// addSearch matches term against every string column.
func (wb *whereBuilder) addSearch(term string, columns []grid.Column) {
	if term == "" {
		return
	}

	var idents []string
	for _, col := range columns {
		if col.Type == "" || col.Type == grid.TypeString {
			idents = append(idents, quoteIdentifier(col.Key))
		}
	}
	if len(idents) == 0 {
		wb.add("FALSE")
		return
	}

	p := wb.arg("%" + escapeLike(term) + "%")
	ors := make([]string, len(idents))
	for i, ident := range idents {
		ors[i] = fmt.Sprintf("%s::text ILIKE %s", ident, p)
	}
	wb.add("(" + strings.Join(ors, " OR ") + ")")
}

// build returns the WHERE clause (with a leading space) and its arguments.
func (wb *whereBuilder) build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", wb.args
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

func (wb *whereBuilder) nextArgIndex() int {
	return wb.argIndex
}

// pageQuery is the pair of statements serving one page.
type pageQuery struct {
	count     string
	countArgs []any
	rows      string
	rowArgs   []any
}

func buildPageQuery(table string, columns []grid.Column, view grid.ViewState) pageQuery {
	wb := newWhereBuilder()
	wb.addFilters(view.Filters, columns)
	wb.addSearch(view.Search, columns)
	where, args := wb.build()

	q := pageQuery{
		count:     fmt.Sprintf("SELECT COUNT(*) FROM %s%s", quoteIdentifier(table), where),
		countArgs: args,
	}

	argIndex := wb.nextArgIndex()
	q.rows = fmt.Sprintf(
		"SELECT %s FROM %s%s ORDER BY %s LIMIT $%d OFFSET $%d",
		strings.Join(selectList(columns), ", "),
		quoteIdentifier(table),
		where,
		orderBy(columns, view.Sort),
		argIndex,
		argIndex+1,
	)

	page := max(view.Page, 1)
	q.rowArgs = append(append([]any{}, args...), view.PageSize, (page-1)*view.PageSize)
	return q
}

// selectList quotes the column keys, adding the id column when undeclared.
func selectList(columns []grid.Column) []string {
	cols := make([]string, 0, len(columns)+1)
	hasID := false
	for _, col := range columns {
		cols = append(cols, quoteIdentifier(col.Key))
		if col.Key == idColumn {
			hasID = true
		}
	}
	if !hasID {
		cols = append(cols, quoteIdentifier(idColumn))
	}
	return cols
}

// selectKeys matches selectList positionally.
func selectKeys(columns []grid.Column) []string {
	keys := make([]string, 0, len(columns)+1)
	hasID := false
	for _, col := range columns {
		keys = append(keys, col.Key)
		if col.Key == idColumn {
			hasID = true
		}
	}
	if !hasID {
		keys = append(keys, idColumn)
	}
	return keys
}

// orderBy places NULLs where the engine places uncoercible cells: last
// ascending, first descending. Ties fall back to the id column.
func orderBy(columns []grid.Column, sort grid.SortSpec) string {
	tiebreak := quoteIdentifier(idColumn) + " ASC"
	if !sort.Active() {
		return tiebreak
	}

	known := false
	for _, col := range columns {
		if col.Key == sort.Key && col.Sortable() {
			known = true
			break
		}
	}
	if !known {
		return tiebreak
	}

	dir := "ASC NULLS LAST"
	if sort.Order == grid.Desc {
		dir = "DESC NULLS FIRST"
	}
	return fmt.Sprintf("%s %s, %s", quoteIdentifier(sort.Key), dir, tiebreak)
}

// quoteIdentifier safely quotes a PostgreSQL identifier.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
