package grid

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValueType is the declared type of a column's cells.
type ValueType string

const (
	TypeString  ValueType = "string"
	TypeNumber  ValueType = "number"
	TypeDate    ValueType = "date"
	TypeBoolean ValueType = "boolean"
	TypeSelect  ValueType = "select"
)

// FilterKind selects the shape of a column's filter criterion.
type FilterKind string

const (
	FilterRange     FilterKind = "range"
	FilterDateRange FilterKind = "dateRange"
	FilterSelect    FilterKind = "select"
)

// Alignment is a presentation hint for cell content.
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// Column describes one grid column. Columns are supplied by the caller and
// must not be modified after the grid is created.
type Column struct {
	Key           string
	Label         string
	Type          ValueType  // empty is treated as string for search
	SortDisabled  bool       // columns are sortable unless disabled
	Filterable    bool       // columns are not filterable unless enabled
	FilterKind    FilterKind // required when Filterable
	FilterOptions []string   // choices for FilterSelect
	Align         Alignment
	Render        func(Row) string // optional display override
}

// Sortable reports whether the column participates in sort cycling.
func (c Column) Sortable() bool {
	return !c.SortDisabled
}

// Display returns the rendered cell for row, honoring Render.
func (c Column) Display(row Row) string {
	if c.Render != nil {
		return c.Render(row)
	}
	return FormatValue(row.Get(c.Key), c.Type)
}

// findColumn returns the column with key, if declared.
func findColumn(columns []Column, key string) (Column, bool) {
	for _, c := range columns {
		if c.Key == key {
			return c, true
		}
	}
	return Column{}, false
}

// SortOrder is the direction of an active sort.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// SortSpec is the active sort. The zero value means no sort.
type SortSpec struct {
	Key   string
	Order SortOrder
}

// Active reports whether a sort column is set.
func (s SortSpec) Active() bool {
	return s.Key != ""
}

// Next returns the sort that results from toggling key. Toggling the active
// column cycles asc -> desc -> none; any other column starts at asc.
func (s SortSpec) Next(key string) SortSpec {
	if s.Key != key {
		return SortSpec{Key: key, Order: Asc}
	}
	switch s.Order {
	case Asc:
		return SortSpec{Key: key, Order: Desc}
	default:
		return SortSpec{}
	}
}

// Param encodes the sort as a query value: "key" or "-key".
func (s SortSpec) Param() string {
	if !s.Active() {
		return ""
	}
	if s.Order == Desc {
		return "-" + s.Key
	}
	return s.Key
}

// ParseSort decodes a sort query value produced by Param.
func ParseSort(param string) SortSpec {
	param = strings.TrimSpace(param)
	if param == "" || param == "-" {
		return SortSpec{}
	}
	if strings.HasPrefix(param, "-") {
		return SortSpec{Key: param[1:], Order: Desc}
	}
	return SortSpec{Key: param, Order: Asc}
}

// Mode selects where view derivation happens.
type Mode string

const (
	ModeServer Mode = "server"
	ModeClient Mode = "client"
)

// ViewState is everything that determines which rows are displayed.
// The Controller owns it; other components receive copies.
type ViewState struct {
	Page     int
	PageSize int
	Sort     SortSpec
	Filters  FilterSet
	Search   string
	Mode     Mode
}

// Clone returns a copy that shares no maps with v.
func (v ViewState) Clone() ViewState {
	v.Filters = v.Filters.Clone()
	return v
}

// CacheKey identifies a server page request. Two views with the same page,
// page size, filters, sort and search produce equal keys.
type CacheKey string

// Key returns the structural cache key for v. Mode is not part of the key.
func (v ViewState) Key() CacheKey {
	var b strings.Builder
	b.WriteString("page=")
	b.WriteString(strconv.Itoa(v.Page))
	b.WriteString("&size=")
	b.WriteString(strconv.Itoa(v.PageSize))
	b.WriteString("&sort=")
	b.WriteString(v.Sort.Param())
	b.WriteString("&search=")
	b.WriteString(strconv.Quote(v.Search))
	for _, key := range v.Filters.Keys() {
		f := v.Filters[key]
		if f.IsEmpty() {
			continue
		}
		fmt.Fprintf(&b, "&f[%s]=%s", strconv.Quote(key), f.canonical())
	}
	return CacheKey(b.String())
}

// ResultPage is one page of derived or fetched rows.
type ResultPage struct {
	Rows         []Row `json:"data"`
	TotalPages   int   `json:"totalPages"`
	TotalRecords int   `json:"totalRecords"`
}

// FilterValue is a filter criterion. Which fields apply depends on the
// column's FilterKind: Min/Max for range, Start/End for dateRange, Value for
// select. A criterion with every field nil is the same as no filter.
type FilterValue struct {
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
	Start *string  `json:"start,omitempty"`
	End   *string  `json:"end,omitempty"`
	Value *string  `json:"value,omitempty"`
}

// IsEmpty reports whether no field of f is set.
func (f FilterValue) IsEmpty() bool {
	return f.Min == nil && f.Max == nil && f.Start == nil && f.End == nil && f.Value == nil
}

func (f FilterValue) canonical() string {
	part := func(name string, s string) string { return name + ":" + strconv.Quote(s) }
	var parts []string
	if f.Min != nil {
		parts = append(parts, part("min", strconv.FormatFloat(*f.Min, 'g', -1, 64)))
	}
	if f.Max != nil {
		parts = append(parts, part("max", strconv.FormatFloat(*f.Max, 'g', -1, 64)))
	}
	if f.Start != nil {
		parts = append(parts, part("start", *f.Start))
	}
	if f.End != nil {
		parts = append(parts, part("end", *f.End))
	}
	if f.Value != nil {
		parts = append(parts, part("value", *f.Value))
	}
	return strings.Join(parts, ",")
}

// Float returns a pointer to f, for building range criteria.
func Float(f float64) *float64 { return &f }

// Text returns a pointer to s, for building date and select criteria.
func Text(s string) *string { return &s }

// FilterSet maps column keys to criteria. Missing keys mean no filter.
type FilterSet map[string]FilterValue

// Clone returns a copy of fs.
func (fs FilterSet) Clone() FilterSet {
	if fs == nil {
		return nil
	}
	out := make(FilterSet, len(fs))
	for k, v := range fs {
		out[k] = v
	}
	return out
}

// Keys returns the column keys in sorted order.
func (fs FilterSet) Keys() []string {
	keys := make([]string, 0, len(fs))
	for k := range fs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Active returns fs without empty criteria.
func (fs FilterSet) Active() FilterSet {
	out := make(FilterSet, len(fs))
	for k, v := range fs {
		if !v.IsEmpty() {
			out[k] = v
		}
	}
	return out
}

// Equal reports whether fs and other carry the same non-empty criteria.
func (fs FilterSet) Equal(other FilterSet) bool {
	a, b := fs.Active(), other.Active()
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		w, ok := b[k]
		if !ok || v.canonical() != w.canonical() {
			return false
		}
	}
	return true
}

// ActiveCount returns the number of columns with a non-empty criterion.
func (fs FilterSet) ActiveCount() int {
	n := 0
	for _, v := range fs {
		if !v.IsEmpty() {
			n++
		}
	}
	return n
}
