package grid

// params.go encodes views as collection query parameters and back:
//
//	page, pageSize, {col}_min, {col}_max, {col}_start, {col}_end, {col},
//	sort (key or -key), search
//
// Empty criteria and empty search are omitted.

import (
	"fmt"
	"net/url"
	"strconv"
)

// EncodeParams returns the query parameters for a server page request.
func EncodeParams(v ViewState) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(v.Page))
	q.Set("pageSize", strconv.Itoa(v.PageSize))

	for _, key := range v.Filters.Keys() {
		f := v.Filters[key]
		if f.Min != nil {
			q.Set(key+"_min", strconv.FormatFloat(*f.Min, 'f', -1, 64))
		}
		if f.Max != nil {
			q.Set(key+"_max", strconv.FormatFloat(*f.Max, 'f', -1, 64))
		}
		if f.Start != nil {
			q.Set(key+"_start", *f.Start)
		}
		if f.End != nil {
			q.Set(key+"_end", *f.End)
		}
		if f.Value != nil {
			q.Set(key, *f.Value)
		}
	}

	if s := v.Sort.Param(); s != "" {
		q.Set("sort", s)
	}
	if v.Search != "" {
		q.Set("search", v.Search)
	}
	return q
}

// DecodeParams reads a page request. Filters are only read for filterable
// columns; sort keys must name a sortable column. Missing page and page
// size fall back to 1 and defaultPageSize.
func DecodeParams(q url.Values, columns []Column, defaultPageSize int) (ViewState, error) {
	v := ViewState{
		Page:     1,
		PageSize: defaultPageSize,
		Filters:  FilterSet{},
		Search:   q.Get("search"),
		Mode:     ModeServer,
	}

	var err error
	if v.Page, err = positiveParam(q, "page", 1); err != nil {
		return ViewState{}, err
	}
	if v.PageSize, err = positiveParam(q, "pageSize", defaultPageSize); err != nil {
		return ViewState{}, err
	}

	for _, col := range columns {
		if !col.Filterable {
			continue
		}
		var f FilterValue
		if f.Min, err = floatParam(q, col.Key+"_min"); err != nil {
			return ViewState{}, err
		}
		if f.Max, err = floatParam(q, col.Key+"_max"); err != nil {
			return ViewState{}, err
		}
		f.Start = stringParam(q, col.Key+"_start")
		f.End = stringParam(q, col.Key+"_end")
		f.Value = stringParam(q, col.Key)
		if !f.IsEmpty() {
			v.Filters[col.Key] = f
		}
	}

	if sort := ParseSort(q.Get("sort")); sort.Active() {
		col, ok := findColumn(columns, sort.Key)
		if !ok || !col.Sortable() {
			return ViewState{}, fmt.Errorf("cannot sort by %q", sort.Key)
		}
		v.Sort = sort
	}

	return v, nil
}

func positiveParam(q url.Values, name string, def int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return n, nil
}

func floatParam(q url.Values, name string) (*float64, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	f, ok := ParseNumber(raw)
	if !ok {
		return nil, fmt.Errorf("invalid %s %q", name, raw)
	}
	return &f, nil
}

func stringParam(q url.Values, name string) *string {
	raw := q.Get(name)
	if raw == "" {
		return nil
	}
	return &raw
}
