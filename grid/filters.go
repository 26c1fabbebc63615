package grid

// filters.go holds filter validation and the editable filter store.
//
// Validation only checks intra-criterion ordering (min <= max, start <= end).
// An invalid set is never propagated: the store keeps the draft so the user
// can keep editing, and reports one message per offending column.

import (
	"sync"
)

const (
	msgRangeOrder = "Maximum value cannot be less than minimum value"
	msgDateOrder  = "Date from cannot be greater than date to"
)

// Validate checks every filterable column that has a non-empty criterion.
// It returns column key -> message for each violation; an empty map means
// the set is valid.
func Validate(filters FilterSet, columns []Column) map[string]string {
	errs := make(map[string]string)

	for _, col := range columns {
		if !col.Filterable {
			continue
		}
		f, ok := filters[col.Key]
		if !ok || f.IsEmpty() {
			continue
		}

		switch col.FilterKind {
		case FilterRange:
			if f.Min != nil && f.Max != nil && *f.Max < *f.Min {
				errs[col.Key] = msgRangeOrder
			}
		case FilterDateRange:
			if f.Start != nil && f.End != nil && dateAfter(*f.Start, *f.End) {
				errs[col.Key] = msgDateOrder
			}
		}
	}

	return errs
}

// dateAfter reports whether start is later than end. Both are compared as
// timestamps when they parse, otherwise as ISO strings.
func dateAfter(start, end string) bool {
	s, okS := ParseDate(start)
	e, okE := ParseDate(end)
	if okS && okE {
		return s.After(e)
	}
	return start > end
}

// FilterStore holds the filter criteria being edited alongside the set that
// was last committed to the grid.
type FilterStore struct {
	mu        sync.Mutex
	columns   []Column
	draft     FilterSet
	committed FilterSet
	errors    map[string]string
	commit    func(FilterSet) error
}

// NewFilterStore creates a store for columns. commit is called with the new
// set whenever filters are applied; Controller.SetFilters fits.
func NewFilterStore(columns []Column, commit func(FilterSet) error) *FilterStore {
	return &FilterStore{
		columns:   columns,
		draft:     make(FilterSet),
		committed: make(FilterSet),
		errors:    make(map[string]string),
		commit:    commit,
	}
}

// Edit replaces the draft criterion for key and clears any pending error on
// that column. Nothing is propagated until Submit.
func (s *FilterStore) Edit(key string, value FilterValue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.draft[key] = value
	delete(s.errors, key)
}

// Clear removes the criterion for key and propagates immediately. Other
// draft edits stay local.
func (s *FilterStore) Clear(key string) error {
	s.mu.Lock()
	delete(s.draft, key)
	delete(s.errors, key)
	next := s.committed.Clone()
	delete(next, key)
	s.mu.Unlock()

	return s.apply(next)
}

// Submit validates the draft and, when valid, commits it. Clearing every
// criterion is a valid submit and still notifies.
func (s *FilterStore) Submit() error {
	s.mu.Lock()
	errs := Validate(s.draft, s.columns)
	if len(errs) > 0 {
		s.errors = errs
		s.mu.Unlock()
		return &ValidationError{Fields: copyErrors(errs)}
	}
	next := s.draft.Active()
	s.mu.Unlock()

	return s.apply(next)
}

func (s *FilterStore) apply(next FilterSet) error {
	// Recorded first: the grid may Reset the store before commit returns.
	s.mu.Lock()
	prev := s.committed
	s.committed = next
	s.mu.Unlock()

	if s.commit != nil {
		if err := s.commit(next.Clone()); err != nil {
			s.mu.Lock()
			s.committed = prev
			s.mu.Unlock()
			return err
		}
	}
	return nil
}

// Reset replaces both draft and committed sets, e.g. after the grid's
// filters changed elsewhere.
func (s *FilterStore) Reset(filters FilterSet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.committed = filters.Active()
	s.draft = filters.Clone()
	if s.draft == nil {
		s.draft = make(FilterSet)
	}
	s.errors = make(map[string]string)
}

// Draft returns a copy of the criteria being edited.
func (s *FilterStore) Draft() FilterSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

// Committed returns a copy of the last applied criteria.
func (s *FilterStore) Committed() FilterSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed.Clone()
}

// Errors returns the pending validation messages by column key.
func (s *FilterStore) Errors() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyErrors(s.errors)
}

// ActiveCount returns how many committed columns carry a criterion.
func (s *FilterStore) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed.ActiveCount()
}

func copyErrors(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
