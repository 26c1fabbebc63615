package grid

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		filters FilterSet
		want    map[string]string
	}{
		{"empty", FilterSet{}, map[string]string{}},
		{"ordered range", FilterSet{"amount": {Min: Float(1), Max: Float(2)}}, map[string]string{}},
		{"equal bounds", FilterSet{"amount": {Min: Float(2), Max: Float(2)}}, map[string]string{}},
		{"open range", FilterSet{"amount": {Max: Float(-4)}}, map[string]string{}},
		{
			"inverted range",
			FilterSet{"amount": {Min: Float(10), Max: Float(5)}},
			map[string]string{"amount": "Maximum value cannot be less than minimum value"},
		},
		{
			"inverted dates",
			FilterSet{"joined": {Start: Text("2024-02-01"), End: Text("2024-01-01")}},
			map[string]string{"joined": "Date from cannot be greater than date to"},
		},
		{
			"both",
			FilterSet{
				"amount": {Min: Float(10), Max: Float(5)},
				"joined": {Start: Text("2024-02-01T00:00:00Z"), End: Text("2024-01-31")},
			},
			map[string]string{
				"amount": "Maximum value cannot be less than minimum value",
				"joined": "Date from cannot be greater than date to",
			},
		},
		{
			"undeclared column",
			FilterSet{"other": {Min: Float(10), Max: Float(5)}},
			map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.filters, testColumns)
			if len(got) != len(tt.want) {
				t.Fatalf("Validate() = %v, want %v", got, tt.want)
			}
			for k, msg := range tt.want {
				if got[k] != msg {
					t.Errorf("Validate()[%s] = %q, want %q", k, got[k], msg)
				}
			}
		})
	}
}

type commitRecorder struct {
	sets []FilterSet
	err  error
}

func (c *commitRecorder) commit(fs FilterSet) error {
	if c.err != nil {
		return c.err
	}
	c.sets = append(c.sets, fs)
	return nil
}

func TestFilterStore_SubmitValid(t *testing.T) {
	rec := &commitRecorder{}
	s := NewFilterStore(testColumns, rec.commit)

	s.Edit("amount", FilterValue{Min: Float(10)})
	s.Edit("group", FilterValue{Value: Text("even")})
	if len(rec.sets) != 0 {
		t.Fatal("edits propagated before submit")
	}

	if err := s.Submit(); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(rec.sets) != 1 || len(rec.sets[0]) != 2 {
		t.Fatalf("commits = %v, want one set of two", rec.sets)
	}
	if s.ActiveCount() != 2 {
		t.Errorf("ActiveCount() = %d, want 2", s.ActiveCount())
	}
}

func TestFilterStore_SubmitInvalidKeepsDraft(t *testing.T) {
	rec := &commitRecorder{}
	s := NewFilterStore(testColumns, rec.commit)

	s.Edit("amount", FilterValue{Min: Float(10), Max: Float(5)})
	err := s.Submit()

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Submit() error = %v, want *ValidationError", err)
	}
	if _, ok := verr.Fields["amount"]; !ok {
		t.Errorf("Fields = %v, want amount", verr.Fields)
	}
	if len(rec.sets) != 0 {
		t.Error("invalid set was propagated")
	}
	if _, ok := s.Draft()["amount"]; !ok {
		t.Error("draft lost after failed submit")
	}
	if s.Errors()["amount"] == "" {
		t.Error("error not recorded on the store")
	}

	// Editing the column clears its message; fixing it submits.
	s.Edit("amount", FilterValue{Min: Float(5), Max: Float(10)})
	if len(s.Errors()) != 0 {
		t.Errorf("Errors() = %v after edit, want none", s.Errors())
	}
	if err := s.Submit(); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(rec.sets) != 1 {
		t.Errorf("commits = %d, want 1", len(rec.sets))
	}
}

func TestFilterStore_ClearPropagates(t *testing.T) {
	rec := &commitRecorder{}
	s := NewFilterStore(testColumns, rec.commit)

	s.Edit("amount", FilterValue{Min: Float(10)})
	s.Edit("group", FilterValue{Value: Text("odd")})
	if err := s.Submit(); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	// An unsubmitted edit stays local through a clear.
	s.Edit("joined", FilterValue{Start: Text("2024-01-01")})
	if err := s.Clear("amount"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	last := rec.sets[len(rec.sets)-1]
	if _, ok := last["amount"]; ok {
		t.Error("cleared column still committed")
	}
	if _, ok := last["group"]; !ok {
		t.Error("other committed column dropped")
	}
	if _, ok := last["joined"]; ok {
		t.Error("draft edit leaked through Clear")
	}
	if _, ok := s.Draft()["joined"]; !ok {
		t.Error("draft edit lost")
	}
}

func TestFilterStore_SubmitEmptyStillNotifies(t *testing.T) {
	rec := &commitRecorder{}
	s := NewFilterStore(testColumns, rec.commit)

	if err := s.Submit(); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(rec.sets) != 1 || len(rec.sets[0]) != 0 {
		t.Errorf("commits = %v, want one empty set", rec.sets)
	}
}

func TestFilterStore_CommitFailureKeepsCommitted(t *testing.T) {
	rec := &commitRecorder{err: ErrClosed}
	s := NewFilterStore(testColumns, rec.commit)

	s.Edit("amount", FilterValue{Min: Float(1)})
	if err := s.Submit(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Submit() error = %v, want ErrClosed", err)
	}
	if s.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d after failed commit, want 0", s.ActiveCount())
	}
}

func TestFilterStore_Reset(t *testing.T) {
	s := NewFilterStore(testColumns, nil)
	s.Edit("amount", FilterValue{Min: Float(10), Max: Float(1)})
	_ = s.Submit()

	s.Reset(FilterSet{"group": {Value: Text("odd")}, "joined": {}})

	if len(s.Errors()) != 0 {
		t.Errorf("Errors() = %v, want none", s.Errors())
	}
	if s.ActiveCount() != 1 {
		t.Errorf("ActiveCount() = %d, want 1", s.ActiveCount())
	}
	if _, ok := s.Draft()["amount"]; ok {
		t.Error("draft not replaced")
	}
}
