package grid

// value.go models row cells as a closed set of scalar variants.
//
// Collection payloads are loosely typed JSON, so a cell may hold a string,
// number, boolean or null. Dates travel as strings and are only interpreted
// as timestamps when a column declares them so. Anything else (nested
// objects, arrays) is kept verbatim as raw JSON and never typed.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which scalar variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindRaw // non-scalar JSON preserved as-is
)

// Value is a single cell. The zero value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	raw  json.RawMessage
}

// Null returns the null value.
func Null() Value { return Value{} }

// String wraps a string cell.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number wraps a numeric cell.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool wraps a boolean cell.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null (or absent).
func (v Value) IsNull() bool { return v.kind == KindNull }

// Text returns the plain string form of v. Numbers use the shortest
// representation, null is empty.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindRaw:
		return string(v.raw)
	default:
		return ""
	}
}

// String implements fmt.Stringer.
func (v Value) String() string { return v.Text() }

// Float coerces v to a number. Strings are parsed strictly; booleans map to
// 1 and 0. The second result is false when v cannot be interpreted.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		return ParseNumber(v.str)
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Time coerces v to a timestamp. Numbers are read as Unix milliseconds.
func (v Value) Time() (time.Time, bool) {
	switch v.kind {
	case KindString:
		return ParseDate(v.str)
	case KindNumber:
		return time.UnixMilli(int64(v.num)).UTC(), true
	default:
		return time.Time{}, false
	}
}

// Equal reports whether two values hold the same variant and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindRaw:
		return bytes.Equal(v.raw, o.raw)
	default:
		return true
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindRaw:
		return v.raw, nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty cell value")
	}

	switch data[0] {
	case 'n':
		*v = Null()
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode string cell: %w", err)
		}
		*v = String(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("decode bool cell: %w", err)
		}
		*v = Bool(b)
	case '{', '[':
		*v = Value{kind: KindRaw, raw: append(json.RawMessage(nil), data...)}
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("decode number cell: %w", err)
		}
		*v = Number(f)
	}
	return nil
}

// Row is a record keyed by column key. Keys not declared by any column are
// carried through untouched.
type Row map[string]Value

// Get returns the cell for key, or null when absent.
func (r Row) Get(key string) Value {
	return r[key]
}

// ID returns the row's stable identifier.
func (r Row) ID() Value {
	return r["id"]
}

// numericRegex accepts integers, decimals and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// dateLayouts are tried in order when coercing a string to a timestamp.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// ParseNumber parses s as a number. Empty and malformed input is rejected.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseDate parses an ISO-style date or timestamp.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatValue renders a cell for display according to the column type:
// numbers with two decimals, dates as YYYY-MM-DD, null as empty.
func FormatValue(v Value, t ValueType) string {
	if v.IsNull() {
		return ""
	}
	switch t {
	case TypeNumber:
		if v.kind == KindNumber {
			return strconv.FormatFloat(v.num, 'f', 2, 64)
		}
	case TypeDate:
		if ts, ok := v.Time(); ok {
			return ts.Format("2006-01-02")
		}
	}
	return v.Text()
}
