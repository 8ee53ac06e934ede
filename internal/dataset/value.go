package dataset

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Kind identifies what a Value holds.
type Kind uint8

const (
	KindMissing Kind = iota
	KindString
	KindNumber
)

// Value is a single cell: a string, a float or missing.
type Value struct {
	kind Kind
	str  string
	num  float64
}

// Missing returns the missing value.
func Missing() Value { return Value{} }

// String wraps s. Blank strings stay strings; ingest decides what is missing.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number wraps f. NaN is stored as missing.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// Text returns the string form of the cell and false when it is missing.
// Numbers render in the shortest form that round-trips.
func (v Value) Text() (string, bool) {
	switch v.kind {
	case KindString:
		return v.str, true
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64), true
	default:
		return "", false
	}
}

// Label returns the trimmed text of a string cell. Numbers and missing cells
// are not labels.
func (v Value) Label() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	s := strings.TrimSpace(v.str)
	return s, s != ""
}

// Float coerces the cell to a finite float. Unparseable strings, blanks and
// non-finite numbers report false.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, !math.IsInf(v.num, 0)
	case KindString:
		s := strings.TrimSpace(v.str)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// IsBlank reports whether the cell is missing or whitespace only.
func (v Value) IsBlank() bool {
	switch v.kind {
	case KindMissing:
		return true
	case KindString:
		return strings.TrimSpace(v.str) == ""
	default:
		return false
	}
}

func (v Value) String() string {
	s, _ := v.Text()
	return s
}

// MarshalJSON encodes missing as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if math.IsInf(v.num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.num)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, strings and numbers.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case nil:
		*v = Missing()
	case string:
		*v = String(x)
	case float64:
		*v = Number(x)
	case bool:
		*v = String(strconv.FormatBool(x))
	default:
		*v = String(string(data))
	}
	return nil
}
