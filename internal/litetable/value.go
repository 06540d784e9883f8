package litetable

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the dynamic type of a stored or literal Value. Columns carry no declared type: every
// value is compared according to its own kind.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInteger
	KindFloat
	KindString
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	default:
		return "invalid"
	}
}

// Class groups the kinds that can be ordered against each other. Integers and floats share a
// class; every other kind is a class of its own.
type Class uint8

const (
	ClassNone Class = iota
	ClassNumber
	ClassString
	ClassDate
)

// Classes lists every class a valid value can belong to.
var Classes = []Class{ClassNumber, ClassString, ClassDate}

func (c Class) String() string {
	switch c {
	case ClassNumber:
		return "number"
	case ClassString:
		return "string"
	case ClassDate:
		return "date"
	default:
		return "none"
	}
}

// dateLayouts are tried in order when inferring a literal.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"1/2/2006",
}

// Value is a closed variant over the scalar kinds LiteTable understands.
type Value struct {
	Kind Kind      `msgpack:"k"`
	I64  int64     `msgpack:"i,omitempty"`
	F64  float64   `msgpack:"f,omitempty"`
	Str  string    `msgpack:"s,omitempty"`
	Time time.Time `msgpack:"t,omitempty"`
}

func Int(i int64) Value       { return Value{Kind: KindInteger, I64: i} }
func Float(f float64) Value   { return Value{Kind: KindFloat, F64: f} }
func String(s string) Value   { return Value{Kind: KindString, Str: s} }
func Date(t time.Time) Value  { return Value{Kind: KindDate, Time: t.UTC()} }
func (v Value) IsValid() bool { return v.Kind != KindInvalid }

// Class returns the ordering class of the value.
func (v Value) Class() Class {
	switch v.Kind {
	case KindInteger, KindFloat:
		return ClassNumber
	case KindString:
		return ClassString
	case KindDate:
		return ClassDate
	}
	return ClassNone
}

func (v Value) isNumber() bool {
	return v.Kind == KindInteger || v.Kind == KindFloat
}

// ParseValue infers the kind of a literal: integers, finite floats, dates in one of the accepted
// layouts, and everything else is a string.
func ParseValue(text string) Value {
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return Int(i)
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) &&
		looksNumeric(text) {
		return Float(f)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return Date(t)
		}
	}
	return String(text)
}

// looksNumeric rejects spellings strconv accepts but a user would not mean as a number (inf, nan,
// hex floats).
func looksNumeric(text string) bool {
	for _, r := range text {
		if !strings.ContainsRune("0123456789+-.eE", r) {
			return false
		}
	}
	return true
}

// integral reports the exact int64 a float converts to, if any.
func integral(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < -9.223372036854775808e18 || f >= 9.223372036854775808e18 {
		return 0, false
	}
	return int64(f), true
}

// Equal reports whether two values are the same. Values of incompatible kinds are never equal,
// and an integer equals a float only when the float converts to it exactly.
func (v Value) Equal(o Value) bool {
	switch {
	case v.Kind == KindInteger && o.Kind == KindInteger:
		return v.I64 == o.I64
	case v.Kind == KindFloat && o.Kind == KindFloat:
		return v.F64 == o.F64
	case v.Kind == KindInteger && o.Kind == KindFloat:
		i, ok := integral(o.F64)
		return ok && i == v.I64
	case v.Kind == KindFloat && o.Kind == KindInteger:
		i, ok := integral(v.F64)
		return ok && i == o.I64
	case v.Kind != o.Kind:
		return false
	case v.Kind == KindString:
		return v.Str == o.Str
	case v.Kind == KindDate:
		return v.Time.Equal(o.Time)
	}
	return false
}

// Compare orders two values. Comparing incompatible kinds fails with ErrTypeMismatch.
func (v Value) Compare(o Value) (int, error) {
	if v.isNumber() && o.isNumber() {
		return compareNumbers(v, o), nil
	}
	if v.Kind != o.Kind || v.Kind == KindInvalid {
		return 0, NewError(ErrTypeMismatch, "cannot compare %s with %s", v.Kind, o.Kind)
	}
	switch v.Kind {
	case KindString:
		return strings.Compare(v.Str, o.Str), nil
	default:
		return v.Time.Compare(o.Time), nil
	}
}

func compareNumbers(v, o Value) int {
	if v.Kind == KindInteger && o.Kind == KindInteger {
		return cmpOrdered(v.I64, o.I64)
	}
	a, b := v.asFloat(), o.asFloat()
	if a != b {
		return cmpOrdered(a, b)
	}
	// equal as floats: settle mixed int/float ties exactly
	if v.Kind == KindInteger {
		if i, ok := integral(o.F64); ok {
			return cmpOrdered(v.I64, i)
		}
	}
	if o.Kind == KindInteger {
		if i, ok := integral(v.F64); ok {
			return cmpOrdered(i, o.I64)
		}
	}
	return 0
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (v Value) asFloat() float64 {
	if v.Kind == KindInteger {
		return float64(v.I64)
	}
	return v.F64
}

// IndexKey is the canonical, kind-tagged rendering used in value index names. Two values share an
// IndexKey exactly when Equal reports true.
func (v Value) IndexKey() string {
	switch v.Kind {
	case KindInteger:
		return "n:" + strconv.FormatInt(v.I64, 10)
	case KindFloat:
		if i, ok := integral(v.F64); ok {
			return "n:" + strconv.FormatInt(i, 10)
		}
		return "n:" + strconv.FormatFloat(v.F64, 'g', -1, 64)
	case KindString:
		return "s:" + v.Str
	case KindDate:
		return "d:" + v.Time.UTC().Format(time.RFC3339Nano)
	}
	return ""
}

// Score maps a value onto the float line used by ordered indexes. Within a kind the mapping is
// monotone non-decreasing, so a score range always contains every value of the matching value
// range, but distinct values may share a score (long strings, large integers).
func (v Value) Score() float64 {
	switch v.Kind {
	case KindInteger:
		return float64(v.I64)
	case KindFloat:
		return v.F64
	case KindDate:
		return dateScore(v.Time)
	case KindString:
		var prefix uint64
		for i := 0; i < 6; i++ {
			prefix <<= 8
			if i < len(v.Str) {
				prefix |= uint64(v.Str[i])
			}
		}
		return float64(prefix)
	}
	return 0
}

const (
	minNanoSeconds = math.MinInt64 / int64(time.Second)
	maxNanoSeconds = math.MaxInt64/int64(time.Second) - 1
)

func dateScore(t time.Time) float64 {
	if s := t.Unix(); s > minNanoSeconds && s < maxNanoSeconds {
		return float64(t.UnixNano())
	}
	return float64(t.Unix()) * 1e9
}

// Literal renders the value so that the expression parser reads it back as the same value.
func (v Value) Literal() string {
	switch v.Kind {
	case KindInteger:
		return strconv.FormatInt(v.I64, 10)
	case KindFloat:
		s := strconv.FormatFloat(v.F64, 'g', -1, 64)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		return s
	case KindString:
		return strconv.Quote(v.Str)
	case KindDate:
		t := v.Time.UTC()
		if t.Equal(t.Truncate(24 * time.Hour)) {
			return t.Format("2006-01-02")
		}
		return t.Format(time.RFC3339Nano)
	}
	return "<invalid>"
}

func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInvalid:
		return "<invalid>"
	default:
		return v.Literal()
	}
}
