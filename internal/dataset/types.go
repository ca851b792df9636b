package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Type is the inferred type of a column.
type Type int

const (
	String Type = iota
	Integer
	Float
	Boolean
	Timestamp
)

var typeNames = map[Type]string{
	String:    "string",
	Integer:   "integer",
	Float:     "float",
	Boolean:   "boolean",
	Timestamp: "timestamp",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// IsNumeric reports whether values of t convert to float64.
func (t Type) IsNumeric() bool { return t == Integer || t == Float }

func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Type) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for k, v := range typeNames {
		if v == s {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("unknown column type %q", s)
}

// TimeLayout is the canonical rendering of timestamp values.
const TimeLayout = time.RFC3339Nano

// Value is a single typed cell. The zero Value is a null string.
type Value struct {
	Type  Type
	Null  bool
	Int   int64
	Float float64
	Bool  bool
	Time  time.Time
	Str   string
}

func NullValue(t Type) Value { return Value{Type: t, Null: true} }
func IntValue(i int64) Value { return Value{Type: Integer, Int: i} }
func FloatValue(f float64) Value { return Value{Type: Float, Float: f} }
func BoolValue(b bool) Value { return Value{Type: Boolean, Bool: b} }
func TimeValue(t time.Time) Value { return Value{Type: Timestamp, Time: t} }
func StringValue(s string) Value { return Value{Type: String, Str: s} }

func (v Value) numeric() bool { return v.Type.IsNumeric() && !v.Null }

func (v Value) asFloat() float64 {
	if v.Type == Integer {
		return float64(v.Int)
	}
	return v.Float
}

// Float64 returns the numeric value of v. ok is false for nulls and
// non-numeric types.
func (v Value) Float64() (float64, bool) {
	if !v.numeric() {
		return 0, false
	}
	return v.asFloat(), true
}

// Key returns an injective, type-tagged encoding of v. Two values have
// the same key exactly when they are equal; nulls of one type share a key.
func (v Value) Key() string {
	if v.Null {
		return "\x00" + strconv.Itoa(int(v.Type))
	}
	switch v.Type {
	case Integer:
		return "i" + strconv.FormatInt(v.Int, 10)
	case Float:
		if v.Float == 0 {
			return "f0"
		}
		return "f" + strconv.FormatFloat(v.Float, 'g', -1, 64)
	case Boolean:
		if v.Bool {
			return "b1"
		}
		return "b0"
	case Timestamp:
		return "t" + v.Time.UTC().Format(time.RFC3339Nano)
	default:
		return "s" + v.Str
	}
}

// Compare orders two values of the same type. Nulls sort last.
// Integer and float values compare numerically.
func (v Value) Compare(o Value) int {
	switch {
	case v.Null && o.Null:
		return 0
	case v.Null:
		return 1
	case o.Null:
		return -1
	}
	if v.numeric() && o.numeric() {
		if v.Type == Integer && o.Type == Integer {
			return cmpOrdered(v.Int, o.Int)
		}
		return cmpOrdered(v.asFloat(), o.asFloat())
	}
	if v.Type != o.Type {
		return strings.Compare(v.String(), o.String())
	}
	switch v.Type {
	case Boolean:
		return cmpOrdered(boolInt(v.Bool), boolInt(o.Bool))
	case Timestamp:
		return v.Time.Compare(o.Time)
	default:
		return strings.Compare(v.Str, o.Str)
	}
}

// Interface returns v as a JSON-friendly primitive.
func (v Value) Interface() any {
	if v.Null {
		return nil
	}
	switch v.Type {
	case Integer:
		return v.Int
	case Float:
		return v.Float
	case Boolean:
		return v.Bool
	case Timestamp:
		return v.Time.Format(TimeLayout)
	default:
		return v.Str
	}
}

// String renders v as CSV text; nulls render empty.
func (v Value) String() string {
	if v.Null {
		return ""
	}
	switch v.Type {
	case Integer:
		return strconv.FormatInt(v.Int, 10)
	case Float:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case Boolean:
		return strconv.FormatBool(v.Bool)
	case Timestamp:
		return v.Time.Format(TimeLayout)
	default:
		return v.Str
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func cmpOrdered[T int | int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
