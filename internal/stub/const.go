package stub

import (
	"math"
	"strconv"
)

// ConstKind classifies a compile-time constant value.
type ConstKind uint8

const (
	ConstNone ConstKind = iota // absent
	ConstNull
	ConstBool
	ConstInt
	ConstFloat
	ConstString
	ConstEnumEntry
)

func (k ConstKind) String() string {
	switch k {
	case ConstNull:
		return "null"
	case ConstBool:
		return "bool"
	case ConstInt:
		return "int"
	case ConstFloat:
		return "float"
	case ConstString:
		return "string"
	case ConstEnumEntry:
		return "enum"
	default:
		return "none"
	}
}

// ConstValue is a literal attached to a compile-time constant declaration.
// The zero value means "no constant". Only the payload field matching Kind is
// meaningful; constructors keep the others zeroed so values stay comparable.
type ConstValue struct {
	Kind  ConstKind
	Bool  bool
	Int   int64
	Float float64
	Text  string // string payload, or enum entry name
	Class string // enum class id for ConstEnumEntry
}

func NullConst() ConstValue           { return ConstValue{Kind: ConstNull} }
func BoolConst(v bool) ConstValue     { return ConstValue{Kind: ConstBool, Bool: v} }
func IntConst(v int64) ConstValue     { return ConstValue{Kind: ConstInt, Int: v} }
func FloatConst(v float64) ConstValue { return ConstValue{Kind: ConstFloat, Float: v} }
func StringConst(v string) ConstValue { return ConstValue{Kind: ConstString, Text: v} }
func EnumConst(class, entry string) ConstValue {
	return ConstValue{Kind: ConstEnumEntry, Class: class, Text: entry}
}

// IsSet reports whether the value is present.
func (c ConstValue) IsSet() bool { return c.Kind != ConstNone }

// Equal compares floats by bit pattern, so NaN equals itself and 0 differs
// from -0, matching what the wire format preserves.
func (c ConstValue) Equal(o ConstValue) bool {
	if math.Float64bits(c.Float) != math.Float64bits(o.Float) {
		return false
	}
	c.Float, o.Float = 0, 0
	return c == o
}

func (c ConstValue) String() string {
	switch c.Kind {
	case ConstNull:
		return "null"
	case ConstBool:
		return strconv.FormatBool(c.Bool)
	case ConstInt:
		return strconv.FormatInt(c.Int, 10)
	case ConstFloat:
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	case ConstString:
		return strconv.Quote(c.Text)
	case ConstEnumEntry:
		return c.Class + "." + c.Text
	default:
		return "<none>"
	}
}
