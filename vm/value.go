package vm

import "fmt"

// Kind tags a Value's case. Arithmetic opcodes consume and produce values
// of the exact declared kind; see popFloat/popDouble for the two places
// narrower kinds are implicitly promoted.
type Kind int

const (
	KindInt Kind = iota
	KindLong
	KindFloat
	KindDouble
	KindNull
	KindObjectRef
	KindArrayRef
	KindString
	KindReturnAddress
)

// Value is the tagged union every interpreter stack slot and local
// variable holds. Only one of the fields below is meaningful, selected
// by Kind.
type Value struct {
	Kind Kind
	I    int32
	L    int64
	F    float32
	D    float64
	Obj  uint32
	Arr  uint32
	S    string
	Ret  int
}

func IntVal(v int32) Value    { return Value{Kind: KindInt, I: v} }
func LongVal(v int64) Value   { return Value{Kind: KindLong, L: v} }
func FloatVal(v float32) Value { return Value{Kind: KindFloat, F: v} }
func DoubleVal(v float64) Value { return Value{Kind: KindDouble, D: v} }
func ObjRef(id uint32) Value  { return Value{Kind: KindObjectRef, Obj: id} }
func ArrRef(id uint32) Value  { return Value{Kind: KindArrayRef, Arr: id} }
func StrVal(s string) Value   { return Value{Kind: KindString, S: s} }
func RetAddr(pc int) Value    { return Value{Kind: KindReturnAddress, Ret: pc} }

var NullVal = Value{Kind: KindNull}

func (v Value) IsNull() bool { return v.Kind == KindNull }

func (v Value) AsInt() (int32, *Error) {
	if v.Kind != KindInt {
		return 0, typeError("expected int")
	}
	return v.I, nil
}

func (v Value) AsLong() (int64, *Error) {
	if v.Kind != KindLong {
		return 0, typeError("expected long")
	}
	return v.L, nil
}

func (v Value) AsString() (string, *Error) {
	if v.Kind != KindString {
		return "", typeError("expected string")
	}
	return v.S, nil
}

func (v Value) AsObjectRef() (uint32, *Error) {
	if v.Kind != KindObjectRef {
		return 0, typeError("expected object ref")
	}
	return v.Obj, nil
}

func (v Value) AsArrayRef() (uint32, *Error) {
	if v.Kind != KindArrayRef {
		return 0, typeError("expected array ref")
	}
	return v.Arr, nil
}

// asFloat additionally accepts Int (treated as promoted), per the
// widening invariant in the data model: no other implicit conversion
// happens on the operand stack.
func (v Value) asFloat() (float32, *Error) {
	switch v.Kind {
	case KindFloat:
		return v.F, nil
	case KindInt:
		return float32(v.I), nil
	default:
		return 0, typeError("expected float")
	}
}

// asDouble additionally accepts Int, Long, and Float.
func (v Value) asDouble() (float64, *Error) {
	switch v.Kind {
	case KindDouble:
		return v.D, nil
	case KindFloat:
		return float64(v.F), nil
	case KindInt:
		return float64(v.I), nil
	case KindLong:
		return float64(v.L), nil
	default:
		return 0, typeError("expected double")
	}
}

// refEqual implements if_acmp* identity comparison: both-null is equal,
// otherwise handles must match by kind and index.
func refEqual(a, b Value) bool {
	if a.Kind == KindNull && b.Kind == KindNull {
		return true
	}
	if a.Kind == KindObjectRef && b.Kind == KindObjectRef {
		return a.Obj == b.Obj
	}
	if a.Kind == KindArrayRef && b.Kind == KindArrayRef {
		return a.Arr == b.Arr
	}
	return false
}

// ToDisplayString is the universal value-to-string conversion used by
// string concatenation, StringBuilder.append, and the formatter.
func ToDisplayString(v Value) string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("%d", v.I)
	case KindLong:
		return fmt.Sprintf("%d", v.L)
	case KindFloat:
		return formatFloat32(v.F)
	case KindDouble:
		return formatFloat64(v.D)
	case KindString:
		return v.S
	case KindNull:
		return "null"
	case KindObjectRef:
		return fmt.Sprintf("Object@%d", v.Obj)
	case KindArrayRef:
		return fmt.Sprintf("Array@%d", v.Arr)
	case KindReturnAddress:
		return fmt.Sprintf("RetAddr@%d", v.Ret)
	default:
		return ""
	}
}

func formatFloat32(f float32) string {
	return trimFloatString(fmt.Sprintf("%g", f))
}

func formatFloat64(f float64) string {
	return trimFloatString(fmt.Sprintf("%g", f))
}

// trimFloatString nudges Go's %g rendering toward Java's Float/Double
// toString, which always includes a decimal point for finite values.
func trimFloatString(s string) string {
	for _, r := range s {
		if r == '.' || r == 'e' || r == 'E' || r == 'N' || r == 'I' {
			return s
		}
	}
	return s + ".0"
}
