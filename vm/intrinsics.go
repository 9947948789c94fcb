package vm

import (
	"strconv"
	"strings"
)

// handleStringMethod covers the subset of java.lang.String's instance and
// static surface the interpreter special-cases instead of routing through
// a loaded class. It reports handled=false for anything else so doInvoke
// can keep falling through its priority chain.
func (vm *VM) handleStringMethod(f *Frame, methodName, descriptor string, args []Value) (bool, *Error) {
	switch methodName {
	case "valueOf":
		var s string
		switch descriptor {
		case "(Z)Ljava/lang/String;":
			v := argInt(args, 0)
			if v != 0 {
				s = "true"
			} else {
				s = "false"
			}
		case "(C)Ljava/lang/String;":
			v := argInt(args, 0)
			s = string(rune(v))
		default:
			if len(args) > 0 {
				s = ToDisplayString(args[len(args)-1])
			} else {
				s = "null"
			}
		}
		return true, f.push(StrVal(s))

	case "format":
		var fmtStr string
		arrArg := -1
		if len(args) > 0 && args[0].Kind == KindString {
			fmtStr = args[0].S
			arrArg = 1
		} else if len(args) > 1 && args[1].Kind == KindString {
			fmtStr = args[1].S
			arrArg = 2
		}
		var formatArgs []Value
		if arrArg >= 0 && len(args) > arrArg && args[arrArg].Kind == KindArrayRef {
			arr, err := vm.Heap.GetArray(args[arrArg].Arr)
			if err != nil {
				return true, err
			}
			formatArgs = arr.Elements
		}
		result, err := vm.doStringFormat(fmtStr, formatArgs)
		if err != nil {
			return true, err
		}
		return true, f.push(StrVal(result))

	case "concat":
		a := argString(args, 0)
		var result string
		if len(args) > 1 && args[1].Kind == KindString {
			result = a + args[1].S
		} else {
			result = a
		}
		return true, f.push(StrVal(result))

	case "replace":
		s := argString(args, 0)
		var result string
		if len(args) > 2 && args[1].Kind == KindInt && args[2].Kind == KindInt {
			oldC := string(rune(args[1].I))
			newC := string(rune(args[2].I))
			result = strings.ReplaceAll(s, oldC, newC)
		} else if len(args) > 2 && args[1].Kind == KindString && args[2].Kind == KindString {
			result = strings.ReplaceAll(s, args[1].S, args[2].S)
		} else {
			result = s
		}
		return true, f.push(StrVal(result))

	case "length":
		return true, f.push(IntVal(int32(len(argString(args, 0)))))

	case "charAt":
		s := argString(args, 0)
		idx := int(argInt(args, 1))
		var ch int32
		if idx >= 0 && idx < len(s) {
			ch = int32(s[idx])
		}
		return true, f.push(IntVal(ch))

	case "equals":
		a, aOK := stringArg(args, 0)
		b, bOK := stringArg(args, 1)
		var result bool
		if aOK && bOK {
			result = a == b
		} else if !aOK && !bOK && isNullArg(args, 0) && isNullArg(args, 1) {
			result = true
		}
		return true, f.push(boolVal(result))

	case "hashCode":
		s := argString(args, 0)
		var h int32
		for i := 0; i < len(s); i++ {
			h = h*31 + int32(s[i])
		}
		return true, f.push(IntVal(h))

	case "substring":
		s := argString(args, 0)
		begin := int(argInt(args, 1))
		end := len(s)
		if len(args) > 2 {
			end = int(argInt(args, 2))
		}
		var sub string
		if begin >= 0 && begin <= end && end <= len(s) {
			sub = s[begin:end]
		}
		return true, f.push(StrVal(sub))

	case "indexOf":
		s := argString(args, 0)
		result := int32(-1)
		if len(args) > 1 && args[1].Kind == KindInt {
			result = int32(strings.IndexByte(s, byte(args[1].I)))
		} else if len(args) > 1 && args[1].Kind == KindString {
			result = int32(strings.Index(s, args[1].S))
		}
		return true, f.push(IntVal(result))

	case "contains":
		s := argString(args, 0)
		needle, ok := stringArg(args, 1)
		return true, f.push(boolVal(ok && strings.Contains(s, needle)))

	case "isEmpty":
		s, ok := stringArg(args, 0)
		return true, f.push(boolVal(!ok || s == ""))

	case "startsWith":
		s := argString(args, 0)
		prefix, ok := stringArg(args, 1)
		return true, f.push(boolVal(ok && strings.HasPrefix(s, prefix)))

	case "endsWith":
		s := argString(args, 0)
		suffix, ok := stringArg(args, 1)
		return true, f.push(boolVal(ok && strings.HasSuffix(s, suffix)))

	case "toCharArray":
		s := argString(args, 0)
		arrID := vm.Heap.AllocArray("char", len(s))
		arr, _ := vm.Heap.GetArray(arrID)
		for i := 0; i < len(s); i++ {
			arr.Elements[i] = IntVal(int32(s[i]))
		}
		return true, f.push(ArrRef(arrID))

	case "compareTo":
		a := argString(args, 0)
		b := argString(args, 1)
		return true, f.push(IntVal(int32(strings.Compare(a, b))))

	case "trim":
		return true, f.push(StrVal(strings.TrimSpace(argString(args, 0))))

	case "toLowerCase":
		return true, f.push(StrVal(strings.ToLower(argString(args, 0))))

	case "toUpperCase":
		return true, f.push(StrVal(strings.ToUpper(argString(args, 0))))

	default:
		return false, nil
	}
}

func (vm *VM) handleIntegerMethod(f *Frame, methodName, descriptor string, args []Value) (bool, *Error) {
	switch methodName {
	case "parseInt":
		s, ok := stringArg(args, 0)
		if !ok {
			return true, f.push(IntVal(0))
		}
		radix := 10
		if len(args) > 1 && args[1].Kind == KindInt {
			radix = int(args[1].I)
		}
		v, convErr := strconv.ParseInt(strings.TrimSpace(s), radix, 32)
		if convErr != nil {
			return true, nativeMethodError("NumberFormatException: %s", s)
		}
		return true, f.push(IntVal(int32(v)))

	case "valueOf":
		if len(args) > 0 && args[0].Kind == KindInt {
			id := vm.Heap.AllocObject("java/lang/Integer")
			obj, _ := vm.Heap.GetObject(id)
			obj.Set("value", args[0])
			return true, f.push(ObjRef(id))
		}
		if s, ok := stringArg(args, 0); ok {
			v, convErr := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
			if convErr != nil {
				return true, f.push(NullVal)
			}
			id := vm.Heap.AllocObject("java/lang/Integer")
			obj, _ := vm.Heap.GetObject(id)
			obj.Set("value", IntVal(int32(v)))
			return true, f.push(ObjRef(id))
		}
		return true, f.push(NullVal)

	case "intValue":
		if len(args) > 0 && args[0].Kind == KindObjectRef {
			obj, err := vm.Heap.GetObject(args[0].Obj)
			if err != nil {
				return true, err
			}
			return true, f.push(obj.Get("value"))
		}
		return true, f.push(IntVal(argInt(args, 0)))

	case "toString":
		if len(args) > 0 && args[0].Kind == KindInt {
			return true, f.push(StrVal(ToDisplayString(args[0])))
		}
		if len(args) > 0 && args[0].Kind == KindObjectRef {
			obj, err := vm.Heap.GetObject(args[0].Obj)
			if err != nil {
				return true, err
			}
			return true, f.push(StrVal(ToDisplayString(obj.Get("value"))))
		}
		return true, f.push(StrVal("0"))

	default:
		return false, nil
	}
}

var boxingClasses = map[string]bool{
	"java/lang/Boolean":   true,
	"java/lang/Byte":      true,
	"java/lang/Short":     true,
	"java/lang/Character": true,
	"java/lang/Long":      true,
}

var unboxMethods = map[string]bool{
	"intValue":   true,
	"longValue":  true,
	"shortValue": true,
	"byteValue":  true,
	"charValue":  true,
}

func (vm *VM) handleBoxing(f *Frame, className, methodName string, args []Value) (bool, *Error) {
	if methodName == "valueOf" && boxingClasses[className] {
		if len(args) == 0 {
			return true, f.push(NullVal)
		}
		id := vm.Heap.AllocObject(className)
		obj, _ := vm.Heap.GetObject(id)
		obj.Set("value", args[0])
		return true, f.push(ObjRef(id))
	}

	if unboxMethods[methodName] {
		if len(args) > 0 && args[0].Kind == KindObjectRef {
			obj, err := vm.Heap.GetObject(args[0].Obj)
			if err != nil {
				return true, err
			}
			return true, f.push(obj.Get("value"))
		}
		if len(args) > 0 {
			return true, f.push(args[0])
		}
		return true, f.push(IntVal(0))
	}

	return false, nil
}

// handleStringBuilder implements a StringBuilder object as a single
// string-valued "value" field, since the interpreter has no notion of a
// resizable char buffer distinct from the Value.String case.
func (vm *VM) handleStringBuilder(methodName, descriptor string, args []Value) (*Value, bool, *Error) {
	switch methodName {
	case "<init>":
		return nil, true, nil

	case "append":
		if len(args) == 0 {
			return nil, true, typeError("StringBuilder.append needs a receiver")
		}
		objRef, err := args[0].AsObjectRef()
		if err != nil {
			return nil, true, err
		}
		obj, err := vm.Heap.GetObject(objRef)
		if err != nil {
			return nil, true, err
		}
		current := ""
		if v := obj.Get("value"); v.Kind == KindString {
			current = v.S
		}
		if len(args) > 1 {
			current += ToDisplayString(args[1])
		}
		obj.Set("value", StrVal(current))
		result := ObjRef(objRef)
		return &result, true, nil

	case "toString":
		if len(args) == 0 {
			return nil, true, typeError("StringBuilder.toString needs a receiver")
		}
		objRef, err := args[0].AsObjectRef()
		if err != nil {
			return nil, true, err
		}
		obj, err := vm.Heap.GetObject(objRef)
		if err != nil {
			return nil, true, err
		}
		s := ""
		if v := obj.Get("value"); v.Kind == KindString {
			s = v.S
		}
		result := StrVal(s)
		return &result, true, nil

	default:
		return nil, false, nil
	}
}

// handleMath implements java.lang.Math's abs/max/min across all four
// numeric kinds. The original builtins only cover Int/Long for max/min;
// this extends to Float/Double to match the documented intrinsic surface.
func (vm *VM) handleMath(f *Frame, methodName string, args []Value) *Error {
	switch methodName {
	case "abs":
		if len(args) == 0 {
			return f.push(IntVal(0))
		}
		switch args[0].Kind {
		case KindInt:
			v := args[0].I
			if v < 0 {
				v = -v
			}
			return f.push(IntVal(v))
		case KindLong:
			v := args[0].L
			if v < 0 {
				v = -v
			}
			return f.push(LongVal(v))
		case KindFloat:
			v := args[0].F
			if v < 0 {
				v = -v
			}
			return f.push(FloatVal(v))
		case KindDouble:
			v := args[0].D
			if v < 0 {
				v = -v
			}
			return f.push(DoubleVal(v))
		default:
			return f.push(IntVal(0))
		}

	case "max", "min":
		if len(args) < 2 {
			return f.push(IntVal(0))
		}
		a, b := args[0], args[1]
		greater := methodName == "max"
		switch {
		case a.Kind == KindInt && b.Kind == KindInt:
			if (a.I > b.I) == greater {
				return f.push(a)
			}
			return f.push(b)
		case a.Kind == KindLong && b.Kind == KindLong:
			if (a.L > b.L) == greater {
				return f.push(a)
			}
			return f.push(b)
		case a.Kind == KindFloat && b.Kind == KindFloat:
			if (a.F > b.F) == greater {
				return f.push(a)
			}
			return f.push(b)
		case a.Kind == KindDouble && b.Kind == KindDouble:
			if (a.D > b.D) == greater {
				return f.push(a)
			}
			return f.push(b)
		default:
			return f.push(IntVal(0))
		}

	default:
		return f.push(IntVal(0))
	}
}

func unboxIfNeeded(vm *VM, val Value) Value {
	if val.Kind == KindObjectRef {
		if obj, err := vm.Heap.GetObject(val.Obj); err == nil {
			return obj.Get("value")
		}
	}
	return val
}

func argInt(args []Value, i int) int32 {
	if i < len(args) && args[i].Kind == KindInt {
		return args[i].I
	}
	return 0
}

func argString(args []Value, i int) string {
	if i < len(args) && args[i].Kind == KindString {
		return args[i].S
	}
	return ""
}

func stringArg(args []Value, i int) (string, bool) {
	if i < len(args) && args[i].Kind == KindString {
		return args[i].S, true
	}
	return "", false
}

func isNullArg(args []Value, i int) bool {
	return i < len(args) && args[i].IsNull()
}

func boolVal(b bool) Value {
	if b {
		return IntVal(1)
	}
	return IntVal(0)
}
