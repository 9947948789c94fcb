package vm

import (
	"fmt"
	"strconv"
)

// doStringFormat implements the printf-style subset of java.util.Formatter
// that PrintStream.format/printf and String.format route through. Flags,
// width, and precision are scanned and discarded rather than enforced —
// only the conversion character changes behavior, matching the
// interpreter's documented formatter scope.
func (vm *VM) doStringFormat(formatStr string, args []Value) (string, *Error) {
	var result []byte
	b := []byte(formatStr)
	i := 0
	argIdx := 0

	for i < len(b) {
		if b[i] == '%' && i+1 < len(b) {
			i++
			for i < len(b) && isFlagOrWidth(b[i]) {
				i++
			}
			if i >= len(b) {
				break
			}
			conv := b[i]
			switch conv {
			case 's':
				if argIdx < len(args) {
					result = append(result, formatArgAsString(vm, args[argIdx])...)
				}
				argIdx++
			case 'd':
				if argIdx < len(args) {
					result = append(result, ToDisplayString(unboxIfNeeded(vm, args[argIdx]))...)
				}
				argIdx++
			case 'f':
				if argIdx < len(args) {
					val := unboxIfNeeded(vm, args[argIdx])
					switch val.Kind {
					case KindFloat:
						result = append(result, strconv.FormatFloat(float64(val.F), 'f', 6, 32)...)
					case KindDouble:
						result = append(result, strconv.FormatFloat(val.D, 'f', 6, 64)...)
					default:
						result = append(result, ToDisplayString(val)...)
					}
				}
				argIdx++
			case 'x':
				if argIdx < len(args) {
					val := unboxIfNeeded(vm, args[argIdx])
					if val.Kind == KindInt {
						result = append(result, fmt.Sprintf("%x", val.I)...)
					} else {
						result = append(result, ToDisplayString(val)...)
					}
				}
				argIdx++
			case 'X':
				if argIdx < len(args) {
					val := unboxIfNeeded(vm, args[argIdx])
					if val.Kind == KindInt {
						result = append(result, fmt.Sprintf("%X", val.I)...)
					} else {
						result = append(result, ToDisplayString(val)...)
					}
				}
				argIdx++
			case 'o':
				if argIdx < len(args) {
					val := unboxIfNeeded(vm, args[argIdx])
					if val.Kind == KindInt {
						result = append(result, fmt.Sprintf("%o", val.I)...)
					} else {
						result = append(result, ToDisplayString(val)...)
					}
				}
				argIdx++
			case 'c':
				if argIdx < len(args) {
					val := unboxIfNeeded(vm, args[argIdx])
					if val.Kind == KindInt {
						result = append(result, string(rune(val.I))...)
					}
				}
				argIdx++
			case 'b':
				if argIdx < len(args) {
					v := args[argIdx]
					s := "true"
					if v.IsNull() || (v.Kind == KindInt && v.I == 0) {
						s = "false"
					}
					result = append(result, s...)
				}
				argIdx++
			case 'n':
				result = append(result, '\n')
			case '%':
				result = append(result, '%')
			default:
				result = append(result, '%', conv)
			}
			i++
		} else {
			result = append(result, b[i])
			i++
		}
	}

	return string(result), nil
}

func isFlagOrWidth(c byte) bool {
	switch c {
	case '-', '+', ' ', '0', '#', '.':
		return true
	}
	return c >= '0' && c <= '9'
}

func formatArgAsString(vm *VM, val Value) string {
	return ToDisplayString(unboxIfNeeded(vm, val))
}
