package vm

import "testing"

func TestArithmeticWrapping(t *testing.T) {
	// Int(MAX) + Int(1) == Int(MIN)
	f := &Frame{}
	f.push(IntVal(2147483647))
	f.push(IntVal(1))
	if err := binInt(f, func(a, b int32) int32 { return a + b }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := f.pop()
	if got.I != -2147483648 {
		t.Errorf("MAX+1 = %d, want MIN", got.I)
	}

	// Int(MIN) neg == Int(MIN)
	f2 := &Frame{}
	f2.push(IntVal(-2147483648))
	v2, _ := f2.popInt()
	if err := f2.push(IntVal(-v2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got2, _ := f2.pop()
	if got2.I != -2147483648 {
		t.Errorf("neg(MIN) = %d, want MIN", got2.I)
	}

	// Long(MAX) + Long(1) == Long(MIN)
	f3 := &Frame{}
	f3.push(LongVal(0x7FFFFFFFFFFFFFFF))
	f3.push(LongVal(1))
	if err := binLong(f3, func(a, b int64) int64 { return a + b }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got3, _ := f3.pop()
	if got3.L != -9223372036854775808 {
		t.Errorf("long MAX+1 = %d, want MIN", got3.L)
	}
}

func TestShiftMasking(t *testing.T) {
	// Int(1) << Int(33) == Int(2) (33 & 0x1f == 1)
	v := NewVM(nil)
	frame := &Frame{Code: []byte{opIconst1, opBipush, 33, opIshl, opIreturn}}
	res, err := interpretToReturn(v, frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.I != 2 {
		t.Errorf("1 << 33 = %d, want 2", res.I)
	}

	// Long(1) << Int(65) == Long(2) (65 & 0x3f == 1)
	frame2 := &Frame{Code: []byte{opLconst1, opBipush, 65, opLshl, opLreturn}}
	res2, err := interpretToReturn(v, frame2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res2.L != 2 {
		t.Errorf("1L << 65 = %d, want 2", res2.L)
	}
}

// interpretToReturn runs a frame with no class/method context to its
// first return, for tests that don't need constant-pool/heap access.
func interpretToReturn(vm *VM, f *Frame) (Value, *Error) {
	for {
		res, err := vm.step(f)
		if err != nil {
			return Value{}, err
		}
		switch res.action {
		case actionReturnValue:
			return res.value, nil
		case actionReturnVoid:
			return NullVal, nil
		}
	}
}

func TestNaNComparison(t *testing.T) {
	nan32 := float32(nanFloat32())
	f := &Frame{}
	f.push(FloatVal(nan32))
	f.push(FloatVal(1.0))
	if err := cmpFloat(f, -1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := f.pop()
	if got.I != -1 {
		t.Errorf("fcmpl(NaN, 1.0) = %d, want -1", got.I)
	}

	f2 := &Frame{}
	f2.push(FloatVal(nan32))
	f2.push(FloatVal(1.0))
	if err := cmpFloat(f2, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got2, _ := f2.pop()
	if got2.I != 1 {
		t.Errorf("fcmpg(NaN, 1.0) = %d, want 1", got2.I)
	}

	nan64 := nanFloat64()
	f3 := &Frame{}
	f3.push(DoubleVal(nan64))
	f3.push(DoubleVal(1.0))
	if err := cmpDouble(f3, -1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got3, _ := f3.pop()
	if got3.I != -1 {
		t.Errorf("dcmpl(NaN, 1.0) = %d, want -1", got3.I)
	}
}

func nanFloat32() float32 {
	var zero float32
	return zero / zero
}

func nanFloat64() float64 {
	var zero float64
	return zero / zero
}

// newTestClass builds a minimal ClassFile struct directly (no byte
// decoding) around a single method, wiring just enough constant-pool
// entries for the scenario under test.
func newTestClass(method MethodInfo, pool []CpEntry) *ClassFile {
	return &ClassFile{
		ConstantPool: pool,
		Methods:      []MethodInfo{method},
	}
}

func TestEndToEndLdcAreturn(t *testing.T) {
	// ldc "hi"; areturn
	pool := []CpEntry{
		{Tag: 0},
		{Tag: cpUTF8, Utf8: "hi"},
		{Tag: cpStringRef, StringIndex: 1},
	}
	method := MethodInfo{
		Code: &CodeAttribute{MaxStack: 2, Code: []byte{opLdc, 2, opAreturn}},
	}
	cf := newTestClass(method, pool)
	v := NewVM(nil)
	result, err := v.invokeMethod(cf, &cf.Methods[0], nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != KindString || result.S != "hi" {
		t.Errorf("got %#v, want string \"hi\"", result)
	}
}

func TestEndToEndIaddIreturn(t *testing.T) {
	method := MethodInfo{
		Code: &CodeAttribute{MaxStack: 2, Code: []byte{opIconst2, opIconst3, opIadd, opIreturn}},
	}
	cf := newTestClass(method, nil)
	v := NewVM(nil)
	result, err := v.invokeMethod(cf, &cf.Methods[0], nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != KindInt || result.I != 5 {
		t.Errorf("got %#v, want int 5", result)
	}
}

func TestEndToEndDivisionByZeroUncaught(t *testing.T) {
	method := MethodInfo{
		Code: &CodeAttribute{MaxStack: 2, Code: []byte{opIconst1, opIconst0, opIdiv, opIreturn}},
	}
	cf := newTestClass(method, nil)
	v := NewVM(nil)
	_, err := v.invokeMethod(cf, &cf.Methods[0], nil)
	if err == nil || err.Kind != ErrDivisionByZero {
		t.Fatalf("got %v, want DivisionByZero", err)
	}
}

func TestEndToEndCaughtArithmeticException(t *testing.T) {
	// try { 1/0 } catch (ArithmeticException e) { return 42 }
	pool := []CpEntry{
		{Tag: 0},
		{Tag: cpUTF8, Utf8: "java/lang/ArithmeticException"},
		{Tag: cpClass, NameIndex: 1},
	}
	code := []byte{
		opIconst1, opIconst0, opIdiv, // 0: try block, throws at pc=2
		opIreturn,                    // 3: unreachable (stack empty after throw)
		opPop, opBipush, 42, opIreturn, // 4: handler: pop exception, push 42, return
	}
	method := MethodInfo{
		Code: &CodeAttribute{
			MaxStack: 2,
			Code:     code,
			ExceptionTable: []ExceptionTableEntry{
				{StartPC: 0, EndPC: 3, HandlerPC: 4, CatchType: 2},
			},
		},
	}
	cf := newTestClass(method, pool)
	v := NewVM(nil)
	result, err := v.invokeMethod(cf, &cf.Methods[0], nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != KindInt || result.I != 42 {
		t.Errorf("got %#v, want int 42", result)
	}
}

func TestExceptionMatchingRuntimeExceptionCatchesArithmetic(t *testing.T) {
	pool := []CpEntry{
		{Tag: 0},
		{Tag: cpUTF8, Utf8: "java/lang/RuntimeException"},
		{Tag: cpClass, NameIndex: 1},
	}
	method := MethodInfo{
		Code: &CodeAttribute{
			Code: []byte{opIconst1, opIconst0, opIdiv, opIreturn, opPop, opIconst0, opIreturn},
			ExceptionTable: []ExceptionTableEntry{
				{StartPC: 0, EndPC: 3, HandlerPC: 4, CatchType: 2},
			},
		},
	}
	if _, found := findExceptionHandler(&method, 2, newTestClass(method, pool), "java/lang/ArithmeticException"); !found {
		t.Error("expected RuntimeException handler to catch ArithmeticException")
	}
}

func TestEndToEndStringBuilderAppend(t *testing.T) {
	// new StringBuilder; dup; invokespecial <init>; ldc "foo"; invokevirtual append;
	// ldc "bar"; invokevirtual append; invokevirtual toString
	pool := []CpEntry{
		{Tag: 0},
		{Tag: cpUTF8, Utf8: "java/lang/StringBuilder"},
		{Tag: cpClass, NameIndex: 1},
		{Tag: cpUTF8, Utf8: "<init>"},
		{Tag: cpUTF8, Utf8: "()V"},
		{Tag: cpNameAndType, NameIndex: 3, DescriptorIndex: 4},
		{Tag: cpMethodref, ClassIndex: 2, NameAndTypeIndex: 5},
		{Tag: cpUTF8, Utf8: "foo"},
		{Tag: cpStringRef, StringIndex: 7},
		{Tag: cpUTF8, Utf8: "append"},
		{Tag: cpUTF8, Utf8: "(Ljava/lang/String;)Ljava/lang/StringBuilder;"},
		{Tag: cpNameAndType, NameIndex: 9, DescriptorIndex: 10},
		{Tag: cpMethodref, ClassIndex: 2, NameAndTypeIndex: 11},
		{Tag: cpUTF8, Utf8: "bar"},
		{Tag: cpStringRef, StringIndex: 13},
		{Tag: cpUTF8, Utf8: "toString"},
		{Tag: cpUTF8, Utf8: "()Ljava/lang/String;"},
		{Tag: cpNameAndType, NameIndex: 15, DescriptorIndex: 16},
		{Tag: cpMethodref, ClassIndex: 2, NameAndTypeIndex: 17},
	}
	code := []byte{
		opNew, 0, 2,
		opDup,
		opInvokespecial, 0, 6,
		opLdc, 8,
		opInvokevirtual, 0, 12,
		opLdc, 14,
		opInvokevirtual, 0, 12,
		opInvokevirtual, 0, 18,
		opAreturn,
	}
	method := MethodInfo{Code: &CodeAttribute{MaxStack: 4, Code: code}}
	cf := newTestClass(method, pool)
	v := NewVM(nil)
	result, err := v.invokeMethod(cf, &cf.Methods[0], nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != KindString || result.S != "foobar" {
		t.Errorf("got %#v, want string \"foobar\"", result)
	}
}

func TestEndToEndStringFormat(t *testing.T) {
	v := NewVM(nil)
	got, err := v.doStringFormat("%d-%s", []Value{IntVal(7), StrVal("x")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "7-x" {
		t.Errorf("got %q, want \"7-x\"", got)
	}
}
