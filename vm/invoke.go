package vm

const opInvokestatic = 0xB8

// doGetstatic resolves a Fieldref constant, special-cases System.out/err
// (each read mints a fresh PrintStream object so later getfield/putfield
// traffic on it is harmless), falls back to a previously putstatic'd
// value, and finally asks the native bridge for a getstatic_<field>
// hook before defaulting to a zero value.
func (vm *VM) doGetstatic(f *Frame, idx uint16) *Error {
	entry := f.Class.ConstantPool[idx]
	if entry.Tag != cpFieldref {
		return classFormatError("expected Fieldref at cp#%d", idx)
	}
	className, err := f.Class.ClassName(entry.ClassIndex)
	if err != nil {
		return err
	}
	fieldName, _, err := f.Class.ResolveNameAndType(entry.NameAndTypeIndex)
	if err != nil {
		return err
	}

	if className == "java/lang/System" && (fieldName == "out" || fieldName == "err") {
		id := vm.Heap.AllocObject("java/io/PrintStream")
		return f.push(ObjRef(id))
	}

	key := className + "." + fieldName
	statics := vm.staticsFor(className)
	if val, ok := statics[key]; ok {
		return f.push(val)
	}
	result, err := vm.Natives.CallNative(className, "getstatic_"+fieldName, "", nil)
	if err != nil {
		return f.push(IntVal(0))
	}
	return f.push(result)
}

func (vm *VM) doPutstatic(f *Frame, idx uint16) *Error {
	entry := f.Class.ConstantPool[idx]
	if entry.Tag != cpFieldref {
		return classFormatError("expected Fieldref at cp#%d", idx)
	}
	className, err := f.Class.ClassName(entry.ClassIndex)
	if err != nil {
		return err
	}
	fieldName, _, err := f.Class.ResolveNameAndType(entry.NameAndTypeIndex)
	if err != nil {
		return err
	}
	val, err := f.pop()
	if err != nil {
		return err
	}
	vm.staticsFor(className)[className+"."+fieldName] = val
	return nil
}

func (vm *VM) doGetfield(f *Frame, idx uint16) *Error {
	objRef, err := f.popObjectRef()
	if err != nil {
		return err
	}
	entry := f.Class.ConstantPool[idx]
	if entry.Tag != cpFieldref {
		return classFormatError("expected Fieldref at cp#%d", idx)
	}
	fieldName, _, err := f.Class.ResolveNameAndType(entry.NameAndTypeIndex)
	if err != nil {
		return err
	}
	obj, err := vm.Heap.GetObject(objRef)
	if err != nil {
		return err
	}
	return f.push(obj.Get(fieldName))
}

func (vm *VM) doPutfield(f *Frame, idx uint16) *Error {
	val, err := f.pop()
	if err != nil {
		return err
	}
	objRef, err := f.popObjectRef()
	if err != nil {
		return err
	}
	entry := f.Class.ConstantPool[idx]
	if entry.Tag != cpFieldref {
		return classFormatError("expected Fieldref at cp#%d", idx)
	}
	fieldName, _, err := f.Class.ResolveNameAndType(entry.NameAndTypeIndex)
	if err != nil {
		return err
	}
	obj, err := vm.Heap.GetObject(objRef)
	if err != nil {
		return err
	}
	obj.Set(fieldName, val)
	return nil
}

// popObjectRef pops an ObjectRef operand, surfacing a NullPointerException
// (rather than a TypeError) when the popped value is Null — getfield and
// putfield throw NPE on a null receiver, as the array opcodes do on a
// null array.
func (f *Frame) popObjectRef() (uint32, *Error) {
	v, err := f.pop()
	if err != nil {
		return 0, err
	}
	if v.IsNull() {
		return 0, errNullPointer
	}
	return v.AsObjectRef()
}

// doInvokedynamic supports exactly one bootstrap shape: the string
// concatenation factory javac emits for `+`. The recipe byte string
// encodes literal bytes verbatim and a 0x01 byte per substituted
// argument, consumed left to right against the popped, order-restored
// argument list.
func (vm *VM) doInvokedynamic(f *Frame, idx uint16) *Error {
	entry := f.Class.ConstantPool[idx]
	if entry.Tag != cpInvokeDynamic {
		return classFormatError("expected InvokeDynamic at cp#%d", idx)
	}
	methodName, descriptor, err := f.Class.ResolveNameAndType(entry.NameAndTypeIndex)
	if err != nil {
		return err
	}
	if methodName != "makeConcatWithConstants" {
		return unsupportedOpcode(0xBA)
	}

	argCount := CountDescriptorArgs(descriptor)
	args := make([]Value, argCount)
	for i := argCount - 1; i >= 0; i-- {
		v, err := f.pop()
		if err != nil {
			return err
		}
		args[i] = v
	}

	recipe := ""
	if int(entry.BootstrapMethodIndex) < len(f.Class.BootstrapMethods) {
		bsm := f.Class.BootstrapMethods[entry.BootstrapMethodIndex]
		if len(bsm.Arguments) > 0 {
			recipeIdx := bsm.Arguments[0]
			if int(recipeIdx) < len(f.Class.ConstantPool) {
				re := f.Class.ConstantPool[recipeIdx]
				switch re.Tag {
				case cpStringRef:
					recipe, _ = f.Class.Utf8(re.StringIndex)
				case cpUTF8:
					recipe = re.Utf8
				}
			}
		}
	}

	var result []byte
	argIdx := 0
	for i := 0; i < len(recipe); i++ {
		if recipe[i] == 1 {
			if argIdx < len(args) {
				result = append(result, []byte(ToDisplayString(args[argIdx]))...)
				argIdx++
			}
		} else {
			result = append(result, recipe[i])
		}
	}
	for ; argIdx < len(args); argIdx++ {
		result = append(result, []byte(ToDisplayString(args[argIdx]))...)
	}

	return f.push(StrVal(string(result)))
}

// doInvoke resolves a Methodref/InterfaceMethodref, pops the
// receiver-plus-arguments window the descriptor and opcode describe, and
// routes the call through a fixed priority order: System stubs, then
// PrintStream's two native-bridge-backed families, then the built-in
// StringBuilder/String/Integer/boxing/Math intrinsics, then an unknown
// <init> no-op, and finally either a recursive call into a loaded class
// or a native-bridge fallback.
func (vm *VM) doInvoke(f *Frame, op byte, idx uint16) *Error {
	entry := f.Class.ConstantPool[idx]
	if entry.Tag != cpMethodref && entry.Tag != cpInterfaceMethodref {
		return classFormatError("expected Methodref at cp#%d", idx)
	}
	className, err := f.Class.ClassName(entry.ClassIndex)
	if err != nil {
		return err
	}
	methodName, descriptor, err := f.Class.ResolveNameAndType(entry.NameAndTypeIndex)
	if err != nil {
		return err
	}

	argCount := CountDescriptorArgs(descriptor)
	hasReceiver := op != opInvokestatic
	total := argCount
	if hasReceiver {
		total++
	}
	args := make([]Value, total)
	for i := total - 1; i >= 0; i-- {
		v, err := f.pop()
		if err != nil {
			return err
		}
		args[i] = v
	}

	if className == "java/lang/System" && methodName == "exit" {
		code := int32(0)
		if len(args) > 0 {
			if c, err := args[0].AsInt(); err == nil {
				code = c
			}
		}
		return systemExit(code)
	}

	if className == "java/lang/System" && methodName == "currentTimeMillis" {
		return f.push(LongVal(0))
	}

	if className == "java/lang/System" && methodName == "arraycopy" {
		if len(args) >= 5 {
			srcRef, err := args[0].AsArrayRef()
			if err != nil {
				return err
			}
			srcPos, err := args[1].AsInt()
			if err != nil {
				return err
			}
			dstRef, err := args[2].AsArrayRef()
			if err != nil {
				return err
			}
			dstPos, err := args[3].AsInt()
			if err != nil {
				return err
			}
			length, err := args[4].AsInt()
			if err != nil {
				return err
			}
			src, err := vm.Heap.GetArray(srcRef)
			if err != nil {
				return err
			}
			values := make([]Value, length)
			copy(values, src.Elements[srcPos:srcPos+length])
			dst, err := vm.Heap.GetArray(dstRef)
			if err != nil {
				return err
			}
			copy(dst.Elements[dstPos:], values)
		}
		return nil
	}

	if className == "java/io/PrintStream" && (methodName == "println" || methodName == "print") {
		printArgs := args
		if hasReceiver {
			printArgs = args[1:]
		}
		_, err := vm.Natives.CallNative("efi/Console", methodName, descriptor, printArgs)
		return err
	}

	if className == "java/io/PrintStream" && (methodName == "format" || methodName == "printf") {
		printArgs := args
		if hasReceiver {
			printArgs = args[1:]
		}
		if len(printArgs) > 0 && printArgs[0].Kind == KindString {
			var arrVals []Value
			if len(printArgs) > 1 && printArgs[1].Kind == KindArrayRef {
				arr, err := vm.Heap.GetArray(printArgs[1].Arr)
				if err != nil {
					return err
				}
				arrVals = arr.Elements
			}
			result, ferr := vm.doStringFormat(printArgs[0].S, arrVals)
			if ferr != nil {
				return ferr
			}
			if _, err := vm.Natives.CallNative("efi/Console", "print", "(Ljava/lang/String;)V", []Value{StrVal(result)}); err != nil {
				return err
			}
		}
		if hasReceiver {
			return f.push(args[0])
		}
		return nil
	}

	if className == "java/lang/StringBuilder" {
		result, handled, herr := vm.handleStringBuilder(methodName, descriptor, args)
		if herr != nil {
			return herr
		}
		if handled && result != nil {
			return f.push(*result)
		}
		return nil
	}

	if className == "java/lang/String" {
		handled, herr := vm.handleStringMethod(f, methodName, descriptor, args)
		if herr != nil {
			return herr
		}
		if handled {
			return nil
		}
	}

	if className == "java/lang/Integer" {
		handled, herr := vm.handleIntegerMethod(f, methodName, descriptor, args)
		if herr != nil {
			return herr
		}
		if handled {
			return nil
		}
	}

	handled, herr := vm.handleBoxing(f, className, methodName, args)
	if herr != nil {
		return herr
	}
	if handled {
		return nil
	}

	if className == "java/lang/Math" {
		return vm.handleMath(f, methodName, args)
	}

	if methodName == "<init>" {
		if _, ok := vm.Classes[className]; !ok {
			return nil
		}
	}

	if _, ok := vm.Classes[className]; ok {
		result, verr := vm.Execute(className, methodName, descriptor, args)
		if verr != nil {
			return verr
		}
		if descriptorReturnsValue(descriptor) {
			return f.push(result)
		}
		return nil
	}

	result, nerr := vm.Natives.CallNative(className, methodName, descriptor, args)
	if nerr != nil {
		return nerr
	}
	if descriptorReturnsValue(descriptor) {
		return f.push(result)
	}
	return nil
}

func descriptorReturnsValue(descriptor string) bool {
	idx := indexOfByte(descriptor, ')')
	if idx < 0 || idx+1 >= len(descriptor) {
		return false
	}
	return descriptor[idx+1] != 'V'
}

func indexOfByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
