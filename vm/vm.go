package vm

// VM owns every loaded class, the shared heap, the pluggable native
// bridge, and the per-class static-field tables. A VM is not safe for
// concurrent use by multiple goroutines; callers that want concurrent
// execution should construct one VM per goroutine and share nothing but
// immutable inputs (class bytes).
type VM struct {
	Classes map[string]*ClassFile
	Heap    *Heap
	Natives NativeBridge
	Statics map[string]map[string]Value
}

func NewVM(natives NativeBridge) *VM {
	if natives == nil {
		natives = NoopNatives{}
	}
	return &VM{
		Classes: make(map[string]*ClassFile),
		Heap:    newHeap(),
		Natives: natives,
		Statics: make(map[string]map[string]Value),
	}
}

// LoadClass decodes a class-file buffer and registers it under its own
// this-class name, returning that name for convenience.
func (vm *VM) LoadClass(data []byte) (string, *Error) {
	cf, err := ParseClass(data)
	if err != nil {
		return "", err
	}
	name, err := cf.ThisClassName()
	if err != nil {
		return "", err
	}
	vm.Classes[name] = cf
	vm.Statics[name] = make(map[string]Value)
	return name, nil
}

func (vm *VM) findClass(name string) (*ClassFile, *Error) {
	cf, ok := vm.Classes[name]
	if !ok {
		return nil, classNotFound(name)
	}
	return cf, nil
}

func (vm *VM) staticsFor(className string) map[string]Value {
	m, ok := vm.Statics[className]
	if !ok {
		m = make(map[string]Value)
		vm.Statics[className] = m
	}
	return m
}

// isSubclass implements the interpreter's hard-coded exception hierarchy.
// Only the classes a thrown runtime error or a checked catch type can
// plausibly name are modeled. The super classes declared by loaded class
// files are not consulted, and interfaces are not modeled: a user-defined
// class is a subclass only of itself.
func isSubclass(child, parent string) bool {
	if child == parent {
		return true
	}
	chain := map[string]string{
		"java/lang/NullPointerException":           "java/lang/RuntimeException",
		"java/lang/ArithmeticException":             "java/lang/RuntimeException",
		"java/lang/ArrayIndexOutOfBoundsException":  "java/lang/IndexOutOfBoundsException",
		"java/lang/IndexOutOfBoundsException":       "java/lang/RuntimeException",
		"java/lang/RuntimeException":                "java/lang/Exception",
		"java/lang/Exception":                       "java/lang/Throwable",
		"java/lang/Throwable":                       "java/lang/Object",
	}
	cur := child
	for {
		next, ok := chain[cur]
		if !ok {
			return false
		}
		if next == parent {
			return true
		}
		cur = next
	}
}

// Execute resolves className/methodName/descriptor to a loaded method and
// runs it to completion, returning its return value (NullVal for void
// methods) or the error that terminated it. SystemExit is returned like
// any other *Error; callers that launch a program should check
// err.Kind == ErrSystemExit and treat it as a clean exit with err.Code.
func (vm *VM) Execute(className, methodName, descriptor string, args []Value) (Value, *Error) {
	cf, err := vm.findClass(className)
	if err != nil {
		return Value{}, err
	}
	method := cf.FindMethod(methodName, descriptor)
	if method == nil {
		method = cf.FindMethodByName(methodName)
	}
	if method == nil {
		return Value{}, methodNotFound("%s.%s%s", className, methodName, descriptor)
	}
	return vm.invokeMethod(cf, method, args)
}

// invokeMethod sets up a fresh frame seeded with args in local slots
// 0..len(args) and drives it through interpret. This is also the path
// user-defined-method calls recurse through from doInvoke in invoke.go
// (via Execute);
// Go's native call stack stands in for an explicit frame stack, per the
// bounded-recursion design.
func (vm *VM) invokeMethod(cf *ClassFile, method *MethodInfo, args []Value) (Value, *Error) {
	if method.Code == nil {
		return Value{}, nativeMethodError("method has no code")
	}
	frame := newFrame(cf, method)
	for i, a := range args {
		if i < len(frame.Locals) {
			frame.Locals[i] = a
		}
	}
	return vm.interpret(frame)
}

// findExceptionHandler scans a method's exception table for the first
// entry covering pc whose catch type (0 means "any") matches
// exceptionClassName via isSubclass.
func findExceptionHandler(method *MethodInfo, pc int, cf *ClassFile, exceptionClassName string) (int, bool) {
	if method.Code == nil {
		return 0, false
	}
	for _, ent := range method.Code.ExceptionTable {
		if pc < int(ent.StartPC) || pc >= int(ent.EndPC) {
			continue
		}
		if ent.CatchType == 0 {
			return int(ent.HandlerPC), true
		}
		catchName, err := cf.ClassName(ent.CatchType)
		if err != nil {
			continue
		}
		if isSubclass(exceptionClassName, catchName) {
			return int(ent.HandlerPC), true
		}
	}
	return 0, false
}

// interpret drives a frame's fetch-decode-execute loop to completion. A
// runtime error that maps to a reifiable exception class (see
// exceptionClassFor) is first offered to the frame's own exception table;
// only once no handler claims it does interpret surface it to the caller
// as a Go error, which invokeMethod's caller (a recursive invokeMethod, or
// Execute itself) propagates exactly like a Java exception unwinding the
// call stack.
func (vm *VM) interpret(frame *Frame) (Value, *Error) {
	for {
		res, err := vm.step(frame)
		if err != nil {
			excClass, ok := exceptionClassFor(err)
			if !ok {
				return Value{}, err
			}
			handlerPC, found := findExceptionHandler(frame.Method, frame.lastOpPC, frame.Class, excClass)
			if !found {
				return Value{}, err
			}
			objID := vm.Heap.AllocObject(excClass)
			obj, _ := vm.Heap.GetObject(objID)
			obj.Set("detailMessage", StrVal(err.Error()))
			frame.Stack = frame.Stack[:0]
			if pushErr := frame.push(ObjRef(objID)); pushErr != nil {
				return Value{}, pushErr
			}
			frame.PC = handlerPC
			continue
		}
		switch res.action {
		case actionReturnValue:
			return res.value, nil
		case actionReturnVoid:
			return NullVal, nil
		default:
			continue
		}
	}
}
