package vm

// step decodes and executes exactly one instruction starting at f.PC,
// advancing f.PC past the opcode and any operands it consumes. opPC is
// the address of the opcode itself, which branch instructions compute
// their target relative to.
func (vm *VM) step(f *Frame) (execResult, *Error) {
	opPC := f.PC
	f.lastOpPC = opPC
	op, err := f.readU8()
	if err != nil {
		return execResult{}, err
	}

	switch op {
	case opNop:
		// no-op

	case opAconstNull:
		err = f.push(NullVal)
	case opIconstM1:
		err = f.push(IntVal(-1))
	case opIconst0:
		err = f.push(IntVal(0))
	case opIconst1:
		err = f.push(IntVal(1))
	case opIconst2:
		err = f.push(IntVal(2))
	case opIconst3:
		err = f.push(IntVal(3))
	case opIconst4:
		err = f.push(IntVal(4))
	case opIconst5:
		err = f.push(IntVal(5))
	case opLconst0:
		err = f.push(LongVal(0))
	case opLconst1:
		err = f.push(LongVal(1))
	case opFconst0:
		err = f.push(FloatVal(0))
	case opFconst1:
		err = f.push(FloatVal(1))
	case opFconst2:
		err = f.push(FloatVal(2))
	case opDconst0:
		err = f.push(DoubleVal(0))
	case opDconst1:
		err = f.push(DoubleVal(1))

	case opBipush:
		var v int8
		v, err = f.readI8()
		if err == nil {
			err = f.push(IntVal(int32(v)))
		}
	case opSipush:
		var v int16
		v, err = f.readI16()
		if err == nil {
			err = f.push(IntVal(int32(v)))
		}

	case opLdc:
		var idx byte
		idx, err = f.readU8()
		if err == nil {
			err = vm.pushLdc(f, uint16(idx))
		}
	case opLdcW:
		var idx uint16
		idx, err = f.readU16()
		if err == nil {
			err = vm.pushLdc(f, idx)
		}
	case opLdc2W:
		var idx uint16
		idx, err = f.readU16()
		if err == nil {
			entry := f.Class.ConstantPool[idx]
			switch entry.Tag {
			case cpLong:
				err = f.push(LongVal(entry.Long))
			case cpDouble:
				err = f.push(DoubleVal(entry.Double))
			default:
				err = classFormatError("bad ldc2_w at cp#%d", idx)
			}
		}

	case opIload, opAload, opLload, opFload, opDload:
		var idx byte
		idx, err = f.readU8()
		if err == nil {
			err = f.push(f.Locals[idx])
		}
	case opIload0, opAload0, opFload0, opDload0, opLload0:
		err = f.push(f.Locals[0])
	case opIload1, opAload1, opFload1, opDload1, opLload1:
		err = f.push(f.Locals[1])
	case opIload2, opAload2, opFload2, opDload2, opLload2:
		err = f.push(f.Locals[2])
	case opIload3, opAload3, opFload3, opDload3, opLload3:
		err = f.push(f.Locals[3])

	case opIaload, opAaload, opBaload, opCaload, opSaload, opLaload, opFaload, opDaload:
		err = vm.execArrayLoad(f)

	case opIstore, opAstore, opLstore, opFstore, opDstore:
		var idx byte
		idx, err = f.readU8()
		if err == nil {
			var v Value
			v, err = f.pop()
			if err == nil {
				f.Locals[idx] = v
			}
		}
	case opIstore0, opAstore0, opFstore0, opDstore0, opLstore0:
		err = storeLocal(f, 0)
	case opIstore1, opAstore1, opFstore1, opDstore1, opLstore1:
		err = storeLocal(f, 1)
	case opIstore2, opAstore2, opFstore2, opDstore2, opLstore2:
		err = storeLocal(f, 2)
	case opIstore3, opAstore3, opFstore3, opDstore3, opLstore3:
		err = storeLocal(f, 3)

	case opIastore, opBastore, opCastore, opSastore, opLastore, opFastore, opDastore, opAastore:
		err = vm.execArrayStore(f)

	case opPop:
		_, err = f.pop()
	case opPop2:
		if _, err = f.pop(); err == nil {
			_, err = f.pop()
		}
	case opDup:
		err = execDup(f)
	case opDupX1:
		err = execDupX1(f)
	case opDupX2:
		err = execDupX2(f)
	case opDup2:
		err = execDup2(f)
	case opDup2X1:
		err = execDup2X1(f)
	case opDup2X2:
		err = execDup2X2(f)
	case opSwap:
		err = execSwap(f)

	case opIadd:
		err = binInt(f, func(a, b int32) int32 { return a + b })
	case opLadd:
		err = binLong(f, func(a, b int64) int64 { return a + b })
	case opFadd:
		err = binFloat(f, func(a, b float32) float32 { return a + b })
	case opDadd:
		err = binDouble(f, func(a, b float64) float64 { return a + b })

	case opIsub:
		err = binInt(f, func(a, b int32) int32 { return a - b })
	case opLsub:
		err = binLong(f, func(a, b int64) int64 { return a - b })
	case opFsub:
		err = binFloat(f, func(a, b float32) float32 { return a - b })
	case opDsub:
		err = binDouble(f, func(a, b float64) float64 { return a - b })

	case opImul:
		err = binInt(f, func(a, b int32) int32 { return a * b })
	case opLmul:
		err = binLong(f, func(a, b int64) int64 { return a * b })
	case opFmul:
		err = binFloat(f, func(a, b float32) float32 { return a * b })
	case opDmul:
		err = binDouble(f, func(a, b float64) float64 { return a * b })

	case opIdiv:
		var b, a int32
		if b, err = f.popInt(); err == nil {
			if a, err = f.popInt(); err == nil {
				if b == 0 {
					err = errDivisionByZero
				} else {
					err = f.push(IntVal(a / b))
				}
			}
		}
	case opLdiv:
		var b, a int64
		if b, err = f.popLong(); err == nil {
			if a, err = f.popLong(); err == nil {
				if b == 0 {
					err = errDivisionByZero
				} else {
					err = f.push(LongVal(a / b))
				}
			}
		}
	case opFdiv:
		err = binFloat(f, func(a, b float32) float32 { return a / b })
	case opDdiv:
		err = binDouble(f, func(a, b float64) float64 { return a / b })

	case opIrem:
		var b, a int32
		if b, err = f.popInt(); err == nil {
			if a, err = f.popInt(); err == nil {
				if b == 0 {
					err = errDivisionByZero
				} else {
					err = f.push(IntVal(a % b))
				}
			}
		}
	case opLrem:
		var b, a int64
		if b, err = f.popLong(); err == nil {
			if a, err = f.popLong(); err == nil {
				if b == 0 {
					err = errDivisionByZero
				} else {
					err = f.push(LongVal(a % b))
				}
			}
		}
	case opFrem:
		err = binFloat(f, floatRem)
	case opDrem:
		err = binDouble(f, doubleRem)

	case opIneg:
		var v int32
		if v, err = f.popInt(); err == nil {
			err = f.push(IntVal(-v))
		}
	case opLneg:
		var v int64
		if v, err = f.popLong(); err == nil {
			err = f.push(LongVal(-v))
		}
	case opFneg:
		var v float32
		if v, err = f.popFloat(); err == nil {
			err = f.push(FloatVal(-v))
		}
	case opDneg:
		var v float64
		if v, err = f.popDouble(); err == nil {
			err = f.push(DoubleVal(-v))
		}

	case opIshl:
		var b, a int32
		if b, err = f.popInt(); err == nil {
			if a, err = f.popInt(); err == nil {
				err = f.push(IntVal(a << (uint32(b) & 0x1f)))
			}
		}
	case opLshl:
		var b int32
		var a int64
		if b, err = f.popInt(); err == nil {
			if a, err = f.popLong(); err == nil {
				err = f.push(LongVal(a << (uint32(b) & 0x3f)))
			}
		}
	case opIshr:
		var b, a int32
		if b, err = f.popInt(); err == nil {
			if a, err = f.popInt(); err == nil {
				err = f.push(IntVal(a >> (uint32(b) & 0x1f)))
			}
		}
	case opLshr:
		var b int32
		var a int64
		if b, err = f.popInt(); err == nil {
			if a, err = f.popLong(); err == nil {
				err = f.push(LongVal(a >> (uint32(b) & 0x3f)))
			}
		}
	case opIushr:
		var b, a int32
		if b, err = f.popInt(); err == nil {
			if a, err = f.popInt(); err == nil {
				err = f.push(IntVal(int32(uint32(a) >> (uint32(b) & 0x1f))))
			}
		}
	case opLushr:
		var b int32
		var a int64
		if b, err = f.popInt(); err == nil {
			if a, err = f.popLong(); err == nil {
				err = f.push(LongVal(int64(uint64(a) >> (uint32(b) & 0x3f))))
			}
		}
	case opIand:
		err = binInt(f, func(a, b int32) int32 { return a & b })
	case opLand:
		err = binLong(f, func(a, b int64) int64 { return a & b })
	case opIor:
		err = binInt(f, func(a, b int32) int32 { return a | b })
	case opLor:
		err = binLong(f, func(a, b int64) int64 { return a | b })
	case opIxor:
		err = binInt(f, func(a, b int32) int32 { return a ^ b })
	case opLxor:
		err = binLong(f, func(a, b int64) int64 { return a ^ b })

	case opIinc:
		var idx byte
		var inc int8
		if idx, err = f.readU8(); err == nil {
			if inc, err = f.readI8(); err == nil {
				if f.Locals[idx].Kind == KindInt {
					f.Locals[idx] = IntVal(f.Locals[idx].I + int32(inc))
				}
			}
		}

	case opI2l:
		var v int32
		if v, err = f.popInt(); err == nil {
			err = f.push(LongVal(int64(v)))
		}
	case opI2f:
		var v int32
		if v, err = f.popInt(); err == nil {
			err = f.push(FloatVal(float32(v)))
		}
	case opI2d:
		var v int32
		if v, err = f.popInt(); err == nil {
			err = f.push(DoubleVal(float64(v)))
		}
	case opL2i:
		var v int64
		if v, err = f.popLong(); err == nil {
			err = f.push(IntVal(int32(v)))
		}
	case opL2f:
		var v int64
		if v, err = f.popLong(); err == nil {
			err = f.push(FloatVal(float32(v)))
		}
	case opL2d:
		var v int64
		if v, err = f.popLong(); err == nil {
			err = f.push(DoubleVal(float64(v)))
		}
	case opF2i:
		var v float32
		if v, err = f.popFloat(); err == nil {
			err = f.push(IntVal(int32(v)))
		}
	case opF2l:
		var v float32
		if v, err = f.popFloat(); err == nil {
			err = f.push(LongVal(int64(v)))
		}
	case opF2d:
		var v float32
		if v, err = f.popFloat(); err == nil {
			err = f.push(DoubleVal(float64(v)))
		}
	case opD2i:
		var v float64
		if v, err = f.popDouble(); err == nil {
			err = f.push(IntVal(int32(v)))
		}
	case opD2l:
		var v float64
		if v, err = f.popDouble(); err == nil {
			err = f.push(LongVal(int64(v)))
		}
	case opD2f:
		var v float64
		if v, err = f.popDouble(); err == nil {
			err = f.push(FloatVal(float32(v)))
		}
	case opI2b:
		var v int32
		if v, err = f.popInt(); err == nil {
			err = f.push(IntVal(int32(int8(v))))
		}
	case opI2c:
		var v int32
		if v, err = f.popInt(); err == nil {
			err = f.push(IntVal(int32(uint16(v))))
		}
	case opI2s:
		var v int32
		if v, err = f.popInt(); err == nil {
			err = f.push(IntVal(int32(int16(v))))
		}

	case opLcmp:
		var b, a int64
		if b, err = f.popLong(); err == nil {
			if a, err = f.popLong(); err == nil {
				err = f.push(IntVal(compare3(a > b, a == b)))
			}
		}
	case opFcmpl:
		err = cmpFloat(f, -1)
	case opFcmpg:
		err = cmpFloat(f, 1)
	case opDcmpl:
		err = cmpDouble(f, -1)
	case opDcmpg:
		err = cmpDouble(f, 1)

	case opIfeq:
		err = branchIf(f, opPC, func(v int32) bool { return v == 0 })
	case opIfne:
		err = branchIf(f, opPC, func(v int32) bool { return v != 0 })
	case opIflt:
		err = branchIf(f, opPC, func(v int32) bool { return v < 0 })
	case opIfge:
		err = branchIf(f, opPC, func(v int32) bool { return v >= 0 })
	case opIfgt:
		err = branchIf(f, opPC, func(v int32) bool { return v > 0 })
	case opIfle:
		err = branchIf(f, opPC, func(v int32) bool { return v <= 0 })

	case opIfIcmpeq:
		err = branchIfICmp(f, opPC, func(a, b int32) bool { return a == b })
	case opIfIcmpne:
		err = branchIfICmp(f, opPC, func(a, b int32) bool { return a != b })
	case opIfIcmplt:
		err = branchIfICmp(f, opPC, func(a, b int32) bool { return a < b })
	case opIfIcmpge:
		err = branchIfICmp(f, opPC, func(a, b int32) bool { return a >= b })
	case opIfIcmpgt:
		err = branchIfICmp(f, opPC, func(a, b int32) bool { return a > b })
	case opIfIcmple:
		err = branchIfICmp(f, opPC, func(a, b int32) bool { return a <= b })

	case opIfAcmpeq:
		err = branchIfACmp(f, opPC, true)
	case opIfAcmpne:
		err = branchIfACmp(f, opPC, false)
	case opIfnull:
		var off int16
		var v Value
		if off, err = f.readI16(); err == nil {
			if v, err = f.pop(); err == nil && v.IsNull() {
				f.PC = opPC + int(off)
			}
		}
	case opIfnonnull:
		var off int16
		var v Value
		if off, err = f.readI16(); err == nil {
			if v, err = f.pop(); err == nil && !v.IsNull() {
				f.PC = opPC + int(off)
			}
		}

	case opGoto:
		var off int16
		if off, err = f.readI16(); err == nil {
			f.PC = opPC + int(off)
		}
	case opGotoW:
		var off int32
		if off, err = f.readI32(); err == nil {
			f.PC = opPC + int(off)
		}

	case opTableswitch:
		err = vm.execTableswitch(f, opPC)
	case opLookupswitch:
		err = vm.execLookupswitch(f, opPC)

	case opIreturn, opLreturn, opFreturn, opDreturn, opAreturn:
		var v Value
		if v, err = f.pop(); err == nil {
			return execResult{action: actionReturnValue, value: v}, nil
		}
	case opReturn:
		return execResult{action: actionReturnVoid}, nil

	case opGetstatic:
		var idx uint16
		if idx, err = f.readU16(); err == nil {
			err = vm.doGetstatic(f, idx)
		}
	case opPutstatic:
		var idx uint16
		if idx, err = f.readU16(); err == nil {
			err = vm.doPutstatic(f, idx)
		}
	case opGetfield:
		var idx uint16
		if idx, err = f.readU16(); err == nil {
			err = vm.doGetfield(f, idx)
		}
	case opPutfield:
		var idx uint16
		if idx, err = f.readU16(); err == nil {
			err = vm.doPutfield(f, idx)
		}

	case opInvokevirtual, opInvokespecial, opInvokestatic:
		var idx uint16
		if idx, err = f.readU16(); err == nil {
			err = vm.doInvoke(f, op, idx)
		}
	case opInvokeinterface:
		var idx uint16
		if idx, err = f.readU16(); err == nil {
			if _, err = f.readU8(); err == nil {
				if _, err = f.readU8(); err == nil {
					err = vm.doInvoke(f, opInvokevirtual, idx)
				}
			}
		}
	case opInvokedynamic:
		var idx uint16
		if idx, err = f.readU16(); err == nil {
			if _, err = f.readU16(); err == nil {
				err = vm.doInvokedynamic(f, idx)
			}
		}

	case opNew:
		var idx uint16
		if idx, err = f.readU16(); err == nil {
			var name string
			if name, err = f.Class.ClassName(idx); err == nil {
				id := vm.Heap.AllocObject(name)
				err = f.push(ObjRef(id))
			}
		}

	case opNewarray:
		err = vm.execNewarray(f)
	case opAnewarray:
		err = vm.execAnewarray(f)
	case opMultianewarray:
		err = vm.execMultianewarray(f)
	case opArraylength:
		err = vm.execArraylength(f)

	case opAthrow:
		return execResult{}, vm.execAthrow(f)

	case opCheckcast:
		err = vm.execCheckcast(f)
	case opInstanceof:
		err = vm.execInstanceof(f)

	case opMonitorenter, opMonitorexit:
		_, err = f.pop()

	case opWide:
		err = vm.execWide(f)

	default:
		return execResult{}, unsupportedOpcode(op)
	}

	if err != nil {
		return execResult{}, err
	}
	return execResult{action: actionContinue}, nil
}

func storeLocal(f *Frame, idx int) *Error {
	v, err := f.pop()
	if err != nil {
		return err
	}
	f.Locals[idx] = v
	return nil
}

func binInt(f *Frame, op func(a, b int32) int32) *Error {
	b, err := f.popInt()
	if err != nil {
		return err
	}
	a, err := f.popInt()
	if err != nil {
		return err
	}
	return f.push(IntVal(op(a, b)))
}

func binLong(f *Frame, op func(a, b int64) int64) *Error {
	b, err := f.popLong()
	if err != nil {
		return err
	}
	a, err := f.popLong()
	if err != nil {
		return err
	}
	return f.push(LongVal(op(a, b)))
}

func binFloat(f *Frame, op func(a, b float32) float32) *Error {
	b, err := f.popFloat()
	if err != nil {
		return err
	}
	a, err := f.popFloat()
	if err != nil {
		return err
	}
	return f.push(FloatVal(op(a, b)))
}

func binDouble(f *Frame, op func(a, b float64) float64) *Error {
	b, err := f.popDouble()
	if err != nil {
		return err
	}
	a, err := f.popDouble()
	if err != nil {
		return err
	}
	return f.push(DoubleVal(op(a, b)))
}

func floatRem(a, b float32) float32 {
	return a - b*float32(int32(a/b))
}

func doubleRem(a, b float64) float64 {
	return a - b*float64(int64(a/b))
}

func compare3(greater, equal bool) int32 {
	if greater {
		return 1
	}
	if equal {
		return 0
	}
	return -1
}

func cmpFloat(f *Frame, nanResult int32) *Error {
	b, err := f.popFloat()
	if err != nil {
		return err
	}
	a, err := f.popFloat()
	if err != nil {
		return err
	}
	if isNaN32(a) || isNaN32(b) {
		return f.push(IntVal(nanResult))
	}
	return f.push(IntVal(compare3(a > b, a == b)))
}

func cmpDouble(f *Frame, nanResult int32) *Error {
	b, err := f.popDouble()
	if err != nil {
		return err
	}
	a, err := f.popDouble()
	if err != nil {
		return err
	}
	if isNaN64(a) || isNaN64(b) {
		return f.push(IntVal(nanResult))
	}
	return f.push(IntVal(compare3(a > b, a == b)))
}

func isNaN32(f float32) bool { return f != f }
func isNaN64(f float64) bool { return f != f }

func branchIf(f *Frame, opPC int, cond func(int32) bool) *Error {
	off, err := f.readI16()
	if err != nil {
		return err
	}
	v, err := f.popInt()
	if err != nil {
		return err
	}
	if cond(v) {
		f.PC = opPC + int(off)
	}
	return nil
}

func branchIfICmp(f *Frame, opPC int, cond func(a, b int32) bool) *Error {
	off, err := f.readI16()
	if err != nil {
		return err
	}
	b, err := f.popInt()
	if err != nil {
		return err
	}
	a, err := f.popInt()
	if err != nil {
		return err
	}
	if cond(a, b) {
		f.PC = opPC + int(off)
	}
	return nil
}

func branchIfACmp(f *Frame, opPC int, wantEqual bool) *Error {
	off, err := f.readI16()
	if err != nil {
		return err
	}
	b, err := f.pop()
	if err != nil {
		return err
	}
	a, err := f.pop()
	if err != nil {
		return err
	}
	if refEqual(a, b) == wantEqual {
		f.PC = opPC + int(off)
	}
	return nil
}

func execDup(f *Frame) *Error {
	v, err := f.pop()
	if err != nil {
		return err
	}
	if err := f.push(v); err != nil {
		return err
	}
	return f.push(v)
}

func execDupX1(f *Frame) *Error {
	v1, err := f.pop()
	if err != nil {
		return err
	}
	v2, err := f.pop()
	if err != nil {
		return err
	}
	f.push(v1)
	f.push(v2)
	return f.push(v1)
}

func execDupX2(f *Frame) *Error {
	v1, err := f.pop()
	if err != nil {
		return err
	}
	v2, err := f.pop()
	if err != nil {
		return err
	}
	v3, err := f.pop()
	if err != nil {
		return err
	}
	f.push(v1)
	f.push(v3)
	f.push(v2)
	return f.push(v1)
}

func execDup2(f *Frame) *Error {
	v1, err := f.pop()
	if err != nil {
		return err
	}
	v2, err := f.pop()
	if err != nil {
		return err
	}
	f.push(v2)
	f.push(v1)
	f.push(v2)
	return f.push(v1)
}

func execDup2X1(f *Frame) *Error {
	v1, err := f.pop()
	if err != nil {
		return err
	}
	v2, err := f.pop()
	if err != nil {
		return err
	}
	v3, err := f.pop()
	if err != nil {
		return err
	}
	f.push(v2)
	f.push(v1)
	f.push(v3)
	f.push(v2)
	return f.push(v1)
}

func execDup2X2(f *Frame) *Error {
	v1, err := f.pop()
	if err != nil {
		return err
	}
	v2, err := f.pop()
	if err != nil {
		return err
	}
	v3, err := f.pop()
	if err != nil {
		return err
	}
	v4, err := f.pop()
	if err != nil {
		return err
	}
	f.push(v2)
	f.push(v1)
	f.push(v4)
	f.push(v3)
	f.push(v2)
	return f.push(v1)
}

func execSwap(f *Frame) *Error {
	b, err := f.pop()
	if err != nil {
		return err
	}
	a, err := f.pop()
	if err != nil {
		return err
	}
	f.push(b)
	return f.push(a)
}

func (vm *VM) execArrayLoad(f *Frame) *Error {
	index, err := f.popInt()
	if err != nil {
		return err
	}
	arrRef, err := f.pop()
	if err != nil {
		return err
	}
	if arrRef.IsNull() {
		return errNullPointer
	}
	id, err := arrRef.AsArrayRef()
	if err != nil {
		return err
	}
	arr, err := vm.Heap.GetArray(id)
	if err != nil {
		return err
	}
	if index < 0 || int(index) >= len(arr.Elements) {
		return arrayIndexOutOfBounds(index, len(arr.Elements))
	}
	return f.push(arr.Elements[index])
}

func (vm *VM) execArrayStore(f *Frame) *Error {
	val, err := f.pop()
	if err != nil {
		return err
	}
	index, err := f.popInt()
	if err != nil {
		return err
	}
	arrRef, err := f.pop()
	if err != nil {
		return err
	}
	if arrRef.IsNull() {
		return errNullPointer
	}
	id, err := arrRef.AsArrayRef()
	if err != nil {
		return err
	}
	arr, err := vm.Heap.GetArray(id)
	if err != nil {
		return err
	}
	if index < 0 || int(index) >= len(arr.Elements) {
		return arrayIndexOutOfBounds(index, len(arr.Elements))
	}
	arr.Elements[index] = val
	return nil
}

func (vm *VM) pushLdc(f *Frame, idx uint16) *Error {
	entry := f.Class.ConstantPool[idx]
	switch entry.Tag {
	case cpInteger:
		return f.push(IntVal(entry.Integer))
	case cpFloat:
		return f.push(FloatVal(entry.Float))
	case cpLong:
		return f.push(LongVal(entry.Long))
	case cpDouble:
		return f.push(DoubleVal(entry.Double))
	case cpStringRef:
		s, err := f.Class.Utf8(entry.StringIndex)
		if err != nil {
			return err
		}
		return f.push(StrVal(s))
	case cpClass:
		return f.push(NullVal)
	default:
		return classFormatError("unsupported ldc at cp#%d", idx)
	}
}

func (vm *VM) execTableswitch(f *Frame, opPC int) *Error {
	base := opPC + 1
	f.PC = (base + 3) &^ 3
	defaultOff, err := f.readI32()
	if err != nil {
		return err
	}
	low, err := f.readI32()
	if err != nil {
		return err
	}
	high, err := f.readI32()
	if err != nil {
		return err
	}
	index, err := f.popInt()
	if err != nil {
		return err
	}
	if index >= low && index <= high {
		entry := int(index - low)
		f.PC = (base+3)&^3 + 12 + entry*4
		off, err := f.readI32()
		if err != nil {
			return err
		}
		f.PC = opPC + int(off)
	} else {
		f.PC = opPC + int(defaultOff)
	}
	return nil
}

func (vm *VM) execLookupswitch(f *Frame, opPC int) *Error {
	base := opPC + 1
	f.PC = (base + 3) &^ 3
	defaultOff, err := f.readI32()
	if err != nil {
		return err
	}
	npairs, err := f.readI32()
	if err != nil {
		return err
	}
	key, err := f.popInt()
	if err != nil {
		return err
	}
	pairsStart := f.PC
	found := false
	for i := 0; i < int(npairs); i++ {
		f.PC = pairsStart + i*8
		matchVal, err := f.readI32()
		if err != nil {
			return err
		}
		off, err := f.readI32()
		if err != nil {
			return err
		}
		if key == matchVal {
			f.PC = opPC + int(off)
			found = true
			break
		}
	}
	if !found {
		f.PC = opPC + int(defaultOff)
	}
	return nil
}

func (vm *VM) execNewarray(f *Frame) *Error {
	atype, err := f.readU8()
	if err != nil {
		return err
	}
	count, err := f.popInt()
	if err != nil {
		return err
	}
	var elem string
	switch atype {
	case 4:
		elem = "boolean"
	case 5:
		elem = "char"
	case 6:
		elem = "float"
	case 7:
		elem = "double"
	case 8:
		elem = "byte"
	case 9:
		elem = "short"
	case 10:
		elem = "int"
	case 11:
		elem = "long"
	default:
		return classFormatError("bad newarray type %d", atype)
	}
	if count < 0 {
		return &Error{Kind: ErrOutOfMemory}
	}
	id := vm.Heap.AllocArray(elem, int(count))
	return f.push(ArrRef(id))
}

func (vm *VM) execAnewarray(f *Frame) *Error {
	if _, err := f.readU16(); err != nil {
		return err
	}
	count, err := f.popInt()
	if err != nil {
		return err
	}
	if count < 0 {
		return &Error{Kind: ErrOutOfMemory}
	}
	id := vm.Heap.AllocArray("object", int(count))
	return f.push(ArrRef(id))
}

// execMultianewarray allocates only the outermost dimension; this
// interpreter has no nested-array Value representation, so inner
// dimensions collapse into a single flat array of the requested size.
func (vm *VM) execMultianewarray(f *Frame) *Error {
	if _, err := f.readU16(); err != nil {
		return err
	}
	dims, err := f.readU8()
	if err != nil {
		return err
	}
	counts := make([]int32, dims)
	for i := int(dims) - 1; i >= 0; i-- {
		c, err := f.popInt()
		if err != nil {
			return err
		}
		counts[i] = c
	}
	size := int32(0)
	if len(counts) > 0 {
		size = counts[0]
	}
	if size < 0 {
		return &Error{Kind: ErrOutOfMemory}
	}
	id := vm.Heap.AllocArray("object", int(size))
	return f.push(ArrRef(id))
}

func (vm *VM) execArraylength(f *Frame) *Error {
	v, err := f.pop()
	if err != nil {
		return err
	}
	if v.IsNull() {
		return errNullPointer
	}
	id, err := v.AsArrayRef()
	if err != nil {
		return err
	}
	arr, err := vm.Heap.GetArray(id)
	if err != nil {
		return err
	}
	return f.push(IntVal(int32(len(arr.Elements))))
}

// execAthrow pops the thrown reference and searches the current frame's
// exception table directly (rather than going through step()'s generic
// error-return path, which only reifies the three interceptable runtime
// errors) since the thrown class name can be arbitrary. If no handler in
// this frame claims it, it surfaces as a NativeMethodError that unwinds
// the Go call stack exactly like any other interpreter failure.
func (vm *VM) execAthrow(f *Frame) *Error {
	excVal, err := f.pop()
	if err != nil {
		return err
	}
	className := "java/lang/Throwable"
	if excVal.Kind == KindObjectRef {
		obj, err := vm.Heap.GetObject(excVal.Obj)
		if err == nil {
			className = obj.ClassName
		}
	}
	if handlerPC, found := findExceptionHandler(f.Method, f.lastOpPC, f.Class, className); found {
		f.Stack = f.Stack[:0]
		if pushErr := f.push(excVal); pushErr != nil {
			return pushErr
		}
		f.PC = handlerPC
		return nil
	}
	return nativeMethodError("uncaught exception: %s", className)
}

func (vm *VM) execCheckcast(f *Frame) *Error {
	idx, err := f.readU16()
	if err != nil {
		return err
	}
	val, err := f.pop()
	if err != nil {
		return err
	}
	if !val.IsNull() {
		targetName, err := f.Class.ClassName(idx)
		if err != nil {
			return err
		}
		ok := true
		if val.Kind == KindObjectRef {
			obj, err := vm.Heap.GetObject(val.Obj)
			if err != nil {
				return err
			}
			ok = isSubclass(obj.ClassName, targetName)
		}
		if !ok {
			return nativeMethodError("ClassCastException: cannot cast to %s", targetName)
		}
	}
	return f.push(val)
}

func (vm *VM) execInstanceof(f *Frame) *Error {
	idx, err := f.readU16()
	if err != nil {
		return err
	}
	val, err := f.pop()
	if err != nil {
		return err
	}
	if val.IsNull() {
		return f.push(IntVal(0))
	}
	targetName, err := f.Class.ClassName(idx)
	if err != nil {
		return err
	}
	result := false
	if val.Kind == KindObjectRef {
		obj, err := vm.Heap.GetObject(val.Obj)
		if err != nil {
			return err
		}
		result = isSubclass(obj.ClassName, targetName)
	}
	return f.push(boolVal(result))
}

func (vm *VM) execWide(f *Frame) *Error {
	wideOp, err := f.readU8()
	if err != nil {
		return err
	}
	switch wideOp {
	case opIload, opLload, opFload, opDload, opAload:
		idx, err := f.readU16()
		if err != nil {
			return err
		}
		return f.push(f.Locals[idx])
	case opIstore, opLstore, opFstore, opDstore, opAstore:
		idx, err := f.readU16()
		if err != nil {
			return err
		}
		v, err := f.pop()
		if err != nil {
			return err
		}
		f.Locals[idx] = v
		return nil
	case opIinc:
		idx, err := f.readU16()
		if err != nil {
			return err
		}
		inc, err := f.readI16()
		if err != nil {
			return err
		}
		if f.Locals[idx].Kind == KindInt {
			f.Locals[idx] = IntVal(f.Locals[idx].I + int32(inc))
		}
		return nil
	default:
		return unsupportedOpcode(wideOp)
	}
}
