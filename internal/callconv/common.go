package callconv

import (
	"github.com/svenslaggare/stackjit-go/internal/asm/amd64"
	"github.com/svenslaggare/stackjit-go/internal/vm"
)

// overflowSlot returns the memory operand for the i-th stack-spilled
// incoming parameter: parameters beyond the register file live above the
// return address, at [rbp + 16 + 8*i] (rbp+0 is the saved rbp, rbp+8 is
// the return address pushed by `call`).
func overflowSlot(i int) amd64.MemoryOperand {
	return amd64.MemoryOperand{Register: amd64.BP, Offset: int32(16 + 8*i)}
}

func newAssembler(frame Frame) *amd64.Assembler { return amd64.NewAssembler(frame.Buf()) }

func moveIntRegToFrame(frame Frame, slot amd64.MemoryOperand, reg amd64.IntRegister) {
	_ = newAssembler(frame).MoveRegToMemory(slot, reg, amd64.Size64)
}

func moveFloatRegToFrame(frame Frame, slot amd64.MemoryOperand, reg amd64.FloatRegister) {
	newAssembler(frame).MoveFloatRegToMemory(slot, reg)
}

// moveOverflowToFrame copies an incoming stack-spilled argument from its
// caller-supplied slot above the return address into the callee's own
// parameter slot, routing through a scratch register (AX or XMM0 — always
// free here, since this runs before the prologue touches either).
func moveOverflowToFrame(frame Frame, dst, src amd64.MemoryOperand, isFloat bool) {
	a := newAssembler(frame)
	if isFloat {
		a.MoveFloatMemoryToReg(amd64.XMM0, src)
		a.MoveFloatRegToMemory(dst, amd64.XMM0)
	} else {
		_ = a.MoveMemoryToReg(amd64.AX, src, amd64.Size64)
		_ = a.MoveRegToMemory(dst, amd64.AX, amd64.Size64)
	}
}

// moveArgsToStackIndependent implements MoveArgsToStack for a convention
// where integer and float argument registers are counted independently
// (System-V). Windows instead shares one positional counter; see
// moveArgsToStackPositional.
func moveArgsToStackIndependent(frame Frame, fn *vm.ManagedFunction, intRegs []amd64.IntRegister, floatRegs []amd64.FloatRegister) {
	intIdx, floatIdx, overflowIdx := 0, 0, 0
	for i, p := range fn.Params {
		slot := frame.ParamSlot(i)
		if p.IsFloat() {
			if floatIdx < len(floatRegs) {
				moveFloatRegToFrame(frame, slot, floatRegs[floatIdx])
				floatIdx++
			} else {
				moveOverflowToFrame(frame, slot, overflowSlot(overflowIdx), true)
				overflowIdx++
			}
		} else {
			if intIdx < len(intRegs) {
				moveIntRegToFrame(frame, slot, intRegs[intIdx])
				intIdx++
			} else {
				moveOverflowToFrame(frame, slot, overflowSlot(overflowIdx), false)
				overflowIdx++
			}
		}
	}
}

// moveArgsToStackPositional implements MoveArgsToStack for Microsoft-x64,
// where the n-th parameter always consumes the n-th register slot
// regardless of whether it is integer or float.
func moveArgsToStackPositional(frame Frame, fn *vm.ManagedFunction, intRegs []amd64.IntRegister, floatRegs []amd64.FloatRegister) {
	overflowIdx := 0
	for i, p := range fn.Params {
		slot := frame.ParamSlot(i)
		if i < len(intRegs) { // both register files have the same length on Windows
			if p.IsFloat() {
				moveFloatRegToFrame(frame, slot, floatRegs[i])
			} else {
				moveIntRegToFrame(frame, slot, intRegs[i])
			}
		} else {
			moveOverflowToFrame(frame, slot, overflowSlot(overflowIdx), p.IsFloat())
			overflowIdx++
		}
	}
}

// callFunctionArgumentsIndependent pops target's arguments off the operand
// stack — pushed left to right, so the rightmost argument is on top — and
// places each into its ABI slot, counting integer and float registers
// independently (System-V). Returns the number of stack-spilled words.
func callFunctionArgumentsIndependent(frame Frame, target *vm.FunctionDefinition, intRegs []amd64.IntRegister, floatRegs []amd64.FloatRegister) int {
	return placeArguments(frame, target.Params, intRegs, floatRegs, false)
}

// callFunctionArgumentsPositional is the Microsoft-x64 counterpart: a
// parameter's register slot equals its position, regardless of kind.
func callFunctionArgumentsPositional(frame Frame, target *vm.FunctionDefinition, intRegs []amd64.IntRegister, floatRegs []amd64.FloatRegister) int {
	return placeArguments(frame, target.Params, intRegs, floatRegs, true)
}

// placeArguments walks target's parameters from last to first — matching
// the order they come off the operand stack — and either moves each
// popped value straight into its ABI register or, once the register file
// is exhausted, pushes it back onto the native stack as call overflow.
// Under the independent discipline a parameter's register index is how
// many same-kind parameters precede it; under the positional discipline
// it is simply the parameter's own index.
func placeArguments(frame Frame, params []*vm.Type, intRegs []amd64.IntRegister, floatRegs []amd64.FloatRegister, positional bool) int {
	intIdx, floatIdx := countKind(params, false), countKind(params, true)
	stackArgs := 0

	for i := len(params) - 1; i >= 0; i-- {
		p := params[i]
		if p.IsFloat() {
			floatIdx--
		} else {
			intIdx--
		}

		var slot int
		var inRegister bool
		if positional {
			inRegister = i < len(intRegs)
			slot = i
		} else if p.IsFloat() {
			inRegister = floatIdx < len(floatRegs)
			slot = floatIdx
		} else {
			inRegister = intIdx < len(intRegs)
			slot = intIdx
		}

		if p.IsFloat() {
			reg := frame.PopFloat()
			if inRegister {
				if reg != floatRegs[slot] {
					amd64.MoveRegToRegFloat(frame.Buf(), floatRegs[slot], reg)
				}
			} else {
				amd64.PushFloatReg(frame.Buf(), reg)
				stackArgs++
			}
		} else {
			reg := frame.PopInt()
			if inRegister {
				if reg != intRegs[slot] {
					amd64.MoveRegToReg(frame.Buf(), intRegs[slot], reg, false)
				}
			} else {
				amd64.PushReg(frame.Buf(), reg)
				stackArgs++
			}
		}
	}
	return stackArgs
}

func countKind(params []*vm.Type, float bool) int {
	n := 0
	for _, p := range params {
		if p.IsFloat() == float {
			n++
		}
	}
	return n
}

// makeReturnValue emits, in the callee's epilogue, the move from whatever
// register the operand stack's top value is materialized in (the fn's
// final `ret`-producing value) into the ABI return register.
func makeReturnValue(frame Frame, fn *vm.ManagedFunction, intRet amd64.IntRegister, floatRet amd64.FloatRegister) {
	if fn.ReturnType == nil || fn.ReturnType.Kind() == vm.KindVoid {
		return
	}
	if fn.ReturnType.IsFloat() {
		reg := frame.PopFloat()
		if reg != floatRet {
			amd64.MoveRegToRegFloat(frame.Buf(), floatRet, reg)
		}
	} else {
		reg := frame.PopInt()
		if reg != intRet {
			amd64.MoveRegToReg(frame.Buf(), intRet, reg, false)
		}
	}
}

// handleReturnValue emits, at the caller's call site, the native-stack
// cleanup for any spilled arguments followed by pushing the ABI return
// register onto the operand stack, if target returns a value.
func handleReturnValue(frame Frame, target *vm.FunctionDefinition, stackArgs int, intRet amd64.IntRegister, floatRet amd64.FloatRegister) {
	if stackArgs > 0 {
		amd64.AddIntToReg(frame.Buf(), amd64.SP, int32(8*stackArgs), false)
	}
	if target.ReturnType == nil || target.ReturnType.Kind() == vm.KindVoid {
		return
	}
	if target.ReturnType.IsFloat() {
		frame.PushFloat(floatRet)
	} else {
		frame.PushInt(intRet)
	}
}
