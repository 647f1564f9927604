package callconv

import (
	"github.com/svenslaggare/stackjit-go/internal/asm/amd64"
	"github.com/svenslaggare/stackjit-go/internal/vm"
)

// SystemV implements the POSIX System-V-AMD64 calling convention (§4.4):
// six integer parameter registers and eight float parameter registers,
// each family counted independently; no shadow stack.
type SystemV struct{}

func (SystemV) IntParamRegisters() []amd64.IntRegister {
	return []amd64.IntRegister{amd64.DI, amd64.SI, amd64.DX, amd64.CX, amd64.R8, amd64.R9}
}

func (SystemV) FloatParamRegisters() []amd64.FloatRegister {
	return []amd64.FloatRegister{amd64.XMM0, amd64.XMM1, amd64.XMM2, amd64.XMM3, amd64.XMM4, amd64.XMM5, amd64.XMM6, amd64.XMM7}
}

func (SystemV) ReturnRegisters() (amd64.IntRegister, amd64.FloatRegister) {
	return amd64.AX, amd64.XMM0
}

func (SystemV) CalculateShadowStackSize() int { return 0 }

func (c SystemV) MoveArgsToStack(frame Frame, fn *vm.ManagedFunction) {
	moveArgsToStackIndependent(frame, fn, c.IntParamRegisters(), c.FloatParamRegisters())
}

func (c SystemV) CallFunctionArguments(frame Frame, target *vm.FunctionDefinition) int {
	return callFunctionArgumentsIndependent(frame, target, c.IntParamRegisters(), c.FloatParamRegisters())
}

func (SystemV) CalculateStackAlignment(stackArgs int) int {
	return (stackArgs % 2) * 8
}

func (c SystemV) MakeReturnValue(frame Frame, fn *vm.ManagedFunction) {
	makeReturnValue(frame, fn, c.ReturnRegisters())
}

func (c SystemV) HandleReturnValue(frame Frame, target *vm.FunctionDefinition, stackArgs int) {
	handleReturnValue(frame, target, stackArgs, c.ReturnRegisters())
}
