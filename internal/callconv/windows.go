package callconv

import (
	"github.com/svenslaggare/stackjit-go/internal/asm/amd64"
	"github.com/svenslaggare/stackjit-go/internal/vm"
)

// Windows implements the Microsoft-x64 calling convention (§4.4): four
// integer and four float parameter registers sharing one positional index
// (the n-th argument always occupies the n-th slot of whichever family it
// needs), plus a mandatory 32-byte caller-allocated shadow space.
type Windows struct{}

func (Windows) IntParamRegisters() []amd64.IntRegister {
	return []amd64.IntRegister{amd64.CX, amd64.DX, amd64.R8, amd64.R9}
}

func (Windows) FloatParamRegisters() []amd64.FloatRegister {
	return []amd64.FloatRegister{amd64.XMM0, amd64.XMM1, amd64.XMM2, amd64.XMM3}
}

func (Windows) ReturnRegisters() (amd64.IntRegister, amd64.FloatRegister) {
	return amd64.AX, amd64.XMM0
}

func (Windows) CalculateShadowStackSize() int { return 32 }

func (c Windows) MoveArgsToStack(frame Frame, fn *vm.ManagedFunction) {
	moveArgsToStackPositional(frame, fn, c.IntParamRegisters(), c.FloatParamRegisters())
}

func (c Windows) CallFunctionArguments(frame Frame, target *vm.FunctionDefinition) int {
	return callFunctionArgumentsPositional(frame, target, c.IntParamRegisters(), c.FloatParamRegisters())
}

// CalculateStackAlignment accounts for the 16-byte alignment requirement at
// the call instruction only. The 32-byte shadow space is returned separately
// by CalculateShadowStackSize, and call sites reserve the sum of the two.
func (Windows) CalculateStackAlignment(stackArgs int) int {
	return (stackArgs % 2) * 8
}

func (c Windows) MakeReturnValue(frame Frame, fn *vm.ManagedFunction) {
	makeReturnValue(frame, fn, c.ReturnRegisters())
}

func (c Windows) HandleReturnValue(frame Frame, target *vm.FunctionDefinition, stackArgs int) {
	handleReturnValue(frame, target, stackArgs, c.ReturnRegisters())
}
