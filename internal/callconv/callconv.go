// Package callconv is the calling-convention adapter (C4): it bridges the
// VM's stack-discipline calling convention with the host platform's ABI
// (System-V-AMD64 on POSIX, Microsoft-x64 on Windows). The per-function
// compiler treats a CallingConvention as opaque; it never encodes an ABI
// register assignment itself.
package callconv

import (
	"github.com/svenslaggare/stackjit-go/internal/asm"
	"github.com/svenslaggare/stackjit-go/internal/asm/amd64"
	"github.com/svenslaggare/stackjit-go/internal/vm"
)

// Frame is the slice of the per-function compiler's state a calling
// convention needs: the emission buffer, a way to address a parameter's
// frame slot, and the operand-stack materializer's push/pop primitives
// (C5). Defining this as an interface (rather than importing the compiler
// package's concrete type) keeps the dependency one-directional: compiler
// imports callconv, not the reverse.
type Frame interface {
	Buf() *asm.Buffer
	ParamSlot(i int) amd64.MemoryOperand
	PopInt() amd64.IntRegister
	PopFloat() amd64.FloatRegister
	PushInt(amd64.IntRegister)
	PushFloat(amd64.FloatRegister)
}

// CallingConvention is the interface opaque to C6 (§4.4).
type CallingConvention interface {
	// MoveArgsToStack emits prologue code that reads each parameter from
	// its ABI location and stores it at the parameter's frame slot, so
	// that subsequent bytecode sees all parameters as ordinary stack
	// slots.
	MoveArgsToStack(frame Frame, fn *vm.ManagedFunction)

	// CallFunctionArguments emits code that pops outgoing arguments off
	// the operand stack and places them in target's ABI slots. Returns
	// the number of stack-spilled (overflow) argument words, needed by
	// CalculateStackAlignment.
	CallFunctionArguments(frame Frame, target *vm.FunctionDefinition) (stackArgs int)

	// CalculateStackAlignment returns the extra bytes to subtract from
	// RSP before the call so that (rsp mod 16) == 0 at call entry.
	CalculateStackAlignment(stackArgs int) int

	// CalculateShadowStackSize returns the ABI's reserved shadow space
	// (32 on Windows, 0 on POSIX).
	CalculateShadowStackSize() int

	// MakeReturnValue emits, in the callee, code popping the return value
	// from the operand stack into the ABI return register.
	MakeReturnValue(frame Frame, fn *vm.ManagedFunction)

	// HandleReturnValue emits, in the caller, the stack cleanup for a
	// spilled argument area and pushes the ABI return register onto the
	// operand stack if target's return type is non-void.
	HandleReturnValue(frame Frame, target *vm.FunctionDefinition, stackArgs int)

	// IntParamRegisters and FloatParamRegisters expose the ABI's
	// parameter register files, in order, for callers that need to know
	// where the n-th argument lives without going through the full
	// call-site emission (e.g. emitVirtualCall, which reads the `this`
	// argument from the first integer parameter register).
	IntParamRegisters() []amd64.IntRegister
	FloatParamRegisters() []amd64.FloatRegister

	// ReturnRegisters returns (int return register, float return register).
	ReturnRegisters() (amd64.IntRegister, amd64.FloatRegister)
}

// ForGOOS returns the calling convention appropriate for the given GOOS
// value ("windows" selects Microsoft-x64; everything else selects
// System-V-AMD64).
func ForGOOS(goos string) CallingConvention {
	if goos == "windows" {
		return Windows{}
	}
	return SystemV{}
}
