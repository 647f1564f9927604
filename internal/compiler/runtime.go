package compiler

import (
	"github.com/svenslaggare/stackjit-go/internal/asm"
	"github.com/svenslaggare/stackjit-go/internal/asm/amd64"
	"github.com/svenslaggare/stackjit-go/internal/vm"
	"github.com/svenslaggare/stackjit-go/internal/vmruntime"
)

// externalFunc builds the FunctionDefinition shell the engine (C7) resolves
// a genuine Go function's entry point into. These never go through
// cc.CallFunctionArguments: every call site in codegen.go has already
// placed its arguments directly into the System-V integer registers the
// corresponding Go function expects, so Params exists only for
// Signature()'s sake, not for argument-placement.
func externalFunc(name string) *vm.FunctionDefinition {
	return &vm.FunctionDefinition{Name: name, IsExternal: true, ReturnType: vm.Void}
}

var (
	runtimeNewObject          = externalFunc("runtime::NewObject")
	runtimeNewArray           = externalFunc("runtime::NewArray")
	runtimePushFrame          = externalFunc("runtime::PushFrame")
	runtimePopFrame           = externalFunc("runtime::PopFrame")
	runtimeWriteBarrier       = externalFunc("runtime::WriteBarrier")
	runtimeFaultNullReference = externalFunc("runtime::FaultNullReference")
	runtimeFaultArrayBounds   = externalFunc("runtime::FaultArrayBounds")
	runtimeFaultInvalidLength = externalFunc("runtime::FaultInvalidArrayLength")
	runtimeFaultStackOverflow = externalFunc("runtime::FaultStackOverflow")
)

// runtimeBridgeNames pairs each shell above with the vmruntime.Bridge* stub
// name (vmruntime/bridge_amd64.s) that actually implements the register
// contract each call site below assumes. Kept here, next to the call sites
// that assume each signature's register placement, rather than in
// vmruntime itself.
var runtimeBridgeNames = map[*vm.FunctionDefinition]string{
	runtimeNewObject:          "NewObject",
	runtimeNewArray:           "NewArray",
	runtimePushFrame:          "PushFrame",
	runtimePopFrame:           "PopFrame",
	runtimeWriteBarrier:       "WriteBarrier",
	runtimeFaultNullReference: "FaultNullReference",
	runtimeFaultArrayBounds:   "FaultArrayBounds",
	runtimeFaultInvalidLength: "FaultInvalidLength",
	runtimeFaultStackOverflow: "FaultStackOverflow",
}

// RuntimeFunctions resolves every runtime helper's EntryPoint to its
// vmruntime.Bridge* stub and returns their FunctionDefinitions. The engine
// calls it once at startup for the resolution alone and does not add the
// returned definitions to the program's symbol table; JIT-emitted code
// reaches a runtime helper only through emitRuntimeCall's CallFixups.
//
// A Bridge* stub, not the target Go function itself, is what JIT-emitted
// code calls: the stub's body (vmruntime/bridge_amd64.s) is written to
// consume arguments from exactly the registers codegen.go's
// emitRuntimeCall call sites place them in, then re-presents them on the
// stack the way Go's ABI0 convention expects before calling the real
// function by symbol. Resolving straight to the real Go function's
// reflect-obtained address, as an earlier version of this file did, does
// not work in general: that address expects Go's internal register ABI,
// which code emitted under the System-V convention does not honour.
func RuntimeFunctions() []*vm.FunctionDefinition {
	fns := make([]*vm.FunctionDefinition, 0, len(runtimeBridgeNames))
	for def, name := range runtimeBridgeNames {
		def.EntryPoint = vmruntime.BridgeEntryPoint(name)
		fns = append(fns, def)
	}
	return fns
}

// internString is OP_LOAD_STRING's compile-time hook: the literal is
// interned once, during Compile() — an ordinary Go call, not JIT-compiled
// code — and its address embedded directly as a 64-bit immediate, the same
// resolve-once-embed-as-immediate idiom emitNewObject/emitNewArray use for
// class and array descriptors.
func internString(s string) uintptr {
	return vmruntime.InternString(s)
}

// emitRuntimeCall emits a direct call to target, recording a CallFixup the
// engine resolves once target.EntryPoint is known. No arguments are placed
// here: every call site above has already moved them into the registers
// the target Go function expects.
func emitRuntimeCall(buf *asm.Buffer, calls *[]CallFixup, target *vm.FunctionDefinition) {
	disp := amd64.CallRel32(buf)
	*calls = append(*calls, CallFixup{Offset: disp, Target: target})
}
