package compiler

import "reflect"

// compileStub is the lazy-call trampoline emitted code actually `call`s for
// every managed-to-managed call (emitManagedCall, codegen.go): a body-less
// declaration backed by stub_amd64.s, the same golang.org/x/sys/unix idiom
// vmruntime's Bridge* stubs use (vmruntime/bridge_amd64.go) to get a stable,
// directly-jumpable entry address out of reflect instead of one resolved
// against Go's internal register ABI.
func compileStub()

// compileStubFunc is the FunctionDefinition RuntimeFunctions-style code
// patches a CallFixup against: compileStub's address never changes once
// resolved, so every lazy call site's stub call resolves immediately at
// emission time, same as a runtime helper call.
var compileStubFunc = externalFunc("runtime::CompileStub")

// resolveCompileStub resolves compileStubFunc's EntryPoint once, at engine
// construction, the same way RuntimeFunctions resolves every runtime
// helper's.
func resolveCompileStub() {
	compileStubFunc.EntryPoint = reflect.ValueOf(compileStub).Pointer()
}

// realResolveCallStub is compileStub's Go-side half: called from assembly
// with the lazy call site's embedded blob address, by symbol, under Go's
// ABI0 stack-passing convention (arg and return value both on the stack, as
// bridge_amd64.s already relies on for vmruntime's helpers).
func realResolveCallStub(blobAddr uintptr) uintptr {
	return activeEngine.resolveCallStub(blobAddr)
}
