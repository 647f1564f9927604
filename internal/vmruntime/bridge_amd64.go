package vmruntime

import "reflect"

// Bridge* are the fixed entry points JIT-emitted code actually `call`s
// (§4.6/§4.7): codegen.go's emitRuntimeCall sites place arguments directly
// into DI/SI before calling, exactly the registers these stubs read. Their
// bodies live in bridge_amd64.s; declaring them here with no body, the same
// way golang.org/x/sys/unix declares its raw syscall trampolines in Go and
// implements them in a companion .s file, is what lets reflect obtain a
// stable, directly-jumpable entry address for each one.
//
// This is the fix for the System-V/Go-ABI mismatch the previous approach
// papered over: reflect.ValueOf(fn).Pointer() on an ordinary Go closure
// returns an address that expects Go's internal register-ABI calling
// convention, which JIT-emitted code calling under a System-V convention
// does not honour. A Bridge* stub's entry, by contrast, is exactly the
// bytes written in bridge_amd64.s — no compiler-synthesized ABI wrapper
// sits at that address — so its register contract is whatever that
// assembly says it is, and it says: "args in DI/SI/DX/CX, call back into
// the named Go function via its ABI0 (stack-argument) entry, return value
// in AX." The Go function on the other side of that CALL is reached the
// normal way (a plain `CALL name(SB)` the assembler resolves like any other
// intra-package call), so no register-ABI guessing happens on that side
// either.
func BridgeNewObject()
func BridgeNewArray()
func BridgePushFrame()
func BridgePopFrame()
func BridgeWriteBarrier()
func BridgeFaultNullReference()
func BridgeFaultArrayBounds()
func BridgeFaultInvalidLength()
func BridgeFaultStackOverflow()

// realNewObject and friends are the ordinary Go functions bridge_amd64.s
// calls into via their ABI0 entry once arguments have been moved from
// registers onto the stack. Kept distinct from the public NewObject/
// NewArray/... functions in alloc.go/faults.go/frame.go so that package
// still reads naturally for Go-side callers (the verifier, tests) that want
// to call them directly without going through a Bridge* stub.
func realNewObject(descPtr uintptr) uintptr              { return NewObject(descPtr) }
func realNewArray(descPtr uintptr, length int32) uintptr { return NewArray(descPtr, length) }
func realPushFrame(base uintptr, slotCount int32)        { PushFrame(base, slotCount) }
func realPopFrame()                                      { PopFrame() }
func realWriteBarrier(fieldAddr, newValue uintptr)       { WriteBarrier(fieldAddr, newValue) }
func realFaultNullReference()                            { FaultNullReference() }
func realFaultArrayBounds()                              { FaultArrayBounds() }
func realFaultInvalidLength()                            { FaultInvalidArrayLength() }
func realFaultStackOverflow()                            { FaultStackOverflow() }

// bridgeFuncs maps each Bridge* stub to the function value reflect resolves
// its address from, indexed by the stable names compiler.runtime.go uses.
var bridgeFuncs = map[string]interface{}{
	"NewObject":          BridgeNewObject,
	"NewArray":           BridgeNewArray,
	"PushFrame":          BridgePushFrame,
	"PopFrame":           BridgePopFrame,
	"WriteBarrier":       BridgeWriteBarrier,
	"FaultNullReference": BridgeFaultNullReference,
	"FaultArrayBounds":   BridgeFaultArrayBounds,
	"FaultInvalidLength": BridgeFaultInvalidLength,
	"FaultStackOverflow": BridgeFaultStackOverflow,
}

// BridgeEntryPoint returns the native entry address JIT-emitted code should
// `call` for the named runtime helper. name is one of the keys used above
// (compiler.runtime.go owns the call-site register convention, so it also
// owns which name maps to which helper).
func BridgeEntryPoint(name string) uintptr {
	fn, ok := bridgeFuncs[name]
	if !ok {
		panic("vmruntime: no bridge stub named " + name)
	}
	return reflect.ValueOf(fn).Pointer()
}
