package vmruntime

import (
	"unsafe"

	"github.com/svenslaggare/stackjit-go/internal/vm"
)

var (
	internedStrings  = map[string]uintptr{}
	charArrayDescPtr uintptr
)

// InternString returns the managed Char array holding s, allocating and
// copying it into the old generation on first sight of this exact literal
// and reusing that object for every later occurrence. Called by the
// compiler (C6) while lowering OP_LOAD_STRING, i.e. at compile time through
// an ordinary Go call — never by JIT-compiled machine code — so there is
// no ABI boundary to cross here, unlike the rest of this package.
func InternString(s string) uintptr {
	if addr, ok := internedStrings[s]; ok {
		return addr
	}
	if charArrayDescPtr == 0 {
		charArrayDescPtr = activeHeap.ArrayDescriptor(vm.Char)
	}
	addr, err := activeHeap.NewPermanentArray(charArrayDescPtr, int32(len(s)))
	if err != nil {
		Log.WithError(err).Fatal("string interning failed")
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(s))
	copy(data, s)
	internedStrings[s] = addr
	return addr
}
