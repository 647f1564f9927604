package vmruntime

// NewObject is the compiled-code entry point for OpNewObject: descPtr is
// the class's GC type descriptor address, resolved and embedded as an
// immediate by the compiler at the allocation site (heap.Heap.ClassDescriptor).
// Returns the new instance's data pointer, or 0 on unrecoverable
// allocation failure (treated as a fatal fault, matching stackjit's
// direct-termination error model rather than a recoverable Go error).
func NewObject(descPtr uintptr) uintptr {
	addr, err := activeHeap.NewObjectFromDescriptor(descPtr, ScanRoots)
	if err != nil {
		Log.WithError(err).Fatal("allocation failed")
	}
	return addr
}

// NewArray is OpNewArray's entry point. descPtr identifies the element
// type (heap.Heap.ArrayDescriptor); length is the requested element count,
// already validated non-negative by emitNewArray's caller contract (a
// negative length reaching here is itself a fault, reported by
// NewArrayFromDescriptor's error path).
func NewArray(descPtr uintptr, length int32) uintptr {
	addr, err := activeHeap.NewArrayFromDescriptor(descPtr, length, ScanRoots)
	if err != nil {
		Log.WithError(err).Fatal("allocation failed")
	}
	return addr
}
