package vmruntime

import "os"

// Runtime faults (§7 kind 4): every inline check the compiler emits — null
// dereference, array-index-out-of-bounds, invalid-array-length — and
// PushFrame's call-depth check land in exactly one of these on failure. None of
// them return: there is no exception model, so the handler's only job is
// to report and terminate, matching the spec's single-choke-point design.

func fatal(message string) {
	Log.Error(message)
	os.Exit(1)
}

// FaultNullReference is the shared handler a null-checked LOAD_FIELD,
// STORE_FIELD, LOAD_ELEMENT, STORE_ELEMENT or LOAD_ARRAY_LENGTH jumps to
// when the reference it popped was null.
func FaultNullReference() { fatal("null reference") }

// FaultArrayBounds is LOAD_ELEMENT/STORE_ELEMENT's handler for an
// out-of-range index (including negative indices, caught by the unsigned
// comparison trick against the array's length).
func FaultArrayBounds() { fatal("array index out of bounds") }

// FaultInvalidArrayLength is NEW_ARRAY's handler for a negative requested
// length.
func FaultInvalidArrayLength() { fatal("invalid array length") }

// FaultStackOverflow is called by PushFrame when the managed call depth
// has reached maxFrames.
func FaultStackOverflow() { fatal("call stack overflow") }

// WriteBarrier is STORE_FIELD/STORE_ELEMENT's entry point for
// reference-typed stores (§4.9 card marking): fieldAddr is the address just
// written, newValue the reference now stored there.
func WriteBarrier(fieldAddr uintptr, newValue uintptr) {
	activeHeap.WriteBarrier(fieldAddr, newValue)
}
