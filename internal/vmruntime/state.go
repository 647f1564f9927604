// Package vmruntime holds the native-callable helpers JIT-compiled code
// reaches out to: object/array allocation, the fault handlers that the
// compiler's inline checks (array bounds, null dereference, array length)
// and PushFrame's call-depth check jump to, and the call-stack bookkeeping
// the collector (internal/heap) needs to find its roots. Most exported
// functions here are call targets from generated machine code; InternString
// is called from Go by the compiler, at compile time.
package vmruntime

import (
	"github.com/svenslaggare/stackjit-go/internal/heap"
	"github.com/svenslaggare/stackjit-go/internal/vm"
	"github.com/svenslaggare/stackjit-go/internal/vmlog"
)

// activeHeap is the single heap instance backing the running program. It is
// package-level because compiled code calls into these functions with no
// notion of "which runtime instance" — mirroring how the original
// interpreter kept one process-wide GarbageCollector (gc.cpp).
var activeHeap *heap.Heap

// Init installs h as the heap every allocation and collection call in this
// package operates on. Called once by the JIT controller (C7) before any
// compiled code runs.
func Init(h *heap.Heap) {
	activeHeap = h
	frames = frames[:0]
}

// Heap returns the active heap, for the engine's own bookkeeping (e.g.
// deciding whether to log GC stats).
func Heap() *heap.Heap { return activeHeap }

// Log is the structured logger this package reports faults and collection
// events through: the "gc" subsystem entry, since most of what this
// package logs is allocation failure and collection activity, with the
// fault handlers (faults.go) being the exception rather than the rule.
var Log = vmlog.For(vmlog.GC)

// ClassLookup resolves a class by name against the loaded program, used by
// the fault handlers to report a struck-down object's declared type. Set by
// the engine alongside Init.
var ClassLookup func(name string) (*vm.ClassMetadata, bool)
