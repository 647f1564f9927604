package heap

import (
	"unsafe"

	"github.com/svenslaggare/stackjit-go/internal/vm"
)

// TypeDescriptor is the GC-facing view of one managed type: enough to size
// a new instance and to find the references nested inside it, without the
// collector needing to know about vm.ClassMetadata or vm.Type directly.
// stackjit's ObjectRef header stores a type pointer for exactly this
// reason (objectref.h); here that pointer is the address of the
// TypeDescriptor describing the object it precedes.
type TypeDescriptor struct {
	Name string

	// IsArray distinguishes an array instance (length-prefixed data,
	// uniform elements) from a class instance (fixed fields).
	IsArray bool

	// Array instances only:
	ElementSize      int32
	ElementIsPointer bool

	// Class instances only: data size in bytes, and the byte offsets (from
	// the start of the data region) of every reference-typed field, so the
	// tracer can enqueue them without re-walking ClassMetadata.
	DataSize       int32
	ReferenceOffsets []int32
}

// registry pins every descriptor created this process so the uintptr
// embedded in object headers stays valid for the runtime's lifetime — Go's
// GC never needs to move or collect them since Descriptors is a permanent
// package-level slice, mirroring the string interner's pinning trick.
var registry []*TypeDescriptor

// Register pins d and returns a stable address for storing as an object
// header's type pointer.
func Register(d *TypeDescriptor) uintptr {
	registry = append(registry, d)
	return uintptr(unsafe.Pointer(d))
}

// DescriptorAt recovers the TypeDescriptor a header's type pointer refers
// to. The pointer was produced by Register, so this is safe as long as the
// originating descriptor is still reachable through registry.
func DescriptorAt(p uintptr) *TypeDescriptor {
	return (*TypeDescriptor)(unsafe.Pointer(p))
}

// DescriptorForClass builds (but does not Register) a TypeDescriptor from
// loaded class metadata, walking its fields once to collect reference
// offsets.
func DescriptorForClass(c *vm.ClassMetadata) *TypeDescriptor {
	d := &TypeDescriptor{Name: c.Name, DataSize: int32(c.Size)}
	for _, f := range c.Fields {
		if f.Type.IsReference() {
			d.ReferenceOffsets = append(d.ReferenceOffsets, int32(f.Offset))
		}
	}
	return d
}

// DescriptorForArray builds a TypeDescriptor for Array(elem).
func DescriptorForArray(elem *vm.Type) *TypeDescriptor {
	return &TypeDescriptor{
		Name:             "Array(" + elem.String() + ")",
		IsArray:          true,
		ElementSize:      int32(elem.Size()),
		ElementIsPointer: elem.IsReference(),
	}
}
