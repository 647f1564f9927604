package heap

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/svenslaggare/stackjit-go/internal/vm"
)

// Default generation sizes, taken directly from stackjit's
// runtime/gc.cpp (YOUNG_GENERATION_SIZE = 2MB, OLD_GENERATION_SIZE = 8MB).
const (
	DefaultYoungSize = 2 * 1024 * 1024
	DefaultOldSize   = 8 * 1024 * 1024
)

// RootScanner is supplied by the engine (C7) / vmruntime call-stack
// bookkeeping: Scan must invoke visit once for every live reference-typed
// slot currently reachable from VM-visible state (frame locals, operand
// stacks, statics). visit receives the address of the slot itself, not its
// value, so the collector can overwrite it in place when the object it
// points to is relocated.
type RootScanner func(visit func(slot *uintptr))

// Heap is the generational collector (C9): a copying young generation
// fronting a non-moving old generation. The write barrier keeps a card table
// of old-generation regions that point into the young generation; Collect
// does not consult it and reaches old-generation objects only by tracing
// from the roots. Grounded on
// runtime/gc.cpp, runtime/gcgeneration.cpp and type/objectref.cpp; those
// sources define the header layout and generation/promotion bookkeeping but
// contain no actual collection algorithm (gc.cpp only bump-allocates), so
// the mark/copy/promote logic below is this module's own, built to honor
// that data layout.
type Heap struct {
	young *YoungSpace
	old   *Generation

	promotionThreshold int

	classDescriptors map[*vm.ClassMetadata]uintptr
	arrayDescriptors map[*vm.Type]uintptr

	collections int
}

// NewHeap builds a heap with the given generation sizes and promotion
// threshold (survival count at which a young object tenures into the old
// generation; NeverPromote disables tenuring).
func NewHeap(youngSize, oldSize, promotionThreshold int) *Heap {
	return &Heap{
		young:               NewYoungSpace(youngSize, youngSize),
		old:                 NewGeneration("old", oldSize, oldSize, true),
		promotionThreshold:  promotionThreshold,
		classDescriptors:    map[*vm.ClassMetadata]uintptr{},
		arrayDescriptors:    map[*vm.Type]uintptr{},
	}
}

// NewDefaultHeap builds a heap sized per stackjit's own defaults.
func NewDefaultHeap() *Heap {
	return NewHeap(DefaultYoungSize, DefaultOldSize, DefaultPromotionThreshold)
}

// ClassDescriptor returns the (cached) GC type descriptor for class,
// registering it on first use. The compiler resolves this once per class
// reference at compile time and embeds the resulting address directly into
// the emitted code as an immediate, the same way OpLoadString embeds an
// interned string's address — allocation sites never need to look a class
// up by name at run time.
func (h *Heap) ClassDescriptor(c *vm.ClassMetadata) uintptr {
	if p, ok := h.classDescriptors[c]; ok {
		return p
	}
	p := Register(DescriptorForClass(c))
	h.classDescriptors[c] = p
	return p
}

// ArrayDescriptor is ClassDescriptor's counterpart for Array(elem) types.
func (h *Heap) ArrayDescriptor(elem *vm.Type) uintptr {
	if p, ok := h.arrayDescriptors[elem]; ok {
		return p
	}
	p := Register(DescriptorForArray(elem))
	h.arrayDescriptors[elem] = p
	return p
}

// NewObject allocates a new instance of class, returning the address of its
// data region (post-header) — the representation a Class(name)-typed VM
// slot holds. Triggers a minor collection and retries once if the young
// generation is full.
func (h *Heap) NewObject(class *vm.ClassMetadata, roots RootScanner) (uintptr, error) {
	return h.NewObjectFromDescriptor(h.ClassDescriptor(class), roots)
}

// NewObjectFromDescriptor is NewObject's entry point from compiled code: the
// descriptor address is already known at the call site, so no class lookup
// is needed here.
func (h *Heap) NewObjectFromDescriptor(descPtr uintptr, roots RootScanner) (uintptr, error) {
	desc := DescriptorAt(descPtr)
	total := HeaderSize + int(desc.DataSize)
	region, ok := h.young.Allocate(total)
	if !ok {
		h.Collect(roots)
		region, ok = h.young.Allocate(total)
		if !ok {
			return 0, fmt.Errorf("heap: out of memory allocating %s (%d bytes)", desc.Name, total)
		}
	}
	hdr := HeaderAt(region, HeaderSize)
	hdr.SetTypePtr(descPtr)
	hdr.setGCInfo(false, 0)
	return DataPtr(region), nil
}

// NewArray allocates a new array of length elements of type elem, returning
// the address of its data region. The first vm.ArrayLengthSize bytes of the
// data region hold the length, matching objectref.cpp's layout.
func (h *Heap) NewArray(elem *vm.Type, length int32, roots RootScanner) (uintptr, error) {
	return h.NewArrayFromDescriptor(h.ArrayDescriptor(elem), length, roots)
}

// NewArrayFromDescriptor is NewArray's entry point from compiled code.
func (h *Heap) NewArrayFromDescriptor(descPtr uintptr, length int32, roots RootScanner) (uintptr, error) {
	if length < 0 {
		return 0, fmt.Errorf("heap: negative array length %d", length)
	}
	desc := DescriptorAt(descPtr)
	total := HeaderSize + vm.ArrayLengthSize + int(length)*int(desc.ElementSize)
	region, ok := h.young.Allocate(total)
	if !ok {
		h.Collect(roots)
		region, ok = h.young.Allocate(total)
		if !ok {
			return 0, fmt.Errorf("heap: out of memory allocating %s[%d] (%d bytes)", desc.Name, length, total)
		}
	}
	hdr := HeaderAt(region, HeaderSize)
	hdr.SetTypePtr(descPtr)
	hdr.setGCInfo(false, 0)
	binary.LittleEndian.PutUint32(region[HeaderSize:HeaderSize+vm.ArrayLengthSize], uint32(length))
	return DataPtr(region), nil
}

// ArrayLength reads the length stored in an array's data region.
func ArrayLength(dataPtr uintptr) int32 {
	mem := unsafe.Slice((*byte)(unsafe.Pointer(dataPtr)), vm.ArrayLengthSize)
	return int32(binary.LittleEndian.Uint32(mem))
}

// WriteBarrier must be called after storing a reference value into a field
// of an object that might live in the old generation: if the written value
// points into the young generation, the old object's card is dirtied
// (gcgeneration.cpp's card table). Collect does not read the card table.
func (h *Heap) WriteBarrier(fieldAddr uintptr, newValue uintptr) {
	if newValue == 0 {
		return
	}
	valueMem := unsafe.Slice((*byte)(unsafe.Pointer(newValue)), 1)
	if !h.young.contains(valueMem) {
		return
	}
	fieldMem := unsafe.Slice((*byte)(unsafe.Pointer(fieldAddr)), 1)
	if !h.old.contains(fieldMem) {
		return
	}
	offset := int(uintptr(unsafe.Pointer(&fieldMem[0])) - uintptr(unsafe.Pointer(&h.old.mem[0])))
	h.old.markCard(offset)
}

type liveObject struct {
	size       int
	descriptor *TypeDescriptor
}

// Collect runs one minor collection: every object reachable from roots is
// copied out of the active young semispace, either into the other
// semispace or (once it has survived promotionThreshold collections) into
// the old generation. Old-generation objects are never moved; they are
// merely traced, so that references they hold into the (about to be reset)
// young generation get updated in place.
func (h *Heap) Collect(roots RootScanner) {
	h.collections++
	visited := map[uintptr]uintptr{}
	var worklist []uintptr

	relocate := func(oldAddr uintptr) uintptr {
		if newAddr, ok := visited[oldAddr]; ok {
			return newAddr
		}
		oldHeaderAddr := oldAddr - HeaderSize
		typePtr := uintptr(binary.LittleEndian.Uint64(unsafe.Slice((*byte)(unsafe.Pointer(oldHeaderAddr)), 8)))
		desc := DescriptorAt(typePtr)

		var size int
		if desc.IsArray {
			length := ArrayLength(oldAddr)
			size = HeaderSize + vm.ArrayLengthSize + int(length)*int(desc.ElementSize)
		} else {
			size = HeaderSize + int(desc.DataSize)
		}
		oldBytes := unsafe.Slice((*byte)(unsafe.Pointer(oldHeaderAddr)), size)

		if !h.young.contains(oldBytes) {
			// Already tenured: non-moving, but still needs tracing since
			// its fields may reference young objects about to be evacuated.
			visited[oldAddr] = oldAddr
			worklist = append(worklist, oldAddr)
			return oldAddr
		}

		hdr := HeaderAt(oldBytes, HeaderSize)
		survival := hdr.SurvivalCount() + 1
		promote := h.promotionThreshold != NeverPromote && survival >= h.promotionThreshold

		var newBytes []byte
		if promote {
			region, offset, ok := h.old.Allocate(size)
			if !ok {
				// Old generation exhausted: fail closed by keeping the
				// object in the nursery target instead of promoting it.
				newBytes = h.young.evacuateAlloc(size)
			} else {
				newBytes = region
				_ = offset
			}
		} else {
			newBytes = h.young.evacuateAlloc(size)
		}
		copy(newBytes, oldBytes)
		newHdr := HeaderAt(newBytes, HeaderSize)
		if promote {
			newHdr.setGCInfo(false, 0)
		} else {
			newHdr.setGCInfo(false, survival)
		}

		newAddr := DataPtr(newBytes)
		visited[oldAddr] = newAddr
		worklist = append(worklist, newAddr)
		return newAddr
	}

	roots(func(slot *uintptr) {
		if *slot == 0 {
			return
		}
		*slot = relocate(*slot)
	})

	for i := 0; i < len(worklist); i++ {
		addr := worklist[i]
		headerAddr := addr - HeaderSize
		typePtr := uintptr(binary.LittleEndian.Uint64(unsafe.Slice((*byte)(unsafe.Pointer(headerAddr)), 8)))
		desc := DescriptorAt(typePtr)

		if desc.IsArray {
			if !desc.ElementIsPointer {
				continue
			}
			length := ArrayLength(addr)
			elems := unsafe.Slice((*uintptr)(unsafe.Pointer(addr+uintptr(vm.ArrayLengthSize))), length)
			for j := range elems {
				if elems[j] == 0 {
					continue
				}
				elems[j] = relocate(elems[j])
			}
			continue
		}

		for _, off := range desc.ReferenceOffsets {
			fieldPtr := (*uintptr)(unsafe.Pointer(addr + uintptr(off)))
			if *fieldPtr == 0 {
				continue
			}
			*fieldPtr = relocate(*fieldPtr)
		}
	}

	h.young.finishCollection()
}

// NewPermanentArray allocates straight into the old generation, bypassing
// the young nursery entirely. Used for compile-time constants (interned
// string literals) that must never move and never need tracing as a
// root — nothing but a raw immediate embedded in compiled code points to
// them, so a relocating collector could never find that reference to fix
// up if one were placed in the young generation.
func (h *Heap) NewPermanentArray(descPtr uintptr, length int32) (uintptr, error) {
	if length < 0 {
		return 0, fmt.Errorf("heap: negative array length %d", length)
	}
	desc := DescriptorAt(descPtr)
	total := HeaderSize + vm.ArrayLengthSize + int(length)*int(desc.ElementSize)
	region, _, ok := h.old.Allocate(total)
	if !ok {
		return 0, fmt.Errorf("heap: old generation exhausted interning %s[%d]", desc.Name, length)
	}
	hdr := HeaderAt(region, HeaderSize)
	hdr.SetTypePtr(descPtr)
	hdr.setGCInfo(false, 0)
	binary.LittleEndian.PutUint32(region[HeaderSize:HeaderSize+vm.ArrayLengthSize], uint32(length))
	return DataPtr(region), nil
}

// Contains reports whether addr falls within any generation's current
// backing storage — the bounds test the conservative frame-slot scanner
// (vmruntime.ScanRoots) uses to decide whether a slot's raw bit pattern
// looks like a managed reference worth tracing. It checks both young
// semispaces, since a stale value from the previous collection's "from"
// space can still be sitting in an as-yet-unwritten slot.
func (h *Heap) Contains(addr uintptr) bool {
	for _, space := range h.young.spaces {
		lo, hi := h.young.bounds(space)
		if lo != 0 && lo <= addr && addr < hi {
			return true
		}
	}
	lo, hi := h.old.bounds()
	return lo != 0 && lo <= addr && addr < hi
}

// Stats reports how many collections have run, for diagnostics/logging.
func (h *Heap) Stats() (collections int) { return h.collections }
