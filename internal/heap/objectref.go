// Package heap is the generational garbage collector (C9): a young
// generation of two bump-allocated semispaces (YoungSpace) and a
// bump-allocated old Generation whose card table the write barrier marks;
// collection does not consult the card table and finds old-generation
// objects by tracing from the roots. Object headers and the survival-count encoding mirror
// stackjit's own runtime/gc.cpp, runtime/gcgeneration.cpp and
// type/objectref.cpp: an 8-byte type pointer followed by a 1-byte GC info
// field (mark bit in bit 0, a 7-bit saturating survival counter in bits
// 1-7).
package heap

import (
	"encoding/binary"
	"unsafe"

	"github.com/svenslaggare/stackjit-go/internal/vm"
)

// HeaderSize mirrors vm.ObjectHeaderSize: 8 bytes for the type pointer, 1
// for GC info.
const HeaderSize = vm.ObjectHeaderSize

const maxSurvivalCount = 127 // 7 bits, saturating (objectref.cpp's increaseSurvivalCount)

// Header is a view over one object's header, backed directly by the heap
// bytes — reading or writing through it touches the live object.
type Header struct {
	mem []byte // the full object, header followed by data
}

// HeaderAt wraps the header of the object whose data begins at dataOffset
// within mem.
func HeaderAt(mem []byte, dataOffset int) Header {
	return Header{mem: mem[dataOffset-HeaderSize:]}
}

func (h Header) TypePtr() uintptr {
	return uintptr(binary.LittleEndian.Uint64(h.mem[0:8]))
}

func (h Header) SetTypePtr(p uintptr) {
	binary.LittleEndian.PutUint64(h.mem[0:8], uint64(p))
}

func (h Header) gcInfo() byte { return h.mem[8] }

func (h Header) setGCInfo(marked bool, survival int) {
	v := survival & 0x7f << 1
	if marked {
		v |= 1
	}
	h.mem[8] = byte(v)
}

func (h Header) IsMarked() bool { return h.gcInfo()&0x1 != 0 }
func (h Header) Mark()          { h.setGCInfo(true, h.SurvivalCount()) }
func (h Header) Unmark()        { h.setGCInfo(false, h.SurvivalCount()) }

// SurvivalCount returns the number of minor collections this object has
// survived, saturating at 127.
func (h Header) SurvivalCount() int { return int(h.gcInfo()>>1) & 0x7f }

// IncreaseSurvivalCount bumps the survival counter, saturating at 127
// rather than wrapping (objectref.cpp's explicit clamp).
func (h Header) IncreaseSurvivalCount() {
	n := h.SurvivalCount() + 1
	if n > maxSurvivalCount {
		n = maxSurvivalCount
	}
	h.setGCInfo(h.IsMarked(), n)
}

func (h Header) ResetSurvivalCount() { h.setGCInfo(h.IsMarked(), 0) }

// DataPtr returns the address of an object's data region, i.e. immediately
// past its header, as an (unsafe, but never dereferenced by Go) integer
// address — the same representation the compiler materializes into a VM
// reference-typed stack or frame slot.
func DataPtr(mem []byte) uintptr {
	return uintptr(unsafe.Pointer(&mem[HeaderSize]))
}
