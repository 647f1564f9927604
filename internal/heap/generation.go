package heap

import (
	"fmt"
	"unsafe"
)

// cardSize mirrors gcgeneration.cpp's CARD_SIZE: the old generation's
// remembered set is a byte per 512-byte region, marked dirty by the write
// barrier whenever a field in that region is made to point into the young
// generation. Collect does not consult the card table: it reaches
// old-generation objects only by tracing from the roots.
const cardSize = 512

// PromotionThreshold is the survival count (objectref.cpp's
// increaseSurvivalCount) at which an object still in the young generation
// is evacuated into the old one instead of the young generation's other
// semispace. NeverPromote disables promotion entirely, matching
// gcgeneration.cpp's convention of a -1 threshold.
const (
	DefaultPromotionThreshold = 3
	NeverPromote              = -1
)

// Generation is a bump-allocated arena, the Go analogue of
// runtime/managedheap.h's ManagedHeap: objects are carved off the front in
// order and never individually freed, only reclaimed wholesale by the
// collector that owns this generation.
type Generation struct {
	name string
	mem  []byte
	used int

	allocatedBeforeCollection int // trigger: collect once used crosses this
	numAllocatedSinceCollect  int

	cardTable []byte // one byte per cardSize region; nil if this generation doesn't need one
}

// NewGeneration reserves size bytes for a generation named name (used only
// for diagnostics), collecting once numAllocatedSinceCollect *bytes*
// allocated reach triggerBytes. withCardTable is true for the old
// generation, which must record writes into it that could point at young
// objects (§ write barrier).
func NewGeneration(name string, size, triggerBytes int, withCardTable bool) *Generation {
	g := &Generation{
		name:                       name,
		mem:                       make([]byte, size),
		allocatedBeforeCollection: triggerBytes,
	}
	if withCardTable {
		g.cardTable = make([]byte, (size+cardSize-1)/cardSize)
	}
	return g
}

// NeedsCollection reports whether this generation has crossed its
// allocation trigger since the last Reset.
func (g *Generation) NeedsCollection() bool {
	return g.numAllocatedSinceCollect >= g.allocatedBeforeCollection
}

// Allocate bump-allocates n bytes, or returns ok=false if the generation is
// full (the caller must collect, or — for the old generation — grow).
func (g *Generation) Allocate(n int) (region []byte, offset int, ok bool) {
	if g.used+n > len(g.mem) {
		return nil, 0, false
	}
	offset = g.used
	region = g.mem[offset : offset+n : offset+n]
	g.used += n
	g.numAllocatedSinceCollect += n
	return region, offset, true
}

// Reset rewinds the bump pointer to zero, discarding every object
// previously allocated here — used after a minor collection has evacuated
// all survivors elsewhere (the young generation is a pure copying
// semispace: nothing it held across a collection is still reachable from
// it).
func (g *Generation) Reset() {
	g.used = 0
	g.numAllocatedSinceCollect = 0
	for i := range g.cardTable {
		g.cardTable[i] = 0
	}
}

// contains reports whether the object backing mem lives inside this
// generation's backing array.
func (g *Generation) contains(mem []byte) bool {
	if len(g.mem) == 0 || len(mem) == 0 {
		return false
	}
	lo := uintptr(unsafe.Pointer(&g.mem[0]))
	hi := uintptr(unsafe.Pointer(&g.mem[len(g.mem)-1]))
	p := uintptr(unsafe.Pointer(&mem[0]))
	return lo <= p && p <= hi
}

// bounds reports the address range this generation's backing array
// currently occupies, for the conservative frame-slot scan (heap.Contains).
func (g *Generation) bounds() (lo, hi uintptr) {
	if len(g.mem) == 0 {
		return 0, 0
	}
	lo = uintptr(unsafe.Pointer(&g.mem[0]))
	return lo, lo + uintptr(len(g.mem))
}

// markCard dirties the card covering the byte at offset within this
// generation, so a future minor collection treats it as a possible root.
func (g *Generation) markCard(offset int) {
	if g.cardTable == nil {
		return
	}
	g.cardTable[offset/cardSize] = 1
}

// DirtyCardOffsets yields the byte offset of the start of every dirty card,
// for the collector to scan as additional roots.
func (g *Generation) DirtyCardOffsets() []int {
	var out []int
	for i, c := range g.cardTable {
		if c != 0 {
			out = append(out, i*cardSize)
		}
	}
	return out
}

func (g *Generation) String() string {
	return fmt.Sprintf("%s generation: %d/%d bytes used", g.name, g.used, len(g.mem))
}
