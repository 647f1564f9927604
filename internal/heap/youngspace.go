package heap

import "unsafe"

// YoungSpace is a two-semispace copying nursery: new objects are always
// bump-allocated into the active half, and a minor collection evacuates
// survivors into the other half (or promotes them into the old generation)
// before the halves swap. This is the relocating counterpart to
// Generation, which never moves objects once placed.
type YoungSpace struct {
	spaces       [2][]byte
	cur          int
	used         int
	toUsed       int // bump pointer into the inactive half during a collection
	triggerBytes int
}

// NewYoungSpace reserves size bytes split into two equal semispaces,
// triggering a minor collection once triggerBytes have been bump-allocated
// into the active half.
func NewYoungSpace(size, triggerBytes int) *YoungSpace {
	half := size / 2
	return &YoungSpace{
		spaces:       [2][]byte{make([]byte, half), make([]byte, half)},
		triggerBytes: triggerBytes,
	}
}

func (y *YoungSpace) active() []byte   { return y.spaces[y.cur] }
func (y *YoungSpace) inactive() []byte { return y.spaces[1-y.cur] }

// NeedsCollection reports whether the active semispace has crossed its
// allocation trigger.
func (y *YoungSpace) NeedsCollection() bool { return y.used >= y.triggerBytes }

// Allocate bump-allocates n bytes from the active semispace.
func (y *YoungSpace) Allocate(n int) (region []byte, ok bool) {
	a := y.active()
	if y.used+n > len(a) {
		return nil, false
	}
	region = a[y.used : y.used+n : y.used+n]
	y.used += n
	return region, true
}

// evacuateAlloc bump-allocates n bytes from the inactive semispace, used
// only while a collection is in progress to relocate survivors.
func (y *YoungSpace) evacuateAlloc(n int) []byte {
	in := y.inactive()
	region := in[y.toUsed : y.toUsed+n : y.toUsed+n]
	y.toUsed += n
	return region
}

// finishCollection swaps semispaces, making the evacuation target the new
// active space and discarding everything left in the old active space.
func (y *YoungSpace) finishCollection() {
	y.cur = 1 - y.cur
	y.used = y.toUsed
	y.toUsed = 0
}

// bounds reports the address range of a semispace (active or inactive),
// for the conservative frame-slot scan (heap.Contains).
func (y *YoungSpace) bounds(space []byte) (lo, hi uintptr) {
	if len(space) == 0 {
		return 0, 0
	}
	lo = uintptr(unsafe.Pointer(&space[0]))
	return lo, lo + uintptr(len(space))
}

// contains reports whether mem's first byte falls inside the active
// semispace — i.e. whether an object is a young-generation object still
// awaiting collection, as opposed to one already tenured into the old
// generation.
func (y *YoungSpace) contains(mem []byte) bool {
	a := y.active()
	if len(a) == 0 || len(mem) == 0 {
		return false
	}
	lo := uintptr(unsafe.Pointer(&a[0]))
	hi := uintptr(unsafe.Pointer(&a[len(a)-1]))
	p := uintptr(unsafe.Pointer(&mem[0]))
	return lo <= p && p <= hi
}
