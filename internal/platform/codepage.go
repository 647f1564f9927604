package platform

import (
	"fmt"
	"unsafe"
)

// CodePage owns one contiguous mmap'd region serving bump allocation for
// compiled function bodies (§4.3). It starts out read+write; MakeExecutable
// flips the whole page at once, after all functions currently being
// compiled into it have finished emitting.
type CodePage struct {
	mem  []byte
	used int
	exec bool
}

// NewCodePage allocates a fresh page of at least size bytes, rounded up to
// PageSize.
func NewCodePage(size int) (*CodePage, error) {
	size = RoundUpToPage(size)
	mem, err := AllocateRW(size)
	if err != nil {
		return nil, err
	}
	return &CodePage{mem: mem}, nil
}

// Allocate reserves n bytes at the end of the used region and returns a
// slice over them plus that slice's byte offset within the page, or (nil,
// -1) if the page is full. The caller writes machine code into the
// returned slice; its address becomes the function's entry point once the
// page is made executable. The offset lets later callers (Patch) locate
// the region again without unsafe pointer arithmetic.
func (p *CodePage) Allocate(n int) ([]byte, int) {
	if p.used+n > len(p.mem) {
		return nil, -1
	}
	offset := p.used
	region := p.mem[offset : offset+n : offset+n]
	p.used += n
	return region, offset
}

// Remaining reports how many bytes are still free in this page.
func (p *CodePage) Remaining() int { return len(p.mem) - p.used }

// Size returns the total page size.
func (p *CodePage) Size() int { return len(p.mem) }

// MakeExecutable flips this page's protection to read+execute. It is a
// no-op if already flipped.
func (p *CodePage) MakeExecutable() error {
	if p.exec {
		return nil
	}
	if err := MakeExecutable(p.mem); err != nil {
		return err
	}
	p.exec = true
	return nil
}

// Close releases the page's memory mapping.
func (p *CodePage) Close() error {
	return Deallocate(p.mem)
}

// Patch runs fn with this page temporarily writable again, then restores
// execute protection if the page had already been flipped. Used by the JIT
// controller to fix up a call-site displacement left pending because its
// target had not yet been compiled (§4.7).
func (p *CodePage) Patch(fn func(mem []byte)) error {
	wasExec := p.exec
	if wasExec {
		if err := MakeWritable(p.mem); err != nil {
			return err
		}
	}
	fn(p.mem)
	if wasExec {
		if err := MakeExecutable(p.mem); err != nil {
			return err
		}
	}
	return nil
}

// MemoryManager holds a growing set of CodePages and serves allocations
// first-fit across them, growing by one page per miss (§4.3).
type MemoryManager struct {
	pages []*CodePage
}

// NewMemoryManager returns an empty manager.
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{}
}

// Allocate returns a writable region of n bytes from the first page with
// room, allocating a new page if none has room, along with the owning page
// and the region's offset within it (for later Patch calls).
func (m *MemoryManager) Allocate(n int) (region []byte, page *CodePage, offset int, err error) {
	for _, p := range m.pages {
		if p.Remaining() >= n {
			region, offset = p.Allocate(n)
			return region, p, offset, nil
		}
	}
	size := n
	if size < PageSize {
		size = PageSize
	}
	p, err := NewCodePage(size)
	if err != nil {
		return nil, nil, -1, fmt.Errorf("platform: growing memory manager: %w", err)
	}
	m.pages = append(m.pages, p)
	region, offset = p.Allocate(n)
	return region, p, offset, nil
}

// MakeExecutable flips every owned page to R+X. Called once after an
// image's eagerly-compiled functions finish, and again incrementally as
// lazy compilation produces new pages (§4.3).
func (m *MemoryManager) MakeExecutable() error {
	for _, p := range m.pages {
		if err := p.MakeExecutable(); err != nil {
			return err
		}
	}
	return nil
}

// Locate finds the page whose backing memory contains addr, and addr's
// offset within it. Used by the lazy compile stub (§4.7) to turn a call
// site's runtime address -- read back off the stack at the moment that
// call first executes -- into a (page, offset) pair Patch can write
// through, with no bookkeeping recorded in advance at emission time.
func (m *MemoryManager) Locate(addr uintptr) (page *CodePage, offset int, ok bool) {
	for _, p := range m.pages {
		if len(p.mem) == 0 {
			continue
		}
		base := uintptr(unsafe.Pointer(&p.mem[0]))
		if addr >= base && addr < base+uintptr(len(p.mem)) {
			return p, int(addr - base), true
		}
	}
	return nil, -1, false
}

// Close releases every owned page.
func (m *MemoryManager) Close() error {
	var firstErr error
	for _, p := range m.pages {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
