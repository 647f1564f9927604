// Package platform is the executable-memory manager (C3): the one place in
// this module that calls into the operating system's virtual-memory API. It
// exposes the three operations the spec allows (allocate, deallocate,
// makeExecutable), a fourth, MakeWritable, that flips a page back to
// read-write, plus the page-bumping CodePage/MemoryManager
// built on top of them. Grounded on golang.org/x/sys/unix the way
// saferwall-pe depends on it (indirectly, via edsrzf/mmap-go) for raw
// memory-mapped access to file- or process-backed regions.
package platform

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// PageSize is the allocation granularity pages are rounded up to (§4.3).
const PageSize = 4096

// AllocateRW maps size bytes (rounded up by the caller) as anonymous,
// private, read+write memory.
func AllocateRW(size int) ([]byte, error) {
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("platform: mmap %d bytes: %w", size, err)
	}
	return b, nil
}

// Deallocate releases a region previously returned by AllocateRW.
func Deallocate(b []byte) error {
	if err := unix.Munmap(b); err != nil {
		return fmt.Errorf("platform: munmap: %w", err)
	}
	return nil
}

// MakeExecutable flips a region from read+write to read+execute. Callers
// must not hold a writable reference to the region afterwards; this
// module's only writer (the per-function compiler) always finishes
// emitting before calling this.
func MakeExecutable(b []byte) error {
	if err := unix.Mprotect(b, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("platform: mprotect RX: %w", err)
	}
	return nil
}

// MakeWritable flips a region back to read+write. The JIT controller (C7)
// uses this to patch a call-site displacement in an already-executable page
// once the call's target function finishes compiling (§4.7 forward and
// recursive call resolution), then flips back with MakeExecutable.
func MakeWritable(b []byte) error {
	if err := unix.Mprotect(b, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("platform: mprotect RW: %w", err)
	}
	return nil
}

// RoundUpToPage rounds size up to the next multiple of PageSize.
func RoundUpToPage(size int) int {
	if size <= 0 {
		return PageSize
	}
	return (size + PageSize - 1) &^ (PageSize - 1)
}
