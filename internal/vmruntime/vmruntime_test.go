package vmruntime

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"github.com/svenslaggare/stackjit-go/internal/heap"
	"github.com/svenslaggare/stackjit-go/internal/vm"
)

func pointClass() *vm.ClassMetadata {
	c := vm.NewClassMetadata("Point", "")
	c.AddField("x", vm.Int)
	c.Layout()
	return c
}

func TestNewObjectAndNewArrayFromDescriptor(t *testing.T) {
	h := heap.NewDefaultHeap()
	Init(h)
	class := pointClass()

	addr := NewObject(h.ClassDescriptor(class))
	require.NotZero(t, addr)

	arr := NewArray(h.ArrayDescriptor(vm.Int), 5)
	require.NotZero(t, arr)
}

func TestInternStringReusesSameLiteral(t *testing.T) {
	h := heap.NewDefaultHeap()
	Init(h)
	charArrayDescPtr = 0
	internedStrings = map[string]uintptr{}

	first := InternString("hello")
	second := InternString("hello")
	require.Equal(t, first, second)

	other := InternString("world")
	require.NotEqual(t, first, other)
}

func TestPushPopFrameTracksDepth(t *testing.T) {
	h := heap.NewDefaultHeap()
	Init(h)

	require.Empty(t, frames)
	slots := make([]uintptr, 4)
	base := uintptr(unsafe.Pointer(&slots[len(slots)-1])) + 8
	PushFrame(base, 4)
	require.Len(t, frames, 1)
	PopFrame()
	require.Empty(t, frames)
}

func TestScanRootsVisitsOnlySlotsContainingHeapAddresses(t *testing.T) {
	h := heap.NewDefaultHeap()
	Init(h)
	class := pointClass()
	obj := NewObject(h.ClassDescriptor(class))
	require.NotZero(t, obj)

	slots := make([]uintptr, 2)
	slots[0] = obj    // looks like a live reference
	slots[1] = 0xdead // not a heap address, left untouched
	base := uintptr(unsafe.Pointer(&slots[1])) + 8

	PushFrame(base, 2)
	defer PopFrame()

	var visited []uintptr
	ScanRoots(func(slot *uintptr) { visited = append(visited, *slot) })
	require.Contains(t, visited, obj)
	require.NotContains(t, visited, uintptr(0xdead))
}
