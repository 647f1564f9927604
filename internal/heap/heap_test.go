package heap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/svenslaggare/stackjit-go/internal/vm"
)

func pointClass() *vm.ClassMetadata {
	c := vm.NewClassMetadata("Point", "")
	c.AddField("x", vm.Int)
	c.AddField("next", vm.NewClassType("Point"))
	c.Layout()
	return c
}

func TestNewObjectRoundTrip(t *testing.T) {
	h := NewHeap(64*1024, 64*1024, DefaultPromotionThreshold)
	class := pointClass()

	addr, err := h.NewObject(class, func(func(*uintptr)) {})
	require.NoError(t, err)
	require.NotZero(t, addr)
}

func TestNewArrayStoresLength(t *testing.T) {
	h := NewHeap(64*1024, 64*1024, DefaultPromotionThreshold)

	addr, err := h.NewArray(vm.Int, 10, func(func(*uintptr)) {})
	require.NoError(t, err)
	require.EqualValues(t, 10, ArrayLength(addr))
}

func TestCollectKeepsOnlyRootedObjects(t *testing.T) {
	h := NewHeap(64*1024, 64*1024, NeverPromote)
	class := pointClass()

	rootNoop := func(func(*uintptr)) {}
	kept, err := h.NewObject(class, rootNoop)
	require.NoError(t, err)

	_, err = h.NewObject(class, rootNoop)
	require.NoError(t, err)

	var root uintptr = kept
	h.Collect(func(visit func(*uintptr)) {
		visit(&root)
	})

	require.NotZero(t, root)
	require.NotEqual(t, kept, root, "a collected survivor is relocated to the other semispace")
	require.Equal(t, HeaderSize+class.Size, h.young.used, "only the rooted object is evacuated")
}

func TestWriteBarrierOnlyDirtiesOldToYoungEdges(t *testing.T) {
	h := NewHeap(64*1024, 64*1024, NeverPromote)
	class := pointClass()
	rootNoop := func(func(*uintptr)) {}

	young, err := h.NewObject(class, rootNoop)
	require.NoError(t, err)

	oldRegion, _, ok := h.old.Allocate(HeaderSize + class.Size)
	require.True(t, ok)
	fieldAddr := DataPtr(oldRegion)

	h.WriteBarrier(young, young)
	h.WriteBarrier(fieldAddr, fieldAddr)
	require.Empty(t, h.old.DirtyCardOffsets(), "young-to-young and old-to-old stores dirty nothing")

	h.WriteBarrier(fieldAddr, young)
	require.NotEmpty(t, h.old.DirtyCardOffsets())
}
