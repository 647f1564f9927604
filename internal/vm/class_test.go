package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLayoutAssignsOffsetsInDeclarationOrder(t *testing.T) {
	c := NewClassMetadata("Point", "")
	c.AddField("x", Int)
	c.AddField("y", Int)
	c.AddField("tag", NewClassType("Point"))
	c.Layout()

	xf, ok := c.Field("x")
	require.True(t, ok)
	require.Equal(t, 0, xf.Offset)

	yf, ok := c.Field("y")
	require.True(t, ok)
	require.Equal(t, 4, yf.Offset)

	tagf, ok := c.Field("tag")
	require.True(t, ok)
	require.Equal(t, 8, tagf.Offset)

	require.Equal(t, 16, c.Size)
}

func TestLayoutWithInheritedFieldsPrependsParentFirst(t *testing.T) {
	parent := NewClassMetadata("Base", "")
	parent.AddField("x", Int)
	parent.Layout()

	child := NewClassMetadata("Derived", "Base")
	for _, f := range parent.Fields {
		child.AddField(f.Name, f.Type)
	}
	child.AddField("y", Int)
	child.Layout()

	xf, _ := child.Field("x")
	yf, _ := child.Field("y")
	require.Equal(t, 0, xf.Offset)
	require.Equal(t, 4, yf.Offset)
	require.Equal(t, 8, child.Size)
}

func vfn(name string) *FunctionDefinition {
	return &FunctionDefinition{Name: name, IsMember: true, ClassName: "Base"}
}

func TestVirtualMethodAppendFindOverride(t *testing.T) {
	c := NewClassMetadata("Base", "")
	c.AppendVirtualMethod(&FunctionDefinition{Name: "Base::speak", IsMember: true, ClassName: "Base"})
	c.AppendVirtualMethod(&FunctionDefinition{Name: "Base::move", IsMember: true, ClassName: "Base"})

	slot := c.FindVirtualSlot("speak")
	require.Equal(t, 0, slot)
	require.Equal(t, 1, c.FindVirtualSlot("move"))
	require.Equal(t, -1, c.FindVirtualSlot("missing"))

	override := &FunctionDefinition{Name: "Derived::speak", IsMember: true, ClassName: "Derived"}
	c.OverrideVirtualMethod(slot, override)
	require.Same(t, override, c.VTable[slot].Def)
	require.Equal(t, slot, c.VTable[slot].Slot, "overriding keeps the slot index stable")
}

func TestAppendVirtualMethodAfterParentSlotsContinuesNumbering(t *testing.T) {
	c := NewClassMetadata("Derived", "Base")
	c.AppendVirtualMethod(vfn("Base::speak"))
	next := c.AppendVirtualMethod(&FunctionDefinition{Name: "Derived::run", IsMember: true, ClassName: "Derived"})
	require.Equal(t, 1, next.Slot)
}
