package vm

// Field is one declared field of a class, in declaration order.
type Field struct {
	Name   string
	Type   *Type
	Offset int // byte offset from the start of the object's data (post-header)
}

// VirtualMethod is one slot of a class's virtual method table.
type VirtualMethod struct {
	Slot int
	Def  *FunctionDefinition
}

// ObjectHeaderSize is the fixed size, in bytes, of the header that precedes
// every managed object's data: an 8-byte type-descriptor pointer followed
// by a 1-byte GC info field (§3 "ObjectRef header").
const ObjectHeaderSize = 8 + 1

// ArrayLengthSize is the size, in bytes, of the length field that follows
// the header on array objects.
const ArrayLengthSize = 4

// ClassMetadata describes one loaded class: its parent, its fields (parent
// fields first, per §3's object layout rule), its total instance size, and
// its virtual dispatch table.
type ClassMetadata struct {
	Name   string
	Parent string // "" for the root object type

	Fields      []*Field
	fieldByName map[string]*Field

	// Size is the total size in bytes of the object's data, i.e. excluding
	// ObjectHeaderSize.
	Size int

	// VTable is indexed by VirtualMethod.Slot; slots are assigned at
	// class-layout time in declaration order, appended after the parent's
	// slots (the Open Question in spec.md §9 is resolved this way).
	VTable []*VirtualMethod
}

func NewClassMetadata(name, parent string) *ClassMetadata {
	return &ClassMetadata{Name: name, Parent: parent, fieldByName: map[string]*Field{}}
}

// AddField appends a field and returns it; callers must call Layout after
// all fields (own and inherited) have been added.
func (c *ClassMetadata) AddField(name string, t *Type) *Field {
	f := &Field{Name: name, Type: t}
	c.Fields = append(c.Fields, f)
	c.fieldByName[name] = f
	return f
}

// Field looks up a declared field by name (own or inherited).
func (c *ClassMetadata) Field(name string) (*Field, bool) {
	f, ok := c.fieldByName[name]
	return f, ok
}

// Layout assigns byte offsets to fields in declaration order and computes
// the total instance size. Must be called once, after parent fields (if
// any) have already been prepended by the loader.
func (c *ClassMetadata) Layout() {
	offset := 0
	for _, f := range c.Fields {
		f.Offset = offset
		offset += f.Type.Size()
	}
	c.Size = offset
}

// AppendVirtualMethod assigns the next free vtable slot to def, after any
// slots already present (i.e. the parent's, if this metadata was seeded
// from the parent's VTable by the loader).
func (c *ClassMetadata) AppendVirtualMethod(def *FunctionDefinition) *VirtualMethod {
	vm := &VirtualMethod{Slot: len(c.VTable), Def: def}
	c.VTable = append(c.VTable, vm)
	return vm
}

// OverrideVirtualMethod replaces the definition at an inherited slot,
// keeping the slot index (used when a subclass overrides a parent method
// with the same member name).
func (c *ClassMetadata) OverrideVirtualMethod(slot int, def *FunctionDefinition) {
	c.VTable[slot].Def = def
}

// FindVirtualSlot returns the slot index of a method by its member name, or
// -1 if not present.
func (c *ClassMetadata) FindVirtualSlot(memberName string) int {
	for _, vm := range c.VTable {
		if vm.Def.MemberName() == memberName {
			return vm.Slot
		}
	}
	return -1
}
