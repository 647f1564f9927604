package image

import (
	"github.com/pkg/errors"
	"github.com/svenslaggare/stackjit-go/internal/vm"
)

func (img *Image) classExists(name string) bool {
	_, ok := img.prog.Class(name)
	return ok
}

// LoadFunctionBody materializes fn's instruction list and locals from the
// image byte stream if they have not already been decoded. Idempotent
// (§4.8): a second call on an already-materialized function is a no-op.
// External functions have no body to load.
func (img *Image) LoadFunctionBody(fn *vm.ManagedFunction) error {
	if img.funcBodyLoaded[fn] {
		return nil
	}
	if fn.IsExternal {
		img.funcBodyLoaded[fn] = true
		return nil
	}

	offset, ok := img.funcBodyOffset[fn]
	if !ok {
		return errors.Errorf("image: %s was not loaded from this image", fn.Signature())
	}

	c := &cursor{data: img.data}
	c.seek(offset)

	attrs, err := decodeAttributes(c)
	if err != nil {
		return errors.Wrapf(err, "image: loading attributes for %s", fn.Signature())
	}

	numLocals, err := c.u64()
	if err != nil {
		return errors.Wrapf(err, "image: reading local count for %s", fn.Signature())
	}
	locals := make([]*vm.Type, numLocals)
	for i := range locals {
		name, err := c.str()
		if err != nil {
			return errors.Wrapf(err, "image: reading local %d type for %s", i, fn.Signature())
		}
		t, err := typeRef(name, img.classExists)
		if err != nil {
			return errors.Wrapf(err, "image: resolving local %d type for %s", i, fn.Signature())
		}
		locals[i] = t
	}

	numInstructions, err := c.u64()
	if err != nil {
		return errors.Wrapf(err, "image: reading instruction count for %s", fn.Signature())
	}
	instructions := make([]vm.Instruction, numInstructions)
	for i := range instructions {
		ins, err := decodeInstruction(c, img.classExists)
		if err != nil {
			return errors.Wrapf(err, "image: reading instruction %d for %s", i, fn.Signature())
		}
		instructions[i] = ins
	}

	fn.Attributes = attrs
	fn.Locals = locals
	fn.Instructions = instructions
	img.funcBodyLoaded[fn] = true
	return nil
}

// LoadClassBody materializes class's parent linkage, field layout and
// virtual method table. A class's parent body is loaded first (recursively)
// so field offsets and vtable slots are assigned parent-first (§3 "object
// layout rule"), exactly as the surface-syntax loader would when compiling
// a class declaration list top to bottom.
func (img *Image) LoadClassBody(class *vm.ClassMetadata) error {
	if img.classBodyLoaded[class] {
		return nil
	}

	offset, ok := img.classBodyOffset[class]
	if !ok {
		return errors.Errorf("image: class %s was not loaded from this image", class.Name)
	}

	c := &cursor{data: img.data}
	c.seek(offset)

	parentName, err := c.str()
	if err != nil {
		return errors.Wrapf(err, "image: reading parent name for class %s", class.Name)
	}

	numFields, err := c.u64()
	if err != nil {
		return errors.Wrapf(err, "image: reading field count for class %s", class.Name)
	}
	type rawField struct {
		name     string
		typeName string
	}
	ownFields := make([]rawField, numFields)
	for i := range ownFields {
		name, err := c.str()
		if err != nil {
			return errors.Wrapf(err, "image: reading field %d name for class %s", i, class.Name)
		}
		typeName, err := c.str()
		if err != nil {
			return errors.Wrapf(err, "image: reading field %d type for class %s", i, class.Name)
		}
		ownFields[i] = rawField{name: name, typeName: typeName}
	}

	var parent *vm.ClassMetadata
	if parentName != "" {
		p, ok := img.prog.Class(parentName)
		if !ok {
			return errors.Errorf("image: class %s extends unknown class %s", class.Name, parentName)
		}
		if err := img.LoadClassBody(p); err != nil {
			return errors.Wrapf(err, "image: loading parent %s of class %s", parentName, class.Name)
		}
		parent = p
	}

	class.Parent = parentName
	if parent != nil {
		for _, f := range parent.Fields {
			class.AddField(f.Name, f.Type)
		}
		for _, vmethod := range parent.VTable {
			class.AppendVirtualMethod(vmethod.Def)
		}
	}
	for _, f := range ownFields {
		t, err := typeRef(f.typeName, img.classExists)
		if err != nil {
			return errors.Wrapf(err, "image: resolving field %s on class %s", f.name, class.Name)
		}
		class.AddField(f.name, t)
	}
	class.Layout()

	for _, def := range img.classMembers[class.Name] {
		if slot := class.FindVirtualSlot(def.MemberName()); slot >= 0 {
			class.OverrideVirtualMethod(slot, def)
		} else {
			class.AppendVirtualMethod(def)
		}
	}

	img.classBodyLoaded[class] = true
	return nil
}

// LoadAll materializes every function and class body in img. Callers that
// need every definition resolved up front -- stackasm's disassembler, and
// the VM CLI, which has no dynamic class-loading path once main starts
// running -- use this instead of calling LoadFunctionBody/LoadClassBody
// themselves one at a time.
func (img *Image) LoadAll() error {
	for _, fn := range img.prog.Functions() {
		if err := img.LoadFunctionBody(fn); err != nil {
			return err
		}
	}
	for _, class := range img.prog.Classes() {
		if err := img.LoadClassBody(class); err != nil {
			return err
		}
	}
	return nil
}

func decodeAttributes(c *cursor) (map[string]map[string]string, error) {
	numAttrs, err := c.u64()
	if err != nil {
		return nil, errors.Wrap(err, "reading attribute count")
	}
	if numAttrs == 0 {
		return nil, nil
	}
	attrs := make(map[string]map[string]string, numAttrs)
	for i := uint64(0); i < numAttrs; i++ {
		name, err := c.str()
		if err != nil {
			return nil, errors.Wrapf(err, "reading attribute %d name", i)
		}
		numKeys, err := c.u64()
		if err != nil {
			return nil, errors.Wrapf(err, "reading attribute %d key count", i)
		}
		kv := make(map[string]string, numKeys)
		for j := uint64(0); j < numKeys; j++ {
			key, err := c.str()
			if err != nil {
				return nil, errors.Wrapf(err, "reading attribute %d key %d", i, j)
			}
			value, err := c.str()
			if err != nil {
				return nil, errors.Wrapf(err, "reading attribute %d value %d", i, j)
			}
			kv[key] = value
		}
		attrs[name] = kv
	}
	return attrs, nil
}
