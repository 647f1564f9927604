package image

import (
	"sort"

	"github.com/svenslaggare/stackjit-go/internal/asm"
	"github.com/svenslaggare/stackjit-go/internal/vm"
)

// Encode serializes every definition and body in prog into the §4.8 byte
// layout: counts, then a FunctionDef/ClassDef header per definition (with a
// placeholder body-offset slot), then every body in turn, patching each
// header's slot once its body's actual offset is known. Classes are written
// in name order for a reproducible byte stream; functions keep prog's own
// load order.
func Encode(prog *vm.Program) ([]byte, error) {
	buf := asm.NewBuffer()

	functions := prog.Functions()
	classes := prog.Classes()
	classNames := make([]string, 0, len(classes))
	for name := range classes {
		classNames = append(classNames, name)
	}
	sort.Strings(classNames)

	buf.WriteUint64LE(uint64(len(functions)))
	buf.WriteUint64LE(uint64(len(classNames)))

	funcBodySlot := make([]int, len(functions))
	for i, fn := range functions {
		funcBodySlot[i] = writeFuncHeader(buf, fn.FunctionDefinition)
	}

	classBodySlot := make([]int, len(classNames))
	for i, name := range classNames {
		writeString(buf, name)
		classBodySlot[i] = buf.Len()
		buf.WriteUint64LE(0)
	}

	for i, fn := range functions {
		offset := uint64(buf.Len())
		buf.PatchUint64LE(funcBodySlot[i], offset)
		if fn.IsExternal {
			continue
		}
		writeFunctionBody(buf, fn)
	}

	for i, name := range classNames {
		offset := uint64(buf.Len())
		buf.PatchUint64LE(classBodySlot[i], offset)
		writeClassBody(buf, prog, classes[name])
	}

	return buf.Bytes(), nil
}

// writeFuncHeader writes one FunctionDef and returns the buffer offset of
// its bodyOffsetSlot placeholder, to be patched once the body is written.
func writeFuncHeader(buf *asm.Buffer, fn *vm.FunctionDefinition) int {
	if fn.IsExternal {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	if fn.IsMember {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	if fn.IsMember {
		writeString(buf, fn.ClassName)
		writeString(buf, fn.MemberName())
	} else {
		writeString(buf, fn.Name)
	}

	// The implicit `this` parameter (always Params[0] for a member
	// function, per FunctionDefinition's own doc comment) is never
	// written: its type is always Class(ClassName), already carried by
	// isMember+className, so writing it again would be redundant.
	params := fn.Params
	if fn.IsMember && len(params) > 0 {
		params = params[1:]
	}
	buf.WriteUint64LE(uint64(len(params)))
	for _, p := range params {
		writeString(buf, p.String())
	}

	writeString(buf, fn.ReturnType.String())

	slot := buf.Len()
	buf.WriteUint64LE(0)
	return slot
}

func writeFunctionBody(buf *asm.Buffer, fn *vm.ManagedFunction) {
	encodeAttributes(buf, fn.Attributes)

	buf.WriteUint64LE(uint64(len(fn.Locals)))
	for _, t := range fn.Locals {
		writeString(buf, t.String())
	}

	buf.WriteUint64LE(uint64(len(fn.Instructions)))
	for _, ins := range fn.Instructions {
		encodeInstruction(buf, ins)
	}
}

// writeClassBody writes only class's own fields, excluding the parent's --
// LoadClassBody prepends the parent's fields itself when a class body is
// materialized, so writing them twice would duplicate them on reload.
// Nothing about the virtual method table is written: it is rebuilt purely
// from parent's own (already-loaded) VTable plus the member
// FunctionDefinitions already known from the eager header pass.
func writeClassBody(buf *asm.Buffer, prog *vm.Program, class *vm.ClassMetadata) {
	writeString(buf, class.Parent)

	ownFields := class.Fields
	if class.Parent != "" {
		if parent, ok := prog.Class(class.Parent); ok && len(parent.Fields) <= len(class.Fields) {
			ownFields = class.Fields[len(parent.Fields):]
		}
	}

	buf.WriteUint64LE(uint64(len(ownFields)))
	for _, f := range ownFields {
		writeString(buf, f.Name)
		writeString(buf, f.Type.String())
	}
}

func encodeAttributes(buf *asm.Buffer, attrs map[string]map[string]string) {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	buf.WriteUint64LE(uint64(len(names)))
	for _, name := range names {
		writeString(buf, name)
		kv := attrs[name]
		keys := make([]string, 0, len(kv))
		for k := range kv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteUint64LE(uint64(len(keys)))
		for _, k := range keys {
			writeString(buf, k)
			writeString(buf, kv[k])
		}
	}
}
