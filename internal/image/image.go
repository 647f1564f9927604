// Package image implements the binary image format (C8, spec §4.8): the
// on-disk encoding stackasm writes and the VM loads. An image's function and
// class *definitions* (signatures, parameters, return types, field layouts)
// are parsed eagerly, at Load, since call and field resolution across the
// whole image depends on every signature being known up front. A body --
// the instruction list for a function, or the field/vtable details for a
// class -- is decoded on demand, by LoadFunctionBody/LoadClassBody, or for
// the whole image at once by LoadAll. Both are idempotent.
//
// Numbers are little-endian regardless of host width (the "must pick one
// and document it" choice §4.8 leaves open): counts, lengths and body
// offsets are 64-bit, while branch targets and Int/Float instruction
// payloads are 32-bit.
package image

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/svenslaggare/stackjit-go/internal/vm"
)

// tag byte values for FunctionBody's instruction stream. These mirror
// vm.PayloadKind's own ordering exactly -- including PayloadNewObject, which
// spec.md's prose list of instruction tags omits because the spec's example
// predates this module's decision (vm/instruction.go) to give OP_NEW_OBJECT
// its own payload kind rather than overloading PayloadCall for it.
const (
	tagNone byte = iota
	tagInt
	tagFloat
	tagChar
	tagString
	tagStringConst
	tagCall
	tagCallInstance
	tagNewObject
)

// Image is a loaded binary image: every function and class definition,
// ready for signature resolution, plus enough bookkeeping to materialize a
// body on demand from the original byte stream.
type Image struct {
	data []byte
	prog *vm.Program

	funcBodyOffset  map[*vm.ManagedFunction]uint64
	classBodyOffset map[*vm.ClassMetadata]uint64

	funcBodyLoaded  map[*vm.ManagedFunction]bool
	classBodyLoaded map[*vm.ClassMetadata]bool

	// classMembers records, per class name, the member FunctionDefinitions
	// declared against it, in load order -- known from the eager
	// definitions pass regardless of whether any body has been
	// materialized yet, since LoadClassBody needs it to build a vtable
	// without having to re-scan every function in the image.
	classMembers map[string][]*vm.FunctionDefinition
}

// Program returns the program this image has loaded definitions into.
// Function and class bodies referenced through it are materialized lazily
// by LoadFunctionBody/LoadClassBody, not already present.
func (img *Image) Program() *vm.Program { return img.prog }

// cursor is a read-only byte-stream position, the inverse of asm.Buffer:
// image decoding reads back exactly the shapes writer.go and codec.go write.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) u64() (uint64, error) {
	if c.pos+8 > len(c.data) {
		return 0, errors.New("image: truncated u64")
	}
	v := uint64(0)
	for i := 0; i < 8; i++ {
		v |= uint64(c.data[c.pos+i]) << (8 * uint(i))
	}
	c.pos += 8
	return v, nil
}

func (c *cursor) u32() (uint32, error) {
	if c.pos+4 > len(c.data) {
		return 0, errors.New("image: truncated u32")
	}
	v := uint32(0)
	for i := 0; i < 4; i++ {
		v |= uint32(c.data[c.pos+i]) << (8 * uint(i))
	}
	c.pos += 4
	return v, nil
}

func (c *cursor) i32() (int32, error) {
	v, err := c.u32()
	return int32(v), err
}

func (c *cursor) byte() (byte, error) {
	if c.pos+1 > len(c.data) {
		return 0, errors.New("image: truncated byte")
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

func (c *cursor) bytes(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.data) {
		return nil, errors.New("image: truncated byte slice")
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) str() (string, error) {
	n, err := c.u64()
	if err != nil {
		return "", errors.Wrap(err, "image: reading string length")
	}
	b, err := c.bytes(int(n))
	if err != nil {
		return "", errors.Wrap(err, "image: reading string body")
	}
	return string(b), nil
}

func (c *cursor) seek(offset uint64) {
	c.pos = int(offset)
}

// typeRef resolves a serialized type name against classExists, the same
// resolution vm.ParseTypeName performs for the surface-syntax loader, so a
// class-typed field or parameter can reference a class defined later in the
// same image (every class name is already known after the eager definitions
// pass, well before any body is materialized).
func typeRef(name string, classExists func(string) bool) (*vm.Type, error) {
	t, err := vm.ParseTypeName(name, classExists)
	if err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}
	return t, nil
}
