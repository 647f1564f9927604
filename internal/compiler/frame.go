// Package compiler is the per-function code generator (C6) built on top of
// the operand-stack materializer (C5): it lowers one ManagedFunction's VM
// instructions into x86-64 machine code, using internal/asm/amd64 to emit
// bytes and internal/callconv to cross the host ABI boundary at call and
// return sites.
package compiler

import (
	"github.com/svenslaggare/stackjit-go/internal/asm"
	"github.com/svenslaggare/stackjit-go/internal/asm/amd64"
	"github.com/svenslaggare/stackjit-go/internal/vm"
)

// Frame is the operand-stack materializer (C5): every VM value — argument,
// local, or operand-stack slot — lives at a fixed offset from RBP for the
// lifetime of the call, indexed as [rbp - 8*(1+slot)]. There is no register
// allocation; Push/Pop always round-trip through a scratch register (AX for
// integers and references, XMM0 for floats) so that a single per-frame
// descriptor (paramCount, localCount, stack depth at any instruction
// boundary) is enough for the GC to walk live frames, per the materializer's
// no-register-allocation design note.
type Frame struct {
	buf *asm.Buffer
	fn  *vm.ManagedFunction

	numParams int
	numLocals int

	depth    int    // current operand-stack depth
	maxDepth int    // high-water mark, used to size the frame
	kinds    []bool // kinds[i] is true iff the slot at depth i holds a float
}

// NewFrame prepares a materializer for fn. Buf is the scratch buffer C6
// emits into; it becomes fn.GeneratedCode once compilation finishes.
func NewFrame(buf *asm.Buffer, fn *vm.ManagedFunction) *Frame {
	return &Frame{
		buf:       buf,
		fn:        fn,
		numParams: fn.NumArgs(),
		numLocals: fn.NumLocals(),
	}
}

func (f *Frame) Buf() *asm.Buffer { return f.buf }

func slotOperand(index int) amd64.MemoryOperand {
	return amd64.MemoryOperand{Register: amd64.BP, Offset: -8 * int32(index+1)}
}

// ParamSlot returns parameter i's frame slot.
func (f *Frame) ParamSlot(i int) amd64.MemoryOperand { return slotOperand(i) }

// LocalSlot returns local variable i's frame slot.
func (f *Frame) LocalSlot(i int) amd64.MemoryOperand {
	return slotOperand(f.numParams + i)
}

func (f *Frame) stackSlot(i int) amd64.MemoryOperand {
	return slotOperand(f.numParams + f.numLocals + i)
}

// Depth reports the current operand-stack depth (number of live slots).
func (f *Frame) Depth() int { return f.depth }

// SlotCount returns how many 8-byte slots the frame needs in total:
// parameters, locals, and the deepest the operand stack ever reached.
func (f *Frame) SlotCount() int {
	return f.numParams + f.numLocals + f.maxDepth
}

func (f *Frame) markKind(depth int, isFloat bool) {
	for len(f.kinds) <= depth {
		f.kinds = append(f.kinds, false)
	}
	f.kinds[depth] = isFloat
}

func (f *Frame) trackPush(isFloat bool) {
	f.markKind(f.depth, isFloat)
	f.depth++
	if f.depth > f.maxDepth {
		f.maxDepth = f.depth
	}
}

// TopIsFloat reports whether the current top-of-stack slot holds a float,
// as recorded by the most recent PushInt/PushFloat at that depth. Used by
// type-oblivious opcodes (Dup) that must pick the right move form without
// the instruction itself carrying a type.
func (f *Frame) TopIsFloat() bool {
	return f.kinds[f.depth-1]
}

// Discard drops the top operand-stack slot without materializing its value
// anywhere — the compiled form of Pop, which never needs the value it
// removes.
func (f *Frame) Discard() { f.depth-- }

// PushInt stores reg at the next operand-stack slot.
func (f *Frame) PushInt(reg amd64.IntRegister) {
	slot := f.stackSlot(f.depth)
	f.trackPush(false)
	_ = amd64.NewAssembler(f.buf).MoveRegToMemory(slot, reg, amd64.Size64)
}

// PushFloatImmediate stores a raw 32-bit float bit pattern directly into
// the next operand-stack slot. There is no SSE immediate-move instruction
// in the encoder's repertoire, so a float literal is written as a plain
// 32-bit integer store into the same 8-byte slot a later PopFloat will read
// back with movss.
func (f *Frame) PushFloatImmediate(buf *asm.Buffer, bits uint32) {
	slot := f.stackSlot(f.depth)
	f.trackPush(true)
	amd64.MoveIntToMemoryRegWithIntOffset(buf, slot.Register, slot.Offset, int32(bits))
}

// PopInt loads the top operand-stack slot into the integer scratch register
// (AX) and returns it. Equivalent to PopIntTo(amd64.AX).
func (f *Frame) PopInt() amd64.IntRegister { return f.PopIntTo(amd64.AX) }

// PopIntTo loads the top operand-stack slot into the given register and
// returns it, letting binary operators place both operands in distinct
// registers (e.g. AX and CX) without colliding.
func (f *Frame) PopIntTo(reg amd64.IntRegister) amd64.IntRegister {
	f.depth--
	slot := f.stackSlot(f.depth)
	_ = amd64.NewAssembler(f.buf).MoveMemoryToReg(reg, slot, amd64.Size64)
	return reg
}

// PopFloat loads the top operand-stack slot into the float scratch register
// (XMM0) and returns it. Equivalent to PopFloatTo(amd64.XMM0).
func (f *Frame) PopFloat() amd64.FloatRegister { return f.PopFloatTo(amd64.XMM0) }

// PopFloatTo is PopIntTo's float counterpart.
func (f *Frame) PopFloatTo(reg amd64.FloatRegister) amd64.FloatRegister {
	f.depth--
	slot := f.stackSlot(f.depth)
	amd64.NewAssembler(f.buf).MoveFloatMemoryToReg(reg, slot)
	return reg
}

// peekSlot reports the frame slot currently holding the n-th-from-top
// operand, without adjusting depth — used by Dup.
func (f *Frame) peekSlot(fromTop int) amd64.MemoryOperand {
	return f.stackSlot(f.depth - 1 - fromTop)
}
