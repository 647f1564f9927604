package amd64

import (
	"fmt"

	"github.com/svenslaggare/stackjit-go/internal/asm"
)

// Assembler is the façade (C2) above the raw encoder (C1): it resolves
// typed operands — IntRegister, FloatRegister, Register8, MemoryOperand —
// onto the right C1 encoding so that the per-function compiler (C6) never
// has to know about REX prefixes or SIB bytes itself.
type Assembler struct {
	Buf *asm.Buffer
}

// NewAssembler wraps a fresh buffer in an Assembler.
func NewAssembler(buf *asm.Buffer) *Assembler { return &Assembler{Buf: buf} }

// ErrNotImplemented is returned by Move for an operand-size combination the
// integer path doesn't support. Only Size32 and Size64 are fully
// implemented there; Size8 is valid only via MoveReg8ToMemory /
// MoveMemoryToReg8.
type ErrNotImplemented struct {
	Size DataSize
}

func (e *ErrNotImplemented) Error() string {
	return fmt.Sprintf("amd64: data size %d not implemented for this move form", e.Size)
}

// MoveMemoryToReg loads a typed memory operand into an integer register.
// size selects the width; only Size32 and Size64 are implemented, matching
// the teacher's staged rollout of the move matrix.
func (a *Assembler) MoveMemoryToReg(dest IntRegister, mem MemoryOperand, size DataSize) error {
	switch size {
	case Size64:
		if fitsInSignedByte(mem.Offset) {
			MoveMemoryRegWithCharOffsetToReg(a.Buf, dest, mem.Register, int8(mem.Offset), false)
		} else {
			MoveMemoryRegWithIntOffsetToReg(a.Buf, dest, mem.Register, mem.Offset, false)
		}
		return nil
	case Size32:
		if fitsInSignedByte(mem.Offset) {
			MoveMemoryRegWithCharOffsetToReg(a.Buf, dest, mem.Register, int8(mem.Offset), true)
		} else {
			MoveMemoryRegWithIntOffsetToReg(a.Buf, dest, mem.Register, mem.Offset, true)
		}
		return nil
	default:
		return &ErrNotImplemented{size}
	}
}

// MoveRegToMemory stores an integer register into a typed memory operand.
func (a *Assembler) MoveRegToMemory(mem MemoryOperand, src IntRegister, size DataSize) error {
	switch size {
	case Size64:
		if fitsInSignedByte(mem.Offset) {
			MoveRegToMemoryRegWithCharOffset(a.Buf, mem.Register, int8(mem.Offset), src, false)
		} else {
			MoveRegToMemoryRegWithIntOffset(a.Buf, mem.Register, mem.Offset, src, false)
		}
		return nil
	case Size32:
		if fitsInSignedByte(mem.Offset) {
			MoveRegToMemoryRegWithCharOffset(a.Buf, mem.Register, int8(mem.Offset), src, true)
		} else {
			MoveRegToMemoryRegWithIntOffset(a.Buf, mem.Register, mem.Offset, src, true)
		}
		return nil
	default:
		return &ErrNotImplemented{size}
	}
}

// MoveReg8ToMemory stores an 8-bit register into memory — the only move
// form Size8 supports.
func (a *Assembler) MoveReg8ToMemory(mem MemoryOperand, src Register8) {
	MoveRegToMemoryRegWithIntOffsetByte(a.Buf, mem.Register, mem.Offset, src)
}

// MoveMemoryToReg8 loads a byte from memory into an 8-bit register with a
// plain 8-bit mov; the rest of the parent register is left unchanged.
func (a *Assembler) MoveMemoryToReg8(dest Register8, mem MemoryOperand) {
	MoveMemoryRegWithIntOffsetToRegByte(a.Buf, dest, mem.Register, mem.Offset)
}

// MoveFloatMemoryToReg loads a float32 memory operand into an SSE register.
func (a *Assembler) MoveFloatMemoryToReg(dest FloatRegister, mem MemoryOperand) {
	if mem.Offset == 0 {
		MoveMemoryByRegToRegFloat(a.Buf, dest, mem.Register)
	} else if fitsInSignedByte(mem.Offset) {
		MoveMemoryRegWithCharOffsetToRegFloat(a.Buf, dest, mem.Register, int8(mem.Offset))
	} else {
		MoveMemoryRegWithIntOffsetToRegFloat(a.Buf, dest, mem.Register, mem.Offset)
	}
}

// MoveFloatRegToMemory stores an SSE register into a float32 memory operand.
func (a *Assembler) MoveFloatRegToMemory(mem MemoryOperand, src FloatRegister) {
	if fitsInSignedByte(mem.Offset) {
		MoveRegToMemoryRegWithCharOffsetFloat(a.Buf, mem.Register, int8(mem.Offset), src)
	} else {
		MoveRegToMemoryRegWithIntOffsetFloat(a.Buf, mem.Register, mem.Offset, src)
	}
}

// Jump emits a conditional or (cond == Always) unconditional jump and
// returns the buffer offset of its 4-byte relative displacement, to be
// resolved later against a target native offset (§4.6/§4.7).
func (a *Assembler) Jump(cond Condition, unsigned bool) (dispOffset int) {
	if cond == Always {
		return JumpRel32(a.Buf)
	}
	return JumpIfRel32(a.Buf, cond, unsigned)
}

// PatchDisplacement resolves a previously emitted jump/call displacement
// so that the bytes at dispOffset encode target - (dispOffset + 4), per the
// branch-resolution invariant in §8.
func (a *Assembler) PatchDisplacement(dispOffset, fromNativeEnd, targetNativeOffset int) {
	a.Buf.PatchInt32LE(dispOffset, int32(targetNativeOffset-fromNativeEnd))
}
