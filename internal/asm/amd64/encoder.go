package amd64

import (
	"math"

	"github.com/svenslaggare/stackjit-go/internal/asm"
)

// This file is C1: one function per logical instruction form, each
// appending bytes to the caller-supplied *asm.Buffer. There is no
// allocation beyond the buffer's own growth and no validation beyond the
// asserts called out in the doc comments below — invalid operand
// combinations (e.g. Div with a non-AX dividend) are programming errors.
//
// Byte sequences below are cross-checked against §8's encoding table; see
// encoder_test.go.

func rex(w, r, x, b bool) (byte, bool) {
	if !w && !r && !x && !b {
		return 0, false
	}
	v := byte(0x40)
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v, true
}

func modRM(mod, reg, rm byte) byte {
	return mod<<6 | (reg&7)<<3 | (rm & 7)
}

const sibRSP = 0x24 // scale=00, index=100 (none), base=100 (RSP/R12)

func fitsInSignedByte(v int32) bool {
	return v >= -128 && v <= 127
}

// --- Push / Pop -------------------------------------------------------

// PushReg emits `push reg` for a base or extended 64-bit register.
func PushReg(buf *asm.Buffer, reg IntRegister) {
	if r, ok := rex(false, false, false, reg.Extended); ok {
		buf.WriteByte(r)
	}
	buf.WriteByte(0x50 + reg.id)
}

// PushInt emits `push imm32`, sign-extended to 64 bits by the CPU.
func PushInt(buf *asm.Buffer, value int32) {
	buf.WriteByte(0x68)
	buf.WriteInt32LE(value)
}

// PushFloatReg emits the SSE push idiom: `sub rsp,8; movss [rsp], xmm`.
func PushFloatReg(buf *asm.Buffer, reg FloatRegister) {
	SubIntFromReg(buf, SP, 8, false)
	MoveRegToMemoryRegWithCharOffsetFloat(buf, SP, 0, reg)
}

// PopReg emits `pop reg`.
func PopReg(buf *asm.Buffer, reg IntRegister) {
	if r, ok := rex(false, false, false, reg.Extended); ok {
		buf.WriteByte(r)
	}
	buf.WriteByte(0x58 + reg.id)
}

// PopFloatReg emits the SSE pop idiom: `movss xmm, [rsp]; add rsp,8`.
func PopFloatReg(buf *asm.Buffer, reg FloatRegister) {
	MoveMemoryRegWithCharOffsetToRegFloat(buf, reg, SP, 0)
	AddIntToReg(buf, SP, 8, false)
}

// --- Move ---------------------------------------------------------------

// MoveRegToReg emits `mov dest, src` (or `movl` if is32 is set).
func MoveRegToReg(buf *asm.Buffer, dest, src IntRegister, is32 bool) {
	if r, ok := rex(!is32, src.Extended, false, dest.Extended); ok {
		buf.WriteByte(r)
	}
	buf.WriteByte(0x89)
	buf.WriteByte(modRM(0b11, src.id, dest.id))
}

// MoveIntToReg emits `mov dest, imm32` (or movl in 32-bit mode). The
// 64-bit form sign-extends the immediate.
func MoveIntToReg(buf *asm.Buffer, dest IntRegister, value int32, is32 bool) {
	if r, ok := rex(!is32, false, false, dest.Extended); ok {
		buf.WriteByte(r)
	}
	if is32 {
		buf.WriteByte(0xB8 + dest.id)
	} else {
		// REX.W B8+r takes a 64-bit immediate; C7 /0 takes a sign-extended imm32.
		buf.WriteByte(0xC7)
		buf.WriteByte(modRM(0b11, 0, dest.id))
	}
	buf.WriteInt32LE(value)
}

// MoveLongToReg emits `movabs dest, imm64`.
func MoveLongToReg(buf *asm.Buffer, dest IntRegister, value int64) {
	if r, ok := rex(true, false, false, dest.Extended); ok {
		buf.WriteByte(r)
	}
	buf.WriteByte(0xB8 + dest.id)
	buf.WriteUint64LE(uint64(value))
}

// MoveRegToMemoryRegWithCharOffset emits `mov [destMem+offset8], src`.
func MoveRegToMemoryRegWithCharOffset(buf *asm.Buffer, destMem IntRegister, offset int8, src IntRegister, is32 bool) {
	emitRM(buf, 0x89, !is32, src, destMem, int32(offset), true)
}

// MoveRegToMemoryRegWithIntOffset emits `mov [destMem+offset32], src`.
func MoveRegToMemoryRegWithIntOffset(buf *asm.Buffer, destMem IntRegister, offset int32, src IntRegister, is32 bool) {
	emitRM(buf, 0x89, !is32, src, destMem, offset, false)
}

// MoveRegToMemoryRegWithIntOffsetByte emits an 8-bit `mov [destMem+offset], src8`.
func MoveRegToMemoryRegWithIntOffsetByte(buf *asm.Buffer, destMem IntRegister, offset int32, src Register8) {
	emitRM8(buf, 0x88, byte(src), destMem, offset)
}

// MoveMemoryRegWithCharOffsetToReg emits `mov dest, [srcMem+offset8]`.
func MoveMemoryRegWithCharOffsetToReg(buf *asm.Buffer, dest IntRegister, srcMem IntRegister, offset int8, is32 bool) {
	emitRM(buf, 0x8B, !is32, dest, srcMem, int32(offset), true)
}

// MoveMemoryRegWithIntOffsetToReg emits `mov dest, [srcMem+offset32]`.
func MoveMemoryRegWithIntOffsetToReg(buf *asm.Buffer, dest IntRegister, srcMem IntRegister, offset int32, is32 bool) {
	emitRM(buf, 0x8B, !is32, dest, srcMem, offset, false)
}

// MoveMemoryRegWithIntOffsetToRegByte emits an 8-bit `mov dest8, [srcMem+offset]`;
// the bits of the parent register above dest8 are left unchanged.
func MoveMemoryRegWithIntOffsetToRegByte(buf *asm.Buffer, dest Register8, srcMem IntRegister, offset int32) {
	emitRM8(buf, 0x8A, byte(dest), srcMem, offset)
}

// MoveMemoryByRegToReg emits `mov dest, [srcMem]` (no displacement).
func MoveMemoryByRegToReg(buf *asm.Buffer, dest, srcMem IntRegister, is32 bool) {
	emitRM(buf, 0x8B, !is32, dest, srcMem, 0, false)
}

// MoveIntToMemoryRegWithIntOffset emits `mov dword [destMem+offset], imm32`.
func MoveIntToMemoryRegWithIntOffset(buf *asm.Buffer, destMem IntRegister, offset int32, value int32) {
	if r, ok := rex(false, false, false, destMem.Extended); ok {
		buf.WriteByte(r)
	}
	buf.WriteByte(0xC7)
	emitModRMMem(buf, 0, destMem, offset)
	buf.WriteInt32LE(value)
}

// MoveMemoryToAbsolute emits the RAX-only absolute load `mov rax, [addr]`.
//
// Only RAX is supported as either operand of the absolute-address forms;
// using any other register is a programming error (matches the `div`
// AX-only assert, per §4.1).
func MoveMemoryToAbsolute(buf *asm.Buffer, dest IntRegister, addr uint64) {
	if dest != AX {
		panic("BUG: MoveMemoryToAbsolute only supports RAX")
	}
	r, _ := rex(true, false, false, false)
	buf.WriteByte(r)
	buf.WriteByte(0xA1)
	buf.WriteUint64LE(addr)
}

// MoveAbsoluteToMemory emits the RAX-only absolute store `mov [addr], rax`.
func MoveAbsoluteToMemory(buf *asm.Buffer, addr uint64, src IntRegister) {
	if src != AX {
		panic("BUG: MoveAbsoluteToMemory only supports RAX")
	}
	r, _ := rex(true, false, false, false)
	buf.WriteByte(r)
	buf.WriteByte(0xA3)
	buf.WriteUint64LE(addr)
}

// --- Float moves (SSE scalar-single, F3 0F 10/11) -----------------------

// MoveMemoryByRegToRegFloat emits `movss xmm, [srcMem]`.
func MoveMemoryByRegToRegFloat(buf *asm.Buffer, dest FloatRegister, srcMem IntRegister) {
	buf.WriteByte(0xF3)
	if r, ok := rex(false, false, false, srcMem.Extended); ok {
		buf.WriteByte(r)
	}
	buf.WriteByte(0x0F)
	buf.WriteByte(0x10)
	emitModRMMemFloat(buf, byte(dest), srcMem, 0)
}

// MoveRegToMemoryRegWithCharOffsetFloat emits `movss [destMem+offset8], xmm`.
func MoveRegToMemoryRegWithCharOffsetFloat(buf *asm.Buffer, destMem IntRegister, offset int8, src FloatRegister) {
	buf.WriteByte(0xF3)
	if r, ok := rex(false, false, false, destMem.Extended); ok {
		buf.WriteByte(r)
	}
	buf.WriteByte(0x0F)
	buf.WriteByte(0x11)
	emitModRMMemFloatDisp(buf, byte(src), destMem, int32(offset), true)
}

// MoveRegToMemoryRegWithIntOffsetFloat emits `movss [destMem+offset32], xmm`.
func MoveRegToMemoryRegWithIntOffsetFloat(buf *asm.Buffer, destMem IntRegister, offset int32, src FloatRegister) {
	buf.WriteByte(0xF3)
	if r, ok := rex(false, false, false, destMem.Extended); ok {
		buf.WriteByte(r)
	}
	buf.WriteByte(0x0F)
	buf.WriteByte(0x11)
	emitModRMMemFloatDisp(buf, byte(src), destMem, offset, false)
}

// MoveMemoryRegWithCharOffsetToRegFloat emits `movss xmm, [srcMem+offset8]`.
func MoveMemoryRegWithCharOffsetToRegFloat(buf *asm.Buffer, dest FloatRegister, srcMem IntRegister, offset int8) {
	buf.WriteByte(0xF3)
	if r, ok := rex(false, false, false, srcMem.Extended); ok {
		buf.WriteByte(r)
	}
	buf.WriteByte(0x0F)
	buf.WriteByte(0x10)
	emitModRMMemFloatDisp(buf, byte(dest), srcMem, int32(offset), true)
}

// MoveMemoryRegWithIntOffsetToRegFloat emits `movss xmm, [srcMem+offset32]`.
func MoveMemoryRegWithIntOffsetToRegFloat(buf *asm.Buffer, dest FloatRegister, srcMem IntRegister, offset int32) {
	buf.WriteByte(0xF3)
	if r, ok := rex(false, false, false, srcMem.Extended); ok {
		buf.WriteByte(r)
	}
	buf.WriteByte(0x0F)
	buf.WriteByte(0x10)
	emitModRMMemFloatDisp(buf, byte(dest), srcMem, offset, false)
}

// MoveRegToRegFloat emits `movss xmmDest, xmmSrc`.
func MoveRegToRegFloat(buf *asm.Buffer, dest, src FloatRegister) {
	buf.WriteByte(0xF3)
	buf.WriteByte(0x0F)
	buf.WriteByte(0x10)
	buf.WriteByte(modRM(0b11, byte(dest), byte(src)))
}

// --- Generic ModRM/SIB emission helpers ----------------------------------

// emitRM encodes `opcode reg, [mem+disp]` or `opcode [mem+disp], reg`
// depending on how the caller ordered (reg, mem); used uniformly for both
// mov-to-memory and mov-from-memory forms since the operand encoding is
// identical (only the opcode's direction bit differs, which callers select
// by passing 0x88/0x89 vs 0x8A/0x8B).
func emitRM(buf *asm.Buffer, opcode byte, w bool, reg, mem IntRegister, offset int32, charOffset bool) {
	if r, ok := rex(w, reg.Extended, false, mem.Extended); ok {
		buf.WriteByte(r)
	}
	buf.WriteByte(opcode)
	emitModRMMemDisp(buf, reg.id, mem, offset, charOffset)
}

func emitRM8(buf *asm.Buffer, opcode byte, regID byte, mem IntRegister, offset int32) {
	if r, ok := rex(false, false, false, mem.Extended); ok {
		buf.WriteByte(r)
	}
	buf.WriteByte(opcode)
	emitModRMMemDisp(buf, regID, mem, offset, fitsInSignedByte(offset))
}

// emitModRMMem picks mod=00/01/10 per whether there is no/char/int
// displacement and whether offset is actually zero (handled by caller
// passing charOffset=false, offset=0 from emitRM callers that always want
// an explicit displacement byte for "WithIntOffset"/"WithCharOffset" named
// entry points). MoveMemoryByRegToReg (no-offset form) calls the offset=0,
// charOffset=false path below, which collapses to mod=00.
func emitModRMMem(buf *asm.Buffer, regID byte, mem IntRegister, offset int32) {
	emitModRMMemDisp(buf, regID, mem, offset, fitsInSignedByte(offset))
}

func emitModRMMemDisp(buf *asm.Buffer, regID byte, mem IntRegister, offset int32, charOffset bool) {
	var mod byte
	switch {
	case offset == 0 && mem.id != 0b101: // RBP/R13 always need a disp8 even for offset 0
		mod = 0b00
	case charOffset && fitsInSignedByte(offset):
		mod = 0b01
	default:
		mod = 0b10
	}
	buf.WriteByte(modRM(mod, regID, mem.id))
	if mem.id == 0b100 { // RSP/R12 require a SIB byte
		buf.WriteByte(sibRSP)
	}
	switch mod {
	case 0b01:
		buf.WriteByte(byte(int8(offset)))
	case 0b10:
		buf.WriteInt32LE(offset)
	}
}

func emitModRMMemFloat(buf *asm.Buffer, regID byte, mem IntRegister, offset int32) {
	emitModRMMemDisp(buf, regID, mem, offset, false)
}

func emitModRMMemFloatDisp(buf *asm.Buffer, regID byte, mem IntRegister, offset int32, charOffset bool) {
	emitModRMMemDisp(buf, regID, mem, offset, charOffset)
}

// --- Arithmetic & logic ---------------------------------------------------

// aluRegToReg emits the reg/reg form of add/sub/and/or/xor/cmp, which all
// share the `op r/m64, r64` shape (opcode differs only by group).
func aluRegToReg(buf *asm.Buffer, opcode byte, dest, src IntRegister, is32 bool) {
	if r, ok := rex(!is32, src.Extended, false, dest.Extended); ok {
		buf.WriteByte(r)
	}
	buf.WriteByte(opcode)
	buf.WriteByte(modRM(0b11, src.id, dest.id))
}

// aluImmToReg emits the immediate form of add/sub/and/cmp: the short
// "reg=AX" encoding when applicable, else (spec's fits-in-signed-8
// predicate) the sign-extended-imm8 `83 /ext` form, else the general
// `81 /ext` form.
func aluImmToReg(buf *asm.Buffer, shortOpcodeForAX byte, ext byte, dest IntRegister, value int32, is32 bool) {
	w := !is32
	if dest == AX && !dest.Extended {
		if r, ok := rex(w, false, false, false); ok {
			buf.WriteByte(r)
		}
		buf.WriteByte(shortOpcodeForAX)
		buf.WriteInt32LE(value)
		return
	}
	if r, ok := rex(w, false, false, dest.Extended); ok {
		buf.WriteByte(r)
	}
	if fitsInSignedByte(value) {
		buf.WriteByte(0x83)
		buf.WriteByte(modRM(0b11, ext, dest.id))
		buf.WriteByte(byte(int8(value)))
	} else {
		buf.WriteByte(0x81)
		buf.WriteByte(modRM(0b11, ext, dest.id))
		buf.WriteInt32LE(value)
	}
}

func AddRegToReg(buf *asm.Buffer, dest, src IntRegister, is32 bool) { aluRegToReg(buf, 0x01, dest, src, is32) }
func AddIntToReg(buf *asm.Buffer, dest IntRegister, value int32, is32 bool) {
	aluImmToReg(buf, 0x05, 0, dest, value, is32)
}

func SubRegFromReg(buf *asm.Buffer, dest, src IntRegister, is32 bool) { aluRegToReg(buf, 0x29, dest, src, is32) }
func SubIntFromReg(buf *asm.Buffer, dest IntRegister, value int32, is32 bool) {
	aluImmToReg(buf, 0x2D, 5, dest, value, is32)
}

func AndRegToReg(buf *asm.Buffer, dest, src IntRegister, is32 bool) { aluRegToReg(buf, 0x21, dest, src, is32) }
func AndIntToReg(buf *asm.Buffer, dest IntRegister, value int32, is32 bool) {
	aluImmToReg(buf, 0x25, 4, dest, value, is32)
}

func OrRegToReg(buf *asm.Buffer, dest, src IntRegister, is32 bool) { aluRegToReg(buf, 0x09, dest, src, is32) }
func XorRegToReg(buf *asm.Buffer, dest, src IntRegister, is32 bool) { aluRegToReg(buf, 0x31, dest, src, is32) }

func CompareRegToReg(buf *asm.Buffer, dest, src IntRegister, is32 bool) { aluRegToReg(buf, 0x39, dest, src, is32) }
func CompareIntToReg(buf *asm.Buffer, dest IntRegister, value int32, is32 bool) {
	aluImmToReg(buf, 0x3D, 7, dest, value, is32)
}

// MultRegToReg emits `imul dest, src` (two-byte opcode 0F AF /r).
func MultRegToReg(buf *asm.Buffer, dest, src IntRegister, is32 bool) {
	if r, ok := rex(!is32, dest.Extended, false, src.Extended); ok {
		buf.WriteByte(r)
	}
	buf.WriteByte(0x0F)
	buf.WriteByte(0xAF)
	buf.WriteByte(modRM(0b11, dest.id, src.id))
}

// DivRegFromReg emits a signed `idiv src` (group 0xF7 /7); the dividend is
// the implicit RDX:RAX pair, so dest must be AX. Emitting CDQ/CQO to
// sign-extend RAX into RDX first is the caller's (C6's) responsibility.
//
// Asserts dest == AX: dividing into any other register is a programming
// error (§4.1).
func DivRegFromReg(buf *asm.Buffer, dest, src IntRegister, is32 bool) {
	if dest != AX {
		panic("BUG: DivRegFromReg requires AX as the dividend")
	}
	if r, ok := rex(!is32, false, false, src.Extended); ok {
		buf.WriteByte(r)
	}
	buf.WriteByte(0xF7)
	buf.WriteByte(modRM(0b11, 7, src.id))
}

// NotReg emits `not dest` (group 0xF7 /2).
func NotReg(buf *asm.Buffer, dest IntRegister, is32 bool) {
	if r, ok := rex(!is32, false, false, dest.Extended); ok {
		buf.WriteByte(r)
	}
	buf.WriteByte(0xF7)
	buf.WriteByte(modRM(0b11, 2, dest.id))
}

// CDQ / CQO sign-extend AX into DX:AX (32-bit) or RAX into RDX:RAX (64-bit),
// required ahead of a signed idiv.
func CDQ(buf *asm.Buffer) { buf.WriteByte(0x99) }
func CQO(buf *asm.Buffer) {
	r, _ := rex(true, false, false, false)
	buf.WriteByte(r)
	buf.WriteByte(0x99)
}

// --- SSE scalar-float arithmetic (F3 0F ..) -------------------------------

func sseOp(buf *asm.Buffer, opcode byte, dest, src FloatRegister) {
	buf.WriteByte(0xF3)
	buf.WriteByte(0x0F)
	buf.WriteByte(opcode)
	buf.WriteByte(modRM(0b11, byte(dest), byte(src)))
}

func AddFloatRegToReg(buf *asm.Buffer, dest, src FloatRegister)  { sseOp(buf, 0x58, dest, src) }
func SubFloatRegToReg(buf *asm.Buffer, dest, src FloatRegister)  { sseOp(buf, 0x5C, dest, src) }
func MultFloatRegToReg(buf *asm.Buffer, dest, src FloatRegister) { sseOp(buf, 0x59, dest, src) }
func DivFloatRegToReg(buf *asm.Buffer, dest, src FloatRegister)  { sseOp(buf, 0x5E, dest, src) }

// UComissRegToReg emits `ucomiss dest, src` (unordered compare, 0F 2E /r,
// no mandatory prefix).
func UComissRegToReg(buf *asm.Buffer, dest, src FloatRegister) {
	buf.WriteByte(0x0F)
	buf.WriteByte(0x2E)
	buf.WriteByte(modRM(0b11, byte(dest), byte(src)))
}

// --- Conversions -----------------------------------------------------------

// ConvertIntToFloat emits `cvtsi2ss dest, src` (F3 0F 2A /r).
func ConvertIntToFloat(buf *asm.Buffer, dest FloatRegister, src IntRegister) {
	buf.WriteByte(0xF3)
	if r, ok := rex(true, false, false, src.Extended); ok {
		buf.WriteByte(r)
	}
	buf.WriteByte(0x0F)
	buf.WriteByte(0x2A)
	buf.WriteByte(modRM(0b11, byte(dest), src.id))
}

// ConvertFloatToInt emits the truncating `cvttss2si dest, src` (F3 0F 2C /r).
func ConvertFloatToInt(buf *asm.Buffer, dest IntRegister, src FloatRegister) {
	buf.WriteByte(0xF3)
	if r, ok := rex(true, false, false, dest.Extended); ok {
		buf.WriteByte(r)
	}
	buf.WriteByte(0x0F)
	buf.WriteByte(0x2C)
	buf.WriteByte(modRM(0b11, dest.id, byte(src)))
}

// Float32Bits is a convenience used by the compiler to turn a VM Float
// literal into the 4 raw bytes a MOVSS immediate load must go through (via
// an integer scratch register, since x86 has no SSE immediate-move form).
func Float32Bits(v float32) uint32 { return math.Float32bits(v) }

// --- Control flow -----------------------------------------------------------

// JumpRel32 emits an unconditional near jump with a placeholder 4-byte
// relative displacement (always 0 at emission time; patched later by
// branch resolution).
func JumpRel32(buf *asm.Buffer) (dispOffset int) {
	buf.WriteByte(0xE9)
	dispOffset = buf.Len()
	buf.WriteInt32LE(0)
	return dispOffset
}

// conditionOpcodes maps a Condition plus an unsigned flag to the Jcc
// second opcode byte (first byte is always 0x0F for near conditional
// jumps).
var conditionOpcodes = map[Condition][2]byte{
	Equal:          {0x84, 0x84}, // je
	NotEqual:       {0x85, 0x85}, // jne
	Greater:        {0x8F, 0x87}, // jg / ja
	GreaterOrEqual: {0x8D, 0x83}, // jge / jae
	Less:           {0x8C, 0x82}, // jl / jb
	LessOrEqual:    {0x8E, 0x86}, // jle / jbe
}

// JumpIfRel32 emits a conditional near jump (`0F 8x disp32`) and returns the
// displacement's buffer offset for later patching.
func JumpIfRel32(buf *asm.Buffer, cond Condition, unsigned bool) (dispOffset int) {
	pair := conditionOpcodes[cond]
	op := pair[0]
	if unsigned {
		op = pair[1]
	}
	buf.WriteByte(0x0F)
	buf.WriteByte(op)
	dispOffset = buf.Len()
	buf.WriteInt32LE(0)
	return dispOffset
}

// setConditionOpcodes maps a Condition plus unsigned flag to the SETcc
// second opcode byte, used to materialize a comparison result as 0/1.
var setConditionOpcodes = map[Condition][2]byte{
	Equal:          {0x94, 0x94},
	NotEqual:       {0x95, 0x95},
	Greater:        {0x9F, 0x97},
	GreaterOrEqual: {0x9D, 0x93},
	Less:           {0x9C, 0x92},
	LessOrEqual:    {0x9E, 0x96},
}

// SetByte emits `setcc al` followed by `movzx dest, al` to materialize a
// flag as a zero-extended 0/1 integer in dest.
func SetByte(buf *asm.Buffer, dest IntRegister, cond Condition, unsigned bool) {
	pair := setConditionOpcodes[cond]
	op := pair[0]
	if unsigned {
		op = pair[1]
	}
	buf.WriteByte(0x0F)
	buf.WriteByte(op)
	buf.WriteByte(modRM(0b11, 0, 0)) // setcc al
	// movzx dest32, al
	if r, ok := rex(false, dest.Extended, false, false); ok {
		buf.WriteByte(r)
	}
	buf.WriteByte(0x0F)
	buf.WriteByte(0xB6)
	buf.WriteByte(modRM(0b11, dest.id, 0))
}

// CallRel32 emits `call rel32` with a placeholder displacement, returning
// its buffer offset for later patching (§4.7 direct-call resolution).
func CallRel32(buf *asm.Buffer) (dispOffset int) {
	buf.WriteByte(0xE8)
	dispOffset = buf.Len()
	buf.WriteInt32LE(0)
	return dispOffset
}

// CallReg emits `call reg`, an indirect call through a register (group
// 0xFF /2), used for virtual dispatch through a loaded vtable slot.
func CallReg(buf *asm.Buffer, reg IntRegister) {
	if r, ok := rex(false, false, false, reg.Extended); ok {
		buf.WriteByte(r)
	}
	buf.WriteByte(0xFF)
	buf.WriteByte(modRM(0b11, 2, reg.id))
}

// Ret emits the `ret` instruction.
func Ret(buf *asm.Buffer) { buf.WriteByte(0xC3) }

// Leave emits the `leave` instruction (mov rsp,rbp; pop rbp).
func Leave(buf *asm.Buffer) { buf.WriteByte(0xC9) }

// --- Stack frame helpers --------------------------------------------------

// PushRBP / PopRBP / MoveRBPFromRSP are thin named wrappers used by the
// prologue/epilogue emitter for readability at call sites.
func PushRBP(buf *asm.Buffer)  { PushReg(buf, BP) }
func MoveRBPFromRSP(buf *asm.Buffer) { MoveRegToReg(buf, BP, SP, false) }
