package amd64

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/svenslaggare/stackjit-go/internal/asm"
)

func hexBytes(buf *asm.Buffer) []byte { return buf.Bytes() }

func TestPushPopReg(t *testing.T) {
	tests := []struct {
		name string
		fn   func(*asm.Buffer)
		want []byte
	}{
		{"push AX", func(b *asm.Buffer) { PushReg(b, AX) }, []byte{0x50}},
		{"push CX", func(b *asm.Buffer) { PushReg(b, CX) }, []byte{0x51}},
		{"push R8 (extended)", func(b *asm.Buffer) { PushReg(b, R8) }, []byte{0x41, 0x50}},
		{"push imm32 4711", func(b *asm.Buffer) { PushInt(b, 4711) }, []byte{0x68, 0x67, 0x12, 0x00, 0x00}},
		{"pop AX", func(b *asm.Buffer) { PopReg(b, AX) }, []byte{0x58}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := asm.NewBuffer()
			tt.fn(buf)
			require.Equal(t, tt.want, hexBytes(buf))
		})
	}
}

func TestMoveRegToReg(t *testing.T) {
	tests := []struct {
		name string
		dest IntRegister
		src  IntRegister
		is32 bool
		want []byte
	}{
		{"AX,AX 64bit", AX, AX, false, []byte{0x48, 0x89, 0xC0}},
		{"CX,CX 64bit", CX, CX, false, []byte{0x48, 0x89, 0xC9}},
		{"R8,R8 64bit", R8, R8, false, []byte{0x4D, 0x89, 0xC0}},
		{"AX,R8 64bit", AX, R8, false, []byte{0x4C, 0x89, 0xC0}},
		{"R8,AX 64bit", R8, AX, false, []byte{0x49, 0x89, 0xC0}},
		{"AX,AX 32bit", AX, AX, true, []byte{0x89, 0xC0}},
		{"R8,R8 32bit", R8, R8, true, []byte{0x45, 0x89, 0xC0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := asm.NewBuffer()
			MoveRegToReg(buf, tt.dest, tt.src, tt.is32)
			require.Equal(t, tt.want, hexBytes(buf))
		})
	}
}

func TestMoveRegToMemoryWithOffset(t *testing.T) {
	t.Run("char offset BP-4, DI", func(t *testing.T) {
		buf := asm.NewBuffer()
		MoveRegToMemoryRegWithCharOffset(buf, BP, -4, DI, false)
		require.Equal(t, []byte{0x48, 0x89, 0x7D, 0xFC}, hexBytes(buf))
	})
	t.Run("int offset BP+1337, AX", func(t *testing.T) {
		buf := asm.NewBuffer()
		MoveRegToMemoryRegWithIntOffset(buf, BP, 1337, AX, false)
		require.Equal(t, []byte{0x48, 0x89, 0x85, 0x39, 0x05, 0x00, 0x00}, hexBytes(buf))
	})
}

func TestArithmeticImmediate(t *testing.T) {
	t.Run("add AX, 1337", func(t *testing.T) {
		buf := asm.NewBuffer()
		AddIntToReg(buf, AX, 1337, false)
		require.Equal(t, []byte{0x48, 0x05, 0x39, 0x05, 0x00, 0x00}, hexBytes(buf))
	})
	t.Run("add CX, 1337", func(t *testing.T) {
		buf := asm.NewBuffer()
		AddIntToReg(buf, CX, 1337, false)
		require.Equal(t, []byte{0x48, 0x81, 0xC1, 0x39, 0x05, 0x00, 0x00}, hexBytes(buf))
	})
	t.Run("sub AX, 20000", func(t *testing.T) {
		buf := asm.NewBuffer()
		SubIntFromReg(buf, AX, 20000, false)
		require.Equal(t, []byte{0x48, 0x2D, 0x20, 0x4E, 0x00, 0x00}, hexBytes(buf))
	})
	t.Run("add CX, 5 (fits in byte)", func(t *testing.T) {
		buf := asm.NewBuffer()
		AddIntToReg(buf, CX, 5, false)
		require.Equal(t, []byte{0x48, 0x83, 0xC1, 0x05}, hexBytes(buf))
	})
}

func TestMultDiv(t *testing.T) {
	t.Run("imul BX,BX", func(t *testing.T) {
		buf := asm.NewBuffer()
		MultRegToReg(buf, BX, BX, false)
		require.Equal(t, []byte{0x48, 0x0F, 0xAF, 0xDB}, hexBytes(buf))
	})
	t.Run("idiv AX,BX", func(t *testing.T) {
		buf := asm.NewBuffer()
		DivRegFromReg(buf, AX, BX, false)
		require.Equal(t, []byte{0x48, 0xF7, 0xFB}, hexBytes(buf))
	})
	t.Run("idiv panics on non-AX dividend", func(t *testing.T) {
		require.Panics(t, func() {
			buf := asm.NewBuffer()
			DivRegFromReg(buf, CX, BX, false)
		})
	})
}

func TestCompare(t *testing.T) {
	buf := asm.NewBuffer()
	CompareRegToReg(buf, CX, CX, false)
	require.Equal(t, []byte{0x48, 0x39, 0xC9}, hexBytes(buf))
}

func TestFloatMemoryMoves(t *testing.T) {
	t.Run("movss xmm1, [rsp]", func(t *testing.T) {
		buf := asm.NewBuffer()
		MoveMemoryByRegToRegFloat(buf, XMM1, SP)
		require.Equal(t, []byte{0xF3, 0x0F, 0x10, 0x0C, 0x24}, hexBytes(buf))
	})
	t.Run("movss [rsp+1337], xmm2", func(t *testing.T) {
		buf := asm.NewBuffer()
		MoveRegToMemoryRegWithIntOffsetFloat(buf, SP, 1337, XMM2)
		require.Equal(t, []byte{0xF3, 0x0F, 0x11, 0x94, 0x24, 0x39, 0x05, 0x00, 0x00}, hexBytes(buf))
	})
}

func TestRetAndCalls(t *testing.T) {
	t.Run("ret", func(t *testing.T) {
		buf := asm.NewBuffer()
		Ret(buf)
		require.Equal(t, []byte{0xC3}, hexBytes(buf))
	})
	t.Run("call rel32 placeholder", func(t *testing.T) {
		buf := asm.NewBuffer()
		off := CallRel32(buf)
		require.Equal(t, 1, off)
		require.Equal(t, []byte{0xE8, 0, 0, 0, 0}, hexBytes(buf))
	})
	t.Run("call reg", func(t *testing.T) {
		buf := asm.NewBuffer()
		CallReg(buf, AX)
		require.Equal(t, []byte{0xFF, 0xD0}, hexBytes(buf))
	})
}

func TestBranchResolutionInvariant(t *testing.T) {
	buf := asm.NewBuffer()
	off := JumpIfRel32(buf, Equal, false)
	// Pretend the target is 100 bytes further along in the function.
	const fromNativeEnd = 6 // offset of disp (2) + 4 bytes of displacement
	a := NewAssembler(buf)
	a.PatchDisplacement(off, fromNativeEnd, 100)
	want := int32(100 - fromNativeEnd)
	got := int32(buf.Bytes()[off]) | int32(buf.Bytes()[off+1])<<8 | int32(buf.Bytes()[off+2])<<16 | int32(buf.Bytes()[off+3])<<24
	require.Equal(t, want, got)
}
