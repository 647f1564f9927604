// Package asm holds the one piece of the instruction encoder that is not
// specific to any one instruction set: Buffer, the growable byte buffer
// instruction encoders append to. The amd64 subpackage is the only concrete
// encoder implemented by this module (§1 Non-goals: no cross-architecture
// emission).
package asm

import "encoding/binary"

// Buffer is the per-function scratch byte vector that C1's encoding
// functions append to. It backs vm.ManagedFunction.GeneratedCode while a
// function is being compiled; once compilation finishes, the JIT controller
// copies its bytes into an executable CodePage (internal/platform) and the
// Buffer is discarded.
type Buffer struct {
	b []byte
}

// NewBuffer returns an empty Buffer ready for use.
func NewBuffer() *Buffer { return &Buffer{} }

// Len returns the number of bytes written so far.
func (buf *Buffer) Len() int { return len(buf.b) }

// Bytes returns the underlying slice. It is invalidated by the next write.
func (buf *Buffer) Bytes() []byte { return buf.b }

// WriteByte appends a single byte.
func (buf *Buffer) WriteByte(b byte) { buf.b = append(buf.b, b) }

// Write appends raw bytes.
func (buf *Buffer) Write(p []byte) { buf.b = append(buf.b, p...) }

// WriteUint32LE appends a little-endian uint32.
func (buf *Buffer) WriteUint32LE(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.b = append(buf.b, tmp[:]...)
}

// WriteInt32LE appends a little-endian, two's-complement int32. Used for
// 32-bit immediates and 4-byte relative branch/call displacements.
func (buf *Buffer) WriteInt32LE(v int32) {
	buf.WriteUint32LE(uint32(v))
}

// WriteUint64LE appends a little-endian uint64. Used for 64-bit immediate
// loads (moveLongToReg) and absolute addresses.
func (buf *Buffer) WriteUint64LE(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	buf.b = append(buf.b, tmp[:]...)
}

// PatchInt32LE overwrites the 4 bytes at offset with a little-endian int32.
// Used by branch and call-site resolution (§4.7 "resolveSymbols").
func (buf *Buffer) PatchInt32LE(offset int, v int32) {
	binary.LittleEndian.PutUint32(buf.b[offset:offset+4], uint32(v))
}

// PatchUint64LE overwrites the 8 bytes at offset with a little-endian
// uint64. Used to patch absolute call targets.
func (buf *Buffer) PatchUint64LE(offset int, v uint64) {
	binary.LittleEndian.PutUint64(buf.b[offset:offset+8], v)
}
