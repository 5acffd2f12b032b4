package vm

import "encoding/binary"

// ---------------------------------------------------------------------------
// ProgramBuilder: helper for constructing program images
// ---------------------------------------------------------------------------

// ProgramBuilder constructs a complete program buffer: header, code segment
// and trailing constant pool. Procedure byte counts are back-patched when a
// procedure is closed, so callers never compute encoded lengths by hand.
type ProgramBuilder struct {
	width Width
	bytes []byte
	pool  []int64
	open  []int // offsets of EntryProc opcodes awaiting their byte count
}

// NewProgramBuilder starts a buffer for the given procedure count and word
// width. The header is emitted immediately.
func NewProgramBuilder(width Width, procCount int) *ProgramBuilder {
	b := &ProgramBuilder{width: width, bytes: make([]byte, 0, 64)}
	b.emitImm(int16(procCount))
	b.emitImm(int16(width))
	return b
}

func (b *ProgramBuilder) emitImm(v int16) {
	var buf [immSize]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(v))
	b.bytes = append(b.bytes, buf[:]...)
}

// Emit appends an opcode with its 2-byte immediates.
func (b *ProgramBuilder) Emit(op Opcode, imms ...int16) *ProgramBuilder {
	b.bytes = append(b.bytes, byte(op))
	for _, imm := range imms {
		b.emitImm(imm)
	}
	return b
}

// EmitString appends a PutString instruction with its NUL-terminated
// payload.
func (b *ProgramBuilder) EmitString(s string) *ProgramBuilder {
	b.bytes = append(b.bytes, byte(OpPutString))
	b.bytes = append(b.bytes, s...)
	b.bytes = append(b.bytes, 0)
	return b
}

// BeginProc opens a procedure: emits its EntryProc with a placeholder byte
// count that EndProc patches.
func (b *ProgramBuilder) BeginProc(id, frameSize int16) *ProgramBuilder {
	b.open = append(b.open, len(b.bytes))
	b.Emit(OpEntryProc, 0, id, frameSize)
	return b
}

// EndProc closes the most recently opened procedure, patching its EntryProc
// byte count with the procedure's total encoded length (the EntryProc
// instruction included).
func (b *ProgramBuilder) EndProc() *ProgramBuilder {
	if len(b.open) == 0 {
		panic("EndProc without BeginProc")
	}
	at := b.open[len(b.open)-1]
	b.open = b.open[:len(b.open)-1]
	total := len(b.bytes) - at
	binary.LittleEndian.PutUint16(b.bytes[at+1:], uint16(total))
	return b
}

// Constant appends a word to the constant pool and returns its index.
func (b *ProgramBuilder) Constant(v int64) int16 {
	b.pool = append(b.pool, v)
	return int16(len(b.pool) - 1)
}

// Here returns the offset one past the last emitted byte, for computing
// branch offsets by hand.
func (b *ProgramBuilder) Here() int {
	return len(b.bytes)
}

// Bytes returns the finished buffer: everything emitted so far plus the
// constant pool serialized at the configured width.
func (b *ProgramBuilder) Bytes() []byte {
	if len(b.open) != 0 {
		panic("unclosed procedure")
	}
	out := make([]byte, len(b.bytes), len(b.bytes)+len(b.pool)*int(b.width))
	copy(out, b.bytes)
	for _, v := range b.pool {
		out = append(out, NewWord(b.width, v).Bytes()...)
	}
	return out
}
