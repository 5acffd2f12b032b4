package vm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"unicode/utf8"
)

// Header layout constants.
const (
	headerSize = 4 // procedure count (2 bytes) + architecture marker (2 bytes)
	immSize    = 2 // every immediate is a 2-byte little-endian signed integer
)

// ---------------------------------------------------------------------------
// Program: a loaded binary
// ---------------------------------------------------------------------------

// Program is a loaded PL/0 binary: the immutable byte buffer plus the
// decoded header. The code segment starts at byte 4 and runs up to the
// constant pool; the boundary between the two is derived by scanning, there
// is no explicit length field (see Scan).
type Program struct {
	data  []byte
	count int // declared procedure count
	width Width
}

// LoadProgram validates the header of data and selects the word width.
// The buffer is retained, not copied; callers must not mutate it.
func LoadProgram(data []byte) (*Program, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(data))
	}
	count := int(uint16(readImm(data, 0)))
	width, err := WidthForMarker(readImm(data, immSize))
	if err != nil {
		return nil, err
	}
	return &Program{data: data, count: count, width: width}, nil
}

// LoadProgramFile reads path and loads it as a program. Read failures
// propagate wrapped; they are never retried.
func LoadProgramFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading program: %w", err)
	}
	return LoadProgram(data)
}

// Width returns the configured word width.
func (p *Program) Width() Width {
	return p.width
}

// ProcedureCount returns the header's declared procedure count.
func (p *Program) ProcedureCount() int {
	return p.count
}

// Len returns the total buffer length in bytes.
func (p *Program) Len() int {
	return len(p.data)
}

// readImm decodes the 2-byte little-endian signed immediate at off. The
// caller has already bounds-checked.
func readImm(data []byte, off int) int16 {
	return int16(binary.LittleEndian.Uint16(data[off : off+immSize]))
}

// imm reads the immediate at off with bounds checking.
func (p *Program) imm(off int) (int16, error) {
	if off < 0 || off+immSize > len(p.data) {
		return 0, fmt.Errorf("%w: immediate at %04X", ErrTruncatedProgram, off)
	}
	return readImm(p.data, off), nil
}

// word reads a constant-pool word at off.
func (p *Program) word(off int) (Word, error) {
	if off < 0 || off+int(p.width) > len(p.data) {
		return Word{}, fmt.Errorf("%w: word at %04X", ErrTruncatedProgram, off)
	}
	return WordFromBytes(p.width, p.data[off:]), nil
}

// instructionLength returns the total encoded length of the instruction at
// off: the opcode byte plus its immediates, or the NUL-terminated run for
// PutString. Both boundary scans use this, so they agree on instruction
// sizes by construction.
func (p *Program) instructionLength(off int) (int, error) {
	op := Opcode(p.data[off])
	info, ok := opcodeTable[op]
	if !ok {
		return 0, fmt.Errorf("%w: %02X at offset %04X", ErrUnknownOpcode, byte(op), off)
	}
	if info.Inline {
		idx := bytes.IndexByte(p.data[off+1:], 0)
		if idx < 0 {
			return 0, fmt.Errorf("%w: unterminated string at %04X", ErrTruncatedProgram, off)
		}
		return 1 + idx + 1, nil
	}
	n := 1 + info.Immediates*immSize
	if off+n > len(p.data) {
		return 0, fmt.Errorf("%w: instruction at %04X", ErrTruncatedProgram, off)
	}
	return n, nil
}

// stringAt decodes the NUL-terminated UTF-8 payload starting at off.
func (p *Program) stringAt(off int) (string, error) {
	idx := bytes.IndexByte(p.data[off:], 0)
	if idx < 0 {
		return "", fmt.Errorf("%w: unterminated string at %04X", ErrTruncatedProgram, off)
	}
	raw := p.data[off : off+idx]
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: at offset %04X", ErrInvalidString, off)
	}
	return string(raw), nil
}
