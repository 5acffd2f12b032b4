package vm

import (
	"encoding/binary"
	"fmt"
)

// ---------------------------------------------------------------------------
// Word model
// ---------------------------------------------------------------------------

// Width is the operand word size in bytes, selected once per program by the
// architecture marker in the header. Every stack slot, constant and address
// uses this width for the lifetime of the program.
type Width int

const (
	Width16 Width = 2
	Width32 Width = 4
	Width64 Width = 8
)

// WidthForMarker maps the header's architecture marker to a word width.
// Any marker other than 2, 4 or 8 is a format error.
func WidthForMarker(marker int16) (Width, error) {
	switch marker {
	case 2:
		return Width16, nil
	case 4:
		return Width32, nil
	case 8:
		return Width64, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrBadArchMarker, marker)
}

// String implements the Stringer interface.
func (w Width) String() string {
	switch w {
	case Width16:
		return "16 bit"
	case Width32:
		return "32 bit"
	case Width64:
		return "64 bit"
	}
	return fmt.Sprintf("invalid width %d", int(w))
}

// Word is a signed integer of the program's configured width. The payload is
// kept truncated to that width at all times; arithmetic is done at int64
// precision and results go back through NewWord on their way to the stack,
// which gives the two's-complement wraparound of the narrower type.
type Word struct {
	width Width
	value int64
}

// NewWord truncates v to the given width. Truncation wraps, it never
// saturates.
func NewWord(w Width, v int64) Word {
	switch w {
	case Width16:
		v = int64(int16(v))
	case Width32:
		v = int64(int32(v))
	}
	return Word{width: w, value: v}
}

// Int64 widens the word to the common arithmetic type.
func (w Word) Int64() int64 {
	return w.value
}

// Width returns the word's width in bytes.
func (w Word) Width() Width {
	return w.width
}

// Bytes returns the little-endian encoding, exactly Width bytes long.
func (w Word) Bytes() []byte {
	buf := make([]byte, int(w.width))
	switch w.width {
	case Width16:
		binary.LittleEndian.PutUint16(buf, uint16(w.value))
	case Width32:
		binary.LittleEndian.PutUint32(buf, uint32(w.value))
	default:
		binary.LittleEndian.PutUint64(buf, uint64(w.value))
	}
	return buf
}

// WordFromBytes decodes a little-endian word of the given width from the
// start of b. b must hold at least Width bytes.
func WordFromBytes(w Width, b []byte) Word {
	switch w {
	case Width16:
		return NewWord(w, int64(int16(binary.LittleEndian.Uint16(b))))
	case Width32:
		return NewWord(w, int64(int32(binary.LittleEndian.Uint32(b))))
	default:
		return NewWord(w, int64(binary.LittleEndian.Uint64(b)))
	}
}
