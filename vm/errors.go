package vm

import "errors"

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

// Format errors: the buffer does not encode a well-formed program. All of
// these are fatal; a corrupted stream indicates a toolchain defect upstream,
// not a recoverable runtime condition.
var (
	ErrShortHeader      = errors.New("program shorter than the 4-byte header")
	ErrBadArchMarker    = errors.New("invalid architecture marker")
	ErrUnknownOpcode    = errors.New("unknown opcode")
	ErrTruncatedProgram = errors.New("unexpected end of program")
	ErrBadProcedureID   = errors.New("procedure id out of range")
	ErrDuplicateProc    = errors.New("duplicate procedure id")
	ErrMissingProcs     = errors.New("code segment ended before all declared procedures were seen")
	ErrRaggedPool       = errors.New("constant pool size is not a multiple of the word size")
	ErrBadFrameSize     = errors.New("negative procedure frame size")
	ErrInvalidString    = errors.New("string literal is not valid UTF-8")
)

// Runtime errors raised by the interpreter.
var (
	ErrBadAddress     = errors.New("address out of range")
	ErrStackUnderflow = errors.New("stack underflow")
	ErrBadConstant    = errors.New("constant index out of range")
	ErrDivideByZero   = errors.New("division by zero")
	ErrBadLevel       = errors.New("lexical level walks past the main frame")
	ErrInputRequired  = errors.New("number input required")
	ErrNoString       = errors.New("no pending string literal")
)
