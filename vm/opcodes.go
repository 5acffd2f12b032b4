package vm

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction. An instruction is one
// opcode byte followed by zero or more 2-byte little-endian signed
// immediates; PutString instead carries a NUL-terminated UTF-8 run.
type Opcode byte

// Variable access
const (
	OpPushValueLocalVar    Opcode = 0x00 // push value at frame-relative offset
	OpPushValueMainVar     Opcode = 0x01 // push value at main-frame offset
	OpPushValueGlobalVar   Opcode = 0x02 // push value via (level, offset) pair
	OpPushAddressLocalVar  Opcode = 0x03 // push frame-relative address
	OpPushAddressMainVar   Opcode = 0x04 // push main-frame address
	OpPushAddressGlobalVar Opcode = 0x05 // push address via (level, offset) pair
	OpPushConstant         Opcode = 0x06 // push constant pool entry
	OpStoreValue           Opcode = 0x07 // pop value, pop address, store
)

// Terminal I/O
const (
	OpOutputValue Opcode = 0x08 // pop and print as decimal
	OpInputToAddr Opcode = 0x09 // pop address, read one line, store parsed integer
)

// Arithmetic
const (
	OpMinusify Opcode = 0x0A // negate top of stack
	OpIsOdd    Opcode = 0x0B // replace top of stack with its lowest bit
	OpAdd      Opcode = 0x0C
	OpSubtract Opcode = 0x0D
	OpMultiply Opcode = 0x0E
	OpDivide   Opcode = 0x0F
)

// Comparisons (pop two, push 0/1)
const (
	OpCompareEq    Opcode = 0x10
	OpCompareNotEq Opcode = 0x11
	OpCompareLT    Opcode = 0x12
	OpCompareGT    Opcode = 0x13
	OpCompareLTEq  Opcode = 0x14
	OpCompareGTEq  Opcode = 0x15
)

// Control flow
const (
	OpCallProc    Opcode = 0x16 // call procedure by id
	OpReturnProc  Opcode = 0x17 // return to caller, or halt from the entry procedure
	OpJump        Opcode = 0x18 // unconditional relative jump (signed)
	OpJumpIfFalse Opcode = 0x19 // pop, jump if zero (signed)
	OpEntryProc   Opcode = 0x1A // procedure prologue: (byte count, id, frame size)
)

// Extensions
const (
	OpPutString Opcode = 0x1B // latch inline NUL-terminated string literal
	OpPop       Opcode = 0x1C // discard top of stack
	OpSwap      Opcode = 0x1D // exchange top two stack words
	OpEndOfCode Opcode = 0x1E // halt normally
	OpPut       Opcode = 0x1F // write the latched string literal
	OpGet       Opcode = 0x20 // block for one line of input, discard it
	OpAddAddr   Opcode = 0x21 // pop offset, pop address, push their sum
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode. Immediates is the count of
// 2-byte operands following the opcode byte; Inline marks the one opcode
// whose operand is a NUL-terminated byte run instead.
type OpcodeInfo struct {
	Name       string
	Immediates int
	Inline     bool
}

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	OpPushValueLocalVar:    {Name: "PushValueLocalVar", Immediates: 1},
	OpPushValueMainVar:     {Name: "PushValueMainVar", Immediates: 1},
	OpPushValueGlobalVar:   {Name: "PushValueGlobalVar", Immediates: 2},
	OpPushAddressLocalVar:  {Name: "PushAddressLocalVar", Immediates: 1},
	OpPushAddressMainVar:   {Name: "PushAddressMainVar", Immediates: 1},
	OpPushAddressGlobalVar: {Name: "PushAddressGlobalVar", Immediates: 2},
	OpPushConstant:         {Name: "PushConstant", Immediates: 1},
	OpStoreValue:           {Name: "StoreValue"},
	OpOutputValue:          {Name: "OutputValue"},
	OpInputToAddr:          {Name: "InputToAddr"},
	OpMinusify:             {Name: "Minusify"},
	OpIsOdd:                {Name: "IsOdd"},
	OpAdd:                  {Name: "OpAdd"},
	OpSubtract:             {Name: "OpSubtract"},
	OpMultiply:             {Name: "OpMultiply"},
	OpDivide:               {Name: "OpDivide"},
	OpCompareEq:            {Name: "CompareEq"},
	OpCompareNotEq:         {Name: "CompareNotEq"},
	OpCompareLT:            {Name: "CompareLT"},
	OpCompareGT:            {Name: "CompareGT"},
	OpCompareLTEq:          {Name: "CompareLTEq"},
	OpCompareGTEq:          {Name: "CompareGTEq"},
	OpCallProc:             {Name: "CallProc", Immediates: 1},
	OpReturnProc:           {Name: "ReturnProc"},
	OpJump:                 {Name: "Jump", Immediates: 1},
	OpJumpIfFalse:          {Name: "JumpIfFalse", Immediates: 1},
	OpEntryProc:            {Name: "EntryProc", Immediates: 3},
	OpPutString:            {Name: "PutString", Inline: true},
	OpPop:                  {Name: "Pop"},
	OpSwap:                 {Name: "Swap"},
	OpEndOfCode:            {Name: "EndOfCode"},
	OpPut:                  {Name: "Put"},
	OpGet:                  {Name: "Get"},
	OpAddAddr:              {Name: "OpAddAddr"},
}

// Valid reports whether op is part of the instruction set.
func (op Opcode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// Name returns the mnemonic for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}
