package vm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("pl0vm.interp")

// Number of linkage words pushed below every frame: static link, dynamic
// link, return address.
const linkWords = 3

// ---------------------------------------------------------------------------
// Interp: the stack machine
// ---------------------------------------------------------------------------

// Interp executes a loaded program against a single growable byte stack that
// holds both operands and activation frames. The program buffer, procedure
// table and constant pool are read-only for the interpreter's lifetime; the
// stack, frame pointer and program counter are owned exclusively by Run.
type Interp struct {
	prog   *Program
	layout *Layout

	stack []byte
	fp    int // byte offset of the current frame's base
	pc    int

	pending    string // latched PutString literal, consumed by Put
	hasPending bool

	in  *bufio.Reader
	out io.Writer

	counts [256]uint64 // executed instructions per opcode
}

// NewInterp wires an interpreter to its input and output collaborators.
// Input is read one line at a time and only when InputToAddr or Get blocks
// for it.
func NewInterp(prog *Program, layout *Layout, in io.Reader, out io.Writer) *Interp {
	return &Interp{
		prog:   prog,
		layout: layout,
		in:     bufio.NewReader(in),
		out:    out,
	}
}

// OpcodeCounts returns how many times each opcode was executed so far.
func (i *Interp) OpcodeCounts() map[Opcode]uint64 {
	out := make(map[Opcode]uint64)
	for op, n := range i.counts {
		if n > 0 {
			out[Opcode(op)] = n
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Stack access
// ---------------------------------------------------------------------------

func (i *Interp) push(w Word) {
	i.stack = append(i.stack, w.Bytes()...)
}

func (i *Interp) pop() (Word, error) {
	size := int(i.prog.width)
	if len(i.stack) < size {
		return Word{}, ErrStackUnderflow
	}
	w := WordFromBytes(i.prog.width, i.stack[len(i.stack)-size:])
	i.stack = i.stack[:len(i.stack)-size]
	return w, nil
}

// pop2 pops the right operand first, then the left: the second-pushed value
// ends up on the right-hand side of non-commutative operations.
func (i *Interp) pop2() (left, right Word, err error) {
	if right, err = i.pop(); err != nil {
		return
	}
	left, err = i.pop()
	return
}

// wordAt reads the word stored at a byte address on the stack.
func (i *Interp) wordAt(addr int) (Word, error) {
	size := int(i.prog.width)
	if addr < 0 || addr+size > len(i.stack) {
		return Word{}, fmt.Errorf("%w: read at %d, stack size %d", ErrBadAddress, addr, len(i.stack))
	}
	return WordFromBytes(i.prog.width, i.stack[addr:]), nil
}

// storeAt writes a word at a byte address, growing the stack with zero fill
// when the address lies past the current top.
func (i *Interp) storeAt(addr int, w Word) error {
	size := int(i.prog.width)
	if addr < 0 {
		return fmt.Errorf("%w: store at %d", ErrBadAddress, addr)
	}
	if addr+size > len(i.stack) {
		i.stack = append(i.stack, make([]byte, addr+size-len(i.stack))...)
	}
	copy(i.stack[addr:], w.Bytes())
	return nil
}

// enclosingFrame walks level static links up from the current frame and
// returns the frame base it lands on. Walking past the main frame is fatal.
func (i *Interp) enclosingFrame(level int) (int, error) {
	base := i.fp
	size := int(i.prog.width)
	for ; level > 0; level-- {
		if base == 0 {
			return 0, fmt.Errorf("%w: %d levels left at the main frame", ErrBadLevel, level)
		}
		link, err := i.wordAt(base - linkWords*size)
		if err != nil {
			return 0, err
		}
		base = int(link.Int64())
	}
	return base, nil
}

// ---------------------------------------------------------------------------
// Fetch helpers
// ---------------------------------------------------------------------------

// fetchImm reads the next 2-byte immediate and advances the program counter
// past it.
func (i *Interp) fetchImm() (int16, error) {
	imm, err := i.prog.imm(i.pc)
	if err != nil {
		return 0, err
	}
	i.pc += immSize
	return imm, nil
}

func (i *Interp) readLine() (string, error) {
	line, err := i.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("input failed: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

// Run executes the program from procedure 0 to completion. It returns nil
// when the program halts normally and the fatal error otherwise; there is no
// recoverable-instruction-fault policy.
func (i *Interp) Run() error {
	if len(i.layout.Procedures) == 0 {
		return fmt.Errorf("%w: program declares no procedures", ErrBadProcedureID)
	}
	entry := i.layout.Procedures[0]

	// The entry procedure has no caller and therefore no linkage record;
	// its frame occupies the bottom of the stack.
	i.stack = make([]byte, entry.FrameSize)
	i.fp = 0
	i.pc = entry.Start

	for {
		if i.pc < 0 || i.pc >= len(i.prog.data) {
			return fmt.Errorf("%w: program counter %04X", ErrTruncatedProgram, i.pc)
		}
		opOffset := i.pc
		op := Opcode(i.prog.data[i.pc])
		if !op.Valid() {
			return fmt.Errorf("%w: %02X at offset %04X", ErrUnknownOpcode, byte(op), opOffset-headerSize)
		}
		log.Debugf("%04X: %s", opOffset-headerSize, op)
		i.counts[op]++
		i.pc++

		halt, err := i.step(op)
		if err != nil {
			return fmt.Errorf("at offset %04X: %w", opOffset-headerSize, err)
		}
		if halt {
			return nil
		}
	}
}

// step executes one already-fetched opcode. The program counter sits just
// past the opcode byte on entry and past the whole instruction on exit.
func (i *Interp) step(op Opcode) (halt bool, err error) {
	switch op {
	case OpEntryProc:
		// Only meaningful to the table builder and CallProc; in
		// straight-line flow it skips its own immediates.
		i.pc += 3 * immSize

	case OpPushConstant:
		imm, err := i.fetchImm()
		if err != nil {
			return false, err
		}
		idx := int(imm)
		if idx < 0 || idx >= len(i.layout.Constants) {
			return false, fmt.Errorf("%w: %d of %d", ErrBadConstant, idx, len(i.layout.Constants))
		}
		i.push(i.layout.Constants[idx])

	case OpPushValueLocalVar, OpPushValueMainVar, OpPushAddressLocalVar, OpPushAddressMainVar:
		imm, err := i.fetchImm()
		if err != nil {
			return false, err
		}
		base := i.fp
		if op == OpPushValueMainVar || op == OpPushAddressMainVar {
			base = 0
		}
		addr := base + int(imm)
		if op == OpPushAddressLocalVar || op == OpPushAddressMainVar {
			i.push(NewWord(i.prog.width, int64(addr)))
			break
		}
		w, err := i.wordAt(addr)
		if err != nil {
			return false, err
		}
		i.push(w)

	case OpPushValueGlobalVar, OpPushAddressGlobalVar:
		level, err := i.fetchImm()
		if err != nil {
			return false, err
		}
		off, err := i.fetchImm()
		if err != nil {
			return false, err
		}
		base, err := i.enclosingFrame(int(level))
		if err != nil {
			return false, err
		}
		addr := base + int(off)
		if op == OpPushAddressGlobalVar {
			i.push(NewWord(i.prog.width, int64(addr)))
			break
		}
		w, err := i.wordAt(addr)
		if err != nil {
			return false, err
		}
		i.push(w)

	case OpStoreValue:
		val, err := i.pop()
		if err != nil {
			return false, err
		}
		addr, err := i.pop()
		if err != nil {
			return false, err
		}
		if err := i.storeAt(int(addr.Int64()), val); err != nil {
			return false, err
		}

	case OpOutputValue:
		w, err := i.pop()
		if err != nil {
			return false, err
		}
		fmt.Fprintln(i.out, w.Int64())

	case OpInputToAddr:
		addr, err := i.pop()
		if err != nil {
			return false, err
		}
		line, err := i.readLine()
		if err != nil {
			return false, err
		}
		n, perr := strconv.ParseInt(line, 10, 64)
		if perr != nil {
			return false, fmt.Errorf("%w: %q", ErrInputRequired, line)
		}
		if err := i.storeAt(int(addr.Int64()), NewWord(i.prog.width, n)); err != nil {
			return false, err
		}

	case OpMinusify:
		w, err := i.pop()
		if err != nil {
			return false, err
		}
		i.push(NewWord(i.prog.width, -w.Int64()))

	case OpIsOdd:
		w, err := i.pop()
		if err != nil {
			return false, err
		}
		i.push(NewWord(i.prog.width, w.Int64()&1))

	case OpAdd, OpSubtract, OpMultiply, OpDivide:
		l, r, err := i.pop2()
		if err != nil {
			return false, err
		}
		var v int64
		switch op {
		case OpAdd:
			v = l.Int64() + r.Int64()
		case OpSubtract:
			v = l.Int64() - r.Int64()
		case OpMultiply:
			v = l.Int64() * r.Int64()
		default:
			if r.Int64() == 0 {
				return false, ErrDivideByZero
			}
			v = l.Int64() / r.Int64()
		}
		i.push(NewWord(i.prog.width, v))

	case OpCompareEq, OpCompareNotEq, OpCompareLT, OpCompareGT, OpCompareLTEq, OpCompareGTEq:
		l, r, err := i.pop2()
		if err != nil {
			return false, err
		}
		var res bool
		switch op {
		case OpCompareEq:
			res = l.Int64() == r.Int64()
		case OpCompareNotEq:
			res = l.Int64() != r.Int64()
		case OpCompareLT:
			res = l.Int64() < r.Int64()
		case OpCompareGT:
			res = l.Int64() > r.Int64()
		case OpCompareLTEq:
			res = l.Int64() <= r.Int64()
		default:
			res = l.Int64() >= r.Int64()
		}
		v := int64(0)
		if res {
			v = 1
		}
		i.push(NewWord(i.prog.width, v))

	case OpCallProc:
		imm, err := i.fetchImm()
		if err != nil {
			return false, err
		}
		if err := i.call(int(imm)); err != nil {
			return false, err
		}

	case OpReturnProc:
		if i.fp == 0 {
			return true, nil
		}
		if err := i.ret(); err != nil {
			return false, err
		}

	case OpJump:
		off, err := i.fetchImm()
		if err != nil {
			return false, err
		}
		i.pc += int(off)

	case OpJumpIfFalse:
		off, err := i.fetchImm()
		if err != nil {
			return false, err
		}
		w, err := i.pop()
		if err != nil {
			return false, err
		}
		if w.Int64() == 0 {
			i.pc += int(off)
		}

	case OpPutString:
		s, err := i.prog.stringAt(i.pc)
		if err != nil {
			return false, err
		}
		i.pending = s
		i.hasPending = true
		i.pc += len(s) + 1

	case OpPut:
		if !i.hasPending {
			return false, ErrNoString
		}
		io.WriteString(i.out, i.pending)
		i.pending = ""
		i.hasPending = false

	case OpGet:
		// Interactive pause: block for one line and discard it.
		if _, err := i.readLine(); err != nil {
			return false, err
		}

	case OpPop:
		if _, err := i.pop(); err != nil {
			return false, err
		}

	case OpSwap:
		a, b, err := i.pop2()
		if err != nil {
			return false, err
		}
		i.push(b)
		i.push(a)

	case OpAddAddr:
		addr, off, err := i.pop2()
		if err != nil {
			return false, err
		}
		i.push(NewWord(i.prog.width, addr.Int64()+off.Int64()))

	case OpEndOfCode:
		return true, nil
	}
	return false, nil
}

// call pushes the linkage record (static link, dynamic link, return
// address), allocates the callee's zero-initialized frame above it and
// enters the callee at its EntryProc.
func (i *Interp) call(id int) error {
	if id < 0 || id >= len(i.layout.Procedures) {
		return fmt.Errorf("%w: %d of %d", ErrBadProcedureID, id, len(i.layout.Procedures))
	}
	callee := i.layout.Procedures[id]

	// The static link equals the dynamic link here: a procedure is only
	// callable from its lexical parent or a sibling at the same depth, so
	// the caller's frame is the callee's enclosing frame.
	i.push(NewWord(i.prog.width, int64(i.fp))) // static link
	i.push(NewWord(i.prog.width, int64(i.fp))) // dynamic link
	i.push(NewWord(i.prog.width, int64(i.pc))) // return address

	i.fp = len(i.stack)
	i.stack = append(i.stack, make([]byte, callee.FrameSize)...)
	i.pc = callee.Start
	return nil
}

// ret discards the current frame together with its linkage record and
// resumes the caller.
func (i *Interp) ret() error {
	size := int(i.prog.width)
	base := i.fp - linkWords*size
	if base < 0 {
		return fmt.Errorf("%w: frame base %d", ErrBadAddress, i.fp)
	}
	dyn, err := i.wordAt(base + size)
	if err != nil {
		return err
	}
	retAddr, err := i.wordAt(base + 2*size)
	if err != nil {
		return err
	}
	i.stack = i.stack[:base]
	i.fp = int(dyn.Int64())
	i.pc = int(retAddr.Int64())
	return nil
}
