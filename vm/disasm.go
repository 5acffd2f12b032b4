package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Disassembler / analyzer
// ---------------------------------------------------------------------------

// Instruction is one decoded instruction of the code segment.
type Instruction struct {
	Offset int     // offset of the opcode byte within the buffer
	Op     Opcode
	Imms   []int16 // decoded 2-byte immediates, in encoding order
	Str    string  // PutString payload
}

// Decode walks the code segment and returns every instruction plus the
// constant-pool boundary. It runs the same remaining-byte bookkeeping as
// Scan but keeps nothing except the decoded stream; the two walks must
// arrive at the identical boundary for the format to be consistent.
func (p *Program) Decode() ([]Instruction, int, error) {
	var out []Instruction

	remaining := p.count
	remBytes := 0
	pc := headerSize
	for {
		if pc >= len(p.data) {
			return nil, 0, fmt.Errorf("%w: decode reached %04X with %d procedures unseen",
				ErrMissingProcs, pc, remaining)
		}
		op := Opcode(p.data[pc])
		n, err := p.instructionLength(pc)
		if err != nil {
			return nil, 0, err
		}

		inst := Instruction{Offset: pc, Op: op}
		info := op.Info()
		if info.Inline {
			s, err := p.stringAt(pc + 1)
			if err != nil {
				return nil, 0, err
			}
			inst.Str = s
		} else {
			for k := 0; k < info.Immediates; k++ {
				imm, err := p.imm(pc + 1 + k*immSize)
				if err != nil {
					return nil, 0, err
				}
				inst.Imms = append(inst.Imms, imm)
			}
		}
		out = append(out, inst)

		if remBytes == 0 && op == OpEntryProc {
			remBytes = int(inst.Imms[0])
			remaining--
		}
		remBytes -= n
		pc += n

		if remBytes <= 0 && remaining == 0 {
			break
		}
	}
	return out, pc, nil
}

// Disassemble renders a human-readable trace of the whole program: a header
// summary, one line per instruction, then every constant pool entry. It
// never executes anything and never mutates interpreter state.
func (p *Program) Disassemble() (string, error) {
	insts, boundary, err := p.Decode()
	if err != nil {
		return "", err
	}
	constants, err := p.constantsAt(boundary)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Procedure count: %d\n", p.count)
	fmt.Fprintf(&sb, "Arch: %s\n", p.width)

	for _, inst := range insts {
		writeInstruction(&sb, inst)
		sb.WriteByte('\n')
	}

	// Pool entries render the raw bit pattern at the configured width next
	// to the signed decimal value.
	hexDigits := int(p.width) * 2
	mask := uint64(1)<<(uint(p.width)*8) - 1
	for i, c := range constants {
		fmt.Fprintf(&sb, "Constant %04d: 0x%0*X = %d\n",
			i, hexDigits, uint64(c.Int64())&mask, c.Int64())
	}
	return sb.String(), nil
}

// writeInstruction renders one instruction line: offset relative to the
// header, opcode byte, mnemonic, then immediates in hex. Branch offsets are
// rendered with an explicit sign and magnitude.
func writeInstruction(sb *strings.Builder, inst Instruction) {
	fmt.Fprintf(sb, "%04X: %02X %-20s ", inst.Offset-headerSize, byte(inst.Op), inst.Op)
	switch inst.Op {
	case OpJump, OpJumpIfFalse:
		off := inst.Imms[0]
		sign := ""
		mag := int32(off)
		if off < 0 {
			sign = "-"
			mag = -mag
		}
		fmt.Fprintf(sb, "%s%04X", sign, mag)
	case OpPutString:
		fmt.Fprintf(sb, "%q", inst.Str)
	default:
		for k, imm := range inst.Imms {
			if k > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "%04X", uint16(imm))
		}
		if inst.Op == OpEntryProc {
			sb.WriteString(" <<< Procedure start")
		}
	}
}
