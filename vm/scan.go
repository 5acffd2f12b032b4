package vm

import "fmt"

// ---------------------------------------------------------------------------
// Procedure table builder
// ---------------------------------------------------------------------------

// Procedure is one entry of the procedure table.
type Procedure struct {
	ID        int // dense, 0-based; procedure 0 is the entry procedure
	Start     int // offset of the EntryProc opcode byte
	FrameSize int // declared local-variable space in bytes
}

// Layout describes the structure of the code+data segment: the procedure
// table and the constant pool that follows the code. Built once before
// execution, immutable thereafter.
type Layout struct {
	Procedures []Procedure
	PoolStart  int // first byte of the constant pool
	Constants  []Word
}

// Scan walks the code segment once, records every procedure entry and
// derives the constant-pool boundary.
//
// The walk keeps two counters as ordinary loop state: the bytes remaining
// in the current procedure and the procedures still unseen. An EntryProc
// met with a drained byte counter opens the next procedure; its first
// immediate is the procedure's total encoded length counted from the
// EntryProc byte itself, so every consumed instruction (EntryProc included)
// is subtracted. The walk terminates when both counters are spent; the
// terminating offset is where the constant pool starts.
func (p *Program) Scan() (*Layout, error) {
	procs := make([]Procedure, p.count)
	seen := make([]bool, p.count)

	remaining := p.count
	remBytes := 0
	pc := headerSize
	for {
		if pc >= len(p.data) {
			return nil, fmt.Errorf("%w: scan reached %04X with %d procedures unseen",
				ErrMissingProcs, pc, remaining)
		}
		if remBytes == 0 && Opcode(p.data[pc]) == OpEntryProc {
			total, err := p.imm(pc + 1)
			if err != nil {
				return nil, err
			}
			id, err := p.imm(pc + 1 + immSize)
			if err != nil {
				return nil, err
			}
			frame, err := p.imm(pc + 1 + 2*immSize)
			if err != nil {
				return nil, err
			}
			if int(id) < 0 || int(id) >= p.count {
				return nil, fmt.Errorf("%w: %d at offset %04X (declared count %d)",
					ErrBadProcedureID, id, pc, p.count)
			}
			if seen[id] {
				return nil, fmt.Errorf("%w: %d at offset %04X", ErrDuplicateProc, id, pc)
			}
			if frame < 0 {
				return nil, fmt.Errorf("%w: %d at offset %04X", ErrBadFrameSize, frame, pc)
			}
			seen[id] = true
			procs[id] = Procedure{ID: int(id), Start: pc, FrameSize: int(frame)}
			remBytes = int(total)
			remaining--
		}
		n, err := p.instructionLength(pc)
		if err != nil {
			return nil, err
		}
		remBytes -= n
		pc += n

		if remBytes <= 0 && remaining == 0 {
			break
		}
	}

	constants, err := p.constantsAt(pc)
	if err != nil {
		return nil, err
	}
	return &Layout{Procedures: procs, PoolStart: pc, Constants: constants}, nil
}

// constantsAt decodes the constant pool starting at the given boundary. The
// element count is derived from the remaining byte count; there is no
// explicit length field.
func (p *Program) constantsAt(boundary int) ([]Word, error) {
	size := int(p.width)
	rest := len(p.data) - boundary
	if rest < 0 {
		return nil, fmt.Errorf("%w: pool boundary %04X past end", ErrTruncatedProgram, boundary)
	}
	if rest%size != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes, word size %d", ErrRaggedPool, rest, size)
	}
	constants := make([]Word, rest/size)
	for i := range constants {
		w, err := p.word(boundary + i*size)
		if err != nil {
			return nil, err
		}
		constants[i] = w
	}
	return constants, nil
}
