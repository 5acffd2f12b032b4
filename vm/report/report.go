// Package report renders a program analysis in machine-readable form. It is
// the structured counterpart of the textual disassembly: the same decoded
// instruction stream, procedure table and constant pool, serialized as
// canonical CBOR so downstream tooling can diff two builds of a program
// byte for byte.
package report

import (
	"github.com/AntonioAlbt/pl0vm/vm"
)

// Report is the full analysis of one program buffer.
type Report struct {
	ProcedureCount int           `cbor:"1,keyasint"`
	WordSize       int           `cbor:"2,keyasint"`
	Procedures     []Procedure   `cbor:"3,keyasint"`
	Instructions   []Instruction `cbor:"4,keyasint"`
	PoolStart      int           `cbor:"5,keyasint"`
	Constants      []int64       `cbor:"6,keyasint,omitempty"`
}

// Procedure is one procedure table entry.
type Procedure struct {
	ID        int `cbor:"1,keyasint"`
	Start     int `cbor:"2,keyasint"`
	FrameSize int `cbor:"3,keyasint"`
}

// Instruction is one decoded instruction.
type Instruction struct {
	Offset     int     `cbor:"1,keyasint"`
	Opcode     byte    `cbor:"2,keyasint"`
	Mnemonic   string  `cbor:"3,keyasint"`
	Immediates []int16 `cbor:"4,keyasint,omitempty"`
	Literal    string  `cbor:"5,keyasint,omitempty"`
}

// Build decodes the program and assembles its report. The decode and the
// procedure scan run independently and must agree on the pool boundary.
func Build(p *vm.Program) (*Report, error) {
	layout, err := p.Scan()
	if err != nil {
		return nil, err
	}
	insts, _, err := p.Decode()
	if err != nil {
		return nil, err
	}

	r := &Report{
		ProcedureCount: p.ProcedureCount(),
		WordSize:       int(p.Width()),
		PoolStart:      layout.PoolStart,
	}
	for _, proc := range layout.Procedures {
		r.Procedures = append(r.Procedures, Procedure{
			ID:        proc.ID,
			Start:     proc.Start,
			FrameSize: proc.FrameSize,
		})
	}
	for _, inst := range insts {
		r.Instructions = append(r.Instructions, Instruction{
			Offset:     inst.Offset,
			Opcode:     byte(inst.Op),
			Mnemonic:   inst.Op.Name(),
			Immediates: inst.Imms,
			Literal:    inst.Str,
		})
	}
	for _, c := range layout.Constants {
		r.Constants = append(r.Constants, c.Int64())
	}
	return r, nil
}
