package ir

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

type Opcode int

const (
	LIT Opcode = iota
	OPR
	LOD
	STO
	CAL
	RET
	INT
	JMP
	JMC
)

var opcodeNames = [...]string{"LIT", "OPR", "LOD", "STO", "CAL", "RET", "INT", "JMP", "JMC"}

func (o Opcode) String() string {
	if o >= 0 && int(o) < len(opcodeNames) {
		return opcodeNames[o]
	}
	return fmt.Sprintf("OP%d", int(o))
}

// IsCodeAddress reports whether the value operand of o is an instruction index.
func (o Opcode) IsCodeAddress() bool { return o == JMP || o == JMC || o == CAL }

// OprCode is the value operand of an OPR instruction.
type OprCode int

const (
	OprNeg OprCode = iota + 1
	OprAdd
	OprSub
	OprMul
	OprDiv
	OprMod
	OprOdd
	OprEq
	OprNe
	OprLt
	OprGe
	OprGt
	OprLe
)

var oprNames = [...]string{"", "neg", "add", "sub", "mul", "div", "mod", "odd", "eq", "ne", "lt", "ge", "gt", "le"}

func (o OprCode) String() string {
	if o > 0 && int(o) < len(oprNames) {
		return oprNames[o]
	}
	return fmt.Sprintf("opr%d", int(o))
}

// Marker is a placeholder for a code address not known yet. The zero Marker means none.
type Marker int64

func (m Marker) String() string { return fmt.Sprintf("@%d", int64(m)) }

// MarkerSource mints markers. One source is shared by every buffer of a compilation, so
// markers stay unique when functions are lowered concurrently.
type MarkerSource struct{ n atomic.Int64 }

func (s *MarkerSource) Mint() Marker { return Marker(s.n.Add(1)) }

// Minted returns how many markers have been handed out.
func (s *MarkerSource) Minted() int { return int(s.n.Load()) }

// Operand is the value field of an instruction: either a resolved integer or a pending marker.
type Operand struct {
	Value   int
	Pending Marker
}

func Imm(v int) Operand { return Operand{Value: v} }

func (o Operand) IsPending() bool { return o.Pending != 0 }

func (o Operand) String() string {
	if o.IsPending() {
		return o.Pending.String()
	}
	return fmt.Sprint(o.Value)
}

type Instruction struct {
	Op    Opcode
	Level int
	Arg   Operand
}

func (i Instruction) String() string { return fmt.Sprintf("%s %d %s", i.Op, i.Level, i.Arg) }

// Stats summarizes one compilation.
type Stats struct {
	Instructions int
	Functions    int
	Markers      int
	Nodes        int
}

// Program is the final, fully resolved instruction stream.
type Program struct {
	Instructions []Instruction
	Stats        Stats
}

// String renders the listing as "<index> <opcode> <level> <operand>" lines.
func (p *Program) String() string {
	var sb strings.Builder
	for i, in := range p.Instructions {
		fmt.Fprintf(&sb, "%d %s\n", i, in)
	}
	return sb.String()
}

// Checksum fingerprints the listing so two compilations can be compared cheaply.
func (p *Program) Checksum() uint64 { return xxhash.Sum64String(p.String()) }
