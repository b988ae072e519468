package ir

import (
	"errors"
	"fmt"
	"slices"
)

var ErrUnresolvedPatchMarker = errors.New("unresolved patch marker")

// UnresolvedPatchMarkerError means a construct finished lowering with a branch still open.
// It always indicates a generator bug.
type UnresolvedPatchMarkerError struct {
	Marker    Marker
	Construct string
	Sites     []int
}

func (e *UnresolvedPatchMarkerError) Error() string {
	if e.Construct == "" {
		return fmt.Sprintf("patch marker %s unresolved at instructions %v", e.Marker, e.Sites)
	}
	return fmt.Sprintf("patch marker %s unresolved after lowering %s (instructions %v)", e.Marker, e.Construct, e.Sites)
}

func (e *UnresolvedPatchMarkerError) Is(target error) bool { return target == ErrUnresolvedPatchMarker }

// Buffer is an append-only instruction sequence with a side table of pending branch sites.
type Buffer struct {
	instrs []Instruction
	sites  map[Marker][]int
}

func NewBuffer() *Buffer { return &Buffer{sites: make(map[Marker][]int)} }

// Len is the index the next emitted instruction will get.
func (b *Buffer) Len() int { return len(b.instrs) }

// Emit appends an instruction with a resolved operand and returns its index.
func (b *Buffer) Emit(op Opcode, level, value int) int {
	b.instrs = append(b.instrs, Instruction{Op: op, Level: level, Arg: Imm(value)})
	return len(b.instrs) - 1
}

// EmitPending appends an instruction whose operand is filled in by a later Patch.
func (b *Buffer) EmitPending(op Opcode, level int, m Marker) int {
	idx := len(b.instrs)
	b.instrs = append(b.instrs, Instruction{Op: op, Level: level, Arg: Operand{Pending: m}})
	b.sites[m] = append(b.sites[m], idx)
	return idx
}

// Patch resolves every site waiting on m to target and reports how many it rewrote.
func (b *Buffer) Patch(m Marker, target int) int {
	sites := b.sites[m]
	for _, idx := range sites {
		b.instrs[idx].Arg = Imm(target)
	}
	delete(b.sites, m)
	return len(sites)
}

// IsPending reports whether any instruction still waits on m.
func (b *Buffer) IsPending(m Marker) bool { return len(b.sites[m]) > 0 }

// Sites returns the instruction indices still waiting on m.
func (b *Buffer) Sites(m Marker) []int { return slices.Clone(b.sites[m]) }

// Pending lists the open markers in ascending order.
func (b *Buffer) Pending() []Marker {
	out := make([]Marker, 0, len(b.sites))
	for m := range b.sites {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

// Splice appends other at the end of b. Resolved code addresses in other are relative to
// its own start, so they are shifted by the splice base; its pending sites move with it.
// It returns the base.
func (b *Buffer) Splice(other *Buffer) int {
	base := len(b.instrs)
	for _, in := range other.instrs {
		if in.Op.IsCodeAddress() && !in.Arg.IsPending() {
			in.Arg.Value += base
		}
		b.instrs = append(b.instrs, in)
	}
	for m, sites := range other.sites {
		for _, idx := range sites {
			b.sites[m] = append(b.sites[m], idx+base)
		}
	}
	return base
}

// Instructions returns the finished stream, or an error if any marker is still open.
func (b *Buffer) Instructions() ([]Instruction, error) {
	if pending := b.Pending(); len(pending) > 0 {
		m := pending[0]
		return nil, &UnresolvedPatchMarkerError{Marker: m, Sites: b.Sites(m)}
	}
	return slices.Clone(b.instrs), nil
}
