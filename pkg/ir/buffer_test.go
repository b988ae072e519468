package ir

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEmitAndPatch(t *testing.T) {
	var ms MarkerSource
	b := NewBuffer()
	exit := ms.Mint()

	if i := b.Emit(LIT, 0, 1); i != 0 {
		t.Fatalf("first index = %d", i)
	}
	j := b.EmitPending(JMC, 0, exit)
	b.Emit(LIT, 0, 2)
	b.EmitPending(JMP, 0, exit)

	if !b.IsPending(exit) {
		t.Fatal("marker should be pending")
	}
	if diff := cmp.Diff([]int{1, 3}, b.Sites(exit)); diff != "" {
		t.Errorf("sites mismatch (-want +got):\n%s", diff)
	}
	if n := b.Patch(exit, b.Len()); n != 2 {
		t.Errorf("patched %d sites, want 2", n)
	}
	if b.IsPending(exit) {
		t.Error("marker still pending after patch")
	}
	if got := b.instrs[j]; got.Arg != Imm(4) {
		t.Errorf("JMC operand = %v, want 4", got.Arg)
	}

	instrs, err := b.Instructions()
	if err != nil {
		t.Fatal(err)
	}
	if len(instrs) != 4 {
		t.Errorf("len = %d, want 4", len(instrs))
	}
}

func TestUnresolvedMarker(t *testing.T) {
	var ms MarkerSource
	b := NewBuffer()
	m := ms.Mint()
	b.EmitPending(JMP, 0, m)

	_, err := b.Instructions()
	if !errors.Is(err, ErrUnresolvedPatchMarker) {
		t.Fatalf("err = %v, want unresolved marker", err)
	}
	var ue *UnresolvedPatchMarkerError
	if !errors.As(err, &ue) || ue.Marker != m || len(ue.Sites) != 1 {
		t.Errorf("err = %#v", err)
	}
}

func TestSpliceRelocates(t *testing.T) {
	var ms MarkerSource
	call := ms.Mint()

	head := NewBuffer()
	head.Emit(LIT, 0, 7)
	head.Emit(JMP, 0, 1)

	tail := NewBuffer()
	tail.Emit(JMP, 0, 2) // relative to tail
	tail.Emit(LIT, 0, 2) // not an address
	tail.EmitPending(CAL, 1, call)

	if base := head.Splice(tail); base != 2 {
		t.Fatalf("base = %d, want 2", base)
	}
	if got := head.instrs[2].Arg.Value; got != 4 {
		t.Errorf("relocated JMP = %d, want 4", got)
	}
	if got := head.instrs[3].Arg.Value; got != 2 {
		t.Errorf("LIT operand changed to %d", got)
	}
	if diff := cmp.Diff([]int{4}, head.Sites(call)); diff != "" {
		t.Errorf("pending site mismatch (-want +got):\n%s", diff)
	}
	head.Patch(call, 1)
	if got := head.instrs[4]; got.Op != CAL || got.Level != 1 || got.Arg.Value != 1 {
		t.Errorf("CAL = %s", got)
	}
}

func TestPendingSorted(t *testing.T) {
	var ms MarkerSource
	a, b := ms.Mint(), ms.Mint()
	buf := NewBuffer()
	buf.EmitPending(JMP, 0, b)
	buf.EmitPending(JMP, 0, a)
	if diff := cmp.Diff([]Marker{a, b}, buf.Pending()); diff != "" {
		t.Errorf("pending mismatch (-want +got):\n%s", diff)
	}
}

func TestMarkerSourceConcurrent(t *testing.T) {
	var ms MarkerSource
	var mu sync.Mutex
	seen := make(map[Marker]bool)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				m := ms.Mint()
				mu.Lock()
				seen[m] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != 800 || ms.Minted() != 800 {
		t.Errorf("unique = %d, minted = %d, want 800", len(seen), ms.Minted())
	}
	if seen[0] {
		t.Error("zero marker handed out")
	}
}

func TestProgramString(t *testing.T) {
	p := &Program{Instructions: []Instruction{
		{Op: INT, Level: 0, Arg: Imm(1)},
		{Op: LIT, Level: 0, Arg: Imm(5)},
		{Op: STO, Level: 0, Arg: Imm(3)},
	}}
	want := "0 INT 0 1\n1 LIT 0 5\n2 STO 0 3\n"
	if got := p.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	q := &Program{Instructions: append([]Instruction(nil), p.Instructions...)}
	if p.Checksum() != q.Checksum() {
		t.Error("equal listings hash differently")
	}
	q.Instructions[1].Arg = Imm(6)
	if p.Checksum() == q.Checksum() {
		t.Error("different listings hash equal")
	}
}

func TestOpcodeNames(t *testing.T) {
	var names []string
	for op := LIT; op <= JMC; op++ {
		names = append(names, op.String())
	}
	if diff := cmp.Diff([]string{"LIT", "OPR", "LOD", "STO", "CAL", "RET", "INT", "JMP", "JMC"}, names); diff != "" {
		t.Errorf("opcode names mismatch (-want +got):\n%s", diff)
	}
	if got := Opcode(42).String(); got != "OP42" {
		t.Errorf("unknown opcode = %q", got)
	}
	tests := []struct {
		opr  OprCode
		want int
		name string
	}{
		{OprNeg, 1, "neg"}, {OprAdd, 2, "add"}, {OprSub, 3, "sub"}, {OprMul, 4, "mul"},
		{OprDiv, 5, "div"}, {OprMod, 6, "mod"}, {OprOdd, 7, "odd"}, {OprEq, 8, "eq"},
		{OprNe, 9, "ne"}, {OprLt, 10, "lt"}, {OprGe, 11, "ge"}, {OprGt, 12, "gt"}, {OprLe, 13, "le"},
	}
	for _, tt := range tests {
		if int(tt.opr) != tt.want || tt.opr.String() != tt.name {
			t.Errorf("%s = %d, want %s = %d", tt.opr, int(tt.opr), tt.name, tt.want)
		}
	}
}
