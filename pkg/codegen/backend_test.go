package codegen

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/xplshn/gpl0/pkg/ir"
)

func TestListingBackend(t *testing.T) {
	prog, _ := mustCompile(t, program(decl("x", num(4)), set("x", "*=", num(2))))
	be, err := SelectBackend("listing")
	if err != nil {
		t.Fatal(err)
	}
	out, err := be.Generate(prog, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := "0 INT 0 1\n1 LIT 0 4\n2 STO 0 3\n3 LOD 0 3\n4 LIT 0 2\n5 OPR 0 4\n6 STO 0 3\n"
	if out.String() != want {
		t.Errorf("listing:\n%s\nwant:\n%s", out, want)
	}
	if out.String() != prog.String() {
		t.Error("backend and Program.String disagree")
	}
}

func TestJSONBackend(t *testing.T) {
	prog, _ := mustCompile(t, program(decl("a", num(1)), decl("b", node("condition_odd", ref("a")))))
	be, err := SelectBackend("json")
	if err != nil {
		t.Fatal(err)
	}
	out, err := be.Generate(prog, nil)
	if err != nil {
		t.Fatal(err)
	}
	var got []jsonInstruction
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != len(prog.Instructions) {
		t.Fatalf("len = %d, want %d", len(got), len(prog.Instructions))
	}
	odd := got[5]
	if odd.Op != "OPR" || odd.Operand != int(ir.OprOdd) || odd.Opr != "odd" || odd.Index != 5 {
		t.Errorf("instruction 5 = %+v", odd)
	}
	if got[0].Opr != "" {
		t.Errorf("non-OPR instruction has opr %q", got[0].Opr)
	}
}

func TestBackendRejectsPendingOperands(t *testing.T) {
	prog := &ir.Program{Instructions: []ir.Instruction{{Op: ir.JMP, Arg: ir.Operand{Pending: 1}}}}
	for _, name := range []string{"listing", "json"} {
		be, _ := SelectBackend(name)
		if _, err := be.Generate(prog, nil); !errors.Is(err, ir.ErrUnresolvedPatchMarker) {
			t.Errorf("%s: err = %v, want unresolved marker", name, err)
		}
	}
}

func TestSelectBackendUnknown(t *testing.T) {
	if _, err := SelectBackend("qbe"); err == nil {
		t.Error("unknown backend accepted")
	}
}
