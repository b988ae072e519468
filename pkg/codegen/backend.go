package codegen

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/xplshn/gpl0/pkg/config"
	"github.com/xplshn/gpl0/pkg/ir"
)

// Backend is the interface that all output backends must implement.
type Backend interface {
	// Generate takes a resolved program and a configuration, and produces its
	// textual form as a byte buffer.
	Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error)
}

// SelectBackend returns the backend registered under name.
func SelectBackend(name string) (Backend, error) {
	switch name {
	case "", "listing":
		return listingBackend{}, nil
	case "json":
		return jsonBackend{}, nil
	}
	return nil, fmt.Errorf("unknown backend '%s'. Supported: 'listing', 'json'", name)
}

// listingBackend writes the "<index> <opcode> <level> <operand>" triple format.
type listingBackend struct{}

func (listingBackend) Generate(prog *ir.Program, _ *config.Config) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	for i, in := range prog.Instructions {
		if in.Arg.IsPending() {
			return nil, &ir.UnresolvedPatchMarkerError{Marker: in.Arg.Pending, Sites: []int{i}}
		}
		fmt.Fprintf(&buf, "%d %s %d %d\n", i, in.Op, in.Level, in.Arg.Value)
	}
	return &buf, nil
}

type jsonInstruction struct {
	Index   int    `json:"index"`
	Op      string `json:"op"`
	Level   int    `json:"level"`
	Operand int    `json:"operand"`
	Opr     string `json:"opr,omitempty"`
}

// jsonBackend writes one object per instruction for disassemblers and test tooling.
type jsonBackend struct{}

func (jsonBackend) Generate(prog *ir.Program, _ *config.Config) (*bytes.Buffer, error) {
	out := make([]jsonInstruction, len(prog.Instructions))
	for i, in := range prog.Instructions {
		if in.Arg.IsPending() {
			return nil, &ir.UnresolvedPatchMarkerError{Marker: in.Arg.Pending, Sites: []int{i}}
		}
		out[i] = jsonInstruction{Index: i, Op: in.Op.String(), Level: in.Level, Operand: in.Arg.Value}
		if in.Op == ir.OPR {
			out[i].Opr = ir.OprCode(in.Arg.Value).String()
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(data)
	buf.WriteByte('\n')
	return buf, nil
}
