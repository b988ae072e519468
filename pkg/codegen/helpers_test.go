package codegen

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/xplshn/gpl0/pkg/ast"
	"github.com/xplshn/gpl0/pkg/config"
	"github.com/xplshn/gpl0/pkg/ir"
	"github.com/xplshn/gpl0/pkg/symtab"
)

// obj builds wire-format AST documents.
type obj = map[string]any

func node(kind string, children ...obj) obj {
	o := obj{"kind": kind}
	if children != nil {
		o["children"] = children
	}
	return o
}

func program(decls ...obj) obj { return node("program", decls...) }
func block(stmts ...obj) obj   { return obj{"kind": "compound_block", "children": append([]obj{}, stmts...)} }
func num(v int) obj            { return obj{"kind": "const_expression_term", "value": v} }
func ref(name string) obj      { return obj{"kind": "var_value", "name": name} }
func sum(l, r obj) obj         { return node("expression_sum", l, r) }
func sub(l, r obj) obj         { return node("expression_minus", l, r) }
func mul(l, r obj) obj         { return node("expression_multiply", l, r) }
func neg(x obj) obj            { return node("unary_minus", x) }
func paren(x obj) obj          { return node("expression_in_parent", x) }
func and(l, r obj) obj         { return node("condition_and", l, r) }
func or(l, r obj) obj          { return node("condition_or", l, r) }
func exprStmt(x obj) obj       { return node("statement", x) }

func cmpOp(op string, l, r obj) obj {
	o := node("condition", l, r)
	o["op"] = op
	return o
}

func decl(name string, init obj) obj {
	if init == nil {
		return obj{"kind": "var_declaration", "name": name, "type": "Int"}
	}
	return obj{"kind": "var_declaration_expression", "name": name, "type": "Int", "children": []obj{init}}
}

func constDecl(name string, init obj) obj {
	o := decl(name, init)
	o["const"] = true
	return o
}

func set(name, op string, rhs obj) obj {
	return obj{"kind": "var_modification", "name": name, "op": op, "children": []obj{rhs}}
}

func call(name string, args ...obj) obj {
	return obj{"kind": "function_call", "name": name, "children": append([]obj{}, args...)}
}

func ret(x obj) obj {
	if x == nil {
		return obj{"kind": "return_statement"}
	}
	return node("return_statement", x)
}

func fun(name string, params []string, body obj) obj {
	ps := make([]obj, len(params))
	for i, p := range params {
		ps[i] = obj{"name": p, "type": "Int"}
	}
	return obj{"kind": "function_signature", "name": name, "params": ps, "return_type": "Int", "children": []obj{body}}
}

func decode(t *testing.T, doc obj) *ast.Tree {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	tree, err := ast.DecodeBytes(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return tree
}

// compile runs fold, table construction and generation the way the driver does.
func compile(t *testing.T, doc obj, flags ...string) (*ir.Program, *Context, error) {
	t.Helper()
	tree := decode(t, doc)
	cfg := config.NewConfig()
	cfg.ProcessFlags(flags)
	if cfg.IsFeatureEnabled(config.FeatFold) {
		ast.FoldConstants(tree, tree.Root)
	}
	tab, err := symtab.Build(tree)
	if err != nil {
		return nil, nil, err
	}
	ctx := NewContext(cfg)
	prog, err := ctx.Generate(tree, tab)
	return prog, ctx, err
}

func mustCompile(t *testing.T, doc obj, flags ...string) (*ir.Program, *Context) {
	t.Helper()
	prog, ctx, err := compile(t, doc, flags...)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return prog, ctx
}

func lines(prog *ir.Program) []string {
	out := make([]string, len(prog.Instructions))
	for i, in := range prog.Instructions {
		out[i] = fmt.Sprintf("%s %d %d", in.Op, in.Level, in.Arg.Value)
	}
	return out
}

// stackEffect is the net number of cells a straight-line run of caller code leaves behind.
// A CAL nets zero for the caller: the callee's frame is gone once it returns.
func stackEffect(t *testing.T, instrs []ir.Instruction) int {
	t.Helper()
	n := 0
	for _, in := range instrs {
		switch in.Op {
		case ir.LIT, ir.LOD:
			n++
		case ir.STO:
			n--
		case ir.INT:
			n += in.Arg.Value
		case ir.CAL:
		case ir.OPR:
			if op := ir.OprCode(in.Arg.Value); op != ir.OprNeg && op != ir.OprOdd {
				n--
			}
		default:
			t.Fatalf("%s is not straight-line code", in.Op)
		}
	}
	return n
}
