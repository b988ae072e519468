package ast

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/xplshn/gpl0/pkg/token"
)

const sample = `{
  "kind": "program",
  "children": [
    {"kind": "var_declaration_expression", "name": "x", "type": "Int", "const": true, "line": 1, "col": 1,
     "children": [{"kind": "expression_sum", "children": [
        {"kind": "const_expression_term", "value": 2},
        {"kind": "const_expression_term", "value": 3}]}]},
    {"kind": "function_signature", "name": "f", "params": [{"name": "a", "type": "Int"}], "return_type": "Bool", "line": 2,
     "children": [{"kind": "compound_block", "children": [
        {"kind": "return_statement", "children": [
          {"kind": "condition", "op": ">=", "children": [
            {"kind": "var_value", "name": "a"},
            {"kind": "const_expression_term", "value": true}]}]}]}]},
    {"kind": "for_loop_block", "children": [
      null,
      {"kind": "condition_odd", "children": [{"kind": "var_value", "name": "x"}]},
      null,
      {"kind": "compound_block", "children": []}]}
  ]
}`

func TestDecode(t *testing.T) {
	tree, err := Decode(strings.NewReader(sample))
	if err != nil {
		t.Fatal(err)
	}
	root := tree.Node(tree.Root)
	if root == nil || root.Type != Program {
		t.Fatalf("root = %v", root)
	}
	decls := root.Data.(ProgramNode).Decls
	var kinds []NodeType
	for _, id := range decls {
		kinds = append(kinds, tree.Kind(id))
	}
	if diff := cmp.Diff([]NodeType{VarDecl, FuncDecl, For}, kinds); diff != "" {
		t.Errorf("decls mismatch (-want +got):\n%s", diff)
	}

	x := tree.Node(decls[0]).Data.(VarDeclNode)
	if !x.IsConst || x.Name != "x" || tree.Kind(x.Init) != BinaryOp {
		t.Errorf("x = %+v", x)
	}
	if tok := tree.Node(decls[0]).Tok; tok.Type != token.Let || tok.Line != 1 {
		t.Errorf("x token = %+v", tok)
	}

	f := tree.Node(decls[1]).Data.(FuncDeclNode)
	if f.ReturnType != TypeBool || len(f.Params) != 1 || f.Params[0].Name != "a" {
		t.Errorf("f = %+v", f)
	}
	ret := tree.Node(f.Body).Data.(BlockNode).Stmts[0]
	cmpID := tree.Node(ret).Data.(ReturnNode).Expr
	c := tree.Node(cmpID).Data.(CompareNode)
	if c.Op != token.Gte {
		t.Errorf("op = %s, want >=", c.Op)
	}
	if v := tree.Node(c.Right).Data.(NumberNode).Value; v != 1 {
		t.Errorf("true decoded as %d", v)
	}

	loop := tree.Node(decls[2]).Data.(ForNode)
	if loop.Init.Valid() || loop.Step.Valid() || tree.Kind(loop.Cond) != Odd {
		t.Errorf("for = %+v", loop)
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"root", `{"kind": "compound_block"}`},
		{"unknown kind", `{"kind": "program", "children": [{"kind": "goto"}]}`},
		{"arity", `{"kind": "program", "children": [{"kind": "expression_sum", "children": [{"kind": "var_value", "name": "a"}]}]}`},
		{"operator", `{"kind": "program", "children": [{"kind": "var_modification", "name": "a", "op": "%=", "children": [{"kind": "const_expression_term", "value": 1}]}]}`},
		{"literal", `{"kind": "program", "children": [{"kind": "statement", "children": [{"kind": "const_expression_term", "value": "x"}]}]}`},
		{"type", `{"kind": "program", "children": [{"kind": "var_declaration", "name": "a", "type": "Float"}]}`},
		{"body", `{"kind": "program", "children": [{"kind": "function_signature", "name": "f", "children": [{"kind": "return_statement"}]}]}`},
		{"for without body", `{"kind": "program", "children": [{"kind": "for_loop_block", "children": [null, {"kind": "var_value", "name": "a"}, null, null]}]}`},
		{"if body", `{"kind": "program", "children": [{"kind": "if_stmt", "children": [{"kind": "condition_odd", "children": [{"kind": "var_value", "name": "c"}]}, {"kind": "var_declaration", "name": "x", "type": "Int"}]}]}`},
		{"else body", `{"kind": "program", "children": [{"kind": "if_else_stmt", "children": [{"kind": "condition_odd", "children": [{"kind": "var_value", "name": "c"}]}, {"kind": "compound_block", "children": []}, {"kind": "var_modification", "name": "c", "op": "=", "children": [{"kind": "const_expression_term", "value": 1}]}]}]}`},
		{"while body", `{"kind": "program", "children": [{"kind": "while_loop_block", "children": [{"kind": "condition_odd", "children": [{"kind": "var_value", "name": "c"}]}, {"kind": "var_declaration", "name": "t", "type": "Int"}]}]}`},
		{"repeat body", `{"kind": "program", "children": [{"kind": "repeat_loop_block", "children": [{"kind": "var_declaration", "name": "t", "type": "Int"}, {"kind": "condition_odd", "children": [{"kind": "var_value", "name": "c"}]}]}]}`},
		{"for body", `{"kind": "program", "children": [{"kind": "for_loop_block", "children": [null, {"kind": "condition_odd", "children": [{"kind": "var_value", "name": "c"}]}, null, {"kind": "var_declaration", "name": "t", "type": "Int"}]}]}`},
		{"nested if body", `{"kind": "program", "children": [{"kind": "compound_block", "children": [{"kind": "if_stmt", "children": [{"kind": "condition_odd", "children": [{"kind": "var_value", "name": "c"}]}, {"kind": "if_stmt", "children": [{"kind": "condition_odd", "children": [{"kind": "var_value", "name": "c"}]}, {"kind": "compound_block", "children": []}]}]}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBytes([]byte(tt.doc))
			if !errors.Is(err, ErrMalformedConstruct) {
				t.Errorf("err = %v, want malformed construct", err)
			}
		})
	}

	if _, err := DecodeBytes([]byte(`{"kind": "program", "extra": 1}`)); err == nil || errors.Is(err, ErrMalformedConstruct) {
		t.Errorf("unknown field: err = %v, want a decoding error", err)
	}
}

func TestTreeNavigation(t *testing.T) {
	tr := NewTree()
	tok := token.Token{}
	a := tr.NewIdent(tok, "a")
	one := tr.NewNumber(tok, 1)
	sum := tr.NewBinaryOp(tok, token.Plus, a, one)
	asg := tr.NewAssign(tok, token.Eq, "a", sum)
	blk := tr.NewBlock(tok, []NodeID{asg})
	tr.NewProgram(tok, []NodeID{blk})

	if tr.Node(one).Parent != sum || tr.Node(one).Index != 1 {
		t.Errorf("one: parent = %d, index = %d", tr.Node(one).Parent, tr.Node(one).Index)
	}
	if got := tr.Sibling(a, 1); got != one {
		t.Errorf("Sibling(a, 1) = %d, want %d", got, one)
	}
	if got := tr.Sibling(a, -1); got != NoNode {
		t.Errorf("Sibling(a, -1) = %d, want none", got)
	}
	if got := tr.Ancestor(one, Block); got != blk {
		t.Errorf("Ancestor(one, Block) = %d, want %d", got, blk)
	}
	if got := tr.Ancestor(one, For); got != NoNode {
		t.Errorf("Ancestor(one, For) = %d, want none", got)
	}
	if got := tr.Count(tr.Root); got != 6 {
		t.Errorf("Count = %d, want 6", got)
	}
}

func TestFoldConstants(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want int64
		kind NodeType
	}{
		{"sum", `{"kind":"expression_sum","children":[{"kind":"const_expression_term","value":2},{"kind":"const_expression_term","value":3}]}`, 5, Number},
		{"nested", `{"kind":"expression_multiply","children":[{"kind":"expression_in_parent","children":[{"kind":"expression_minus","children":[{"kind":"const_expression_term","value":7},{"kind":"const_expression_term","value":2}]}]},{"kind":"unary_minus","children":[{"kind":"const_expression_term","value":3}]}]}`, -15, Number},
		{"truncating division", `{"kind":"expression_divide","children":[{"kind":"const_expression_term","value":-7},{"kind":"const_expression_term","value":2}]}`, -3, Number},
		{"modulo", `{"kind":"expression_modulo","children":[{"kind":"const_expression_term","value":7},{"kind":"const_expression_term","value":3}]}`, 1, Number},
		{"division by zero", `{"kind":"expression_divide","children":[{"kind":"const_expression_term","value":1},{"kind":"const_expression_term","value":0}]}`, 0, BinaryOp},
		{"ternary", `{"kind":"ternary_operator","children":[{"kind":"const_expression_term","value":false},{"kind":"const_expression_term","value":1},{"kind":"const_expression_term","value":2}]}`, 2, Number},
		{"variable", `{"kind":"expression_sum","children":[{"kind":"var_value","name":"a"},{"kind":"const_expression_term","value":3}]}`, 0, BinaryOp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `{"kind":"program","children":[{"kind":"var_declaration_expression","name":"v","children":[` + tt.doc + `]}]}`
			tree, err := DecodeBytes([]byte(doc))
			if err != nil {
				t.Fatal(err)
			}
			FoldConstants(tree, tree.Root)
			decl := tree.Node(tree.Node(tree.Root).Data.(ProgramNode).Decls[0]).Data.(VarDeclNode)
			init := tree.Node(decl.Init)
			if init.Type != tt.kind {
				t.Fatalf("init is %s, want %s", init.Type, tt.kind)
			}
			if tt.kind == Number && init.Data.(NumberNode).Value != tt.want {
				t.Errorf("folded to %d, want %d", init.Data.(NumberNode).Value, tt.want)
			}
			if init.Parent != tree.Node(tree.Root).Data.(ProgramNode).Decls[0] {
				t.Errorf("folded node lost its parent")
			}
		})
	}
}

func TestFoldLeavesConditions(t *testing.T) {
	doc := `{"kind":"program","children":[{"kind":"if_stmt","children":[
	  {"kind":"condition","op":"<","children":[{"kind":"const_expression_term","value":1},{"kind":"const_expression_term","value":2}]},
	  {"kind":"compound_block","children":[]}]}]}`
	tree, err := DecodeBytes([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	before := tree.Count(tree.Root)
	FoldConstants(tree, tree.Root)
	if after := tree.Count(tree.Root); after != before {
		t.Errorf("count changed from %d to %d", before, after)
	}
}
