package ast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/xplshn/gpl0/pkg/token"
)

// wireNode is the interchange form the parser writes: one object per grammar production.
type wireNode struct {
	Kind       string          `json:"kind"`
	Name       string          `json:"name,omitempty"`
	Value      json.RawMessage `json:"value,omitempty"`
	Op         string          `json:"op,omitempty"`
	Type       string          `json:"type,omitempty"`
	Const      bool            `json:"const,omitempty"`
	Params     []wireParam     `json:"params,omitempty"`
	ReturnType string          `json:"return_type,omitempty"`
	Line       int             `json:"line,omitempty"`
	Col        int             `json:"col,omitempty"`
	Children   []*wireNode     `json:"children,omitempty"`
}

type wireParam struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Line int    `json:"line,omitempty"`
	Col  int    `json:"col,omitempty"`
}

// Decode reads a JSON-encoded program and builds its Tree.
func Decode(r io.Reader) (*Tree, error) {
	var root wireNode
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("decoding AST: %w", err)
	}
	t := NewTree()
	if root.Kind != "program" {
		return nil, &MalformedConstructError{Kind: root.Kind, Reason: "root must be a program", Line: root.Line, Column: root.Col}
	}
	if _, err := t.build(&root); err != nil {
		return nil, err
	}
	return t, nil
}

// DecodeBytes is Decode over an in-memory document.
func DecodeBytes(data []byte) (*Tree, error) { return Decode(bytes.NewReader(data)) }

func (w *wireNode) tok(typ token.Type) token.Token {
	return token.Token{Type: typ, Value: w.Name, Line: w.Line, Column: w.Col, Len: max(len(w.Name), 1)}
}

func (w *wireNode) malformed(format string, args ...any) error {
	return &MalformedConstructError{Kind: w.Kind, Reason: fmt.Sprintf(format, args...), Line: w.Line, Column: w.Col}
}

func (w *wireNode) arity(n int) error {
	if len(w.Children) != n {
		return w.malformed("expected %d children, got %d", n, len(w.Children))
	}
	for i, c := range w.Children {
		if c == nil {
			return w.malformed("child %d is missing", i)
		}
	}
	return nil
}

// blocks requires the children at idx to be compound blocks, the only body the grammar allows.
func (w *wireNode) blocks(idx ...int) error {
	for _, i := range idx {
		if c := w.Children[i]; c == nil || c.Kind != "compound_block" {
			kind := "nothing"
			if c != nil {
				kind = c.Kind
			}
			return w.malformed("body must be a compound_block, got %s", kind)
		}
	}
	return nil
}

func (w *wireNode) dataType(name string) (DataType, error) {
	dt, ok := ParseDataType(name)
	if !ok {
		return dt, w.malformed("unknown type %q", name)
	}
	return dt, nil
}

func (w *wireNode) operator(allowed ...token.Type) (token.Type, error) {
	op, ok := token.OperatorMap[w.Op]
	if ok {
		for _, a := range allowed {
			if op == a {
				return op, nil
			}
		}
	}
	return op, w.malformed("unexpected operator %q", w.Op)
}

func (t *Tree) buildAll(ws []*wireNode) ([]NodeID, error) {
	ids := make([]NodeID, 0, len(ws))
	for _, w := range ws {
		id, err := t.build(w)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// buildOpt builds an optional child; null decodes to NoNode.
func (t *Tree) buildOpt(w *wireNode) (NodeID, error) {
	if w == nil {
		return NoNode, nil
	}
	return t.build(w)
}

func (t *Tree) binary(w *wireNode, mk func(l, r NodeID) NodeID) (NodeID, error) {
	if err := w.arity(2); err != nil {
		return NoNode, err
	}
	ids, err := t.buildAll(w.Children)
	if err != nil {
		return NoNode, err
	}
	return mk(ids[0], ids[1]), nil
}

func (t *Tree) unary(w *wireNode, mk func(x NodeID) NodeID) (NodeID, error) {
	if err := w.arity(1); err != nil {
		return NoNode, err
	}
	x, err := t.build(w.Children[0])
	if err != nil {
		return NoNode, err
	}
	return mk(x), nil
}

func (t *Tree) build(w *wireNode) (NodeID, error) {
	if w == nil {
		return NoNode, &MalformedConstructError{Kind: "node", Reason: "null node"}
	}
	switch w.Kind {
	case "program":
		decls, err := t.buildAll(w.Children)
		if err != nil {
			return NoNode, err
		}
		return t.NewProgram(w.tok(token.EOF), decls), nil

	case "compound_block":
		stmts, err := t.buildAll(w.Children)
		if err != nil {
			return NoNode, err
		}
		return t.NewBlock(w.tok(token.LBrace), stmts), nil

	case "var_declaration_expression", "var_declaration":
		if w.Name == "" {
			return NoNode, w.malformed("declaration without a name")
		}
		dt, err := w.dataType(w.Type)
		if err != nil {
			return NoNode, err
		}
		init := NoNode
		if w.Kind == "var_declaration_expression" {
			if err := w.arity(1); err != nil {
				return NoNode, err
			}
			if init, err = t.build(w.Children[0]); err != nil {
				return NoNode, err
			}
		} else if len(w.Children) != 0 {
			return NoNode, w.malformed("declaration without initializer has children")
		}
		kw := token.Var
		if w.Const {
			kw = token.Let
		}
		return t.NewVarDecl(w.tok(kw), w.Name, dt, w.Const, init), nil

	case "function_signature":
		if w.Name == "" {
			return NoNode, w.malformed("function without a name")
		}
		if err := w.arity(1); err != nil {
			return NoNode, err
		}
		if err := w.blocks(0); err != nil {
			return NoNode, err
		}
		params := make([]Param, 0, len(w.Params))
		for _, p := range w.Params {
			dt, err := w.dataType(p.Type)
			if err != nil {
				return NoNode, err
			}
			params = append(params, Param{Name: p.Name, Type: dt, Tok: token.Token{Type: token.Ident, Value: p.Name, Line: p.Line, Column: p.Col, Len: len(p.Name)}})
		}
		rt := TypeVoid
		if w.ReturnType != "" {
			var err error
			if rt, err = w.dataType(w.ReturnType); err != nil {
				return NoNode, err
			}
		}
		body, err := t.build(w.Children[0])
		if err != nil {
			return NoNode, err
		}
		return t.NewFuncDecl(w.tok(token.Func), w.Name, params, rt, body), nil

	case "var_modification":
		op, err := w.operator(token.Eq, token.PlusEq, token.MinusEq, token.StarEq, token.SlashEq)
		if err != nil {
			return NoNode, err
		}
		if w.Name == "" {
			return NoNode, w.malformed("assignment without a target")
		}
		return t.unary(w, func(x NodeID) NodeID { return t.NewAssign(w.tok(op), op, w.Name, x) })

	case "if_stmt":
		if err := w.arity(2); err != nil {
			return NoNode, err
		}
		if err := w.blocks(1); err != nil {
			return NoNode, err
		}
		return t.binary(w, func(c, b NodeID) NodeID { return t.NewIf(w.tok(token.If), c, b, NoNode) })

	case "if_else_stmt":
		if err := w.arity(3); err != nil {
			return NoNode, err
		}
		if err := w.blocks(1, 2); err != nil {
			return NoNode, err
		}
		ids, err := t.buildAll(w.Children)
		if err != nil {
			return NoNode, err
		}
		return t.NewIf(w.tok(token.If), ids[0], ids[1], ids[2]), nil

	case "while_loop_block":
		if err := w.arity(2); err != nil {
			return NoNode, err
		}
		if err := w.blocks(1); err != nil {
			return NoNode, err
		}
		return t.binary(w, func(c, b NodeID) NodeID { return t.NewWhile(w.tok(token.While), c, b) })

	case "repeat_loop_block":
		if err := w.arity(2); err != nil {
			return NoNode, err
		}
		if err := w.blocks(0); err != nil {
			return NoNode, err
		}
		return t.binary(w, func(b, c NodeID) NodeID { return t.NewRepeat(w.tok(token.Repeat), b, c) })

	case "for_loop_block":
		if len(w.Children) != 4 {
			return NoNode, w.malformed("expected 4 children, got %d", len(w.Children))
		}
		if w.Children[1] == nil || w.Children[3] == nil {
			return NoNode, w.malformed("for loop needs a condition and a body")
		}
		if err := w.blocks(3); err != nil {
			return NoNode, err
		}
		var ids [4]NodeID
		for i, c := range w.Children {
			id, err := t.buildOpt(c)
			if err != nil {
				return NoNode, err
			}
			ids[i] = id
		}
		return t.NewFor(w.tok(token.For), ids[0], ids[1], ids[2], ids[3]), nil

	case "return_statement":
		if len(w.Children) > 1 {
			return NoNode, w.malformed("expected at most 1 child, got %d", len(w.Children))
		}
		expr := NoNode
		if len(w.Children) == 1 {
			var err error
			if expr, err = t.build(w.Children[0]); err != nil {
				return NoNode, err
			}
		}
		return t.NewReturn(w.tok(token.Return), expr), nil

	case "statement":
		return t.unary(w, func(x NodeID) NodeID { return t.NewExprStmt(w.tok(token.Semi), x) })

	case "const_expression_term":
		v, err := w.literal()
		if err != nil {
			return NoNode, err
		}
		return t.NewNumber(w.tok(token.Number), v), nil

	case "var_value":
		if w.Name == "" {
			return NoNode, w.malformed("identifier without a name")
		}
		return t.NewIdent(w.tok(token.Ident), w.Name), nil

	case "expression_sum":
		return t.binary(w, func(l, r NodeID) NodeID { return t.NewBinaryOp(w.tok(token.Plus), token.Plus, l, r) })
	case "expression_minus":
		return t.binary(w, func(l, r NodeID) NodeID { return t.NewBinaryOp(w.tok(token.Minus), token.Minus, l, r) })
	case "expression_multiply":
		return t.binary(w, func(l, r NodeID) NodeID { return t.NewBinaryOp(w.tok(token.Star), token.Star, l, r) })
	case "expression_divide":
		return t.binary(w, func(l, r NodeID) NodeID { return t.NewBinaryOp(w.tok(token.Slash), token.Slash, l, r) })
	case "expression_modulo":
		return t.binary(w, func(l, r NodeID) NodeID { return t.NewBinaryOp(w.tok(token.Rem), token.Rem, l, r) })

	case "unary_minus":
		return t.unary(w, func(x NodeID) NodeID { return t.NewUnaryOp(w.tok(token.Minus), token.Minus, x) })
	case "expression_in_parent":
		return t.unary(w, func(x NodeID) NodeID { return t.NewParen(w.tok(token.LParen), x) })

	case "ternary_operator":
		if err := w.arity(3); err != nil {
			return NoNode, err
		}
		ids, err := t.buildAll(w.Children)
		if err != nil {
			return NoNode, err
		}
		return t.NewTernary(w.tok(token.Question), ids[0], ids[1], ids[2]), nil

	case "function_call":
		if w.Name == "" {
			return NoNode, w.malformed("call without a callee")
		}
		args, err := t.buildAll(w.Children)
		if err != nil {
			return NoNode, err
		}
		return t.NewFuncCall(w.tok(token.Ident), w.Name, args), nil

	case "condition":
		op, err := w.operator(token.EqEq, token.Neq, token.Lt, token.Gt, token.Gte, token.Lte)
		if err != nil {
			return NoNode, err
		}
		return t.binary(w, func(l, r NodeID) NodeID { return t.NewCompare(w.tok(op), op, l, r) })
	case "condition_and":
		return t.binary(w, func(l, r NodeID) NodeID { return t.NewLogical(w.tok(token.AndAnd), token.AndAnd, l, r) })
	case "condition_or":
		return t.binary(w, func(l, r NodeID) NodeID { return t.NewLogical(w.tok(token.OrOr), token.OrOr, l, r) })
	case "condition_odd":
		return t.unary(w, func(x NodeID) NodeID { return t.NewOdd(w.tok(token.Odd), x) })
	}
	return NoNode, w.malformed("unknown node kind")
}

func (w *wireNode) literal() (int64, error) {
	switch s := string(bytes.TrimSpace(w.Value)); s {
	case "":
		return 0, w.malformed("literal without a value")
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	default:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, w.malformed("bad integer literal %s", s)
		}
		return v, nil
	}
}
