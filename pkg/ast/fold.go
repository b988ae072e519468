package ast

import "github.com/xplshn/gpl0/pkg/token"

// FoldConstants rewrites literal arithmetic in the subtree rooted at id into Number nodes,
// in place. Conditions are left alone; division or modulo by a literal zero is not folded.
func FoldConstants(t *Tree, id NodeID) {
	if !id.Valid() {
		return
	}
	for _, c := range t.Children(id) {
		FoldConstants(t, c)
	}

	n := &t.nodes[id]
	switch d := n.Data.(type) {
	case ParenNode:
		if t.nodes[d.Expr].Type == Number {
			n.Type, n.Data = Number, t.nodes[d.Expr].Data
		}
	case UnaryOpNode:
		if v, ok := t.number(d.Expr); ok && d.Op == token.Minus {
			n.Type, n.Data = Number, NumberNode{Value: -v}
		}
	case BinaryOpNode:
		l, lok := t.number(d.Left)
		r, rok := t.number(d.Right)
		if !lok || !rok {
			return
		}
		var res int64
		switch d.Op {
		case token.Plus:
			res = l + r
		case token.Minus:
			res = l - r
		case token.Star:
			res = l * r
		case token.Slash, token.Rem:
			if r == 0 {
				return
			}
			if d.Op == token.Slash {
				res = l / r
			} else {
				res = l % r
			}
		default:
			return
		}
		n.Type, n.Data = Number, NumberNode{Value: res}
	case TernaryNode:
		// Only a literal condition selects a branch; comparisons stay for the generator.
		if v, ok := t.number(d.Cond); ok {
			pick := d.ElseExpr
			if v != 0 {
				pick = d.ThenExpr
			}
			t.replace(id, pick)
		}
	}
}

func (t *Tree) number(id NodeID) (int64, bool) {
	if !id.Valid() || t.nodes[id].Type != Number {
		return 0, false
	}
	return t.nodes[id].Data.(NumberNode).Value, true
}

// replace overwrites node id with the contents of node with, keeping id's place in its parent.
func (t *Tree) replace(id, with NodeID) {
	src := t.nodes[with]
	dst := &t.nodes[id]
	dst.Type, dst.Tok, dst.Data = src.Type, src.Tok, src.Data
	for i, c := range t.Children(id) {
		t.nodes[c].Parent = id
		t.nodes[c].Index = i
	}
}
