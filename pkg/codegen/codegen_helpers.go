package codegen

import (
	"github.com/xplshn/gpl0/pkg/ast"
	"github.com/xplshn/gpl0/pkg/ir"
	"github.com/xplshn/gpl0/pkg/symtab"
	"github.com/xplshn/gpl0/pkg/token"
)

var arithOpr = map[token.Type]ir.OprCode{
	token.Plus:  ir.OprAdd,
	token.Minus: ir.OprSub,
	token.Star:  ir.OprMul,
	token.Slash: ir.OprDiv,
	token.Rem:   ir.OprMod,
}

var cmpOpr = map[token.Type]ir.OprCode{
	token.EqEq: ir.OprEq,
	token.Neq:  ir.OprNe,
	token.Lt:   ir.OprLt,
	token.Gte:  ir.OprGe,
	token.Gt:   ir.OprGt,
	token.Lte:  ir.OprLe,
}

// expr emits code leaving exactly one value on the stack and returns the number of
// nodes it consumed.
func (u *unit) expr(e *env, id ast.NodeID) (int, error) {
	n := u.tree().Node(id)
	if n == nil {
		return 0, u.tree().Malformed(id, "missing expression")
	}

	switch d := n.Data.(type) {
	case ast.NumberNode:
		u.buf.Emit(ir.LIT, 0, int(d.Value))
		return 1, nil

	case ast.IdentNode:
		sym, err := u.resolve(e, d.Name, n.Tok)
		if err != nil {
			return 0, err
		}
		if sym.Kind == symtab.Func {
			return 0, u.tree().Malformed(id, "function '%s' used as a value", d.Name)
		}
		u.used[sym] = true
		u.buf.Emit(ir.LOD, e.level()-sym.Level, sym.Address)
		return 1, nil

	case ast.BinaryOpNode:
		opr, ok := arithOpr[d.Op]
		if !ok {
			return 0, u.tree().Malformed(id, "unsupported operator '%s'", d.Op)
		}
		l, err := u.expr(e, d.Left)
		if err != nil {
			return 0, err
		}
		r, err := u.expr(e, d.Right)
		if err != nil {
			return 0, err
		}
		u.buf.Emit(ir.OPR, 0, int(opr))
		return 1 + l + r, nil

	case ast.UnaryOpNode:
		if d.Op != token.Minus {
			return 0, u.tree().Malformed(id, "unsupported unary operator '%s'", d.Op)
		}
		x, err := u.expr(e, d.Expr)
		if err != nil {
			return 0, err
		}
		u.buf.Emit(ir.OPR, 0, int(ir.OprNeg))
		return 1 + x, nil

	case ast.ParenNode:
		x, err := u.expr(e, d.Expr)
		return 1 + x, err

	case ast.TernaryNode:
		return u.ternary(e, d)

	case ast.FuncCallNode:
		return u.call(e, id, d)

	case ast.CompareNode:
		l, r, err := u.operands(e, id, d.Op, d.Left, d.Right)
		if err != nil {
			return 0, err
		}
		return 1 + l + r, nil

	case ast.OddNode:
		x, err := u.expr(e, d.Expr)
		if err != nil {
			return 0, err
		}
		u.buf.Emit(ir.OPR, 0, int(ir.OprOdd))
		return 1 + x, nil

	case ast.LogicalNode:
		// As a value, a short-circuit condition materializes 1 or 0.
		f, end := u.mint(), u.mint()
		c, err := u.cond(e, id, f)
		if err != nil {
			return 0, err
		}
		u.buf.Emit(ir.LIT, 0, 1)
		u.buf.EmitPending(ir.JMP, 0, end)
		u.buf.Patch(f, u.buf.Len())
		u.buf.Emit(ir.LIT, 0, 0)
		u.buf.Patch(end, u.buf.Len())
		return c, nil
	}
	return 0, u.tree().Malformed(id, "%s is not an expression", n.Type)
}

// operands lowers both sides of a comparison followed by its OPR.
func (u *unit) operands(e *env, id ast.NodeID, op token.Type, left, right ast.NodeID) (int, int, error) {
	opr, ok := cmpOpr[op]
	if !ok {
		return 0, 0, u.tree().Malformed(id, "unsupported comparison '%s'", op)
	}
	l, err := u.expr(e, left)
	if err != nil {
		return 0, 0, err
	}
	r, err := u.expr(e, right)
	if err != nil {
		return 0, 0, err
	}
	u.buf.Emit(ir.OPR, 0, int(opr))
	return l, r, nil
}

func (u *unit) ternary(e *env, d ast.TernaryNode) (int, error) {
	els, end := u.mint(), u.mint()
	c, err := u.cond(e, d.Cond, els)
	if err != nil {
		return 0, err
	}
	t, err := u.expr(e, d.ThenExpr)
	if err != nil {
		return 0, err
	}
	u.buf.EmitPending(ir.JMP, 0, end)
	u.buf.Patch(els, u.buf.Len())
	f, err := u.expr(e, d.ElseExpr)
	if err != nil {
		return 0, err
	}
	u.buf.Patch(end, u.buf.Len())
	return 1 + c + t + f, nil
}

// cond emits a condition that falls through when it holds and jumps to f when it does not.
// && and || short-circuit left to right: a false left operand of && goes straight to f,
// a true left operand of || skips the right operand entirely.
func (u *unit) cond(e *env, id ast.NodeID, f ir.Marker) (int, error) {
	n := u.tree().Node(id)
	if n == nil {
		return 0, u.tree().Malformed(id, "missing condition")
	}

	switch d := n.Data.(type) {
	case ast.CompareNode:
		l, r, err := u.operands(e, id, d.Op, d.Left, d.Right)
		if err != nil {
			return 0, err
		}
		u.buf.EmitPending(ir.JMC, 0, f)
		return 1 + l + r, nil

	case ast.LogicalNode:
		switch d.Op {
		case token.AndAnd:
			l, err := u.cond(e, d.Left, f)
			if err != nil {
				return 0, err
			}
			r, err := u.cond(e, d.Right, f)
			return 1 + l + r, err
		case token.OrOr:
			t, next := u.mint(), u.mint()
			l, err := u.cond(e, d.Left, next)
			if err != nil {
				return 0, err
			}
			u.buf.EmitPending(ir.JMP, 0, t)
			u.buf.Patch(next, u.buf.Len())
			r, err := u.cond(e, d.Right, f)
			if err != nil {
				return 0, err
			}
			u.buf.Patch(t, u.buf.Len())
			return 1 + l + r, nil
		}
		return 0, u.tree().Malformed(id, "unsupported logical operator '%s'", d.Op)

	case ast.ParenNode:
		x, err := u.cond(e, d.Expr, f)
		return 1 + x, err
	}

	// Any other value is true when non-zero.
	x, err := u.expr(e, id)
	if err != nil {
		return 0, err
	}
	u.buf.EmitPending(ir.JMC, 0, f)
	return x, nil
}
