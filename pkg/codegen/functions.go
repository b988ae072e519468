package codegen

import (
	"github.com/xplshn/gpl0/pkg/ast"
	"github.com/xplshn/gpl0/pkg/ir"
	"github.com/xplshn/gpl0/pkg/symtab"
)

// funcDecl emits a function in place, guarded by a jump over its body:
//
//	JMP over; entry: INT 0 3; LOD 0 -n .. LOD 0 -1; body; [LIT 0 0; STO 0 -1-n; RET 0 0]; over:
func (u *unit) funcDecl(e *env, id ast.NodeID, d ast.FuncDeclNode) error {
	fn, ok := u.ctx.tab.FuncOf(id)
	params, pok := u.ctx.tab.ScopeOf(id)
	body, bok := u.ctx.tab.ScopeOf(d.Body)
	if !ok || !pok || !bok {
		return u.tree().Malformed(id, "function '%s' is missing from the symbol table", d.Name)
	}
	if _, idx := e.scope.Lookup(d.Name); idx >= 0 {
		e.live = idx + 1
	}

	over := u.mint()
	u.buf.EmitPending(ir.JMP, 0, over)
	entry := u.buf.Len()
	u.entries[fn] = entry

	u.buf.Emit(ir.INT, 0, symtab.FrameBase)
	for i := len(fn.Params); i >= 1; i-- {
		u.buf.Emit(ir.LOD, 0, -i)
	}

	pe := &env{scope: params, live: params.Len(), fn: fn, parent: e}
	u.nodes++
	returned, err := u.stmts(&env{scope: body, fn: fn, parent: pe}, u.tree().Node(d.Body).Data.(ast.BlockNode).Stmts)
	if err != nil {
		return err
	}
	if !returned {
		u.buf.Emit(ir.LIT, 0, 0)
		u.epilogue(fn)
	}
	u.buf.Patch(over, u.buf.Len())

	u.ctx.cfg.Logger.Debug("lowered function", "name", fn.Qualified, "level", fn.Level, "entry", entry, "size", u.buf.Len()-entry)
	return nil
}

// epilogue stores the value on top of the stack into the caller's return slot and returns.
func (u *unit) epilogue(fn *symtab.Symbol) {
	u.buf.Emit(ir.STO, 0, -1-len(fn.Params))
	u.buf.Emit(ir.RET, 0, 0)
}

// call reserves the return slot, pushes the arguments left to right, calls and drops them.
// A callee whose entry this unit has not seen yet is reached through its call marker.
func (u *unit) call(e *env, id ast.NodeID, d ast.FuncCallNode) (int, error) {
	fn, err := u.resolve(e, d.Name, u.tree().Node(id).Tok)
	if err != nil {
		return 0, err
	}
	if fn.Kind != symtab.Func {
		return 0, u.tree().Malformed(id, "'%s' is not a function", d.Name)
	}
	if len(d.Args) != len(fn.Params) {
		return 0, u.tree().Malformed(id, "'%s' takes %d arguments, got %d", d.Name, len(fn.Params), len(d.Args))
	}

	u.buf.Emit(ir.INT, 0, 1)
	count := 1
	for _, arg := range d.Args {
		c, err := u.expr(e, arg)
		if err != nil {
			return 0, err
		}
		count += c
	}

	diff := e.level() - fn.Level
	if entry, ok := u.entries[fn]; ok {
		u.buf.Emit(ir.CAL, diff, entry)
	} else {
		u.buf.EmitPending(ir.CAL, diff, u.ctx.callMarkers[fn])
	}
	// INT 0 0 would be a no-op, so a call without arguments drops nothing.
	if n := len(d.Args); n > 0 {
		u.buf.Emit(ir.INT, 0, -n)
	}
	return count, nil
}
