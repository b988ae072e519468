package codegen

import (
	"errors"
	"fmt"

	"github.com/xplshn/gpl0/pkg/ast"
	"github.com/xplshn/gpl0/pkg/config"
	"github.com/xplshn/gpl0/pkg/ir"
	"github.com/xplshn/gpl0/pkg/symtab"
	"github.com/xplshn/gpl0/pkg/token"
	"github.com/xplshn/gpl0/pkg/util"
)

var ErrAssignToConstant = errors.New("assignment to constant")

// ConstAssignError is returned for a write to a 'let' binding when const-check is enabled.
type ConstAssignError struct {
	Name  string
	Scope string
}

func (e *ConstAssignError) Error() string {
	return fmt.Sprintf("cannot assign to constant '%s' in scope '%s'", e.Name, e.Scope)
}

func (e *ConstAssignError) Is(target error) bool { return target == ErrAssignToConstant }

// Context drives one compilation: it owns the marker source and the call markers, while
// every lowering call gets its scope and level through an env.
type Context struct {
	cfg         *config.Config
	tree        *ast.Tree
	tab         *symtab.Table
	markers     *ir.MarkerSource
	callMarkers map[*symtab.Symbol]ir.Marker
	diags       []util.Diagnostic
}

func NewContext(cfg *config.Config) *Context {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Context{cfg: cfg}
}

// Diagnostics returns the warnings of the last Generate call in program order.
func (ctx *Context) Diagnostics() []util.Diagnostic { return ctx.diags }

// Table returns the symbol table used by the last Generate call.
func (ctx *Context) Table() *symtab.Table { return ctx.tab }

// env is the lexical position of a lowering call. live counts how many of the scope's
// symbols are declared so far, so a name is only visible after its declaration.
type env struct {
	scope  *symtab.Scope
	live   int
	fn     *symtab.Symbol
	parent *env
}

func (e *env) level() int { return e.scope.Level }

// unit lowers a run of statements into its own buffer. Entries are relative to that buffer.
type unit struct {
	ctx     *Context
	buf     *ir.Buffer
	entries map[*symtab.Symbol]int
	open    []ir.Marker
	used    map[*symtab.Symbol]bool
	diags   []util.Diagnostic
	nodes   int
}

func (ctx *Context) newUnit() *unit {
	return &unit{
		ctx:     ctx,
		buf:     ir.NewBuffer(),
		entries: make(map[*symtab.Symbol]int),
		used:    make(map[*symtab.Symbol]bool),
	}
}

func (u *unit) tree() *ast.Tree { return u.ctx.tree }

func (u *unit) mint() ir.Marker {
	m := u.ctx.markers.Mint()
	u.open = append(u.open, m)
	return m
}

// settle checks that every marker minted since from has been patched.
func (u *unit) settle(from int, construct string) error {
	for _, m := range u.open[from:] {
		if u.buf.IsPending(m) {
			return &ir.UnresolvedPatchMarkerError{Marker: m, Construct: construct, Sites: u.buf.Sites(m)}
		}
	}
	u.open = u.open[:from]
	return nil
}

func (u *unit) warn(w config.Warning, tok token.Token, format string, args ...any) {
	if u.ctx.cfg.IsWarningEnabled(w) {
		u.diags = append(u.diags, util.Warn(u.ctx.cfg.WarningName(w), tok, format, args...))
	}
}

// Generate lowers tree into a resolved program. When tab is nil the symbol table is built first.
func (ctx *Context) Generate(tree *ast.Tree, tab *symtab.Table) (*ir.Program, error) {
	if tab == nil {
		var err error
		if tab, err = symtab.Build(tree); err != nil {
			return nil, err
		}
	}
	root := tree.Node(tree.Root)
	if root == nil || root.Type != ast.Program {
		return nil, tree.Malformed(tree.Root, "tree has no program root")
	}
	ctx.tree, ctx.tab, ctx.diags = tree, tab, nil
	ctx.markers = &ir.MarkerSource{}
	ctx.callMarkers = make(map[*symtab.Symbol]ir.Marker)
	funcs := tab.Functions()
	for _, fn := range funcs {
		ctx.callMarkers[fn] = ctx.markers.Mint()
	}

	decls := root.Data.(ast.ProgramNode).Decls
	var merged *unit
	var err error
	if ctx.cfg.IsFeatureEnabled(config.FeatParallel) && len(decls) > 1 {
		merged, err = ctx.lowerParallel(decls)
	} else {
		merged = ctx.newUnit()
		_, err = merged.stmts(&env{scope: tab.Global}, decls)
	}
	if err != nil {
		return nil, err
	}
	merged.nodes++

	for _, fn := range funcs {
		entry, ok := merged.entries[fn]
		if !ok {
			continue
		}
		fn.Entry = entry
		merged.buf.Patch(ctx.callMarkers[fn], entry)
	}
	instrs, err := merged.buf.Instructions()
	if err != nil {
		return nil, err
	}

	ctx.diags = append(ctx.diags, merged.diags...)
	ctx.reportUnused(merged.used)
	ctx.cfg.Logger.Debug("generated program", "instructions", len(instrs), "functions", len(funcs), "markers", ctx.markers.Minted())

	return &ir.Program{
		Instructions: instrs,
		Stats: ir.Stats{
			Instructions: len(instrs),
			Functions:    len(funcs),
			Markers:      ctx.markers.Minted(),
			Nodes:        merged.nodes,
		},
	}, nil
}

func (ctx *Context) reportUnused(used map[*symtab.Symbol]bool) {
	if !ctx.cfg.IsWarningEnabled(config.WarnUnused) {
		return
	}
	for _, e := range ctx.tab.Entries() {
		for _, sc := range e.Blocks {
			for _, sym := range sc.Symbols() {
				if (sym.Kind == symtab.Var || sym.Kind == symtab.Const) && !used[sym] {
					ctx.diags = append(ctx.diags, util.Warn(ctx.cfg.WarningName(config.WarnUnused), ctx.tree.Node(sym.Decl).Tok, "'%s' declared and not used", sym.Name))
				}
			}
		}
	}
}

// lookup resolves name from e outward, honoring declaration order within each scope.
func lookup(e *env, name string) *symtab.Symbol {
	for f := e; f != nil; f = f.parent {
		if sym, i := f.scope.Lookup(name); sym != nil && (sym.Kind == symtab.Func || i < f.live) {
			return sym
		}
	}
	return nil
}

func (u *unit) resolve(e *env, name string, pos token.Token) (*symtab.Symbol, error) {
	if sym := lookup(e, name); sym != nil {
		return sym, nil
	}
	return nil, &symtab.UndefinedSymbolError{Name: name, Scope: e.scope.ID, Pos: pos}
}

// stmts lowers a statement list and reports whether it ends in a return.
func (u *unit) stmts(e *env, ids []ast.NodeID) (bool, error) {
	for _, id := range ids {
		if err := u.stmt(e, id); err != nil {
			return false, err
		}
		if next := u.tree().Sibling(id, 1); next.Valid() && u.tree().Kind(id) == ast.Return {
			u.warn(config.WarnUnreachableCode, u.tree().Node(next).Tok, "unreachable code")
		}
	}
	return len(ids) > 0 && u.tree().Kind(ids[len(ids)-1]) == ast.Return, nil
}

func (u *unit) stmt(e *env, id ast.NodeID) error {
	n := u.tree().Node(id)
	if n == nil {
		return u.tree().Malformed(id, "missing statement")
	}
	u.nodes++
	mark := len(u.open)

	var err error
	switch d := n.Data.(type) {
	case ast.BlockNode:
		err = u.block(e, id, d.Stmts)
	case ast.VarDeclNode:
		err = u.varDecl(e, id, n, d)
	case ast.FuncDeclNode:
		err = u.funcDecl(e, id, d)
	case ast.AssignNode:
		err = u.assign(e, n, d)
	case ast.IfNode:
		err = u.ifStmt(e, d)
	case ast.WhileNode:
		err = u.whileStmt(e, d)
	case ast.RepeatNode:
		err = u.repeatStmt(e, d)
	case ast.ForNode:
		err = u.forStmt(e, id, d)
	case ast.ReturnNode:
		err = u.returnStmt(e, id, d)
	case ast.ExprStmtNode:
		var c int
		if c, err = u.expr(e, d.Expr); err == nil {
			u.nodes += c
			u.buf.Emit(ir.INT, 0, -1)
			if u.tree().Kind(d.Expr) != ast.FuncCall {
				u.warn(config.WarnExtra, n.Tok, "expression result is discarded")
			}
		}
	default:
		err = u.tree().Malformed(id, "%s is not a statement", n.Type)
	}
	if err != nil {
		return err
	}
	return u.settle(mark, n.Type.String())
}

func (u *unit) block(e *env, id ast.NodeID, stmts []ast.NodeID) error {
	sc, ok := u.ctx.tab.ScopeOf(id)
	if !ok {
		return u.tree().Malformed(id, "block has no scope")
	}
	returned, err := u.stmts(&env{scope: sc, fn: e.fn, parent: e}, stmts)
	if err != nil {
		return err
	}
	if k := sc.Cells(); k > 0 && !returned {
		u.buf.Emit(ir.INT, 0, -k)
	}
	return nil
}

func (u *unit) varDecl(e *env, id ast.NodeID, n *ast.Node, d ast.VarDeclNode) error {
	sym, idx := e.scope.Lookup(d.Name)
	if sym == nil || sym.Decl != id {
		return u.tree().Malformed(id, "'%s' is missing from scope '%s'", d.Name, e.scope.ID)
	}
	if outer := lookup(e.parent, d.Name); outer != nil {
		u.warn(config.WarnShadow, n.Tok, "declaration of '%s' shadows the one at level %d", d.Name, outer.Level)
	}

	u.buf.Emit(ir.INT, 0, 1)
	if d.Init.Valid() {
		c, err := u.expr(e, d.Init)
		if err != nil {
			return err
		}
		u.nodes += c
		u.buf.Emit(ir.STO, 0, sym.Address)
	}
	e.live = idx + 1
	return nil
}

func (u *unit) assign(e *env, n *ast.Node, d ast.AssignNode) error {
	sym, err := u.resolve(e, d.Name, n.Tok)
	if err != nil {
		return err
	}
	switch sym.Kind {
	case symtab.Func:
		return &ast.MalformedConstructError{Kind: n.Type.String(), Reason: fmt.Sprintf("cannot assign to function '%s'", d.Name), Line: n.Tok.Line, Column: n.Tok.Column}
	case symtab.Const:
		if u.ctx.cfg.IsFeatureEnabled(config.FeatConstCheck) {
			return &ConstAssignError{Name: d.Name, Scope: e.scope.ID}
		}
		u.warn(config.WarnConstAssign, n.Tok, "assignment to constant '%s'", d.Name)
	}

	rel := e.level() - sym.Level
	if d.Op.IsCompound() {
		u.used[sym] = true
		u.buf.Emit(ir.LOD, rel, sym.Address)
	}
	c, err := u.expr(e, d.Rhs)
	if err != nil {
		return err
	}
	u.nodes += c
	if d.Op.IsCompound() {
		u.buf.Emit(ir.OPR, 0, int(arithOpr[d.Op.BinaryOf()]))
	} else if d.Op != token.Eq {
		return &ast.MalformedConstructError{Kind: n.Type.String(), Reason: fmt.Sprintf("unsupported assignment operator '%s'", d.Op), Line: n.Tok.Line, Column: n.Tok.Column}
	}
	u.buf.Emit(ir.STO, rel, sym.Address)
	return nil
}

func (u *unit) ifStmt(e *env, d ast.IfNode) error {
	thenSkip := u.mint()
	c, err := u.cond(e, d.Cond, thenSkip)
	if err != nil {
		return err
	}
	u.nodes += c
	if err := u.stmt(e, d.ThenBody); err != nil {
		return err
	}
	if !d.ElseBody.Valid() {
		u.buf.Patch(thenSkip, u.buf.Len())
		return nil
	}
	elseSkip := u.mint()
	u.buf.EmitPending(ir.JMP, 0, elseSkip)
	u.buf.Patch(thenSkip, u.buf.Len())
	if err := u.stmt(e, d.ElseBody); err != nil {
		return err
	}
	u.buf.Patch(elseSkip, u.buf.Len())
	return nil
}

func (u *unit) whileStmt(e *env, d ast.WhileNode) error {
	start := u.buf.Len()
	exit := u.mint()
	c, err := u.cond(e, d.Cond, exit)
	if err != nil {
		return err
	}
	u.nodes += c
	if err := u.stmt(e, d.Body); err != nil {
		return err
	}
	u.buf.Emit(ir.JMP, 0, start)
	u.buf.Patch(exit, u.buf.Len())
	return nil
}

// repeatStmt runs the body once, then again for as long as the condition holds.
func (u *unit) repeatStmt(e *env, d ast.RepeatNode) error {
	start := u.buf.Len()
	if err := u.stmt(e, d.Body); err != nil {
		return err
	}
	exit := u.mint()
	c, err := u.cond(e, d.Cond, exit)
	if err != nil {
		return err
	}
	u.nodes += c
	u.buf.Emit(ir.JMP, 0, start)
	u.buf.Patch(exit, u.buf.Len())
	return nil
}

func (u *unit) forStmt(e *env, id ast.NodeID, d ast.ForNode) error {
	fe := e
	sc, scoped := u.ctx.tab.ScopeOf(id)
	if scoped {
		fe = &env{scope: sc, fn: e.fn, parent: e}
	}
	if d.Init.Valid() {
		if err := u.stmt(fe, d.Init); err != nil {
			return err
		}
	}

	start := u.buf.Len()
	exit := u.mint()
	c, err := u.cond(fe, d.Cond, exit)
	if err != nil {
		return err
	}
	u.nodes += c
	if err := u.stmt(fe, d.Body); err != nil {
		return err
	}
	if d.Step.Valid() {
		if err := u.stmt(fe, d.Step); err != nil {
			return err
		}
	}
	u.buf.Emit(ir.JMP, 0, start)
	u.buf.Patch(exit, u.buf.Len())

	if scoped {
		if k := sc.Cells(); k > 0 {
			u.buf.Emit(ir.INT, 0, -k)
		}
	}
	return nil
}

func (u *unit) returnStmt(e *env, id ast.NodeID, d ast.ReturnNode) error {
	if !u.tree().Ancestor(id, ast.FuncDecl).Valid() {
		return u.tree().Malformed(id, "return outside of a function")
	}
	if d.Expr.Valid() {
		c, err := u.expr(e, d.Expr)
		if err != nil {
			return err
		}
		u.nodes += c
	} else {
		u.buf.Emit(ir.LIT, 0, 0)
	}
	u.epilogue(e.fn)
	return nil
}
