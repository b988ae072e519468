package symtab

import (
	"fmt"

	"github.com/xplshn/gpl0/pkg/ast"
)

type builder struct {
	tree *ast.Tree
	tab  *Table
}

// Build walks the tree once in pre-order and assigns every declaration its level and address.
func Build(tree *ast.Tree) (*Table, error) {
	root := tree.Node(tree.Root)
	if root == nil || root.Type != ast.Program {
		return nil, tree.Malformed(tree.Root, "tree has no program root")
	}

	g := newScope(GlobalScope, KindGlobal, 0, nil, nil, FrameBase)
	tab := &Table{
		Global:  g,
		entries: map[string]*Entry{GlobalScope: {Name: GlobalScope, Blocks: []*Scope{g}}},
		order:   []string{GlobalScope},
		scopes:  map[ast.NodeID]*Scope{tree.Root: g},
		funcs:   make(map[ast.NodeID]*Symbol),
	}
	b := &builder{tree: tree, tab: tab}
	for _, decl := range root.Data.(ast.ProgramNode).Decls {
		if err := b.stmt(decl, g, tab.entries[GlobalScope]); err != nil {
			return nil, err
		}
	}
	return tab, nil
}

func (b *builder) openBlock(id ast.NodeID, parent *Scope, e *Entry) *Scope {
	sc := newScope(fmt.Sprintf("%s/%d", e.Name, len(e.Blocks)), KindBlock, parent.Level, parent, parent.Owner, parent.next)
	e.Blocks = append(e.Blocks, sc)
	b.tab.scopes[id] = sc
	return sc
}

func (b *builder) stmts(ids []ast.NodeID, s *Scope, e *Entry) error {
	for _, id := range ids {
		if err := b.stmt(id, s, e); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) stmt(id ast.NodeID, s *Scope, e *Entry) error {
	n := b.tree.Node(id)
	if n == nil {
		return b.tree.Malformed(id, "missing statement")
	}
	switch d := n.Data.(type) {
	case ast.BlockNode:
		return b.stmts(d.Stmts, b.openBlock(id, s, e), e)
	case ast.VarDeclNode:
		kind := Var
		if d.IsConst {
			kind = Const
		}
		return s.declare(&Symbol{Name: d.Name, Kind: kind, Level: s.Level, Type: d.Type, Decl: id, Entry: -1}, n.Tok)
	case ast.FuncDeclNode:
		return b.function(id, d, s, e)
	case ast.IfNode:
		if err := b.stmt(d.ThenBody, s, e); err != nil {
			return err
		}
		if d.ElseBody.Valid() {
			return b.stmt(d.ElseBody, s, e)
		}
	case ast.WhileNode:
		return b.stmt(d.Body, s, e)
	case ast.RepeatNode:
		return b.stmt(d.Body, s, e)
	case ast.ForNode:
		if d.Init.Valid() && b.tree.Kind(d.Init) == ast.VarDecl {
			fs := b.openBlock(id, s, e)
			if err := b.stmt(d.Init, fs, e); err != nil {
				return err
			}
			return b.stmt(d.Body, fs, e)
		}
		return b.stmt(d.Body, s, e)
	case ast.AssignNode, ast.ReturnNode, ast.ExprStmtNode:
	default:
		return b.tree.Malformed(id, "%s is not a statement", n.Type)
	}
	return nil
}

func (b *builder) function(id ast.NodeID, d ast.FuncDeclNode, s *Scope, e *Entry) error {
	fn := &Symbol{Name: d.Name, Kind: Func, Level: s.Level, Type: d.ReturnType, Decl: id, ReturnType: d.ReturnType, Entry: -1}
	if err := s.declare(fn, b.tree.Node(id).Tok); err != nil {
		return err
	}

	prefix := ""
	if s.Owner != nil {
		prefix = s.Owner.Qualified + "."
	}
	qualified := prefix + d.Name
	// Same-named functions in sibling blocks, or one shadowing the global entry's name.
	for i := 2; b.tab.entries[qualified] != nil; i++ {
		qualified = fmt.Sprintf("%s%s#%d", prefix, d.Name, i)
	}
	fn.Qualified = qualified

	level := s.Level + 1
	params := newScope(qualified+"/params", KindParams, level, s, fn, FrameBase)
	for _, p := range d.Params {
		ps := &Symbol{Name: p.Name, Kind: Param, Level: level, Type: p.Type, Decl: id, Entry: -1}
		if err := params.declare(ps, p.Tok); err != nil {
			return err
		}
		fn.Params = append(fn.Params, ps)
	}

	fe := &Entry{Name: qualified, Func: fn, Params: params}
	b.tab.entries[qualified] = fe
	b.tab.order = append(b.tab.order, qualified)
	b.tab.scopes[id] = params
	b.tab.funcs[id] = fn

	body := b.tree.Node(d.Body)
	if body == nil || body.Type != ast.Block {
		return b.tree.Malformed(id, "function '%s' has no body block", d.Name)
	}
	bs := newScope(qualified+"/0", KindBody, level, params, fn, params.next)
	fe.Blocks = append(fe.Blocks, bs)
	b.tab.scopes[d.Body] = bs
	return b.stmts(body.Data.(ast.BlockNode).Stmts, bs, fe)
}
