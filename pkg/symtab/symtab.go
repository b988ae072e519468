// Package symtab builds the lexically scoped symbol table the code generator reads.
package symtab

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xplshn/gpl0/pkg/ast"
	"github.com/xplshn/gpl0/pkg/token"
)

// FrameBase is the number of header cells every activation frame reserves before its first
// variable: the static link, the dynamic link and the return address.
const FrameBase = 3

// GlobalScope names the table entry holding top-level declarations.
const GlobalScope = "global"

type Kind int

const (
	Var Kind = iota
	Const
	Param
	Func
)

func (k Kind) String() string {
	switch k {
	case Const:
		return "const"
	case Param:
		return "param"
	case Func:
		return "func"
	}
	return "var"
}

// Symbol is the record of one declared name.
type Symbol struct {
	Name    string
	Kind    Kind
	Level   int
	Address int
	Type    ast.DataType
	Decl    ast.NodeID

	// Functions only.
	Qualified  string
	Params     []*Symbol
	ReturnType ast.DataType
	Entry      int // instruction index of the prologue, -1 until generated
}

// IsData reports whether the symbol occupies a frame cell.
func (s *Symbol) IsData() bool { return s.Kind != Func }

func (s *Symbol) String() string {
	if s.Kind == Func {
		params := make([]string, len(s.Params))
		for i, p := range s.Params {
			params[i] = p.Name + ": " + p.Type.String()
		}
		return fmt.Sprintf("func %s(%s) -> %s level=%d entry=%d", s.Name, strings.Join(params, ", "), s.ReturnType, s.Level, s.Entry)
	}
	return fmt.Sprintf("%s %s: %s level=%d addr=%d", s.Kind, s.Name, s.Type, s.Level, s.Address)
}

type ScopeKind int

const (
	KindGlobal ScopeKind = iota
	KindParams
	KindBody
	KindBlock
)

// Scope is one ordered name to record mapping.
type Scope struct {
	ID     string
	Kind   ScopeKind
	Level  int
	Parent *Scope
	Owner  *Symbol // enclosing function, nil at top level

	symbols []*Symbol
	index   map[string]int
	next    int
}

func newScope(id string, kind ScopeKind, level int, parent *Scope, owner *Symbol, start int) *Scope {
	return &Scope{ID: id, Kind: kind, Level: level, Parent: parent, Owner: owner, index: make(map[string]int), next: start}
}

// Lookup finds name declared directly in s and its declaration position.
func (s *Scope) Lookup(name string) (*Symbol, int) {
	if i, ok := s.index[name]; ok {
		return s.symbols[i], i
	}
	return nil, -1
}

func (s *Scope) Symbols() []*Symbol { return s.symbols }

func (s *Scope) Len() int { return len(s.symbols) }

// Cells counts the frame cells the scope's own declarations occupy.
func (s *Scope) Cells() int {
	n := 0
	for _, sym := range s.symbols {
		if sym.IsData() {
			n++
		}
	}
	return n
}

func (s *Scope) declare(sym *Symbol, pos token.Token) error {
	if _, ok := s.index[sym.Name]; ok {
		return &DuplicateSymbolError{Name: sym.Name, Scope: s.ID, Pos: pos}
	}
	// A function body shares its frame with the parameters, so it may not redeclare one.
	if s.Kind == KindBody && s.Parent != nil {
		if _, ok := s.Parent.index[sym.Name]; ok {
			return &DuplicateSymbolError{Name: sym.Name, Scope: s.ID, Pos: pos}
		}
	}
	if sym.IsData() {
		sym.Address = s.next
		s.next++
	}
	s.index[sym.Name] = len(s.symbols)
	s.symbols = append(s.symbols, sym)
	return nil
}

// Entry groups the scopes owned by the top level or by one function.
type Entry struct {
	Name   string
	Func   *Symbol  // nil for the global entry
	Params *Scope   // nil for the global entry
	Blocks []*Scope // global entry: the global scope first; function: its body first
}

// Table maps scope identifiers to their entries.
type Table struct {
	Global  *Scope
	entries map[string]*Entry
	order   []string
	scopes  map[ast.NodeID]*Scope
	funcs   map[ast.NodeID]*Symbol
}

func (t *Table) Entry(name string) (*Entry, bool) {
	e, ok := t.entries[name]
	return e, ok
}

// Entries returns every entry in declaration order, the global one first.
func (t *Table) Entries() []*Entry {
	out := make([]*Entry, len(t.order))
	for i, name := range t.order {
		out[i] = t.entries[name]
	}
	return out
}

// ScopeOf returns the scope opened by a Program, Block, For or FuncDecl node.
// A FuncDecl opens its parameter scope.
func (t *Table) ScopeOf(id ast.NodeID) (*Scope, bool) {
	s, ok := t.scopes[id]
	return s, ok
}

// FuncOf returns the function record declared by a FuncDecl node.
func (t *Table) FuncOf(id ast.NodeID) (*Symbol, bool) {
	s, ok := t.funcs[id]
	return s, ok
}

// Functions returns every function record in declaration order.
func (t *Table) Functions() []*Symbol {
	var out []*Symbol
	for _, name := range t.order {
		if f := t.entries[name].Func; f != nil {
			out = append(out, f)
		}
	}
	return out
}

// String dumps the table, one scope per paragraph.
func (t *Table) String() string {
	var sb strings.Builder
	dump := func(s *Scope, indent string) {
		fmt.Fprintf(&sb, "%s[%s] level=%d\n", indent, s.ID, s.Level)
		for _, sym := range s.symbols {
			fmt.Fprintf(&sb, "%s    %s\n", indent, sym)
		}
	}
	for _, e := range t.Entries() {
		fmt.Fprintf(&sb, "%s:\n", e.Name)
		if e.Params != nil {
			dump(e.Params, "  ")
		}
		for _, b := range e.Blocks {
			dump(b, "  ")
		}
	}
	return sb.String()
}

var (
	ErrDuplicateSymbol = errors.New("duplicate symbol")
	ErrUndefinedSymbol = errors.New("undefined symbol")
)

type DuplicateSymbolError struct {
	Name  string
	Scope string
	Pos   token.Token
}

func (e *DuplicateSymbolError) Error() string {
	return fmt.Sprintf("'%s' redeclared in scope '%s'", e.Name, e.Scope)
}

func (e *DuplicateSymbolError) Is(target error) bool { return target == ErrDuplicateSymbol }

type UndefinedSymbolError struct {
	Name  string
	Scope string
	Pos   token.Token
}

func (e *UndefinedSymbolError) Error() string {
	return fmt.Sprintf("'%s' undefined in scope '%s'", e.Name, e.Scope)
}

func (e *UndefinedSymbolError) Is(target error) bool { return target == ErrUndefinedSymbol }
