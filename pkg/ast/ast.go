// Package ast defines the arena-backed Abstract Syntax Tree consumed by the backend
package ast

import (
	"fmt"

	"github.com/xplshn/gpl0/pkg/token"
)

// NodeType defines the kind of a node in the AST
type NodeType int

const (
	// Expressions
	Number NodeType = iota
	Ident
	BinaryOp
	UnaryOp
	Paren
	Ternary
	FuncCall
	Compare
	Logical
	Odd

	// Statements
	Program
	Block
	VarDecl
	FuncDecl
	Assign
	If
	While
	Repeat
	For
	Return
	ExprStmt
)

var nodeTypeNames = [...]string{
	Number:   "Number",
	Ident:    "Ident",
	BinaryOp: "BinaryOp",
	UnaryOp:  "UnaryOp",
	Paren:    "Paren",
	Ternary:  "Ternary",
	FuncCall: "FuncCall",
	Compare:  "Compare",
	Logical:  "Logical",
	Odd:      "Odd",
	Program:  "Program",
	Block:    "Block",
	VarDecl:  "VarDecl",
	FuncDecl: "FuncDecl",
	Assign:   "Assign",
	If:       "If",
	While:    "While",
	Repeat:   "Repeat",
	For:      "For",
	Return:   "Return",
	ExprStmt: "ExprStmt",
}

func (t NodeType) String() string {
	if int(t) >= 0 && int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return fmt.Sprintf("NodeType(%d)", int(t))
}

// DataType is the declared type tag of a variable, parameter or function result.
type DataType int

const (
	TypeInt DataType = iota
	TypeBool
	TypeVoid
)

func (d DataType) String() string {
	switch d {
	case TypeBool:
		return "Bool"
	case TypeVoid:
		return "Void"
	}
	return "Int"
}

// ParseDataType maps a type name as written in source to its tag.
func ParseDataType(name string) (DataType, bool) {
	switch name {
	case "Int", "":
		return TypeInt, true
	case "Bool":
		return TypeBool, true
	case "Void":
		return TypeVoid, true
	}
	return TypeInt, false
}

// NodeID indexes a node inside its Tree.
type NodeID int32

// NoNode marks an absent optional child.
const NoNode NodeID = -1

func (id NodeID) Valid() bool { return id >= 0 }

// Node represents a node in the Abstract Syntax Tree
type Node struct {
	Type   NodeType
	Tok    token.Token
	Parent NodeID
	Index  int // position among the parent's children
	Data   any
}

// --- Node Data Structs ---
type NumberNode struct{ Value int64 }
type IdentNode struct{ Name string }
type BinaryOpNode struct {
	Op          token.Type
	Left, Right NodeID
}
type UnaryOpNode struct {
	Op   token.Type
	Expr NodeID
}
type ParenNode struct{ Expr NodeID }
type TernaryNode struct{ Cond, ThenExpr, ElseExpr NodeID }
type FuncCallNode struct {
	Name string
	Args []NodeID
}
type CompareNode struct {
	Op          token.Type
	Left, Right NodeID
}
type LogicalNode struct {
	Op          token.Type
	Left, Right NodeID
}
type OddNode struct{ Expr NodeID }

type ProgramNode struct{ Decls []NodeID }
type BlockNode struct{ Stmts []NodeID }
type VarDeclNode struct {
	Name    string
	Type    DataType
	IsConst bool
	Init    NodeID
}
type Param struct {
	Name string
	Type DataType
	Tok  token.Token
}
type FuncDeclNode struct {
	Name       string
	Params     []Param
	ReturnType DataType
	Body       NodeID
}
type AssignNode struct {
	Op   token.Type
	Name string
	Rhs  NodeID
}
type IfNode struct{ Cond, ThenBody, ElseBody NodeID }
type WhileNode struct{ Cond, Body NodeID }
type RepeatNode struct{ Body, Cond NodeID }
type ForNode struct{ Init, Cond, Step, Body NodeID }
type ReturnNode struct{ Expr NodeID }
type ExprStmtNode struct{ Expr NodeID }

// Tree owns every node of one program. Children are referenced by index.
type Tree struct {
	nodes []Node
	Root  NodeID
}

func NewTree() *Tree { return &Tree{Root: NoNode} }

func (t *Tree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[id]
}

func (t *Tree) Len() int { return len(t.nodes) }

func (t *Tree) Kind(id NodeID) NodeType { return t.nodes[id].Type }

// Children returns the child nodes of id in grammar order, skipping absent optional ones.
func (t *Tree) Children(id NodeID) []NodeID {
	n := t.Node(id)
	if n == nil {
		return nil
	}
	var out []NodeID
	add := func(ids ...NodeID) {
		for _, c := range ids {
			if c.Valid() {
				out = append(out, c)
			}
		}
	}
	switch d := n.Data.(type) {
	case NumberNode, IdentNode:
	case BinaryOpNode:
		add(d.Left, d.Right)
	case UnaryOpNode:
		add(d.Expr)
	case ParenNode:
		add(d.Expr)
	case TernaryNode:
		add(d.Cond, d.ThenExpr, d.ElseExpr)
	case FuncCallNode:
		add(d.Args...)
	case CompareNode:
		add(d.Left, d.Right)
	case LogicalNode:
		add(d.Left, d.Right)
	case OddNode:
		add(d.Expr)
	case ProgramNode:
		add(d.Decls...)
	case BlockNode:
		add(d.Stmts...)
	case VarDeclNode:
		add(d.Init)
	case FuncDeclNode:
		add(d.Body)
	case AssignNode:
		add(d.Rhs)
	case IfNode:
		add(d.Cond, d.ThenBody, d.ElseBody)
	case WhileNode:
		add(d.Cond, d.Body)
	case RepeatNode:
		add(d.Body, d.Cond)
	case ForNode:
		add(d.Init, d.Cond, d.Step, d.Body)
	case ReturnNode:
		add(d.Expr)
	case ExprStmtNode:
		add(d.Expr)
	}
	return out
}

// Sibling returns the node at offset delta from id among its parent's children.
func (t *Tree) Sibling(id NodeID, delta int) NodeID {
	n := t.Node(id)
	if n == nil || !n.Parent.Valid() {
		return NoNode
	}
	kids := t.Children(n.Parent)
	i := n.Index + delta
	if i < 0 || i >= len(kids) {
		return NoNode
	}
	return kids[i]
}

// Ancestor walks parent links until a node of kind k is found.
func (t *Tree) Ancestor(id NodeID, k NodeType) NodeID {
	for n := t.Node(id); n != nil && n.Parent.Valid(); n = t.Node(n.Parent) {
		if t.nodes[n.Parent].Type == k {
			return n.Parent
		}
	}
	return NoNode
}

// Count returns the number of nodes in the subtree rooted at id.
func (t *Tree) Count(id NodeID) int {
	if !id.Valid() {
		return 0
	}
	total := 1
	for _, c := range t.Children(id) {
		total += t.Count(c)
	}
	return total
}

// --- Node Constructors ---

func (t *Tree) newNode(tok token.Token, nodeType NodeType, data any) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node{Type: nodeType, Tok: tok, Parent: NoNode, Data: data})
	for i, child := range t.Children(id) {
		t.nodes[child].Parent = id
		t.nodes[child].Index = i
	}
	return id
}

func (t *Tree) NewNumber(tok token.Token, value int64) NodeID {
	return t.newNode(tok, Number, NumberNode{Value: value})
}
func (t *Tree) NewIdent(tok token.Token, name string) NodeID {
	return t.newNode(tok, Ident, IdentNode{Name: name})
}
func (t *Tree) NewBinaryOp(tok token.Token, op token.Type, left, right NodeID) NodeID {
	return t.newNode(tok, BinaryOp, BinaryOpNode{Op: op, Left: left, Right: right})
}
func (t *Tree) NewUnaryOp(tok token.Token, op token.Type, expr NodeID) NodeID {
	return t.newNode(tok, UnaryOp, UnaryOpNode{Op: op, Expr: expr})
}
func (t *Tree) NewParen(tok token.Token, expr NodeID) NodeID {
	return t.newNode(tok, Paren, ParenNode{Expr: expr})
}
func (t *Tree) NewTernary(tok token.Token, cond, thenExpr, elseExpr NodeID) NodeID {
	return t.newNode(tok, Ternary, TernaryNode{Cond: cond, ThenExpr: thenExpr, ElseExpr: elseExpr})
}
func (t *Tree) NewFuncCall(tok token.Token, name string, args []NodeID) NodeID {
	return t.newNode(tok, FuncCall, FuncCallNode{Name: name, Args: args})
}
func (t *Tree) NewCompare(tok token.Token, op token.Type, left, right NodeID) NodeID {
	return t.newNode(tok, Compare, CompareNode{Op: op, Left: left, Right: right})
}
func (t *Tree) NewLogical(tok token.Token, op token.Type, left, right NodeID) NodeID {
	return t.newNode(tok, Logical, LogicalNode{Op: op, Left: left, Right: right})
}
func (t *Tree) NewOdd(tok token.Token, expr NodeID) NodeID {
	return t.newNode(tok, Odd, OddNode{Expr: expr})
}
func (t *Tree) NewProgram(tok token.Token, decls []NodeID) NodeID {
	id := t.newNode(tok, Program, ProgramNode{Decls: decls})
	t.Root = id
	return id
}
func (t *Tree) NewBlock(tok token.Token, stmts []NodeID) NodeID {
	return t.newNode(tok, Block, BlockNode{Stmts: stmts})
}
func (t *Tree) NewVarDecl(tok token.Token, name string, typ DataType, isConst bool, init NodeID) NodeID {
	return t.newNode(tok, VarDecl, VarDeclNode{Name: name, Type: typ, IsConst: isConst, Init: init})
}
func (t *Tree) NewFuncDecl(tok token.Token, name string, params []Param, returnType DataType, body NodeID) NodeID {
	return t.newNode(tok, FuncDecl, FuncDeclNode{Name: name, Params: params, ReturnType: returnType, Body: body})
}
func (t *Tree) NewAssign(tok token.Token, op token.Type, name string, rhs NodeID) NodeID {
	return t.newNode(tok, Assign, AssignNode{Op: op, Name: name, Rhs: rhs})
}
func (t *Tree) NewIf(tok token.Token, cond, thenBody, elseBody NodeID) NodeID {
	return t.newNode(tok, If, IfNode{Cond: cond, ThenBody: thenBody, ElseBody: elseBody})
}
func (t *Tree) NewWhile(tok token.Token, cond, body NodeID) NodeID {
	return t.newNode(tok, While, WhileNode{Cond: cond, Body: body})
}
func (t *Tree) NewRepeat(tok token.Token, body, cond NodeID) NodeID {
	return t.newNode(tok, Repeat, RepeatNode{Body: body, Cond: cond})
}
func (t *Tree) NewFor(tok token.Token, init, cond, step, body NodeID) NodeID {
	return t.newNode(tok, For, ForNode{Init: init, Cond: cond, Step: step, Body: body})
}
func (t *Tree) NewReturn(tok token.Token, expr NodeID) NodeID {
	return t.newNode(tok, Return, ReturnNode{Expr: expr})
}
func (t *Tree) NewExprStmt(tok token.Token, expr NodeID) NodeID {
	return t.newNode(tok, ExprStmt, ExprStmtNode{Expr: expr})
}
