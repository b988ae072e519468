package token

import "fmt"

type Type int

const (
	EOF Type = iota
	Ident
	Number
	True
	False
	Var
	Let
	Func
	If
	Else
	While
	Repeat
	For
	Return
	Odd
	IntKeyword
	BoolKeyword
	LParen
	RParen
	LBrace
	RBrace
	Semi
	Comma
	Colon
	Question
	Arrow
	Eq
	PlusEq
	MinusEq
	StarEq
	SlashEq
	Plus
	Minus
	Star
	Slash
	Rem
	EqEq
	Neq
	Lt
	Gt
	Gte
	Lte
	AndAnd
	OrOr
)

var KeywordMap = map[string]Type{
	"var":    Var,
	"let":    Let,
	"func":   Func,
	"if":     If,
	"else":   Else,
	"while":  While,
	"repeat": Repeat,
	"for":    For,
	"return": Return,
	"odd":    Odd,
	"true":   True,
	"false":  False,
	"Int":    IntKeyword,
	"Bool":   BoolKeyword,
}

// OperatorMap holds the spelling of every operator the AST can carry.
var OperatorMap = map[string]Type{
	"=":  Eq,
	"+=": PlusEq,
	"-=": MinusEq,
	"*=": StarEq,
	"/=": SlashEq,
	"+":  Plus,
	"-":  Minus,
	"*":  Star,
	"/":  Slash,
	"%":  Rem,
	"==": EqEq,
	"!=": Neq,
	"<":  Lt,
	">":  Gt,
	">=": Gte,
	"<=": Lte,
	"&&": AndAnd,
	"||": OrOr,
	"?":  Question,
	"->": Arrow,
}

// Reverse mapping from Type to its keyword or operator spelling
var TypeStrings = make(map[Type]string)

func init() {
	for str, typ := range KeywordMap {
		TypeStrings[typ] = str
	}
	for str, typ := range OperatorMap {
		TypeStrings[typ] = str
	}
}

func (t Type) String() string {
	if s, ok := TypeStrings[t]; ok {
		return s
	}
	switch t {
	case EOF:
		return "EOF"
	case Ident:
		return "identifier"
	case Number:
		return "number"
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// IsCompound reports whether t is one of the arithmetic assignment operators.
func (t Type) IsCompound() bool {
	return t == PlusEq || t == MinusEq || t == StarEq || t == SlashEq
}

// BinaryOf maps a compound assignment operator to the arithmetic operator it applies.
func (t Type) BinaryOf() Type {
	switch t {
	case PlusEq:
		return Plus
	case MinusEq:
		return Minus
	case StarEq:
		return Star
	case SlashEq:
		return Slash
	}
	return t
}

type Token struct {
	Type      Type
	Value     string
	FileIndex int
	Line      int
	Column    int
	Len       int
}

func (t Token) Pos() string { return fmt.Sprintf("%d:%d", t.Line, t.Column) }
