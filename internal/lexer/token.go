// Package lexer is Raven's external scanner collaborator (spec.md §1
// keeps the scanner itself out of scope, specifying only its contract:
// a pull-based interface yielding tokens of known kinds). Raven ships
// one anyway so the repository actually compiles and runs end to end.
package lexer

// Kind is a token's lexical category.
type Kind int

const (
	// Single-character
	LeftParen Kind = iota
	RightParen
	LeftBrace
	RightBrace
	LeftBracket
	RightBracket
	Comma
	Dot
	Colon
	Minus
	Plus
	Semicolon
	Slash
	Star

	// One or two character
	Bang
	BangEqual
	Equal
	EqualEqual
	Greater
	GreaterEqual
	Less
	LessEqual
	FatArrow // =>

	// Literals
	Identifier
	String
	Number

	// Keywords
	And
	Class
	Else
	False
	For
	Func
	If
	In
	Nil
	Not
	Or
	Print
	Return
	Some
	Super
	This
	True
	Var
	While
	Import
	As

	Error
	EOF
)

var keywords = map[string]Kind{
	"and":    And,
	"class":  Class,
	"else":   Else,
	"false":  False,
	"for":    For,
	"func":   Func,
	"if":     If,
	"in":     In,
	"none":   Nil,
	"nil":    Nil,
	"not":    Not,
	"or":     Or,
	"print":  Print,
	"return": Return,
	"some":   Some,
	"super":  Super,
	"this":   This,
	"true":   True,
	"var":    Var,
	"while":  While,
	"import": Import,
	"as":     As,
}

// Token is one lexeme: its kind, the exact source text, and its source
// line. ERROR tokens carry their message in Lexeme; EOF carries none.
type Token struct {
	Kind   Kind
	Lexeme string
	Line   int
}
