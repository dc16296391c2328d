package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allTokens(src string) []Token {
	s := New(src)
	var toks []Token
	for {
		tok := s.NextToken()
		toks = append(toks, tok)
		if tok.Kind == EOF {
			return toks
		}
	}
}

func TestLexerPunctuationAndOperators(t *testing.T) {
	toks := allTokens(`(){}[]:,.+-;*!= == => <= >=`)
	kinds := make([]Kind, len(toks))
	for i, tk := range toks {
		kinds[i] = tk.Kind
	}
	assert.Equal(t, []Kind{
		LeftParen, RightParen, LeftBrace, RightBrace, LeftBracket, RightBracket,
		Colon, Comma, Dot, Plus, Minus, Semicolon, Star, BangEqual, EqualEqual,
		FatArrow, LessEqual, GreaterEqual, EOF,
	}, kinds)
}

func TestLexerKeywordsAndSoftKeyword(t *testing.T) {
	toks := allTokens("var dict func none nil")
	require.Len(t, toks, 6)
	assert.Equal(t, Var, toks[0].Kind)
	assert.Equal(t, Identifier, toks[1].Kind, "dict is a soft keyword, lexed as a plain identifier")
	assert.Equal(t, Func, toks[2].Kind)
	assert.Equal(t, Nil, toks[3].Kind, "none shares Nil's Kind, disambiguated later by lexeme")
	assert.Equal(t, Nil, toks[4].Kind)
	assert.Equal(t, "none", toks[3].Lexeme)
	assert.Equal(t, "nil", toks[4].Lexeme)
}

func TestLexerNumbers(t *testing.T) {
	toks := allTokens("42 3.14 1e10 2.5e-3")
	for i := 0; i < 4; i++ {
		assert.Equal(t, Number, toks[i].Kind)
	}
	assert.Equal(t, "42", toks[0].Lexeme)
	assert.Equal(t, "3.14", toks[1].Lexeme)
	assert.Equal(t, "1e10", toks[2].Lexeme)
	assert.Equal(t, "2.5e-3", toks[3].Lexeme)
}

func TestLexerStringEscapes(t *testing.T) {
	toks := allTokens(`"hello\nworld\t\"quoted\""`)
	require.Equal(t, String, toks[0].Kind)
	assert.Equal(t, "hello\nworld\t\"quoted\"", toks[0].Lexeme)
}

func TestLexerUnterminatedString(t *testing.T) {
	toks := allTokens(`"no closing quote`)
	require.Equal(t, Error, toks[0].Kind)
	assert.Contains(t, toks[0].Lexeme, "Unterminated")
}

func TestLexerSkipsLineComments(t *testing.T) {
	toks := allTokens("1 // a comment\n2")
	require.Len(t, toks, 3)
	assert.Equal(t, "1", toks[0].Lexeme)
	assert.Equal(t, "2", toks[1].Lexeme)
}

func TestLexerLineTracking(t *testing.T) {
	toks := allTokens("1\n2\n\n3")
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 2, toks[1].Line)
	assert.Equal(t, 4, toks[2].Line)
}
