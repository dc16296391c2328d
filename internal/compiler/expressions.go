package compiler

import (
	"strconv"

	"github.com/ravenlang/raven/internal/chunk"
	"github.com/ravenlang/raven/internal/lexer"
	"github.com/ravenlang/raven/internal/value"
)

// precedence mirrors spec.md §4.3's table, lowest to highest.
type precedence int

const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * /
	precUnary                 // not -
	precCall                  // . () []
	precPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

var rules map[lexer.Kind]parseRule

func init() {
	rules = map[lexer.Kind]parseRule{
		lexer.LeftParen:    {prefix: (*Compiler).grouping, infix: (*Compiler).call, precedence: precCall},
		lexer.LeftBracket:  {prefix: (*Compiler).listLiteral, infix: (*Compiler).index, precedence: precCall},
		lexer.Dot:          {infix: (*Compiler).dot, precedence: precCall},
		lexer.Minus:        {prefix: (*Compiler).unary, infix: (*Compiler).binary, precedence: precTerm},
		lexer.Plus:         {infix: (*Compiler).binary, precedence: precTerm},
		lexer.Slash:        {infix: (*Compiler).binary, precedence: precFactor},
		lexer.Star:         {infix: (*Compiler).binary, precedence: precFactor},
		lexer.Not:          {prefix: (*Compiler).unary},
		lexer.BangEqual:    {infix: (*Compiler).binary, precedence: precEquality},
		lexer.EqualEqual:   {infix: (*Compiler).binary, precedence: precEquality},
		lexer.Greater:      {infix: (*Compiler).binary, precedence: precComparison},
		lexer.GreaterEqual: {infix: (*Compiler).binary, precedence: precComparison},
		lexer.Less:         {infix: (*Compiler).binary, precedence: precComparison},
		lexer.LessEqual:    {infix: (*Compiler).binary, precedence: precComparison},
		lexer.Identifier:   {prefix: (*Compiler).variable},
		lexer.String:       {prefix: (*Compiler).stringLiteral},
		lexer.Number:       {prefix: (*Compiler).number},
		lexer.And:          {infix: (*Compiler).and, precedence: precAnd},
		lexer.Or:           {infix: (*Compiler).or, precedence: precOr},
		lexer.False:        {prefix: (*Compiler).literal},
		lexer.True:         {prefix: (*Compiler).literal},
		lexer.Nil:          {prefix: (*Compiler).literal},
		lexer.This:         {prefix: (*Compiler).this},
		lexer.Super:        {prefix: (*Compiler).super},
		lexer.Some:         {prefix: (*Compiler).someLiteral},
		lexer.Func:         {prefix: (*Compiler).funcExpr},
		lexer.LeftBrace:    {prefix: (*Compiler).blockExpr},
	}
}

func (c *Compiler) getRule(k lexer.Kind) parseRule { return rules[k] }

// expression parses one expression at precAssignment.
func (c *Compiler) expression() {
	c.parsePrecedence(precAssignment)
}

func (c *Compiler) parsePrecedence(prec precedence) {
	c.advance()
	rule := c.getRule(c.previous.Kind)
	if rule.prefix == nil {
		c.error("Expect expression.")
		return
	}
	canAssign := prec <= precAssignment
	rule.prefix(c, canAssign)

	for prec <= c.getRule(c.current.Kind).precedence {
		c.advance()
		infix := c.getRule(c.previous.Kind).infix
		infix(c, canAssign)
	}

	if canAssign && c.match(lexer.Equal) {
		c.error("Invalid assignment target.")
	}
}

// ---- literals & primaries --------------------------------------------------

func (c *Compiler) number(canAssign bool) {
	n, _ := strconv.ParseFloat(c.previous.Lexeme, 64)
	c.emitBytes(byte(chunk.OpConstant), c.makeConstant(value.NumberValue(n)))
}

func (c *Compiler) stringLiteral(canAssign bool) {
	s := c.heap.InternString(c.previous.Lexeme)
	c.emitBytes(byte(chunk.OpConstant), c.makeConstant(value.ObjValue(s)))
}

func (c *Compiler) literal(canAssign bool) {
	switch c.previous.Kind {
	case lexer.False:
		c.emitOp(chunk.OpFalse)
	case lexer.True:
		c.emitOp(chunk.OpTrue)
	case lexer.Nil:
		// "nil" and "none" share a token kind (spec.md §6's keyword
		// list groups them); the lexeme text disambiguates which
		// value each produces — see SPEC_FULL.md's Option supplement.
		if c.previous.Lexeme == "none" {
			c.emitOp(chunk.OpNone)
		} else {
			c.emitOp(chunk.OpNil)
		}
	}
}

// someLiteral compiles `some <expr>`, a unary-precedence prefix form
// (not a call) that wraps expr's value in a new Option.
func (c *Compiler) someLiteral(canAssign bool) {
	c.parsePrecedence(precUnary)
	c.emitOp(chunk.OpSome)
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(lexer.RightParen, "Expect ')' after expression.")
}

func (c *Compiler) unary(canAssign bool) {
	op := c.previous.Kind
	c.parsePrecedence(precUnary)
	switch op {
	case lexer.Minus:
		c.emitOp(chunk.OpNegate)
	case lexer.Not:
		c.emitOp(chunk.OpNot)
	}
}

func (c *Compiler) binary(canAssign bool) {
	op := c.previous.Kind
	rule := c.getRule(op)
	c.parsePrecedence(rule.precedence + 1)

	switch op {
	case lexer.Plus:
		c.emitOp(chunk.OpAdd)
	case lexer.Minus:
		c.emitOp(chunk.OpSubtract)
	case lexer.Star:
		c.emitOp(chunk.OpMultiply)
	case lexer.Slash:
		c.emitOp(chunk.OpDivide)
	case lexer.BangEqual:
		c.emitOp(chunk.OpEqual)
		c.emitOp(chunk.OpNot)
	case lexer.EqualEqual:
		c.emitOp(chunk.OpEqual)
	case lexer.Greater:
		c.emitOp(chunk.OpGreater)
	case lexer.GreaterEqual:
		c.emitOp(chunk.OpLess)
		c.emitOp(chunk.OpNot)
	case lexer.Less:
		c.emitOp(chunk.OpLess)
	case lexer.LessEqual:
		c.emitOp(chunk.OpGreater)
		c.emitOp(chunk.OpNot)
	}
}

func (c *Compiler) and(canAssign bool) {
	endJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or(canAssign bool) {
	elseJump := c.emitJump(chunk.OpJumpIfFalse)
	endJump := c.emitJump(chunk.OpJump)
	c.patchJump(elseJump)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

// ---- variables & assignment -------------------------------------------------

func (c *Compiler) variable(canAssign bool) {
	// "dict" is a soft keyword (spec.md §6): only a literal introducer
	// when immediately followed by '{', otherwise a plain identifier.
	if c.previous.Lexeme == "dict" && c.check(lexer.LeftBrace) {
		c.dictLiteral()
		return
	}
	c.namedVariable(c.previous.Lexeme, canAssign)
}

func (c *Compiler) namedVariable(name string, canAssign bool) {
	var getOp, setOp chunk.OpCode
	slot := resolveLocal(c.fn, name)
	var arg byte
	if slot != -1 {
		getOp, setOp = chunk.OpGetLocal, chunk.OpSetLocal
		arg = byte(slot)
	} else if idx := resolveUpvalue(c.fn, name); idx != -1 {
		getOp, setOp = chunk.OpGetUpvalue, chunk.OpSetUpvalue
		arg = byte(idx)
	} else {
		getOp, setOp = chunk.OpGetGlobal, chunk.OpSetGlobal
		arg = c.identifierConstant(name)
	}

	if canAssign && c.match(lexer.Equal) {
		c.expression()
		c.emitBytes(byte(setOp), arg)
		return
	}
	c.emitBytes(byte(getOp), arg)
}

func (c *Compiler) this(canAssign bool) {
	if c.class == nil {
		c.error("Can't use 'this' outside of a class.")
		return
	}
	c.namedVariable("this", false)
}

func (c *Compiler) super(canAssign bool) {
	if c.class == nil {
		c.error("Can't use 'super' outside of a class.")
	} else if !c.class.hasSuperclass {
		c.error("Can't use 'super' in a class with no superclass.")
	}
	c.consume(lexer.Dot, "Expect '.' after 'super'.")
	c.consume(lexer.Identifier, "Expect superclass method name.")
	name := c.identifierConstant(c.previous.Lexeme)

	c.namedVariable("this", false)
	if c.match(lexer.LeftParen) {
		argc := c.argumentList()
		c.namedVariable("super", false)
		c.emitBytes(byte(chunk.OpSuperInvoke), name)
		c.emitByte(argc)
		return
	}
	c.namedVariable("super", false)
	c.emitBytes(byte(chunk.OpGetSuper), name)
}

// ---- calls, properties, indexing --------------------------------------------

func (c *Compiler) call(canAssign bool) {
	argc := c.argumentList()
	c.emitBytes(byte(chunk.OpCall), argc)
}

func (c *Compiler) argumentList() byte {
	var argc int
	if !c.check(lexer.RightParen) {
		for {
			c.expression()
			if argc == 255 {
				c.error("Can't have more than 255 arguments.")
			}
			argc++
			if !c.match(lexer.Comma) {
				break
			}
		}
	}
	c.consume(lexer.RightParen, "Expect ')' after arguments.")
	return byte(argc)
}

func (c *Compiler) dot(canAssign bool) {
	c.consume(lexer.Identifier, "Expect property name after '.'.")
	name := c.identifierConstant(c.previous.Lexeme)

	if canAssign && c.match(lexer.Equal) {
		c.expression()
		c.emitBytes(byte(chunk.OpSetProperty), name)
	} else if c.match(lexer.LeftParen) {
		argc := c.argumentList()
		c.emitBytes(byte(chunk.OpInvoke), name)
		c.emitByte(argc)
	} else {
		c.emitBytes(byte(chunk.OpGetProperty), name)
	}
}

func (c *Compiler) index(canAssign bool) {
	c.expression()
	c.consume(lexer.RightBracket, "Expect ']' after index.")
	if canAssign && c.match(lexer.Equal) {
		c.expression()
		c.emitOp(chunk.OpSetIndex)
	} else {
		c.emitOp(chunk.OpGetIndex)
	}
}

// ---- compound literals & expression-forms -----------------------------------

func (c *Compiler) listLiteral(canAssign bool) {
	var n int
	if !c.check(lexer.RightBracket) {
		for {
			c.expression()
			n++
			if !c.match(lexer.Comma) {
				break
			}
		}
	}
	c.consume(lexer.RightBracket, "Expect ']' after list elements.")
	if n > 255 {
		c.error("Too many elements in list literal.")
	}
	c.emitBytes(byte(chunk.OpList), byte(n))
}

// dictLiteral compiles the soft-keyword `dict { key: value, ... }` form
// (spec.md: `dict` is a plain identifier disambiguated by context, not
// a reserved word — see internal/lexer's keyword table).
func (c *Compiler) dictLiteral() {
	c.consume(lexer.LeftBrace, "Expect '{' after 'dict'.")
	var n int
	if !c.check(lexer.RightBrace) {
		for {
			c.expression()
			c.consume(lexer.Colon, "Expect ':' after dict key.")
			c.expression()
			n++
			if !c.match(lexer.Comma) {
				break
			}
		}
	}
	c.consume(lexer.RightBrace, "Expect '}' after dict entries.")
	if n > 255 {
		c.error("Too many entries in dict literal.")
	}
	c.emitBytes(byte(chunk.OpDict), byte(n))
}

func (c *Compiler) funcExpr(canAssign bool) {
	c.function(typeFunction, "")
}

func (c *Compiler) blockExpr(canAssign bool) {
	c.fn.scopeDepth++
	c.blockBody()
	c.endBlockScope()
}
