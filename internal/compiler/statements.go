package compiler

import (
	"github.com/ravenlang/raven/internal/chunk"
	"github.com/ravenlang/raven/internal/lexer"
	"github.com/ravenlang/raven/internal/value"
)

// unit compiles exactly one declaration/statement/expression, leaving
// exactly one value on the stack — the expression-oriented invariant
// spec.md §4.3's Block semantics relies on. Callers (block, Compile's
// top level) decide whether that value is kept or popped.
func (c *Compiler) unit() {
	switch {
	case c.check(lexer.Var):
		c.advance()
		c.varDeclaration()
	case c.check(lexer.Class):
		c.advance()
		c.classDeclaration()
	case c.check(lexer.Func) && c.peekNextKind() == lexer.Identifier:
		c.advance()
		c.namedFunctionDeclaration()
	case c.check(lexer.If):
		c.advance()
		c.ifConstruct()
	case c.check(lexer.While):
		c.advance()
		c.whileConstruct()
	case c.check(lexer.For):
		c.advance()
		c.forConstruct()
	case c.check(lexer.Return):
		c.advance()
		c.returnStatement()
	case c.check(lexer.Print):
		c.advance()
		c.printStatement()
	case c.check(lexer.Import):
		c.advance()
		c.importStatement()
	default:
		c.expression()
	}
	if c.panicMode {
		c.synchronize()
	}
}

// block compiles a `{ ... }` expression: opens a scope, compiles every
// unit per spec.md's Block semantics, closes the scope, and leaves the
// block's value on the stack.
func (c *Compiler) block() {
	c.consume(lexer.LeftBrace, "Expect '{'.")
	c.beginScope()
	c.blockBody()
	c.endBlockScope()
}

// endBlockScope closes a block's scope while keeping the block's value:
// if the block declared locals, the value is parked in the VM's reserve
// slot while those locals are popped, then pushed back on top.
func (c *Compiler) endBlockScope() {
	if c.fn.localCount > 0 && c.fn.locals[c.fn.localCount-1].depth >= c.fn.scopeDepth {
		c.emitOp(chunk.OpSetReserve)
		c.endScope()
		c.emitOp(chunk.OpGetReserve)
		return
	}
	c.endScope()
}

func (c *Compiler) blockBody() {
	emittedValue := c.unitSequence(lexer.RightBrace)
	c.consume(lexer.RightBrace, "Expect '}' after block.")
	if !emittedValue {
		c.emitOp(chunk.OpNil)
	}
}

// unitSequence compiles units until stop (RightBrace for a block body,
// EOF for the top-level script), consuming each unit's trailing `;` (if
// any) and popping every value but the last — spec.md's block-value
// invariant, shared between blocks and the script so a bare top-level
// expression's value survives as the script's own return value (what
// the REPL prints). Reports whether the final unit's value was left
// unpopped.
func (c *Compiler) unitSequence(stop lexer.Kind) bool {
	emittedValue := false
	for !c.check(stop) && !c.check(lexer.EOF) {
		c.unit()
		emittedValue = true
		if c.match(lexer.Semicolon) {
			c.emitOp(chunk.OpPop)
			emittedValue = false
		} else if !c.check(stop) && !c.check(lexer.EOF) {
			c.emitOp(chunk.OpPop)
			emittedValue = false
		}
	}
	return emittedValue
}

// ---- var ----------------------------------------------------------------

func (c *Compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")

	if c.match(lexer.Equal) {
		c.expression()
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.consume(lexer.Semicolon, "Expect ';' after variable declaration.")

	c.defineVariable(global)
	// Expression-oriented: leave the defined value on the stack too.
	c.namedVariableLoad(c.lastDeclaredName, false)
}

// parseVariable consumes an identifier, declares it as a local (if
// inside a scope), and returns the global-name constant index (unused
// for locals).
func (c *Compiler) parseVariable(message string) byte {
	c.consume(lexer.Identifier, message)
	name := c.previous.Lexeme
	c.lastDeclaredName = name
	c.declareVariable(name)
	if c.fn.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(name)
}

func (c *Compiler) defineVariable(global byte) {
	if c.fn.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitBytes(byte(chunk.OpDefineGlobal), global)
}

// namedVariableLoad emits the load sequence for a resolved name — used
// both by the identifier prefix rule and to re-load a just-declared
// variable's value for expression-oriented declarations.
func (c *Compiler) namedVariableLoad(name string, _ bool) {
	if slot := resolveLocal(c.fn, name); slot != -1 {
		c.emitBytes(byte(chunk.OpGetLocal), byte(slot))
		return
	}
	if idx := resolveUpvalue(c.fn, name); idx != -1 {
		c.emitBytes(byte(chunk.OpGetUpvalue), byte(idx))
		return
	}
	c.emitBytes(byte(chunk.OpGetGlobal), c.identifierConstant(name))
}

// ---- function declarations ------------------------------------------------

func (c *Compiler) namedFunctionDeclaration() {
	c.consume(lexer.Identifier, "Expect function name.")
	name := c.previous.Lexeme
	c.lastDeclaredName = name
	c.declareVariable(name)
	global := byte(0)
	if c.fn.scopeDepth == 0 {
		global = c.identifierConstant(name)
	}
	if c.fn.scopeDepth > 0 {
		c.markInitialized()
	}
	// function()'s CLOSURE push lands directly in this local's stack
	// slot (no explicit SET_LOCAL needed) when fn.scopeDepth > 0,
	// mirroring clox's local-function-declaration trick.
	c.function(typeFunction, name)
	if c.fn.scopeDepth == 0 {
		c.emitBytes(byte(chunk.OpDefineGlobal), global)
	}
	c.namedVariableLoad(name, false)
}

// function compiles a function's parameter list and body into a fresh
// funcState, then emits CLOSURE plus its upvalue descriptor bytes.
func (c *Compiler) function(kind functionType, name string) {
	enclosing := c.fn
	fs := &funcState{enclosing: enclosing, kind: kind, function: c.heap.NewFunction()}
	c.heap.PushCompileRoot(fs.function)
	defer c.heap.PopCompileRoot()
	fs.function.Name = c.heap.InternString(name)
	if kind == typeMethod || kind == typeInitializer {
		fs.locals[0] = local{name: "this", depth: 0}
	} else {
		fs.locals[0] = local{name: "", depth: 0}
	}
	fs.localCount = 1
	c.fn = fs

	c.beginScope()
	c.consume(lexer.LeftParen, "Expect '(' after function name.")
	if !c.check(lexer.RightParen) {
		for {
			fs.function.Arity++
			if fs.function.Arity > 255 {
				c.errorAtCurrent("Can't have more than 255 parameters.")
			}
			paramConst := c.parseVariable("Expect parameter name.")
			c.defineVariable(paramConst)
			if !c.match(lexer.Comma) {
				break
			}
		}
	}
	c.consume(lexer.RightParen, "Expect ')' after parameters.")
	if c.match(lexer.FatArrow) {
		// Arrow-body sugar: `func f(x) => expr;` is `func f(x) { expr }`.
		c.expression()
		c.consume(lexer.Semicolon, "Expect ';' after expression body.")
	} else {
		c.block()
	}
	// The body above leaves its value; make that the function's
	// implicit return value.
	if kind == typeInitializer {
		c.emitOp(chunk.OpPop)
		c.emitBytes(byte(chunk.OpGetLocal), 0)
	}
	c.emitOp(chunk.OpReturn)

	fn := fs.function
	c.fn = enclosing

	idx := c.makeConstant(value.ObjValue(fn))
	c.emitBytes(byte(chunk.OpClosure), idx)
	for i := 0; i < fn.UpvalueCount; i++ {
		uv := fs.upvalues[i]
		if uv.isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(uv.index)
	}
}

// ---- class declarations ---------------------------------------------------

func (c *Compiler) classDeclaration() {
	c.consume(lexer.Identifier, "Expect class name.")
	name := c.previous.Lexeme
	c.lastDeclaredName = name
	nameConst := c.identifierConstant(name)
	c.declareVariable(name)

	c.emitBytes(byte(chunk.OpClass), nameConst)
	if c.fn.scopeDepth > 0 {
		c.markInitialized()
	} else {
		c.emitBytes(byte(chunk.OpDefineGlobal), nameConst)
	}

	cls := &classState{enclosing: c.class}
	c.class = cls

	if c.match(lexer.Less) {
		c.consume(lexer.Identifier, "Expect superclass name.")
		superName := c.previous.Lexeme
		if superName == name {
			c.error("A class can't inherit from itself.")
		}
		c.namedVariableLoad(superName, false)

		c.beginScope()
		c.addLocal("super")
		c.markInitialized()

		c.namedVariableLoad(name, false)
		c.emitOp(chunk.OpInherit)
		cls.hasSuperclass = true
	}

	c.namedVariableLoad(name, false)
	c.consume(lexer.LeftBrace, "Expect '{' before class body.")
	for !c.check(lexer.RightBrace) && !c.check(lexer.EOF) {
		c.method()
	}
	c.consume(lexer.RightBrace, "Expect '}' after class body.")
	c.emitOp(chunk.OpPop) // the class value pushed for METHOD binding

	if cls.hasSuperclass {
		c.endScope()
	}
	c.class = cls.enclosing

	c.namedVariableLoad(name, false)
}

func (c *Compiler) method() {
	c.consume(lexer.Identifier, "Expect method name.")
	name := c.previous.Lexeme
	nameConst := c.identifierConstant(name)

	kind := typeMethod
	if name == "init" {
		kind = typeInitializer
	}
	c.function(kind, name)
	c.emitBytes(byte(chunk.OpMethod), nameConst)
}

// ---- control flow ---------------------------------------------------------

func (c *Compiler) ifConstruct() {
	c.expression()
	thenJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.block()
	elseJump := c.emitJump(chunk.OpJump)
	c.patchJump(thenJump)
	c.emitOp(chunk.OpPop)
	if c.match(lexer.Else) {
		if c.check(lexer.If) {
			c.advance()
			c.ifConstruct()
		} else {
			c.block()
		}
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileConstruct() {
	c.emitOp(chunk.OpNil) // placeholder value of the loop expression
	loopStart := len(c.currentChunk().Code)
	c.expression()
	exitJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop) // condition
	c.emitOp(chunk.OpPop) // previous value (placeholder or last iteration's)
	c.block()
	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	c.emitOp(chunk.OpPop) // condition
}

func (c *Compiler) forConstruct() {
	// resultSlot holds the for-loop's own expression value (nil if the
	// iterable is empty, else the last iteration's body value) — the
	// same "placeholder, replaced each pass" trick whileConstruct uses,
	// but via a named local rather than bare stack position, since the
	// iterable/index pair sits between this slot and the body's value.
	// It's declared in the enclosing scope (before beginScope) so the
	// loop's own endScope doesn't reclaim it.
	c.addLocal("")
	resultSlot := c.fn.localCount - 1
	c.fn.locals[resultSlot].depth = c.fn.scopeDepth
	c.emitOp(chunk.OpNil)

	c.beginScope()
	c.consume(lexer.Identifier, "Expect loop variable name.")
	elemName := c.previous.Lexeme
	c.addLocal(elemName)
	c.emitOp(chunk.OpNil)
	c.markInitialized()
	elemSlot := c.fn.localCount - 1

	c.consume(lexer.In, "Expect 'in' after loop variable.")
	c.expression()
	c.emitByte(byte(chunk.OpInt))
	c.emitByte(0) // iteration index, starts at 0

	loopStart := len(c.currentChunk().Code)
	exitJump := c.emitJump(chunk.OpNextJump)
	c.emitBytes(byte(chunk.OpSetLocal), byte(elemSlot))
	c.emitOp(chunk.OpPop)
	c.block()
	c.emitBytes(byte(chunk.OpSetLocal), byte(resultSlot))
	c.emitOp(chunk.OpPop)
	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	c.endScope()
	// resultSlot is a permanent local (like any local declared in the
	// enclosing scope), not a transient unit value — push a copy for
	// unitSequence to treat as this unit's value, the same way
	// varDeclaration reloads its just-defined variable instead of
	// letting the declaration's own stack slot double as the unit
	// value. Leaving resultSlot's own slot untouched keeps localCount
	// in sync with the stack regardless of whether this copy gets
	// popped (another unit follows) or kept (for is the last unit).
	c.emitBytes(byte(chunk.OpGetLocal), byte(resultSlot))
}

func (c *Compiler) returnStatement() {
	if c.fn.kind == typeScript {
		c.error("Can't return from top-level code.")
	}
	if c.match(lexer.Semicolon) {
		c.emitReturnNil()
		return
	}
	if c.fn.kind == typeInitializer {
		c.error("Can't return a value from an initializer.")
	}
	c.expression()
	c.consume(lexer.Semicolon, "Expect ';' after return value.")
	c.emitOp(chunk.OpReturn)
}

func (c *Compiler) emitReturnNil() {
	if c.fn.kind == typeInitializer {
		c.emitBytes(byte(chunk.OpGetLocal), 0)
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.emitOp(chunk.OpReturn)
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(lexer.Semicolon, "Expect ';' after value.")
	c.emitOp(chunk.OpPrint)
	// OpPrint pops its operand and produces no value of its own; push
	// nil so print still satisfies every unit's one-value invariant.
	c.emitOp(chunk.OpNil)
}

// importStatement compiles `import "path" as alias;`, binding alias as
// a global holding the loaded module's object (internal/module resolves
// the path at runtime via OP_IMPORT — SPEC_FULL.md's import supplement).
func (c *Compiler) importStatement() {
	c.consume(lexer.String, "Expect module path string after 'import'.")
	path := c.previous.Lexeme
	pathConst := c.makeConstant(value.ObjValue(c.heap.InternString(path)))

	c.consume(lexer.As, "Expect 'as' after module path.")
	c.consume(lexer.Identifier, "Expect alias name after 'as'.")
	alias := c.previous.Lexeme
	c.lastDeclaredName = alias
	aliasConst := c.identifierConstant(alias)
	c.declareVariable(alias)

	c.consume(lexer.Semicolon, "Expect ';' after import.")

	c.emitBytes(byte(chunk.OpImport), aliasConst)
	c.emitByte(pathConst)
	if c.fn.scopeDepth > 0 {
		c.markInitialized()
	} else {
		c.emitBytes(byte(chunk.OpDefineGlobal), aliasConst)
	}
	c.namedVariableLoad(alias, false)
}
