// Package compiler implements Raven's single-pass, byte-stream-emitting
// compiler (spec.md §4.3): a Pratt expression parser fused with a
// recursive-descent statement compiler that consumes tokens directly
// from internal/lexer and emits bytecode with no intermediate AST.
//
// This is the one deliberate architectural break from the teacher
// (Dev-Dami-DYMS-Lang): DYMS compiles source -> AST (ast package) ->
// bytecode (a second pass over that tree, runtime/compiler.go). spec.md
// §4.3 states the invariant outright ("Single-pass, byte-stream
// emitting. Consumes tokens from the external scanner") so the AST
// stage does not survive; see DESIGN.md. The recursive-descent
// vocabulary (expect/consume/peek, one method per grammar construct)
// is kept from DYMS's parser/parser.go.
package compiler

import (
	"github.com/ravenlang/raven/internal/chunk"
	"github.com/ravenlang/raven/internal/lexer"
	"github.com/ravenlang/raven/internal/value"
)

// Heap is the allocation surface the compiler needs from the VM: every
// string and function constant the compiler creates must be interned
// and registered with the GC's object list the same way the VM's own
// runtime allocations are, so a compile-time constant never dangles
// relative to a later collection. Implemented by *vm.VM.
type Heap interface {
	InternString(s string) *value.ObjString
	NewFunction() *value.ObjFunction
	// PushCompileRoot/PopCompileRoot register the ObjFunction currently
	// being assembled as a GC root for as long as it's reachable only
	// from compiler state (see internal/vm's gc.go markRoots).
	PushCompileRoot(fn *value.ObjFunction)
	PopCompileRoot()
}

const (
	maxLocals   = 256
	maxUpvalues = 256
)

type functionType int

const (
	typeFunction functionType = iota
	typeMethod
	typeInitializer
	typeScript
)

type local struct {
	name       string
	depth      int
	isCaptured bool
}

type upvalueDesc struct {
	index   byte
	isLocal bool
}

// funcState is one function's worth of compiler state: the chunk it is
// emitting into, its locals, its upvalue descriptors, and a link to the
// enclosing function compiler (for upvalue resolution).
type funcState struct {
	enclosing *funcState
	function  *value.ObjFunction
	kind      functionType

	locals     [maxLocals]local
	localCount int
	upvalues   [maxUpvalues]upvalueDesc
	scopeDepth int
}

// classState tracks the class currently being compiled, for `super`
// resolution and self-inheritance checks.
type classState struct {
	enclosing     *classState
	hasSuperclass bool
}

// Compiler drives single-pass compilation of one source file (or REPL
// line) into a root ObjFunction.
type Compiler struct {
	scanner *lexer.Scanner
	heap    Heap

	current  lexer.Token
	previous lexer.Token
	pending  lexer.Token
	havePending bool

	hadError  bool
	panicMode bool
	errors    []*CompileError

	fn    *funcState
	class *classState

	// lastDeclaredName tracks the identifier most recently declared by
	// varDeclaration/namedFunctionDeclaration, so the expression-oriented
	// declaration can reload its value as the unit's result.
	lastDeclaredName string
}

// Compile compiles source into a root script function ("<script>",
// arity 0). Errors are returned as a slice; fn is nil if compilation
// failed (spec.md §7: "compile errors cause compile to yield no
// function").
func Compile(source string, heap Heap) (*value.ObjFunction, []*CompileError) {
	c := &Compiler{scanner: lexer.New(source), heap: heap}
	c.fn = &funcState{function: heap.NewFunction(), kind: typeScript}
	heap.PushCompileRoot(c.fn.function)
	defer heap.PopCompileRoot()
	// slot 0 is reserved for the receiver/script value in every frame.
	c.fn.locals[0] = local{name: "", depth: 0}
	c.fn.localCount = 1

	c.advance()
	if !c.unitSequence(lexer.EOF) {
		c.emitOp(chunk.OpNil)
	}
	c.emitOp(chunk.OpReturn)

	fn := c.fn.function
	if c.hadError {
		return nil, c.errors
	}
	return fn, nil
}

// ---- token stream management -------------------------------------------------

func (c *Compiler) advance() {
	c.previous = c.current
	if c.havePending {
		c.current = c.pending
		c.havePending = false
	} else {
		c.current = c.scanToken()
	}
}

func (c *Compiler) scanToken() lexer.Token {
	for {
		tok := c.scanner.NextToken()
		if tok.Kind != lexer.Error {
			return tok
		}
		c.errorAt(tok, tok.Lexeme)
	}
}

// peekNextKind looks one token past current without consuming it.
func (c *Compiler) peekNextKind() lexer.Kind {
	if !c.havePending {
		c.pending = c.scanToken()
		c.havePending = true
	}
	return c.pending.Kind
}

func (c *Compiler) check(k lexer.Kind) bool { return c.current.Kind == k }

func (c *Compiler) match(k lexer.Kind) bool {
	if !c.check(k) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(k lexer.Kind, message string) {
	if c.current.Kind == k {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

// ---- error reporting & panic mode -------------------------------------------

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.current, msg) }
func (c *Compiler) error(msg string)          { c.errorAt(c.previous, msg) }

func (c *Compiler) errorAt(tok lexer.Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	where := tok.Lexeme
	if tok.Kind == lexer.EOF {
		where = "end"
	} else if tok.Kind == lexer.Error {
		where = ""
	}
	c.errors = append(c.errors, &CompileError{Line: tok.Line, Where: where, Message: msg})
	c.hadError = true
}

// synchronize suppresses further errors until a statement boundary
// (`;` or a statement-introducer keyword), per spec.md §4.3 panic mode.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.current.Kind != lexer.EOF {
		if c.previous.Kind == lexer.Semicolon {
			return
		}
		switch c.current.Kind {
		case lexer.Class, lexer.Func, lexer.Var, lexer.For, lexer.If,
			lexer.While, lexer.Print, lexer.Return:
			return
		}
		c.advance()
	}
}

// ---- bytecode emission helpers ----------------------------------------------

func (c *Compiler) currentChunk() *chunk.Chunk { return &c.fn.function.Chunk }

func (c *Compiler) emitByte(b byte) {
	chunk.Write(c.currentChunk(), b, c.previous.Line)
}

func (c *Compiler) emitBytes(a, b byte) {
	c.emitByte(a)
	c.emitByte(b)
}

func (c *Compiler) emitOp(op chunk.OpCode) { c.emitByte(byte(op)) }

func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(chunk.OpLoop)
	offset := len(c.currentChunk().Code) - loopStart + 2
	if offset > 0xFFFF {
		c.error("Loop body too large.")
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset & 0xFF))
}

// emitJump emits op followed by a two-byte placeholder, returning the
// offset of the placeholder's first byte for later patching.
func (c *Compiler) emitJump(op chunk.OpCode) int {
	c.emitOp(op)
	c.emitByte(0xFF)
	c.emitByte(0xFF)
	return len(c.currentChunk().Code) - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := len(c.currentChunk().Code) - offset - 2
	if jump > 0xFFFF {
		c.error("Too much code to jump over.")
	}
	c.currentChunk().Code[offset] = byte(jump >> 8)
	c.currentChunk().Code[offset+1] = byte(jump & 0xFF)
}

func (c *Compiler) makeConstant(v value.Value) byte {
	idx, err := chunk.AddConstant(c.currentChunk(), v)
	if err != nil {
		c.error(err.Error())
		return 0
	}
	return byte(idx)
}

func (c *Compiler) identifierConstant(name string) byte {
	return c.makeConstant(value.ObjValue(c.heap.InternString(name)))
}

// ---- scopes, locals, upvalues ------------------------------------------------

func (c *Compiler) beginScope() { c.fn.scopeDepth++ }

func (c *Compiler) endScope() {
	c.fn.scopeDepth--
	for c.fn.localCount > 0 && c.fn.locals[c.fn.localCount-1].depth > c.fn.scopeDepth {
		if c.fn.locals[c.fn.localCount-1].isCaptured {
			c.emitOp(chunk.OpCloseUpvalue)
		} else {
			c.emitOp(chunk.OpPop)
		}
		c.fn.localCount--
	}
}

func (c *Compiler) addLocal(name string) {
	if c.fn.localCount >= maxLocals {
		c.error("Too many local variables in function.")
		return
	}
	c.fn.locals[c.fn.localCount] = local{name: name, depth: -1}
	c.fn.localCount++
}

func (c *Compiler) declareVariable(name string) {
	if c.fn.scopeDepth == 0 {
		return
	}
	for i := c.fn.localCount - 1; i >= 0; i-- {
		l := c.fn.locals[i]
		if l.depth != -1 && l.depth < c.fn.scopeDepth {
			break
		}
		if l.name == name {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

func (c *Compiler) markInitialized() {
	if c.fn.scopeDepth == 0 {
		return
	}
	c.fn.locals[c.fn.localCount-1].depth = c.fn.scopeDepth
}

// resolveLocal returns the slot of a local named `name` in fs, or -1.
func resolveLocal(fs *funcState, name string) int {
	for i := fs.localCount - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			if fs.locals[i].depth == -1 {
				return -1
			}
			return i
		}
	}
	return -1
}

func addUpvalue(fs *funcState, index byte, isLocal bool) int {
	for i := 0; i < fs.function.UpvalueCount; i++ {
		uv := fs.upvalues[i]
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if fs.function.UpvalueCount >= maxUpvalues {
		return -1
	}
	fs.upvalues[fs.function.UpvalueCount] = upvalueDesc{index: index, isLocal: isLocal}
	n := fs.function.UpvalueCount
	fs.function.UpvalueCount++
	return n
}

// resolveUpvalue recurses into enclosing function compilers, recording
// a chain of upvalue descriptors, and marks captured locals along the
// way (spec.md §4.3).
func resolveUpvalue(fs *funcState, name string) int {
	if fs.enclosing == nil {
		return -1
	}
	if slot := resolveLocal(fs.enclosing, name); slot != -1 {
		fs.enclosing.locals[slot].isCaptured = true
		return addUpvalue(fs, byte(slot), true)
	}
	if idx := resolveUpvalue(fs.enclosing, name); idx != -1 {
		return addUpvalue(fs, byte(idx), false)
	}
	return -1
}
