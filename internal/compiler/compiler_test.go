package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravenlang/raven/internal/chunk"
	"github.com/ravenlang/raven/internal/value"
)

// fakeHeap satisfies Heap without needing a live VM: compile-time
// constants never need to be GC-tracked until a VM actually runs them.
type fakeHeap struct {
	strings map[string]*value.ObjString
}

func newFakeHeap() *fakeHeap { return &fakeHeap{strings: make(map[string]*value.ObjString)} }

func (h *fakeHeap) InternString(s string) *value.ObjString {
	if o, ok := h.strings[s]; ok {
		return o
	}
	o := &value.ObjString{Chars: s, Hash: value.FNV1a32(s)}
	h.strings[s] = o
	return o
}

func (h *fakeHeap) NewFunction() *value.ObjFunction { return &value.ObjFunction{} }

// PushCompileRoot/PopCompileRoot are no-ops here: fakeHeap never
// collects, so there's nothing for a compile-time root to protect.
func (h *fakeHeap) PushCompileRoot(fn *value.ObjFunction) {}
func (h *fakeHeap) PopCompileRoot()                        {}

func compileOK(t *testing.T, src string) *value.ObjFunction {
	t.Helper()
	fn, errs := Compile(src, newFakeHeap())
	require.Empty(t, errs, "compile errors: %v", errs)
	require.NotNil(t, fn)
	return fn
}

func opcodes(fn *value.ObjFunction) []chunk.OpCode {
	var ops []chunk.OpCode
	code := fn.Chunk.Code
	i := 0
	for i < len(code) {
		op := chunk.OpCode(code[i])
		ops = append(ops, op)
		i += 1 + operandWidth(op, fn, i)
	}
	return ops
}

// operandWidth mirrors disasm.go's per-opcode operand byte counts, so
// tests can walk the instruction stream without re-decoding operands.
func operandWidth(op chunk.OpCode, fn *value.ObjFunction, offset int) int {
	switch op {
	case chunk.OpConstant, chunk.OpGetGlobal, chunk.OpDefineGlobal, chunk.OpSetGlobal,
		chunk.OpGetProperty, chunk.OpSetProperty, chunk.OpGetSuper, chunk.OpClass, chunk.OpMethod,
		chunk.OpGetLocal, chunk.OpSetLocal, chunk.OpGetUpvalue, chunk.OpSetUpvalue,
		chunk.OpInt, chunk.OpList, chunk.OpDict, chunk.OpCall:
		return 1
	case chunk.OpInvoke, chunk.OpSuperInvoke:
		return 2
	case chunk.OpJump, chunk.OpJumpIfFalse, chunk.OpLoop, chunk.OpNextJump:
		return 2
	case chunk.OpImport:
		return 2
	case chunk.OpClosure:
		idx := fn.Chunk.Code[offset+1]
		fnVal := fn.Chunk.Constants[idx]
		n := 0
		if inner, ok := fnVal.AsObj().(*value.ObjFunction); ok {
			n = inner.UpvalueCount
		}
		return 1 + n*2
	default:
		return 0
	}
}

func TestCompileNumberLiteral(t *testing.T) {
	fn := compileOK(t, "42;")
	ops := opcodes(fn)
	// Trailing ';' pops the literal; the script has no other unit left
	// to carry forward, so Compile pads a nil result before returning.
	assert.Equal(t, []chunk.OpCode{chunk.OpConstant, chunk.OpPop, chunk.OpNil, chunk.OpReturn}, ops)
	assert.Equal(t, value.NumberValue(42), fn.Chunk.Constants[0])
}

func TestCompileVarDeclarationReloadsValue(t *testing.T) {
	// Top-level `var x = 1;` is itself an expression-oriented unit: it
	// defines the global then reloads it. var consumes its own trailing
	// ';' internally, so as the script's only unit its reloaded value is
	// never popped — it becomes the script's own result.
	fn := compileOK(t, "var x = 1;")
	ops := opcodes(fn)
	assert.Equal(t, []chunk.OpCode{
		chunk.OpConstant, chunk.OpDefineGlobal, chunk.OpGetGlobal, chunk.OpReturn,
	}, ops)
}

func TestCompileBlockLeavesTrailingValue(t *testing.T) {
	fn := compileOK(t, "{ 1; 2 };")
	ops := opcodes(fn)
	assert.Equal(t, []chunk.OpCode{
		chunk.OpConstant, chunk.OpPop, chunk.OpConstant, chunk.OpPop,
		chunk.OpNil, chunk.OpReturn,
	}, ops)
}

func TestCompileEmptyBlockYieldsNil(t *testing.T) {
	fn := compileOK(t, "{};")
	ops := opcodes(fn)
	assert.Equal(t, []chunk.OpCode{chunk.OpNil, chunk.OpPop, chunk.OpNil, chunk.OpReturn}, ops)
}

func TestCompileSomeAndNone(t *testing.T) {
	fn := compileOK(t, "some 1;")
	assert.Equal(t, []chunk.OpCode{chunk.OpConstant, chunk.OpSome, chunk.OpPop, chunk.OpNil, chunk.OpReturn}, opcodes(fn))

	fn = compileOK(t, "none;")
	assert.Equal(t, []chunk.OpCode{chunk.OpNone, chunk.OpPop, chunk.OpNil, chunk.OpReturn}, opcodes(fn))

	fn = compileOK(t, "nil;")
	assert.Equal(t, []chunk.OpCode{chunk.OpNil, chunk.OpPop, chunk.OpNil, chunk.OpReturn}, opcodes(fn))
}

func TestCompileArrowFunctionSugar(t *testing.T) {
	fn := compileOK(t, "func double(x) => x * 2;")
	ops := opcodes(fn)
	// declare local slot 0 (script receiver), CLOSURE for double, reload.
	assert.Contains(t, ops, chunk.OpClosure)
	assert.Contains(t, ops, chunk.OpGetGlobal)
}

func TestCompileDictLiteralSoftKeyword(t *testing.T) {
	fn := compileOK(t, `dict { "a": 1 };`)
	ops := opcodes(fn)
	assert.Contains(t, ops, chunk.OpDict)
}

func TestCompileDictAsPlainIdentifierWithoutBrace(t *testing.T) {
	// Without a following '{', `dict` is just an (undefined) identifier
	// reference, proving the soft-keyword dispatch is lookahead-gated.
	fn := compileOK(t, "dict;")
	ops := opcodes(fn)
	assert.Equal(t, []chunk.OpCode{chunk.OpGetGlobal, chunk.OpPop, chunk.OpNil, chunk.OpReturn}, ops)
}

func TestCompileForInEmitsNextJumpProtocol(t *testing.T) {
	fn := compileOK(t, `for x in [1, 2, 3] { x };`)
	ops := opcodes(fn)
	assert.Contains(t, ops, chunk.OpNextJump)
	assert.Contains(t, ops, chunk.OpLoop)
	assert.Contains(t, ops, chunk.OpList)
	// Two SET_LOCAL targets: the loop variable each pass, and the
	// for-loop's own carried result value.
	count := 0
	for _, op := range ops {
		if op == chunk.OpSetLocal {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestCompileForLoopAsNonTerminalUnitIsPopped(t *testing.T) {
	// A for-loop followed by another unit must itself be popped like any
	// other unit's value, proving it leaves exactly one value behind
	// rather than under- or over-balancing the stack.
	fn := compileOK(t, `for x in [1] { x } 2;`)
	ops := opcodes(fn)
	require.Contains(t, ops, chunk.OpLoop)
	// last three ops: the trailing literal, its pop (from the ';'), and
	// the nil pad emitted because nothing follows it as the script's
	// final value.
	assert.Equal(t, []chunk.OpCode{chunk.OpConstant, chunk.OpPop, chunk.OpNil, chunk.OpReturn}, ops[len(ops)-4:])
}

func TestCompilePrintLeavesNilValue(t *testing.T) {
	// print pops its operand and pushes nothing back at the VM level;
	// the compiler must pad a nil so print still satisfies the
	// one-value-per-unit invariant.
	fn := compileOK(t, `print "hi";`)
	ops := opcodes(fn)
	assert.Equal(t, []chunk.OpCode{chunk.OpConstant, chunk.OpPrint, chunk.OpNil, chunk.OpReturn}, ops)
}

func TestCompileBlockWithTrailingPrintYieldsNil(t *testing.T) {
	// print always consumes its own ';'; as a block's last unit, its
	// padded nil becomes the block's value rather than corrupting the
	// stack (no extra pop/pad is needed on top of print's own nil).
	fn := compileOK(t, `{ print "hi"; };`)
	ops := opcodes(fn)
	assert.Equal(t, []chunk.OpCode{
		chunk.OpConstant, chunk.OpPrint, chunk.OpNil, chunk.OpPop, chunk.OpNil, chunk.OpReturn,
	}, ops)
}

func TestCompileReportsErrorsAndYieldsNoFunction(t *testing.T) {
	fn, errs := Compile("1 +;", newFakeHeap())
	assert.Nil(t, fn)
	require.NotEmpty(t, errs)
}

func TestCompileReturnOutsideFunctionIsError(t *testing.T) {
	_, errs := Compile("return 1;", newFakeHeap())
	require.NotEmpty(t, errs)
}

func TestCompileClassWithInheritance(t *testing.T) {
	fn := compileOK(t, `
class Animal { speak() { "..." } }
class Dog < Animal { speak() { "Woof" } }
`)
	ops := opcodes(fn)
	assert.Contains(t, ops, chunk.OpInherit)
	assert.Contains(t, ops, chunk.OpMethod)
}

func TestCompileImportStatement(t *testing.T) {
	fn := compileOK(t, `import "math" as math;`)
	ops := opcodes(fn)
	assert.Contains(t, ops, chunk.OpImport)
	assert.Contains(t, ops, chunk.OpDefineGlobal)
}
