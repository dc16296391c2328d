package vm

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravenlang/raven/internal/module"
)

func newTestVM(t *testing.T) *VM {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return New(Config{Log: log})
}

func interpretOK(t *testing.T, vmInst *VM, src string) string {
	t.Helper()
	result, rerr, errs := vmInst.Interpret(src)
	require.Empty(t, errs, "compile errors: %v", errs)
	require.Nil(t, rerr, "runtime error: %v", rerr)
	return result.String()
}

func TestInterpretArithmeticPrecedence(t *testing.T) {
	v := newTestVM(t)
	assert.Equal(t, "7", interpretOK(t, v, "1 + 2 * 3"))
}

func TestInterpretStringConcatenation(t *testing.T) {
	v := newTestVM(t)
	assert.Equal(t, "helloworld", interpretOK(t, v, `"hello" + "world"`))
}

func TestInterpretRecursiveFactorial(t *testing.T) {
	v := newTestVM(t)
	_, rerr, errs := v.Interpret(`
func fact(n) {
  if n <= 1 { 1 } else { n * fact(n - 1) }
};
`)
	require.Empty(t, errs)
	require.Nil(t, rerr)
	assert.Equal(t, "120", interpretOK(t, v, "fact(5)"))
}

func TestInterpretClosureCapturesMutatedUpvalue(t *testing.T) {
	v := newTestVM(t)
	_, rerr, errs := v.Interpret(`
func makeCounter() {
  var count = 0;
  func increment() {
    count = count + 1;
    count
  }
  increment
};
`)
	require.Empty(t, errs)
	require.Nil(t, rerr)
	interpretOK(t, v, "var counter = makeCounter();")
	assert.Equal(t, "1", interpretOK(t, v, "counter()"))
	assert.Equal(t, "2", interpretOK(t, v, "counter()"))
	assert.Equal(t, "3", interpretOK(t, v, "counter()"))
}

func TestInterpretSingleInheritanceAndBoundMethods(t *testing.T) {
	v := newTestVM(t)
	src := `
class Animal {
  speak() { "..." }
  describe() { this.speak() }
}
class Dog < Animal {
  speak() { "Woof" }
}
var d = Dog();
d.describe()
`
	assert.Equal(t, "Woof", interpretOK(t, v, src))
}

func TestInterpretListAppendLengthIndex(t *testing.T) {
	v := newTestVM(t)
	src := `
var xs = [1, 2, 3];
xs.append(4);
xs[3] + xs.length()
`
	assert.Equal(t, "8", interpretOK(t, v, src))
}

func TestInterpretListAppendReturnsAppendedValue(t *testing.T) {
	v := newTestVM(t)
	// append mutates and returns the appended value, not the receiver
	// list, so binding its result should see the element, not [1, 2, 4].
	src := `
var xs = [1, 2];
var r = xs.append(4);
r
`
	assert.Equal(t, "4", interpretOK(t, v, src))
}

func TestInterpretStringIterationForIn(t *testing.T) {
	v := newTestVM(t)
	src := `
var out = "";
for ch in "abc" {
  out = out + ch
}
out
`
	assert.Equal(t, "abc", interpretOK(t, v, src))
}

func TestInterpretForLoopYieldsLastBodyValue(t *testing.T) {
	v := newTestVM(t)
	assert.Equal(t, "3", interpretOK(t, v, "for x in [1, 2, 3] { x }"))
}

func TestInterpretForLoopOverEmptyListYieldsNil(t *testing.T) {
	v := newTestVM(t)
	assert.Equal(t, "nil", interpretOK(t, v, "for x in [] { x }"))
}

func TestInterpretForLoopThenLocalReadsCorrectSlot(t *testing.T) {
	v := newTestVM(t)
	// The for-loop's resultSlot is a permanent local, not the unit's
	// value itself; when another unit follows in the same scope it must
	// be popped without leaving localCount out of sync with the real
	// stack height, or x below gets mis-addressed to a stale slot.
	src := `
func f() {
  for a in [1] { a }
  var x = 9;
  x
}
f()
`
	assert.Equal(t, "9", interpretOK(t, v, src))
}

func TestInterpretConsecutiveForLoopsDoNotCorruptLocals(t *testing.T) {
	v := newTestVM(t)
	// Two for-loops sharing a scope: if the first loop's resultSlot
	// desyncs localCount, the second loop's elemSlot addressing shifts
	// by one and clobbers the iterable it just loaded.
	src := `
func f() {
  for a in [1] {}
  for b in [2] { b }
}
f()
`
	assert.Equal(t, "2", interpretOK(t, v, src))
}

func TestInterpretOptionSomeNoneUnwrap(t *testing.T) {
	v := newTestVM(t)
	// some binds at unary precedence, looser than call/dot, so the
	// wrapped value needs parens before invoking a member on the Option.
	assert.Equal(t, "5", interpretOK(t, v, "(some(5)).unwrap()"))
	assert.Equal(t, "false", interpretOK(t, v, "none.isSome()"))
}

func TestInterpretDictLiteralAndHas(t *testing.T) {
	v := newTestVM(t)
	src := `
var d = dict { "a": 1, "b": 2 };
d.has("a")
`
	assert.Equal(t, "true", interpretOK(t, v, src))
}

func TestInterpretImportSharesModuleGlobals(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/mod.rvn", []byte(`var PI = 3;`), 0o644))

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	v := New(Config{Log: log, Resolver: module.NewResolver(fs, "/")})

	src := `
import "mod" as m;
m.PI
`
	assert.Equal(t, "3", interpretOK(t, v, src))
}

func TestInterpretImportedFunctionIsInvokable(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/geo.rvn", []byte(`func square(n) { n * n };`), 0o644))

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	v := New(Config{Log: log, Resolver: module.NewResolver(fs, "/")})

	src := `
import "geo" as geo;
geo.square(6)
`
	assert.Equal(t, "36", interpretOK(t, v, src))
}

func TestInterpretImportIsCachedAcrossRepeatedImports(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/once.rvn", []byte(`var n = clock();`), 0o644))

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	v := New(Config{Log: log, Resolver: module.NewResolver(fs, "/")})

	src := `
import "once" as a;
import "once" as b;
a.n == b.n
`
	assert.Equal(t, "true", interpretOK(t, v, src))
}

// ---- error scenarios --------------------------------------------------------

func TestInterpretTypeMismatchRuntimeError(t *testing.T) {
	v := newTestVM(t)
	_, rerr, errs := v.Interpret(`1 + "a";`)
	require.Empty(t, errs)
	require.NotNil(t, rerr)
	assert.Contains(t, rerr.Error(), "Operands must be two numbers or two strings.")
}

func TestInterpretListIndexOutOfBounds(t *testing.T) {
	v := newTestVM(t)
	_, rerr, errs := v.Interpret(`[1, 2][5];`)
	require.Empty(t, errs)
	require.NotNil(t, rerr)
	assert.Contains(t, rerr.Error(), "out of bounds")
}

func TestInterpretWrongArgumentCount(t *testing.T) {
	v := newTestVM(t)
	_, rerr, errs := v.Interpret(`
func f(a, b) { a + b }
f(1);
`)
	require.Empty(t, errs)
	require.NotNil(t, rerr)
	assert.Contains(t, rerr.Error(), "Expected 2 arguments but got 1.")
}

func TestInterpretUnwrapOnNoneIsError(t *testing.T) {
	v := newTestVM(t)
	_, rerr, errs := v.Interpret(`none.unwrap();`)
	require.Empty(t, errs)
	require.NotNil(t, rerr)
	assert.Contains(t, rerr.Error(), "Cannot unwrap none.")
}

func TestInterpretDivisionByZero(t *testing.T) {
	v := newTestVM(t)
	_, rerr, errs := v.Interpret(`1 / 0;`)
	require.Empty(t, errs)
	require.NotNil(t, rerr)
	assert.Contains(t, rerr.Error(), "Division by zero.")
}

func TestInterpretReportIncludesFrameTrace(t *testing.T) {
	v := newTestVM(t)
	_, rerr, errs := v.Interpret(`
func boom() { 1 / 0 }
boom();
`)
	require.Empty(t, errs)
	require.NotNil(t, rerr)
	assert.Contains(t, rerr.Report(), "[line")
}

// ---- GC --------------------------------------------------------------------

func TestInterpretSurvivesStressGC(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	v := New(Config{Log: log, StressGC: true})
	src := `
func fib(n) {
  if n <= 1 { n } else { fib(n - 1) + fib(n - 2) }
};
fib(10)
`
	assert.Equal(t, "55", interpretOK(t, v, src))
}

func TestStringInterningIdentity(t *testing.T) {
	v := newTestVM(t)
	a := v.InternString("shared")
	b := v.InternString("shared")
	assert.True(t, a == b, "equal-content strings must share one ObjString")
}

func TestStressGCDoesNotFreeReachableGlobals(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	v := New(Config{Log: log, StressGC: true})
	_, rerr, errs := v.Interpret(`var xs = [1, 2, 3];`)
	require.Empty(t, errs)
	require.Nil(t, rerr)
	// every allocation past this point stress-collects; xs must remain
	// reachable via globals throughout.
	assert.Equal(t, "3", interpretOK(t, v, "xs.length()"))
}
