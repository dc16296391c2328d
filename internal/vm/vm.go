// Package vm implements Raven's stack-based bytecode interpreter
// (spec.md §4.5/§5): a single flat dispatch loop over call frames, a
// fixed-capacity value stack, globals/string-intern hash tables, and a
// tracing garbage collector over the heap object graph.
//
// Grounded on DYMS's runtime/vm.go (frame-slice dispatch loop, push/pop
// helpers, switch-on-opcode body) generalized from DYMS's untyped-stack,
// no-closures design to spec.md's full call-frame/closure/class model.
package vm

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/ravenlang/raven/internal/chunk"
	"github.com/ravenlang/raven/internal/compiler"
	"github.com/ravenlang/raven/internal/module"
	"github.com/sirupsen/logrus"

	"github.com/ravenlang/raven/internal/value"
)

const (
	framesMax = 64
	stackMax  = framesMax * 256
)

// frame is one call's view of the stack and instruction pointer.
// Grounded on DYMS's runtime/vm.go frame struct, generalized from a
// bare function pointer to a closure (for upvalue access).
type frame struct {
	closure *value.ObjClosure
	ip      int
	base    int // stack index of local slot 0 for this call
}

func (f *frame) chunk() *value.Chunk { return &f.closure.Function.Chunk }

// VM is Raven's execution engine: one per running script/REPL session.
type VM struct {
	stack  [stackMax]value.Value
	sp     int
	frames [framesMax]frame
	frameCount int

	globals *value.Table
	strings *value.Table // interning table, keyed by string content

	builtins builtinTables

	initString *value.ObjString
	none       *value.ObjOption
	openUpvalues *value.ObjUpvalue

	reserve value.Value

	// GC bookkeeping (spec.md §5's tracing collector).
	objects        value.Obj
	bytesAllocated int // number of tracked objects (one per track call), not a byte count
	nextGC         int
	growthFactor   float64
	stressGC       bool
	grayStack      []value.Obj

	kill bool

	log *logrus.Logger

	resolver *module.Resolver
	modules  map[string]*value.ObjModule

	// compilerRoots holds the ObjFunctions a live Compile call is still
	// assembling (one per nested function being parsed), reachable from
	// no other root while under construction. track() can trigger a
	// collection mid-compile under --stress-gc, so these are marked
	// alongside the VM's own roots (spec.md §4.6 step 2).
	compilerRoots []*value.ObjFunction
}

// Config tunes GC pacing (internal/config's viper-backed settings) and
// wires the filesystem imports resolve against.
type Config struct {
	InitialGCThreshold int
	GCGrowthFactor     float64
	StressGC           bool
	Log                *logrus.Logger
	Resolver           *module.Resolver
}

func New(cfg Config) *VM {
	if cfg.InitialGCThreshold == 0 {
		cfg.InitialGCThreshold = 1 << 20 // counted in tracked objects, not bytes
	}
	if cfg.GCGrowthFactor == 0 {
		cfg.GCGrowthFactor = 2
	}
	if cfg.Log == nil {
		cfg.Log = logrus.New()
	}
	vm := &VM{
		globals:      value.NewTable(),
		strings:      value.NewTable(),
		nextGC:       cfg.InitialGCThreshold,
		growthFactor: cfg.GCGrowthFactor,
		stressGC:     cfg.StressGC,
		log:          cfg.Log,
		resolver:     cfg.Resolver,
		modules:      make(map[string]*value.ObjModule),
	}
	vm.initString = vm.InternString("init")
	vm.builtins = newBuiltinTables()
	registerNatives(vm)
	return vm
}

// ---- stack -----------------------------------------------------------------

func (vm *VM) push(v value.Value) {
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() value.Value {
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.sp-1-distance]
}

func (vm *VM) resetStack() {
	vm.sp = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

// ---- allocation / heap (implements compiler.Heap) ---------------------------

var _ compiler.Heap = (*VM)(nil)

func (vm *VM) track(o value.Obj) {
	vm.bytesAllocated++
	if vm.stressGC || vm.bytesAllocated >= vm.nextGC {
		vm.collectGarbage()
	}
	value.SetNext(o, vm.objects)
	vm.objects = o
}

// InternString returns the canonical *ObjString for s, allocating and
// registering a new one on first sight (spec.md §4.4's interning
// invariant: equal content implies identical reference).
func (vm *VM) InternString(s string) *value.ObjString {
	hash := value.FNV1a32(s)
	if existing := vm.strings.FindString(s, hash); existing != nil {
		return existing
	}
	str := &value.ObjString{Chars: s, Hash: hash}
	vm.track(str)
	vm.push(value.ObjValue(str)) // keep reachable across the Set allocation
	vm.strings.Set(value.ObjValue(str), value.BoolValue(true))
	vm.pop()
	return str
}

func (vm *VM) NewFunction() *value.ObjFunction {
	fn := &value.ObjFunction{Chunk: value.Chunk{}}
	vm.track(fn)
	return fn
}

// PushCompileRoot and PopCompileRoot let internal/compiler register the
// ObjFunction it is currently assembling as a GC root for the duration
// of that nested function's compilation, so a --stress-gc collection
// triggered mid-compile (by NewFunction or InternString) can't sweep it
// out from under the compiler before it's wired into any enclosing
// function's constant table.
func (vm *VM) PushCompileRoot(fn *value.ObjFunction) {
	vm.compilerRoots = append(vm.compilerRoots, fn)
}

func (vm *VM) PopCompileRoot() {
	vm.compilerRoots = vm.compilerRoots[:len(vm.compilerRoots)-1]
}

func (vm *VM) newClosure(fn *value.ObjFunction) *value.ObjClosure {
	cl := &value.ObjClosure{Function: fn, Upvalues: make([]*value.ObjUpvalue, fn.UpvalueCount)}
	vm.track(cl)
	return cl
}

func (vm *VM) newInstance(class *value.ObjClass) *value.ObjInstance {
	inst := &value.ObjInstance{Class: class, Fields: value.NewTable()}
	vm.track(inst)
	return inst
}

func (vm *VM) newClass(name *value.ObjString) *value.ObjClass {
	cls := &value.ObjClass{Name: name, Methods: value.NewTable()}
	vm.track(cls)
	return cls
}

func (vm *VM) newList(elems []value.Value) *value.ObjList {
	l := &value.ObjList{Elements: elems}
	vm.track(l)
	return l
}

func (vm *VM) newDict(t *value.Table) *value.ObjDict {
	d := &value.ObjDict{Table: t}
	vm.track(d)
	return d
}

func (vm *VM) newOption(hasValue bool, inner value.Value) *value.ObjOption {
	o := &value.ObjOption{HasValue: hasValue, Inner: inner}
	vm.track(o)
	return o
}

func (vm *VM) captureUpvalue(local *value.Value) *value.ObjUpvalue {
	var prev *value.ObjUpvalue
	cur := vm.openUpvalues
	for cur != nil && cur.Location != local {
		prev = cur
		cur = cur.NextOpen
	}
	if cur != nil && cur.Location == local {
		return cur
	}
	created := &value.ObjUpvalue{Location: local, NextOpen: cur}
	vm.track(created)
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	return created
}

func (vm *VM) closeUpvalues(fromSlot *value.Value) {
	for vm.openUpvalues != nil && ptrGE(vm.openUpvalues.Location, fromSlot) {
		uv := vm.openUpvalues
		uv.Closed = *uv.Location
		uv.Location = &uv.Closed
		vm.openUpvalues = uv.NextOpen
	}
}

// ptrGE orders two pointers into vm.stack by address, since Go defines
// no < or >= on pointer types directly (only == and !=).
func ptrGE(a, b *value.Value) bool {
	return uintptr(unsafe.Pointer(a)) >= uintptr(unsafe.Pointer(b))
}

// ---- call protocol -----------------------------------------------------------

func (vm *VM) runtimeError(format string, args ...interface{}) *RuntimeError {
	err := newRuntimeError(format, args...)
	for i := vm.frameCount - 1; i >= 0; i-- {
		fr := &vm.frames[i]
		line := 0
		if fr.ip-1 >= 0 && fr.ip-1 < len(fr.chunk().Lines) {
			line = fr.chunk().Lines[fr.ip-1]
		}
		name := ""
		if fr.closure.Function.Name != nil {
			name = fr.closure.Function.Name.Chars
		}
		err.Trace = append(err.Trace, TraceEntry{Line: line, Function: name})
	}
	vm.resetStack()
	return err
}

func (vm *VM) call(closure *value.ObjClosure, argc int) (*RuntimeError, bool) {
	if argc != closure.Function.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argc), false
	}
	if vm.frameCount == framesMax {
		return vm.runtimeError("Stack overflow."), false
	}
	fr := &vm.frames[vm.frameCount]
	vm.frameCount++
	fr.closure = closure
	fr.ip = 0
	fr.base = vm.sp - argc - 1
	return nil, true
}

func (vm *VM) callValue(callee value.Value, argc int) (*RuntimeError, bool) {
	if callee.IsObj() {
		switch o := callee.AsObj().(type) {
		case *value.ObjClosure:
			return vm.call(o, argc)
		case *value.ObjNative:
			return vm.callNative(o, value.NilValue(), argc, vm.sp-argc)
		case *value.ObjBoundMethod:
			vm.stack[vm.sp-argc-1] = o.Receiver
			return vm.call(o.Method, argc)
		case *value.ObjBoundNative:
			return vm.callNative(o.Native, o.Receiver, argc, vm.sp-argc)
		case *value.ObjClass:
			inst := vm.newInstance(o)
			vm.stack[vm.sp-argc-1] = value.ObjValue(inst)
			if init, ok := o.Methods.Get(value.ObjValue(vm.initString)); ok {
				return vm.call(init.AsObj().(*value.ObjClosure), argc)
			}
			if argc != 0 {
				return vm.runtimeError("Expected 0 arguments but got %d.", argc), false
			}
			return nil, true
		}
	}
	return vm.runtimeError("Can only call functions and classes."), false
}

func (vm *VM) callNative(native *value.ObjNative, receiver value.Value, argc int, argsStart int) (*RuntimeError, bool) {
	args := vm.stack[argsStart : argsStart+argc]
	result, ok := native.Fn(vm, receiver, args)
	if !ok {
		if result.IsObj() {
			if s, ok := result.AsObj().(*value.ObjString); ok {
				return vm.runtimeError("%s", s.Chars), false
			}
		}
		return vm.runtimeError("%s", native.Name+" failed."), false
	}
	vm.sp = argsStart - 1
	vm.push(result)
	return nil, true
}

func (vm *VM) invoke(name *value.ObjString, argc int) (*RuntimeError, bool) {
	receiver := vm.peek(argc)
	if !receiver.IsObj() {
		return vm.lookupBuiltinMember(receiver, name, argc)
	}
	switch o := receiver.AsObj().(type) {
	case *value.ObjInstance:
		if field, ok := o.Fields.Get(value.ObjValue(name)); ok {
			vm.stack[vm.sp-argc-1] = field
			return vm.callValue(field, argc)
		}
		return vm.invokeFromClass(o.Class, name, argc)
	case *value.ObjModule:
		member, ok := o.Globals.Get(value.ObjValue(name))
		if !ok {
			return vm.runtimeError("Undefined property '%s' in module %q.", name.Chars, o.Path), false
		}
		vm.stack[vm.sp-argc-1] = member
		return vm.callValue(member, argc)
	default:
		return vm.lookupBuiltinMember(receiver, name, argc)
	}
}

func (vm *VM) invokeFromClass(class *value.ObjClass, name *value.ObjString, argc int) (*RuntimeError, bool) {
	method, ok := class.Methods.Get(value.ObjValue(name))
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars), false
	}
	return vm.call(method.AsObj().(*value.ObjClosure), argc)
}

func (vm *VM) bindMethod(class *value.ObjClass, name *value.ObjString) (*value.ObjBoundMethod, bool) {
	method, ok := class.Methods.Get(value.ObjValue(name))
	if !ok {
		return nil, false
	}
	bound := &value.ObjBoundMethod{Receiver: vm.peek(0), Method: method.AsObj().(*value.ObjClosure)}
	vm.track(bound)
	return bound, true
}

func (vm *VM) defineMethod(name *value.ObjString) {
	method := vm.peek(0)
	class := vm.peek(1).AsObj().(*value.ObjClass)
	class.Methods.Set(value.ObjValue(name), method)
	vm.pop()
}

// ---- GC write roots -----------------------------------------------------

// markRoots and mark/trace live in gc.go; this file only needs track().

// ---- top-level entry points -------------------------------------------------

// Interpret compiles and runs source, returning the top-level return
// value (spec.md's REPL prints this for bare-expression input) or a
// runtime error.
func (vm *VM) Interpret(source string) (value.Value, *RuntimeError, []*compiler.CompileError) {
	fn, errs := compiler.Compile(source, vm)
	if len(errs) > 0 {
		return value.NilValue(), nil, errs
	}
	baseDepth := vm.frameCount
	closure := vm.newClosure(fn)
	vm.push(value.ObjValue(closure))
	if rerr, ok := vm.call(closure, 0); !ok {
		return value.NilValue(), rerr, nil
	}
	result, rerr := vm.run(baseDepth)
	return result, rerr, nil
}

// run executes frames until control returns to baseDepth (0 for a
// top-level Interpret call; a nonzero depth when Interpret is invoked
// recursively to run an imported module's top-level code), implementing
// spec.md §4.5's instruction set. Grounded on DYMS's runtime/vm.go Run
// loop shape (frame-slice, switch-on-opcode, inline ip bookkeeping).
func (vm *VM) run(baseDepth int) (value.Value, *RuntimeError) {
	fr := &vm.frames[vm.frameCount-1]

	readByte := func() byte {
		b := fr.chunk().Code[fr.ip]
		fr.ip++
		return b
	}
	readShort := func() int {
		hi := fr.chunk().Code[fr.ip]
		lo := fr.chunk().Code[fr.ip+1]
		fr.ip += 2
		return int(hi)<<8 | int(lo)
	}
	readConstant := func() value.Value {
		return fr.chunk().Constants[readByte()]
	}
	readString := func() *value.ObjString {
		return readConstant().AsObj().(*value.ObjString)
	}

	for {
		if vm.kill {
			return value.NilValue(), vm.runtimeError("Execution killed.")
		}
		// No single instruction pushes more than one net value beyond
		// what it pops, so checking here (rather than bounds-checking
		// every vm.push call site) is enough to catch a wide
		// single-frame expression before it indexes past stackMax —
		// the frameCount guard in call() only bounds call depth, not a
		// frame's own temporary-value count (spec.md §4.5).
		if vm.sp >= stackMax-1 {
			return value.NilValue(), vm.runtimeError("Stack overflow.")
		}
		op := chunk.OpCode(readByte())
		switch op {
		case chunk.OpConstant:
			vm.push(readConstant())
		case chunk.OpNil:
			vm.push(value.NilValue())
		case chunk.OpTrue:
			vm.push(value.BoolValue(true))
		case chunk.OpFalse:
			vm.push(value.BoolValue(false))
		case chunk.OpInt:
			vm.push(value.NumberValue(float64(readByte())))
		case chunk.OpNone:
			vm.push(value.ObjValue(vm.noneSingleton()))
		case chunk.OpSome:
			v := vm.pop()
			vm.push(value.ObjValue(vm.newOption(true, v)))
		case chunk.OpList:
			n := int(readByte())
			elems := make([]value.Value, n)
			copy(elems, vm.stack[vm.sp-n:vm.sp])
			vm.sp -= n
			vm.push(value.ObjValue(vm.newList(elems)))
		case chunk.OpDict:
			n := int(readByte())
			t := value.NewTable()
			base := vm.sp - 2*n
			for i := 0; i < n; i++ {
				k := vm.stack[base+2*i]
				v := vm.stack[base+2*i+1]
				if _, err := t.Set(k, v); err != nil {
					return value.NilValue(), vm.runtimeError("%s", err.Error())
				}
			}
			vm.sp = base
			vm.push(value.ObjValue(vm.newDict(t)))
		case chunk.OpPop:
			vm.pop()
		case chunk.OpGetLocal:
			vm.push(vm.stack[fr.base+int(readByte())])
		case chunk.OpSetLocal:
			vm.stack[fr.base+int(readByte())] = vm.peek(0)
		case chunk.OpGetGlobal:
			name := readString()
			v, ok := vm.globals.Get(value.ObjValue(name))
			if !ok {
				return value.NilValue(), vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			vm.push(v)
		case chunk.OpDefineGlobal:
			name := readString()
			vm.globals.Set(value.ObjValue(name), vm.peek(0))
			vm.pop()
		case chunk.OpSetGlobal:
			name := readString()
			isNew, _ := vm.globals.Set(value.ObjValue(name), vm.peek(0))
			if isNew {
				vm.globals.Delete(value.ObjValue(name))
				return value.NilValue(), vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
		case chunk.OpGetUpvalue:
			vm.push(*fr.closure.Upvalues[readByte()].Location)
		case chunk.OpSetUpvalue:
			*fr.closure.Upvalues[readByte()].Location = vm.peek(0)
		case chunk.OpGetProperty:
			if rerr := vm.getProperty(readString()); rerr != nil {
				return value.NilValue(), rerr
			}
		case chunk.OpSetProperty:
			if rerr := vm.setProperty(readString()); rerr != nil {
				return value.NilValue(), rerr
			}
		case chunk.OpGetSuper:
			name := readString()
			super := vm.pop().AsObj().(*value.ObjClass)
			bound, ok := vm.bindMethod(super, name)
			if !ok {
				return value.NilValue(), vm.runtimeError("Undefined property '%s'.", name.Chars)
			}
			vm.pop()
			vm.push(value.ObjValue(bound))
		case chunk.OpGetIndex:
			if rerr := vm.getIndex(); rerr != nil {
				return value.NilValue(), rerr
			}
		case chunk.OpSetIndex:
			if rerr := vm.setIndex(); rerr != nil {
				return value.NilValue(), rerr
			}
		case chunk.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.BoolValue(value.Equal(a, b)))
		case chunk.OpGreater, chunk.OpLess:
			if rerr := vm.binaryCompare(op); rerr != nil {
				return value.NilValue(), rerr
			}
		case chunk.OpAdd:
			if rerr := vm.add(); rerr != nil {
				return value.NilValue(), rerr
			}
		case chunk.OpSubtract, chunk.OpMultiply, chunk.OpDivide:
			if rerr := vm.arith(op); rerr != nil {
				return value.NilValue(), rerr
			}
		case chunk.OpNot:
			vm.push(value.BoolValue(vm.pop().IsFalsey()))
		case chunk.OpNegate:
			if !vm.peek(0).IsNumber() {
				return value.NilValue(), vm.runtimeError("Operand must be a number.")
			}
			vm.push(value.NumberValue(-vm.pop().AsNumber()))
		case chunk.OpPrint:
			fmt.Println(vm.pop().String())
		case chunk.OpJump:
			offset := readShort()
			fr.ip += offset
		case chunk.OpJumpIfFalse:
			offset := readShort()
			if vm.peek(0).IsFalsey() {
				fr.ip += offset
			}
		case chunk.OpLoop:
			offset := readShort()
			fr.ip -= offset
		case chunk.OpNextJump:
			offset := readShort()
			done, rerr := vm.iteratorStep()
			if rerr != nil {
				return value.NilValue(), rerr
			}
			if done {
				fr.ip += offset
			}
		case chunk.OpCall:
			argc := int(readByte())
			rerr, ok := vm.callValue(vm.peek(argc), argc)
			if !ok {
				return value.NilValue(), rerr
			}
			fr = &vm.frames[vm.frameCount-1]
		case chunk.OpInvoke:
			name := readString()
			argc := int(readByte())
			rerr, ok := vm.invoke(name, argc)
			if !ok {
				return value.NilValue(), rerr
			}
			fr = &vm.frames[vm.frameCount-1]
		case chunk.OpSuperInvoke:
			name := readString()
			argc := int(readByte())
			super := vm.pop().AsObj().(*value.ObjClass)
			rerr, ok := vm.invokeFromClass(super, name, argc)
			if !ok {
				return value.NilValue(), rerr
			}
			fr = &vm.frames[vm.frameCount-1]
		case chunk.OpClosure:
			fn := readConstant().AsObj().(*value.ObjFunction)
			closure := vm.newClosure(fn)
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := readByte() == 1
				index := readByte()
				if isLocal {
					closure.Upvalues[i] = vm.captureUpvalue(&vm.stack[fr.base+int(index)])
				} else {
					closure.Upvalues[i] = fr.closure.Upvalues[index]
				}
			}
			vm.push(value.ObjValue(closure))
		case chunk.OpCloseUpvalue:
			vm.closeUpvalues(&vm.stack[vm.sp-1])
			vm.pop()
		case chunk.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(&vm.stack[fr.base])
			vm.frameCount--
			if vm.frameCount == baseDepth {
				vm.pop()
				return result, nil
			}
			vm.sp = fr.base
			vm.push(result)
			fr = &vm.frames[vm.frameCount-1]
		case chunk.OpClass:
			vm.push(value.ObjValue(vm.newClass(readString())))
		case chunk.OpInherit:
			super := vm.peek(1)
			superClass, ok := super.AsObj().(*value.ObjClass)
			if !ok {
				return value.NilValue(), vm.runtimeError("Superclass must be a class.")
			}
			sub := vm.peek(0).AsObj().(*value.ObjClass)
			if err := sub.Methods.AddAll(superClass.Methods); err != nil {
				return value.NilValue(), vm.runtimeError("%s", err.Error())
			}
			vm.pop()
		case chunk.OpMethod:
			vm.defineMethod(readString())
		case chunk.OpGetReserve:
			vm.push(vm.reserve)
		case chunk.OpSetReserve:
			vm.reserve = vm.pop()
		case chunk.OpImport:
			alias := readString()
			path := readString()
			mod, rerr := vm.importModule(alias, path)
			if rerr != nil {
				return value.NilValue(), rerr
			}
			vm.push(value.ObjValue(mod))
		default:
			return value.NilValue(), vm.runtimeError("Unknown opcode %d.", byte(op))
		}
	}
}
