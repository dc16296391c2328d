package vm

import (
	"strings"
	"time"

	"github.com/ravenlang/raven/internal/value"
)

// builtinTables holds the four member tables spec.md §6 names: the
// built-in methods available on strings, lists, dicts, and options,
// keyed by interned method name. Grounded on DYMS's libraries/time.go
// registration-function idiom (one register* call per native group),
// adapted from a single flat global-function table to four per-type
// member tables since spec.md's built-ins are member calls
// (`"abc".length()`), not free functions.
type builtinTables struct {
	strings *value.Table
	lists   *value.Table
	dicts   *value.Table
	options *value.Table
}

func newBuiltinTables() builtinTables {
	return builtinTables{
		strings: value.NewTable(),
		lists:   value.NewTable(),
		dicts:   value.NewTable(),
		options: value.NewTable(),
	}
}

func (vm *VM) defineNative(t *value.Table, name string, fn value.NativeFn) {
	nameStr := vm.InternString(name)
	native := &value.ObjNative{Name: name, Fn: fn}
	vm.track(native)
	t.Set(value.ObjValue(nameStr), value.ObjValue(native))
}

// registerNatives wires spec.md §6's native surface: the global `clock`
// function plus the string/list/dict/option member tables.
func registerNatives(vm *VM) {
	vm.defineNative(vm.globals, "clock", nativeClock)

	vm.defineNative(vm.builtins.strings, "length", nativeStringLength)
	vm.defineNative(vm.builtins.strings, "upper", nativeStringUpper)
	vm.defineNative(vm.builtins.strings, "lower", nativeStringLower)

	vm.defineNative(vm.builtins.lists, "length", nativeListLength)
	vm.defineNative(vm.builtins.lists, "append", nativeListAppend)
	vm.defineNative(vm.builtins.lists, "pop", nativeListPop)

	vm.defineNative(vm.builtins.dicts, "length", nativeDictLength)
	vm.defineNative(vm.builtins.dicts, "has", nativeDictHas)

	vm.defineNative(vm.builtins.options, "unwrap", nativeOptionUnwrap)
	vm.defineNative(vm.builtins.options, "isSome", nativeOptionIsSome)
}

// nativeError builds the (Value, false) pair a native returns on
// failure. The ObjString it carries is deliberately untracked by the
// GC (it never outlives vm.runtimeError reading its Chars field back
// out), avoiding an allocation-pressure bump for a value that dies
// immediately.
func nativeError(msg string) (value.Value, bool) {
	return value.ObjValue(&value.ObjString{Chars: msg}), false
}

func nativeClock(vmAny interface{}, receiver value.Value, args []value.Value) (value.Value, bool) {
	return value.NumberValue(float64(time.Now().UnixNano()) / 1e9), true
}

// ---- string members ---------------------------------------------------------

func nativeStringLength(vmAny interface{}, receiver value.Value, args []value.Value) (value.Value, bool) {
	s := receiver.AsString()
	return value.NumberValue(float64(len([]rune(s.Chars)))), true
}

func nativeStringUpper(vmAny interface{}, receiver value.Value, args []value.Value) (value.Value, bool) {
	vm := vmAny.(*VM)
	s := receiver.AsString()
	return value.ObjValue(vm.InternString(strings.ToUpper(s.Chars))), true
}

func nativeStringLower(vmAny interface{}, receiver value.Value, args []value.Value) (value.Value, bool) {
	vm := vmAny.(*VM)
	s := receiver.AsString()
	return value.ObjValue(vm.InternString(strings.ToLower(s.Chars))), true
}

// ---- list members -----------------------------------------------------------

func nativeListLength(vmAny interface{}, receiver value.Value, args []value.Value) (value.Value, bool) {
	l := receiver.AsObj().(*value.ObjList)
	return value.NumberValue(float64(len(l.Elements))), true
}

func nativeListAppend(vmAny interface{}, receiver value.Value, args []value.Value) (value.Value, bool) {
	l := receiver.AsObj().(*value.ObjList)
	if len(args) != 1 {
		return nativeError("append expects 1 argument.")
	}
	l.Elements = append(l.Elements, args[0])
	return args[0], true
}

func nativeListPop(vmAny interface{}, receiver value.Value, args []value.Value) (value.Value, bool) {
	l := receiver.AsObj().(*value.ObjList)
	if len(l.Elements) == 0 {
		return nativeError("Cannot pop from an empty list.")
	}
	last := l.Elements[len(l.Elements)-1]
	l.Elements = l.Elements[:len(l.Elements)-1]
	return last, true
}

// ---- dict members -----------------------------------------------------------

func nativeDictLength(vmAny interface{}, receiver value.Value, args []value.Value) (value.Value, bool) {
	d := receiver.AsObj().(*value.ObjDict)
	return value.NumberValue(float64(d.Table.Count())), true
}

func nativeDictHas(vmAny interface{}, receiver value.Value, args []value.Value) (value.Value, bool) {
	d := receiver.AsObj().(*value.ObjDict)
	if len(args) != 1 {
		return nativeError("has expects 1 argument.")
	}
	_, ok := d.Table.Get(args[0])
	return value.BoolValue(ok), true
}

// ---- option members ---------------------------------------------------------

func nativeOptionUnwrap(vmAny interface{}, receiver value.Value, args []value.Value) (value.Value, bool) {
	o := receiver.AsObj().(*value.ObjOption)
	if !o.HasValue {
		return nativeError("Cannot unwrap none.")
	}
	return o.Inner, true
}

func nativeOptionIsSome(vmAny interface{}, receiver value.Value, args []value.Value) (value.Value, bool) {
	o := receiver.AsObj().(*value.ObjOption)
	return value.BoolValue(o.HasValue), true
}

// ---- built-in member dispatch (GET_PROPERTY / INVOKE on non-instances) -------

// memberTableFor returns the built-in member table for v's runtime
// type, or nil if v's type has no built-in members.
func (vm *VM) memberTableFor(v value.Value) *value.Table {
	if !v.IsObj() {
		return nil
	}
	switch v.AsObj().(type) {
	case *value.ObjString:
		return vm.builtins.strings
	case *value.ObjList:
		return vm.builtins.lists
	case *value.ObjDict:
		return vm.builtins.dicts
	case *value.ObjOption:
		return vm.builtins.options
	default:
		return nil
	}
}

// getBuiltinProperty implements OP_GET_PROPERTY when the receiver isn't
// a user-defined instance: look up name in the type's built-in member
// table and push a bound native.
func (vm *VM) getBuiltinProperty(receiver value.Value, name *value.ObjString) *RuntimeError {
	table := vm.memberTableFor(receiver)
	if table == nil {
		return vm.runtimeError("Type %s has no properties.", receiver.TypeName())
	}
	member, ok := table.Get(value.ObjValue(name))
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars)
	}
	native := member.AsObj().(*value.ObjNative)
	bound := &value.ObjBoundNative{Receiver: receiver, Native: native}
	vm.track(bound)
	vm.pop()
	vm.push(value.ObjValue(bound))
	return nil
}

// lookupBuiltinMember implements OP_INVOKE's fast path for non-instance
// receivers: resolve and call the built-in member directly, without
// materializing an intermediate ObjBoundNative.
func (vm *VM) lookupBuiltinMember(receiver value.Value, name *value.ObjString, argc int) (*RuntimeError, bool) {
	table := vm.memberTableFor(receiver)
	if table == nil {
		return vm.runtimeError("Type %s has no properties.", receiver.TypeName()), false
	}
	member, ok := table.Get(value.ObjValue(name))
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars), false
	}
	native := member.AsObj().(*value.ObjNative)
	return vm.callNative(native, receiver, argc, vm.sp-argc)
}
