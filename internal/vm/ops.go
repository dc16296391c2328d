package vm

import (
	"github.com/ravenlang/raven/internal/chunk"
	"github.com/ravenlang/raven/internal/value"
)

// noneSingleton lazily allocates and caches the shared Option none value
// (SPEC_FULL.md's Option supplement: "bare none is the shared singleton
// none value").
func (vm *VM) noneSingleton() *value.ObjOption {
	if vm.none == nil {
		vm.none = vm.newOption(false, value.NilValue())
	}
	return vm.none
}

// ---- arithmetic / comparison -------------------------------------------------

func (vm *VM) add() *RuntimeError {
	b := vm.peek(0)
	a := vm.peek(1)
	switch {
	case a.IsNumber() && b.IsNumber():
		vm.pop()
		vm.pop()
		vm.push(value.NumberValue(a.AsNumber() + b.AsNumber()))
	case a.IsString() && b.IsString():
		vm.pop()
		vm.pop()
		concat := vm.InternString(a.AsString().Chars + b.AsString().Chars)
		vm.push(value.ObjValue(concat))
	default:
		return vm.runtimeError("Operands must be two numbers or two strings.")
	}
	return nil
}

func (vm *VM) arith(op chunk.OpCode) *RuntimeError {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	switch op {
	case chunk.OpSubtract:
		vm.push(value.NumberValue(a - b))
	case chunk.OpMultiply:
		vm.push(value.NumberValue(a * b))
	case chunk.OpDivide:
		if b == 0 {
			return vm.runtimeError("Division by zero.")
		}
		vm.push(value.NumberValue(a / b))
	}
	return nil
}

func (vm *VM) binaryCompare(op chunk.OpCode) *RuntimeError {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	if op == chunk.OpGreater {
		vm.push(value.BoolValue(a > b))
	} else {
		vm.push(value.BoolValue(a < b))
	}
	return nil
}

// ---- properties ---------------------------------------------------------------

func (vm *VM) getProperty(name *value.ObjString) *RuntimeError {
	receiver := vm.peek(0)
	if !receiver.IsObj() {
		return vm.getBuiltinProperty(receiver, name)
	}
	switch o := receiver.AsObj().(type) {
	case *value.ObjInstance:
		if v, ok := o.Fields.Get(value.ObjValue(name)); ok {
			vm.pop()
			vm.push(v)
			return nil
		}
		if bound, ok := vm.bindMethod(o.Class, name); ok {
			vm.pop()
			vm.push(value.ObjValue(bound))
			return nil
		}
		return vm.runtimeError("Undefined property '%s'.", name.Chars)
	case *value.ObjModule:
		v, ok := o.Globals.Get(value.ObjValue(name))
		if !ok {
			return vm.runtimeError("Undefined property '%s' in module %q.", name.Chars, o.Path)
		}
		vm.pop()
		vm.push(v)
		return nil
	default:
		return vm.getBuiltinProperty(receiver, name)
	}
}

func (vm *VM) setProperty(name *value.ObjString) *RuntimeError {
	receiver := vm.peek(1)
	inst, ok := receiver.AsObj().(*value.ObjInstance)
	if !receiver.IsObj() || !ok {
		return vm.runtimeError("Only instances have settable properties.")
	}
	v := vm.pop()
	inst.Fields.Set(value.ObjValue(name), v)
	vm.pop()
	vm.push(v)
	return nil
}

// ---- indexing -------------------------------------------------------------

func (vm *VM) getIndex() *RuntimeError {
	idx := vm.pop()
	obj := vm.pop()
	if !obj.IsObj() {
		return vm.runtimeError("Only lists, dicts, and strings can be indexed.")
	}
	switch o := obj.AsObj().(type) {
	case *value.ObjList:
		if !idx.IsNumber() {
			return vm.runtimeError("List index must be a number.")
		}
		i := int(idx.AsNumber())
		if i < 0 || i >= len(o.Elements) {
			return vm.runtimeError("List index out of bounds.")
		}
		vm.push(o.Elements[i])
	case *value.ObjDict:
		v, ok := o.Table.Get(idx)
		if !ok {
			return vm.runtimeError("Key not found.")
		}
		vm.push(v)
	case *value.ObjString:
		if !idx.IsNumber() {
			return vm.runtimeError("String index must be a number.")
		}
		i := int(idx.AsNumber())
		runes := []rune(o.Chars)
		if i < 0 || i >= len(runes) {
			return vm.runtimeError("String index out of bounds.")
		}
		vm.push(value.ObjValue(vm.InternString(string(runes[i]))))
	default:
		return vm.runtimeError("Only lists, dicts, and strings can be indexed.")
	}
	return nil
}

func (vm *VM) setIndex() *RuntimeError {
	v := vm.pop()
	idx := vm.pop()
	obj := vm.pop()
	if !obj.IsObj() {
		return vm.runtimeError("Only lists and dicts support index assignment.")
	}
	switch o := obj.AsObj().(type) {
	case *value.ObjList:
		if !idx.IsNumber() {
			return vm.runtimeError("List index must be a number.")
		}
		i := int(idx.AsNumber())
		if i < 0 || i >= len(o.Elements) {
			return vm.runtimeError("List index out of bounds.")
		}
		o.Elements[i] = v
	case *value.ObjDict:
		if _, err := o.Table.Set(idx, v); err != nil {
			return vm.runtimeError("%s", err.Error())
		}
	default:
		return vm.runtimeError("Only lists and dicts support index assignment.")
	}
	vm.push(v)
	return nil
}

// ---- `for .. in` iterator protocol --------------------------------------------

// iteratorStep implements NEXT_JUMP: the stack holds [..., iterable,
// index]; it reports whether iteration is exhausted, and otherwise
// replaces index with the next element value and bumps the counter
// beneath it.
func (vm *VM) iteratorStep() (bool, *RuntimeError) {
	index := int(vm.pop().AsNumber())
	iterable := vm.peek(0)
	if !iterable.IsObj() {
		return false, vm.runtimeError("Value is not iterable.")
	}
	switch o := iterable.AsObj().(type) {
	case *value.ObjList:
		if index >= len(o.Elements) {
			vm.pop()
			return true, nil
		}
		vm.push(value.NumberValue(float64(index + 1)))
		vm.push(o.Elements[index])
		return false, nil
	case *value.ObjString:
		runes := []rune(o.Chars)
		if index >= len(runes) {
			vm.pop()
			return true, nil
		}
		vm.push(value.NumberValue(float64(index + 1)))
		vm.push(value.ObjValue(vm.InternString(string(runes[index]))))
		return false, nil
	default:
		return false, vm.runtimeError("Value is not iterable.")
	}
}
