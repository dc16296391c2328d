package vm

import "github.com/ravenlang/raven/internal/value"

// collectGarbage runs one full tracing mark-sweep cycle (spec.md §5):
// mark every root, trace the graph to a fixed point via the gray
// stack, drop unreferenced interned strings, then sweep the object
// list. nextGC grows by growthFactor so collection frequency tapers as
// the live set grows.
func (vm *VM) collectGarbage() {
	vm.log.Debug("gc: begin")
	vm.markRoots()
	vm.traceReferences()
	vm.strings.RemoveWhite()
	vm.sweep()

	vm.nextGC = int(float64(vm.bytesAllocated) * vm.growthFactor)
	if vm.nextGC < 1<<16 {
		vm.nextGC = 1 << 16
	}
	vm.log.Debug("gc: end")
}

func (vm *VM) markValue(v value.Value) {
	if v.IsObj() && v.AsObj() != nil {
		vm.markObject(v.AsObj())
	}
}

func (vm *VM) markObject(o value.Obj) {
	if o == nil || value.IsMarked(o) {
		return
	}
	value.Mark(o)
	vm.grayStack = append(vm.grayStack, o)
}

// markRoots marks every GC root spec.md §5 enumerates: the value
// stack, every active frame's closure, the open-upvalue chain, the
// globals table, the four built-in member tables, the reserve slot,
// the init string, and — spec.md §4.6 step 2 — every compiler's
// current function along the compiler chain, for the ObjFunctions a
// live Compile call is still assembling and hasn't wired into any
// enclosing constant table yet.
func (vm *VM) markRoots() {
	for i := 0; i < vm.sp; i++ {
		vm.markValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		vm.markObject(vm.frames[i].closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.NextOpen {
		vm.markObject(uv)
	}
	vm.globals.Mark(vm.markValue)
	vm.builtins.strings.Mark(vm.markValue)
	vm.builtins.lists.Mark(vm.markValue)
	vm.builtins.dicts.Mark(vm.markValue)
	vm.builtins.options.Mark(vm.markValue)
	vm.markValue(vm.reserve)
	if vm.initString != nil {
		vm.markObject(vm.initString)
	}
	if vm.none != nil {
		vm.markObject(vm.none)
	}
	for _, fn := range vm.compilerRoots {
		vm.markObject(fn)
	}
}

// traceReferences drains the gray stack, marking every object each gray
// object points to, until nothing gray remains (spec.md §5's tricolor
// invariant: an object is blackened once its own references are marked).
func (vm *VM) traceReferences() {
	for len(vm.grayStack) > 0 {
		o := vm.grayStack[len(vm.grayStack)-1]
		vm.grayStack = vm.grayStack[:len(vm.grayStack)-1]
		vm.blacken(o)
	}
}

func (vm *VM) blacken(o value.Obj) {
	switch obj := o.(type) {
	case *value.ObjString, *value.ObjNative:
		// no outgoing references
	case *value.ObjUpvalue:
		vm.markValue(obj.Closed)
	case *value.ObjFunction:
		if obj.Name != nil {
			vm.markObject(obj.Name)
		}
		for _, c := range obj.Chunk.Constants {
			vm.markValue(c)
		}
	case *value.ObjClosure:
		vm.markObject(obj.Function)
		for _, uv := range obj.Upvalues {
			vm.markObject(uv)
		}
	case *value.ObjBoundMethod:
		vm.markValue(obj.Receiver)
		vm.markObject(obj.Method)
	case *value.ObjBoundNative:
		vm.markValue(obj.Receiver)
		vm.markObject(obj.Native)
	case *value.ObjClass:
		vm.markObject(obj.Name)
		obj.Methods.Mark(vm.markValue)
	case *value.ObjInstance:
		vm.markObject(obj.Class)
		obj.Fields.Mark(vm.markValue)
	case *value.ObjList:
		for _, e := range obj.Elements {
			vm.markValue(e)
		}
	case *value.ObjDict:
		obj.Table.Mark(vm.markValue)
	case *value.ObjOption:
		if obj.HasValue {
			vm.markValue(obj.Inner)
		}
	case *value.ObjModule:
		obj.Globals.Mark(vm.markValue)
	}
}

// sweep walks the intrusive object list, freeing (unlinking) every
// object left unmarked, and unmarks survivors for the next cycle.
func (vm *VM) sweep() {
	var prev value.Obj
	cur := vm.objects
	freed := 0
	for cur != nil {
		if value.IsMarked(cur) {
			value.Unmark(cur)
			prev = cur
			cur = value.NextObj(cur)
			continue
		}
		unreached := cur
		cur = value.NextObj(cur)
		if prev == nil {
			vm.objects = cur
		} else {
			value.SetNext(prev, cur)
		}
		freed++
		vm.bytesAllocated--
		_ = unreached
	}
	if freed > 0 {
		vm.log.WithField("freed", freed).Debug("gc: swept objects")
	}
}
