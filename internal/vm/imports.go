package vm

import "github.com/ravenlang/raven/internal/value"

// importModule implements OP_IMPORT: load path's source (via the
// configured resolver), compile and run it against a fresh globals
// table that holds only the built-in clock native, and wrap that table
// in an ObjModule (the compiler binds it to alias). Modules
// are cached by path, so importing the same module twice returns the
// same ObjModule and does not re-run its top-level code.
func (vm *VM) importModule(alias, path *value.ObjString) (*value.ObjModule, *RuntimeError) {
	if mod, ok := vm.modules[path.Chars]; ok {
		return mod, nil
	}
	if vm.resolver == nil {
		return nil, vm.runtimeError("No module resolver configured; cannot import %q.", path.Chars)
	}
	src, err := vm.resolver.Load(path.Chars)
	if err != nil {
		return nil, vm.runtimeError("%s", err.Error())
	}

	savedGlobals := vm.globals
	moduleGlobals := value.NewTable()
	vm.defineNative(moduleGlobals, "clock", nativeClock)
	vm.globals = moduleGlobals
	_, rerr, errs := vm.Interpret(src)
	vm.globals = savedGlobals
	if len(errs) > 0 {
		return nil, vm.runtimeError("Errors compiling module %q: %s", path.Chars, errs[0].Error())
	}
	if rerr != nil {
		return nil, rerr
	}

	mod := &value.ObjModule{Path: path.Chars, Globals: moduleGlobals}
	vm.track(mod)
	vm.modules[path.Chars] = mod
	return mod, nil
}
