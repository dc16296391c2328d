package vm

import "fmt"

// RuntimeError is a failure raised while executing bytecode, carrying a
// stack trace of the call frames active at the point of failure
// (spec.md §7: "runtime errors carry a message and a frame stack").
//
// Grounded on DYMS's runtime/errors.go Error type; generalized from a
// single line/column pair to a full frame trace since Raven's call
// stack (closures, nested calls) is considerably richer than DYMS's.
type RuntimeError struct {
	Message string
	Trace   []TraceEntry
}

// TraceEntry names one call frame active when a RuntimeError occurred.
type TraceEntry struct {
	Line     int
	Function string
}

func (e *RuntimeError) Error() string {
	if e == nil {
		return "runtime error: unknown"
	}
	return e.Message
}

// Report renders the error and its trace the way a REPL or CLI would
// print it: message first, then one "[line N] in fn()" line per frame,
// innermost first.
func (e *RuntimeError) Report() string {
	s := e.Message + "\n"
	for _, t := range e.Trace {
		name := t.Function
		if name == "" {
			name = "script"
		}
		s += fmt.Sprintf("[line %d] in %s()\n", t.Line, name)
	}
	return s
}

func newRuntimeError(format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Message: fmt.Sprintf(format, args...)}
}
