package compiler

import "fmt"

// CompileError is one syntax or semantic error reported during
// compilation, carrying the source line and offending lexeme spec.md
// §7 requires ("emitted by the compiler with the source line, the
// offending token... and a message").
type CompileError struct {
	Line    int
	Where   string // offending token text, "at end", or "" for scanner errors
	Message string
}

func (e *CompileError) Error() string {
	if e.Where == "" {
		return fmt.Sprintf("[line %d] Error: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("[line %d] Error at %s: %s", e.Line, e.Where, e.Message)
}
