// Package chunk implements Raven's bytecode container and opcode
// catalog (spec.md §4.1): a byte array of instructions, a parallel
// source-line array, and a constant pool capped at 256 entries because
// constant operands are a single byte.
//
// The Chunk struct itself lives in internal/value (as value.Chunk)
// because value.ObjFunction embeds one and a Chunk's constant pool
// holds value.Value — defining Chunk here would make internal/value
// and internal/chunk import each other. This package supplies the
// chunk-level operations (Write, AddConstant, the opcode catalog, the
// disassembler) as functions over *value.Chunk instead of methods, for
// the same reason.
package chunk

import (
	"fmt"

	"github.com/ravenlang/raven/internal/value"
)

// Chunk is re-exported here so callers outside internal/value spell it
// chunk.Chunk.
type Chunk = value.Chunk

func New() *Chunk {
	return &Chunk{}
}

// Write appends a single byte with its source line.
func Write(c *Chunk, b byte, line int) int {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
	return len(c.Code) - 1
}

const MaxConstants = 256

// AddConstant appends v to the constant pool and returns its index, or
// an error if the pool is already at its 256-entry cap.
func AddConstant(c *Chunk, v value.Value) (int, error) {
	if len(c.Constants) >= MaxConstants {
		return 0, fmt.Errorf("Too many constants in one chunk.")
	}
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1, nil
}

// Free releases a chunk's backing arrays. Called during object sweep
// when a function object (and its owned chunk) is collected.
func Free(c *Chunk) {
	c.Code = nil
	c.Lines = nil
	c.Constants = nil
}
