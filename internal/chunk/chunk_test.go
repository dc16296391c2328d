package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravenlang/raven/internal/value"
)

func TestWriteAppendsCodeAndLine(t *testing.T) {
	c := New()
	off := Write(c, byte(OpNil), 1)
	assert.Equal(t, 0, off)
	off = Write(c, byte(OpReturn), 2)
	assert.Equal(t, 1, off)
	assert.Equal(t, []byte{byte(OpNil), byte(OpReturn)}, c.Code)
	assert.Equal(t, []int{1, 2}, c.Lines)
}

func TestAddConstantCapsAt256(t *testing.T) {
	c := New()
	for i := 0; i < 256; i++ {
		idx, err := AddConstant(c, value.NumberValue(float64(i)))
		require.NoError(t, err)
		assert.Equal(t, i, idx)
	}
	_, err := AddConstant(c, value.NumberValue(256))
	assert.Error(t, err)
}

func TestDisassembleRendersConstantInstruction(t *testing.T) {
	c := New()
	idx, err := AddConstant(c, value.NumberValue(7))
	require.NoError(t, err)
	Write(c, byte(OpConstant), 1)
	Write(c, byte(idx), 1)
	Write(c, byte(OpReturn), 1)

	out := Disassemble(c, "test")
	assert.True(t, strings.Contains(out, "CONSTANT"))
	assert.True(t, strings.Contains(out, "7"))
	assert.True(t, strings.Contains(out, "RETURN"))
}
