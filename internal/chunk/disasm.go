package chunk

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/ravenlang/raven/internal/value"
)

func itoa(n int) string { return strconv.Itoa(n) }

// Disassemble renders every instruction in c as an aligned table:
// offset, source line, opcode mnemonic, operands, and the resolved
// constant when the opcode reads one. This is the developer-facing
// disassembler spec.md §1 keeps explicitly in scope.
func Disassemble(c *Chunk, name string) string {
	var b strings.Builder
	b.WriteString("== " + name + " ==\n")

	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"offset", "line", "op", "operands", "const"})
	table.SetAutoFormatHeaders(false)

	offset := 0
	lastLine := -1
	for offset < len(c.Code) {
		next, row := disassembleInstruction(c, offset, lastLine)
		lastLine = -2 // unused by disassembleInstruction; lineLabel handles the "|" repeat
		table.Append(row)
		offset = next
	}
	table.Render()
	return b.String()
}

func lineLabel(c *Chunk, offset int) string {
	if offset > 0 && c.Lines[offset] == c.Lines[offset-1] {
		return "   |"
	}
	return itoa(c.Lines[offset])
}

func disassembleInstruction(c *Chunk, offset int, _ int) (int, []string) {
	line := lineLabel(c, offset)
	op := OpCode(c.Code[offset])
	switch op {
	case OpConstant, OpGetGlobal, OpDefineGlobal, OpSetGlobal, OpGetProperty,
		OpSetProperty, OpGetSuper, OpClass, OpMethod:
		idx := c.Code[offset+1]
		return offset + 2, []string{itoa(offset), line, op.String(), itoa(int(idx)), constStr(c, idx)}
	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpInt, OpList, OpDict, OpCall:
		operand := c.Code[offset+1]
		return offset + 2, []string{itoa(offset), line, op.String(), itoa(int(operand)), ""}
	case OpInvoke, OpSuperInvoke:
		idx := c.Code[offset+1]
		argc := c.Code[offset+2]
		return offset + 3, []string{itoa(offset), line, op.String(), itoa(int(idx)) + " (" + itoa(int(argc)) + " args)", constStr(c, idx)}
	case OpJump, OpJumpIfFalse, OpLoop, OpNextJump:
		jmp := binary.BigEndian.Uint16(c.Code[offset+1 : offset+3])
		return offset + 3, []string{itoa(offset), line, op.String(), itoa(int(jmp)), ""}
	case OpClosure:
		idx := c.Code[offset+1]
		next := offset + 2
		fnVal := c.Constants[idx]
		upvalCount := 0
		if fn, ok := fnVal.AsObj().(*value.ObjFunction); ok {
			upvalCount = fn.UpvalueCount
		}
		next += upvalCount * 2
		return next, []string{itoa(offset), line, op.String(), itoa(int(idx)), constStr(c, idx)}
	case OpImport:
		alias := c.Code[offset+1]
		path := c.Code[offset+2]
		return offset + 3, []string{itoa(offset), line, op.String(), itoa(int(alias)) + "," + itoa(int(path)), constStr(c, path)}
	default:
		return offset + 1, []string{itoa(offset), line, op.String(), "", ""}
	}
}

func constStr(c *Chunk, idx byte) string {
	if int(idx) >= len(c.Constants) {
		return ""
	}
	return c.Constants[idx].String()
}
