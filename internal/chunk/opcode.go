package chunk

// OpCode is a single-byte instruction per spec.md §4.5's instruction
// set. Operands, when present, are literal bytes or two-byte (u16)
// shorts, as documented per opcode below.
type OpCode byte

const (
	OpConstant     OpCode = iota // const(u8) -> push constant table entry
	OpNil                        // push nil
	OpTrue                       // push true
	OpFalse                      // push false
	OpInt                        // u8 -> push literal integer 0-255 as a number
	OpList                       // u8 n -> collect top n into new list
	OpDict                       // u8 n -> collect top 2n as key/value pairs
	OpSome                       // pop value, push Option carrying it
	OpNone                       // push the shared Option none singleton
	OpPop                        // pop one value

	OpGetLocal    // u8 slot
	OpSetLocal    // u8 slot
	OpGetGlobal   // const(u8) name
	OpDefineGlobal // const(u8) name
	OpSetGlobal   // const(u8) name
	OpGetUpvalue  // u8 index
	OpSetUpvalue  // u8 index

	OpGetProperty // const(u8) name
	OpSetProperty // const(u8) name
	OpGetSuper    // const(u8) name

	OpGetIndex // pop index, pop object, push element
	OpSetIndex // pop value, pop index, pop object, push value

	OpEqual
	OpGreater
	OpLess

	OpAdd
	OpSubtract
	OpMultiply
	OpDivide

	OpNot
	OpNegate

	OpPrint

	OpJump         // u16 offset
	OpJumpIfFalse  // u16 offset
	OpLoop         // u16 offset
	OpNextJump     // u16 offset -> `for .. in` iterator protocol step

	OpCall       // u8 argc
	OpInvoke     // const(u8) name, u8 argc
	OpSuperInvoke // const(u8) name, u8 argc

	OpClosure      // const(u8) fn, then upvalue_count * (u8 isLocal, u8 index)
	OpCloseUpvalue // close the open upvalue at stack top
	OpReturn

	OpClass
	OpInherit
	OpMethod

	OpGetReserve
	OpSetReserve

	OpImport // const(u8) alias, const(u8) path
)

var names = map[OpCode]string{
	OpConstant:     "CONSTANT",
	OpNil:          "NIL",
	OpTrue:         "TRUE",
	OpFalse:        "FALSE",
	OpInt:          "INT",
	OpList:         "LIST",
	OpDict:         "DICT",
	OpSome:         "SOME",
	OpNone:         "NONE",
	OpPop:          "POP",
	OpGetLocal:     "GET_LOCAL",
	OpSetLocal:     "SET_LOCAL",
	OpGetGlobal:    "GET_GLOBAL",
	OpDefineGlobal: "DEFINE_GLOBAL",
	OpSetGlobal:    "SET_GLOBAL",
	OpGetUpvalue:   "GET_UPVALUE",
	OpSetUpvalue:   "SET_UPVALUE",
	OpGetProperty:  "GET_PROPERTY",
	OpSetProperty:  "SET_PROPERTY",
	OpGetSuper:     "GET_SUPER",
	OpGetIndex:     "GET_INDEX",
	OpSetIndex:     "SET_INDEX",
	OpEqual:        "EQUAL",
	OpGreater:      "GREATER",
	OpLess:         "LESS",
	OpAdd:          "ADD",
	OpSubtract:     "SUBTRACT",
	OpMultiply:     "MULTIPLY",
	OpDivide:       "DIVIDE",
	OpNot:          "NOT",
	OpNegate:       "NEGATE",
	OpPrint:        "PRINT",
	OpJump:         "JUMP",
	OpJumpIfFalse:  "JUMP_IF_FALSE",
	OpLoop:         "LOOP",
	OpNextJump:     "NEXT_JUMP",
	OpCall:         "CALL",
	OpInvoke:       "INVOKE",
	OpSuperInvoke:  "SUPER_INVOKE",
	OpClosure:      "CLOSURE",
	OpCloseUpvalue: "CLOSE_UPVALUE",
	OpReturn:       "RETURN",
	OpClass:        "CLASS",
	OpInherit:      "INHERIT",
	OpMethod:       "METHOD",
	OpGetReserve:   "GET_RESERVE",
	OpSetReserve:   "SET_RESERVE",
	OpImport:       "IMPORT",
}

func (op OpCode) String() string {
	if n, ok := names[op]; ok {
		return n
	}
	return "UNKNOWN"
}
