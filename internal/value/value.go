// Package value implements Raven's tagged Value representation and the
// closed set of heap Object variants it can reference, plus the
// open-addressed hash table keyed by Value (kept in this package rather
// than a separate one so Table and the Obj variants that embed a
// *Table, like Class and Instance, don't form an import cycle).
package value

import "fmt"

// Type tags the variant a Value currently holds. Two encodings are
// allowed by spec (NaN-boxed or tagged union); this is the tagged
// union, taken as the reference semantics.
type Type int

const (
	Nil Type = iota
	Bool
	Number
	Empty // reserved sentinel for empty/tombstone hash slots
	ObjRef
)

// Value is a small, copyable tagged union. Booleans are stored in Num
// as 0/1 so hashing (which needs the integer 0 or 1 for booleans) falls
// out of the same field without a second branch.
type Value struct {
	typ Type
	num float64
	obj Obj
}

func NilValue() Value   { return Value{typ: Nil} }
func EmptyValue() Value { return Value{typ: Empty} }

func BoolValue(b bool) Value {
	if b {
		return Value{typ: Bool, num: 1}
	}
	return Value{typ: Bool, num: 0}
}

func NumberValue(n float64) Value { return Value{typ: Number, num: n} }

func ObjValue(o Obj) Value { return Value{typ: ObjRef, obj: o} }

func (v Value) Type() Type   { return v.typ }
func (v Value) IsNil() bool   { return v.typ == Nil }
func (v Value) IsBool() bool  { return v.typ == Bool }
func (v Value) IsNumber() bool { return v.typ == Number }
func (v Value) IsEmpty() bool { return v.typ == Empty }
func (v Value) IsObj() bool   { return v.typ == ObjRef }

func (v Value) AsBool() bool     { return v.num != 0 }
func (v Value) AsNumber() float64 { return v.num }
func (v Value) AsObj() Obj       { return v.obj }

func (v Value) IsString() bool { o, ok := v.obj.(*ObjString); return v.typ == ObjRef && ok && o != nil }
func (v Value) AsString() *ObjString {
	return v.obj.(*ObjString)
}

// IsFalsey reports whether v is one of the three falsy values: none,
// false, or the number zero. nil is uniformly falsy too (spec.md
// resolves the ambiguous non-boxed-vs-NaN-boxed behavior this way).
func (v Value) IsFalsey() bool {
	switch v.typ {
	case Nil:
		return true
	case Bool:
		return v.num == 0
	case Number:
		return v.num == 0
	case ObjRef:
		if opt, ok := v.obj.(*ObjOption); ok {
			return !opt.HasValue
		}
		return false
	default:
		return false
	}
}

// Equal implements value equality: numbers by value, object references
// by identity (safe for strings because of interning), nil-to-nil true,
// booleans by value. Mixed types are never equal.
func Equal(a, b Value) bool {
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case Nil, Empty:
		return true
	case Bool, Number:
		return a.num == b.num
	case ObjRef:
		return a.obj == b.obj
	default:
		return false
	}
}

// Hash implements spec.md §4.2's hashing rules: nil/empty -> 0,
// booleans -> 0 or 1, numbers -> IEEE bit pattern XOR-folded to 32
// bits (resolving the "implementation-defined but consistent" note
// toward correctness for non-integer keys, per spec.md §9), strings ->
// their precomputed FNV-1a hash. Other object types are unhashable.
func (v Value) Hash() (uint32, error) {
	switch v.typ {
	case Nil, Empty:
		return 0, nil
	case Bool:
		if v.num != 0 {
			return 1, nil
		}
		return 0, nil
	case Number:
		return hashFloat64(v.num), nil
	case ObjRef:
		if s, ok := v.obj.(*ObjString); ok {
			return s.Hash, nil
		}
		return 0, fmt.Errorf("Unhashable type.")
	default:
		return 0, fmt.Errorf("Unhashable type.")
	}
}

func hashFloat64(f float64) uint32 {
	bits := float64bits(f)
	return uint32(bits>>32) ^ uint32(bits)
}

// String renders v for PRINT and diagnostics.
func (v Value) String() string {
	switch v.typ {
	case Nil:
		return "nil"
	case Empty:
		return "<empty>"
	case Bool:
		if v.num != 0 {
			return "true"
		}
		return "false"
	case Number:
		return formatNumber(v.num)
	case ObjRef:
		if v.obj == nil {
			return "nil"
		}
		return v.obj.String()
	default:
		return "<invalid>"
	}
}

// TypeName reports a human-facing type name for error messages.
func (v Value) TypeName() string {
	switch v.typ {
	case Nil:
		return "nil"
	case Bool:
		return "boolean"
	case Number:
		return "number"
	case ObjRef:
		return v.obj.ObjType().String()
	default:
		return "empty"
	}
}
