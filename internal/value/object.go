package value

// ObjType discriminates the closed set of heap object variants spec.md
// §3 names.
type ObjType int

const (
	ObjTypeString ObjType = iota
	ObjTypeFunction
	ObjTypeNative
	ObjTypeClosure
	ObjTypeUpvalue
	ObjTypeBoundMethod
	ObjTypeBoundNative
	ObjTypeClass
	ObjTypeInstance
	ObjTypeList
	ObjTypeDict
	ObjTypeOption
	ObjTypeModule
)

func (t ObjType) String() string {
	switch t {
	case ObjTypeString:
		return "string"
	case ObjTypeFunction:
		return "function"
	case ObjTypeNative:
		return "native function"
	case ObjTypeClosure:
		return "function"
	case ObjTypeUpvalue:
		return "upvalue"
	case ObjTypeBoundMethod:
		return "bound method"
	case ObjTypeBoundNative:
		return "bound method"
	case ObjTypeClass:
		return "class"
	case ObjTypeInstance:
		return "instance"
	case ObjTypeList:
		return "list"
	case ObjTypeDict:
		return "dict"
	case ObjTypeOption:
		return "option"
	case ObjTypeModule:
		return "module"
	default:
		return "object"
	}
}

// Obj is implemented by every heap object variant. Each carries a type
// tag, a GC mark bit, and an intrusive "next" link threading every live
// object through the VM's single object list (spec.md §3).
type Obj interface {
	ObjType() ObjType
	String() string
	header() *Header
}

// Header is embedded by every concrete Obj and holds the bookkeeping
// the GC needs: the mark bit and the intrusive next-link.
type Header struct {
	Marked bool
	Next   Obj
}

func (h *Header) header() *Header { return h }

// Mark/Unmark/IsMarked/NextObj/SetNext give the collector uniform
// access to any Obj's header without a type switch.
func Mark(o Obj)         { o.header().Marked = true }
func Unmark(o Obj)       { o.header().Marked = false }
func IsMarked(o Obj) bool { return o.header().Marked }
func NextObj(o Obj) Obj   { return o.header().Next }
func SetNext(o Obj, n Obj) { o.header().Next = n }

// ObjString is an immutable, interned byte sequence with a precomputed
// FNV-1a hash.
type ObjString struct {
	Header
	Chars string
	Hash  uint32
}

func (s *ObjString) ObjType() ObjType { return ObjTypeString }
func (s *ObjString) String() string   { return s.Chars }

// FNV1a32 computes the 32-bit FNV-1a hash spec.md §3 mandates for
// strings.
func FNV1a32(s string) uint32 {
	const offset32 = 2166136261
	const prime32 = 16777619
	h := uint32(offset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}

// ObjFunction is a compiled function: arity, upvalue-slot count, its
// owned chunk, and an optional name.
type ObjFunction struct {
	Header
	Name         *ObjString
	Arity        int
	UpvalueCount int
	Chunk        Chunk
}

func (f *ObjFunction) ObjType() ObjType { return ObjTypeFunction }
func (f *ObjFunction) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return "<fn " + f.Name.Chars + ">"
}

// Chunk is declared here (rather than imported from internal/chunk) to
// avoid a cycle: ObjFunction needs a Chunk field, and Chunk's constant
// pool holds Values (which may themselves be ObjFunction, for nested
// function literals). internal/chunk re-exports this type so callers
// outside this package spell it chunk.Chunk.
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []Value
}

// NativeFn is the host-function contract: it receives the VM (typed as
// interface{} here to avoid an import cycle with internal/vm; the VM
// casts it back), the bound receiver (NilValue for free functions like
// clock), and the call's arguments. On success it returns the result
// value and true; on failure it returns an ObjString error message
// value (or NilValue for a generic failure) and false.
type NativeFn func(vm interface{}, receiver Value, args []Value) (Value, bool)

type ObjNative struct {
	Header
	Name string
	Fn   NativeFn
}

func (n *ObjNative) ObjType() ObjType { return ObjTypeNative }
func (n *ObjNative) String() string   { return "<native fn " + n.Name + ">" }

// ObjUpvalue is either OPEN (Location points into a stack slot) or
// CLOSED (Location points at Closed, its own cell).
type ObjUpvalue struct {
	Header
	Location *Value
	Closed   Value
	NextOpen *ObjUpvalue // thread through the VM's open-upvalue list
}

func (u *ObjUpvalue) ObjType() ObjType { return ObjTypeUpvalue }
func (u *ObjUpvalue) String() string   { return "<upvalue>" }

func (u *ObjUpvalue) IsOpen() bool { return u.Location != &u.Closed }

// ObjClosure pairs a function with its captured upvalues.
type ObjClosure struct {
	Header
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

func (c *ObjClosure) ObjType() ObjType { return ObjTypeClosure }
func (c *ObjClosure) String() string   { return c.Function.String() }

// ObjBoundMethod binds an instance receiver to a scripted closure.
type ObjBoundMethod struct {
	Header
	Receiver Value
	Method   *ObjClosure
}

func (b *ObjBoundMethod) ObjType() ObjType { return ObjTypeBoundMethod }
func (b *ObjBoundMethod) String() string   { return b.Method.String() }

// ObjBoundNative binds a receiver to a built-in member function.
type ObjBoundNative struct {
	Header
	Receiver Value
	Native   *ObjNative
}

func (b *ObjBoundNative) ObjType() ObjType { return ObjTypeBoundNative }
func (b *ObjBoundNative) String() string   { return b.Native.String() }

// ObjClass carries a name and a methods table (string -> closure).
type ObjClass struct {
	Header
	Name    *ObjString
	Methods *Table
}

func (c *ObjClass) ObjType() ObjType { return ObjTypeClass }
func (c *ObjClass) String() string   { return "<class " + c.Name.Chars + ">" }

// ObjInstance references its class and holds a fields table.
type ObjInstance struct {
	Header
	Class  *ObjClass
	Fields *Table
}

func (i *ObjInstance) ObjType() ObjType { return ObjTypeInstance }
func (i *ObjInstance) String() string   { return i.Class.Name.Chars + " instance" }

// ObjList is a dynamic array of values.
type ObjList struct {
	Header
	Elements []Value
}

func (l *ObjList) ObjType() ObjType { return ObjTypeList }
func (l *ObjList) String() string {
	s := "["
	for i, e := range l.Elements {
		if i > 0 {
			s += ", "
		}
		s += e.String()
	}
	return s + "]"
}

// ObjDict is a hash table of value -> value.
type ObjDict struct {
	Header
	Table *Table
}

func (d *ObjDict) ObjType() ObjType { return ObjTypeDict }
func (d *ObjDict) String() string   { return "<dict>" }

// ObjOption is either "none" or carries a single value.
type ObjOption struct {
	Header
	HasValue bool
	Inner    Value
}

func (o *ObjOption) ObjType() ObjType { return ObjTypeOption }
func (o *ObjOption) String() string {
	if !o.HasValue {
		return "none"
	}
	return "some(" + o.Inner.String() + ")"
}

// ObjModule is the namespace object produced by `import "path" as
// name`: the import path as written plus the module's globals table.
type ObjModule struct {
	Header
	Path    string
	Globals *Table
}

func (m *ObjModule) ObjType() ObjType { return ObjTypeModule }
func (m *ObjModule) String() string   { return "<module " + m.Path + ">" }
