package value

import "fmt"

// entry is one hash table slot. An empty slot has Key.IsEmpty() and
// Value.IsNil(); a tombstone has Key.IsEmpty() and Value == true (spec.md
// §4.2's own encoding, reused verbatim so Count (which includes
// tombstones) and the load-factor check stay correct without a
// separate bool).
type entry struct {
	key   Value
	value Value
}

func (e entry) isEmptySlot() bool     { return e.key.IsEmpty() && e.value.IsNil() }
func (e entry) isTombstone() bool     { return e.key.IsEmpty() && !e.value.IsNil() }

// Table is an open-addressed hash table keyed by Value, with linear
// probing, power-of-two capacity, and a 0.75 max load factor (spec.md
// §4.2). It backs Raven's globals table, the string intern table,
// class method tables, instance field tables, and ObjDict's storage.
type Table struct {
	count    int // includes tombstones
	entries  []entry
}

const tableMaxLoad = 0.75

func NewTable() *Table { return &Table{} }

func (t *Table) Count() int { return t.count }

// Get looks up key, returning (value, true) if present.
func (t *Table) Get(key Value) (Value, bool) {
	if len(t.entries) == 0 {
		return NilValue(), false
	}
	e, found, err := t.find(key)
	if err != nil || !found {
		return NilValue(), false
	}
	return e.value, true
}

// Set inserts or overwrites key -> val. Returns true if this created a
// brand new key (as opposed to overwriting an existing one).
func (t *Table) Set(key Value, val Value) (bool, error) {
	if float64(t.count+1) > float64(len(t.entries))*tableMaxLoad {
		if err := t.grow(growCapacity(len(t.entries))); err != nil {
			return false, err
		}
	}
	idx, err := t.findSlot(key)
	if err != nil {
		return false, err
	}
	e := &t.entries[idx]
	isNew := e.key.IsEmpty() // empty slot or reused tombstone
	if isNew && e.value.IsNil() {
		t.count++
	}
	e.key = key
	e.value = val
	return isNew, nil
}

// Delete writes a tombstone at key's slot, if present.
func (t *Table) Delete(key Value) (bool, error) {
	if len(t.entries) == 0 {
		return false, nil
	}
	e, found, err := t.find(key)
	if err != nil || !found {
		return false, err
	}
	e.key = EmptyValue()
	e.value = BoolValue(true) // tombstone marker
	return true, nil
}

// FindString looks up an interned string by its raw bytes and
// precomputed hash without allocating a new ObjString, as spec.md
// §4.2 requires for interning.
func (t *Table) FindString(chars string, hash uint32) *ObjString {
	if len(t.entries) == 0 {
		return nil
	}
	mask := uint32(len(t.entries) - 1)
	idx := hash & mask
	for {
		e := &t.entries[idx]
		if e.isEmptySlot() {
			return nil
		}
		if e.key.IsObj() {
			if s, ok := e.key.AsObj().(*ObjString); ok && s.Hash == hash && s.Chars == chars {
				return s
			}
		}
		idx = (idx + 1) & mask
	}
}

// AddAll bulk-copies every entry of src into t (used by OP_INHERIT).
func (t *Table) AddAll(src *Table) error {
	for _, e := range src.entries {
		if !e.isEmptySlot() && !e.isTombstone() {
			if _, err := t.Set(e.key, e.value); err != nil {
				return err
			}
		}
	}
	return nil
}

// Each calls fn for every live (non-empty, non-tombstone) entry.
func (t *Table) Each(fn func(key, val Value)) {
	for _, e := range t.entries {
		if !e.isEmptySlot() && !e.isTombstone() {
			fn(e.key, e.value)
		}
	}
}

// Mark marks every live key and value object for the GC.
func (t *Table) Mark(mark func(Value)) {
	for _, e := range t.entries {
		if !e.isEmptySlot() && !e.isTombstone() {
			mark(e.key)
			mark(e.value)
		}
	}
}

// RemoveWhite deletes entries whose key object was not marked white ->
// this is how the string intern table lets unreferenced strings be
// collected (spec.md §4.2/§4.6).
func (t *Table) RemoveWhite() {
	for i := range t.entries {
		e := &t.entries[i]
		if e.isEmptySlot() || e.isTombstone() {
			continue
		}
		if e.key.IsObj() && !IsMarked(e.key.AsObj()) {
			e.key = EmptyValue()
			e.value = BoolValue(true)
		}
	}
}

func (t *Table) find(key Value) (*entry, bool, error) {
	idx, err := t.findSlot(key)
	if err != nil {
		return nil, false, err
	}
	e := &t.entries[idx]
	if e.isEmptySlot() {
		return nil, false, nil
	}
	return e, true, nil
}

// findSlot walks slots starting at key's hash bucket, skipping
// tombstones but remembering the first one seen as an insertion
// candidate, and stopping at a truly empty slot or a matching key.
func (t *Table) findSlot(key Value) (uint32, error) {
	h, err := key.Hash()
	if err != nil {
		return 0, fmt.Errorf("Unhashable type.")
	}
	mask := uint32(len(t.entries) - 1)
	idx := h & mask
	var tombstone *uint32
	for {
		e := &t.entries[idx]
		if e.isEmptySlot() {
			if tombstone != nil {
				return *tombstone, nil
			}
			return idx, nil
		}
		if e.isTombstone() {
			if tombstone == nil {
				i := idx
				tombstone = &i
			}
		} else if Equal(e.key, key) {
			return idx, nil
		}
		idx = (idx + 1) & mask
	}
}

func growCapacity(cap int) int {
	if cap < 8 {
		return 8
	}
	return cap * 2
}

func (t *Table) grow(newCap int) error {
	old := t.entries
	t.entries = make([]entry, newCap)
	for i := range t.entries {
		t.entries[i] = entry{key: EmptyValue(), value: NilValue()}
	}
	t.count = 0
	for _, e := range old {
		if e.isEmptySlot() || e.isTombstone() {
			continue
		}
		idx, err := t.findSlot(e.key)
		if err != nil {
			return err
		}
		t.entries[idx] = e
		t.count++
	}
	return nil
}
