package vm

import (
	"unsafe"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasmerr"
)

// Table is a single funcref/externref table backing a Table definition
// (spec §3 Table). Unlike Memory, a table's elements are VMVal cells, not
// raw bytes, so it is backed by a plain Go slice rather than an mmap
// reservation -- growth reallocates, matching the teacher's own table
// implementation (tables are rarely large enough for mmap to pay off).
type Table struct {
	elems  []VMVal
	max    uint64
	hasMax bool
}

// NewTable allocates a table of min elements, every slot initialised to
// null, growable up to max if hasMax.
func NewTable(min, max uint64, hasMax bool, null VMVal) *Table {
	t := &Table{max: max, hasMax: hasMax}
	t.elems = make([]VMVal, min)
	for i := range t.elems {
		t.elems[i] = null
	}
	return t
}

// Len returns the current element count.
func (t *Table) Len() uint64 { return uint64(len(t.elems)) }

// Get returns the element at idx, or an error if idx is out of bounds
// (spec §3 Table invariant "table.get/table.set bounds-check against the
// current length, not the reserved maximum").
func (t *Table) Get(idx uint64) (VMVal, error) {
	if idx >= uint64(len(t.elems)) {
		return VMVal{}, wasmerr.Trap(wasmerr.TrapTableOutOfBounds, nil, "table index %d out of bounds (length %d)", idx, len(t.elems))
	}
	return t.elems[idx], nil
}

// Set writes the element at idx.
func (t *Table) Set(idx uint64, v VMVal) error {
	if idx >= uint64(len(t.elems)) {
		return wasmerr.Trap(wasmerr.TrapTableOutOfBounds, nil, "table index %d out of bounds (length %d)", idx, len(t.elems))
	}
	t.elems[idx] = v
	return nil
}

// Grow grows the table by delta elements, filled with null, returning the
// previous length or -1 if delta would exceed the declared maximum.
func (t *Table) Grow(delta uint64, null VMVal) int64 {
	old := uint64(len(t.elems))
	newLen := old + delta
	if t.hasMax && newLen > t.max {
		return -1
	}
	grown := make([]VMVal, newLen)
	copy(grown, t.elems)
	for i := old; i < newLen; i++ {
		grown[i] = null
	}
	t.elems = grown
	return int64(old)
}

// Fill writes v into elems[offset:offset+n], as the table.fill instruction
// does.
func (t *Table) Fill(offset, n uint64, v VMVal) error {
	if offset+n > uint64(len(t.elems)) {
		return wasmerr.Trap(wasmerr.TrapTableOutOfBounds, nil, "table.fill range [%d,%d) out of bounds (length %d)", offset, offset+n, len(t.elems))
	}
	for i := offset; i < offset+n; i++ {
		t.elems[i] = v
	}
	return nil
}

// BasePtr and CurrentLength are what vmcontext.WriteDefinedTable records:
// compiled code indexes elems directly via these two fields (spec §3
// VMContext "defined tables").
func (t *Table) BasePtr() uint64 {
	if len(t.elems) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&t.elems[0])))
}

func (t *Table) CurrentLength() uint32 { return uint32(len(t.elems)) }
