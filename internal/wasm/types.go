package wasm

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// ValueType is a Wasm value type, encoded exactly as the binary format's
// type byte so translator code can use the decoded byte directly.
type ValueType byte

const (
	ValueTypeI32       ValueType = 0x7f
	ValueTypeI64       ValueType = 0x7e
	ValueTypeF32       ValueType = 0x7d
	ValueTypeF64       ValueType = 0x7c
	ValueTypeV128      ValueType = 0x7b
	ValueTypeFuncref   ValueType = 0x70
	ValueTypeExternref ValueType = 0x6f
)

func (v ValueType) String() string {
	switch v {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeV128:
		return "v128"
	case ValueTypeFuncref:
		return "funcref"
	case ValueTypeExternref:
		return "externref"
	default:
		return fmt.Sprintf("0x%x", byte(v))
	}
}

// IsReference reports whether v is one of the reference value types.
func (v ValueType) IsReference() bool {
	return v == ValueTypeFuncref || v == ValueTypeExternref
}

// FunctionType is the shape of the wasm `func` composite type: ordered
// parameter and result value types.
type FunctionType struct {
	Params  []ValueType
	Results []ValueType
}

// String renders the same compact signature wazero uses for debug names
// and cache keys, e.g. "i32i64_f32".
func (f *FunctionType) String() string {
	s := valueTypesString(f.Params)
	s += "_"
	s += valueTypesString(f.Results)
	return s
}

func valueTypesString(vs []ValueType) string {
	if len(vs) == 0 {
		return "null"
	}
	out := make([]byte, 0, len(vs)*3)
	for _, v := range vs {
		out = append(out, v.String()...)
	}
	return string(out)
}

// StorageType is a field/element storage type: either a ValueType or, for
// GC-proposal packed fields, an 8/16-bit packed type. Only ValueType is
// exercised by this engine (packed fields are parsed but never narrowed by
// the baseline backend); spec §1 places full GC support out of scope.
type StorageType struct {
	Value  ValueType
	Packed bool
	// PackedBits is 8 or 16 when Packed is true.
	PackedBits uint8
}

// FieldType is one field of a struct or array composite type.
type FieldType struct {
	Storage   StorageType
	Immutable bool
}

// CompositeTypeKind discriminates the three composite type shapes a
// sub-type can carry (spec §3 "Types").
type CompositeTypeKind uint8

const (
	CompositeKindFunc CompositeTypeKind = iota
	CompositeKindArray
	CompositeKindStruct
)

// CompositeType is the tagged union of the three shapes a sub-type's body
// can take.
type CompositeType struct {
	Kind   CompositeTypeKind
	Func   *FunctionType // set iff Kind == CompositeKindFunc
	Array  *FieldType    // set iff Kind == CompositeKindArray
	Struct []FieldType   // set iff Kind == CompositeKindStruct
}

// hash writes a stable content hash of the composite type into h. Used by
// the rec-group interner (below) to decide in O(1) whether an incoming
// group duplicates one already interned, rather than deep-comparing every
// element pairwise against every previously interned group.
func (c *CompositeType) hash(h *xxhash.Digest) {
	_, _ = h.Write([]byte{byte(c.Kind)})
	switch c.Kind {
	case CompositeKindFunc:
		for _, p := range c.Func.Params {
			_, _ = h.Write([]byte{byte(p)})
		}
		_, _ = h.Write([]byte{0xff})
		for _, r := range c.Func.Results {
			_, _ = h.Write([]byte{byte(r)})
		}
	case CompositeKindArray:
		hashField(h, *c.Array)
	case CompositeKindStruct:
		for _, f := range c.Struct {
			hashField(h, f)
		}
	}
}

func hashField(h *xxhash.Digest, f FieldType) {
	_, _ = h.Write([]byte{byte(f.Storage.Value), boolByte(f.Storage.Packed), f.Storage.PackedBits, boolByte(f.Immutable)})
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// HeapTypeRef is a reference to a heap type inside a SubType's supertype
// or a composite type's field: either a concrete interned index, or one
// of the abstract heap types (func, extern, any, none, ...). Only the
// concrete-index and func/extern/none cases are exercised.
type HeapTypeRef struct {
	// Concrete is true when Index addresses an InternedTypeIndex.
	Concrete bool
	Index    InternedTypeIndex
	Abstract AbstractHeapType
}

type AbstractHeapType uint8

const (
	AbstractHeapFunc AbstractHeapType = iota
	AbstractHeapExtern
	AbstractHeapAny
	AbstractHeapNone
	AbstractHeapNoFunc
	AbstractHeapNoExtern
	AbstractHeapI31
)

// SubType is one element of a recursion group: a composite type plus the
// GC-proposal sub-typing metadata (spec §3 "Types").
type SubType struct {
	IsFinal    bool
	Supertype  *HeapTypeRef // nil if this sub-type has no explicit supertype
	Composite  CompositeType
	Shared     bool
	// GroupIndex is the index of this element within its recursion
	// group, and RecGroupStart is the interned index of the group's
	// first element -- together they let a converter resolve
	// intra-group references before the whole group is committed
	// (spec §4.1, §9).
	GroupIndex    int
	RecGroupStart InternedTypeIndex
}

// RecGroup is a contiguous range of interned indices carrying the sub-types
// decoded from one Wasm binary recursion group.
type RecGroup struct {
	Start InternedTypeIndex
	Len   int
}

// TypeInterner canonicalises recursion groups of sub-types into a single
// dense index space owned by one Module, per spec §3/§4.1/§9: "once a recursion
// group from the binary has been seen, all its element types receive
// dense, contiguous indices and subsequent identical groups reuse those
// indices". Not safe for concurrent use: a Module owns one interner for
// the lifetime of its translation, matching the single-threaded-at-a-Store
// model of spec §5.
type TypeInterner struct {
	types []SubType
	// bySignature maps a content hash of a whole recursion group to the
	// RecGroup(s) previously interned with that hash, so an incoming
	// group can be checked for duplication without rescanning every
	// previously seen group.
	bySignature map[uint64][]RecGroup
}

// NewTypeInterner returns an empty interner.
func NewTypeInterner() *TypeInterner {
	return &TypeInterner{bySignature: make(map[uint64][]RecGroup)}
}

// Len returns the number of interned sub-types across every committed
// recursion group.
func (t *TypeInterner) Len() int { return len(t.types) }

// At returns the interned sub-type for idx. Panics if idx is out of range:
// every concrete heap type reference is required (spec §3 invariant) to
// resolve to an entry in this table, so an out-of-range lookup is a
// translator bug, not a user error.
func (t *TypeInterner) At(idx InternedTypeIndex) *SubType {
	if int(idx) >= len(t.types) {
		panic(fmt.Sprintf("BUG: interned type index %d out of range (len=%d)", idx, len(t.types)))
	}
	return &t.types[idx]
}

// groupHash computes a content hash for a candidate recursion group.
// Concrete heap-type references are hashed by the index they carry (the
// module-local type index the translator stored), without rewriting
// intra-group references to in-group positions.
func groupHash(group []SubType) uint64 {
	h := xxhash.New()
	for i := range group {
		s := &group[i]
		_, _ = h.Write([]byte{boolByte(s.IsFinal), boolByte(s.Shared)})
		if s.Supertype != nil {
			_, _ = h.Write([]byte{1})
			writeHeapTypeRef(h, *s.Supertype, group)
		} else {
			_, _ = h.Write([]byte{0})
		}
		hashCompositeGroupRelative(h, &s.Composite, group)
	}
	return h.Sum64()
}

func writeHeapTypeRef(h *xxhash.Digest, ref HeapTypeRef, group []SubType) {
	if ref.Concrete {
		// The low byte of the stored index is hashed as is, whether or
		// not the reference points inside the group being hashed.
		_, _ = h.Write([]byte{2, byte(ref.Index)})
	} else {
		_, _ = h.Write([]byte{3, byte(ref.Abstract)})
	}
}

func hashCompositeGroupRelative(h *xxhash.Digest, c *CompositeType, group []SubType) {
	c.hash(h)
}

// InternRecGroup interns a recursion group decoded from the binary. If an
// identical group (same hash and same composite bodies, see
// subTypeStructurallyEqual) was already interned, its existing range is
// reused and reused=true is returned; otherwise a fresh contiguous range is
// reserved, group is appended with only RecGroupStart/GroupIndex filled in
// (its HeapTypeRefs are stored unchanged), and reused=false is returned.
func (t *TypeInterner) InternRecGroup(group []SubType) (RecGroup, bool) {
	sig := groupHash(group)
	for _, candidate := range t.bySignature[sig] {
		if t.groupEquals(candidate, group) {
			return candidate, true
		}
	}
	start := InternedTypeIndex(len(t.types))
	for i := range group {
		group[i].RecGroupStart = start
		group[i].GroupIndex = i
	}
	t.types = append(t.types, group...)
	rg := RecGroup{Start: start, Len: len(group)}
	t.bySignature[sig] = append(t.bySignature[sig], rg)
	return rg, false
}

func (t *TypeInterner) groupEquals(candidate RecGroup, group []SubType) bool {
	if candidate.Len != len(group) {
		return false
	}
	for i := 0; i < candidate.Len; i++ {
		existing := &t.types[int(candidate.Start)+i]
		if !subTypeStructurallyEqual(existing, &group[i], candidate.Start, group) {
			return false
		}
	}
	return true
}

func subTypeStructurallyEqual(existing, candidate *SubType, existingGroupStart InternedTypeIndex, candidateGroup []SubType) bool {
	if existing.IsFinal != candidate.IsFinal || existing.Shared != candidate.Shared {
		return false
	}
	if (existing.Supertype == nil) != (candidate.Supertype == nil) {
		return false
	}
	if existing.Composite.Kind != candidate.Composite.Kind {
		return false
	}
	// The composite bodies are compared field by field so a hash collision
	// between different groups is not mistaken for a duplicate. Supertype
	// HeapTypeRefs are compared only for presence, not for their target.
	switch existing.Composite.Kind {
	case CompositeKindFunc:
		if existing.Composite.Func.String() != candidate.Composite.Func.String() {
			return false
		}
	case CompositeKindArray:
		if *existing.Composite.Array != *candidate.Composite.Array {
			return false
		}
	case CompositeKindStruct:
		if fmt.Sprint(existing.Composite.Struct) != fmt.Sprint(candidate.Composite.Struct) {
			return false
		}
	}
	return true
}
