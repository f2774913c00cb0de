package wasm

// Index is the dense integer handle shared by every entity kind's index
// space. The teacher (wazero) uses one untyped alias for all index kinds;
// the spec requires each kind to be its own type so that, e.g., a
// DefinedMemoryIndex can never be passed where a TotalMemoryIndex is
// expected without an explicit conversion. We keep wazero's underlying
// representation (uint32) but wrap it per kind.
type Index = uint32

// FuncIndex addresses the function index space (imports first, then
// defined functions).
type FuncIndex uint32

// DefinedFuncIndex addresses only the defined (non-imported) function
// space: DefinedFuncIndex(0) is the first function with a Code section
// entry, regardless of how many functions were imported.
type DefinedFuncIndex uint32

// TableIndex, DefinedTableIndex: same pattern, for tables.
type (
	TableIndex        uint32
	DefinedTableIndex uint32
)

// MemoryIndex, DefinedMemoryIndex: same pattern, for memories.
type (
	MemoryIndex        uint32
	DefinedMemoryIndex uint32
)

// GlobalIndex, DefinedGlobalIndex: same pattern, for globals.
type (
	GlobalIndex        uint32
	DefinedGlobalIndex uint32
)

// TagIndex addresses the exception-tag index space (always empty: spec §1
// places exceptions out of scope, but the index type still exists so a
// module that imports zero tags round-trips cleanly).
type TagIndex uint32

// TypeIndex addresses the *module-local* ordinal a module assigns to a
// type in its own Type section, before interning. Once interned, a type
// is addressed by InternedTypeIndex instead.
type TypeIndex uint32

// InternedTypeIndex addresses a Module's canonical type table built
// by recursion-group interning (spec §3 "Types", §4.1, §9).
type InternedTypeIndex uint32

// DataIndex addresses a module's Data section entries (active and
// passive alike); an active segment's data is also dropped under this
// index once applied to a memory (spec §4.4).
type DataIndex uint32

// ElemIndex addresses a module's Element section entries.
type ElemIndex uint32

// FieldIndex addresses a field within a struct or array composite type.
type FieldIndex uint32

// LabelIndex addresses a branch target depth inside one function body.
type LabelIndex uint32

// LocalIndex addresses a local (including parameters) inside one function
// body.
type LocalIndex uint32

// FuncRefIndex addresses the dense func-ref slot assigned to an escaping
// function (spec §3 VMContext `func_refs`, §4.1 "escaping").
type FuncRefIndex uint32

// ToDefinedFuncIndex converts a total function index into a defined one.
// Panics if idx is still within the imported prefix: callers must check
// IsDefinedFunc first. This mirrors the layout-plan accessor contract in
// spec §4.3: out-of-range conversions are a compiler bug, not user error.
func ToDefinedFuncIndex(idx FuncIndex, numImportedFuncs uint32) DefinedFuncIndex {
	if uint32(idx) < numImportedFuncs {
		panic("BUG: ToDefinedFuncIndex called with an imported function index")
	}
	return DefinedFuncIndex(uint32(idx) - numImportedFuncs)
}

// ToFuncIndex converts a defined function index back into a total one.
func ToFuncIndex(idx DefinedFuncIndex, numImportedFuncs uint32) FuncIndex {
	return FuncIndex(uint32(idx) + numImportedFuncs)
}

// ToDefinedTableIndex and ToTableIndex: same conversion, for tables.
func ToDefinedTableIndex(idx TableIndex, numImportedTables uint32) DefinedTableIndex {
	if uint32(idx) < numImportedTables {
		panic("BUG: ToDefinedTableIndex called with an imported table index")
	}
	return DefinedTableIndex(uint32(idx) - numImportedTables)
}

func ToTableIndex(idx DefinedTableIndex, numImportedTables uint32) TableIndex {
	return TableIndex(uint32(idx) + numImportedTables)
}

// ToDefinedMemoryIndex and ToMemoryIndex: same conversion, for memories.
func ToDefinedMemoryIndex(idx MemoryIndex, numImportedMemories uint32) DefinedMemoryIndex {
	if uint32(idx) < numImportedMemories {
		panic("BUG: ToDefinedMemoryIndex called with an imported memory index")
	}
	return DefinedMemoryIndex(uint32(idx) - numImportedMemories)
}

func ToMemoryIndex(idx DefinedMemoryIndex, numImportedMemories uint32) MemoryIndex {
	return MemoryIndex(uint32(idx) + numImportedMemories)
}

// ToDefinedGlobalIndex and ToGlobalIndex: same conversion, for globals.
func ToDefinedGlobalIndex(idx GlobalIndex, numImportedGlobals uint32) DefinedGlobalIndex {
	if uint32(idx) < numImportedGlobals {
		panic("BUG: ToDefinedGlobalIndex called with an imported global index")
	}
	return DefinedGlobalIndex(uint32(idx) - numImportedGlobals)
}

func ToGlobalIndex(idx DefinedGlobalIndex, numImportedGlobals uint32) GlobalIndex {
	return GlobalIndex(uint32(idx) + numImportedGlobals)
}
