package wasm

import "github.com/JonasKruckenberg/k23VM-sub000/internal/wasmerr"

// ExternKind discriminates the four entity kinds an Import or Export can
// name.
type ExternKind byte

const (
	ExternKindFunc ExternKind = iota
	ExternKindTable
	ExternKindMemory
	ExternKindGlobal
)

func (k ExternKind) String() string {
	switch k {
	case ExternKindFunc:
		return "func"
	case ExternKindTable:
		return "table"
	case ExternKindMemory:
		return "memory"
	case ExternKindGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// Limits is the (minimum, optional maximum) pair shared by Table and
// Memory descriptors.
type Limits struct {
	Min uint64
	Max uint64 // only meaningful if HasMax
	HasMax bool
	// Shared marks a memory/table as usable from multiple agents (the
	// threads proposal). Parsed, but the const-eval and instance
	// allocator treat it identically to a non-shared one: actual
	// cross-thread atomics are out of scope per spec §1 Non-goals
	// (beyond what a single-threaded Store needs to round-trip).
	Shared bool
}

// TableType describes a table's element type and size limits.
type TableType struct {
	ElemType ValueType // ValueTypeFuncref or ValueTypeExternref
	Limits   Limits
}

// MemoryType describes a memory's size limits, in page units (64KiB) as
// encoded in the binary; internal/vm converts to byte units at
// instantiation.
type MemoryType struct {
	Limits Limits
	// Is64 marks a memory64-proposal memory (64-bit indices). The binary
	// translator never sets it (the limits' 64-bit flag is not read), so
	// every decoded memory has Is64 false.
	Is64 bool
}

// GlobalType describes a global's value type and mutability.
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// Import is one entry of the Import section. Exactly one of the Desc*
// fields is meaningful, selected by Kind.
type Import struct {
	Module, Name string
	Kind         ExternKind
	DescFunc     InternedTypeIndex
	DescTable    TableType
	DescMemory   MemoryType
	DescGlobal   GlobalType
}

// Export is one entry of the Export section.
type Export struct {
	Name  string
	Kind  ExternKind
	Index Index
}

// Global is one entry of the (defined) Global section: its type plus the
// const-expression that produces its initial value.
type Global struct {
	Type GlobalType
	Init ConstExpr
}

// Table is one entry of the (defined) Table section. Init is non-nil only
// for the function-references proposal's table initialiser syntax.
type Table struct {
	Type TableType
	Init *ConstExpr
}

// Memory is one entry of the (defined) Memory section.
type Memory struct {
	Type MemoryType
}

// ElementMode discriminates an element segment's three binary-format
// modes.
type ElementMode byte

const (
	ElementModeActive ElementMode = iota
	ElementModePassive
	ElementModeDeclared
)

// ElementSegment is one entry of the Element section (spec §4.1
// "Elements... split into active... and passive").
type ElementSegment struct {
	Mode ElementMode
	// TableIndex/Offset are only meaningful when Mode == ElementModeActive.
	TableIndex TableIndex
	Offset     ConstExpr
	ElemType   ValueType
	// Funcs holds the resolved function indices when every element is a
	// bare `ref.func`, the common case; Exprs holds per-element
	// const-expressions otherwise. Exactly one is non-nil.
	Funcs []FuncIndex
	Exprs []ConstExpr
}

// DataSegment is one entry of the Data section.
type DataSegment struct {
	Mode ElementMode // ElementModeActive or ElementModePassive only
	// MemoryIndex/Offset are only meaningful when Mode == ElementModeActive.
	MemoryIndex MemoryIndex
	Offset      ConstExpr
	// Init is the raw payload bytes.
	Init []byte
	// BlobOffset is this segment's start offset within the module's
	// concatenated data blob (spec §4.1 "Offsets into the concatenated
	// data blob are computed incrementally").
	BlobOffset uint64
}

// NameSection holds the parsed custom "name" section.
type NameSection struct {
	ModuleName    string
	FunctionNames map[FuncIndex]string
	LocalNames    map[FuncIndex]map[LocalIndex]string
}

// DebugInfo bundles the producers/target_features custom sections plus the
// union of parsed DWARF sections, as raw bytes -- the DWARF parser itself
// is invoked by the compiler driver while assembling the final image
// (spec §4.2 step 4), not by the translator.
type DebugInfo struct {
	Producers      map[string]string
	TargetFeatures []string
	DWARFSections  map[string][]byte
}

// Module is the shared, immutable-after-build representation produced by
// the translator and, once compiled, owning its CompiledCodeImage and
// VMContext layout plan (spec §3 "Module").
type Module struct {
	Types *TypeInterner

	// TypeSection maps a module-local TypeIndex to an InternedTypeIndex,
	// after recursion-group interning.
	TypeSection []InternedTypeIndex

	ImportSection []Import
	// NumImportedFuncs/Tables/Memories/Globals/Tags are the counts of each
	// kind's imported prefix -- bumped incrementally while parsing the
	// Import section (spec §4.1 "Imports").
	NumImportedFuncs, NumImportedTables, NumImportedMemories, NumImportedGlobals, NumImportedTags uint32

	// FunctionSection holds, for each *defined* function, its module-local
	// type index (already resolved into the interned type table).
	FunctionSection []InternedTypeIndex
	TableSection    []Table
	MemorySection   []Memory
	GlobalSection   []Global

	ExportSection []Export
	// Exports indexes ExportSection by name for O(1) lookup (spec §4.1
	// "record name -> (kind, index)").
	Exports map[string]Export

	StartFunc *FuncIndex

	ElementSection []ElementSegment
	DataSection    []DataSegment
	// DataBlobLen is the total length of the concatenated data blob;
	// translation fails if it would exceed 2^32 (spec §4.1).
	DataBlobLen uint64

	NameSection *NameSection
	DebugInfo   DebugInfo

	RequiredFeatures CoreFeatures

	// EscapingFuncs is the set of function indices that are observable by
	// guest code (spec §4.1 "escaping"): exported, ref.func'd in a
	// const-expression, or named by an element segment. FuncRefIndices
	// maps each to its dense func-ref slot.
	EscapingFuncs map[FuncIndex]struct{}
	FuncRefIndices map[FuncIndex]FuncRefIndex
	NumFuncRefs    uint32

	// Code/CompiledImage/LayoutPlan are filled in by the compiler driver
	// (internal/compiler) and the layout planner (internal/vm) after
	// translation; a Module produced by the translator alone has them
	// nil/zero.
	CompiledImage interface{} // *compiler.CompiledCodeImage; interface{} avoids an import cycle
	LayoutPlan    interface{} // *vm.LayoutPlan
}

// NumFunctions returns the total size of the function index space
// (imported + defined).
func (m *Module) NumFunctions() int {
	return int(m.NumImportedFuncs) + len(m.FunctionSection)
}

// IsDefinedFunc reports whether idx addresses a defined (non-imported)
// function (spec §3 Module invariant).
func (m *Module) IsDefinedFunc(idx FuncIndex) bool {
	return uint32(idx) >= m.NumImportedFuncs
}

// FuncTypeIndex returns the interned type index of function idx, whether
// imported or defined.
func (m *Module) FuncTypeIndex(idx FuncIndex) InternedTypeIndex {
	if !m.IsDefinedFunc(idx) {
		imp := m.ImportSection[idx]
		if imp.Kind != ExternKindFunc {
			panic("BUG: FuncTypeIndex called on non-function import")
		}
		return imp.DescFunc
	}
	return m.FunctionSection[ToDefinedFuncIndex(idx, m.NumImportedFuncs)]
}

// FuncType resolves idx all the way to its *FunctionType.
func (m *Module) FuncType(idx FuncIndex) *FunctionType {
	return m.Types.At(m.FuncTypeIndex(idx)).Composite.Func
}

// IsFuncRefReserved reports whether idx has a reserved func-ref slot, i.e.
// whether the function is escaping (spec §3 Module invariant: "a func-ref
// index is reserved iff the function is non-escaping" is this predicate's
// negation worded from the other direction -- every *escaping* function
// gets a slot).
func (m *Module) IsFuncRefReserved(idx FuncIndex) bool {
	_, ok := m.EscapingFuncs[idx]
	return ok
}

// MarkEscaping records that idx is observable by guest code, assigning it
// a dense func-ref slot the first time it is marked (spec §4.1).
func (m *Module) MarkEscaping(idx FuncIndex) FuncRefIndex {
	if m.EscapingFuncs == nil {
		m.EscapingFuncs = make(map[FuncIndex]struct{})
		m.FuncRefIndices = make(map[FuncIndex]FuncRefIndex)
	}
	if slot, ok := m.FuncRefIndices[idx]; ok {
		return slot
	}
	m.EscapingFuncs[idx] = struct{}{}
	slot := FuncRefIndex(m.NumFuncRefs)
	m.FuncRefIndices[idx] = slot
	m.NumFuncRefs++
	return slot
}

// ValidateImportOrder checks the spec §3 Module invariant that import
// counts exactly match the prefix of each entity's index space: every
// Import must precede any defined entity of the same kind, because the
// binary format requires the whole Import section before the Function/
// Table/Memory/Global sections.
func (m *Module) ValidateImportOrder() error {
	var funcs, tables, mems, globals, tags uint32
	for _, imp := range m.ImportSection {
		switch imp.Kind {
		case ExternKindFunc:
			funcs++
		case ExternKindTable:
			tables++
		case ExternKindMemory:
			mems++
		case ExternKindGlobal:
			globals++
		}
	}
	_ = tags
	if funcs != m.NumImportedFuncs || tables != m.NumImportedTables ||
		mems != m.NumImportedMemories || globals != m.NumImportedGlobals {
		return wasmerr.InvalidWasmf("import counts do not match the import section prefix")
	}
	return nil
}

// TableElemCount returns the total number of tables (imported + defined).
func (m *Module) TableElemCount() int { return int(m.NumImportedTables) + len(m.TableSection) }

// MemoryElemCount returns the total number of memories (imported +
// defined).
func (m *Module) MemoryElemCount() int { return int(m.NumImportedMemories) + len(m.MemorySection) }

// GlobalElemCount returns the total number of globals (imported +
// defined).
func (m *Module) GlobalElemCount() int { return int(m.NumImportedGlobals) + len(m.GlobalSection) }
