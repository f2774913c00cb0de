// Package vm implements the per-instance runtime block compiled code
// directly accesses (VMContext), the instance allocator/initialiser, the
// const-expression evaluator, and the Memory/Table/Global definitions that
// back a live instantiation (spec §3, §4.3, §4.4, §4.5).
package vm

import "github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"

// Offset is a byte offset into a VMContext block. Modeled on the teacher's
// wazevoapi.Offset: a distinct type so a raw int is never passed where a
// validated offset is expected.
type Offset int32

const ptrSize = 8 // this engine targets 64-bit hosts only (spec §4.3 "target pointer size")

// Fixed-schema field sizes (spec §3 VMContext schema, top to bottom).
const (
	sizeMagic            = 4
	sizeBuiltinFunctions = ptrSize
	sizeStackLimit       = ptrSize
	sizeLastWasmExitFP   = ptrSize
	sizeLastWasmExitPC   = ptrSize
	sizeLastWasmEntryFP  = ptrSize
	sizeFuncRef          = 24 // wasm_call ptr + vmctx ptr + type id
	sizeImportedFunc     = 24 // host_call ptr + wasm_call ptr + vmctx ptr, one word each
	sizeImportedTable    = 16 // def-ptr + owner-vmctx
	sizeImportedMemory   = 16
	sizeImportedGlobal   = ptrSize
	sizeDefinedTable     = 16 // base + current_length
	sizeDefinedMemory    = 16
	sizeDefinedGlobal    = 16 // 16-byte value cell
)

// LayoutPlan is the pre-computed, per-Module description of every
// VMContext field's exact byte offset (spec §3 VMContext, §4.3). It is
// built once per Module from import/definition counts and never mutated
// again; an Instance's VMContext byte block is always read/written
// through a LayoutPlan accessor, never raw arithmetic at the call site
// (spec §9 design note).
type LayoutPlan struct {
	TotalSize Offset

	magicOffset             Offset
	builtinFunctionsOffset  Offset
	stackLimitOffset        Offset
	lastWasmExitFPOffset    Offset
	lastWasmExitPCOffset    Offset
	lastWasmEntryFPOffset   Offset
	funcRefsOffset          Offset
	importedFuncsOffset     Offset
	importedTablesOffset    Offset
	importedMemoriesOffset  Offset
	importedGlobalsOffset   Offset
	tablesOffset            Offset
	memoriesOffset          Offset
	globalsOffset           Offset

	numFuncRefs          uint32
	numImportedFuncs     uint32
	numImportedTables    uint32
	numImportedMemories  uint32
	numImportedGlobals   uint32
	numDefinedTables     uint32
	numDefinedMemories   uint32
	numDefinedGlobals    uint32
}

// NewLayoutPlan computes a LayoutPlan for m, following the exact field
// order given in spec §3: magic, builtin_functions, stack_limit,
// last_wasm_exit_fp/pc, last_wasm_entry_fp, func_refs, imported_funcs,
// imported_tables, imported_memories, imported_globals, tables, memories,
// globals; padded to the host page size at the end.
func NewLayoutPlan(m *wasm.Module) *LayoutPlan {
	p := &LayoutPlan{
		numFuncRefs:         m.NumFuncRefs,
		numImportedFuncs:    m.NumImportedFuncs,
		numImportedTables:   m.NumImportedTables,
		numImportedMemories: m.NumImportedMemories,
		numImportedGlobals:  m.NumImportedGlobals,
		numDefinedTables:    uint32(len(m.TableSection)),
		numDefinedMemories:  uint32(len(m.MemorySection)),
		numDefinedGlobals:   uint32(len(m.GlobalSection)),
	}

	off := Offset(0)
	p.magicOffset = off
	off += sizeMagic
	// Align to pointer size before the first pointer-sized field.
	off = alignUp(off, ptrSize)

	p.builtinFunctionsOffset = off
	off += sizeBuiltinFunctions
	p.stackLimitOffset = off
	off += sizeStackLimit
	p.lastWasmExitFPOffset = off
	off += sizeLastWasmExitFP
	p.lastWasmExitPCOffset = off
	off += sizeLastWasmExitPC
	p.lastWasmEntryFPOffset = off
	off += sizeLastWasmEntryFP

	p.funcRefsOffset = off
	off += Offset(p.numFuncRefs) * sizeFuncRef

	p.importedFuncsOffset = off
	off += Offset(p.numImportedFuncs) * sizeImportedFunc

	p.importedTablesOffset = off
	off += Offset(p.numImportedTables) * sizeImportedTable

	p.importedMemoriesOffset = off
	off += Offset(p.numImportedMemories) * sizeImportedMemory

	p.importedGlobalsOffset = off
	off += Offset(p.numImportedGlobals) * sizeImportedGlobal

	p.tablesOffset = off
	off += Offset(p.numDefinedTables) * sizeDefinedTable

	p.memoriesOffset = off
	off += Offset(p.numDefinedMemories) * sizeDefinedMemory

	p.globalsOffset = off
	off += Offset(p.numDefinedGlobals) * sizeDefinedGlobal

	p.TotalSize = alignUp(off, pageSizeHint)
	return p
}

// pageSizeHint mirrors the host page size without importing internal/
// platform from internal/vm (kept dependency-free of the mmap layer so
// LayoutPlan can be unit-tested without mapping real memory). It only
// rounds TotalSize; DefaultAllocator allocates the block as a Go slice and
// never compares it with platform.PageSize.
const pageSizeHint = 4096

func alignUp(o Offset, align Offset) Offset {
	return (o + align - 1) &^ (align - 1)
}

// MagicOffset returns the offset of the sentinel magic field, always 0
// (spec §4.3 invariant: "the first field is always magic at offset 0 so
// that the opaque-context cast check can be performed without reading any
// other field").
func (p *LayoutPlan) MagicOffset() Offset { return p.magicOffset }

func (p *LayoutPlan) BuiltinFunctionsOffset() Offset { return p.builtinFunctionsOffset }
func (p *LayoutPlan) StackLimitOffset() Offset       { return p.stackLimitOffset }
func (p *LayoutPlan) LastWasmExitFPOffset() Offset   { return p.lastWasmExitFPOffset }
func (p *LayoutPlan) LastWasmExitPCOffset() Offset   { return p.lastWasmExitPCOffset }
func (p *LayoutPlan) LastWasmEntryFPOffset() Offset  { return p.lastWasmEntryFPOffset }

// FuncRefOffset returns the offset of the idx-th escaping function's
// VMFuncRef slot. Panics if idx is out of range (spec §4.3 "every
// accessor validates the index against the count").
func (p *LayoutPlan) FuncRefOffset(idx uint32) Offset {
	mustBeLess(idx, p.numFuncRefs, "func ref")
	return p.funcRefsOffset + Offset(idx)*sizeFuncRef
}

// ImportedFuncOffset returns (hostCall, wasmCall, vmctx) field offsets for
// the idx-th imported function.
func (p *LayoutPlan) ImportedFuncOffset(idx wasm.Index) (hostCall, wasmCall, vmctx Offset) {
	mustBeLess(idx, p.numImportedFuncs, "imported func")
	base := p.importedFuncsOffset + Offset(idx)*sizeImportedFunc
	return base, base + ptrSize, base + 2*ptrSize
}

// ImportedTableOffset returns (defPtr, ownerVMCtx) field offsets for the
// idx-th imported table.
func (p *LayoutPlan) ImportedTableOffset(idx wasm.Index) (defPtr, ownerVMCtx Offset) {
	mustBeLess(idx, p.numImportedTables, "imported table")
	base := p.importedTablesOffset + Offset(idx)*sizeImportedTable
	return base, base + ptrSize
}

// ImportedMemoryOffset returns (defPtr, ownerVMCtx) field offsets for the
// idx-th imported memory (spec §6 CallThreadState ABI names this
// "VMMemoryImport::from").
func (p *LayoutPlan) ImportedMemoryOffset(idx wasm.Index) (defPtr, ownerVMCtx Offset) {
	mustBeLess(idx, p.numImportedMemories, "imported memory")
	base := p.importedMemoriesOffset + Offset(idx)*sizeImportedMemory
	return base, base + ptrSize
}

// ImportedGlobalOffset returns the offset of the idx-th imported global's
// definition pointer.
func (p *LayoutPlan) ImportedGlobalOffset(idx wasm.Index) Offset {
	mustBeLess(idx, p.numImportedGlobals, "imported global")
	return p.importedGlobalsOffset + Offset(idx)*sizeImportedGlobal
}

// DefinedTableOffset returns (base, currentLength) field offsets for the
// idx-th defined table.
func (p *LayoutPlan) DefinedTableOffset(idx uint32) (base, length Offset) {
	mustBeLess(idx, p.numDefinedTables, "defined table")
	o := p.tablesOffset + Offset(idx)*sizeDefinedTable
	return o, o + ptrSize
}

// DefinedMemoryOffset returns (base, currentLength) field offsets for the
// idx-th defined memory.
func (p *LayoutPlan) DefinedMemoryOffset(idx uint32) (base, length Offset) {
	mustBeLess(idx, p.numDefinedMemories, "defined memory")
	o := p.memoriesOffset + Offset(idx)*sizeDefinedMemory
	return o, o + ptrSize
}

// DefinedGlobalOffset returns the offset of the idx-th defined global's
// 16-byte value cell.
func (p *LayoutPlan) DefinedGlobalOffset(idx uint32) Offset {
	mustBeLess(idx, p.numDefinedGlobals, "defined global")
	return p.globalsOffset + Offset(idx)*sizeDefinedGlobal
}

func mustBeLess(idx, count uint32, what string) {
	if idx >= count {
		panic("BUG: layout plan accessor called with out-of-range " + what + " index")
	}
}
