package vm

import "encoding/binary"

// vmContextMagic is the sentinel written to byte offset 0 of every
// VMContext and never changed thereafter (spec §3 Instance invariant:
// "the VMContext magic field equals a fixed sentinel").
const vmContextMagic uint32 = 0x6b32337f // "k23" + 0x7f, arbitrary but stable

// VMContext is the contiguous byte block compiled code directly accesses:
// globals, tables, memories, imports, and func-refs at exact byte offsets
// given by a LayoutPlan (spec §3). It never interprets its own bytes --
// every read/write goes through a typed accessor keyed by the plan, per
// the design note in spec §9.
type VMContext struct {
	plan *LayoutPlan
	buf  []byte
}

// newVMContext wraps buf, a zero-initialised block of plan.TotalSize bytes
// supplied by the allocator, and writes the sentinel magic into it (spec
// §4.4 step 2). No other field is written here.
func newVMContext(plan *LayoutPlan, buf []byte) *VMContext {
	vc := &VMContext{plan: plan, buf: buf}
	binary.LittleEndian.PutUint32(vc.buf[plan.MagicOffset():], vmContextMagic)
	return vc
}

// CheckMagic reports whether the sentinel at offset 0 still matches,
// letting compiled code's opaque-context cast check run without touching
// any other field (spec §4.3).
func (vc *VMContext) CheckMagic() bool {
	return binary.LittleEndian.Uint32(vc.buf[vc.plan.MagicOffset():]) == vmContextMagic
}

func (vc *VMContext) u32(o Offset) uint32 { return binary.LittleEndian.Uint32(vc.buf[o:]) }
func (vc *VMContext) putU32(o Offset, v uint32) { binary.LittleEndian.PutUint32(vc.buf[o:], v) }
func (vc *VMContext) u64(o Offset) uint64 { return binary.LittleEndian.Uint64(vc.buf[o:]) }
func (vc *VMContext) putU64(o Offset, v uint64) { binary.LittleEndian.PutUint64(vc.buf[o:], v) }

// StackLimit / SetStackLimit access the Wasm stack red-zone limit (spec §3
// VMContext "stack_limit", §4.7 step 3).
func (vc *VMContext) StackLimit() uintptr      { return uintptr(vc.u64(vc.plan.StackLimitOffset())) }
func (vc *VMContext) SetStackLimit(v uintptr)  { vc.putU64(vc.plan.StackLimitOffset(), uint64(v)) }

// LastWasmExitFP/PC and LastWasmEntryFP access the Wasm<->host transition
// save area (spec §3, §4.8 CallThreadState state machine).
func (vc *VMContext) LastWasmExitFP() uintptr     { return uintptr(vc.u64(vc.plan.LastWasmExitFPOffset())) }
func (vc *VMContext) SetLastWasmExitFP(v uintptr) { vc.putU64(vc.plan.LastWasmExitFPOffset(), uint64(v)) }
func (vc *VMContext) LastWasmExitPC() uintptr     { return uintptr(vc.u64(vc.plan.LastWasmExitPCOffset())) }
func (vc *VMContext) SetLastWasmExitPC(v uintptr) { vc.putU64(vc.plan.LastWasmExitPCOffset(), uint64(v)) }
func (vc *VMContext) LastWasmEntryFP() uintptr    { return uintptr(vc.u64(vc.plan.LastWasmEntryFPOffset())) }
func (vc *VMContext) SetLastWasmEntryFP(v uintptr) {
	vc.putU64(vc.plan.LastWasmEntryFPOffset(), uint64(v))
}

// SavedTransitionFields is the triple of fields catch_traps must restore
// on every return path (spec §4.8 CallThreadState "Popped" transition,
// property 6 in spec §8).
type SavedTransitionFields struct {
	ExitFP, ExitPC, EntryFP uintptr
}

// SaveTransitionFields snapshots the three fields so catch_traps can
// restore them later.
func (vc *VMContext) SaveTransitionFields() SavedTransitionFields {
	return SavedTransitionFields{vc.LastWasmExitFP(), vc.LastWasmExitPC(), vc.LastWasmEntryFP()}
}

// RestoreTransitionFields writes s back, undoing whatever the call that
// captured it did.
func (vc *VMContext) RestoreTransitionFields(s SavedTransitionFields) {
	vc.SetLastWasmExitFP(s.ExitFP)
	vc.SetLastWasmExitPC(s.ExitPC)
	vc.SetLastWasmEntryFP(s.EntryFP)
}

// Plan returns the layout plan this context was built from.
func (vc *VMContext) Plan() *LayoutPlan { return vc.plan }

// Bytes exposes the raw block, for the rare caller that needs to hand a
// vmctx pointer to the compiler capability's generated code. Mutating it
// outside the accessors above voids every invariant this package
// maintains; only internal/compiler's baseline backend is expected to do
// so, and only at the byte ranges the LayoutPlan told it about.
func (vc *VMContext) Bytes() []byte { return vc.buf }

// WriteImportedFunc records one imported function's three-word entry.
func (vc *VMContext) WriteImportedFunc(idx uint32, hostCall, wasmCall, vmctx uint64) {
	h, w, v := vc.plan.ImportedFuncOffset(idx)
	vc.putU64(h, hostCall)
	vc.putU64(w, wasmCall)
	vc.putU64(v, vmctx)
}

// WriteImportedTable records one imported table's (def-ptr, owner-vmctx).
func (vc *VMContext) WriteImportedTable(idx uint32, defPtr, ownerVMCtx uint64) {
	d, o := vc.plan.ImportedTableOffset(idx)
	vc.putU64(d, defPtr)
	vc.putU64(o, ownerVMCtx)
}

// WriteImportedMemory records one imported memory's (def-ptr, owner-vmctx).
func (vc *VMContext) WriteImportedMemory(idx uint32, defPtr, ownerVMCtx uint64) {
	d, o := vc.plan.ImportedMemoryOffset(idx)
	vc.putU64(d, defPtr)
	vc.putU64(o, ownerVMCtx)
}

// WriteImportedGlobal records one imported global's definition pointer.
func (vc *VMContext) WriteImportedGlobal(idx uint32, defPtr uint64) {
	vc.putU64(vc.plan.ImportedGlobalOffset(idx), defPtr)
}

// WriteDefinedTable records a defined table's (base, current length).
func (vc *VMContext) WriteDefinedTable(idx uint32, base uint64, length uint32) {
	b, l := vc.plan.DefinedTableOffset(idx)
	vc.putU64(b, base)
	vc.putU32(l, length)
}

// WriteDefinedMemory records a defined memory's (base, current length).
func (vc *VMContext) WriteDefinedMemory(idx uint32, base uint64, length uint64) {
	b, l := vc.plan.DefinedMemoryOffset(idx)
	vc.putU64(b, base)
	vc.putU64(l, length)
}

// DefinedMemoryLength reads back a defined memory's current length, as
// compiled bounds-checks would. The baseline interpreter's memory.size and
// memory.grow read the Memory itself instead.
func (vc *VMContext) DefinedMemoryLength(idx uint32) uint64 {
	_, l := vc.plan.DefinedMemoryOffset(idx)
	return vc.u64(l)
}

// WriteDefinedGlobal writes a global's 16-byte value cell.
func (vc *VMContext) WriteDefinedGlobal(idx uint32, v VMVal) {
	o := vc.plan.DefinedGlobalOffset(idx)
	copy(vc.buf[o:o+16], v[:])
}

// ReadDefinedGlobal reads a global's 16-byte value cell.
func (vc *VMContext) ReadDefinedGlobal(idx uint32) VMVal {
	var v VMVal
	o := vc.plan.DefinedGlobalOffset(idx)
	copy(v[:], vc.buf[o:o+16])
	return v
}

// WriteFuncRef writes one escaping function's VMFuncRef slot (executable
// pointer, owner-module-context pointer, interned type id).
func (vc *VMContext) WriteFuncRef(idx uint32, executable, moduleCtx uint64, typeID uint32) {
	o := vc.plan.FuncRefOffset(idx)
	vc.putU64(o, executable)
	vc.putU64(o+8, moduleCtx)
	vc.putU32(o+16, typeID)
}

// ReadFuncRef reads one escaping function's VMFuncRef slot back.
func (vc *VMContext) ReadFuncRef(idx uint32) (executable, moduleCtx uint64, typeID uint32) {
	o := vc.plan.FuncRefOffset(idx)
	return vc.u64(o), vc.u64(o + 8), vc.u32(o + 16)
}
