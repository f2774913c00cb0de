package vm

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasmerr"
)

// Extern is one resolved import record: exactly one of the fields is set,
// selected by Kind, mirroring wasm.Import's own Desc*/Kind discriminated
// union (spec §4.6 "appends its raw VM-import record to an Imports
// buffer").
type Extern struct {
	Kind ExternRuntimeKind

	Func   ExternFunc
	Table  *Table
	Memory *Memory
	Global *Global
}

// ExternRuntimeKind mirrors wasm.ExternKind but lives in internal/vm since
// it tags a *resolved* runtime value, not a parsed declaration.
type ExternRuntimeKind = wasm.ExternKind

// ExternFunc is a resolved function import: another Instance's exported
// function or a host function, both called through HostCall. WasmCall and
// OwnerVMCtx are only copied into the VMContext's imported-function slot;
// nothing in this engine sets WasmCall.
type ExternFunc struct {
	OwnerVMCtx uint64
	WasmCall   uint64
	HostCall   func(args []VMVal) ([]VMVal, error)
	TypeID     wasm.InternedTypeIndex
}

// Instance is one instantiation of a Module: its own memories, tables,
// globals, and VMContext block, plus bookkeeping the builtin table and the
// call-dispatch package need (spec §3 Instance, §4.4).
type Instance struct {
	ID uuid.UUID

	Module *wasm.Module

	// TrapStack is *trap.Stack, set by the Store that instantiated this
	// Instance and type-asserted by baseline.Invoke; it is typed
	// interface{} so internal/vm does not import internal/trap. Nil means
	// no backtrace capture is wired up.
	TrapStack interface{}

	vmctx    *VMContext
	memories []*Memory
	tables   []*Table
	globals  []*Global

	imports []Extern

	// importedFuncs/Tables/Memories/Globals are imports, re-sliced from
	// imports into each kind's own dense index space (spec §3 "the imported
	// prefix of each entity kind's index space"), since imports itself stays
	// ordered like the raw Import section.
	importedFuncs    []Extern
	importedTables   []*Table
	importedMemories []*Memory
	importedGlobals  []*Global

	builtins *BuiltinTable

	droppedData map[wasm.DataIndex]struct{}
	droppedElem map[wasm.ElemIndex]struct{}

	alloc InstanceAllocator

	// refToFunc is a lazily-built reverse index of Module.FuncRefIndices,
	// used only by the baseline interpreter's call_indirect (see
	// FuncIndexForRef in export.go).
	refToFunc []wasm.FuncIndex
}

// allocateModule performs the three allocations spec §4.4's
// `allocate_module` names, in order: defined memories, defined tables, the
// VMContext byte block. On any failure already-allocated memories/tables
// are deallocated before returning (memory deallocation is infallible by
// contract, so the cleanup loop never itself fails).
func allocateModule(alloc InstanceAllocator, m *wasm.Module, plan *LayoutPlan) ([]*Memory, []*Table, []byte, error) {
	memories := make([]*Memory, 0, len(m.MemorySection))
	for _, def := range m.MemorySection {
		mem, err := alloc.AllocateMemory(def.Type)
		if err != nil {
			for _, allocated := range memories {
				alloc.DeallocateMemory(allocated)
			}
			return nil, nil, nil, fmt.Errorf("allocate defined memory: %w", err)
		}
		memories = append(memories, mem)
	}

	tables := make([]*Table, 0, len(m.TableSection))
	for _, def := range m.TableSection {
		t, err := alloc.AllocateTable(def.Type)
		if err != nil {
			for _, allocated := range memories {
				alloc.DeallocateMemory(allocated)
			}
			for _, allocated := range tables {
				alloc.DeallocateTable(allocated)
			}
			return nil, nil, nil, fmt.Errorf("allocate defined table: %w", err)
		}
		tables = append(tables, t)
	}

	vmctxBuf := alloc.AllocateVMContext(plan)
	return memories, tables, vmctxBuf, nil
}

// NewInstance implements spec §4.4's `new_unchecked(alloc, const_eval,
// module, imports)`: allocate, write every VMContext field from imports and
// definitions, evaluate every global initialiser, then apply active element
// and data segments, finally dropping the active segments' indices.
func NewInstance(alloc InstanceAllocator, m *wasm.Module, imports []Extern, builtins *BuiltinTable) (*Instance, error) {
	plan := NewLayoutPlan(m)
	memories, tables, vmctxBuf, err := allocateModule(alloc, m, plan)
	if err != nil {
		return nil, err
	}

	inst := &Instance{
		ID:          uuid.New(),
		Module:      m,
		vmctx:       newVMContext(plan, vmctxBuf),
		memories:    memories,
		tables:      tables,
		globals:     make([]*Global, len(m.GlobalSection)),
		imports:     imports,
		builtins:    builtins,
		droppedData: make(map[wasm.DataIndex]struct{}),
		droppedElem: make(map[wasm.ElemIndex]struct{}),
		alloc:       alloc,
	}

	inst.writeImports()
	inst.writeDefinedTablesAndMemories()

	if err := inst.evalGlobals(); err != nil {
		return nil, err
	}
	if err := inst.applyTableInitializers(); err != nil {
		return nil, err
	}
	if err := inst.applyActiveElements(); err != nil {
		return nil, err
	}
	if err := inst.applyActiveData(); err != nil {
		return nil, err
	}

	return inst, nil
}

// writeImports walks the import section and inst.imports in lockstep (both
// are ordered identically to the Import section, spec §3 Module invariant:
// "import counts exactly match the prefix of each entity's index space")
// and writes each one into its kind-specific dense VMContext slot.
func (inst *Instance) writeImports() {
	m := inst.Module
	var funcIdx, tableIdx, memIdx, globalIdx uint32
	for i, imp := range m.ImportSection {
		e := inst.imports[i]
		switch imp.Kind {
		case wasm.ExternKindFunc:
			inst.importedFuncs = append(inst.importedFuncs, e)
			inst.vmctx.WriteImportedFunc(funcIdx, uint64(funcPtr(e.Func.HostCall)), e.Func.WasmCall, e.Func.OwnerVMCtx)
			funcIdx++
		case wasm.ExternKindTable:
			inst.importedTables = append(inst.importedTables, e.Table)
			inst.vmctx.WriteImportedTable(tableIdx, e.Table.BasePtr(), 0)
			tableIdx++
		case wasm.ExternKindMemory:
			inst.importedMemories = append(inst.importedMemories, e.Memory)
			inst.vmctx.WriteImportedMemory(memIdx, e.Memory.BasePtr(), 0)
			memIdx++
		case wasm.ExternKindGlobal:
			inst.importedGlobals = append(inst.importedGlobals, e.Global)
			inst.vmctx.WriteImportedGlobal(globalIdx, e.Global.Ptr())
			globalIdx++
		}
	}
}

// funcPtr is a placeholder host-call identity used only so an imported
// function's three-word VMContext slot has something deterministic to
// store; the baseline compiler's call-dispatch path (baseline.Invoke) never
// dereferences this as a real code pointer -- it looks the originating
// Extern back up by imported index instead (spec §4.6 Store "map from the
// owned VMContext pointer ... back to its stable handle").
func funcPtr(f func([]VMVal) ([]VMVal, error)) uintptr {
	if f == nil {
		return 0
	}
	return 1
}

func (inst *Instance) writeDefinedTablesAndMemories() {
	for i, t := range inst.tables {
		inst.vmctx.WriteDefinedTable(uint32(i), t.BasePtr(), t.CurrentLength())
	}
	for i, mem := range inst.memories {
		inst.vmctx.WriteDefinedMemory(uint32(i), mem.BasePtr(), mem.PageCount()*WasmPageSize)
	}
}

// GlobalValue implements GlobalReader so a global's own or a later global's
// initialiser can reference an earlier one via global.get (spec §4.4 step 3,
// §4.5).
func (inst *Instance) GlobalValue(idx wasm.GlobalIndex) VMVal {
	m := inst.Module
	if uint32(idx) < m.NumImportedGlobals {
		return inst.importedGlobals[idx].Get()
	}
	def := wasm.ToDefinedGlobalIndex(idx, m.NumImportedGlobals)
	return inst.globals[def].Get()
}

func (inst *Instance) funcRefOf(idx wasm.FuncIndex) uint32 {
	slot, ok := inst.Module.FuncRefIndices[idx]
	if !ok {
		panic("BUG: ref.func operand was not marked escaping during translation")
	}
	return uint32(slot)
}

func (inst *Instance) evalGlobals() error {
	m := inst.Module
	for i, g := range m.GlobalSection {
		v, err := Eval(g.Init, inst, inst.funcRefOf)
		if err != nil {
			return fmt.Errorf("evaluate global %d initialiser: %w", i, err)
		}
		inst.globals[i] = NewGlobal(g.Type, v)
		inst.vmctx.WriteDefinedGlobal(uint32(i), v)
	}
	return nil
}

// applyTableInitializers fills a defined table from its function-references
// proposal table-init expression, if it declared one (spec §4.1 "the
// function-references proposal's table initialiser syntax"). Every slot is
// filled with the same const-expression's value.
func (inst *Instance) applyTableInitializers() error {
	m := inst.Module
	for i, def := range m.TableSection {
		if def.Init == nil {
			continue
		}
		v, err := Eval(*def.Init, inst, inst.funcRefOf)
		if err != nil {
			return fmt.Errorf("evaluate table %d initialiser: %w", i, err)
		}
		t := inst.tables[i]
		if err := t.Fill(0, t.Len(), v); err != nil {
			return err
		}
	}
	return nil
}

func (inst *Instance) applyActiveElements() error {
	m := inst.Module
	for segIdx, seg := range m.ElementSection {
		if seg.Mode != wasm.ElementModeActive {
			continue
		}
		offVal, err := Eval(seg.Offset, inst, inst.funcRefOf)
		if err != nil {
			return fmt.Errorf("evaluate element segment %d offset: %w", segIdx, err)
		}
		offset := uint64(uint32(offVal.I32()))

		t, err := inst.table(seg.TableIndex)
		if err != nil {
			return err
		}

		n := elemSegmentLen(&seg)
		for i := 0; i < n; i++ {
			v, err := inst.elemValueAt(&seg, i)
			if err != nil {
				return fmt.Errorf("evaluate element segment %d entry %d: %w", segIdx, i, err)
			}
			if err := t.Set(offset+uint64(i), v); err != nil {
				return err
			}
		}
		inst.droppedElem[wasm.ElemIndex(segIdx)] = struct{}{}
	}
	return nil
}

// elemSegmentLen returns the number of entries in seg, whichever
// representation (Funcs or Exprs) it uses.
func elemSegmentLen(seg *wasm.ElementSegment) int {
	if seg.Funcs != nil {
		return len(seg.Funcs)
	}
	return len(seg.Exprs)
}

// elemValueAt evaluates the i-th entry of seg to its VMVal.
func (inst *Instance) elemValueAt(seg *wasm.ElementSegment, i int) (VMVal, error) {
	if seg.Funcs != nil {
		return FuncRef(inst.funcRefOf(seg.Funcs[i])), nil
	}
	return Eval(seg.Exprs[i], inst, inst.funcRefOf)
}

func (inst *Instance) applyActiveData() error {
	m := inst.Module
	for segIdx, seg := range m.DataSection {
		if seg.Mode != wasm.ElementModeActive {
			continue
		}
		offVal, err := Eval(seg.Offset, inst, inst.funcRefOf)
		if err != nil {
			return fmt.Errorf("evaluate data segment %d offset: %w", segIdx, err)
		}
		offset := uint64(uint32(offVal.I32()))

		mem, err := inst.memory(seg.MemoryIndex)
		if err != nil {
			return err
		}
		dst := mem.Bytes()
		if offset+uint64(len(seg.Init)) > uint64(len(dst)) {
			return wasmerr.Trap(wasmerr.TrapMemoryOutOfBounds, nil, "active data segment %d does not fit in memory %d", segIdx, seg.MemoryIndex)
		}
		copy(dst[offset:], seg.Init)
		inst.droppedData[wasm.DataIndex(segIdx)] = struct{}{}
	}
	return nil
}

func (inst *Instance) table(idx wasm.TableIndex) (*Table, error) {
	m := inst.Module
	if uint32(idx) < m.NumImportedTables {
		return inst.importedTables[idx], nil
	}
	def := wasm.ToDefinedTableIndex(idx, m.NumImportedTables)
	if int(def) >= len(inst.tables) {
		return nil, wasmerr.InvalidWasmf("table index %d out of range", idx)
	}
	return inst.tables[def], nil
}

func (inst *Instance) memory(idx wasm.MemoryIndex) (*Memory, error) {
	m := inst.Module
	if uint32(idx) < m.NumImportedMemories {
		return inst.importedMemories[idx], nil
	}
	def := wasm.ToDefinedMemoryIndex(idx, m.NumImportedMemories)
	if int(def) >= len(inst.memories) {
		return nil, wasmerr.InvalidWasmf("memory index %d out of range", idx)
	}
	return inst.memories[def], nil
}

// VMContext returns the instance's runtime block, for the call-dispatch and
// compiler packages.
func (inst *Instance) VMContext() *VMContext { return inst.vmctx }

// Close deallocates every owned memory and table (spec §4.4 "memory
// deallocation is infallible by contract").
func (inst *Instance) Close() {
	for _, t := range inst.tables {
		inst.alloc.DeallocateTable(t)
	}
	for _, m := range inst.memories {
		inst.alloc.DeallocateMemory(m)
	}
}
