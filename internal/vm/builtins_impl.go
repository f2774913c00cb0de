package vm

import (
	"math"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasmerr"
)

// The builtinXxx methods below are the host helpers compiled code reaches
// through BuiltinTable (spec §3 VMContext "builtin_functions", SPEC_FULL
// §12). Every argument/result crosses through the array-call ABI's []VMVal
// convention (spec §4.7), exactly like a host function import; the only
// difference is these are always satisfied by the engine itself rather
// than by a Store-registered host function.

func (inst *Instance) builtinMemoryGrow(args []VMVal) ([]VMVal, error) {
	memIdx := wasm.MemoryIndex(uint32(args[0].I32()))
	delta := uint64(uint32(args[1].I32()))

	mem, err := inst.memory(memIdx)
	if err != nil {
		return nil, err
	}
	prev := mem.Grow(delta)
	if prev >= 0 {
		def, ok := inst.definedMemoryIndex(memIdx)
		if ok {
			inst.vmctx.WriteDefinedMemory(def, mem.BasePtr(), mem.PageCount()*WasmPageSize)
		}
	}
	return []VMVal{I32(int32(prev))}, nil
}

func (inst *Instance) builtinMemoryInit(args []VMVal) ([]VMVal, error) {
	memIdx := wasm.MemoryIndex(uint32(args[0].I32()))
	dataIdx := wasm.DataIndex(uint32(args[1].I32()))
	dst := uint64(uint32(args[2].I32()))
	src := uint64(uint32(args[3].I32()))
	n := uint64(uint32(args[4].I32()))

	if _, dropped := inst.droppedData[dataIdx]; dropped {
		if n == 0 {
			return nil, nil
		}
		return nil, wasmerr.Trap(wasmerr.TrapMemoryOutOfBounds, nil, "memory.init from dropped data segment %d", dataIdx)
	}
	seg := inst.Module.DataSection[dataIdx]
	if src+n > uint64(len(seg.Init)) {
		return nil, wasmerr.Trap(wasmerr.TrapMemoryOutOfBounds, nil, "memory.init source range out of bounds")
	}
	mem, err := inst.memory(memIdx)
	if err != nil {
		return nil, err
	}
	dstBytes := mem.Bytes()
	if dst+n > uint64(len(dstBytes)) {
		return nil, wasmerr.Trap(wasmerr.TrapMemoryOutOfBounds, nil, "memory.init destination range out of bounds")
	}
	copy(dstBytes[dst:dst+n], seg.Init[src:src+n])
	return nil, nil
}

func (inst *Instance) builtinTableGrow(args []VMVal) ([]VMVal, error) {
	tableIdx := wasm.TableIndex(uint32(args[0].I32()))
	delta := uint64(uint32(args[1].I32()))
	init := args[2]

	t, err := inst.table(tableIdx)
	if err != nil {
		return nil, err
	}
	prev := t.Grow(delta, init)
	if prev >= 0 {
		if def, ok := inst.definedTableIndex(tableIdx); ok {
			inst.vmctx.WriteDefinedTable(def, t.BasePtr(), t.CurrentLength())
		}
	}
	return []VMVal{I32(int32(prev))}, nil
}

func (inst *Instance) builtinTableInit(args []VMVal) ([]VMVal, error) {
	tableIdx := wasm.TableIndex(uint32(args[0].I32()))
	elemIdx := wasm.ElemIndex(uint32(args[1].I32()))
	dst := uint64(uint32(args[2].I32()))
	src := uint64(uint32(args[3].I32()))
	n := uint64(uint32(args[4].I32()))

	if _, dropped := inst.droppedElem[elemIdx]; dropped {
		if n == 0 {
			return nil, nil
		}
		return nil, wasmerr.Trap(wasmerr.TrapTableOutOfBounds, nil, "table.init from dropped element segment %d", elemIdx)
	}
	seg := inst.Module.ElementSection[elemIdx]
	if src+n > uint64(elemSegmentLen(&seg)) {
		return nil, wasmerr.Trap(wasmerr.TrapTableOutOfBounds, nil, "table.init source range out of bounds")
	}
	t, err := inst.table(tableIdx)
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < n; i++ {
		v, err := inst.elemValueAt(&seg, int(src+i))
		if err != nil {
			return nil, err
		}
		if err := t.Set(dst+i, v); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (inst *Instance) builtinTableCopy(args []VMVal) ([]VMVal, error) {
	dstTableIdx := wasm.TableIndex(uint32(args[0].I32()))
	srcTableIdx := wasm.TableIndex(uint32(args[1].I32()))
	dst := uint64(uint32(args[2].I32()))
	src := uint64(uint32(args[3].I32()))
	n := uint64(uint32(args[4].I32()))

	dstTable, err := inst.table(dstTableIdx)
	if err != nil {
		return nil, err
	}
	srcTable, err := inst.table(srcTableIdx)
	if err != nil {
		return nil, err
	}
	// Overlapping ranges within the same table must copy in the direction
	// that matches memcpy-with-overlap semantics (spec: table.copy uses the
	// same direction-safe copy the original's byte-slice memmove gives it).
	if dstTable == srcTable && dst > src {
		for i := n; i > 0; i-- {
			v, err := srcTable.Get(src + i - 1)
			if err != nil {
				return nil, err
			}
			if err := dstTable.Set(dst+i-1, v); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
	for i := uint64(0); i < n; i++ {
		v, err := srcTable.Get(src + i)
		if err != nil {
			return nil, err
		}
		if err := dstTable.Set(dst+i, v); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (inst *Instance) builtinTableFill(args []VMVal) ([]VMVal, error) {
	tableIdx := wasm.TableIndex(uint32(args[0].I32()))
	dst := uint64(uint32(args[1].I32()))
	val := args[2]
	n := uint64(uint32(args[3].I32()))

	t, err := inst.table(tableIdx)
	if err != nil {
		return nil, err
	}
	return nil, t.Fill(dst, n, val)
}

func (inst *Instance) builtinDataDrop(args []VMVal) ([]VMVal, error) {
	dataIdx := wasm.DataIndex(uint32(args[0].I32()))
	inst.droppedData[dataIdx] = struct{}{}
	return nil, nil
}

func (inst *Instance) builtinElemDrop(args []VMVal) ([]VMVal, error) {
	elemIdx := wasm.ElemIndex(uint32(args[0].I32()))
	inst.droppedElem[elemIdx] = struct{}{}
	return nil, nil
}

// builtinTrap raises an explicit software trap (spec §4.8 "a sentinel trap
// instruction carrying a small integer trap code"); args[0] carries the
// trap code already offset by +1 so zero never denotes a valid one (spec
// §6 "Trap code table").
func (inst *Instance) builtinTrap(args []VMVal) ([]VMVal, error) {
	code := wasmerr.TrapKind(uint32(args[0].I32()))
	return nil, wasmerr.Trap(code, nil, "")
}

// builtinF64ToI64 implements the trapping f64->i64 truncation helper
// (SPEC_FULL §12): truncates towards zero, trapping on NaN or on a
// magnitude that does not fit in an i64.
func (inst *Instance) builtinF64ToI64(args []VMVal) ([]VMVal, error) {
	f := args[0].F64()
	if math.IsNaN(f) {
		return nil, wasmerr.Trap(wasmerr.TrapIntegerOverflow, nil, "f64.to.i64: NaN")
	}
	t := math.Trunc(f)
	if t < -9223372036854775808.0 || t >= 9223372036854775808.0 {
		return nil, wasmerr.Trap(wasmerr.TrapIntegerOverflow, nil, "f64.to.i64: %v out of i64 range", f)
	}
	return []VMVal{I64(int64(t))}, nil
}

// definedMemoryIndex/definedTableIndex convert a total index into its
// defined-space counterpart, returning ok=false for an imported index
// (whose VMContext slot this engine does not rewrite on grow -- the
// owning instance does that itself).
func (inst *Instance) definedMemoryIndex(idx wasm.MemoryIndex) (uint32, bool) {
	m := inst.Module
	if uint32(idx) < m.NumImportedMemories {
		return 0, false
	}
	return uint32(wasm.ToDefinedMemoryIndex(idx, m.NumImportedMemories)), true
}

func (inst *Instance) definedTableIndex(idx wasm.TableIndex) (uint32, bool) {
	m := inst.Module
	if uint32(idx) < m.NumImportedTables {
		return 0, false
	}
	return uint32(wasm.ToDefinedTableIndex(idx, m.NumImportedTables)), true
}
