package vm

import "github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"

// The methods in this file are the surface internal/compiler/baseline's
// interpreter (acting as its own execution engine, see
// internal/compiler/baseline/exec.go) needs to actually run a compiled
// function's bytecode against a live Instance: resolving tables,
// memories, globals and builtins by index, and recovering a callable
// function from a table-stored func-ref for call_indirect.

// Table exposes the table lookup applyActiveElements/builtins already use
// internally, for call_indirect and table.* instructions (spec §4.7).
func (inst *Instance) Table(idx wasm.TableIndex) (*Table, error) { return inst.table(idx) }

// MemoryAt exposes the memory lookup for load/store instructions.
func (inst *Instance) MemoryAt(idx wasm.MemoryIndex) (*Memory, error) { return inst.memory(idx) }

// GlobalRef returns the mutable Global cell behind idx, imported or
// defined, so global.set can write through it.
func (inst *Instance) GlobalRef(idx wasm.GlobalIndex) *Global {
	m := inst.Module
	if uint32(idx) < m.NumImportedGlobals {
		return inst.importedGlobals[idx]
	}
	def := wasm.ToDefinedGlobalIndex(idx, m.NumImportedGlobals)
	return inst.globals[def]
}

// CallBuiltin invokes one VMContext builtin_functions entry (spec §3/§4.2
// "wasm-to-builtin trampoline"), the indirection every compiled memory.
// grow/table.grow/bulk-memory/bulk-table op goes through.
func (inst *Instance) CallBuiltin(id BuiltinID, args []VMVal) ([]VMVal, error) {
	return inst.builtins[id](inst, args)
}

// ImportedFunc returns the resolved Extern behind an imported function
// index, letting the interpreter either re-enter a Wasm function owned
// by another Instance or invoke a host callback directly.
func (inst *Instance) ImportedFunc(idx wasm.FuncIndex) ExternFunc {
	return inst.importedFuncs[idx].Func
}

// FuncRefOf returns the dense func-ref slot index assigned to idx, for
// ref.func (spec §4.1 "escaping"). idx must have been marked escaping
// during translation; see the panic documented on the unexported
// implementation this wraps.
func (inst *Instance) FuncRefOf(idx wasm.FuncIndex) uint32 { return inst.funcRefOf(idx) }

// FuncIndexForRef reverses Module.FuncRefIndices, recovering the
// original FuncIndex a func-ref table slot refers to (needed by
// call_indirect, which only ever sees the dense func-ref slot number a
// table cell stores, never the original FuncIndex).
func (inst *Instance) FuncIndexForRef(slot uint32) (wasm.FuncIndex, bool) {
	if inst.refToFunc == nil {
		m := make([]wasm.FuncIndex, inst.Module.NumFuncRefs)
		for fi, s := range inst.Module.FuncRefIndices {
			m[s] = fi
		}
		inst.refToFunc = m
	}
	if int(slot) >= len(inst.refToFunc) {
		return 0, false
	}
	return inst.refToFunc[slot], true
}
