package vm

// BuiltinID enumerates the fixed table of host helpers compiled code calls
// through the VMContext's `builtin_functions` pointer (spec §3 VMContext
// "builtin_functions" field; enumerated per SPEC_FULL §12, folded back from
// the original engine's builtin table that the distillation left
// unenumerated). Compiled code never inlines these operations -- they
// always cost an indirect call through this table, exactly as the teacher's
// own interpreter dispatches memory.grow etc. through a host callback
// rather than generating the logic inline.
type BuiltinID uint32

const (
	BuiltinMemoryGrow BuiltinID = iota
	BuiltinMemoryInit
	BuiltinTableGrow
	BuiltinTableInit
	BuiltinTableCopy
	BuiltinTableFill
	BuiltinDataDrop
	BuiltinElemDrop
	BuiltinTrap
	BuiltinF64ToI64
	numBuiltins
)

func (b BuiltinID) String() string {
	switch b {
	case BuiltinMemoryGrow:
		return "memory.grow"
	case BuiltinMemoryInit:
		return "memory.init"
	case BuiltinTableGrow:
		return "table.grow"
	case BuiltinTableInit:
		return "table.init"
	case BuiltinTableCopy:
		return "table.copy"
	case BuiltinTableFill:
		return "table.fill"
	case BuiltinDataDrop:
		return "data.drop"
	case BuiltinElemDrop:
		return "elem.drop"
	case BuiltinTrap:
		return "trap"
	case BuiltinF64ToI64:
		return "f64.to.i64"
	default:
		return "unknown builtin"
	}
}

// BuiltinFunc is the signature every builtin entry point to an Instance is
// called with: args/results are VMVal cells over the array-call ABI, the
// same convention host-function imports use (spec §4.7).
type BuiltinFunc func(inst *Instance, args []VMVal) ([]VMVal, error)

// BuiltinTable is the fixed array of builtins the VMContext's
// builtin_functions field stands for. Store.Instantiate builds a fresh
// table for each Instance, but every table holds the same entries; only
// the args (the Instance itself, passed as args[0] conceptually via the
// inst receiver) vary per call.
type BuiltinTable [numBuiltins]BuiltinFunc

// NewBuiltinTable wires each BuiltinID to its Instance method (spec §12).
func NewBuiltinTable() *BuiltinTable {
	return &BuiltinTable{
		BuiltinMemoryGrow: (*Instance).builtinMemoryGrow,
		BuiltinMemoryInit: (*Instance).builtinMemoryInit,
		BuiltinTableGrow:  (*Instance).builtinTableGrow,
		BuiltinTableInit:  (*Instance).builtinTableInit,
		BuiltinTableCopy:  (*Instance).builtinTableCopy,
		BuiltinTableFill:  (*Instance).builtinTableFill,
		BuiltinDataDrop:   (*Instance).builtinDataDrop,
		BuiltinElemDrop:   (*Instance).builtinElemDrop,
		BuiltinTrap:       (*Instance).builtinTrap,
		BuiltinF64ToI64:   (*Instance).builtinF64ToI64,
	}
}
