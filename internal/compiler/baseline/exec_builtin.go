package baseline

import (
	"github.com/JonasKruckenberg/k23VM-sub000/internal/vm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasmerr"
)

// execBuiltin handles opCallBuiltin, reassembling the full []VMVal
// argument slice a BuiltinTable entry expects (vm/builtins_impl.go) from
// the index/segment immediates fc.go packed into in.B at decode time plus
// whatever operands the instruction stream still has to push at run time
// (the index/segment arguments come first, the memory index being always
// 0; data.drop and elem.drop take only their segment index; fc.go knows
// these statically and only leaves the truly dynamic operands on the
// stack).
func execBuiltin(f *frame, in instr) error {
	id := vm.BuiltinID(in.A)
	hi := uint32(uint64(in.B) >> 32)
	lo := uint32(uint64(in.B))

	switch id {
	case vm.BuiltinMemoryInit:
		n := f.pop()
		src := f.pop()
		dst := f.pop()
		dataIdx := hi
		_, err := f.inst.CallBuiltin(id, []vm.VMVal{vm.I32(0), vm.I32(int32(dataIdx)), dst, src, n})
		return err

	case vm.BuiltinDataDrop:
		dataIdx := hi
		_, err := f.inst.CallBuiltin(id, []vm.VMVal{vm.I32(int32(dataIdx))})
		return err

	case vm.BuiltinTableInit:
		n := f.pop()
		src := f.pop()
		dst := f.pop()
		elemIdx, tableIdx := hi, lo
		_, err := f.inst.CallBuiltin(id, []vm.VMVal{vm.I32(int32(tableIdx)), vm.I32(int32(elemIdx)), dst, src, n})
		return err

	case vm.BuiltinElemDrop:
		elemIdx := hi
		_, err := f.inst.CallBuiltin(id, []vm.VMVal{vm.I32(int32(elemIdx))})
		return err

	case vm.BuiltinTableCopy:
		n := f.pop()
		src := f.pop()
		dst := f.pop()
		dstTable, srcTable := hi, lo
		_, err := f.inst.CallBuiltin(id, []vm.VMVal{vm.I32(int32(dstTable)), vm.I32(int32(srcTable)), dst, src, n})
		return err

	case vm.BuiltinTableGrow:
		delta := f.pop()
		init := f.pop()
		tableIdx := hi
		res, err := f.inst.CallBuiltin(id, []vm.VMVal{vm.I32(int32(tableIdx)), delta, init})
		if err != nil {
			return err
		}
		f.push(res[0])
		return nil

	case vm.BuiltinTableFill:
		n := f.pop()
		val := f.pop()
		dst := f.pop()
		tableIdx := hi
		_, err := f.inst.CallBuiltin(id, []vm.VMVal{vm.I32(int32(tableIdx)), dst, val, n})
		return err

	default:
		return wasmerr.Trap(wasmerr.TrapInternalAssert, nil, "baseline: opCallBuiltin for unhandled builtin %s", id)
	}
}
