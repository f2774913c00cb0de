package baseline

import (
	"encoding/binary"
	"math"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/vm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasmerr"
)

// isMemOp reports whether op is one this file's execMemOp handles:
// every load/store plus memory.size/grow and the bulk memory/table ops
// that don't need the builtin table (memory.copy/fill, table.size).
func isMemOp(o op) bool {
	switch o {
	case opI32Load, opI64Load, opF32Load, opF64Load,
		opI32Load8S, opI32Load8U, opI32Load16S, opI32Load16U,
		opI64Load8S, opI64Load8U, opI64Load16S, opI64Load16U,
		opI64Load32S, opI64Load32U,
		opI32Store, opI64Store, opF32Store, opF64Store,
		opI32Store8, opI32Store16, opI64Store8, opI64Store16, opI64Store32,
		opMemorySize, opMemoryGrow, opMemoryCopy, opMemoryFill, opTableSize:
		return true
	}
	return false
}

func execMemOp(f *frame, in instr) error {
	inst := f.inst
	switch in.Op {
	case opMemorySize:
		mem, err := inst.MemoryAt(0)
		if err != nil {
			return err
		}
		f.push(vm.I32(int32(mem.PageCount())))
		return nil
	case opMemoryGrow:
		delta := f.pop()
		res, err := inst.CallBuiltin(vm.BuiltinMemoryGrow, []vm.VMVal{vm.I32(0), delta})
		if err != nil {
			return err
		}
		f.push(res[0])
		return nil
	case opMemoryCopy:
		n := uint32(f.pop().I32())
		src := uint32(f.pop().I32())
		dst := uint32(f.pop().I32())
		mem, err := inst.MemoryAt(0)
		if err != nil {
			return err
		}
		return memCopy(mem, dst, src, n)
	case opMemoryFill:
		n := uint32(f.pop().I32())
		val := byte(f.pop().I32())
		dst := uint32(f.pop().I32())
		mem, err := inst.MemoryAt(0)
		if err != nil {
			return err
		}
		return memFill(mem, dst, val, n)
	case opTableSize:
		t, err := inst.Table(wasm.TableIndex(in.A))
		if err != nil {
			return err
		}
		f.push(vm.I32(int32(t.Len())))
		return nil
	}

	// Everything else in this file is a load or a store: pop the
	// address (and, for stores, the value) and bounds-check against the
	// active memory's current byte length.
	mem, err := inst.MemoryAt(0)
	if err != nil {
		return err
	}
	bs := mem.Bytes()
	off := uint64(uint32(in.A))

	if isStoreOp(in.Op) {
		val := f.pop()
		addr := uint64(uint32(f.pop().I32()))
		return storeAt(bs, addr+off, in.Op, val)
	}
	addr := uint64(uint32(f.pop().I32()))
	v, err := loadAt(bs, addr+off, in.Op)
	if err != nil {
		return err
	}
	f.push(v)
	return nil
}

func isStoreOp(o op) bool {
	switch o {
	case opI32Store, opI64Store, opF32Store, opF64Store,
		opI32Store8, opI32Store16, opI64Store8, opI64Store16, opI64Store32:
		return true
	}
	return false
}

func widthOf(o op) uint64 {
	switch o {
	case opI32Load8S, opI32Load8U, opI64Load8S, opI64Load8U, opI32Store8, opI64Store8:
		return 1
	case opI32Load16S, opI32Load16U, opI64Load16S, opI64Load16U, opI32Store16, opI64Store16:
		return 2
	case opI32Load, opF32Load, opI64Load32S, opI64Load32U, opI32Store, opF32Store, opI64Store32:
		return 4
	case opI64Load, opF64Load, opI64Store, opF64Store:
		return 8
	}
	return 0
}

func boundsCheck(bs []byte, addr, width uint64) error {
	if addr+width > uint64(len(bs)) || addr+width < addr {
		return wasmerr.Trap(wasmerr.TrapMemoryOutOfBounds, nil, "memory access at %d (width %d) out of bounds (length %d)", addr, width, len(bs))
	}
	return nil
}

func loadAt(bs []byte, addr uint64, o op) (vm.VMVal, error) {
	w := widthOf(o)
	if err := boundsCheck(bs, addr, w); err != nil {
		return vm.VMVal{}, err
	}
	b := bs[addr : addr+w]
	switch o {
	case opI32Load:
		return vm.I32(int32(binary.LittleEndian.Uint32(b))), nil
	case opI64Load:
		return vm.I64(int64(binary.LittleEndian.Uint64(b))), nil
	case opF32Load:
		return vm.F32(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
	case opF64Load:
		return vm.F64(math.Float64frombits(binary.LittleEndian.Uint64(b))), nil
	case opI32Load8S:
		return vm.I32(int32(int8(b[0]))), nil
	case opI32Load8U:
		return vm.I32(int32(b[0])), nil
	case opI32Load16S:
		return vm.I32(int32(int16(binary.LittleEndian.Uint16(b)))), nil
	case opI32Load16U:
		return vm.I32(int32(binary.LittleEndian.Uint16(b))), nil
	case opI64Load8S:
		return vm.I64(int64(int8(b[0]))), nil
	case opI64Load8U:
		return vm.I64(int64(b[0])), nil
	case opI64Load16S:
		return vm.I64(int64(int16(binary.LittleEndian.Uint16(b)))), nil
	case opI64Load16U:
		return vm.I64(int64(binary.LittleEndian.Uint16(b))), nil
	case opI64Load32S:
		return vm.I64(int64(int32(binary.LittleEndian.Uint32(b)))), nil
	case opI64Load32U:
		return vm.I64(int64(binary.LittleEndian.Uint32(b))), nil
	}
	return vm.VMVal{}, wasmerr.Trap(wasmerr.TrapInternalAssert, nil, "unhandled load op")
}

func storeAt(bs []byte, addr uint64, o op, v vm.VMVal) error {
	w := widthOf(o)
	if err := boundsCheck(bs, addr, w); err != nil {
		return err
	}
	b := bs[addr : addr+w]
	switch o {
	case opI32Store:
		binary.LittleEndian.PutUint32(b, uint32(v.I32()))
	case opI64Store:
		binary.LittleEndian.PutUint64(b, uint64(v.I64()))
	case opF32Store:
		binary.LittleEndian.PutUint32(b, math.Float32bits(v.F32()))
	case opF64Store:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v.F64()))
	case opI32Store8:
		b[0] = byte(v.I32())
	case opI32Store16:
		binary.LittleEndian.PutUint16(b, uint16(v.I32()))
	case opI64Store8:
		b[0] = byte(v.I64())
	case opI64Store16:
		binary.LittleEndian.PutUint16(b, uint16(v.I64()))
	case opI64Store32:
		binary.LittleEndian.PutUint32(b, uint32(v.I64()))
	default:
		return wasmerr.Trap(wasmerr.TrapInternalAssert, nil, "unhandled store op")
	}
	return nil
}

// memCopy implements memory.copy (spec §4.1 bulk memory), correct under
// overlap since Go's builtin copy behaves like memmove.
func memCopy(mem *vm.Memory, dst, src, n uint32) error {
	bs := mem.Bytes()
	if err := boundsCheck(bs, uint64(src), uint64(n)); err != nil {
		return err
	}
	if err := boundsCheck(bs, uint64(dst), uint64(n)); err != nil {
		return err
	}
	copy(bs[dst:uint64(dst)+uint64(n)], bs[src:uint64(src)+uint64(n)])
	return nil
}

// memFill implements memory.fill.
func memFill(mem *vm.Memory, dst uint32, val byte, n uint32) error {
	bs := mem.Bytes()
	if err := boundsCheck(bs, uint64(dst), uint64(n)); err != nil {
		return err
	}
	region := bs[dst : uint64(dst)+uint64(n)]
	for i := range region {
		region[i] = val
	}
	return nil
}
