package baseline

import (
	"fmt"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/vm"
)

// decodeFC decodes one instruction of the 0xfc-prefixed extension opcode
// space: the nontrapping-float-to-int-conversion proposal's eight
// saturating truncations, plus the bulk-memory-operations proposal's
// memory.init/copy/fill/data.drop and table.init/copy/fill/grow/size
// (spec §4.1 Elements/Data "active ... and passive"; the bulk ops are
// exactly what lets a module actually use a passive segment after
// translation has recorded it). The 0xfc byte itself has already been
// consumed by decodeOne.
func (d *decoder) decodeFC() error {
	sub, err := d.u32()
	if err != nil {
		return err
	}
	switch sub {
	case 0x00: // i32.trunc_sat_f32_s
		d.pop(1)
		d.push(1)
		d.emit(opI32TruncSatF32S, 0, 0)
	case 0x01: // i32.trunc_sat_f32_u
		d.pop(1)
		d.push(1)
		d.emit(opI32TruncSatF32U, 0, 0)
	case 0x02: // i32.trunc_sat_f64_s
		d.pop(1)
		d.push(1)
		d.emit(opI32TruncSatF64S, 0, 0)
	case 0x03: // i32.trunc_sat_f64_u
		d.pop(1)
		d.push(1)
		d.emit(opI32TruncSatF64U, 0, 0)
	case 0x04: // i64.trunc_sat_f32_s
		d.pop(1)
		d.push(1)
		d.emit(opI64TruncSatF32S, 0, 0)
	case 0x05: // i64.trunc_sat_f32_u
		d.pop(1)
		d.push(1)
		d.emit(opI64TruncSatF32U, 0, 0)
	case 0x06: // i64.trunc_sat_f64_s
		d.pop(1)
		d.push(1)
		d.emit(opI64TruncSatF64S, 0, 0)
	case 0x07: // i64.trunc_sat_f64_u
		d.pop(1)
		d.push(1)
		d.emit(opI64TruncSatF64U, 0, 0)

	case 0x08: // memory.init dataidx; reserved memidx byte
		dataIdx, err := d.u32()
		if err != nil {
			return err
		}
		if _, err := d.byteAt(); err != nil {
			return err
		}
		d.pop(3)
		d.emit(opCallBuiltin, int64(vm.BuiltinMemoryInit), int64(dataIdx)<<32)
	case 0x09: // data.drop dataidx
		dataIdx, err := d.u32()
		if err != nil {
			return err
		}
		d.emit(opCallBuiltin, int64(vm.BuiltinDataDrop), int64(dataIdx)<<32)
	case 0x0a: // memory.copy; two reserved memidx bytes
		if _, err := d.byteAt(); err != nil {
			return err
		}
		if _, err := d.byteAt(); err != nil {
			return err
		}
		d.pop(3)
		d.emit(opMemoryCopy, 0, 0)
	case 0x0b: // memory.fill; reserved memidx byte
		if _, err := d.byteAt(); err != nil {
			return err
		}
		d.pop(3)
		d.emit(opMemoryFill, 0, 0)
	case 0x0c: // table.init elemidx, tableidx
		elemIdx, err := d.u32()
		if err != nil {
			return err
		}
		tableIdx, err := d.u32()
		if err != nil {
			return err
		}
		d.pop(3)
		d.emit(opCallBuiltin, int64(vm.BuiltinTableInit), int64(elemIdx)<<32|int64(tableIdx))
	case 0x0d: // elem.drop elemidx
		elemIdx, err := d.u32()
		if err != nil {
			return err
		}
		d.emit(opCallBuiltin, int64(vm.BuiltinElemDrop), int64(elemIdx)<<32)
	case 0x0e: // table.copy dsttable, srctable
		dstTable, err := d.u32()
		if err != nil {
			return err
		}
		srcTable, err := d.u32()
		if err != nil {
			return err
		}
		d.pop(3)
		d.emit(opCallBuiltin, int64(vm.BuiltinTableCopy), int64(dstTable)<<32|int64(srcTable))
	case 0x0f: // table.grow tableidx
		tableIdx, err := d.u32()
		if err != nil {
			return err
		}
		d.pop(2)
		d.push(1)
		d.emit(opCallBuiltin, int64(vm.BuiltinTableGrow), int64(tableIdx)<<32)
	case 0x10: // table.size tableidx
		tableIdx, err := d.u32()
		if err != nil {
			return err
		}
		d.push(1)
		d.emit(opTableSize, int64(tableIdx), 0)
	case 0x11: // table.fill tableidx
		tableIdx, err := d.u32()
		if err != nil {
			return err
		}
		d.pop(3)
		d.emit(opCallBuiltin, int64(vm.BuiltinTableFill), int64(tableIdx)<<32)
	default:
		return fmt.Errorf("unsupported extension opcode 0xfc 0x%02x", sub)
	}
	return nil
}
