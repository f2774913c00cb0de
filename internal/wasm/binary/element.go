package binary

import (
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasmerr"
)

// decodeElementSection decodes the Element section (spec §4.1 "Elements /
// Data... split into active... and passive"), supporting all eight binary
// encodings (flags 0-7) defined by the bulk-memory and reference-types
// proposals.
func (d *decoder) decodeElementSection(br *byteReader) error {
	count, err := br.readVarU32()
	if err != nil {
		return err
	}
	d.m.ElementSection = make([]wasm.ElementSegment, count)
	for i := uint32(0); i < count; i++ {
		flags, err := br.readVarU32()
		if err != nil {
			return err
		}
		seg := wasm.ElementSegment{ElemType: wasm.ValueTypeFuncref}

		switch flags {
		case 0:
			seg.Mode = wasm.ElementModeActive
			off, err := d.decodeConstExpr(br, wasm.ValueTypeI32)
			if err != nil {
				return err
			}
			seg.Offset = off
			if err := d.decodeElemFuncIndices(br, &seg); err != nil {
				return err
			}
		case 1:
			seg.Mode = wasm.ElementModePassive
			if _, err := br.ReadByte(); err != nil { // elemkind byte, must be 0x00 (funcref)
				return wasmerr.InvalidWasm(br.pos, "malformed element kind: %v", err)
			}
			if err := d.decodeElemFuncIndices(br, &seg); err != nil {
				return err
			}
		case 2:
			seg.Mode = wasm.ElementModeActive
			tblIdx, err := br.readVarU32()
			if err != nil {
				return err
			}
			seg.TableIndex = wasm.TableIndex(tblIdx)
			off, err := d.decodeConstExpr(br, wasm.ValueTypeI32)
			if err != nil {
				return err
			}
			seg.Offset = off
			if _, err := br.ReadByte(); err != nil {
				return wasmerr.InvalidWasm(br.pos, "malformed element kind: %v", err)
			}
			if err := d.decodeElemFuncIndices(br, &seg); err != nil {
				return err
			}
		case 3:
			seg.Mode = wasm.ElementModeDeclared
			if _, err := br.ReadByte(); err != nil {
				return wasmerr.InvalidWasm(br.pos, "malformed element kind: %v", err)
			}
			if err := d.decodeElemFuncIndices(br, &seg); err != nil {
				return err
			}
		case 4:
			seg.Mode = wasm.ElementModeActive
			off, err := d.decodeConstExpr(br, wasm.ValueTypeI32)
			if err != nil {
				return err
			}
			seg.Offset = off
			if err := d.decodeElemExprs(br, &seg, wasm.ValueTypeFuncref); err != nil {
				return err
			}
		case 5:
			seg.Mode = wasm.ElementModePassive
			elem, err := br.readValueType()
			if err != nil {
				return err
			}
			if err := d.decodeElemExprs(br, &seg, elem); err != nil {
				return err
			}
		case 6:
			seg.Mode = wasm.ElementModeActive
			tblIdx, err := br.readVarU32()
			if err != nil {
				return err
			}
			seg.TableIndex = wasm.TableIndex(tblIdx)
			off, err := d.decodeConstExpr(br, wasm.ValueTypeI32)
			if err != nil {
				return err
			}
			seg.Offset = off
			elem, err := br.readValueType()
			if err != nil {
				return err
			}
			if err := d.decodeElemExprs(br, &seg, elem); err != nil {
				return err
			}
		case 7:
			seg.Mode = wasm.ElementModeDeclared
			elem, err := br.readValueType()
			if err != nil {
				return err
			}
			if err := d.decodeElemExprs(br, &seg, elem); err != nil {
				return err
			}
		default:
			return wasmerr.InvalidWasm(br.pos, "invalid element segment flags %d", flags)
		}
		d.m.ElementSection[i] = seg
	}
	return nil
}

func (d *decoder) decodeElemFuncIndices(br *byteReader, seg *wasm.ElementSegment) error {
	n, err := br.readVarU32()
	if err != nil {
		return err
	}
	funcs := make([]wasm.FuncIndex, n)
	for i := range funcs {
		idx, err := br.readVarU32()
		if err != nil {
			return err
		}
		funcs[i] = wasm.FuncIndex(idx)
	}
	seg.Funcs = funcs
	return nil
}

func (d *decoder) decodeElemExprs(br *byteReader, seg *wasm.ElementSegment, elem wasm.ValueType) error {
	seg.ElemType = elem
	n, err := br.readVarU32()
	if err != nil {
		return err
	}
	exprs := make([]wasm.ConstExpr, n)
	for i := range exprs {
		e, err := d.decodeConstExpr(br, elem)
		if err != nil {
			return err
		}
		exprs[i] = e
	}
	seg.Exprs = exprs
	return nil
}
