package binary

import (
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasmerr"
)

// decodeImportSection decodes the Import section (spec §4.1 "Imports"):
// one entry per import, bumping the relevant num_imported_* counter and
// resolving the declared entity type against the already-interned type
// table (the Type section always precedes Import in binary order).
func (d *decoder) decodeImportSection(br *byteReader) error {
	count, err := br.readVarU32()
	if err != nil {
		return err
	}
	d.m.ImportSection = make([]wasm.Import, count)
	for i := uint32(0); i < count; i++ {
		mod, err := br.readName()
		if err != nil {
			return err
		}
		name, err := br.readName()
		if err != nil {
			return err
		}
		kindByte, err := br.ReadByte()
		if err != nil {
			return wasmerr.InvalidWasm(br.pos, "failed to read import kind: %v", err)
		}

		imp := wasm.Import{Module: mod, Name: name}
		switch wasm.ExternKind(kindByte) {
		case wasm.ExternKindFunc:
			typeIdx, err := br.readVarU32()
			if err != nil {
				return err
			}
			if int(typeIdx) >= len(d.m.TypeSection) {
				return wasmerr.InvalidWasm(br.pos, "import function type index %d out of range", typeIdx)
			}
			imp.Kind = wasm.ExternKindFunc
			imp.DescFunc = d.m.TypeSection[typeIdx]
			d.m.NumImportedFuncs++
		case wasm.ExternKindTable:
			tt, err := d.decodeTableType(br)
			if err != nil {
				return err
			}
			imp.Kind = wasm.ExternKindTable
			imp.DescTable = tt
			d.m.NumImportedTables++
		case wasm.ExternKindMemory:
			mt, err := d.decodeMemoryType(br)
			if err != nil {
				return err
			}
			imp.Kind = wasm.ExternKindMemory
			imp.DescMemory = mt
			d.m.NumImportedMemories++
		case wasm.ExternKindGlobal:
			gt, err := d.decodeGlobalType(br)
			if err != nil {
				return err
			}
			imp.Kind = wasm.ExternKindGlobal
			imp.DescGlobal = gt
			d.m.NumImportedGlobals++
		default:
			return wasmerr.InvalidWasm(br.pos-1, "invalid import kind 0x%x", kindByte)
		}
		d.m.ImportSection[i] = imp
	}
	return nil
}

func (d *decoder) decodeTableType(br *byteReader) (wasm.TableType, error) {
	elem, err := br.readValueType()
	if err != nil {
		return wasm.TableType{}, err
	}
	if !elem.IsReference() {
		return wasm.TableType{}, wasmerr.InvalidWasm(br.pos-1, "table element type must be a reference type")
	}
	limits, err := br.readLimits()
	if err != nil {
		return wasm.TableType{}, err
	}
	return wasm.TableType{ElemType: elem, Limits: limits}, nil
}

func (d *decoder) decodeMemoryType(br *byteReader) (wasm.MemoryType, error) {
	limits, err := br.readLimits()
	if err != nil {
		return wasm.MemoryType{}, err
	}
	return wasm.MemoryType{Limits: limits}, nil
}

func (d *decoder) decodeGlobalType(br *byteReader) (wasm.GlobalType, error) {
	vt, err := br.readValueType()
	if err != nil {
		return wasm.GlobalType{}, err
	}
	mutByte, err := br.ReadByte()
	if err != nil {
		return wasm.GlobalType{}, wasmerr.InvalidWasm(br.pos, "failed to read global mutability: %v", err)
	}
	if mutByte != 0 && mutByte != 1 {
		return wasm.GlobalType{}, wasmerr.InvalidWasm(br.pos-1, "invalid global mutability 0x%x", mutByte)
	}
	return wasm.GlobalType{ValType: vt, Mutable: mutByte == 1}, nil
}
