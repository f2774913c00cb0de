package binary

import (
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasmerr"
)

// decodeFunctionSection decodes the Function section: one type index per
// defined function (spec §4.1 "Functions... append descriptors").
func (d *decoder) decodeFunctionSection(br *byteReader) error {
	count, err := br.readVarU32()
	if err != nil {
		return err
	}
	d.m.FunctionSection = make([]wasm.InternedTypeIndex, count)
	for i := uint32(0); i < count; i++ {
		typeIdx, err := br.readVarU32()
		if err != nil {
			return err
		}
		if int(typeIdx) >= len(d.m.TypeSection) {
			return wasmerr.InvalidWasm(br.pos, "function type index %d out of range", typeIdx)
		}
		d.m.FunctionSection[i] = d.m.TypeSection[typeIdx]
	}
	return nil
}

// decodeTableSection decodes the Table section, including the function-
// references proposal's optional initialiser expression.
func (d *decoder) decodeTableSection(br *byteReader) error {
	count, err := br.readVarU32()
	if err != nil {
		return err
	}
	d.m.TableSection = make([]wasm.Table, count)
	for i := uint32(0); i < count; i++ {
		peek, err := br.ReadByte()
		if err != nil {
			return wasmerr.InvalidWasm(br.pos, "failed to read table entry: %v", err)
		}
		var tbl wasm.Table
		if peek == 0x40 {
			// reftype-with-init form: 0x40 0x00 reftype expr
			if _, err := br.ReadByte(); err != nil {
				return wasmerr.InvalidWasm(br.pos, "malformed table entry: %v", err)
			}
			elem, err := br.readValueType()
			if err != nil {
				return err
			}
			limits, err := br.readLimits()
			if err != nil {
				return err
			}
			init, err := d.decodeConstExpr(br, elem)
			if err != nil {
				return err
			}
			tbl = wasm.Table{Type: wasm.TableType{ElemType: elem, Limits: limits}, Init: &init}
		} else {
			elem := wasm.ValueType(peek)
			if !elem.IsReference() {
				return wasmerr.InvalidWasm(br.pos-1, "table element type must be a reference type")
			}
			limits, err := br.readLimits()
			if err != nil {
				return err
			}
			tbl = wasm.Table{Type: wasm.TableType{ElemType: elem, Limits: limits}}
		}
		d.m.TableSection[i] = tbl
	}
	return nil
}

// decodeMemorySection decodes the Memory section.
func (d *decoder) decodeMemorySection(br *byteReader) error {
	count, err := br.readVarU32()
	if err != nil {
		return err
	}
	d.m.MemorySection = make([]wasm.Memory, count)
	for i := uint32(0); i < count; i++ {
		mt, err := d.decodeMemoryType(br)
		if err != nil {
			return err
		}
		d.m.MemorySection[i] = wasm.Memory{Type: mt}
	}
	return nil
}

// decodeGlobalSection decodes the Global section, recording (via
// decodeConstExpr) which functions each initialiser references so they can
// later be marked escaping (spec §4.1 "for tables and globals with
// initialisers, decode the const-expression and record the set of
// functions it references").
func (d *decoder) decodeGlobalSection(br *byteReader) error {
	count, err := br.readVarU32()
	if err != nil {
		return err
	}
	d.m.GlobalSection = make([]wasm.Global, count)
	for i := uint32(0); i < count; i++ {
		gt, err := d.decodeGlobalType(br)
		if err != nil {
			return err
		}
		init, err := d.decodeConstExpr(br, gt.ValType)
		if err != nil {
			return err
		}
		d.m.GlobalSection[i] = wasm.Global{Type: gt, Init: init}
	}
	return nil
}

// decodeExportSection decodes the Export section (spec §4.1 "Exports").
// Marking exported functions escaping is deferred to resolveEscaping,
// which runs after the whole module has been parsed, so export order
// relative to later sections never matters.
func (d *decoder) decodeExportSection(br *byteReader) error {
	count, err := br.readVarU32()
	if err != nil {
		return err
	}
	d.m.ExportSection = make([]wasm.Export, count)
	for i := uint32(0); i < count; i++ {
		name, err := br.readName()
		if err != nil {
			return err
		}
		kindByte, err := br.ReadByte()
		if err != nil {
			return wasmerr.InvalidWasm(br.pos, "failed to read export kind: %v", err)
		}
		idx, err := br.readVarU32()
		if err != nil {
			return err
		}
		exp := wasm.Export{Name: name, Kind: wasm.ExternKind(kindByte), Index: idx}
		if _, dup := d.m.Exports[name]; dup {
			return wasmerr.InvalidWasmf("duplicate export name %q", name)
		}
		d.m.ExportSection[i] = exp
		d.m.Exports[name] = exp
	}
	return nil
}

// decodeStartSection decodes the (at most one) Start section entry.
func (d *decoder) decodeStartSection(br *byteReader) error {
	idx, err := br.readVarU32()
	if err != nil {
		return err
	}
	f := wasm.FuncIndex(idx)
	d.m.StartFunc = &f
	return nil
}
