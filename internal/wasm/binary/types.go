package binary

import (
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasmerr"
)

const (
	typeFuncForm       = 0x60
	recGroupForm       = 0x4e
	subFinalForm       = 0x4f // `sub` with an explicit (possibly empty) supertype list, final
	subForm            = 0x50 // `sub` with an explicit supertype list, not final
)

// decodeTypeSection decodes the Type section (spec §4.1 "Types"): each
// recursion group is read fully into a scratch slice of wasm.SubType with
// concrete HeapTypeRefs holding the raw module-local type index, then
// handed to the TypeInterner, which assigns interned indices only if the
// group is not already known.
func (d *decoder) decodeTypeSection(br *byteReader) error {
	count, err := br.readVarU32()
	if err != nil {
		return err
	}
	d.m.TypeSection = make([]wasm.InternedTypeIndex, 0, count)
	for i := uint32(0); i < count; i++ {
		groupStartOffset := br.pos
		peek, err := br.ReadByte()
		if err != nil {
			return wasmerr.InvalidWasm(br.pos, "failed to read type entry: %v", err)
		}

		var group []wasm.SubType
		if peek == recGroupForm {
			n, err := br.readVarU32()
			if err != nil {
				return err
			}
			group = make([]wasm.SubType, n)
			for j := range group {
				st, err := d.decodeSubType(br)
				if err != nil {
					return err
				}
				group[j] = st
			}
		} else {
			st, err := d.decodeSubTypeFromForm(br, peek)
			if err != nil {
				return err
			}
			group = []wasm.SubType{st}
		}
		_ = groupStartOffset

		rg, _ := d.m.Types.InternRecGroup(group)
		// Every entry of this binary Type-section slot maps to the
		// interned index at the same relative position within the
		// (possibly reused) group.
		for j := 0; j < rg.Len; j++ {
			d.m.TypeSection = append(d.m.TypeSection, rg.Start+wasm.InternedTypeIndex(j))
		}
	}
	return nil
}

func (d *decoder) decodeSubType(br *byteReader) (wasm.SubType, error) {
	form, err := br.ReadByte()
	if err != nil {
		return wasm.SubType{}, wasmerr.InvalidWasm(br.pos, "failed to read sub type form: %v", err)
	}
	return d.decodeSubTypeFromForm(br, form)
}

func (d *decoder) decodeSubTypeFromForm(br *byteReader, form byte) (wasm.SubType, error) {
	st := wasm.SubType{IsFinal: true}
	switch form {
	case subFinalForm, subForm:
		st.IsFinal = form == subFinalForm
		n, err := br.readVarU32()
		if err != nil {
			return st, err
		}
		if n > 1 {
			return st, wasmerr.Unsupported("multiple supertypes")
		}
		if n == 1 {
			idx, err := br.readVarU32()
			if err != nil {
				return st, err
			}
			ref := wasm.HeapTypeRef{Concrete: true, Index: wasm.InternedTypeIndex(idx)}
			st.Supertype = &ref
		}
		composite, err := d.decodeCompositeType(br)
		if err != nil {
			return st, err
		}
		st.Composite = composite
		return st, nil
	default:
		composite, err := d.decodeCompositeTypeFromForm(br, form)
		if err != nil {
			return st, err
		}
		st.Composite = composite
		return st, nil
	}
}

func (d *decoder) decodeCompositeType(br *byteReader) (wasm.CompositeType, error) {
	form, err := br.ReadByte()
	if err != nil {
		return wasm.CompositeType{}, wasmerr.InvalidWasm(br.pos, "failed to read composite type form: %v", err)
	}
	return d.decodeCompositeTypeFromForm(br, form)
}

func (d *decoder) decodeCompositeTypeFromForm(br *byteReader, form byte) (wasm.CompositeType, error) {
	switch form {
	case typeFuncForm:
		ft, err := d.decodeFuncType(br)
		if err != nil {
			return wasm.CompositeType{}, err
		}
		return wasm.CompositeType{Kind: wasm.CompositeKindFunc, Func: ft}, nil
	case 0x5e: // array
		if !d.features.IsEnabled(wasm.CoreFeatureGC) {
			return wasm.CompositeType{}, wasmerr.Unsupported("array types require the GC feature")
		}
		f, err := d.decodeFieldType(br)
		if err != nil {
			return wasm.CompositeType{}, err
		}
		return wasm.CompositeType{Kind: wasm.CompositeKindArray, Array: &f}, nil
	case 0x5f: // struct
		if !d.features.IsEnabled(wasm.CoreFeatureGC) {
			return wasm.CompositeType{}, wasmerr.Unsupported("struct types require the GC feature")
		}
		n, err := br.readVarU32()
		if err != nil {
			return wasm.CompositeType{}, err
		}
		fields := make([]wasm.FieldType, n)
		for i := range fields {
			f, err := d.decodeFieldType(br)
			if err != nil {
				return wasm.CompositeType{}, err
			}
			fields[i] = f
		}
		return wasm.CompositeType{Kind: wasm.CompositeKindStruct, Struct: fields}, nil
	default:
		return wasm.CompositeType{}, wasmerr.InvalidWasm(br.pos-1, "invalid composite type form 0x%x", form)
	}
}

func (d *decoder) decodeFieldType(br *byteReader) (wasm.FieldType, error) {
	st, err := d.decodeStorageType(br)
	if err != nil {
		return wasm.FieldType{}, err
	}
	mutFlag, err := br.ReadByte()
	if err != nil {
		return wasm.FieldType{}, wasmerr.InvalidWasm(br.pos, "failed to read field mutability: %v", err)
	}
	return wasm.FieldType{Storage: st, Immutable: mutFlag == 0}, nil
}

func (d *decoder) decodeStorageType(br *byteReader) (wasm.StorageType, error) {
	peek, err := br.ReadByte()
	if err != nil {
		return wasm.StorageType{}, wasmerr.InvalidWasm(br.pos, "failed to read storage type: %v", err)
	}
	switch peek {
	case 0x78: // i8
		return wasm.StorageType{Packed: true, PackedBits: 8}, nil
	case 0x77: // i16
		return wasm.StorageType{Packed: true, PackedBits: 16}, nil
	default:
		switch wasm.ValueType(peek) {
		case wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64,
			wasm.ValueTypeV128, wasm.ValueTypeFuncref, wasm.ValueTypeExternref:
			return wasm.StorageType{Value: wasm.ValueType(peek)}, nil
		}
		return wasm.StorageType{}, wasmerr.InvalidWasm(br.pos-1, "invalid storage type 0x%x", peek)
	}
}

func (d *decoder) decodeFuncType(br *byteReader) (*wasm.FunctionType, error) {
	np, err := br.readVarU32()
	if err != nil {
		return nil, err
	}
	params := make([]wasm.ValueType, np)
	for i := range params {
		v, err := br.readValueType()
		if err != nil {
			return nil, err
		}
		params[i] = v
	}
	nr, err := br.readVarU32()
	if err != nil {
		return nil, err
	}
	results := make([]wasm.ValueType, nr)
	for i := range results {
		v, err := br.readValueType()
		if err != nil {
			return nil, err
		}
		results[i] = v
	}
	return &wasm.FunctionType{Params: params, Results: results}, nil
}
