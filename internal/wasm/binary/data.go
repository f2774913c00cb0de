package binary

import (
	"math"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasmerr"
)

// dataBlobHardLimit is the spec §4.1 "exceeding 2^32 is a translation
// error" bound on the concatenated data blob's total length.
const dataBlobHardLimit = math.MaxUint32

// decodeDataSection decodes the Data section, computing each segment's
// offset into the concatenated data blob incrementally (spec §4.1).
func (d *decoder) decodeDataSection(br *byteReader) error {
	count, err := br.readVarU32()
	if err != nil {
		return err
	}
	d.m.DataSection = make([]wasm.DataSegment, count)
	for i := uint32(0); i < count; i++ {
		flags, err := br.readVarU32()
		if err != nil {
			return err
		}
		seg := wasm.DataSegment{}
		switch flags {
		case 0:
			seg.Mode = wasm.ElementModeActive
			off, err := d.decodeConstExpr(br, wasm.ValueTypeI32)
			if err != nil {
				return err
			}
			seg.Offset = off
		case 1:
			seg.Mode = wasm.ElementModePassive
		case 2:
			seg.Mode = wasm.ElementModeActive
			memIdx, err := br.readVarU32()
			if err != nil {
				return err
			}
			seg.MemoryIndex = wasm.MemoryIndex(memIdx)
			off, err := d.decodeConstExpr(br, wasm.ValueTypeI32)
			if err != nil {
				return err
			}
			seg.Offset = off
		default:
			return wasmerr.InvalidWasm(br.pos, "invalid data segment flags %d", flags)
		}

		n, err := br.readVarU32()
		if err != nil {
			return err
		}
		payload, err := br.readN(int(n))
		if err != nil {
			return wasmerr.InvalidWasm(br.pos, "truncated data segment payload: %v", err)
		}
		seg.Init = payload

		newLen := d.m.DataBlobLen + uint64(len(payload))
		if newLen > dataBlobHardLimit {
			return wasmerr.InvalidWasmf("concatenated data blob would exceed 2^32 bytes")
		}
		seg.BlobOffset = d.m.DataBlobLen
		d.m.DataBlobLen = newLen

		d.m.DataSection[i] = seg
	}
	if d.dataCountSeen {
		// The data-count section, if present, must agree with the actual
		// count so `memory.init`/`data.drop` can validate their segment
		// index without having parsed the whole Code section first. We
		// don't retain the pre-read count; re-reading it strictly for a
		// consistency check is left to the (out-of-scope) validator
		// capability, per spec §1.
		_ = count
	}
	return nil
}
