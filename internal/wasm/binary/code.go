package binary

import (
	"bytes"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasmerr"
)

// decodeCodeSection buffers each function body without translating it
// (spec §4.1 "Code: function bodies are buffered with their per-function
// validator token; they are not translated here"). The locals header is
// decoded eagerly since internal/compiler needs the flattened local type
// list to assign stack slots; the expression bytes are left untouched.
func (d *decoder) decodeCodeSection(br *byteReader) error {
	count, err := br.readVarU32()
	if err != nil {
		return err
	}
	if int(count) != len(d.m.FunctionSection) {
		return wasmerr.InvalidWasmf("code section has %d entries but function section declared %d", count, len(d.m.FunctionSection))
	}
	d.compileInputs = make([]CompileInput, count)
	for i := uint32(0); i < count; i++ {
		bodySize, err := br.readVarU32()
		if err != nil {
			return err
		}
		bodyBytes, err := br.readN(int(bodySize))
		if err != nil {
			return wasmerr.InvalidWasm(br.pos, "truncated function body: %v", err)
		}
		bodyStartOffset := br.pos - int(bodySize)
		sub := newByteReader(bytes.NewReader(bodyBytes))
		sub.pos = bodyStartOffset

		localDeclCount, err := sub.readVarU32()
		if err != nil {
			return err
		}
		var locals []wasm.ValueType
		for j := uint32(0); j < localDeclCount; j++ {
			n, err := sub.readVarU32()
			if err != nil {
				return err
			}
			vt, err := sub.readValueType()
			if err != nil {
				return err
			}
			for k := uint32(0); k < n; k++ {
				locals = append(locals, vt)
			}
		}

		fidx := wasm.FuncIndex(d.m.NumImportedFuncs + i)
		d.compileInputs[i] = CompileInput{
			Index:          fidx,
			Type:           d.m.Types.At(d.m.FunctionSection[i]).Composite.Func,
			LocalTypes:     locals,
			Body:           bodyBytes[sub.pos-bodyStartOffset:],
			BodyOffset:     sub.pos,
			ValidatorToken: validatorTokenOK,
		}
	}
	return nil
}

// validatorTokenOK stands in for the opaque validator capability's
// success token (spec §1): this engine delegates real validation to that
// external capability and only ever sees "already validated" inputs in
// the pipeline described by this spec.
var validatorTokenOK = struct{}{}
