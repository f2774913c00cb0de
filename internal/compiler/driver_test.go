package compiler_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/compiler"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/compiler/baseline"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/vm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm/binary"
)

// addWasm: (module (func (export "add") (param i32 i32) (result i32)
// local.get 0 local.get 1 i32.add))
var addWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x07, 0x01, 0x03, 0x61, 0x64, 0x64, 0x00, 0x00,
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
}

func TestLink_ProducesFuncRangeWithinText(t *testing.T) {
	tr, err := binary.Decode(bytes.NewReader(addWasm), wasm.CoreFeaturesV2)
	require.NoError(t, err)

	img, err := compiler.Link(baseline.New(), tr)
	require.NoError(t, err)
	defer img.Close()

	require.Len(t, img.FuncRanges, 1)
	fr := img.FuncRanges[0]
	require.Less(t, fr.Start, fr.End)
	require.LessOrEqual(t, uint32(fr.End), uint32(len(img.TextBytes())))
}

func TestLink_FuncIndexAtResolvesExportedFunction(t *testing.T) {
	tr, err := binary.Decode(bytes.NewReader(addWasm), wasm.CoreFeaturesV2)
	require.NoError(t, err)

	img, err := compiler.Link(baseline.New(), tr)
	require.NoError(t, err)
	defer img.Close()

	fr := img.FuncRanges[0]
	idx, ok := img.FuncIndexAt(fr.Start)
	require.True(t, ok)
	require.Equal(t, 0, idx)

	_, ok = img.FuncIndexAt(uint32(len(img.TextBytes()) + 1000))
	require.False(t, ok)
}

// divWasm: (module (func (export "d") (param i32 i32) (result i32)
// local.get 0 local.get 1 i32.div_s)) -- carries a trap site for
// "integer division by zero" at the div_s instruction, used here to
// exercise the trap-handling side table the Link step builds.
var divWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x05, 0x01, 0x01, 0x64, 0x00, 0x00,
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6d, 0x0b,
}

func TestLink_TrapHandlingSideTableIsMonotonic(t *testing.T) {
	tr, err := binary.Decode(bytes.NewReader(divWasm), wasm.CoreFeaturesV2)
	require.NoError(t, err)

	img, err := compiler.Link(baseline.New(), tr)
	require.NoError(t, err)
	defer img.Close()

	// The div_s trap site must be discoverable and the side table must
	// stay sorted (spec §8 property 4): probing every offset in range
	// never finds a later offset mapped before an earlier one.
	var lastFound uint32
	sawAny := false
	for off := uint32(0); off < uint32(len(img.TextBytes())); off++ {
		if _, ok := img.TrapKindAt(off); ok {
			require.GreaterOrEqual(t, off, lastFound)
			lastFound = off
			sawAny = true
		}
	}
	require.True(t, sawAny, "expected at least one trap site for i32.div_s")
}

func TestLink_BuildsOneWasmToBuiltinTrampolinePerBuiltin(t *testing.T) {
	tr, err := binary.Decode(bytes.NewReader(addWasm), wasm.CoreFeaturesV2)
	require.NoError(t, err)

	img, err := compiler.Link(baseline.New(), tr)
	require.NoError(t, err)
	defer img.Close()

	// One defined function, one host-to-wasm trampoline (the exported
	// "add" is escaping and is the only signature), plus one builtin
	// trampoline per registered builtin (spec §4.2).
	require.Len(t, img.FuncRanges, 1+1+len(vm.NewBuiltinTable()))
}
