package binary

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
)

// emptyModule is just the 8-byte preamble, no sections.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestDecode_EmptyModuleSucceeds(t *testing.T) {
	tr, err := Decode(bytes.NewReader(emptyModule), wasm.CoreFeaturesV2)
	require.NoError(t, err)
	require.NotNil(t, tr.Module)
	require.Empty(t, tr.CompileInputs)
}

func TestDecode_RejectsBadMagic(t *testing.T) {
	bad := append([]byte{}, emptyModule...)
	bad[0] = 0xff
	_, err := Decode(bytes.NewReader(bad), wasm.CoreFeaturesV2)
	require.Error(t, err)
}

func TestDecode_RejectsBadVersion(t *testing.T) {
	bad := append([]byte{}, emptyModule...)
	bad[4] = 0x02
	_, err := Decode(bytes.NewReader(bad), wasm.CoreFeaturesV2)
	require.Error(t, err)
}

func TestDecode_RejectsTruncatedSection(t *testing.T) {
	// Type section id=1, declared size 10, but only 1 byte of payload follows.
	b := append([]byte{}, emptyModule...)
	b = append(b, 0x01, 0x0a, 0x01)
	_, err := Decode(bytes.NewReader(b), wasm.CoreFeaturesV2)
	require.Error(t, err)
}

func TestDecode_RejectsOutOfOrderSections(t *testing.T) {
	// Function section (3) followed by Type section (1) is out of order.
	b := append([]byte{}, emptyModule...)
	b = append(b, 0x03, 0x01, 0x00) // function section, count 0
	b = append(b, 0x01, 0x01, 0x00) // type section, count 0
	_, err := Decode(bytes.NewReader(b), wasm.CoreFeaturesV2)
	require.Error(t, err)
}

// twoIdenticalFuncTypesWasm declares two (i32,i32)->i32 function types as
// two separate recursion groups, then imports one function of each type.
// A single-signature func type (0x60 form) with no rec-group wrapper.
var twoIdenticalFuncTypesWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type section: two identical (i32,i32)->i32 func types
	0x01, 0x0d, 0x02,
	0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	// import section: "m","f0" func type 0; "m","f1" func type 1
	0x02, 0x0f, 0x02,
	0x01, 0x6d, 0x02, 0x66, 0x30, 0x00, 0x00,
	0x01, 0x6d, 0x02, 0x66, 0x31, 0x00, 0x01,
}

func TestDecode_TypeInternerDedupesIdenticalSignatures(t *testing.T) {
	tr, err := Decode(bytes.NewReader(twoIdenticalFuncTypesWasm), wasm.CoreFeaturesV2)
	require.NoError(t, err)

	require.Len(t, tr.Module.TypeSection, 2)
	// Two structurally identical func types intern to the same index
	// (spec §4.1 "if not, reserve ... convert ... commit"; a repeat of
	// an already-seen group reuses its indices).
	require.Equal(t, tr.Module.TypeSection[0], tr.Module.TypeSection[1])
	require.Equal(t, 1, tr.Module.Types.Len())
}

func TestDecode_ImportSectionBumpsCounters(t *testing.T) {
	tr, err := Decode(bytes.NewReader(twoIdenticalFuncTypesWasm), wasm.CoreFeaturesV2)
	require.NoError(t, err)

	require.Equal(t, uint32(2), tr.Module.NumImportedFuncs)
	require.Len(t, tr.Module.ImportSection, 2)
	require.Equal(t, "m", tr.Module.ImportSection[0].Module)
	require.Equal(t, "f0", tr.Module.ImportSection[0].Name)
	require.Equal(t, "f1", tr.Module.ImportSection[1].Name)
}

func TestDecode_RejectsImportFuncTypeIndexOutOfRange(t *testing.T) {
	b := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x01, 0x00, // empty type section
		0x02, 0x07, 0x01,
		0x01, 0x6d, 0x01, 0x66, 0x00, 0x05, // import func type idx 5 (out of range)
	}
	_, err := Decode(bytes.NewReader(b), wasm.CoreFeaturesV2)
	require.Error(t, err)
}
