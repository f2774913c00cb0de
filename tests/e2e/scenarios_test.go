// Package e2e runs the concrete end-to-end scenarios spec.md §8 seeds the
// test suite with (E1-E6), each a hand-encoded minimal Wasm binary driven
// through the full compile -> link -> instantiate -> call pipeline,
// mirroring the layout of the teacher's own tests/spectest package.
package e2e

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/store"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/vm"
)

// e1AddWasm: (module (func (export "add") (param i32 i32) (result i32)
// local.get 0 local.get 1 i32.add))
var e1AddWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x07, 0x01, 0x03, 0x61, 0x64, 0x64, 0x00, 0x00,
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
}

func TestE1_Arithmetic(t *testing.T) {
	s := store.New()
	defer s.Close()

	m, err := s.Compile(e1AddWasm)
	require.NoError(t, err)
	inst, err := store.NewLinker().Instantiate(s, m)
	require.NoError(t, err)

	ext, err := store.GetExport(inst, "add")
	require.NoError(t, err)
	res, err := ext.Func.HostCall([]vm.VMVal{vm.I32(2), vm.I32(3)})
	require.NoError(t, err)
	require.Equal(t, int32(5), res[0].I32())
}

// e2DivWasm: (module (func (export "d") (param i32 i32) (result i32)
// local.get 0 local.get 1 i32.div_s))
var e2DivWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x05, 0x01, 0x01, 0x64, 0x00, 0x00, // "d"
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6d, 0x0b,
}

func TestE2_DivideByZero(t *testing.T) {
	s := store.New()
	defer s.Close()

	m, err := s.Compile(e2DivWasm)
	require.NoError(t, err)
	inst, err := store.NewLinker().Instantiate(s, m)
	require.NoError(t, err)

	ext, err := store.GetExport(inst, "d")
	require.NoError(t, err)
	_, err = ext.Func.HostCall([]vm.VMVal{vm.I32(1), vm.I32(0)})
	require.ErrorContains(t, err, "division by zero")
}

// e3LoadWasm: (module (memory 1) (func (export "load") (param i32)
// (result i32) local.get 0 i32.load))
var e3LoadWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x06, 0x01, 0x60, 0x01, 0x7f, 0x01, 0x7f,
	0x03, 0x02, 0x01, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01, // memory 1, no max
	0x07, 0x08, 0x01, 0x04, 0x6c, 0x6f, 0x61, 0x64, 0x00, 0x00, // "load"
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x28, 0x02, 0x00, 0x0b,
}

func TestE3_MemoryOutOfBounds(t *testing.T) {
	s := store.New()
	defer s.Close()

	m, err := s.Compile(e3LoadWasm)
	require.NoError(t, err)
	inst, err := store.NewLinker().Instantiate(s, m)
	require.NoError(t, err)

	ext, err := store.GetExport(inst, "load")
	require.NoError(t, err)
	_, err = ext.Func.HostCall([]vm.VMVal{vm.I32(65536)})
	require.ErrorContains(t, err, "out of bounds")
}

// e4GlobalWasm: (module (global (export "g") i32 (i32.const 42)))
var e4GlobalWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x06, 0x06, 0x01, 0x7f, 0x00, 0x41, 0x2a, 0x0b, // global section
	0x07, 0x05, 0x01, 0x01, 0x67, 0x03, 0x00, // export "g" global 0
}

func TestE4_LinkerAliasing(t *testing.T) {
	s := store.New()
	defer s.Close()

	m, err := s.Compile(e4GlobalWasm)
	require.NoError(t, err)
	instA, err := store.NewLinker().Instantiate(s, m)
	require.NoError(t, err)

	l := store.NewLinker()
	require.NoError(t, l.DefineInstance("A", instA))
	require.NoError(t, l.AliasModule("A", "B"))

	wantA, ok := l.Lookup("A", "g")
	require.True(t, ok)
	gotB, ok := l.Lookup("B", "g")
	require.True(t, ok)
	require.Same(t, wantA.Global, gotB.Global, "aliased module must resolve to the same Extern as the original")
	require.Equal(t, int32(42), gotB.Global.Get().I32())
}

// e5DataWasm: (module (memory 1) (data (i32.const 4) "abc"))
var e5DataWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01, // memory 1, no max
	0x0b, 0x09, 0x01, 0x00, 0x41, 0x04, 0x0b, 0x03, 0x61, 0x62, 0x63, // data section
}

func TestE5_ActiveDataInit(t *testing.T) {
	s := store.New()
	defer s.Close()

	m, err := s.Compile(e5DataWasm)
	require.NoError(t, err)
	inst, err := store.NewLinker().Instantiate(s, m)
	require.NoError(t, err)

	mem, err := inst.MemoryAt(0)
	require.NoError(t, err)
	require.Equal(t, []byte{0x61, 0x62, 0x63}, mem.Bytes()[4:7])
}

// e6ConstGlobalWasm: (module (global (export "g") i32 (i32.const 7)
// (i32.const 5) i32.sub))
var e6ConstGlobalWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x06, 0x09, 0x01, 0x7f, 0x00, 0x41, 0x07, 0x41, 0x05, 0x6b, 0x0b, // global section
	0x07, 0x05, 0x01, 0x01, 0x67, 0x03, 0x00, // export "g" global 0
}

func TestE6_ExtendedConstExpr(t *testing.T) {
	s := store.New()
	defer s.Close()

	m, err := s.Compile(e6ConstGlobalWasm)
	require.NoError(t, err)
	inst, err := store.NewLinker().Instantiate(s, m)
	require.NoError(t, err)

	ext, err := store.GetExport(inst, "g")
	require.NoError(t, err)
	require.Equal(t, int32(2), ext.Global.Get().I32())
}
