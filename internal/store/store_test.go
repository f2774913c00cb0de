package store_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/enginecache"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/store"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/vm"
)

// addModuleWasm is the hand-encoded binary for:
//
//	(module
//	  (func (export "add") (param i32 i32) (result i32)
//	    local.get 0
//	    local.get 1
//	    i32.add))
var addModuleWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, // magic, version
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f, // type section
	0x03, 0x02, 0x01, 0x00, // function section
	0x07, 0x07, 0x01, 0x03, 0x61, 0x64, 0x64, 0x00, 0x00, // export section
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b, // code section
}

// divModuleWasm is the same shape but divides: (param i32 i32) (result
// i32), body "local.get 0, local.get 1, i32.div_s", exported as "div",
// exercising E2's divide-by-zero trap scenario.
var divModuleWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x07, 0x01, 0x03, 0x64, 0x69, 0x76, 0x00, 0x00, // "div"
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6d, 0x0b, // i32.div_s = 0x6d
}

// maxModuleWasm exercises the if/else branch-patching path:
//
//	(module
//	  (func (export "max") (param i32 i32) (result i32)
//	    local.get 0
//	    local.get 1
//	    i32.gt_s
//	    if (result i32)
//	      local.get 0
//	    else
//	      local.get 1
//	    end))
var maxModuleWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x07, 0x01, 0x03, 0x6d, 0x61, 0x78, 0x00, 0x00, // "max"
	0x0a, 0x11, 0x01, 0x0f, 0x00,
	0x20, 0x00, // local.get 0
	0x20, 0x01, // local.get 1
	0x4a,       // i32.gt_s
	0x04, 0x7f, // if (result i32)
	0x20, 0x00, // local.get 0
	0x05,       // else
	0x20, 0x01, // local.get 1
	0x0b, // end (if)
	0x0b, // end (func)
}

func TestStore_IfElseSelectsCorrectBranch(t *testing.T) {
	s := store.New()
	defer s.Close()

	m, err := s.Compile(maxModuleWasm)
	require.NoError(t, err)

	linker := store.NewLinker()
	inst, err := linker.Instantiate(s, m)
	require.NoError(t, err)

	ext, err := store.GetExport(inst, "max")
	require.NoError(t, err)

	res, err := ext.Func.HostCall([]vm.VMVal{vm.I32(7), vm.I32(3)})
	require.NoError(t, err)
	require.Equal(t, int32(7), res[0].I32(), "7 > 3, the then-branch (local 0) must be selected")

	res, err = ext.Func.HostCall([]vm.VMVal{vm.I32(2), vm.I32(9)})
	require.NoError(t, err)
	require.Equal(t, int32(9), res[0].I32(), "2 <= 9, the else-branch (local 1) must be selected")
}

func TestStore_CompileInstantiateCall_Add(t *testing.T) {
	s := store.New()
	defer s.Close()

	m, err := s.Compile(addModuleWasm)
	require.NoError(t, err)
	require.Equal(t, 1, m.NumFunctions())

	linker := store.NewLinker()
	inst, err := linker.Instantiate(s, m)
	require.NoError(t, err)

	ext, err := store.GetExport(inst, "add")
	require.NoError(t, err)

	res, err := ext.Func.HostCall([]vm.VMVal{vm.I32(2), vm.I32(3)})
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, int32(5), res[0].I32())
}

func TestStore_DivideByZeroTraps(t *testing.T) {
	s := store.New()
	defer s.Close()

	m, err := s.Compile(divModuleWasm)
	require.NoError(t, err)

	linker := store.NewLinker()
	inst, err := linker.Instantiate(s, m)
	require.NoError(t, err)

	ext, err := store.GetExport(inst, "div")
	require.NoError(t, err)

	_, err = ext.Func.HostCall([]vm.VMVal{vm.I32(1), vm.I32(0)})
	require.Error(t, err)
}

func TestStore_CompileUsesEngineCache(t *testing.T) {
	engine, err := enginecache.New(8)
	require.NoError(t, err)
	s := store.New(store.WithEngineCache(engine))
	defer s.Close()

	m1, err := s.Compile(addModuleWasm)
	require.NoError(t, err)
	m2, err := s.Compile(addModuleWasm)
	require.NoError(t, err)
	require.Same(t, m1, m2, "identical bytes should hit the engine cache and return the same Module")
}

func TestLinker_DuplicateDefineFails(t *testing.T) {
	l := store.NewLinker()
	require.NoError(t, l.Define("env", "x", vm.Extern{}))
	require.Error(t, l.Define("env", "x", vm.Extern{}))
}

func TestLinker_AliasModuleSnapshotsAtCallTime(t *testing.T) {
	l := store.NewLinker()
	require.NoError(t, l.Define("env", "a", vm.Extern{}))
	require.NoError(t, l.AliasModule("env", "env2"))
	require.NoError(t, l.Define("env", "b", vm.Extern{}))

	// "env2" only has "a": it was snapshotted before "b" was defined.
	require.Error(t, l.Define("env2", "a", vm.Extern{}))
	require.NoError(t, l.Define("env2", "b", vm.Extern{}))
}
