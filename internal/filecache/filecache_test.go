package filecache_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/compiler"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/enginecache"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/filecache"
)

// syntheticObject builds the smallest Object compiler.LoadCached accepts:
// a .text section plus the three side-table sections Link always writes
// (trap handling, address map, func ranges), here all empty except for
// one function spanning the whole text section.
func syntheticObject(t *testing.T) []byte {
	t.Helper()
	obj := compiler.NewObject()
	obj.AppendSection(compiler.SectionText, []byte{0xde, 0xad, 0xbe, 0xef})
	obj.AppendSection(compiler.SectionTrapHandling, compiler.EncodeSideTable(nil, nil))
	obj.AppendSection(compiler.SectionAddressMap, compiler.EncodeSideTable(nil, nil))
	obj.AppendSection(compiler.SectionFuncRanges, compiler.EncodeSideTable([]uint32{0}, []uint32{4}))
	return obj.Serialize()
}

func TestFileCache_StoreThenLoadRoundTrips(t *testing.T) {
	c, err := filecache.New(t.TempDir())
	require.NoError(t, err)

	key := enginecache.HashKey([]byte("module-bytes"))
	raw := syntheticObject(t)

	require.NoError(t, c.Store(key, raw))

	img, ok, err := c.Load(key)
	require.NoError(t, err)
	require.True(t, ok)
	defer img.Close()
	require.Len(t, img.FuncRanges, 1)
	require.Equal(t, uint32(0), img.FuncRanges[0].Start)
	require.Equal(t, uint32(4), img.FuncRanges[0].End)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, img.TextBytes())
}

func TestFileCache_LoadMissReturnsFalse(t *testing.T) {
	c, err := filecache.New(t.TempDir())
	require.NoError(t, err)

	_, ok, err := c.Load(enginecache.HashKey([]byte("never stored")))
	require.NoError(t, err)
	require.False(t, ok)
}
