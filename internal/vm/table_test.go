package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTable_GetSetOutOfBoundsTraps(t *testing.T) {
	tb := NewTable(2, 0, false, NullFuncRef)
	require.Equal(t, uint64(2), tb.Len())

	require.NoError(t, tb.Set(0, I32(7)))
	v, err := tb.Get(0)
	require.NoError(t, err)
	require.Equal(t, int32(7), v.I32())

	_, err = tb.Get(5)
	require.Error(t, err)
	require.Error(t, tb.Set(5, I32(1)))
}

func TestTable_GrowBeyondMaxFails(t *testing.T) {
	tb := NewTable(1, 1, true, NullFuncRef)
	require.Equal(t, int64(-1), tb.Grow(1, NullFuncRef))
	require.Equal(t, uint64(1), tb.Len())
}

func TestTable_GrowWithinMaxExtendsWithNull(t *testing.T) {
	tb := NewTable(1, 4, true, NullFuncRef)
	prev := tb.Grow(2, NullFuncRef)
	require.Equal(t, int64(1), prev)
	require.Equal(t, uint64(3), tb.Len())
	v, err := tb.Get(2)
	require.NoError(t, err)
	require.Equal(t, NullFuncRef, v)
}

func TestTable_FillWritesRange(t *testing.T) {
	tb := NewTable(4, 0, false, NullFuncRef)
	require.NoError(t, tb.Fill(1, 2, I32(9)))

	v0, _ := tb.Get(0)
	v1, _ := tb.Get(1)
	v2, _ := tb.Get(2)
	v3, _ := tb.Get(3)
	require.Equal(t, NullFuncRef, v0)
	require.Equal(t, int32(9), v1.I32())
	require.Equal(t, int32(9), v2.I32())
	require.Equal(t, NullFuncRef, v3)

	require.Error(t, tb.Fill(3, 5, I32(0)))
}
