package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemory_GrowWithinMaxSucceeds(t *testing.T) {
	m, err := NewMemory(1, 2, true, false)
	require.NoError(t, err)
	defer m.Close()

	require.Equal(t, uint64(1), m.PageCount())
	prev := m.Grow(1)
	require.Equal(t, int64(1), prev)
	require.Equal(t, uint64(2), m.PageCount())
}

func TestMemory_GrowBeyondMaxFails(t *testing.T) {
	m, err := NewMemory(1, 1, true, false)
	require.NoError(t, err)
	defer m.Close()

	require.Equal(t, int64(-1), m.Grow(1))
	require.Equal(t, uint64(1), m.PageCount())
}

func TestMemory_NoDeclaredMaxStillReservesAndCommits(t *testing.T) {
	m, err := NewMemory(2, 0, false, false)
	require.NoError(t, err)
	defer m.Close()

	require.Equal(t, uint64(2), m.PageCount())
	require.Len(t, m.Bytes(), int(2*WasmPageSize))
}
