package trap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/trap"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
)

func TestStack_PushPopDepth(t *testing.T) {
	s := trap.NewStack()
	require.Equal(t, 0, s.Depth())

	s.Push(trap.Frame{FuncIndex: wasm.FuncIndex(1)})
	s.Push(trap.Frame{FuncIndex: wasm.FuncIndex(2)})
	require.Equal(t, 2, s.Depth())

	s.Pop()
	require.Equal(t, 1, s.Depth())
}

func TestStack_PopOnEmptyIsNoop(t *testing.T) {
	s := trap.NewStack()
	s.Pop()
	require.Equal(t, 0, s.Depth())
}

func TestStack_SnapshotIsInnermostFirst(t *testing.T) {
	s := trap.NewStack()
	s.Push(trap.Frame{FuncIndex: wasm.FuncIndex(1), SourceOffset: 10})
	s.Push(trap.Frame{FuncIndex: wasm.FuncIndex(2), SourceOffset: 20})

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, uint32(2), snap[0].FunctionIndex)
	require.Equal(t, uint32(1), snap[1].FunctionIndex)
}
