package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
)

func TestGlobal_GetSetRoundTrips(t *testing.T) {
	g := NewGlobal(wasm.GlobalType{ValType: wasm.ValueTypeI32, Mutable: true}, I32(1))
	require.Equal(t, int32(1), g.Get().I32())

	g.Set(I32(42))
	require.Equal(t, int32(42), g.Get().I32())
}
