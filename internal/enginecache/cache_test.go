package enginecache_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/enginecache"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
)

func TestCache_PutGet(t *testing.T) {
	c, err := enginecache.New(2)
	require.NoError(t, err)

	key := enginecache.HashKey([]byte("hello"))
	_, ok := c.Get(key)
	require.False(t, ok)

	m := &wasm.Module{}
	c.Put(key, m)
	got, ok := c.Get(key)
	require.True(t, ok)
	require.Same(t, m, got)
	require.Equal(t, 1, c.Len())
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, err := enginecache.New(1)
	require.NoError(t, err)

	k1 := enginecache.HashKey([]byte("a"))
	k2 := enginecache.HashKey([]byte("b"))
	c.Put(k1, &wasm.Module{})
	c.Put(k2, &wasm.Module{})

	_, ok := c.Get(k1)
	require.False(t, ok, "k1 should have been evicted once k2 pushed the cache over capacity")
	_, ok = c.Get(k2)
	require.True(t, ok)
}

func TestHashKey_IsDeterministic(t *testing.T) {
	require.Equal(t, enginecache.HashKey([]byte("same")), enginecache.HashKey([]byte("same")))
	require.NotEqual(t, enginecache.HashKey([]byte("a")), enginecache.HashKey([]byte("b")))
}
