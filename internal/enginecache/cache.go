// Package enginecache is the in-memory half of spec §4.2's compilation
// cache: a bounded LRU of already-linked modules keyed by content hash,
// consulted before re-running translation and compilation on a binary
// this process has already seen. internal/filecache is the on-disk half
// that survives a process restart; this one only needs to survive within
// one.
package enginecache

import (
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
)

// Key identifies a cached module by the xxhash of its raw Wasm bytes, the
// same hash function internal/wasm's groupHash uses to intern recursion
// groups (spec §4.1), reused here rather than introducing a second
// hashing scheme for the same purpose.
type Key uint64

func HashKey(wasmBytes []byte) Key { return Key(xxhash.Sum64(wasmBytes)) }

// Cache is a bounded LRU of translated+linked Modules. Zero value is not
// usable; construct with New.
type Cache struct {
	lru *lru.Cache[Key, *wasm.Module]
}

// New builds a Cache holding at most size entries, evicting the least
// recently used Module once full.
func New(size int) (*Cache, error) {
	l, err := lru.New[Key, *wasm.Module](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l}, nil
}

// Get returns the cached Module for key, if present.
func (c *Cache) Get(key Key) (*wasm.Module, bool) {
	return c.lru.Get(key)
}

// Put registers m under key, possibly evicting the least recently used
// entry if the cache is at capacity.
func (c *Cache) Put(key Key, m *wasm.Module) {
	c.lru.Add(key, m)
}

// Len reports how many modules are currently cached.
func (c *Cache) Len() int { return c.lru.Len() }
