package vm

import (
	"unsafe"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
)

// Global is a single mutable or immutable global variable cell (spec §3
// Global). Defined globals live directly inside the VMContext block
// (spec §3 "defined globals"); Global here is the host-side handle an
// Instance's allocate_module path uses while computing each one's initial
// value, and what an imported global's owner Instance exposes to a
// satisfying import.
type Global struct {
	Type  wasm.GlobalType
	value VMVal
}

// NewGlobal constructs a Global with its already-evaluated initial value.
func NewGlobal(t wasm.GlobalType, init VMVal) *Global {
	return &Global{Type: t, value: init}
}

// Get reads the current value.
func (g *Global) Get() VMVal { return g.value }

// Set writes a new value. Callers are responsible for having already
// checked Type.Mutable -- an attempt to set an immutable global is a
// validation-time error (spec §4.1), not a runtime one.
func (g *Global) Set(v VMVal) { g.value = v }

// Ptr returns the address of this global's 16-byte value cell, the
// def-ptr an imported global's VMContext slot records (spec §3 VMContext
// "imported globals").
func (g *Global) Ptr() uint64 { return uint64(uintptr(unsafe.Pointer(&g.value))) }
