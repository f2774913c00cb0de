// Package compiler defines the opaque code-generation capability the
// engine plugs in (spec §6 "Compiler capability"): compile one function
// body, compile a host-to-wasm trampoline, compile a wasm-to-array
// trampoline, compile a wasm-to-builtin trampoline, build a text section,
// create an empty relocatable object targeting the host. The concrete
// implementation shipped here is internal/compiler/baseline, a
// bytecode-interpreter backend; see DESIGN.md for why this engine does not
// emit native machine code.
package compiler

import (
	"github.com/JonasKruckenberg/k23VM-sub000/internal/vm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm/binary"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasmerr"
)

// TrapSite records that executing the byte at CodeOffset (relative to a
// CompiledFunc's Text start) can raise Kind, letting the trap side-table
// (spec §3 ".k23.trap_handling") classify a fault without re-decoding
// instructions during unwind.
type TrapSite struct {
	CodeOffset uint32
	Kind       wasmerr.TrapKind
}

// AddressMapEntry maps a code offset back to a Wasm-module byte offset,
// the ".k23.address_map" side table spec §3/§4.9 uses to report a
// trapping instruction's original source position.
type AddressMapEntry struct {
	CodeOffset   uint32
	SourceOffset uint32
}

// Reloc is a single fixup CompiledFunc.Text still needs once it is placed
// at its final address inside a CompiledCodeImage -- e.g. a call to
// another function compiled in the same batch, or to a builtin table
// slot. The baseline backend never needs position-independent code (it
// indexes directly into Go slices/tables) so Target is resolved as a
// plain index, not a machine-code-level relocation record.
type Reloc struct {
	CodeOffset uint32
	Kind       RelocKind
	Target     uint32
}

type RelocKind uint8

const (
	RelocCallDefinedFunc RelocKind = iota
	RelocCallImportedFunc
	RelocCallBuiltin
)

// CompiledFunc is one code generator output: the function's text, any
// fixups it still needs, its trap sites, and its address map. FrameSize
// is the number of VMVal-sized shadow-stack slots the function's locals
// and value stack need (spec §4.8 backtrace walking uses this to step
// from one CallThreadState frame to the next).
type CompiledFunc struct {
	Text       []byte
	Relocs     []Reloc
	TrapSites  []TrapSite
	AddressMap []AddressMapEntry
	FrameSize  uint32
}

// Compiler is the pluggable code generator capability (spec §6). A
// concrete implementation is free to target native machine code; the
// interface itself is agnostic to that choice.
type Compiler interface {
	// CompileFunction translates one already-decoded function body into
	// a CompiledFunc (spec §4.2 step "compile one function body").
	CompileFunction(m *wasm.Module, in binary.CompileInput) (*CompiledFunc, error)

	// CompileHostToWasmTrampoline builds the stub a host function import
	// satisfier calls through to enter a Wasm function of the given
	// interned type (spec §4.7 "host-to-wasm trampoline").
	CompileHostToWasmTrampoline(m *wasm.Module, sig wasm.InternedTypeIndex) (*CompiledFunc, error)

	// CompileWasmToArrayTrampoline builds the stub compiled code uses to
	// call into a host function that was registered with the
	// array-call ABI directly (spec §4.7 "wasm-to-array trampoline").
	CompileWasmToArrayTrampoline(m *wasm.Module, sig wasm.InternedTypeIndex) (*CompiledFunc, error)

	// CompileWasmToBuiltinTrampoline builds the stub compiled code uses
	// to invoke one VMContext builtin_functions entry (spec §4.2
	// "wasm-to-builtin trampoline").
	CompileWasmToBuiltinTrampoline(b vm.BuiltinID) (*CompiledFunc, error)

	// NewObject creates an empty relocatable object targeting the host
	// (spec §4.2 "create an empty relocatable object targeting the
	// host"), ready to receive a text section via BuildText.
	NewObject() *Object

	// BuildText appends every CompiledFunc's Text into obj's .text
	// section in the supplied order, returning each function's resulting
	// byte offset within that section.
	BuildText(obj *Object, funcs []*CompiledFunc) []uint32
}
