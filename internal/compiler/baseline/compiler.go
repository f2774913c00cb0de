package baseline

import (
	"github.com/JonasKruckenberg/k23VM-sub000/internal/compiler"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/vm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm/binary"
)

// Compiler implements compiler.Compiler, the pluggable code generator
// capability (spec §6), as a bytecode-interpreter backend: "compiling" a
// function means decoding it into baseline's own linear IR (decode.go)
// and serializing that IR as Text (encode.go); running it means exec.go
// interpreting the IR directly against a live vm.Instance. See the
// package doc in opcodes.go and DESIGN.md for why.
type Compiler struct{}

// New returns the baseline Compiler. There is no state to configure: the
// backend has no target triple, no optimization levels, nothing a real
// native code generator would need.
func New() *Compiler { return &Compiler{} }

var _ compiler.Compiler = (*Compiler)(nil)

// CompileFunction decodes one function body into IR and serializes it.
// Trap sites and the address map travel as CompiledFunc metadata rather
// than inside Text, matching how a native backend would keep them out of
// the instruction stream too.
func (c *Compiler) CompileFunction(m *wasm.Module, in binary.CompileInput) (*compiler.CompiledFunc, error) {
	body, err := decodeFunction(m, in)
	if err != nil {
		return nil, err
	}
	return bodyToCompiledFunc(body), nil
}

// CompileHostToWasmTrampoline builds the stub a host import satisfier
// calls through to enter a Wasm function of the given signature. This
// backend's call path (exec.go's Invoke) dispatches to a defined
// function directly by FuncIndex, so the trampoline it links in carries
// no IR of its own -- see encode.go's placeholderHostTrampoline doc.
func (c *Compiler) CompileHostToWasmTrampoline(m *wasm.Module, sig wasm.InternedTypeIndex) (*compiler.CompiledFunc, error) {
	return &compiler.CompiledFunc{Text: placeholderHostTrampoline()}, nil
}

// CompileWasmToArrayTrampoline builds the stub compiled code would use
// to call a host function registered with the array-call ABI directly.
// Same rationale as CompileHostToWasmTrampoline: exec.go's opCall already
// speaks the array-call ABI (vm.VMVal slices) natively, with no adapter
// needed between "compiled Wasm" and "host code" representations.
func (c *Compiler) CompileWasmToArrayTrampoline(m *wasm.Module, sig wasm.InternedTypeIndex) (*compiler.CompiledFunc, error) {
	return &compiler.CompiledFunc{Text: placeholderHostTrampoline()}, nil
}

// CompileWasmToBuiltinTrampoline builds the stub compiled code uses to
// invoke one VMContext builtin_functions entry. exec.go's opCallBuiltin
// already calls inst.CallBuiltin(id, args) directly, so this too is a
// structural placeholder (spec §4.2 still requires one per builtin be
// linked into the image).
func (c *Compiler) CompileWasmToBuiltinTrampoline(b vm.BuiltinID) (*compiler.CompiledFunc, error) {
	return &compiler.CompiledFunc{Text: placeholderHostTrampoline()}, nil
}

// NewObject returns an empty relocatable object targeting the host.
func (c *Compiler) NewObject() *compiler.Object { return compiler.NewObject() }

// BuildText appends every CompiledFunc's Text into obj's .text section in
// order, returning each function's byte offset within that section.
func (c *Compiler) BuildText(obj *compiler.Object, funcs []*compiler.CompiledFunc) []uint32 {
	offsets := make([]uint32, len(funcs))
	for i, f := range funcs {
		offsets[i] = obj.AppendSection(compiler.SectionText, f.Text)
	}
	return offsets
}

// bodyToCompiledFunc serializes body and carries over its trap sites and
// address map, translating IR-index-relative positions the decoder
// tracked (trapSiteIR.irIndex, addrMapIR.irIndex) into the byte offsets
// within Text those IR indices land at once encoded (each instruction is
// a fixed 17 bytes after the header, see encode.go).
func bodyToCompiledFunc(body *compiledBody) *compiler.CompiledFunc {
	text := encodeBody(body)
	header := len(text) - len(body.ir)*instrSize
	traps := make([]compiler.TrapSite, len(body.trapSites))
	for i, t := range body.trapSites {
		traps[i] = compiler.TrapSite{CodeOffset: uint32(header + t.irIndex*instrSize), Kind: t.kind}
	}
	addrs := make([]compiler.AddressMapEntry, len(body.addrMap))
	for i, a := range body.addrMap {
		addrs[i] = compiler.AddressMapEntry{CodeOffset: uint32(header + a.irIndex*instrSize), SourceOffset: a.sourceOffset}
	}
	return &compiler.CompiledFunc{
		Text:       text,
		TrapSites:  traps,
		AddressMap: addrs,
		FrameSize:  body.frameSize,
	}
}

// instrSize is the fixed per-instruction record size encodeBody/decodeText
// use: 1 op byte + 8-byte A + 8-byte B.
const instrSize = 1 + 8 + 8
