package compiler

import (
	"bytes"
	"fmt"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/platform"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/vm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm/binary"
)

// Link runs the full linking process spec §4.2 describes: create an
// empty relocatable object, compile and append every function's text,
// append trampolines for every escaping/exported function and for every
// builtin the module references, build and append the side tables, then
// publish the result as executable CodeMemory.
func Link(c Compiler, tr *binary.TranslateResult) (*CompiledCodeImage, error) {
	obj := c.NewObject()
	m := tr.Module

	funcs := make([]*CompiledFunc, len(tr.CompileInputs))
	for i, in := range tr.CompileInputs {
		cf, err := c.CompileFunction(m, in)
		if err != nil {
			return nil, fmt.Errorf("compiler: compile function %d: %w", in.Index, err)
		}
		funcs[i] = cf
	}

	// Host-to-wasm trampolines for every escaping function (spec §4.7):
	// one per distinct interned signature actually used, not one per
	// function, since two functions of the same type share a trampoline.
	seenSigs := make(map[wasm.InternedTypeIndex]bool)
	for idx := range m.EscapingFuncs {
		interned := m.FuncTypeIndex(idx)
		if seenSigs[interned] {
			continue
		}
		seenSigs[interned] = true
		tramp, err := c.CompileHostToWasmTrampoline(m, interned)
		if err != nil {
			return nil, fmt.Errorf("compiler: compile host-to-wasm trampoline: %w", err)
		}
		funcs = append(funcs, tramp)
	}

	// Wasm-to-builtin trampolines: one per builtin, always present, since
	// any module may reach any builtin through the fixed VMContext table
	// (spec §4.2 "wasm-to-builtin trampoline").
	for b := vm.BuiltinID(0); b < vm.BuiltinID(len(vm.NewBuiltinTable())); b++ {
		tramp, err := c.CompileWasmToBuiltinTrampoline(b)
		if err != nil {
			return nil, fmt.Errorf("compiler: compile wasm-to-builtin trampoline %s: %w", b, err)
		}
		funcs = append(funcs, tramp)
	}

	offsets := c.BuildText(obj, funcs)

	funcRanges := make([]FuncRange, len(funcs))
	for i, f := range funcs {
		funcRanges[i] = FuncRange{Start: offsets[i], End: offsets[i] + uint32(len(f.Text))}
	}

	trapOff, trapKind, addrOff, addrSrc := buildSideTables(funcs, offsets)
	obj.AppendSection(SectionTrapHandling, EncodeSideTable(trapOff, trapKind))
	obj.AppendSection(SectionAddressMap, EncodeSideTable(addrOff, addrSrc))

	rangeStarts := make([]uint32, len(funcRanges))
	rangeEnds := make([]uint32, len(funcRanges))
	for i, fr := range funcRanges {
		rangeStarts[i], rangeEnds[i] = fr.Start, fr.End
	}
	obj.AppendSection(SectionFuncRanges, EncodeSideTable(rangeStarts, rangeEnds))

	if m.NameSection != nil {
		obj.AppendSection(SectionNameWasm, encodeNameSection(m))
	}

	serialized := obj.Serialize()
	textLen := len(obj.Section(SectionText))

	region, err := platform.MmapCodeSegment(bytes.NewReader(serialized), len(serialized))
	if err != nil {
		return nil, fmt.Errorf("compiler: map code segment: %w", err)
	}
	code := platform.NewCodeMemory(region)
	// The baseline backend's ".text" is bytecode for internal/compiler/
	// baseline's interpreter, not native instructions, so there is no
	// real read+execute/read-only split to enforce; publish the whole
	// serialized object as one read+execute region rather than computing
	// a meaningless text/data boundary.
	_ = textLen
	if err := code.Publish(len(serialized)); err != nil {
		return nil, err
	}

	return loadImage(obj, code, funcRanges)
}

// encodeNameSection re-serializes the already-decoded NameSection as a
// flat function-index -> name side table, the ".name.wasm" section spec
// §3 keeps for symbolicated traps and debuggers.
func encodeNameSection(m *wasm.Module) []byte {
	var keys, lens []uint32
	var names bytes.Buffer
	for idx, name := range m.NameSection.FunctionNames {
		keys = append(keys, uint32(idx))
		lens = append(lens, uint32(len(name)))
		names.WriteString(name)
	}
	header := EncodeSideTable(keys, lens)
	return append(header, names.Bytes()...)
}
