package compiler

import (
	"fmt"
	"sort"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/platform"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasmerr"
)

// FuncRange records where one function's text lives within a
// CompiledCodeImage's published code memory, used both to resolve
// call-site relocations and to classify a faulting pc during a
// backtrace walk (spec §4.2, §4.8).
type FuncRange struct {
	Start uint32
	End   uint32
}

// CompiledCodeImage is the linked, published artifact spec §3 describes:
// executable code memory plus the trap-kind and source-offset side
// tables needed to symbolicate a trap without re-decoding Wasm.
type CompiledCodeImage struct {
	Code *platform.CodeMemory

	FuncRanges []FuncRange

	// text is the object's .text section bytes as built by BuildText,
	// kept alongside the published CodeMemory so a bytecode-interpreter
	// Compiler (internal/compiler/baseline) can slice a function's body
	// back out by FuncRange without re-parsing the published image.
	text []byte

	trapOffsets []uint32
	trapKinds   []uint32

	addrOffsets []uint32
	addrSource  []uint32
}

// TextBytes returns the object's raw .text section, the bytes a
// FuncRange indexes into.
func (img *CompiledCodeImage) TextBytes() []byte { return img.text }

// TrapKindAt returns the TrapKind registered for codeOffset, the
// ".k23.trap_handling" side table lookup spec §4.8's fault classifier
// performs by binary search (spec §6 "each side-table section ... two
// parallel little-endian arrays", sorted by code offset).
func (img *CompiledCodeImage) TrapKindAt(codeOffset uint32) (wasmerr.TrapKind, bool) {
	i := sort.Search(len(img.trapOffsets), func(i int) bool { return img.trapOffsets[i] >= codeOffset })
	if i < len(img.trapOffsets) && img.trapOffsets[i] == codeOffset {
		return wasmerr.TrapKind(img.trapKinds[i]), true
	}
	return 0, false
}

// SourceOffsetAt returns the original Wasm module byte offset a code
// offset was generated from, the ".k23.address_map" lookup spec §4.9
// uses to report a trap's source location.
func (img *CompiledCodeImage) SourceOffsetAt(codeOffset uint32) (uint32, bool) {
	i := sort.Search(len(img.addrOffsets), func(i int) bool { return img.addrOffsets[i] >= codeOffset })
	if i < len(img.addrOffsets) && img.addrOffsets[i] == codeOffset {
		return img.addrSource[i], true
	}
	if i > 0 {
		return img.addrSource[i-1], true
	}
	return 0, false
}

// FuncIndexAt returns the index (within FuncRanges, in compile order)
// of the function whose text range contains codeOffset, or false when
// no range contains it.
func (img *CompiledCodeImage) FuncIndexAt(codeOffset uint32) (int, bool) {
	i := sort.Search(len(img.FuncRanges), func(i int) bool { return img.FuncRanges[i].End > codeOffset })
	if i < len(img.FuncRanges) && img.FuncRanges[i].Start <= codeOffset {
		return i, true
	}
	return 0, false
}

// Close releases the image's executable code memory.
func (img *CompiledCodeImage) Close() error {
	if img.Code == nil {
		return nil
	}
	return platform.MunmapCodeSegment(img.Code.Bytes())
}

// buildSideTables sorts and flattens each CompiledFunc's TrapSites and
// AddressMap (already code-offset-relative to its own Text start) into
// the two process-wide, globally-sorted side tables an image publishes.
func buildSideTables(funcs []*CompiledFunc, textOffsets []uint32) (trapOff, trapKind, addrOff, addrSrc []uint32) {
	type trapEntry struct{ off, kind uint32 }
	type addrEntry struct{ off, src uint32 }
	var traps []trapEntry
	var addrs []addrEntry
	for i, f := range funcs {
		base := textOffsets[i]
		for _, t := range f.TrapSites {
			traps = append(traps, trapEntry{off: base + t.CodeOffset, kind: uint32(t.Kind)})
		}
		for _, a := range f.AddressMap {
			addrs = append(addrs, addrEntry{off: base + a.CodeOffset, src: a.SourceOffset})
		}
	}
	sort.Slice(traps, func(i, j int) bool { return traps[i].off < traps[j].off })
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].off < addrs[j].off })
	for _, t := range traps {
		trapOff = append(trapOff, t.off)
		trapKind = append(trapKind, t.kind)
	}
	for _, a := range addrs {
		addrOff = append(addrOff, a.off)
		addrSrc = append(addrSrc, a.src)
	}
	return
}

// loadImage reconstructs a CompiledCodeImage from a parsed Object whose
// .text section has already been published as executable code memory
// (spec §4.2 steps 1-5, see driver.go).
func loadImage(obj *Object, code *platform.CodeMemory, funcRanges []FuncRange) (*CompiledCodeImage, error) {
	trapOff, trapKind, err := decodeU32Pair(obj.Section(SectionTrapHandling))
	if err != nil {
		return nil, fmt.Errorf("compiler: decode %s: %w", SectionTrapHandling, err)
	}
	addrOff, addrSrc, err := decodeU32Pair(obj.Section(SectionAddressMap))
	if err != nil {
		return nil, fmt.Errorf("compiler: decode %s: %w", SectionAddressMap, err)
	}
	return &CompiledCodeImage{
		Code:        code,
		FuncRanges:  funcRanges,
		text:        obj.Section(SectionText),
		trapOffsets: trapOff,
		trapKinds:   trapKind,
		addrOffsets: addrOff,
		addrSource:  addrSrc,
	}, nil
}

func decodeU32Pair(data []byte) ([]uint32, []uint32, error) {
	if len(data) == 0 {
		return nil, nil, nil
	}
	return DecodeSideTable(data)
}
