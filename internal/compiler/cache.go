package compiler

import (
	"bytes"
	"fmt"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/platform"
)

// LoadCached reconstructs a CompiledCodeImage straight from a previously
// serialized Object (internal/filecache's on-disk cache entry, spec §4.2
// "a compilation cache keyed by content hash of the Wasm binary"),
// skipping translation and compilation entirely. data must be exactly
// what a prior Object.Serialize() produced.
func LoadCached(data []byte) (*CompiledCodeImage, error) {
	obj, err := ParseObject(data)
	if err != nil {
		return nil, fmt.Errorf("compiler: load cached image: %w", err)
	}
	starts, ends, err := DecodeSideTable(obj.Section(SectionFuncRanges))
	if err != nil {
		return nil, fmt.Errorf("compiler: decode %s: %w", SectionFuncRanges, err)
	}
	funcRanges := make([]FuncRange, len(starts))
	for i := range starts {
		funcRanges[i] = FuncRange{Start: starts[i], End: ends[i]}
	}

	region, err := platform.MmapCodeSegment(bytes.NewReader(data), len(data))
	if err != nil {
		return nil, fmt.Errorf("compiler: map cached code segment: %w", err)
	}
	code := platform.NewCodeMemory(region)
	if err := code.Publish(len(data)); err != nil {
		return nil, err
	}
	return loadImage(obj, code, funcRanges)
}
