package binary

import (
	"bytes"
	"io"
	"strings"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
)

// decodeCustomSection dispatches on the custom section's name (spec §4.1):
// the name, producers and target_features sections and any DWARF .debug_*
// section are parsed into structured metadata; unrecognised custom
// sections are ignored.
func (d *decoder) decodeCustomSection(br *byteReader, payload []byte) error {
	name, err := br.readName()
	if err != nil {
		return err
	}
	rest, _ := io.ReadAll(br.r)

	switch {
	case name == "name":
		d.m.NameSection = decodeNameSection(rest)
	case name == "producers":
		d.m.DebugInfo.Producers = decodeProducersSection(rest)
	case name == "target_features":
		d.m.DebugInfo.TargetFeatures = decodeTargetFeaturesSection(rest)
	case strings.HasPrefix(name, ".debug_"):
		if d.m.DebugInfo.DWARFSections == nil {
			d.m.DebugInfo.DWARFSections = make(map[string][]byte)
		}
		d.m.DebugInfo.DWARFSections[name] = append([]byte(nil), rest...)
	default:
		// Unrecognised: ignored. Nothing is logged and nothing about the
		// section is recorded in Module.DebugInfo.
	}
	return nil
}

func decodeNameSection(b []byte) *wasm.NameSection {
	ns := &wasm.NameSection{FunctionNames: map[wasm.FuncIndex]string{}, LocalNames: map[wasm.FuncIndex]map[wasm.LocalIndex]string{}}
	br := newByteReader(bytes.NewReader(b))
	for {
		subID, err := br.ReadByte()
		if err != nil {
			break
		}
		size, err := br.readVarU32()
		if err != nil {
			break
		}
		sub, err := br.readN(int(size))
		if err != nil {
			break
		}
		sbr := newByteReader(bytes.NewReader(sub))
		switch subID {
		case 0: // module name
			if n, err := sbr.readName(); err == nil {
				ns.ModuleName = n
			}
		case 1: // function names
			if count, err := sbr.readVarU32(); err == nil {
				for i := uint32(0); i < count; i++ {
					idx, err := sbr.readVarU32()
					if err != nil {
						break
					}
					n, err := sbr.readName()
					if err != nil {
						break
					}
					ns.FunctionNames[wasm.FuncIndex(idx)] = n
				}
			}
		case 2: // local names
			if count, err := sbr.readVarU32(); err == nil {
				for i := uint32(0); i < count; i++ {
					fidx, err := sbr.readVarU32()
					if err != nil {
						break
					}
					localCount, err := sbr.readVarU32()
					if err != nil {
						break
					}
					m := make(map[wasm.LocalIndex]string, localCount)
					for j := uint32(0); j < localCount; j++ {
						lidx, err := sbr.readVarU32()
						if err != nil {
							break
						}
						n, err := sbr.readName()
						if err != nil {
							break
						}
						m[wasm.LocalIndex(lidx)] = n
					}
					ns.LocalNames[wasm.FuncIndex(fidx)] = m
				}
			}
		}
	}
	return ns
}

func decodeProducersSection(b []byte) map[string]string {
	out := map[string]string{}
	br := newByteReader(bytes.NewReader(b))
	fieldCount, err := br.readVarU32()
	if err != nil {
		return out
	}
	for i := uint32(0); i < fieldCount; i++ {
		field, err := br.readName()
		if err != nil {
			return out
		}
		valueCount, err := br.readVarU32()
		if err != nil {
			return out
		}
		var parts []string
		for j := uint32(0); j < valueCount; j++ {
			name, err := br.readName()
			if err != nil {
				return out
			}
			version, err := br.readName()
			if err != nil {
				return out
			}
			parts = append(parts, name+" "+version)
		}
		out[field] = strings.Join(parts, ", ")
	}
	return out
}

func decodeTargetFeaturesSection(b []byte) []string {
	var out []string
	br := newByteReader(bytes.NewReader(b))
	count, err := br.readVarU32()
	if err != nil {
		return out
	}
	for i := uint32(0); i < count; i++ {
		if _, err := br.ReadByte(); err != nil { // prefix: +, -, or =
			return out
		}
		n, err := br.readName()
		if err != nil {
			return out
		}
		out = append(out, n)
	}
	return out
}
