package compiler

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ELFOSABI is the OS-ABI byte spec §6 reserves for this engine's
// intermediate code object ("Intermediate code object is ELF with OS-ABI
// byte 223"), distinguishing it from any host-platform ELF a generic
// loader might otherwise try to run directly.
const ELFOSABI = 223

// Section names spec §6 assigns fixed meaning to.
const (
	SectionText          = ".text"
	SectionRodataWasm    = ".rodata.wasm"
	SectionNameWasm      = ".name.wasm"
	SectionDWARF         = ".k23.dwarf"
	SectionTrapHandling  = ".k23.trap_handling"
	SectionAddressMap    = ".k23.address_map"
	SectionInfo          = ".k23.info"
	// SectionFuncRanges is not named by spec §6 -- it exists purely so
	// internal/filecache can reconstruct a CompiledCodeImage's
	// FuncRanges from a serialized Object without re-running Link.
	SectionFuncRanges = ".k23.func_ranges"
)

// elfMagic plus the OS-ABI byte is all this container borrows from the
// real ELF header; everything after it is this engine's own simplified
// section-table format, since no real loader ever maps this object --
// it is written by Link and read back by ParseObject (via LoadCached),
// never by the OS.
var elfMagic = [4]byte{0x7f, 'E', 'L', 'F'}

// Object is the relocatable object spec §4.2 builds up one section at a
// time: create empty, append a text section via the code generator,
// append side tables, append read-only data, then serialize.
type Object struct {
	sections []objSection
	byName   map[string]int
}

type objSection struct {
	name string
	data []byte
}

// NewObject returns an empty relocatable object targeting the host
// (spec §4.2 "create an empty relocatable object targeting the host").
func NewObject() *Object {
	return &Object{byName: make(map[string]int)}
}

// AppendSection appends data as a new section named name, or appends to
// an existing section of the same name, returning the byte offset within
// that section at which data now starts.
func (o *Object) AppendSection(name string, data []byte) uint32 {
	if i, ok := o.byName[name]; ok {
		off := uint32(len(o.sections[i].data))
		o.sections[i].data = append(o.sections[i].data, data...)
		return off
	}
	o.byName[name] = len(o.sections)
	o.sections = append(o.sections, objSection{name: name, data: append([]byte(nil), data...)})
	return 0
}

// Section returns a section's current bytes, or nil if it does not
// exist yet.
func (o *Object) Section(name string) []byte {
	if i, ok := o.byName[name]; ok {
		return o.sections[i].data
	}
	return nil
}

// Serialize writes out the magic + OS-ABI byte, then a section table
// (name length, name, data length) followed by each section's raw
// bytes, matching spec §3's description of the image as "an ELF-like
// container: standard sections plus several k23-specific side-table
// sections."
func (o *Object) Serialize() []byte {
	var buf bytes.Buffer
	buf.Write(elfMagic[:])
	buf.WriteByte(ELFOSABI)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(o.sections)))
	for _, s := range o.sections {
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(s.name)))
		buf.WriteString(s.name)
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(s.data)))
	}
	for _, s := range o.sections {
		buf.Write(s.data)
	}
	return buf.Bytes()
}

// ParseObject reverses Serialize, used when loading a CompiledCodeImage
// back out of the on-disk file cache (SPEC_FULL §11).
func ParseObject(data []byte) (*Object, error) {
	if len(data) < 5 || !bytes.Equal(data[:4], elfMagic[:]) {
		return nil, fmt.Errorf("compiler: not a k23 object (bad magic)")
	}
	if data[4] != ELFOSABI {
		return nil, fmt.Errorf("compiler: unexpected OS-ABI byte %d, want %d", data[4], ELFOSABI)
	}
	r := bytes.NewReader(data[5:])
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("compiler: truncated object header: %w", err)
	}
	type hdr struct {
		name string
		size uint32
	}
	hdrs := make([]hdr, count)
	for i := range hdrs {
		var nameLen uint32
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, fmt.Errorf("compiler: truncated section header: %w", err)
		}
		nameBuf := make([]byte, nameLen)
		if _, err := r.Read(nameBuf); err != nil {
			return nil, fmt.Errorf("compiler: truncated section name: %w", err)
		}
		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, fmt.Errorf("compiler: truncated section size: %w", err)
		}
		hdrs[i] = hdr{name: string(nameBuf), size: size}
	}
	o := NewObject()
	for _, h := range hdrs {
		buf := make([]byte, h.size)
		if _, err := r.Read(buf); err != nil {
			return nil, fmt.Errorf("compiler: truncated section %q: %w", h.name, err)
		}
		o.AppendSection(h.name, buf)
	}
	return o, nil
}

// EncodeSideTable serialises a parallel pair of little-endian uint32
// arrays as a count-prefixed side table (spec §6 "each side-table
// section begins with a little-endian u32 count followed by two
// parallel little-endian arrays").
func EncodeSideTable(keys, values []uint32) []byte {
	if len(keys) != len(values) {
		panic("BUG: compiler: side table key/value length mismatch")
	}
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(keys)))
	for _, k := range keys {
		_ = binary.Write(&buf, binary.LittleEndian, k)
	}
	for _, v := range values {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

// DecodeSideTable reverses EncodeSideTable.
func DecodeSideTable(data []byte) (keys, values []uint32, err error) {
	r := bytes.NewReader(data)
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, nil, fmt.Errorf("compiler: truncated side table count: %w", err)
	}
	keys = make([]uint32, count)
	values = make([]uint32, count)
	if err := binary.Read(r, binary.LittleEndian, &keys); err != nil {
		return nil, nil, fmt.Errorf("compiler: truncated side table keys: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &values); err != nil {
		return nil, nil, fmt.Errorf("compiler: truncated side table values: %w", err)
	}
	return keys, values, nil
}
