// Package binary implements the single-pass Wasm binary format translator
// (spec §4.1): it turns a byte stream into an *wasm.Module plus the
// per-function compile inputs consumed by internal/compiler. Modeled on
// the teacher's internal/wasm/binary package: one file per section kind,
// a shared byteReader helper, and decode tests.
package binary

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/leb128"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasmerr"
)

const (
	magic   = 0x6d736100 // "\0asm"
	version = uint32(1)
)

// SectionID identifies one of the standard sections (including data count
// and tag) or the custom section.
type SectionID byte

const (
	SectionIDCustom SectionID = iota
	SectionIDType
	SectionIDImport
	SectionIDFunction
	SectionIDTable
	SectionIDMemory
	SectionIDGlobal
	SectionIDExport
	SectionIDStart
	SectionIDElement
	SectionIDCode
	SectionIDData
	SectionIDDataCount
	SectionIDTag
)

// CompileInput is the per-function payload the translator hands to the
// compiler driver: the raw, not-yet-decoded body bytes plus the function's
// already-resolved signature (spec §4.1 "Code: function bodies are
// buffered with their per-function validator token; they are not
// translated here").
type CompileInput struct {
	Index wasm.FuncIndex
	Type  *wasm.FunctionType
	// LocalTypes is the declared-local type list decoded from the body's
	// header (before the expression bytes).
	LocalTypes []wasm.ValueType
	// Body is the raw expression bytes (after the locals header, up to
	// and including the terminating 0x0b).
	Body []byte
	// BodyOffset is the byte offset of Body within the original input,
	// used to translate trap/address-map offsets back to source
	// locations (spec §4.8).
	BodyOffset int
	// ValidatorToken stands in for the opaque validator capability's
	// per-function result (spec §1 "the Wasm binary validator (treated
	// as an opaque capability)"). nil means "not validated", which this
	// engine's default Validator never produces.
	ValidatorToken interface{}
}

// TranslateResult bundles everything the translator produces from one
// binary: the Module plus one CompileInput per defined function.
type TranslateResult struct {
	Module        *wasm.Module
	CompileInputs []CompileInput
}

// byteReader wraps a bufio.Reader to additionally track how many bytes
// have been consumed, so diagnostics can report an absolute byte offset
// (spec §4.9 "Invalid WebAssembly (message, byte offset)").
type byteReader struct {
	r   *bufio.Reader
	pos int
}

func newByteReader(r io.Reader) *byteReader {
	return &byteReader{r: bufio.NewReader(r)}
}

func (b *byteReader) ReadByte() (byte, error) {
	c, err := b.r.ReadByte()
	if err == nil {
		b.pos++
	}
	return c, err
}

func (b *byteReader) readN(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(b.r, buf); err != nil {
		return nil, err
	}
	b.pos += n
	return buf, nil
}

func (b *byteReader) readVarU32() (uint32, error) {
	v, n, err := leb128.DecodeUint32(b)
	if err != nil {
		return 0, wasmerr.InvalidWasm(b.pos, "malformed varuint32: %v", err)
	}
	_ = n
	return v, nil
}

func (b *byteReader) readVarU64() (uint64, error) {
	v, _, err := leb128.DecodeUint64(b)
	if err != nil {
		return 0, wasmerr.InvalidWasm(b.pos, "malformed varuint64: %v", err)
	}
	return v, nil
}

func (b *byteReader) readVarI32() (int32, error) {
	v, _, err := leb128.DecodeInt32(b)
	if err != nil {
		return 0, wasmerr.InvalidWasm(b.pos, "malformed varint32: %v", err)
	}
	return v, nil
}

func (b *byteReader) readVarI64() (int64, error) {
	v, _, err := leb128.DecodeInt64(b)
	if err != nil {
		return 0, wasmerr.InvalidWasm(b.pos, "malformed varint64: %v", err)
	}
	return v, nil
}

func (b *byteReader) readName() (string, error) {
	n, err := b.readVarU32()
	if err != nil {
		return "", err
	}
	buf, err := b.readN(int(n))
	if err != nil {
		return "", wasmerr.InvalidWasm(b.pos, "malformed name: %v", err)
	}
	return string(buf), nil
}

func (b *byteReader) readValueType() (wasm.ValueType, error) {
	c, err := b.ReadByte()
	if err != nil {
		return 0, wasmerr.InvalidWasm(b.pos, "malformed value type: %v", err)
	}
	switch wasm.ValueType(c) {
	case wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64,
		wasm.ValueTypeV128, wasm.ValueTypeFuncref, wasm.ValueTypeExternref:
		return wasm.ValueType(c), nil
	default:
		return 0, wasmerr.InvalidWasm(b.pos-1, "invalid value type 0x%x", c)
	}
}

func (b *byteReader) readLimits() (wasm.Limits, error) {
	flags, err := b.ReadByte()
	if err != nil {
		return wasm.Limits{}, wasmerr.InvalidWasm(b.pos, "malformed limits flags: %v", err)
	}
	min, err := b.readVarU64()
	if err != nil {
		return wasm.Limits{}, err
	}
	l := wasm.Limits{Min: min, Shared: flags&0x2 != 0}
	if flags&0x1 != 0 {
		max, err := b.readVarU64()
		if err != nil {
			return wasm.Limits{}, err
		}
		l.Max, l.HasMax = max, true
	}
	return l, nil
}

// Decode parses a complete Wasm binary, producing a translated module and
// its per-function compile inputs (spec §4.1). features is checked only
// for the GC array and struct type forms, which fail with a
// KindUnsupported error when not enabled; no other proposal is gated here.
func Decode(r io.Reader, features wasm.CoreFeatures) (*TranslateResult, error) {
	br := newByteReader(r)

	hdr, err := br.readN(8)
	if err != nil {
		return nil, wasmerr.InvalidWasm(0, "failed to read module header: %v", err)
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != magic {
		return nil, wasmerr.InvalidWasm(0, "invalid magic number")
	}
	if binary.LittleEndian.Uint32(hdr[4:8]) != version {
		return nil, wasmerr.InvalidWasm(4, "unsupported binary version")
	}

	d := &decoder{
		br:       br,
		m:        &wasm.Module{Types: wasm.NewTypeInterner(), Exports: map[string]wasm.Export{}},
		features: features,
	}
	var lastSection SectionID = SectionIDCustom
	sawNonCustom := false

	for {
		idByte, err := br.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wasmerr.InvalidWasm(br.pos, "failed to read section id: %v", err)
		}
		id := SectionID(idByte)
		size, err := br.readVarU32()
		if err != nil {
			return nil, err
		}
		payload, err := br.readN(int(size))
		if err != nil {
			return nil, wasmerr.InvalidWasm(br.pos, "truncated section %d: %v", id, err)
		}
		sectionStart := br.pos - int(size)

		if id != SectionIDCustom {
			if sawNonCustom && id <= lastSection {
				return nil, wasmerr.InvalidWasm(sectionStart, "section %d out of order", id)
			}
			lastSection = id
			sawNonCustom = true
		}

		sbr := newByteReader(bytes.NewReader(payload))
		sbr.pos = sectionStart

		if err := d.decodeSection(id, sbr, payload); err != nil {
			return nil, err
		}
	}

	if err := d.m.ValidateImportOrder(); err != nil {
		return nil, err
	}
	d.resolveEscaping()

	return &TranslateResult{Module: d.m, CompileInputs: d.compileInputs}, nil
}

type decoder struct {
	br             *byteReader
	m              *wasm.Module
	features       wasm.CoreFeatures
	compileInputs  []CompileInput
	dataCountSeen  bool
	declaredFuncs  map[wasm.FuncIndex]struct{} // element-declared func refs, marked escaping too
}

func (d *decoder) decodeSection(id SectionID, sbr *byteReader, payload []byte) error {
	switch id {
	case SectionIDCustom:
		return d.decodeCustomSection(sbr, payload)
	case SectionIDType:
		return d.decodeTypeSection(sbr)
	case SectionIDImport:
		return d.decodeImportSection(sbr)
	case SectionIDFunction:
		return d.decodeFunctionSection(sbr)
	case SectionIDTable:
		return d.decodeTableSection(sbr)
	case SectionIDMemory:
		return d.decodeMemorySection(sbr)
	case SectionIDGlobal:
		return d.decodeGlobalSection(sbr)
	case SectionIDExport:
		return d.decodeExportSection(sbr)
	case SectionIDStart:
		return d.decodeStartSection(sbr)
	case SectionIDElement:
		return d.decodeElementSection(sbr)
	case SectionIDDataCount:
		d.dataCountSeen = true
		_, err := sbr.readVarU32()
		return err
	case SectionIDCode:
		return d.decodeCodeSection(sbr)
	case SectionIDData:
		return d.decodeDataSection(sbr)
	case SectionIDTag:
		return wasmerr.Unsupported("exception-handling tag section")
	default:
		return wasmerr.InvalidWasm(sbr.pos, "unknown section id %d", id)
	}
}

// resolveEscaping finishes marking functions escaping now that exports,
// element segments, and global initialisers have all been seen (spec
// §4.1: "A function becomes escaping the first time any of the following
// holds...").
func (d *decoder) resolveEscaping() {
	for _, exp := range d.m.ExportSection {
		if exp.Kind == wasm.ExternKindFunc {
			d.m.MarkEscaping(wasm.FuncIndex(exp.Index))
		}
	}
	for _, g := range d.m.GlobalSection {
		for _, f := range g.Init.RefFuncs() {
			d.m.MarkEscaping(f)
		}
	}
	for _, e := range d.m.ElementSection {
		for _, f := range e.Funcs {
			d.m.MarkEscaping(f)
		}
		for _, expr := range e.Exprs {
			for _, f := range expr.RefFuncs() {
				d.m.MarkEscaping(f)
			}
		}
	}
	if d.m.StartFunc != nil {
		// The start function is invoked by the host, not guest code, but
		// it still needs a callable entry point the same way an export
		// does, so it is treated as escaping too.
		d.m.MarkEscaping(*d.m.StartFunc)
	}
}
