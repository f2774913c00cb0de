package baseline

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
)

// encodeBody serializes a compiledBody into the bytes a CompiledFunc.Text
// carries (spec §3 ".text" section: "executable code, in whatever format
// the Compiler capability emits" -- this backend's format is its own IR,
// not machine code). The layout is a small fixed header followed by one
// 17-byte record per instruction, chosen for the same reason
// internal/compiler/object.go's side tables are flat arrays rather than a
// self-describing format: exec.go is the only reader and knows the shape.
func encodeBody(b *compiledBody) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint32(b.numParams))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(b.numResults))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(b.numLocals))
	for _, t := range b.localTypes {
		buf.WriteByte(byte(t))
	}
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(b.ir)))
	for _, in := range b.ir {
		buf.WriteByte(byte(in.Op))
		_ = binary.Write(&buf, binary.LittleEndian, uint64(in.A))
		_ = binary.Write(&buf, binary.LittleEndian, uint64(in.B))
	}
	return buf.Bytes()
}

// decodeText reverses encodeBody, reconstructing just enough of a
// compiledBody for exec.go to run: the IR stream, local layout and
// arities. trapSites/addrMap stay in the side-table sections
// (internal/compiler's TrapSites/AddressMap), not in Text, so they are
// not reconstructed here.
func decodeText(text []byte) (*compiledBody, error) {
	r := bytes.NewReader(text)
	var numParams, numResults, numLocals uint32
	if err := binary.Read(r, binary.LittleEndian, &numParams); err != nil {
		return nil, fmt.Errorf("baseline: truncated text header: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &numResults); err != nil {
		return nil, fmt.Errorf("baseline: truncated text header: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &numLocals); err != nil {
		return nil, fmt.Errorf("baseline: truncated text header: %w", err)
	}
	localTypes := make([]wasm.ValueType, numLocals)
	for i := range localTypes {
		bt, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("baseline: truncated local types: %w", err)
		}
		localTypes[i] = wasm.ValueType(bt)
	}
	var numInstrs uint32
	if err := binary.Read(r, binary.LittleEndian, &numInstrs); err != nil {
		return nil, fmt.Errorf("baseline: truncated text header: %w", err)
	}
	ir := make([]instr, numInstrs)
	for i := range ir {
		opByte, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("baseline: truncated instruction %d: %w", i, err)
		}
		var a, b uint64
		if err := binary.Read(r, binary.LittleEndian, &a); err != nil {
			return nil, fmt.Errorf("baseline: truncated instruction %d operand A: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &b); err != nil {
			return nil, fmt.Errorf("baseline: truncated instruction %d operand B: %w", i, err)
		}
		ir[i] = instr{Op: op(opByte), A: int64(a), B: int64(b)}
	}
	return &compiledBody{
		ir:         ir,
		numParams:  int(numParams),
		numLocals:  int(numLocals),
		numResults: int(numResults),
		localTypes: localTypes,
		frameSize:  numLocals,
	}, nil
}

// placeholderHostTrampoline is the Text body compiled for host-to-wasm,
// wasm-to-array and wasm-to-builtin trampolines: this backend's call
// dispatch (internal/compiler/baseline/exec.go Invoke) re-enters Wasm or
// builtin calls directly by function/builtin index, the way a real
// trampoline's native thunk would, so these trampolines carry no
// executable IR of their own. They still occupy real bytes in the
// linked image and its side tables, satisfying the linking algorithm
// (spec §4.2) that calls for one per escaping signature and one per
// builtin.
func placeholderHostTrampoline() []byte {
	return encodeBody(&compiledBody{})
}
