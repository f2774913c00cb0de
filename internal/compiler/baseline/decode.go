package baseline

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/leb128"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm/binary"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasmerr"
)

// compiledBody is the result of lowering one Wasm function body into
// baseline's linear IR: the resolved instruction stream plus the trap
// sites and address map a CompiledFunc publishes (spec §4.2, §4.8, §4.9).
type compiledBody struct {
	ir         []instr
	numParams  int
	numLocals  int // params + declared locals
	numResults int
	localTypes []wasm.ValueType // full params+locals, by local index
	trapSites  []trapSiteIR
	addrMap    []addrMapIR
	frameSize  uint32
}

type trapSiteIR struct {
	irIndex int
	kind    wasmerr.TrapKind
}

type addrMapIR struct {
	irIndex      int
	sourceOffset uint32
}

// label tracks one open block/loop/if during decoding, for branch target
// resolution and operand-stack-height bookkeeping (see frame.squash in
// exec.go for the squash-on-branch design).
type label struct {
	isLoop     bool
	numResults int
	stackBase  int // operand-stack height at label entry (below results)
	loopIdx    int // IR index of loop start, loop labels only
	patches    []int
	elsePatch  int // -1 unless this is an `if` awaiting its `else`/`end`
	hasElse    bool
}

// decodeFunction lowers one already-sliced function body (the bytes
// between the locals header and the implicit trailing `end`, exactly
// what binary.CompileInput.Body carries) into baseline's IR.
func decodeFunction(m *wasm.Module, in binary.CompileInput) (*compiledBody, error) {
	d := &decoder{
		m:    m,
		r:    bytes.NewReader(in.Body),
		body: &compiledBody{
			numParams:  len(in.Type.Params),
			localTypes: append(append([]wasm.ValueType(nil), in.Type.Params...), in.LocalTypes...),
			numResults: len(in.Type.Results),
		},
	}
	d.body.numLocals = len(d.body.localTypes)
	d.body.frameSize = uint32(d.body.numLocals)

	d.labels = append(d.labels, label{numResults: d.body.numResults, stackBase: 0})

	if err := d.decodeBody(); err != nil {
		return nil, wasmerr.CodeGen(fmt.Sprintf("function %d", in.Index), err)
	}
	return d.body, nil
}

type decoder struct {
	m      *wasm.Module
	r      *bytes.Reader
	body   *compiledBody
	labels []label
	height int // abstract operand-stack height
}

func (d *decoder) emit(op op, a, b int64) int {
	d.body.ir = append(d.body.ir, instr{Op: op, A: a, B: b})
	return len(d.body.ir) - 1
}

func (d *decoder) trap(kind wasmerr.TrapKind) {
	idx := d.emit(opTrap, int64(kind), 0)
	d.body.trapSites = append(d.body.trapSites, trapSiteIR{irIndex: idx, kind: kind})
}

func (d *decoder) offset() uint32 {
	total := int64(len(d.body.ir))
	_ = total
	pos, _ := d.r.Seek(0, io.SeekCurrent)
	return uint32(pos)
}

func (d *decoder) byteAt() (byte, error) { return d.r.ReadByte() }

func (d *decoder) u32() (uint32, error) {
	v, _, err := leb128.DecodeUint32(d.r)
	return v, err
}

func (d *decoder) i32() (int32, error) {
	v, _, err := leb128.DecodeInt32(d.r)
	return v, err
}

func (d *decoder) i64() (int64, error) {
	v, _, err := leb128.DecodeInt64(d.r)
	return v, err
}

func (d *decoder) f32() (float32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return 0, err
	}
	bits := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	return math.Float32frombits(bits), nil
}

func (d *decoder) f64() (float64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return 0, err
	}
	var bits uint64
	for i := 7; i >= 0; i-- {
		bits = bits<<8 | uint64(buf[i])
	}
	return math.Float64frombits(bits), nil
}

// memarg decodes (and discards, bar alignment hints) a load/store
// instruction's memarg: align, then offset.
func (d *decoder) memarg() (offset uint32, err error) {
	if _, err = d.u32(); err != nil { // align, unused by the interpreter
		return 0, err
	}
	return d.u32()
}

// blockArity decodes a blocktype immediate (spec binary format: 0x40
// empty, a ValueType byte, or an s33 type index) and returns its
// parameter and result counts. Only the counts are needed since the
// external validator capability (spec §1/§6) has already checked the
// full types line up.
func (d *decoder) blockArity() (numParams, numResults int, err error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	switch {
	case b == 0x40:
		return 0, 0, nil
	case b == byte(wasm.ValueTypeI32), b == byte(wasm.ValueTypeI64),
		b == byte(wasm.ValueTypeF32), b == byte(wasm.ValueTypeF64),
		b == byte(wasm.ValueTypeV128), b == byte(wasm.ValueTypeFuncref),
		b == byte(wasm.ValueTypeExternref):
		return 0, 1, nil
	default:
		if err := d.r.UnreadByte(); err != nil {
			return 0, 0, err
		}
		raw, err := d.i64() // s33, but i64 decode covers its range
		if err != nil {
			return 0, 0, err
		}
		ft := d.m.Types.At(d.m.TypeSection[raw]).Composite.Func
		return len(ft.Params), len(ft.Results), nil
	}
}

func (d *decoder) decodeBody() error {
	for {
		op, err := d.r.ReadByte()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		srcOff := d.offset() - 1
		if op == 0x0b { // end
			if d.popLabel() {
				continue
			}
			return nil
		}
		irIdxBefore := len(d.body.ir)
		if err := d.decodeOne(op); err != nil {
			return fmt.Errorf("decode opcode 0x%02x at offset %d: %w", op, srcOff, err)
		}
		if len(d.body.ir) > irIdxBefore {
			d.body.addrMap = append(d.body.addrMap, addrMapIR{irIndex: irIdxBefore, sourceOffset: srcOff})
		}
	}
}

// popLabel closes the innermost open label on `end`. Returns true if
// there are still enclosing labels open (i.e. this wasn't the function's
// implicit outer block), false once the function body itself ends.
func (d *decoder) popLabel() bool {
	n := len(d.labels)
	lbl := d.labels[n-1]
	for _, p := range lbl.patches {
		d.body.ir[p].A = int64(len(d.body.ir))
	}
	// Without an else, elsePatch is still the opIfFalse itself, jumping
	// straight to end. With an else, elsePatch was reassigned (case 0x05
	// below) to the unconditional jump emitted at the end of the then-arm,
	// which needs the same "land right after the whole if" target.
	if lbl.elsePatch >= 0 {
		d.body.ir[lbl.elsePatch].A = int64(len(d.body.ir))
	}
	d.labels = d.labels[:n-1]
	// Height normalizes to stackBase+numResults once a block's body is
	// fully decoded; the block's producer already left exactly that many
	// values live for validated code.
	d.height = lbl.stackBase + lbl.numResults
	return n > 1
}

func (d *decoder) pop(n int) { d.height -= n }
func (d *decoder) push(n int) { d.height += n }

// squashFor computes how many values below the top numResults a taken
// branch must drop when the current height exceeds the label's expected
// post-branch height; the branch instruction carries that count and
// frame.squash in exec.go applies it at run time.
func (d *decoder) squashFor(lbl label, numResults int) (dropCount int) {
	want := lbl.stackBase + numResults
	if d.height > want {
		return d.height - want
	}
	return 0
}

func (d *decoder) decodeOne(o byte) error {
	switch o {
	case 0x00:
		d.trap(wasmerr.TrapUnreachable)
	case 0x01:
		d.emit(opNop, 0, 0)
	case 0x02, 0x03, 0x04: // block, loop, if
		np, nr, err := d.blockArity()
		if err != nil {
			return err
		}
		d.pop(np)
		if o == 0x04 {
			d.pop(1) // condition
		}
		lbl := label{isLoop: o == 0x03, numResults: nr, stackBase: d.height, elsePatch: -1}
		if o == 0x03 {
			lbl.loopIdx = len(d.body.ir)
		}
		if o == 0x04 {
			idx := d.emit(opIfFalse, -1, 0) // patched to else (or end) below
			lbl.elsePatch = idx
		}
		d.push(np) // block body re-sees its params as available locals-on-stack
		d.labels = append(d.labels, lbl)
	case 0x05: // else
		n := len(d.labels)
		lbl := d.labels[n-1]
		endJump := d.emit(opBr, -1, 0)
		d.body.ir[lbl.elsePatch].A = int64(len(d.body.ir))
		lbl.elsePatch = endJump
		lbl.hasElse = true
		d.height = lbl.stackBase
		d.labels[n-1] = lbl
	case 0x0c, 0x0d: // br, br_if
		depth, err := d.u32()
		if err != nil {
			return err
		}
		if o == 0x0d {
			d.pop(1)
		}
		lbl := d.labelAt(depth)
		target, results := d.branchTarget(lbl)
		drop := d.squashFor(lbl, results)
		if o == 0x0c {
			d.emit(opBr, int64(target), int64(drop)<<32|int64(uint32(results)))
		} else {
			d.emit(opBrIf, int64(target), int64(drop)<<32|int64(uint32(results)))
		}
		if o == 0x0c {
			d.registerForwardPatch(depth, len(d.body.ir)-1)
		} else {
			d.registerForwardPatch(depth, len(d.body.ir)-1)
		}
	case 0x0e: // br_table
		count, err := d.u32()
		if err != nil {
			return err
		}
		targets := make([]uint32, count+1)
		for i := range targets {
			v, err := d.u32()
			if err != nil {
				return err
			}
			targets[i] = v
		}
		d.pop(1)
		idx := d.emit(opBrTable, int64(len(targets)), 0)
		for _, depth := range targets {
			lbl := d.labelAt(depth)
			target, results := d.branchTarget(lbl)
			drop := d.squashFor(lbl, results)
			d.emit(opBrTableEntry, int64(target), int64(drop)<<32|int64(uint32(results)))
			d.registerForwardPatch(depth, len(d.body.ir)-1)
		}
		_ = idx
	case 0x0f: // return
		lbl := d.labels[0]
		drop := d.squashFor(lbl, d.body.numResults)
		d.emit(opReturn, int64(drop), int64(d.body.numResults))
	case 0x10: // call
		idx, err := d.u32()
		if err != nil {
			return err
		}
		ft := d.m.FuncType(wasm.FuncIndex(idx))
		d.pop(len(ft.Params))
		d.push(len(ft.Results))
		d.emit(opCall, int64(idx), 0)
	case 0x11: // call_indirect
		typeIdx, err := d.u32()
		if err != nil {
			return err
		}
		tableIdx, err := d.u32()
		if err != nil {
			return err
		}
		interned := d.m.TypeSection[typeIdx]
		ft := d.m.Types.At(interned).Composite.Func
		d.pop(1) // table index operand
		d.pop(len(ft.Params))
		d.push(len(ft.Results))
		d.emit(opCallIndirect, int64(tableIdx), int64(interned))
	case 0x1a:
		d.pop(1)
		d.emit(opDrop, 0, 0)
	case 0x1b:
		d.pop(3)
		d.push(1)
		d.emit(opSelect, 0, 0)
	case 0x1c: // select t*
		count, err := d.u32()
		if err != nil {
			return err
		}
		for i := uint32(0); i < count; i++ {
			if _, err := d.r.ReadByte(); err != nil {
				return err
			}
		}
		d.pop(3)
		d.push(1)
		d.emit(opSelect, 0, 0)
	case 0x20, 0x21, 0x22: // local.get/set/tee
		idx, err := d.u32()
		if err != nil {
			return err
		}
		switch o {
		case 0x20:
			d.push(1)
			d.emit(opLocalGet, int64(idx), 0)
		case 0x21:
			d.pop(1)
			d.emit(opLocalSet, int64(idx), 0)
		case 0x22:
			d.emit(opLocalTee, int64(idx), 0)
		}
	case 0x23, 0x24: // global.get/set
		idx, err := d.u32()
		if err != nil {
			return err
		}
		if o == 0x23 {
			d.push(1)
			d.emit(opGlobalGet, int64(idx), 0)
		} else {
			d.pop(1)
			d.emit(opGlobalSet, int64(idx), 0)
		}
	case 0x28, 0x29, 0x2a, 0x2b, 0x2c, 0x2d, 0x2e, 0x2f,
		0x30, 0x31, 0x32, 0x33, 0x34, 0x35,
		0x36, 0x37, 0x38, 0x39, 0x3a, 0x3b, 0x3c, 0x3d, 0x3e:
		off, err := d.memarg()
		if err != nil {
			return err
		}
		loadOp, isStore := memOpFor(o)
		if isStore {
			d.pop(2)
		} else {
			d.pop(1)
			d.push(1)
		}
		idx := d.emit(loadOp, int64(off), 0)
		d.body.trapSites = append(d.body.trapSites, trapSiteIR{irIndex: idx, kind: wasmerr.TrapMemoryOutOfBounds})
	case 0x3f, 0x40: // memory.size, memory.grow
		if _, err := d.r.ReadByte(); err != nil { // reserved memory index byte
			return err
		}
		if o == 0x3f {
			d.push(1)
			d.emit(opMemorySize, 0, 0)
		} else {
			d.pop(1)
			d.push(1)
			d.emit(opMemoryGrow, 0, 0)
		}
	case 0x41:
		v, err := d.i32()
		if err != nil {
			return err
		}
		d.push(1)
		d.emit(opI32Const, int64(v), 0)
	case 0x42:
		v, err := d.i64()
		if err != nil {
			return err
		}
		d.push(1)
		d.emit(opI64Const, v, 0)
	case 0x43:
		v, err := d.f32()
		if err != nil {
			return err
		}
		d.push(1)
		d.emit(opF32Const, int64(math.Float32bits(v)), 0)
	case 0x44:
		v, err := d.f64()
		if err != nil {
			return err
		}
		d.push(1)
		d.emit(opF64Const, int64(math.Float64bits(v)), 0)
	case 0xd0: // ref.null heaptype
		ht, err := d.r.ReadByte()
		if err != nil {
			return err
		}
		d.push(1)
		// A carries the heap type byte so exec.go pushes the matching
		// null sentinel (funcref vs externref share no representation).
		d.emit(opRefNull, int64(ht), 0)
	case 0xd1: // ref.is_null
		d.pop(1)
		d.push(1)
		d.emit(opRefIsNull, 0, 0)
	case 0xd2: // ref.func
		idx, err := d.u32()
		if err != nil {
			return err
		}
		d.push(1)
		d.emit(opRefFunc, int64(idx), 0)
	case 0xfc:
		return d.decodeFC()
	default:
		if simple, ok := simpleOpFor(o); ok {
			d.pop(simple.pop)
			d.push(simple.push)
			idx := d.emit(simple.op, 0, 0)
			switch simple.op {
			case opI32DivS, opI32DivU, opI32RemS, opI32RemU,
				opI64DivS, opI64DivU, opI64RemS, opI64RemU:
				d.body.trapSites = append(d.body.trapSites, trapSiteIR{irIndex: idx, kind: wasmerr.TrapIntegerDivideByZero})
			}
			return nil
		}
		return fmt.Errorf("unsupported opcode 0x%02x", o)
	}
	return nil
}

// labelAt returns the label `depth` levels up from the innermost (0 =
// innermost), per Wasm's relative-depth branch encoding.
func (d *decoder) labelAt(depth uint32) label {
	return d.labels[len(d.labels)-1-int(depth)]
}

// branchTarget returns the resolved IR index to jump to for a branch
// targeting lbl (a loop's own start for a loop label, otherwise a
// not-yet-known forward address patched in by popLabel) plus the arity
// that survives the branch.
func (d *decoder) branchTarget(lbl label) (target uint32, results int) {
	if lbl.isLoop {
		return uint32(lbl.loopIdx), 0
	}
	return 0, lbl.numResults // placeholder target; patched by registerForwardPatch
}

// registerForwardPatch records that the just-emitted branch instruction
// at irIdx targets the label `depth` levels up, to be backfilled once
// that label's `end` is reached.
func (d *decoder) registerForwardPatch(depth uint32, irIdx int) {
	i := len(d.labels) - 1 - int(depth)
	if d.labels[i].isLoop {
		return // loop branch target is already resolved (backward edge)
	}
	d.labels[i].patches = append(d.labels[i].patches, irIdx)
}
