package binary

import (
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasmerr"
)

const (
	opI32Const   = 0x41
	opI64Const   = 0x42
	opF32Const   = 0x43
	opF64Const   = 0x44
	opRefNull    = 0xd0
	opRefFunc    = 0xd2
	opGlobalGet  = 0x23
	opI32Add     = 0x6a
	opI32Sub     = 0x6b
	opI32Mul     = 0x6c
	opI64Add     = 0x7c
	opI64Sub     = 0x7d
	opI64Mul     = 0x7e
	opVecPrefix  = 0xfd
	opGCPrefix   = 0xfb
	opEnd        = 0x0b
	gcRefI31     = 0x1c
	vecV128Const = 0x0c
)

// decodeConstExpr decodes one const-expression (spec §4.5), stopping at
// the terminating 0x0b. resultType records the expression's expected
// static type for the evaluator.
func (d *decoder) decodeConstExpr(br *byteReader, resultType wasm.ValueType) (wasm.ConstExpr, error) {
	var ops []wasm.ConstOp
	for {
		opByte, err := br.ReadByte()
		if err != nil {
			return wasm.ConstExpr{}, wasmerr.InvalidWasm(br.pos, "failed to read const-expr opcode: %v", err)
		}
		switch opByte {
		case opEnd:
			return wasm.ConstExpr{Ops: ops, Type: resultType}, nil
		case opI32Const:
			v, err := br.readVarI32()
			if err != nil {
				return wasm.ConstExpr{}, err
			}
			ops = append(ops, wasm.ConstOp{Op: wasm.ConstOpI32Const, Imm: uint64(uint32(v))})
		case opI64Const:
			v, err := br.readVarI64()
			if err != nil {
				return wasm.ConstExpr{}, err
			}
			ops = append(ops, wasm.ConstOp{Op: wasm.ConstOpI64Const, Imm: uint64(v)})
		case opF32Const:
			b, err := br.readN(4)
			if err != nil {
				return wasm.ConstExpr{}, wasmerr.InvalidWasm(br.pos, "truncated f32.const: %v", err)
			}
			ops = append(ops, wasm.ConstOp{Op: wasm.ConstOpF32Const, Imm: uint64(leU32(b))})
		case opF64Const:
			b, err := br.readN(8)
			if err != nil {
				return wasm.ConstExpr{}, wasmerr.InvalidWasm(br.pos, "truncated f64.const: %v", err)
			}
			ops = append(ops, wasm.ConstOp{Op: wasm.ConstOpF64Const, Imm: leU64(b)})
		case opRefNull:
			vt, err := br.readValueType()
			if err != nil {
				return wasm.ConstExpr{}, err
			}
			ops = append(ops, wasm.ConstOp{Op: wasm.ConstOpRefNull, RefNullType: vt})
		case opRefFunc:
			idx, err := br.readVarU32()
			if err != nil {
				return wasm.ConstExpr{}, err
			}
			ops = append(ops, wasm.ConstOp{Op: wasm.ConstOpRefFunc, Imm: uint64(idx)})
		case opGlobalGet:
			idx, err := br.readVarU32()
			if err != nil {
				return wasm.ConstExpr{}, err
			}
			ops = append(ops, wasm.ConstOp{Op: wasm.ConstOpGlobalGet, Imm: uint64(idx)})
		case opI32Add:
			ops = append(ops, wasm.ConstOp{Op: wasm.ConstOpI32Add})
		case opI32Sub:
			ops = append(ops, wasm.ConstOp{Op: wasm.ConstOpI32Sub})
		case opI32Mul:
			ops = append(ops, wasm.ConstOp{Op: wasm.ConstOpI32Mul})
		case opI64Add:
			ops = append(ops, wasm.ConstOp{Op: wasm.ConstOpI64Add})
		case opI64Sub:
			ops = append(ops, wasm.ConstOp{Op: wasm.ConstOpI64Sub})
		case opI64Mul:
			ops = append(ops, wasm.ConstOp{Op: wasm.ConstOpI64Mul})
		case opGCPrefix:
			sub, err := br.readVarU32()
			if err != nil {
				return wasm.ConstExpr{}, err
			}
			if sub != gcRefI31 {
				return wasm.ConstExpr{}, wasmerr.Unsupported("const-expr GC opcode 0x%x", sub)
			}
			ops = append(ops, wasm.ConstOp{Op: wasm.ConstOpRefI31})
		case opVecPrefix:
			sub, err := br.readVarU32()
			if err != nil {
				return wasm.ConstExpr{}, err
			}
			if sub != vecV128Const {
				return wasm.ConstExpr{}, wasmerr.Unsupported("const-expr vector opcode 0x%x", sub)
			}
			b, err := br.readN(16)
			if err != nil {
				return wasm.ConstExpr{}, wasmerr.InvalidWasm(br.pos, "truncated v128.const: %v", err)
			}
			ops = append(ops, wasm.ConstOp{Op: wasm.ConstOpV128Const, Imm: leU64(b[:8]), ImmHigh: leU64(b[8:])})
		default:
			return wasm.ConstExpr{}, wasmerr.InvalidWasm(br.pos-1, "opcode 0x%x not valid in a const-expression", opByte)
		}
	}
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leU64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
