package vm

import (
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasmerr"
)

// GlobalReader is the minimal capability Eval needs to resolve a
// global.get inside a const-expression: an already-initialised Instance
// (spec §4.4 "globals are initialised in declaration order, so a
// global.get in global i's initialiser may only reference globals
// 0..i-1"). Both Instance and a from-scratch bootstrap can satisfy it.
type GlobalReader interface {
	GlobalValue(idx wasm.GlobalIndex) VMVal
}

// Eval evaluates a decoded const-expression to its VMVal result (spec
// §4.5 "Const-expression evaluation"). funcRefOf resolves a FuncIndex to
// the FuncRefIndex a ref.func constant should produce; it is nil-safe to
// call with an index that was never marked escaping only because the
// translator guarantees every ref.func operand was (spec §4.1).
func Eval(expr wasm.ConstExpr, globals GlobalReader, funcRefOf func(wasm.FuncIndex) uint32) (VMVal, error) {
	var stack []VMVal
	push := func(v VMVal) { stack = append(stack, v) }
	pop := func() VMVal {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}

	for _, op := range expr.Ops {
		switch op.Op {
		case wasm.ConstOpI32Const:
			push(I32(int32(op.Imm)))
		case wasm.ConstOpI64Const:
			push(I64(int64(op.Imm)))
		case wasm.ConstOpF32Const:
			push(VMVal(I32(int32(op.Imm))))
		case wasm.ConstOpF64Const:
			push(VMVal(I64(int64(op.Imm))))
		case wasm.ConstOpV128Const:
			var b [16]byte
			putU64LE(b[0:8], op.Imm)
			putU64LE(b[8:16], op.ImmHigh)
			push(V128(b))
		case wasm.ConstOpRefNull:
			if op.RefNullType == wasm.ValueTypeExternref {
				push(NullExternRef)
			} else {
				push(NullFuncRef)
			}
		case wasm.ConstOpRefFunc:
			push(FuncRef(funcRefOf(wasm.FuncIndex(op.Imm))))
		case wasm.ConstOpRefI31:
			v := pop()
			push(I32((v.I32() & 0x7fffffff)))
		case wasm.ConstOpGlobalGet:
			if globals == nil {
				return VMVal{}, wasmerr.InvalidWasmf("const-expression references a global but no global reader was supplied")
			}
			push(globals.GlobalValue(wasm.GlobalIndex(op.Imm)))
		case wasm.ConstOpI32Add:
			b, a := pop(), pop()
			push(I32(a.I32() + b.I32()))
		case wasm.ConstOpI32Sub:
			b, a := pop(), pop()
			push(I32(a.I32() - b.I32()))
		case wasm.ConstOpI32Mul:
			b, a := pop(), pop()
			push(I32(a.I32() * b.I32()))
		case wasm.ConstOpI64Add:
			b, a := pop(), pop()
			push(I64(a.I64() + b.I64()))
		case wasm.ConstOpI64Sub:
			b, a := pop(), pop()
			push(I64(a.I64() - b.I64()))
		case wasm.ConstOpI64Mul:
			b, a := pop(), pop()
			push(I64(a.I64() * b.I64()))
		default:
			return VMVal{}, wasmerr.InvalidWasmf("unsupported const-expression opcode %d", op.Op)
		}
	}

	if len(stack) != 1 {
		panic("BUG: const-expression did not reduce to exactly one value")
	}
	return stack[0], nil
}
