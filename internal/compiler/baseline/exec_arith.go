package baseline

import (
	"math"
	"math/bits"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/vm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasmerr"
)

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// execArith handles every opcode in ops_simple.go's simpleOps table plus the
// saturating-truncation ops fc.go adds: numeric comparison, arithmetic,
// bit manipulation, float math and all type conversions. None of these
// touch memory, tables or control flow, so they share one pop-compute-push
// shape.
func execArith(f *frame, in instr) error {
	switch in.Op {
	// i32 comparisons
	case opI32Eqz:
		a := f.pop()
		f.push(vm.I32(b2i(a.I32() == 0)))
	case opI32Eq:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(a.I32() == b.I32())))
	case opI32Ne:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(a.I32() != b.I32())))
	case opI32LtS:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(a.I32() < b.I32())))
	case opI32LtU:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(uint32(a.I32()) < uint32(b.I32()))))
	case opI32GtS:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(a.I32() > b.I32())))
	case opI32GtU:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(uint32(a.I32()) > uint32(b.I32()))))
	case opI32LeS:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(a.I32() <= b.I32())))
	case opI32LeU:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(uint32(a.I32()) <= uint32(b.I32()))))
	case opI32GeS:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(a.I32() >= b.I32())))
	case opI32GeU:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(uint32(a.I32()) >= uint32(b.I32()))))

	// i64 comparisons
	case opI64Eqz:
		a := f.pop()
		f.push(vm.I32(b2i(a.I64() == 0)))
	case opI64Eq:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(a.I64() == b.I64())))
	case opI64Ne:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(a.I64() != b.I64())))
	case opI64LtS:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(a.I64() < b.I64())))
	case opI64LtU:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(uint64(a.I64()) < uint64(b.I64()))))
	case opI64GtS:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(a.I64() > b.I64())))
	case opI64GtU:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(uint64(a.I64()) > uint64(b.I64()))))
	case opI64LeS:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(a.I64() <= b.I64())))
	case opI64LeU:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(uint64(a.I64()) <= uint64(b.I64()))))
	case opI64GeS:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(a.I64() >= b.I64())))
	case opI64GeU:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(uint64(a.I64()) >= uint64(b.I64()))))

	// f32/f64 comparisons
	case opF32Eq:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(a.F32() == b.F32())))
	case opF32Ne:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(a.F32() != b.F32())))
	case opF32Lt:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(a.F32() < b.F32())))
	case opF32Gt:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(a.F32() > b.F32())))
	case opF32Le:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(a.F32() <= b.F32())))
	case opF32Ge:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(a.F32() >= b.F32())))
	case opF64Eq:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(a.F64() == b.F64())))
	case opF64Ne:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(a.F64() != b.F64())))
	case opF64Lt:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(a.F64() < b.F64())))
	case opF64Gt:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(a.F64() > b.F64())))
	case opF64Le:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(a.F64() <= b.F64())))
	case opF64Ge:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(b2i(a.F64() >= b.F64())))

	// i32 arithmetic
	case opI32Clz:
		a := f.pop()
		f.push(vm.I32(int32(bits.LeadingZeros32(uint32(a.I32())))))
	case opI32Ctz:
		a := f.pop()
		f.push(vm.I32(int32(bits.TrailingZeros32(uint32(a.I32())))))
	case opI32Popcnt:
		a := f.pop()
		f.push(vm.I32(int32(bits.OnesCount32(uint32(a.I32())))))
	case opI32Add:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(a.I32() + b.I32()))
	case opI32Sub:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(a.I32() - b.I32()))
	case opI32Mul:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(a.I32() * b.I32()))
	case opI32DivS:
		b, a := f.pop(), f.pop()
		if b.I32() == 0 {
			return wasmerr.Trap(wasmerr.TrapIntegerDivideByZero, nil, "i32.div_s by zero")
		}
		if a.I32() == math.MinInt32 && b.I32() == -1 {
			return wasmerr.Trap(wasmerr.TrapIntegerOverflow, nil, "i32.div_s overflow")
		}
		f.push(vm.I32(a.I32() / b.I32()))
	case opI32DivU:
		b, a := f.pop(), f.pop()
		if uint32(b.I32()) == 0 {
			return wasmerr.Trap(wasmerr.TrapIntegerDivideByZero, nil, "i32.div_u by zero")
		}
		f.push(vm.I32(int32(uint32(a.I32()) / uint32(b.I32()))))
	case opI32RemS:
		b, a := f.pop(), f.pop()
		if b.I32() == 0 {
			return wasmerr.Trap(wasmerr.TrapIntegerDivideByZero, nil, "i32.rem_s by zero")
		}
		if a.I32() == math.MinInt32 && b.I32() == -1 {
			f.push(vm.I32(0))
		} else {
			f.push(vm.I32(a.I32() % b.I32()))
		}
	case opI32RemU:
		b, a := f.pop(), f.pop()
		if uint32(b.I32()) == 0 {
			return wasmerr.Trap(wasmerr.TrapIntegerDivideByZero, nil, "i32.rem_u by zero")
		}
		f.push(vm.I32(int32(uint32(a.I32()) % uint32(b.I32()))))
	case opI32And:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(a.I32() & b.I32()))
	case opI32Or:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(a.I32() | b.I32()))
	case opI32Xor:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(a.I32() ^ b.I32()))
	case opI32Shl:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(a.I32() << (uint32(b.I32()) & 31)))
	case opI32ShrS:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(a.I32() >> (uint32(b.I32()) & 31)))
	case opI32ShrU:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(int32(uint32(a.I32()) >> (uint32(b.I32()) & 31))))
	case opI32Rotl:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(int32(bits.RotateLeft32(uint32(a.I32()), int(b.I32())))))
	case opI32Rotr:
		b, a := f.pop(), f.pop()
		f.push(vm.I32(int32(bits.RotateLeft32(uint32(a.I32()), -int(b.I32())))))

	// i64 arithmetic
	case opI64Clz:
		a := f.pop()
		f.push(vm.I64(int64(bits.LeadingZeros64(uint64(a.I64())))))
	case opI64Ctz:
		a := f.pop()
		f.push(vm.I64(int64(bits.TrailingZeros64(uint64(a.I64())))))
	case opI64Popcnt:
		a := f.pop()
		f.push(vm.I64(int64(bits.OnesCount64(uint64(a.I64())))))
	case opI64Add:
		b, a := f.pop(), f.pop()
		f.push(vm.I64(a.I64() + b.I64()))
	case opI64Sub:
		b, a := f.pop(), f.pop()
		f.push(vm.I64(a.I64() - b.I64()))
	case opI64Mul:
		b, a := f.pop(), f.pop()
		f.push(vm.I64(a.I64() * b.I64()))
	case opI64DivS:
		b, a := f.pop(), f.pop()
		if b.I64() == 0 {
			return wasmerr.Trap(wasmerr.TrapIntegerDivideByZero, nil, "i64.div_s by zero")
		}
		if a.I64() == math.MinInt64 && b.I64() == -1 {
			return wasmerr.Trap(wasmerr.TrapIntegerOverflow, nil, "i64.div_s overflow")
		}
		f.push(vm.I64(a.I64() / b.I64()))
	case opI64DivU:
		b, a := f.pop(), f.pop()
		if uint64(b.I64()) == 0 {
			return wasmerr.Trap(wasmerr.TrapIntegerDivideByZero, nil, "i64.div_u by zero")
		}
		f.push(vm.I64(int64(uint64(a.I64()) / uint64(b.I64()))))
	case opI64RemS:
		b, a := f.pop(), f.pop()
		if b.I64() == 0 {
			return wasmerr.Trap(wasmerr.TrapIntegerDivideByZero, nil, "i64.rem_s by zero")
		}
		if a.I64() == math.MinInt64 && b.I64() == -1 {
			f.push(vm.I64(0))
		} else {
			f.push(vm.I64(a.I64() % b.I64()))
		}
	case opI64RemU:
		b, a := f.pop(), f.pop()
		if uint64(b.I64()) == 0 {
			return wasmerr.Trap(wasmerr.TrapIntegerDivideByZero, nil, "i64.rem_u by zero")
		}
		f.push(vm.I64(int64(uint64(a.I64()) % uint64(b.I64()))))
	case opI64And:
		b, a := f.pop(), f.pop()
		f.push(vm.I64(a.I64() & b.I64()))
	case opI64Or:
		b, a := f.pop(), f.pop()
		f.push(vm.I64(a.I64() | b.I64()))
	case opI64Xor:
		b, a := f.pop(), f.pop()
		f.push(vm.I64(a.I64() ^ b.I64()))
	case opI64Shl:
		b, a := f.pop(), f.pop()
		f.push(vm.I64(a.I64() << (uint64(b.I64()) & 63)))
	case opI64ShrS:
		b, a := f.pop(), f.pop()
		f.push(vm.I64(a.I64() >> (uint64(b.I64()) & 63)))
	case opI64ShrU:
		b, a := f.pop(), f.pop()
		f.push(vm.I64(int64(uint64(a.I64()) >> (uint64(b.I64()) & 63))))
	case opI64Rotl:
		b, a := f.pop(), f.pop()
		f.push(vm.I64(int64(bits.RotateLeft64(uint64(a.I64()), int(b.I64())))))
	case opI64Rotr:
		b, a := f.pop(), f.pop()
		f.push(vm.I64(int64(bits.RotateLeft64(uint64(a.I64()), -int(b.I64())))))

	// f32 arithmetic
	case opF32Abs:
		a := f.pop()
		f.push(vm.F32(float32(math.Abs(float64(a.F32())))))
	case opF32Neg:
		a := f.pop()
		f.push(vm.F32(-a.F32()))
	case opF32Ceil:
		a := f.pop()
		f.push(vm.F32(float32(math.Ceil(float64(a.F32())))))
	case opF32Floor:
		a := f.pop()
		f.push(vm.F32(float32(math.Floor(float64(a.F32())))))
	case opF32Trunc:
		a := f.pop()
		f.push(vm.F32(float32(math.Trunc(float64(a.F32())))))
	case opF32Nearest:
		a := f.pop()
		f.push(vm.F32(float32(math.RoundToEven(float64(a.F32())))))
	case opF32Sqrt:
		a := f.pop()
		f.push(vm.F32(float32(math.Sqrt(float64(a.F32())))))
	case opF32Add:
		b, a := f.pop(), f.pop()
		f.push(vm.F32(a.F32() + b.F32()))
	case opF32Sub:
		b, a := f.pop(), f.pop()
		f.push(vm.F32(a.F32() - b.F32()))
	case opF32Mul:
		b, a := f.pop(), f.pop()
		f.push(vm.F32(a.F32() * b.F32()))
	case opF32Div:
		b, a := f.pop(), f.pop()
		f.push(vm.F32(a.F32() / b.F32()))
	case opF32Min:
		b, a := f.pop(), f.pop()
		f.push(vm.F32(float32(math.Min(float64(a.F32()), float64(b.F32())))))
	case opF32Max:
		b, a := f.pop(), f.pop()
		f.push(vm.F32(float32(math.Max(float64(a.F32()), float64(b.F32())))))
	case opF32Copysign:
		b, a := f.pop(), f.pop()
		f.push(vm.F32(float32(math.Copysign(float64(a.F32()), float64(b.F32())))))

	// f64 arithmetic
	case opF64Abs:
		a := f.pop()
		f.push(vm.F64(math.Abs(a.F64())))
	case opF64Neg:
		a := f.pop()
		f.push(vm.F64(-a.F64()))
	case opF64Ceil:
		a := f.pop()
		f.push(vm.F64(math.Ceil(a.F64())))
	case opF64Floor:
		a := f.pop()
		f.push(vm.F64(math.Floor(a.F64())))
	case opF64Trunc:
		a := f.pop()
		f.push(vm.F64(math.Trunc(a.F64())))
	case opF64Nearest:
		a := f.pop()
		f.push(vm.F64(math.RoundToEven(a.F64())))
	case opF64Sqrt:
		a := f.pop()
		f.push(vm.F64(math.Sqrt(a.F64())))
	case opF64Add:
		b, a := f.pop(), f.pop()
		f.push(vm.F64(a.F64() + b.F64()))
	case opF64Sub:
		b, a := f.pop(), f.pop()
		f.push(vm.F64(a.F64() - b.F64()))
	case opF64Mul:
		b, a := f.pop(), f.pop()
		f.push(vm.F64(a.F64() * b.F64()))
	case opF64Div:
		b, a := f.pop(), f.pop()
		f.push(vm.F64(a.F64() / b.F64()))
	case opF64Min:
		b, a := f.pop(), f.pop()
		f.push(vm.F64(math.Min(a.F64(), b.F64())))
	case opF64Max:
		b, a := f.pop(), f.pop()
		f.push(vm.F64(math.Max(a.F64(), b.F64())))
	case opF64Copysign:
		b, a := f.pop(), f.pop()
		f.push(vm.F64(math.Copysign(a.F64(), b.F64())))

	// conversions
	case opI32WrapI64:
		a := f.pop()
		f.push(vm.I32(int32(a.I64())))
	case opI64ExtendI32S:
		a := f.pop()
		f.push(vm.I64(int64(a.I32())))
	case opI64ExtendI32U:
		a := f.pop()
		f.push(vm.I64(int64(uint32(a.I32()))))
	case opI32TruncF32S:
		a := f.pop()
		v, err := truncF64ToI(float64(a.F32()), math.MinInt32, math.MaxInt32)
		if err != nil {
			return err
		}
		f.push(vm.I32(int32(v)))
	case opI32TruncF32U:
		a := f.pop()
		v, err := truncF64ToU(float64(a.F32()), math.MaxUint32)
		if err != nil {
			return err
		}
		f.push(vm.I32(int32(uint32(v))))
	case opI32TruncF64S:
		a := f.pop()
		v, err := truncF64ToI(a.F64(), math.MinInt32, math.MaxInt32)
		if err != nil {
			return err
		}
		f.push(vm.I32(int32(v)))
	case opI32TruncF64U:
		a := f.pop()
		v, err := truncF64ToU(a.F64(), math.MaxUint32)
		if err != nil {
			return err
		}
		f.push(vm.I32(int32(uint32(v))))
	case opI64TruncF32S:
		a := f.pop()
		v, err := truncF64ToI(float64(a.F32()), math.MinInt64, math.MaxInt64)
		if err != nil {
			return err
		}
		f.push(vm.I64(v))
	case opI64TruncF32U:
		a := f.pop()
		v, err := truncF64ToU(float64(a.F32()), math.MaxUint64)
		if err != nil {
			return err
		}
		f.push(vm.I64(int64(v)))
	case opI64TruncF64S:
		a := f.pop()
		v, err := truncF64ToI(a.F64(), math.MinInt64, math.MaxInt64)
		if err != nil {
			return err
		}
		f.push(vm.I64(v))
	case opI64TruncF64U:
		a := f.pop()
		v, err := truncF64ToU(a.F64(), math.MaxUint64)
		if err != nil {
			return err
		}
		f.push(vm.I64(int64(v)))

	case opI32TruncSatF32S:
		a := f.pop()
		f.push(vm.I32(int32(satF64ToI(float64(a.F32()), math.MinInt32, math.MaxInt32))))
	case opI32TruncSatF32U:
		a := f.pop()
		f.push(vm.I32(int32(uint32(satF64ToU(float64(a.F32()), math.MaxUint32)))))
	case opI32TruncSatF64S:
		a := f.pop()
		f.push(vm.I32(int32(satF64ToI(a.F64(), math.MinInt32, math.MaxInt32))))
	case opI32TruncSatF64U:
		a := f.pop()
		f.push(vm.I32(int32(uint32(satF64ToU(a.F64(), math.MaxUint32)))))
	case opI64TruncSatF32S:
		a := f.pop()
		f.push(vm.I64(satF64ToI(float64(a.F32()), math.MinInt64, math.MaxInt64)))
	case opI64TruncSatF32U:
		a := f.pop()
		f.push(vm.I64(int64(satF64ToU(float64(a.F32()), math.MaxUint64))))
	case opI64TruncSatF64S:
		a := f.pop()
		f.push(vm.I64(satF64ToI(a.F64(), math.MinInt64, math.MaxInt64)))
	case opI64TruncSatF64U:
		a := f.pop()
		f.push(vm.I64(int64(satF64ToU(a.F64(), math.MaxUint64))))

	case opF32ConvertI32S:
		a := f.pop()
		f.push(vm.F32(float32(a.I32())))
	case opF32ConvertI32U:
		a := f.pop()
		f.push(vm.F32(float32(uint32(a.I32()))))
	case opF32ConvertI64S:
		a := f.pop()
		f.push(vm.F32(float32(a.I64())))
	case opF32ConvertI64U:
		a := f.pop()
		f.push(vm.F32(float32(uint64(a.I64()))))
	case opF32DemoteF64:
		a := f.pop()
		f.push(vm.F32(float32(a.F64())))
	case opF64ConvertI32S:
		a := f.pop()
		f.push(vm.F64(float64(a.I32())))
	case opF64ConvertI32U:
		a := f.pop()
		f.push(vm.F64(float64(uint32(a.I32()))))
	case opF64ConvertI64S:
		a := f.pop()
		f.push(vm.F64(float64(a.I64())))
	case opF64ConvertI64U:
		a := f.pop()
		f.push(vm.F64(float64(uint64(a.I64()))))
	case opF64PromoteF32:
		a := f.pop()
		f.push(vm.F64(float64(a.F32())))

	case opI32ReinterpretF32:
		a := f.pop()
		f.push(vm.I32(int32(math.Float32bits(a.F32()))))
	case opI64ReinterpretF64:
		a := f.pop()
		f.push(vm.I64(int64(math.Float64bits(a.F64()))))
	case opF32ReinterpretI32:
		a := f.pop()
		f.push(vm.F32(math.Float32frombits(uint32(a.I32()))))
	case opF64ReinterpretI64:
		a := f.pop()
		f.push(vm.F64(math.Float64frombits(uint64(a.I64()))))

	case opI32Extend8S:
		a := f.pop()
		f.push(vm.I32(int32(int8(a.I32()))))
	case opI32Extend16S:
		a := f.pop()
		f.push(vm.I32(int32(int16(a.I32()))))
	case opI64Extend8S:
		a := f.pop()
		f.push(vm.I64(int64(int8(a.I64()))))
	case opI64Extend16S:
		a := f.pop()
		f.push(vm.I64(int64(int16(a.I64()))))
	case opI64Extend32S:
		a := f.pop()
		f.push(vm.I64(int64(int32(a.I64()))))

	default:
		return wasmerr.Trap(wasmerr.TrapInternalAssert, nil, "baseline: unhandled IR op %d", in.Op)
	}
	return nil
}

// truncF64ToI converts v to a signed integer truncating toward zero,
// trapping on NaN/infinity or a magnitude this width cannot represent
// (Wasm's trapping int.trunc_f family).
func truncF64ToI(v float64, lo, hi int64) (int64, error) {
	if math.IsNaN(v) {
		return 0, wasmerr.Trap(wasmerr.TrapIntegerOverflow, nil, "trunc of NaN")
	}
	t := math.Trunc(v)
	if t < float64(lo) || t >= float64(hi)+1 {
		return 0, wasmerr.Trap(wasmerr.TrapIntegerOverflow, nil, "trunc %v out of range", v)
	}
	return int64(t), nil
}

func truncF64ToU(v float64, hi uint64) (uint64, error) {
	if math.IsNaN(v) {
		return 0, wasmerr.Trap(wasmerr.TrapIntegerOverflow, nil, "trunc of NaN")
	}
	t := math.Trunc(v)
	if t < 0 || t >= float64(hi)+1 {
		return 0, wasmerr.Trap(wasmerr.TrapIntegerOverflow, nil, "trunc %v out of range", v)
	}
	return uint64(t), nil
}

// satF64ToI/satF64ToU implement the nontrapping-float-to-int-conversion
// proposal: clamp instead of trapping, mapping NaN to zero.
func satF64ToI(v float64, lo, hi int64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	t := math.Trunc(v)
	if t < float64(lo) {
		return lo
	}
	if t >= float64(hi)+1 {
		return hi
	}
	return int64(t)
}

func satF64ToU(v float64, hi uint64) uint64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	t := math.Trunc(v)
	if t >= float64(hi)+1 {
		return hi
	}
	return uint64(t)
}
