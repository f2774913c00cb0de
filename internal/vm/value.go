package vm

import "math"

// VMVal is the 16-byte value cell every global, local, and array-call ABI
// slot is stored in (spec §4.7 "host<->guest value marshalling", testable
// property 5: "a value written through a typed constructor and read back
// through the matching typed accessor round-trips exactly"). i32/f32 occupy
// the low 4 bytes, i64/f64 the low 8, v128 all 16; funcref stores a 32-bit
// func-ref index in the low 4 bytes and externref a 64-bit handle in the
// low 8 bytes. The type itself carries no tag --
// callers are expected to already know the static Wasm type, exactly as the
// array-call ABI's caller-supplied type signature does.
type VMVal [16]byte

// I32 constructs a VMVal holding an i32.
func I32(v int32) VMVal {
	var r VMVal
	putU32LE(r[0:4], uint32(v))
	return r
}

// I32 reads the low 4 bytes back as an i32.
func (v VMVal) I32() int32 { return int32(u32LE(v[0:4])) }

// I64 constructs a VMVal holding an i64.
func I64(v int64) VMVal {
	var r VMVal
	putU64LE(r[0:8], uint64(v))
	return r
}

// I64 reads the low 8 bytes back as an i64.
func (v VMVal) I64() int64 { return int64(u64LE(v[0:8])) }

// F32 constructs a VMVal holding an f32.
func F32(v float32) VMVal {
	var r VMVal
	putU32LE(r[0:4], math.Float32bits(v))
	return r
}

// F32 reads the low 4 bytes back as an f32.
func (v VMVal) F32() float32 { return math.Float32frombits(u32LE(v[0:4])) }

// F64 constructs a VMVal holding an f64.
func F64(v float64) VMVal {
	var r VMVal
	putU64LE(r[0:8], math.Float64bits(v))
	return r
}

// F64 reads the low 8 bytes back as an f64.
func (v VMVal) F64() float64 { return math.Float64frombits(u64LE(v[0:8])) }

// V128 constructs a VMVal holding a full 16-byte v128 lane.
func V128(b [16]byte) VMVal { return VMVal(b) }

// V128 reads all 16 bytes back as a v128 lane.
func (v VMVal) V128() [16]byte { return [16]byte(v) }

// FuncRef constructs a VMVal holding a funcref handle: a packed (executable,
// moduleCtx) pair is too wide for one VMVal, so funcref values passed
// through the array-call ABI carry only the dense func-ref table index
// (spec §4.1 "escaping functions"); 0xFFFFFFFF means ref.null func.
func FuncRef(idx uint32) VMVal {
	var r VMVal
	putU32LE(r[0:4], idx)
	return r
}

// NullFuncRef is the VMVal a ref.null func constant expression evaluates to.
var NullFuncRef = FuncRef(math.MaxUint32)

// IsNullFuncRef reports whether v is the null funcref sentinel.
func (v VMVal) IsNullFuncRef() bool { return u32LE(v[0:4]) == math.MaxUint32 }

// FuncRefIdx reads a funcref VMVal's dense table index back.
func (v VMVal) FuncRefIdx() uint32 { return u32LE(v[0:4]) }

// ExternRef constructs a VMVal holding an externref handle: an opaque,
// host-assigned 64-bit id (spec §4.7; externref values are never dereferenced
// by guest code, only passed back to the host that produced them).
func ExternRef(handle uint64) VMVal {
	var r VMVal
	putU64LE(r[0:8], handle)
	return r
}

// NullExternRef is the VMVal a ref.null extern constant expression evaluates to.
var NullExternRef = ExternRef(0)

// IsNullExternRef reports whether v is the null externref sentinel.
func (v VMVal) IsNullExternRef() bool { return u64LE(v[0:8]) == 0 }

// ExternRefHandle reads an externref VMVal's host handle back.
func (v VMVal) ExternRefHandle() uint64 { return u64LE(v[0:8]) }

func putU32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func u32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putU64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func u64LE(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
