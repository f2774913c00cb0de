package baseline

// simpleOp describes an opcode whose decoding is uniform: pop a fixed
// number of operands, push a fixed number of results, no immediate. Every
// numeric instruction in the 0x45-0xc4 range fits this shape, so decode.go
// falls through to this table rather than special-casing each one.
type simpleOp struct {
	op        op
	pop, push int
}

var simpleOps = map[byte]simpleOp{
	0x45: {opI32Eqz, 1, 1},
	0x46: {opI32Eq, 2, 1},
	0x47: {opI32Ne, 2, 1},
	0x48: {opI32LtS, 2, 1},
	0x49: {opI32LtU, 2, 1},
	0x4a: {opI32GtS, 2, 1},
	0x4b: {opI32GtU, 2, 1},
	0x4c: {opI32LeS, 2, 1},
	0x4d: {opI32LeU, 2, 1},
	0x4e: {opI32GeS, 2, 1},
	0x4f: {opI32GeU, 2, 1},
	0x50: {opI64Eqz, 1, 1},
	0x51: {opI64Eq, 2, 1},
	0x52: {opI64Ne, 2, 1},
	0x53: {opI64LtS, 2, 1},
	0x54: {opI64LtU, 2, 1},
	0x55: {opI64GtS, 2, 1},
	0x56: {opI64GtU, 2, 1},
	0x57: {opI64LeS, 2, 1},
	0x58: {opI64LeU, 2, 1},
	0x59: {opI64GeS, 2, 1},
	0x5a: {opI64GeU, 2, 1},
	0x5b: {opF32Eq, 2, 1},
	0x5c: {opF32Ne, 2, 1},
	0x5d: {opF32Lt, 2, 1},
	0x5e: {opF32Gt, 2, 1},
	0x5f: {opF32Le, 2, 1},
	0x60: {opF32Ge, 2, 1},
	0x61: {opF64Eq, 2, 1},
	0x62: {opF64Ne, 2, 1},
	0x63: {opF64Lt, 2, 1},
	0x64: {opF64Gt, 2, 1},
	0x65: {opF64Le, 2, 1},
	0x66: {opF64Ge, 2, 1},

	0x67: {opI32Clz, 1, 1},
	0x68: {opI32Ctz, 1, 1},
	0x69: {opI32Popcnt, 1, 1},
	0x6a: {opI32Add, 2, 1},
	0x6b: {opI32Sub, 2, 1},
	0x6c: {opI32Mul, 2, 1},
	0x6d: {opI32DivS, 2, 1},
	0x6e: {opI32DivU, 2, 1},
	0x6f: {opI32RemS, 2, 1},
	0x70: {opI32RemU, 2, 1},
	0x71: {opI32And, 2, 1},
	0x72: {opI32Or, 2, 1},
	0x73: {opI32Xor, 2, 1},
	0x74: {opI32Shl, 2, 1},
	0x75: {opI32ShrS, 2, 1},
	0x76: {opI32ShrU, 2, 1},
	0x77: {opI32Rotl, 2, 1},
	0x78: {opI32Rotr, 2, 1},

	0x79: {opI64Clz, 1, 1},
	0x7a: {opI64Ctz, 1, 1},
	0x7b: {opI64Popcnt, 1, 1},
	0x7c: {opI64Add, 2, 1},
	0x7d: {opI64Sub, 2, 1},
	0x7e: {opI64Mul, 2, 1},
	0x7f: {opI64DivS, 2, 1},
	0x80: {opI64DivU, 2, 1},
	0x81: {opI64RemS, 2, 1},
	0x82: {opI64RemU, 2, 1},
	0x83: {opI64And, 2, 1},
	0x84: {opI64Or, 2, 1},
	0x85: {opI64Xor, 2, 1},
	0x86: {opI64Shl, 2, 1},
	0x87: {opI64ShrS, 2, 1},
	0x88: {opI64ShrU, 2, 1},
	0x89: {opI64Rotl, 2, 1},
	0x8a: {opI64Rotr, 2, 1},

	0x8b: {opF32Abs, 1, 1},
	0x8c: {opF32Neg, 1, 1},
	0x8d: {opF32Ceil, 1, 1},
	0x8e: {opF32Floor, 1, 1},
	0x8f: {opF32Trunc, 1, 1},
	0x90: {opF32Nearest, 1, 1},
	0x91: {opF32Sqrt, 1, 1},
	0x92: {opF32Add, 2, 1},
	0x93: {opF32Sub, 2, 1},
	0x94: {opF32Mul, 2, 1},
	0x95: {opF32Div, 2, 1},
	0x96: {opF32Min, 2, 1},
	0x97: {opF32Max, 2, 1},
	0x98: {opF32Copysign, 2, 1},

	0x99: {opF64Abs, 1, 1},
	0x9a: {opF64Neg, 1, 1},
	0x9b: {opF64Ceil, 1, 1},
	0x9c: {opF64Floor, 1, 1},
	0x9d: {opF64Trunc, 1, 1},
	0x9e: {opF64Nearest, 1, 1},
	0x9f: {opF64Sqrt, 1, 1},
	0xa0: {opF64Add, 2, 1},
	0xa1: {opF64Sub, 2, 1},
	0xa2: {opF64Mul, 2, 1},
	0xa3: {opF64Div, 2, 1},
	0xa4: {opF64Min, 2, 1},
	0xa5: {opF64Max, 2, 1},
	0xa6: {opF64Copysign, 2, 1},

	0xa7: {opI32WrapI64, 1, 1},
	0xa8: {opI32TruncF32S, 1, 1},
	0xa9: {opI32TruncF32U, 1, 1},
	0xaa: {opI32TruncF64S, 1, 1},
	0xab: {opI32TruncF64U, 1, 1},
	0xac: {opI64ExtendI32S, 1, 1},
	0xad: {opI64ExtendI32U, 1, 1},
	0xae: {opI64TruncF32S, 1, 1},
	0xaf: {opI64TruncF32U, 1, 1},
	0xb0: {opI64TruncF64S, 1, 1},
	0xb1: {opI64TruncF64U, 1, 1},
	0xb2: {opF32ConvertI32S, 1, 1},
	0xb3: {opF32ConvertI32U, 1, 1},
	0xb4: {opF32ConvertI64S, 1, 1},
	0xb5: {opF32ConvertI64U, 1, 1},
	0xb6: {opF32DemoteF64, 1, 1},
	0xb7: {opF64ConvertI32S, 1, 1},
	0xb8: {opF64ConvertI32U, 1, 1},
	0xb9: {opF64ConvertI64S, 1, 1},
	0xba: {opF64ConvertI64U, 1, 1},
	0xbb: {opF64PromoteF32, 1, 1},
	0xbc: {opI32ReinterpretF32, 1, 1},
	0xbd: {opI64ReinterpretF64, 1, 1},
	0xbe: {opF32ReinterpretI32, 1, 1},
	0xbf: {opF64ReinterpretI64, 1, 1},

	0xc0: {opI32Extend8S, 1, 1},
	0xc1: {opI32Extend16S, 1, 1},
	0xc2: {opI64Extend8S, 1, 1},
	0xc3: {opI64Extend16S, 1, 1},
	0xc4: {opI64Extend32S, 1, 1},
}

func simpleOpFor(o byte) (simpleOp, bool) {
	s, ok := simpleOps[o]
	return s, ok
}

// memOps maps a load/store opcode byte to its IR op; storeOps below marks
// which of them are stores (pops 2: address + value) rather than loads
// (pops 1, pushes 1).
var memOps = map[byte]op{
	0x28: opI32Load,
	0x29: opI64Load,
	0x2a: opF32Load,
	0x2b: opF64Load,
	0x2c: opI32Load8S,
	0x2d: opI32Load8U,
	0x2e: opI32Load16S,
	0x2f: opI32Load16U,
	0x30: opI64Load8S,
	0x31: opI64Load8U,
	0x32: opI64Load16S,
	0x33: opI64Load16U,
	0x34: opI64Load32S,
	0x35: opI64Load32U,
	0x36: opI32Store,
	0x37: opI64Store,
	0x38: opF32Store,
	0x39: opF64Store,
	0x3a: opI32Store8,
	0x3b: opI32Store16,
	0x3c: opI64Store8,
	0x3d: opI64Store16,
	0x3e: opI64Store32,
}

var storeOps = map[byte]bool{
	0x36: true, 0x37: true, 0x38: true, 0x39: true,
	0x3a: true, 0x3b: true, 0x3c: true, 0x3d: true, 0x3e: true,
}

func memOpFor(o byte) (op, bool) {
	loadOp, ok := memOps[o]
	if !ok {
		return 0, false
	}
	return loadOp, storeOps[o]
}
