// Package baseline is the default Compiler capability (spec §6): a
// bytecode-interpreter backend instead of a native code generator. The
// concrete code generator is an opaque, externally-pluggable capability
// per spec §1/§6; this engine ships a safe-by-construction stand-in so
// every other subsystem (VMContext layout, instance init, traps, call
// dispatch) has a real implementation to run against without this
// session emitting and trusting unverified machine code. See DESIGN.md.
package baseline

// op is the IR baseline.CompileFunction lowers a Wasm function body
// into. It mirrors the Wasm MVP opcode set closely enough that decode.go
// reads almost directly off the wire, but resolves every branch target
// to an absolute IR instruction index up front so exec.go never
// re-walks nested block structure at run time.
type op uint8

const (
	opUnreachable op = iota
	opNop
	opBlockMarker // no-op at run time; kept so AddressMap/TrapSites can anchor to it
	opIfFalse     // pop i32 condition; jump to A when zero (if/else dispatch)
	opBr
	opBrIf
	opBrTable
	opBrTableEntry // one resolved (target, drop<<32|results) pair following opBrTable
	opReturn
	opCall
	opCallIndirect
	opDrop
	opSelect

	opLocalGet
	opLocalSet
	opLocalTee
	opGlobalGet
	opGlobalSet

	opI32Load
	opI64Load
	opF32Load
	opF64Load
	opI32Load8S
	opI32Load8U
	opI32Load16S
	opI32Load16U
	opI64Load8S
	opI64Load8U
	opI64Load16S
	opI64Load16U
	opI64Load32S
	opI64Load32U
	opI32Store
	opI64Store
	opF32Store
	opF64Store
	opI32Store8
	opI32Store16
	opI64Store8
	opI64Store16
	opI64Store32
	opMemorySize
	opMemoryGrow

	opI32Const
	opI64Const
	opF32Const
	opF64Const

	opI32Eqz
	opI32Eq
	opI32Ne
	opI32LtS
	opI32LtU
	opI32GtS
	opI32GtU
	opI32LeS
	opI32LeU
	opI32GeS
	opI32GeU
	opI64Eqz
	opI64Eq
	opI64Ne
	opI64LtS
	opI64LtU
	opI64GtS
	opI64GtU
	opI64LeS
	opI64LeU
	opI64GeS
	opI64GeU
	opF32Eq
	opF32Ne
	opF32Lt
	opF32Gt
	opF32Le
	opF32Ge
	opF64Eq
	opF64Ne
	opF64Lt
	opF64Gt
	opF64Le
	opF64Ge

	opI32Clz
	opI32Ctz
	opI32Popcnt
	opI32Add
	opI32Sub
	opI32Mul
	opI32DivS
	opI32DivU
	opI32RemS
	opI32RemU
	opI32And
	opI32Or
	opI32Xor
	opI32Shl
	opI32ShrS
	opI32ShrU
	opI32Rotl
	opI32Rotr
	opI64Clz
	opI64Ctz
	opI64Popcnt
	opI64Add
	opI64Sub
	opI64Mul
	opI64DivS
	opI64DivU
	opI64RemS
	opI64RemU
	opI64And
	opI64Or
	opI64Xor
	opI64Shl
	opI64ShrS
	opI64ShrU
	opI64Rotl
	opI64Rotr
	opF32Abs
	opF32Neg
	opF32Ceil
	opF32Floor
	opF32Trunc
	opF32Nearest
	opF32Sqrt
	opF32Add
	opF32Sub
	opF32Mul
	opF32Div
	opF32Min
	opF32Max
	opF32Copysign
	opF64Abs
	opF64Neg
	opF64Ceil
	opF64Floor
	opF64Trunc
	opF64Nearest
	opF64Sqrt
	opF64Add
	opF64Sub
	opF64Mul
	opF64Div
	opF64Min
	opF64Max
	opF64Copysign

	opI32WrapI64
	opI64ExtendI32S
	opI64ExtendI32U
	opI32TruncF32S
	opI32TruncF32U
	opI32TruncF64S
	opI32TruncF64U
	opI64TruncF32S
	opI64TruncF32U
	opI64TruncF64S
	opI64TruncF64U
	opF32ConvertI32S
	opF32ConvertI32U
	opF32ConvertI64S
	opF32ConvertI64U
	opF32DemoteF64
	opF64ConvertI32S
	opF64ConvertI32U
	opF64ConvertI64S
	opF64ConvertI64U
	opF64PromoteF32
	opI32ReinterpretF32
	opI64ReinterpretF64
	opF32ReinterpretI32
	opF64ReinterpretI64
	opI32Extend8S
	opI32Extend16S
	opI64Extend8S
	opI64Extend16S
	opI64Extend32S

	opRefNull
	opRefIsNull
	opRefFunc

	// Saturating truncation (the nontrapping-float-to-int-conversion
	// proposal, decoded from the 0xfc prefix, see fc.go).
	opI32TruncSatF32S
	opI32TruncSatF32U
	opI32TruncSatF64S
	opI32TruncSatF64U
	opI64TruncSatF32S
	opI64TruncSatF32U
	opI64TruncSatF64S
	opI64TruncSatF64U

	// Bulk memory/table ops decoded from the 0xfc prefix. memory.copy and
	// memory.fill and table.size are simple enough to execute directly;
	// the rest (which need access to dropped-segment bookkeeping already
	// implemented on Instance) are routed through the builtin table via
	// opCallBuiltin instead of getting their own op.
	opMemoryCopy
	opMemoryFill
	opTableSize

	opCallBuiltin // invoke one VMContext builtin_functions entry
	opTrap        // explicit software trap sentinel (spec §4.8)
)

// instr is one decoded, already-resolved IR instruction. A and B carry
// whichever of immediate/local-index/branch-target/etc. the opcode
// needs; which field means what is documented per-opcode in decode.go.
type instr struct {
	Op op
	A  int64
	B  int64
}
