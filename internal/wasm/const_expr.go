package wasm

// ConstOpcode enumerates the reduced opcode set the const-expression
// dialect supports (spec §4.5).
type ConstOpcode byte

const (
	ConstOpI32Const ConstOpcode = iota
	ConstOpI64Const
	ConstOpF32Const
	ConstOpF64Const
	ConstOpV128Const
	ConstOpRefNull
	ConstOpRefFunc
	ConstOpRefI31
	ConstOpGlobalGet
	// Extended-const arithmetic (spec §4.5 "extended-const arithmetic").
	ConstOpI32Add
	ConstOpI32Sub
	ConstOpI32Mul
	ConstOpI64Add
	ConstOpI64Sub
	ConstOpI64Mul
)

// ConstOp is one decoded instruction of a const-expression.
type ConstOp struct {
	Op ConstOpcode
	// Imm carries the decoded immediate: the raw bits of an iNN/fNN
	// constant, the two halves of a v128 constant, a FuncIndex for
	// ref.func, a GlobalIndex for global.get, or is unused for ref.null/
	// ref.i31/arithmetic ops (which read their operands off the
	// evaluator's value stack).
	Imm     uint64
	ImmHigh uint64 // high 64 bits, v128.const only
	// RefNullType distinguishes ref.null funcref from ref.null externref.
	RefNullType ValueType
}

// ConstExpr is a decoded const-expression: the byte-offset opcode stream
// has already been turned into a flat op list by the translator, so the
// evaluator (internal/vm) never touches raw bytes.
type ConstExpr struct {
	Ops []ConstOp
	// Type is the const-expression's static result type, determined by
	// the translator from context (a global's declared type, an i32 for
	// an active segment's offset, ...).
	Type ValueType
}

// RefFuncs returns every function index referenced by a `ref.func`
// instruction in e, used by the translator to mark those functions
// escaping (spec §4.1).
func (e ConstExpr) RefFuncs() []FuncIndex {
	var out []FuncIndex
	for _, op := range e.Ops {
		if op.Op == ConstOpRefFunc {
			out = append(out, FuncIndex(op.Imm))
		}
	}
	return out
}
