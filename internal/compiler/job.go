package compiler

// JobKind distinguishes the four kinds of compilation unit spec §4.2
// schedules: a plain Wasm function body, a host-to-wasm trampoline, a
// wasm-to-array trampoline, and a wasm-to-builtin trampoline. Keeping this in the job key's top bits
// gives every job a total order that groups like work together,
// matching the teacher's own batched-compile scheduling.
type JobKind uint8

const (
	JobKindWasmFunction JobKind = iota
	JobKindHostToWasmTrampoline
	JobKindWasmToArrayTrampoline
	JobKindWasmToBuiltinTrampoline
)

func (k JobKind) String() string {
	switch k {
	case JobKindWasmFunction:
		return "wasm-function"
	case JobKindHostToWasmTrampoline:
		return "host-to-wasm-trampoline"
	case JobKindWasmToArrayTrampoline:
		return "wasm-to-array-trampoline"
	case JobKindWasmToBuiltinTrampoline:
		return "wasm-to-builtin-trampoline"
	default:
		return "unknown-job-kind"
	}
}

const (
	jobKindBits  = 3
	jobModuleBits = 29
	jobIndexBits  = 32

	jobModuleMask = uint64(1)<<jobModuleBits - 1
)

// JobKey is the 32+29+3-bit composite compilation-job key spec §4.2
// describes: kind in the top 3 bits, a per-engine module generation
// number in the next 29, and the function/trampoline index in the low
// 32. Ordering JobKeys numerically yields a stable compilation order
// across engine runs. Link does not build JobKeys; it compiles in
// function order followed by trampolines.
type JobKey uint64

// NewJobKey packs kind, module and index into a single sortable key.
// module is truncated to its low 29 bits; callers should derive it from
// a small monotonic per-Engine counter, never from a hash, so two
// compiles of the same module within one process produce identical keys.
func NewJobKey(kind JobKind, module uint32, index uint32) JobKey {
	k := uint64(kind&0x7) << (jobModuleBits + jobIndexBits)
	k |= (uint64(module) & jobModuleMask) << jobIndexBits
	k |= uint64(index)
	return JobKey(k)
}

func (k JobKey) Kind() JobKind { return JobKind(uint64(k) >> (jobModuleBits + jobIndexBits)) }

func (k JobKey) Module() uint32 {
	return uint32((uint64(k) >> jobIndexBits) & jobModuleMask)
}

func (k JobKey) Index() uint32 { return uint32(k) }
