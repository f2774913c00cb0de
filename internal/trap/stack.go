// Package trap captures Wasm backtraces for internal/compiler/baseline's
// interpreter (spec §4.8). A real native-codegen backend installs a
// signal handler and walks frame pointers off the faulting thread's
// register state; this backend has no machine registers to walk, since
// "compiled code" is bytecode a Go loop interprets. Spec §9 explicitly
// allows a software-only trap mechanism for exactly this situation, so
// Stack instead is an explicit call frame list the interpreter itself
// pushes to and pops from around every Invoke, mirroring the teacher's
// own interpreter engine (internal/engine/interpreter's callEngine.frames
// in tetratelabs/wazero) rather than wazero's signal-based compiler
// engine, since this backend's execution model matches the interpreter
// one, not the native one.
package trap

import (
	"sync"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasmerr"
)

// Frame is one entry of the explicit call stack: which function is
// executing and, if known, the Wasm-binary byte offset of the
// instruction currently running (spec §4.9's "source offset", looked up
// from a CompiledCodeImage's address-map side table by the caller before
// pushing -- Stack itself carries no knowledge of side tables).
type Frame struct {
	FuncIndex    wasm.FuncIndex
	SourceOffset uint32
	FuncName     string
}

// Stack is one Instance's (or, for cross-instance calls, one call
// chain's) explicit frame list. The zero value is usable. Safe for
// concurrent use only in the sense that a single Instance is expected to
// run on one goroutine at a time (spec's concurrency Non-goals); the
// mutex exists to make races visible as a panic-free no-op rather than
// silent corruption, not to allow genuinely concurrent calls into one
// Instance.
type Stack struct {
	mu     sync.Mutex
	frames []Frame
}

func NewStack() *Stack { return &Stack{} }

// Push records f as the new innermost frame. Every Push must be matched
// by exactly one Pop, normally via a deferred call at the Invoke call
// site (see baseline.Invoke).
func (s *Stack) Push(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
}

// Pop discards the innermost frame.
func (s *Stack) Pop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) > 0 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// Depth reports the current call depth, consulted by the interpreter as
// its stack-overflow guard (spec §4.9 TrapStackOverflow) instead of
// relying on a real guard-page fault, since there is no guard page under
// a Go-managed operand stack.
func (s *Stack) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// MaxDepth is the call depth at which the interpreter raises
// TrapStackOverflow rather than letting recursion continue (spec §4.9,
// §6 "architecture-specific offset is currently 0" -- this backend has
// no architecture-specific stack size to derive a real limit from, so it
// uses a fixed, generous constant instead).
const MaxDepth = 4096

// Snapshot captures the current frames, innermost first, as the
// wasmerr.Frame list a trap's Backtrace field carries. PC/FP are always
// zero: this backend has no native program counter or frame pointer,
// only the logical (FuncIndex, SourceOffset) pair recorded at Push time.
func (s *Stack) Snapshot() []wasmerr.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wasmerr.Frame, len(s.frames))
	for i, f := range s.frames {
		out[len(s.frames)-1-i] = wasmerr.Frame{
			FunctionIndex: uint32(f.FuncIndex),
			SourceOffset:  f.SourceOffset,
		}
	}
	return out
}
