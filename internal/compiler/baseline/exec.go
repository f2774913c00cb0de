package baseline

import (
	"math"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/compiler"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/trap"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/vm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasmerr"
)

// Invoke is baseline's call-dispatch entry point (spec §4.7): it is the
// only way anything -- the host, the Store's call-dispatch path, or
// another IR instruction via opCall/opCallIndirect -- ever runs compiled
// Wasm in this engine. idx may name either an imported function (the
// call is forwarded to its ExternFunc.HostCall, which may itself be
// another Instance's exported function re-entering this same function)
// or a defined one (its bytecode is decoded and interpreted).
func Invoke(inst *vm.Instance, idx wasm.FuncIndex, args []vm.VMVal) ([]vm.VMVal, error) {
	m := inst.Module
	if !m.IsDefinedFunc(idx) {
		ef := inst.ImportedFunc(idx)
		if ef.HostCall == nil {
			return nil, wasmerr.Trap(wasmerr.TrapInternalAssert, nil, "imported function %d has no callable entry point", idx)
		}
		return ef.HostCall(args)
	}
	def := wasm.ToDefinedFuncIndex(idx, m.NumImportedFuncs)
	img, ok := m.CompiledImage.(*compiler.CompiledCodeImage)
	if !ok || img == nil {
		return nil, wasmerr.Trap(wasmerr.TrapInternalAssert, nil, "module has no linked code image")
	}
	if int(def) >= len(img.FuncRanges) {
		return nil, wasmerr.Trap(wasmerr.TrapInternalAssert, nil, "function %d out of range of linked image", def)
	}
	fr := img.FuncRanges[def]
	text := img.TextBytes()[fr.Start:fr.End]
	body, err := decodeText(text)
	if err != nil {
		return nil, wasmerr.CodeGen("decode linked text", err)
	}

	ts, _ := inst.TrapStack.(*trap.Stack)
	if ts != nil {
		if ts.Depth() >= trap.MaxDepth {
			return nil, wasmerr.Trap(wasmerr.TrapStackOverflow, nil, "call depth exceeds %d", trap.MaxDepth)
		}
		ts.Push(trap.Frame{FuncIndex: idx})
		defer ts.Pop()
	}

	res, err := run(inst, body, args)
	if err != nil && ts != nil {
		attachBacktrace(err, ts)
	}
	return res, err
}

// attachBacktrace fills in a wasmerr trap's Backtrace field from ts, if
// err is one of ours and doesn't already carry one (a nested Invoke
// further down the Go call stack already attached it on the way out).
func attachBacktrace(err error, ts *trap.Stack) {
	we, ok := err.(*wasmerr.Error)
	if !ok || we.Kind != wasmerr.KindTrap || we.Backtrace != nil {
		return
	}
	we.Backtrace = ts.Snapshot()
}

// nullFor returns the null sentinel matching a ref.null heap type byte,
// recorded in instr.A by decode.go's case 0xd0.
func nullFor(heapType int64) vm.VMVal {
	if wasm.ValueType(heapType) == wasm.ValueTypeExternref {
		return vm.NullExternRef
	}
	return vm.NullFuncRef
}

// frame is the mutable state one run call operates on: the Instance, the
// locals and the operand stack, plus the pop/push/squash helpers run's
// main switch uses. Factored out so exec_mem.go/exec_arith.go/
// exec_builtin.go can take it as a single argument instead of three.
type frame struct {
	inst   *vm.Instance
	locals []vm.VMVal
	stack  []vm.VMVal
}

func (f *frame) pop() vm.VMVal {
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

func (f *frame) popN(n int) []vm.VMVal {
	v := append([]vm.VMVal(nil), f.stack[len(f.stack)-n:]...)
	f.stack = f.stack[:len(f.stack)-n]
	return v
}

func (f *frame) push(v vm.VMVal) { f.stack = append(f.stack, v) }

// squash implements the drop<<32|results branch convention decode.go
// computed ahead of time: keep the top `results` values, discard the
// `drop` values immediately below them.
func (f *frame) squash(packed int64) {
	drop := int(uint32(packed >> 32))
	results := int(uint32(packed))
	if drop == 0 {
		return
	}
	top := f.stack[len(f.stack)-results:]
	rest := f.stack[:len(f.stack)-results-drop]
	f.stack = append(rest, top...)
}

// run interprets body's IR against inst with args as the function's
// incoming parameters, returning its result values. It is a plain
// stack-machine loop: a Go slice for the operand stack, a Go slice for
// locals, a program counter stepping through body.ir. There is no
// separate native call stack to manage -- a nested Invoke call recurses
// through the Go call stack, and backtraces come from the explicit
// trap.Stack that Invoke pushes to around each call (see internal/trap's
// package doc for why this backend does not also hand-roll a
// CallThreadState).
func run(inst *vm.Instance, body *compiledBody, args []vm.VMVal) ([]vm.VMVal, error) {
	locals := make([]vm.VMVal, body.numLocals)
	for i := 0; i < body.numParams && i < len(args); i++ {
		locals[i] = args[i]
	}
	for i := body.numParams; i < len(body.localTypes); i++ {
		switch body.localTypes[i] {
		case wasm.ValueTypeFuncref:
			locals[i] = vm.NullFuncRef
		case wasm.ValueTypeExternref:
			locals[i] = vm.NullExternRef
		}
	}
	f := &frame{inst: inst, locals: locals, stack: make([]vm.VMVal, 0, 16)}

	pc := 0
	for pc < len(body.ir) {
		in := body.ir[pc]
		switch in.Op {
		case opUnreachable:
			return nil, wasmerr.Trap(wasmerr.TrapUnreachable, nil, "unreachable executed")
		case opTrap:
			return nil, wasmerr.Trap(wasmerr.TrapKind(in.A), nil, "")
		case opNop, opBlockMarker:
			// no-op

		case opIfFalse:
			if f.pop().I32() == 0 {
				pc = int(in.A)
				continue
			}
		case opBr:
			f.squash(in.B)
			pc = int(in.A)
			continue
		case opBrIf:
			if f.pop().I32() != 0 {
				f.squash(in.B)
				pc = int(in.A)
				continue
			}
		case opBrTable:
			idx := uint32(f.pop().I32())
			count := uint32(in.A)
			if idx >= count {
				idx = count - 1 // last entry is br_table's default target
			}
			entry := body.ir[pc+1+int(idx)]
			f.squash(entry.B)
			pc = int(entry.A)
			continue
		case opBrTableEntry:
			// Never reached directly: opBrTable jumps straight to the
			// chosen entry's own target rather than falling through.
		case opReturn:
			return f.popN(int(in.B)), nil

		case opCall:
			idx := wasm.FuncIndex(in.A)
			ft := inst.Module.FuncType(idx)
			callArgs := f.popN(len(ft.Params))
			res, err := Invoke(inst, idx, callArgs)
			if err != nil {
				return nil, err
			}
			for _, v := range res {
				f.push(v)
			}
		case opCallIndirect:
			res, err := execCallIndirect(f, in)
			if err != nil {
				return nil, err
			}
			for _, v := range res {
				f.push(v)
			}

		case opDrop:
			f.pop()
		case opSelect:
			c := f.pop()
			b := f.pop()
			a := f.pop()
			if c.I32() != 0 {
				f.push(a)
			} else {
				f.push(b)
			}

		case opLocalGet:
			f.push(locals[in.A])
		case opLocalSet:
			locals[in.A] = f.pop()
		case opLocalTee:
			locals[in.A] = f.stack[len(f.stack)-1]

		case opGlobalGet:
			f.push(inst.GlobalRef(wasm.GlobalIndex(in.A)).Get())
		case opGlobalSet:
			inst.GlobalRef(wasm.GlobalIndex(in.A)).Set(f.pop())

		case opI32Const:
			f.push(vm.I32(int32(in.A)))
		case opI64Const:
			f.push(vm.I64(in.A))
		case opF32Const:
			f.push(vm.F32(math.Float32frombits(uint32(in.A))))
		case opF64Const:
			f.push(vm.F64(math.Float64frombits(uint64(in.A))))

		case opRefNull:
			f.push(nullFor(in.A))
		case opRefIsNull:
			v := f.pop()
			// See DESIGN.md: without static type tracking through the IR,
			// this backend can only test the funcref-null sentinel.
			if v.IsNullFuncRef() {
				f.push(vm.I32(1))
			} else {
				f.push(vm.I32(0))
			}
		case opRefFunc:
			f.push(vm.FuncRef(inst.FuncRefOf(wasm.FuncIndex(in.A))))

		case opCallBuiltin:
			if err := execBuiltin(f, in); err != nil {
				return nil, err
			}

		default:
			if isMemOp(in.Op) {
				if err := execMemOp(f, in); err != nil {
					return nil, err
				}
			} else {
				if err := execArith(f, in); err != nil {
					return nil, err
				}
			}
		}
		pc++
	}
	if len(f.stack) < body.numResults {
		return f.stack, nil
	}
	return f.stack[len(f.stack)-body.numResults:], nil
}

func execCallIndirect(f *frame, in instr) ([]vm.VMVal, error) {
	inst := f.inst
	tableIdx := wasm.TableIndex(in.A)
	interned := wasm.InternedTypeIndex(in.B)
	elemIdx := f.pop()
	t, err := inst.Table(tableIdx)
	if err != nil {
		return nil, err
	}
	slotVal, err := t.Get(uint64(uint32(elemIdx.I32())))
	if err != nil {
		return nil, err
	}
	if slotVal.IsNullFuncRef() {
		return nil, wasmerr.Trap(wasmerr.TrapIndirectCallNull, nil, "call_indirect to null table element")
	}
	fidx, ok := inst.FuncIndexForRef(slotVal.FuncRefIdx())
	if !ok {
		return nil, wasmerr.Trap(wasmerr.TrapIndirectCallNull, nil, "call_indirect table element does not name a function")
	}
	if inst.Module.FuncTypeIndex(fidx) != interned {
		return nil, wasmerr.Trap(wasmerr.TrapBadSignature, nil, "call_indirect signature mismatch")
	}
	ft := inst.Module.FuncType(fidx)
	callArgs := f.popN(len(ft.Params))
	return Invoke(inst, fidx, callArgs)
}
