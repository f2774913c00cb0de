// Package store implements spec §4.6/§4.7's Store and call-dispatch layer:
// decoding a Wasm binary into a linked, instantiable Module, instantiating
// it against a Linker's resolved imports, and invoking its exports through
// internal/compiler/baseline's interpreter.
//
// There is deliberately no native-trampoline ABI here (resize value
// buffer, set/restore stack limit) the way a machine-code backend would
// need: this engine's "compiled code" is baseline's own bytecode run by a
// Go interpreter loop, so a host call is just a Go function call, and the
// Go runtime's own goroutine stack already is the stack baseline.Invoke
// recurses on. See DESIGN.md for why internal/trap does not hand-roll a
// CallThreadState to match.
package store

import (
	"bytes"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/compiler"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/compiler/baseline"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/enginecache"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/filecache"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/trap"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/vm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm/binary"
)

// Store owns every Instance created through it, so a caller can tear down
// a whole program (and its mmap'd memories/tables/code) with one Close
// call instead of tracking each Instance individually. It also owns the
// two-level compilation cache spec §4.2/SPEC_FULL §11 describes: an
// in-memory LRU of already-linked Modules, backed by an on-disk cache of
// linked-but-uninstantiated CompiledCodeImages.
type Store struct {
	instances []*vm.Instance
	images    []*compiler.CompiledCodeImage

	log    *logrus.Entry
	engine *enginecache.Cache
	disk   *filecache.Cache
}

// Option configures a Store at construction time, the functional-options
// pattern wazero's own Runtime/ModuleConfig use (SPEC_FULL §10).
type Option func(*Store)

// WithLogger routes diagnostics (cache hits/misses, start-function traps)
// through l instead of a bare logrus.StandardLogger entry.
func WithLogger(l *logrus.Entry) Option { return func(s *Store) { s.log = l } }

// WithEngineCache enables the in-memory compiled-module cache.
func WithEngineCache(c *enginecache.Cache) Option { return func(s *Store) { s.engine = c } }

// WithFileCache enables the on-disk linked-image cache.
func WithFileCache(c *filecache.Cache) Option { return func(s *Store) { s.disk = c } }

func New(opts ...Option) *Store {
	s := &Store{log: logrus.NewEntry(logrus.StandardLogger()).WithField("component", "store")}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Compile decodes wasmBytes (spec §4.1 translate) and links it (spec §4.2)
// into a Module ready to instantiate, consulting s's engine and file
// caches first and populating them on a miss. Keyed by the xxhash content
// hash of wasmBytes (internal/enginecache.HashKey), so two byte-identical
// binaries always share one cache entry regardless of source path.
func (s *Store) Compile(wasmBytes []byte) (*wasm.Module, error) {
	key := enginecache.HashKey(wasmBytes)
	if s.engine != nil {
		if m, ok := s.engine.Get(key); ok {
			s.log.WithField("key", key).Debug("engine cache hit")
			return m, nil
		}
	}

	tr, err := binary.Decode(bytes.NewReader(wasmBytes), wasm.CoreFeaturesV2)
	if err != nil {
		return nil, fmt.Errorf("store: translate: %w", err)
	}
	m := tr.Module

	var img *compiler.CompiledCodeImage
	if s.disk != nil {
		if cached, ok, err := s.disk.Load(key); err != nil {
			s.log.WithError(err).Warn("file cache load failed, recompiling")
		} else if ok {
			s.log.WithField("key", key).Debug("file cache hit")
			img = cached
		}
	}
	if img == nil {
		img, err = compiler.Link(baseline.New(), tr)
		if err != nil {
			return nil, fmt.Errorf("store: link: %w", err)
		}
		if s.disk != nil {
			if err := s.disk.Store(key, img.Code.Bytes()); err != nil {
				s.log.WithError(err).Warn("file cache store failed")
			}
		}
	}

	m.CompiledImage = img
	if s.engine != nil {
		s.engine.Put(key, m)
	}
	return m, nil
}

// Instantiate runs spec §4.4's new_unchecked against m with imports
// already resolved by the caller (typically via Linker.Instantiate,
// which resolves them from a name registry instead). The returned
// Instance is adopted by s and deallocated when s.Close is called; the
// module's start function, if any, is run before Instantiate returns.
func (s *Store) Instantiate(m *wasm.Module, imports []vm.Extern) (*vm.Instance, error) {
	inst, err := vm.NewInstance(vm.DefaultAllocator{}, m, imports, vm.NewBuiltinTable())
	if err != nil {
		return nil, err
	}
	inst.TrapStack = trap.NewStack()
	s.instances = append(s.instances, inst)
	if img, ok := m.CompiledImage.(*compiler.CompiledCodeImage); ok {
		s.images = append(s.images, img)
	}

	if m.StartFunc != nil {
		if _, err := baseline.Invoke(inst, *m.StartFunc, nil); err != nil {
			s.log.WithError(err).WithField("instance", inst.ID).Warn("start function trapped")
			return nil, fmt.Errorf("store: start function trapped: %w", err)
		}
	}
	return inst, nil
}

// Call invokes a defined or imported function of inst by index, routing
// through baseline's universal dispatch entry point (spec §4.7).
func Call(inst *vm.Instance, idx wasm.FuncIndex, args []vm.VMVal) ([]vm.VMVal, error) {
	return baseline.Invoke(inst, idx, args)
}

// ExternFor resolves one of inst's own exports into a vm.Extern, the form
// a Linker registers for other modules to import. Func externs close over
// inst, so a call arriving through the extern re-enters baseline.Invoke
// against the exporting instance regardless of which instance is calling.
func ExternFor(inst *vm.Instance, exp wasm.Export) (vm.Extern, error) {
	switch exp.Kind {
	case wasm.ExternKindFunc:
		idx := wasm.FuncIndex(exp.Index)
		return vm.Extern{
			Kind: wasm.ExternKindFunc,
			Func: vm.ExternFunc{
				TypeID: inst.Module.FuncTypeIndex(idx),
				HostCall: func(args []vm.VMVal) ([]vm.VMVal, error) {
					return baseline.Invoke(inst, idx, args)
				},
			},
		}, nil
	case wasm.ExternKindTable:
		t, err := inst.Table(wasm.TableIndex(exp.Index))
		if err != nil {
			return vm.Extern{}, err
		}
		return vm.Extern{Kind: wasm.ExternKindTable, Table: t}, nil
	case wasm.ExternKindMemory:
		mem, err := inst.MemoryAt(wasm.MemoryIndex(exp.Index))
		if err != nil {
			return vm.Extern{}, err
		}
		return vm.Extern{Kind: wasm.ExternKindMemory, Memory: mem}, nil
	case wasm.ExternKindGlobal:
		return vm.Extern{Kind: wasm.ExternKindGlobal, Global: inst.GlobalRef(wasm.GlobalIndex(exp.Index))}, nil
	default:
		return vm.Extern{}, fmt.Errorf("store: export %q has unknown kind %v", exp.Name, exp.Kind)
	}
}

// GetExport resolves one of inst's exports by name.
func GetExport(inst *vm.Instance, name string) (vm.Extern, error) {
	exp, ok := inst.Module.Exports[name]
	if !ok {
		return vm.Extern{}, fmt.Errorf("store: no export named %q", name)
	}
	return ExternFor(inst, exp)
}

// Close deallocates every Instance and releases every CompiledCodeImage's
// code memory this Store has ever produced, in the reverse order they
// were created, mirroring how stack-discipline teardown unwinds dependent
// instances before the modules they were linked against.
func (s *Store) Close() {
	for i := len(s.instances) - 1; i >= 0; i-- {
		s.instances[i].Close()
	}
	for i := len(s.images) - 1; i >= 0; i-- {
		_ = s.images[i].Close()
	}
	s.instances = nil
	s.images = nil
}
