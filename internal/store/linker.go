package store

import (
	"fmt"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/vm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
)

// Linker is a name-interned (module, name) -> Extern registry (spec §4.6
// "linker... resolves each (module, name) import against a registry of
// previously instantiated modules"). Instantiate resolves a Module's
// imports by snapshotting the registry at call time: a later Define
// against a name a Module already imported from does not retroactively
// change what that Module sees, since the Extern was copied into the
// Instance's own imports slice at instantiation, not referenced live.
type Linker struct {
	defs map[string]map[string]vm.Extern
}

func NewLinker() *Linker {
	return &Linker{defs: map[string]map[string]vm.Extern{}}
}

// Define registers a single name under moduleName, failing if the name is
// already taken (spec §4.6 "duplicate definition is a linker error, not a
// silent overwrite").
func (l *Linker) Define(moduleName, name string, e vm.Extern) error {
	names, ok := l.defs[moduleName]
	if !ok {
		names = map[string]vm.Extern{}
		l.defs[moduleName] = names
	}
	if _, exists := names[name]; exists {
		return fmt.Errorf("store: %s.%s already defined", moduleName, name)
	}
	names[name] = e
	return nil
}

// DefineInstance aliases every export of inst under moduleName, the
// "instantiate and link by module name" pattern most embedders use
// instead of defining individual host functions one at a time.
func (l *Linker) DefineInstance(moduleName string, inst *vm.Instance) error {
	for _, exp := range inst.Module.ExportSection {
		e, err := ExternFor(inst, exp)
		if err != nil {
			return fmt.Errorf("store: alias %s.%s: %w", moduleName, exp.Name, err)
		}
		if err := l.Define(moduleName, exp.Name, e); err != nil {
			return err
		}
	}
	return nil
}

// AliasModule copies every name currently defined under from into to, as
// of this call (spec §4.6's snapshot-at-call-time semantics): later
// Define calls against from are not retroactively visible under to, and
// vice versa, since the two module names now own independent copies of
// the map entries.
func (l *Linker) AliasModule(from, to string) error {
	names, ok := l.defs[from]
	if !ok {
		return fmt.Errorf("store: alias_module: no definitions registered under %q", from)
	}
	copied := make(map[string]vm.Extern, len(names))
	for k, v := range names {
		copied[k] = v
	}
	l.defs[to] = copied
	return nil
}

func (l *Linker) lookup(moduleName, name string) (vm.Extern, bool) {
	names, ok := l.defs[moduleName]
	if !ok {
		return vm.Extern{}, false
	}
	e, ok := names[name]
	return e, ok
}

// Lookup resolves a single (moduleName, name) pair against the registry
// without instantiating anything, the same lookup Instantiate performs
// per import -- exposed for embedders (and tests) that want to inspect
// or re-export a definition directly, e.g. confirming that an aliased
// module name resolves to the same Extern as its original.
func (l *Linker) Lookup(moduleName, name string) (vm.Extern, bool) {
	return l.lookup(moduleName, name)
}

// Instantiate resolves m's entire import section against the registry,
// then instantiates it through s (spec §4.6 "instantiate(module) -> walk
// the module's import section... append the resolved Extern"). A module
// referencing an unresolved (module, name) pair fails before any
// allocation happens.
func (l *Linker) Instantiate(s *Store, m *wasm.Module) (*vm.Instance, error) {
	imports := make([]vm.Extern, len(m.ImportSection))
	for i, imp := range m.ImportSection {
		e, ok := l.lookup(imp.Module, imp.Name)
		if !ok {
			return nil, fmt.Errorf("store: unresolved import %s.%s", imp.Module, imp.Name)
		}
		if e.Kind != imp.Kind {
			return nil, fmt.Errorf("store: import %s.%s: expected %s, registry has %s", imp.Module, imp.Name, imp.Kind, e.Kind)
		}
		imports[i] = e
	}
	return s.Instantiate(m, imports)
}
