package vm

import "github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"

// InstanceAllocator is the opaque capability §6 describes: allocate a
// VMContext block, allocate/deallocate a memory, allocate/deallocate a
// table. A caller supplies its own implementation to change the isolation
// strategy (e.g. a pooling allocator that reuses VMContext blocks across
// instantiations of the same Module); DefaultAllocator is the mmap-backed
// baseline every Store uses unless configured otherwise.
type InstanceAllocator interface {
	AllocateVMContext(plan *LayoutPlan) []byte
	AllocateMemory(t wasm.MemoryType) (*Memory, error)
	DeallocateMemory(m *Memory)
	AllocateTable(t wasm.TableType) (*Table, error)
	DeallocateTable(t *Table)
}

// DefaultAllocator reserves a virtual range via platform.Mmap for each
// memory (through NewMemory); VMContext blocks and tables are plain Go
// slices.
type DefaultAllocator struct{}

func (DefaultAllocator) AllocateVMContext(plan *LayoutPlan) []byte {
	return make([]byte, plan.TotalSize)
}

func (DefaultAllocator) AllocateMemory(t wasm.MemoryType) (*Memory, error) {
	max, hasMax := t.Limits.Max, t.Limits.HasMax
	return NewMemory(t.Limits.Min, max, hasMax, t.Is64)
}

func (DefaultAllocator) DeallocateMemory(m *Memory) { m.Close() }

func (DefaultAllocator) AllocateTable(t wasm.TableType) (*Table, error) {
	null := NullFuncRef
	if t.ElemType == wasm.ValueTypeExternref {
		null = NullExternRef
	}
	return NewTable(t.Limits.Min, t.Limits.Max, t.Limits.HasMax, null), nil
}

func (DefaultAllocator) DeallocateTable(*Table) {
	// Backed by a plain Go slice: nothing to release explicitly, the
	// garbage collector reclaims it once the Instance drops its reference.
}
