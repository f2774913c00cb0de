package vm

import (
	"fmt"
	"unsafe"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/platform"
)

// WasmPageSize is the Wasm linear-memory page unit (spec §3 Memory).
const WasmPageSize = 64 * 1024

// Memory is a single linear memory backing a Memory definition (spec
// §3 Memory, §4.4 allocation step). Built on platform.Mmap so growth never
// copies: the full declared maximum (or a conservative default when a
// memory declares none) is reserved up front and Grow only commits pages.
type Memory struct {
	mm       *platform.Mmap
	maxBytes uint64
	is64     bool
}

// maxReservationPages is the reservation used for a memory that declares no
// maximum, matching the teacher's own "unbounded memories still get a
// sensible address-space reservation" stance rather than reserving 2^32
// bytes speculatively for every module.
const maxReservationPages = 1 << 14 // 1 GiB across 64KiB pages

// NewMemory reserves (but does not commit) a linear memory sized between
// minPages and maxPages (spec §3 Memory "Min, Max (page units)").
func NewMemory(minPages, maxPages uint64, hasMax, is64 bool) (*Memory, error) {
	reservePages := maxPages
	if !hasMax {
		reservePages = maxReservationPages
		if minPages > reservePages {
			reservePages = minPages
		}
	}
	mm, err := platform.ReserveMmap(int(reservePages * WasmPageSize))
	if err != nil {
		return nil, fmt.Errorf("reserve memory: %w", err)
	}
	m := &Memory{mm: mm, maxBytes: reservePages * WasmPageSize, is64: is64}
	if minPages > 0 {
		if err := m.mm.Grow(int(minPages * WasmPageSize)); err != nil {
			m.mm.Unmap()
			return nil, fmt.Errorf("commit initial memory pages: %w", err)
		}
	}
	return m, nil
}

// Bytes returns the committed linear memory bytes.
func (m *Memory) Bytes() []byte { return m.mm.Bytes() }

// PageCount returns the current size in Wasm pages.
func (m *Memory) PageCount() uint64 { return uint64(m.mm.Len()) / WasmPageSize }

// Grow grows the memory by delta pages, returning the previous page count,
// or -1 if the growth would exceed the reserved maximum (spec §3 Memory
// invariant: "growth beyond Max fails without trapping the caller -- the
// memory.grow instruction observes -1").
func (m *Memory) Grow(delta uint64) int64 {
	old := m.PageCount()
	newLen := (old + delta) * WasmPageSize
	if newLen > m.maxBytes {
		return -1
	}
	if err := m.mm.Grow(int(newLen)); err != nil {
		return -1
	}
	return int64(old)
}

// BasePtr returns the address vmcontext.WriteDefinedMemory/WriteImportedMemory
// record: the first byte of the committed region. Compiled code computes
// every load/store address as BasePtr + offset, bounds-checked against the
// paired length field (spec §3 VMContext "defined memories").
func (m *Memory) BasePtr() uint64 {
	if len(m.mm.Bytes()) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&m.mm.Bytes()[0])))
}

// Close releases the reservation (spec §4.4 "memory deallocation is
// infallible by contract").
func (m *Memory) Close() { m.mm.Unmap() }
