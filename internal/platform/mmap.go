// Package platform implements the reservable, growable, page-permissioned
// byte regions that back guest memories, tables, and compiled code images
// (spec §3 "Guest-memory primitives", §6 InstanceAllocator capability).
// Modeled on the teacher's internal/platform package: a small portable
// surface (Mmap/MmapCodeSegment/MunmapCodeSegment/PageSize) with the
// syscalls isolated behind build-tagged files.
package platform

import (
	"fmt"
)

// PageSize is the host page size, used to round every reservation up to a
// page boundary so mprotect-granularity permission changes are always
// legal (spec §3 VMContext "padded to host-page size").
var PageSize = osPageSize()

// Mmap is a reserved virtual range with a base pointer, a reserved
// capacity, and a currently-committed length. Memory and Table (internal/
// vm) both embed one. Not safe for concurrent use; callers serialize
// access the same way a Store serializes everything else (spec §5).
type Mmap struct {
	// data is the full reserved range; only data[:committed] is backed by
	// real pages on platforms that distinguish reserve from commit.
	data      []byte
	committed int
}

// ReserveMmap reserves (but does not necessarily commit) a zero-initialised
// range of at least size bytes, rounded up to a page boundary.
func ReserveMmap(size int) (*Mmap, error) {
	if size < 0 {
		return nil, fmt.Errorf("platform: negative mmap size %d", size)
	}
	rounded := roundUpToPage(size)
	data, err := mmapReserve(rounded)
	if err != nil {
		return nil, fmt.Errorf("platform: reserve %d bytes: %w", rounded, err)
	}
	return &Mmap{data: data}, nil
}

// Bytes returns the currently committed bytes.
func (m *Mmap) Bytes() []byte { return m.data[:m.committed] }

// Cap returns the total reserved capacity.
func (m *Mmap) Cap() int { return len(m.data) }

// Len returns the currently committed length.
func (m *Mmap) Len() int { return m.committed }

// Grow commits additional pages so Len() >= newLen. newLen must not exceed
// Cap(). Returns an error (never panics) so callers can surface "memory
// out of bounds"/"table out of bounds" growth failures as ordinary Go
// errors (spec §3 Memory/Table invariant).
func (m *Mmap) Grow(newLen int) error {
	if newLen <= m.committed {
		return nil
	}
	if newLen > len(m.data) {
		return fmt.Errorf("platform: grow to %d exceeds reserved capacity %d", newLen, len(m.data))
	}
	if err := mmapCommit(m.data, m.committed, newLen); err != nil {
		return fmt.Errorf("platform: commit pages: %w", err)
	}
	m.committed = newLen
	return nil
}

// Unmap releases the entire reservation. Infallible by contract (spec §4.4
// "memory deallocation is infallible by contract"): a release error is
// discarded, not propagated, since there is no useful recovery once an
// Instance has decided to tear down.
func (m *Mmap) Unmap() {
	if m.data == nil {
		return
	}
	_ = mmapRelease(m.data)
	m.data = nil
	m.committed = 0
}

// CodeMemory owns a contiguous, page-aligned executable image: produced
// read/write, then published (text read+execute, everything else
// read-only) exactly once (spec §3 "CompiledCodeImage").
type CodeMemory struct {
	region    []byte
	published bool
}

// MmapCodeSegment copies size bytes from r into a fresh read/write mapping.
// Panics on a zero length, matching the teacher's own contract (engine.go
// callers never call this with an empty object).
func MmapCodeSegment(r readerLen, size int) ([]byte, error) {
	if size == 0 {
		panic("BUG: MmapCodeSegment with zero length")
	}
	return mmapCodeSegment(r, size)
}

// MunmapCodeSegment releases a mapping created by MmapCodeSegment. Panics
// on a zero-length slice.
func MunmapCodeSegment(code []byte) error {
	if len(code) == 0 {
		panic("BUG: MunmapCodeSegment with zero length")
	}
	return munmapCodeSegment(code)
}

// readerLen is the minimal interface MmapCodeSegment needs: io.Reader plus
// nothing else, but named distinctly so call sites read clearly.
type readerLen interface {
	Read(p []byte) (int, error)
}

// NewCodeMemory wraps an already-built, read/write image (produced by
// internal/compiler's object builder) so it can be Published.
func NewCodeMemory(region []byte) *CodeMemory {
	return &CodeMemory{region: region}
}

// Bytes returns the underlying region. Before Publish, it is read/write;
// after, text is executable and everything else read-only (callers must
// not mutate it).
func (c *CodeMemory) Bytes() []byte { return c.region }

// Publish makes textLen bytes at the start of the region read+execute and
// the remainder read-only (spec §3 "The image is first produced
// read/write, then published"). Idempotent: a second call is a no-op.
func (c *CodeMemory) Publish(textLen int) error {
	if c.published {
		return nil
	}
	if err := protectExecutable(c.region, textLen); err != nil {
		return fmt.Errorf("platform: publish code memory: %w", err)
	}
	c.published = true
	return nil
}

func roundUpToPage(n int) int {
	p := PageSize
	return (n + p - 1) &^ (p - 1)
}
