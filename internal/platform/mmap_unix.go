//go:build linux || darwin

package platform

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

func osPageSize() int {
	return os.Getpagesize()
}

func mmapReserve(size int) ([]byte, error) {
	// PROT_NONE: a pure reservation. Grow commits pages into it with
	// mprotect, mirroring how a real guest-memory allocator avoids
	// committing the full (often multi-GiB) address-space reservation a
	// Wasm memory's declared maximum implies.
	data, err := unix.Mmap(-1, 0, size, unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func mmapCommit(data []byte, oldLen, newLen int) error {
	return unix.Mprotect(data[:newLen], unix.PROT_READ|unix.PROT_WRITE)
}

func mmapRelease(data []byte) error {
	return unix.Munmap(data)
}

func mmapCodeSegment(r io.Reader, size int) ([]byte, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, data); err != nil {
		_ = unix.Munmap(data)
		return nil, err
	}
	return data, nil
}

func munmapCodeSegment(code []byte) error {
	return unix.Munmap(code)
}

// protectExecutable makes code[:textLen] read+execute and code[textLen:]
// read-only (spec §3 "publish").
func protectExecutable(code []byte, textLen int) error {
	if textLen > 0 {
		if err := unix.Mprotect(code[:textLen], unix.PROT_READ|unix.PROT_EXEC); err != nil {
			return err
		}
	}
	if textLen < len(code) {
		if err := unix.Mprotect(code[textLen:], unix.PROT_READ); err != nil {
			return err
		}
	}
	return nil
}
