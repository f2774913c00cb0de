//go:build windows

package platform

import (
	"io"
	"unsafe"

	"golang.org/x/sys/windows"
)

func osPageSize() int {
	var si windows.SystemInfo
	windows.GetSystemInfo(&si)
	if si.PageSize == 0 {
		return 4096
	}
	return int(si.PageSize)
}

func mmapReserve(size int) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func mmapCommit(data []byte, oldLen, newLen int) error {
	base := uintptr(unsafe.Pointer(&data[0]))
	_, err := windows.VirtualAlloc(base, uintptr(newLen), windows.MEM_COMMIT, windows.PAGE_READWRITE)
	return err
}

func mmapRelease(data []byte) error {
	base := uintptr(unsafe.Pointer(&data[0]))
	return windows.VirtualFree(base, 0, windows.MEM_RELEASE)
}

func mmapCodeSegment(r io.Reader, size int) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, err
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	if _, err := io.ReadFull(r, data); err != nil {
		base := uintptr(unsafe.Pointer(&data[0]))
		_ = windows.VirtualFree(base, 0, windows.MEM_RELEASE)
		return nil, err
	}
	return data, nil
}

func munmapCodeSegment(code []byte) error {
	base := uintptr(unsafe.Pointer(&code[0]))
	return windows.VirtualFree(base, 0, windows.MEM_RELEASE)
}

func protectExecutable(code []byte, textLen int) error {
	var old uint32
	if textLen > 0 {
		if err := windows.VirtualProtect(uintptr(unsafe.Pointer(&code[0])), uintptr(textLen), windows.PAGE_EXECUTE_READ, &old); err != nil {
			return err
		}
	}
	if textLen < len(code) {
		if err := windows.VirtualProtect(uintptr(unsafe.Pointer(&code[textLen])), uintptr(len(code)-textLen), windows.PAGE_READONLY, &old); err != nil {
			return err
		}
	}
	return nil
}
