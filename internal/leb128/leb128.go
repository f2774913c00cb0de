// Package leb128 decodes and encodes the variable-length integer encodings
// used throughout the Wasm binary format. Adapted from the teacher's
// internal/leb128 package: same function shapes, generalised to also carry
// byte-offset information needed for §4.9 diagnostics.
package leb128

import (
	"errors"
	"io"
	"math/bits"
)

// ErrOverflow is returned when a LEB128 value does not fit in the target
// integer width within the maximum number of continuation bytes.
var ErrOverflow = errors.New("leb128: overflow")

// DecodeUint32 reads an unsigned LEB128-encoded uint32, returning the value
// and the number of bytes consumed.
func DecodeUint32(r io.ByteReader) (uint32, uint64, error) {
	v, n, err := decodeUint(r, 32)
	return uint32(v), n, err
}

// DecodeUint64 reads an unsigned LEB128-encoded uint64.
func DecodeUint64(r io.ByteReader) (uint64, uint64, error) {
	return decodeUint(r, 64)
}

func decodeUint(r io.ByteReader, width int) (uint64, uint64, error) {
	var result uint64
	var shift uint
	var n uint64
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, n, err
		}
		n++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			if shift >= uint(width) || (shift+7 > uint(width) && b>>(uint(width)-shift) != 0) {
				return 0, n, ErrOverflow
			}
			return result, n, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, n, ErrOverflow
		}
	}
}

// DecodeInt32 reads a signed LEB128-encoded int32.
func DecodeInt32(r io.ByteReader) (int32, uint64, error) {
	v, n, err := decodeInt(r, 32)
	return int32(v), n, err
}

// DecodeInt64 reads a signed LEB128-encoded int64.
func DecodeInt64(r io.ByteReader) (int64, uint64, error) {
	return decodeInt(r, 64)
}

func decodeInt(r io.ByteReader, width int) (int64, uint64, error) {
	var result int64
	var shift uint
	var n uint64
	var b byte
	var err error
	for {
		b, err = r.ReadByte()
		if err != nil {
			return 0, n, err
		}
		n++
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= 64 {
			return 0, n, ErrOverflow
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	if width < 64 {
		// Sign-extend from width bits into the full int64, then verify it
		// round-trips: callers that asked for 32 bits get a value that
		// fits an int32.
		s := int64(64 - width)
		check := result << s >> s
		if check != result {
			return 0, n, ErrOverflow
		}
	}
	return result, n, nil
}

// EncodeUint32 appends the unsigned LEB128 encoding of v to dst.
func EncodeUint32(dst []byte, v uint32) []byte { return EncodeUint64(dst, uint64(v)) }

// EncodeUint64 appends the unsigned LEB128 encoding of v to dst.
func EncodeUint64(dst []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			dst = append(dst, b|0x80)
		} else {
			dst = append(dst, b)
			return dst
		}
	}
}

// EncodeInt32 appends the signed LEB128 encoding of v to dst.
func EncodeInt32(dst []byte, v int32) []byte { return EncodeInt64(dst, int64(v)) }

// EncodeInt64 appends the signed LEB128 encoding of v to dst.
func EncodeInt64(dst []byte, v int64) []byte {
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			more = false
		} else {
			b |= 0x80
		}
		dst = append(dst, b)
	}
	return dst
}

// SizeUint32 returns the number of bytes EncodeUint32 would write.
func SizeUint32(v uint32) int {
	if v == 0 {
		return 1
	}
	return (bits.Len32(v) + 6) / 7
}
