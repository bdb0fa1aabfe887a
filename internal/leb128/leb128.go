// Package leb128 implements the variable-length integer and fixed-width
// float encodings used throughout the Wasm binary format.
//
// Wasm's signed LEB128 is sign-extended, not the zig-zag varint
// encoding.google.golang.org/protobuf or encoding/binary.Varint use, so
// these codecs cannot be built on top of the standard library's varint
// helpers; they are hand-rolled against the exact byte sequences the
// format mandates.
package leb128

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeUint32 encodes v as unsigned LEB128.
func EncodeUint32(v uint32) []byte {
	return EncodeUint64(uint64(v))
}

// EncodeUint64 encodes v as unsigned LEB128.
func EncodeUint64(v uint64) []byte {
	out := make([]byte, 0, 10)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

// EncodeInt32 encodes v as signed LEB128.
func EncodeInt32(v int32) []byte {
	return EncodeInt64(int64(v))
}

// EncodeInt64 encodes v as signed LEB128.
func EncodeInt64(v int64) []byte {
	out := make([]byte, 0, 10)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			out = append(out, b)
			return out
		}
		out = append(out, b|0x80)
	}
}

// LoadUint32 decodes an unsigned LEB128 value from the head of buf,
// returning the value and the number of bytes consumed.
func LoadUint32(buf []byte) (uint32, uint64, error) {
	v, n, err := LoadUint64(buf)
	if err != nil {
		return 0, 0, err
	}
	if n > 5 {
		return 0, 0, fmt.Errorf("invalid uint32 leb128: longer than 5 bytes")
	}
	if v > math.MaxUint32 {
		return 0, 0, fmt.Errorf("overflows uint32: %d", v)
	}
	return uint32(v), n, nil
}

// LoadUint64 decodes an unsigned LEB128 value from the head of buf.
func LoadUint64(buf []byte) (uint64, uint64, error) {
	var result uint64
	var shift uint
	for i := 0; ; i++ {
		if i >= len(buf) {
			return 0, 0, fmt.Errorf("buffer too short")
		}
		if i == 9 && buf[i]&0xfe != 0 {
			return 0, 0, fmt.Errorf("invalid uint64 leb128: overflow")
		}
		b := buf[i]
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, uint64(i + 1), nil
		}
		shift += 7
	}
}

// LoadInt32 decodes a signed LEB128 value from the head of buf.
func LoadInt32(buf []byte) (int32, uint64, error) {
	v, n, err := LoadInt64(buf)
	if err != nil {
		return 0, 0, err
	}
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0, 0, fmt.Errorf("overflows int32: %d", v)
	}
	return int32(v), n, nil
}

// LoadInt64 decodes a signed LEB128 value from the head of buf.
func LoadInt64(buf []byte) (int64, uint64, error) {
	var result int64
	var shift uint
	var b byte
	i := 0
	for {
		if i >= len(buf) {
			return 0, 0, fmt.Errorf("buffer too short")
		}
		b = buf[i]
		result |= int64(b&0x7f) << shift
		shift += 7
		i++
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, uint64(i), nil
}

// DecodeInt33AsInt64 decodes a 33-bit signed LEB128 (the encoding used for
// block types and memory offsets that are defined as s33 in the spec) from
// r, widened to int64. It mirrors the read-from-a-stream shape the
// teacher's decoder uses for block-type immediates.
func DecodeInt33AsInt64(r interface {
	ReadByte() (byte, error)
}) (int64, uint64, error) {
	var result int64
	var shift uint
	var b byte
	var n uint64
	for {
		var err error
		b, err = r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		n++
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 33 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, n, nil
}

// EncodeF32 encodes v as little-endian IEEE-754 binary32.
func EncodeF32(v float32) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, math.Float32bits(v))
	return out
}

// DecodeF32 decodes a little-endian IEEE-754 binary32 from the head of buf.
func DecodeF32(buf []byte) (float32, error) {
	if len(buf) < 4 {
		return 0, fmt.Errorf("buffer too short for f32")
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(buf)), nil
}

// EncodeF64 encodes v as little-endian IEEE-754 binary64.
func EncodeF64(v float64) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, math.Float64bits(v))
	return out
}

// DecodeF64 decodes a little-endian IEEE-754 binary64 from the head of buf.
func DecodeF64(buf []byte) (float64, error) {
	if len(buf) < 8 {
		return 0, fmt.Errorf("buffer too short for f64")
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
}
