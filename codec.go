package gpudict

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// Codec converts a fixed-size value record to and from its device layout.
//
// Size must be constant for the lifetime of the codec. Encode writes exactly
// Size bytes to dst and Decode reads exactly Size bytes from src; both are
// given slices of at least that length. Build calls Encode from several
// goroutines when WithWorkers is set, so codecs must be stateless or
// otherwise safe for concurrent use.
type Codec[T any] interface {
	Size() int
	Encode(dst []byte, v T)
	Decode(src []byte) T
}

// Fixed returns a codec that copies the in-memory representation of T.
//
// T must be a plain fixed-layout value: numbers, bools, arrays and structs
// of those, with no pointers, slices, strings, maps or interfaces. The bytes
// are native-endian, which matches the device on little-endian hosts
// (amd64, arm64). The record size is unsafe.Sizeof(T), padding included, so
// a shader-side struct must declare the same layout.
func Fixed[T any]() Codec[T] {
	var zero T
	return fixedCodec[T]{size: int(unsafe.Sizeof(zero))}
}

type fixedCodec[T any] struct {
	size int
}

func (c fixedCodec[T]) Size() int { return c.size }

func (c fixedCodec[T]) Encode(dst []byte, v T) {
	copy(dst[:c.size], unsafe.Slice((*byte)(unsafe.Pointer(&v)), c.size))
}

func (c fixedCodec[T]) Decode(src []byte) T {
	var v T
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&v)), c.size), src[:c.size])
	return v
}

// Scalar codecs. All are little-endian.
var (
	Int32Codec   Codec[int32]   = int32Codec{}
	Uint32Codec  Codec[uint32]  = uint32Codec{}
	Float32Codec Codec[float32] = float32Codec{}
	Uint64Codec  Codec[uint64]  = uint64Codec{}
	Float64Codec Codec[float64] = float64Codec{}
)

type int32Codec struct{}

func (int32Codec) Size() int                  { return 4 }
func (int32Codec) Encode(dst []byte, v int32) { binary.LittleEndian.PutUint32(dst, uint32(v)) }
func (int32Codec) Decode(src []byte) int32    { return int32(binary.LittleEndian.Uint32(src)) }

type uint32Codec struct{}

func (uint32Codec) Size() int                   { return 4 }
func (uint32Codec) Encode(dst []byte, v uint32) { binary.LittleEndian.PutUint32(dst, v) }
func (uint32Codec) Decode(src []byte) uint32    { return binary.LittleEndian.Uint32(src) }

type float32Codec struct{}

func (float32Codec) Size() int { return 4 }
func (float32Codec) Encode(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}
func (float32Codec) Decode(src []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(src))
}

type uint64Codec struct{}

func (uint64Codec) Size() int                   { return 8 }
func (uint64Codec) Encode(dst []byte, v uint64) { binary.LittleEndian.PutUint64(dst, v) }
func (uint64Codec) Decode(src []byte) uint64    { return binary.LittleEndian.Uint64(src) }

type float64Codec struct{}

func (float64Codec) Size() int { return 8 }
func (float64Codec) Encode(dst []byte, v float64) {
	binary.LittleEndian.PutUint64(dst, math.Float64bits(v))
}
func (float64Codec) Decode(src []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(src))
}

// RawCodec returns a codec for value records handled as raw bytes of the
// given size. Encode copies at most size bytes and zero-fills the rest;
// Decode returns a copy. It suits tools that inspect tables without knowing
// the record type.
func RawCodec(size int) Codec[[]byte] {
	return rawCodec{size: size}
}

type rawCodec struct {
	size int
}

func (c rawCodec) Size() int { return c.size }

func (c rawCodec) Encode(dst []byte, v []byte) {
	n := copy(dst[:c.size], v)
	clear(dst[n:c.size])
}

func (c rawCodec) Decode(src []byte) []byte {
	return append([]byte(nil), src[:c.size]...)
}
