// Package encoding defines the entry array wire layout shared by the host
// mirror, snapshot files and device kernels.
//
// Each entry is stride bytes: a little-endian int32 key followed by the
// value record (stride-KeySize bytes). Entries sharing a bucket are stored
// contiguously in ascending key order.
package encoding

import "encoding/binary"

// KeySize is the byte size of the key prefix of every entry.
const KeySize = 4

// Stride returns the entry size for a value record of valueSize bytes.
func Stride(valueSize int) int {
	return KeySize + valueSize
}

// PutKey writes key into the entry at position pos.
func PutKey(buf []byte, pos, stride int, key int32) {
	binary.LittleEndian.PutUint32(buf[pos*stride:], uint32(key))
}

// Key reads the key of the entry at position pos.
func Key(buf []byte, pos, stride int) int32 {
	return int32(binary.LittleEndian.Uint32(buf[pos*stride:]))
}

// Value returns the value bytes of the entry at position pos.
// The slice aliases buf.
func Value(buf []byte, pos, stride int) []byte {
	off := pos * stride
	return buf[off+KeySize : off+stride]
}

// Entry returns the whole entry at position pos. The slice aliases buf.
func Entry(buf []byte, pos, stride int) []byte {
	off := pos * stride
	return buf[off : off+stride]
}

// PutIndex writes a little-endian uint32 index record at slot i.
func PutIndex(buf []byte, i int, rec uint32) {
	binary.LittleEndian.PutUint32(buf[i*4:], rec)
}

// Index reads the little-endian uint32 index record at slot i.
func Index(buf []byte, i int) uint32 {
	return binary.LittleEndian.Uint32(buf[i*4:])
}

// FindKey searches the bucket range [start, start+length) for key and
// returns the position of its leftmost occurrence.
//
// Length 1 is compared directly. Longer ranges use a lower-bound binary
// search, so when equal keys are stored the first one in storage order is
// returned. The range must be sorted ascending by key.
func FindKey(buf []byte, stride, start, length int, key int32) (int, bool) {
	if length == 1 {
		return start, Key(buf, start, stride) == key
	}
	lo, hi := start, start+length
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if Key(buf, mid, stride) < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < start+length && Key(buf, lo, stride) == key {
		return lo, true
	}
	return 0, false
}
