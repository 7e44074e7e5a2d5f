// Package slot provides the bucket hash and the bit-packed index record
// shared by the table builder, the host lookup and the device kernels.
//
// Index record layout (one uint32 per bucket):
//
//	bits 31..24  bucket length (1..255)
//	bits 23..0   start offset into the entry array
//
// An all-ones word marks an empty bucket. A populated record can never equal
// it: start+length never exceeds MaxEntries, so length 255 implies a start
// offset of at most MaxEntries-255.
package slot

const (
	// Empty is the index record of a bucket with no entries.
	Empty = ^uint32(0)

	// Multiplier is the fixed hash constant. Device kernels recompute the
	// hash with the same value and must agree bit for bit.
	Multiplier = 10

	lengthShift = 24
	offsetMask  = uint32(1)<<lengthShift - 1

	// MaxLength is the largest bucket length the 8-bit field can hold.
	MaxLength = 255

	// MaxEntries bounds the entry array so every start offset fits in 24 bits.
	MaxEntries = 1 << lengthShift
)

// Hash maps a key to its bucket in [0, tableSize).
// The multiply wraps modulo 2^32. Panics if tableSize is 0.
func Hash(key int32, tableSize uint32) uint32 {
	return uint32(key) * Multiplier % tableSize
}

// Pack encodes a bucket's start offset and length.
// Callers guarantee start < MaxEntries and 1 <= length <= MaxLength.
func Pack(start, length uint32) uint32 {
	return length<<lengthShift | start&offsetMask
}

// Unpack decodes a record produced by Pack. The result is meaningless for Empty.
func Unpack(rec uint32) (start, length uint32) {
	return rec & offsetMask, rec >> lengthShift
}

// Grow returns rec with its length incremented by one.
// Callers check Length(rec) < MaxLength first.
func Grow(rec uint32) uint32 {
	return rec + 1<<lengthShift
}

// Length returns the bucket length of rec, or 0 for Empty.
func Length(rec uint32) uint32 {
	if rec == Empty {
		return 0
	}
	return rec >> lengthShift
}
