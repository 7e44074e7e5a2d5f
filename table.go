package gpudict

import (
	"encoding/binary"
	"fmt"
	"iter"
	"slices"

	"github.com/bits-and-blooms/bitset"
	"github.com/google/uuid"

	gderrors "github.com/tamirms/gpudict/errors"
	"github.com/tamirms/gpudict/internal/encoding"
	"github.com/tamirms/gpudict/internal/slot"
)

// Stats describes the shape of a built table. It is used to tune the table
// size against the collision rate.
type Stats struct {
	TableSize             int // number of buckets
	StoredElementCount    int // number of entries
	TotalCollisions       int // entries beyond the first in each bucket
	MaxCollisionsInOneKey int // longest bucket length minus one
	EmptyBuckets          int
	ValueSize             int // bytes per value record
	Stride                int // bytes per entry (key + value)
}

// LoadFactor returns entries per bucket.
func (s Stats) LoadFactor() float64 {
	if s.TableSize == 0 {
		return 0
	}
	return float64(s.StoredElementCount) / float64(s.TableSize)
}

// Table is an immutable, host-resident hash table in device layout.
//
// Thread Safety: all methods are safe for concurrent use. A Table obtained
// from a Snapshot opened with Open aliases the mapped file and must not be
// used after the Snapshot is closed.
type Table[T any] struct {
	id      uuid.UUID
	codec   Codec[T]
	index   []uint32
	entries []byte
	stride  int
	stats   Stats
	mapped  bool // slices alias a memory-mapped snapshot
}

// ID returns the identifier assigned when the table was built.
func (t *Table[T]) ID() uuid.UUID {
	return t.id
}

// Stats returns the table's statistics.
func (t *Table[T]) Stats() Stats {
	return t.stats
}

// Len returns the number of stored entries.
func (t *Table[T]) Len() int {
	return t.stats.StoredElementCount
}

// TableSize returns the number of buckets.
func (t *Table[T]) TableSize() int {
	return len(t.index)
}

// Codec returns the value codec.
func (t *Table[T]) Codec() Codec[T] {
	return t.codec
}

// Index returns the index array, one packed record per bucket.
// The slice is shared with the table and must not be modified.
func (t *Table[T]) Index() []uint32 {
	return t.index
}

// Entries returns the entry array in device layout.
// The slice is shared with the table and must not be modified.
func (t *Table[T]) Entries() []byte {
	return t.entries
}

// IndexBytes returns a little-endian copy of the index array, ready for
// upload to a device buffer.
func (t *Table[T]) IndexBytes() []byte {
	buf := make([]byte, len(t.index)*4)
	for i, rec := range t.index {
		encoding.PutIndex(buf, i, rec)
	}
	return buf
}

// Bucket returns the entry range of bucket i. ok is false for an empty
// bucket or an out-of-range i.
func (t *Table[T]) Bucket(i int) (start, length int, ok bool) {
	if i < 0 || i >= len(t.index) || t.index[i] == slot.Empty {
		return 0, 0, false
	}
	s, l := slot.Unpack(t.index[i])
	return int(s), int(l), true
}

// Lookup returns the value stored for key.
// With duplicate keys the first occurrence in build input order is returned.
// A bucket whose range falls outside the entry array reads as a miss; use
// Snapshot.Lookup or Validate to surface that as ErrCorruptedTable.
func (t *Table[T]) Lookup(key int32) (T, bool) {
	v, ok, err := t.lookup(key)
	if err != nil {
		return v, false
	}
	return v, ok
}

// Contains reports whether key is stored.
func (t *Table[T]) Contains(key int32) bool {
	_, ok, err := t.find(key)
	return ok && err == nil
}

// LookupBytes returns the raw value bytes stored for key.
// The slice aliases the entry array.
func (t *Table[T]) LookupBytes(key int32) ([]byte, bool) {
	pos, ok, err := t.find(key)
	if !ok || err != nil {
		return nil, false
	}
	return encoding.Value(t.entries, pos, t.stride), true
}

func (t *Table[T]) lookup(key int32) (T, bool, error) {
	var zero T
	pos, ok, err := t.find(key)
	if !ok || err != nil {
		return zero, false, err
	}
	return t.codec.Decode(encoding.Value(t.entries, pos, t.stride)), true, nil
}

func (t *Table[T]) find(key int32) (int, bool, error) {
	if len(t.index) == 0 {
		return 0, false, nil
	}
	b := slot.Hash(key, uint32(len(t.index)))
	start, length, err := t.bucketRange(int(b))
	if err != nil || length == 0 {
		return 0, false, err
	}
	pos, ok := encoding.FindKey(t.entries, t.stride, start, length, key)
	return pos, ok, nil
}

// bucketRange returns the entry range of bucket b, with length 0 for an
// empty bucket. Records from a snapshot are untrusted until Validate, so
// the range is checked against the entry array before any read.
func (t *Table[T]) bucketRange(b int) (start, length int, err error) {
	rec := t.index[b]
	if rec == slot.Empty {
		return 0, 0, nil
	}
	s, l := slot.Unpack(rec)
	start, length = int(s), int(l)
	if start+length > t.stats.StoredElementCount || (start+length)*t.stride > len(t.entries) {
		return 0, 0, fmt.Errorf("%w: bucket %d range [%d, %d+%d) out of bounds", gderrors.ErrCorruptedTable, b, start, start, length)
	}
	return start, length, nil
}

// checkRanges verifies that every bucket range lies inside the entry array.
// It is the part of Validate that keeps readers of the table, host or
// device, from going out of bounds.
func (t *Table[T]) checkRanges() error {
	if n := t.stats.StoredElementCount; len(t.entries) != n*t.stride {
		return fmt.Errorf("%w: entry array is %d bytes, want %d", gderrors.ErrCorruptedTable, len(t.entries), n*t.stride)
	}
	for b := range t.index {
		if _, _, err := t.bucketRange(b); err != nil {
			return err
		}
	}
	return nil
}

// All iterates over the stored entries in storage order (by bucket, then key).
func (t *Table[T]) All() iter.Seq2[int32, T] {
	return func(yield func(int32, T) bool) {
		for pos := range t.stats.StoredElementCount {
			key := encoding.Key(t.entries, pos, t.stride)
			if !yield(key, t.codec.Decode(encoding.Value(t.entries, pos, t.stride))) {
				return
			}
		}
	}
}

// Validate checks the structural invariants of the table:
//   - every populated bucket references an in-bounds range
//   - ranges of different buckets never overlap and together cover every entry
//   - every entry hashes to the bucket that references it
//   - keys ascend within each bucket
//   - the collision counters match the index
//
// It returns ErrCorruptedTable describing the first violation found.
func (t *Table[T]) Validate() error {
	n := t.stats.StoredElementCount
	if len(t.index) == 0 || len(t.index) != t.stats.TableSize {
		return fmt.Errorf("%w: index has %d records, table size %d", gderrors.ErrCorruptedTable, len(t.index), t.stats.TableSize)
	}
	if len(t.entries) != n*t.stride {
		return fmt.Errorf("%w: entry array is %d bytes, want %d", gderrors.ErrCorruptedTable, len(t.entries), n*t.stride)
	}

	covered := bitset.New(uint(n))
	size := uint32(len(t.index))
	var totalCollisions, maxCollisions, empty int
	for b, rec := range t.index {
		if rec == slot.Empty {
			empty++
			continue
		}
		start, length, err := t.bucketRange(b)
		if err != nil {
			return err
		}
		if length == 0 {
			return fmt.Errorf("%w: bucket %d has a zero-length record", gderrors.ErrCorruptedTable, b)
		}
		for pos := start; pos < start+length; pos++ {
			if covered.Test(uint(pos)) {
				return fmt.Errorf("%w: entry %d referenced by more than one bucket", gderrors.ErrCorruptedTable, pos)
			}
			covered.Set(uint(pos))
			key := encoding.Key(t.entries, pos, t.stride)
			if h := slot.Hash(key, size); h != uint32(b) {
				return fmt.Errorf("%w: entry %d key %d hashes to %d, stored in bucket %d", gderrors.ErrCorruptedTable, pos, key, h, b)
			}
			if pos > start && encoding.Key(t.entries, pos-1, t.stride) > key {
				return fmt.Errorf("%w: bucket %d not sorted at entry %d", gderrors.ErrCorruptedTable, b, pos)
			}
		}
		totalCollisions += length - 1
		maxCollisions = max(maxCollisions, length-1)
	}

	if got := covered.Count(); got != uint(n) {
		return fmt.Errorf("%w: buckets cover %d of %d entries", gderrors.ErrCorruptedTable, got, n)
	}
	if totalCollisions != t.stats.TotalCollisions || maxCollisions != t.stats.MaxCollisionsInOneKey {
		return fmt.Errorf("%w: collisions total=%d max=%d, recorded total=%d max=%d", gderrors.ErrCorruptedTable,
			totalCollisions, maxCollisions, t.stats.TotalCollisions, t.stats.MaxCollisionsInOneKey)
	}
	if empty != t.stats.EmptyBuckets {
		return fmt.Errorf("%w: %d empty buckets, recorded %d", gderrors.ErrCorruptedTable, empty, t.stats.EmptyBuckets)
	}
	return nil
}

// clone returns a deep copy whose slices do not alias t.
func (t *Table[T]) clone() *Table[T] {
	c := *t
	c.index = slices.Clone(t.index)
	c.entries = slices.Clone(t.entries)
	return &c
}

// decodeIndex parses a little-endian index region into records.
func decodeIndex(buf []byte) []uint32 {
	index := make([]uint32, len(buf)/4)
	for i := range index {
		index[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return index
}
