package gpudict

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	gderrors "github.com/tamirms/gpudict/errors"
	"github.com/tamirms/gpudict/internal/encoding"
	"github.com/tamirms/gpudict/internal/slot"
)

const (
	// minChunkEntries is the smallest per-worker chunk worth a goroutine.
	minChunkEntries = 4096

	// MaxEntries is the largest entry count a table can hold. Start offsets
	// are stored in 24 bits.
	MaxEntries = slot.MaxEntries

	// MaxBucketLength is the largest number of entries one bucket can hold.
	MaxBucketLength = slot.MaxLength

	// EmptyBucket is the index record of a bucket with no entries.
	EmptyBucket = slot.Empty
)

// IndexHash returns the bucket of key in a table of tableSize buckets:
// (uint32(key) * 10) mod tableSize with 32-bit wraparound. Device kernels
// must compute exactly this. Panics if tableSize is 0.
func IndexHash(key int32, tableSize uint32) uint32 {
	return slot.Hash(key, tableSize)
}

// Build constructs an immutable table from parallel key and value slices.
//
// Entries are sorted by (bucket, key) so that each bucket is a contiguous,
// key-ascending run of the entry array, and every bucket's index record
// holds its start offset and length. Equal keys keep their input order.
//
// Preconditions are checked before anything is allocated:
//   - codec reports a positive Size (ErrInvalidValueSize)
//   - len(keys) == len(values) (ErrLengthMismatch)
//   - 0 < tableSize <= math.MaxInt32 (ErrInvalidTableSize)
//   - len(keys) <= MaxEntries (ErrTooManyEntries)
//
// The build fails with ErrBucketOverflow if more than MaxBucketLength keys
// land in one bucket; choose a larger tableSize.
func Build[T any](keys []int32, values []T, tableSize int, codec Codec[T], opts ...BuildOption) (*Table[T], error) {
	cfg := defaultBuildConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if codec == nil || codec.Size() <= 0 {
		return nil, gderrors.ErrInvalidValueSize
	}
	if len(keys) != len(values) {
		return nil, fmt.Errorf("%w: %d keys, %d values", gderrors.ErrLengthMismatch, len(keys), len(values))
	}
	if tableSize <= 0 || int64(tableSize) > math.MaxInt32 {
		return nil, fmt.Errorf("%w: got %d", gderrors.ErrInvalidTableSize, tableSize)
	}
	if len(keys) > MaxEntries {
		return nil, fmt.Errorf("%w: got %d", gderrors.ErrTooManyEntries, len(keys))
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("generate build id: %w", err)
	}

	n := len(keys)
	size := uint32(tableSize)

	// Step 1: bucket of every input entry.
	hashes := make([]uint32, n)
	err = forEachChunk(cfg.workers, n, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			hashes[i] = slot.Hash(keys[i], size)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Step 2: order by (bucket, key). The input position breaks ties, which
	// keeps duplicates in input order and makes the result deterministic.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		if c := cmp.Compare(hashes[a], hashes[b]); c != 0 {
			return c
		}
		if c := cmp.Compare(keys[a], keys[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	// Steps 3-4: one pass assigns each bucket its contiguous run.
	index := make([]uint32, tableSize)
	for i := range index {
		index[i] = slot.Empty
	}
	var totalCollisions, maxCollisions, usedBuckets int
	for pos, src := range order {
		h := hashes[src]
		rec := index[h]
		if rec == slot.Empty {
			index[h] = slot.Pack(uint32(pos), 1)
			usedBuckets++
			continue
		}
		// The bucket is non-empty, so the previous sorted entry is in it.
		if cfg.duplicates == DuplicatesReject && keys[order[pos-1]] == keys[src] {
			return nil, fmt.Errorf("%w: key %d", gderrors.ErrDuplicateKey, keys[src])
		}
		if slot.Length(rec) >= slot.MaxLength {
			return nil, fmt.Errorf("%w: bucket %d with table size %d", gderrors.ErrBucketOverflow, h, tableSize)
		}
		rec = slot.Grow(rec)
		index[h] = rec
		totalCollisions++
		if c := int(slot.Length(rec)) - 1; c > maxCollisions {
			maxCollisions = c
		}
	}

	// Step 5: entry array in sorted order. Index records address it purely
	// by offset, so this order is part of the format.
	valueSize := codec.Size()
	stride := encoding.Stride(valueSize)
	entries := make([]byte, n*stride)
	err = forEachChunk(cfg.workers, n, func(lo, hi int) error {
		for pos := lo; pos < hi; pos++ {
			src := order[pos]
			encoding.PutKey(entries, pos, stride, keys[src])
			codec.Encode(encoding.Value(entries, pos, stride), values[src])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Table[T]{
		id:      id,
		codec:   codec,
		index:   index,
		entries: entries,
		stride:  stride,
		stats: Stats{
			TableSize:             tableSize,
			StoredElementCount:    n,
			TotalCollisions:       totalCollisions,
			MaxCollisionsInOneKey: maxCollisions,
			EmptyBuckets:          tableSize - usedBuckets,
			ValueSize:             valueSize,
			Stride:                stride,
		},
	}, nil
}

// forEachChunk splits [0, n) into one contiguous chunk per worker and runs
// fn on each. With workers <= 1 or a small n it runs fn(0, n) inline.
func forEachChunk(workers, n int, fn func(lo, hi int) error) error {
	if workers <= 1 || n < 2*minChunkEntries {
		return fn(0, n)
	}
	chunk := max((n+workers-1)/workers, minChunkEntries)

	var g errgroup.Group
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			return fn(lo, hi)
		})
	}
	return g.Wait()
}
