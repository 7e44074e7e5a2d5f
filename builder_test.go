package gpudict

import (
	"bytes"
	"errors"
	"math"
	"slices"
	"testing"

	gderrors "github.com/tamirms/gpudict/errors"
)

func TestBuildDistinctBuckets(t *testing.T) {
	keys := []int32{3, 13, 23}
	vals := []int32{300, 1300, 2300}
	tbl, err := Build(keys, vals, 3, Int32Codec)
	if err != nil {
		t.Fatal(err)
	}

	for i, k := range keys {
		if got := IndexHash(k, 3); got != uint32(i) {
			t.Errorf("IndexHash(%d, 3) = %d, want %d", k, got, i)
		}
	}
	st := tbl.Stats()
	if st.TotalCollisions != 0 || st.MaxCollisionsInOneKey != 0 {
		t.Errorf("collisions total=%d max=%d, want 0/0", st.TotalCollisions, st.MaxCollisionsInOneKey)
	}
	if st.EmptyBuckets != 0 {
		t.Errorf("EmptyBuckets = %d, want 0", st.EmptyBuckets)
	}
	if v, ok := tbl.Lookup(13); !ok || v != 1300 {
		t.Errorf("Lookup(13) = %d, %v; want 1300, true", v, ok)
	}
	if err := tbl.Validate(); err != nil {
		t.Error(err)
	}
}

func TestBuildSingleBucket(t *testing.T) {
	keys := []int32{6, 0, 3}
	vals := []int32{60, 0, 30}
	tbl, err := Build(keys, vals, 3, Int32Codec)
	if err != nil {
		t.Fatal(err)
	}

	start, length, ok := tbl.Bucket(0)
	if !ok || start != 0 || length != 3 {
		t.Fatalf("Bucket(0) = (%d, %d, %v), want (0, 3, true)", start, length, ok)
	}
	for b := 1; b < 3; b++ {
		if _, _, ok := tbl.Bucket(b); ok {
			t.Errorf("Bucket(%d) populated, want empty", b)
		}
		if tbl.Index()[b] != EmptyBucket {
			t.Errorf("Index()[%d] = %#x, want %#x", b, tbl.Index()[b], EmptyBucket)
		}
	}
	if got := tbl.Index()[0]; got != 3<<24 {
		t.Errorf("Index()[0] = %#x, want %#x", got, 3<<24)
	}

	st := tbl.Stats()
	if st.TotalCollisions != 2 || st.MaxCollisionsInOneKey != 2 {
		t.Errorf("collisions total=%d max=%d, want 2/2", st.TotalCollisions, st.MaxCollisionsInOneKey)
	}
	if st.EmptyBuckets != 2 {
		t.Errorf("EmptyBuckets = %d, want 2", st.EmptyBuckets)
	}

	var stored []int32
	for k := range tbl.All() {
		stored = append(stored, k)
	}
	if !slices.Equal(stored, []int32{0, 3, 6}) {
		t.Errorf("storage order = %v, want [0 3 6]", stored)
	}
	for i, k := range keys {
		if v, ok := tbl.Lookup(k); !ok || v != vals[i] {
			t.Errorf("Lookup(%d) = %d, %v; want %d, true", k, v, ok, vals[i])
		}
	}
	for _, k := range []int32{1, 9, -3, 300} {
		if tbl.Contains(k) {
			t.Errorf("Contains(%d) = true for absent key", k)
		}
	}
}

func TestBuildRandom(t *testing.T) {
	rng := newTestRNG(t)
	tests := []struct {
		name      string
		n         int
		tableSize int
	}{
		{"load-0.25", 2000, 8000},
		{"load-1", 5000, 5000},
		{"load-4", 4000, 1000},
		{"prime", 3001, 2999},
		{"single-bucket", 200, 1},
		{"one-key", 1, 17},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := sparseKeys(rng, tt.n)
			tbl := mustBuild(t, keys, tt.tableSize)
			if err := tbl.Validate(); err != nil {
				t.Fatal(err)
			}
			if tbl.Len() != tt.n || tbl.TableSize() != tt.tableSize {
				t.Fatalf("Len/TableSize = %d/%d, want %d/%d", tbl.Len(), tbl.TableSize(), tt.n, tt.tableSize)
			}
			checkAllFound(t, tbl, keys)
			for _, k := range absentKeys(rng, keys, 500) {
				if _, ok := tbl.Lookup(k); ok {
					t.Fatalf("Lookup(%d) found an absent key", k)
				}
			}
		})
	}
}

func TestBuildCollisionCounters(t *testing.T) {
	rng := newTestRNG(t)
	keys := sparseKeys(rng, 3000)
	tableSize := 701
	tbl := mustBuild(t, keys, tableSize)

	lengths := make([]int, tableSize)
	for _, k := range keys {
		lengths[IndexHash(k, uint32(tableSize))]++
	}
	var total, maxc, empty int
	for _, l := range lengths {
		if l == 0 {
			empty++
			continue
		}
		total += l - 1
		maxc = max(maxc, l-1)
	}

	st := tbl.Stats()
	if st.TotalCollisions != total || st.MaxCollisionsInOneKey != maxc || st.EmptyBuckets != empty {
		t.Errorf("stats = %+v, want total=%d max=%d empty=%d", st, total, maxc, empty)
	}
	if st.TotalCollisions != st.StoredElementCount-(tableSize-st.EmptyBuckets) {
		t.Errorf("TotalCollisions %d != entries - used buckets", st.TotalCollisions)
	}
}

func TestBuildEmpty(t *testing.T) {
	tbl, err := Build([]int32{}, []float32{}, 8, Float32Codec)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 0 || len(tbl.Entries()) != 0 {
		t.Fatalf("Len = %d, entries = %d bytes; want empty", tbl.Len(), len(tbl.Entries()))
	}
	if st := tbl.Stats(); st.EmptyBuckets != 8 {
		t.Errorf("EmptyBuckets = %d, want 8", st.EmptyBuckets)
	}
	if _, ok := tbl.Lookup(0); ok {
		t.Error("Lookup on empty table found a key")
	}
	if err := tbl.Validate(); err != nil {
		t.Error(err)
	}
}

func TestBuildParallelMatchesSequential(t *testing.T) {
	rng := newTestRNG(t)
	keys := sparseKeys(rng, 50000)

	seq := mustBuild(t, keys, 40000)
	for _, workers := range []int{2, 3, 8} {
		par := mustBuild(t, keys, 40000, WithWorkers(workers))
		if !slices.Equal(seq.Index(), par.Index()) {
			t.Fatalf("workers=%d: index differs from sequential build", workers)
		}
		if !bytes.Equal(seq.Entries(), par.Entries()) {
			t.Fatalf("workers=%d: entries differ from sequential build", workers)
		}
		if seq.Stats() != par.Stats() {
			t.Fatalf("workers=%d: stats %+v, sequential %+v", workers, par.Stats(), seq.Stats())
		}
	}
}

func TestBuildDeterministic(t *testing.T) {
	rng := newTestRNG(t)
	keys := sparseKeys(rng, 1000)
	a := mustBuild(t, keys, 512)
	b := mustBuild(t, keys, 512)
	if !bytes.Equal(a.Entries(), b.Entries()) || !slices.Equal(a.Index(), b.Index()) {
		t.Fatal("two builds of the same input differ")
	}
	if a.ID() == b.ID() {
		t.Error("two builds share a build ID")
	}
}

func TestBuildDuplicateKeys(t *testing.T) {
	keys := []int32{5, 15, 5, 25, 5}
	vals := []int32{1, 2, 3, 4, 5}

	t.Run("keep-first", func(t *testing.T) {
		for _, size := range []int{1, 3, 100} {
			tbl, err := Build(keys, vals, size, Int32Codec)
			if err != nil {
				t.Fatal(err)
			}
			if v, ok := tbl.Lookup(5); !ok || v != 1 {
				t.Errorf("tableSize=%d: Lookup(5) = %d, %v; want first occurrence 1", size, v, ok)
			}
			if tbl.Len() != len(keys) {
				t.Errorf("tableSize=%d: Len = %d, want %d", size, tbl.Len(), len(keys))
			}
			if err := tbl.Validate(); err != nil {
				t.Error(err)
			}
		}
	})

	t.Run("reject", func(t *testing.T) {
		_, err := Build(keys, vals, 3, Int32Codec, WithDuplicateKeys(DuplicatesReject))
		if !errors.Is(err, gderrors.ErrDuplicateKey) {
			t.Fatalf("err = %v, want ErrDuplicateKey", err)
		}
		if _, err := Build([]int32{5, 15, 25}, vals[:3], 3, Int32Codec, WithDuplicateKeys(DuplicatesReject)); err != nil {
			t.Fatalf("distinct keys rejected: %v", err)
		}
	})
}

func TestBuildBucketOverflow(t *testing.T) {
	keys := make([]int32, MaxBucketLength+1)
	for i := range keys {
		keys[i] = int32(i)
	}
	vals := make([]uint32, len(keys))

	if _, err := Build(keys[:MaxBucketLength], vals[:MaxBucketLength], 1, Uint32Codec); err != nil {
		t.Fatalf("%d keys in one bucket: %v", MaxBucketLength, err)
	}
	_, err := Build(keys, vals, 1, Uint32Codec)
	if !errors.Is(err, gderrors.ErrBucketOverflow) {
		t.Fatalf("err = %v, want ErrBucketOverflow", err)
	}
}

func TestBuildPreconditions(t *testing.T) {
	tests := []struct {
		name      string
		keys      []int32
		vals      []int32
		tableSize int
		codec     Codec[int32]
		want      error
	}{
		{"length-mismatch", []int32{1, 2}, []int32{1}, 4, Int32Codec, gderrors.ErrLengthMismatch},
		{"values-longer", []int32{1}, []int32{1, 2}, 4, Int32Codec, gderrors.ErrLengthMismatch},
		{"zero-table", []int32{1}, []int32{1}, 0, Int32Codec, gderrors.ErrInvalidTableSize},
		{"negative-table", []int32{1}, []int32{1}, -5, Int32Codec, gderrors.ErrInvalidTableSize},
		{"huge-table", []int32{1}, []int32{1}, math.MaxInt32 + 1, Int32Codec, gderrors.ErrInvalidTableSize},
		{"nil-codec", []int32{1}, []int32{1}, 4, nil, gderrors.ErrInvalidValueSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := Build(tt.keys, tt.vals, tt.tableSize, tt.codec)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if tbl != nil {
				t.Fatal("table returned with error")
			}
		})
	}
}

// unitCodec encodes struct{} as one byte so oversized inputs cost only keys.
type unitCodec struct{}

func (unitCodec) Size() int                     { return 1 }
func (unitCodec) Encode(dst []byte, _ struct{}) { dst[0] = 0 }
func (unitCodec) Decode([]byte) struct{}        { return struct{}{} }

func TestBuildTooManyEntries(t *testing.T) {
	if testing.Short() {
		t.Skip("allocates 64 MiB of keys")
	}
	keys := make([]int32, MaxEntries+1)
	vals := make([]struct{}, len(keys))
	_, err := Build(keys, vals, 1<<20, unitCodec{})
	if !errors.Is(err, gderrors.ErrTooManyEntries) {
		t.Fatalf("err = %v, want ErrTooManyEntries", err)
	}
}

func TestBuildNegativeKeysWrap(t *testing.T) {
	keys := []int32{-1, math.MinInt32, math.MaxInt32, -429496730}
	vals := []int32{1, 2, 3, 4}
	tbl, err := Build(keys, vals, 1000, Int32Codec)
	if err != nil {
		t.Fatal(err)
	}
	for i, k := range keys {
		want := uint32(uint64(uint32(k))*10%(1<<32)) % 1000
		if got := IndexHash(k, 1000); got != want {
			t.Errorf("IndexHash(%d) = %d, want %d", k, got, want)
		}
		if v, ok := tbl.Lookup(k); !ok || v != vals[i] {
			t.Errorf("Lookup(%d) = %d, %v; want %d, true", k, v, ok, vals[i])
		}
	}
}

func TestForEachChunk(t *testing.T) {
	for _, tt := range []struct{ workers, n int }{{0, 10}, {4, 100}, {4, 3 * minChunkEntries}, {16, 10 * minChunkEntries}, {3, 0}} {
		seen := make([]int, tt.n)
		err := forEachChunk(tt.workers, tt.n, func(lo, hi int) error {
			for i := lo; i < hi; i++ {
				seen[i]++
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		for i, c := range seen {
			if c != 1 {
				t.Fatalf("workers=%d n=%d: index %d visited %d times", tt.workers, tt.n, i, c)
			}
		}
	}

	sentinel := errors.New("chunk failed")
	err := forEachChunk(4, 4*minChunkEntries, func(lo, hi int) error {
		if lo > 0 {
			return sentinel
		}
		return nil
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want chunk error", err)
	}
}
