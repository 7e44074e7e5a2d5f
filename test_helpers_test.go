package gpudict

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand/v2"
	"testing"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(testSeed1^s1, testSeed2^s2))
}

// particle is a padded fixed-layout record, as a shader-side struct would be.
type particle struct {
	X, Y, Z float32
	ID      int32
	Alive   bool
}

// sparseKeys returns n distinct pseudo-random keys spread over the whole
// int32 range, negative keys included.
func sparseKeys(rng *rand.Rand, n int) []int32 {
	seen := make(map[int32]struct{}, n)
	keys := make([]int32, 0, n)
	for len(keys) < n {
		k := int32(rng.Uint32())
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// particlesFor returns one particle per key, derived from the key.
func particlesFor(keys []int32) []particle {
	vals := make([]particle, len(keys))
	for i, k := range keys {
		vals[i] = particle{X: float32(k), Y: float32(i), Z: -float32(k), ID: k, Alive: k%2 == 0}
	}
	return vals
}

// absentKeys returns n pseudo-random keys that are not in keys.
func absentKeys(rng *rand.Rand, keys []int32, n int) []int32 {
	present := make(map[int32]struct{}, len(keys))
	for _, k := range keys {
		present[k] = struct{}{}
	}
	out := make([]int32, 0, n)
	for len(out) < n {
		k := int32(rng.Uint32())
		if _, ok := present[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

// mustBuild builds a particle table or fails the test.
func mustBuild(t testing.TB, keys []int32, tableSize int, opts ...BuildOption) *Table[particle] {
	t.Helper()
	tbl, err := Build(keys, particlesFor(keys), tableSize, Fixed[particle](), opts...)
	if err != nil {
		t.Fatalf("Build(%d keys, tableSize=%d): %v", len(keys), tableSize, err)
	}
	return tbl
}

// checkAllFound asserts every key resolves to the particle derived from it.
func checkAllFound(t *testing.T, tbl *Table[particle], keys []int32) {
	t.Helper()
	want := particlesFor(keys)
	for i, k := range keys {
		got, ok := tbl.Lookup(k)
		if !ok {
			t.Fatalf("Lookup(%d): not found", k)
		}
		if got != want[i] {
			t.Fatalf("Lookup(%d) = %+v, want %+v", k, got, want[i])
		}
	}
}
