// bench_io compares the two ways of bringing a baked snapshot back into a
// process:
//
//  1. "mmap": Open maps the file; pages fault in on first lookup
//  2. "load": Load reads the whole file into the heap and verifies it
//
// Each mode is timed cold (page cache dropped with FADV_DONTNEED) and warm,
// followed by random lookups over the resulting table.
//
// Usage:
//
//	go run ./cmd/bench_io -keys 5000000
//	go run ./cmd/bench_io -keys 16000000 -value 64 -mode mmap
//
// To simulate memory pressure (table exceeding page cache):
//
//	sudo systemd-run --scope -p MemoryMax=1G --uid=$(id -u) \
//	  go run ./cmd/bench_io -keys 16000000 -value 128
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tamirms/gpudict"
)

func main() {
	numKeys := flag.Int("keys", 5_000_000, "number of entries")
	valueSize := flag.Int("value", 16, "value record size in bytes")
	lookups := flag.Int("lookups", 1_000_000, "random lookups per mode")
	mode := flag.String("mode", "both", "mode: mmap, load, or both")
	tmpDir := flag.String("dir", "", "temp directory (default: os.TempDir())")
	flag.Parse()

	if *tmpDir == "" {
		*tmpDir = os.TempDir()
	}
	codec := gpudict.RawCodec(*valueSize)

	fmt.Printf("Configuration:\n")
	fmt.Printf("  Entries:      %d × %d bytes\n", *numKeys, 4+*valueSize)
	fmt.Printf("  Lookups:      %d\n", *lookups)
	fmt.Printf("  Temp dir:     %s\n", *tmpDir)
	fmt.Printf("  GOMAXPROCS:   %d\n", runtime.GOMAXPROCS(0))
	fmt.Println()

	rng := rand.New(rand.NewPCG(42, 0))
	keys := make([]int32, *numKeys)
	values := make([][]byte, *numKeys)
	for i := range keys {
		keys[i] = int32(rng.Uint32())
		values[i] = []byte{byte(i), byte(i >> 8), byte(i >> 16), byte(i >> 24)}
	}

	tableSize := *numKeys | 1
	for tableSize%5 == 0 {
		tableSize += 2
	}
	tbl, err := gpudict.Build(keys, values, tableSize, codec, gpudict.WithWorkers(runtime.GOMAXPROCS(0)))
	if err != nil {
		fmt.Printf("  ERROR: build: %v\n", err)
		return
	}
	values = nil

	path := filepath.Join(*tmpDir, fmt.Sprintf("bench-io-%d.gpud", os.Getpid()))
	defer func() { _ = os.Remove(path) }()

	writeStart := time.Now()
	if err := tbl.WriteFile(path); err != nil {
		fmt.Printf("  ERROR: write: %v\n", err)
		return
	}
	info, err := gpudict.GetInfo(path)
	if err != nil {
		fmt.Printf("  ERROR: info: %v\n", err)
		return
	}
	fmt.Printf("Snapshot: %.1f MB written in %v\n\n", float64(info.FileSize)/(1024*1024), time.Since(writeStart).Round(time.Millisecond))
	tbl = nil
	runtime.GC()

	probe := make([]int32, *lookups)
	for i := range probe {
		probe[i] = keys[rng.IntN(len(keys))]
	}

	if *mode == "mmap" || *mode == "both" {
		fmt.Println("=== mmap (Open) ===")
		for _, cold := range []bool{true, false} {
			benchOpen(path, codec, probe, cold)
		}
		fmt.Println()
	}
	if *mode == "load" || *mode == "both" {
		fmt.Println("=== heap (Load) ===")
		for _, cold := range []bool{true, false} {
			benchLoad(path, codec, probe, cold)
		}
		fmt.Println()
	}
}

// dropCache evicts path from the page cache. Dirty pages are flushed first,
// since FADV_DONTNEED skips them.
func dropCache(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()
	_ = f.Sync()
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_DONTNEED)
}

func label(cold bool) string {
	if cold {
		return "cold"
	}
	return "warm"
}

func benchOpen(path string, codec gpudict.Codec[[]byte], probe []int32, cold bool) {
	if cold {
		dropCache(path)
	}
	start := time.Now()
	snap, err := gpudict.Open(path, codec)
	if err != nil {
		fmt.Printf("  ERROR: open: %v\n", err)
		return
	}
	defer func() { _ = snap.Close() }()
	openDur := time.Since(start)

	lookupDur, misses := runLookups(snap.Table(), probe)
	fmt.Printf("  %s: open %-12v lookups %-12v (%.0f ns/op, %d misses)\n",
		label(cold), openDur.Round(time.Microsecond), lookupDur.Round(time.Millisecond),
		float64(lookupDur.Nanoseconds())/float64(len(probe)), misses)

	verifyStart := time.Now()
	if err := snap.Verify(); err != nil {
		fmt.Printf("  ERROR: verify: %v\n", err)
		return
	}
	fmt.Printf("        verify %v\n", time.Since(verifyStart).Round(time.Millisecond))
}

func benchLoad(path string, codec gpudict.Codec[[]byte], probe []int32, cold bool) {
	if cold {
		dropCache(path)
	}
	start := time.Now()
	tbl, err := gpudict.Load(path, codec)
	if err != nil {
		fmt.Printf("  ERROR: load: %v\n", err)
		return
	}
	loadDur := time.Since(start)

	lookupDur, misses := runLookups(tbl, probe)
	fmt.Printf("  %s: load %-12v lookups %-12v (%.0f ns/op, %d misses)\n",
		label(cold), loadDur.Round(time.Microsecond), lookupDur.Round(time.Millisecond),
		float64(lookupDur.Nanoseconds())/float64(len(probe)), misses)
}

// runLookups uses LookupBytes so the codec's copy stays out of the timing.
func runLookups(tbl *gpudict.Table[[]byte], probe []int32) (time.Duration, int) {
	misses := 0
	start := time.Now()
	for _, k := range probe {
		if _, ok := tbl.LookupBytes(k); !ok {
			misses++
		}
	}
	return time.Since(start), misses
}
