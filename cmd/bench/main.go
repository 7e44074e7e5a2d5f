// Bench measures gpudict build throughput, host and device-kernel lookup
// latency, collision statistics and peak memory.
//
// Keys are random 32-byte identifiers folded to sparse int32 keys with
// murmur3, the way a caller would key entities by an external ID.
//
// Usage:
//
//	go run ./cmd/bench -keys 10000000 -load 1 -workers 8
//
// Flags:
//
//	-keys      Number of entries to build (default: 10,000,000)
//	-load      Target entries per bucket (default: 1)
//	-workers   Number of parallel build workers (default: 1)
//	-mirror    Keep the host mirror and benchmark host lookups (default: true)
//	-snapshot  Also write and reopen a snapshot file (default: false)
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	mrand "math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"runtime/metrics"
	"runtime/pprof"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/tamirms/gpudict"
	"github.com/tamirms/gpudict/softgpu"
)

// value is a 16-byte record, the size of a float4 on the device.
type value struct {
	X, Y, Z, W float32
}

// getMaxRSS returns the maximum resident set size in bytes.
// Uses getrusage(RUSAGE_SELF) which tracks peak RSS since process start.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// On macOS, MaxRss is in bytes. On Linux, it's in kilobytes.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024
	}
	return maxRSS
}

// tableSizeFor returns a bucket count near n/load that shares no factor with
// the hash multiplier 10, so every bucket is reachable.
func tableSizeFor(n int, load float64) int {
	size := max(1, int(float64(n)/load))
	for size%2 == 0 || size%5 == 0 {
		size++
	}
	return size
}

func main() {
	keysFlag := flag.Int("keys", 10_000_000, "number of entries")
	loadFlag := flag.Float64("load", 1, "target entries per bucket")
	workersFlag := flag.Int("workers", 1, "number of parallel workers for building")
	mirrorFlag := flag.Bool("mirror", true, "keep the host mirror")
	snapshotFlag := flag.Bool("snapshot", false, "write and reopen a snapshot file")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file (build phase only)")
	memprofile := flag.String("memprofile", "", "write memory profile to file (build phase only)")
	flag.Parse()

	numKeys := *keysFlag
	if numKeys <= 0 || numKeys > gpudict.MaxEntries {
		fmt.Printf("-keys must be in [1, %d]\n", gpudict.MaxEntries)
		return
	}
	tableSize := tableSizeFor(numKeys, *loadFlag)

	fmt.Println("Generating keys...")
	var id [32]byte
	keys := make([]int32, numKeys)
	hashStart := time.Now()
	for i := range keys {
		_, _ = rand.Read(id[:]) // crypto/rand.Read error is fatal system issue; ignore for benchmark
		keys[i] = int32(murmur3.Sum32WithSeed(id[:], 0x1234))
	}
	hashDuration := time.Since(hashStart)

	values := make([]value, numKeys)
	for i := range values {
		values[i] = value{X: mrand.Float32(), Y: mrand.Float32(), Z: mrand.Float32(), W: float32(i)}
	}

	dev := softgpu.NewDevice()
	dict := gpudict.NewDictionary(dev, gpudict.Fixed[value]())
	defer func() { _ = dict.Release() }()

	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	var baseline runtime.MemStats
	runtime.ReadMemStats(&baseline)
	baselineRSS := getMaxRSS()

	// 10ms sampling for peak memory (both heap and RSS).
	var peakAlloc atomic.Uint64
	var peakRSS atomic.Uint64
	peakAlloc.Store(baseline.Alloc)
	peakRSS.Store(baselineRSS)
	done := make(chan struct{})
	go func() {
		samples := []metrics.Sample{
			{Name: "/memory/classes/heap/objects:bytes"},
		}
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				metrics.Read(samples)
				heapBytes := samples[0].Value.Uint64()
				for {
					old := peakAlloc.Load()
					if heapBytes <= old || peakAlloc.CompareAndSwap(old, heapBytes) {
						break
					}
				}
				rss := getMaxRSS()
				for {
					old := peakRSS.Load()
					if rss <= old || peakRSS.CompareAndSwap(old, rss) {
						break
					}
				}
			}
		}
	}()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Printf("could not create CPU profile: %v\n", err)
			return
		}
		defer func() { _ = f.Close() }()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Printf("could not start CPU profile: %v\n", err)
			return
		}
	}

	fmt.Printf("Building dictionary (%d entries, %d buckets)...\n", numKeys, tableSize)
	buildStart := time.Now()
	err := dict.CreateDictionary(keys, values, tableSize, "bench",
		gpudict.WithWorkers(*workersFlag),
		gpudict.WithHostMirror(*mirrorFlag))
	buildDuration := time.Since(buildStart)

	if *cpuprofile != "" {
		pprof.StopCPUProfile()
	}
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			fmt.Printf("could not create memory profile: %v\n", err)
		} else {
			runtime.GC()
			if err := pprof.WriteHeapProfile(f); err != nil {
				fmt.Printf("could not write memory profile: %v\n", err)
			}
			_ = f.Close()
		}
	}

	close(done)

	var final runtime.MemStats
	runtime.ReadMemStats(&final)
	if final.Alloc > peakAlloc.Load() {
		peakAlloc.Store(final.Alloc)
	}
	if finalRSS := getMaxRSS(); finalRSS > peakRSS.Load() {
		peakRSS.Store(finalRSS)
	}
	peakHeapMem := peakAlloc.Load() - baseline.Alloc
	peakRSSMem := peakRSS.Load() - baselineRSS

	if err != nil {
		fmt.Printf("Build failed: %v\n", err)
		return
	}
	stats := dict.Stats()

	shader := softgpu.NewShader()
	if err := dict.AddToShader(shader, 0); err != nil {
		fmt.Printf("AddToShader failed: %v\n", err)
		return
	}
	kernel := shader.Kernel(0)

	queryOrder := mrand.Perm(numKeys)
	numQueries := min(1_000_000, numKeys)

	var hostLatency float64
	if *mirrorFlag {
		fmt.Println("Benchmarking host lookups...")
		for i := range 10000 {
			_, _, _ = dict.TryGetValue(keys[queryOrder[i%numKeys]]) // warm-up
		}
		start := time.Now()
		for i := range numQueries {
			_, _, _ = dict.TryGetValue(keys[queryOrder[i]])
		}
		hostLatency = float64(time.Since(start).Nanoseconds()) / float64(numQueries)
	}

	fmt.Println("Benchmarking device-kernel lookups...")
	codec := gpudict.Fixed[value]()
	start := time.Now()
	for i := range numQueries {
		if _, ok, err := softgpu.LookupValue(kernel, "bench", keys[queryOrder[i]], codec); err != nil || !ok {
			fmt.Printf("kernel lookup of key %d failed: found=%v err=%v\n", keys[queryOrder[i]], ok, err)
			return
		}
	}
	kernelLatency := float64(time.Since(start).Nanoseconds()) / float64(numQueries)

	var writeDuration, openDuration time.Duration
	var fileSize int64
	if *snapshotFlag {
		mirror := dict.HostMirror()
		if mirror == nil {
			fmt.Println("-snapshot needs -mirror")
			return
		}
		tmpDir, err := os.MkdirTemp("", "gpudict-bench-")
		if err != nil {
			fmt.Printf("Failed to create temp dir: %v\n", err)
			return
		}
		defer func() { _ = os.RemoveAll(tmpDir) }()
		path := filepath.Join(tmpDir, "bench.gpud")

		ws := time.Now()
		if err := mirror.WriteFile(path); err != nil {
			fmt.Printf("WriteFile failed: %v\n", err)
			return
		}
		writeDuration = time.Since(ws)

		openStart := time.Now()
		snap, err := gpudict.Open(path, codec)
		if err != nil {
			fmt.Printf("Open failed: %v\n", err)
			return
		}
		openDuration = time.Since(openStart)
		_ = snap.Close()

		info, err := gpudict.GetInfo(path)
		if err != nil {
			fmt.Printf("GetInfo failed: %v\n", err)
			return
		}
		fileSize = info.FileSize
	}

	fmt.Printf("\n")
	fmt.Printf("╔═════════════════════╦════════════════╗\n")
	fmt.Printf("║ Metric              ║ Value          ║\n")
	fmt.Printf("╠═════════════════════╬════════════════╣\n")
	fmt.Printf("║ Entries             ║ %14d ║\n", stats.StoredElementCount)
	fmt.Printf("║ Table size          ║ %14d ║\n", stats.TableSize)
	fmt.Printf("║ Load factor         ║ %14.3f ║\n", stats.LoadFactor())
	fmt.Printf("║ Empty buckets       ║ %14d ║\n", stats.EmptyBuckets)
	fmt.Printf("║ Total collisions    ║ %14d ║\n", stats.TotalCollisions)
	fmt.Printf("║ Max collisions      ║ %14d ║\n", stats.MaxCollisionsInOneKey)
	fmt.Printf("║ Device bytes        ║ %11.1f MB ║\n", float64(dev.Allocated())/1_000_000)
	fmt.Printf("║ Key hash time       ║ %10.2f sec ║\n", hashDuration.Seconds())
	fmt.Printf("║ Build time          ║ %10.2f sec ║\n", buildDuration.Seconds())
	fmt.Printf("║ Build throughput    ║ %8.2f M/sec ║\n", float64(numKeys)/buildDuration.Seconds()/1_000_000)
	if *mirrorFlag {
		fmt.Printf("║ Host lookup         ║ %11.1f ns ║\n", hostLatency)
	} else {
		fmt.Printf("║ Host lookup         ║    N/A (mirror)║\n")
	}
	fmt.Printf("║ Kernel lookup       ║ %11.1f ns ║\n", kernelLatency)
	if *snapshotFlag {
		fmt.Printf("║ Snapshot size       ║ %11.1f MB ║\n", float64(fileSize)/1_000_000)
		fmt.Printf("║ Snapshot write      ║ %10.2f sec ║\n", writeDuration.Seconds())
		fmt.Printf("║ Snapshot open       ║ %11.2f ms ║\n", float64(openDuration.Microseconds())/1000)
	}
	fmt.Printf("║ Peak heap memory    ║ %11.1f MB ║\n", float64(peakHeapMem)/1_000_000)
	fmt.Printf("║ Peak RSS memory     ║ %11.1f MB ║\n", float64(peakRSSMem)/1_000_000)
	fmt.Printf("╚═════════════════════╩════════════════╝\n")
}
