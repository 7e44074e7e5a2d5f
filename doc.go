// Package gpudict implements a static hash table laid out for lookup from
// massively parallel compute kernels.
//
// A table maps sparse int32 keys to fixed-size value records. It is built
// once on the host, uploaded as two flat buffers, and never mutated; a new
// key set needs a rebuild. Each bucket is a contiguous, key-sorted run of
// the entry array, so a kernel resolves a key with one hash, one index read
// and a binary search over the bucket, without allocating.
//
// # Basic Usage
//
// Building and binding a dictionary:
//
//	dict := gpudict.NewDictionary(device, gpudict.Fixed[Particle]())
//	defer dict.Release()
//
//	err := dict.CreateDictionary(keys, particles, len(keys), "particles",
//	    gpudict.WithHostMirror(true))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := dict.AddToShader(shader, kernel); err != nil {
//	    log.Fatal(err)
//	}
//
//	p, found, err := dict.TryGetValue(42) // host-side lookup
//
// Baking a table to disk and uploading it later without rebuilding:
//
//	table, err := gpudict.Build(keys, particles, len(keys), gpudict.Fixed[Particle]())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := table.WriteFile("particles.gpud"); err != nil {
//	    log.Fatal(err)
//	}
//
//	snap, err := gpudict.Open("particles.gpud", gpudict.Fixed[Particle]())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer snap.Close()
//	err = dict.UploadTable(snap.Table(), "particles", false)
//
// # Device Contract
//
// The device program declares, for a table named N:
//
//	N_valueMap               entries: {int key; T value}, stride 4+sizeof(T)
//	N_indexDataBuffer        uint per bucket: (length << 24) | start, 0xFFFFFFFF = empty
//	N_tableSize              number of buckets
//	N_customElementByteSize  sizeof(T)
//
// and looks a key up as bucket = (uint(key) * 10) % N_tableSize, followed by
// a search of the bucket's range. IndexHash and softgpu.Lookup are the
// reference implementations.
//
// # Package Structure
//
//   - Public API: dictionary.go (Dictionary), builder.go (Build), table.go (Table)
//   - Configuration: builder_options.go (BuildOption, DictionaryOption)
//   - Value records: codec.go (Codec, Fixed, scalar codecs)
//   - Device surface: device.go (Device, Buffer, Material, ComputeShader)
//   - Snapshots: header.go, index_writer.go, index.go (WriteFile, Open, Load)
//   - Byte keys: prehash.go (KeyOf)
//   - Hash and index records: internal/slot; entry layout: internal/encoding
//   - Reference device: softgpu/
//   - Platform: fallocate_*.go, prefault_*.go, fadvise_*.go
package gpudict
