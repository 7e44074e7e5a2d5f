// Inspect prints the header, statistics and integrity of a gpudict snapshot
// as JSON, and optionally looks keys up in it.
//
// Usage:
//
//	go run ./cmd/inspect -keys '[12, -7, 40000]' particles.gpud
//
// Flags:
//
//	-verify    Check footer hashes and table structure (default: true)
//	-keys      JSON array of int32 keys to look up
//	-dump      Number of stored entries to print in storage order (default: 0)
//	-indent    Pretty-print the output (default: true)
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/sugawarayuuta/sonnet"

	"github.com/tamirms/gpudict"
)

type report struct {
	Path       string         `json:"path"`
	Version    uint16         `json:"version"`
	BuildID    string         `json:"build_id"`
	FileSize   int64          `json:"file_size"`
	Stats      statsReport    `json:"stats"`
	Verified   bool           `json:"verified"`
	VerifyErr  string         `json:"verify_error,omitempty"`
	Lookups    []lookupEntry  `json:"lookups,omitempty"`
	Entries    []lookupEntry  `json:"entries,omitempty"`
	BucketHist map[string]int `json:"bucket_length_histogram"`
}

type statsReport struct {
	TableSize             int     `json:"table_size"`
	StoredElementCount    int     `json:"stored_element_count"`
	TotalCollisions       int     `json:"total_collisions"`
	MaxCollisionsInOneKey int     `json:"max_collisions_in_one_key"`
	EmptyBuckets          int     `json:"empty_buckets"`
	ValueSize             int     `json:"value_size"`
	Stride                int     `json:"stride"`
	LoadFactor            float64 `json:"load_factor"`
}

type lookupEntry struct {
	Key    int32  `json:"key"`
	Bucket uint32 `json:"bucket"`
	Found  bool   `json:"found"`
	Value  string `json:"value,omitempty"` // hex
}

func main() {
	verify := flag.Bool("verify", true, "check footer hashes and table structure")
	keysJSON := flag.String("keys", "", "JSON array of int32 keys to look up")
	dump := flag.Int("dump", 0, "number of stored entries to print")
	indent := flag.Bool("indent", true, "pretty-print the output")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: inspect [flags] <snapshot>")
		os.Exit(2)
	}
	if err := run(flag.Arg(0), *verify, *keysJSON, *dump, *indent); err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, verify bool, keysJSON string, dump int, indent bool) error {
	var keys []int32
	if keysJSON != "" {
		if err := sonnet.Unmarshal([]byte(keysJSON), &keys); err != nil {
			return fmt.Errorf("parse -keys: %w", err)
		}
	}

	info, err := gpudict.GetInfo(path)
	if err != nil {
		return err
	}

	// The record type is unknown here, so values are handled as raw bytes
	// of the size the header declares.
	snap, err := gpudict.Open(path, gpudict.RawCodec(info.Stats.ValueSize))
	if err != nil {
		return err
	}
	defer func() { _ = snap.Close() }()
	tbl := snap.Table()

	st := info.Stats
	r := report{
		Path:     path,
		Version:  info.Version,
		BuildID:  info.BuildID.String(),
		FileSize: info.FileSize,
		Stats: statsReport{
			TableSize:             st.TableSize,
			StoredElementCount:    st.StoredElementCount,
			TotalCollisions:       st.TotalCollisions,
			MaxCollisionsInOneKey: st.MaxCollisionsInOneKey,
			EmptyBuckets:          st.EmptyBuckets,
			ValueSize:             st.ValueSize,
			Stride:                st.Stride,
			LoadFactor:            st.LoadFactor(),
		},
		BucketHist: make(map[string]int),
	}

	if verify {
		if err := snap.Verify(); err != nil {
			r.VerifyErr = err.Error()
		} else {
			r.Verified = true
		}
	}

	for b := range tbl.TableSize() {
		_, length, _ := tbl.Bucket(b)
		r.BucketHist[strconv.Itoa(length)]++
	}

	size := uint32(tbl.TableSize())
	for _, k := range keys {
		e := lookupEntry{Key: k, Bucket: gpudict.IndexHash(k, size)}
		if v, ok := tbl.LookupBytes(k); ok {
			e.Found = true
			e.Value = hex.EncodeToString(v)
		}
		r.Lookups = append(r.Lookups, e)
	}

	if dump > 0 {
		for k, v := range tbl.All() {
			r.Entries = append(r.Entries, lookupEntry{
				Key:    k,
				Bucket: gpudict.IndexHash(k, size),
				Found:  true,
				Value:  hex.EncodeToString(v),
			})
			if len(r.Entries) == dump {
				break
			}
		}
	}

	var out []byte
	if indent {
		out, err = sonnet.MarshalIndent(r, "", "  ")
	} else {
		out, err = sonnet.Marshal(r)
	}
	if err != nil {
		return err
	}
	out = append(out, '\n')
	_, err = os.Stdout.Write(out)
	return err
}
