package gpudict

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"
	"github.com/google/uuid"

	gderrors "github.com/tamirms/gpudict/errors"
)

// Snapshot is a read-only table backed by a snapshot file image.
//
// Thread Safety:
// - Lookup, Table, Verify and other read methods are safe for concurrent use
// - Close is NOT safe to call concurrently with lookups
// - After Close returns, neither the Snapshot nor its Table may be used
type Snapshot[T any] struct {
	// Memory map (no file handle needed after mmap)
	mmap mmap.MMap
	data []byte

	header *header
	table  *Table[T]

	closed atomic.Bool // Atomic for lock-free close check
}

// Info describes a snapshot file without decoding its values.
type Info struct {
	Version  uint16
	BuildID  uuid.UUID
	Stats    Stats
	FileSize int64
}

// Open opens a snapshot file for querying.
// It opens the file, memory-maps it, and closes the file descriptor.
func Open[T any](path string, codec Codec[T]) (*Snapshot[T], error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot file: %w", err)
	}
	defer file.Close()
	return OpenFile(file, codec)
}

// OpenFile opens a snapshot by memory-mapping the given file.
// The caller is responsible for closing f. Per POSIX mmap(2), f may be
// closed immediately after OpenFile returns.
func OpenFile[T any](f *os.File, codec Codec[T]) (*Snapshot[T], error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat snapshot file: %w", err)
	}
	if stat.Size() < headerSize+footerSize {
		return nil, gderrors.ErrTruncatedFile
	}

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap snapshot file: %w", err)
	}

	s := &Snapshot[T]{
		mmap: mm,
		data: []byte(mm),
	}
	if err := s.initFromData(codec); err != nil {
		_ = mm.Unmap()
		return nil, err
	}
	s.table.mapped = true
	return s, nil
}

// OpenBytes creates a snapshot from an in-memory file image.
// No file is opened or memory-mapped; Close is a no-op.
// The caller must ensure data is not modified while the Snapshot is in use.
func OpenBytes[T any](data []byte, codec Codec[T]) (*Snapshot[T], error) {
	s := &Snapshot[T]{
		data: data,
	}
	if err := s.initFromData(codec); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads a snapshot file into memory, verifies it and returns its table.
// Unlike Open, the result does not depend on the file after Load returns.
func Load[T any](path string, codec Codec[T]) (*Table[T], error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat snapshot file: %w", err)
	}
	size := stat.Size()
	if size < headerSize+footerSize {
		return nil, gderrors.ErrTruncatedFile
	}

	fadviseSequential(int(file.Fd()), 0, size)
	data := make([]byte, size)
	if _, err := io.ReadFull(file, data); err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	s, err := OpenBytes(data, codec)
	if err != nil {
		return nil, err
	}
	if err := s.Verify(); err != nil {
		return nil, err
	}
	return s.table, nil
}

// GetInfo reads the header of a snapshot file.
func GetInfo(path string) (*Info, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat snapshot file: %w", err)
	}

	var buf [headerSize]byte
	if _, err := io.ReadFull(file, buf[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", gderrors.ErrTruncatedFile, err)
	}
	h, err := decodeHeader(buf[:])
	if err != nil {
		return nil, err
	}
	return &Info{
		Version:  h.Version,
		BuildID:  h.BuildID,
		Stats:    h.stats(),
		FileSize: stat.Size(),
	}, nil
}

// initFromData parses the header and builds the table view over s.data.
// The index region is decoded into a slice; the entry region is aliased.
func (s *Snapshot[T]) initFromData(codec Codec[T]) error {
	if codec == nil || codec.Size() <= 0 {
		return gderrors.ErrInvalidValueSize
	}
	if len(s.data) < headerSize+footerSize {
		return gderrors.ErrTruncatedFile
	}

	hdr, err := decodeHeader(s.data[:headerSize])
	if err != nil {
		return err
	}
	if int(hdr.ValueSize) != codec.Size() {
		return fmt.Errorf("%w: file has %d bytes, codec %d", gderrors.ErrValueSizeMismatch, hdr.ValueSize, codec.Size())
	}

	fileSize := uint64(len(s.data))
	if fileSize < hdr.fileSize() {
		return gderrors.ErrTruncatedFile
	}
	if fileSize > hdr.fileSize() {
		return fmt.Errorf("%w: %d trailing bytes", gderrors.ErrCorruptedTable, fileSize-hdr.fileSize())
	}
	s.header = hdr

	indexStart := uint64(headerSize)
	entryStart := indexStart + hdr.indexRegionSize()
	entryEnd := entryStart + hdr.entryRegionSize()

	s.table = &Table[T]{
		id:      hdr.BuildID,
		codec:   codec,
		index:   decodeIndex(s.data[indexStart:entryStart]),
		entries: s.data[entryStart:entryEnd:entryEnd],
		stride:  hdr.stride(),
		stats:   hdr.stats(),
	}
	return nil
}

// Close closes the snapshot and releases resources.
func (s *Snapshot[T]) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}

	if s.mmap != nil {
		return s.mmap.Unmap()
	}
	return nil
}

// Table returns the snapshot's table. For a memory-mapped snapshot the
// table is only valid until Close.
func (s *Snapshot[T]) Table() *Table[T] {
	return s.table
}

// Lookup returns the value stored for key.
// Open does not check index records, so a record pointing outside the
// entry array is reported here as ErrCorruptedTable.
func (s *Snapshot[T]) Lookup(key int32) (T, bool, error) {
	if s.closed.Load() {
		var zero T
		return zero, false, gderrors.ErrSnapshotClosed
	}
	return s.table.lookup(key)
}

// ID returns the build ID stored in the snapshot.
func (s *Snapshot[T]) ID() uuid.UUID {
	return s.header.BuildID
}

// Stats returns the table statistics stored in the snapshot.
func (s *Snapshot[T]) Stats() Stats {
	return s.header.stats()
}

// Verify checks the integrity of the whole snapshot: the footer hashes of
// the index and entry regions, then the table's structural invariants.
//
// The footer is decoded on each Verify call rather than at open time, so
// opening only touches the header and index region.
func (s *Snapshot[T]) Verify() error {
	if s.closed.Load() {
		return gderrors.ErrSnapshotClosed
	}

	fileSize := uint64(len(s.data))
	ft, err := decodeFooter(s.data[fileSize-footerSize:])
	if err != nil {
		return err
	}

	indexStart := uint64(headerSize)
	entryStart := indexStart + s.header.indexRegionSize()
	entryEnd := entryStart + s.header.entryRegionSize()

	if xxhash.Sum64(s.data[indexStart:entryStart]) != ft.IndexRegionHash {
		return fmt.Errorf("%w: index region", gderrors.ErrChecksumFailed)
	}
	if xxhash.Sum64(s.data[entryStart:entryEnd]) != ft.EntryRegionHash {
		return fmt.Errorf("%w: entry region", gderrors.ErrChecksumFailed)
	}

	return s.table.Validate()
}
