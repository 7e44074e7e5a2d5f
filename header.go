package gpudict

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	gderrors "github.com/tamirms/gpudict/errors"
	"github.com/tamirms/gpudict/internal/encoding"
)

const (
	// magic number for snapshot files, "GPUD" in little-endian
	magic = uint32(0x44555047)

	// version is the current format version
	version = uint16(0x0001)

	// headerSize is the exact size of the serialized header (64 bytes)
	headerSize = 64

	// footerSize is the exact size of the serialized footer (32 bytes)
	footerSize = 32
)

// header is the 64-byte snapshot header.
//
// Layout:
//
//	Offset  Size  Field            Type
//	0       4     Magic            0x44555047 ("GPUD")
//	4       2     Version          0x0001
//	6       4     TableSize        uint32_le (buckets)
//	10      4     EntryCount       uint32_le
//	14      4     ValueSize        uint32_le (bytes per value record)
//	18      4     TotalCollisions  uint32_le
//	22      4     MaxCollisions    uint32_le
//	26      4     EmptyBuckets     uint32_le
//	30      16    BuildID          [16]byte (UUID)
//	46      18    Reserved         [18]byte (zero)
//
// The header is followed by the index region (TableSize × 4 bytes), the
// entry region (EntryCount × (4 + ValueSize) bytes) and the footer. Both
// regions are byte-identical to the device buffers.
type header struct {
	Magic           uint32
	Version         uint16
	TableSize       uint32
	EntryCount      uint32
	ValueSize       uint32
	TotalCollisions uint32
	MaxCollisions   uint32
	EmptyBuckets    uint32
	BuildID         uuid.UUID
	Reserved        [18]byte
}

func newHeader(s Stats, id uuid.UUID) header {
	return header{
		Magic:           magic,
		Version:         version,
		TableSize:       uint32(s.TableSize),
		EntryCount:      uint32(s.StoredElementCount),
		ValueSize:       uint32(s.ValueSize),
		TotalCollisions: uint32(s.TotalCollisions),
		MaxCollisions:   uint32(s.MaxCollisionsInOneKey),
		EmptyBuckets:    uint32(s.EmptyBuckets),
		BuildID:         id,
	}
}

// encodeTo serializes the header to an existing buffer.
func (h *header) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint32(buf[6:10], h.TableSize)
	binary.LittleEndian.PutUint32(buf[10:14], h.EntryCount)
	binary.LittleEndian.PutUint32(buf[14:18], h.ValueSize)
	binary.LittleEndian.PutUint32(buf[18:22], h.TotalCollisions)
	binary.LittleEndian.PutUint32(buf[22:26], h.MaxCollisions)
	binary.LittleEndian.PutUint32(buf[26:30], h.EmptyBuckets)
	copy(buf[30:46], h.BuildID[:])
	copy(buf[46:64], h.Reserved[:])
}

// decodeHeader parses a 64-byte header.
func decodeHeader(buf []byte) (*header, error) {
	if len(buf) < headerSize {
		return nil, gderrors.ErrTruncatedFile
	}

	h := &header{
		Magic:           binary.LittleEndian.Uint32(buf[0:4]),
		Version:         binary.LittleEndian.Uint16(buf[4:6]),
		TableSize:       binary.LittleEndian.Uint32(buf[6:10]),
		EntryCount:      binary.LittleEndian.Uint32(buf[10:14]),
		ValueSize:       binary.LittleEndian.Uint32(buf[14:18]),
		TotalCollisions: binary.LittleEndian.Uint32(buf[18:22]),
		MaxCollisions:   binary.LittleEndian.Uint32(buf[22:26]),
		EmptyBuckets:    binary.LittleEndian.Uint32(buf[26:30]),
	}
	copy(h.BuildID[:], buf[30:46])
	copy(h.Reserved[:], buf[46:64])

	if h.Magic != magic {
		return nil, gderrors.ErrInvalidMagic
	}
	if h.Version != version {
		return nil, gderrors.ErrInvalidVersion
	}
	if h.TableSize == 0 || h.TableSize > 1<<31-1 {
		return nil, gderrors.ErrCorruptedTable
	}
	if h.EntryCount > MaxEntries || h.ValueSize == 0 {
		return nil, gderrors.ErrCorruptedTable
	}

	return h, nil
}

// stride returns bytes per entry.
func (h *header) stride() int {
	return encoding.Stride(int(h.ValueSize))
}

// indexRegionSize returns the byte size of the index region.
func (h *header) indexRegionSize() uint64 {
	return uint64(h.TableSize) * 4
}

// entryRegionSize returns the byte size of the entry region.
func (h *header) entryRegionSize() uint64 {
	return uint64(h.EntryCount) * uint64(h.stride())
}

// fileSize returns the exact size of a snapshot with this header.
func (h *header) fileSize() uint64 {
	return headerSize + h.indexRegionSize() + h.entryRegionSize() + footerSize
}

// stats converts the header counters to Stats.
func (h *header) stats() Stats {
	return Stats{
		TableSize:             int(h.TableSize),
		StoredElementCount:    int(h.EntryCount),
		TotalCollisions:       int(h.TotalCollisions),
		MaxCollisionsInOneKey: int(h.MaxCollisions),
		EmptyBuckets:          int(h.EmptyBuckets),
		ValueSize:             int(h.ValueSize),
		Stride:                h.stride(),
	}
}

// footer is the 32-byte snapshot footer.
//
// Layout:
//
//	Offset  Size  Field            Type
//	0       8     IndexRegionHash  uint64_le (xxHash64 of index region)
//	8       8     EntryRegionHash  uint64_le (xxHash64 of entry region)
//	16      16    Reserved         [16]byte (zero)
type footer struct {
	IndexRegionHash uint64
	EntryRegionHash uint64
	Reserved        [16]byte
}

// encodeTo serializes the footer into an existing buffer.
func (f *footer) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], f.IndexRegionHash)
	binary.LittleEndian.PutUint64(buf[8:16], f.EntryRegionHash)
	copy(buf[16:32], f.Reserved[:])
}

// decodeFooter parses a 32-byte footer.
func decodeFooter(buf []byte) (*footer, error) {
	if len(buf) < footerSize {
		return nil, gderrors.ErrTruncatedFile
	}

	f := &footer{
		IndexRegionHash: binary.LittleEndian.Uint64(buf[0:8]),
		EntryRegionHash: binary.LittleEndian.Uint64(buf[8:16]),
	}
	copy(f.Reserved[:], buf[16:32])

	return f, nil
}

// fillSnapshot writes a complete snapshot into buf, which must be exactly
// h.fileSize() bytes.
func fillSnapshot(buf []byte, h *header, index []uint32, entries []byte) {
	h.encodeTo(buf[:headerSize])

	indexRegion := buf[headerSize : headerSize+h.indexRegionSize()]
	for i, rec := range index {
		encoding.PutIndex(indexRegion, i, rec)
	}

	entryStart := headerSize + h.indexRegionSize()
	entryRegion := buf[entryStart : entryStart+h.entryRegionSize()]
	copy(entryRegion, entries)

	ftr := footer{
		IndexRegionHash: xxhash.Sum64(indexRegion),
		EntryRegionHash: xxhash.Sum64(entryRegion),
	}
	ftr.encodeTo(buf[uint64(len(buf))-footerSize:])
}
