// Package errors defines all exported error sentinels for the gpudict library.
//
// This is the single source of truth for error values. The top-level gpudict
// package, the softgpu device and the internal packages all import from here,
// so errors.Is checks work across package boundaries.
package errors

import "errors"

// Build errors
var (
	ErrLengthMismatch   = errors.New("gpudict: keys and values have different lengths")
	ErrInvalidTableSize = errors.New("gpudict: table size must be in [1, 2^31)")
	ErrInvalidValueSize = errors.New("gpudict: value codec must report a positive fixed size")
	ErrTooManyEntries   = errors.New("gpudict: entry count exceeds maximum (2^24)")
	ErrBucketOverflow   = errors.New("gpudict: bucket holds more than 255 entries")
	ErrDuplicateKey     = errors.New("gpudict: duplicate key detected")
)

// Device and binding errors
var (
	ErrNilDevice        = errors.New("gpudict: device is nil")
	ErrDeviceAllocation = errors.New("gpudict: device buffer allocation failed")
	ErrNullTarget       = errors.New("gpudict: binding target is nil")
	ErrNotBuilt         = errors.New("gpudict: dictionary has not been built or was released")
	ErrReleased         = errors.New("gpudict: buffer has been released")
	ErrBufferSize       = errors.New("gpudict: data size does not match buffer size")
)

// Lookup errors
var (
	ErrMirrorUnavailable = errors.New("gpudict: host mirror is not retained")
	ErrKeyNotFound       = errors.New("gpudict: key not found")
)

// Snapshot errors
var (
	ErrInvalidMagic      = errors.New("gpudict: invalid magic number")
	ErrInvalidVersion    = errors.New("gpudict: unsupported version")
	ErrTruncatedFile     = errors.New("gpudict: snapshot file is truncated")
	ErrChecksumFailed    = errors.New("gpudict: snapshot checksum verification failed")
	ErrCorruptedTable    = errors.New("gpudict: table data is corrupted")
	ErrValueSizeMismatch = errors.New("gpudict: snapshot value size does not match codec")
	ErrSnapshotClosed    = errors.New("gpudict: snapshot is closed")
)
