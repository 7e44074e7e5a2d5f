package gpudict

import (
	"errors"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// snapshotWriter writes a snapshot file through a shared memory mapping.
// File layout: [Header 64B][Index Region tableSize×4B][Entry Region n×stride][Footer 32B]
type snapshotWriter struct {
	file *os.File
	mmap mmap.MMap
	size int64
}

// newSnapshotWriter creates path, reserves size bytes and maps them for writing.
func newSnapshotWriter(path string, size int64) (*snapshotWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot file: %w", err)
	}

	// Pre-allocate disk blocks to prevent SIGBUS on disk full
	if err := fallocateFile(file, size); err != nil {
		primaryErr := fmt.Errorf("failed to allocate disk space: %w", err)
		return nil, errors.Join(primaryErr, file.Close())
	}

	mm, err := mmap.MapRegion(file, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		primaryErr := fmt.Errorf("failed to mmap file: %w", err)
		return nil, errors.Join(primaryErr, file.Close())
	}

	// On Linux 5.14+, uses MADV_POPULATE_WRITE. No-op on other platforms.
	prefaultRegion(mm)

	return &snapshotWriter{file: file, mmap: mm, size: size}, nil
}

// finalize flushes and unmaps the file.
// On error, delegates to close() for idempotent cleanup.
func (w *snapshotWriter) finalize() error {
	if err := w.mmap.Flush(); err != nil {
		primaryErr := fmt.Errorf("mmap flush failed: %w", err)
		return errors.Join(primaryErr, w.close())
	}

	// Nil mmap regardless of outcome to prevent close() from retrying.
	unmapErr := w.mmap.Unmap()
	w.mmap = nil
	if unmapErr != nil {
		primaryErr := fmt.Errorf("mmap unmap failed: %w", unmapErr)
		return errors.Join(primaryErr, w.close())
	}

	closeErr := w.file.Close()
	w.file = nil
	return closeErr
}

// close releases the mapping and file without flushing.
// Idempotent: safe to call multiple times.
func (w *snapshotWriter) close() error {
	var unmapErr error
	if w.mmap != nil {
		unmapErr = w.mmap.Unmap()
		w.mmap = nil
	}
	var closeErr error
	if w.file != nil {
		closeErr = w.file.Close()
		w.file = nil
	}
	return errors.Join(unmapErr, closeErr)
}

// WriteFile writes the table to path as a snapshot file that Open and Load
// read back. An existing file is replaced; on failure the partial file is
// removed.
func (t *Table[T]) WriteFile(path string) error {
	h := newHeader(t.stats, t.id)
	w, err := newSnapshotWriter(path, int64(h.fileSize()))
	if err != nil {
		return err
	}

	fillSnapshot(w.mmap, &h, t.index, t.entries)

	if err := w.finalize(); err != nil {
		return errors.Join(err, os.Remove(path))
	}
	return nil
}

// MarshalBinary returns the table encoded as a snapshot file image.
func (t *Table[T]) MarshalBinary() ([]byte, error) {
	h := newHeader(t.stats, t.id)
	buf := make([]byte, h.fileSize())
	fillSnapshot(buf, &h, t.index, t.entries)
	return buf, nil
}
