//go:build linux

package gpudict

import (
	"os"

	"golang.org/x/sys/unix"
)

// fallocateFile reserves the snapshot's blocks before it is mapped, so a
// full disk fails here instead of raising SIGBUS during the mapped write.
func fallocateFile(file *os.File, size int64) error {
	fd := int(file.Fd())
	if err := unix.Fallocate(fd, 0, 0, size); err != nil {
		// NFS and some older filesystems lack fallocate. A sparse file of
		// the right length still works; only the early ENOSPC is lost.
		return unix.Ftruncate(fd, size)
	}
	// Fallocate never shrinks; truncate pins the exact length.
	return unix.Ftruncate(fd, size)
}
