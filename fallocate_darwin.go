//go:build darwin

package gpudict

import (
	"os"

	"golang.org/x/sys/unix"
)

// fallocateFile reserves size bytes for a snapshot before it is mapped.
// F_PREALLOCATE only reserves blocks, so the length is always set with
// ftruncate; a failed reservation degrades to a sparse file.
func fallocateFile(file *os.File, size int64) error {
	fst := unix.Fstore_t{
		Flags:   unix.F_ALLOCATEALL,
		Posmode: unix.F_PEOFPOSMODE,
		Length:  size,
	}
	_ = unix.FcntlFstore(file.Fd(), unix.F_PREALLOCATE, &fst)
	return unix.Ftruncate(int(file.Fd()), size)
}
