//go:build linux

package gpudict

import "golang.org/x/sys/unix"

// fadviseSequential widens read-ahead for Load's single pass over a snapshot.
func fadviseSequential(fd int, offset, length int64) {
	_ = unix.Fadvise(fd, offset, length, unix.FADV_SEQUENTIAL)
}
