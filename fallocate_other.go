//go:build !linux && !darwin

package gpudict

import "os"

// fallocateFile sets the snapshot length. Blocks may stay unreserved, so a
// full disk can still fault while the mapping is written.
func fallocateFile(file *os.File, size int64) error {
	return file.Truncate(size)
}
