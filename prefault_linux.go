//go:build linux

package gpudict

import "golang.org/x/sys/unix"

// madvPopulateWrite is MADV_POPULATE_WRITE (Linux 5.14+).
const madvPopulateWrite = 23

// prefaultRegion populates a writable snapshot mapping up front so filling
// the index and entry regions does not fault page by page. Older kernels
// reject the advice with EINVAL; that is ignored.
func prefaultRegion(data []byte) {
	if len(data) > 0 {
		_ = unix.Madvise(data, madvPopulateWrite)
	}
}
