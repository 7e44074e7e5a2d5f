//go:build !linux

package gpudict

func fadviseSequential(int, int64, int64) {}
