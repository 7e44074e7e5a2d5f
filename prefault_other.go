//go:build !linux

package gpudict

func prefaultRegion([]byte) {}
