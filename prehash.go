package gpudict

import "github.com/zeebo/xxh3"

// KeyOf folds an arbitrary byte key into an int32 table key using xxHash3.
//
// Use this when natural keys are strings, paths or other byte sequences.
// The 64-bit hash is folded by XOR of its halves, so distinct byte keys
// collide on the same int32 key with probability about n²/2³³ for n keys;
// build with WithDuplicateKeys(DuplicatesReject) to detect that.
//
// The device side receives only the int32 key, so a kernel must be handed
// keys already folded on the host.
func KeyOf(key []byte) int32 {
	h := xxh3.Hash(key)
	return int32(uint32(h) ^ uint32(h>>32))
}

// KeyOfString is KeyOf for strings, without copying.
func KeyOfString(key string) int32 {
	h := xxh3.HashString(key)
	return int32(uint32(h) ^ uint32(h>>32))
}
