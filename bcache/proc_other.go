//go:build !linux

package bcache

import "sync/atomic"

var poolCtr uint64

// Without a cheap thread identity, spread callers over the pools
// round-robin. Correctness only needs a stable choice per call, which
// reading the counter once provides.
func pinPool(npool uint64) uint64 {
	return atomic.AddUint64(&poolCtr, 1) % npool
}

func unpinPool() {}
