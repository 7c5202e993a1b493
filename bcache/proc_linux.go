//go:build linux

package bcache

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pinPool chooses the free pool for the calling goroutine and keeps
// the goroutine on its OS thread until unpinPool runs, so the choice
// cannot go stale while the pool is in use. Keying the choice by
// thread id keeps a thread's releases and acquisitions on one pool.
func pinPool(npool uint64) uint64 {
	runtime.LockOSThread()
	return uint64(unix.Gettid()) % npool
}

func unpinPool() {
	runtime.UnlockOSThread()
}
