package bcache

import (
	"sync"

	"github.com/mit-pdos/go-journal/common"
	"github.com/tchajed/goose/machine/disk"
)

// A slot lives in exactly one container at a time: the shard its
// identity hashes to, or one of the free pools. The tag is mutated
// only while holding the mutex of the container the slot moves into.
type locKind uint8

const (
	inShard locKind = iota
	inFree
)

type location struct {
	kind locKind
	id   uint64 // shard id or pool id
}

// Buf is one cache slot. Dev and Blkno are stable while the caller
// holds a reference; Data may be read or written only while the
// buffer is locked, i.e. between Read and Release. All remaining
// fields belong to the cache engine.
type Buf struct {
	Dev   uint64
	Blkno common.Bnum
	Data  disk.Block

	valid    bool   // Data reflects the on-device contents
	refcnt   uint32 // outstanding acquisitions plus pins
	lastUsed uint64 // tick of the last cache hit; not used for eviction

	lk sleepLock

	// free-list links; nil unless loc.kind == inFree
	next, prev *Buf
	loc        location
}

// sleepLock is a mutual-exclusion lock that may be held across device
// I/O, so waiters block on a condition variable rather than spinning.
type sleepLock struct {
	mu   sync.Mutex
	cond *sync.Cond
	held bool
}

func (l *sleepLock) init() {
	l.cond = sync.NewCond(&l.mu)
}

func (l *sleepLock) acquire() {
	l.mu.Lock()
	for l.held {
		l.cond.Wait()
	}
	l.held = true
	l.mu.Unlock()
}

func (l *sleepLock) release() {
	l.mu.Lock()
	if !l.held {
		l.mu.Unlock()
		panic("sleeplock: release of unheld lock")
	}
	l.held = false
	l.mu.Unlock()
	l.cond.Signal()
}

func (l *sleepLock) holding() bool {
	l.mu.Lock()
	h := l.held
	l.mu.Unlock()
	return h
}
