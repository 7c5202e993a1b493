package bcache

import (
	"sync"

	"github.com/mit-pdos/go-journal/common"
)

// NSHARD is the number of hash buckets in the block index. Each
// bucket has its own mutex, so goroutines touching unrelated blocks
// rarely contend.
const NSHARD uint64 = 13

type blkid struct {
	dev   uint64
	blkno common.Bnum
}

// A shard holds the currently-labeled buffers whose identity hashes
// to it. Lookups and insertions within one shard are linearized by mu.
type shard struct {
	mu   sync.Mutex
	bufs map[blkid]*Buf
}

func bhash(dev uint64, blkno common.Bnum) uint64 {
	return (1234*dev + 5678*uint64(blkno) + 90) % NSHARD
}
