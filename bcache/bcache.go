// Package bcache caches fixed-size disk blocks in a fixed set of
// in-memory buffers shared by all goroutines.
//
// Caching blocks reduces the number of device reads and gives
// goroutines that touch the same block a single synchronization
// point. The index is sharded and each free pool has its own mutex,
// so there is no global lock.
//
// Interface:
//   - Read returns a locked buffer with a block's contents.
//   - Write flushes a locked buffer to its device.
//   - Release unlocks a buffer and gives up the reference.
//   - Pin and Unpin keep a buffer cached without locking it.
//
// Only one goroutine at a time can use a buffer, so do not keep
// buffers longer than necessary.
package bcache

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/mit-pdos/go-journal/common"
	"github.com/mit-pdos/go-journal/util"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-bcache/util/stats"
)

type Bcache struct {
	devs   []disk.Disk
	shards [NSHARD]shard
	pools  []freePool
	slots  []Buf
	tick   uint64 // lastUsed clock, advanced on every hit

	cnt  counters
	dops [numOps]stats.Op
}

// MkBcache creates a cache of nbuf slots in front of devs; the device
// id of a block is its index in devs. npool is the number of free
// pools, one per processor; npool <= 0 means GOMAXPROCS. All slots
// start out unlabeled in pool 0.
func MkBcache(devs []disk.Disk, nbuf uint64, npool int) *Bcache {
	if len(devs) == 0 {
		panic("MkBcache: no devices")
	}
	if nbuf == 0 {
		panic("MkBcache: no buffers")
	}
	if npool <= 0 {
		npool = runtime.GOMAXPROCS(0)
	}
	bc := &Bcache{
		devs:  devs,
		pools: make([]freePool, npool),
		slots: make([]Buf, nbuf),
	}
	for i := range bc.shards {
		bc.shards[i].bufs = make(map[blkid]*Buf)
	}
	p0 := &bc.pools[0]
	for i := range bc.slots {
		b := &bc.slots[i]
		b.Data = make(disk.Block, disk.BlockSize)
		b.lk.init()
		p0.pushHead(b, 0)
	}
	util.DPrintf(1, "MkBcache: %d slots, %d shards, %d pools\n",
		nbuf, NSHARD, npool)
	return bc
}

// bget returns a locked buffer labeled (dev, blkno), recycling the
// least recently released slot on a miss. The shard mutex is held
// from lookup through insertion, so an identity is never labeled
// twice. A shard mutex is always taken before a pool mutex and at
// most one of each is held, which rules out deadlock.
func (bc *Bcache) bget(dev uint64, blkno common.Bnum) (*Buf, error) {
	if dev >= uint64(len(bc.devs)) {
		panic("bcache: unknown device")
	}
	id := bhash(dev, blkno)
	sh := &bc.shards[id]
	key := blkid{dev: dev, blkno: blkno}

	sh.mu.Lock()

	// Is the block already cached?
	if b, ok := sh.bufs[key]; ok {
		b.refcnt++
		b.lastUsed = atomic.AddUint64(&bc.tick, 1)
		bc.cnt.hits.Inc()
		sh.mu.Unlock()
		b.lk.acquire()
		return b, nil
	}
	bc.cnt.misses.Inc()

	// Not cached. Recycle an unused slot, local pool first, then the
	// other pools in index order.
	npool := uint64(len(bc.pools))
	local := pinPool(npool)
	if b := bc.recycle(sh, id, key, local); b != nil {
		bc.cnt.recycles.Inc()
		unpinPool()
		b.lk.acquire()
		return b, nil
	}
	for pid := uint64(0); pid < npool; pid++ {
		if pid == local {
			continue
		}
		if b := bc.recycle(sh, id, key, pid); b != nil {
			bc.cnt.steals.Inc()
			unpinPool()
			b.lk.acquire()
			return b, nil
		}
	}
	unpinPool()
	sh.mu.Unlock()
	bc.cnt.exhausted.Inc()
	util.DPrintf(1, "bget: no free buffers for (%d, %d)\n", dev, blkno)
	return nil, ErrNoBuffers
}

// recycle pulls the LRU victim from pool pid and relabels it for key.
// The caller holds sh.mu; on success the slot is keyed into sh with
// refcnt 1 and both sh.mu and the pool mutex have been released.
func (bc *Bcache) recycle(sh *shard, shardID uint64, key blkid, pid uint64) *Buf {
	p := &bc.pools[pid]
	p.mu.Lock()
	b := p.popTail()
	if b == nil {
		p.mu.Unlock()
		return nil
	}
	util.DPrintf(5, "recycle: (%d, %d) takes slot of (%d, %d) from pool %d\n",
		key.dev, key.blkno, b.Dev, b.Blkno, pid)
	b.Dev = key.dev
	b.Blkno = key.blkno
	b.valid = false
	b.refcnt = 1
	b.loc = location{kind: inShard, id: shardID}
	sh.bufs[key] = b
	sh.mu.Unlock()
	p.mu.Unlock()
	return b
}

// Read returns a locked buffer with the contents of blkno on dev. If
// the cached copy is not valid the block is read from the device,
// with no cache mutex held. The caller must call Release when done.
func (bc *Bcache) Read(dev uint64, blkno common.Bnum) (*Buf, error) {
	b, err := bc.bget(dev, blkno)
	if err != nil {
		return nil, err
	}
	if !b.valid {
		util.DPrintf(5, "Read: load (%d, %d)\n", dev, blkno)
		start := time.Now()
		copy(b.Data, bc.devs[dev].Read(uint64(blkno)))
		bc.dops[readOp].Record(start)
		b.valid = true
	}
	return b, nil
}

// Write writes b's contents through to its device. The buffer must be
// locked. Write changes no cache state.
func (bc *Bcache) Write(b *Buf) {
	if !b.lk.holding() {
		panic("Write: buffer not locked")
	}
	start := time.Now()
	bc.devs[b.Dev].Write(uint64(b.Blkno), b.Data)
	bc.dops[writeOp].Record(start)
}

// Release unlocks b and gives up the caller's reference. The lock is
// released first so a waiter for the same block can proceed at once.
// When the last reference goes away the slot leaves its shard for the
// head of the releasing thread's free pool; a later Read of the same
// block will miss and reread the device.
func (bc *Bcache) Release(b *Buf) {
	if !b.lk.holding() {
		panic("Release: buffer not locked")
	}
	b.lk.release()

	sh := &bc.shards[bhash(b.Dev, b.Blkno)]
	sh.mu.Lock()
	if b.refcnt == 0 {
		panic("Release: refcnt underflow")
	}
	b.refcnt--
	if b.refcnt == 0 {
		// no one is waiting for it
		local := pinPool(uint64(len(bc.pools)))
		p := &bc.pools[local]
		p.mu.Lock()
		delete(sh.bufs, blkid{dev: b.Dev, blkno: b.Blkno})
		p.pushHead(b, local)
		p.mu.Unlock()
		unpinPool()
		util.DPrintf(5, "Release: (%d, %d) to pool %d\n", b.Dev, b.Blkno, local)
	}
	sh.mu.Unlock()
}

// Pin takes an extra reference on b so it cannot be recycled, without
// locking it. Collaborators use this to keep a block cached while
// holding only an indirect interest in it.
func (bc *Bcache) Pin(b *Buf) {
	sh := &bc.shards[bhash(b.Dev, b.Blkno)]
	sh.mu.Lock()
	b.refcnt++
	sh.mu.Unlock()
}

// Unpin drops a reference taken by Pin. Unlike Release, Unpin never
// moves the slot to a free pool: a slot unpinned down to refcnt 0
// stays in its shard until the next Read/Release cycle drops it.
func (bc *Bcache) Unpin(b *Buf) {
	sh := &bc.shards[bhash(b.Dev, b.Blkno)]
	sh.mu.Lock()
	if b.refcnt == 0 {
		panic("Unpin: refcnt underflow")
	}
	b.refcnt--
	sh.mu.Unlock()
}

// ReadBlock returns a copy of the block's contents, hiding the
// lock/release protocol from callers that only want the bytes.
func (bc *Bcache) ReadBlock(dev uint64, blkno common.Bnum) (disk.Block, error) {
	b, err := bc.Read(dev, blkno)
	if err != nil {
		return nil, err
	}
	blk := make(disk.Block, disk.BlockSize)
	copy(blk, b.Data)
	bc.Release(b)
	return blk, nil
}

// WriteBlock replaces the whole block and writes it through. The
// device is not read first even on a miss, since every byte is
// overwritten.
func (bc *Bcache) WriteBlock(dev uint64, blkno common.Bnum, blk disk.Block) error {
	if uint64(len(blk)) != disk.BlockSize {
		panic("WriteBlock: bad block size")
	}
	b, err := bc.bget(dev, blkno)
	if err != nil {
		return err
	}
	copy(b.Data, blk)
	b.valid = true
	bc.Write(b)
	bc.Release(b)
	return nil
}

func (bc *Bcache) Barrier(dev uint64) {
	bc.devs[dev].Barrier()
}

func (bc *Bcache) Size(dev uint64) uint64 {
	return bc.devs[dev].Size()
}

func (bc *Bcache) Close() {
	for _, d := range bc.devs {
		d.Close()
	}
}
