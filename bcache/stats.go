package bcache

import (
	"io"

	"github.com/mit-pdos/go-bcache/util/stats"
)

const (
	readOp int = iota
	writeOp
	numOps
)

var opNames = []string{"disk.Read", "disk.Write"}

type counters struct {
	hits      stats.Counter
	misses    stats.Counter
	recycles  stats.Counter // victim came from the local pool
	steals    stats.Counter // victim came from another pool
	exhausted stats.Counter
}

var cntNames = []string{"hit", "miss", "recycle", "steal", "exhausted"}

func (c *counters) loads() []uint64 {
	return []uint64{
		c.hits.Load(),
		c.misses.Load(),
		c.recycles.Load(),
		c.steals.Load(),
		c.exhausted.Load(),
	}
}

// WriteStats writes cache event counts and device I/O latencies to w.
func (bc *Bcache) WriteStats(w io.Writer) {
	stats.WriteCounts(cntNames, bc.cnt.loads(), w)
	stats.WriteTable(opNames, bc.dops[:], w)
}

func (bc *Bcache) ResetStats() {
	bc.cnt.hits.Reset()
	bc.cnt.misses.Reset()
	bc.cnt.recycles.Reset()
	bc.cnt.steals.Reset()
	bc.cnt.exhausted.Reset()
	for i := range bc.dops {
		bc.dops[i].Reset()
	}
}
