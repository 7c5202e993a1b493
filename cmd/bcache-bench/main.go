package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"runtime/pprof"
	"time"

	"github.com/goose-lang/std"
	"github.com/tchajed/goose/machine/disk"
	"github.com/tchajed/marshal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mit-pdos/go-bcache/bcache"
	"github.com/mit-pdos/go-journal/common"
	"github.com/mit-pdos/go-journal/util"
)

var zeroBlock = make(disk.Block, disk.BlockSize)

// mkPayload tags a block with its own number and a writer sequence so
// a later read can detect a block served under the wrong identity.
func mkPayload(blkno uint64, seq uint64) disk.Block {
	enc := marshal.NewEnc(disk.BlockSize)
	enc.PutInt(blkno)
	enc.PutInt(seq)
	return enc.Finish()
}

func checkPayload(blkno uint64, blk disk.Block) {
	if std.BytesEqual(blk, zeroBlock) {
		// never written
		return
	}
	dec := marshal.NewDec(blk)
	if got := dec.GetInt(); got != blkno {
		panic(fmt.Sprintf("block %d holds block %d's data", blkno, got))
	}
}

type config struct {
	nblocks  uint64
	duration time.Duration
}

func client(bc *bcache.Bcache, lim *rate.Limiter, c config, seed int64) (int, error) {
	rnd := rand.New(rand.NewSource(seed))
	start := time.Now()
	iters := 0
	var seq uint64
	for time.Since(start) < c.duration {
		if lim != nil {
			if err := lim.Wait(context.Background()); err != nil {
				return iters, err
			}
		}
		bn := uint64(rnd.Int63n(int64(c.nblocks)))
		if rnd.Intn(2) == 0 {
			blk, err := bc.ReadBlock(0, common.Bnum(bn))
			if errors.Is(err, bcache.ErrNoBuffers) {
				continue
			}
			if err != nil {
				return iters, err
			}
			checkPayload(bn, blk)
		} else {
			seq++
			err := bc.WriteBlock(0, common.Bnum(bn), mkPayload(bn, seq))
			if errors.Is(err, bcache.ErrNoBuffers) {
				continue
			}
			if err != nil {
				return iters, err
			}
		}
		iters++
	}
	return iters, nil
}

func main() {
	var diskfile string
	flag.StringVar(&diskfile, "disk", "", "disk image (empty for MemDisk)")

	var nblocks uint64
	flag.Uint64Var(&nblocks, "blocks", 1000, "number of blocks on the disk")

	var nbuf uint64
	flag.Uint64Var(&nbuf, "nbuf", 512, "number of cache slots")

	var nthread int
	flag.IntVar(&nthread, "threads", 4, "number of client goroutines")

	var duration time.Duration
	flag.DurationVar(&duration, "benchtime", 10*time.Second, "time to run for")

	var opsPerSec float64
	flag.Float64Var(&opsPerSec, "rate", 0, "limit op rate (0 for unlimited)")

	var dumpStats bool
	flag.BoolVar(&dumpStats, "stats", false, "dump stats to stderr at end")

	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file")

	flag.Uint64Var(&util.Debug, "debug", 0, "debug level (higher is more verbose)")
	flag.Parse()

	var d disk.Disk
	if diskfile == "" {
		d = disk.NewMemDisk(nblocks)
	} else {
		f, err := disk.NewFileDisk(diskfile, nblocks)
		if err != nil {
			log.Fatalf("open disk %s: %v", diskfile, err)
		}
		d = f
	}
	bc := bcache.MkBcache([]disk.Disk{d}, nbuf, 0)
	defer bc.Close()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	var lim *rate.Limiter
	if opsPerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(opsPerSec), 1)
	}

	c := config{nblocks: nblocks, duration: duration}
	iters := make([]int, nthread)
	start := time.Now()
	var g errgroup.Group
	for i := 0; i < nthread; i++ {
		i := i
		g.Go(func() error {
			n, err := client(bc, lim, c, int64(i))
			iters[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
	elapsed := time.Since(start)

	total := 0
	for _, n := range iters {
		total += n
	}
	fmt.Printf("bcache-bench: %v threads %0.4f ops/sec\n",
		nthread, float64(total)/elapsed.Seconds())

	if dumpStats {
		bc.WriteStats(os.Stderr)
	}
}
