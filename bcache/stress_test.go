package bcache

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/mit-pdos/go-journal/common"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// Random acquire/write/pin/release traffic from many goroutines over
// a small block range, to shake out lock-order and list-corruption
// bugs. Run with -race.
func TestStressRandom(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}
	bc := mkTest(t, 2, 16, 4)
	const (
		nclients = 8
		iters    = 2000
		nblocks  = 20
	)
	var g errgroup.Group
	for i := 0; i < nclients; i++ {
		seed := int64(i)
		g.Go(func() error {
			rnd := rand.New(rand.NewSource(seed))
			for j := 0; j < iters; j++ {
				dev := uint64(rnd.Intn(2))
				bn := common.Bnum(rnd.Intn(nblocks))
				b, err := bc.Read(dev, bn)
				if errors.Is(err, ErrNoBuffers) {
					time.Sleep(time.Duration(rnd.Intn(50)) * time.Microsecond)
					continue
				}
				if err != nil {
					return err
				}
				switch rnd.Intn(3) {
				case 0:
					b.Data[0] = byte(bn)
					bc.Write(b)
				case 1:
					bc.Pin(b)
					bc.Unpin(b)
				}
				if rnd.Intn(4) == 0 {
					time.Sleep(time.Duration(rnd.Intn(20)) * time.Microsecond)
				}
				bc.Release(b)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	checkMembership(t, bc)
	for i := range bc.slots {
		require.Equal(t, uint32(0), bc.slots[i].refcnt)
	}
}
