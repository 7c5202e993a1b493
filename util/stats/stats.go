// package stats tracks operation counts and latencies
package stats

import (
	"bytes"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rodaine/table"
)

// Op accumulates the call count and total latency of one operation.
// Record and Reset are safe for concurrent use.
type Op struct {
	count uint32
	nanos uint64
}

func (op *Op) Record(start time.Time) {
	atomic.AddUint32(&op.count, 1)
	dur := time.Since(start)
	atomic.AddUint64(&op.nanos, uint64(dur.Nanoseconds()))
}

func (op *Op) Reset() {
	atomic.StoreUint32(&op.count, 0)
	atomic.StoreUint64(&op.nanos, 0)
}

func (op *Op) Count() uint32 {
	return atomic.LoadUint32(&op.count)
}

func (op Op) MicrosPerOp() float64 {
	if op.count == 0 {
		return 0
	}
	return float64(op.nanos) / float64(op.count) / 1e3
}

// Counter is an event count shared between goroutines.
type Counter struct {
	n uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.n, 1)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.n)
}

func (c *Counter) Reset() {
	atomic.StoreUint64(&c.n, 0)
}

func WriteTable(names []string, ops []Op, w io.Writer) {
	if len(names) != len(ops) {
		panic("mismatched names and ops lists")
	}
	tbl := table.New("op", "count", "us")
	tbl.WithWriter(w)
	var totalOp Op
	for i, name := range names {
		op := Op{
			count: atomic.LoadUint32(&ops[i].count),
			nanos: atomic.LoadUint64(&ops[i].nanos),
		}
		totalOp.count += op.count
		totalOp.nanos += op.nanos
		tbl.AddRow(name, op.count, fmt.Sprintf("%0.1f us/op", op.MicrosPerOp()))
	}
	tbl.AddRow("total", totalOp.count,
		fmt.Sprintf("%0.1f us", float64(totalOp.nanos)/1e3))
	tbl.Print()
}

func WriteCounts(names []string, counts []uint64, w io.Writer) {
	if len(names) != len(counts) {
		panic("mismatched names and counts lists")
	}
	tbl := table.New("counter", "count")
	tbl.WithWriter(w)
	for i, name := range names {
		tbl.AddRow(name, counts[i])
	}
	tbl.Print()
}

func FormatTable(names []string, ops []Op) string {
	buf := new(bytes.Buffer)
	WriteTable(names, ops, buf)
	return buf.String()
}
