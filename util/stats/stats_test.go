package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOpRecord(t *testing.T) {
	var op Op
	start := time.Now()
	op.Record(start)
	op.Record(start)
	assert.Equal(t, uint32(2), op.Count())
	assert.GreaterOrEqual(t, op.MicrosPerOp(), 0.0)

	op.Reset()
	assert.Equal(t, uint32(0), op.Count())
	assert.Equal(t, 0.0, op.MicrosPerOp())
}

func TestCounter(t *testing.T) {
	var c Counter
	c.Inc()
	c.Inc()
	assert.Equal(t, uint64(2), c.Load())
	c.Reset()
	assert.Equal(t, uint64(0), c.Load())
}

func TestFormatTable(t *testing.T) {
	ops := make([]Op, 2)
	ops[0].Record(time.Now())
	s := FormatTable([]string{"read", "write"}, ops)
	assert.Contains(t, s, "read")
	assert.Contains(t, s, "total")

	assert.Panics(t, func() { FormatTable([]string{"read"}, ops) })
}
