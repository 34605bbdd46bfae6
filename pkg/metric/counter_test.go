package metric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounterSetAdd(t *testing.T) {
	var c Counter
	c.Set(5)
	assert.Equal(t, uint64(5), c.Value())
	c.Add(3)
	assert.Equal(t, uint64(8), c.Value())
}

func TestCounterSnapshotPrevious(t *testing.T) {
	var c Counter
	c.Set(42)
	assert.Equal(t, uint64(42), c.Snapshot())
	assert.Equal(t, uint64(42), c.Previous())
	c.Set(100)
	assert.Equal(t, uint64(42), c.Previous(), "Previous should not move until the next Snapshot")
}

func TestRateNormal(t *testing.T) {
	rate, ok := Rate(10, 18, 2.0)
	assert.True(t, ok)
	assert.InDelta(t, 4.0, rate, 1e-9)
}

func TestRateWrap(t *testing.T) {
	// Counter wraps near the top of the 64-bit range: a legitimate small
	// increase should still read as a small positive rate.
	t1 := uint64(math.MaxUint64) - 4 // 2^64-5
	t2 := uint64(3)
	rate, ok := Rate(t1, t2, 1.0)
	assert.True(t, ok)
	assert.InDelta(t, 8.0, rate, 1e-9)
}

func TestRateImpossibleDeltaDropped(t *testing.T) {
	// A huge apparent decrease (interpreted as an enormous wrapped delta)
	// must be rejected per spec.md Testable Property 4.
	rate, ok := Rate(1<<62, 1, 1.0)
	assert.False(t, ok)
	assert.Zero(t, rate)
}

func TestRateNonPositiveElapsed(t *testing.T) {
	_, ok := Rate(1, 2, 0)
	assert.False(t, ok)
}
