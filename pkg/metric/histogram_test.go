package metric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketCount(t *testing.T) {
	// g=7, m=32 is the layout used by the BPF histogram maps (SPEC_FULL §12).
	assert.Equal(t, 1+(32-7+1)*(1<<7), BucketCount(7, 32))
	assert.Equal(t, 0, BucketCount(5, 3), "m < g is invalid")
}

func TestHistogramLinearRegionIncrementsExactBucket(t *testing.T) {
	h := NewHistogram(3, 8) // linear region covers [0, 8)
	h.Increment(5)
	buckets := h.Buckets()
	assert.Equal(t, uint64(1), buckets[5])
	for i, v := range buckets {
		if i != 5 {
			assert.Zero(t, v)
		}
	}
}

func TestHistogramSum(t *testing.T) {
	h := NewHistogram(4, 10)
	h.Increment(1)
	h.Increment(1)
	h.Increment(100)
	assert.Equal(t, uint64(3), h.Sum())
}

func TestHistogramWrappingSub(t *testing.T) {
	a := NewHistogram(4, 10)
	b := NewHistogram(4, 10)
	require.NoError(t, a.Set(0, 10))
	require.NoError(t, b.Set(0, 3))
	d := a.WrappingSub(b)
	assert.Equal(t, uint64(7), d.Buckets()[0])
}

func TestHistogramWrappingSubMismatchedParamsPanics(t *testing.T) {
	a := NewHistogram(4, 10)
	b := NewHistogram(3, 10)
	assert.Panics(t, func() { a.WrappingSub(b) })
}

func TestHistogramSetInvalidIndex(t *testing.T) {
	h := NewHistogram(4, 10)
	assert.ErrorIs(t, h.Set(-1, 1), ErrInvalidIndex)
	assert.ErrorIs(t, h.Set(h.Len(), 1), ErrInvalidIndex)
}

func TestHistogramPercentileKernelUserParity(t *testing.T) {
	// Scenario B: write buckets {0:1, 5:3, 42:2}; percentile(50) must fall
	// inside bucket 5's own range.
	h := NewHistogram(6, 16) // linear region covers [0, 64), so 5 and 42 are exact buckets.
	require.NoError(t, h.Set(0, 1))
	require.NoError(t, h.Set(5, 3))
	require.NoError(t, h.Set(42, 2))

	lo, hi, ok := h.Percentile(50)
	require.True(t, ok)
	assert.Equal(t, uint64(5), lo)
	assert.Equal(t, uint64(5), hi)
}

func TestHistogramPercentileAllDefinedForAnyP(t *testing.T) {
	a := NewHistogram(5, 12)
	b := NewHistogram(5, 12)
	require.NoError(t, a.Set(1, 5))
	require.NoError(t, a.Set(2, 5))
	require.NoError(t, b.Set(1, 1))
	d := a.WrappingSub(b)
	for p := 0.0; p <= 100.0; p += 5.0 {
		_, _, ok := d.Percentile(p)
		assert.True(t, ok, "percentile(%v) must be defined", p)
	}
}

func TestHistogramPercentileEmpty(t *testing.T) {
	h := NewHistogram(4, 10)
	_, _, ok := h.Percentile(50)
	assert.False(t, ok)
}

func TestHistogramPercentileOverflowBucketIsUnbounded(t *testing.T) {
	// bucketIndex clamps every value >= 2^m (and any sub-bucket rounding
	// overflow within the top power) into the last bucket; its reported
	// range must cover that whole catch-all span, not just the nominal
	// sub=0 sub-bucket width.
	h := NewHistogram(1, 3) // lastBucket aggregates everything from 2^3=8 upward.
	h.Increment(1_000_000)
	lo, hi, ok := h.Percentile(50)
	require.True(t, ok)
	assert.Equal(t, uint64(8), lo)
	assert.Equal(t, uint64(math.MaxUint64), hi)
}
