package kernelmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezolus/rezolus/pkg/metric"
)

func TestHistogramMapCopiesBucketsAsAbsoluteState(t *testing.T) {
	h := metric.NewHistogram(6, 16)
	n := metric.BucketCount(6, 16)
	m := newFakeMap(uint32(n), 8)
	m.flat[0] = 1
	m.flat[5] = 3
	m.flat[42] = 2

	b := NewHistogramMap("scheduler_runqueue_latency", h)
	require.NoError(t, b.Refresh(m))

	buckets := h.Buckets()
	assert.Equal(t, uint64(1), buckets[0])
	assert.Equal(t, uint64(3), buckets[5])
	assert.Equal(t, uint64(2), buckets[42])
}

func TestHistogramMapRejectsLayoutMismatch(t *testing.T) {
	h := metric.NewHistogram(6, 16)
	m := newFakeMap(10, 8) // wrong bucket count
	b := NewHistogramMap("scheduler_runqueue_latency", h)
	assert.ErrorIs(t, b.Refresh(m), ErrLayoutMismatch)
}
