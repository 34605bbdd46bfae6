package kernelmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezolus/rezolus/pkg/metric"
)

func TestPerCPUCountersSumsAcrossCPUs(t *testing.T) {
	m := newFakeMap(2, 8)
	m.perCPU[0] = []uint64{1, 2, 3, 4} // 4 CPUs
	m.perCPU[1] = []uint64{10, 0, 0, 0}

	c0, c1 := &metric.Counter{}, &metric.Counter{}
	b, err := NewPerCPUCounters("syscalls", 2, 4, []*metric.Counter{c0, c1})
	require.NoError(t, err)

	require.NoError(t, b.Refresh(m))
	assert.Equal(t, uint64(10), c0.Value())
	assert.Equal(t, uint64(10), c1.Value())
}

func TestPerCPUCountersLayoutMismatch(t *testing.T) {
	m := newFakeMap(3, 8) // binding expects k=2
	c0, c1 := &metric.Counter{}, &metric.Counter{}
	b, err := NewPerCPUCounters("syscalls", 2, 4, []*metric.Counter{c0, c1})
	require.NoError(t, err)
	assert.ErrorIs(t, b.Refresh(m), ErrLayoutMismatch)
}

func TestCPUCountersPublishesPerCPUSlots(t *testing.T) {
	m := newFakeMap(1, 8)
	m.perCPU[0] = []uint64{5, 6, 7}

	g := metric.NewCounterGroup(3)
	b, err := NewCPUCounters("softirq", 1, 3, []*metric.CounterGroup{g})
	require.NoError(t, err)
	require.NoError(t, b.Refresh(m))

	values, ok := g.Load()
	require.True(t, ok)
	assert.Equal(t, []uint64{5, 6, 7}, values)
}
