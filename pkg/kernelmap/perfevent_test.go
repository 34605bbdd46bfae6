package kernelmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezolus/rezolus/pkg/metric"
)

type fakePerfCounter struct {
	value uint64
	fdVal int
	closed bool
}

func (c *fakePerfCounter) read() (uint64, error) { return c.value, nil }
func (c *fakePerfCounter) fd() int                { return c.fdVal }
func (c *fakePerfCounter) close() error           { c.closed = true; return nil }

type fakePerfOpener struct {
	fail    map[int]bool
	byCPU   map[int]*fakePerfCounter
}

func newFakePerfOpener() *fakePerfOpener {
	return &fakePerfOpener{fail: map[int]bool{}, byCPU: map[int]*fakePerfCounter{}}
}

func (o *fakePerfOpener) open(cpu int, ev Event) (perfCounter, error) {
	if o.fail[cpu] {
		return nil, assert.AnError
	}
	c := &fakePerfCounter{value: uint64(cpu) * 1000, fdVal: cpu + 100}
	o.byCPU[cpu] = c
	return c, nil
}

func TestPerfEventBindingOpensAllCPUsAndRefreshes(t *testing.T) {
	opener := newFakePerfOpener()
	g := metric.NewCounterGroup(4)
	b := NewPerfEventBinding("cpu_cycles", EventCPUCycles, g, []int{0, 1, 2, 3}, opener, nil)

	require.NoError(t, b.Refresh())
	values, ok := g.Load()
	require.True(t, ok)
	assert.Equal(t, []uint64{0, 1000, 2000, 3000}, values)
	assert.Empty(t, b.Unavailable())
}

func TestPerfEventBindingSkipsUnavailableCPUs(t *testing.T) {
	opener := newFakePerfOpener()
	opener.fail[2] = true
	g := metric.NewCounterGroup(4)
	b := NewPerfEventBinding("cpu_cycles", EventCPUCycles, g, []int{0, 1, 2, 3}, opener, nil)

	require.NoError(t, b.Refresh())
	assert.True(t, b.Unavailable()[2])
	values, ok := g.Load()
	require.True(t, ok)
	// CPU 2's slot is never written, so it stays at the zero value.
	assert.Equal(t, uint64(0), values[2])
	assert.Equal(t, uint64(3000), values[3])
}

func TestPerfEventBindingInstallsFdIntoMap(t *testing.T) {
	opener := newFakePerfOpener()
	g := metric.NewCounterGroup(2)
	fdMap := newFakeMap(2, 4)
	b := NewPerfEventBinding("cpu_cycles", EventCPUCycles, g, []int{0, 1}, opener, fdMap)
	_ = b

	var v uint64
	require.NoError(t, fdMap.Lookup(0, &v))
	assert.Equal(t, uint64(100), v)
	require.NoError(t, fdMap.Lookup(1, &v))
	assert.Equal(t, uint64(101), v)
}

func TestPerfEventBindingClose(t *testing.T) {
	opener := newFakePerfOpener()
	g := metric.NewCounterGroup(1)
	b := NewPerfEventBinding("cpu_cycles", EventCPUCycles, g, []int{0}, opener, nil)
	require.NoError(t, b.Close())
	assert.True(t, opener.byCPU[0].closed)
}
