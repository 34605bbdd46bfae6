//go:build linux

package bpfsampler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezolus/rezolus/pkg/kernelmap"
	"github.com/rezolus/rezolus/pkg/metric"
)

type fakeRawMap struct {
	maxEntries uint32
	valueSize  uint32
	values     map[uint32]uint64
	perCPU     map[uint32][]uint64
}

func newFakeRawMap(maxEntries, valueSize uint32) *fakeRawMap {
	return &fakeRawMap{maxEntries: maxEntries, valueSize: valueSize, values: map[uint32]uint64{}, perCPU: map[uint32][]uint64{}}
}

func (m *fakeRawMap) MaxEntries() uint32 { return m.maxEntries }
func (m *fakeRawMap) ValueSize() uint32  { return m.valueSize }
func (m *fakeRawMap) LookupPerCPU(key uint32, out []uint64) error {
	copy(out, m.perCPU[key])
	return nil
}
func (m *fakeRawMap) Lookup(key uint32, out *uint64) error {
	*out = m.values[key]
	return nil
}
func (m *fakeRawMap) Put(key uint32, value uint64) error {
	m.values[key] = value
	return nil
}

type fakeRingbufSource struct {
	records []kernelmap.RingbufRecord
	pos     int
	closed  bool
	closeCh chan struct{}
}

func (s *fakeRingbufSource) Read() (kernelmap.RingbufRecord, error) {
	if s.pos >= len(s.records) {
		// Block until Close, like a real idle ring buffer whose reader is closed.
		<-s.closeCh
		return kernelmap.RingbufRecord{}, errors.New("fakeRingbufSource: closed")
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}
func (s *fakeRingbufSource) Close() error { s.closed = true; close(s.closeCh); return nil }

type fakeSkeleton struct {
	maps       map[string]kernelmap.RawMap
	ringbufs   map[string]kernelmap.RingbufSource
	attachErr  error
	progStats  map[string]ProgStats
	closed     bool
	attachCall int
}

func (s *fakeSkeleton) Map(name string) (kernelmap.RawMap, error) {
	m, ok := s.maps[name]
	if !ok {
		return nil, errors.New("fakeSkeleton: no such map " + name)
	}
	return m, nil
}
func (s *fakeSkeleton) Ringbuf(name string) (kernelmap.RingbufSource, error) {
	r, ok := s.ringbufs[name]
	if !ok {
		return nil, errors.New("fakeSkeleton: no such ringbuf " + name)
	}
	return r, nil
}
func (s *fakeSkeleton) Attach() error { s.attachCall++; return s.attachErr }
func (s *fakeSkeleton) ProgStats(name string) (ProgStats, error) {
	st, ok := s.progStats[name]
	if !ok {
		return ProgStats{}, errors.New("fakeSkeleton: no stats for " + name)
	}
	return st, nil
}
func (s *fakeSkeleton) Close() error { s.closed = true; return nil }

func TestBuildValidatesMapLayoutAndAttaches(t *testing.T) {
	group := metric.NewCounterGroup(4096)
	rawMap := newFakeRawMap(4096, 8)
	rawMap.values[7] = 99

	skel := &fakeSkeleton{maps: map[string]kernelmap.RawMap{
		"cgroup_cpu_usage": rawMap,
	}}

	spec := Spec{
		Name:     "cgroup_cpu",
		Skeleton: skel,
		Maps: []BoundMap{
			{MapName: "cgroup_cpu_usage", Binding: kernelmap.NewPackedCounters("cgroup_cpu_usage", 4096, group)},
		},
	}

	s, err := Build(spec)
	require.NoError(t, err)
	assert.Equal(t, StateActive, s.State())
	assert.Equal(t, 1, skel.attachCall)

	values, ok := group.Load()
	require.True(t, ok)
	assert.EqualValues(t, 99, values[7])
}

func TestBuildFailsOnLayoutMismatch(t *testing.T) {
	group := metric.NewCounterGroup(4096)
	rawMap := newFakeRawMap(100, 8) // wrong entry count

	skel := &fakeSkeleton{maps: map[string]kernelmap.RawMap{"cgroup_cpu_usage": rawMap}}
	spec := Spec{
		Name:     "cgroup_cpu",
		Skeleton: skel,
		Maps: []BoundMap{
			{MapName: "cgroup_cpu_usage", Binding: kernelmap.NewPackedCounters("cgroup_cpu_usage", 4096, group)},
		},
	}

	_, err := Build(spec)
	assert.Error(t, err)
	assert.Equal(t, 0, skel.attachCall, "attach must not happen after a load error")
}

func TestBuildFailsOnAttachError(t *testing.T) {
	skel := &fakeSkeleton{
		maps:      map[string]kernelmap.RawMap{},
		attachErr: errors.New("verifier rejected program"),
	}
	_, err := Build(Spec{Name: "x", Skeleton: skel})
	assert.Error(t, err)
}

func TestRefreshPublishesMapAndProgStats(t *testing.T) {
	group := metric.NewCounterGroup(4096)
	rawMap := newFakeRawMap(4096, 8)
	rawMap.values[1] = 10

	runTime := metric.Global().Counter(metric.NewId("test_bpf_run_time_ns_t1"))
	runCount := metric.Global().Counter(metric.NewId("test_bpf_run_count_t1"))

	skel := &fakeSkeleton{
		maps:      map[string]kernelmap.RawMap{"m": rawMap},
		progStats: map[string]ProgStats{"prog": {RunTimeNs: 500, RunCount: 3}},
	}
	spec := Spec{
		Name:     "t1",
		Skeleton: skel,
		Maps: []BoundMap{
			{MapName: "m", Binding: kernelmap.NewPackedCounters("m", 4096, group)},
		},
		ProgStats: []*ProgStatsBinding{
			{ProgName: "prog", RunTime: runTime, RunCount: runCount},
		},
	}
	s, err := Build(spec)
	require.NoError(t, err)

	rawMap.values[1] = 20
	skel.progStats["prog"] = ProgStats{RunTimeNs: 900, RunCount: 5}

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, StateActive, s.State())

	values, _ := group.Load()
	assert.EqualValues(t, 20, values[1])
	assert.EqualValues(t, 900, runTime.Value())
	assert.EqualValues(t, 5, runCount.Value())
}

func TestRefreshEscalatesToTerminatedAfterRepeatedFailures(t *testing.T) {
	skel := &fakeSkeleton{maps: map[string]kernelmap.RawMap{}}
	spec := Spec{
		Name:     "flaky",
		Skeleton: skel,
		Maps: []BoundMap{
			{MapName: "missing", Binding: kernelmap.NewPackedCounters("missing", 1, metric.NewCounterGroup(1))},
		},
		MaxRefreshFailures: 2,
	}
	// Build validates maps at load time too, so point Build at a map that
	// exists, then remove it before refreshing to force refresh-time errors.
	okMap := newFakeRawMap(1, 8)
	skel.maps["missing"] = okMap
	s, err := Build(spec)
	require.NoError(t, err)

	delete(skel.maps, "missing")

	assert.Error(t, s.Refresh(context.Background()))
	assert.Equal(t, StateActive, s.State(), "one failure must not terminate the sampler")

	assert.Error(t, s.Refresh(context.Background()))
	assert.Equal(t, StateTerminated, s.State(), "second consecutive failure reaches MaxRefreshFailures")
}

func TestRefreshReturnsErrTerminatedOnceTerminated(t *testing.T) {
	skel := &fakeSkeleton{maps: map[string]kernelmap.RawMap{}}
	s, err := Build(Spec{Name: "noop", Skeleton: skel})
	require.NoError(t, err)
	require.NoError(t, s.Shutdown())

	err = s.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrTerminated)
}

func TestShutdownStopsRingbufConsumersAndClosesSkeleton(t *testing.T) {
	src := &fakeRingbufSource{closeCh: make(chan struct{})}
	skel := &fakeSkeleton{
		maps:     map[string]kernelmap.RawMap{},
		ringbufs: map[string]kernelmap.RingbufSource{"cgroup_info": src},
	}
	s, err := Build(Spec{
		Name:     "ids",
		Skeleton: skel,
		Ringbufs: []RingbufSpec{{MapName: "cgroup_info", Handler: func(b []byte) int32 { return 0 }}},
	})
	require.NoError(t, err)

	require.NoError(t, s.Shutdown())
	assert.True(t, src.closed)
	assert.True(t, skel.closed)
}
