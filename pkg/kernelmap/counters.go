package kernelmap

import "github.com/rezolus/rezolus/pkg/metric"

// PerCPUCounters binds a 1-D per-CPU array of u64[K] (spec.md §4.2
// "counters(name, [&LazyCounter])"): for each CPU, slot k is summed across
// CPUs into a single scalar metric.Counter per k.
type PerCPUCounters struct {
	name     string
	k        int
	onlineN  int
	counters []*metric.Counter
	scratch  []uint64
}

// NewPerCPUCounters builds a binding over k logical counters, aggregating
// across onlineCPUs CPUs, publishing into the provided metric.Counter
// handles (len(counters) must equal k).
func NewPerCPUCounters(name string, k, onlineCPUs int, counters []*metric.Counter) (*PerCPUCounters, error) {
	if len(counters) != k {
		return nil, ErrLayoutMismatch
	}
	return &PerCPUCounters{
		name:     name,
		k:        k,
		onlineN:  onlineCPUs,
		counters: counters,
		scratch:  make([]uint64, onlineCPUs),
	}, nil
}

// Name returns the bound map's name.
func (b *PerCPUCounters) Name() string { return b.name }

// Refresh reads m (one per-CPU slot per logical counter k) and publishes the
// cross-CPU sum into each bound metric.Counter.
func (b *PerCPUCounters) Refresh(m RawMap) error {
	if err := ValidateLayout(m, uint32(b.k), 0); err != nil {
		return err
	}
	for k := 0; k < b.k; k++ {
		if err := m.LookupPerCPU(uint32(k), b.scratch); err != nil {
			return err
		}
		var sum uint64
		for _, v := range b.scratch {
			sum += v
		}
		b.counters[k].Set(sum)
	}
	return nil
}

// CPUCounters binds a 1-D per-CPU array of u64[K] (spec.md §4.2
// "cpu_counters(name, [&CounterGroup])"): slot (cpu, k) is published into
// CounterGroup[k].Set(cpu, v) — i.e. one CounterGroup per logical counter k,
// indexed by CPU.
type CPUCounters struct {
	name    string
	k       int
	groups  []*metric.CounterGroup // len k, each sized onlineN
	scratch []uint64
}

// NewCPUCounters builds a binding over k logical counters, each published
// into its own CPU-indexed CounterGroup.
func NewCPUCounters(name string, k, onlineCPUs int, groups []*metric.CounterGroup) (*CPUCounters, error) {
	if len(groups) != k {
		return nil, ErrLayoutMismatch
	}
	return &CPUCounters{
		name:    name,
		k:       k,
		groups:  groups,
		scratch: make([]uint64, onlineCPUs),
	}, nil
}

// Name returns the bound map's name.
func (b *CPUCounters) Name() string { return b.name }

// Refresh reads m and publishes slot (cpu, k) into groups[k][cpu].
func (b *CPUCounters) Refresh(m RawMap) error {
	if err := ValidateLayout(m, uint32(b.k), 0); err != nil {
		return err
	}
	for k := 0; k < b.k; k++ {
		if err := m.LookupPerCPU(uint32(k), b.scratch); err != nil {
			return err
		}
		for cpu, v := range b.scratch {
			if err := b.groups[k].Set(cpu, v); err != nil {
				return err
			}
		}
	}
	return nil
}
