package kernelmap

import "github.com/rezolus/rezolus/pkg/metric"

// PackedCounters binds a flat u64[MAX_CGROUPS] array (spec.md §4.2
// "packed_counters(name, &CounterGroup)"): slot i is published to
// CounterGroup.Set(i, v) directly — this is the cgroup-indexed shape used by
// cgroup accounting samplers.
type PackedCounters struct {
	name  string
	n     int
	group *metric.CounterGroup
}

// NewPackedCounters builds a binding over a CounterGroup of capacity n.
func NewPackedCounters(name string, n int, group *metric.CounterGroup) *PackedCounters {
	return &PackedCounters{name: name, n: n, group: group}
}

// Name returns the bound map's name.
func (b *PackedCounters) Name() string { return b.name }

// Refresh reads every slot of m and publishes it into the bound group.
func (b *PackedCounters) Refresh(m RawMap) error {
	if err := ValidateLayout(m, uint32(b.n), 8); err != nil {
		return err
	}
	for i := 0; i < b.n; i++ {
		var v uint64
		if err := m.Lookup(uint32(i), &v); err != nil {
			return err
		}
		if err := b.group.Set(i, v); err != nil {
			return err
		}
	}
	return nil
}
