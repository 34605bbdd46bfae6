package metric

import (
	"fmt"
	"sync"
)

// Kind distinguishes the primitive stored under a registry entry.
type Kind int

const (
	KindCounter Kind = iota
	KindGauge
	KindHistogram
	KindCounterGroup
	KindGaugeGroup
)

func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindGauge:
		return "gauge"
	case KindHistogram:
		return "histogram"
	case KindCounterGroup:
		return "counter_group"
	case KindGaugeGroup:
		return "gauge_group"
	default:
		return "unknown"
	}
}

// Entry is one registered metric: its identity, kind, and underlying cell.
// Exactly one of the typed fields is non-nil, selected by Kind.
type Entry struct {
	Id            Id
	Kind          Kind
	Counter       *Counter
	Gauge         *Gauge
	Histogram     *Histogram
	CounterGroup  *CounterGroup
	GaugeGroup    *GaugeGroup
	CgroupIndexed bool
}

// Registry is the process-wide singleton metric store (Design Notes §9):
// every metric is registered exactly once and resolves to the same storage
// cell for the life of the process (spec.md §3 invariant). Cgroup-indexed
// groups are registered by name so the cgroup resolver can attach "name"
// metadata without holding a back-pointer (Design Notes "Cyclic
// label→metric references").
type Registry struct {
	mu    sync.RWMutex
	order []string
	byKey map[string]*Entry
}

// NewRegistry returns an empty registry. Most callers should use Global();
// NewRegistry exists so tests can build an isolated registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]*Entry)}
}

var global = NewRegistry()

// Global returns the process-wide registry singleton.
func Global() *Registry { return global }

func (r *Registry) lookupOrCreate(id Id, kind Kind, create func() *Entry) *Entry {
	key := id.Key()

	r.mu.RLock()
	e, ok := r.byKey[key]
	r.mu.RUnlock()
	if ok {
		if e.Kind != kind {
			panic(fmt.Sprintf("metric: %s already registered as %s, not %s", id, e.Kind, kind))
		}
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok = r.byKey[key]; ok {
		if e.Kind != kind {
			panic(fmt.Sprintf("metric: %s already registered as %s, not %s", id, e.Kind, kind))
		}
		return e
	}
	e = create()
	r.byKey[key] = e
	r.order = append(r.order, key)
	return e
}

// Counter registers (or returns the existing) Counter for id.
func (r *Registry) Counter(id Id) *Counter {
	return r.lookupOrCreate(id, KindCounter, func() *Entry {
		return &Entry{Id: id, Kind: KindCounter, Counter: &Counter{}}
	}).Counter
}

// Gauge registers (or returns the existing) Gauge for id.
func (r *Registry) Gauge(id Id) *Gauge {
	return r.lookupOrCreate(id, KindGauge, func() *Entry {
		return &Entry{Id: id, Kind: KindGauge, Gauge: NewGauge()}
	}).Gauge
}

// Histogram registers (or returns the existing) Histogram for id with
// bucket parameters (g, m).
func (r *Registry) Histogram(id Id, g, m uint8) *Histogram {
	return r.lookupOrCreate(id, KindHistogram, func() *Entry {
		return &Entry{Id: id, Kind: KindHistogram, Histogram: NewHistogram(g, m)}
	}).Histogram
}

// CounterGroup registers (or returns the existing) CounterGroup for id with
// capacity n. cgroupIndexed marks the group as eligible for the cgroup
// resolver's "name" metadata attachment (spec.md §4.5).
func (r *Registry) CounterGroup(id Id, n int, cgroupIndexed bool) *CounterGroup {
	return r.lookupOrCreate(id, KindCounterGroup, func() *Entry {
		return &Entry{Id: id, Kind: KindCounterGroup, CounterGroup: NewCounterGroup(n), CgroupIndexed: cgroupIndexed}
	}).CounterGroup
}

// GaugeGroup registers (or returns the existing) GaugeGroup for id with
// capacity n.
func (r *Registry) GaugeGroup(id Id, n int, cgroupIndexed bool) *GaugeGroup {
	return r.lookupOrCreate(id, KindGaugeGroup, func() *Entry {
		return &Entry{Id: id, Kind: KindGaugeGroup, GaugeGroup: NewGaugeGroup(n), CgroupIndexed: cgroupIndexed}
	}).GaugeGroup
}

// All returns every registered entry in registration order (the stable
// order the snapshot serialiser iterates, spec.md §4.6).
func (r *Registry) All() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.byKey[k])
	}
	return out
}

// CgroupIndexed returns every registered group (counter or gauge) marked
// cgroup-indexed, for the cgroup resolver to attach identity metadata to.
func (r *Registry) CgroupIndexed() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0)
	for _, k := range r.order {
		e := r.byKey[k]
		if e.CgroupIndexed {
			out = append(out, e)
		}
	}
	return out
}
