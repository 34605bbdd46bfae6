// Package snapshot builds the point-in-time serialisable view of the
// metric registry consumed by the HTTP exposition layer (spec.md §4.6) and
// encodes it in the self-describing binary format spec.md §6 defines.
package snapshot

import (
	"strconv"
	"time"

	"github.com/rezolus/rezolus/pkg/metric"
)

// Kind mirrors metric.Kind for the values a Reading can hold.
type Kind = metric.Kind

// Reading is one metric's value at snapshot time, tagged by kind.
type Reading struct {
	Kind      Kind
	Counter   uint64
	Gauge     int64
	Buckets   []uint64
	G, M      uint8
}

// Row is one (identity, reading) pair in the snapshot.
type Row struct {
	Name   string
	Labels map[string]string
	Kind   Kind
	Reading
}

// Snapshot is a point-in-time consistent reading of the registry, prepared
// for serialisation (spec.md §4.6).
type Snapshot struct {
	TakenAt          time.Time
	SamplingDuration time.Duration
	Rows             []Row
}

// Take iterates every registered metric in stable (insertion) order and
// reads each cell once, per spec.md §4.6. Rows for cgroup-indexed group
// slots that have no cgroup identity metadata yet are suppressed, per
// spec.md §3's invariant (a row at index i != 0 must not be surfaced
// without a name label).
func Take(reg *metric.Registry, takenAt time.Time, samplingDuration time.Duration) Snapshot {
	snap := Snapshot{TakenAt: takenAt, SamplingDuration: samplingDuration}
	for _, e := range reg.All() {
		snap.Rows = append(snap.Rows, rowsFor(e)...)
	}
	return snap
}

func rowsFor(e *metric.Entry) []Row {
	switch e.Kind {
	case metric.KindCounter:
		return []Row{{
			Name: e.Id.Name, Labels: e.Id.LabelMap(), Kind: e.Kind,
			Reading: Reading{Kind: e.Kind, Counter: e.Counter.Value()},
		}}
	case metric.KindGauge:
		v, ok := e.Gauge.Value()
		if !ok {
			return nil
		}
		return []Row{{
			Name: e.Id.Name, Labels: e.Id.LabelMap(), Kind: e.Kind,
			Reading: Reading{Kind: e.Kind, Gauge: v},
		}}
	case metric.KindHistogram:
		g, m := e.Histogram.Params()
		return []Row{{
			Name: e.Id.Name, Labels: e.Id.LabelMap(), Kind: e.Kind,
			Reading: Reading{Kind: e.Kind, Buckets: e.Histogram.Buckets(), G: g, M: m},
		}}
	case metric.KindCounterGroup:
		return counterGroupRows(e)
	case metric.KindGaugeGroup:
		return gaugeGroupRows(e)
	default:
		return nil
	}
}

func counterGroupRows(e *metric.Entry) []Row {
	values, ok := e.CounterGroup.Load()
	if !ok {
		return nil
	}
	rows := make([]Row, 0, len(values))
	for i, v := range values {
		labels := e.Id.LabelMap()
		if e.CgroupIndexed {
			if i == 0 {
				// cgroup id 0 is never a valid row (root occupies id 1).
				continue
			}
			meta, hasName := e.CounterGroup.LoadMetadata(i)
			if !hasName {
				continue // identity not yet resolved; suppress per spec.md §3
			}
			for k, v := range meta {
				labels[k] = v
			}
		} else {
			labels["cpu"] = strconv.Itoa(i)
		}
		rows = append(rows, Row{
			Name: e.Id.Name, Labels: labels, Kind: metric.KindCounter,
			Reading: Reading{Kind: metric.KindCounter, Counter: v},
		})
	}
	return rows
}

func gaugeGroupRows(e *metric.Entry) []Row {
	values, set, ok := e.GaugeGroup.Load()
	if !ok {
		return nil
	}
	rows := make([]Row, 0, len(values))
	for i, v := range values {
		if !set[i] {
			continue
		}
		labels := e.Id.LabelMap()
		if e.CgroupIndexed {
			if i == 0 {
				continue
			}
			meta, hasName := e.GaugeGroup.LoadMetadata(i)
			if !hasName {
				continue
			}
			for k, v := range meta {
				labels[k] = v
			}
		} else {
			labels["cpu"] = strconv.Itoa(i)
		}
		rows = append(rows, Row{
			Name: e.Id.Name, Labels: labels, Kind: metric.KindGauge,
			Reading: Reading{Kind: metric.KindGauge, Gauge: v},
		})
	}
	return rows
}
