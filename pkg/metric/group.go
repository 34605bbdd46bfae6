package metric

import "sync"

// metadata is a small per-slot string map guarded by its own lock, shared by
// the dense and sparse group variants. Writers are the cgroup resolver;
// readers are the serialiser (spec.md §5 "Shared-resource policy").
type metadata struct {
	mu   sync.RWMutex
	rows map[int]map[string]string
}

func newMetadata() *metadata {
	return &metadata{rows: make(map[int]map[string]string)}
}

func (m *metadata) insert(idx int, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[idx]
	if !ok {
		row = make(map[string]string, 1)
		m.rows[idx] = row
	}
	row[key] = value
}

func (m *metadata) load(idx int) (map[string]string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rows[idx]
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out, true
}

func (m *metadata) clear(idx int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, idx)
}

// CounterGroup is a dense array of N independently addressable counters,
// indexed for example by CPU or cgroup id. Storage is lazily allocated on
// first write; allocation is race-safe under concurrent first-writers
// (spec.md §4.1).
type CounterGroup struct {
	n       int
	groupMu sync.RWMutex
	cells   []Counter
	meta    *metadata
}

// NewCounterGroup returns a CounterGroup with capacity n. No backing array
// is allocated until the first Set call.
func NewCounterGroup(n int) *CounterGroup {
	return &CounterGroup{n: n, meta: newMetadata()}
}

// Len returns N, the group's fixed capacity.
func (g *CounterGroup) Len() int { return g.n }

func (g *CounterGroup) ensure() []Counter {
	g.groupMu.RLock()
	cells := g.cells
	g.groupMu.RUnlock()
	if cells != nil {
		return cells
	}
	g.groupMu.Lock()
	defer g.groupMu.Unlock()
	if g.cells == nil {
		g.cells = make([]Counter, g.n)
	}
	return g.cells
}

// Set writes v into slot idx, allocating backing storage on first use.
func (g *CounterGroup) Set(idx int, v uint64) error {
	if idx < 0 || idx >= g.n {
		return ErrInvalidIndex
	}
	g.ensure()[idx].Set(v)
	return nil
}

// Add adds d to slot idx, allocating backing storage on first use.
func (g *CounterGroup) Add(idx int, d uint64) error {
	if idx < 0 || idx >= g.n {
		return ErrInvalidIndex
	}
	g.ensure()[idx].Add(d)
	return nil
}

// At returns a pointer to the underlying Counter for slot idx, for callers
// that need direct Rate/Snapshot access (e.g. the BPF refresh cycle). It
// allocates backing storage if this is the first access.
func (g *CounterGroup) At(idx int) (*Counter, error) {
	if idx < 0 || idx >= g.n {
		return nil, ErrInvalidIndex
	}
	cells := g.ensure()
	return &cells[idx], nil
}

// Load returns a point-in-time copy of all slot values, or ok=false if the
// group has never been written to (no allocation has happened).
func (g *CounterGroup) Load() (values []uint64, ok bool) {
	g.groupMu.RLock()
	cells := g.cells
	g.groupMu.RUnlock()
	if cells == nil {
		return nil, false
	}
	out := make([]uint64, len(cells))
	for i := range cells {
		out[i] = cells[i].Value()
	}
	return out, true
}

// InsertMetadata attaches key=value to slot idx.
func (g *CounterGroup) InsertMetadata(idx int, key, value string) error {
	if idx < 0 || idx >= g.n {
		return ErrInvalidIndex
	}
	g.meta.insert(idx, key, value)
	return nil
}

// LoadMetadata returns slot idx's metadata, if any.
func (g *CounterGroup) LoadMetadata(idx int) (map[string]string, bool) {
	return g.meta.load(idx)
}

// ClearMetadata removes all metadata for slot idx.
func (g *CounterGroup) ClearMetadata(idx int) { g.meta.clear(idx) }

// GaugeGroup is a dense array of N independently addressable gauges, each
// defaulting to the "unset" sentinel.
type GaugeGroup struct {
	n       int
	groupMu sync.RWMutex
	cells   []Gauge
	meta    *metadata
}

// NewGaugeGroup returns a GaugeGroup with capacity n.
func NewGaugeGroup(n int) *GaugeGroup {
	return &GaugeGroup{n: n, meta: newMetadata()}
}

// Len returns N.
func (g *GaugeGroup) Len() int { return g.n }

func (g *GaugeGroup) ensure() []Gauge {
	g.groupMu.RLock()
	cells := g.cells
	g.groupMu.RUnlock()
	if cells != nil {
		return cells
	}
	g.groupMu.Lock()
	defer g.groupMu.Unlock()
	if g.cells == nil {
		cells = make([]Gauge, g.n)
		for i := range cells {
			cells[i] = Gauge{}
			cells[i].value.Store(unsetGauge)
		}
		g.cells = cells
	}
	return g.cells
}

// Set writes v into slot idx, allocating backing storage on first use.
func (g *GaugeGroup) Set(idx int, v int64) error {
	if idx < 0 || idx >= g.n {
		return ErrInvalidIndex
	}
	g.ensure()[idx].Set(v)
	return nil
}

// At returns a pointer to the underlying Gauge for slot idx.
func (g *GaugeGroup) At(idx int) (*Gauge, error) {
	if idx < 0 || idx >= g.n {
		return nil, ErrInvalidIndex
	}
	cells := g.ensure()
	return &cells[idx], nil
}

// Load returns a point-in-time copy of all slot values (value, isSet) pairs,
// or ok=false if the group has never been written to.
func (g *GaugeGroup) Load() (values []int64, set []bool, ok bool) {
	g.groupMu.RLock()
	cells := g.cells
	g.groupMu.RUnlock()
	if cells == nil {
		return nil, nil, false
	}
	values = make([]int64, len(cells))
	set = make([]bool, len(cells))
	for i := range cells {
		v, isSet := cells[i].Value()
		values[i], set[i] = v, isSet
	}
	return values, set, true
}

// InsertMetadata attaches key=value to slot idx.
func (g *GaugeGroup) InsertMetadata(idx int, key, value string) error {
	if idx < 0 || idx >= g.n {
		return ErrInvalidIndex
	}
	g.meta.insert(idx, key, value)
	return nil
}

// LoadMetadata returns slot idx's metadata, if any.
func (g *GaugeGroup) LoadMetadata(idx int) (map[string]string, bool) {
	return g.meta.load(idx)
}

// ClearMetadata removes all metadata for slot idx.
func (g *GaugeGroup) ClearMetadata(idx int) { g.meta.clear(idx) }
