package metric

import (
	"math"
	"sync/atomic"
)

// unsetGauge is the "never set" sentinel, matching spec.md's GaugeGroup
// default (MIN_INT) so unset slots are distinguishable from a real zero
// reading.
const unsetGauge = int64(math.MinInt64)

// Gauge is a signed 64-bit instantaneous value. A gauge that has never been
// Set reads as unset: Value reports ok=false.
type Gauge struct {
	value atomic.Int64
}

// NewGauge returns a Gauge in the unset state.
func NewGauge() *Gauge {
	g := &Gauge{}
	g.value.Store(unsetGauge)
	return g
}

// Set stores v as the gauge's value.
func (g *Gauge) Set(v int64) { g.value.Store(v) }

// Add adds d to the gauge's value. If the gauge was unset, it is treated as
// starting from zero.
func (g *Gauge) Add(d int64) {
	for {
		cur := g.value.Load()
		base := cur
		if base == unsetGauge {
			base = 0
		}
		if g.value.CompareAndSwap(cur, base+d) {
			return
		}
	}
}

// Value returns the current reading and whether it has ever been set.
func (g *Gauge) Value() (v int64, ok bool) {
	v = g.value.Load()
	return v, v != unsetGauge
}
