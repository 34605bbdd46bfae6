package metric

import "sync/atomic"

// Counter is a monotonic, wrap-safe 64-bit unsigned value. It allows Set and
// Add, and retains the previous reading so Rate can be computed against an
// externally supplied elapsed window.
type Counter struct {
	value atomic.Uint64
	prev  atomic.Uint64
}

// Set stores v as the counter's current value.
func (c *Counter) Set(v uint64) { c.value.Store(v) }

// Add increments the counter by d.
func (c *Counter) Add(d uint64) { c.value.Add(d) }

// Value returns the current reading.
func (c *Counter) Value() uint64 { return c.value.Load() }

// Snapshot stores the current value as the "previous" reading for the next
// Rate call and returns it.
func (c *Counter) Snapshot() uint64 {
	v := c.value.Load()
	c.prev.Store(v)
	return v
}

// Previous returns the last value captured by Snapshot.
func (c *Counter) Previous() uint64 { return c.prev.Load() }

// wrapThreshold is the largest apparent delta treated as a real rate rather
// than a counter reset (clock jump / map reset). Per spec.md Testable
// Property 4: a delta whose magnitude, computed mod 2^64, exceeds 2^63 is
// dropped.
const wrapThreshold = uint64(1) << 63

// Rate computes a wrap-safe rate between two raw counter readings (c(t1),
// c(t2)) over an elapsed window in seconds. ok is false if the apparent
// delta exceeds 2^63 (treated as a reset) or elapsedSec is non-positive.
func Rate(t1, t2 uint64, elapsedSec float64) (rate float64, ok bool) {
	if elapsedSec <= 0 {
		return 0, false
	}
	delta := t2 - t1 // wraps mod 2^64 by Go's unsigned arithmetic
	if delta > wrapThreshold {
		return 0, false
	}
	return float64(delta) / elapsedSec, true
}

// WrappingSub computes a-b mod 2^64, the building block histograms use for
// delta buckets.
func WrappingSub(a, b uint64) uint64 { return a - b }
