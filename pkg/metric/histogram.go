package metric

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Histogram is a lock-free bucketed distribution over the non-negative
// integer domain. Bucket layout is fixed by (GroupingPower, MaxPower): the
// first 2^GroupingPower values are indexed linearly, the remainder
// exponentially, matching the kernel-side layout bit-for-bit (spec.md §3,
// §6).
type Histogram struct {
	g, m    uint8
	buckets []atomic.Uint64
}

// BucketCount returns the number of buckets implied by (g, m):
// n = 1 + (m - g + 1) * 2^g.
func BucketCount(g, m uint8) int {
	if m < g {
		return 0
	}
	return 1 + int(m-g+1)*(1<<g)
}

// NewHistogram allocates a histogram with the given grouping/max power. It
// panics if m < g, since that is a programming error (mismatched constants
// between kernel and user side would be caught earlier, at map-layout
// validation time).
func NewHistogram(g, m uint8) *Histogram {
	n := BucketCount(g, m)
	if n <= 0 {
		panic(fmt.Sprintf("metric: invalid histogram parameters g=%d m=%d", g, m))
	}
	return &Histogram{g: g, m: m, buckets: make([]atomic.Uint64, n)}
}

// Params returns the histogram's (g, m) parameters.
func (h *Histogram) Params() (g, m uint8) { return h.g, h.m }

// Len returns the number of buckets.
func (h *Histogram) Len() int { return len(h.buckets) }

// bucketIndex locates the bucket a non-negative value falls into: linear
// over [0, 2^g), exponential thereafter. Values beyond the top bucket's
// range saturate into the last bucket.
func bucketIndex(value uint64, g, m uint8) int {
	linearMax := uint64(1) << g
	if value < linearMax {
		return int(value)
	}
	// Exponential region: each power p in [g, m] covers 2^g subdivisions of
	// the range [2^p, 2^(p+1)).
	lastBucket := BucketCount(g, m) - 1
	for p := g; p <= m; p++ {
		rangeStart := uint64(1) << p
		rangeEnd := uint64(1) << (p + 1)
		if value >= rangeStart && value < rangeEnd {
			span := rangeEnd - rangeStart
			sub := (value - rangeStart) * uint64(1<<g) / span
			idx := int(linearMax) + int(p-g)*int(1<<g) + int(sub)
			if idx > lastBucket {
				idx = lastBucket
			}
			return idx
		}
	}
	return lastBucket
}

// Increment records one observation of value.
func (h *Histogram) Increment(value uint64) {
	idx := bucketIndex(value, h.g, h.m)
	h.buckets[idx].Add(1)
}

// Set overwrites bucket idx with an absolute count; used when publishing a
// kernel-supplied absolute bucket snapshot rather than incrementing
// observation-by-observation.
func (h *Histogram) Set(idx int, v uint64) error {
	if idx < 0 || idx >= len(h.buckets) {
		return ErrInvalidIndex
	}
	h.buckets[idx].Store(v)
	return nil
}

// Buckets returns a point-in-time copy of all bucket counts.
func (h *Histogram) Buckets() []uint64 {
	out := make([]uint64, len(h.buckets))
	for i := range h.buckets {
		out[i] = h.buckets[i].Load()
	}
	return out
}

// Sum returns the total number of observations across all buckets.
func (h *Histogram) Sum() uint64 {
	var total uint64
	for i := range h.buckets {
		total += h.buckets[i].Load()
	}
	return total
}

// WrappingSub computes a bucket-wise delta histogram: self[i] - other[i] mod
// 2^64, for two histograms sharing the same (g, m). It panics on mismatched
// parameters — callers must validate layout at load time, not per refresh.
func (h *Histogram) WrappingSub(other *Histogram) *Histogram {
	if h.g != other.g || h.m != other.m {
		panic("metric: WrappingSub on histograms with mismatched (g,m)")
	}
	out := NewHistogram(h.g, h.m)
	for i := range h.buckets {
		out.buckets[i].Store(WrappingSub(h.buckets[i].Load(), other.buckets[i].Load()))
	}
	return out
}

// bucketRange returns the inclusive [lo, hi] value range a bucket index
// covers, given (g, m). The last bucket is bucketIndex's catch-all: every
// value >= 2^m that overflows its nominal sub-bucket (including everything
// past the exponential region's top power) clamps into it, so its range is
// reported unbounded above rather than the narrow nominal sub-bucket width.
func bucketRange(idx int, g, m uint8) (lo, hi uint64) {
	linearMax := uint64(1) << g
	if uint64(idx) < linearMax {
		return uint64(idx), uint64(idx)
	}
	if idx == BucketCount(g, m)-1 {
		return uint64(1) << m, math.MaxUint64
	}
	rest := idx - int(linearMax)
	p := g + uint8(rest/(1<<g))
	sub := uint64(rest % (1 << g))
	rangeStart := uint64(1) << p
	span := (uint64(1) << (p + 1)) - rangeStart
	width := span / uint64(1<<g)
	lo = rangeStart + sub*width
	hi = rangeStart + (sub+1)*width - 1
	return lo, hi
}

// Percentile returns the inclusive value range of the bucket containing the
// p-th percentile sample (p in [0, 100]), via cumulative sum over buckets.
// Returns ok=false if the histogram has no observations.
func (h *Histogram) Percentile(p float64) (lo, hi uint64, ok bool) {
	total := h.Sum()
	if total == 0 {
		return 0, 0, false
	}
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	// Rank is 1-based: the p-th percentile is the ceil(p/100 * total)-th
	// smallest sample, clamped to at least 1.
	rank := uint64(math.Ceil(p / 100 * float64(total)))
	if rank == 0 {
		rank = 1
	}
	if rank > total {
		rank = total
	}
	var cum uint64
	for i := range h.buckets {
		cum += h.buckets[i].Load()
		if cum >= rank {
			lo, hi = bucketRange(i, h.g, h.m)
			return lo, hi, true
		}
	}
	lo, hi = bucketRange(len(h.buckets)-1, h.g, h.m)
	return lo, hi, true
}
