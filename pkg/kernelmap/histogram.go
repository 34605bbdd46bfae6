package kernelmap

import "github.com/rezolus/rezolus/pkg/metric"

// HistogramMap binds a u64[n] bucket array (spec.md §4.2 "histogram(name,
// &Histogram)", §6 "n = 1 + (m - g + 1) * 2^g"). Refresh copies the bucket
// array out and publishes it as the new absolute histogram state — kernel
// histograms are never reset, so user-visible deltas are computed
// externally via Histogram.WrappingSub against a prior snapshot (spec.md
// §4.4).
type HistogramMap struct {
	name string
	g, m uint8
	hist *metric.Histogram
}

// NewHistogramMap builds a binding over hist, whose (g, m) determine the
// expected bucket count.
func NewHistogramMap(name string, hist *metric.Histogram) *HistogramMap {
	g, m := hist.Params()
	return &HistogramMap{name: name, g: g, m: m, hist: hist}
}

// Name returns the bound map's name.
func (b *HistogramMap) Name() string { return b.name }

// Refresh validates the map's bucket count against (g, m) — a mismatch
// means the kernel and user side disagree on bit layout and must be
// rejected at load time (spec.md §3 invariant) — then copies every bucket
// into the histogram's absolute state.
func (b *HistogramMap) Refresh(m RawMap) error {
	n := uint32(metric.BucketCount(b.g, b.m))
	if err := ValidateLayout(m, n, 8); err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		var v uint64
		if err := m.Lookup(i, &v); err != nil {
			return err
		}
		if err := b.hist.Set(int(i), v); err != nil {
			return err
		}
	}
	return nil
}
