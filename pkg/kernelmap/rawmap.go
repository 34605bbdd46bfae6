// Package kernelmap implements the typed user-space views over BPF maps
// described in spec.md §4.2: per-CPU counter arrays, packed (cgroup-indexed)
// counter arrays, histogram arrays, and the cgroup-info ring buffer. Each
// binding validates the kernel-side layout at load time and knows how to
// aggregate its map's raw bytes into the metric primitives in pkg/metric.
package kernelmap

import "errors"

// ErrLayoutMismatch is returned when a map's entry count or value size does
// not match what the binding expects — fatal for the owning sampler
// (spec.md §4.4 step 4).
var ErrLayoutMismatch = errors.New("kernelmap: map layout mismatch")

// RawMap is the subset of *ebpf.Map's behavior the bindings in this package
// need. It is satisfied by WrapMap's adapter around an *ebpf.Map (see
// linux_map.go) and by a fake used in
// tests, so bucket-aggregation and wrap-arithmetic logic can be exercised
// without a running kernel.
type RawMap interface {
	// MaxEntries returns the map's configured entry count.
	MaxEntries() uint32
	// ValueSize returns the map's per-entry value size in bytes.
	ValueSize() uint32
	// LookupPerCPU reads a per-CPU array map's slot into a slice with one
	// element per possible CPU.
	LookupPerCPU(key uint32, out []uint64) error
	// Lookup reads a flat (non-per-CPU) array map's slot.
	Lookup(key uint32, out *uint64) error
	// Put writes a single scalar value (used for installing perf-event fds;
	// GenericMap does not go through it).
	Put(key uint32, value uint64) error
}

// ValidateLayout checks a map's actual shape against the binding's expected
// entry count and value size, per spec.md §4.4 step 4 ("entries ==
// expected, value_size == expected; mismatch is fatal for that sampler").
func ValidateLayout(m RawMap, expectedEntries, expectedValueSize uint32) error {
	if m.MaxEntries() != expectedEntries {
		return ErrLayoutMismatch
	}
	if expectedValueSize != 0 && m.ValueSize() != expectedValueSize {
		return ErrLayoutMismatch
	}
	return nil
}
