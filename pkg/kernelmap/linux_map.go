//go:build linux

package kernelmap

import "github.com/cilium/ebpf"

// ciliumMap adapts a *ebpf.Map to the RawMap interface the bindings in this
// package consume.
type ciliumMap struct {
	m *ebpf.Map
}

// WrapMap returns a RawMap backed by a real, loaded BPF map.
func WrapMap(m *ebpf.Map) RawMap { return &ciliumMap{m: m} }

func (c *ciliumMap) MaxEntries() uint32 { return c.m.MaxEntries() }

func (c *ciliumMap) ValueSize() uint32 { return c.m.ValueSize() }

// LookupPerCPU reads one slot of a BPF_MAP_TYPE_PERCPU_ARRAY map. cilium/ebpf
// dispatches per-CPU semantics off the shape of valueOut: a []uint64 sized
// to the number of possible CPUs.
func (c *ciliumMap) LookupPerCPU(key uint32, out []uint64) error {
	return c.m.Lookup(key, &out)
}

func (c *ciliumMap) Lookup(key uint32, out *uint64) error {
	return c.m.Lookup(key, out)
}

func (c *ciliumMap) Put(key uint32, value uint64) error {
	return c.m.Put(key, value)
}
