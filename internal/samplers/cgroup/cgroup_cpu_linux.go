//go:build linux

// Package cgroup implements the cgroup_cpu sampler (SPEC_FULL §12): a packed
// per-cgroup CPU usage counter array, cgroup-indexed, with cgroup identity
// resolved from the kernel's cgroup_info ring buffer via pkg/cgroupinfo
// (spec.md §4.5).
package cgroup

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/cilium/ebpf"

	"github.com/rezolus/rezolus/pkg/bpfsampler"
	"github.com/rezolus/rezolus/pkg/cgroupinfo"
	"github.com/rezolus/rezolus/pkg/kernelmap"
	"github.com/rezolus/rezolus/pkg/metric"
	"github.com/rezolus/rezolus/pkg/sampler"
)

//go:embed bpf/cgroup_cpu.bpf.o
var progBytes []byte

const name = "cgroup_cpu"

// maxCgroups bounds the packed counter array's cgroup-id index space
// (spec.md §6 "MAX_CGROUPS"); index 0 is reserved (never surfaced, spec.md
// §3 invariant).
const maxCgroups = 4096

const (
	mapCgroupCPU  = "cgroup_cpu_usage_ns"
	mapCgroupInfo = "cgroup_info"
	progCPUUsage  = "handle_sched_switch"
)

func init() {
	sampler.Global().Register(name, factory)
}

func factory(cfg sampler.Enabler) (sampler.Sampler, error) {
	if !cfg.Enabled(name) {
		return nil, nil
	}

	spec, err := ebpf.LoadCollectionSpecFromReader(bytes.NewReader(progBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: load collection spec: %w", name, err)
	}

	skel, err := bpfsampler.NewCollectionSkeleton(spec, []bpfsampler.Attachment{
		bpfsampler.Tracepoint(progCPUUsage, "sched", "sched_switch"),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	reg := metric.Global()
	usage := reg.CounterGroup(metric.NewId("rezolus_cgroup_cpu_usage_ns"), maxCgroups, true)
	resolver := cgroupinfo.NewResolver(reg)

	s, err := bpfsampler.Build(bpfsampler.Spec{
		Name:     name,
		Skeleton: skel,
		Maps: []bpfsampler.BoundMap{
			{MapName: mapCgroupCPU, Binding: kernelmap.NewPackedCounters(mapCgroupCPU, maxCgroups, usage)},
		},
		Ringbufs: []bpfsampler.RingbufSpec{
			{MapName: mapCgroupInfo, Handler: resolver.Handle},
		},
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
