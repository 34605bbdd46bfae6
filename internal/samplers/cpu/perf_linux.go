//go:build linux

// Package cpu implements the cpu_perf sampler (SPEC_FULL §12): per-CPU
// hardware perf-event counters for cycles and retired instructions, each
// published into a CPU-indexed CounterGroup.
package cpu

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/cilium/ebpf"

	"github.com/rezolus/rezolus/pkg/bpfsampler"
	"github.com/rezolus/rezolus/pkg/kernelmap"
	"github.com/rezolus/rezolus/pkg/metric"
	"github.com/rezolus/rezolus/pkg/sampler"
)

//go:embed bpf/cpu_perf.bpf.o
var progBytes []byte

const name = "cpu_perf"

func init() {
	sampler.Global().Register(name, factory)
}

func factory(cfg sampler.Enabler) (sampler.Sampler, error) {
	if !cfg.Enabled(name) {
		return nil, nil
	}

	cpus, err := kernelmap.OnlineCPUs()
	if err != nil {
		return nil, fmt.Errorf("%s: online cpus: %w", name, err)
	}
	n := len(cpus)

	spec, err := ebpf.LoadCollectionSpecFromReader(bytes.NewReader(progBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: load collection spec: %w", name, err)
	}

	skel, err := bpfsampler.NewCollectionSkeleton(spec, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	reg := metric.Global()
	cycles := reg.CounterGroup(metric.NewId("rezolus_cpu_cycles"), n, false)
	instructions := reg.CounterGroup(metric.NewId("rezolus_cpu_instructions"), n, false)

	s, err := bpfsampler.Build(bpfsampler.Spec{
		Name:       name,
		Skeleton:   skel,
		OnlineCPUs: cpus,
		PerfEvents: []bpfsampler.PerfEventSpec{
			{Name: "cycles", Event: kernelmap.EventCPUCycles, Group: cycles},
			{Name: "instructions", Event: kernelmap.EventInstructions, Group: instructions},
		},
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
