//go:build linux

// Package scheduler implements the scheduler_runqueue sampler (SPEC_FULL
// §12): a histogram of run-queue latency read from a kernel BPF histogram
// map, g=7 m=32 bucketing.
package scheduler

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

//go:embed bpf/scheduler_runqueue.bpf.o
var progBytes []byte

const name = "scheduler_runqueue"

const (
	histGroupingPower = 7
	histMaxPower      = 32

	mapRunqueueLatency = "runqueue_latency"
	progRunqueueWakeup = "handle_sched_wakeup"
	progRunqueueSwitch = "handle_sched_switch"
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
		bpfsampler.Tracepoint(progRunqueueWakeup, "sched", "sched_wakeup"),
		bpfsampler.Tracepoint(progRunqueueSwitch, "sched", "sched_switch"),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	hist := metric.Global().Histogram(metric.NewId("rezolus_scheduler_runqueue_latency"), histGroupingPower, histMaxPower)

	s, err := bpfsampler.Build(bpfsampler.Spec{
		Name:     name,
		Skeleton: skel,
		Maps: []bpfsampler.BoundMap{
			{MapName: mapRunqueueLatency, Binding: kernelmap.NewHistogramMap(mapRunqueueLatency, hist)},
		},
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
