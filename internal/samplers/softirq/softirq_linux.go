//go:build linux

// Package softirq implements the softirq sampler (SPEC_FULL §12): a per-CPU
// counter array of softirq invocations by vector, published into one
// CPU-indexed CounterGroup per vector.
package softirq

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

//go:embed bpf/softirq.bpf.o
var progBytes []byte

const name = "softirq"

const (
	mapSoftirqs = "softirq_counts"
	progSoftirq = "handle_softirq_entry"
	numVectors  = 10 // NR_SOFTIRQS: HI, TIMER, NET_TX, NET_RX, BLOCK, IRQ_POLL, TASKLET, SCHED, HRTIMER, RCU
)

var vectorNames = [numVectors]string{
	"hi", "timer", "net_tx", "net_rx", "block",
	"irq_poll", "tasklet", "sched", "hrtimer", "rcu",
}

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

	spec, err := ebpf.LoadCollectionSpecFromReader(bytes.NewReader(progBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: load collection spec: %w", name, err)
	}

	skel, err := bpfsampler.NewCollectionSkeleton(spec, []bpfsampler.Attachment{
		bpfsampler.Tracepoint(progSoftirq, "irq", "softirq_entry"),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	reg := metric.Global()
	groups := make([]*metric.CounterGroup, numVectors)
	for i, vec := range vectorNames {
		groups[i] = reg.CounterGroup(metric.NewId("rezolus_softirq_total", metric.Label{Key: "vector", Value: vec}), len(cpus), false)
	}

	binding, err := kernelmap.NewCPUCounters(mapSoftirqs, numVectors, len(cpus), groups)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	s, err := bpfsampler.Build(bpfsampler.Spec{
		Name:     name,
		Skeleton: skel,
		Maps: []bpfsampler.BoundMap{
			{MapName: mapSoftirqs, Binding: binding},
		},
		OnlineCPUs: cpus,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
