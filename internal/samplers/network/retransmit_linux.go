//go:build linux

// Package network implements the tcp_retransmit sampler (SPEC_FULL §12): a
// per-CPU counter array of TCP retransmit events, summed across CPUs into a
// single scalar counter.
package network

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

//go:embed bpf/tcp_retransmit.bpf.o
var progBytes []byte

const name = "tcp_retransmit"

const (
	mapRetransmits  = "tcp_retransmits"
	progRetransmits = "handle_tcp_retransmit_skb"
)

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
		bpfsampler.Tracepoint(progRetransmits, "tcp", "tcp_retransmit_skb"),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	retransmits := metric.Global().Counter(metric.NewId("rezolus_tcp_retransmits_total"))

	binding, err := kernelmap.NewPerCPUCounters(mapRetransmits, 1, len(cpus), []*metric.Counter{retransmits})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	s, err := bpfsampler.Build(bpfsampler.Spec{
		Name:     name,
		Skeleton: skel,
		Maps: []bpfsampler.BoundMap{
			{MapName: mapRetransmits, Binding: binding},
		},
		OnlineCPUs: cpus,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
