//go:build linux

package bpfsampler

import (
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"

	"github.com/rezolus/rezolus/pkg/kernelmap"
)

// Attachment describes one probe/tracepoint a CollectionSkeleton attaches
// during Attach (spec.md §4.4 step 5).
type Attachment struct {
	Program string
	attach  func(prog *ebpf.Program) (link.Link, error)
}

// Tracepoint builds an Attachment to a kernel tracepoint.
func Tracepoint(progName, group, name string) Attachment {
	return Attachment{Program: progName, attach: func(prog *ebpf.Program) (link.Link, error) {
		return link.Tracepoint(group, name, prog, nil)
	}}
}

// Kprobe builds an Attachment to a kernel function entry probe.
func Kprobe(progName, symbol string) Attachment {
	return Attachment{Program: progName, attach: func(prog *ebpf.Program) (link.Link, error) {
		return link.Kprobe(symbol, prog, nil)
	}}
}

// Kretprobe builds an Attachment to a kernel function return probe, used
// by samplers that need both ends of a call (e.g. block I/O latency).
func Kretprobe(progName, symbol string) Attachment {
	return Attachment{Program: progName, attach: func(prog *ebpf.Program) (link.Link, error) {
		return link.Kretprobe(symbol, prog, nil)
	}}
}

// CollectionSkeleton is the Linux Skeleton implementation: a loaded
// *ebpf.Collection plus the probes to attach. Construction and program
// loading happen in NewCollectionSkeleton, called by each sampler package
// with the CollectionSpec parsed from its embedded program bytes. Map sizes
// are used exactly as that spec declares them: neither this type nor the
// sampler packages resize any map to the online-CPU or MAX_CGROUPS count.
type CollectionSkeleton struct {
	coll        *ebpf.Collection
	attachments []Attachment
	links       []link.Link
}

// NewCollectionSkeleton loads spec's programs and maps and returns a
// Skeleton ready for Build to validate, attach, and bind.
func NewCollectionSkeleton(spec *ebpf.CollectionSpec, attachments []Attachment) (*CollectionSkeleton, error) {
	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("bpfsampler: load collection: %w", err)
	}
	return &CollectionSkeleton{coll: coll, attachments: attachments}, nil
}

func (s *CollectionSkeleton) Map(name string) (kernelmap.RawMap, error) {
	m, ok := s.coll.Maps[name]
	if !ok {
		return nil, fmt.Errorf("bpfsampler: no such map %q", name)
	}
	return kernelmap.WrapMap(m), nil
}

func (s *CollectionSkeleton) Ringbuf(name string) (kernelmap.RingbufSource, error) {
	m, ok := s.coll.Maps[name]
	if !ok {
		return nil, fmt.Errorf("bpfsampler: no such map %q", name)
	}
	return kernelmap.OpenRingbuf(m)
}

func (s *CollectionSkeleton) Attach() error {
	for _, a := range s.attachments {
		prog, ok := s.coll.Programs[a.Program]
		if !ok {
			return fmt.Errorf("bpfsampler: no such program %q", a.Program)
		}
		l, err := a.attach(prog)
		if err != nil {
			return fmt.Errorf("bpfsampler: attach %q: %w", a.Program, err)
		}
		s.links = append(s.links, l)
	}
	return nil
}

// ProgStats reads the kernel's per-program aggregate run-time stats.
// Requires BPF stats collection to be enabled (kernel.bpf_stats_enabled=1
// or an active BPF_ENABLE_STATS fd held elsewhere in the process).
func (s *CollectionSkeleton) ProgStats(progName string) (ProgStats, error) {
	prog, ok := s.coll.Programs[progName]
	if !ok {
		return ProgStats{}, fmt.Errorf("bpfsampler: no such program %q", progName)
	}
	info, err := prog.Info()
	if err != nil {
		return ProgStats{}, err
	}
	runTime, _ := info.Runtime()
	runCount, _ := info.RunCount()
	return ProgStats{RunTimeNs: uint64(runTime.Nanoseconds()), RunCount: runCount}, nil
}

func (s *CollectionSkeleton) Close() error {
	for _, l := range s.links {
		_ = l.Close()
	}
	s.coll.Close()
	return nil
}
