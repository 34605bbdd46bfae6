//go:build linux

// Package bpfsampler implements the BPF sampler framework (spec.md §4.4): a
// builder that attaches an already-loaded skeleton, binds named kernel maps
// to user-space metric groups, opens perf-event file descriptors on demand,
// and drives the per-refresh read-aggregate-publish cycle through the state
// machine Created -> Loading -> Attached -> Active <-> Refreshing ->
// Terminated. Skeleton construction and program loading (spec.md §4.4 steps
// 1-3) are the caller's responsibility — each concrete sampler under
// internal/samplers/* owns its embedded program bytes and cilium/ebpf
// collection; this package only consumes the result through the Skeleton
// interface so its logic can be exercised with a fake.
package bpfsampler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/rezolus/rezolus/pkg/kernelmap"
	"github.com/rezolus/rezolus/pkg/metric"
)

// State is one point in the per-sampler state machine (spec.md §4.4).
type State int32

const (
	StateCreated State = iota
	StateLoading
	StateAttached
	StateActive
	StateRefreshing
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateLoading:
		return "loading"
	case StateAttached:
		return "attached"
	case StateActive:
		return "active"
	case StateRefreshing:
		return "refreshing"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ErrTerminated is returned by Refresh once a sampler has escalated to
// Terminated; callers should drop it from the active set.
var ErrTerminated = errors.New("bpfsampler: sampler is terminated")

// ProgStats mirrors the kernel's per-program aggregate stats (SPEC_FULL
// §11, spec.md §4.4 "BPF prog stats").
type ProgStats struct {
	RunTimeNs uint64
	RunCount  uint64
}

// Skeleton abstracts a loaded, not-yet-attached BPF program and map set.
// The concrete Linux implementation wraps a *ebpf.Collection built from
// embedded program bytes; tests use a fake.
type Skeleton interface {
	// Map returns a bound view over the named map, with the entry count the
	// loaded program declares; no resizing is done. Bindings validate that
	// count against what they expect.
	Map(name string) (kernelmap.RawMap, error)
	// Ringbuf opens a ring-buffer reader over the named map.
	Ringbuf(name string) (kernelmap.RingbufSource, error)
	// Attach attaches every probe/tracepoint the skeleton declares (spec.md
	// §4.4 step 5).
	Attach() error
	// ProgStats returns the named program's aggregated run-time stats.
	ProgStats(progName string) (ProgStats, error)
	// Close detaches every attached program and releases kernel resources.
	Close() error
}

// ProgStatsBinding publishes one program's kernel-reported stats into a
// pair of counters each refresh (spec.md §4.4 "BPF prog stats").
type ProgStatsBinding struct {
	ProgName string
	RunTime  *metric.Counter
	RunCount *metric.Counter
}

func (b *ProgStatsBinding) refresh(skel Skeleton) error {
	stats, err := skel.ProgStats(b.ProgName)
	if err != nil {
		return err
	}
	b.RunTime.Set(stats.RunTimeNs)
	b.RunCount.Set(stats.RunCount)
	return nil
}

// MapBinding is satisfied by kernelmap's per-refresh bindings
// (PerCPUCounters, CPUCounters, PackedCounters, HistogramMap).
type MapBinding interface {
	Name() string
	Refresh(m kernelmap.RawMap) error
}

// BoundMap pairs a binding with the name of the skeleton map it reads.
type BoundMap struct {
	MapName string
	Binding MapBinding
}

// PerfEventSpec describes one perf_event(name, Event, group) binding
// (spec.md §4.2, §4.4 step 6). FdMapName, if non-empty, names a BPF array
// map the opened fds are installed into at index=cpu so a kernel-side
// program can bpf_perf_event_read them directly.
type PerfEventSpec struct {
	Name      string
	Event     kernelmap.Event
	Group     *metric.CounterGroup
	FdMapName string
}

// RingbufSpec describes one ringbuf_handler(name, fn) binding (spec.md
// §4.2, §4.4 step 7).
type RingbufSpec struct {
	MapName string
	Handler kernelmap.Handler
}

// Spec fully describes one BPF sampler's wiring, assembled by the owning
// internal/samplers/* package from its skeleton and metric registrations.
type Spec struct {
	Name               string
	Skeleton           Skeleton
	Maps               []BoundMap
	PerfEvents         []PerfEventSpec
	Ringbufs           []RingbufSpec
	ProgStats          []*ProgStatsBinding
	OnlineCPUs         []int
	MaxRefreshFailures int // 0 defaults to 5
}

type ringbufConsumer struct {
	handler *kernelmap.RingbufHandler
	src     kernelmap.RingbufSource
	stop    chan struct{}
	done    chan struct{}
}

func (c *ringbufConsumer) run() {
	defer close(c.done)
	if err := c.handler.Consume(c.src, c.stop); err != nil {
		log.Warn().Err(err).Str("map", c.handler.Name()).Msg("bpfsampler: ring-buffer consumer exited")
	}
}

// Sampler drives one BPF-backed sampler through its state machine and
// implements pkg/sampler.Sampler.
type Sampler struct {
	name     string
	skeleton Skeleton

	maps          []BoundMap
	perfBindings  []*kernelmap.PerfEventBinding
	ringConsumers []*ringbufConsumer
	progStats     []*ProgStatsBinding

	maxFailures int
	errCounter  *metric.Counter

	mu       sync.Mutex
	state    State
	failures int
}

// Build executes the load sequence (spec.md §4.4 steps 4-7) against an
// already program-loaded skeleton: validates every bound map's layout,
// attaches probes, opens perf-event fds (tolerating per-CPU failures), and
// spawns ring-buffer consumers. On any bind/attach error the sampler is
// left Terminated and the error returned — the caller's factory treats
// this as a non-fatal "Load error" (spec.md §7) and skips the sampler.
func Build(spec Spec) (*Sampler, error) {
	s := &Sampler{
		name:        spec.Name,
		skeleton:    spec.Skeleton,
		maps:        spec.Maps,
		progStats:   spec.ProgStats,
		maxFailures: spec.MaxRefreshFailures,
		state:       StateLoading,
		errCounter: metric.Global().Counter(metric.NewId("rezolus_bpf_run_count",
			metric.Label{Key: "sampler", Value: spec.Name},
			metric.Label{Key: "outcome", Value: "error"})),
	}
	if s.maxFailures <= 0 {
		s.maxFailures = 5
	}

	for _, bm := range spec.Maps {
		m, err := spec.Skeleton.Map(bm.MapName)
		if err != nil {
			s.terminate()
			return nil, fmt.Errorf("bpfsampler %s: bind map %s: %w", spec.Name, bm.MapName, err)
		}
		// Refreshing once at load time doubles as the layout validation
		// spec.md §4.4 step 4 requires: every binding's Refresh checks
		// entries/value_size before touching data.
		if err := bm.Binding.Refresh(m); err != nil {
			s.terminate()
			return nil, fmt.Errorf("bpfsampler %s: validate map %s: %w", spec.Name, bm.MapName, err)
		}
	}

	if err := spec.Skeleton.Attach(); err != nil {
		s.terminate()
		return nil, fmt.Errorf("bpfsampler %s: attach: %w", spec.Name, err)
	}
	s.state = StateAttached

	for _, pe := range spec.PerfEvents {
		var fdMap kernelmap.RawMap
		if pe.FdMapName != "" {
			m, err := spec.Skeleton.Map(pe.FdMapName)
			if err != nil {
				s.terminate()
				return nil, fmt.Errorf("bpfsampler %s: perf fd map %s: %w", spec.Name, pe.FdMapName, err)
			}
			fdMap = m
		}
		binding := kernelmap.NewPerfEventBinding(pe.Name, pe.Event, pe.Group, spec.OnlineCPUs, kernelmap.NewLinuxPerfOpener(), fdMap)
		if n := len(binding.Unavailable()); n > 0 {
			log.Warn().Str("sampler", spec.Name).Str("event", pe.Name).
				Int("unavailable_cpus", n).
				Msg("bpfsampler: some CPUs unavailable for perf event")
		}
		s.perfBindings = append(s.perfBindings, binding)
	}

	for _, rb := range spec.Ringbufs {
		src, err := spec.Skeleton.Ringbuf(rb.MapName)
		if err != nil {
			s.terminate()
			return nil, fmt.Errorf("bpfsampler %s: open ringbuf %s: %w", spec.Name, rb.MapName, err)
		}
		c := &ringbufConsumer{
			handler: kernelmap.NewRingbufHandler(rb.MapName, rb.Handler),
			src:     src,
			stop:    make(chan struct{}),
			done:    make(chan struct{}),
		}
		go c.run()
		s.ringConsumers = append(s.ringConsumers, c)
	}

	s.state = StateActive
	return s, nil
}

func (s *Sampler) terminate() {
	s.mu.Lock()
	s.state = StateTerminated
	s.mu.Unlock()
}

// Name returns the sampler's config-section name.
func (s *Sampler) Name() string { return s.name }

// Alive reports whether the sampler has not yet escalated to Terminated.
func (s *Sampler) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != StateTerminated
}

// State returns the sampler's current state machine position.
func (s *Sampler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Refresh performs the read-aggregate-publish cycle (spec.md §4.4 "Refresh
// contract"): map reads are issued in registration order and partial
// failure of one map does not drop the others. Transient errors are
// recorded and counted but leave the sampler Active; once consecutive
// failures reach MaxRefreshFailures the sampler escalates to Terminated
// (spec.md §4.4 "State machine").
func (s *Sampler) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return ErrTerminated
	}
	s.state = StateRefreshing
	s.mu.Unlock()

	var firstErr error
	for _, bm := range s.maps {
		m, err := s.skeleton.Map(bm.MapName)
		if err != nil {
			firstErr = firstNonNil(firstErr, err)
			continue
		}
		if err := bm.Binding.Refresh(m); err != nil {
			firstErr = firstNonNil(firstErr, err)
		}
	}
	for _, pb := range s.perfBindings {
		if err := pb.Refresh(); err != nil {
			firstErr = firstNonNil(firstErr, err)
		}
	}
	for _, ps := range s.progStats {
		if err := ps.refresh(s.skeleton); err != nil {
			firstErr = firstNonNil(firstErr, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if firstErr != nil {
		s.errCounter.Add(1)
		s.failures++
		if s.failures >= s.maxFailures {
			s.state = StateTerminated
			log.Warn().Str("sampler", s.name).Int("failures", s.failures).
				Msg("bpfsampler: escalating to terminated after repeated refresh failures")
			return firstErr
		}
	} else {
		s.failures = 0
	}
	if s.state == StateRefreshing {
		s.state = StateActive
	}
	return firstErr
}

func firstNonNil(a, b error) error {
	if a != nil {
		return a
	}
	return b
}

// Shutdown tears down every perf-event fd, stops ring-buffer consumers, and
// closes the skeleton (spec.md §5: "BPF programs are detached in skeleton
// destructors to leave the kernel clean"). Safe to call once.
func (s *Sampler) Shutdown() error {
	s.mu.Lock()
	s.state = StateTerminated
	s.mu.Unlock()

	for _, c := range s.ringConsumers {
		close(c.stop)
		_ = c.src.Close()
		<-c.done
	}
	for _, pb := range s.perfBindings {
		_ = pb.Close()
	}
	return s.skeleton.Close()
}
