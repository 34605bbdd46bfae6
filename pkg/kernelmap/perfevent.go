package kernelmap

import "github.com/rezolus/rezolus/pkg/metric"

// Event identifies a hardware/software perf event to open, e.g. CPU cycles
// or retired instructions (spec.md §4.4 step 6).
type Event struct {
	Type   uint32 // PERF_TYPE_* (hardware/software)
	Config uint64 // PERF_COUNT_* selector within Type
}

// Common perf events used by the cpu_perf sampler (SPEC_FULL §12).
var (
	EventCPUCycles    = Event{Type: perfTypeHardware, Config: perfCountHWCPUCycles}
	EventInstructions = Event{Type: perfTypeHardware, Config: perfCountHWInstructions}
)

// perfOpener opens one perf-event fd for a given CPU and event, enables it,
// and returns a handle able to read the current accumulated count.
// Implemented for Linux in perfevent_linux.go; a permission or offline-CPU
// failure is expected and handled per-CPU, not fatal to the binding.
type perfOpener interface {
	open(cpu int, ev Event) (perfCounter, error)
}

type perfCounter interface {
	read() (uint64, error)
	close() error
}

// PerfEventBinding binds a per-CPU perf-event fd array to a CounterGroup
// indexed by CPU (spec.md §4.2 "perf_event(name, Event, &CounterGroup)").
// Opening a fd for an offline or permission-denied CPU is recorded as
// "slot unavailable" and does not fail the whole binding — the remaining
// CPUs still contribute (spec.md §4.4 step 6).
type PerfEventBinding struct {
	name     string
	event    Event
	group    *metric.CounterGroup
	opener   perfOpener
	counters map[int]perfCounter // cpu -> open fd handle
	unavail  map[int]bool
}

// NewPerfEventBinding constructs a binding for event, one fd per CPU in
// cpus, installing each opened fd into fdMap at index=cpu when fdMap is
// non-nil (the BPF array map a kernel-side program reads via
// bpf_perf_event_read, per spec.md step 6).
func NewPerfEventBinding(name string, event Event, group *metric.CounterGroup, cpus []int, opener perfOpener, fdMap RawMap) *PerfEventBinding {
	b := &PerfEventBinding{
		name:     name,
		event:    event,
		group:    group,
		opener:   opener,
		counters: make(map[int]perfCounter),
		unavail:  make(map[int]bool),
	}
	for _, cpu := range cpus {
		pc, err := opener.open(cpu, event)
		if err != nil {
			b.unavail[cpu] = true
			continue
		}
		b.counters[cpu] = pc
		if fdMap != nil {
			if fd, ok := pc.(interface{ fd() int }); ok {
				_ = fdMap.Put(uint32(cpu), uint64(fd.fd()))
			}
		}
	}
	return b
}

// Name returns the bound map's name.
func (b *PerfEventBinding) Name() string { return b.name }

// Unavailable reports the set of CPUs whose perf-event fd could not be
// opened (offline, or the process lacks CAP_PERFMON).
func (b *PerfEventBinding) Unavailable() map[int]bool { return b.unavail }

// Refresh reads every open perf-event fd and publishes its accumulated
// count into the CounterGroup slot for that CPU. Hardware counters
// accumulate monotonically in the kernel (spec.md §4.4), so this publishes
// an absolute value, same as the counter-shaped map case.
func (b *PerfEventBinding) Refresh() error {
	for cpu, pc := range b.counters {
		v, err := pc.read()
		if err != nil {
			continue // transient read failure: leave the prior value in place
		}
		if err := b.group.Set(cpu, v); err != nil {
			return err
		}
	}
	return nil
}

// Close releases every open perf-event fd.
func (b *PerfEventBinding) Close() error {
	var firstErr error
	for _, pc := range b.counters {
		if err := pc.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
