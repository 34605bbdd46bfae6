package sampler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Scheduler fans refresh requests out to every sampler concurrently on a
// shared cooperative schedule (spec.md §4.3). It never lets one sampler's
// error or latency affect another: RefreshAll's total latency is the max
// per-sampler latency, not the sum (Testable Property D).
type Scheduler struct {
	samplers []Sampler
}

// NewScheduler returns a Scheduler driving the given samplers.
func NewScheduler(samplers []Sampler) *Scheduler {
	cp := make([]Sampler, len(samplers))
	copy(cp, samplers)
	return &Scheduler{samplers: cp}
}

// Samplers returns the scheduler's current sampler set.
func (s *Scheduler) Samplers() []Sampler { return s.samplers }

// RefreshAll issues one independent Refresh per sampler and waits for all
// of them to complete. A plain (non-context-cancelling) errgroup is used
// deliberately: one sampler's error must not cancel the others' in-flight
// refreshes (spec.md §4.3 "no sampler may assume ... refreshes are
// serialised relative to each other"). Per-sampler errors are returned
// keyed by sampler name; a sampler absent from the map refreshed cleanly.
func (s *Scheduler) RefreshAll(ctx context.Context) map[string]error {
	var g errgroup.Group
	errs := make([]error, len(s.samplers))

	for i, samp := range s.samplers {
		i, samp := i, samp
		g.Go(func() error {
			errs[i] = samp.Refresh(ctx)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]error)
	for i, samp := range s.samplers {
		if errs[i] != nil {
			out[samp.Name()] = errs[i]
		}
	}
	return out
}

// Shutdown blocks until done is closed, grace elapses, or ctx is cancelled,
// whichever comes first, then returns; whatever work done stands for is
// abandoned if it has not finished by then (spec.md §5 "Cancellation").
// It does not itself track Refresh calls: the caller supplies done.
func Shutdown(ctx context.Context, grace time.Duration, done <-chan struct{}) {
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
	case <-ctx.Done():
	}
}
