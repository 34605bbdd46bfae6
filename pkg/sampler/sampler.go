// Package sampler implements the sampler registry and cooperative execution
// loop (spec.md §4.3): a fixed set of samplers discovered at startup, each
// refreshed concurrently on a shared schedule, with a TTL cache in front to
// bound cost under scrape storms.
package sampler

import "context"

// Sampler is a collector producing one or more metrics on demand. Samplers
// do not observe each other and must not assume which goroutine runs their
// Refresh (spec.md §4.3).
type Sampler interface {
	// Name identifies the sampler, matching its config section name.
	Name() string
	// Refresh pulls the latest values from its kernel maps (or /proc, for a
	// synchronous-poll sampler) into its registered metrics.
	Refresh(ctx context.Context) error
	// Alive reports the sampler's liveness flag (spec.md §3): false once a
	// sampler has escalated to Terminated and should be dropped from the
	// active set.
	Alive() bool
}

// Enabler is the minimal config surface a Factory needs: whether a named
// sampler is enabled. *internal/config.Config satisfies this.
type Enabler interface {
	Enabled(name string) bool
}

// Factory constructs a Sampler, or returns (nil, nil) when the sampler is
// disabled by config (spec.md §4.3: "checks config.enabled(name); if
// disabled, returns Ok(None)"), or a non-nil error on a load failure (probe
// attach, map mismatch — non-fatal to the process, fatal to this sampler).
type Factory func(cfg Enabler) (Sampler, error)
