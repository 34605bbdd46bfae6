package sampler

import "sync"

// named pairs a sampler's config name with its factory, in registration
// order (Design Notes §9's "link-time collected registry" — realized here
// as an explicit registry populated by each sampler package's blank import
// and init() call, the idiomatic Go equivalent of a linker-assembled
// slice).
type named struct {
	name    string
	factory Factory
}

// Registry holds every self-registered sampler factory.
type Registry struct {
	mu    sync.Mutex
	items []named
}

var global = &Registry{}

// Global returns the process-wide sampler registry singleton.
func Global() *Registry { return global }

// Register adds a factory under name. Called from each sampler package's
// init().
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, named{name: name, factory: factory})
}

// LoadResult records the outcome of building one factory.
type LoadResult struct {
	Name    string
	Sampler Sampler // nil if disabled or on error
	Err     error   // non-nil on a load error (spec.md §7 "Load error")
}

// Build iterates every registered factory in registration order, invoking
// it with cfg. A factory returning (nil, nil) was disabled and is omitted
// from Samplers but still reported in Results so callers can log
// "skipped" at whatever level they choose. A factory returning a non-nil
// error is reported but does not stop the remaining factories from
// running (spec.md §7: "errors never cross sampler boundaries").
func (r *Registry) Build(cfg Enabler) (samplers []Sampler, results []LoadResult) {
	r.mu.Lock()
	items := make([]named, len(r.items))
	copy(items, r.items)
	r.mu.Unlock()

	results = make([]LoadResult, 0, len(items))
	for _, it := range items {
		s, err := it.factory(cfg)
		results = append(results, LoadResult{Name: it.name, Sampler: s, Err: err})
		if err == nil && s != nil {
			samplers = append(samplers, s)
		}
	}
	return samplers, results
}
