//go:build !linux

package cpu

import "github.com/rezolus/rezolus/pkg/sampler"

const name = "cpu_perf"

func init() {
	sampler.Global().Register(name, factory)
}

// factory always reports the sampler as unavailable on non-Linux platforms
// (spec.md Design Notes "Platform stub").
func factory(cfg sampler.Enabler) (sampler.Sampler, error) {
	return nil, nil
}
