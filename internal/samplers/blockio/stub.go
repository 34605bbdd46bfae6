//go:build !linux

package blockio

import "github.com/rezolus/rezolus/pkg/sampler"

const name = "blockio_latency"

func init() {
	sampler.Global().Register(name, factory)
}

func factory(cfg sampler.Enabler) (sampler.Sampler, error) {
	return nil, nil
}
