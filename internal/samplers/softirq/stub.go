//go:build !linux

package softirq

import "github.com/rezolus/rezolus/pkg/sampler"

const name = "softirq"

func init() {
	sampler.Global().Register(name, factory)
}

func factory(cfg sampler.Enabler) (sampler.Sampler, error) {
	return nil, nil
}
