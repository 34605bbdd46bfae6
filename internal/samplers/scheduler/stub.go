//go:build !linux

package scheduler

import "github.com/rezolus/rezolus/pkg/sampler"

const name = "scheduler_runqueue"

func init() {
	sampler.Global().Register(name, factory)
}

func factory(cfg sampler.Enabler) (sampler.Sampler, error) {
	return nil, nil
}
