//go:build !linux

package cgroup

import "github.com/rezolus/rezolus/pkg/sampler"

const name = "cgroup_cpu"

func init() {
	sampler.Global().Register(name, factory)
}

func factory(cfg sampler.Enabler) (sampler.Sampler, error) {
	return nil, nil
}
