//go:build !linux

package network

import "github.com/rezolus/rezolus/pkg/sampler"

const name = "tcp_retransmit"

func init() {
	sampler.Global().Register(name, factory)
}

func factory(cfg sampler.Enabler) (sampler.Sampler, error) {
	return nil, nil
}
