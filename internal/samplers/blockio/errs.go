//go:build linux

package blockio

import "errors"

var (
	// ErrNoDiskstats indicates /proc/diskstats could not be read at all.
	ErrNoDiskstats = errors.New("blockio: cannot read /proc/diskstats")

	// ErrShortLine indicates a /proc/diskstats line had fewer fields than the
	// minimum layout this sampler understands.
	ErrShortLine = errors.New("blockio: short diskstats line")
)
