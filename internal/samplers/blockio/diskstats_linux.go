//go:build linux

// Package blockio implements the blockio_latency sampler (SPEC_FULL §12): a
// synchronous-poll sampler (no BPF) deriving a block I/O latency histogram
// from /proc/diskstats deltas, in the teacher's bufio/strings.Fields /proc
// parsing idiom.
package blockio

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rezolus/rezolus/pkg/metric"
	"github.com/rezolus/rezolus/pkg/sampler"
)

const name = "blockio_latency"

const (
	histGroupingPower = 7
	histMaxPower      = 32

	diskstatsPath      = "/proc/diskstats"
	minDiskstatsFields = 14
)

func init() {
	sampler.Global().Register(name, factory)
}

func factory(cfg sampler.Enabler) (sampler.Sampler, error) {
	if !cfg.Enabled(name) {
		return nil, nil
	}
	hist := metric.Global().Histogram(metric.NewId("rezolus_blockio_latency"), histGroupingPower, histMaxPower)
	return newSampler(hist), nil
}

// deviceCounters is the cumulative pair diskstats reports per device: the
// number of completed I/Os (reads + writes) and the milliseconds spent
// doing them. Both are monotonically increasing for the life of the device.
type deviceCounters struct {
	completed uint64
	ms        uint64
}

// Sampler polls /proc/diskstats on each Refresh and turns the per-device
// deltas into an average per-I/O latency sample fed into a histogram.
type Sampler struct {
	hist *metric.Histogram

	mu   sync.Mutex
	prev map[string]deviceCounters
}

func newSampler(hist *metric.Histogram) *Sampler {
	return &Sampler{hist: hist, prev: make(map[string]deviceCounters)}
}

// Name returns the sampler's config-section name.
func (s *Sampler) Name() string { return name }

// Alive always reports true: a poll-based sampler has no state machine to
// escalate out of (spec.md §4.3 applies only to BPF samplers); a read error
// is simply skipped until the next refresh.
func (s *Sampler) Alive() bool { return true }

// Refresh reads diskstatsPath, computes the per-device delta since the
// previous refresh, and records one weighted latency observation per
// device whose completed-I/O count advanced.
func (s *Sampler) Refresh(ctx context.Context) error {
	rows, err := readDiskstats(diskstatsPath)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for dev, cur := range rows {
		prev, ok := s.prev[dev]
		s.prev[dev] = cur
		if !ok {
			continue // first observation of this device: no delta yet
		}
		deltaCompleted := cur.completed - prev.completed
		deltaMs := cur.ms - prev.ms
		if deltaCompleted == 0 {
			continue
		}
		avgLatencyNs := (deltaMs * 1_000_000) / deltaCompleted
		s.hist.Increment(avgLatencyNs)
	}
	return nil
}

// readDiskstats parses /proc/diskstats into per-device cumulative counters.
// Field layout (0-indexed after splitting on whitespace):
//
//	0 major, 1 minor, 2 device, 3 reads completed, 4 reads merged,
//	5 sectors read, 6 ms spent reading, 7 writes completed,
//	8 writes merged, 9 sectors written, 10 ms spent writing,
//	11 ios in progress, 12 ms doing io, 13 weighted ms doing io
func readDiskstats(path string) (map[string]deviceCounters, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ErrNoDiskstats
	}
	defer func() { _ = f.Close() }()

	out := make(map[string]deviceCounters)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < minDiskstatsFields {
			continue
		}
		dev := fields[2]
		readsCompleted, err := strconv.ParseUint(fields[3], 10, 64)
		if err != nil {
			continue
		}
		msReading, err := strconv.ParseUint(fields[6], 10, 64)
		if err != nil {
			continue
		}
		writesCompleted, err := strconv.ParseUint(fields[7], 10, 64)
		if err != nil {
			continue
		}
		msWriting, err := strconv.ParseUint(fields[10], 10, 64)
		if err != nil {
			continue
		}
		out[dev] = deviceCounters{
			completed: readsCompleted + writesCompleted,
			ms:        msReading + msWriting,
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrShortLine
	}
	return out, nil
}
