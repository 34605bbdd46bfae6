// Package cgroupinfo resolves the kernel's cgroup_info ring buffer into
// stable (id -> name) identities and attaches them as "name" metadata on
// every cgroup-indexed metric group in the registry (spec.md §4.5).
package cgroupinfo

import (
	"encoding/binary"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/rezolus/rezolus/pkg/metric"
)

// Info is one resolved cgroup identity.
type Info struct {
	Id       uint64
	Name     string
	Level    uint8
	ParentId uint64
}

// wire mirrors the kernel-side packed struct (spec.md §6): a fixed header
// followed by a NUL-terminated (or length-padded) name buffer.
//
//	struct { u64 id; u8 level; u64 parent_id; u8 name[NAME_MAX]; }
const (
	nameMax    = 256
	headerSize = 8 + 1 + 8 // id + level + parent_id, no compiler padding assumed
)

// ErrShortRecord is returned when a ring-buffer sample is smaller than the
// fixed cgroup_info header.
var ErrShortRecord = fmt.Errorf("cgroupinfo: record shorter than header")

// ErrNotUTF8 is returned when a cgroup name cannot be decoded as UTF-8; such
// rows are dropped per spec.md §4.5 step 1.
var ErrNotUTF8 = fmt.Errorf("cgroupinfo: name is not valid UTF-8")

// decode parses one raw ring-buffer sample into an Info.
func decode(raw []byte) (Info, error) {
	if len(raw) < headerSize {
		return Info{}, ErrShortRecord
	}
	id := binary.LittleEndian.Uint64(raw[0:8])
	level := raw[8]
	parentId := binary.LittleEndian.Uint64(raw[9:17])

	nameBytes := raw[17:]
	if len(nameBytes) > nameMax {
		nameBytes = nameBytes[:nameMax]
	}
	if i := indexZero(nameBytes); i >= 0 {
		nameBytes = nameBytes[:i]
	}
	if !utf8.Valid(nameBytes) {
		return Info{}, ErrNotUTF8
	}

	return Info{Id: id, Name: string(nameBytes), Level: level, ParentId: parentId}, nil
}

func indexZero(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}

// Resolver is the single consumer of the cgroup_info ring buffer. Once an
// id->name binding is recorded it is immutable for the resolver's lifetime
// (spec.md §3 invariant). When an id is seen for the first time, its "name"
// metadata is pushed to every cgroup-indexed group registered in reg at
// that moment; a group registered later does not receive names for ids
// already seen.
type Resolver struct {
	reg *metric.Registry

	mu    sync.RWMutex
	known map[uint64]Info
}

// NewResolver builds a Resolver that attaches metadata to groups in reg.
func NewResolver(reg *metric.Registry) *Resolver {
	return &Resolver{reg: reg, known: make(map[uint64]Info)}
}

// Lookup returns the resolved identity for id, if any.
func (r *Resolver) Lookup(id uint64) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.known[id]
	return info, ok
}

// Handle decodes and processes one raw ring-buffer event, per spec.md §4.5.
// Its signature matches kernelmap.Handler, so it is passed as one directly. A
// negative return tells the BPF framework's consumer loop to stop; Handle
// always returns 0 so the event loop continues regardless of individual
// malformed records.
func (r *Resolver) Handle(raw []byte) int32 {
	info, err := decode(raw)
	if err != nil {
		log.Warn().Err(err).Msg("cgroupinfo: dropping malformed record")
		return 0
	}

	if !r.observe(info) {
		return 0
	}

	path := info.Name
	for _, e := range r.reg.CgroupIndexed() {
		switch e.Kind {
		case metric.KindCounterGroup:
			_ = e.CounterGroup.InsertMetadata(int(info.Id), "name", path)
		case metric.KindGaugeGroup:
			_ = e.GaugeGroup.InsertMetadata(int(info.Id), "name", path)
		}
	}
	return 0
}

// observe records info if id is new, or verifies an existing binding still
// matches. Returns true the first time id is seen (so callers only need to
// push metadata to groups on first observation — subsequent identical
// events are no-ops, per spec.md §4.5 step 2).
func (r *Resolver) observe(info Info) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.known[info.Id]
	if !ok {
		r.known[info.Id] = info
		return true
	}
	if existing.Name != info.Name {
		log.Warn().
			Uint64("id", info.Id).
			Str("kept", existing.Name).
			Str("observed", info.Name).
			Msg("cgroupinfo: id->name binding is immutable; keeping first observation")
	}
	return false
}
