//go:build linux

package kernelmap

import (
	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/ringbuf"
)

// ciliumRingbufSource adapts *ringbuf.Reader to RingbufSource.
type ciliumRingbufSource struct {
	r *ringbuf.Reader
}

// OpenRingbuf opens a ring-buffer reader over m, the cgroup_info map or any
// other BPF_MAP_TYPE_RINGBUF map.
func OpenRingbuf(m *ebpf.Map) (RingbufSource, error) {
	r, err := ringbuf.NewReader(m)
	if err != nil {
		return nil, err
	}
	return &ciliumRingbufSource{r: r}, nil
}

func (s *ciliumRingbufSource) Read() (RingbufRecord, error) {
	rec, err := s.r.Read()
	if err != nil {
		return RingbufRecord{}, err
	}
	return RingbufRecord{RawSample: rec.RawSample}, nil
}

func (s *ciliumRingbufSource) Close() error { return s.r.Close() }
