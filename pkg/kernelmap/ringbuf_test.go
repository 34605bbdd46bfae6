package kernelmap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRingbufSource struct {
	records []RingbufRecord
	idx     int
}

func (s *fakeRingbufSource) Read() (RingbufRecord, error) {
	if s.idx >= len(s.records) {
		return RingbufRecord{}, errors.New("no more records")
	}
	r := s.records[s.idx]
	s.idx++
	return r, nil
}

func (s *fakeRingbufSource) Close() error { return nil }

func TestRingbufHandlerConsumesUntilError(t *testing.T) {
	var seen [][]byte
	h := NewRingbufHandler("cgroup_info", func(raw []byte) int32 {
		seen = append(seen, raw)
		return 0
	})
	src := &fakeRingbufSource{records: []RingbufRecord{{RawSample: []byte("a")}, {RawSample: []byte("b")}}}

	err := h.Consume(src, make(chan struct{}))
	require.Error(t, err) // fakeRingbufSource runs dry and returns an error, as shutdown would report
	assert.Len(t, seen, 2)
}

func TestRingbufHandlerStopsOnNegativeReturn(t *testing.T) {
	calls := 0
	h := NewRingbufHandler("cgroup_info", func(raw []byte) int32 {
		calls++
		return -1
	})
	src := &fakeRingbufSource{records: []RingbufRecord{{RawSample: []byte("a")}, {RawSample: []byte("b")}}}

	err := h.Consume(src, make(chan struct{}))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRingbufHandlerStopsOnSignal(t *testing.T) {
	stop := make(chan struct{})
	close(stop)
	h := NewRingbufHandler("cgroup_info", func(raw []byte) int32 { return 0 })
	src := &fakeRingbufSource{records: []RingbufRecord{{RawSample: []byte("a")}}}

	err := h.Consume(src, stop)
	assert.NoError(t, err)
}
