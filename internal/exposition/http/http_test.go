package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/rezolus/rezolus/pkg/metric"
	"github.com/rezolus/rezolus/pkg/sampler"
)

type stubSampler struct {
	name string
}

func (s *stubSampler) Name() string                      { return s.name }
func (s *stubSampler) Refresh(ctx context.Context) error { return nil }
func (s *stubSampler) Alive() bool                       { return true }

func TestHandleIndexReturnsPlainTextBanner(t *testing.T) {
	reg := metric.NewRegistry()
	sched := sampler.NewScheduler([]sampler.Sampler{&stubSampler{name: "x"}})
	cache := sampler.NewCache(sched, time.Millisecond)
	srv := NewServer(cache, reg, zerolog.Nop())

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "Rezolus")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestHandleMetricsBinaryReturnsMsgpack(t *testing.T) {
	reg := metric.NewRegistry()
	reg.Counter(metric.NewId("test_requests_total")).Add(7)

	sched := sampler.NewScheduler([]sampler.Sampler{&stubSampler{name: "x"}})
	cache := sampler.NewCache(sched, time.Hour)
	srv := NewServer(cache, reg, zerolog.Nop())

	req := httptest.NewRequest("GET", "/metrics/binary", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get("Content-Type"))

	var decoded map[string]any
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Contains(t, decoded, "metrics")
	assert.Contains(t, decoded, "timestamp")
}

func TestHandleMetricsBinarySupportsGzip(t *testing.T) {
	reg := metric.NewRegistry()
	sched := sampler.NewScheduler([]sampler.Sampler{&stubSampler{name: "x"}})
	cache := sampler.NewCache(sched, time.Hour)
	srv := NewServer(cache, reg, zerolog.Nop())

	req := httptest.NewRequest("GET", "/metrics/binary", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
}
