// Package http implements the agent's HTTP exposition surface (spec.md
// §4.6, §6): GET / and GET /metrics/binary, routed with gorilla/mux and
// transparently gzip-compressed the same way grafana-tempo wraps its
// protobuf endpoints with NYTimes/gziphandler.
package http

import (
	"fmt"
	"net/http"

	"github.com/NYTimes/gziphandler"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/rezolus/rezolus/pkg/metric"
	"github.com/rezolus/rezolus/pkg/sampler"
	"github.com/rezolus/rezolus/pkg/snapshot"
)

// Version is the agent's build version, surfaced by GET / (spec.md §6).
// Overridden at build time via -ldflags, matching the teacher's versioning
// conventions; "dev" is the fallback for local builds.
var Version = "dev"

// Server exposes the metric registry over HTTP behind the sampler cache.
type Server struct {
	cache  *sampler.Cache
	reg    *metric.Registry
	logger zerolog.Logger
}

// NewServer builds a Server reading snapshots from reg through cache.
func NewServer(cache *sampler.Cache, reg *metric.Registry, logger zerolog.Logger) *Server {
	return &Server{cache: cache, reg: reg, logger: logger}
}

// Handler returns the fully routed, gzip-wrapped http.Handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/metrics/binary", s.handleMetricsBinary).Methods(http.MethodGet)
	// MinSize(0) compresses every response whose client accepts gzip; the
	// library default leaves bodies under 1400 bytes uncompressed.
	gz, err := gziphandler.GzipHandlerWithOpts(gziphandler.MinSize(0))
	if err != nil {
		panic(err) // MinSize(0) is always a valid option
	}
	return gz(r)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Rezolus %s Agent\n", Version)
}

func (s *Server) handleMetricsBinary(w http.ResponseWriter, r *http.Request) {
	at, elapsed, errs := s.cache.Refresh(r.Context())
	for name, err := range errs {
		s.logger.Warn().Str("sampler", name).Err(err).Msg("refresh error")
	}

	snap := snapshot.Take(s.reg, at, elapsed)

	data, err := snapshot.Encode(snap)
	if err != nil {
		// Unreachable in practice (spec.md §7: "HTTP 500 is emitted only on
		// serialisation error, should be unreachable").
		s.logger.Error().Err(err).Msg("snapshot encode failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/msgpack")
	_, _ = w.Write(data)
}
