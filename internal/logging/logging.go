// Package logging configures the agent's structured logger (SPEC_FULL §9.2).
// zerolog is used in place of the teacher's bare log/slog because the
// config file names a trace level (spec.md §6) slog does not have.
package logging

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Flusher drains a buffered log writer on a dedicated low-priority
// goroutine, so flushing stderr never blocks a sampler's refresh (spec.md
// §5 Threads: "one low-priority thread for log flushing").
type Flusher struct {
	buf  *bufio.Writer
	stop chan struct{}
	done chan struct{}
}

// Init parses level, builds a zerolog.Logger writing through a buffered
// wrapper around w, and starts its background flush goroutine. Callers
// must call Stop when shutting down to flush any remaining bytes.
func Init(level string, w io.Writer) (zerolog.Logger, *Flusher, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}

	buf := bufio.NewWriter(w)
	logger := zerolog.New(buf).Level(lvl).With().Timestamp().Logger()

	f := &Flusher{buf: buf, stop: make(chan struct{}), done: make(chan struct{})}
	go f.run()

	return logger, f, nil
}

func (f *Flusher) run() {
	defer close(f.done)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-f.stop:
			_ = f.buf.Flush()
			return
		case <-ticker.C:
			_ = f.buf.Flush()
		}
	}
}

// Stop signals the flush goroutine to drain and exit, and waits for it.
func (f *Flusher) Stop() {
	close(f.stop)
	<-f.done
}

func parseLevel(level string) (zerolog.Level, error) {
	switch level {
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "info":
		return zerolog.InfoLevel, nil
	case "warn":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("logging: unknown level %q", level)
	}
}

// StderrInit is a convenience wrapping Init(level, os.Stderr).
func StderrInit(level string) (zerolog.Logger, *Flusher, error) {
	return Init(level, os.Stderr)
}
