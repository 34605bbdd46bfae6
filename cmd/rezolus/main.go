// Command rezolus runs the Rezolus telemetry agent: a fixed set of
// self-registering samplers refreshed on a shared schedule and exposed over
// HTTP as a self-describing binary snapshot (spec.md §6).
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezolus/rezolus/internal/config"
	exphttp "github.com/rezolus/rezolus/internal/exposition/http"
	"github.com/rezolus/rezolus/internal/logging"

	_ "github.com/rezolus/rezolus/internal/samplers/blockio"
	_ "github.com/rezolus/rezolus/internal/samplers/cgroup"
	_ "github.com/rezolus/rezolus/internal/samplers/cpu"
	_ "github.com/rezolus/rezolus/internal/samplers/network"
	_ "github.com/rezolus/rezolus/internal/samplers/scheduler"
	_ "github.com/rezolus/rezolus/internal/samplers/softirq"

	"github.com/rezolus/rezolus/pkg/metric"
	"github.com/rezolus/rezolus/pkg/sampler"
)

// exit codes per spec.md §6.
const (
	exitOK           = 0
	exitConfigError  = 1
	exitFatalRuntime = 2
)

func main() {
	root := &cobra.Command{
		Use:   "rezolus",
		Short: "Low-overhead Linux systems telemetry agent",
	}
	root.AddCommand(agentCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFatalRuntime)
	}
}

func agentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agent <config-path>",
		Short: "Run the agent against the given config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := run(cmd.Context(), args[0])
			if code != exitOK {
				os.Exit(code)
			}
			return nil
		},
	}
}

// run executes the full agent lifecycle and returns the process exit code
// (spec.md §6), rather than calling os.Exit itself, so it can be driven from
// tests.
func run(ctx context.Context, configPath string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}

	logger, flusher, err := logging.StderrInit(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}
	defer flusher.Stop()

	samplers, results := sampler.Global().Build(cfg)
	for _, r := range results {
		switch {
		case r.Err != nil:
			logger.Warn().Str("sampler", r.Name).Err(r.Err).Msg("sampler load error, skipping")
		case r.Sampler == nil:
			logger.Debug().Str("sampler", r.Name).Msg("sampler disabled")
		default:
			logger.Info().Str("sampler", r.Name).Msg("sampler loaded")
		}
	}

	ln, err := net.Listen("tcp", cfg.General.Listen)
	if err != nil {
		logger.Error().Err(err).Str("listen", cfg.General.Listen).Msg("fatal: cannot bind HTTP listener")
		return exitFatalRuntime
	}

	sched := sampler.NewScheduler(samplers)
	cache := sampler.NewCache(sched, cfg.General.TTL.Duration)
	srv := exphttp.NewServer(cache, metric.Global(), logger)

	httpServer := &http.Server{Handler: srv.Handler()}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(ln)
	}()

	logger.Info().Str("listen", cfg.General.Listen).Msg("rezolus agent started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("fatal: HTTP server error")
			return exitFatalRuntime
		}
	}

	// Let any in-flight HTTP handler (including a refresh_all coalesced
	// through the cache) finish within the grace period spec.md §5
	// bounds at 1s, then abandon it and tear down samplers regardless.
	httpDone := make(chan struct{})
	go func() {
		_ = httpServer.Shutdown(context.Background())
		close(httpDone)
	}()
	sampler.Shutdown(context.Background(), time.Second, httpDone)

	for _, s := range samplers {
		if closer, ok := s.(interface{ Shutdown() error }); ok {
			if err := closer.Shutdown(); err != nil {
				logger.Warn().Str("sampler", s.Name()).Err(err).Msg("error during sampler shutdown")
			}
		}
	}

	return exitOK
}
