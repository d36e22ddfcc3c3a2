package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/torosent/pacefire/internal/config"
	"github.com/torosent/pacefire/internal/dashboard"
	"github.com/torosent/pacefire/internal/httpclient"
	"github.com/torosent/pacefire/internal/logging"
	"github.com/torosent/pacefire/internal/metrics"
	"github.com/torosent/pacefire/internal/output"
	"github.com/torosent/pacefire/internal/runner"
	"github.com/torosent/pacefire/internal/statusserver"
	"github.com/torosent/pacefire/internal/tracing"
	"github.com/torosent/pacefire/internal/window"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// run loads the configuration and drives the scheduler until ctx is done.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.NewLoader().Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	for _, w := range cfg.Warnings() {
		fmt.Fprintln(stderr, w)
	}
	if cfg.PrintConfig {
		return cfg.WriteYAML(stdout)
	}

	logger, err := logging.NewWithWriter(stderr, cfg.LogLevel, cfg.JSONOutput)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	runID := ulid.Make().String()
	logger = logger.With(zap.String("run_id", runID))

	tp, err := tracing.Init(ctx, cfg.Tracing, runID)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	tracker := window.NewTracker(cfg.Retention, window.WithEndpoints(cfg.Endpoints...))
	board := metrics.NewBoard(tracker)

	var sink output.Sink = output.Discard
	if !cfg.Dashboard {
		sink = output.NewLineWriter(stdout, cfg.Retention, cfg.JSONOutput, runID)
	}

	client := httpclient.NewClient(cfg.Timeout)
	defer client.CloseIdleConnections()

	var requester runner.Requester = httpclient.NewExecutor(client, tracker,
		httpclient.WithBoard(board),
		httpclient.WithSink(sink),
		httpclient.WithTracer(tp.Tracer(), tp.ShouldPropagate()),
	)
	var failures *failureLogger
	if cfg.LogErrors {
		failures = newFailureLogger(logger, failureLogRate, failureLogBurst)
		requester = runner.WithLogging(requester, failures)
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	scheduler := runner.New(runner.Options{
		Requests:         cfg.Requests,
		Period:           cfg.Period,
		Endpoints:        cfg.Endpoints,
		Requester:        requester,
		PollInterval:     cfg.PollInterval,
		GracefulShutdown: cfg.GracefulShutdown,
		Logger:           logger,
	})

	if cfg.StatusAddr != "" {
		srv := statusserver.New(cfg.StatusAddr, statusserver.Info{
			RunID:     runID,
			Requests:  cfg.Requests,
			Period:    cfg.Period,
			Retention: cfg.Retention,
		}, board, scheduler, logger)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("status server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(board, scheduler, dashboard.RunInfo{
			RunID:     runID,
			Requests:  cfg.Requests,
			Period:    cfg.Period,
			Retention: cfg.Retention,
			Timeout:   cfg.Timeout,
		}, stop)
		if err != nil {
			return err
		}
		dash.Start()
	}

	result := scheduler.Run(runCtx)

	if dash != nil {
		dash.Stop()
	}
	if failures != nil {
		failures.Flush()
	}

	if !cfg.Summary {
		return nil
	}
	summary := output.Summary{
		RunID:     runID,
		Requests:  cfg.Requests,
		Period:    cfg.Period,
		Interval:  scheduler.Interval(),
		Retention: cfg.Retention,
		Duration:  result.Duration,
		Ticks:     result.Ticks,
		Fired:     result.Fired,
		Skipped:   result.Skipped,
		Endpoints: board.Snapshot(),
	}
	if cfg.JSONOutput {
		return output.PrintJSONSummary(stderr, summary)
	}
	output.PrintSummary(stderr, summary)
	return nil
}
