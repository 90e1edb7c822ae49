// Package main implements the eventlatency command. It installs the latency
// instrumented file appender under a slog handler, writes demo log records and
// reports write latency per window to a file and optionally to NATS.
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/c360/eventlatency/appender"
	"github.com/c360/eventlatency/config"
	"github.com/c360/eventlatency/health"
	"github.com/c360/eventlatency/metric"
	"github.com/c360/eventlatency/pkg/retry"
	"github.com/c360/eventlatency/report"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "eventlatency"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := initializeConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid", "report_path", cfg.ReportPath())
		return nil
	}

	ctx := context.Background()
	metricsRegistry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor(appName)

	nc, js, err := connectNATS(ctx, cfg.NATS, cfg.Appender.Name, logger)
	if err != nil {
		return err
	}
	if nc != nil {
		defer drainNATS(nc)
		monitor.Register("nats", natsHealth(nc))
	}

	app, err := setupAppender(cfg, nc, js, metricsRegistry, logger)
	if err != nil {
		return err
	}
	// Cancelling the start context abandons queued windows, so shutdown goes
	// through Stop instead.
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start appender: %w", err)
	}
	monitor.Register("appender", app.Health)

	var server *metric.Server
	if cfg.Metrics.Enabled {
		server = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry)
		server.SetHealthCheck(monitor.Check)
	}

	return runWithSignalHandling(ctx, app, server, cliCfg, cfg.Latency.ShutdownTimeout)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp(flag.CommandLine)
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting eventlatency",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// initializeConfiguration loads the config file, if any, and applies flag
// overrides on top of it
func initializeConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	applyFlagOverrides(cfg, cliCfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyFlagOverrides(cfg *config.Config, cliCfg *CLIConfig) {
	if cliCfg.NATSURL != "" {
		cfg.NATS.URL = cliCfg.NATSURL
	}
	if cliCfg.MetricsPort > 0 {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Port = cliCfg.MetricsPort
	}
	if cliCfg.ShutdownTimeout > 0 {
		cfg.Latency.ShutdownTimeout = cliCfg.ShutdownTimeout
	}
}

// setupAppender builds the appender. Summaries go to the report file, and
// also to NATS when a connection is given.
func setupAppender(
	cfg *config.Config,
	nc *nats.Conn,
	js jetstream.JetStream,
	metricsRegistry *metric.MetricsRegistry,
	logger *slog.Logger,
) (*appender.Appender, error) {
	appCfg := appender.FromConfig(cfg)
	appCfg.Logger = logger
	appCfg.Metrics = metricsRegistry

	if nc != nil {
		fileSink, err := report.NewFileSink(appCfg.ReportPath, logger)
		if err != nil {
			return nil, fmt.Errorf("create report sink: %w", err)
		}

		opts := []report.NATSOption{
			report.WithSubject(cfg.NATS.Subject),
			report.WithAppender(cfg.Appender.Name),
			report.WithNATSLogger(logger),
			report.WithRetry(retry.Publish()),
		}
		if js != nil {
			opts = append(opts, report.WithJetStream(js))
		}
		natsSink, err := report.NewNATSSink(nc, opts...)
		if err != nil {
			return nil, fmt.Errorf("create NATS sink: %w", err)
		}

		appCfg.ReportFile = fileSink
		appCfg.Sink = report.Multi{fileSink, natsSink}
	}

	app, err := appender.New(appCfg)
	if err != nil {
		return nil, fmt.Errorf("create appender: %w", err)
	}
	return app, nil
}

// runWithSignalHandling writes demo records until the requested count is
// reached or a shutdown signal arrives, then shuts down
func runWithSignalHandling(
	ctx context.Context,
	app *appender.Appender,
	server *metric.Server,
	cliCfg *CLIConfig,
	shutdownTimeout time.Duration,
) error {
	slog.Debug("Setting up signal handling")
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	g, gctx := errgroup.WithContext(signalCtx)
	if server != nil {
		g.Go(func() error {
			if err := server.Start(); err != nil {
				slog.Error("Metrics server failed", "error", err)
				return err
			}
			return nil
		})
		slog.Info("Metrics server listening", "address", server.Address())
	}

	slog.Info("eventlatency started",
		"file", app.FileName(),
		"report", app.ReportPath(),
		"events", cliCfg.Events,
		"interval", cliCfg.Interval)

	g.Go(func() error {
		written := generateEvents(gctx, app, cliCfg.Events, cliCfg.Interval)
		if signalCtx.Err() != nil {
			slog.Info("Received shutdown signal", "events_written", written)
		}

		// Stopping the server also ends the Start goroutine
		if err := shutdown(app, server, shutdownTimeout); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("eventlatency shutdown complete")
	return nil
}

// generateEvents writes count log records through a slog handler backed by w,
// at most one per interval. A count of 0 writes until ctx ends. It returns the
// number of records written.
func generateEvents(ctx context.Context, w io.Writer, count int, interval time.Duration) int {
	records := slog.New(slog.NewTextHandler(w, nil))

	var limiter *rate.Limiter
	if interval > 0 {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
	}

	written := 0
	for count == 0 || written < count {
		if ctx.Err() != nil {
			return written
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return written
			}
		}

		records.InfoContext(ctx, "demo event", "seq", written+1)
		written++
	}
	return written
}

// shutdown stops the appender, draining full windows to the report, then the
// metrics server
func shutdown(app *appender.Appender, server *metric.Server, timeout time.Duration) error {
	var errs []error

	if err := app.Stop(timeout); err != nil {
		slog.Error("Error stopping appender", "error", err)
		errs = append(errs, err)
	}

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			slog.Error("Error stopping metrics server", "error", err)
			errs = append(errs, err)
		}
	}

	stats := app.Stats()
	slog.Info("Appender statistics",
		"records_written", stats.RecordsWritten,
		"write_errors", stats.WriteErrors,
		"windows_dispatched", stats.Latency.Dispatched,
		"windows_dropped", stats.Latency.Dropped,
		"report_rows", stats.Latency.Rows,
		"report_errors", stats.Latency.ReportErrors)

	return stderrors.Join(errs...)
}
