package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/eventlatency/appender"
	"github.com/c360/eventlatency/config"
	"github.com/c360/eventlatency/health"
	"github.com/c360/eventlatency/metric"
	"github.com/c360/eventlatency/report"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("eventlatency", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestParseFlagSet_Defaults(t *testing.T) {
	cfg := parseFlagSet(newFlagSet(), nil)

	assert.Equal(t, "", cfg.ConfigPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 1000, cfg.Events)
	assert.Equal(t, 10*time.Millisecond, cfg.Interval)
	assert.Zero(t, cfg.ShutdownTimeout)
	assert.Zero(t, cfg.MetricsPort)
	assert.NoError(t, validateFlags(cfg))
}

func TestParseFlagSet_Flags(t *testing.T) {
	cfg := parseFlagSet(newFlagSet(), []string{
		"-events", "7",
		"-interval", "0s",
		"-log-format", "text",
		"-metrics-port", "9191",
		"-nats-url", "nats://example:4222",
		"-debug",
	})

	assert.Equal(t, 7, cfg.Events)
	assert.Zero(t, cfg.Interval)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 9191, cfg.MetricsPort)
	assert.Equal(t, "nats://example:4222", cfg.NATSURL)
	assert.Equal(t, "debug", cfg.LogLevel, "debug overrides log level")
}

func TestParseFlagSet_EnvFallback(t *testing.T) {
	t.Setenv("EVENTLATENCY_EVENTS", "42")
	t.Setenv("EVENTLATENCY_INTERVAL", "1ms")
	t.Setenv("EVENTLATENCY_LOG_LEVEL", "warn")
	t.Setenv("EVENTLATENCY_SHUTDOWN_TIMEOUT", "3s")

	cfg := parseFlagSet(newFlagSet(), nil)
	assert.Equal(t, 42, cfg.Events)
	assert.Equal(t, time.Millisecond, cfg.Interval)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)

	// Flags win over the environment
	cfg = parseFlagSet(newFlagSet(), []string{"-events", "5"})
	assert.Equal(t, 5, cfg.Events)
}

func TestEnvHelpers_IgnoreMalformed(t *testing.T) {
	t.Setenv("EVENTLATENCY_TEST_INT", "many")
	t.Setenv("EVENTLATENCY_TEST_BOOL", "perhaps")
	t.Setenv("EVENTLATENCY_TEST_DURATION", "soon")

	assert.Equal(t, 3, getEnvInt("EVENTLATENCY_TEST_INT", 3))
	assert.True(t, getEnvBool("EVENTLATENCY_TEST_BOOL", true))
	assert.Equal(t, time.Second, getEnvDuration("EVENTLATENCY_TEST_DURATION", time.Second))
	assert.Equal(t, "fallback", getEnv("EVENTLATENCY_TEST_UNSET", "fallback"))
}

func TestValidateFlags(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("latency:\n  window_size: 10\n"), 0644))

	valid := func() *CLIConfig {
		return &CLIConfig{LogLevel: "info", LogFormat: "json", Events: 1}
	}

	tests := []struct {
		name    string
		mutate  func(*CLIConfig)
		wantErr string
	}{
		{"defaults", func(*CLIConfig) {}, ""},
		{"existing config", func(c *CLIConfig) { c.ConfigPath = configPath }, ""},
		{"missing config", func(c *CLIConfig) { c.ConfigPath = filepath.Join(dir, "nope.yaml") }, "config file not found"},
		{"bad level", func(c *CLIConfig) { c.LogLevel = "trace" }, "invalid log level"},
		{"bad format", func(c *CLIConfig) { c.LogFormat = "xml" }, "invalid log format"},
		{"negative events", func(c *CLIConfig) { c.Events = -1 }, "invalid event count"},
		{"negative interval", func(c *CLIConfig) { c.Interval = -time.Second }, "invalid interval"},
		{"negative shutdown", func(c *CLIConfig) { c.ShutdownTimeout = -time.Second }, "invalid shutdown timeout"},
		{"port out of range", func(c *CLIConfig) { c.MetricsPort = 70000 }, "invalid metrics port"},
		{"version skips checks", func(c *CLIConfig) { c.ShowVersion = true; c.LogLevel = "trace" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validateFlags(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := config.DefaultConfig()
	applyFlagOverrides(cfg, &CLIConfig{})
	assert.Equal(t, config.DefaultConfig(), cfg, "zero flags leave config untouched")

	applyFlagOverrides(cfg, &CLIConfig{
		NATSURL:         "nats://localhost:4222",
		MetricsPort:     9191,
		ShutdownTimeout: 2 * time.Second,
	})
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9191, cfg.Metrics.Port)
	assert.Equal(t, 2*time.Second, cfg.Latency.ShutdownTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	newLogger(&buf, "warn", "text").Info("hidden")
	assert.Empty(t, buf.String())

	newLogger(&buf, "info", "text").Info("shown", "k", "v")
	assert.Contains(t, buf.String(), "msg=shown")
	assert.Contains(t, buf.String(), "k=v")

	buf.Reset()
	newLogger(&buf, "info", "json").Info("shown")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))
}

func TestNATSStatus(t *testing.T) {
	assert.True(t, natsStatus(nats.CONNECTED).IsHealthy())
	assert.True(t, natsStatus(nats.RECONNECTING).IsDegraded())
	assert.True(t, natsStatus(nats.CLOSED).IsUnhealthy())
	assert.Equal(t, "nats", natsStatus(nats.CLOSED).Component)
}

func TestGenerateEvents_Count(t *testing.T) {
	var buf bytes.Buffer
	n := generateEvents(context.Background(), &buf, 5, 0)

	assert.Equal(t, 5, n)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "seq=1")
	assert.Contains(t, lines[4], "seq=5")
}

func TestGenerateEvents_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	assert.Zero(t, generateEvents(ctx, &buf, 0, time.Millisecond))
	assert.Empty(t, buf.String())
}

func TestGenerateEvents_UntilCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var buf bytes.Buffer
	n := generateEvents(ctx, &buf, 0, time.Millisecond)
	assert.Positive(t, n)
	assert.Equal(t, n, strings.Count(buf.String(), "\n"))
}

func TestGenerateEvents_PacedByInterval(t *testing.T) {
	var buf bytes.Buffer
	start := time.Now()
	n := generateEvents(context.Background(), &buf, 4, 25*time.Millisecond)

	assert.Equal(t, 4, n)
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond, "first record is immediate, the rest wait one interval each")
}

func testAppender(t *testing.T) (*appender.Appender, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Appender.FileName = filepath.Join(dir, "logs", "app.log")
	cfg.Latency.BaseDir = dir
	cfg.Latency.WindowSize = 2
	require.NoError(t, cfg.Validate())

	app, err := setupAppender(cfg, nil, nil, metric.NewMetricsRegistry(), newLogger(io.Discard, "error", "text"))
	require.NoError(t, err)
	require.NoError(t, app.Start(context.Background()))
	return app, cfg
}

func TestRunWithSignalHandling_StopsServerWhenEventsDone(t *testing.T) {
	app, cfg := testAppender(t)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	server := metric.NewServer(port, "/metrics", metric.NewMetricsRegistry())

	done := make(chan error, 1)
	go func() {
		done <- runWithSignalHandling(context.Background(), app, server, &CLIConfig{Events: 4}, 5*time.Second)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after the last event")
	}

	assert.Equal(t, int64(4), app.Stats().RecordsWritten)
	assert.Len(t, strings.Split(strings.TrimSpace(readFile(t, cfg.ReportPath())), "\n"), 3)
}

func TestRunWithSignalHandling_ServerFailureEndsRun(t *testing.T) {
	app, _ := testAppender(t)
	busy, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer busy.Close()
	server := metric.NewServer(busy.Addr().(*net.TCPAddr).Port, "/metrics", metric.NewMetricsRegistry())

	done := make(chan error, 1)
	go func() {
		done <- runWithSignalHandling(context.Background(), app, server, &CLIConfig{Events: 0, Interval: time.Millisecond}, 5*time.Second)
	}()

	select {
	case err := <-done:
		assert.Error(t, err, "bind failure is returned")
	case <-time.After(10 * time.Second):
		t.Fatal("run kept generating after the metrics server failed")
	}
	assert.True(t, app.Health().IsUnhealthy(), "appender was stopped")
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestSetupAppender_WritesReport(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Appender.FileName = filepath.Join(dir, "logs", "app.log")
	cfg.Latency.BaseDir = dir
	cfg.Latency.WindowSize = 3
	require.NoError(t, cfg.Validate())

	registry := metric.NewMetricsRegistry()
	app, err := setupAppender(cfg, nil, nil, registry, newLogger(io.Discard, "error", "text"))
	require.NoError(t, err)
	require.NoError(t, app.Start(context.Background()))

	monitor := health.NewMonitor(appName)
	monitor.Register("appender", app.Health)
	assert.True(t, monitor.Check().IsHealthy())

	assert.Equal(t, 7, generateEvents(context.Background(), app, 7, 0))
	require.NoError(t, shutdown(app, nil, 5*time.Second))

	logData, err := os.ReadFile(cfg.Appender.FileName)
	require.NoError(t, err)
	assert.Equal(t, 7, strings.Count(string(logData), "msg=\"demo event\""))

	reportData, err := os.ReadFile(cfg.ReportPath())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(reportData)), "\n")
	require.Len(t, lines, 3, "header plus one row per full window")
	assert.Equal(t, report.Header, lines[0])

	stats := app.Stats()
	assert.Equal(t, int64(7), stats.RecordsWritten)
	assert.Equal(t, int64(2), stats.Latency.Rows)
	assert.Equal(t, 1, app.Buffered(), "partial window is discarded on stop")
}

var _ io.Writer = (*appender.Appender)(nil)
