package appender

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/eventlatency/config"
	"github.com/c360/eventlatency/errors"
	"github.com/c360/eventlatency/latency"
	"github.com/c360/eventlatency/pkg/timestamp"
	"github.com/c360/eventlatency/report"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Name = "test"
	cfg.FileName = filepath.Join(dir, "logs", "app.log")
	cfg.ReportPath = filepath.Join(dir, "repository", "logs", "logeventlatency.csv")
	return cfg
}

func startAppender(t *testing.T, cfg Config) *Appender {
	t.Helper()
	a, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { _ = a.Stop(5 * time.Second) })
	return a
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	trimmed := strings.TrimSuffix(string(data), "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"no name", func(c *Config) { c.Name = "" }, errors.ErrMissingConfig},
		{"no file name", func(c *Config) { c.FileName = "" }, errors.ErrMissingConfig},
		{"no report", func(c *Config) { c.ReportPath = "" }, errors.ErrMissingConfig},
		{"negative buffer", func(c *Config) { c.BufferSize = -1 }, errors.ErrInvalidConfig},
		{"negative window", func(c *Config) { c.WindowSize = -1 }, errors.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)
			_, err := New(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestNew_WarnsOnUnusedBufferSize(t *testing.T) {
	var logs strings.Builder
	cfg := testConfig(t)
	cfg.BufferedIO = false
	cfg.BufferSize = 4096
	cfg.Logger = slog.New(slog.NewTextHandler(&logs, nil))

	_, err := New(cfg)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "buffered IO is disabled")
}

func TestAppender_Accessors(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg)
	require.NoError(t, err)

	assert.Equal(t, "test", a.Name())
	assert.Equal(t, cfg.FileName, a.FileName())
	assert.Equal(t, cfg.ReportPath, a.ReportPath())
	assert.Len(t, a.ID(), 36)
	assert.Equal(t, 0, a.Pending())
	assert.Equal(t, 0, a.Buffered())

	other, err := New(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), other.ID())
}

func TestAppender_WritesRecordsAndReport(t *testing.T) {
	cfg := testConfig(t)
	cfg.WindowSize = 3
	a := startAppender(t, cfg)

	for i := 0; i < 7; i++ {
		_, err := fmt.Fprintf(a, "record %d\n", i)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, a.Buffered())
	require.NoError(t, a.Stop(5*time.Second))

	records := readLines(t, cfg.FileName)
	require.Len(t, records, 7)
	assert.Equal(t, "record 0", records[0])
	assert.Equal(t, "record 6", records[6])

	rows := readLines(t, cfg.ReportPath)
	require.Len(t, rows, 3, "header plus floor(7/3) rows")
	assert.Equal(t, report.Header, rows[0])
	for _, row := range rows[1:] {
		assert.Len(t, strings.Split(row, "|"), 6)
	}

	stats := a.Stats()
	assert.Equal(t, int64(7), stats.RecordsWritten)
	assert.Equal(t, int64(2), stats.Latency.Dispatched)
	assert.Equal(t, int64(2), stats.Latency.Rows)
	require.NotNil(t, stats.Report)
	assert.Equal(t, int64(2), stats.Report.Rows)
}

func TestAppender_EndToEndWithManualClock(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 15, 42, 0, time.Local)
	clock := timestamp.NewManualClock(base)

	cfg := testConfig(t)
	cfg.WindowSize = 3
	cfg.Clock = clock
	cfg.Rollover = RolloverFunc(func(record []byte) {
		// Each record carries the milliseconds its write should take
		var ms int
		_, _ = fmt.Sscanf(string(record), "%d", &ms)
		clock.Advance(time.Duration(ms) * time.Millisecond)
	})
	a := startAppender(t, cfg)

	for _, ms := range []int{10, 20, 30, 5} {
		_, err := fmt.Fprintf(a, "%d\n", ms)
		require.NoError(t, err)
	}
	require.NoError(t, a.Stop(5*time.Second))

	rows := readLines(t, cfg.ReportPath)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-03-01 10:15:42.010|2024-03-01 10:15:42.060|30|10|20.0|20", rows[1])
	assert.Equal(t, 1, a.Buffered(), "the fourth duration stays in the unfinished window")
}

func TestAppender_Lifecycle(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg)
	require.NoError(t, err)

	_, err = a.Write([]byte("early\n"))
	assert.ErrorIs(t, err, errors.ErrNotStarted)

	require.NoError(t, a.Start(context.Background()))
	err = a.Start(context.Background())
	assert.ErrorIs(t, err, errors.ErrAlreadyStarted)

	require.NoError(t, a.Stop(time.Second))
	require.NoError(t, a.Stop(time.Second), "Stop is idempotent")

	_, err = a.Write([]byte("late\n"))
	assert.ErrorIs(t, err, errors.ErrAppenderClosed)

	err = a.Start(context.Background())
	assert.ErrorIs(t, err, errors.ErrAppenderClosed)
}

func TestAppender_AppendVersusTruncate(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.FileName), 0755))
	require.NoError(t, os.WriteFile(cfg.FileName, []byte("old\n"), 0644))

	a := startAppender(t, cfg)
	_, err := a.Write([]byte("new\n"))
	require.NoError(t, err)
	require.NoError(t, a.Stop(time.Second))
	assert.Equal(t, []string{"old", "new"}, readLines(t, cfg.FileName))

	cfg.Append = false
	b := startAppender(t, cfg)
	_, err = b.Write([]byte("fresh\n"))
	require.NoError(t, err)
	require.NoError(t, b.Stop(time.Second))
	assert.Equal(t, []string{"fresh"}, readLines(t, cfg.FileName))
}

func TestAppender_BufferedWithoutImmediateFlush(t *testing.T) {
	cfg := testConfig(t)
	cfg.ImmediateFlush = false
	a := startAppender(t, cfg)

	_, err := a.Write([]byte("held\n"))
	require.NoError(t, err)
	assert.Empty(t, readLines(t, cfg.FileName), "record stays in the buffer")

	require.NoError(t, a.Flush())
	assert.Equal(t, []string{"held"}, readLines(t, cfg.FileName))

	_, err = a.Write([]byte("on stop\n"))
	require.NoError(t, err)
	require.NoError(t, a.Stop(time.Second))
	assert.Equal(t, []string{"held", "on stop"}, readLines(t, cfg.FileName))
}

func TestAppender_Unbuffered(t *testing.T) {
	cfg := testConfig(t)
	cfg.BufferedIO = false
	cfg.BufferSize = 0
	a := startAppender(t, cfg)

	_, err := a.Write([]byte("direct\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"direct"}, readLines(t, cfg.FileName))
	assert.NoError(t, a.Flush())
}

func TestAppender_RolloverCheckedBeforeEachWrite(t *testing.T) {
	var seen []string
	cfg := testConfig(t)
	cfg.Rollover = RolloverFunc(func(record []byte) {
		seen = append(seen, string(record))
	})
	a := startAppender(t, cfg)

	_, _ = a.Write([]byte("a\n"))
	_, _ = a.Write([]byte("b\n"))
	assert.Equal(t, []string{"a\n", "b\n"}, seen)
}

func TestAppender_DelegateErrorReturnedUnchanged(t *testing.T) {
	cfg := testConfig(t)
	cfg.BufferedIO = false
	cfg.BufferSize = 0
	a := startAppender(t, cfg)

	// Pull the file out from under the appender
	a.mu.Lock()
	require.NoError(t, a.file.Close())
	a.mu.Unlock()

	_, err := a.Write([]byte("lost\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrClosed)
	var pathErr *os.PathError
	assert.True(t, stderrors.As(err, &pathErr), "file error is not wrapped")

	assert.Equal(t, 1, a.Buffered(), "failed writes are timed too")
	assert.Equal(t, int64(1), a.Stats().WriteErrors)
	assert.True(t, a.Health().IsDegraded())
}

func TestAppender_UnderSlogHandler(t *testing.T) {
	cfg := testConfig(t)
	cfg.WindowSize = 2
	a := startAppender(t, cfg)

	logger := slog.New(slog.NewTextHandler(a, nil))
	logger.Info("first", "n", 1)
	logger.Warn("second", "n", 2)
	logger.Error("third", "n", 3)
	require.NoError(t, a.Stop(5*time.Second))

	records := readLines(t, cfg.FileName)
	require.Len(t, records, 3)
	assert.Contains(t, records[0], "msg=first")
	assert.Contains(t, records[2], "level=ERROR")

	rows := readLines(t, cfg.ReportPath)
	assert.Len(t, rows, 2)
}

func TestAppender_ConcurrentWriters(t *testing.T) {
	cfg := testConfig(t)
	cfg.WindowSize = 10
	a := startAppender(t, cfg)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, err := fmt.Fprintf(a, "writer=%d seq=%d\n", g, i)
				assert.NoError(t, err)
			}
		}(g)
	}
	wg.Wait()
	require.NoError(t, a.Stop(5*time.Second))

	records := readLines(t, cfg.FileName)
	assert.Len(t, records, 400)
	for _, r := range records {
		assert.True(t, strings.HasPrefix(r, "writer="), "record not interleaved: %q", r)
	}

	rows := readLines(t, cfg.ReportPath)
	assert.Len(t, rows, 41)
}

func TestAppender_CustomSink(t *testing.T) {
	var mu sync.Mutex
	var summaries []latency.Summary

	cfg := testConfig(t)
	cfg.ReportPath = ""
	cfg.WindowSize = 2
	cfg.Sink = latency.SinkFunc(func(_ context.Context, s latency.Summary) error {
		mu.Lock()
		summaries = append(summaries, s)
		mu.Unlock()
		return nil
	})
	a := startAppender(t, cfg)

	for i := 0; i < 4; i++ {
		_, err := a.Write([]byte("x\n"))
		require.NoError(t, err)
	}
	require.NoError(t, a.Stop(5*time.Second))

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, summaries, 2)
	assert.Empty(t, a.ReportPath())
	assert.Nil(t, a.Stats().Report)
}

func TestAppender_ReportFileMonitoredBehindCustomSink(t *testing.T) {
	cfg := testConfig(t)
	reportPath := cfg.ReportPath
	fileSink, err := report.NewFileSink(reportPath, nil)
	require.NoError(t, err)

	var forwarded atomic.Int64
	cfg.ReportPath = ""
	cfg.WindowSize = 2
	cfg.ReportFile = fileSink
	cfg.Sink = report.Multi{fileSink, latency.SinkFunc(func(context.Context, latency.Summary) error {
		forwarded.Add(1)
		return nil
	})}
	a := startAppender(t, cfg)

	status := a.Health()
	require.Len(t, status.SubStatuses, 3)
	assert.Equal(t, "latency_report", status.SubStatuses[2].Component)
	assert.Equal(t, reportPath, a.ReportPath())

	for i := 0; i < 4; i++ {
		_, err := a.Write([]byte("x\n"))
		require.NoError(t, err)
	}
	require.NoError(t, a.Stop(5*time.Second))

	assert.Equal(t, int64(2), forwarded.Load())
	require.NotNil(t, a.Stats().Report)
	assert.Equal(t, int64(2), a.Stats().Report.Rows)
	assert.Len(t, readLines(t, reportPath), 3)
}

func TestAppender_ReportFileWithoutSink(t *testing.T) {
	cfg := testConfig(t)
	fileSink, err := report.NewFileSink(cfg.ReportPath, nil)
	require.NoError(t, err)
	cfg.ReportFile = fileSink
	cfg.WindowSize = 1
	a := startAppender(t, cfg)

	_, err = a.Write([]byte("x\n"))
	require.NoError(t, err)
	require.NoError(t, a.Stop(5*time.Second))

	assert.Equal(t, int64(1), fileSink.Stats().Rows)
	assert.Len(t, readLines(t, cfg.ReportPath), 2)
}

func TestAppender_Health(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg)
	require.NoError(t, err)

	assert.True(t, a.Health().IsUnhealthy(), "not started")

	require.NoError(t, a.Start(context.Background()))
	status := a.Health()
	assert.True(t, status.IsHealthy())
	assert.Equal(t, "test", status.Component)
	require.Len(t, status.SubStatuses, 3)
	assert.Equal(t, "log_file", status.SubStatuses[0].Component)
	assert.Equal(t, "latency_worker", status.SubStatuses[1].Component)
	assert.Equal(t, "latency_report", status.SubStatuses[2].Component)

	require.NoError(t, a.Stop(time.Second))
	assert.True(t, a.Health().IsUnhealthy())
}

func TestAppender_HealthDegradedOnReportFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	cfg := testConfig(t)
	cfg.WindowSize = 1
	cfg.ReportPath = filepath.Join(blocker, "logeventlatency.csv")
	a := startAppender(t, cfg)

	_, err := a.Write([]byte("x\n"))
	require.NoError(t, err, "report failures never reach the writer")

	require.Eventually(t, func() bool {
		return a.Stats().Latency.ReportErrors == 1
	}, 5*time.Second, 10*time.Millisecond)

	status := a.Health()
	assert.True(t, status.IsDegraded())
	assert.True(t, status.SubStatuses[2].IsDegraded())
	assert.NotContains(t, status.SubStatuses[2].Message, blocker, "paths are sanitized")
}

func TestFromConfig(t *testing.T) {
	appCfg := config.DefaultConfig()
	appCfg.Appender.Name = "svc"
	appCfg.Latency.WindowSize = 7
	appCfg.Latency.BaseDir = "/opt/svc"

	cfg := FromConfig(appCfg)
	assert.Equal(t, "svc", cfg.Name)
	assert.Equal(t, 7, cfg.WindowSize)
	assert.Equal(t, filepath.Join("/opt/svc", "repository", "logs", "logeventlatency.csv"), cfg.ReportPath)
	assert.True(t, cfg.Append)
	assert.True(t, cfg.BufferedIO)
	assert.Equal(t, 8192, cfg.BufferSize)
	assert.True(t, cfg.ImmediateFlush)
}
