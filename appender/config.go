package appender

import (
	"log/slog"

	"github.com/c360/eventlatency/config"
	"github.com/c360/eventlatency/errors"
	"github.com/c360/eventlatency/latency"
	"github.com/c360/eventlatency/metric"
	"github.com/c360/eventlatency/pkg/timestamp"
	"github.com/c360/eventlatency/report"
)

// RolloverChecker is consulted with every record before it is written. It may
// rotate the underlying file; rotation policies live outside this package.
type RolloverChecker interface {
	CheckRollover(record []byte)
}

// RolloverFunc adapts a function to RolloverChecker.
type RolloverFunc func(record []byte)

// CheckRollover calls f.
func (f RolloverFunc) CheckRollover(record []byte) {
	f(record)
}

// Config holds configuration for an Appender
type Config struct {
	Name           string
	FileName       string
	Append         bool
	BufferedIO     bool
	BufferSize     int
	ImmediateFlush bool

	// WindowSize is the number of writes per latency report row
	WindowSize int
	// QueueLimit bounds windows waiting to be persisted, 0 is unbounded
	QueueLimit int
	// ReportPath is the latency report file. Ignored when Sink or ReportFile is set.
	ReportPath string
	// ReportFile is a report sink built by the caller. It is monitored by
	// Stats and Health, and receives summaries unless Sink is set.
	ReportFile *report.FileSink
	// Sink receives window summaries instead of the report file. Set
	// ReportFile too when Sink fans out to it.
	Sink latency.Sink

	Rollover RolloverChecker
	Clock    timestamp.Clock
	Logger   *slog.Logger
	Metrics  *metric.MetricsRegistry
}

// DefaultConfig returns the appender defaults: append mode, buffered IO with
// an 8192 byte buffer, immediate flush and 100 writes per window.
func DefaultConfig() Config {
	return Config{
		Append:         true,
		BufferedIO:     true,
		BufferSize:     config.DefaultBufferSize,
		ImmediateFlush: true,
		WindowSize:     latency.DefaultWindowSize,
	}
}

// FromConfig maps loaded application configuration onto an appender Config
func FromConfig(cfg *config.Config) Config {
	return Config{
		Name:           cfg.Appender.Name,
		FileName:       cfg.Appender.FileName,
		Append:         cfg.Appender.Append,
		BufferedIO:     cfg.Appender.BufferedIO,
		BufferSize:     cfg.Appender.BufferSize,
		ImmediateFlush: cfg.Appender.ImmediateFlush,
		WindowSize:     cfg.Latency.WindowSize,
		QueueLimit:     cfg.Latency.QueueLimit,
		ReportPath:     cfg.ReportPath(),
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "no name provided")
	}
	if c.FileName == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "no file name provided")
	}
	if c.BufferSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "buffer size cannot be negative")
	}
	if c.WindowSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "window size cannot be negative")
	}
	if c.Sink == nil && c.ReportFile == nil && c.ReportPath == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "report path or sink required")
	}
	return nil
}
