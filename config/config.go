package config

import (
	"fmt"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/eventlatency/errors"
)

// Defaults for the fields of Config
const (
	DefaultAppenderName    = "eventlatency"
	DefaultLogFile         = "logs/eventlatency.log"
	DefaultBufferSize      = 8192
	DefaultWindowSize      = 100
	DefaultReportFile      = "logeventlatency.csv"
	DefaultShutdownTimeout = 5 * time.Second
	DefaultNATSSubject     = "eventlatency.summary"
	DefaultMetricsPort     = 9090
	DefaultMetricsPath     = "/metrics"
)

// Config represents the complete application configuration
type Config struct {
	Appender AppenderConfig `yaml:"appender" json:"appender"`
	Latency  LatencyConfig  `yaml:"latency"  json:"latency"`
	NATS     NATSConfig     `yaml:"nats"     json:"nats"`
	Metrics  MetricsConfig  `yaml:"metrics"  json:"metrics"`
}

// AppenderConfig configures the log file the appender writes to
type AppenderConfig struct {
	Name           string `yaml:"name"            json:"name"`
	FileName       string `yaml:"file_name"       json:"file_name"`
	Append         bool   `yaml:"append"          json:"append"`
	BufferedIO     bool   `yaml:"buffered_io"     json:"buffered_io"`
	BufferSize     int    `yaml:"buffer_size"     json:"buffer_size"`
	ImmediateFlush bool   `yaml:"immediate_flush" json:"immediate_flush"`
}

// LatencyConfig configures windowing and the latency report
type LatencyConfig struct {
	// WindowSize is the number of writes summarised per report row
	WindowSize int `yaml:"window_size" json:"window_size"`
	// BaseDir anchors the default report location
	BaseDir string `yaml:"base_dir" json:"base_dir"`
	// ReportPath overrides the report location derived from BaseDir
	ReportPath string `yaml:"report_path" json:"report_path,omitempty"`
	// QueueLimit bounds windows waiting to be persisted, 0 is unbounded
	QueueLimit      int           `yaml:"queue_limit"      json:"queue_limit"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// NATSConfig configures publishing summaries to NATS. Empty URL disables it.
type NATSConfig struct {
	URL       string `yaml:"url"       json:"url,omitempty"`
	Subject   string `yaml:"subject"   json:"subject"`
	JetStream bool   `yaml:"jetstream" json:"jetstream"`
	// Stream is created on startup when JetStream is enabled and it is set
	Stream string `yaml:"stream" json:"stream,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port"    json:"port"`
	Path    string `yaml:"path"    json:"path"`
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() *Config {
	return &Config{
		Appender: AppenderConfig{
			Name:           DefaultAppenderName,
			FileName:       DefaultLogFile,
			Append:         true,
			BufferedIO:     true,
			BufferSize:     DefaultBufferSize,
			ImmediateFlush: true,
		},
		Latency: LatencyConfig{
			WindowSize:      DefaultWindowSize,
			BaseDir:         ".",
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		NATS: NATSConfig{
			Subject: DefaultNATSSubject,
		},
		Metrics: MetricsConfig{
			Port: DefaultMetricsPort,
			Path: DefaultMetricsPath,
		},
	}
}

// ReportPath returns the resolved latency report location:
// latency.report_path if set, else <base_dir>/repository/logs/logeventlatency.csv.
func (c *Config) ReportPath() string {
	if c.Latency.ReportPath != "" {
		return filepath.Clean(c.Latency.ReportPath)
	}
	base := c.Latency.BaseDir
	if base == "" {
		base = "."
	}
	return filepath.Join(base, "repository", "logs", DefaultReportFile)
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	invalid := func(reason string) error {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", reason)
	}

	if c.Appender.Name == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "appender.name is required")
	}
	if c.Appender.FileName == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "appender.file_name is required")
	}
	if err := validateOutputPath("appender.file_name", c.Appender.FileName); err != nil {
		return err
	}
	if c.Appender.BufferSize < 0 {
		return invalid("appender.buffer_size cannot be negative")
	}
	if c.Latency.WindowSize < 1 {
		return invalid(fmt.Sprintf("latency.window_size must be at least 1, got %d", c.Latency.WindowSize))
	}
	if err := validateOutputPath("latency report", c.ReportPath()); err != nil {
		return err
	}
	if c.Latency.QueueLimit < 0 {
		return invalid("latency.queue_limit cannot be negative")
	}
	if c.Latency.ShutdownTimeout < 0 {
		return invalid("latency.shutdown_timeout cannot be negative")
	}
	if c.NATS.URL != "" && c.NATS.Subject == "" {
		return invalid("nats.subject is required when nats.url is set")
	}
	if c.NATS.Stream != "" && !c.NATS.JetStream {
		return invalid("nats.stream requires nats.jetstream")
	}
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return invalid(fmt.Sprintf("metrics.port out of range: %d", c.Metrics.Port))
	}

	return nil
}

// String returns a YAML representation of the config
func (c *Config) String() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(data)
}
