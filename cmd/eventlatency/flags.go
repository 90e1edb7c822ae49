package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	Debug           bool
	Events          int
	Interval        time.Duration
	ShutdownTimeout time.Duration
	MetricsPort     int
	NATSURL         string
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	return parseFlagSet(flag.CommandLine, os.Args[1:])
}

// parseFlagSet registers every flag on fs and parses args. Environment
// variables supply the defaults. Parse errors exit through fs's error handling.
func parseFlagSet(fs *flag.FlagSet, args []string) *CLIConfig {
	cfg := &CLIConfig{}

	// Define flags with environment variable fallback
	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("EVENTLATENCY_CONFIG", ""),
		"Path to a YAML or JSON configuration file, defaults apply when empty (env: EVENTLATENCY_CONFIG)")

	fs.StringVar(&cfg.ConfigPath, "c",
		getEnv("EVENTLATENCY_CONFIG", ""),
		"Path to configuration file (env: EVENTLATENCY_CONFIG)")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("EVENTLATENCY_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: EVENTLATENCY_LOG_LEVEL)")

	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("EVENTLATENCY_LOG_FORMAT", "json"),
		"Log format: json, text (env: EVENTLATENCY_LOG_FORMAT)")

	fs.BoolVar(&cfg.Debug, "debug",
		getEnvBool("EVENTLATENCY_DEBUG", false),
		"Enable debug mode (env: EVENTLATENCY_DEBUG)")

	fs.IntVar(&cfg.Events, "events",
		getEnvInt("EVENTLATENCY_EVENTS", 1000),
		"Number of demo log records to write, 0 writes until interrupted (env: EVENTLATENCY_EVENTS)")

	fs.DurationVar(&cfg.Interval, "interval",
		getEnvDuration("EVENTLATENCY_INTERVAL", 10*time.Millisecond),
		"Pause between demo log records (env: EVENTLATENCY_INTERVAL)")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("EVENTLATENCY_SHUTDOWN_TIMEOUT", 0),
		"Time allowed to drain pending report rows, 0 uses latency.shutdown_timeout (env: EVENTLATENCY_SHUTDOWN_TIMEOUT)")

	fs.IntVar(&cfg.MetricsPort, "metrics-port",
		getEnvInt("EVENTLATENCY_METRICS_PORT", 0),
		"Serve Prometheus metrics on this port, 0 leaves the configured setting (env: EVENTLATENCY_METRICS_PORT)")

	fs.StringVar(&cfg.NATSURL, "nats-url",
		getEnv("EVENTLATENCY_NATS_URL", ""),
		"Publish summaries to this NATS server (env: EVENTLATENCY_NATS_URL)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	// Custom usage
	fs.Usage = func() {
		printDetailedHelp(fs)
	}

	_ = fs.Parse(args)

	// Override log level if debug is set
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	// Skip validation for special flags
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.Events < 0 {
		return fmt.Errorf("invalid event count: %d", cfg.Events)
	}

	if cfg.Interval < 0 {
		return fmt.Errorf("invalid interval: %s", cfg.Interval)
	}

	if cfg.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", cfg.ShutdownTimeout)
	}

	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}

	return nil
}

func printDetailedHelp(fs *flag.FlagSet) {
	out := fs.Output()
	_, _ = fmt.Fprintf(out, `%s - log appender with write latency reporting

Usage: %s [options]

Options:
`, appName, fs.Name())
	fs.PrintDefaults()
	writeExamples(out, fs.Name())
}

func writeExamples(out io.Writer, name string) {
	_, _ = fmt.Fprintf(out, `
Examples:
  # Write 500 records, one row per 100 writes lands in the report
  %s --events=500 --interval=5ms

  # Run with a config file and text logging
  %s --config=/etc/eventlatency/config.yaml --log-format=text

  # Also publish window summaries to NATS and expose metrics
  export EVENTLATENCY_NATS_URL=nats://localhost:4222
  %s --metrics-port=9090 --events=0

  # Validate configuration only
  %s --config=config.yaml --validate

Version: %s
Build: %s
`, name, name, name, name, Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
