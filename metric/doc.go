// Package metric provides Prometheus-based metrics for the event latency appender.
//
// A MetricsRegistry wraps a dedicated prometheus.Registry that carries the core
// appender metrics (Metrics), the Go runtime and process collectors, and any
// component-specific collectors registered through the MetricsRegistrar methods.
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        slog.Error("metrics server failed", "error", err)
//	    }
//	}()
//
// # Core Metrics
//
//   - eventlatency_appender_records_total{appender,status}
//   - eventlatency_appender_write_duration_seconds{appender}
//   - eventlatency_window_dispatched_total{appender}
//   - eventlatency_window_dropped_total{appender}
//   - eventlatency_window_last_milliseconds{appender,stat}
//   - eventlatency_report_rows_total{appender}
//   - eventlatency_report_errors_total{appender,class}
//
// Registering the same service/metric pair twice returns an invalid-class error
// rather than panicking, so components can be rebuilt against a long-lived
// registry.
package metric
