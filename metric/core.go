package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Window statistics reported by the LastWindow gauge
const (
	StatMax    = "max"
	StatMin    = "min"
	StatMean   = "mean"
	StatMedian = "median"
)

// Metrics contains the appender-level metrics shared by every appender instance
type Metrics struct {
	// Write path
	RecordsTotal  *prometheus.CounterVec
	WriteDuration *prometheus.HistogramVec

	// Window hand-off
	WindowsDispatched *prometheus.CounterVec
	WindowsDropped    *prometheus.CounterVec

	// Report persistence
	ReportRows   *prometheus.CounterVec
	ReportErrors *prometheus.CounterVec
	LastWindow   *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		RecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "eventlatency",
				Subsystem: "appender",
				Name:      "records_total",
				Help:      "Total number of log records written by the appender",
			},
			[]string{"appender", "status"},
		),

		WriteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "eventlatency",
				Subsystem: "appender",
				Name:      "write_duration_seconds",
				Help:      "Time spent in the delegate write of one log record",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"appender"},
		),

		WindowsDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "eventlatency",
				Subsystem: "window",
				Name:      "dispatched_total",
				Help:      "Total number of full latency windows handed to the dispatch worker",
			},
			[]string{"appender"},
		),

		WindowsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "eventlatency",
				Subsystem: "window",
				Name:      "dropped_total",
				Help:      "Total number of full latency windows the dispatch worker refused",
			},
			[]string{"appender"},
		),

		ReportRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "eventlatency",
				Subsystem: "report",
				Name:      "rows_total",
				Help:      "Total number of window summaries persisted",
			},
			[]string{"appender"},
		),

		ReportErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "eventlatency",
				Subsystem: "report",
				Name:      "errors_total",
				Help:      "Total number of window summaries that could not be persisted",
			},
			[]string{"appender", "class"},
		),

		LastWindow: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "eventlatency",
				Subsystem: "window",
				Name:      "last_milliseconds",
				Help:      "Statistics of the most recently summarised window in milliseconds",
			},
			[]string{"appender", "stat"},
		),
	}
}

// collectors returns every core collector for registration
func (c *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.RecordsTotal,
		c.WriteDuration,
		c.WindowsDispatched,
		c.WindowsDropped,
		c.ReportRows,
		c.ReportErrors,
		c.LastWindow,
	}
}

// RecordWrite records one delegate write and its outcome
func (c *Metrics) RecordWrite(appender string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.RecordsTotal.WithLabelValues(appender, status).Inc()
	c.WriteDuration.WithLabelValues(appender).Observe(duration.Seconds())
}

// RecordWindowDispatched increments the dispatched window counter
func (c *Metrics) RecordWindowDispatched(appender string) {
	c.WindowsDispatched.WithLabelValues(appender).Inc()
}

// RecordWindowDropped increments the dropped window counter
func (c *Metrics) RecordWindowDropped(appender string) {
	c.WindowsDropped.WithLabelValues(appender).Inc()
}

// RecordReportRow records a persisted summary and updates the last-window gauges
func (c *Metrics) RecordReportRow(appender string, maxMs, minMs int64, mean float64, median int64) {
	c.ReportRows.WithLabelValues(appender).Inc()
	c.LastWindow.WithLabelValues(appender, StatMax).Set(float64(maxMs))
	c.LastWindow.WithLabelValues(appender, StatMin).Set(float64(minMs))
	c.LastWindow.WithLabelValues(appender, StatMean).Set(mean)
	c.LastWindow.WithLabelValues(appender, StatMedian).Set(float64(median))
}

// RecordReportError increments the report error counter for an error class
func (c *Metrics) RecordReportError(appender, class string) {
	c.ReportErrors.WithLabelValues(appender, class).Inc()
}
