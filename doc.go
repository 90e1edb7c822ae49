// Package eventlatency measures how long a file log appender takes to write
// each record and reports the distribution per window of writes.
//
// # Architecture
//
// The write path and the reporting path are split by a single background
// worker:
//
//	Appender.Write ──► Recorder.Record ──► Window (W durations)
//	                                          │ full
//	                                          ▼
//	                                   Dispatcher[Snapshot] (FIFO, one goroutine)
//	                                          │
//	                                          ▼
//	                                   Summarize ──► Sink (report file, NATS)
//
// Every write is timed in milliseconds, including writes that fail or panic.
// When W durations have accumulated the window is copied into a Snapshot and
// handed to the dispatcher without blocking the writer. The dispatcher
// computes max, min, mean and median and appends one row to the report:
//
//	LogEventStartTimeStamp|LogEventEndTimeStamp|Maxtime|Mintime|Avgtime|Median
//	2024-03-01 10:15:42.010|2024-03-01 10:15:42.060|30|10|20.0|20
//
// The header is written once, when the report file is created. A partial
// window is never reported.
//
// # Packages
//
//   - appender: io.Writer over a log file with buffering, flush and rollover hooks
//   - latency: windows, snapshots, summaries and the Recorder
//   - report: report row format, FileSink, NATSSink and Multi
//   - pkg/worker: generic single-consumer FIFO Dispatcher
//   - pkg/timestamp: clocks and timestamp formatting
//   - config: YAML configuration with environment overrides
//   - errors: classified errors shared by all packages
//   - metric: Prometheus registry, core metrics and HTTP server
//   - health: component health status and aggregation
//
// # Usage
//
//	cfg := appender.DefaultConfig()
//	cfg.Name = "app"
//	cfg.FileName = "logs/app.log"
//	cfg.ReportPath = "repository/logs/logeventlatency.csv"
//
//	app, err := appender.New(cfg)
//	if err != nil {
//		return err
//	}
//	if err := app.Start(ctx); err != nil {
//		return err
//	}
//	defer app.Stop(5 * time.Second)
//
//	logger := slog.New(slog.NewTextHandler(app, nil))
//	logger.Info("request served", "path", "/")
//
// The cmd/eventlatency command wires the same pieces from a config file and
// can publish summaries to NATS and expose Prometheus metrics.
package eventlatency
