// Package appender provides a file log appender that measures how long each
// write takes and reports the latency in windows.
//
// # Overview
//
// Appender is an io.Writer over a log file. Every Write is timed; the
// durations are grouped into windows of WindowSize writes (100 by default).
// When a window fills, its max, min, mean and median are appended as one row
// to the latency report by a single background worker, so the writer never
// waits on report I/O:
//
//	LogEventStartTimeStamp|LogEventEndTimeStamp|Maxtime|Mintime|Avgtime|Median
//	2024-03-01 10:15:42.010|2024-03-01 10:15:42.060|30|10|20.0|20
//
// # Usage
//
//	cfg := appender.DefaultConfig()
//	cfg.Name = "app"
//	cfg.FileName = "/var/log/app/app.log"
//	cfg.ReportPath = "/opt/app/repository/logs/logeventlatency.csv"
//
//	app, err := appender.New(cfg)
//	if err != nil {
//	    return err
//	}
//	if err := app.Start(ctx); err != nil {
//	    return err
//	}
//	defer app.Stop(5 * time.Second)
//
//	logger := slog.New(slog.NewJSONHandler(app, nil))
//	logger.Info("request served", "status", 200)
//
// # File Options
//
//   - Append: keep existing content (default) or truncate on Start
//   - BufferedIO / BufferSize: write through a bufio.Writer (default 8192 bytes)
//   - ImmediateFlush: flush the buffer after every record (default)
//
// Setting BufferSize with BufferedIO disabled is allowed but logged as a warning.
//
// # Rollover
//
// A RolloverChecker, if configured, sees every record just before it is
// written and inside the timed section. Rotation policies are not part of this
// package.
//
// # Failure Behavior
//
// A file write error is returned to the caller unchanged; the duration is
// still recorded. Report failures are logged, counted and surfaced through
// Health and Stats, and never reach the writer. Stop drains full windows to
// the report; the unfinished window is discarded.
package appender
