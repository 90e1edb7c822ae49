package appender

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/c360/eventlatency/errors"
	"github.com/c360/eventlatency/health"
	"github.com/c360/eventlatency/latency"
	"github.com/c360/eventlatency/report"
)

// Appender writes log records to a file and times every write. Durations are
// grouped into windows whose summaries go to a latency report in the
// background. Appender implements io.Writer, so it can sit under any
// slog.Handler; each Write call is one record.
type Appender struct {
	id             string
	name           string
	fileName       string
	append         bool
	bufferedIO     bool
	bufferSize     int
	immediateFlush bool
	rollover       RolloverChecker
	logger         *slog.Logger

	recorder *latency.Recorder
	fileSink *report.FileSink

	// File handling, guarded by mu
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	out    io.Writer

	// Lifecycle management
	lifecycleMu sync.Mutex
	running     atomic.Bool
	closed      atomic.Bool
	startTime   time.Time

	// Metrics
	recordsWritten int64
	bytesWritten   int64
	writeErrors    int64
	lastError      atomic.Value
	lastActivity   atomic.Int64
}

var _ io.Writer = (*Appender)(nil)

// New validates cfg and creates an Appender. Call Start before writing.
func New(cfg Config) (*Appender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if !cfg.BufferedIO && cfg.BufferSize > 0 {
		logger.Warn("Buffer size is set but buffered IO is disabled",
			"component", cfg.Name,
			"buffer_size", cfg.BufferSize)
	}

	a := &Appender{
		id:             uuid.NewString(),
		name:           cfg.Name,
		fileName:       filepath.Clean(cfg.FileName),
		append:         cfg.Append,
		bufferedIO:     cfg.BufferedIO,
		bufferSize:     cfg.BufferSize,
		immediateFlush: cfg.ImmediateFlush,
		rollover:       cfg.Rollover,
		logger:         logger,
	}

	a.fileSink = cfg.ReportFile
	if a.fileSink == nil && cfg.Sink == nil {
		fileSink, err := report.NewFileSink(cfg.ReportPath, logger)
		if err != nil {
			return nil, err
		}
		a.fileSink = fileSink
	}

	var sink latency.Sink = a.fileSink
	if cfg.Sink != nil {
		sink = cfg.Sink
	}

	recorder, err := latency.NewRecorder(latency.Config{
		Name:       cfg.Name,
		WindowSize: cfg.WindowSize,
		QueueLimit: cfg.QueueLimit,
		Sink:       sink,
		Clock:      cfg.Clock,
		Logger:     logger,
		Metrics:    cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	a.recorder = recorder

	return a, nil
}

// Start opens the log file and starts the latency worker
func (a *Appender) Start(ctx context.Context) error {
	a.lifecycleMu.Lock()
	defer a.lifecycleMu.Unlock()

	if a.closed.Load() {
		return errors.WrapFatal(errors.ErrAppenderClosed, "Appender", "Start", "check closed state")
	}
	if a.running.Load() {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Appender", "Start", "check running state")
	}

	if err := os.MkdirAll(filepath.Dir(a.fileName), 0755); err != nil {
		return errors.WrapIO(err, "Appender", "Start", "create log directory")
	}

	flags := os.O_CREATE | os.O_WRONLY
	if a.append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(a.fileName, flags, 0644)
	if err != nil {
		return errors.WrapIO(err, "Appender", "Start", "open log file")
	}

	if err := a.recorder.Start(ctx); err != nil {
		_ = file.Close()
		return err
	}

	a.mu.Lock()
	a.file = file
	a.out = file
	if a.bufferedIO {
		size := a.bufferSize
		if size <= 0 {
			size = DefaultConfig().BufferSize
		}
		a.writer = bufio.NewWriterSize(file, size)
		a.out = a.writer
	}
	a.startTime = time.Now()
	a.mu.Unlock()

	a.running.Store(true)

	a.logger.Info("Appender started",
		"component", a.name,
		"appender_id", a.id,
		"file", a.fileName,
		"append", a.append,
		"buffered_io", a.bufferedIO,
		"immediate_flush", a.immediateFlush,
		"window_size", a.recorder.WindowSize())

	return nil
}

// Write writes one record. The write is timed and its duration recorded
// whether or not it succeeds; the file error, if any, is returned unchanged.
func (a *Appender) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.out == nil {
		if a.closed.Load() {
			return 0, errors.ErrAppenderClosed
		}
		return 0, errors.ErrNotStarted
	}

	var n int
	err := a.recorder.Record(func() error {
		if a.rollover != nil {
			a.rollover.CheckRollover(p)
		}

		var werr error
		n, werr = a.out.Write(p)
		if werr == nil && a.writer != nil && a.immediateFlush {
			werr = a.writer.Flush()
		}
		return werr
	})

	if err != nil {
		atomic.AddInt64(&a.writeErrors, 1)
		a.lastError.Store(err.Error())
		return n, err
	}

	atomic.AddInt64(&a.recordsWritten, 1)
	atomic.AddInt64(&a.bytesWritten, int64(n))
	a.lastActivity.Store(time.Now().UnixNano())
	return n, nil
}

// Flush writes any buffered records to the file
func (a *Appender) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.writer == nil {
		return nil
	}
	if err := a.writer.Flush(); err != nil {
		return errors.WrapIO(err, "Appender", "Flush", "flush log file")
	}
	return nil
}

// Stop refuses further writes, flushes and closes the log file, then waits up
// to timeout for full latency windows to reach the report. The window being
// filled is discarded. Stop is idempotent.
func (a *Appender) Stop(timeout time.Duration) error {
	a.lifecycleMu.Lock()
	defer a.lifecycleMu.Unlock()

	if a.closed.Swap(true) {
		return nil
	}
	if !a.running.Swap(false) {
		return nil
	}

	var fileErr error
	a.mu.Lock()
	if a.writer != nil {
		if err := a.writer.Flush(); err != nil {
			fileErr = errors.WrapIO(err, "Appender", "Stop", "flush log file")
		}
	}
	if err := a.file.Close(); err != nil && fileErr == nil {
		fileErr = errors.WrapIO(err, "Appender", "Stop", "close log file")
	}
	a.file = nil
	a.writer = nil
	a.out = nil
	a.mu.Unlock()

	if fileErr != nil {
		a.logger.Warn("Failed to close log file",
			"component", a.name,
			"file", a.fileName,
			"error", fileErr)
	}

	if err := a.recorder.Stop(timeout); err != nil {
		return err
	}

	a.logger.Info("Appender stopped",
		"component", a.name,
		"appender_id", a.id,
		"records_written", atomic.LoadInt64(&a.recordsWritten),
		"discarded_durations", a.recorder.Buffered())

	return fileErr
}

// ID returns the instance ID assigned at construction
func (a *Appender) ID() string {
	return a.id
}

// Name returns the appender name
func (a *Appender) Name() string {
	return a.name
}

// FileName returns the log file path
func (a *Appender) FileName() string {
	return a.fileName
}

// ReportPath returns the monitored report path, or "" when only a custom sink is used
func (a *Appender) ReportPath() string {
	if a.fileSink == nil {
		return ""
	}
	return a.fileSink.Path()
}

// Pending returns the number of full windows not yet persisted
func (a *Appender) Pending() int {
	return a.recorder.Pending()
}

// Buffered returns the number of durations in the window being filled
func (a *Appender) Buffered() int {
	return a.recorder.Buffered()
}

// Stats represents appender statistics
type Stats struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Running        bool              `json:"running"`
	RecordsWritten int64             `json:"records_written"`
	BytesWritten   int64             `json:"bytes_written"`
	WriteErrors    int64             `json:"write_errors"`
	Latency        latency.Stats     `json:"latency"`
	Report         *report.FileStats `json:"report,omitempty"`
}

// Stats returns current appender statistics
func (a *Appender) Stats() Stats {
	stats := Stats{
		ID:             a.id,
		Name:           a.name,
		Running:        a.running.Load(),
		RecordsWritten: atomic.LoadInt64(&a.recordsWritten),
		BytesWritten:   atomic.LoadInt64(&a.bytesWritten),
		WriteErrors:    atomic.LoadInt64(&a.writeErrors),
		Latency:        a.recorder.Stats(),
	}
	if a.fileSink != nil {
		fs := a.fileSink.Stats()
		stats.Report = &fs
	}
	return stats
}

// Health aggregates the state of the log file, the latency worker and, when
// the default file sink is used, the latency report.
func (a *Appender) Health() health.Status {
	running := a.running.Load()

	a.mu.Lock()
	uptime := time.Duration(0)
	if running {
		uptime = time.Since(a.startTime)
	}
	a.mu.Unlock()

	var lastActivity time.Time
	if ns := a.lastActivity.Load(); ns != 0 {
		lastActivity = time.Unix(0, ns)
	}
	lastErr, _ := a.lastError.Load().(string)
	writeErrors := atomic.LoadInt64(&a.writeErrors)

	subs := []health.Status{
		health.FromCheck("log_file", health.Check{
			Running:        running,
			Degraded:       writeErrors > 0,
			LastError:      lastErr,
			ErrorCount:     int(writeErrors),
			RecordsWritten: atomic.LoadInt64(&a.recordsWritten),
			Uptime:         uptime,
			LastActivity:   lastActivity,
		}),
	}

	ls := a.recorder.Stats()
	worker := health.Check{
		Running:    running,
		Degraded:   ls.Dropped > 0 || ls.ReportErrors > 0,
		ErrorCount: int(ls.Dropped + ls.ReportErrors),
	}
	if worker.Degraded {
		worker.LastError = fmt.Sprintf("%d windows dropped, %d windows failed to persist", ls.Dropped, ls.ReportErrors)
	}
	subs = append(subs, health.FromCheck("latency_worker", worker))

	if a.fileSink != nil {
		fs := a.fileSink.Stats()
		subs = append(subs, health.FromCheck("latency_report", health.Check{
			Running:        running,
			Degraded:       fs.Errors > 0,
			LastError:      fs.LastError,
			ErrorCount:     int(fs.Errors),
			RecordsWritten: fs.Rows,
		}))
	}

	return health.Aggregate(a.name, subs)
}
