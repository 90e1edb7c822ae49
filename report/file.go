package report

import (
	"bufio"
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/c360/eventlatency/errors"
	"github.com/c360/eventlatency/latency"
)

// FileSink appends one row per summary to a pipe-delimited report file.
//
// The file and its parent directories are created on the first write, and the
// header is written only by the call that created the file. Each Write opens,
// appends, flushes and closes, so the file can be moved or removed between
// windows. FileSink does no locking; it expects a single writer goroutine.
type FileSink struct {
	path   string
	logger *slog.Logger

	rows     int64
	errors   int64
	lastErr  atomic.Value
	headered int64

	// writerFor wraps the opened file; tests swap it to inject write failures
	writerFor func(*os.File) io.Writer
}

// NewFileSink creates a sink for the report at path.
func NewFileSink(path string, logger *slog.Logger) (*FileSink, error) {
	if path == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "FileSink", "NewFileSink", "report path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSink{
		path:      filepath.Clean(path),
		logger:    logger,
		writerFor: func(f *os.File) io.Writer { return f },
	}, nil
}

// Path returns the report file path.
func (s *FileSink) Path() string {
	return s.path
}

// Write appends the row for summary, creating the file with its header first
// when it does not exist.
func (s *FileSink) Write(ctx context.Context, summary latency.Summary) error {
	if err := ctx.Err(); err != nil {
		return s.fail(errors.WrapTransient(err, "FileSink", "Write", "check context"))
	}

	f, created, err := s.open()
	if err != nil {
		return s.fail(err)
	}

	w := bufio.NewWriter(s.writerFor(f))
	if created {
		_, _ = w.WriteString(Header + "\n")
	}
	_, _ = w.WriteString(FormatRow(summary) + "\n")

	if err := w.Flush(); err != nil {
		_ = f.Close()
		s.discard(created)
		return s.fail(errors.WrapIO(err, "FileSink", "Write", "append row to "+s.path))
	}
	if err := f.Close(); err != nil {
		s.discard(created)
		return s.fail(errors.WrapIO(err, "FileSink", "Write", "close "+s.path))
	}

	if created {
		atomic.AddInt64(&s.headered, 1)
		s.logger.Info("Created latency report",
			"component", "report",
			"path", s.path)
	}
	atomic.AddInt64(&s.rows, 1)
	return nil
}

// open creates the report exclusively when absent, otherwise opens it for
// append. The bool result reports whether this call created the file.
func (s *FileSink) open() (*os.File, bool, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return nil, false, errors.WrapIO(err, "FileSink", "Write", "create report directory")
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err == nil {
		return f, true, nil
	}
	if !stderrors.Is(err, fs.ErrExist) {
		return nil, false, errors.WrapIO(err, "FileSink", "Write", "create report file")
	}

	f, err = os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, false, errors.WrapIO(err, "FileSink", "Write", "open report file")
	}
	return f, false, nil
}

// discard removes a report this call created but could not complete, so the
// next window creates it again with its header.
func (s *FileSink) discard(created bool) {
	if !created {
		return
	}
	if err := os.Remove(s.path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("Failed to remove incomplete latency report",
			"component", "report",
			"path", s.path,
			"error", err)
	}
}

func (s *FileSink) fail(err error) error {
	atomic.AddInt64(&s.errors, 1)
	s.lastErr.Store(err.Error())
	return err
}

// FileStats describes the sink's activity since construction
type FileStats struct {
	Path      string `json:"path"`
	Rows      int64  `json:"rows"`
	Errors    int64  `json:"errors"`
	Created   bool   `json:"created"`
	LastError string `json:"last_error,omitempty"`
}

// Stats returns current sink statistics
func (s *FileSink) Stats() FileStats {
	stats := FileStats{
		Path:    s.path,
		Rows:    atomic.LoadInt64(&s.rows),
		Errors:  atomic.LoadInt64(&s.errors),
		Created: atomic.LoadInt64(&s.headered) > 0,
	}
	if v, ok := s.lastErr.Load().(string); ok {
		stats.LastError = v
	}
	return stats
}
