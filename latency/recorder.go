package latency

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/eventlatency/errors"
	"github.com/c360/eventlatency/metric"
	"github.com/c360/eventlatency/pkg/timestamp"
	"github.com/c360/eventlatency/pkg/worker"
)

// Sink persists one window summary. Recorder calls it from a single goroutine
// only, in window order.
type Sink interface {
	Write(ctx context.Context, s Summary) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, s Summary) error

// Write calls f.
func (f SinkFunc) Write(ctx context.Context, s Summary) error {
	return f(ctx, s)
}

// Config configures a Recorder.
type Config struct {
	// Name labels logs and metrics, normally the appender name.
	Name string
	// WindowSize is the number of writes per summary. Zero means DefaultWindowSize.
	WindowSize int
	// QueueLimit bounds the number of windows waiting for the sink. Zero is unbounded.
	QueueLimit int

	Sink    Sink
	Clock   timestamp.Clock
	Logger  *slog.Logger
	Metrics *metric.MetricsRegistry
}

// Stats is a point-in-time view of a Recorder.
type Stats struct {
	Recorded     int64        `json:"recorded"`
	Buffered     int          `json:"buffered"`
	Dispatched   int64        `json:"dispatched"`
	Dropped      int64        `json:"dropped"`
	Rows         int64        `json:"rows"`
	ReportErrors int64        `json:"report_errors"`
	Worker       worker.Stats `json:"worker"`
}

// Recorder times units of work, groups their durations into windows and hands
// every full window to a background worker that summarises and persists it.
type Recorder struct {
	name    string
	clock   timestamp.Clock
	sink    Sink
	logger  *slog.Logger
	metrics *metric.Metrics

	mu     sync.Mutex
	window *Window

	dispatcher *worker.Dispatcher[Snapshot]

	recorded     int64
	dispatched   int64
	dropped      int64
	rows         int64
	reportErrors int64
}

// NewRecorder validates cfg and builds a Recorder. Call Start before Record.
func NewRecorder(cfg Config) (*Recorder, error) {
	if cfg.Sink == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Recorder", "NewRecorder", "sink is required")
	}
	if cfg.WindowSize < 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Recorder", "NewRecorder",
			"window size cannot be negative")
	}
	if cfg.QueueLimit < 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Recorder", "NewRecorder",
			"queue limit cannot be negative")
	}

	if cfg.Name == "" {
		cfg.Name = "latency"
	}
	if cfg.Clock == nil {
		cfg.Clock = timestamp.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := &Recorder{
		name:   cfg.Name,
		clock:  cfg.Clock,
		sink:   cfg.Sink,
		logger: cfg.Logger,
		window: NewWindow(cfg.WindowSize),
	}

	opts := []worker.Option[Snapshot]{
		worker.WithName[Snapshot](cfg.Name + "-latency-writer"),
		worker.WithLogger[Snapshot](cfg.Logger),
		worker.WithQueueLimit[Snapshot](cfg.QueueLimit),
	}
	if cfg.Metrics != nil {
		r.metrics = cfg.Metrics.CoreMetrics()
		opts = append(opts, worker.WithMetricsRegistry[Snapshot](cfg.Metrics,
			"eventlatency_"+metricSafe(cfg.Name)+"_dispatcher"))
	}
	r.dispatcher = worker.NewDispatcher(r.persist, opts...)

	return r, nil
}

// Start launches the background worker.
func (r *Recorder) Start(ctx context.Context) error {
	if err := r.dispatcher.Start(ctx); err != nil {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Recorder", "Start", "start dispatcher")
	}
	r.logger.Debug("Latency recorder started",
		"component", r.name,
		"window_size", r.window.Size())
	return nil
}

// Stop refuses further windows and waits up to timeout for queued windows to
// be persisted. The partial window in progress is discarded.
func (r *Recorder) Stop(timeout time.Duration) error {
	r.mu.Lock()
	buffered := r.window.Len()
	r.mu.Unlock()

	err := r.dispatcher.Stop(timeout)
	if err != nil {
		r.logger.Warn("Latency recorder stopped before draining",
			"component", r.name,
			"pending", r.dispatcher.Pending(),
			"error", err)
		return errors.WrapTransient(err, "Recorder", "Stop", "drain dispatcher")
	}

	r.logger.Debug("Latency recorder stopped",
		"component", r.name,
		"discarded_durations", buffered)
	return nil
}

// Record runs fn and records how long it took. The error from fn is returned
// unchanged and a panic in fn propagates after the duration is recorded.
func (r *Recorder) Record(fn func() error) (err error) {
	t1 := r.clock.Now()
	defer func() {
		if p := recover(); p != nil {
			r.observe(t1, r.clock.Now(), fmt.Errorf("write panicked: %v", p))
			panic(p)
		}
		r.observe(t1, r.clock.Now(), err)
	}()
	return fn()
}

func (r *Recorder) observe(t1, t2 time.Time, err error) {
	ms := timestamp.Millis(t1, t2)
	atomic.AddInt64(&r.recorded, 1)
	if r.metrics != nil {
		r.metrics.RecordWrite(r.name, t2.Sub(t1), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.window.Add(ms, t2) {
		return
	}

	snapshot := r.window.Snapshot(r.clock.Now())
	r.window.Reset()

	// Submitting under mu keeps windows in order across concurrent writers.
	if subErr := r.dispatcher.Submit(snapshot); subErr != nil {
		atomic.AddInt64(&r.dropped, 1)
		if r.metrics != nil {
			r.metrics.RecordWindowDropped(r.name)
		}
		r.logger.Warn("Latency window dropped",
			"component", r.name,
			"window_start", timestamp.FormatReport(snapshot.Start),
			"durations", len(snapshot.Durations),
			"error", subErr)
		return
	}

	atomic.AddInt64(&r.dispatched, 1)
	if r.metrics != nil {
		r.metrics.RecordWindowDispatched(r.name)
	}
}

// persist runs on the dispatcher goroutine.
func (r *Recorder) persist(ctx context.Context, snapshot Snapshot) error {
	summary, err := Summarize(snapshot)
	if err == nil {
		err = r.sink.Write(ctx, summary)
	}

	if err != nil {
		class := errors.Classify(err)
		atomic.AddInt64(&r.reportErrors, 1)
		if r.metrics != nil {
			r.metrics.RecordReportError(r.name, class.String())
		}
		r.logger.Error("Failed to persist latency window",
			"component", r.name,
			"window_start", timestamp.FormatReport(snapshot.Start),
			"class", class.String(),
			"error", err)
		return err
	}

	atomic.AddInt64(&r.rows, 1)
	if r.metrics != nil {
		r.metrics.RecordReportRow(r.name, summary.Max, summary.Min, summary.Mean, summary.Median)
	}
	r.logger.Debug("Latency window persisted",
		"component", r.name,
		"window_start", timestamp.FormatReport(summary.WindowStart),
		"max_ms", summary.Max,
		"min_ms", summary.Min,
		"mean_ms", summary.Mean,
		"median_ms", summary.Median)
	return nil
}

// Buffered returns the number of durations in the window being filled.
func (r *Recorder) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.window.Len()
}

// Pending returns the number of full windows not yet persisted.
func (r *Recorder) Pending() int {
	return r.dispatcher.Pending()
}

// WindowSize returns the configured window capacity.
func (r *Recorder) WindowSize() int {
	return r.window.Size()
}

// Stats returns current recorder statistics
func (r *Recorder) Stats() Stats {
	return Stats{
		Recorded:     atomic.LoadInt64(&r.recorded),
		Buffered:     r.Buffered(),
		Dispatched:   atomic.LoadInt64(&r.dispatched),
		Dropped:      atomic.LoadInt64(&r.dropped),
		Rows:         atomic.LoadInt64(&r.rows),
		ReportErrors: atomic.LoadInt64(&r.reportErrors),
		Worker:       r.dispatcher.Stats(),
	}
}

// metricSafe maps a free-form name onto the Prometheus metric name charset.
func metricSafe(name string) string {
	out := []byte(name)
	for i, c := range out {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
