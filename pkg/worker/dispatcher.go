package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/eventlatency/metric"
)

// Dispatcher runs every submitted item of type T through one processor on one
// goroutine, strictly in submission order.
type Dispatcher[T any] struct {
	// Configuration
	name       string
	queueLimit int
	processor  func(context.Context, T) error
	logger     *slog.Logger

	// Queue state, guarded by mu
	mu       sync.Mutex
	queue    []T
	started  bool
	stopping bool

	notify chan struct{}
	done   chan struct{}

	metrics *Metrics

	// Statistics (atomic)
	submitted int64
	processed int64
	failed    int64
	dropped   int64
	inFlight  int64

	// Metrics configuration
	metricsRegistry *metric.MetricsRegistry
	metricsPrefix   string
}

// Metrics holds Prometheus metrics for dispatcher monitoring
type Metrics struct {
	queueDepth     prometheus.Gauge
	submitted      prometheus.Counter
	processed      prometheus.Counter
	failed         prometheus.Counter
	dropped        prometheus.Counter
	processingTime *prometheus.HistogramVec
}

// Option represents a configuration option for the dispatcher
type Option[T any] func(*Dispatcher[T])

// WithMetricsRegistry registers dispatcher metrics with the given registry under prefix
func WithMetricsRegistry[T any](registry *metric.MetricsRegistry, prefix string) Option[T] {
	return func(d *Dispatcher[T]) {
		d.metricsRegistry = registry
		d.metricsPrefix = prefix
	}
}

// WithQueueLimit bounds the queue. Zero or less leaves it unbounded.
func WithQueueLimit[T any](limit int) Option[T] {
	return func(d *Dispatcher[T]) {
		d.queueLimit = limit
	}
}

// WithLogger sets the logger used for processor panics
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(d *Dispatcher[T]) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithName sets the name reported in log lines
func WithName[T any](name string) Option[T] {
	return func(d *Dispatcher[T]) {
		d.name = name
	}
}

// NewDispatcher creates a dispatcher. It panics if processor is nil.
func NewDispatcher[T any](processor func(context.Context, T) error, opts ...Option[T]) *Dispatcher[T] {
	if processor == nil {
		panic(ErrNilProcessor)
	}

	d := &Dispatcher[T]{
		name:      "dispatcher",
		processor: processor,
		logger:    slog.Default(),
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.metricsRegistry != nil && d.metricsPrefix != "" {
		if err := d.initializeMetrics(); err != nil {
			d.logger.Warn("Dispatcher metrics disabled",
				"component", d.name,
				"error", err)
		}
	}

	return d
}

// initializeMetrics creates and registers metrics with the framework's registry
func (d *Dispatcher[T]) initializeMetrics() error {
	prefix := d.metricsPrefix

	m := &Metrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_queue_depth",
			Help: "Current dispatcher queue depth",
		}),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_submitted_total",
			Help: "Total work items submitted",
		}),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_processed_total",
			Help: "Total work items processed",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_failed_total",
			Help: "Total work items that failed processing",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_dropped_total",
			Help: "Total work items dropped due to a full queue or a cancelled context",
		}),
		processingTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_processing_duration_seconds",
			Help:    "Time spent processing work items",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"status"}),
	}

	serviceName := "dispatcher"
	registrations := []error{
		d.metricsRegistry.RegisterGauge(serviceName, prefix+"_queue_depth", m.queueDepth),
		d.metricsRegistry.RegisterCounter(serviceName, prefix+"_submitted_total", m.submitted),
		d.metricsRegistry.RegisterCounter(serviceName, prefix+"_processed_total", m.processed),
		d.metricsRegistry.RegisterCounter(serviceName, prefix+"_failed_total", m.failed),
		d.metricsRegistry.RegisterCounter(serviceName, prefix+"_dropped_total", m.dropped),
		d.metricsRegistry.RegisterHistogramVec(serviceName, prefix+"_processing_duration_seconds", m.processingTime),
	}
	for _, err := range registrations {
		if err != nil {
			return err
		}
	}

	d.metrics = m
	return nil
}

// Start launches the consumer goroutine. Cancelling ctx abandons queued work
// and makes later submissions fail with ErrStopped.
func (d *Dispatcher[T]) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return ErrAlreadyStarted
	}

	d.started = true
	go d.run(ctx)
	return nil
}

// Submit enqueues work and returns without waiting for it to be processed.
func (d *Dispatcher[T]) Submit(work T) error {
	d.mu.Lock()

	if !d.started {
		d.mu.Unlock()
		return ErrNotStarted
	}
	if d.stopping {
		d.mu.Unlock()
		return ErrStopped
	}
	if d.queueLimit > 0 && len(d.queue) >= d.queueLimit {
		d.mu.Unlock()
		atomic.AddInt64(&d.dropped, 1)
		if d.metrics != nil {
			d.metrics.dropped.Inc()
		}
		return ErrQueueFull
	}

	d.queue = append(d.queue, work)
	if d.metrics != nil {
		d.metrics.queueDepth.Set(float64(len(d.queue)))
	}
	d.mu.Unlock()

	atomic.AddInt64(&d.submitted, 1)
	if d.metrics != nil {
		d.metrics.submitted.Inc()
	}

	d.wake()
	return nil
}

// Stop refuses further submissions and waits up to timeout for the queue to drain.
func (d *Dispatcher[T]) Stop(timeout time.Duration) error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return nil
	}
	d.stopping = true
	d.mu.Unlock()

	d.wake()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-d.done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Pending returns the number of queued and in-flight items
func (d *Dispatcher[T]) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue) + int(atomic.LoadInt64(&d.inFlight))
}

// Stats returns current dispatcher statistics
func (d *Dispatcher[T]) Stats() Stats {
	d.mu.Lock()
	depth := len(d.queue)
	d.mu.Unlock()

	return Stats{
		QueueLimit: d.queueLimit,
		QueueDepth: depth,
		Submitted:  atomic.LoadInt64(&d.submitted),
		Processed:  atomic.LoadInt64(&d.processed),
		Failed:     atomic.LoadInt64(&d.failed),
		Dropped:    atomic.LoadInt64(&d.dropped),
	}
}

// Stats represents dispatcher statistics
type Stats struct {
	QueueLimit int   `json:"queue_limit"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

func (d *Dispatcher[T]) wake() {
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// next pops the oldest item. The second result reports whether one was available,
// the third whether the dispatcher is stopping.
func (d *Dispatcher[T]) next() (T, bool, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var zero T
	if len(d.queue) == 0 {
		d.queue = nil
		if d.metrics != nil {
			d.metrics.queueDepth.Set(0)
		}
		return zero, false, d.stopping
	}

	work := d.queue[0]
	d.queue[0] = zero
	d.queue = d.queue[1:]
	atomic.AddInt64(&d.inFlight, 1)

	if d.metrics != nil {
		d.metrics.queueDepth.Set(float64(len(d.queue)))
	}
	return work, true, d.stopping
}

func (d *Dispatcher[T]) run(ctx context.Context) {
	defer close(d.done)

	for {
		if ctx.Err() != nil {
			d.abandon()
			return
		}

		work, ok, stopping := d.next()
		if ok {
			d.process(ctx, work)
			continue
		}
		if stopping {
			return
		}

		select {
		case <-ctx.Done():
			d.abandon()
			return
		case <-d.notify:
		}
	}
}

// abandon runs once the consumer is gone: later submissions fail with
// ErrStopped and queued items are counted as dropped.
func (d *Dispatcher[T]) abandon() {
	d.mu.Lock()
	d.stopping = true
	n := len(d.queue)
	d.queue = nil
	if d.metrics != nil {
		d.metrics.queueDepth.Set(0)
	}
	d.mu.Unlock()

	if n == 0 {
		return
	}
	atomic.AddInt64(&d.dropped, int64(n))
	if d.metrics != nil {
		d.metrics.dropped.Add(float64(n))
	}
	d.logger.Warn("Dispatcher context ended, queued work dropped",
		"component", d.name,
		"dropped", n)
}

// process runs one item. A panicking processor counts as a failure and does
// not take the consumer goroutine down.
func (d *Dispatcher[T]) process(ctx context.Context, work T) {
	start := time.Now()
	var err error

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
			d.logger.Error("Dispatcher processor panicked",
				"component", d.name,
				"panic", r)
		}

		atomic.AddInt64(&d.inFlight, -1)
		atomic.AddInt64(&d.processed, 1)
		if err != nil {
			atomic.AddInt64(&d.failed, 1)
		}

		if d.metrics != nil {
			d.metrics.processed.Inc()
			status := "success"
			if err != nil {
				d.metrics.failed.Inc()
				status = "error"
			}
			d.metrics.processingTime.WithLabelValues(status).Observe(time.Since(start).Seconds())
		}
	}()

	err = d.processor(ctx, work)
}
