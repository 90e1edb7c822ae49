// Package worker provides a single-consumer background dispatcher for ordered work.
//
// # Overview
//
// Dispatcher[T] owns one goroutine and one FIFO queue. Every submitted item is
// handed to the processor function exactly once, one at a time, in the order
// it was submitted. Two consequences follow directly:
//   - Output produced by the processor (for example rows appended to a file)
//     appears in submission order, however long each item takes.
//   - Any resource touched only by the processor has a single writer, so it
//     needs no locking.
//
// # Non-Blocking Submit
//
// Submit appends to an in-memory queue and returns. By default the queue is
// unbounded, so the caller never waits and nothing is dropped while the
// dispatcher is running. WithQueueLimit bounds the queue; once full, Submit
// returns ErrQueueFull and the item is counted as dropped.
//
// # Failure Isolation
//
// A processor error or panic is counted in Stats().Failed and the consumer
// moves on to the next item. Panics are recovered and logged; the goroutine
// is never lost.
//
// # Lifecycle
//
//	d := worker.NewDispatcher(func(ctx context.Context, s Snapshot) error {
//	    return sink.Write(ctx, summarize(s))
//	}, worker.WithName[Snapshot]("latency-writer"))
//
//	if err := d.Start(ctx); err != nil {
//	    return err
//	}
//	_ = d.Submit(snapshot)
//
//	// Stop intake and drain what is queued
//	if err := d.Stop(5 * time.Second); errors.Is(err, worker.ErrStopTimeout) {
//	    // items still queued are lost
//	}
//
// Delivery is best effort. Cancelling the Start context, a Stop timeout, or
// process exit abandons whatever is still queued.
//
// # Observability
//
// Statistics are always tracked with atomics (Stats). Prometheus metrics are
// optional via WithMetricsRegistry:
//
//   - <prefix>_queue_depth
//   - <prefix>_submitted_total
//   - <prefix>_processed_total
//   - <prefix>_failed_total
//   - <prefix>_dropped_total
//   - <prefix>_processing_duration_seconds{status}
package worker
