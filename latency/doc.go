// Package latency measures the time spent in each write and summarises the
// measurements window by window.
//
// A Recorder wraps each unit of work (normally one delegate file write) with
// two clock readings. The elapsed milliseconds go into a Window. When the
// window holds WindowSize durations it is copied into a Snapshot, handed to a
// single background worker and reset, all without the writer waiting on I/O.
//
// The worker turns each Snapshot into a Summary (max, min, mean, median) with
// Summarize and passes it to a Sink, in the order windows filled up. A failed
// Sink write is logged and counted; later windows are still persisted.
//
//	rec, err := latency.NewRecorder(latency.Config{
//	    Name:       "app",
//	    WindowSize: 100,
//	    Sink:       fileSink,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := rec.Start(ctx); err != nil {
//	    return err
//	}
//	defer rec.Stop(5 * time.Second)
//
//	err = rec.Record(func() error {
//	    _, err := f.Write(record)
//	    return err
//	})
//
// A window that never fills is never summarised; Stop discards it.
package latency
