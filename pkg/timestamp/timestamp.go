// Package timestamp provides the clock and timestamp helpers used by the latency
// pipeline.
//
// Durations are measured in whole milliseconds, matching the resolution the
// report has always used. Timestamps cross package boundaries either as
// time.Time or as int64 milliseconds since the Unix epoch (UTC).
//
// Zero Value Semantics:
//   - A timestamp value of 0 means "not set"
//   - A zero time.Time renders as an empty string
//
// Usage Examples:
//
//	clock := timestamp.SystemClock{}
//	t1 := clock.Now()
//	doWrite()
//	elapsed := timestamp.Millis(t1, clock.Now())
//
//	row := timestamp.FormatReport(windowStart) // "2024-03-01 10:15:42.007"
package timestamp

import (
	"sync"
	"time"
)

// ReportLayout is the layout of timestamps written to the latency report.
const ReportLayout = "2006-01-02 15:04:05.000"

// Clock supplies wall-clock timestamps for duration measurement.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}

// ManualClock is a Clock that only moves when told to. It is safe for
// concurrent use.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a ManualClock set to start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// ToUnixMs converts a time.Time to Unix milliseconds.
func ToUnixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// Millis returns the whole milliseconds elapsed between start and end.
// A clock that stepped backwards yields 0, never a negative duration.
func Millis(start, end time.Time) int64 {
	ms := end.Sub(start).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}

// FormatReport renders t in ReportLayout using the local time zone.
func FormatReport(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(ReportLayout)
}
