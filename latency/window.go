package latency

import "time"

// DefaultWindowSize is the number of durations collected per window when no
// size is configured.
const DefaultWindowSize = 100

// Snapshot is an immutable copy of a full window. Once handed to the dispatch
// worker nothing else holds a reference to Durations.
type Snapshot struct {
	Durations []int64
	Start     time.Time
	End       time.Time
}

// Window accumulates write durations in milliseconds until it holds size
// entries. It is not safe for concurrent use; Recorder guards it.
type Window struct {
	size      int
	durations []int64
	start     time.Time
}

// NewWindow returns an empty window with the given capacity.
// A size below 1 falls back to DefaultWindowSize.
func NewWindow(size int) *Window {
	if size < 1 {
		size = DefaultWindowSize
	}
	return &Window{
		size:      size,
		durations: make([]int64, 0, size),
	}
}

// Add appends a duration and reports whether the window is now full. The first
// duration of a cycle stamps the window start with at.
func (w *Window) Add(ms int64, at time.Time) bool {
	if len(w.durations) == 0 {
		w.start = at
	}
	w.durations = append(w.durations, ms)
	return len(w.durations) >= w.size
}

// Snapshot copies the current contents, closing the window at end.
func (w *Window) Snapshot(end time.Time) Snapshot {
	durations := make([]int64, len(w.durations))
	copy(durations, w.durations)
	return Snapshot{
		Durations: durations,
		Start:     w.start,
		End:       end,
	}
}

// Reset empties the window, keeping its backing array.
func (w *Window) Reset() {
	w.durations = w.durations[:0]
	w.start = time.Time{}
}

// Len returns the number of buffered durations.
func (w *Window) Len() int {
	return len(w.durations)
}

// Size returns the window capacity.
func (w *Window) Size() int {
	return w.size
}

// Start returns the start of the current cycle, or the zero time when empty.
func (w *Window) Start() time.Time {
	return w.start
}
