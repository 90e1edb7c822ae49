package latency

import (
	"slices"
	"time"

	"github.com/c360/eventlatency/errors"
)

// Summary holds the statistics of one window. All durations are milliseconds.
type Summary struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Count       int       `json:"count"`
	Max         int64     `json:"max_ms"`
	Min         int64     `json:"min_ms"`
	Mean        float64   `json:"mean_ms"`
	Median      int64     `json:"median_ms"`
}

// Summarize computes max, min, mean and median over a snapshot. The snapshot
// is left untouched; the median is taken from a sorted copy.
func Summarize(s Snapshot) (Summary, error) {
	if len(s.Durations) == 0 {
		return Summary{}, errors.WrapInvalid(errors.ErrEmptyWindow, "latency", "Summarize", "summarize window")
	}

	sorted := slices.Clone(s.Durations)
	slices.Sort(sorted)

	var sum int64
	for _, d := range sorted {
		sum += d
	}

	return Summary{
		WindowStart: s.Start,
		WindowEnd:   s.End,
		Count:       len(sorted),
		Max:         sorted[len(sorted)-1],
		Min:         sorted[0],
		Mean:        float64(sum) / float64(len(sorted)),
		Median:      median(sorted),
	}, nil
}

// median expects sorted input. Even lengths average the two middle values
// with integer division, so [1,2,3,4] yields 2.
func median(sorted []int64) int64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
