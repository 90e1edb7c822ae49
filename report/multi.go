package report

import (
	"context"
	stderrors "errors"

	"github.com/c360/eventlatency/latency"
)

// Multi writes each summary to every sink in order. A failing sink does not
// stop the others; their errors are joined.
type Multi []latency.Sink

// Write implements latency.Sink.
func (m Multi) Write(ctx context.Context, summary latency.Summary) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Write(ctx, summary); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
