package worker

import "errors"

// Sentinel errors for dispatcher operations
var (
	// ErrNotStarted indicates the dispatcher hasn't been started yet
	ErrNotStarted = errors.New("dispatcher not started")

	// ErrStopped indicates the dispatcher has been stopped
	ErrStopped = errors.New("dispatcher stopped")

	// ErrAlreadyStarted indicates Start() was called on an already-started dispatcher
	ErrAlreadyStarted = errors.New("dispatcher already started")

	// ErrQueueFull indicates a bounded queue is at capacity
	ErrQueueFull = errors.New("dispatcher queue full")

	// ErrNilProcessor indicates a nil processor function was provided
	ErrNilProcessor = errors.New("processor function cannot be nil")

	// ErrStopTimeout indicates the queue was not drained within the timeout
	ErrStopTimeout = errors.New("timeout waiting for dispatcher to drain")
)
