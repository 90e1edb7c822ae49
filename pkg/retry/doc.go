// Package retry retries transient failures with exponential backoff.
//
// Whether an error is worth another attempt is decided by the classified
// errors package: transient and unclassified errors are retried, fatal and
// invalid ones end the loop at once.
//
//	nc, err := retry.DoWithResult(ctx, retry.Startup(), func() (*nats.Conn, error) {
//	    return nats.Connect(url)
//	})
//
// Presets:
//
//   - DefaultConfig(): 3 attempts, 100ms-5s
//   - Startup(): 10 attempts, 50ms-1s, for connecting to dependencies
//   - Publish(): 3 attempts, 20ms-200ms, for the report worker
//
// Backoff stops as soon as the context is cancelled.
package retry
