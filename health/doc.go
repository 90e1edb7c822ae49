// Package health describes whether an appender and the parts behind it are
// working.
//
// # Health States
//
//   - healthy: running normally
//   - degraded: running, but some latency windows were dropped or could not
//     be persisted
//   - unhealthy: not running, or the log file itself cannot be written
//
// # Building Statuses
//
// Parts report a raw Check which FromCheck turns into a Status. Error text is
// sanitized on the way so report paths, broker URLs and credentials do not
// leak through a health endpoint:
//
//	status := health.FromCheck("report", health.Check{
//	    Running:    true,
//	    Degraded:   stats.Errors > 0,
//	    LastError:  stats.LastError,
//	    ErrorCount: int(stats.Errors),
//	})
//
// Aggregate rolls several statuses into one. Any unhealthy part makes the
// result unhealthy; otherwise any degraded part makes it degraded.
//
// # Monitor
//
// Monitor holds named CheckFuncs and evaluates them on demand:
//
//	monitor := health.NewMonitor("eventlatency")
//	monitor.Register("appender", app.Health)
//	monitor.Register("nats", natsCheck)
//
//	status := monitor.Check()
//	if status.IsUnhealthy() {
//	    ...
//	}
package health
