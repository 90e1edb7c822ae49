// Package errors provides standardized error handling for the event latency appender.
//
// # Overview
//
// Errors fall into three classes: Transient (temporary, the next attempt may
// succeed), Invalid (bad input or configuration) and Fatal (unrecoverable for the
// resource involved, e.g. a full disk). The class is carried by ClassifiedError
// and survives wrapping, so callers can use errors.Is and errors.As as usual.
//
// # Error Wrapping Pattern
//
// All wrapping follows the format:
//
//	"Component.Method: action failed: <cause>"
//
// For example:
//
//	if _, err := w.WriteString(row); err != nil {
//	    return errors.WrapIO(err, "FileSink", "Write", "append row")
//	}
//
// WrapIO picks the class from the underlying filesystem error: ENOSPC and
// permission failures are fatal, everything else is transient.
//
// # Where Errors Surface
//
// Delegate write errors from the log file are returned to the caller of
// Appender.Write unchanged. Errors raised while summarising or persisting a
// latency window never reach the caller; the dispatch worker logs them with
// their class and moves on to the next window.
package errors
