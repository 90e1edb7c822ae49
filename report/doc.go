// Package report persists latency window summaries.
//
// FileSink appends to the pipe-delimited report file:
//
//	LogEventStartTimeStamp|LogEventEndTimeStamp|Maxtime|Mintime|Avgtime|Median
//	2024-03-01 10:15:42.010|2024-03-01 10:15:42.060|30|10|20.0|20
//
// The header is written once, by the write that creates the file. Timestamps
// use local time with millisecond precision. The mean always carries a
// fractional part.
//
// NATSSink publishes the same summary as a JSON Event so other services can
// follow latency without tailing the file. Multi fans a summary out to several
// sinks:
//
//	sink := report.Multi{fileSink, natsSink}
package report
