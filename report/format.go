package report

import (
	"strconv"
	"strings"

	"github.com/c360/eventlatency/latency"
	"github.com/c360/eventlatency/pkg/timestamp"
)

// Header is the first line of every report file.
const Header = "LogEventStartTimeStamp|LogEventEndTimeStamp|Maxtime|Mintime|Avgtime|Median"

// Separator delimits report columns. Values are never escaped.
const Separator = "|"

// FormatRow renders a summary as one report line without the trailing newline.
func FormatRow(s latency.Summary) string {
	return strings.Join([]string{
		timestamp.FormatReport(s.WindowStart),
		timestamp.FormatReport(s.WindowEnd),
		strconv.FormatInt(s.Max, 10),
		strconv.FormatInt(s.Min, 10),
		FormatMean(s.Mean),
		strconv.FormatInt(s.Median, 10),
	}, Separator)
}

// FormatMean renders the shortest decimal that round-trips, always with a
// fractional part: 20 becomes "20.0", 20.5 stays "20.5".
func FormatMean(mean float64) string {
	s := strconv.FormatFloat(mean, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
