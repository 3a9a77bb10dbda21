// Package util contains misc internal utilities.
package util

import (
	"strconv"
	"strings"
	"time"
)

// TickPeriod is the resolution of the digitizer's trigger delay and
// trigger timeout counters
const TickPeriod = 10 * time.Microsecond

// IntSliceToCSV convets a slice of ints to CSV formatted data.
// e.g., []int{1,2,3,4,5} => "1,2,3,4,5"
func IntSliceToCSV(is []int) string {
	s := make([]string, len(is))
	for i, v := range is {
		s[i] = strconv.Itoa(v)
	}

	return strings.Join(s, ",")
}

// SecsToDuration converts a floating point number of seconds to a time.Duration
func SecsToDuration(secs float64) time.Duration {
	return time.Duration(secs * 1e9)
}

// DurationToTicks converts a duration to a count of TickPeriod,
// truncating toward zero.  Negative durations are zero ticks.
func DurationToTicks(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	return uint32(d / TickPeriod)
}

// DurationToMillis converts a duration to whole milliseconds for C APIs that
// take a uint32 timeout
func DurationToMillis(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	return uint32(d / time.Millisecond)
}
