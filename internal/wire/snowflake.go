package wire

import (
	"strconv"
	"time"
)

// snowflakeEpochMillis is the platform's custom epoch for snowflake ids, in
// milliseconds since the Unix epoch.
const snowflakeEpochMillis = 1288834974657

// SnowflakeTime extracts the creation timestamp embedded in a snowflake id.
// It returns false for empty, zero, or non-numeric ids; such ids carry no
// trustworthy timestamp and must not be ordered against real snowflakes.
func SnowflakeTime(id string) (time.Time, bool) {
	if id == "" {
		return time.Time{}, false
	}

	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil || n == 0 {
		return time.Time{}, false
	}

	millis := int64(n>>22) + snowflakeEpochMillis

	return time.UnixMilli(millis), true
}

// CompareSnowflakes orders two ids by their embedded timestamps, returning
// -1, 0, or 1. Ids without a valid timestamp sort before all valid ones, so
// a missing last-read marker always reads as "older than any message".
func CompareSnowflakes(a, b string) int {
	ta, okA := SnowflakeTime(a)
	tb, okB := SnowflakeTime(b)

	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return -1
	case !okB:
		return 1
	}

	return ta.Compare(tb)
}
