package utils

import "time"

// CurrentTimeMs returns the current wall clock as Unix milliseconds.
func CurrentTimeMs() int64 {
	return time.Now().UnixMilli()
}
