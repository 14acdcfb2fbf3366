// Package benchmark times synthesis branches, scores them and reports the
// results of a run.
package benchmark

import (
	"errors"
	"time"
)

// ErrClockUnavailable is returned by a Clock that cannot be read.
var ErrClockUnavailable = errors.New("clock unavailable")

// Clock supplies monotonic timestamps.
type Clock interface {
	Now() (time.Time, error)
}

// SystemClock reads time.Now, which carries a monotonic reading.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() (time.Time, error) {
	return time.Now(), nil
}
