package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock stamps output metadata and decides which Form 861 archive path is
// current. Tests freeze it with SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time from the package clock.
func Now() time.Time {
	return clock.Now()
}

// Timestamp formats the current time for a lastUpdated metadata field.
func Timestamp() string {
	return clock.Now().UTC().Format(time.RFC3339)
}
