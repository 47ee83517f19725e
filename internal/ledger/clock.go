package ledger

import "time"

// Clock stamps state transitions. Timestamps are always UTC.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// SystemClock is the wall clock
var SystemClock Clock = systemClock{}
