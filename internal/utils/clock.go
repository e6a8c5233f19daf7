package utils

import "time"

// Clock abstracts wall-clock time so the "has the event started" checks
// can be driven deterministically in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
