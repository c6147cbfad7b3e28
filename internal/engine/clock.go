package engine

import "time"

// Clock supplies "now" for status derivation of merged records.
//
// Production uses SystemClock; tests pin time with testutil.FixedClock so
// derived statuses are reproducible.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}
