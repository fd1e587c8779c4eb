package clock

import "time"

// Clock is an injectable time source. Date-boundary logic (fetch_date
// assignment, retention cutoffs, today/yesterday selection) must go through
// a Clock so it stays deterministic in tests.
type Clock interface {
	Now() time.Time
}

// System is the wall-clock implementation used in production.
type System struct{}

func (System) Now() time.Time {
	return time.Now()
}

// Fixed always returns the same instant. Intended for tests.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time {
	return f.T
}
