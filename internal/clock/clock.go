package clock

import "time"

// Clock abstracts the time source so expiry checks are testable.
type Clock interface {
	Now() time.Time
}

// Default implements Clock using the system clock.
type Default struct{}

// Now returns the current time in UTC.
func (Default) Now() time.Time {
	return time.Now().UTC()
}

// Fixed is a Clock pinned to a settable instant, for tests.
type Fixed struct {
	T time.Time
}

func (f *Fixed) Now() time.Time { return f.T }

// Advance moves the fixed clock forward.
func (f *Fixed) Advance(d time.Duration) { f.T = f.T.Add(d) }
