package adapter

import "time"

// Clock is the time source of the reward engines
//
//go:generate mockgen -source=clock.go -destination=../mocks/clock.go -package=mocks -mock_names=Clock=MockClock
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock
type RealClock struct{}

// NewClock creates a clock backed by the system time
func NewClock() Clock {
	return &RealClock{}
}

func (c *RealClock) Now() time.Time {
	return time.Now()
}

// Timestamp returns the current time in UTC at the microsecond precision of PostgreSQL timestamptz,
// so values read back from the store compare equal to the ones written.
func Timestamp(c Clock) time.Time {
	return c.Now().UTC().Truncate(time.Microsecond)
}
