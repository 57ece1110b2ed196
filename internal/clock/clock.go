// Package clock abstracts time so dated backup names are deterministic in tests.
package clock

import "time"

// DateLayout is the day-granularity layout embedded in backup file names.
const DateLayout = "20060102"

// Clock provides an abstraction for time operations to enable deterministic testing.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// RealClock implements Clock using the system time.
type RealClock struct{}

// Now returns the current system time.
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// FakeClock implements Clock with a fixed time for testing.
type FakeClock struct {
	current time.Time
}

// NewFakeClock creates a new FakeClock with the given time.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t}
}

// Now returns the fixed time.
func (c *FakeClock) Now() time.Time {
	return c.current
}

// Set updates the fixed time.
func (c *FakeClock) Set(t time.Time) {
	c.current = t
}

// AdvanceDays moves the fixed time forward by n calendar days.
func (c *FakeClock) AdvanceDays(n int) {
	c.current = c.current.AddDate(0, 0, n)
}

// DateKey formats t as YYYYMMDD in t's own location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDateKey parses a YYYYMMDD key into midnight of that day in loc.
func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	if len(key) != len(DateLayout) {
		return time.Time{}, &time.ParseError{Layout: DateLayout, Value: key, Message: ": wrong length"}
	}
	return time.ParseInLocation(DateLayout, key, loc)
}
