package interval

import (
	"errors"
	"time"
)

var ErrNonPositiveDuration = errors.New("interval end must be after start")

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// New returns the interval [start, end). It fails when end is not after start.
func New(start, end time.Time) (Interval, error) {
	if !end.After(start) {
		return Interval{}, ErrNonPositiveDuration
	}
	return Interval{Start: start, End: end}, nil
}

// OfHours returns the interval starting at start that lasts the given number of
// (possibly fractional) hours.
func OfHours(start time.Time, hours float64) (Interval, error) {
	return New(start, start.Add(HoursToDuration(hours)))
}

// Overlaps reports whether the two intervals share any instant.
// Touching intervals (a.End == b.Start) do not overlap.
func (a Interval) Overlaps(b Interval) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

func (a Interval) Duration() time.Duration {
	return a.End.Sub(a.Start)
}

// Hours returns the length of the interval in decimal hours.
func (a Interval) Hours() float64 {
	return a.Duration().Hours()
}

func (a Interval) Valid() bool {
	return a.End.After(a.Start)
}

// HoursToDuration converts decimal hours (1.5 = 90 minutes) to a duration,
// rounded to the nearest second.
func HoursToDuration(hours float64) time.Duration {
	return (time.Duration(hours*float64(time.Hour)) + time.Second/2).Truncate(time.Second)
}

// OverlapsAny reports whether candidate overlaps at least one of busy.
func OverlapsAny(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}
