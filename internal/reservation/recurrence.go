package reservation

import (
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/nekogravitycat/court-reservation/internal/interval"
)

type Pattern string

const (
	PatternDaily   Pattern = "daily"
	PatternWeekly  Pattern = "weekly"
	PatternMonthly Pattern = "monthly"
)

const (
	DefaultMaxOccurrences = 10
	// MaxRawCandidates bounds how many candidate dates one expansion may examine,
	// whatever the rule says.
	MaxRawCandidates = 100
)

// RecurrenceRule describes how a booking repeats. It is request input only.
type RecurrenceRule struct {
	Pattern        Pattern
	Interval       int
	DaysOfWeek     []time.Weekday // weekly only
	MaxOccurrences int
	EndDate        *time.Time // inclusive calendar date
}

// Normalize fills defaults and validates the rule.
func (r RecurrenceRule) Normalize() (RecurrenceRule, error) {
	switch r.Pattern {
	case PatternDaily, PatternWeekly, PatternMonthly:
	default:
		return r, ErrInvalidRecurrence.Detailf("unknown pattern %q", r.Pattern)
	}
	if r.Interval == 0 {
		r.Interval = 1
	}
	if r.Interval < 1 {
		return r, ErrInvalidRecurrence.Detailf("interval must be at least 1")
	}
	if r.MaxOccurrences == 0 {
		r.MaxOccurrences = DefaultMaxOccurrences
	}
	if r.MaxOccurrences < 1 {
		return r, ErrInvalidRecurrence.Detailf("max_occurrences must be positive")
	}
	if r.Pattern == PatternWeekly && len(r.DaysOfWeek) == 0 {
		return r, ErrInvalidRecurrence.Detailf("weekly recurrence needs at least one weekday")
	}
	return r, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseWeekday accepts full or three-letter English weekday names in any case.
func ParseWeekday(name string) (time.Weekday, error) {
	wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, ErrInvalidRecurrence.Detailf("unknown weekday %q", name)
	}
	return wd, nil
}

// Expand yields the occurrence intervals of a recurring booking in ascending
// order. Every occurrence keeps the time of day of start and lasts
// durationHours. The sequence is finite: it stops after rule.MaxOccurrences
// occurrences, after rule.EndDate, or once MaxRawCandidates dates have been
// examined. The rule must already be normalized.
func Expand(start time.Time, durationHours float64, rule RecurrenceRule) iter.Seq[interval.Interval] {
	length := interval.HoursToDuration(durationHours)
	limit := min(rule.MaxOccurrences, MaxRawCandidates)

	return func(yield func(interval.Interval) bool) {
		if length <= 0 || limit <= 0 {
			return
		}

		count := 0
		emit := func(at time.Time) bool {
			count++
			return yield(interval.Interval{Start: at, End: at.Add(length)})
		}

		candidates := candidateDates(start, rule)
		for raw := 0; raw < MaxRawCandidates && count < limit; raw++ {
			at, accept := candidates(raw)
			if rule.EndDate != nil && afterDate(at, *rule.EndDate) {
				return
			}
			if accept && !emit(at) {
				return
			}
		}
	}
}

// Occurrences collects Expand into a slice.
func Occurrences(start time.Time, durationHours float64, rule RecurrenceRule) []interval.Interval {
	return slices.Collect(Expand(start, durationHours, rule))
}

// candidateDates returns a function mapping the n-th examined candidate to its
// start time and whether the pattern accepts it. Each candidate is derived from
// start directly so month and week boundaries never accumulate drift.
func candidateDates(start time.Time, rule RecurrenceRule) func(n int) (time.Time, bool) {
	switch rule.Pattern {
	case PatternDaily:
		return func(n int) (time.Time, bool) {
			return start.AddDate(0, 0, n*rule.Interval), true
		}
	case PatternMonthly:
		return func(n int) (time.Time, bool) {
			return addMonthsClamped(start, n*rule.Interval), true
		}
	default:
		// Weekly: scan day by day through each 7-day span, then jump over the
		// skipped weeks of a multi-week interval.
		return func(n int) (time.Time, bool) {
			span, day := n/7, n%7
			at := start.AddDate(0, 0, span*7*rule.Interval+day)
			return at, slices.Contains(rule.DaysOfWeek, at.Weekday())
		}
	}
}

// addMonthsClamped adds months in calendar terms, clamping the day to the last
// day of the target month (Jan 31 + 1 month = Feb 28/29).
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), min(d, lastDay),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// afterDate compares calendar dates, each in its own location.
func afterDate(t, end time.Time) bool {
	ty, tm, td := t.Date()
	ey, em, ed := end.Date()
	return time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC).After(time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC))
}
