package reservation

import (
	"time"

	"github.com/nekogravitycat/court-reservation/internal/interval"
	"github.com/nekogravitycat/court-reservation/internal/resource"
)

// OperatingWindow returns the court's opening hours on the calendar day of date,
// in date's location.
func OperatingWindow(res *resource.Resource, date time.Time) interval.Interval {
	y, m, d := date.Date()
	return interval.Interval{
		Start: time.Date(y, m, d, res.OpenHour, 0, 0, 0, date.Location()),
		End:   time.Date(y, m, d, res.CloseHour, 0, 0, 0, date.Location()),
	}
}

// GenerateSlots lays a slot of durationHours at every hour boundary from
// opening time up to the last start that still ends by closing time. A slot is
// available when it starts after now and overlaps none of busy. The result is
// ordered by start time and empty when the duration does not fit the window.
func GenerateSlots(res *resource.Resource, date time.Time, durationHours float64, busy []interval.Interval, now time.Time) []AvailableSlot {
	length := interval.HoursToDuration(durationHours)
	if length <= 0 {
		return nil
	}

	window := OperatingWindow(res, date)
	var slots []AvailableSlot
	for start := window.Start; !start.Add(length).After(window.End); start = start.Add(time.Hour) {
		candidate := interval.Interval{Start: start, End: start.Add(length)}
		slots = append(slots, AvailableSlot{
			StartTime: candidate.Start,
			EndTime:   candidate.End,
			Available: candidate.Start.After(now) && !interval.OverlapsAny(candidate, busy),
		})
	}
	return slots
}

// FilterAvailable keeps only the bookable slots.
func FilterAvailable(slots []AvailableSlot) []AvailableSlot {
	var out []AvailableSlot
	for _, s := range slots {
		if s.Available {
			out = append(out, s)
		}
	}
	return out
}

func intervalsOf(items []*Reservation) []interval.Interval {
	out := make([]interval.Interval, 0, len(items))
	for _, r := range items {
		out = append(out, r.Interval())
	}
	return out
}
