package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nekogravitycat/court-reservation/internal/interval"
	"github.com/nekogravitycat/court-reservation/internal/resource"
)

func federationCourt() *resource.Resource {
	return &resource.Resource{
		ID:          "court-1",
		OpenHour:    resource.DefaultOpenHour,
		CloseHour:   resource.DefaultCloseHour,
		HourlyRate:  4000,
		IsAvailable: true,
	}
}

func slotStarts(slots []AvailableSlot) []int {
	out := make([]int, len(slots))
	for i, s := range slots {
		out[i] = s.StartTime.Hour()
	}
	return out
}

func TestGenerateSlots_ExcludesBookedWindow(t *testing.T) {
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	now := day.Add(-24 * time.Hour)
	busy := []interval.Interval{{Start: day.Add(10 * time.Hour), End: day.Add(12 * time.Hour)}}

	slots := FilterAvailable(GenerateSlots(federationCourt(), day, 2, busy, now))

	assert.Equal(t, []int{6, 7, 8, 12, 13, 14, 15, 16, 17, 18, 19, 20}, slotStarts(slots))
	for _, s := range slots {
		assert.Equal(t, 2*time.Hour, s.EndTime.Sub(s.StartTime))
		assert.True(t, s.Available)
	}
}

func TestGenerateSlots_FullGridFlagsUnavailable(t *testing.T) {
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	now := day.Add(-time.Hour)
	busy := []interval.Interval{{Start: day.Add(10 * time.Hour), End: day.Add(12 * time.Hour)}}

	slots := GenerateSlots(federationCourt(), day, 2, busy, now)

	assert.Len(t, slots, 15) // 06:00 .. 20:00
	unavailable := map[int]bool{}
	for _, s := range slots {
		if !s.Available {
			unavailable[s.StartTime.Hour()] = true
		}
	}
	assert.Equal(t, map[int]bool{9: true, 10: true, 11: true}, unavailable)
}

func TestGenerateSlots_FractionalDuration(t *testing.T) {
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	slots := GenerateSlots(federationCourt(), day, 1.5, nil, day.Add(-time.Hour))

	last := slots[len(slots)-1]
	assert.Equal(t, 20, last.StartTime.Hour())
	assert.Equal(t, day.Add(21*time.Hour+30*time.Minute), last.EndTime)
}

func TestGenerateSlots_DurationLongerThanWindow(t *testing.T) {
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	assert.Empty(t, GenerateSlots(federationCourt(), day, 17, nil, day))
	assert.Len(t, GenerateSlots(federationCourt(), day, 16, nil, day.Add(-time.Hour)), 1)
}

func TestGenerateSlots_PastSlotsUnavailable(t *testing.T) {
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	now := day.Add(9*time.Hour + 30*time.Minute)

	slots := FilterAvailable(GenerateSlots(federationCourt(), day, 1, nil, now))

	assert.Equal(t, 10, slots[0].StartTime.Hour())
}

func TestGenerateSlots_TouchingBookingsLeaveGapOpen(t *testing.T) {
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	busy := []interval.Interval{
		{Start: day.Add(6 * time.Hour), End: day.Add(10 * time.Hour)},
		{Start: day.Add(11 * time.Hour), End: day.Add(22 * time.Hour)},
	}

	slots := FilterAvailable(GenerateSlots(federationCourt(), day, 1, busy, day.Add(-time.Hour)))

	assert.Equal(t, []int{10}, slotStarts(slots))
}
