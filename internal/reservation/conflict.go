package reservation

import (
	"github.com/nekogravitycat/court-reservation/internal/interval"
)

// HasConflict reports whether candidate overlaps an active reservation in
// existing. The reservation with id excludeID is skipped.
func HasConflict(candidate interval.Interval, existing []*Reservation, excludeID string) bool {
	for _, r := range existing {
		if blocks(r, candidate, excludeID) {
			return true
		}
	}
	return false
}

// Conflicting returns the active reservations in existing that overlap candidate.
func Conflicting(candidate interval.Interval, existing []*Reservation, excludeID string) []*Reservation {
	var out []*Reservation
	for _, r := range existing {
		if blocks(r, candidate, excludeID) {
			out = append(out, r)
		}
	}
	return out
}

func blocks(r *Reservation, candidate interval.Interval, excludeID string) bool {
	if excludeID != "" && r.ID == excludeID {
		return false
	}
	return r.Status.IsActive() && r.Interval().Overlaps(candidate)
}
