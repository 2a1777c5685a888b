package reservation

import (
	"time"

	"github.com/nekogravitycat/court-reservation/internal/interval"
	"github.com/nekogravitycat/court-reservation/internal/pkg/apperror"
)

var (
	ErrNotFound            = apperror.New(apperror.KindNotFound, "reservation not found")
	ErrResourceNotFound    = apperror.New(apperror.KindNotFound, "resource not found")
	ErrResourceUnavailable = apperror.New(apperror.KindConflict, "resource is not available for booking")
	ErrTimeConflict        = apperror.New(apperror.KindConflict, "time slot overlaps an existing reservation")
	ErrInvalidTimeRange    = apperror.New(apperror.KindInvalidInterval, "end time must be after start time")
	ErrStartTimePast       = apperror.New(apperror.KindInvalidInterval, "start time must be in the future")
	ErrInvalidDuration     = apperror.New(apperror.KindInvalidInterval, "duration must be positive")
	ErrNotCancellable      = apperror.New(apperror.KindInvalidState, "only confirmed reservations can be cancelled")
	ErrInvalidTransition   = apperror.New(apperror.KindInvalidState, "status transition not allowed")
	ErrNotElapsed          = apperror.New(apperror.KindInvalidState, "reservation has not reached the required time yet")
	ErrCancellationWindow  = apperror.New(apperror.KindPolicyViolation, "reservations cannot be cancelled less than 24 hours before start")
	ErrInvalidDiscount     = apperror.New(apperror.KindInvalidInput, "member discount must be between 0 and the total amount")
	ErrInvalidRecurrence   = apperror.New(apperror.KindInvalidInput, "invalid recurrence rule")
	ErrPermissionDenied    = apperror.New(apperror.KindForbidden, "permission denied")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// ActiveStatuses are the statuses that occupy a court. Pending holds block
// availability the same way confirmed bookings do.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed}

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted, StatusNoShow},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is permitted from s.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

// IsActive reports whether a reservation in status s blocks its interval.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Reservation is a booking of one court for a half-open interval.
type Reservation struct {
	ID                 string
	ResourceID         string
	ResourceName       string
	RequesterID        string
	FacilityID         string
	StartTime          time.Time
	EndTime            time.Time
	DurationHours      float64
	Status             Status
	HourlyRate         int64
	TotalAmount        int64
	MemberDiscount     int64
	FinalAmount        int64
	CancelledAt        *time.Time
	CancelledBy        *string
	CancellationReason *string
	RefundAmount       *int64
	RecurrenceGroupID  *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (r *Reservation) Interval() interval.Interval {
	return interval.Interval{Start: r.StartTime, End: r.EndTime}
}

// AvailableSlot is a candidate interval offered for selection. It is never stored.
type AvailableSlot struct {
	StartTime time.Time
	EndTime   time.Time
	Available bool
}

type Filter struct {
	ResourceID  string
	RequesterID string
	Status      string
	StartTime   *time.Time // reservations ending after this time
	EndTime     *time.Time // reservations starting before this time
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}

// WindowQuery selects the reservations of one court that overlap Window.
type WindowQuery struct {
	ResourceID string
	Window     interval.Interval
	ActiveOnly bool
	ExcludeID  string
}
