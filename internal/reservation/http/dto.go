package http

import (
	"fmt"
	"time"

	"github.com/nekogravitycat/court-reservation/internal/pkg/request"
	"github.com/nekogravitycat/court-reservation/internal/reservation"
	resHttp "github.com/nekogravitycat/court-reservation/internal/resource/http"
)

// ListReservationsRequest defines query parameters for listing reservations.
type ListReservationsRequest struct {
	request.ListParams
	ResourceID    string     `form:"resource_id" binding:"omitempty,uuid"`
	Status        string     `form:"status" binding:"omitempty,oneof=pending confirmed cancelled completed no_show"`
	RequesterID   string     `form:"requester_id"`
	StartTimeFrom *time.Time `form:"start_time_from" time_format:"2006-01-02T15:04:05Z07:00"`
	StartTimeTo   *time.Time `form:"start_time_to" time_format:"2006-01-02T15:04:05Z07:00"`
	SortBy        string     `form:"sort_by" binding:"omitempty,oneof=start_time end_time created_at status"`
}

// Validate performs custom validation for ListReservationsRequest.
func (r *ListReservationsRequest) Validate() error {
	if r.StartTimeFrom != nil && r.StartTimeTo != nil && r.StartTimeFrom.After(*r.StartTimeTo) {
		return reservation.ErrInvalidTimeRange
	}
	return nil
}

// DayRequest selects one calendar day, read in the optional IANA time zone tz.
type DayRequest struct {
	Date string `form:"date" binding:"required,datetime=2006-01-02"`
	TZ   string `form:"tz"`
}

func (r DayRequest) Day() (time.Time, error) {
	loc := time.UTC
	if r.TZ != "" {
		var err error
		if loc, err = time.LoadLocation(r.TZ); err != nil {
			return time.Time{}, fmt.Errorf("unknown time zone %q", r.TZ)
		}
	}
	return time.ParseInLocation(request.DateLayout, r.Date, loc)
}

type SlotsRequest struct {
	DayRequest
	Duration float64 `form:"duration" binding:"required,gt=0"`
	All      bool    `form:"all"`
}

type CreateReservationRequest struct {
	ResourceID     string    `json:"resource_id" binding:"required,uuid"`
	StartTime      time.Time `json:"start_time" binding:"required"`
	EndTime        time.Time `json:"end_time" binding:"required"`
	MemberDiscount int64     `json:"member_discount" binding:"min=0"`
}

type RecurrenceRuleRequest struct {
	Pattern        string   `json:"pattern" binding:"required,oneof=daily weekly monthly"`
	Interval       int      `json:"interval" binding:"omitempty,min=1"`
	DaysOfWeek     []string `json:"days_of_week"`
	MaxOccurrences int      `json:"max_occurrences" binding:"omitempty,min=1"`
	EndDate        string   `json:"end_date" binding:"omitempty,datetime=2006-01-02"`
}

// ToRule converts the request into a rule. The end date is read in loc.
func (r RecurrenceRuleRequest) ToRule(loc *time.Location) (reservation.RecurrenceRule, error) {
	rule := reservation.RecurrenceRule{
		Pattern:        reservation.Pattern(r.Pattern),
		Interval:       r.Interval,
		MaxOccurrences: r.MaxOccurrences,
	}
	for _, name := range r.DaysOfWeek {
		wd, err := reservation.ParseWeekday(name)
		if err != nil {
			return rule, err
		}
		rule.DaysOfWeek = append(rule.DaysOfWeek, wd)
	}
	if r.EndDate != "" {
		end, err := time.ParseInLocation(request.DateLayout, r.EndDate, loc)
		if err != nil {
			return rule, reservation.ErrInvalidRecurrence.Detailf("bad end_date")
		}
		rule.EndDate = &end
	}
	return rule, nil
}

type CreateRecurringRequest struct {
	ResourceID     string                `json:"resource_id" binding:"required,uuid"`
	StartTime      time.Time             `json:"start_time" binding:"required"`
	DurationHours  float64               `json:"duration_hours" binding:"required,gt=0"`
	MemberDiscount int64                 `json:"member_discount" binding:"min=0"`
	Recurrence     RecurrenceRuleRequest `json:"recurrence"`
}

type CancelReservationRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type ConflictCheckRequest struct {
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required"`
	ExcludeID string    `json:"exclude_id" binding:"omitempty,uuid"`
}

type ReservationResponse struct {
	ID                 string              `json:"id"`
	Resource           resHttp.ResourceTag `json:"resource"`
	RequesterID        string              `json:"requester_id"`
	FacilityID         string              `json:"facility_id"`
	StartTime          time.Time           `json:"start_time"`
	EndTime            time.Time           `json:"end_time"`
	DurationHours      float64             `json:"duration_hours"`
	Status             string              `json:"status"`
	HourlyRate         int64               `json:"hourly_rate"`
	TotalAmount        int64               `json:"total_amount"`
	MemberDiscount     int64               `json:"member_discount"`
	FinalAmount        int64               `json:"final_amount"`
	CancelledAt        *time.Time          `json:"cancelled_at,omitempty"`
	CancelledBy        *string             `json:"cancelled_by,omitempty"`
	CancellationReason *string             `json:"cancellation_reason,omitempty"`
	RefundAmount       *int64              `json:"refund_amount,omitempty"`
	RecurrenceGroupID  *string             `json:"recurrence_group_id,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

func NewReservationResponse(r *reservation.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:                 r.ID,
		Resource:           resHttp.ResourceTag{ID: r.ResourceID, Name: r.ResourceName},
		RequesterID:        r.RequesterID,
		FacilityID:         r.FacilityID,
		StartTime:          r.StartTime,
		EndTime:            r.EndTime,
		DurationHours:      r.DurationHours,
		Status:             string(r.Status),
		HourlyRate:         r.HourlyRate,
		TotalAmount:        r.TotalAmount,
		MemberDiscount:     r.MemberDiscount,
		FinalAmount:        r.FinalAmount,
		CancelledAt:        r.CancelledAt,
		CancelledBy:        r.CancelledBy,
		CancellationReason: r.CancellationReason,
		RefundAmount:       r.RefundAmount,
		RecurrenceGroupID:  r.RecurrenceGroupID,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func newReservationResponses(items []*reservation.Reservation) []ReservationResponse {
	out := make([]ReservationResponse, len(items))
	for i, r := range items {
		out[i] = NewReservationResponse(r)
	}
	return out
}

type SlotResponse struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Available bool      `json:"available"`
}

type SlotsResponse struct {
	ResourceID    string         `json:"resource_id"`
	Date          string         `json:"date"`
	DurationHours float64        `json:"duration_hours"`
	Slots         []SlotResponse `json:"slots"`
}

type OccurrenceConflictResponse struct {
	Date      string    `json:"date"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Reason    string    `json:"reason"`
}

type RecurringResponse struct {
	GroupID   string                       `json:"group_id"`
	Created   []ReservationResponse        `json:"created"`
	Conflicts []OccurrenceConflictResponse `json:"conflicts"`
}

func NewRecurringResponse(res *reservation.RecurringResult) RecurringResponse {
	conflicts := make([]OccurrenceConflictResponse, len(res.Conflicts))
	for i, c := range res.Conflicts {
		conflicts[i] = OccurrenceConflictResponse{
			Date:      c.StartTime.Format(request.DateLayout),
			StartTime: c.StartTime,
			EndTime:   c.EndTime,
			Reason:    c.Reason,
		}
	}
	return RecurringResponse{
		GroupID:   res.GroupID,
		Created:   newReservationResponses(res.Created),
		Conflicts: conflicts,
	}
}

type ConflictReportResponse struct {
	HasConflict bool                  `json:"has_conflict"`
	Conflicts   []ReservationResponse `json:"conflicts"`
}
