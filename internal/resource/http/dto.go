package http

import (
	"time"

	"github.com/nekogravitycat/court-reservation/internal/pkg/request"
	"github.com/nekogravitycat/court-reservation/internal/resource"
)

type ResourceResponse struct {
	ID          string    `json:"id"`
	FacilityID  string    `json:"facility_id"`
	Name        string    `json:"name"`
	OpenHour    int       `json:"open_hour"`
	CloseHour   int       `json:"close_hour"`
	HourlyRate  int64     `json:"hourly_rate"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
}

// ResourceTag is the compact form embedded in other responses.
type ResourceTag struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

func NewResponse(r *resource.Resource) ResourceResponse {
	return ResourceResponse{
		ID:          r.ID,
		FacilityID:  r.FacilityID,
		Name:        r.Name,
		OpenHour:    r.OpenHour,
		CloseHour:   r.CloseHour,
		HourlyRate:  r.HourlyRate,
		IsAvailable: r.IsAvailable,
		CreatedAt:   r.CreatedAt,
	}
}

// ListResourcesRequest defines query parameters for listing courts.
type ListResourcesRequest struct {
	request.ListParams
	FacilityID    string `form:"facility_id" binding:"omitempty,uuid"`
	AvailableOnly bool   `form:"available_only"`
}
