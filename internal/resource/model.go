package resource

import (
	"time"

	"github.com/nekogravitycat/court-reservation/internal/pkg/apperror"
)

const (
	DefaultOpenHour  = 6
	DefaultCloseHour = 22
)

var (
	ErrNotFound = apperror.New(apperror.KindNotFound, "resource not found")
)

// Resource represents a bookable court owned by a facility.
type Resource struct {
	ID          string
	FacilityID  string
	Name        string
	OpenHour    int   // first bookable hour of the day, 0-23
	CloseHour   int   // hour the court closes, 1-24
	HourlyRate  int64 // minor currency units
	IsAvailable bool
	CreatedAt   time.Time
}

// OperatingHours returns the number of hours the court is open per day.
func (r *Resource) OperatingHours() int {
	return r.CloseHour - r.OpenHour
}

// Filter defines parameters for listing resources.
type Filter struct {
	FacilityID    string
	AvailableOnly bool
	Page          int
	PageSize      int
}
