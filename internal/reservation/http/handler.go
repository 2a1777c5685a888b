package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/court-reservation/internal/auth"
	"github.com/nekogravitycat/court-reservation/internal/pkg/request"
	"github.com/nekogravitycat/court-reservation/internal/pkg/response"
	"github.com/nekogravitycat/court-reservation/internal/reservation"
)

type Handler struct {
	service reservation.Service
}

func NewHandler(service reservation.Service) *Handler {
	return &Handler{service: service}
}

func actorOf(c *gin.Context) reservation.Actor {
	return reservation.Actor{ID: auth.GetUserID(c), IsStaff: auth.IsStaff(c)}
}

func (h *Handler) List(c *gin.Context) {
	var req ListReservationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	// Customers only ever see their own reservations; staff may filter by requester.
	requesterID := auth.GetUserID(c)
	if auth.IsStaff(c) {
		requesterID = req.RequesterID
	}

	filter := reservation.Filter{
		ResourceID:  req.ResourceID,
		RequesterID: requesterID,
		Status:      req.Status,
		StartTime:   req.StartTimeFrom,
		EndTime:     req.StartTimeTo,
		Page:        req.Page,
		PageSize:    req.PageSize,
		SortBy:      req.SortBy,
		SortOrder:   req.SortOrder,
	}

	items, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, response.NewPageResponse(newReservationResponses(items), req.Page, req.PageSize, total))
}

func (h *Handler) Get(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	r, err := h.service.GetByID(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	// Someone else's reservation is reported as missing so ids cannot be enumerated.
	actor := actorOf(c)
	if !actor.IsStaff && r.RequesterID != actor.ID {
		response.Error(c, reservation.ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, NewReservationResponse(r))
}

func (h *Handler) Create(c *gin.Context) {
	var body CreateReservationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	r, err := h.service.Create(c.Request.Context(), reservation.CreateRequest{
		RequesterID:    auth.GetUserID(c),
		ResourceID:     body.ResourceID,
		StartTime:      body.StartTime,
		EndTime:        body.EndTime,
		MemberDiscount: body.MemberDiscount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewReservationResponse(r))
}

func (h *Handler) CreateRecurring(c *gin.Context) {
	var body CreateRecurringRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	rule, err := body.Recurrence.ToRule(body.StartTime.Location())
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.CreateRecurring(c.Request.Context(), reservation.RecurringRequest{
		RequesterID:    auth.GetUserID(c),
		ResourceID:     body.ResourceID,
		StartTime:      body.StartTime,
		DurationHours:  body.DurationHours,
		Rule:           rule,
		MemberDiscount: body.MemberDiscount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusCreated
	if len(result.Created) == 0 {
		status = http.StatusOK
	}
	c.JSON(status, NewRecurringResponse(result))
}

func (h *Handler) Cancel(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	// The body is optional; an empty one decodes to io.EOF.
	var body CancelReservationRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	r, err := h.service.Cancel(c.Request.Context(), uri.ID, reservation.CancelRequest{
		Actor:  actorOf(c),
		Reason: body.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewReservationResponse(r))
}

func (h *Handler) Release(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	r, err := h.service.ReleasePending(c.Request.Context(), uri.ID, actorOf(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewReservationResponse(r))
}

// transition adapts one of the staff status operations to a handler.
func (h *Handler) transition(op func(svc reservation.Service, c *gin.Context, id string) (*reservation.Reservation, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var uri request.ByIDRequest
		if err := c.ShouldBindUri(&uri); err != nil {
			response.BadRequest(c, "invalid request", err)
			return
		}

		r, err := op(h.service, c, uri.ID)
		if err != nil {
			response.Error(c, err)
			return
		}

		c.JSON(http.StatusOK, NewReservationResponse(r))
	}
}

func (h *Handler) Confirm() gin.HandlerFunc {
	return h.transition(func(svc reservation.Service, c *gin.Context, id string) (*reservation.Reservation, error) {
		return svc.Confirm(c.Request.Context(), id)
	})
}

func (h *Handler) Complete() gin.HandlerFunc {
	return h.transition(func(svc reservation.Service, c *gin.Context, id string) (*reservation.Reservation, error) {
		return svc.Complete(c.Request.Context(), id)
	})
}

func (h *Handler) MarkNoShow() gin.HandlerFunc {
	return h.transition(func(svc reservation.Service, c *gin.Context, id string) (*reservation.Reservation, error) {
		return svc.MarkNoShow(c.Request.Context(), id)
	})
}

// ListForResource serves the calendar view of one court for one day.
func (h *Handler) ListForResource(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}
	var q DayRequest
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	day, err := q.Day()
	if err != nil {
		response.BadRequest(c, "invalid date", err)
		return
	}

	items, err := h.service.ListForDate(c.Request.Context(), uri.ID, day)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": newReservationResponses(items)})
}

func (h *Handler) Slots(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}
	var q SlotsRequest
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	day, err := q.Day()
	if err != nil {
		response.BadRequest(c, "invalid date", err)
		return
	}

	slots, err := h.service.AvailableSlots(c.Request.Context(), reservation.SlotQuery{
		ResourceID:         uri.ID,
		Date:               day,
		DurationHours:      q.Duration,
		IncludeUnavailable: q.All,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]SlotResponse, len(slots))
	for i, s := range slots {
		out[i] = SlotResponse{StartTime: s.StartTime, EndTime: s.EndTime, Available: s.Available}
	}
	c.JSON(http.StatusOK, SlotsResponse{
		ResourceID:    uri.ID,
		Date:          q.Date,
		DurationHours: q.Duration,
		Slots:         out,
	})
}

func (h *Handler) CheckConflicts(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}
	var body ConflictCheckRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	report, err := h.service.CheckConflicts(c.Request.Context(), reservation.ConflictQuery{
		ResourceID: uri.ID,
		StartTime:  body.StartTime,
		EndTime:    body.EndTime,
		ExcludeID:  body.ExcludeID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, ConflictReportResponse{
		HasConflict: report.HasConflict,
		Conflicts:   newReservationResponses(report.Conflicts),
	})
}
