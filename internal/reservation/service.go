package reservation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nekogravitycat/court-reservation/internal/interval"
	"github.com/nekogravitycat/court-reservation/internal/payment"
	"github.com/nekogravitycat/court-reservation/internal/pkg/clock"
	"github.com/nekogravitycat/court-reservation/internal/resource"
)

var tracer = otel.Tracer("github.com/nekogravitycat/court-reservation/internal/reservation")

// notifyTimeout bounds a payment signal sent after a write has committed.
const notifyTimeout = 5 * time.Second

// Actor is the caller of a state-changing operation.
type Actor struct {
	ID      string
	IsStaff bool
}

type CreateRequest struct {
	RequesterID    string
	ResourceID     string
	StartTime      time.Time
	EndTime        time.Time
	MemberDiscount int64
}

type RecurringRequest struct {
	RequesterID    string
	ResourceID     string
	StartTime      time.Time
	DurationHours  float64
	Rule           RecurrenceRule
	MemberDiscount int64
}

// OccurrenceConflict is one occurrence of a recurring request that was not booked.
type OccurrenceConflict struct {
	StartTime time.Time
	EndTime   time.Time
	Reason    string
}

type RecurringResult struct {
	GroupID   string
	Created   []*Reservation
	Conflicts []OccurrenceConflict
}

type CancelRequest struct {
	Actor  Actor
	Reason string
}

type SlotQuery struct {
	ResourceID    string
	Date          time.Time // calendar day, in the location slots are laid out in
	DurationHours float64
	// IncludeUnavailable keeps taken and past slots, flagged Available=false.
	IncludeUnavailable bool
}

type ConflictQuery struct {
	ResourceID string
	StartTime  time.Time
	EndTime    time.Time
	ExcludeID  string
}

type ConflictReport struct {
	HasConflict bool
	Conflicts   []*Reservation
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Reservation, error)
	CreateRecurring(ctx context.Context, req RecurringRequest) (*RecurringResult, error)
	Cancel(ctx context.Context, id string, req CancelRequest) (*Reservation, error)
	ReleasePending(ctx context.Context, id string, actor Actor) (*Reservation, error)
	Confirm(ctx context.Context, id string) (*Reservation, error)
	Complete(ctx context.Context, id string) (*Reservation, error)
	MarkNoShow(ctx context.Context, id string) (*Reservation, error)
	GetByID(ctx context.Context, id string) (*Reservation, error)
	List(ctx context.Context, filter Filter) ([]*Reservation, int, error)
	ListForDate(ctx context.Context, resourceID string, date time.Time) ([]*Reservation, error)
	AvailableSlots(ctx context.Context, q SlotQuery) ([]AvailableSlot, error)
	CheckConflicts(ctx context.Context, q ConflictQuery) (*ConflictReport, error)
}

type ServiceConfig struct {
	Clock  clock.Clock
	Logger *slog.Logger
	// InitialStatus is the status new reservations enter. Defaults to pending.
	InitialStatus Status
}

type service struct {
	repo          Repository
	resService    resource.Service
	notifier      payment.Notifier
	clock         clock.Clock
	logger        *slog.Logger
	initialStatus Status
}

func NewService(repo Repository, resService resource.Service, notifier payment.Notifier, cfg ServiceConfig) Service {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.InitialStatus != StatusConfirmed {
		cfg.InitialStatus = StatusPending
	}
	return &service{
		repo:          repo,
		resService:    resService,
		notifier:      notifier,
		clock:         cfg.Clock,
		logger:        cfg.Logger,
		initialStatus: cfg.InitialStatus,
	}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservation.Create",
		trace.WithAttributes(attribute.String("resource.id", req.ResourceID)))
	defer span.End()

	now := s.clock.Now()

	// 1. Validate Time Range
	if !req.EndTime.After(req.StartTime) {
		return nil, fail(span, ErrInvalidTimeRange)
	}
	if !req.StartTime.After(now) {
		return nil, fail(span, ErrStartTimePast)
	}
	iv := interval.Interval{Start: req.StartTime, End: req.EndTime}

	// 2. Validate Resource
	res, err := s.bookableResource(ctx, req.ResourceID)
	if err != nil {
		return nil, fail(span, err)
	}

	// 3. Price
	price, err := ComputePrice(res.HourlyRate, iv.Hours(), req.MemberDiscount)
	if err != nil {
		return nil, fail(span, err)
	}

	// 4. Check for overlaps and insert under the court lock
	r := s.newReservation(res, req.RequesterID, iv, price, nil)
	if err := s.insert(ctx, r); err != nil {
		return nil, fail(span, err)
	}

	span.SetAttributes(
		attribute.String("reservation.id", r.ID),
		attribute.String("reservation.status", string(r.Status)),
	)
	s.logger.InfoContext(ctx, "reservation created",
		"reservation_id", r.ID,
		"resource_id", r.ResourceID,
		"requester_id", r.RequesterID,
		"start_time", r.StartTime,
		"end_time", r.EndTime,
		"final_amount", r.FinalAmount,
	)
	s.paymentRequired(ctx, r)
	return r, nil
}

func (s *service) CreateRecurring(ctx context.Context, req RecurringRequest) (*RecurringResult, error) {
	ctx, span := tracer.Start(ctx, "reservation.CreateRecurring",
		trace.WithAttributes(
			attribute.String("resource.id", req.ResourceID),
			attribute.String("recurrence.pattern", string(req.Rule.Pattern)),
		))
	defer span.End()

	if req.DurationHours <= 0 {
		return nil, fail(span, ErrInvalidDuration)
	}
	rule, err := req.Rule.Normalize()
	if err != nil {
		return nil, fail(span, err)
	}

	res, err := s.bookableResource(ctx, req.ResourceID)
	if err != nil {
		return nil, fail(span, err)
	}

	price, err := ComputePrice(res.HourlyRate, interval.HoursToDuration(req.DurationHours).Hours(), req.MemberDiscount)
	if err != nil {
		return nil, fail(span, err)
	}

	now := s.clock.Now()
	groupID := uuid.NewString()
	result := &RecurringResult{GroupID: groupID}

	// Occurrences are independent: each one is checked and inserted in its own
	// transaction, and a failed occurrence never undoes the others.
	for iv := range Expand(req.StartTime, req.DurationHours, rule) {
		if !iv.Start.After(now) {
			result.Conflicts = append(result.Conflicts, occurrenceConflict(iv, ErrStartTimePast.Message))
			continue
		}

		r := s.newReservation(res, req.RequesterID, iv, price, &groupID)
		err := s.insert(ctx, r)
		switch {
		case err == nil:
			result.Created = append(result.Created, r)
		case errors.Is(err, ErrTimeConflict):
			result.Conflicts = append(result.Conflicts, occurrenceConflict(iv, ErrTimeConflict.Message))
		default:
			s.logger.ErrorContext(ctx, "recurring occurrence failed",
				"group_id", groupID,
				"resource_id", req.ResourceID,
				"start_time", iv.Start,
				"err", err,
			)
			result.Conflicts = append(result.Conflicts, occurrenceConflict(iv, "reservation could not be saved"))
		}
	}

	s.paymentRequired(ctx, result.Created...)

	span.SetAttributes(
		attribute.Int("recurrence.created", len(result.Created)),
		attribute.Int("recurrence.conflicts", len(result.Conflicts)),
	)
	s.logger.InfoContext(ctx, "recurring reservations created",
		"group_id", groupID,
		"resource_id", req.ResourceID,
		"requester_id", req.RequesterID,
		"created", len(result.Created),
		"conflicts", len(result.Conflicts),
	)
	return result, nil
}

func occurrenceConflict(iv interval.Interval, reason string) OccurrenceConflict {
	return OccurrenceConflict{StartTime: iv.Start, EndTime: iv.End, Reason: reason}
}

func (s *service) Cancel(ctx context.Context, id string, req CancelRequest) (*Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservation.Cancel",
		trace.WithAttributes(attribute.String("reservation.id", id)))
	defer span.End()

	var (
		cancelled *Reservation
		percent   int
	)
	err := s.repo.WithReservation(ctx, id, func(tx Tx, r *Reservation) error {
		if !req.Actor.IsStaff && r.RequesterID != req.Actor.ID {
			return ErrPermissionDenied
		}
		if r.Status != StatusConfirmed {
			return ErrNotCancellable
		}

		now := s.clock.Now()
		untilStart := r.StartTime.Sub(now)
		refund, err := RefundAmount(r.FinalAmount, untilStart)
		if err != nil {
			return err
		}
		percent, _ = RefundPercent(untilStart)

		r.Status = StatusCancelled
		r.CancelledAt = &now
		r.CancelledBy = &req.Actor.ID
		if req.Reason != "" {
			r.CancellationReason = &req.Reason
		}
		r.RefundAmount = &refund

		if err := tx.UpdateStatus(ctx, r, StatusConfirmed); err != nil {
			return err
		}
		cancelled = r
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	span.SetAttributes(attribute.Int64("reservation.refund_amount", *cancelled.RefundAmount))
	s.logger.InfoContext(ctx, "reservation cancelled",
		"reservation_id", cancelled.ID,
		"cancelled_by", req.Actor.ID,
		"refund_amount", *cancelled.RefundAmount,
		"refund_percent", percent,
	)

	notifyCtx, cancel := detach(ctx)
	defer cancel()
	if err := s.notifier.RefundDue(notifyCtx, payment.RefundDue{
		ReservationID: cancelled.ID,
		RequesterID:   cancelled.RequesterID,
		Amount:        *cancelled.RefundAmount,
		Percent:       percent,
		Reason:        req.Reason,
		OccurredAt:    *cancelled.CancelledAt,
	}); err != nil {
		s.logger.ErrorContext(ctx, "refund notification failed", "reservation_id", cancelled.ID, "err", err)
	}
	return cancelled, nil
}

// ReleasePending gives up an unpaid hold. Nothing was charged, so nothing is refunded.
func (s *service) ReleasePending(ctx context.Context, id string, actor Actor) (*Reservation, error) {
	r, err := s.transition(ctx, "reservation.ReleasePending", id, StatusCancelled, func(r *Reservation, now time.Time) error {
		if !actor.IsStaff && r.RequesterID != actor.ID {
			return ErrPermissionDenied
		}
		if r.Status != StatusPending {
			return ErrInvalidTransition
		}
		r.CancelledAt = &now
		r.CancelledBy = &actor.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "pending reservation released", "reservation_id", r.ID, "released_by", actor.ID)
	return r, nil
}

func (s *service) Confirm(ctx context.Context, id string) (*Reservation, error) {
	return s.transition(ctx, "reservation.Confirm", id, StatusConfirmed, nil)
}

// Complete closes a reservation once its interval has ended.
func (s *service) Complete(ctx context.Context, id string) (*Reservation, error) {
	return s.transition(ctx, "reservation.Complete", id, StatusCompleted, func(r *Reservation, now time.Time) error {
		if now.Before(r.EndTime) {
			return ErrNotElapsed
		}
		return nil
	})
}

// MarkNoShow records that the requester did not turn up. Allowed from the start time on.
func (s *service) MarkNoShow(ctx context.Context, id string) (*Reservation, error) {
	return s.transition(ctx, "reservation.MarkNoShow", id, StatusNoShow, func(r *Reservation, now time.Time) error {
		if now.Before(r.StartTime) {
			return ErrNotElapsed
		}
		return nil
	})
}

// transition moves the locked reservation to next. guard runs after the state
// machine check and may fill in fields to persist.
func (s *service) transition(ctx context.Context, op, id string, next Status, guard func(r *Reservation, now time.Time) error) (*Reservation, error) {
	ctx, span := tracer.Start(ctx, op,
		trace.WithAttributes(
			attribute.String("reservation.id", id),
			attribute.String("reservation.next_status", string(next)),
		))
	defer span.End()

	var updated *Reservation
	err := s.repo.WithReservation(ctx, id, func(tx Tx, r *Reservation) error {
		from := r.Status
		if !from.CanTransitionTo(next) {
			return ErrInvalidTransition
		}
		if guard != nil {
			if err := guard(r, s.clock.Now()); err != nil {
				return err
			}
		}
		r.Status = next
		if err := tx.UpdateStatus(ctx, r, from); err != nil {
			return err
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	s.logger.InfoContext(ctx, "reservation status changed", "reservation_id", updated.ID, "status", updated.Status)
	return updated, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Reservation, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Reservation, int, error) {
	return s.repo.List(ctx, filter)
}

// ListForDate returns every reservation of the court that touches the calendar
// day of date, whatever its status, ordered by start time.
func (s *service) ListForDate(ctx context.Context, resourceID string, date time.Time) ([]*Reservation, error) {
	if _, err := s.lookupResource(ctx, resourceID); err != nil {
		return nil, err
	}
	y, m, d := date.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, date.Location())
	return s.repo.ListInWindow(ctx, WindowQuery{
		ResourceID: resourceID,
		Window:     interval.Interval{Start: dayStart, End: dayStart.AddDate(0, 0, 1)},
	})
}

func (s *service) AvailableSlots(ctx context.Context, q SlotQuery) ([]AvailableSlot, error) {
	ctx, span := tracer.Start(ctx, "reservation.AvailableSlots",
		trace.WithAttributes(
			attribute.String("resource.id", q.ResourceID),
			attribute.Float64("slot.duration_hours", q.DurationHours),
		))
	defer span.End()

	if q.DurationHours <= 0 {
		return nil, fail(span, ErrInvalidDuration)
	}
	res, err := s.lookupResource(ctx, q.ResourceID)
	if err != nil {
		return nil, fail(span, err)
	}

	window := OperatingWindow(res, q.Date)
	var busy []interval.Interval
	if res.IsAvailable {
		items, err := s.repo.ListInWindow(ctx, WindowQuery{ResourceID: res.ID, Window: window, ActiveOnly: true})
		if err != nil {
			return nil, fail(span, err)
		}
		busy = intervalsOf(items)
	} else {
		// A court closed for booking offers no slot at all.
		busy = []interval.Interval{window}
	}

	slots := GenerateSlots(res, q.Date, q.DurationHours, busy, s.clock.Now())
	if !q.IncludeUnavailable {
		slots = FilterAvailable(slots)
	}
	span.SetAttributes(attribute.Int("slot.count", len(slots)))
	return slots, nil
}

// CheckConflicts is a dry run of the overlap check performed by Create.
func (s *service) CheckConflicts(ctx context.Context, q ConflictQuery) (*ConflictReport, error) {
	iv, err := interval.New(q.StartTime, q.EndTime)
	if err != nil {
		return nil, ErrInvalidTimeRange
	}
	if _, err := s.lookupResource(ctx, q.ResourceID); err != nil {
		return nil, err
	}

	items, err := s.repo.ListInWindow(ctx, WindowQuery{
		ResourceID: q.ResourceID,
		Window:     iv,
		ActiveOnly: true,
		ExcludeID:  q.ExcludeID,
	})
	if err != nil {
		return nil, err
	}

	conflicts := Conflicting(iv, items, q.ExcludeID)
	return &ConflictReport{HasConflict: len(conflicts) > 0, Conflicts: conflicts}, nil
}

func (s *service) lookupResource(ctx context.Context, id string) (*resource.Resource, error) {
	res, err := s.resService.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, resource.ErrNotFound) {
			return nil, ErrResourceNotFound
		}
		return nil, err
	}
	return res, nil
}

func (s *service) bookableResource(ctx context.Context, id string) (*resource.Resource, error) {
	res, err := s.lookupResource(ctx, id)
	if err != nil {
		return nil, err
	}
	if !res.IsAvailable {
		return nil, ErrResourceUnavailable
	}
	return res, nil
}

func (s *service) newReservation(res *resource.Resource, requesterID string, iv interval.Interval, price Price, groupID *string) *Reservation {
	return &Reservation{
		ResourceID:        res.ID,
		ResourceName:      res.Name,
		RequesterID:       requesterID,
		FacilityID:        res.FacilityID,
		StartTime:         iv.Start,
		EndTime:           iv.End,
		DurationHours:     price.DurationHours,
		Status:            s.initialStatus,
		HourlyRate:        price.HourlyRate,
		TotalAmount:       price.TotalAmount,
		MemberDiscount:    price.MemberDiscount,
		FinalAmount:       price.FinalAmount,
		RecurrenceGroupID: groupID,
	}
}

// insert runs the conflict check and the insert atomically for the court.
func (s *service) insert(ctx context.Context, r *Reservation) error {
	return s.repo.WithResourceLock(ctx, r.ResourceID, func(tx Tx) error {
		overlap, err := tx.HasOverlap(ctx, r.ResourceID, r.Interval(), "")
		if err != nil {
			return err
		}
		if overlap {
			return ErrTimeConflict
		}
		return tx.Create(ctx, r)
	})
}

// paymentRequired emits one signal per reservation in a single notifier call.
func (s *service) paymentRequired(ctx context.Context, items ...*Reservation) {
	if len(items) == 0 {
		return
	}
	evts := make([]payment.PaymentRequired, len(items))
	for i, r := range items {
		evts[i] = payment.PaymentRequired{
			ReservationID: r.ID,
			RequesterID:   r.RequesterID,
			ResourceID:    r.ResourceID,
			Amount:        r.FinalAmount,
			StartTime:     r.StartTime,
			OccurredAt:    r.CreatedAt,
		}
	}

	ctx, cancel := detach(ctx)
	defer cancel()

	var err error
	if len(evts) == 1 {
		err = s.notifier.PaymentRequired(ctx, evts[0])
	} else {
		err = s.notifier.PaymentRequiredBatch(ctx, evts)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "payment notification failed",
			"reservation_id", items[0].ID,
			"count", len(items),
			"err", err,
		)
	}
}

// detach keeps the values of ctx but not its cancellation. Signals are sent
// after the write has committed.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
