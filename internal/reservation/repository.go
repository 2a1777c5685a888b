package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/court-reservation/internal/interval"
	"github.com/nekogravitycat/court-reservation/internal/pkg/apperror"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*Reservation, error)
	List(ctx context.Context, filter Filter) ([]*Reservation, int, error)

	// ListInWindow returns the reservations of one court overlapping q.Window,
	// ordered by start time. It reads committed state and takes no lock.
	ListInWindow(ctx context.Context, q WindowQuery) ([]*Reservation, error)

	// WithResourceLock runs fn in a transaction holding the booking lock of the
	// court. Conflict checks and inserts made through tx are atomic with respect
	// to every other WithResourceLock call for the same court.
	WithResourceLock(ctx context.Context, resourceID string, fn func(tx Tx) error) error

	// WithReservation runs fn in a transaction with the reservation row locked.
	WithReservation(ctx context.Context, id string, fn func(tx Tx, r *Reservation) error) error
}

// Tx is the write side available inside a repository transaction.
type Tx interface {
	// HasOverlap reports whether an active reservation of the court overlaps iv.
	// excludeID, when set, is ignored.
	HasOverlap(ctx context.Context, resourceID string, iv interval.Interval, excludeID string) (bool, error)
	Create(ctx context.Context, r *Reservation) error
	// UpdateStatus persists r's status and cancellation fields provided the row
	// is still in status from.
	UpdateStatus(ctx context.Context, r *Reservation, from Status) error
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var reservationColumns = []string{
	"b.id", "b.resource_id", "r.name", "b.requester_id", "b.facility_id",
	"b.start_time", "b.end_time", "b.duration_hours", "b.status",
	"b.hourly_rate", "b.total_amount", "b.member_discount", "b.final_amount",
	"b.cancelled_at", "b.cancelled_by", "b.cancellation_reason", "b.refund_amount",
	"b.recurrence_group_id", "b.created_at", "b.updated_at",
}

func selectReservations(extra ...string) squirrel.SelectBuilder {
	cols := append(append([]string{}, reservationColumns...), extra...)
	return psql.Select(cols...).
		From("public.reservations b").
		Join("public.resources r ON b.resource_id = r.id")
}

func scanReservation(row pgx.Row, extra ...any) (*Reservation, error) {
	var b Reservation
	dest := []any{
		&b.ID, &b.ResourceID, &b.ResourceName, &b.RequesterID, &b.FacilityID,
		&b.StartTime, &b.EndTime, &b.DurationHours, &b.Status,
		&b.HourlyRate, &b.TotalAmount, &b.MemberDiscount, &b.FinalAmount,
		&b.CancelledAt, &b.CancelledBy, &b.CancellationReason, &b.RefundAmount,
		&b.RecurrenceGroupID, &b.CreatedAt, &b.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &b, nil
}

func activeStatusStrings() []string {
	out := make([]string, len(ActiveStatuses))
	for i, s := range ActiveStatuses {
		out[i] = string(s)
	}
	return out
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Reservation, error) {
	return getByID(ctx, r.pool, id, false)
}

func getByID(ctx context.Context, q querier, id string, forUpdate bool) (*Reservation, error) {
	builder := selectReservations().Where(squirrel.Eq{"b.id": id})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE OF b")
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get reservation query failed: %w", err)
	}

	b, err := scanReservation(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get reservation failed: %w", err)
	}
	return b, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Reservation, int, error) {
	query := selectReservations("count(*) OVER() as total_count")

	if filter.RequesterID != "" {
		query = query.Where(squirrel.Eq{"b.requester_id": filter.RequesterID})
	}
	if filter.ResourceID != "" {
		query = query.Where(squirrel.Eq{"b.resource_id": filter.ResourceID})
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"b.status": filter.Status})
	}
	// Date range filtering (intersection logic)
	if filter.StartTime != nil {
		query = query.Where(squirrel.Gt{"b.end_time": *filter.StartTime})
	}
	if filter.EndTime != nil {
		query = query.Where(squirrel.Lt{"b.start_time": *filter.EndTime})
	}

	// Sorting
	orderBy := "b.start_time"
	switch filter.SortBy {
	case "start_time", "end_time", "created_at", "status":
		orderBy = "b." + filter.SortBy
	}
	orderDir := "DESC"
	if filter.SortOrder == "ASC" || filter.SortOrder == "asc" {
		orderDir = "ASC"
	}
	query = query.OrderBy(orderBy + " " + orderDir)

	// Pagination
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize
	query = query.Limit(uint64(filter.PageSize)).Offset(uint64(offset))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list reservations query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reservations failed: %w", err)
	}
	defer rows.Close()

	var items []*Reservation
	var total int
	for rows.Next() {
		b, err := scanReservation(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan reservation failed: %w", err)
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate reservations failed: %w", err)
	}

	return items, total, nil
}

func (r *pgxRepository) ListInWindow(ctx context.Context, q WindowQuery) ([]*Reservation, error) {
	query := selectReservations().
		Where(squirrel.Eq{"b.resource_id": q.ResourceID}).
		Where(overlapsWindow(q.Window))
	if q.ActiveOnly {
		query = query.Where(squirrel.Eq{"b.status": activeStatusStrings()})
	}
	if q.ExcludeID != "" {
		query = query.Where(squirrel.NotEq{"b.id": q.ExcludeID})
	}

	sql, args, err := query.OrderBy("b.start_time ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build window query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations in window failed: %w", err)
	}
	defer rows.Close()

	var items []*Reservation
	for rows.Next() {
		b, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation failed: %w", err)
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

// overlapsWindow is the SQL form of interval.Interval.Overlaps:
// existing.start < window.end AND existing.end > window.start.
func overlapsWindow(iv interval.Interval) squirrel.And {
	return squirrel.And{
		squirrel.Lt{"b.start_time": iv.End},
		squirrel.Gt{"b.end_time": iv.Start},
	}
}

func (r *pgxRepository) WithResourceLock(ctx context.Context, resourceID string, fn func(tx Tx) error) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		// Transaction-scoped advisory lock keyed by the court; released on commit or rollback.
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", resourceID); err != nil {
			return fmt.Errorf("acquire resource lock failed: %w", err)
		}
		return fn(&pgxTx{tx: tx})
	})
}

func (r *pgxRepository) WithReservation(ctx context.Context, id string, fn func(tx Tx, b *Reservation) error) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		b, err := getByID(ctx, tx, id, true)
		if err != nil {
			return err
		}
		return fn(&pgxTx{tx: tx}, b)
	})
}

func (r *pgxRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction failed: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction failed: %w", err)
	}
	return nil
}

type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) HasOverlap(ctx context.Context, resourceID string, iv interval.Interval, excludeID string) (bool, error) {
	subQuery := psql.Select("1").
		From("public.reservations b").
		Where(squirrel.Eq{"b.resource_id": resourceID}).
		Where(squirrel.Eq{"b.status": activeStatusStrings()}).
		Where(overlapsWindow(iv))

	if excludeID != "" {
		subQuery = subQuery.Where(squirrel.NotEq{"b.id": excludeID})
	}

	sql, args, err := subQuery.ToSql()
	if err != nil {
		return false, fmt.Errorf("build check overlap query failed: %w", err)
	}

	var exists bool
	if err := t.tx.QueryRow(ctx, "SELECT EXISTS ("+sql+")", args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check overlap failed: %w", err)
	}
	return exists, nil
}

func (t *pgxTx) Create(ctx context.Context, b *Reservation) error {
	query, args, err := psql.Insert("public.reservations").
		Columns(
			"resource_id", "requester_id", "facility_id", "start_time", "end_time",
			"duration_hours", "status", "hourly_rate", "total_amount", "member_discount",
			"final_amount", "recurrence_group_id",
		).
		Values(
			b.ResourceID, b.RequesterID, b.FacilityID, b.StartTime, b.EndTime,
			b.DurationHours, string(b.Status), b.HourlyRate, b.TotalAmount, b.MemberDiscount,
			b.FinalAmount, b.RecurrenceGroupID,
		).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create reservation query failed: %w", err)
	}

	if err := t.tx.QueryRow(ctx, query, args...).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ExclusionViolation {
			return apperror.Wrap(err, apperror.KindConflict, ErrTimeConflict.Message)
		}
		return fmt.Errorf("create reservation failed: %w", err)
	}
	return nil
}

func (t *pgxTx) UpdateStatus(ctx context.Context, b *Reservation, from Status) error {
	query, args, err := psql.Update("public.reservations").
		Set("status", string(b.Status)).
		Set("cancelled_at", b.CancelledAt).
		Set("cancelled_by", b.CancelledBy).
		Set("cancellation_reason", b.CancellationReason).
		Set("refund_amount", b.RefundAmount).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": b.ID, "status": string(from)}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update reservation status query failed: %w", err)
	}

	if err := t.tx.QueryRow(ctx, query, args...).Scan(&b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvalidTransition
		}
		return fmt.Errorf("update reservation status failed: %w", err)
	}
	return nil
}
