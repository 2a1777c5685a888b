package reservation

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/court-reservation/internal/db"
	"github.com/nekogravitycat/court-reservation/internal/interval"
	"github.com/nekogravitycat/court-reservation/internal/logging"
	"github.com/nekogravitycat/court-reservation/internal/payment"
	"github.com/nekogravitycat/court-reservation/internal/pkg/clock"
	"github.com/nekogravitycat/court-reservation/internal/resource"
)

// testPool connects to TEST_DB_DSN and applies the schema, or skips the test.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, dsn, 20)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.EnsureSchema(ctx, pool))
	_, err = pool.Exec(ctx, "TRUNCATE TABLE public.reservations, public.resources CASCADE")
	require.NoError(t, err)
	return pool
}

func insertCourt(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	var id string
	err := pool.QueryRow(context.Background(), `
		INSERT INTO public.resources (facility_id, name, open_hour, close_hour, hourly_rate)
		VALUES (gen_random_uuid(), 'Court A', 6, 22, 800)
		RETURNING id`).Scan(&id)
	require.NoError(t, err)
	return id
}

func newPgService(pool *pgxpool.Pool, clk clock.Clock) Service {
	return NewService(
		NewPgxRepository(pool),
		resource.NewService(resource.NewPgxRepository(pool)),
		payment.NewLogNotifier(logging.Discard()),
		ServiceConfig{Clock: clk, Logger: logging.Discard()},
	)
}

func TestPgx_ConcurrentCreatesNeverDoubleBook(t *testing.T) {
	pool := testPool(t)
	courtID := insertCourt(t, pool)

	base := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Hour)
	svc := newPgService(pool, clock.Real())

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			offset := time.Duration(i) * 5 * time.Minute
			_, err := svc.Create(context.Background(), CreateRequest{
				RequesterID: "user-1",
				ResourceID:  courtID,
				StartTime:   base.Add(offset),
				EndTime:     base.Add(2*time.Hour + offset),
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrTimeConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)

	var active int
	require.NoError(t, pool.QueryRow(context.Background(),
		"SELECT count(*) FROM public.reservations WHERE resource_id = $1 AND status IN ('pending','confirmed')",
		courtID).Scan(&active))
	assert.Equal(t, 1, active)
}

func TestPgx_ExclusionConstraintMapsToConflict(t *testing.T) {
	pool := testPool(t)
	courtID := insertCourt(t, pool)
	repo := NewPgxRepository(pool)
	ctx := context.Background()

	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)
	newRow := func(offset time.Duration) *Reservation {
		return &Reservation{
			ResourceID:    courtID,
			RequesterID:   "user-1",
			FacilityID:    "00000000-0000-0000-0000-000000000001",
			StartTime:     start.Add(offset),
			EndTime:       start.Add(offset + time.Hour),
			DurationHours: 1,
			Status:        StatusConfirmed,
			HourlyRate:    800,
			TotalAmount:   800,
			FinalAmount:   800,
		}
	}

	require.NoError(t, repo.WithResourceLock(ctx, courtID, func(tx Tx) error {
		return tx.Create(ctx, newRow(0))
	}))

	// Skipping HasOverlap leaves the constraint as the only guard.
	err := repo.WithResourceLock(ctx, courtID, func(tx Tx) error {
		return tx.Create(ctx, newRow(30*time.Minute))
	})
	assert.ErrorIs(t, err, ErrTimeConflict)

	// Touching intervals are allowed by the '[)' range bounds.
	require.NoError(t, repo.WithResourceLock(ctx, courtID, func(tx Tx) error {
		return tx.Create(ctx, newRow(time.Hour))
	}))
}

func TestPgx_CancelAndWindowQueries(t *testing.T) {
	pool := testPool(t)
	courtID := insertCourt(t, pool)
	ctx := context.Background()

	start := time.Now().UTC().Add(96 * time.Hour).Truncate(time.Hour)
	svc := newPgService(pool, clock.Real())

	r, err := svc.Create(ctx, CreateRequest{
		RequesterID: "user-1", ResourceID: courtID,
		StartTime: start, EndTime: start.Add(90 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, 1.5, r.DurationHours)
	assert.Equal(t, int64(1200), r.FinalAmount)

	_, err = svc.Cancel(ctx, r.ID, CancelRequest{Actor: Actor{ID: "user-1"}})
	assert.ErrorIs(t, err, ErrNotCancellable, "pending reservations go through release")

	r, err = svc.Confirm(ctx, r.ID)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, r.ID, CancelRequest{Actor: Actor{ID: "user-1"}, Reason: "travel"})
	require.NoError(t, err)
	assert.Equal(t, int64(1200), *cancelled.RefundAmount)

	_, err = svc.Cancel(ctx, r.ID, CancelRequest{Actor: Actor{ID: "user-1"}})
	assert.ErrorIs(t, err, ErrNotCancellable)

	stored, err := svc.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stored.Status)
	assert.Equal(t, "travel", *stored.CancellationReason)
	assert.Equal(t, "Court A", stored.ResourceName)

	repo := NewPgxRepository(pool)
	window := interval.Interval{Start: start.Add(-time.Hour), End: start.Add(time.Hour)}
	active, err := repo.ListInWindow(ctx, WindowQuery{ResourceID: courtID, Window: window, ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := repo.ListInWindow(ctx, WindowQuery{ResourceID: courtID, Window: window})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	items, total, err := repo.List(ctx, Filter{RequesterID: "user-1", Status: string(StatusCancelled)})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, items, 1)
}
