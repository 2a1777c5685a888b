package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefundPercent(t *testing.T) {
	tests := []struct {
		name    string
		notice  time.Duration
		want    int
		wantErr error
	}{
		{"10 hours", 10 * time.Hour, 0, ErrCancellationWindow},
		{"just under 24h", 24*time.Hour - time.Second, 0, ErrCancellationWindow},
		{"exactly 24h", 24 * time.Hour, 50, nil},
		{"30 hours", 30 * time.Hour, 50, nil},
		{"just under 48h", 48*time.Hour - time.Second, 50, nil},
		{"exactly 48h", 48 * time.Hour, 100, nil},
		{"a week", 7 * 24 * time.Hour, 100, nil},
		{"already started", -time.Hour, 0, ErrCancellationWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RefundPercent(tt.notice)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRefundPercent_Monotonic(t *testing.T) {
	prev := -1
	for notice := time.Duration(0); notice <= 96*time.Hour; notice += 15 * time.Minute {
		pct, err := RefundPercent(notice)
		if err != nil {
			pct = 0
		}
		assert.GreaterOrEqual(t, pct, prev, "refund must not decrease at notice %s", notice)
		prev = pct
	}
}

func TestRefundAmount(t *testing.T) {
	got, err := RefundAmount(9000, 30*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(4500), got)

	got, err = RefundAmount(9001, 30*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(4501), got, "half a minor unit rounds up")

	got, err = RefundAmount(9000, 72*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), got)

	_, err = RefundAmount(9000, time.Hour)
	assert.ErrorIs(t, err, ErrCancellationWindow)
}

func TestComputePrice(t *testing.T) {
	p, err := ComputePrice(4000, 1.5, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), p.TotalAmount)
	assert.Equal(t, int64(5500), p.FinalAmount)
	assert.Equal(t, 1.5, p.DurationHours)

	_, err = ComputePrice(4000, 2, 9000)
	assert.ErrorIs(t, err, ErrInvalidDiscount)

	_, err = ComputePrice(4000, 2, -1)
	assert.ErrorIs(t, err, ErrInvalidDiscount)

	_, err = ComputePrice(4000, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusNoShow, false},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusNoShow, true},
		{StatusConfirmed, StatusPending, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusNoShow, StatusCompleted, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}

	for _, s := range []Status{StatusCancelled, StatusCompleted, StatusNoShow} {
		assert.True(t, s.IsTerminal())
		assert.False(t, s.IsActive())
	}
	for _, s := range ActiveStatuses {
		assert.False(t, s.IsTerminal())
		assert.True(t, s.IsActive())
	}
	assert.False(t, Status("archived").Valid())
}
