package reservation

import (
	"math"
	"time"
)

const (
	// CancellationWindow is the minimum notice for a customer cancellation.
	// Inside it the reservation is neither cancellable nor refundable.
	CancellationWindow = 24 * time.Hour
	// FullRefundWindow is the notice from which the whole final amount is refunded.
	FullRefundWindow = 48 * time.Hour

	partialRefundPercent = 50
	fullRefundPercent    = 100
)

// RefundPercent returns the share of the final amount refunded when a confirmed
// reservation is cancelled with the given notice.
func RefundPercent(untilStart time.Duration) (int, error) {
	switch {
	case untilStart < CancellationWindow:
		return 0, ErrCancellationWindow
	case untilStart < FullRefundWindow:
		return partialRefundPercent, nil
	default:
		return fullRefundPercent, nil
	}
}

// RefundAmount applies RefundPercent to finalAmount, rounding half up to the
// nearest minor unit.
func RefundAmount(finalAmount int64, untilStart time.Duration) (int64, error) {
	pct, err := RefundPercent(untilStart)
	if err != nil {
		return 0, err
	}
	return (finalAmount*int64(pct) + 50) / 100, nil
}

// Price is the pricing snapshot taken when a reservation is created.
type Price struct {
	HourlyRate     int64
	DurationHours  float64
	TotalAmount    int64
	MemberDiscount int64
	FinalAmount    int64
}

// ComputePrice derives the amounts for a booking of hours at hourlyRate.
// The discount is supplied by the membership collaborator and must not exceed
// the total.
func ComputePrice(hourlyRate int64, hours float64, discount int64) (Price, error) {
	if hours <= 0 {
		return Price{}, ErrInvalidDuration
	}
	total := int64(math.Round(float64(hourlyRate) * hours))
	if discount < 0 || discount > total {
		return Price{}, ErrInvalidDiscount
	}
	return Price{
		HourlyRate:     hourlyRate,
		DurationHours:  roundHours(hours),
		TotalAmount:    total,
		MemberDiscount: discount,
		FinalAmount:    total - discount,
	}, nil
}

// roundHours keeps four decimals, enough for one-second resolution noise to vanish.
func roundHours(h float64) float64 {
	return math.Round(h*10000) / 10000
}
