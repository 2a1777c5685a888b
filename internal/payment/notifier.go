// Package payment emits the payment signals of the reservation lifecycle.
// Charging and refunding happen in an external service that consumes them.
package payment

import (
	"context"
	"log/slog"
	"time"
)

const (
	EventPaymentRequired = "payment.required.v1"
	EventRefundDue       = "payment.refund_due.v1"
)

// PaymentRequired is emitted once a reservation has been created and must be paid.
type PaymentRequired struct {
	ReservationID string    `json:"reservation_id"`
	RequesterID   string    `json:"requester_id"`
	ResourceID    string    `json:"resource_id"`
	Amount        int64     `json:"amount"`
	StartTime     time.Time `json:"start_time"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// RefundDue is emitted once a cancellation has recorded a refund.
type RefundDue struct {
	ReservationID string    `json:"reservation_id"`
	RequesterID   string    `json:"requester_id"`
	Amount        int64     `json:"amount"`
	Percent       int       `json:"percent"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Notifier interface {
	PaymentRequired(ctx context.Context, evt PaymentRequired) error
	// PaymentRequiredBatch emits the events of one recurring booking together.
	PaymentRequiredBatch(ctx context.Context, evts []PaymentRequired) error
	RefundDue(ctx context.Context, evt RefundDue) error
	Close() error
}

// LogNotifier writes payment signals to the log. It is used when no broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) PaymentRequired(ctx context.Context, evt PaymentRequired) error {
	n.logger.InfoContext(ctx, "payment required",
		"event", EventPaymentRequired,
		"reservation_id", evt.ReservationID,
		"requester_id", evt.RequesterID,
		"amount", evt.Amount,
	)
	return nil
}

func (n *LogNotifier) PaymentRequiredBatch(ctx context.Context, evts []PaymentRequired) error {
	for _, evt := range evts {
		if err := n.PaymentRequired(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (n *LogNotifier) RefundDue(ctx context.Context, evt RefundDue) error {
	n.logger.InfoContext(ctx, "refund due",
		"event", EventRefundDue,
		"reservation_id", evt.ReservationID,
		"requester_id", evt.RequesterID,
		"amount", evt.Amount,
		"percent", evt.Percent,
	)
	return nil
}

func (n *LogNotifier) Close() error { return nil }
