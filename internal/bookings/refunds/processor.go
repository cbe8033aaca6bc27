package refunds

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"courtbook/pkg/logger"
	"courtbook/pkg/metrics"

	"github.com/hibiken/asynq"
)

type PaymentStore interface {
	MarkPaymentsRefunded(ctx context.Context, bookingID string) (int64, error)
}

type CompletionSweeper interface {
	CompleteEnded(ctx context.Context, before time.Time) (int64, error)
}

// Processor handles the worker side of refunds and the completion sweep.
type Processor struct {
	payments PaymentStore
	sweeper  CompletionSweeper
	log      *logger.Logger
	now      func() time.Time
}

func NewProcessor(payments PaymentStore, sweeper CompletionSweeper, log *logger.Logger) *Processor {
	return &Processor{
		payments: payments,
		sweeper:  sweeper,
		log:      log,
		now:      time.Now,
	}
}

func (p *Processor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeRefund, p.HandleRefund)
	mux.HandleFunc(TypeCompletionSweep, p.HandleCompletionSweep)
}

// HandleRefund flips the booking's open payment to REFUNDED. Running it
// again for the same booking changes nothing.
func (p *Processor) HandleRefund(ctx context.Context, task *asynq.Task) error {
	var payload RefundPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil || payload.BookingID == "" {
		p.log.Error("Invalid refund payload", "payload", string(task.Payload()), "error", err)
		metrics.RecordRefund("invalid")
		return fmt.Errorf("invalid refund payload: %w", asynq.SkipRetry)
	}

	n, err := p.payments.MarkPaymentsRefunded(ctx, payload.BookingID)
	if err != nil {
		p.log.Error("Refund failed", "booking_id", payload.BookingID, "error", err)
		metrics.RecordRefund("failed")
		return err
	}

	if n == 0 {
		p.log.Info("No open payment to refund", "booking_id", payload.BookingID)
		metrics.RecordRefund("noop")
		return nil
	}

	p.log.Info("Refund recorded", "booking_id", payload.BookingID, "amount", payload.Amount, "payments", n)
	metrics.RecordRefund("refunded")
	return nil
}

func (p *Processor) HandleCompletionSweep(ctx context.Context, _ *asynq.Task) error {
	n, err := p.sweeper.CompleteEnded(ctx, p.now().UTC())
	if err != nil {
		p.log.Error("Completion sweep failed", "error", err)
		return err
	}
	if n > 0 {
		p.log.Info("Completed ended bookings", "count", n)
	}
	return nil
}
