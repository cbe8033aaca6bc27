package refunds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courtbook/pkg/metrics"
	"courtbook/pkg/model"

	"github.com/hibiken/asynq"
)

// Refunder requests the compensating refund of a cancelled booking.
type Refunder interface {
	RequestRefund(ctx context.Context, booking *model.Booking) error
}

// DirectRefunder marks the payments refunded in-process, right after the
// cancel commits. Used when no refund queue is configured.
type DirectRefunder struct {
	payments PaymentStore
}

func NewDirectRefunder(payments PaymentStore) *DirectRefunder {
	return &DirectRefunder{payments: payments}
}

func (r *DirectRefunder) RequestRefund(ctx context.Context, booking *model.Booking) error {
	n, err := r.payments.MarkPaymentsRefunded(ctx, booking.ID)
	if err != nil {
		metrics.RecordRefund("failed")
		return fmt.Errorf("failed to refund payments: %w", err)
	}
	if n == 0 {
		metrics.RecordRefund("noop")
		return nil
	}
	metrics.RecordRefund("refunded")
	return nil
}

// Enqueuer is the part of *asynq.Client the refunder uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type QueueRefunder struct {
	client   Enqueuer
	queue    string
	maxRetry int
}

func NewQueueRefunder(client Enqueuer, queue string, maxRetry int) *QueueRefunder {
	return &QueueRefunder{client: client, queue: queue, maxRetry: maxRetry}
}

// RequestRefund enqueues the refund task. A task already queued for the
// booking counts as success.
func (r *QueueRefunder) RequestRefund(ctx context.Context, booking *model.Booking) error {
	task, opts, err := NewRefundTask(RefundPayload{
		BookingID:   booking.ID,
		Amount:      booking.Price,
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to build refund task: %w", err)
	}

	opts = append(opts, asynq.Queue(r.queue), asynq.MaxRetry(r.maxRetry))
	if _, err := r.client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("failed to enqueue refund: %w", err)
	}
	return nil
}
