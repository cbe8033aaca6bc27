package refunds

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeRefund          = "booking:refund"
	TypeCompletionSweep = "booking:complete-ended"

	refundTaskIDPrefix = "refund:"
)

type RefundPayload struct {
	BookingID   string    `json:"booking_id"`
	Amount      float64   `json:"amount"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewRefundTask builds the refund task for a booking. The task id is derived
// from the booking id so a second request for the same booking is rejected
// by the queue.
func NewRefundTask(payload RefundPayload) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeRefund, b)
	opts := []asynq.Option{asynq.TaskID(refundTaskIDPrefix + payload.BookingID)}

	return task, opts, nil
}

func NewCompletionSweepTask() *asynq.Task {
	return asynq.NewTask(TypeCompletionSweep, nil)
}
