package repository

import (
	"context"
	"time"

	"courtbook/pkg/model"
)

// Queries are the reads shared by the repository and by an open transaction.
// Overlap queries return only live (PENDING, CONFIRMED) bookings.
type Queries interface {
	FindCourt(ctx context.Context, courtID string) (*model.Court, *model.Facility, error)
	FindBookingByID(ctx context.Context, id string) (*model.Booking, error)
	FindOverlappingBookings(ctx context.Context, courtID string, start, end time.Time) ([]*model.Booking, error)
	FindOverlappingMaintenance(ctx context.Context, courtID string, start, end time.Time) ([]*model.MaintenanceBlock, error)
}

// Tx is a unit of work. LockCourt serializes every transaction touching the
// same court until commit or rollback.
type Tx interface {
	Queries
	LockCourt(ctx context.Context, courtID string) (*model.Court, *model.Facility, error)
	LockBooking(ctx context.Context, id string) (*model.Booking, error)
	InsertBooking(ctx context.Context, booking *model.Booking) error
	InsertPayment(ctx context.Context, payment *model.Payment) error
	UpdateBookingStatus(ctx context.Context, id string, from, to model.BookingStatus, at time.Time) error
	DeleteBooking(ctx context.Context, id string) error
}

type TxFunc func(ctx context.Context, tx Tx) error

type BookingRepository interface {
	Queries
	ExecuteTransaction(ctx context.Context, fn TxFunc) error

	FindByUser(ctx context.Context, userID string, filter model.BookingFilter) ([]*model.Booking, error)
	CountByUser(ctx context.Context, userID string, filter model.BookingFilter) (int64, error)
	FindByOwner(ctx context.Context, ownerID string, filter model.BookingFilter) ([]*model.Booking, error)
	CountByOwner(ctx context.Context, ownerID string, filter model.BookingFilter) (int64, error)

	InsertMaintenanceBlock(ctx context.Context, block *model.MaintenanceBlock) error
	MarkPaymentsRefunded(ctx context.Context, bookingID string) (int64, error)
	CompleteEndedBookings(ctx context.Context, before time.Time) (int64, error)
	Ping(ctx context.Context) error
}

// listScope says which identity a list query is anchored on.
type listScope int

const (
	scopeUser listScope = iota
	scopeOwner
)

// withTimeout bounds ctx by timeout without extending an earlier deadline.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}

	return context.WithTimeout(ctx, timeout)
}
