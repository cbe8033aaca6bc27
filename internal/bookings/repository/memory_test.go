package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	bookingserrors "courtbook/internal/bookings/errors"
	"courtbook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2030, 6, 1, 10, 0, 0, 0, time.UTC)

func seededMemory(t *testing.T) *MemoryBookingRepository {
	t.Helper()
	repo := NewMemoryBookingRepository()
	repo.AddFacility(model.Facility{ID: "fac-1", OwnerID: "owner-1", Name: "Center"})
	repo.AddFacility(model.Facility{ID: "fac-2", OwnerID: "owner-2", Name: "Park"})
	repo.AddCourt(model.Court{ID: "court-1", FacilityID: "fac-1", Name: "A", OpenMinute: 0, CloseMinute: 1439, PricePerHour: 100})
	repo.AddCourt(model.Court{ID: "court-2", FacilityID: "fac-2", Name: "B", OpenMinute: 0, CloseMinute: 1439, PricePerHour: 100})
	return repo
}

func insert(t *testing.T, repo *MemoryBookingRepository, b model.Booking) {
	t.Helper()
	err := repo.ExecuteTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.InsertBooking(ctx, &b)
	})
	require.NoError(t, err)
}

func TestMemory_RollbackDiscardsWrites(t *testing.T) {
	repo := seededMemory(t)
	boom := errors.New("boom")

	err := repo.ExecuteTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
		b := &model.Booking{ID: "b-1", CourtID: "court-1", StartTime: base, EndTime: base.Add(time.Hour), Status: model.BookingPending}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	_, err = repo.FindBookingByID(context.Background(), "b-1")
	assert.ErrorIs(t, err, bookingserrors.ErrNotFound)
}

func TestMemory_InsertRejectsLiveOverlap(t *testing.T) {
	repo := seededMemory(t)
	insert(t, repo, model.Booking{ID: "b-1", CourtID: "court-1", StartTime: base, EndTime: base.Add(time.Hour), Status: model.BookingPending})

	err := repo.ExecuteTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.InsertBooking(ctx, &model.Booking{ID: "b-2", CourtID: "court-1", StartTime: base.Add(30 * time.Minute), EndTime: base.Add(2 * time.Hour), Status: model.BookingPending})
	})
	assert.ErrorIs(t, err, bookingserrors.ErrOverlap)

	// Back-to-back is not an overlap.
	insert(t, repo, model.Booking{ID: "b-3", CourtID: "court-1", StartTime: base.Add(time.Hour), EndTime: base.Add(2 * time.Hour), Status: model.BookingPending})
}

func TestMemory_CancelledBookingFreesSlot(t *testing.T) {
	repo := seededMemory(t)
	insert(t, repo, model.Booking{ID: "b-1", CourtID: "court-1", StartTime: base, EndTime: base.Add(time.Hour), Status: model.BookingCancelled})

	conflicts, err := repo.FindOverlappingBookings(context.Background(), "court-1", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestMemory_UpdateBookingStatusCompareAndSet(t *testing.T) {
	repo := seededMemory(t)
	insert(t, repo, model.Booking{ID: "b-1", CourtID: "court-1", StartTime: base, EndTime: base.Add(time.Hour), Status: model.BookingPending})

	err := repo.ExecuteTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.UpdateBookingStatus(ctx, "b-1", model.BookingConfirmed, model.BookingCancelled, base)
	})
	assert.ErrorIs(t, err, bookingserrors.ErrStaleStatus)

	err = repo.ExecuteTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.UpdateBookingStatus(ctx, "b-1", model.BookingPending, model.BookingConfirmed, base)
	})
	require.NoError(t, err)

	got, err := repo.FindBookingByID(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, got.Status)
}

func TestMemory_ListOrderingAndPaging(t *testing.T) {
	repo := seededMemory(t)
	for i, id := range []string{"b-1", "b-2", "b-3"} {
		start := base.Add(time.Duration(i) * time.Hour)
		insert(t, repo, model.Booking{ID: id, CourtID: "court-1", UserID: "u-1", StartTime: start, EndTime: start.Add(time.Hour), Status: model.BookingPending})
	}
	insert(t, repo, model.Booking{ID: "b-4", CourtID: "court-2", UserID: "u-1", StartTime: base, EndTime: base.Add(time.Hour), Status: model.BookingPending})

	ctx := context.Background()
	all, err := repo.FindByUser(ctx, "u-1", model.BookingFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "b-3", all[0].ID)
	assert.Equal(t, "b-2", all[1].ID)

	paged, err := repo.FindByUser(ctx, "u-1", model.BookingFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "b-2", paged[0].ID)

	owned, err := repo.FindByOwner(ctx, "owner-1", model.BookingFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, owned, 3)

	total, err := repo.CountByOwner(ctx, "owner-2", model.BookingFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	from := base.Add(90 * time.Minute)
	windowed, err := repo.FindByUser(ctx, "u-1", model.BookingFilter{CourtID: "court-1", From: &from, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, windowed, 2)
}

func TestMemory_CompleteEndedAndRefund(t *testing.T) {
	repo := seededMemory(t)
	err := repo.ExecuteTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
		if err := tx.InsertBooking(ctx, &model.Booking{ID: "b-1", CourtID: "court-1", StartTime: base, EndTime: base.Add(time.Hour), Status: model.BookingConfirmed}); err != nil {
			return err
		}
		return tx.InsertPayment(ctx, &model.Payment{ID: "p-1", BookingID: "b-1", Amount: 100, Status: model.PaymentPending})
	})
	require.NoError(t, err)

	n, err := repo.CompleteEndedBookings(context.Background(), base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.CompleteEndedBookings(context.Background(), base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	refunded, err := repo.MarkPaymentsRefunded(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), refunded)

	again, err := repo.MarkPaymentsRefunded(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Zero(t, again)
	assert.Equal(t, model.PaymentRefunded, repo.Payments("b-1")[0].Status)
}

func TestMemory_DeleteRemovesPayments(t *testing.T) {
	repo := seededMemory(t)
	err := repo.ExecuteTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
		if err := tx.InsertBooking(ctx, &model.Booking{ID: "b-1", CourtID: "court-1", StartTime: base, EndTime: base.Add(time.Hour), Status: model.BookingCancelled}); err != nil {
			return err
		}
		return tx.InsertPayment(ctx, &model.Payment{ID: "p-1", BookingID: "b-1", Status: model.PaymentRefunded})
	})
	require.NoError(t, err)

	err = repo.ExecuteTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.DeleteBooking(ctx, "b-1")
	})
	require.NoError(t, err)
	assert.Empty(t, repo.Payments("b-1"))
}

func TestMemory_MaintenanceRequiresCourt(t *testing.T) {
	repo := seededMemory(t)
	err := repo.InsertMaintenanceBlock(context.Background(), &model.MaintenanceBlock{ID: "m-1", CourtID: "missing", StartTime: base, EndTime: base.Add(time.Hour)})
	assert.ErrorIs(t, err, bookingserrors.ErrCourtMissing)
}
