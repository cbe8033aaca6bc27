package service

import (
	"context"
	"errors"
	"testing"
	"time"

	bookingserrors "courtbook/internal/bookings/errors"
	apperrors "courtbook/pkg/errors"
	"courtbook/pkg/metrics"
	"courtbook/pkg/model"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	price := 500.0

	first, err := f.svc.Create(ctx, &model.CreateBookingRequest{
		CourtID:   courtID,
		UserID:    userID,
		StartTime: at(9, 0),
		EndTime:   at(10, 0),
		Price:     &price,
	})
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, first.Status)
	assert.Equal(t, 500.0, first.Price)
	assert.NotEmpty(t, first.ID)

	payments := f.repo.Payments(first.ID)
	require.Len(t, payments, 1)
	assert.Equal(t, model.PaymentPending, payments[0].Status)
	assert.Equal(t, 500.0, payments[0].Amount)

	_, err = f.svc.Create(ctx, &model.CreateBookingRequest{CourtID: courtID, UserID: "user-2", StartTime: at(9, 30), EndTime: at(10, 30)})
	requireCode(t, err, bookingserrors.CodeSlotUnavailable)
	assert.True(t, errors.Is(err, bookingserrors.ErrSlotUnavailable))

	_, err = f.svc.Create(ctx, &model.CreateBookingRequest{CourtID: courtID, UserID: "user-2", StartTime: at(22, 0), EndTime: at(23, 0)})
	requireCode(t, err, bookingserrors.CodeOutsideOperatingHours)

	assert.Equal(t, []string{ownerID + "/" + first.ID}, f.notifier.created)
	assert.Equal(t, 1, f.broadcaster.created)
}

func TestCreate_TouchingBookingsDoNotConflict(t *testing.T) {
	f := newFixture(t)

	f.create(t, courtID, userID, at(9, 0), at(10, 0))
	f.create(t, courtID, "user-2", at(10, 0), at(11, 0))
	f.create(t, courtID, "user-3", at(8, 0), at(9, 0))
}

func TestCreate_OperatingHoursBoundaries(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		wantCode   string
	}{
		{"starts at opening", at(6, 0), at(7, 0), ""},
		{"ends at closing", at(21, 0), at(22, 0), ""},
		{"whole day", at(6, 0), at(22, 0), ""},
		{"starts a minute early", at(5, 59), at(7, 0), bookingserrors.CodeOutsideOperatingHours},
		{"ends a minute late", at(21, 1), at(22, 1), bookingserrors.CodeOutsideOperatingHours},
		{"entirely before opening", at(4, 0), at(5, 0), bookingserrors.CodeOutsideOperatingHours},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.now = at(0, 0)

			_, err := f.svc.Create(context.Background(), &model.CreateBookingRequest{CourtID: courtID, UserID: userID, StartTime: tt.start, EndTime: tt.end})
			if tt.wantCode == "" {
				require.NoError(t, err)
				return
			}
			requireCode(t, err, tt.wantCode)
		})
	}
}

func TestCreate_OperatingHoursUseConfiguredLocation(t *testing.T) {
	cfg := testConfig()
	cfg.Location = time.FixedZone("UTC+2", 2*60*60)
	f := newFixtureWithConfig(t, cfg)
	f.now = at(0, 0)
	ctx := context.Background()

	// 04:00 UTC is 06:00 local, the opening minute.
	_, err := f.svc.Create(ctx, &model.CreateBookingRequest{CourtID: courtID, UserID: userID, StartTime: at(4, 0), EndTime: at(5, 0)})
	require.NoError(t, err)

	// 03:30 UTC is 05:30 local.
	_, err = f.svc.Create(ctx, &model.CreateBookingRequest{CourtID: courtID, UserID: userID, StartTime: at(3, 30), EndTime: at(4, 0)})
	requireCode(t, err, bookingserrors.CodeOutsideOperatingHours)

	// 19:30 UTC is 21:30 local, 20:30 UTC is 22:30 local.
	_, err = f.svc.Create(ctx, &model.CreateBookingRequest{CourtID: courtID, UserID: userID, StartTime: at(19, 30), EndTime: at(20, 30)})
	requireCode(t, err, bookingserrors.CodeOutsideOperatingHours)
}

func TestCreate_MaintenancePrecedence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddMaintenanceBlock(ctx, ownerID, &model.MaintenanceBlock{CourtID: courtID, StartTime: at(12, 0), EndTime: at(14, 0)})
	require.NoError(t, err)
	f.create(t, courtID, userID, at(10, 0), at(11, 0))

	tests := []struct {
		name       string
		start, end time.Time
		wantCode   string
	}{
		{"inside maintenance", at(12, 30), at(13, 0), bookingserrors.CodeCourtUnderMaintenance},
		{"straddles maintenance start", at(11, 30), at(12, 30), bookingserrors.CodeCourtUnderMaintenance},
		{"booking conflict reported before maintenance", at(10, 30), at(12, 30), bookingserrors.CodeSlotUnavailable},
		{"touches maintenance end", at(14, 0), at(15, 0), ""},
		{"touches maintenance start", at(11, 0), at(12, 0), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, &model.CreateBookingRequest{CourtID: courtID, UserID: "user-9", StartTime: tt.start, EndTime: tt.end})
			if tt.wantCode == "" {
				require.NoError(t, err)
				return
			}
			requireCode(t, err, tt.wantCode)
		})
	}
}

func TestCreate_HoursCheckedBeforeMaintenance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddMaintenanceBlock(ctx, ownerID, &model.MaintenanceBlock{CourtID: courtID, StartTime: at(20, 0), EndTime: at(23, 0)})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, &model.CreateBookingRequest{CourtID: courtID, UserID: userID, StartTime: at(21, 0), EndTime: at(23, 0)})
	requireCode(t, err, bookingserrors.CodeOutsideOperatingHours)
}

func TestCreate_PriceCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wrong := 499.0
	_, err := f.svc.Create(ctx, &model.CreateBookingRequest{CourtID: courtID, UserID: userID, StartTime: at(9, 0), EndTime: at(10, 0), Price: &wrong})
	requireCode(t, err, bookingserrors.CodePriceMismatch)

	// Nothing was written by the rejected attempt.
	availability, err := f.svc.CheckAvailability(ctx, courtID, at(9, 0), at(10, 0))
	require.NoError(t, err)
	assert.True(t, availability.Available)

	nearly := 250.004
	b, err := f.svc.Create(ctx, &model.CreateBookingRequest{CourtID: courtID, UserID: userID, StartTime: at(9, 0), EndTime: at(9, 30), Price: &nearly})
	require.NoError(t, err)
	assert.Equal(t, 250.0, b.Price)

	odd, err := f.svc.Create(ctx, &model.CreateBookingRequest{CourtID: courtID, UserID: userID, StartTime: at(10, 0), EndTime: at(10, 20)})
	require.NoError(t, err)
	assert.Equal(t, 166.67, odd.Price)
}

func TestCreate_CourtNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), &model.CreateBookingRequest{CourtID: "missing", UserID: userID, StartTime: at(9, 0), EndTime: at(10, 0)})
	requireCode(t, err, bookingserrors.CodeCourtNotFound)
	assert.Empty(t, f.notifier.created)
}

func TestCreate_ValidationFailure(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), &model.CreateBookingRequest{CourtID: courtID, UserID: userID, StartTime: at(10, 0), EndTime: at(9, 0)})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = f.svc.Create(context.Background(), &model.CreateBookingRequest{CourtID: courtID, StartTime: at(9, 0), EndTime: at(10, 0)})
	requireCode(t, err, apperrors.CodeValidation)
}

func TestCreate_RejectionCounted(t *testing.T) {
	f := newFixture(t)
	counter := metrics.BookingRejectionsTotal.WithLabelValues(bookingserrors.CodeSlotUnavailable)
	before := testutil.ToFloat64(counter)

	f.create(t, courtID, userID, at(9, 0), at(10, 0))
	_, err := f.svc.Create(context.Background(), &model.CreateBookingRequest{CourtID: courtID, UserID: userID, StartTime: at(9, 0), EndTime: at(10, 0)})
	requireCode(t, err, bookingserrors.CodeSlotUnavailable)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestCreate_SideEffectFailuresDoNotFailTheCall(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("notification service down")
	f.broadcaster.err = errors.New("redis down")
	notify := metrics.SideEffectFailuresTotal.WithLabelValues(metrics.SideEffectNotify)
	broadcast := metrics.SideEffectFailuresTotal.WithLabelValues(metrics.SideEffectBroadcast)
	notifyBefore, broadcastBefore := testutil.ToFloat64(notify), testutil.ToFloat64(broadcast)

	b := f.create(t, courtID, userID, at(9, 0), at(10, 0))

	stored, err := f.svc.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, stored.Status)
	assert.Equal(t, notifyBefore+1, testutil.ToFloat64(notify))
	assert.Equal(t, broadcastBefore+1, testutil.ToFloat64(broadcast))
}

func TestCheckAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	free, err := f.svc.CheckAvailability(ctx, courtID, at(9, 0), at(10, 0))
	require.NoError(t, err)
	assert.True(t, free.Available)
	assert.Empty(t, free.Conflicts)

	booked := f.create(t, courtID, userID, at(9, 0), at(10, 0))
	_, err = f.svc.AddMaintenanceBlock(ctx, ownerID, &model.MaintenanceBlock{CourtID: courtID, StartTime: at(9, 30), EndTime: at(11, 0)})
	require.NoError(t, err)

	busy, err := f.svc.CheckAvailability(ctx, courtID, at(9, 45), at(10, 15))
	require.NoError(t, err)
	assert.False(t, busy.Available)
	require.Len(t, busy.Conflicts, 1)
	assert.Equal(t, booked.ID, busy.Conflicts[0].ID)
	assert.Len(t, busy.MaintenanceBlocks, 1)

	touching, err := f.svc.CheckAvailability(ctx, courtID, at(11, 0), at(12, 0))
	require.NoError(t, err)
	assert.True(t, touching.Available)

	unknown, err := f.svc.CheckAvailability(ctx, "missing", at(9, 0), at(10, 0))
	require.NoError(t, err)
	assert.True(t, unknown.Available)

	_, err = f.svc.CheckAvailability(ctx, courtID, at(10, 0), at(10, 0))
	requireCode(t, err, apperrors.CodeValidation)
}

func TestAddMaintenanceBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reason := "  resurfacing \n the court  "

	block, err := f.svc.AddMaintenanceBlock(ctx, ownerID, &model.MaintenanceBlock{CourtID: courtID, StartTime: at(9, 0), EndTime: at(10, 0), Reason: &reason})
	require.NoError(t, err)
	assert.NotEmpty(t, block.ID)
	require.NotNil(t, block.Reason)
	assert.Equal(t, "resurfacing the court", *block.Reason)

	_, err = f.svc.AddMaintenanceBlock(ctx, "owner-2", &model.MaintenanceBlock{CourtID: courtID, StartTime: at(9, 0), EndTime: at(10, 0)})
	requireCode(t, err, bookingserrors.CodeUnauthorizedMaintenance)

	_, err = f.svc.AddMaintenanceBlock(ctx, ownerID, &model.MaintenanceBlock{CourtID: "missing", StartTime: at(9, 0), EndTime: at(10, 0)})
	requireCode(t, err, bookingserrors.CodeCourtNotFound)

	_, err = f.svc.AddMaintenanceBlock(ctx, ownerID, &model.MaintenanceBlock{CourtID: courtID, StartTime: at(10, 0), EndTime: at(9, 0)})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = f.svc.AddMaintenanceBlock(ctx, ownerID, nil)
	requireCode(t, err, apperrors.CodeInvalidInput)
}

func TestAddMaintenanceBlock_LeavesExistingBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t, courtID, userID, at(9, 0), at(10, 0))

	_, err := f.svc.AddMaintenanceBlock(ctx, ownerID, &model.MaintenanceBlock{CourtID: courtID, StartTime: at(8, 0), EndTime: at(12, 0)})
	require.NoError(t, err)

	stored, err := f.svc.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, stored.Status)
}
