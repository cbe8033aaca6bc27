package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	bookingserrors "courtbook/internal/bookings/errors"
	"courtbook/pkg/client"
	"courtbook/pkg/config"
	pgtx "courtbook/pkg/db/postgres"
	"courtbook/pkg/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	courtCols   = []string{"id", "facility_id", "name", "open_minute", "close_minute", "price_per_hour", "created_at", "owner_id", "facility_name"}
	bookingCols = []string{"id", "court_id", "user_id", "start_time", "end_time", "status", "price", "created_at", "updated_at"}
)

func newPostgresRepo(t *testing.T) (BookingRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		Client:       &client.Client{Postgres: sqlx.NewDb(db, "postgres")},
	}
	return NewPostgresBookingRepository(cfg), mock
}

func TestPostgres_FindCourt(t *testing.T) {
	repo, mock := newPostgresRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(selectCourtSQL)).
		WithArgs("court-1").
		WillReturnRows(sqlmock.NewRows(courtCols).
			AddRow("court-1", "fac-1", "Court 1", 360, 1320, 500.0, now, "owner-1", "Center"))

	court, facility, err := repo.FindCourt(context.Background(), "court-1")
	require.NoError(t, err)
	assert.Equal(t, 360, court.OpenMinute)
	assert.Equal(t, 1320, court.CloseMinute)
	assert.Equal(t, 500.0, court.PricePerHour)
	assert.Equal(t, "owner-1", facility.OwnerID)
	assert.Equal(t, "fac-1", facility.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindCourtMissing(t *testing.T) {
	repo, mock := newPostgresRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectCourtSQL)).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(courtCols))

	_, _, err := repo.FindCourt(context.Background(), "nope")
	assert.ErrorIs(t, err, bookingserrors.ErrCourtMissing)
}

func TestPostgres_FindBookingByIDMissing(t *testing.T) {
	repo, mock := newPostgresRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectBookingSQL)).
		WithArgs("b-1").
		WillReturnRows(sqlmock.NewRows(bookingCols))

	_, err := repo.FindBookingByID(context.Background(), "b-1")
	assert.ErrorIs(t, err, bookingserrors.ErrNotFound)
}

func TestPostgres_CreateInTransactionLocksCourt(t *testing.T) {
	repo, mock := newPostgresRepo(t)
	now := time.Now().UTC()
	start := now.Add(time.Hour)
	end := start.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockCourtSQL)).
		WithArgs("court-1").
		WillReturnRows(sqlmock.NewRows(courtCols).
			AddRow("court-1", "fac-1", "Court 1", 0, 1439, 100.0, now, "owner-1", "Center"))
	mock.ExpectQuery(regexp.QuoteMeta(overlappingBookingsSQL)).
		WithArgs("court-1", start, end).
		WillReturnRows(sqlmock.NewRows(bookingCols))
	mock.ExpectExec("INSERT INTO bookings").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ExecuteTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
		if _, _, err := tx.LockCourt(ctx, "court-1"); err != nil {
			return err
		}
		conflicts, err := tx.FindOverlappingBookings(ctx, "court-1", start, end)
		if err != nil {
			return err
		}
		assert.Empty(t, conflicts)

		booking := &model.Booking{ID: "b-1", CourtID: "court-1", UserID: "u-1", StartTime: start, EndTime: end, Status: model.BookingPending, Price: 100}
		if err := tx.InsertBooking(ctx, booking); err != nil {
			return err
		}
		return tx.InsertPayment(ctx, &model.Payment{ID: "p-1", BookingID: "b-1", Amount: 100, Status: model.PaymentPending})
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertBookingExclusionViolation(t *testing.T) {
	repo, mock := newPostgresRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bookings").
		WillReturnError(&pq.Error{Code: pgtx.CodeExclusionViolation})
	mock.ExpectRollback()

	err := repo.ExecuteTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.InsertBooking(ctx, &model.Booking{ID: "b-1"})
	})

	assert.ErrorIs(t, err, bookingserrors.ErrOverlap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateBookingStatusStale(t *testing.T) {
	repo, mock := newPostgresRepo(t)
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(updateBookingStatusSQL)).
		WithArgs("b-1", model.BookingPending, model.BookingConfirmed, at).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ExecuteTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.UpdateBookingStatus(ctx, "b-1", model.BookingPending, model.BookingConfirmed, at)
	})

	assert.ErrorIs(t, err, bookingserrors.ErrStaleStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindByOwnerAppliesFilter(t *testing.T) {
	repo, mock := newPostgresRepo(t)
	from := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE f\.owner_id = \$1 AND c\.facility_id = \$2 AND b\.status = \$3 AND b\.end_time > \$4 ORDER BY b\.start_time DESC, b\.id LIMIT \$5 OFFSET \$6`).
		WithArgs("owner-1", "fac-1", model.BookingConfirmed, from, 10, int64(20)).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow("b-2", "court-1", "u-1", from.Add(2*time.Hour), from.Add(3*time.Hour), "CONFIRMED", 50.0, from, from).
			AddRow("b-1", "court-1", "u-2", from.Add(time.Hour), from.Add(2*time.Hour), "CONFIRMED", 50.0, from, from))

	bookings, err := repo.FindByOwner(context.Background(), "owner-1", model.BookingFilter{
		FacilityID: "fac-1",
		Status:     model.BookingConfirmed,
		From:       &from,
		Limit:      10,
		Offset:     20,
	})

	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, "b-2", bookings[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CountByUser(t *testing.T) {
	repo, mock := newPostgresRepo(t)

	mock.ExpectQuery(`(?s)SELECT COUNT\(\*\) FROM bookings b.*WHERE b\.user_id = \$1 AND b\.court_id = \$2$`).
		WithArgs("u-1", "court-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	total, err := repo.CountByUser(context.Background(), "u-1", model.BookingFilter{CourtID: "court-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestPostgres_CompleteEndedBookings(t *testing.T) {
	repo, mock := newPostgresRepo(t)
	before := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta(completeEndedSQL)).
		WithArgs(before, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.CompleteEndedBookings(context.Background(), before)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestPostgres_MarkPaymentsRefundedError(t *testing.T) {
	repo, mock := newPostgresRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(refundPaymentsSQL)).
		WithArgs("b-1", sqlmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.MarkPaymentsRefunded(context.Background(), "b-1")
	assert.ErrorContains(t, err, "connection reset")
}

func TestBuildListWhere_UserScopeWithWindow(t *testing.T) {
	from := time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)
	to := from.Add(4 * time.Hour)

	where, args := buildListWhere(scopeUser, "u-1", model.BookingFilter{From: &from, To: &to})

	assert.Equal(t, " WHERE b.user_id = $1 AND b.end_time > $2 AND b.start_time < $3", where)
	assert.Equal(t, []any{"u-1", from, to}, args)
}
