package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"courtbook/internal/bookings/repository"
	"courtbook/internal/bookings/validator"
	"courtbook/pkg/config"
	apperrors "courtbook/pkg/errors"
	"courtbook/pkg/logger"
	"courtbook/pkg/model"

	"github.com/stretchr/testify/require"
)

const (
	ownerID = "owner-1"
	userID  = "user-1"
	courtID = "court-1"
)

// day is a Monday far in the future so every test booking is upcoming.
var day = time.Date(2030, 6, 3, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type recordingNotifier struct {
	mu        sync.Mutex
	created   []string
	cancelled []string
	err       error
}

func (n *recordingNotifier) NotifyBookingCreated(_ context.Context, owner string, b *model.Booking, _ *model.Court, _ *model.Facility) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, owner+"/"+b.ID)
	return n.err
}

func (n *recordingNotifier) NotifyBookingCancelled(_ context.Context, owner string, b *model.Booking, _ *model.Court, _ *model.Facility) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, owner+"/"+b.ID)
	return n.err
}

type recordingBroadcaster struct {
	mu        sync.Mutex
	created   int
	cancelled int
	err       error
}

func (b *recordingBroadcaster) BookingCreated(context.Context, string, *model.Booking, *model.Court) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created++
	return b.err
}

func (b *recordingBroadcaster) BookingCancelled(context.Context, string, *model.Booking, *model.Court) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelled++
	return b.err
}

type recordingRefunder struct {
	mu       sync.Mutex
	bookings []string
	err      error
}

func (r *recordingRefunder) RequestRefund(_ context.Context, b *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings = append(r.bookings, b.ID)
	return r.err
}

type fixture struct {
	svc         BookingService
	repo        *repository.MemoryBookingRepository
	notifier    *recordingNotifier
	broadcaster *recordingBroadcaster
	refunder    *recordingRefunder
	now         time.Time
}

func testConfig() *config.Config {
	return &config.Config{
		Location:          time.UTC,
		CancellationGrace: 30 * time.Minute,
		WriteTimeout:      time.Second,
		Log:               logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard}),
	}
}

// newFixture wires the service over a memory store holding one facility with
// a court open 06:00 to 22:00 at 500 per hour.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, testConfig())
}

func newFixtureWithConfig(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()

	repo := repository.NewMemoryBookingRepository()
	repo.AddFacility(model.Facility{ID: "fac-1", OwnerID: ownerID, Name: "Center"})
	repo.AddCourt(model.Court{ID: courtID, FacilityID: "fac-1", Name: "Court 1", OpenMinute: 360, CloseMinute: 1320, PricePerHour: 500})
	repo.AddFacility(model.Facility{ID: "fac-2", OwnerID: "owner-2", Name: "Park"})
	repo.AddCourt(model.Court{ID: "court-2", FacilityID: "fac-2", Name: "Court 2", OpenMinute: 0, CloseMinute: 1439, PricePerHour: 120})

	f := &fixture{
		repo:        repo,
		notifier:    &recordingNotifier{},
		broadcaster: &recordingBroadcaster{},
		refunder:    &recordingRefunder{},
		now:         at(8, 0),
	}
	f.svc = NewBookingService(repo, validator.NewBookingValidator(cfg.Log), f.notifier, f.broadcaster, f.refunder, cfg,
		WithClock(func() time.Time { return f.now }))
	return f
}

func (f *fixture) create(t *testing.T, court, user string, start, end time.Time) *model.Booking {
	t.Helper()
	b, err := f.svc.Create(context.Background(), &model.CreateBookingRequest{CourtID: court, UserID: user, StartTime: start, EndTime: end})
	require.NoError(t, err)
	return b
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	require.Equal(t, code, appErr.Code, "error: %v", err)
}
