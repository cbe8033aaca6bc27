package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	bookingserrors "courtbook/internal/bookings/errors"
	"courtbook/internal/bookings/events"
	"courtbook/internal/bookings/refunds"
	"courtbook/internal/bookings/repository"
	"courtbook/internal/bookings/validator"
	"courtbook/pkg/config"
	apperrors "courtbook/pkg/errors"
	"courtbook/pkg/metrics"
	"courtbook/pkg/model"
	"courtbook/pkg/sanitizer"

	"github.com/google/uuid"
)

const (
	actorBooker = "booker"
	actorOwner  = "owner"
	actorAdmin  = "admin"
	actorSystem = "system"
)

type BookingService interface {
	CheckAvailability(ctx context.Context, courtID string, start, end time.Time) (*model.Availability, error)
	Create(ctx context.Context, req *model.CreateBookingRequest) (*model.Booking, error)
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	Confirm(ctx context.Context, bookingID, ownerID string) (*model.Booking, error)
	Cancel(ctx context.Context, bookingID, actorID string, role model.Role) (*model.Booking, error)
	Complete(ctx context.Context, bookingID string) (*model.Booking, error)
	CompleteEnded(ctx context.Context, before time.Time) (int64, error)
	Delete(ctx context.Context, bookingID, actorID string) error
	ListForUser(ctx context.Context, userID string, filter model.BookingFilter) ([]*model.Booking, int64, error)
	ListForOwner(ctx context.Context, ownerID string, filter model.BookingFilter) ([]*model.Booking, int64, error)
	AddMaintenanceBlock(ctx context.Context, ownerID string, block *model.MaintenanceBlock) (*model.MaintenanceBlock, error)
	Ping(ctx context.Context) error
}

type Option func(*bookingService)

// WithClock replaces the wall clock used for timestamps and the cancellation window.
func WithClock(now func() time.Time) Option {
	return func(s *bookingService) {
		s.now = now
	}
}

type bookingService struct {
	repo        repository.BookingRepository
	validator   *validator.BookingValidator
	notifier    events.Notifier
	broadcaster events.Broadcaster
	refunder    refunds.Refunder
	cfg         *config.Config
	now         func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	validator *validator.BookingValidator,
	notifier events.Notifier,
	broadcaster events.Broadcaster,
	refunder refunds.Refunder,
	cfg *config.Config,
	opts ...Option,
) BookingService {
	if notifier == nil {
		notifier = events.NewEventNotifier(events.NopPublisher{})
	}
	if broadcaster == nil {
		broadcaster = events.NewRealtimeBroadcaster(events.NopPublisher{})
	}
	if refunder == nil {
		refunder = refunds.NewDirectRefunder(repo)
	}

	s := &bookingService{
		repo:        repo,
		validator:   validator,
		notifier:    notifier,
		broadcaster: broadcaster,
		refunder:    refunder,
		cfg:         cfg,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *bookingService) CheckAvailability(ctx context.Context, courtID string, start, end time.Time) (*model.Availability, error) {
	if courtID == "" {
		return nil, apperrors.InvalidInput("Court ID cannot be empty")
	}
	if err := s.validator.ValidateInterval(start, end); err != nil {
		return nil, apperrors.Validation("Invalid interval", map[string]any{"error": err.Error()})
	}

	var conflicts []*model.Booking
	var blocks []*model.MaintenanceBlock
	var errBookings, errBlocks error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		conflicts, errBookings = s.repo.FindOverlappingBookings(ctx, courtID, start, end)
		if errBookings != nil {
			s.cfg.Log.Error("Failed to find overlapping bookings", "court_id", courtID, "error", errBookings)
			errBookings = apperrors.Internal("Failed to check availability", errBookings)
		}
	}()

	go func() {
		defer wg.Done()
		blocks, errBlocks = s.repo.FindOverlappingMaintenance(ctx, courtID, start, end)
		if errBlocks != nil {
			s.cfg.Log.Error("Failed to find maintenance blocks", "court_id", courtID, "error", errBlocks)
			errBlocks = apperrors.Internal("Failed to check availability", errBlocks)
		}
	}()

	wg.Wait()
	if errBookings != nil {
		return nil, errBookings
	}
	if errBlocks != nil {
		return nil, errBlocks
	}

	return &model.Availability{
		Available:         len(conflicts) == 0 && len(blocks) == 0,
		Conflicts:         conflicts,
		MaintenanceBlocks: blocks,
	}, nil
}

// Create books [start, end) on a court. The court lock, every check and both
// inserts share one transaction, so two creates for the same court never
// interleave between the overlap check and the insert.
func (s *bookingService) Create(ctx context.Context, req *model.CreateBookingRequest) (*model.Booking, error) {
	if err := s.validator.ValidateCreate(req); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return nil, apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}

	now := s.now().UTC()
	booking := &model.Booking{
		ID:        uuid.NewString(),
		CourtID:   req.CourtID,
		UserID:    req.UserID,
		StartTime: req.StartTime.UTC(),
		EndTime:   req.EndTime.UTC(),
		Status:    model.BookingPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var court *model.Court
	var facility *model.Facility
	err := s.repo.ExecuteTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		c, f, err := tx.LockCourt(ctx, booking.CourtID)
		if err != nil {
			if errors.Is(err, bookingserrors.ErrCourtMissing) {
				return bookingserrors.New(bookingserrors.ErrCourtNotFound).WithDetail("court_id", booking.CourtID)
			}
			return apperrors.Internal("Failed to lock court", err)
		}

		if !c.WithinOperatingHours(booking.StartTime, booking.EndTime, s.cfg.Location) {
			return bookingserrors.New(bookingserrors.ErrOutsideOperatingHours).WithDetails(map[string]any{
				"open_minute":  c.OpenMinute,
				"close_minute": c.CloseMinute,
			})
		}

		conflicts, err := tx.FindOverlappingBookings(ctx, c.ID, booking.StartTime, booking.EndTime)
		if err != nil {
			return apperrors.Internal("Failed to check existing bookings", err)
		}
		if len(conflicts) > 0 {
			return bookingserrors.New(bookingserrors.ErrSlotUnavailable).WithDetail("conflicts", len(conflicts))
		}

		blocks, err := tx.FindOverlappingMaintenance(ctx, c.ID, booking.StartTime, booking.EndTime)
		if err != nil {
			return apperrors.Internal("Failed to check maintenance blocks", err)
		}
		if len(blocks) > 0 {
			return bookingserrors.New(bookingserrors.ErrCourtUnderMaintenance).WithDetail("maintenance_blocks", len(blocks))
		}

		price := c.PriceFor(booking.StartTime, booking.EndTime)
		if req.Price != nil && !model.PricesEqual(*req.Price, price) {
			return bookingserrors.New(bookingserrors.ErrPriceMismatch).WithDetails(map[string]any{
				"expected_price": price,
				"given_price":    *req.Price,
			})
		}
		booking.Price = price

		if err := tx.InsertBooking(ctx, booking); err != nil {
			if errors.Is(err, bookingserrors.ErrOverlap) {
				return bookingserrors.New(bookingserrors.ErrSlotUnavailable)
			}
			return apperrors.Internal("Failed to create booking", err)
		}

		payment := &model.Payment{
			ID:        uuid.NewString(),
			BookingID: booking.ID,
			Amount:    price,
			Status:    model.PaymentPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertPayment(ctx, payment); err != nil {
			return apperrors.Internal("Failed to create payment", err)
		}

		court, facility = c, f
		return nil
	})
	if err != nil {
		err = s.txError(err, "Failed to create booking")
		s.recordRejection(err)
		s.cfg.Log.Warn("Booking rejected",
			"court_id", booking.CourtID,
			"user_id", booking.UserID,
			"start_time", booking.StartTime,
			"end_time", booking.EndTime,
			"error", err,
		)
		return nil, err
	}

	metrics.RecordBookingCreated()
	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"court_id", booking.CourtID,
		"user_id", booking.UserID,
		"start_time", booking.StartTime,
		"price", booking.Price,
	)

	ctx, cancel := s.sideEffectContext(ctx)
	defer cancel()
	if err := s.notifier.NotifyBookingCreated(ctx, facility.OwnerID, booking, court, facility); err != nil {
		s.sideEffectFailed(metrics.SideEffectNotify, booking.ID, err)
	}
	if err := s.broadcaster.BookingCreated(ctx, facility.OwnerID, booking, court); err != nil {
		s.sideEffectFailed(metrics.SideEffectBroadcast, booking.ID, err)
	}

	return booking, nil
}

func (s *bookingService) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindBookingByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, bookingserrors.New(bookingserrors.ErrBookingNotFound).WithDetail("id", id)
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}

func (s *bookingService) Confirm(ctx context.Context, bookingID, ownerID string) (*model.Booking, error) {
	if bookingID == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	now := s.now().UTC()
	var booking *model.Booking
	err := s.repo.ExecuteTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		b, _, f, err := s.lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if f.OwnerID != ownerID {
			return bookingserrors.New(bookingserrors.ErrUnauthorizedConfirmation)
		}
		if b.Status != model.BookingPending {
			return bookingserrors.New(bookingserrors.ErrBookingNotPending).WithDetail("status", b.Status)
		}
		if err := s.transition(ctx, tx, b, model.BookingConfirmed, now); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		err = s.txError(err, "Failed to confirm booking")
		s.cfg.Log.Warn("Booking confirmation failed", "id", bookingID, "owner_id", ownerID, "error", err)
		return nil, err
	}

	metrics.RecordTransition(string(model.BookingConfirmed), actorOwner)
	s.cfg.Log.Info("Booking confirmed", "id", bookingID, "owner_id", ownerID)
	return booking, nil
}

// Cancel moves a live booking to CANCELLED. The booker must cancel at least
// CancellationGrace before the start; the facility owner and admins may
// cancel at any time.
func (s *bookingService) Cancel(ctx context.Context, bookingID, actorID string, role model.Role) (*model.Booking, error) {
	if bookingID == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	now := s.now().UTC()
	var booking *model.Booking
	var court *model.Court
	var facility *model.Facility
	var actor string
	err := s.repo.ExecuteTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		b, c, f, err := s.lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}

		isAdmin := role == model.RoleAdmin
		isOwner := actorID != "" && f.OwnerID == actorID
		isBooker := actorID != "" && b.UserID == actorID
		if !isBooker && !isOwner && !isAdmin {
			return bookingserrors.New(bookingserrors.ErrUnauthorizedCancellation)
		}

		switch b.Status {
		case model.BookingCancelled:
			return bookingserrors.New(bookingserrors.ErrBookingAlreadyCancelled)
		case model.BookingCompleted:
			return bookingserrors.New(bookingserrors.ErrCannotCancelCompleted)
		}

		if !isOwner && !isAdmin && b.StartTime.Sub(now) < s.cfg.CancellationGrace {
			return bookingserrors.New(bookingserrors.ErrCancellationWindowClosed).
				WithDetail("grace_minutes", s.cfg.CancellationGrace.Minutes())
		}

		if err := s.transition(ctx, tx, b, model.BookingCancelled, now); err != nil {
			return err
		}

		booking, court, facility = b, c, f
		switch {
		case isAdmin:
			actor = actorAdmin
		case isOwner:
			actor = actorOwner
		default:
			actor = actorBooker
		}
		return nil
	})
	if err != nil {
		err = s.txError(err, "Failed to cancel booking")
		s.cfg.Log.Warn("Booking cancellation failed", "id", bookingID, "actor_id", actorID, "role", role, "error", err)
		return nil, err
	}

	metrics.RecordTransition(string(model.BookingCancelled), actor)
	s.cfg.Log.Info("Booking cancelled", "id", bookingID, "actor_id", actorID, "actor", actor)

	ctx, cancel := s.sideEffectContext(ctx)
	defer cancel()
	if err := s.refunder.RequestRefund(ctx, booking); err != nil {
		s.sideEffectFailed(metrics.SideEffectRefund, booking.ID, err)
	}
	if err := s.notifier.NotifyBookingCancelled(ctx, facility.OwnerID, booking, court, facility); err != nil {
		s.sideEffectFailed(metrics.SideEffectNotify, booking.ID, err)
	}
	if err := s.broadcaster.BookingCancelled(ctx, facility.OwnerID, booking, court); err != nil {
		s.sideEffectFailed(metrics.SideEffectBroadcast, booking.ID, err)
	}

	return booking, nil
}

func (s *bookingService) Complete(ctx context.Context, bookingID string) (*model.Booking, error) {
	if bookingID == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	now := s.now().UTC()
	var booking *model.Booking
	err := s.repo.ExecuteTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return bookingLookupError(err, bookingID)
		}
		if b.Status != model.BookingConfirmed {
			return bookingserrors.New(bookingserrors.ErrBookingNotConfirmed).WithDetail("status", b.Status)
		}
		if err := s.transition(ctx, tx, b, model.BookingCompleted, now); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, s.txError(err, "Failed to complete booking")
	}

	metrics.RecordTransition(string(model.BookingCompleted), actorSystem)
	s.cfg.Log.Info("Booking completed", "id", bookingID)
	return booking, nil
}

func (s *bookingService) CompleteEnded(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.repo.CompleteEndedBookings(ctx, before)
	if err != nil {
		s.cfg.Log.Error("Failed to complete ended bookings", "before", before, "error", err)
		return 0, apperrors.Internal("Failed to complete ended bookings", err)
	}

	metrics.RecordCompleted(n)
	s.cfg.Log.Debug("Completion sweep finished", "before", before, "completed", n)
	return n, nil
}

// Delete removes a terminal booking and its payment. Only the booker may do it.
func (s *bookingService) Delete(ctx context.Context, bookingID, actorID string) error {
	if bookingID == "" {
		return apperrors.InvalidInput("Booking ID cannot be empty")
	}

	err := s.repo.ExecuteTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return bookingLookupError(err, bookingID)
		}
		if actorID == "" || b.UserID != actorID {
			return bookingserrors.New(bookingserrors.ErrUnauthorizedDeletion)
		}
		if !b.Status.IsTerminal() {
			return bookingserrors.New(bookingserrors.ErrBookingNotDeletable).WithDetail("status", b.Status)
		}
		if err := tx.DeleteBooking(ctx, bookingID); err != nil {
			return bookingLookupError(err, bookingID)
		}
		return nil
	})
	if err != nil {
		err = s.txError(err, "Failed to delete booking")
		s.cfg.Log.Warn("Booking deletion failed", "id", bookingID, "actor_id", actorID, "error", err)
		return err
	}

	s.cfg.Log.Info("Booking deleted successfully", "id", bookingID)
	return nil
}

func (s *bookingService) ListForUser(ctx context.Context, userID string, filter model.BookingFilter) ([]*model.Booking, int64, error) {
	if userID == "" {
		return nil, 0, apperrors.InvalidInput("User ID cannot be empty")
	}
	return s.list(ctx, "user_id", userID, filter, s.repo.FindByUser, s.repo.CountByUser)
}

func (s *bookingService) ListForOwner(ctx context.Context, ownerID string, filter model.BookingFilter) ([]*model.Booking, int64, error) {
	if ownerID == "" {
		return nil, 0, apperrors.InvalidInput("Owner ID cannot be empty")
	}
	return s.list(ctx, "owner_id", ownerID, filter, s.repo.FindByOwner, s.repo.CountByOwner)
}

type (
	findFunc  func(ctx context.Context, id string, filter model.BookingFilter) ([]*model.Booking, error)
	countFunc func(ctx context.Context, id string, filter model.BookingFilter) (int64, error)
)

func (s *bookingService) list(ctx context.Context, key, id string, filter model.BookingFilter, find findFunc, count countFunc) ([]*model.Booking, int64, error) {
	if err := s.validator.ValidateFilter(&filter); err != nil {
		return nil, 0, apperrors.Validation("Invalid filter", map[string]any{"error": err.Error()})
	}
	filter.Limit = config.NormalizePaginationLimit(filter.Limit)
	filter.Offset = config.NormalizeOffset(filter.Offset)

	var total int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		total, errCount = count(ctx, id, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", key, id, "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = find(ctx, id, filter)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings",
				key, id,
				"limit", filter.Limit,
				"offset", filter.Offset,
				"error", errFind,
			)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	s.cfg.Log.Debug("Booking list completed", key, id, "count", len(bookings), "total_count", total)
	return bookings, total, nil
}

// AddMaintenanceBlock marks a court unavailable. Existing bookings in the
// interval are left as they are.
func (s *bookingService) AddMaintenanceBlock(ctx context.Context, ownerID string, block *model.MaintenanceBlock) (*model.MaintenanceBlock, error) {
	if block == nil {
		return nil, apperrors.InvalidInput("maintenance block is required")
	}
	block.Reason = sanitizer.NormalizeReason(block.Reason)
	if err := s.validator.ValidateMaintenance(block); err != nil {
		s.cfg.Log.Warn("Maintenance block validation failed", "court_id", block.CourtID, "error", err)
		return nil, apperrors.Validation("Maintenance block validation failed", map[string]any{"error": err.Error()})
	}

	_, facility, err := s.repo.FindCourt(ctx, block.CourtID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrCourtMissing) {
			return nil, bookingserrors.New(bookingserrors.ErrCourtNotFound).WithDetail("court_id", block.CourtID)
		}
		return nil, apperrors.Internal("Failed to load court", err)
	}
	if ownerID == "" || facility.OwnerID != ownerID {
		return nil, bookingserrors.New(bookingserrors.ErrUnauthorizedMaintenance)
	}

	block.ID = uuid.NewString()
	block.StartTime = block.StartTime.UTC()
	block.EndTime = block.EndTime.UTC()
	block.CreatedAt = s.now().UTC()
	if err := s.repo.InsertMaintenanceBlock(ctx, block); err != nil {
		if errors.Is(err, bookingserrors.ErrCourtMissing) {
			return nil, bookingserrors.New(bookingserrors.ErrCourtNotFound).WithDetail("court_id", block.CourtID)
		}
		s.cfg.Log.Error("Failed to add maintenance block", "court_id", block.CourtID, "error", err)
		return nil, apperrors.Internal("Failed to add maintenance block", err)
	}

	s.cfg.Log.Info("Maintenance block added",
		"id", block.ID,
		"court_id", block.CourtID,
		"start_time", block.StartTime,
		"end_time", block.EndTime,
	)
	return block, nil
}

func (s *bookingService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// --- Helpers ---

// lockBooking locks a booking and loads its court and facility in tx.
func (s *bookingService) lockBooking(ctx context.Context, tx repository.Tx, id string) (*model.Booking, *model.Court, *model.Facility, error) {
	b, err := tx.LockBooking(ctx, id)
	if err != nil {
		return nil, nil, nil, bookingLookupError(err, id)
	}
	c, f, err := tx.FindCourt(ctx, b.CourtID)
	if err != nil {
		return nil, nil, nil, apperrors.Internal("Failed to load booking court", err)
	}
	return b, c, f, nil
}

func (s *bookingService) transition(ctx context.Context, tx repository.Tx, b *model.Booking, to model.BookingStatus, at time.Time) error {
	if err := tx.UpdateBookingStatus(ctx, b.ID, b.Status, to, at); err != nil {
		if errors.Is(err, bookingserrors.ErrStaleStatus) {
			return apperrors.New(apperrors.CodeConflict, "Booking changed concurrently, retry the request", http.StatusConflict)
		}
		return bookingLookupError(err, b.ID)
	}
	b.Status = to
	b.UpdatedAt = at
	return nil
}

func bookingLookupError(err error, id string) error {
	if errors.Is(err, bookingserrors.ErrNotFound) {
		return bookingserrors.New(bookingserrors.ErrBookingNotFound).WithDetail("id", id)
	}
	return apperrors.Internal("Failed to load booking", err)
}

// txError turns a failed transaction into the error the caller sees.
func (s *bookingService) txError(err error, message string) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, bookingserrors.ErrOverlap) {
		return bookingserrors.New(bookingserrors.ErrSlotUnavailable)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Timeout("Booking store did not answer in time")
	}
	s.cfg.Log.Error(message, "error", err)
	return apperrors.Internal(message, err)
}

func (s *bookingService) recordRejection(err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		metrics.RecordBookingRejection(appErr.Code)
	}
}

// sideEffectContext keeps post-commit work alive after the caller goes away.
func (s *bookingService) sideEffectContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if s.cfg.WriteTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.cfg.WriteTimeout)
}

func (s *bookingService) sideEffectFailed(kind, bookingID string, err error) {
	metrics.RecordSideEffectFailure(kind)
	s.cfg.Log.Warn("Booking side effect failed", "kind", kind, "booking_id", bookingID, "error", err)
}
