package repository

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	bookingserrors "courtbook/internal/bookings/errors"
	"courtbook/pkg/model"
)

type memoryState struct {
	facilities  map[string]model.Facility
	courts      map[string]model.Court
	bookings    map[string]model.Booking
	maintenance map[string]model.MaintenanceBlock
	payments    map[string]model.Payment
}

func newMemoryState() *memoryState {
	return &memoryState{
		facilities:  map[string]model.Facility{},
		courts:      map[string]model.Court{},
		bookings:    map[string]model.Booking{},
		maintenance: map[string]model.MaintenanceBlock{},
		payments:    map[string]model.Payment{},
	}
}

func (s *memoryState) clone() *memoryState {
	return &memoryState{
		facilities:  maps.Clone(s.facilities),
		courts:      maps.Clone(s.courts),
		bookings:    maps.Clone(s.bookings),
		maintenance: maps.Clone(s.maintenance),
		payments:    maps.Clone(s.payments),
	}
}

func (s *memoryState) findCourt(courtID string) (*model.Court, *model.Facility, error) {
	court, ok := s.courts[courtID]
	if !ok {
		return nil, nil, bookingserrors.ErrCourtMissing
	}
	facility, ok := s.facilities[court.FacilityID]
	if !ok {
		return nil, nil, bookingserrors.ErrCourtMissing
	}
	return &court, &facility, nil
}

func (s *memoryState) findBooking(id string) (*model.Booking, error) {
	booking, ok := s.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	return &booking, nil
}

func (s *memoryState) overlappingBookings(courtID string, start, end time.Time) []*model.Booking {
	out := []*model.Booking{}
	for _, b := range s.bookings {
		if b.CourtID == courtID && b.Status.IsLive() && b.Overlaps(start, end) {
			out = append(out, &b)
		}
	}
	slices.SortFunc(out, func(a, b *model.Booking) int {
		return a.StartTime.Compare(b.StartTime)
	})
	return out
}

func (s *memoryState) overlappingMaintenance(courtID string, start, end time.Time) []*model.MaintenanceBlock {
	out := []*model.MaintenanceBlock{}
	for _, m := range s.maintenance {
		if m.CourtID == courtID && m.Overlaps(start, end) {
			out = append(out, &m)
		}
	}
	slices.SortFunc(out, func(a, b *model.MaintenanceBlock) int {
		return a.StartTime.Compare(b.StartTime)
	})
	return out
}

// MemoryBookingRepository keeps everything in process. A transaction holds
// the store lock for its whole run and works on a copy that replaces the
// committed state only when fn succeeds.
type MemoryBookingRepository struct {
	mu    sync.RWMutex
	state *memoryState
}

func NewMemoryBookingRepository() *MemoryBookingRepository {
	return &MemoryBookingRepository{state: newMemoryState()}
}

func (r *MemoryBookingRepository) AddFacility(facility model.Facility) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.facilities[facility.ID] = facility
}

func (r *MemoryBookingRepository) AddCourt(court model.Court) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.courts[court.ID] = court
}

// Payments returns the payment rows of a booking.
func (r *MemoryBookingRepository) Payments(bookingID string) []model.Payment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Payment
	for _, p := range r.state.payments {
		if p.BookingID == bookingID {
			out = append(out, p)
		}
	}
	return out
}

func (r *MemoryBookingRepository) FindCourt(_ context.Context, courtID string) (*model.Court, *model.Facility, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.findCourt(courtID)
}

func (r *MemoryBookingRepository) FindBookingByID(_ context.Context, id string) (*model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.findBooking(id)
}

func (r *MemoryBookingRepository) FindOverlappingBookings(_ context.Context, courtID string, start, end time.Time) ([]*model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.overlappingBookings(courtID, start, end), nil
}

func (r *MemoryBookingRepository) FindOverlappingMaintenance(_ context.Context, courtID string, start, end time.Time) ([]*model.MaintenanceBlock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.overlappingMaintenance(courtID, start, end), nil
}

func (r *MemoryBookingRepository) ExecuteTransaction(ctx context.Context, fn TxFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{state: r.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.state = tx.state
	return nil
}

func (r *MemoryBookingRepository) list(scope listScope, id string, filter model.BookingFilter) []*model.Booking {
	var out []*model.Booking
	for _, b := range r.state.bookings {
		court, ok := r.state.courts[b.CourtID]
		if !ok {
			continue
		}
		switch scope {
		case scopeOwner:
			if r.state.facilities[court.FacilityID].OwnerID != id {
				continue
			}
		default:
			if b.UserID != id {
				continue
			}
		}
		if filter.CourtID != "" && b.CourtID != filter.CourtID {
			continue
		}
		if filter.FacilityID != "" && court.FacilityID != filter.FacilityID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if filter.From != nil && !b.EndTime.After(*filter.From) {
			continue
		}
		if filter.To != nil && !b.StartTime.Before(*filter.To) {
			continue
		}
		out = append(out, &b)
	}

	slices.SortFunc(out, func(a, b *model.Booking) int {
		if c := b.StartTime.Compare(a.StartTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func page(bookings []*model.Booking, limit int, offset int64) []*model.Booking {
	if offset >= int64(len(bookings)) {
		return []*model.Booking{}
	}
	bookings = bookings[offset:]
	if limit > 0 && limit < len(bookings) {
		bookings = bookings[:limit]
	}
	return bookings
}

func (r *MemoryBookingRepository) FindByUser(_ context.Context, userID string, filter model.BookingFilter) ([]*model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return page(r.list(scopeUser, userID, filter), filter.Limit, filter.Offset), nil
}

func (r *MemoryBookingRepository) CountByUser(_ context.Context, userID string, filter model.BookingFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.list(scopeUser, userID, filter))), nil
}

func (r *MemoryBookingRepository) FindByOwner(_ context.Context, ownerID string, filter model.BookingFilter) ([]*model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return page(r.list(scopeOwner, ownerID, filter), filter.Limit, filter.Offset), nil
}

func (r *MemoryBookingRepository) CountByOwner(_ context.Context, ownerID string, filter model.BookingFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.list(scopeOwner, ownerID, filter))), nil
}

func (r *MemoryBookingRepository) InsertMaintenanceBlock(_ context.Context, block *model.MaintenanceBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.state.courts[block.CourtID]; !ok {
		return bookingserrors.ErrCourtMissing
	}
	r.state.maintenance[block.ID] = *block
	return nil
}

func (r *MemoryBookingRepository) MarkPaymentsRefunded(_ context.Context, bookingID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	now := time.Now().UTC()
	for id, p := range r.state.payments {
		if p.BookingID != bookingID {
			continue
		}
		if p.Status != model.PaymentPending && p.Status != model.PaymentSucceeded {
			continue
		}
		p.Status = model.PaymentRefunded
		p.UpdatedAt = now
		r.state.payments[id] = p
		n++
	}
	return n, nil
}

func (r *MemoryBookingRepository) CompleteEndedBookings(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	now := time.Now().UTC()
	for id, b := range r.state.bookings {
		if b.Status != model.BookingConfirmed || b.EndTime.After(before) {
			continue
		}
		b.Status = model.BookingCompleted
		b.UpdatedAt = now
		r.state.bookings[id] = b
		n++
	}
	return n, nil
}

func (r *MemoryBookingRepository) Ping(context.Context) error {
	return nil
}

type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) FindCourt(_ context.Context, courtID string) (*model.Court, *model.Facility, error) {
	return t.state.findCourt(courtID)
}

func (t *memoryTx) FindBookingByID(_ context.Context, id string) (*model.Booking, error) {
	return t.state.findBooking(id)
}

func (t *memoryTx) FindOverlappingBookings(_ context.Context, courtID string, start, end time.Time) ([]*model.Booking, error) {
	return t.state.overlappingBookings(courtID, start, end), nil
}

func (t *memoryTx) FindOverlappingMaintenance(_ context.Context, courtID string, start, end time.Time) ([]*model.MaintenanceBlock, error) {
	return t.state.overlappingMaintenance(courtID, start, end), nil
}

// LockCourt and LockBooking are plain reads; the store lock is already held.
func (t *memoryTx) LockCourt(_ context.Context, courtID string) (*model.Court, *model.Facility, error) {
	return t.state.findCourt(courtID)
}

func (t *memoryTx) LockBooking(_ context.Context, id string) (*model.Booking, error) {
	return t.state.findBooking(id)
}

func (t *memoryTx) InsertBooking(_ context.Context, booking *model.Booking) error {
	if len(t.state.overlappingBookings(booking.CourtID, booking.StartTime, booking.EndTime)) > 0 {
		return bookingserrors.ErrOverlap
	}
	t.state.bookings[booking.ID] = *booking
	return nil
}

func (t *memoryTx) InsertPayment(_ context.Context, payment *model.Payment) error {
	t.state.payments[payment.ID] = *payment
	return nil
}

func (t *memoryTx) UpdateBookingStatus(_ context.Context, id string, from, to model.BookingStatus, at time.Time) error {
	booking, ok := t.state.bookings[id]
	if !ok {
		return bookingserrors.ErrNotFound
	}
	if booking.Status != from {
		return bookingserrors.ErrStaleStatus
	}
	booking.Status = to
	booking.UpdatedAt = at
	t.state.bookings[id] = booking
	return nil
}

func (t *memoryTx) DeleteBooking(_ context.Context, id string) error {
	if _, ok := t.state.bookings[id]; !ok {
		return bookingserrors.ErrNotFound
	}
	delete(t.state.bookings, id)
	for pid, p := range t.state.payments {
		if p.BookingID == id {
			delete(t.state.payments, pid)
		}
	}
	return nil
}
