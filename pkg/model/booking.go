package model

import (
	"time"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingCompleted BookingStatus = "COMPLETED"
)

// LiveBookingStatuses are the statuses that occupy a court interval.
var LiveBookingStatuses = []BookingStatus{BookingPending, BookingConfirmed}

func (s BookingStatus) IsLive() bool {
	return s == BookingPending || s == BookingConfirmed
}

func (s BookingStatus) IsTerminal() bool {
	return s == BookingCancelled || s == BookingCompleted
}

type Booking struct {
	ID        string        `json:"id" bson:"_id" db:"id"`
	CourtID   string        `json:"court_id" bson:"court_id" db:"court_id"`
	UserID    string        `json:"user_id" bson:"user_id" db:"user_id"`
	StartTime time.Time     `json:"start_time" bson:"start_time" db:"start_time"`
	EndTime   time.Time     `json:"end_time" bson:"end_time" db:"end_time"`
	Status    BookingStatus `json:"status" bson:"status" db:"status"`
	Price     float64       `json:"price" bson:"price" db:"price"`
	CreatedAt time.Time     `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// Overlaps reports whether b occupies any instant of [start, end).
func (b *Booking) Overlaps(start, end time.Time) bool {
	return Overlaps(b.StartTime, b.EndTime, start, end)
}

// CreateBookingRequest is the input of a booking creation. Price is optional;
// when set it must match the price derived from the court rate.
type CreateBookingRequest struct {
	CourtID   string    `json:"court_id" validate:"required,max=64"`
	UserID    string    `json:"-" validate:"required,max=128"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	Price     *float64  `json:"price,omitempty" validate:"omitempty,min=0"`
}

type BookingFilter struct {
	CourtID    string        `json:"court_id,omitempty" validate:"omitempty,max=64"`
	FacilityID string        `json:"facility_id,omitempty" validate:"omitempty,max=64"`
	Status     BookingStatus `json:"status,omitempty" validate:"omitempty,booking_status"`
	From       *time.Time    `json:"from,omitempty"`
	To         *time.Time    `json:"to,omitempty"`
	Limit      int           `json:"limit"`
	Offset     int64         `json:"offset"`
}

type Availability struct {
	Available         bool                `json:"available"`
	Conflicts         []*Booking          `json:"conflicts"`
	MaintenanceBlocks []*MaintenanceBlock `json:"maintenance_blocks"`
}

// BookingEvent is the payload broadcast to realtime subscribers.
type BookingEvent struct {
	Type       string    `json:"type"`
	BookingID  string    `json:"booking_id"`
	CourtID    string    `json:"court_id"`
	FacilityID string    `json:"facility_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

// Overlaps is the half-open interval test: [a,b) and [c,d) share an instant iff a < d && c < b.
func Overlaps(a, b, c, d time.Time) bool {
	return a.Before(d) && c.Before(b)
}
