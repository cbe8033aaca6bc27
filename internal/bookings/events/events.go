package events

import (
	"context"
	"errors"
	"time"

	"courtbook/pkg/metrics"
	"courtbook/pkg/model"
)

const (
	SchemaVersion = "1"

	TypeBookingCreated   = "booking.created"
	TypeBookingCancelled = "booking.cancelled"

	ownerTopicPrefix = "facility-owner:"
	userTopicPrefix  = "user:"

	transportRealtime = "realtime"
)

type correlationKey struct{}

// WithCorrelationID attaches the request id carried into published events.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func correlationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// Notifier tells the facility owner about booking changes. Delivery is the
// notification service's job.
type Notifier interface {
	NotifyBookingCreated(ctx context.Context, ownerID string, booking *model.Booking, court *model.Court, facility *model.Facility) error
	NotifyBookingCancelled(ctx context.Context, ownerID string, booking *model.Booking, court *model.Court, facility *model.Facility) error
}

// Broadcaster pushes booking changes to the owner's and the booker's
// realtime topics.
type Broadcaster interface {
	BookingCreated(ctx context.Context, ownerID string, booking *model.Booking, court *model.Court) error
	BookingCancelled(ctx context.Context, ownerID string, booking *model.Booking, court *model.Court) error
}

type NotificationEvent struct {
	Type         string              `json:"type"`
	OwnerID      string              `json:"owner_id"`
	UserID       string              `json:"user_id"`
	BookingID    string              `json:"booking_id"`
	CourtID      string              `json:"court_id"`
	CourtName    string              `json:"court_name"`
	FacilityID   string              `json:"facility_id"`
	FacilityName string              `json:"facility_name"`
	StartTime    time.Time           `json:"start_time"`
	EndTime      time.Time           `json:"end_time"`
	Price        float64             `json:"price"`
	Status       model.BookingStatus `json:"status"`
}

type EventNotifier struct {
	publisher Publisher
}

func NewEventNotifier(publisher Publisher) *EventNotifier {
	return &EventNotifier{publisher: publisher}
}

func (n *EventNotifier) notify(ctx context.Context, eventType, ownerID string, b *model.Booking, c *model.Court, f *model.Facility) error {
	return n.publisher.Publish(ctx, eventType, NotificationEvent{
		Type:         eventType,
		OwnerID:      ownerID,
		UserID:       b.UserID,
		BookingID:    b.ID,
		CourtID:      c.ID,
		CourtName:    c.Name,
		FacilityID:   f.ID,
		FacilityName: f.Name,
		StartTime:    b.StartTime,
		EndTime:      b.EndTime,
		Price:        b.Price,
		Status:       b.Status,
	})
}

func (n *EventNotifier) NotifyBookingCreated(ctx context.Context, ownerID string, b *model.Booking, c *model.Court, f *model.Facility) error {
	return n.notify(ctx, TypeBookingCreated, ownerID, b, c, f)
}

func (n *EventNotifier) NotifyBookingCancelled(ctx context.Context, ownerID string, b *model.Booking, c *model.Court, f *model.Facility) error {
	return n.notify(ctx, TypeBookingCancelled, ownerID, b, c, f)
}

type RealtimeBroadcaster struct {
	publisher Publisher
}

func NewRealtimeBroadcaster(publisher Publisher) *RealtimeBroadcaster {
	return &RealtimeBroadcaster{publisher: publisher}
}

func OwnerTopic(ownerID string) string { return ownerTopicPrefix + ownerID }

func UserTopic(userID string) string { return userTopicPrefix + userID }

// broadcast publishes to both topics even when the first one fails.
func (b *RealtimeBroadcaster) broadcast(ctx context.Context, eventType, ownerID string, booking *model.Booking, court *model.Court) error {
	event := model.BookingEvent{
		Type:       eventType,
		BookingID:  booking.ID,
		CourtID:    booking.CourtID,
		FacilityID: court.FacilityID,
		StartTime:  booking.StartTime,
		EndTime:    booking.EndTime,
	}

	ownerErr := b.publisher.Publish(ctx, OwnerTopic(ownerID), event)
	metrics.RecordEventPublished(transportRealtime, ownerErr)
	userErr := b.publisher.Publish(ctx, UserTopic(booking.UserID), event)
	metrics.RecordEventPublished(transportRealtime, userErr)

	return errors.Join(ownerErr, userErr)
}

func (b *RealtimeBroadcaster) BookingCreated(ctx context.Context, ownerID string, booking *model.Booking, court *model.Court) error {
	return b.broadcast(ctx, TypeBookingCreated, ownerID, booking, court)
}

func (b *RealtimeBroadcaster) BookingCancelled(ctx context.Context, ownerID string, booking *model.Booking, court *model.Court) error {
	return b.broadcast(ctx, TypeBookingCancelled, ownerID, booking, court)
}
