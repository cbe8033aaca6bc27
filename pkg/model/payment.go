package model

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentSucceeded PaymentStatus = "SUCCEEDED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// Payment is the placeholder record owned by the payment subsystem. The
// scheduler only creates it; refunds flip it to REFUNDED.
type Payment struct {
	ID        string        `json:"id" bson:"_id" db:"id"`
	BookingID string        `json:"booking_id" bson:"booking_id" db:"booking_id"`
	Amount    float64       `json:"amount" bson:"amount" db:"amount"`
	Status    PaymentStatus `json:"status" bson:"status" db:"status"`
	CreatedAt time.Time     `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

type Role string

const (
	RoleUser  Role = "user"
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
)
