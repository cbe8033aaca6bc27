package model

import (
	"math"
	"time"
)

const MinutesPerDay = 24 * 60

type Facility struct {
	ID        string    `json:"id" bson:"_id" db:"id"`
	OwnerID   string    `json:"owner_id" bson:"owner_id" db:"owner_id"`
	Name      string    `json:"name" bson:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

// Court operating hours are minutes since midnight. Overnight ranges are not
// representable: CloseMinute must be greater than OpenMinute.
type Court struct {
	ID           string    `json:"id" bson:"_id" db:"id" validate:"required"`
	FacilityID   string    `json:"facility_id" bson:"facility_id" db:"facility_id" validate:"required"`
	Name         string    `json:"name" bson:"name" db:"name" validate:"required,min=1,max=100"`
	OpenMinute   int       `json:"open_minute" bson:"open_minute" db:"open_minute" validate:"min=0,max=1439"`
	CloseMinute  int       `json:"close_minute" bson:"close_minute" db:"close_minute" validate:"min=0,max=1439,gtfield=OpenMinute"`
	PricePerHour float64   `json:"price_per_hour" bson:"price_per_hour" db:"price_per_hour" validate:"min=0"`
	LockVersion  int64     `json:"-" bson:"lock_version" db:"-"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

// MinuteOfDay returns the wall-clock minute of t in loc. The calendar day is
// ignored, so an interval crossing midnight compares each end on its own day.
func MinuteOfDay(t time.Time, loc *time.Location) int {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Hour()*60 + t.Minute()
}

// WithinOperatingHours checks open <= minute(start) and minute(end) <= close.
func (c *Court) WithinOperatingHours(start, end time.Time, loc *time.Location) bool {
	return MinuteOfDay(start, loc) >= c.OpenMinute && MinuteOfDay(end, loc) <= c.CloseMinute
}

// PriceFor derives the price of [start, end) from the hourly rate, rounded to cents.
func (c *Court) PriceFor(start, end time.Time) float64 {
	hours := end.Sub(start).Hours()
	return RoundPrice(hours * c.PricePerHour)
}

func RoundPrice(v float64) float64 {
	return math.Round(v*100) / 100
}

// PricesEqual compares two prices at cent precision.
func PricesEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}
