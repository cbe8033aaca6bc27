package model

import "time"

type MaintenanceBlock struct {
	ID        string    `json:"id" bson:"_id" db:"id"`
	CourtID   string    `json:"court_id" bson:"court_id" db:"court_id" validate:"required,max=64"`
	StartTime time.Time `json:"start_time" bson:"start_time" db:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" bson:"end_time" db:"end_time" validate:"required,gtfield=StartTime"`
	Reason    *string   `json:"reason,omitempty" bson:"reason,omitempty" db:"reason" validate:"omitempty,max=500"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

func (m *MaintenanceBlock) Overlaps(start, end time.Time) bool {
	return Overlaps(m.StartTime, m.EndTime, start, end)
}
