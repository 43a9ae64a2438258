package model

import (
	"time"
)

const (
	StatusBooked    = "booked"
	StatusCancelled = "cancelled"
)

// Booking is one stored copy of a reservation. Every logical booking is
// persisted twice: once in the shared public collection and once in the
// owner's private collection. The two copies carry independent store ids
// and are correlated only by (EquipmentID, UserID, BookedAt).
type Booking struct {
	ID              string     `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	EquipmentID     string     `json:"equipment_id" bson:"equipment_id" validate:"required,mongodb"`
	EquipmentName   string     `json:"equipment_name" bson:"equipment_name" validate:"required,min=1,max=100"`
	UserID          string     `json:"user_id" bson:"user_id" validate:"required"`
	UserDisplayName string     `json:"user_display_name" bson:"user_display_name" validate:"required,min=1,max=100"`
	StartDate       time.Time  `json:"start_date" bson:"start_date" validate:"required"`
	EndDate         time.Time  `json:"end_date" bson:"end_date" validate:"required,gtfield=StartDate"`
	Status          string     `json:"status" bson:"status" validate:"required,oneof=booked cancelled"`
	BookedAt        time.Time  `json:"booked_at" bson:"booked_at" validate:"required"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty" validate:"omitempty"`
}

// CorrelationKey identifies both stored copies of one logical booking.
type CorrelationKey struct {
	EquipmentID string
	UserID      string
	BookedAt    time.Time
}

func (b *Booking) Correlation() CorrelationKey {
	return CorrelationKey{
		EquipmentID: b.EquipmentID,
		UserID:      b.UserID,
		BookedAt:    b.BookedAt,
	}
}

// Overlaps reports whether the half-open interval [b.StartDate, b.EndDate)
// intersects [other.StartDate, other.EndDate). Touching intervals do not
// count as overlap, so back-to-back bookings are legal.
func (b *Booking) Overlaps(other *Booking) bool {
	return b.StartDate.Before(other.EndDate) && b.EndDate.After(other.StartDate)
}
