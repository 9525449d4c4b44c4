package reservations

import (
	"time"

	"github.com/google/uuid"
)

// PassengerInfo is captured at hold time and copied onto the booking
type PassengerInfo struct {
	FirstName  string `gorm:"type:varchar(100);not null" json:"first_name" binding:"required" validate:"required,max=100"`
	LastName   string `gorm:"type:varchar(100);not null" json:"last_name" binding:"required" validate:"required,max=100"`
	NationalID string `gorm:"type:varchar(10);not null" json:"national_id" binding:"required" validate:"required,nationalid"`
	Gender     bool   `gorm:"not null" json:"gender"`
}

// Reservation is a time-boxed exclusive claim on a seat pending payment
type Reservation struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	SeatID uuid.UUID `gorm:"type:uuid;not null;index" json:"seat_id"`
	TripID uuid.UUID `gorm:"type:uuid;not null;index" json:"trip_id"`

	PassengerInfo `gorm:"embedded"`

	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	Status    Status    `gorm:"type:varchar(20);not null;default:'held';check:status IN ('held', 'confirmed', 'cancelled', 'expired')" json:"status"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// TableName sets the table name for Reservation
func (Reservation) TableName() string {
	return "reservations"
}

// IsActiveAt reports whether the hold still claims its seat at now
func (r *Reservation) IsActiveAt(now time.Time) bool {
	return r.Status == StatusHeld && r.ExpiresAt.After(now)
}

// IsExpiredAt reports whether the hold's time box has run out at now,
// regardless of whether the sweeper has seen it yet.
func (r *Reservation) IsExpiredAt(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Request DTOs

type HoldRequest struct {
	TripID    uuid.UUID     `json:"trip_id" binding:"required"`
	SeatID    uuid.UUID     `json:"seat_id" binding:"required"`
	Passenger PassengerInfo `json:"passenger" binding:"required"`
}
