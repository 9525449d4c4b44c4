package bookings

import (
	"time"

	"github.com/google/uuid"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/reservations"
)

// Booking is a paid seat. It is created once from a held reservation and
// carries a snapshot of the passenger and the price paid.
type Booking struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReservationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"reservation_id"`
	UserID        uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	TripID        uuid.UUID `gorm:"type:uuid;index;not null" json:"trip_id"`
	SeatID        uuid.UUID `gorm:"type:uuid;index;not null" json:"seat_id"`

	reservations.PassengerInfo `gorm:"embedded"`

	PricePaid   int64      `gorm:"not null;check:price_paid > 0" json:"price_paid"`
	Status      Status     `gorm:"type:varchar(20);not null;check:status IN ('confirmed', 'cancelled');default:'confirmed'" json:"status"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// TableName sets the table name for Booking
func (Booking) TableName() string {
	return "bookings"
}
