package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names a booking lifecycle event published after commit
type EventType string

const (
	EventReservationHeld      EventType = "reservation.held"
	EventReservationCancelled EventType = "reservation.cancelled"
	EventReservationsExpired  EventType = "reservations.expired"
	EventBookingConfirmed     EventType = "booking.confirmed"
	EventBookingCancelled     EventType = "booking.cancelled"
)

// BookingEvent is the wire shape of everything on the booking topic. Fields
// that do not apply to a type are left empty.
type BookingEvent struct {
	ID            uuid.UUID  `json:"id"`
	Type          EventType  `json:"type"`
	UserID        string     `json:"user_id,omitempty"`
	TripID        string     `json:"trip_id,omitempty"`
	SeatID        string     `json:"seat_id,omitempty"`
	ReservationID string     `json:"reservation_id,omitempty"`
	BookingID     string     `json:"booking_id,omitempty"`
	Amount        int64      `json:"amount,omitempty"`
	Count         int64      `json:"count,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// NewEvent starts an event of the given type
func NewEvent(eventType EventType, at time.Time) *BookingEvent {
	return &BookingEvent{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: at,
	}
}

func (e *BookingEvent) ForUser(userID uuid.UUID) *BookingEvent {
	e.UserID = userID.String()
	return e
}

func (e *BookingEvent) ForSeat(tripID, seatID uuid.UUID) *BookingEvent {
	e.TripID = tripID.String()
	e.SeatID = seatID.String()
	return e
}

func (e *BookingEvent) ForReservation(reservationID uuid.UUID) *BookingEvent {
	e.ReservationID = reservationID.String()
	return e
}

func (e *BookingEvent) ForBooking(bookingID uuid.UUID, amount int64) *BookingEvent {
	e.BookingID = bookingID.String()
	e.Amount = amount
	return e
}

// PartitionKey keeps every event of one seat on one partition, so consumers
// see a seat's lifecycle in order.
func (e *BookingEvent) PartitionKey() string {
	switch {
	case e.SeatID != "":
		return e.SeatID
	case e.UserID != "":
		return e.UserID
	default:
		return string(e.Type)
	}
}

func (e *BookingEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
